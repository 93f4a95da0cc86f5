package application

import (
	"archive/zip"
	"compress/flate"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/dfryer1193/storefront/catalog/domain"
)

const (
	bundleDataEntry  = "data.json"
	bundleAssetsRoot = "assets/"
	exportGenerator  = "storefront"
)

// Exporter builds snapshot envelopes and streams them as JSON or as a ZIP
// bundle that also carries the asset directory. It never writes to the store
// or the asset directory.
type Exporter struct {
	store    domain.DocumentStore
	assetDir string
	now      func() time.Time
}

func NewExporter(store domain.DocumentStore, assetDir string) *Exporter {
	return &Exporter{
		store:    store,
		assetDir: assetDir,
		now:      time.Now,
	}
}

// Envelope reads every document of the named collections. An empty names
// list selects all collections currently present.
func (e *Exporter) Envelope(ctx context.Context, names []string, withAssets bool) (*domain.Envelope, error) {
	if len(names) == 0 {
		all, err := e.store.ListCollections(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list collections: %w", err)
		}
		names = all
	}

	env := &domain.Envelope{
		Database:    e.store.Name(),
		ExportedAt:  e.now().UTC(),
		Collections: make(map[string][]domain.Document, len(names)),
		Meta: &domain.Meta{
			Assets:    withAssets,
			Counts:    make(map[string]int, len(names)),
			Generator: exportGenerator,
		},
	}

	for _, name := range slices.Compact(slices.Sorted(slices.Values(names))) {
		docs, err := e.store.FindAll(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("failed to read collection %s: %w", name, err)
		}
		env.Collections[name] = docs
		env.Meta.Counts[name] = len(docs)
	}

	return env, nil
}

// Filename is the attachment name for an export of env.
func (e *Exporter) Filename(env *domain.Envelope, bundle bool) string {
	ext := ".json"
	if bundle {
		ext = ".zip"
	}
	return fmt.Sprintf("%s-export-%s%s", env.Database, env.ExportedAt.Format(time.DateOnly), ext)
}

// WriteJSON streams env as a single JSON document.
func (e *Exporter) WriteJSON(w io.Writer, env *domain.Envelope) error {
	if err := json.NewEncoder(w).Encode(env); err != nil {
		return fmt.Errorf("failed to encode envelope: %w", err)
	}
	return nil
}

// WriteBundle streams a ZIP with data.json followed by every asset file
// under assets/. The archive is finalized only after all entries are
// written; on error it is left unterminated.
func (e *Exporter) WriteBundle(ctx context.Context, w io.Writer, env *domain.Envelope) error {
	zw := zip.NewWriter(w)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.BestCompression)
	})

	entry, err := zw.CreateHeader(&zip.FileHeader{
		Name:     bundleDataEntry,
		Method:   zip.Deflate,
		Modified: env.ExportedAt,
	})
	if err != nil {
		return &domain.ArchiveStreamError{Entry: bundleDataEntry, Err: err}
	}
	if err := json.NewEncoder(entry).Encode(env); err != nil {
		return &domain.ArchiveStreamError{Entry: bundleDataEntry, Err: err}
	}

	err = filepath.WalkDir(e.assetDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == e.assetDir && errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(e.assetDir, p)
		if err != nil {
			return err
		}
		name := bundleAssetsRoot + filepath.ToSlash(rel)

		if err := addFile(zw, name, p); err != nil {
			return &domain.ArchiveStreamError{Entry: name, Err: err}
		}
		return nil
	})
	if err != nil {
		var streamErr *domain.ArchiveStreamError
		if errors.As(err, &streamErr) {
			return err
		}
		return &domain.ArchiveStreamError{Entry: bundleAssetsRoot, Err: err}
	}

	if err := zw.Close(); err != nil {
		return &domain.ArchiveStreamError{Entry: "central directory", Err: err}
	}
	return nil
}

func addFile(zw *zip.Writer, name, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	header.Name = name
	header.Method = zip.Deflate

	w, err := zw.CreateHeader(header)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, f)
	return err
}
