package application

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dfryer1193/storefront/catalog/domain"
	"github.com/rs/zerolog/log"
)

// ErrPathTraversal is returned when an archive entry escapes its target.
var ErrPathTraversal = errors.New("path traversal detected")

// Bundle is the result of unpacking a bundled snapshot.
type Bundle struct {
	DataPath string
	Assets   int
}

type bundleAsset struct {
	entry *zip.File
	rel   string
	dest  string
}

// ExtractBundle unpacks a bundle archive: data.json goes to a temp file in
// tmpDir and assets/** is mirrored into assetDir. Every entry is checked and
// extracted into a staging directory under tmpDir before anything in
// assetDir changes, so a rejected bundle leaves the asset directory as it
// was. maxBytes caps the total uncompressed size. The archive at zipPath is
// left in place.
func ExtractBundle(zipPath, assetDir, tmpDir string, maxBytes int64) (*Bundle, error) {
	zr, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, &domain.ValidationError{Field: "file", Reason: "not a readable zip archive: " + err.Error()}
	}
	defer zr.Close()

	data, assets, err := planBundle(zr.File, assetDir, maxBytes)
	if err != nil {
		return nil, err
	}

	staging, err := os.MkdirTemp(tmpDir, "bundle-*")
	if err != nil {
		return nil, &domain.StorageError{Op: "create directory", Path: tmpDir, Err: err}
	}
	defer os.RemoveAll(staging)

	budget := &extractBudget{limit: maxBytes, remaining: maxBytes}
	bundle := &Bundle{}

	bundle.DataPath, err = extractData(data, tmpDir, budget)
	if err != nil {
		return nil, err
	}

	staged := make([]string, len(assets))
	for i, a := range assets {
		staged[i] = filepath.Join(staging, filepath.FromSlash(a.rel))
		if err := extractFile(a.entry, staged[i], budget); err != nil {
			bundle.cleanup()
			return nil, err
		}
	}

	for i, a := range assets {
		if err := moveFile(staged[i], a.dest); err != nil {
			bundle.cleanup()
			return nil, err
		}
		bundle.Assets++
	}

	return bundle, nil
}

// planBundle validates entry names and declared sizes without reading any
// entry body.
func planBundle(files []*zip.File, assetDir string, maxBytes int64) (*zip.File, []bundleAsset, error) {
	var (
		data     *zip.File
		assets   []bundleAsset
		declared uint64
	)

	for _, f := range files {
		switch {
		case f.Name == bundleDataEntry:
			if data != nil {
				continue
			}
			data = f

		case strings.HasPrefix(f.Name, bundleAssetsRoot) && !f.FileInfo().IsDir():
			rel := strings.TrimPrefix(f.Name, bundleAssetsRoot)
			dest, err := SafePath(assetDir, rel)
			if err != nil {
				return nil, nil, &domain.ValidationError{Field: "file", Reason: fmt.Sprintf("entry %q: %v", f.Name, err)}
			}
			assets = append(assets, bundleAsset{entry: f, rel: rel, dest: dest})

		default:
			log.Debug().Str("entry", f.Name).Msg("Ignoring unknown bundle entry")
			continue
		}

		declared += f.UncompressedSize64
		if declared > uint64(maxBytes) {
			return nil, nil, tooLarge(maxBytes)
		}
	}

	if data == nil {
		return nil, nil, &domain.ValidationError{Field: "file", Reason: "bundle has no " + bundleDataEntry}
	}
	return data, assets, nil
}

func tooLarge(maxBytes int64) error {
	return &domain.ValidationError{Field: "file", Reason: fmt.Sprintf("bundle expands beyond %d bytes", maxBytes)}
}

func (b *Bundle) cleanup() {
	if b.DataPath != "" {
		os.Remove(b.DataPath)
	}
}

// SafePath joins rel onto base, refusing results outside base.
func SafePath(base, rel string) (string, error) {
	if strings.Contains(rel, "..") {
		return "", ErrPathTraversal
	}
	cleaned := filepath.Join(base, filepath.Clean("/"+rel))
	root := filepath.Clean(base)
	if cleaned == root || !strings.HasPrefix(cleaned, root+string(filepath.Separator)) {
		return "", ErrPathTraversal
	}
	return cleaned, nil
}

func extractData(f *zip.File, tmpDir string, budget *extractBudget) (string, error) {
	out, err := os.CreateTemp(tmpDir, "snapshot-*.json")
	if err != nil {
		return "", &domain.StorageError{Op: "create", Path: tmpDir, Err: err}
	}

	if err := copyEntry(f, out, budget); err != nil {
		out.Close()
		os.Remove(out.Name())
		return "", err
	}
	if err := out.Close(); err != nil {
		os.Remove(out.Name())
		return "", &domain.StorageError{Op: "close", Path: out.Name(), Err: err}
	}
	return out.Name(), nil
}

func extractFile(f *zip.File, dest string, budget *extractBudget) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return &domain.StorageError{Op: "create directory", Path: filepath.Dir(dest), Err: err}
	}

	out, err := os.Create(dest)
	if err != nil {
		return &domain.StorageError{Op: "create", Path: dest, Err: err}
	}

	if err := copyEntry(f, out, budget); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return &domain.StorageError{Op: "close", Path: dest, Err: err}
	}
	return nil
}

// extractBudget tracks how many uncompressed bytes may still be written.
// Declared sizes are checked up front; this catches entries that lie.
type extractBudget struct {
	limit     int64
	remaining int64
}

// entryReader records read-side failures so they can be told apart from
// write failures after io.Copy.
type entryReader struct {
	r   io.Reader
	err error
}

func (e *entryReader) Read(p []byte) (int, error) {
	n, err := e.r.Read(p)
	if err != nil && err != io.EOF {
		e.err = err
	}
	return n, err
}

func copyEntry(f *zip.File, w io.Writer, budget *extractBudget) error {
	rc, err := f.Open()
	if err != nil {
		return &domain.ValidationError{Field: "file", Reason: fmt.Sprintf("entry %q: %v", f.Name, err)}
	}
	defer rc.Close()

	src := &entryReader{r: io.LimitReader(rc, budget.remaining+1)}
	n, err := io.Copy(w, src)
	if src.err != nil {
		return &domain.ValidationError{Field: "file", Reason: fmt.Sprintf("entry %q is corrupt: %v", f.Name, src.err)}
	}
	if err != nil {
		return &domain.StorageError{Op: "extract", Path: f.Name, Err: err}
	}
	if n > budget.remaining {
		return tooLarge(budget.limit)
	}
	budget.remaining -= n
	return nil
}

// moveFile renames src onto dest, copying when they are on different
// filesystems.
func moveFile(src, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return &domain.StorageError{Op: "create directory", Path: filepath.Dir(dest), Err: err}
	}
	if err := os.Rename(src, dest); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return &domain.StorageError{Op: "open", Path: src, Err: err}
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return &domain.StorageError{Op: "create", Path: dest, Err: err}
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return &domain.StorageError{Op: "copy", Path: dest, Err: err}
	}
	if err := out.Close(); err != nil {
		return &domain.StorageError{Op: "close", Path: dest, Err: err}
	}
	return nil
}
