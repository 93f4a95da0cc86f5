package application

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/dfryer1193/storefront/catalog/domain"
	"github.com/rs/zerolog/log"
)

// AssetFile is one file found under the asset directory.
type AssetFile struct {
	Path string `json:"path"`
	URL  string `json:"url"`
	Size int64  `json:"size"`
	Hash string `json:"sha256"`
}

// DuplicateGroup lists files sharing identical content.
type DuplicateGroup struct {
	Hash  string   `json:"sha256"`
	Size  int64    `json:"size"`
	Files []string `json:"files"`
}

// GCFailure is a file the collector could not remove.
type GCFailure struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

// GCReport summarises one collector run.
type GCReport struct {
	DryRun            bool             `json:"dryRun"`
	RequiredRefs      int              `json:"requiredRefs"`
	TotalFiles        int              `json:"totalFiles"`
	TotalBytes        int64            `json:"totalBytes"`
	Referenced        []AssetFile      `json:"referenced"`
	Unreferenced      []AssetFile      `json:"unreferenced"`
	UnreferencedBytes int64            `json:"unreferencedBytes"`
	Duplicates        []DuplicateGroup `json:"duplicates"`
	Deleted           []string         `json:"deleted"`
	DeletedBytes      int64            `json:"deletedBytes"`
	Failed            []GCFailure      `json:"failed"`
	Skipped           []string         `json:"skipped"`
}

// GarbageCollector reclaims asset files no document references.
type GarbageCollector struct {
	store     domain.DocumentStore
	assetDir  string
	urlPrefix string
	remove    func(string) error
}

func NewGarbageCollector(store domain.DocumentStore, assetDir, urlPrefix string) *GarbageCollector {
	return &GarbageCollector{
		store:     store,
		assetDir:  assetDir,
		urlPrefix: urlPrefix,
		remove:    os.Remove,
	}
}

// Required loads products and categories and resolves their references.
func (gc *GarbageCollector) Required(ctx context.Context) (RequiredSet, error) {
	products, err := gc.store.FindAll(ctx, domain.ProductsCollection)
	if err != nil {
		return nil, fmt.Errorf("failed to load products: %w", err)
	}

	categories, err := gc.store.FindAll(ctx, domain.CategoriesCollection)
	if err != nil {
		return nil, fmt.Errorf("failed to load categories: %w", err)
	}

	return ResolveReferences(gc.urlPrefix, products, categories), nil
}

// Run scans the asset directory. Unless dryRun is set every unreferenced
// file is deleted; a failed delete is recorded and the run continues.
func (gc *GarbageCollector) Run(ctx context.Context, dryRun bool) (*GCReport, error) {
	required, err := gc.Required(ctx)
	if err != nil {
		return nil, err
	}

	files, err := gc.scan(ctx)
	if err != nil {
		return nil, err
	}

	report := &GCReport{
		DryRun:       dryRun,
		RequiredRefs: len(required),
		TotalFiles:   len(files),
		Referenced:   []AssetFile{},
		Unreferenced: []AssetFile{},
		Duplicates:   findDuplicates(files),
		Deleted:      []string{},
		Failed:       []GCFailure{},
		Skipped:      []string{},
	}

	for _, f := range files {
		report.TotalBytes += f.Size
		if required.Has(f.URL) {
			report.Referenced = append(report.Referenced, f)
			continue
		}
		report.Unreferenced = append(report.Unreferenced, f)
		report.UnreferencedBytes += f.Size
	}

	if dryRun {
		return report, nil
	}

	// Documents written since the scan started may reference files that
	// were unreferenced when it began.
	current, err := gc.Required(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to re-resolve references before delete: %w", err)
	}

	for _, f := range report.Unreferenced {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		if current.Has(f.URL) {
			log.Warn().Str("path", f.Path).Msg("Skipping file referenced since the scan started")
			report.Skipped = append(report.Skipped, f.Path)
			continue
		}

		full := filepath.Join(gc.assetDir, filepath.FromSlash(f.Path))
		if err := gc.remove(full); err != nil {
			log.Error().Err(err).Str("path", f.Path).Msg("Failed to delete unreferenced asset")
			report.Failed = append(report.Failed, GCFailure{Path: f.Path, Error: err.Error()})
			continue
		}

		log.Info().Str("path", f.Path).Int64("bytes", f.Size).Msg("Deleted unreferenced asset")
		report.Deleted = append(report.Deleted, f.Path)
		report.DeletedBytes += f.Size
	}

	return report, nil
}

// scan walks the asset directory in lexical order, hashing every regular file.
func (gc *GarbageCollector) scan(ctx context.Context) ([]AssetFile, error) {
	var files []AssetFile

	err := filepath.WalkDir(gc.assetDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == gc.assetDir && errors.Is(err, fs.ErrNotExist) {
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

		rel, err := filepath.Rel(gc.assetDir, p)
		if err != nil {
			return err
		}

		size, sum, err := hashFile(p)
		if err != nil {
			return err
		}

		rel = filepath.ToSlash(rel)
		files = append(files, AssetFile{
			Path: rel,
			URL:  gc.urlPrefix + rel,
			Size: size,
			Hash: sum,
		})
		return nil
	})
	if err != nil {
		return nil, &domain.StorageError{Op: "scan", Path: gc.assetDir, Err: err}
	}

	return files, nil
}

// hashFile streams p through SHA-256.
func hashFile(p string) (int64, string, error) {
	f, err := os.Open(p)
	if err != nil {
		return 0, "", err
	}
	defer f.Close()

	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return 0, "", fmt.Errorf("failed to hash %s: %w", p, err)
	}
	return n, hex.EncodeToString(h.Sum(nil)), nil
}

func findDuplicates(files []AssetFile) []DuplicateGroup {
	byHash := make(map[string]*DuplicateGroup)
	for _, f := range files {
		g, ok := byHash[f.Hash]
		if !ok {
			g = &DuplicateGroup{Hash: f.Hash, Size: f.Size}
			byHash[f.Hash] = g
		}
		g.Files = append(g.Files, f.Path)
	}

	groups := []DuplicateGroup{}
	for _, g := range byHash {
		if len(g.Files) > 1 {
			groups = append(groups, *g)
		}
	}
	slices.SortFunc(groups, func(a, b DuplicateGroup) int {
		return strings.Compare(a.Files[0], b.Files[0])
	})
	return groups
}
