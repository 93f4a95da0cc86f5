package application

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/dfryer1193/storefront/catalog/domain"
	"github.com/dfryer1193/storefront/shared/config"
	"github.com/disintegration/imaging"
	"github.com/gen2brain/webp"
	"github.com/rs/zerolog/log"
	_ "golang.org/x/image/webp"
)

// RenditionGenerator turns stored uploads into thumb/medium/large WebP
// renditions next to the original.
type RenditionGenerator struct {
	assetDir  string
	urlPrefix string
	widths    map[domain.Size]int
	quality   int
}

func NewRenditionGenerator(cfg config.AssetsConfig) *RenditionGenerator {
	return &RenditionGenerator{
		assetDir:  cfg.Dir,
		urlPrefix: cfg.URLPrefix,
		widths: map[domain.Size]int{
			domain.SizeThumb:  cfg.ThumbWidth,
			domain.SizeMedium: cfg.MediumWidth,
			domain.SizeLarge:  cfg.LargeWidth,
		},
		quality: cfg.Quality,
	}
}

// GenerateAll processes uploads in order. It stops at the first storage
// failure or when ctx is done; conversion failures are reported per upload.
func (g *RenditionGenerator) GenerateAll(ctx context.Context, uploads []domain.Upload) ([]domain.Outcome, error) {
	outcomes := make([]domain.Outcome, 0, len(uploads))
	for _, up := range uploads {
		if err := ctx.Err(); err != nil {
			return outcomes, err
		}

		outcome, err := g.Generate(up)
		if err != nil {
			return outcomes, err
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes, nil
}

// Generate writes the three renditions of up. The returned error is always a
// *domain.StorageError; an undecodable or unencodable image instead yields an
// Outcome whose Reference is the original upload.
func (g *RenditionGenerator) Generate(up domain.Upload) (domain.Outcome, error) {
	outcome := domain.Outcome{Upload: up}

	originalURL, err := g.URLFor(up.StoredPath)
	if err != nil {
		return outcome, &domain.StorageError{Op: "resolve", Path: up.StoredPath, Err: err}
	}

	dir := filepath.Dir(up.StoredPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return outcome, &domain.StorageError{Op: "create directory", Path: dir, Err: err}
	}

	src, err := imaging.Open(up.StoredPath, imaging.AutoOrientation(true))
	if err != nil {
		var pathErr *fs.PathError
		if errors.As(err, &pathErr) {
			return outcome, &domain.StorageError{Op: "open", Path: up.StoredPath, Err: err}
		}
		return g.fallback(outcome, originalURL, &domain.ConversionError{Path: up.StoredPath, Err: err}), nil
	}

	base := strings.TrimSuffix(filepath.Base(up.StoredPath), filepath.Ext(up.StoredPath))
	srcWidth := src.Bounds().Dx()

	for _, size := range domain.Sizes {
		width := min(g.widths[size], srcWidth)
		resized := imaging.Resize(src, width, 0, imaging.Lanczos)

		dest := filepath.Join(dir, domain.VariantName(base, size))
		if err := g.encode(dest, resized); err != nil {
			g.removeRenditions(outcome.Renditions)

			var convErr *domain.ConversionError
			if errors.As(err, &convErr) {
				outcome.Renditions = nil
				return g.fallback(outcome, originalURL, convErr), nil
			}
			return domain.Outcome{Upload: up}, err
		}

		url, _ := g.URLFor(dest)
		outcome.Renditions = append(outcome.Renditions, domain.Rendition{
			Size:   size,
			URL:    url,
			Width:  resized.Bounds().Dx(),
			Height: resized.Bounds().Dy(),
			Path:   dest,
		})
	}

	outcome.Reference = outcome.Renditions[len(outcome.Renditions)-1].URL

	if err := os.Remove(up.StoredPath); err != nil {
		log.Warn().Err(err).Str("path", up.StoredPath).Msg("Failed to remove original upload")
	}

	return outcome, nil
}

// URLFor maps a file under the asset directory to its public URL path.
func (g *RenditionGenerator) URLFor(path string) (string, error) {
	rel, err := filepath.Rel(g.assetDir, path)
	if err != nil {
		return "", err
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s is outside the asset directory", path)
	}
	return g.urlPrefix + filepath.ToSlash(rel), nil
}

func (g *RenditionGenerator) fallback(outcome domain.Outcome, originalURL string, convErr *domain.ConversionError) domain.Outcome {
	log.Error().Err(convErr).
		Str("path", outcome.Upload.StoredPath).
		Str("role", outcome.Upload.Role.String()).
		Msg("Failed to generate renditions, keeping original upload")

	outcome.Reference = originalURL
	outcome.Err = convErr
	return outcome
}

// encode writes img to dest as lossy WebP. Failures of the underlying file
// are storage errors; anything else the encoder reports is a conversion error.
func (g *RenditionGenerator) encode(dest string, img image.Image) error {
	f, err := os.Create(dest)
	if err != nil {
		return &domain.StorageError{Op: "create", Path: dest, Err: err}
	}

	w := &trackingWriter{w: f}
	encErr := webp.Encode(w, img, webp.Options{Quality: g.quality})
	closeErr := f.Close()

	switch {
	case w.err != nil:
		os.Remove(dest)
		return &domain.StorageError{Op: "write", Path: dest, Err: w.err}
	case encErr != nil:
		os.Remove(dest)
		return &domain.ConversionError{Path: dest, Err: encErr}
	case closeErr != nil:
		os.Remove(dest)
		return &domain.StorageError{Op: "close", Path: dest, Err: closeErr}
	}
	return nil
}

func (g *RenditionGenerator) removeRenditions(renditions []domain.Rendition) {
	for _, r := range renditions {
		if err := os.Remove(r.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			log.Warn().Err(err).Str("path", r.Path).Msg("Failed to remove partial rendition")
		}
	}
}

// trackingWriter remembers the first write error so it can be told apart
// from encoder failures.
type trackingWriter struct {
	w   io.Writer
	err error
}

func (t *trackingWriter) Write(p []byte) (int, error) {
	n, err := t.w.Write(p)
	if err != nil && t.err == nil {
		t.err = err
	}
	return n, err
}
