package rest

import (
	"context"
	"io"

	"github.com/dfryer1193/storefront/catalog/domain"
	"github.com/dfryer1193/storefront/shared/idgen"
	"github.com/gin-gonic/gin"
)

// Renditions converts stored uploads.
type Renditions interface {
	GenerateAll(ctx context.Context, uploads []domain.Upload) ([]domain.Outcome, error)
}

// Exports builds and streams snapshots.
type Exports interface {
	Envelope(ctx context.Context, names []string, withAssets bool) (*domain.Envelope, error)
	Filename(env *domain.Envelope, bundle bool) string
	WriteJSON(w io.Writer, env *domain.Envelope) error
	WriteBundle(ctx context.Context, w io.Writer, env *domain.Envelope) error
}

// Imports runs and reports snapshot import jobs.
type Imports interface {
	Submit(ctx context.Context, path, source string, replaceExisting bool) (string, error)
	Get(ctx context.Context, id string) (*domain.Job, error)
}

// Options carries the filesystem locations and limits the handlers need.
type Options struct {
	AssetDir       string
	URLPrefix      string
	TmpDir         string
	MaxUploadBytes int64
	MaxImportBytes int64
	// MaxExtractBytes caps the uncompressed size of an imported bundle.
	MaxExtractBytes int64
}

type Handler struct {
	renditions Renditions
	exports    Exports
	imports    Imports
	opts       Options
	uploadName idgen.Generator
}

func NewHandler(renditions Renditions, exports Exports, imports Imports, opts Options) *Handler {
	return &Handler{
		renditions: renditions,
		exports:    exports,
		imports:    imports,
		opts:       opts,
		uploadName: idgen.UploadName,
	}
}

func NewApi(router *gin.Engine, h *Handler) {
	router.Static(h.opts.URLPrefix, h.opts.AssetDir)

	assetsV1 := router.Group("assets/v1")
	{
		assetsV1.POST("/uploads", h.UploadAssets)
	}

	snapshotsV1 := router.Group("snapshots/v1")
	{
		snapshotsV1.GET("/export", h.ExportSnapshot)
		snapshotsV1.POST("/import", h.ImportSnapshot)
		snapshotsV1.GET("/jobs/:jobId", h.GetJob)
	}
}
