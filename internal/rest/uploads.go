package rest

import (
	"fmt"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"slices"
	"strings"

	"github.com/dfryer1193/storefront/api"
	"github.com/dfryer1193/storefront/catalog/application"
	"github.com/dfryer1193/storefront/catalog/domain"
	"github.com/gin-gonic/gin"
)

const colorFieldPrefix = "colorImages_"

var imageExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".webp", ".bmp", ".tiff", ".tif"}

// fieldOrder fixes the processing order of the multipart fields so the first
// primary image is always the one assigned to Image.
var fieldOrder = map[string]int{"image": 0, "images": 1, "categoryImage": 3}

// roleForField turns a multipart field name into an upload role.
func roleForField(field string) (domain.Role, bool) {
	switch {
	case field == "image":
		return domain.Primary(), true
	case field == "images":
		return domain.Additional(), true
	case field == "categoryImage":
		return domain.Category(), true
	case strings.HasPrefix(field, colorFieldPrefix) && len(field) > len(colorFieldPrefix):
		return domain.PerColor(strings.TrimPrefix(field, colorFieldPrefix)), true
	}
	return domain.Role{}, false
}

type pendingUpload struct {
	field  string
	role   domain.Role
	header *multipart.FileHeader
}

// UploadAssets stores every image of a multipart request and generates its
// renditions.
func (h *Handler) UploadAssets(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		writeError(c, &domain.ValidationError{Field: "form", Reason: err.Error()})
		return
	}

	pending, err := h.collectUploads(form)
	if err != nil {
		writeError(c, err)
		return
	}

	uploads := make([]domain.Upload, 0, len(pending))
	for _, p := range pending {
		ext := strings.ToLower(filepath.Ext(p.header.Filename))
		dest := filepath.Join(h.opts.AssetDir, h.uploadName()+ext)
		if err := c.SaveUploadedFile(p.header, dest); err != nil {
			writeError(c, &domain.StorageError{Op: "save upload", Path: dest, Err: err})
			return
		}
		uploads = append(uploads, domain.Upload{Role: p.role, StoredPath: dest, OriginalName: p.header.Filename})
	}

	outcomes, err := h.renditions.GenerateAll(c.Request.Context(), uploads)
	if err != nil {
		writeError(c, err)
		return
	}

	fields := application.Assign(outcomes)
	resp := api.UploadResponse{
		Fields: api.AssetFields{
			Image:       fields.Image,
			Images:      fields.Images,
			ColorImages: fields.ColorImages,
		},
		Files: make([]api.UploadedFile, 0, len(outcomes)),
	}
	for i, o := range outcomes {
		file := api.UploadedFile{
			Field:        pending[i].field,
			Role:         o.Upload.Role.String(),
			OriginalName: o.Upload.OriginalName,
			Reference:    o.Reference,
			Converted:    o.Converted(),
		}
		if o.Err != nil {
			file.Error = o.Err.Error()
		}
		for _, r := range o.Renditions {
			file.Renditions = append(file.Renditions, api.RenditionFile{
				Size:   string(r.Size),
				URL:    r.URL,
				Width:  r.Width,
				Height: r.Height,
			})
		}
		resp.Files = append(resp.Files, file)
	}

	c.JSON(http.StatusCreated, resp)
}

// collectUploads validates every file before anything is written.
func (h *Handler) collectUploads(form *multipart.Form) ([]pendingUpload, error) {
	fields := make([]string, 0, len(form.File))
	for field := range form.File {
		fields = append(fields, field)
	}
	slices.SortFunc(fields, func(a, b string) int {
		if oa, ob := fieldRank(a), fieldRank(b); oa != ob {
			return oa - ob
		}
		return strings.Compare(a, b)
	})

	var pending []pendingUpload
	for _, field := range fields {
		role, ok := roleForField(field)
		if !ok {
			return nil, &domain.ValidationError{Field: field, Reason: "unknown upload field"}
		}

		for _, fh := range form.File[field] {
			if err := h.validateImage(field, fh); err != nil {
				return nil, err
			}
			pending = append(pending, pendingUpload{field: field, role: role, header: fh})
		}
	}

	if len(pending) == 0 {
		return nil, &domain.ValidationError{Field: "form", Reason: "no image files uploaded"}
	}
	return pending, nil
}

func fieldRank(field string) int {
	if rank, ok := fieldOrder[field]; ok {
		return rank
	}
	return 2
}

func (h *Handler) validateImage(field string, fh *multipart.FileHeader) error {
	if fh.Size > h.opts.MaxUploadBytes {
		return &domain.ValidationError{
			Field:  field,
			Reason: fmt.Sprintf("%s exceeds %d bytes", fh.Filename, h.opts.MaxUploadBytes),
		}
	}

	ext := strings.ToLower(filepath.Ext(fh.Filename))
	if !slices.Contains(imageExtensions, ext) {
		return &domain.ValidationError{Field: field, Reason: fmt.Sprintf("%s is not a supported image type", fh.Filename)}
	}

	if ct := fh.Header.Get("Content-Type"); ct != "" && ct != "application/octet-stream" && !strings.HasPrefix(ct, "image/") {
		return &domain.ValidationError{Field: field, Reason: fmt.Sprintf("content type %s is not an image", ct)}
	}
	return nil
}
