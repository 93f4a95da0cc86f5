package rest

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/dfryer1193/storefront/api"
	"github.com/dfryer1193/storefront/catalog/application"
	"github.com/dfryer1193/storefront/catalog/domain"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

var snapshotContentTypes = map[string][]string{
	".json": {"application/json", "text/json", "text/plain"},
	".zip":  {"application/zip", "application/x-zip-compressed", "application/x-zip"},
}

// ExportSnapshot streams the selected collections, optionally bundled with
// the asset directory. Errors before the first byte get a JSON body; later
// errors drop the connection.
func (h *Handler) ExportSnapshot(c *gin.Context) {
	bundle := false
	if raw := c.Query("assets"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(c, &domain.ValidationError{Field: "assets", Reason: "must be true or false"})
			return
		}
		bundle = v
	}

	env, err := h.exports.Envelope(c.Request.Context(), splitCollections(c.Query("collections")), bundle)
	if err != nil {
		writeError(c, err)
		return
	}

	contentType := "application/json"
	if bundle {
		contentType = "application/zip"
	}
	c.Header("Content-Type", contentType)
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename=%q`, h.exports.Filename(env, bundle)))
	c.Status(http.StatusOK)

	if bundle {
		err = h.exports.WriteBundle(c.Request.Context(), c.Writer, env)
	} else {
		err = h.exports.WriteJSON(c.Writer, env)
	}
	if err == nil {
		return
	}

	if !c.Writer.Written() {
		c.Header("Content-Disposition", "")
		c.Header("Content-Type", "")
		writeError(c, err)
		return
	}

	log.Error().Err(err).Str("database", env.Database).Bool("bundle", bundle).Msg("Export stream failed after response started")
	panic(http.ErrAbortHandler)
}

func splitCollections(raw string) []string {
	var names []string
	for _, name := range strings.Split(raw, ",") {
		if name = strings.TrimSpace(name); name != "" {
			names = append(names, name)
		}
	}
	return names
}

// ImportSnapshot accepts a .json envelope or a .zip bundle and queues an
// import job for it.
func (h *Handler) ImportSnapshot(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		writeError(c, &domain.ValidationError{Field: "file", Reason: "a snapshot file is required"})
		return
	}

	ext, err := h.validateSnapshot(fh)
	if err != nil {
		writeError(c, err)
		return
	}

	replaceExisting := true
	if raw := c.PostForm("replaceExisting"); raw != "" {
		replaceExisting, err = strconv.ParseBool(raw)
		if err != nil {
			writeError(c, &domain.ValidationError{Field: "replaceExisting", Reason: "must be true or false"})
			return
		}
	}

	path, err := h.saveTemp(c, fh, ext)
	if err != nil {
		writeError(c, err)
		return
	}

	if ext == ".zip" {
		bundle, err := application.ExtractBundle(path, h.opts.AssetDir, h.opts.TmpDir, h.opts.MaxExtractBytes)
		removeQuietly(path)
		if err != nil {
			writeError(c, err)
			return
		}
		log.Info().Int("assets", bundle.Assets).Str("source", fh.Filename).Msg("Extracted snapshot bundle")
		path = bundle.DataPath
	}

	id, err := h.imports.Submit(c.Request.Context(), path, fh.Filename, replaceExisting)
	if err != nil {
		writeJobError(c, err, id)
		return
	}

	c.JSON(http.StatusAccepted, api.JobAccepted{JobID: id})
}

func (h *Handler) validateSnapshot(fh *multipart.FileHeader) (string, error) {
	if fh.Size > h.opts.MaxImportBytes {
		return "", &domain.ValidationError{
			Field:  "file",
			Reason: fmt.Sprintf("%s exceeds %d bytes", fh.Filename, h.opts.MaxImportBytes),
		}
	}

	ext := strings.ToLower(filepath.Ext(fh.Filename))
	allowed, ok := snapshotContentTypes[ext]
	if !ok {
		return "", &domain.ValidationError{Field: "file", Reason: "snapshot must be a .json or .zip file"}
	}

	ct := fh.Header.Get("Content-Type")
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	ct = strings.TrimSpace(strings.ToLower(ct))
	if ct != "" && ct != "application/octet-stream" && !slices.Contains(allowed, ct) {
		return "", &domain.ValidationError{Field: "file", Reason: fmt.Sprintf("content type %s not allowed for %s", ct, ext)}
	}
	return ext, nil
}

func (h *Handler) saveTemp(c *gin.Context, fh *multipart.FileHeader, ext string) (string, error) {
	tmp, err := os.CreateTemp(h.opts.TmpDir, "snapshot-upload-*"+ext)
	if err != nil {
		return "", &domain.StorageError{Op: "create", Path: h.opts.TmpDir, Err: err}
	}
	tmp.Close()

	if err := c.SaveUploadedFile(fh, tmp.Name()); err != nil {
		removeQuietly(tmp.Name())
		return "", &domain.StorageError{Op: "save upload", Path: tmp.Name(), Err: err}
	}
	return tmp.Name(), nil
}

// GetJob reports the current record of an import job.
func (h *Handler) GetJob(c *gin.Context) {
	job, err := h.imports.Get(c.Request.Context(), c.Param("jobId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

func removeQuietly(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Str("path", path).Msg("Failed to remove temp file")
	}
}
