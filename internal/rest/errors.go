package rest

import (
	"errors"
	"net/http"

	"github.com/dfryer1193/storefront/api"
	"github.com/dfryer1193/storefront/catalog/domain"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	var (
		validationErr *domain.ValidationError
		importErr     *domain.ImportError
	)
	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrJobNotFound):
		return http.StatusNotFound
	case errors.As(err, &importErr):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	writeJobError(c, err, "")
}

func writeJobError(c *gin.Context, err error, jobID string) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("Request failed")
	}
	c.AbortWithStatusJSON(status, api.Error{Error: err.Error(), JobID: jobID})
}
