package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func newRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(HandlePanics(), RequestLogger())
	return r
}

func TestHandlePanics_ReturnsJSON500(t *testing.T) {
	r := newRouter()
	r.GET("/boom", func(c *gin.Context) { panic(errors.New("boom")) })
	r.GET("/text", func(c *gin.Context) { panic("plain value") })

	for _, path := range []string{"/boom", "/text"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))

		if w.Code != http.StatusInternalServerError {
			t.Errorf("%s status = %d, want 500", path, w.Code)
		}
		if ct := w.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
			t.Errorf("%s content type = %q", path, ct)
		}
	}
}

func TestHandlePanics_RepanicsAbort(t *testing.T) {
	r := newRouter()
	r.GET("/abort", func(c *gin.Context) { panic(http.ErrAbortHandler) })

	defer func() {
		if rec := recover(); rec != http.ErrAbortHandler {
			t.Errorf("recovered %v, want http.ErrAbortHandler", rec)
		}
	}()

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/abort", nil))
	t.Error("ErrAbortHandler should propagate")
}

func TestRequestLogger_PassesThrough(t *testing.T) {
	r := newRouter()
	r.GET("/ok", func(c *gin.Context) { c.String(http.StatusTeapot, "hi") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))
	if w.Code != http.StatusTeapot || w.Body.String() != "hi" {
		t.Errorf("response = %d %q", w.Code, w.Body.String())
	}
}
