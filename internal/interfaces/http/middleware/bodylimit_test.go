package middleware

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestBodyLimit(t *testing.T) {
	readAll := func(c *gin.Context) {
		if _, err := io.ReadAll(c.Request.Body); err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				c.String(http.StatusRequestEntityTooLarge, "streamed body too large")
				return
			}
			c.String(http.StatusBadRequest, err.Error())
			return
		}
		c.String(http.StatusOK, "ok")
	}

	tests := []struct {
		name          string
		limit         int64
		body          string
		contentLength int64
		wantStatus    int
		wantBody      string
	}{
		{name: "within limit", limit: 64, body: `{"source_url":"x"}`, contentLength: 18, wantStatus: http.StatusOK},
		{name: "declared length over limit", limit: 16, body: strings.Repeat("a", 32), contentLength: 32,
			wantStatus: http.StatusRequestEntityTooLarge, wantBody: "ERR_REQUEST_TOO_LARGE"},
		{name: "streamed body over limit", limit: 16, body: strings.Repeat("a", 32), contentLength: -1,
			wantStatus: http.StatusRequestEntityTooLarge, wantBody: "streamed body too large"},
		{name: "limit disabled", limit: 0, body: strings.Repeat("a", 4096), contentLength: 4096, wantStatus: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := gin.New()
			router.Use(BodyLimit(tt.limit))
			router.POST("/api/v1/listings/ingest", readAll)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/listings/ingest", strings.NewReader(tt.body))
			req.ContentLength = tt.contentLength
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantBody != "" {
				assert.Contains(t, w.Body.String(), tt.wantBody)
			}
		})
	}

	t.Run("bodiless GET passes", func(t *testing.T) {
		router := gin.New()
		router.Use(BodyLimit(1))
		router.GET("/api/v1/products", func(c *gin.Context) { c.Status(http.StatusOK) })

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/products", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	})
}
