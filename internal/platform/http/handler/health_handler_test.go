package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func setupRouter(h *HealthHandler) *gin.Engine {
	r := gin.New()
	r.Any("/healthz", h.Live)
	r.GET("/readyz", h.Ready)
	return r
}

func TestHealth_Live(t *testing.T) {
	t.Parallel()

	tests := []struct {
		method       string
		expectedCode int
		expectedBody string
	}{
		{http.MethodGet, http.StatusOK, `{"status":"ok"}`},
		{http.MethodHead, http.StatusOK, ""},
		{http.MethodOptions, http.StatusNoContent, ""},
		{http.MethodPost, http.StatusOK, `{"status":"ok"}`},
		{http.MethodPut, http.StatusOK, `{"status":"ok"}`},
		{http.MethodDelete, http.StatusOK, `{"status":"ok"}`},
	}

	router := setupRouter(NewHealthHandler(nil))

	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			t.Parallel()

			w := httptest.NewRecorder()
			req := httptest.NewRequest(tt.method, "/healthz", nil)

			router.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedCode, w.Code)
			assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
			if tt.expectedBody == "" {
				assert.Zero(t, w.Body.Len())
				return
			}
			assert.JSONEq(t, tt.expectedBody, w.Body.String())
		})
	}
}

func TestHealth_Ready(t *testing.T) {
	t.Parallel()

	ok := func(ctx context.Context) error { return nil }
	down := func(ctx context.Context) error { return errors.New("connection refused") }

	tests := []struct {
		name         string
		checks       map[string]CheckFunc
		expectedCode int
		expectedBody string
	}{
		{
			name:         "no checks",
			checks:       nil,
			expectedCode: http.StatusOK,
			expectedBody: `{"status":"ok","checks":{}}`,
		},
		{
			name:         "all healthy",
			checks:       map[string]CheckFunc{"db": ok, "redis": ok},
			expectedCode: http.StatusOK,
			expectedBody: `{"status":"ok","checks":{"db":"ok","redis":"ok"}}`,
		},
		{
			name:         "redis down",
			checks:       map[string]CheckFunc{"db": ok, "redis": down},
			expectedCode: http.StatusServiceUnavailable,
			expectedBody: `{"status":"unavailable","checks":{"db":"ok","redis":"connection refused"}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/readyz", nil)

			setupRouter(NewHealthHandler(tt.checks)).ServeHTTP(w, req)

			assert.Equal(t, tt.expectedCode, w.Code)
			assert.JSONEq(t, tt.expectedBody, w.Body.String())
		})
	}
}
