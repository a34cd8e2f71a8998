package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-bookshelf/pkg/bookshelf/config"
)

func newTestServer(t *testing.T, environment string) *HTTPServer {
	t.Helper()
	cfg := &config.ServerConfig{
		Port:        "0",
		Environment: environment,
		DatabaseURL: "memory",
		Local: config.LocalStorageConfig{
			UploadDir: t.TempDir(),
			URLPrefix: "/uploads",
		},
		Remote:        config.RemoteStorageConfig{Kind: config.RemoteMemory},
		MaxUploadSize: 1 << 20,
		JWTSecret:     "server-test",
	}
	require.NoError(t, cfg.Validate())

	comps, err := cfg.Build(context.Background(), nil)
	require.NoError(t, err)
	t.Cleanup(comps.Close)

	return NewHTTPServer(comps, cfg)
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, "testing")

	rr := httptest.NewRecorder()
	ts.Routes().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "testing", body["environment"])
}

func TestRoutesMounted(t *testing.T) {
	ts := newTestServer(t, "testing")
	routes := ts.Routes()

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodGet, "/api/books/", http.StatusOK},
		{http.MethodGet, "/api/books/pending", http.StatusUnauthorized},
		{http.MethodPost, "/api/books/upload", http.StatusUnauthorized},
		{http.MethodGet, "/uploads/pdfs/pdf-1-1.pdf", http.StatusNotFound},
		{http.MethodGet, "/nope", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rr := httptest.NewRecorder()
			routes.ServeHTTP(rr, httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, tt.want, rr.Code, rr.Body.String())
		})
	}
}

func TestDevelopmentCORS(t *testing.T) {
	req := httptest.NewRequest(http.MethodOptions, "/api/books/", nil)

	rr := httptest.NewRecorder()
	newTestServer(t, "development").Routes().ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rr.Header().Get("Access-Control-Allow-Headers"), "Range")
	assert.Contains(t, rr.Header().Get("Access-Control-Expose-Headers"), "Content-Range")

	rr = httptest.NewRecorder()
	newTestServer(t, "production").Routes().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
}
