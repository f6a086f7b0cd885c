package infrastructure

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPServer_Probes(t *testing.T) {
	routes := http.NewServeMux()
	routes.HandleFunc("/order-entry/v1/ping", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	routes.HandleFunc("/order-entry/v1/request-id", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(RequestIDFromContext(r.Context())))
	})
	routes.HandleFunc("/order-entry/v1/boom", func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})

	ready := true
	srv := NewHTTPServer(HTTPServerConfig{Addr: ":0"}, routes, map[string]ReadinessCheck{
		"redis": func(context.Context) error {
			if ready {
				return nil
			}
			return errors.New("down")
		},
	})

	serve := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec
	}

	rec := serve("/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	assert.Equal(t, http.StatusOK, serve("/readyz").Code)
	ready = false
	rec = serve("/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "redis not ready", rec.Body.String())

	assert.Equal(t, http.StatusTeapot, serve("/order-entry/v1/ping").Code)

	rec = serve("/order-entry/v1/request-id")
	assert.Equal(t, rec.Header().Get("X-Request-Id"), rec.Body.String())

	rec = serve("/order-entry/v1/boom")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal server error"}`, rec.Body.String())
}

func TestHTTPServer_KeepsRequestID(t *testing.T) {
	srv := NewHTTPServer(HTTPServerConfig{}, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-Id", "req-1")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, "req-1", rec.Header().Get("X-Request-Id"))
}
