package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestServerHandler(t *testing.T) {
	srv := &Server{
		listenAddr: ":8080",
		serverName: "sunstead-test",
		bypassAuth: true,
	}
	handler := srv.setupHandler()

	t.Run("Healthz", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/healthz", nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "ok", w.Body.String())
	})

	t.Run("Security Headers", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/healthz", nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		resp := w.Result()
		assert.Equal(t, "sunstead-test", resp.Header.Get("Server"))
		assert.Equal(t, "max-age=63072000; includeSubDomains", resp.Header.Get("Strict-Transport-Security"))
		assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
		assert.Equal(t, "DENY", resp.Header.Get("X-Frame-Options"))
		assert.Equal(t, "strict-origin-when-cross-origin", resp.Header.Get("Referrer-Policy"))
	})

	t.Run("Unknown Route", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/nope", nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("Method Not Allowed", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/simulate", nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	})
}

func TestServerNameMiddleware(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	t.Run("Named", func(t *testing.T) {
		srv := &Server{serverName: "rev-7"}
		w := httptest.NewRecorder()
		srv.serverNameMiddleware(next).ServeHTTP(w, httptest.NewRequest("GET", "/", nil))

		assert.Equal(t, "rev-7", w.Header().Get("Server"))
	})

	t.Run("Unnamed", func(t *testing.T) {
		srv := &Server{}
		w := httptest.NewRecorder()
		srv.serverNameMiddleware(next).ServeHTTP(w, httptest.NewRequest("GET", "/", nil))

		assert.Empty(t, w.Header().Get("Server"))
	})
}
