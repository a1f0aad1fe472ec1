package api

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/ssargent/tagtree/pkg/blockstore"
	"github.com/ssargent/tagtree/pkg/bptree"
)

// buildTestRouter mirrors the route table StartServer installs, without
// calling http.ListenAndServe, so routing can be exercised in-process.
func buildTestRouter(s *Server, metrics *Metrics) http.Handler {
	r := chi.NewRouter()
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(metrics.InstrumentAuthMiddleware(apiKeyMiddleware(s.config.APIKey)))
		r.Get("/health", metrics.InstrumentHandler("GET", "/api/v1/health", s.handleHealth))
		r.Get("/tags/{key}", metrics.InstrumentHandler("GET", "/api/v1/tags/{key}", s.handleGetTag))
		r.Get("/explain", metrics.InstrumentHandler("GET", "/api/v1/explain", s.handleExplain))
	})
	return r
}

func TestServerRoutesRequireAPIKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "api.tgt")
	engine, err := bptree.Open(path, blockstore.Options{})
	if err != nil {
		t.Fatalf("open engine: %v", err)
	}
	defer engine.Close()

	metrics := NewMetrics()
	s := NewServer(engine, ServerConfig{Port: 8080, APIKey: "secret"}, metrics)
	router := buildTestRouter(s, metrics)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without API key, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("X-API-Key", "secret")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with API key, got %d", rec.Code)
	}
}

func TestServerRoutesTagLookup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "api.tgt")
	engine, err := bptree.Open(path, blockstore.Options{})
	if err != nil {
		t.Fatalf("open engine: %v", err)
	}
	defer engine.Close()

	if err := engine.Tag("report.pdf", 99); err != nil {
		t.Fatalf("tag: %v", err)
	}

	metrics := NewMetrics()
	s := NewServer(engine, ServerConfig{Port: 8080, APIKey: "secret"}, metrics)
	router := buildTestRouter(s, metrics)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tags/report.pdf", nil)
	req.Header.Set("X-API-Key", "secret")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}
