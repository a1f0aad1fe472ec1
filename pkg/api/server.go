/*
tagtree inspection API

This is a read-only inspection API for a tagtree container: it exposes
tag lookups and structural diagnostics over an already-open
bptree.Engine. It never mutates the container.

Version: 1.0.0
Host: localhost:8080
BasePath: /api/v1

SecurityDefinitions:
  - ApiKeyAuth:
    type: apiKey
    in: header
    name: X-API-Key

swagger:meta
*/
package api

import (
	"fmt"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/ssargent/tagtree/pkg/bptree"
	httpSwagger "github.com/swaggo/http-swagger"
)

// StartServer starts the HTTP inspection server with all routes
// configured, against the already-open engine.
func StartServer(engine *bptree.Engine, config ServerConfig) error {
	metrics := NewMetrics()

	server := NewServer(engine, config, metrics)

	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Prometheus metrics endpoint (unprotected for scraping)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(metrics.InstrumentAuthMiddleware(apiKeyMiddleware(config.APIKey)))

		r.Get("/health", metrics.InstrumentHandler("GET", "/api/v1/health", server.handleHealth))
		r.Get("/tags/{key}", metrics.InstrumentHandler("GET", "/api/v1/tags/{key}", server.handleGetTag))
		r.Get("/tags/{key}/sub/{subkey}", metrics.InstrumentHandler("GET", "/api/v1/tags/{key}/sub/{subkey}", server.handleGetSubTag))
		r.Get("/explain", metrics.InstrumentHandler("GET", "/api/v1/explain", server.handleExplain))
	})

	// Swagger documentation (unprotected)
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL(fmt.Sprintf("http://localhost:%d/swagger/doc.json", config.Port)),
	))

	addr := fmt.Sprintf(":%d", config.Port)
	fmt.Printf("Starting tagtree inspection API server on %s\n", addr)
	fmt.Printf("Metrics available at: http://localhost:%d/metrics\n", config.Port)
	log.Fatal(http.ListenAndServe(addr, r))

	return nil
}
