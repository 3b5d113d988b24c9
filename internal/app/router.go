// Package app wires application components and startup helpers: the HTTP
// router (this file) and the readiness probes (readiness.go), mirroring
// the teacher's internal/app package shape (dependency injection and
// bootstrap glue kept out of cmd/*/main.go).
package app

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	httpserver "github.com/fairyhunter13/quantum-tasks/internal/adapter/httpserver"
	"github.com/fairyhunter13/quantum-tasks/internal/adapter/observability"
	"github.com/fairyhunter13/quantum-tasks/internal/config"
)

// ParseOrigins splits a comma-separated CORS_ORIGINS value into a slice,
// trimming spaces. An empty or "*" input allows all origins.
func ParseOrigins(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" || s == "*" {
		return []string{"*"}
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}

// BuildRouter constructs the HTTP handler for the three routes spec.md
// §4.6 names (POST /tasks, GET /tasks/{task_id}, GET /health), wrapped in
// the teacher's middleware stack (recover, request id, timeout, tracing,
// access log, Prometheus metrics, CORS, security headers).
func BuildRouter(cfg config.Config, srv *httpserver.Server) http.Handler {
	r := chi.NewRouter()
	r.Use(httpserver.Recoverer())
	r.Use(httpserver.RequestID())
	r.Use(httpserver.TimeoutMiddleware(30 * time.Second))
	r.Use(httpserver.TraceMiddleware)
	r.Use(httpserver.AccessLog())
	r.Use(observability.HTTPMetricsMiddleware)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   ParseOrigins(cfg.CORSOrigins),
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*", "X-Correlation-ID"},
		ExposedHeaders:   []string{"X-Request-Id", "X-Correlation-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Rate limit the mutating, queue-triggering endpoint (teacher's
	// /v1/upload, /v1/evaluate group; here the one analogue is submission).
	r.Group(func(wr chi.Router) {
		wr.Use(httprate.LimitByIP(cfg.RateLimitPerMin, 1*time.Minute))
		wr.Post("/tasks", srv.SubmitHandler())
	})
	r.Get("/tasks/{task_id}", srv.GetHandler())
	r.Get("/health", srv.HealthHandler())
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	return httpserver.SecurityHeaders(r)
}
