// Package adminapi serves the HTTP introspection surface oxidicomd
// exposes alongside its DICOM listener: health/readiness probes,
// Prometheus metrics, and read-only series progress lookups backed by
// statuscache. Grounded on the teacher connector's
// cmd/server/main.go router assembly (chi + chi/middleware + cors +
// promhttp, in the same order) and internal/handlers/health.go (the
// health/ready response shapes), adapted from a database-backed health
// check to one that also reports the audit database and status cache.
package adminapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/otcheredev/oxidicom-go/internal/config"
	"github.com/otcheredev/oxidicom-go/internal/middleware"
	"github.com/otcheredev/oxidicom-go/internal/statuscache"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

// Server is the admin HTTP surface, wrapping the *http.Server that
// serves the router built by New.
type Server struct {
	httpServer *http.Server
}

// Deps bundles the state adminapi handlers read. Any field may be
// nil: a nil auditDB means the audit subsystem is disabled and is
// reported as such rather than unhealthy, and a nil status means
// series lookups answer 503 (status introspection disabled).
type Deps struct {
	AuditDB *gorm.DB
	Status  *statuscache.Store
}

// New builds the admin router and binds it to cfg.Admin.ListenAddr.
// Call Start to begin serving.
func New(cfg config.AdminConfig, corsCfg config.CORSConfig, metricsEnabled bool, deps Deps) *Server {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Recovery)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Compress(5))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsCfg.AllowedOrigins,
		AllowedMethods:   corsCfg.AllowedMethods,
		AllowedHeaders:   corsCfg.AllowedHeaders,
		ExposedHeaders:   []string{"Content-Length", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	h := &handler{deps: deps}

	r.Get("/health", h.health)
	r.Get("/ready", h.ready)

	if metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/series/{pacsName}/{seriesUID}", h.getSeries)
	})

	return &Server{
		httpServer: &http.Server{
			Addr:         cfg.ListenAddr,
			Handler:      r,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
	}
}

// Start begins serving in the background. Errors other than a clean
// shutdown are sent to errs.
func (s *Server) Start(errs chan<- error) {
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errs <- fmt.Errorf("admin server: %w", err)
		}
	}()
}

// Shutdown gracefully stops the admin server within the given
// timeout.
func (s *Server) Shutdown(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}
