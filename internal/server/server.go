// Package server exposes the metricsd HTTP API.
//
// Endpoints:
//
//	POST /ingest           store one snapshot
//	GET  /metrics          recent records for a time window
//	GET  /metrics/summary  aggregate statistics for a time window
//	GET  /metrics/live     in-memory streaming aggregates per host
//	GET  /health           liveness probe (touches no backend)
//	POST /cleanup          out-of-band expiry with explicit retention
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/xtxerr/metricsd/config"
	"github.com/xtxerr/metricsd/internal/aggregate"
	"github.com/xtxerr/metricsd/internal/logging"
	"github.com/xtxerr/metricsd/internal/query"
	"github.com/xtxerr/metricsd/internal/storage"
)

// =============================================================================
// Router
// =============================================================================

// Router wires the HTTP handlers to their dependencies.
type Router struct {
	mux        *http.ServeMux
	log        *slog.Logger
	backend    storage.Backend
	engine     *query.Engine
	aggregates *aggregate.Manager
}

// NewRouter builds the router with all routes registered.
func NewRouter(backend storage.Backend, engine *query.Engine, aggregates *aggregate.Manager) *Router {
	r := &Router{
		mux:        http.NewServeMux(),
		log:        logging.Component("server"),
		backend:    backend,
		engine:     engine,
		aggregates: aggregates,
	}
	r.register()
	return r
}

func (r *Router) register() {
	r.mux.HandleFunc("POST /ingest", r.withRequestLog(r.handleIngest))
	r.mux.HandleFunc("GET /metrics", r.withRequestLog(r.handleMetrics))
	r.mux.HandleFunc("GET /metrics/summary", r.withRequestLog(r.handleSummary))
	r.mux.HandleFunc("GET /metrics/live", r.withRequestLog(r.handleLive))
	r.mux.HandleFunc("GET /health", r.handleHealth)
	r.mux.HandleFunc("POST /cleanup", r.withRequestLog(r.handleCleanup))
}

// ServeHTTP implements http.Handler.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// =============================================================================
// Server lifecycle
// =============================================================================

// Server runs the HTTP listener with graceful shutdown.
type Server struct {
	httpServer *http.Server
	log        *slog.Logger
}

// NewServer wraps the router in an http.Server bound to addr.
func NewServer(addr string, router *Router) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
		log: logging.Component("server"),
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully. In-flight
// requests get DefaultShutdownTimeout to complete.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", "addr", s.httpServer.Addr)
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.DefaultShutdownTimeout)
	defer cancel()

	s.log.Info("http server shutting down")
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.log.Warn("graceful shutdown incomplete", "error", err)
		return err
	}
	return nil
}
