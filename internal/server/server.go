// Package server provides the RouteForge host HTTP server. Core
// operational endpoints live on the root mux; the composed plugin
// route table is mounted under a configurable sub-path and can be
// swapped atomically on reload without dropping in-flight requests.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/HerbHall/routeforge/internal/registry"
	"github.com/HerbHall/routeforge/internal/router"
	"github.com/HerbHall/routeforge/internal/version"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// PluginSource reports per-plugin load state. Defined here
// (consumer-side) rather than importing the concrete registry type
// graph into every caller.
type PluginSource interface {
	States() []registry.State
}

// ReadinessChecker verifies that the server is ready to serve traffic.
// Returns nil if ready, an error describing why not otherwise.
type ReadinessChecker func(ctx context.Context) error

// Server is the RouteForge host HTTP server.
type Server struct {
	httpServer *http.Server
	plugins    PluginSource
	logger     *zap.Logger
	mux        *http.ServeMux
	ready      ReadinessChecker
	mountPath  string
	table      atomic.Pointer[router.Table]
}

// New creates a Server. mountPath is where the composed plugin table
// is served, e.g. "/ext"; the table itself is attached later via
// SwapTable so the server can come up before plugin loading finishes.
func New(addr, mountPath string, plugins PluginSource, logger *zap.Logger, ready ReadinessChecker) *Server {
	mux := http.NewServeMux()
	mountPath = strings.TrimSuffix(mountPath, "/")

	s := &Server{
		plugins:   plugins,
		logger:    logger,
		mux:       mux,
		ready:     ready,
		mountPath: mountPath,
	}

	s.registerRoutes()

	// Requests under the mount path go through the current table; the
	// pointer indirection is what makes reload swaps atomic.
	mux.Handle(mountPath+"/", http.StripPrefix(mountPath, http.HandlerFunc(s.servePluginRoutes)))

	// Middleware chain: outermost listed first.
	opsPaths := []string{"/healthz", "/readyz", "/metrics"}
	handler := Chain(mux,
		RecoveryMiddleware(logger),
		RequestIDMiddleware,
		LoggingMiddleware(logger, opsPaths),
		SecurityHeadersMiddleware,
		VersionHeaderMiddleware,
		RateLimitMiddleware(100, 200, opsPaths),
	)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// registerRoutes sets up all core routes.
func (s *Server) registerRoutes() {
	// Unversioned operational endpoints.
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
	s.mux.HandleFunc("GET /readyz", s.handleReadyz)
	s.mux.Handle("GET /metrics", promhttp.Handler())

	// Versioned API endpoints.
	s.mux.HandleFunc("GET /api/v1/health", s.handleHealth)
	s.mux.HandleFunc("GET /api/v1/plugins", s.handlePlugins)
}

// SwapTable atomically replaces the mounted plugin route table.
// In-flight requests finish on the table they started with; the old
// table's libraries stay mapped, so their handlers remain valid.
func (s *Server) SwapTable(t *router.Table) {
	s.table.Store(t)
	s.logger.Info("plugin route table swapped",
		zap.Int("routes", t.Len()),
		zap.String("mount_path", s.mountPath),
	)
}

// Table returns the currently mounted table, or nil before first load.
func (s *Server) Table() *router.Table {
	return s.table.Load()
}

// servePluginRoutes dispatches a request to the current table.
func (s *Server) servePluginRoutes(w http.ResponseWriter, r *http.Request) {
	t := s.table.Load()
	if t == nil {
		WriteProblem(w, Problem{
			Type:   ProblemTypeUnavailable,
			Title:  "Service Unavailable",
			Status: http.StatusServiceUnavailable,
			Detail: "plugin routes are not loaded yet",
		})
		return
	}
	t.ServeHTTP(w, r)
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("HTTP server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// handleHealthz is a liveness probe -- returns 200 if the process is running.
func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "alive"})
}

// handleReadyz checks readiness -- the server is ready once the initial
// plugin load produced a table and any extra checker passes.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if s.table.Load() == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"status": "not ready",
			"error":  "plugin routes not loaded",
		})
		return
	}

	if s.ready != nil {
		if err := s.ready(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
	}

	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ready"})
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status  string            `json:"status"`
	Service string            `json:"service"`
	Version map[string]string `json:"version"`
}

// PluginResponse describes one configured plugin and its load state.
type PluginResponse struct {
	Name       string `json:"name"`
	Version    string `json:"version"`
	Status     string `json:"status"`
	RouteCount int    `json:"route_count"`
	Error      string `json:"error,omitempty"`
}

// handleHealth returns detailed health information.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(HealthResponse{
		Status:  "ok",
		Service: "routeforge",
		Version: version.Map(),
	})
}

// handlePlugins returns every configured plugin with its load state,
// including disabled and failed ones, so operators can see why a route
// is absent.
func (s *Server) handlePlugins(w http.ResponseWriter, _ *http.Request) {
	states := s.plugins.States()
	info := make([]PluginResponse, 0, len(states))
	for _, st := range states {
		info = append(info, PluginResponse{
			Name:       st.Descriptor.Name,
			Version:    st.Descriptor.Version,
			Status:     string(st.Status),
			RouteCount: st.RouteCount,
			Error:      st.Error,
		})
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(info)
}
