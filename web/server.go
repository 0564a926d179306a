// Package web exposes the coordinator over HTTP: module inspection and
// lifecycle control, health probes, runtime info, and Prometheus metrics.
package web

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/heptiolabs/healthcheck"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/castellan/castellan/config"
	"github.com/castellan/castellan/core"
	"github.com/castellan/castellan/manager"
)

// Server is the admin HTTP server wrapping a coordinator.
type Server struct {
	mgr    *manager.Manager
	cfg    config.Root
	logger *slog.Logger
	engine *gin.Engine
	srv    *http.Server
	health healthcheck.Handler
}

// NewServer builds the engine, routes, and health checks. The registry may
// be nil to disable the metrics endpoint regardless of configuration.
func NewServer(mgr *manager.Manager, cfg config.Root, logger *slog.Logger, reg *prometheus.Registry) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(RequestID())
	engine.Use(RecoveryProblem(logger))
	engine.Use(AccessLog(logger, "/live", "/ready", cfg.Metrics.Path))

	s := &Server{
		mgr:    mgr,
		cfg:    cfg,
		logger: logger,
		engine: engine,
		health: newHealth(mgr),
	}

	s.registerRoutes(reg)

	s.srv = &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	return s
}

func (s *Server) registerRoutes(reg *prometheus.Registry) {
	s.engine.GET("/live", gin.WrapF(s.health.LiveEndpoint))
	s.engine.GET("/ready", gin.WrapF(s.health.ReadyEndpoint))
	s.engine.GET("/info", s.handleInfo)

	if reg != nil && s.cfg.Metrics.Enabled {
		s.engine.GET(s.cfg.Metrics.Path, gin.WrapH(
			promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	}

	api := s.engine.Group("/api/v1")
	{
		api.GET("/modules", s.handleList)
		api.GET("/modules/:name", s.handleGet)
		api.POST("/modules/:name/load", s.handleLoad)
		api.POST("/modules/:name/start", s.handleStart)
		api.POST("/modules/:name/stop", s.handleStop)
		api.POST("/modules/:name/bootstrap", s.handleBootstrap)
		api.POST("/modules/:name/enable", s.handleEnable)
		api.POST("/modules/:name/disable", s.handleDisable)
		api.DELETE("/modules/:name", s.handleUnload)
		api.PUT("/modules/:name/ignore", s.handleIgnore)
		api.DELETE("/modules/:name/ignore", s.handleUnignore)
		api.POST("/refresh", s.handleRefresh)
	}
}

// Engine exposes the router for tests and route composition.
func (s *Server) Engine() *gin.Engine { return s.engine }

// Start begins serving in the background. Listen errors other than a
// clean shutdown are logged.
func (s *Server) Start(ctx context.Context) {
	go func() {
		s.logger.Info("http server starting", "addr", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("http server error", "error", err)
		}
	}()
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

// newHealth wires the probes: liveness is a goroutine-count guard,
// readiness requires every live module to be out of a transitional state
// (anything loaded long enough to start has either started, stopped, or
// been disabled on purpose).
func newHealth(mgr *manager.Manager) healthcheck.Handler {
	h := healthcheck.NewHandler()
	h.AddLivenessCheck("goroutine-count", healthcheck.GoroutineCountCheck(500))
	h.AddReadinessCheck("modules", func() error {
		for name, state := range mgr.States() {
			if state == core.StateDiscovered || state == core.StateInitialized {
				return fmt.Errorf("module %s still %s", name, state)
			}
		}
		return nil
	})
	return h
}
