// Package api serves the local translation API consumed by the browser UI.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/translatd/translatd/internal/config"
	log "github.com/translatd/translatd/internal/logging"
	"github.com/translatd/translatd/internal/preset"
	"github.com/translatd/translatd/internal/provider"
	"github.com/translatd/translatd/internal/stats"
)

// Server wires the HTTP surface to the provider registry, the preset tracker,
// and the stats recorder.
type Server struct {
	cfg      *config.Config
	engine   *gin.Engine
	registry *provider.Registry
	tracker  *preset.Tracker
	recorder *stats.Recorder
}

func NewServer(cfg *config.Config, registry *provider.Registry, tracker *preset.Tracker, recorder *stats.Recorder) *Server {
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	s := &Server{
		cfg:      cfg,
		engine:   gin.New(),
		registry: registry,
		tracker:  tracker,
		recorder: recorder,
	}
	s.setupMiddleware()
	s.registerRoutes()
	return s
}

// setupMiddleware applies the global middleware stack in order: logging,
// recovery, request IDs, body cap, CORS.
func (s *Server) setupMiddleware() {
	s.engine.Use(log.GinLogrusLogger())
	s.engine.Use(log.GinLogrusRecovery())
	s.engine.Use(requestIDMiddleware())
	s.engine.Use(bodyLimitMiddleware(s.cfg.MaxBodyBytes))
	s.engine.Use(corsMiddleware())
}

func (s *Server) registerRoutes() {
	s.engine.GET("/health", s.handleHealth)

	api := s.engine.Group("/api")
	api.GET("/providers", s.handleProviders)
	api.GET("/models", s.handleModels)
	api.POST("/translate", s.handleTranslate)
	api.GET("/stats", s.handleStats)
}

// Handler exposes the routed engine, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled, then drains in-flight requests.
// Write timeouts stay disabled: translation calls carry their own deadline.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr(),
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("listening on http://%s", s.cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
