package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/pario-ai/dynroute/pkg/cache"
	"github.com/pario-ai/dynroute/pkg/config"
	"github.com/pario-ai/dynroute/pkg/metrics"
	"github.com/pario-ai/dynroute/pkg/registry"
)

// Server runs the dynamic endpoint listener and the admin API.
type Server struct {
	cfg      *config.Config
	registry *registry.Registry
	store    cache.Store
	metrics  *metrics.Recorder
	logger   *zap.Logger
	admin    *gin.Engine
}

// New creates a Server wired with all dependencies.
func New(cfg *config.Config, reg *registry.Registry, store cache.Store, rec *metrics.Recorder, logger *zap.Logger) *Server {
	if rec == nil {
		rec = metrics.NewNoop()
	}
	s := &Server{
		cfg:      cfg,
		registry: reg,
		store:    store,
		metrics:  rec,
		logger:   logger,
	}
	s.admin = s.adminRoutes()
	return s
}

// Handler serves the dynamic endpoints.
func (s *Server) Handler() http.Handler {
	return s.registry.Handler()
}

// AdminHandler serves the admin API.
func (s *Server) AdminHandler() http.Handler {
	return s.admin
}

// RegisterDeclared maps the endpoints listed in the config.
func (s *Server) RegisterDeclared() error {
	for i, d := range s.cfg.Endpoints {
		if d.SideEffect == nil {
			d.SideEffect = s.registry.LogSideEffect
		}
		if err := s.registry.MapEndpoint(d); err != nil {
			return fmt.Errorf("endpoints[%d]: %w", i, err)
		}
	}
	return nil
}

// ListenAndServe starts both listeners and shuts them down when ctx is done.
// The admin listener is skipped when admin_listen is empty.
func (s *Server) ListenAndServe(ctx context.Context) error {
	servers := []*http.Server{{
		Addr:    s.cfg.Listen,
		Handler: s.Handler(),
	}}
	if s.cfg.AdminListen != "" {
		servers = append(servers, &http.Server{
			Addr:    s.cfg.AdminListen,
			Handler: s.AdminHandler(),
		})
	}

	errCh := make(chan error, len(servers))
	for _, srv := range servers {
		go func(srv *http.Server) {
			s.logger.Info("listening", zap.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("listen %s: %w", srv.Addr, err)
			}
		}(srv)
	}

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, srv := range servers {
		if err := srv.Shutdown(shutCtx); err != nil && runErr == nil {
			runErr = err
		}
	}
	return runErr
}
