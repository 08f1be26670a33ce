package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/pario-ai/dynroute/pkg/cache"
	"github.com/pario-ai/dynroute/pkg/cache/memory"
	cachesqlite "github.com/pario-ai/dynroute/pkg/cache/sqlite"
	"github.com/pario-ai/dynroute/pkg/config"
	"github.com/pario-ai/dynroute/pkg/logging"
	"github.com/pario-ai/dynroute/pkg/metrics"
	"github.com/pario-ai/dynroute/pkg/registry"
	"github.com/pario-ai/dynroute/pkg/server"
)

// app holds the components shared by serve and mcp.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	store    cache.Store
	metrics  *metrics.Recorder
	registry *registry.Registry
	server   *server.Server
}

func newApp(configPath string) (*app, error) {
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	a := &app{cfg: cfg, logger: logger, metrics: metrics.NewNoop()}
	if err := a.init(); err != nil {
		a.Close()
		return nil, err
	}

	logger.Info("dynroute initialized",
		zap.String("config", configPath),
		zap.String("cache_backend", cfg.Cache.Backend),
		zap.Int("declared_endpoints", len(cfg.Endpoints)),
	)
	return a, nil
}

// init builds the remaining components. On error, Close releases whatever was built.
func (a *app) init() error {
	var err error
	a.store, err = openStore(a.cfg)
	if err != nil {
		return fmt.Errorf("init cache: %w", err)
	}

	if a.cfg.Metrics.Enabled {
		rec, err := metrics.New()
		if err != nil {
			return fmt.Errorf("init metrics: %w", err)
		}
		a.metrics = rec
	}

	a.registry = registry.New(a.store, a.logger, a.metrics, registry.Options{CoalesceMisses: a.cfg.Cache.CoalesceMisses})
	a.server = server.New(a.cfg, a.registry, a.store, a.metrics, a.logger)
	return a.server.RegisterDeclared()
}

func openStore(cfg *config.Config) (cache.Store, error) {
	switch cfg.Cache.Backend {
	case config.BackendSQLite:
		c, err := cachesqlite.New(cfg.Cache.DBPath, cfg.Cache.TTL)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return memory.New(cfg.Cache.TTL, cfg.Cache.CleanupInterval), nil
	}
}

func (a *app) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.metrics.Shutdown(ctx); err != nil {
		a.logger.Warn("metrics shutdown", zap.Error(err))
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("cache close", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}
