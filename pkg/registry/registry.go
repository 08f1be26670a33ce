// Package registry installs endpoints on a live router at runtime and answers
// their requests through a per-endpoint response cache gate.
package registry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/pario-ai/dynroute/pkg/cache"
	"github.com/pario-ai/dynroute/pkg/metrics"
	"github.com/pario-ai/dynroute/pkg/models"
	"github.com/pario-ai/dynroute/pkg/router"
)

// ErrInvalidDescriptor is returned by MapEndpoint for descriptors that cannot be routed.
var ErrInvalidDescriptor = errors.New("invalid mapping descriptor")

// Options tunes a Registry.
type Options struct {
	// CoalesceMisses makes concurrent misses for the same bucket and key
	// share a single computation, so every caller observes the stored payload.
	CoalesceMisses bool
}

// Registry owns the dynamic routes, the shared counter and the cache gate.
type Registry struct {
	router   *router.Router
	store    cache.Store
	logger   *zap.Logger
	metrics  *metrics.Recorder
	coalesce bool

	counter atomic.Int64
	group   singleflight.Group

	mu          sync.Mutex
	descriptors map[router.Handle]*models.MappingDescriptor
}

// New creates a Registry serving routes from its own router.
func New(store cache.Store, logger *zap.Logger, rec *metrics.Recorder, opts Options) *Registry {
	if rec == nil {
		rec = metrics.NewNoop()
	}
	r := &Registry{
		store:       store,
		logger:      logger,
		metrics:     rec,
		coalesce:    opts.CoalesceMisses,
		descriptors: make(map[router.Handle]*models.MappingDescriptor),
	}
	r.router = router.New(logger, requestID(), accessLog(logger))
	return r
}

// Handler serves the dynamic routes.
func (r *Registry) Handler() http.Handler {
	return r.router
}

// Counter returns the current value of the shared counter.
func (r *Registry) Counter() int64 {
	return r.counter.Load()
}

func validate(d *models.MappingDescriptor) error {
	if strings.TrimSpace(d.Pattern) == "" {
		return fmt.Errorf("%w: pattern is required", ErrInvalidDescriptor)
	}
	m, ok := models.NormalizeMethod(d.Method)
	if !ok {
		return fmt.Errorf("%w: unsupported method %q", ErrInvalidDescriptor, d.Method)
	}
	d.Method = m
	if d.Caching != nil {
		if err := d.Caching.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// MapEndpoint installs a JSON route for d. The descriptor is copied; later
// changes by the caller do not affect the installed route.
func (r *Registry) MapEndpoint(d models.MappingDescriptor) error {
	if d.Caching != nil {
		c := *d.Caching
		d.Caching = &c
	}
	if err := validate(&d); err != nil {
		return fmt.Errorf("map endpoint %s %s: %w", d.Method, d.Pattern, err)
	}
	desc := &d

	r.mu.Lock()
	defer r.mu.Unlock()

	h, err := r.router.Register(desc.Method, desc.Pattern, func(c *gin.Context) {
		r.handle(c, desc)
	})
	if err != nil {
		return fmt.Errorf("map endpoint %s %s: %w", desc.Method, desc.Pattern, err)
	}
	r.descriptors[h] = desc

	fields := []zap.Field{zap.String("route", h.String())}
	if desc.Caching != nil {
		fields = append(fields,
			zap.String("cache", desc.Caching.CacheName),
			zap.String("param", desc.Caching.ParamName))
	}
	r.logger.Info("endpoint mapped", fields...)
	r.metrics.RecordRouteChange(context.Background(), "map")
	return nil
}

// RemoveEndpoint uninstalls a single route. The shared counter is untouched.
func (r *Registry) RemoveEndpoint(method, pattern string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	h, ok := r.router.Lookup(method, pattern)
	if !ok {
		return fmt.Errorf("remove endpoint %s %s: %w", method, pattern, router.ErrRouteNotFound)
	}
	if err := r.router.Unregister(h); err != nil {
		return fmt.Errorf("remove endpoint %s: %w", h, err)
	}
	delete(r.descriptors, h)

	r.logger.Info("endpoint removed", zap.String("route", h.String()))
	r.metrics.RecordRouteChange(context.Background(), "remove")
	return nil
}

// ClearMappings resets the shared counter and removes every dynamic route.
// Cached payloads stay in the store.
func (r *Registry) ClearMappings() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.counter.Store(0)
	r.router.Clear()
	n := len(r.descriptors)
	r.descriptors = make(map[router.Handle]*models.MappingDescriptor)

	r.logger.Info("mappings cleared", zap.Int("routes", n))
	r.metrics.RecordRouteChange(context.Background(), "clear")
}

// Mappings lists the installed routes sorted by pattern, then method.
func (r *Registry) Mappings() []models.RouteInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	handles := r.router.Routes()
	out := make([]models.RouteInfo, 0, len(handles))
	for _, h := range handles {
		info := models.RouteInfo{Method: h.Method, Pattern: h.Pattern}
		if d := r.descriptors[h]; d != nil && d.Caching != nil {
			info.CacheName = d.Caching.CacheName
			info.ParamName = d.Caching.ParamName
		}
		out = append(out, info)
	}
	return out
}

// LogSideEffect is a SideEffect that records the call at debug level. It is
// used for endpoints declared in config or through the admin surfaces.
func (r *Registry) LogSideEffect(pathVars map[string]string, body any, d *models.MappingDescriptor) {
	r.logger.Debug("endpoint invoked",
		zap.String("method", d.Method),
		zap.String("pattern", d.Pattern),
		zap.Any("path_vars", pathVars),
		zap.Bool("has_body", body != nil),
	)
}

// Stats returns the cache store's statistics.
func (r *Registry) Stats() (models.CacheStats, error) {
	return r.store.Stats()
}
