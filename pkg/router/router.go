package router

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/pario-ai/dynroute/pkg/models"
)

// Sentinel errors for route table operations.
var (
	ErrDuplicateRoute = errors.New("route already registered")
	ErrRouteRejected  = errors.New("route rejected")
	ErrRouteNotFound  = errors.New("route not registered")
)

func init() {
	gin.SetMode(gin.ReleaseMode)
}

// Handle identifies an installed route. Pattern is in gin syntax.
type Handle struct {
	Method  string
	Pattern string
}

func (h Handle) String() string {
	return h.Method + " " + h.Pattern
}

// Router is a live route table served by a gin engine. gin cannot remove
// routes, so every change builds a fresh engine and swaps it in; requests
// already dispatched finish on the engine they started on.
type Router struct {
	logger     *zap.Logger
	middleware []gin.HandlerFunc

	mu     sync.Mutex
	routes map[Handle]gin.HandlerFunc
	engine atomic.Pointer[gin.Engine]
}

// New creates an empty Router. middleware runs before every route handler.
func New(logger *zap.Logger, middleware ...gin.HandlerFunc) *Router {
	r := &Router{
		logger:     logger,
		middleware: middleware,
		routes:     make(map[Handle]gin.HandlerFunc),
	}
	engine, _ := r.build(r.routes)
	r.engine.Store(engine)
	return r
}

var bracePattern = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)(\.\.\.)?\}`)

// NormalizePattern converts brace templates (/users/{id}, /files/{path...})
// to gin syntax (/users/:id, /files/*path).
func NormalizePattern(pattern string) (string, error) {
	pattern = strings.TrimSpace(pattern)
	if !strings.HasPrefix(pattern, "/") {
		return "", fmt.Errorf("%w: pattern %q must begin with /", ErrRouteRejected, pattern)
	}
	out := bracePattern.ReplaceAllStringFunc(pattern, func(m string) string {
		sub := bracePattern.FindStringSubmatch(m)
		if sub[2] != "" {
			return "*" + sub[1]
		}
		return ":" + sub[1]
	})
	if strings.ContainsAny(out, "{}") {
		return "", fmt.Errorf("%w: malformed template in %q", ErrRouteRejected, pattern)
	}
	return out, nil
}

// Register installs handler for method and pattern.
func (r *Router) Register(method, pattern string, handler gin.HandlerFunc) (Handle, error) {
	m, ok := models.NormalizeMethod(method)
	if !ok {
		return Handle{}, fmt.Errorf("%w: unsupported method %q", ErrRouteRejected, method)
	}
	p, err := NormalizePattern(pattern)
	if err != nil {
		return Handle{}, err
	}
	h := Handle{Method: m, Pattern: p}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.routes[h]; exists {
		return Handle{}, fmt.Errorf("%w: %s", ErrDuplicateRoute, h)
	}

	next := make(map[Handle]gin.HandlerFunc, len(r.routes)+1)
	for k, v := range r.routes {
		next[k] = v
	}
	next[h] = handler

	engine, err := r.build(next)
	if err != nil {
		return Handle{}, err
	}
	r.routes = next
	r.engine.Store(engine)
	return h, nil
}

// Unregister removes the route identified by h.
func (r *Router) Unregister(h Handle) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.routes[h]; !exists {
		return fmt.Errorf("%w: %s", ErrRouteNotFound, h)
	}

	next := make(map[Handle]gin.HandlerFunc, len(r.routes))
	for k, v := range r.routes {
		if k != h {
			next[k] = v
		}
	}

	// Removing a route from a valid table cannot introduce a conflict.
	engine, err := r.build(next)
	if err != nil {
		return err
	}
	r.routes = next
	r.engine.Store(engine)
	return nil
}

// Lookup returns the handle for method and pattern if it is installed.
func (r *Router) Lookup(method, pattern string) (Handle, bool) {
	m, _ := models.NormalizeMethod(method)
	p, err := NormalizePattern(pattern)
	if err != nil {
		return Handle{}, false
	}
	h := Handle{Method: m, Pattern: p}

	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.routes[h]
	return h, ok
}

// Clear removes every route.
func (r *Router) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.routes = make(map[Handle]gin.HandlerFunc)
	engine, _ := r.build(r.routes)
	r.engine.Store(engine)
}

// Routes returns the installed handles sorted by pattern, then method.
func (r *Router) Routes() []Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	return sortedHandles(r.routes)
}

// ServeHTTP implements http.Handler.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.engine.Load().ServeHTTP(w, req)
}

func (r *Router) build(routes map[Handle]gin.HandlerFunc) (engine *gin.Engine, err error) {
	engine = gin.New()
	engine.Use(r.recovery())
	engine.Use(r.middleware...)
	engine.NoRoute(func(c *gin.Context) {
		c.AbortWithStatusJSON(http.StatusNotFound, models.NewErrorResponse(http.StatusNotFound, "route not found"))
	})

	// gin panics on conflicting wildcards and malformed paths.
	var current Handle
	defer func() {
		if p := recover(); p != nil {
			engine = nil
			err = fmt.Errorf("%w: %s: %v", ErrRouteRejected, current, p)
		}
	}()

	for _, h := range sortedHandles(routes) {
		current = h
		engine.Handle(h.Method, h.Pattern, routes[h])
	}
	return engine, nil
}

func sortedHandles(routes map[Handle]gin.HandlerFunc) []Handle {
	out := make([]Handle, 0, len(routes))
	for h := range routes {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Pattern != out[j].Pattern {
			return out[i].Pattern < out[j].Pattern
		}
		return out[i].Method < out[j].Method
	})
	return out
}

func (r *Router) recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if p := recover(); p != nil {
				r.logger.Error("handler panic",
					zap.String("method", c.Request.Method),
					zap.String("path", c.Request.URL.Path),
					zap.Any("panic", p),
				)
				c.AbortWithStatusJSON(http.StatusInternalServerError,
					models.NewErrorResponse(http.StatusInternalServerError, "internal error"))
			}
		}()
		c.Next()
	}
}
