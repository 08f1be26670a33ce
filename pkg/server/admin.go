package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/pario-ai/dynroute/pkg/models"
	"github.com/pario-ai/dynroute/pkg/registry"
	"github.com/pario-ai/dynroute/pkg/router"
)

func (s *Server) adminRoutes() *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())

	engine.GET("/routes", s.handleListRoutes)
	engine.POST("/routes", s.handleMapRoute)
	engine.DELETE("/routes", s.handleClearRoutes)
	engine.DELETE("/routes/one", s.handleRemoveRoute)
	engine.GET("/cache/stats", s.handleCacheStats)
	engine.DELETE("/cache", s.handleClearCache)
	engine.GET("/counter", s.handleCounter)
	if s.cfg.Metrics.Enabled {
		engine.GET(s.cfg.Metrics.Path, gin.WrapH(s.metrics.Handler()))
	}

	engine.NoRoute(func(c *gin.Context) {
		writeJSONError(c, http.StatusNotFound, "not found")
	})
	return engine
}

func (s *Server) handleListRoutes(c *gin.Context) {
	c.JSON(http.StatusOK, s.registry.Mappings())
}

func (s *Server) handleMapRoute(c *gin.Context) {
	var d models.MappingDescriptor
	if err := c.ShouldBindJSON(&d); err != nil {
		writeJSONError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	d.SideEffect = s.registry.LogSideEffect

	if err := s.registry.MapEndpoint(d); err != nil {
		writeJSONError(c, mapErrorStatus(err), err.Error())
		return
	}
	d.Method, _ = models.NormalizeMethod(d.Method)
	c.JSON(http.StatusCreated, d)
}

func (s *Server) handleClearRoutes(c *gin.Context) {
	s.registry.ClearMappings()
	c.Status(http.StatusNoContent)
}

func (s *Server) handleRemoveRoute(c *gin.Context) {
	method, pattern := c.Query("method"), c.Query("pattern")
	if method == "" || pattern == "" {
		writeJSONError(c, http.StatusBadRequest, "method and pattern are required")
		return
	}
	if err := s.registry.RemoveEndpoint(method, pattern); err != nil {
		writeJSONError(c, mapErrorStatus(err), err.Error())
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleCacheStats(c *gin.Context) {
	stats, err := s.store.Stats()
	if err != nil {
		s.logger.Error("cache stats", zap.Error(err))
		writeJSONError(c, http.StatusInternalServerError, "cache stats failed")
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) handleClearCache(c *gin.Context) {
	if err := s.store.Clear(); err != nil {
		s.logger.Error("cache clear", zap.Error(err))
		writeJSONError(c, http.StatusInternalServerError, "cache clear failed")
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleCounter(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"counter": s.registry.Counter()})
}

func mapErrorStatus(err error) int {
	switch {
	case errors.Is(err, registry.ErrInvalidDescriptor), errors.Is(err, models.ErrInvalidCaching):
		return http.StatusBadRequest
	case errors.Is(err, router.ErrDuplicateRoute), errors.Is(err, router.ErrRouteRejected):
		return http.StatusConflict
	case errors.Is(err, router.ErrRouteNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeJSONError(c *gin.Context, code int, message string) {
	c.AbortWithStatusJSON(code, models.NewErrorResponse(code, message))
}
