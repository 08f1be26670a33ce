package registry

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pario-ai/dynroute/pkg/cache"
	"github.com/pario-ai/dynroute/pkg/metrics"
	"github.com/pario-ai/dynroute/pkg/models"
)

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "dynroute.request_id"
)

// handle runs the side effect, then answers from the cache gate.
func (r *Registry) handle(c *gin.Context, d *models.MappingDescriptor) {
	body, err := readBody(c)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, models.NewErrorResponse(http.StatusBadRequest, "invalid request body"))
		return
	}

	pathVars := make(map[string]string, len(c.Params))
	for _, p := range c.Params {
		pathVars[p.Key] = p.Value
	}

	if d.SideEffect != nil {
		d.SideEffect(pathVars, body, d)
	}

	payload, outcome := r.respond(c, d)
	r.metrics.RecordRequest(c.Request.Context(), c.Request.Method+" "+c.FullPath(), outcome)
	c.JSON(http.StatusOK, payload)
}

// readBody decodes an optional JSON body. Form bodies are left for parameter lookup.
func readBody(c *gin.Context) (any, error) {
	if c.Request.Body == nil || c.Request.Body == http.NoBody {
		return nil, nil
	}
	switch c.ContentType() {
	case gin.MIMEPOSTForm, gin.MIMEMultipartPOSTForm:
		return nil, nil
	}

	data, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}
	var body any
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, err
	}
	return body, nil
}

// lookupParam reads a request parameter from the query string, then the form body.
func lookupParam(c *gin.Context, name string) (string, bool) {
	if v, ok := c.GetQuery(name); ok {
		return v, true
	}
	return c.GetPostForm(name)
}

func (r *Registry) respond(c *gin.Context, d *models.MappingDescriptor) (models.ResponsePayload, metrics.Outcome) {
	if d.Caching == nil {
		return models.ResponsePayload{Counter: r.counter.Add(1)}, metrics.OutcomeUncached
	}

	log := r.logger.With(
		zap.String("request_id", c.GetString(requestIDKey)),
		zap.String("cache", d.Caching.CacheName),
	)

	key, ok := lookupParam(c, d.Caching.ParamName)
	if !ok {
		log.Debug("cache key parameter absent, bypassing cache", zap.String("param", d.Caching.ParamName))
		return models.ResponsePayload{Counter: r.counter.Add(1)}, metrics.OutcomeBypass
	}

	bucket := r.store.Bucket(d.Caching.CacheName)
	outcome := metrics.OutcomeMiss

	cached, hit, err := bucket.Get(key)
	switch {
	case errors.Is(err, cache.ErrTypeMismatch):
		log.Error("cached value has unexpected type, treating as miss", zap.String("key", key), zap.Error(err))
		outcome = metrics.OutcomeFault
	case err != nil:
		log.Error("cache lookup failed, treating as miss", zap.String("key", key), zap.Error(err))
	case hit:
		return cached, metrics.OutcomeHit
	}

	if r.coalesce {
		return r.computeShared(bucket, d.Caching.CacheName, key, log), outcome
	}
	return r.computeAndStore(bucket, key, log), outcome
}

// computeAndStore increments the counter and offers the payload to the bucket.
// Losing a put race is benign: this caller still receives its own payload.
func (r *Registry) computeAndStore(bucket cache.Bucket, key string, log *zap.Logger) models.ResponsePayload {
	p := models.ResponsePayload{Counter: r.counter.Add(1)}.WithKey(key)
	prev, err := bucket.PutIfAbsent(key, p)
	switch {
	case err != nil:
		log.Error("cache put failed", zap.String("key", key), zap.Error(err))
	case prev != nil:
		log.Debug("cache put lost race", zap.String("key", key),
			zap.Int64("stored_counter", prev.Counter), zap.Int64("counter", p.Counter))
	}
	return p
}

// computeShared runs at most one computation per bucket and key at a time and
// returns the payload that ended up in the bucket to every waiting caller.
func (r *Registry) computeShared(bucket cache.Bucket, cacheName, key string, log *zap.Logger) models.ResponsePayload {
	v, _, _ := r.group.Do(cacheName+"\x00"+key, func() (any, error) {
		// The caller's Get already counted this lookup.
		if cached, hit, err := bucket.Peek(key); err == nil && hit {
			return cached, nil
		}
		p := models.ResponsePayload{Counter: r.counter.Add(1)}.WithKey(key)
		prev, err := bucket.PutIfAbsent(key, p)
		switch {
		case err != nil:
			log.Error("cache put failed", zap.String("key", key), zap.Error(err))
		case prev != nil:
			return *prev, nil
		}
		return p, nil
	})
	return v.(models.ResponsePayload)
}

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func accessLog(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("request",
			zap.String("request_id", c.GetString(requestIDKey)),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("route", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}
