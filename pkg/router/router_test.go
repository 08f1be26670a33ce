package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func serve(t *testing.T, r *Router, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, target, nil))
	return w
}

func echoParam(name string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.String(http.StatusOK, c.Param(name))
	}
}

func TestNormalizePattern(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"/api", "/api"},
		{"/users/{id}", "/users/:id"},
		{"/users/{id}/posts/{postId}", "/users/:id/posts/:postId"},
		{"/files/{path...}", "/files/*path"},
		{"/users/:id", "/users/:id"},
	}
	for _, tt := range tests {
		got, err := NormalizePattern(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}

	_, err := NormalizePattern("api")
	assert.ErrorIs(t, err, ErrRouteRejected)
	_, err = NormalizePattern("/users/{id")
	assert.ErrorIs(t, err, ErrRouteRejected)
}

func TestRegisterAndServe(t *testing.T) {
	r := New(zap.NewNop())
	h, err := r.Register("get", "/users/{id}", echoParam("id"))
	require.NoError(t, err)
	assert.Equal(t, Handle{Method: http.MethodGet, Pattern: "/users/:id"}, h)

	w := serve(t, r, http.MethodGet, "/users/42")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "42", w.Body.String())

	// Other methods are not routed.
	w = serve(t, r, http.MethodPost, "/users/42")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRegisterDuplicate(t *testing.T) {
	r := New(zap.NewNop())
	_, err := r.Register(http.MethodGet, "/api", echoParam("x"))
	require.NoError(t, err)

	_, err = r.Register(http.MethodGet, "/api", echoParam("x"))
	assert.ErrorIs(t, err, ErrDuplicateRoute)

	// Same pattern, different method is a distinct route.
	_, err = r.Register(http.MethodPost, "/api", echoParam("x"))
	assert.NoError(t, err)
}

func TestRegisterConflictRejected(t *testing.T) {
	r := New(zap.NewNop())
	_, err := r.Register(http.MethodGet, "/users/:id", echoParam("id"))
	require.NoError(t, err)

	_, err = r.Register(http.MethodGet, "/users/:name", echoParam("name"))
	assert.ErrorIs(t, err, ErrRouteRejected)

	// The table is unchanged and the original route still serves.
	assert.Len(t, r.Routes(), 1)
	w := serve(t, r, http.MethodGet, "/users/7")
	assert.Equal(t, "7", w.Body.String())
}

func TestRegisterInvalidMethod(t *testing.T) {
	r := New(zap.NewNop())
	_, err := r.Register("FETCH", "/api", echoParam("x"))
	assert.ErrorIs(t, err, ErrRouteRejected)
}

func TestUnregister(t *testing.T) {
	r := New(zap.NewNop())
	h, err := r.Register(http.MethodGet, "/api", echoParam("x"))
	require.NoError(t, err)
	_, err = r.Register(http.MethodGet, "/other", echoParam("x"))
	require.NoError(t, err)

	require.NoError(t, r.Unregister(h))
	assert.Equal(t, http.StatusNotFound, serve(t, r, http.MethodGet, "/api").Code)
	assert.Equal(t, http.StatusOK, serve(t, r, http.MethodGet, "/other").Code)

	assert.ErrorIs(t, r.Unregister(h), ErrRouteNotFound)
}

func TestLookup(t *testing.T) {
	r := New(zap.NewNop())
	_, err := r.Register(http.MethodGet, "/users/:id", echoParam("id"))
	require.NoError(t, err)

	h, ok := r.Lookup("get", "/users/{id}")
	assert.True(t, ok)
	assert.Equal(t, "GET /users/:id", h.String())

	_, ok = r.Lookup(http.MethodGet, "/nope")
	assert.False(t, ok)
}

func TestClearAndRoutes(t *testing.T) {
	r := New(zap.NewNop())
	_, _ = r.Register(http.MethodPost, "/b", echoParam("x"))
	_, _ = r.Register(http.MethodGet, "/b", echoParam("x"))
	_, _ = r.Register(http.MethodGet, "/a", echoParam("x"))

	assert.Equal(t, []Handle{
		{Method: http.MethodGet, Pattern: "/a"},
		{Method: http.MethodGet, Pattern: "/b"},
		{Method: http.MethodPost, Pattern: "/b"},
	}, r.Routes())

	r.Clear()
	assert.Empty(t, r.Routes())
	w := serve(t, r, http.MethodGet, "/a")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":{"message":"route not found","type":"dynroute_error","code":404}}`, w.Body.String())
}

func TestPanicRecovered(t *testing.T) {
	r := New(zap.NewNop())
	_, err := r.Register(http.MethodGet, "/boom", func(c *gin.Context) { panic("boom") })
	require.NoError(t, err)

	w := serve(t, r, http.MethodGet, "/boom")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestMiddlewareRuns(t *testing.T) {
	r := New(zap.NewNop(), func(c *gin.Context) {
		c.Header("X-Seen", "1")
		c.Next()
	})
	_, err := r.Register(http.MethodGet, "/api", echoParam("x"))
	require.NoError(t, err)

	w := serve(t, r, http.MethodGet, "/api")
	assert.Equal(t, "1", w.Header().Get("X-Seen"))
}
