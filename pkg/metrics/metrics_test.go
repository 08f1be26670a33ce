package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, r *Recorder) (int, string) {
	t.Helper()
	w := httptest.NewRecorder()
	r.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	return w.Code, w.Body.String()
}

func TestRecorderExposition(t *testing.T) {
	r, err := New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Shutdown(context.Background()) })

	ctx := context.Background()
	r.RecordRequest(ctx, "GET /api", OutcomeHit)
	r.RecordRequest(ctx, "GET /api", OutcomeMiss)
	r.RecordRouteChange(ctx, "map")

	code, body := scrape(t, r)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "dynroute_requests")
	assert.Contains(t, body, `outcome="hit"`)
	assert.Contains(t, body, `route="GET /api"`)
	assert.Contains(t, body, "dynroute_routes_changes")
	assert.Contains(t, body, `op="map"`)
}

func TestRecordersAreIsolated(t *testing.T) {
	a, err := New()
	require.NoError(t, err)
	b, err := New()
	require.NoError(t, err, "each recorder owns its registry")

	a.RecordRequest(context.Background(), "GET /a", OutcomeUncached)

	_, body := scrape(t, b)
	assert.NotContains(t, body, `route="GET /a"`)
}

func TestNoop(t *testing.T) {
	r := NewNoop()
	r.RecordRequest(context.Background(), "GET /api", OutcomeHit)
	r.RecordRouteChange(context.Background(), "clear")

	code, _ := scrape(t, r)
	assert.Equal(t, http.StatusNotFound, code)
	assert.NoError(t, r.Shutdown(context.Background()))
}
