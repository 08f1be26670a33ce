package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pario-ai/dynroute/pkg/config"
	"github.com/pario-ai/dynroute/pkg/metrics"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("DYNROUTE_TEST_DIR", dir)
	path := filepath.Join(dir, "dynroute.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestNewApp(t *testing.T) {
	path := writeConfig(t, `
log:
  level: error
cache:
  backend: sqlite
  db_path: ${DYNROUTE_TEST_DIR}/cache.db
endpoints:
  - pattern: /api
    method: GET
    caching:
      cache_name: test
      param_name: param1
`)
	a, err := newApp(path)
	require.NoError(t, err)
	defer a.Close()

	routes := a.registry.Mappings()
	require.Len(t, routes, 1)
	assert.Equal(t, "test", routes[0].CacheName)
}

func TestNewAppDeclaredEndpointFailure(t *testing.T) {
	path := writeConfig(t, `
log:
  level: error
cache:
  backend: sqlite
  db_path: ${DYNROUTE_TEST_DIR}/cache.db
endpoints:
  - pattern: /api
    method: GET
  - pattern: /api
    method: get
`)
	_, err := newApp(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "endpoints[1]")
}

func TestCloseAfterPartialInit(t *testing.T) {
	rec, err := metrics.New()
	require.NoError(t, err)
	a := &app{cfg: config.Default(), logger: zap.NewNop(), metrics: rec}
	assert.NotPanics(t, a.Close)
}
