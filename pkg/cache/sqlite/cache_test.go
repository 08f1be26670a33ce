package sqlite

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pario-ai/dynroute/pkg/cache"
	"github.com/pario-ai/dynroute/pkg/models"
)

func newTestCache(t *testing.T, ttl time.Duration) *Cache {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "cache_test.db")
	c, err := New(dbPath, ttl)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func payload(counter int64, key string) models.ResponsePayload {
	return models.ResponsePayload{Counter: counter}.WithKey(key)
}

func TestPutIfAbsentAndGet(t *testing.T) {
	c := newTestCache(t, time.Hour)
	b := c.Bucket("test")

	prev, err := b.PutIfAbsent("k", payload(1, "k"))
	require.NoError(t, err)
	assert.Nil(t, prev)

	prev, err = b.PutIfAbsent("k", payload(2, "k"))
	require.NoError(t, err)
	require.NotNil(t, prev)
	assert.Equal(t, int64(1), prev.Counter)

	got, ok, err := b.Get("k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, payload(1, "k"), got)

	// Miss for a different bucket
	_, ok, err = c.Bucket("other").Get("k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTTLExpiration(t *testing.T) {
	c := newTestCache(t, time.Second)
	b := c.Bucket("test")

	_, err := b.PutIfAbsent("k", payload(1, "k"))
	require.NoError(t, err)

	time.Sleep(1100 * time.Millisecond)

	_, ok, err := b.Get("k")
	require.NoError(t, err)
	assert.False(t, ok, "expected cache miss after TTL expiration")

	prev, err := b.PutIfAbsent("k", payload(2, "k"))
	require.NoError(t, err)
	assert.Nil(t, prev, "expired entry should be replaced")

	got, ok, err := b.Get("k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(2), got.Counter)
}

func TestTypeMismatch(t *testing.T) {
	c := newTestCache(t, time.Hour)
	b := c.Bucket("test").(*Bucket)

	foreign := map[string]string{
		"string":   `"not a payload"`,
		"null":     `null`,
		"empty":    `{}`,
		"null key": `{"counter":1,"key":null}`,
		"no key":   `{"counter":1}`,
		"extra":    `{"counter":1,"key":"k","x":1}`,
	}
	for name, raw := range foreign {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, b.putRaw(name, []byte(raw)))

			_, ok, err := b.Get(name)
			assert.False(t, ok)
			assert.ErrorIs(t, err, cache.ErrTypeMismatch)

			_, err = b.PutIfAbsent(name, payload(2, name))
			assert.ErrorIs(t, err, cache.ErrTypeMismatch)
		})
	}

	stats, err := c.Stats()
	require.NoError(t, err)
	assert.Equal(t, int64(len(foreign)), stats.TypeFaults)
	assert.Zero(t, stats.Hits)
}

func TestPeekDoesNotCount(t *testing.T) {
	c := newTestCache(t, time.Hour)
	b := c.Bucket("test").(*Bucket)
	require.NoError(t, b.putRaw("bad", []byte(`{}`)))

	_, ok, err := b.Peek("missing")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = b.PutIfAbsent("k", payload(1, "k"))
	require.NoError(t, err)
	got, ok, err := b.Peek("k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(1), got.Counter)

	_, _, err = b.Peek("bad")
	assert.ErrorIs(t, err, cache.ErrTypeMismatch)

	stats, err := c.Stats()
	require.NoError(t, err)
	assert.Equal(t, models.CacheStats{Buckets: 1, Entries: 2}, stats)
}

func TestSubSecondTTLRoundsUp(t *testing.T) {
	c := newTestCache(t, 500*time.Millisecond)
	b := c.Bucket("test")
	_, err := b.PutIfAbsent("k", payload(1, "k"))
	require.NoError(t, err)

	var ttl int64
	require.NoError(t, c.db.QueryRow(`SELECT ttl_seconds FROM cache_entries WHERE cache_key = 'k'`).Scan(&ttl))
	assert.Equal(t, int64(1), ttl)

	time.Sleep(1100 * time.Millisecond)
	_, ok, err := b.Get("k")
	require.NoError(t, err)
	assert.False(t, ok, "sub-second TTL must still expire")
}

func TestConcurrentPutIfAbsent(t *testing.T) {
	c := newTestCache(t, time.Hour)
	b := c.Bucket("race")

	var wg sync.WaitGroup
	var mu sync.Mutex
	stored := 0
	for i := 1; i <= 8; i++ {
		wg.Add(1)
		go func(n int64) {
			defer wg.Done()
			prev, err := b.PutIfAbsent("k", payload(n, "k"))
			if err != nil {
				t.Error(err)
				return
			}
			if prev == nil {
				mu.Lock()
				stored++
				mu.Unlock()
			}
		}(int64(i))
	}
	wg.Wait()

	assert.Equal(t, 1, stored, "exactly one writer should win")
}

func TestStats(t *testing.T) {
	c := newTestCache(t, time.Hour)

	_, _ = c.Bucket("a").PutIfAbsent("h1", payload(1, "h1"))
	_, _ = c.Bucket("b").PutIfAbsent("h1", payload(2, "h1"))
	_, _, _ = c.Bucket("a").Get("h1") // hit
	_, _, _ = c.Bucket("a").Get("h2") // miss

	stats, err := c.Stats()
	require.NoError(t, err)
	assert.Equal(t, models.CacheStats{Buckets: 2, Entries: 2, Hits: 1, Misses: 1}, stats)
}

func TestClear(t *testing.T) {
	c := newTestCache(t, time.Hour)
	_, _ = c.Bucket("a").PutIfAbsent("h1", payload(1, "h1"))

	require.NoError(t, c.Purge(true))
	stats, _ := c.Stats()
	assert.Equal(t, int64(1), stats.Entries, "live entries survive expired-only purge")

	require.NoError(t, c.Clear())
	stats, _ = c.Stats()
	assert.Equal(t, int64(0), stats.Entries)
}
