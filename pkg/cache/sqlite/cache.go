package sqlite

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"github.com/pario-ai/dynroute/pkg/cache"
	"github.com/pario-ai/dynroute/pkg/models"
)

// Cache is a cache.Store backed by SQLite. Buckets share one table.
type Cache struct {
	db     *sql.DB
	ttl    time.Duration
	hits   atomic.Int64
	misses atomic.Int64
	faults atomic.Int64
}

// Bucket is a named slice of the cache table.
type Bucket struct {
	name string
	c    *Cache
}

var _ cache.Store = (*Cache)(nil)

const createCacheTable = `
CREATE TABLE IF NOT EXISTS cache_entries (
	bucket TEXT NOT NULL,
	cache_key TEXT NOT NULL,
	payload BLOB NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	ttl_seconds INTEGER NOT NULL,
	PRIMARY KEY (bucket, cache_key)
);
`

// New creates a Cache with the given database path and entry TTL. Zero TTL never expires.
func New(dbPath string, ttl time.Duration) (*Cache, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_time_format=sqlite")
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}

	if _, err := db.Exec(createCacheTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate cache db: %w", err)
	}

	return &Cache{db: db, ttl: ttl}, nil
}

// Bucket returns the named bucket. Buckets exist implicitly.
func (c *Cache) Bucket(name string) cache.Bucket {
	return &Bucket{name: name, c: c}
}

// ttlSeconds rounds the TTL up to whole seconds so a sub-second TTL still expires.
func (c *Cache) ttlSeconds() int64 {
	if c.ttl <= 0 {
		return 0
	}
	return int64((c.ttl + time.Second - 1) / time.Second)
}

func (c *Cache) expired(createdAt time.Time, ttlSeconds int64) bool {
	if ttlSeconds <= 0 {
		return false
	}
	return time.Since(createdAt) > time.Duration(ttlSeconds)*time.Second
}

// lookup returns the raw payload column of a live entry.
func (b *Bucket) lookup(key string) ([]byte, bool, error) {
	var raw []byte
	var createdAt time.Time
	var ttlSeconds int64

	err := b.c.db.QueryRow(
		`SELECT payload, created_at, ttl_seconds FROM cache_entries WHERE bucket = ? AND cache_key = ?`,
		b.name, key,
	).Scan(&raw, &createdAt, &ttlSeconds)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache get: %w", err)
	}
	if b.c.expired(createdAt, ttlSeconds) {
		return nil, false, nil
	}
	return raw, true, nil
}

// storedPayload mirrors models.ResponsePayload with every field required.
type storedPayload struct {
	Counter *int64  `json:"counter"`
	Key     *string `json:"key"`
}

var errIncompletePayload = errors.New("counter and key are required")

// decodePayload accepts only objects carrying a counter and a non-null key,
// which is what the registry stores.
func decodePayload(raw []byte) (models.ResponsePayload, error) {
	var sp *storedPayload
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&sp); err != nil {
		return models.ResponsePayload{}, err
	}
	if sp == nil || sp.Counter == nil || sp.Key == nil {
		return models.ResponsePayload{}, errIncompletePayload
	}
	return models.ResponsePayload{Counter: *sp.Counter, Key: sp.Key}, nil
}

// Get retrieves a cached payload. Rows that do not decode as a payload are type faults.
func (b *Bucket) Get(key string) (models.ResponsePayload, bool, error) {
	p, ok, err := b.Peek(key)
	switch {
	case errors.Is(err, cache.ErrTypeMismatch):
		b.c.faults.Add(1)
	case err != nil:
	case ok:
		b.c.hits.Add(1)
	default:
		b.c.misses.Add(1)
	}
	return p, ok, err
}

// Peek retrieves a cached payload without counting the lookup.
func (b *Bucket) Peek(key string) (models.ResponsePayload, bool, error) {
	raw, ok, err := b.lookup(key)
	if err != nil || !ok {
		return models.ResponsePayload{}, false, err
	}
	p, err := decodePayload(raw)
	if err != nil {
		return models.ResponsePayload{}, false, fmt.Errorf("%w: bucket %q key %q: %v", cache.ErrTypeMismatch, b.name, key, err)
	}
	return p, true, nil
}

// PutIfAbsent inserts p unless a live entry exists. Expired rows are replaced.
func (b *Bucket) PutIfAbsent(key string, p models.ResponsePayload) (*models.ResponsePayload, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("cache put: %w", err)
	}

	res, err := b.c.db.Exec(
		`INSERT INTO cache_entries (bucket, cache_key, payload, created_at, ttl_seconds)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (bucket, cache_key) DO UPDATE SET
			payload = excluded.payload,
			created_at = excluded.created_at,
			ttl_seconds = excluded.ttl_seconds
		 WHERE cache_entries.ttl_seconds > 0
		   AND (julianday(excluded.created_at) - julianday(cache_entries.created_at)) * 86400 > cache_entries.ttl_seconds`,
		b.name, key, data, time.Now().UTC(), b.c.ttlSeconds(),
	)
	if err != nil {
		return nil, fmt.Errorf("cache put: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		return nil, nil
	}

	raw, ok, err := b.lookup(key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("cache put: bucket %q key %q: entry vanished", b.name, key)
	}
	prev, err := decodePayload(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: bucket %q key %q: %v", cache.ErrTypeMismatch, b.name, key, err)
	}
	return &prev, nil
}

// Stats returns cache performance metrics.
func (c *Cache) Stats() (models.CacheStats, error) {
	var buckets, entries int64
	err := c.db.QueryRow(`SELECT COUNT(DISTINCT bucket), COUNT(*) FROM cache_entries`).Scan(&buckets, &entries)
	if err != nil {
		return models.CacheStats{}, fmt.Errorf("cache stats: %w", err)
	}
	return models.CacheStats{
		Buckets:    buckets,
		Entries:    entries,
		Hits:       c.hits.Load(),
		Misses:     c.misses.Load(),
		TypeFaults: c.faults.Load(),
	}, nil
}

// Clear removes all cache entries.
func (c *Cache) Clear() error {
	return c.Purge(false)
}

// Purge removes cache entries. If expiredOnly is true, only expired entries are removed.
func (c *Cache) Purge(expiredOnly bool) error {
	var query string
	if expiredOnly {
		query = `DELETE FROM cache_entries WHERE ttl_seconds > 0 AND (julianday('now') - julianday(created_at)) * 86400 > ttl_seconds`
	} else {
		query = `DELETE FROM cache_entries`
	}
	_, err := c.db.Exec(query)
	if err != nil {
		return fmt.Errorf("cache clear: %w", err)
	}
	return nil
}

// Close releases the database connection.
func (c *Cache) Close() error {
	return c.db.Close()
}
