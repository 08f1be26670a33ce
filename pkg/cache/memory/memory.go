// Package memory implements cache.Store with one go-cache instance per bucket.
package memory

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/pario-ai/dynroute/pkg/cache"
	"github.com/pario-ai/dynroute/pkg/models"
)

// Store is an in-memory cache.Store. Entries expire after ttl; zero means never.
type Store struct {
	ttl     time.Duration
	cleanup time.Duration

	mu      sync.RWMutex
	buckets map[string]*Bucket

	hits   atomic.Int64
	misses atomic.Int64
	faults atomic.Int64
}

// Bucket is a single named go-cache region.
type Bucket struct {
	name  string
	c     *gocache.Cache
	store *Store
}

var _ cache.Store = (*Store)(nil)

// New creates a Store with the given entry TTL and expired-entry cleanup interval.
func New(ttl, cleanupInterval time.Duration) *Store {
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	return &Store{
		ttl:     ttl,
		cleanup: cleanupInterval,
		buckets: make(map[string]*Bucket),
	}
}

// Bucket returns the named bucket, creating it on first use.
func (s *Store) Bucket(name string) cache.Bucket {
	s.mu.RLock()
	b, ok := s.buckets[name]
	s.mu.RUnlock()
	if ok {
		return b
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.buckets[name]; ok {
		return b
	}
	b = &Bucket{name: name, c: gocache.New(s.ttl, s.cleanup), store: s}
	s.buckets[name] = b
	return b
}

// Stats returns aggregate metrics across all buckets.
func (s *Store) Stats() (models.CacheStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var entries int64
	for _, b := range s.buckets {
		entries += int64(b.c.ItemCount())
	}
	return models.CacheStats{
		Buckets:    int64(len(s.buckets)),
		Entries:    entries,
		Hits:       s.hits.Load(),
		Misses:     s.misses.Load(),
		TypeFaults: s.faults.Load(),
	}, nil
}

// Clear flushes every bucket. Buckets themselves stay known.
func (s *Store) Clear() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, b := range s.buckets {
		b.c.Flush()
	}
	return nil
}

// Close flushes all buckets. go-cache janitors stop once their cache is unreachable.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.buckets {
		b.c.Flush()
	}
	s.buckets = make(map[string]*Bucket)
	return nil
}

// Get retrieves a payload.
func (b *Bucket) Get(key string) (models.ResponsePayload, bool, error) {
	p, ok, err := b.Peek(key)
	switch {
	case err != nil:
		b.store.faults.Add(1)
	case ok:
		b.store.hits.Add(1)
	default:
		b.store.misses.Add(1)
	}
	return p, ok, err
}

// Peek retrieves a payload without counting the lookup.
func (b *Bucket) Peek(key string) (models.ResponsePayload, bool, error) {
	v, ok := b.c.Get(key)
	if !ok {
		return models.ResponsePayload{}, false, nil
	}
	p, ok := v.(models.ResponsePayload)
	if !ok {
		return models.ResponsePayload{}, false, fmt.Errorf("%w: bucket %q key %q holds %T", cache.ErrTypeMismatch, b.name, key, v)
	}
	return p, true, nil
}

// PutIfAbsent stores p unless key is already present.
func (b *Bucket) PutIfAbsent(key string, p models.ResponsePayload) (*models.ResponsePayload, error) {
	if err := b.c.Add(key, p, gocache.DefaultExpiration); err == nil {
		return nil, nil
	}
	v, ok := b.c.Get(key)
	if !ok {
		// Expired between Add and Get; retry once.
		if err := b.c.Add(key, p, gocache.DefaultExpiration); err == nil {
			return nil, nil
		}
		v, ok = b.c.Get(key)
		if !ok {
			return nil, fmt.Errorf("put bucket %q key %q: entry vanished", b.name, key)
		}
	}
	prev, ok := v.(models.ResponsePayload)
	if !ok {
		return nil, fmt.Errorf("%w: bucket %q key %q holds %T", cache.ErrTypeMismatch, b.name, key, v)
	}
	return &prev, nil
}
