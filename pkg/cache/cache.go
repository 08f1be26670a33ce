// Package cache defines the named-bucket response store consulted by the registry.
package cache

import (
	"errors"

	"github.com/pario-ai/dynroute/pkg/models"
)

// ErrTypeMismatch is returned by Bucket.Get when the stored value is not a ResponsePayload.
var ErrTypeMismatch = errors.New("cache: stored value is not a response payload")

// Store hands out buckets by name, creating them on first use.
//
// Implementations must be safe for concurrent use.
type Store interface {
	// Bucket returns the bucket called name.
	Bucket(name string) Bucket
	// Stats returns aggregate metrics across all buckets.
	Stats() (models.CacheStats, error)
	// Clear drops every entry in every bucket.
	Clear() error
	// Close releases resources.
	Close() error
}

// Bucket is an independently keyed region of a Store.
type Bucket interface {
	// Get returns the payload stored under key. A miss is (zero, false, nil);
	// a value of the wrong shape is reported as ErrTypeMismatch.
	Get(key string) (models.ResponsePayload, bool, error)
	// Peek is Get without touching the store's hit, miss and fault counts.
	Peek(key string) (models.ResponsePayload, bool, error)
	// PutIfAbsent stores p under key unless an entry already exists, in which
	// case the existing payload is returned and p is discarded. The previous
	// payload is nil when p was stored.
	PutIfAbsent(key string, p models.ResponsePayload) (*models.ResponsePayload, error)
}
