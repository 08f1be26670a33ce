package sqlite

import (
	"fmt"
	"time"
)

// putRaw stores an arbitrary blob, replacing any existing entry.
func (b *Bucket) putRaw(key string, raw []byte) error {
	_, err := b.c.db.Exec(
		`INSERT OR REPLACE INTO cache_entries (bucket, cache_key, payload, created_at, ttl_seconds)
		 VALUES (?, ?, ?, ?, ?)`,
		b.name, key, raw, time.Now().UTC(), b.c.ttlSeconds(),
	)
	if err != nil {
		return fmt.Errorf("cache put: %w", err)
	}
	return nil
}
