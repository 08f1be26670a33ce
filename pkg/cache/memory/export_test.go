package memory

import gocache "github.com/patrickmn/go-cache"

// raw exposes the underlying go-cache of a bucket so tests can seed values
// the way a foreign writer sharing the bucket would.
func (s *Store) raw(name string) *gocache.Cache {
	return s.Bucket(name).(*Bucket).c
}
