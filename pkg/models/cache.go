package models

// CacheStats reports cache store metrics across all buckets.
type CacheStats struct {
	Buckets    int64 `json:"buckets"`
	Entries    int64 `json:"entries"`
	Hits       int64 `json:"hits"`
	Misses     int64 `json:"misses"`
	TypeFaults int64 `json:"type_faults"`
}

// HitRate returns hits / (hits + misses), or 0 when nothing was looked up.
func (s CacheStats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}
