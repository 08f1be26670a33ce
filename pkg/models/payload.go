package models

// ResponsePayload is the body returned by every dynamic endpoint.
// Counter is the shared ordinal at the time the payload was computed;
// Key is the cache key, or nil when the endpoint is not cached.
type ResponsePayload struct {
	Counter int64   `json:"counter"`
	Key     *string `json:"key"`
}

// WithKey returns a copy of p carrying key.
func (p ResponsePayload) WithKey(key string) ResponsePayload {
	p.Key = &key
	return p
}
