package models

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrInvalidCaching is returned when a CachingDescriptor is missing its bucket or parameter name.
var ErrInvalidCaching = errors.New("invalid caching descriptor")

// SideEffect is invoked once per matched request, before any caching decision.
type SideEffect func(pathVars map[string]string, body any, d *MappingDescriptor)

// MappingDescriptor describes a dynamically registered endpoint.
type MappingDescriptor struct {
	Pattern    string             `json:"pattern" yaml:"pattern"`
	Method     string             `json:"method" yaml:"method"`
	Caching    *CachingDescriptor `json:"caching,omitempty" yaml:"caching,omitempty"`
	SideEffect SideEffect         `json:"-" yaml:"-"`
}

// CachingDescriptor names the cache bucket and the request parameter supplying the cache key.
type CachingDescriptor struct {
	CacheName string `json:"cache_name" yaml:"cache_name"`
	ParamName string `json:"param_name" yaml:"param_name"`
}

// Validate reports ErrInvalidCaching if either name is empty.
func (c *CachingDescriptor) Validate() error {
	if strings.TrimSpace(c.CacheName) == "" {
		return fmt.Errorf("%w: cache name cannot be empty", ErrInvalidCaching)
	}
	if strings.TrimSpace(c.ParamName) == "" {
		return fmt.Errorf("%w: cache key parameter cannot be empty", ErrInvalidCaching)
	}
	return nil
}

var knownMethods = map[string]bool{
	http.MethodGet:     true,
	http.MethodHead:    true,
	http.MethodPost:    true,
	http.MethodPut:     true,
	http.MethodPatch:   true,
	http.MethodDelete:  true,
	http.MethodOptions: true,
	http.MethodTrace:   true,
}

// NormalizeMethod upper-cases m and reports whether it is a supported HTTP method.
func NormalizeMethod(m string) (string, bool) {
	m = strings.ToUpper(strings.TrimSpace(m))
	return m, knownMethods[m]
}
