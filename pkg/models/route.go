package models

// RouteInfo summarizes an installed dynamic route.
type RouteInfo struct {
	Method    string `json:"method"`
	Pattern   string `json:"pattern"`
	CacheName string `json:"cache_name,omitempty"`
	ParamName string `json:"param_name,omitempty"`
}
