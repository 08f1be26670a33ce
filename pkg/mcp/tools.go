package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pario-ai/dynroute/pkg/models"
)

type routeArgs struct {
	Method  string `json:"method"`
	Pattern string `json:"pattern"`
}

type mapEndpointArgs struct {
	routeArgs
	CacheName string `json:"cache_name"`
	ParamName string `json:"param_name"`
}

// toolHandler is a function that handles a tool call.
type toolHandler func(ctx context.Context, s *Server, args json.RawMessage) ToolCallResult

var toolHandlers = map[string]toolHandler{
	"dynroute_list_routes":     handleListRoutes,
	"dynroute_map_endpoint":    handleMapEndpoint,
	"dynroute_remove_endpoint": handleRemoveEndpoint,
	"dynroute_clear_mappings":  handleClearMappings,
	"dynroute_cache_stats":     handleCacheStats,
}

var routeProperties = map[string]any{
	"method": map[string]any{
		"type":        "string",
		"description": "HTTP method, e.g. GET or POST",
	},
	"pattern": map[string]any{
		"type":        "string",
		"description": "Path pattern, e.g. /users/{id}",
	},
}

var allTools = []ToolDefinition{
	{
		Name:        "dynroute_list_routes",
		Description: "List the dynamically mapped endpoints with their cache settings and the shared counter.",
		InputSchema: map[string]any{"type": "object", "properties": map[string]any{}},
	},
	{
		Name:        "dynroute_map_endpoint",
		Description: "Map a JSON endpoint. Supply cache_name and param_name together to cache responses per parameter value.",
		InputSchema: map[string]any{
			"type":     "object",
			"required": []string{"method", "pattern"},
			"properties": map[string]any{
				"method":  routeProperties["method"],
				"pattern": routeProperties["pattern"],
				"cache_name": map[string]any{
					"type":        "string",
					"description": "Cache bucket name (optional)",
				},
				"param_name": map[string]any{
					"type":        "string",
					"description": "Request parameter whose value is the cache key (optional)",
				},
			},
		},
	},
	{
		Name:        "dynroute_remove_endpoint",
		Description: "Remove a single mapped endpoint. The shared counter is kept.",
		InputSchema: map[string]any{
			"type":       "object",
			"required":   []string{"method", "pattern"},
			"properties": routeProperties,
		},
	},
	{
		Name:        "dynroute_clear_mappings",
		Description: "Remove every mapped endpoint and reset the shared counter to zero.",
		InputSchema: map[string]any{"type": "object", "properties": map[string]any{}},
	},
	{
		Name:        "dynroute_cache_stats",
		Description: "Show response cache statistics.",
		InputSchema: map[string]any{"type": "object", "properties": map[string]any{}},
	},
}

func textResult(text string) ToolCallResult {
	return ToolCallResult{
		Content: []ContentBlock{{Type: "text", Text: text}},
	}
}

func errorResult(text string) ToolCallResult {
	return ToolCallResult{
		Content: []ContentBlock{{Type: "text", Text: text}},
		IsError: true,
	}
}

func handleListRoutes(_ context.Context, s *Server, _ json.RawMessage) ToolCallResult {
	return textResult(formatRoutes(s.routes.Mappings(), s.routes.Counter()))
}

func handleMapEndpoint(_ context.Context, s *Server, rawArgs json.RawMessage) ToolCallResult {
	var args mapEndpointArgs
	if len(rawArgs) > 0 {
		if err := json.Unmarshal(rawArgs, &args); err != nil {
			return errorResult("Invalid arguments: " + err.Error())
		}
	}

	d := models.MappingDescriptor{
		Method:     args.Method,
		Pattern:    args.Pattern,
		SideEffect: s.routes.LogSideEffect,
	}
	if args.CacheName != "" || args.ParamName != "" {
		d.Caching = &models.CachingDescriptor{CacheName: args.CacheName, ParamName: args.ParamName}
	}
	if err := s.routes.MapEndpoint(d); err != nil {
		return errorResult("Error mapping endpoint: " + err.Error())
	}

	msg := fmt.Sprintf("Mapped %s %s", d.Method, d.Pattern)
	if d.Caching != nil {
		msg += fmt.Sprintf(" (cache %s by %s)", d.Caching.CacheName, d.Caching.ParamName)
	}
	return textResult(msg)
}

func handleRemoveEndpoint(_ context.Context, s *Server, rawArgs json.RawMessage) ToolCallResult {
	var args routeArgs
	if len(rawArgs) > 0 {
		_ = json.Unmarshal(rawArgs, &args)
	}
	if args.Method == "" || args.Pattern == "" {
		return errorResult("method and pattern are required")
	}
	if err := s.routes.RemoveEndpoint(args.Method, args.Pattern); err != nil {
		return errorResult("Error removing endpoint: " + err.Error())
	}
	return textResult(fmt.Sprintf("Removed %s %s", args.Method, args.Pattern))
}

func handleClearMappings(_ context.Context, s *Server, _ json.RawMessage) ToolCallResult {
	n := len(s.routes.Mappings())
	s.routes.ClearMappings()
	return textResult(fmt.Sprintf("Cleared %d endpoint(s); counter reset to 0.", n))
}

func handleCacheStats(_ context.Context, s *Server, _ json.RawMessage) ToolCallResult {
	if s.cache == nil {
		return textResult("Cache is not configured.")
	}
	stats, err := s.cache.Stats()
	if err != nil {
		return errorResult("Error fetching cache stats: " + err.Error())
	}
	return textResult(formatCacheStats(stats))
}
