package mcp

import (
	"fmt"
	"strings"

	"github.com/pario-ai/dynroute/pkg/models"
)

// formatRoutes formats the route table as a text table.
func formatRoutes(routes []models.RouteInfo, counter int64) string {
	if len(routes) == 0 {
		return fmt.Sprintf("No endpoints mapped.\nCounter: %d\n", counter)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-8s %-40s %-20s %-20s\n", "Method", "Pattern", "Cache", "Param")
	b.WriteString(strings.Repeat("-", 91) + "\n")
	for _, r := range routes {
		cacheName, param := r.CacheName, r.ParamName
		if cacheName == "" {
			cacheName, param = "-", "-"
		}
		fmt.Fprintf(&b, "%-8s %-40s %-20s %-20s\n", r.Method, r.Pattern, cacheName, param)
	}
	fmt.Fprintf(&b, "\nCounter: %d\n", counter)
	return b.String()
}

// formatCacheStats formats cache stats as text.
func formatCacheStats(stats models.CacheStats) string {
	return fmt.Sprintf("Cache Statistics\n"+
		"  Buckets:     %d\n"+
		"  Entries:     %d\n"+
		"  Hits:        %d\n"+
		"  Misses:      %d\n"+
		"  Type Faults: %d\n"+
		"  Hit Rate:    %.1f%%\n",
		stats.Buckets, stats.Entries, stats.Hits, stats.Misses, stats.TypeFaults, stats.HitRate()*100)
}
