package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// SizedCache is satisfied by *cache.Memory.
type SizedCache interface {
	Name() string
	Len() int
}

// CacheStatsHandler returns the MCP tool handler for the "cache-stats" tool.
// Counts include expired entries that have not been swept yet.
func CacheStatsHandler(caches ...SizedCache) server.ToolHandlerFunc {
	return func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var sb strings.Builder
		for _, c := range caches {
			fmt.Fprintf(&sb, "%s: %d entries\n", c.Name(), c.Len())
		}
		return mcp.NewToolResultText(strings.TrimSuffix(sb.String(), "\n")), nil
	}
}
