package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	web "github.com/leonardcser/web-memo/internal/web"
)

const defaultResultLimit = 10

// WebSearcher is satisfied by *web.Searcher.
type WebSearcher interface {
	Search(ctx context.Context, query string, limit int) ([]web.SearchResult, error)
}

// WebSearchHandler returns the MCP tool handler for the "web-search" tool.
func WebSearchHandler(searcher WebSearcher) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		q, err := req.RequireString("query")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		limit := req.GetInt("limit", defaultResultLimit)
		results, err := searcher.Search(ctx, q, limit)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(formatSearchResults(results)), nil
	}
}

// formatSearchResults renders an ordered list and ensures only a single URL line.
func formatSearchResults(results []web.SearchResult) string {
	if len(results) == 0 {
		return "No results."
	}
	var sb strings.Builder
	for i, r := range results {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "%d. %s\n   %s", i+1, r.Title, r.Link)
		if r.Description != "" {
			sb.WriteString("\n   " + r.Description)
		}
	}
	return sb.String()
}
