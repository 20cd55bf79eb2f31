package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/sha1n/mathfuse/internal/domain"
)

// DefaultMaxResults caps search_posts results when no limit is configured.
const DefaultMaxResults = 20

// SearchArgument defines search parameters.
type SearchArgument struct {
	Query string `json:"query" jsonschema_description:"Free-text question; formula text is matched against the formula index"`
	Limit int    `json:"limit,omitempty" jsonschema_description:"Maximum number of posts to return"`
}

// SearchHandler handles the search_posts MCP tool.
type SearchHandler struct {
	search     *Search
	maxResults int
}

// NewSearchHandler creates a new search handler.
func NewSearchHandler(search *Search, maxResults int) *SearchHandler {
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	return &SearchHandler{search: search, maxResults: maxResults}
}

// Handle executes the fused search and returns formatted results.
func (h *SearchHandler) Handle(ctx context.Context, req *mcp.CallToolRequest, args SearchArgument) (*mcp.CallToolResult, any, error) {
	if strings.TrimSpace(args.Query) == "" {
		return errorResult("Query cannot be empty"), nil, nil
	}

	limit := h.maxResults
	if args.Limit > 0 && args.Limit < limit {
		limit = args.Limit
	}

	posts, err := h.search.Query(ctx, args.Query, limit)
	if err != nil {
		return errorResult(fmt.Sprintf("Search failed: %s", err)), nil, nil
	}
	return formatPosts(posts, args.Query), nil, nil
}

func formatPosts(posts []Post, queryStr string) *mcp.CallToolResult {
	if len(posts) == 0 {
		return textResult(fmt.Sprintf("No results found for query: %s", queryStr))
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Found %d posts for '%s':\n\n", len(posts), queryStr))
	for i, p := range posts {
		title := p.Title
		if title == "" && !isRoot(p.ParentNo) {
			title = "(answer to " + p.ParentNo + ")"
		}
		sb.WriteString(fmt.Sprintf("### %d. [%s] %s\n", i+1, p.DocNo, title))
		sb.WriteString(fmt.Sprintf("**Score**: %.4f", p.Score))
		if p.Votes != "" {
			sb.WriteString(fmt.Sprintf("  **Votes**: %s", p.Votes))
		}
		sb.WriteString("\n")
		if p.Tags != "" {
			sb.WriteString(fmt.Sprintf("**Tags**: %s\n", p.Tags))
		}
		sb.WriteString("\n")
	}
	return textResult(sb.String())
}

func isRoot(parent string) bool {
	return parent == "" || parent == domain.RootParent
}

func errorResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		IsError: true,
	}
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

// GetToolDefinition returns the MCP tool definition.
func (h *SearchHandler) GetToolDefinition() *mcp.Tool {
	return &mcp.Tool{
		Name:        "search_posts",
		Description: "Search math forum posts, fusing text relevance with formula matches",
	}
}

// RegisterSearchTool registers the search tool with an MCP server.
func RegisterSearchTool(server *mcp.Server, search *Search, maxResults int) {
	handler := NewSearchHandler(search, maxResults)
	mcp.AddTool(server, handler.GetToolDefinition(), handler.Handle)
}
