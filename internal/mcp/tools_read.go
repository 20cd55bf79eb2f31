package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/sha1n/mathfuse/internal/domain"
)

// ReadArgument defines read parameters.
type ReadArgument struct {
	DocNo string `json:"docno" jsonschema_description:"Post identifier as returned by search_posts"`
}

// ReadHandler handles the get_post MCP tool.
type ReadHandler struct {
	search *Search
}

// NewReadHandler creates a new read handler.
func NewReadHandler(search *Search) *ReadHandler {
	return &ReadHandler{search: search}
}

// Handle returns the stored fields of a post.
func (h *ReadHandler) Handle(ctx context.Context, req *mcp.CallToolRequest, args ReadArgument) (*mcp.CallToolResult, any, error) {
	docNo := strings.TrimSpace(args.DocNo)
	if docNo == "" {
		return errorResult("docno cannot be empty"), nil, nil
	}

	fields, err := h.search.Get(ctx, docNo)
	if err != nil {
		if errors.Is(err, domain.ErrExternalEngine) {
			return errorResult(fmt.Sprintf("Post not found: %s", docNo)), nil, nil
		}
		return errorResult(fmt.Sprintf("Read failed: %s", err)), nil, nil
	}

	var sb strings.Builder
	if title := fields[domain.FieldTitle]; title != "" {
		sb.WriteString(fmt.Sprintf("# %s\n\n", title))
	}
	sb.WriteString(fmt.Sprintf("**Post**: %s", docNo))
	if parent := fields[domain.FieldParentNo]; !isRoot(parent) {
		sb.WriteString(fmt.Sprintf("  **Answer to**: %s", parent))
	}
	if votes := fields[domain.FieldVotes]; votes != "" {
		sb.WriteString(fmt.Sprintf("  **Votes**: %s", votes))
	}
	sb.WriteString("\n")
	if tags := fields[domain.FieldTags]; tags != "" {
		sb.WriteString(fmt.Sprintf("**Tags**: %s\n", tags))
	}
	sb.WriteString("\n")
	sb.WriteString(fields[domain.FieldText])
	sb.WriteString("\n")

	return textResult(sb.String()), nil, nil
}

// GetToolDefinition returns the MCP tool definition.
func (h *ReadHandler) GetToolDefinition() *mcp.Tool {
	return &mcp.Tool{
		Name:        "get_post",
		Description: "Read the normalized title, text, tags and votes of a post",
	}
}

// RegisterReadTool registers the read tool with an MCP server.
func RegisterReadTool(server *mcp.Server, search *Search) {
	handler := NewReadHandler(search)
	mcp.AddTool(server, handler.GetToolDefinition(), handler.Handle)
}
