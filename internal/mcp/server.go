package mcp

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// ServerConfig contains configuration for creating an MCP server
type ServerConfig struct {
	Name       string
	Version    string
	Search     *Search
	MaxResults int
}

// CreateServer creates and configures the MCP server. Tools are registered
// only when a search backend is available.
func CreateServer(cfg ServerConfig) *mcp.Server {
	s := mcp.NewServer(&mcp.Implementation{
		Name:    cfg.Name,
		Version: cfg.Version,
	}, nil)

	if cfg.Search != nil {
		RegisterSearchTool(s, cfg.Search, cfg.MaxResults)
		RegisterReadTool(s, cfg.Search)
	}

	return s
}
