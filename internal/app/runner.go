// Package app wires settings, indexes and collaborators into the commands of
// the mathfuse CLI.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/pflag"

	"github.com/sha1n/mathfuse/internal/config"
	"github.com/sha1n/mathfuse/internal/engine"
	mcputil "github.com/sha1n/mathfuse/internal/mcp"
	"github.com/sha1n/mathfuse/internal/telemetry"
)

// RunParams contains dependencies for the run functions
type RunParams struct {
	LoadSettings      func(*pflag.FlagSet) (*config.Settings, error)
	ValidSettings     func(*config.Settings) error
	StartSSEServer    func(*mcp.Server, *config.Settings, *telemetry.Metrics) error
	CreateServer      func(*config.Settings, *telemetry.Metrics) (*mcp.Server, func(), error)
	CustomIOTransport mcp.Transport // Optional: for testing with custom IO
	Stdout            io.Writer     // Optional: destination of reports, os.Stdout when nil
}

// DefaultRunParams returns production dependencies
func DefaultRunParams() RunParams {
	return RunParams{
		LoadSettings:   config.LoadSettingsWithFlags,
		ValidSettings:  config.ValidateSettings,
		StartSSEServer: StartSSEServer,
		CreateServer:   CreateMCPServer,
	}
}

func (p RunParams) stdout() io.Writer {
	if p.Stdout == nil {
		return os.Stdout
	}
	return p.Stdout
}

// setup loads and validates settings and configures logging
func (p RunParams) setup(flags *pflag.FlagSet) (*config.Settings, error) {
	settings, err := p.LoadSettings(flags)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	// Validate settings for conflicting configurations
	if err := p.ValidSettings(settings); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if err := config.SetupLogging(settings.Logging); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return settings, nil
}

// RunWithDeps executes the MCP server with the provided dependencies
func RunWithDeps(ctx context.Context, params RunParams, flags *pflag.FlagSet, version string) error {
	settings, err := params.setup(flags)
	if err != nil {
		return err
	}

	slog.Info("Starting mathfuse MCP server", "version", version)
	config.Log(settings)
	config.LogServe(settings, slog.Default())

	metrics := telemetry.New()
	mcpServer, cleanup, err := params.CreateServer(settings, metrics)
	if err != nil {
		return err
	}
	if cleanup != nil {
		defer cleanup()
	}

	if settings.Serve.Transport == config.TransportStdio {
		stop := serveMetrics(settings.Metrics.Addr, metrics)
		defer stop()

		// Use custom transport if provided (for testing), otherwise use stdio
		transport := params.CustomIOTransport
		if transport == nil {
			transport = &mcp.StdioTransport{}
		}
		return mcpServer.Run(ctx, transport)
	}

	slog.Info("Starting SSE server", "host", settings.Serve.Host, "port", settings.Serve.Port)
	return params.StartSSEServer(mcpServer, settings, metrics)
}

// CreateMCPServer opens the configured indexes and creates the MCP server.
// The post index is required for the search tools; when it cannot be opened
// the server starts without tools. The formula index is optional.
func CreateMCPServer(settings *config.Settings, metrics *telemetry.Metrics) (*mcp.Server, func(), error) {
	model, err := engine.ParseModel(settings.Index.Model)
	if err != nil {
		return nil, nil, err
	}

	var handles []*engine.Handle
	cleanup := func() {
		for _, h := range handles {
			if err := h.Close(); err != nil {
				slog.Error("Failed to close index", "error", err)
			}
		}
	}

	var search *mcputil.Search
	posts, err := engine.Open(engine.Path(settings.Index.Dir, settings.Index.Name, engine.KindPost), metrics)
	if err != nil {
		slog.Error("Post index unavailable, starting without search tools", "error", err)
	} else {
		handles = append(handles, posts)
		search = &mcputil.Search{
			Posts:      posts,
			Store:      posts,
			PostWeight: settings.Run.PostWeight,
			MathWeight: settings.Run.MathWeight,
			Model:      model,
			Depth:      settings.Run.Depth,
		}

		math, err := engine.Open(engine.Path(settings.Index.Dir, settings.Index.Name, engine.KindMath), metrics)
		if err != nil {
			slog.Warn("Formula index unavailable, searching posts only", "error", err)
		} else {
			handles = append(handles, math)
			search.Math = math
		}
	}

	server := mcputil.CreateServer(mcputil.ServerConfig{
		Name:       "mathfuse",
		Version:    "1.0.0",
		Search:     search,
		MaxResults: settings.Serve.MaxResults,
	})

	return server, cleanup, nil
}
