package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/sha1n/mathfuse/internal/auth"
	"github.com/sha1n/mathfuse/internal/config"
	"github.com/sha1n/mathfuse/internal/telemetry"
)

// shutdownTimeout bounds the graceful stop of the metrics server.
const shutdownTimeout = 5 * time.Second

// StartSSEServer starts the SSE server with authentication
func StartSSEServer(s *mcp.Server, settings *config.Settings, metrics *telemetry.Metrics) error {
	srv, err := NewSSEServer(s, settings, metrics)
	if err != nil {
		return err
	}

	slog.Info("Server listening (HTTP)", "addr", srv.Addr, "auth_type", settings.Serve.Auth.Type)
	return srv.ListenAndServe()
}

// NewSSEServer creates a new SSE server with authentication middleware.
// Metrics are exposed on /metrics behind the same authentication.
func NewSSEServer(s *mcp.Server, settings *config.Settings, metrics *telemetry.Metrics) (*http.Server, error) {
	// Factory function returns the server instance for each request
	sseHandler := mcp.NewSSEHandler(func(r *http.Request) *mcp.Server {
		return s
	}, nil)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", health)
	mux.Handle("/sse", sseHandler)
	if metrics != nil {
		mux.Handle("/metrics", metrics.Handler())
	}

	authMiddleware, err := auth.NewMiddleware(settings.Serve.Auth, metrics)
	if err != nil {
		return nil, fmt.Errorf("failed to create auth middleware: %w", err)
	}

	handler := authMiddleware(mux)
	addr := fmt.Sprintf("%s:%d", settings.Serve.Host, settings.Serve.Port)

	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}, nil
}

func health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// NewMetricsServer creates the standalone server exposing /metrics and /health.
func NewMetricsServer(addr string, metrics *telemetry.Metrics) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", health)
	mux.Handle("/metrics", metrics.Handler())
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// serveMetrics serves metrics in the background while a command runs. An
// empty addr disables it. The returned function stops the server.
func serveMetrics(addr string, metrics *telemetry.Metrics) func() {
	if addr == "" || metrics == nil {
		return func() {}
	}

	srv := NewMetricsServer(addr, metrics)
	go func() {
		slog.Info("Metrics server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Metrics server failed", "error", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			slog.Warn("Metrics server shutdown failed", "error", err)
		}
	}
}
