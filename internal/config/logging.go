package config

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/sha1n/mathfuse/internal/cache"
)

const masked = "****"

// ParseLevel converts a level name to a slog.Level.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", level)
}

// NewLogger creates a logger writing to w in the configured format.
func NewLogger(w io.Writer, s LoggingSettings) (*slog.Logger, error) {
	level, err := ParseLevel(s.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(s.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

// SetupLogging installs the default logger. Logs always go to stderr so
// stdout stays free for reports and the stdio transport.
func SetupLogging(s LoggingSettings) error {
	logger, err := NewLogger(os.Stderr, s)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)
	return nil
}

// Log logs the resolved settings in a granular way, skipping irrelevant ones
func Log(s *Settings) {
	LogWithLogger(s, slog.Default())
}

// LogWithLogger logs the resolved settings using the provided logger
func LogWithLogger(s *Settings, logger *slog.Logger) {
	ctx := context.Background()
	logger.InfoContext(ctx, "Config: index", "dir", s.Index.Dir, "name", s.Index.Name, "model", s.Index.Model)
	logger.InfoContext(ctx, "Config: run",
		"top_k", s.Run.TopK,
		"depth", s.Run.Depth,
		"prime", s.Run.Prime,
		"threshold", s.Run.Threshold,
		"concurrency", s.Run.Concurrency,
	)

	logger.InfoContext(ctx, "Config: cache.type", "value", s.Cache.Type)
	switch s.Cache.Type {
	case cache.TypeDir:
		logger.InfoContext(ctx, "Config: cache.dir", "value", s.Cache.Dir)
	case cache.TypeRedis:
		logger.InfoContext(ctx, "Config: cache.redis", "value", RedisSettingsLogValue(s.Cache.Redis))
	}

	if s.Rerank.URL != "" {
		logger.InfoContext(ctx, "Config: rerank.url", "value", s.Rerank.URL)
	}
	if s.Metrics.Addr != "" {
		logger.InfoContext(ctx, "Config: metrics.addr", "value", s.Metrics.Addr)
	}
}

// LogServe logs the serving settings.
func LogServe(s *Settings, logger *slog.Logger) {
	ctx := context.Background()
	logger.InfoContext(ctx, "Config: transport", "value", s.Serve.Transport)
	if s.Serve.Transport == TransportSSE {
		logger.InfoContext(ctx, "Config: host", "value", s.Serve.Host)
		logger.InfoContext(ctx, "Config: port", "value", s.Serve.Port)
	}

	logger.InfoContext(ctx, "Config: auth.type", "value", s.Serve.Auth.Type)
	switch s.Serve.Auth.Type {
	case AuthTypeBasic:
		logger.InfoContext(ctx, "Config: auth.basic.username", "value", s.Serve.Auth.Basic.Username)
		logger.InfoContext(ctx, "Config: auth.basic.password", "value", masked)
	case AuthTypeAPIKey:
		logger.InfoContext(ctx, "Config: auth.api_keys", "count", len(s.Serve.Auth.APIKeys))
	}
}

// RedisSettingsLogValue returns a slog.Value for RedisSettings with masked data
func RedisSettingsLogValue(s RedisSettings) slog.Value {
	password := ""
	if s.Password != "" {
		password = masked
	}
	return slog.GroupValue(
		slog.String("addr", s.Addr),
		slog.String("password", password),
		slog.Int("db", s.DB),
		slog.Duration("ttl", s.TTL),
	)
}

// AuthSettingsLogValue returns a slog.Value for AuthSettings with masked data
func AuthSettingsLogValue(s AuthSettings) slog.Value {
	keys := make([]string, len(s.APIKeys))
	for i := range s.APIKeys {
		keys[i] = masked
	}
	return slog.GroupValue(
		slog.String("type", s.Type),
		slog.String("username", s.Basic.Username),
		slog.String("password", masked),
		slog.Any("api_keys", keys),
	)
}
