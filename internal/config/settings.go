package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/sha1n/mathfuse/internal/cache"
	"github.com/sha1n/mathfuse/internal/engine"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "MATHFUSE"

// Auth type constants
const (
	AuthTypeNone   = "none"
	AuthTypeBasic  = "basic"
	AuthTypeAPIKey = "apikey"
)

// Transport constants
const (
	TransportStdio = "stdio"
	TransportSSE   = "sse"
)

// LoggingSettings configure the default slog handler
type LoggingSettings struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// IndexSettings configure index construction and location
type IndexSettings struct {
	Dir        string `mapstructure:"dir"`
	Name       string `mapstructure:"name"`
	Tokens     string `mapstructure:"tokens"`
	MathTokens string `mapstructure:"math_tokens"`
	Model      string `mapstructure:"model"`
	BatchSize  int    `mapstructure:"batch_size"`
	Workers    int    `mapstructure:"workers"`
}

// RunSettings configure retrieval, fusion and evaluation
type RunSettings struct {
	TopK        int     `mapstructure:"top_k"`
	Depth       int     `mapstructure:"depth"`
	Prime       bool    `mapstructure:"prime"`
	Threshold   int     `mapstructure:"threshold"`
	Concurrency int     `mapstructure:"concurrency"`
	MathWeight  float64 `mapstructure:"math_weight"`
	PostWeight  float64 `mapstructure:"post_weight"`
	RunsDir     string  `mapstructure:"runs_dir"`
	Experiments string  `mapstructure:"experiments"`
	Format      string  `mapstructure:"format"`
}

// RedisSettings configure the redis cache backend
type RedisSettings struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// CacheSettings select the ranked-list cache backend
type CacheSettings struct {
	Type  string        `mapstructure:"type"` // cache.TypeNone, cache.TypeDir or cache.TypeRedis
	Dir   string        `mapstructure:"dir"`
	Redis RedisSettings `mapstructure:"redis"`
}

// RerankSettings configure the external scoring service
type RerankSettings struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
	Rate    float64       `mapstructure:"rate"`
	Burst   int           `mapstructure:"burst"`
}

// AuthSettings configuration for authentication
type AuthSettings struct {
	Type    string            `mapstructure:"type"` // AuthTypeNone, AuthTypeBasic, or AuthTypeAPIKey
	Basic   BasicAuthSettings `mapstructure:"basic"`
	APIKeys []string          `mapstructure:"api_keys"`
}

// BasicAuthSettings configuration for basic auth
type BasicAuthSettings struct {
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// ServeSettings configure the MCP server
type ServeSettings struct {
	Transport  string       `mapstructure:"transport"`
	Host       string       `mapstructure:"host"`
	Port       int          `mapstructure:"port"`
	MaxResults int          `mapstructure:"max_results"`
	Auth       AuthSettings `mapstructure:"auth"`
}

// MetricsSettings configure the prometheus endpoint
type MetricsSettings struct {
	Addr string `mapstructure:"addr"`
}

// Settings application settings
type Settings struct {
	Logging LoggingSettings `mapstructure:"logging"`
	Index   IndexSettings   `mapstructure:"index"`
	Run     RunSettings     `mapstructure:"run"`
	Cache   CacheSettings   `mapstructure:"cache"`
	Rerank  RerankSettings  `mapstructure:"rerank"`
	Serve   ServeSettings   `mapstructure:"serve"`
	Metrics MetricsSettings `mapstructure:"metrics"`
}

// flagKeys maps CLI flag names to settings keys. Commands register the
// subset of flags they accept; absent flags are skipped when binding.
var flagKeys = map[string]string{
	"log-level":           "logging.level",
	"log-format":          "logging.format",
	"index-dir":           "index.dir",
	"index-name":          "index.name",
	"tokens":              "index.tokens",
	"math-tokens":         "index.math_tokens",
	"model":               "index.model",
	"batch-size":          "index.batch_size",
	"workers":             "index.workers",
	"top-k":               "run.top_k",
	"depth":               "run.depth",
	"prime":               "run.prime",
	"threshold":           "run.threshold",
	"concurrency":         "run.concurrency",
	"math-weight":         "run.math_weight",
	"post-weight":         "run.post_weight",
	"runs-dir":            "run.runs_dir",
	"experiments":         "run.experiments",
	"format":              "run.format",
	"cache-type":          "cache.type",
	"cache-dir":           "cache.dir",
	"redis-addr":          "cache.redis.addr",
	"redis-password":      "cache.redis.password",
	"redis-db":            "cache.redis.db",
	"redis-ttl":           "cache.redis.ttl",
	"rerank-url":          "rerank.url",
	"rerank-timeout":      "rerank.timeout",
	"rerank-rate":         "rerank.rate",
	"rerank-burst":        "rerank.burst",
	"transport":           "serve.transport",
	"host":                "serve.host",
	"port":                "serve.port",
	"max-results":         "serve.max_results",
	"auth-type":           "serve.auth.type",
	"auth-basic-username": "serve.auth.basic.username",
	"auth-basic-password": "serve.auth.basic.password",
	"auth-api-keys":       "serve.auth.api_keys",
	"metrics-addr":        "metrics.addr",
}

// NoPrimeFlag disables the assessed-only filter when set.
const NoPrimeFlag = "no-prime"

// LoadSettings loads settings from environment variables and optional .env file
func LoadSettings() (*Settings, error) {
	return LoadSettingsWithFlags(nil)
}

// LoadSettingsWithFlags loads settings with optional CLI flag overrides.
// Priority: CLI flags > environment variables > .env file > defaults.
// If flags is nil, only env vars and defaults are used.
func LoadSettingsWithFlags(flags *pflag.FlagSet) (*Settings, error) {
	v := viper.New()

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	v.SetDefault("index.dir", "./indexes")
	v.SetDefault("index.name", "mathfuse")
	v.SetDefault("index.tokens", engine.DefaultTokens)
	v.SetDefault("index.math_tokens", "")
	v.SetDefault("index.model", string(engine.ModelBM25))
	v.SetDefault("index.batch_size", engine.DefaultBatchSize)
	v.SetDefault("index.workers", 4)

	v.SetDefault("run.top_k", 1000)
	v.SetDefault("run.depth", engine.DefaultDepth)
	v.SetDefault("run.prime", true)
	v.SetDefault("run.threshold", 2)
	v.SetDefault("run.concurrency", 8)
	v.SetDefault("run.math_weight", 8.0)
	v.SetDefault("run.post_weight", 2.0)
	v.SetDefault("run.runs_dir", "")
	v.SetDefault("run.experiments", "")
	v.SetDefault("run.format", "table")

	v.SetDefault("cache.type", cache.TypeNone)
	v.SetDefault("cache.dir", defaultCacheDir())
	v.SetDefault("cache.redis.addr", "")
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("cache.redis.ttl", 24*time.Hour)

	v.SetDefault("rerank.timeout", 30*time.Second)
	v.SetDefault("rerank.rate", 0.0)
	v.SetDefault("rerank.burst", 1)

	v.SetDefault("serve.transport", TransportStdio)
	v.SetDefault("serve.host", "0.0.0.0")
	v.SetDefault("serve.port", 8080)
	v.SetDefault("serve.max_results", 20)
	v.SetDefault("serve.auth.type", AuthTypeNone)

	v.SetDefault("metrics.addr", "")

	// Environment variables
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Keys without defaults are invisible to Unmarshal unless bound
	for _, key := range flagKeys {
		_ = v.BindEnv(key)
	}

	// Bind CLI flags if provided (highest priority)
	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				_ = v.BindPFlag(key, f)
			}
		}
		if f := flags.Lookup(NoPrimeFlag); f != nil && f.Changed && f.Value.String() == "true" {
			v.Set("run.prime", false)
		}
	}

	// Helper to look for .env file
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // Ignore error if .env doesn't exist

	var settings Settings
	if err := v.Unmarshal(&settings); err != nil {
		return nil, err
	}

	// Handle explicit parsing of API keys if provided via env var as comma-separated string
	apiKeysEnv := os.Getenv(EnvPrefix + "_SERVE_AUTH_API_KEYS")
	if apiKeysEnv != "" {
		if len(settings.Serve.Auth.APIKeys) == 0 || (len(settings.Serve.Auth.APIKeys) == 1 && strings.Contains(settings.Serve.Auth.APIKeys[0], ",")) {
			settings.Serve.Auth.APIKeys = strings.Split(apiKeysEnv, ",")
		}
	}
	for i := range settings.Serve.Auth.APIKeys {
		settings.Serve.Auth.APIKeys[i] = strings.TrimSpace(settings.Serve.Auth.APIKeys[i])
	}
	settings.Serve.Auth.APIKeys = filterEmptyStrings(settings.Serve.Auth.APIKeys)

	settings.Index.Dir = expandHomeDir(settings.Index.Dir)
	settings.Cache.Dir = expandHomeDir(settings.Cache.Dir)
	settings.Run.RunsDir = expandHomeDir(settings.Run.RunsDir)

	return &settings, nil
}

// defaultCacheDir returns the default directory of the dir cache backend
func defaultCacheDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ".mathfuse-cache"
	}
	return filepath.Join(dir, "mathfuse")
}

// expandHomeDir expands ~ to the user's home directory
func expandHomeDir(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	if path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return home
	}
	return path
}

// filterEmptyStrings removes empty strings from a slice
func filterEmptyStrings(s []string) []string {
	var result []string
	for _, str := range s {
		if str != "" {
			result = append(result, str)
		}
	}
	return result
}

// ValidateSettings checks value ranges and conflicting configurations.
func ValidateSettings(s *Settings) error {
	if _, err := ParseLevel(s.Logging.Level); err != nil {
		return err
	}
	switch s.Logging.Format {
	case "text", "json", "":
	default:
		return errors.New("log-format must be 'text' or 'json', got: " + s.Logging.Format)
	}

	if _, err := engine.ParseModel(s.Index.Model); err != nil {
		return err
	}
	if _, err := engine.ParseTokens(s.Index.Tokens); err != nil {
		return err
	}
	if _, err := engine.ParseTokens(s.Index.MathTokens); err != nil {
		return fmt.Errorf("math-tokens: %w", err)
	}

	if err := validateRunSettings(&s.Run); err != nil {
		return err
	}
	if err := validateCacheSettings(&s.Cache); err != nil {
		return err
	}
	return validateServeSettings(&s.Serve)
}

func validateRunSettings(r *RunSettings) error {
	if r.TopK <= 0 {
		return errors.New("top-k must be positive")
	}
	if r.Depth <= 0 {
		return errors.New("depth must be positive")
	}
	if r.Concurrency <= 0 {
		return errors.New("concurrency must be positive")
	}
	if r.Threshold < 0 || r.Threshold > 3 {
		return fmt.Errorf("threshold must be between 0 and 3, got: %d", r.Threshold)
	}
	switch r.Format {
	case "table", "json", "":
	default:
		return errors.New("format must be 'table' or 'json', got: " + r.Format)
	}
	return nil
}

func validateCacheSettings(c *CacheSettings) error {
	switch c.Type {
	case cache.TypeNone, "":
	case cache.TypeDir:
		if c.Dir == "" {
			return errors.New("cache-type 'dir' requires cache-dir")
		}
	case cache.TypeRedis:
		if c.Redis.Addr == "" {
			return errors.New("cache-type 'redis' requires redis-addr")
		}
	default:
		return errors.New("unknown cache-type: " + c.Type)
	}
	return nil
}

func validateServeSettings(s *ServeSettings) error {
	switch s.Transport {
	case TransportStdio, TransportSSE:
		// valid
	default:
		return errors.New("transport must be 'stdio' or 'sse', got: " + s.Transport)
	}

	hasBasicCreds := s.Auth.Basic.Username != "" || s.Auth.Basic.Password != ""
	hasAPIKeys := len(s.Auth.APIKeys) > 0

	switch s.Auth.Type {
	case AuthTypeNone, "":
		if hasBasicCreds || hasAPIKeys {
			return errors.New("auth-type 'none' is incompatible with auth credentials")
		}
	case AuthTypeBasic:
		if hasAPIKeys {
			return errors.New("auth-type 'basic' is mutually exclusive with auth-api-keys")
		}
		if s.Auth.Basic.Username == "" || s.Auth.Basic.Password == "" {
			return errors.New("auth-type 'basic' requires both username and password")
		}
	case AuthTypeAPIKey:
		if hasBasicCreds {
			return errors.New("auth-type 'apikey' is mutually exclusive with basic auth credentials")
		}
		if !hasAPIKeys {
			return errors.New("auth-type 'apikey' requires at least one API key")
		}
	default:
		return errors.New("unknown auth-type: " + s.Auth.Type)
	}
	return nil
}
