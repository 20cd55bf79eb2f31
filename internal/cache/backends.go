package cache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Backend types.
const (
	TypeNone  = "none"
	TypeDir   = "dir"
	TypeRedis = "redis"
)

// MemoryBackend keeps entries for the lifetime of the process.
type MemoryBackend struct {
	mu      sync.RWMutex
	entries map[string][]byte
}

// NewMemoryBackend creates an empty in-process backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{entries: make(map[string][]byte)}
}

func (m *MemoryBackend) Name() string { return "memory" }

func (m *MemoryBackend) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.entries[key]
	return v, ok, nil
}

func (m *MemoryBackend) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = value
	return nil
}

func (m *MemoryBackend) Close() error { return nil }

// DirBackend stores one file per entry under a directory.
type DirBackend struct {
	dir string
}

// NewDirBackend creates the directory if needed.
func NewDirBackend(dir string) (*DirBackend, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	return &DirBackend{dir: dir}, nil
}

func (d *DirBackend) Name() string { return TypeDir }

func (d *DirBackend) path(key string) string {
	return filepath.Join(d.dir, key[:2], key+".zst")
}

func (d *DirBackend) Get(_ context.Context, key string) ([]byte, bool, error) {
	data, err := os.ReadFile(d.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// Set writes to a temp file and renames it into place.
func (d *DirBackend) Set(_ context.Context, key string, value []byte) error {
	path := d.path(key)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".entry-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(value); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return nil
}

func (d *DirBackend) Close() error { return nil }

// RedisConfig configures a RedisBackend.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// RedisBackend stores entries in redis with an optional expiry.
type RedisBackend struct {
	client *redis.Client
	ttl    time.Duration
}

const redisKeyPrefix = "mathfuse:list:"

// NewRedisBackend creates a client; no connection is made until first use.
func NewRedisBackend(cfg RedisConfig) *RedisBackend {
	return &RedisBackend{
		client: redis.NewClient(&redis.Options{
			Addr:        cfg.Addr,
			Password:    cfg.Password,
			DB:          cfg.DB,
			DialTimeout: 2 * time.Second,
			MaxRetries:  1,
		}),
		ttl: cfg.TTL,
	}
}

func (r *RedisBackend) Name() string { return TypeRedis }

// Ping checks connectivity.
func (r *RedisBackend) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := r.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func (r *RedisBackend) Set(ctx context.Context, key string, value []byte) error {
	return r.client.Set(ctx, redisKeyPrefix+key, value, r.ttl).Err()
}

func (r *RedisBackend) Close() error {
	return r.client.Close()
}

// Options select and configure a backend.
type Options struct {
	Type  string
	Dir   string
	Redis RedisConfig
}

// NewBackend creates the backend named by opts.Type. TypeNone yields a
// process-local memory backend.
func NewBackend(opts Options) (Backend, error) {
	switch opts.Type {
	case "", TypeNone:
		return NewMemoryBackend(), nil
	case TypeDir:
		return NewDirBackend(opts.Dir)
	case TypeRedis:
		return NewRedisBackend(opts.Redis), nil
	}
	return nil, fmt.Errorf("unknown cache type %q", opts.Type)
}
