// Package cache memoizes engine ranked lists so a source is retrieved once per
// topic across experiments and, with a persistent backend, across runs.
package cache

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/blake3"
	"golang.org/x/sync/singleflight"

	"github.com/sha1n/mathfuse/internal/domain"
	"github.com/sha1n/mathfuse/internal/telemetry"
)

// Backend stores opaque values by key.
type Backend interface {
	Name() string
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Close() error
}

// Key identifies one engine list. Index identifies the index build, so a
// rebuilt index does not serve stale lists.
type Key struct {
	Engine string
	Index  string
	Model  string
	Tokens string
	Depth  int
	QID    string
	Query  string
}

// String returns the hex blake3 digest of the key fields.
func (k Key) String() string {
	raw := strings.Join([]string{k.Engine, k.Index, k.Model, k.Tokens, strconv.Itoa(k.Depth), k.QID, k.Query}, "\x00")
	sum := blake3.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// Cache is a read-through cache of ranked lists. Concurrent misses on the
// same key compute once.
type Cache struct {
	backend Backend
	group   singleflight.Group
	enc     *zstd.Encoder
	dec     *zstd.Decoder
	metrics *telemetry.Metrics
	logger  *slog.Logger
}

// New wraps backend. metrics may be nil.
func New(backend Backend, metrics *telemetry.Metrics) (*Cache, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}
	return &Cache{
		backend: backend,
		enc:     enc,
		dec:     dec,
		metrics: metrics,
		logger:  slog.Default().With("component", "cache", "backend", backend.Name()),
	}, nil
}

// Close releases the codec and the backend.
func (c *Cache) Close() error {
	c.dec.Close()
	_ = c.enc.Close()
	return c.backend.Close()
}

// Get returns a cached list. Backend and decoding failures count as misses.
func (c *Cache) Get(ctx context.Context, key Key) ([]domain.ScoredHit, bool) {
	k := key.String()
	data, ok, err := c.backend.Get(ctx, k)
	if err != nil {
		c.logger.Warn("Cache get failed", "key", k, "error", err)
		ok = false
	}
	if !ok {
		c.metrics.CacheLookup(c.backend.Name(), false)
		return nil, false
	}

	raw, err := c.dec.DecodeAll(data, nil)
	if err != nil {
		c.logger.Warn("Cache entry corrupt", "key", k, "error", err)
		c.metrics.CacheLookup(c.backend.Name(), false)
		return nil, false
	}
	var hits []domain.ScoredHit
	if err := json.Unmarshal(raw, &hits); err != nil {
		c.logger.Warn("Cache unmarshal failed", "key", k, "error", err)
		c.metrics.CacheLookup(c.backend.Name(), false)
		return nil, false
	}
	c.metrics.CacheLookup(c.backend.Name(), true)
	return hits, true
}

// Set stores a list. Failures are logged, never returned.
func (c *Cache) Set(ctx context.Context, key Key, hits []domain.ScoredHit) {
	k := key.String()
	raw, err := json.Marshal(hits)
	if err != nil {
		c.logger.Warn("Cache marshal failed", "key", k, "error", err)
		return
	}
	if err := c.backend.Set(ctx, k, c.enc.EncodeAll(raw, nil)); err != nil {
		c.logger.Warn("Cache set failed", "key", k, "error", err)
	}
}

// GetOrCompute returns the cached list for key or computes and stores it.
// The boolean reports a cache hit. Compute errors are returned unchanged and
// never cached.
func (c *Cache) GetOrCompute(ctx context.Context, key Key, compute func(context.Context) ([]domain.ScoredHit, error)) ([]domain.ScoredHit, bool, error) {
	if hits, ok := c.Get(ctx, key); ok {
		return hits, true, nil
	}
	val, err, _ := c.group.Do(key.String(), func() (interface{}, error) {
		if hits, ok := c.Get(ctx, key); ok {
			return hits, nil
		}
		hits, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		c.Set(ctx, key, hits)
		return hits, nil
	})
	if err != nil {
		return nil, false, err
	}
	return clone(val.([]domain.ScoredHit)), false, nil
}

// clone copies hits so callers sharing a singleflight result can mutate theirs.
func clone(hits []domain.ScoredHit) []domain.ScoredHit {
	out := make([]domain.ScoredHit, len(hits))
	copy(out, hits)
	return out
}
