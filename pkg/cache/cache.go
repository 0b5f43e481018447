// Package cache layers a small in-process LRU over an optional shared tier
// (Redis in deployments, in-memory in tests). Lookups hit the local tier
// first; a shared-tier hit is copied back into the local tier. The shared
// tier is best effort: when it times out or errors the cache degrades to a
// miss rather than failing the lookup.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/traceprint/traceprint/pkg/fingerprint"
)

// ErrStorageTimeout marks a shared-tier operation that exceeded its deadline.
var ErrStorageTimeout = errors.New("cache: shared tier timed out")

const (
	DefaultLocalCapacity = 4096
	DefaultTTL           = 15 * time.Minute
	DefaultSharedTimeout = 250 * time.Millisecond
)

// SharedTier is the cross-process cache behind the local LRU.
type SharedTier interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// DeletePattern removes every key matching a glob pattern such as "tls:*".
	DeletePattern(ctx context.Context, pattern string) error
	Close() error
}

// ErrNotFound is returned by a SharedTier when the key is absent.
var ErrNotFound = errors.New("cache: not found")

// Stats counts hits and misses per tier.
type Stats struct {
	LocalHits    uint64 `json:"local_hits"`
	SharedHits   uint64 `json:"shared_hits"`
	Misses       uint64 `json:"misses"`
	SharedErrors uint64 `json:"shared_errors"`
	LocalSize    int    `json:"local_size"`
}

// Config tunes the cache tiers.
type Config struct {
	LocalCapacity int
	TTL           time.Duration
	SharedTimeout time.Duration
}

// Cache is the two-tier fingerprint record cache. Safe for concurrent use.
// The local tier is touched only under mu; no lock is held across a shared
// tier call.
type Cache struct {
	cfg    Config
	shared SharedTier // nil when running local-only
	log    zerolog.Logger

	mu    sync.Mutex
	local *lru

	statsMu sync.Mutex
	stats   Stats
}

// New builds a cache. shared may be nil for local-only operation.
func New(cfg Config, shared SharedTier, log zerolog.Logger) *Cache {
	if cfg.LocalCapacity <= 0 {
		cfg.LocalCapacity = DefaultLocalCapacity
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.SharedTimeout <= 0 {
		cfg.SharedTimeout = DefaultSharedTimeout
	}
	return &Cache{
		cfg:    cfg,
		shared: shared,
		log:    log.With().Str("component", "cache").Logger(),
		local:  newLRU(cfg.LocalCapacity),
	}
}

// Get looks up the record cached under key. A shared-tier failure is counted
// and logged but surfaces as a plain miss.
func (c *Cache) Get(ctx context.Context, key string) (*fingerprint.Record, bool) {
	now := time.Now()

	c.mu.Lock()
	raw, ok := c.local.get(key, now)
	c.mu.Unlock()
	if ok {
		rec, err := decodeRecord(raw)
		if err == nil {
			c.count(func(s *Stats) { s.LocalHits++ })
			return rec, true
		}
		// Undecodable residue; drop it and fall through to the shared tier.
		c.mu.Lock()
		c.local.delete(key)
		c.mu.Unlock()
	}

	if c.shared == nil {
		c.count(func(s *Stats) { s.Misses++ })
		return nil, false
	}

	sctx, cancel := context.WithTimeout(ctx, c.cfg.SharedTimeout)
	raw, err := c.shared.Get(sctx, key)
	cancel()
	switch {
	case err == nil:
		rec, derr := decodeRecord(raw)
		if derr != nil {
			c.count(func(s *Stats) { s.Misses++ })
			return nil, false
		}
		c.mu.Lock()
		c.local.set(key, raw, now.Add(c.cfg.TTL))
		c.mu.Unlock()
		c.count(func(s *Stats) { s.SharedHits++ })
		return rec, true
	case errors.Is(err, ErrNotFound):
		c.count(func(s *Stats) { s.Misses++ })
		return nil, false
	default:
		if errors.Is(err, context.DeadlineExceeded) {
			err = ErrStorageTimeout
		}
		c.count(func(s *Stats) { s.SharedErrors++; s.Misses++ })
		c.log.Warn().Err(err).Str("key", key).Msg("shared tier lookup failed, degrading to miss")
		return nil, false
	}
}

// Set stores the record in both tiers. The local tier always takes the
// write; a shared-tier failure is logged and swallowed.
func (c *Cache) Set(ctx context.Context, key string, rec *fingerprint.Record) {
	raw, err := json.Marshal(rec)
	if err != nil {
		c.log.Error().Err(err).Str("key", key).Msg("record not serializable")
		return
	}

	c.mu.Lock()
	c.local.set(key, raw, time.Now().Add(c.cfg.TTL))
	c.mu.Unlock()

	if c.shared == nil {
		return
	}
	sctx, cancel := context.WithTimeout(ctx, c.cfg.SharedTimeout)
	err = c.shared.Set(sctx, key, raw, c.cfg.TTL)
	cancel()
	if err != nil {
		c.count(func(s *Stats) { s.SharedErrors++ })
		c.log.Warn().Err(err).Str("key", key).Msg("shared tier write failed")
	}
}

// Invalidate removes every key matching pattern from both tiers. Patterns
// use glob syntax ("tls:*"); a pattern without metacharacters names one exact
// key. The local key snapshot and its deletion happen in one critical section
// so a concurrent Get cannot resurrect a dropped copy; a key inserted after
// the snapshot may survive this call.
func (c *Cache) Invalidate(ctx context.Context, pattern string) {
	exact := !strings.ContainsAny(pattern, `*?[\`)

	c.mu.Lock()
	if exact {
		c.local.delete(pattern)
	} else {
		for _, key := range c.local.keys() {
			if ok, _ := path.Match(pattern, key); ok {
				c.local.delete(key)
			}
		}
	}
	shared := c.shared
	c.mu.Unlock()

	if shared == nil {
		return
	}
	sctx, cancel := context.WithTimeout(ctx, c.cfg.SharedTimeout)
	var err error
	if exact {
		err = shared.Delete(sctx, pattern)
	} else {
		err = shared.DeletePattern(sctx, pattern)
	}
	cancel()
	if err != nil && !errors.Is(err, ErrNotFound) {
		c.count(func(s *Stats) { s.SharedErrors++ })
		c.log.Warn().Err(err).Str("pattern", pattern).Msg("shared tier invalidation failed")
	}
}

// Stats returns a point-in-time snapshot.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	size := c.local.len()
	c.mu.Unlock()

	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	s := c.stats
	s.LocalSize = size
	return s
}

// Close releases the shared tier, if any.
func (c *Cache) Close() error {
	if c.shared == nil {
		return nil
	}
	return c.shared.Close()
}

func (c *Cache) count(fn func(*Stats)) {
	c.statsMu.Lock()
	fn(&c.stats)
	c.statsMu.Unlock()
}

func decodeRecord(raw []byte) (*fingerprint.Record, error) {
	var rec fingerprint.Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}
