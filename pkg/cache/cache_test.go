package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/traceprint/traceprint/pkg/fingerprint"
)

func testRecord(id string) *fingerprint.Record {
	return &fingerprint.Record{
		FlowID:           "flow-" + id,
		TLS:              &fingerprint.TLSFingerprint{JA4: id},
		MatchedProfileID: "profile-" + id,
		MatchConfidence:  0.92,
	}
}

func TestCacheLocalRoundTrip(t *testing.T) {
	c := New(Config{}, nil, zerolog.Nop())
	ctx := context.Background()

	_, ok := c.Get(ctx, "missing")
	assert.False(t, ok)

	c.Set(ctx, "k1", testRecord("k1"))
	got, ok := c.Get(ctx, "k1")
	require.True(t, ok)
	assert.Equal(t, "profile-k1", got.MatchedProfileID)

	stats := c.Stats()
	assert.Equal(t, uint64(1), stats.LocalHits)
	assert.Equal(t, uint64(1), stats.Misses)
	assert.Equal(t, 1, stats.LocalSize)
}

func TestCacheInvalidate(t *testing.T) {
	shared := NewMemoryTier()
	c := New(Config{}, shared, zerolog.Nop())
	ctx := context.Background()

	c.Set(ctx, "k1", testRecord("k1"))
	c.Invalidate(ctx, "k1")

	_, ok := c.Get(ctx, "k1")
	assert.False(t, ok, "invalidation removes both tiers")
}

func TestCachePatternInvalidate(t *testing.T) {
	shared := NewMemoryTier()
	c := New(Config{}, shared, zerolog.Nop())
	ctx := context.Background()

	c.Set(ctx, "tls:aaa", testRecord("aaa"))
	c.Set(ctx, "tls:bbb", testRecord("bbb"))
	c.Set(ctx, "tcp:ccc", testRecord("ccc"))

	c.Invalidate(ctx, "tls:*")

	_, ok := c.Get(ctx, "tls:aaa")
	assert.False(t, ok, "tls:aaa matched the pattern and must miss")
	_, ok = c.Get(ctx, "tls:bbb")
	assert.False(t, ok, "tls:bbb matched the pattern and must miss")
	_, ok = c.Get(ctx, "tcp:ccc")
	assert.True(t, ok, "unrelated keys survive")
}

func TestCachePatternInvalidateLocalOnly(t *testing.T) {
	c := New(Config{}, nil, zerolog.Nop())
	ctx := context.Background()

	c.Set(ctx, "tls:aaa", testRecord("aaa"))
	c.Set(ctx, "http:ddd", testRecord("ddd"))

	c.Invalidate(ctx, "tls:*")

	_, ok := c.Get(ctx, "tls:aaa")
	assert.False(t, ok)
	_, ok = c.Get(ctx, "http:ddd")
	assert.True(t, ok)
}

func TestMemoryTierDeletePattern(t *testing.T) {
	tier := NewMemoryTier()
	ctx := context.Background()

	require.NoError(t, tier.Set(ctx, "tls:x", []byte("1"), time.Minute))
	require.NoError(t, tier.Set(ctx, "tcp:y", []byte("2"), time.Minute))
	require.NoError(t, tier.DeletePattern(ctx, "tls:*"))

	_, err := tier.Get(ctx, "tls:x")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = tier.Get(ctx, "tcp:y")
	assert.NoError(t, err)
}

func TestCacheSharedTierBackfill(t *testing.T) {
	shared := NewMemoryTier()
	ctx := context.Background()

	// A record written by another process.
	raw, err := json.Marshal(testRecord("warm"))
	require.NoError(t, err)
	require.NoError(t, shared.Set(ctx, "warm", raw, time.Minute))

	c := New(Config{}, shared, zerolog.Nop())

	got, ok := c.Get(ctx, "warm")
	require.True(t, ok)
	assert.Equal(t, "profile-warm", got.MatchedProfileID)
	assert.Equal(t, uint64(1), c.Stats().SharedHits)

	// Second lookup is served locally.
	_, ok = c.Get(ctx, "warm")
	require.True(t, ok)
	assert.Equal(t, uint64(1), c.Stats().LocalHits)
}

// failingTier always errors, simulating a dead shared tier.
type failingTier struct{}

func (failingTier) Get(context.Context, string) ([]byte, error) {
	return nil, errors.New("connection refused")
}
func (failingTier) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("connection refused")
}
func (failingTier) Delete(context.Context, string) error { return errors.New("connection refused") }
func (failingTier) DeletePattern(context.Context, string) error {
	return errors.New("connection refused")
}
func (failingTier) Close() error { return nil }

func TestCacheDegradesWhenSharedTierFails(t *testing.T) {
	c := New(Config{}, failingTier{}, zerolog.Nop())
	ctx := context.Background()

	c.Set(ctx, "k1", testRecord("k1"))

	// Local tier still serves the hit despite the failed shared write.
	got, ok := c.Get(ctx, "k1")
	require.True(t, ok)
	assert.Equal(t, "profile-k1", got.MatchedProfileID)

	// A genuine miss degrades instead of erroring.
	_, ok = c.Get(ctx, "other")
	assert.False(t, ok)

	stats := c.Stats()
	assert.GreaterOrEqual(t, stats.SharedErrors, uint64(2))
}

func TestCacheLRUEviction(t *testing.T) {
	c := New(Config{LocalCapacity: 2}, nil, zerolog.Nop())
	ctx := context.Background()

	c.Set(ctx, "a", testRecord("a"))
	c.Set(ctx, "b", testRecord("b"))

	// Touch "a" so "b" is the eviction candidate.
	_, ok := c.Get(ctx, "a")
	require.True(t, ok)

	c.Set(ctx, "c", testRecord("c"))

	_, ok = c.Get(ctx, "a")
	assert.True(t, ok)
	_, ok = c.Get(ctx, "b")
	assert.False(t, ok, "least recently used entry is evicted")
	_, ok = c.Get(ctx, "c")
	assert.True(t, ok)
}

func TestCacheTTLExpiry(t *testing.T) {
	l := newLRU(4)
	now := time.Now()
	l.set("k", []byte("v"), now.Add(time.Minute))

	_, ok := l.get("k", now.Add(30*time.Second))
	assert.True(t, ok)

	_, ok = l.get("k", now.Add(2*time.Minute))
	assert.False(t, ok, "expired entries are dropped on read")
	assert.Zero(t, l.len())
}

func TestCacheConcurrentAccess(t *testing.T) {
	c := New(Config{LocalCapacity: 64}, NewMemoryTier(), zerolog.Nop())
	ctx := context.Background()

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			key := []string{"a", "b", "c", "d"}[g%4]
			for i := 0; i < 100; i++ {
				c.Set(ctx, key, testRecord(key))
				if rec, ok := c.Get(ctx, key); ok {
					assert.Equal(t, "profile-"+key, rec.MatchedProfileID)
				}
				if i%25 == 0 {
					c.Invalidate(ctx, key)
				}
			}
		}(g)
	}
	wg.Wait()
}

func TestMemoryTierTTL(t *testing.T) {
	tier := NewMemoryTier()
	ctx := context.Background()

	require.NoError(t, tier.Set(ctx, "k", []byte("v"), time.Nanosecond))
	time.Sleep(2 * time.Millisecond)
	_, err := tier.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)
}
