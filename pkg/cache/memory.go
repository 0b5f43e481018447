package cache

import (
	"context"
	"path"
	"sync"
	"time"
)

// MemoryTier is an in-process SharedTier used when no Redis is configured
// and in tests. It honors TTLs lazily on read.
type MemoryTier struct {
	mu    sync.Mutex
	items map[string]memoryItem
}

type memoryItem struct {
	value     []byte
	expiresAt time.Time
}

func NewMemoryTier() *MemoryTier {
	return &MemoryTier{items: make(map[string]memoryItem)}
}

func (t *MemoryTier) Get(_ context.Context, key string) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	item, ok := t.items[key]
	if !ok {
		return nil, ErrNotFound
	}
	if !item.expiresAt.IsZero() && time.Now().After(item.expiresAt) {
		delete(t.items, key)
		return nil, ErrNotFound
	}
	out := make([]byte, len(item.value))
	copy(out, item.value)
	return out, nil
}

func (t *MemoryTier) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	stored := make([]byte, len(value))
	copy(stored, value)
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}
	t.mu.Lock()
	t.items[key] = memoryItem{value: stored, expiresAt: expiresAt}
	t.mu.Unlock()
	return nil
}

func (t *MemoryTier) Delete(_ context.Context, key string) error {
	t.mu.Lock()
	delete(t.items, key)
	t.mu.Unlock()
	return nil
}

func (t *MemoryTier) DeletePattern(_ context.Context, pattern string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for key := range t.items {
		if ok, _ := path.Match(pattern, key); ok {
			delete(t.items, key)
		}
	}
	return nil
}

func (t *MemoryTier) Close() error { return nil }
