package cache

import (
	"container/list"
	"time"
)

// lruEntry is one resident record plus its expiry.
type lruEntry struct {
	key       string
	value     []byte
	expiresAt time.Time
}

// lru is a fixed-capacity least-recently-used map. Not safe for concurrent
// use; the owning tier serializes access.
type lru struct {
	capacity int
	order    *list.List // front = most recent
	items    map[string]*list.Element
}

func newLRU(capacity int) *lru {
	return &lru{
		capacity: capacity,
		order:    list.New(),
		items:    make(map[string]*list.Element, capacity),
	}
}

func (l *lru) get(key string, now time.Time) ([]byte, bool) {
	el, ok := l.items[key]
	if !ok {
		return nil, false
	}
	ent := el.Value.(*lruEntry)
	if !ent.expiresAt.IsZero() && now.After(ent.expiresAt) {
		l.order.Remove(el)
		delete(l.items, key)
		return nil, false
	}
	l.order.MoveToFront(el)
	return ent.value, true
}

func (l *lru) set(key string, value []byte, expiresAt time.Time) {
	if el, ok := l.items[key]; ok {
		ent := el.Value.(*lruEntry)
		ent.value = value
		ent.expiresAt = expiresAt
		l.order.MoveToFront(el)
		return
	}
	if l.order.Len() >= l.capacity {
		oldest := l.order.Back()
		if oldest != nil {
			l.order.Remove(oldest)
			delete(l.items, oldest.Value.(*lruEntry).key)
		}
	}
	el := l.order.PushFront(&lruEntry{key: key, value: value, expiresAt: expiresAt})
	l.items[key] = el
}

func (l *lru) delete(key string) bool {
	el, ok := l.items[key]
	if !ok {
		return false
	}
	l.order.Remove(el)
	delete(l.items, key)
	return true
}

// keys returns a snapshot of the resident keys in no particular order.
func (l *lru) keys() []string {
	out := make([]string, 0, len(l.items))
	for k := range l.items {
		out = append(out, k)
	}
	return out
}

func (l *lru) len() int {
	return l.order.Len()
}
