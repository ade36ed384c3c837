package classifier

import (
	"container/list"
	"context"
	"sync"
)

// Cache memoizes domain-membership verdicts under normalized query keys.
// Implementations must be safe for concurrent use.
type Cache interface {
	Get(ctx context.Context, key string) (verdict bool, ok bool, err error)
	Set(ctx context.Context, key string, verdict bool) error
}

// MemoryCache is a bounded in-process LRU cache. Once maxSize entries are
// stored, the least recently used entry is evicted on insert.
type MemoryCache struct {
	mu      sync.Mutex
	maxSize int
	entries map[string]*list.Element
	order   *list.List
}

type cacheEntry struct {
	key     string
	verdict bool
}

func NewMemoryCache(maxSize int) *MemoryCache {
	if maxSize < 1 {
		maxSize = 1
	}
	return &MemoryCache{
		maxSize: maxSize,
		entries: make(map[string]*list.Element),
		order:   list.New(),
	}
}

func (c *MemoryCache) Get(_ context.Context, key string) (bool, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		return false, false, nil
	}
	c.order.MoveToFront(el)
	return el.Value.(*cacheEntry).verdict, true, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, verdict bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		el.Value.(*cacheEntry).verdict = verdict
		c.order.MoveToFront(el)
		return nil
	}

	c.entries[key] = c.order.PushFront(&cacheEntry{key: key, verdict: verdict})

	if c.order.Len() > c.maxSize {
		oldest := c.order.Back()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.entries, oldest.Value.(*cacheEntry).key)
		}
	}
	return nil
}

// Len returns the number of cached verdicts.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
