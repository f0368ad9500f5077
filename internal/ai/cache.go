package ai

import (
	"container/list"
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

const DefaultCacheCapacity = 1024

// CachingEmbedder memoizes embeddings by text in an LRU. Concurrent requests
// for the same text share a single backend call.
type CachingEmbedder struct {
	next     Embedder
	capacity int

	mu    sync.Mutex
	items map[string]*list.Element
	lru   *list.List

	group singleflight.Group
}

type cacheEntry struct {
	key   string
	value []float32
}

func NewCachingEmbedder(next Embedder, capacity int) *CachingEmbedder {
	if capacity <= 0 {
		capacity = DefaultCacheCapacity
	}
	return &CachingEmbedder{
		next:     next,
		capacity: capacity,
		items:    make(map[string]*list.Element),
		lru:      list.New(),
	}
}

func (c *CachingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := c.get(text); ok {
		return v, nil
	}

	// The backend call is shared; each caller stops only on its own ctx.
	shared := context.WithoutCancel(ctx)
	ch := c.group.DoChan(text, func() (any, error) {
		if v, ok := c.get(text); ok {
			return v, nil
		}
		v, err := c.next.Embed(shared, text)
		if err != nil {
			return nil, err
		}
		c.set(text, v)
		return v, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]float32), nil
	}
}

func (c *CachingEmbedder) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

func (c *CachingEmbedder) get(key string) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.lru.MoveToFront(elem)
		return elem.Value.(*cacheEntry).value, true
	}
	return nil, false
}

func (c *CachingEmbedder) set(key string, value []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.lru.MoveToFront(elem)
		elem.Value.(*cacheEntry).value = value
		return
	}

	c.items[key] = c.lru.PushFront(&cacheEntry{key: key, value: value})

	if c.lru.Len() > c.capacity {
		if oldest := c.lru.Back(); oldest != nil {
			c.lru.Remove(oldest)
			delete(c.items, oldest.Value.(*cacheEntry).key)
		}
	}
}
