package raster

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/couchcryptid/storm-radar-renderer/internal/observability"
	"github.com/couchcryptid/storm-radar-renderer/internal/scene"
)

// sharedRenderTimeout bounds a rasterization shared by several callers. It
// runs detached from any one caller's context.
const sharedRenderTimeout = 30 * time.Second

// Cached wraps a Rasterizer with an in-memory LRU keyed by the scene's SVG.
// Concurrent requests for the same scene share one rasterization.
type Cached struct {
	inner   Rasterizer
	cache   *lruCache
	group   singleflight.Group
	metrics *observability.Metrics
}

// NewCached creates a cache decorator around a rasterizer.
func NewCached(inner Rasterizer, maxEntries int, metrics *observability.Metrics) *Cached {
	return &Cached{
		inner:   inner,
		cache:   newLRUCache(maxEntries),
		metrics: metrics,
	}
}

// Rasterize implements Rasterizer.
func (c *Cached) Rasterize(ctx context.Context, s scene.Scene) ([]byte, error) {
	sum := sha256.Sum256(s.SVG())
	key := hex.EncodeToString(sum[:])

	if img, ok := c.cache.get(key); ok {
		c.metrics.FrameCache.WithLabelValues("hit").Inc()
		return img, nil
	}
	c.metrics.FrameCache.WithLabelValues("miss").Inc()

	ch := c.group.DoChan(key, func() (any, error) {
		renderCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedRenderTimeout)
		defer cancel()
		img, err := c.inner.Rasterize(renderCtx, s)
		if err != nil {
			return nil, err
		}
		c.cache.put(key, img)
		return img, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]byte), nil
	}
}

// CheckReadiness delegates to the wrapped rasterizer when it can report
// readiness.
func (c *Cached) CheckReadiness(ctx context.Context) error {
	if r, ok := c.inner.(interface{ CheckReadiness(context.Context) error }); ok {
		return r.CheckReadiness(ctx)
	}
	return nil
}

// lruCache is a simple thread-safe LRU cache of encoded frames.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	key   string
	value []byte
	prev  *entry
	next  *entry
}

func newLRUCache(maxEntries int) *lruCache {
	if maxEntries < 1 {
		maxEntries = 1
	}
	return &lruCache{
		maxEntries: maxEntries,
		entries:    make(map[string]*entry),
	}
}

func (c *lruCache) get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache) put(key string, value []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		c.moveToFront(e)
		return
	}

	e := &entry{key: key, value: value}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *lruCache) moveToFront(e *entry) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *lruCache) addToFront(e *entry) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *lruCache) remove(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *lruCache) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}
