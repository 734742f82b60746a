package feed

import (
	"context"
	"fmt"
	"sync"
	"time"

	"yatube/models"
)

// Key identifies a cached feed page.
type Key struct {
	Filter   string
	Page     int
	PageSize int
}

func (k Key) String() string {
	return fmt.Sprintf("%s|%d|%d", k.Filter, k.Page, k.PageSize)
}

// Cache stores assembled feed pages. Implementations must be safe for
// concurrent use. Errors are reported to the caller, which treats the cache
// as unavailable and keeps serving fresh pages.
type Cache interface {
	Get(ctx context.Context, key Key) (*models.FeedPage, bool, error)
	Put(ctx context.Context, key Key, page *models.FeedPage, ttl time.Duration) error
	InvalidateAll(ctx context.Context) error
}

// NopCache never stores anything.
type NopCache struct{}

func (NopCache) Get(context.Context, Key) (*models.FeedPage, bool, error) { return nil, false, nil }

func (NopCache) Put(context.Context, Key, *models.FeedPage, time.Duration) error { return nil }

func (NopCache) InvalidateAll(context.Context) error { return nil }

const defaultJanitorInterval = time.Minute

// CacheOption configures a MemoryCache.
type CacheOption func(*MemoryCache)

// WithCacheClock replaces time.Now for expiry checks.
func WithCacheClock(clock func() time.Time) CacheOption {
	return func(c *MemoryCache) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithJanitorInterval sets how often expired entries are evicted. Zero or a
// negative interval disables the janitor; expired entries are then only
// skipped on read.
func WithJanitorInterval(interval time.Duration) CacheOption {
	return func(c *MemoryCache) {
		c.janitorInterval = interval
	}
}

type cacheEntry struct {
	page    *models.FeedPage
	expires time.Time
}

// MemoryCache is an in-process Cache with per-entry expiry. Pages are copied
// on the way in and out.
type MemoryCache struct {
	clock           func() time.Time
	janitorInterval time.Duration

	mu      sync.RWMutex
	entries map[Key]cacheEntry

	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewMemoryCache starts the janitor goroutine unless it is disabled; call
// Close to stop it.
func NewMemoryCache(opts ...CacheOption) *MemoryCache {
	c := &MemoryCache{
		clock:           time.Now,
		janitorInterval: defaultJanitorInterval,
		entries:         make(map[Key]cacheEntry),
		stop:            make(chan struct{}),
		done:            make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.janitorInterval > 0 {
		go c.janitor()
	} else {
		close(c.done)
	}
	return c
}

func (c *MemoryCache) Get(_ context.Context, key Key) (*models.FeedPage, bool, error) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || !c.clock().Before(entry.expires) {
		return nil, false, nil
	}
	return entry.page.Clone(), true, nil
}

func (c *MemoryCache) Put(_ context.Context, key Key, page *models.FeedPage, ttl time.Duration) error {
	if ttl <= 0 || page == nil {
		return nil
	}
	entry := cacheEntry{page: page.Clone(), expires: c.clock().Add(ttl)}
	c.mu.Lock()
	c.entries[key] = entry
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) InvalidateAll(context.Context) error {
	c.mu.Lock()
	c.entries = make(map[Key]cacheEntry)
	c.mu.Unlock()
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Close stops the janitor. It is safe to call more than once.
func (c *MemoryCache) Close() {
	c.closeOnce.Do(func() { close(c.stop) })
	<-c.done
}

func (c *MemoryCache) janitor() {
	defer close(c.done)
	ticker := time.NewTicker(c.janitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.evictExpired()
		case <-c.stop:
			return
		}
	}
}

func (c *MemoryCache) evictExpired() {
	now := c.clock()
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, entry := range c.entries {
		if !now.Before(entry.expires) {
			delete(c.entries, key)
		}
	}
}
