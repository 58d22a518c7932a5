package resolve

import (
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Entry is a fetched resource.
type Entry struct {
	// URL is the location the body was read from after redirects and
	// overrides.
	URL         string
	ContentType string
	Links       []Link
	Body        []byte
	// Expires is when the entry goes stale. Zero means it stays fresh for
	// the lifetime of the cache.
	Expires time.Time
	// NoStore marks responses that must not be cached.
	NoStore bool
}

// Cache holds fetched resources for the duration of one or more
// conversions. Concurrent first requests for the same URL share a single
// fetch. The zero value is not usable; call NewCache.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*Entry
	group   singleflight.Group
	now     func() time.Time
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]*Entry), now: time.Now}
}

// Get returns the fresh entry for key.
func (c *Cache) Get(key string) (*Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if !e.Expires.IsZero() && !c.now().Before(e.Expires) {
		delete(c.entries, key)
		return nil, false
	}
	return e, true
}

// Put stores e under key unless it is marked NoStore.
func (c *Cache) Put(key string, e *Entry) {
	if e == nil || e.NoStore {
		return
	}
	c.mu.Lock()
	c.entries[key] = e
	c.mu.Unlock()
}

// Do returns the cached entry for key or calls fetch once, sharing the
// result with every caller that arrives while it runs.
func (c *Cache) Do(key string, fetch func() (*Entry, error)) (*Entry, error) {
	if e, ok := c.Get(key); ok {
		return e, nil
	}
	v, err, _ := c.group.Do(key, func() (any, error) {
		if e, ok := c.Get(key); ok {
			return e, nil
		}
		e, err := fetch()
		if err != nil {
			return nil, err
		}
		c.Put(key, e)
		return e, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Entry), nil
}

// Len returns the number of stored entries, stale ones included.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Purge drops every entry.
func (c *Cache) Purge() {
	c.mu.Lock()
	clear(c.entries)
	c.mu.Unlock()
}
