// Package listcache caches listing pages per (bucket, prefix).
//
// Entries are never patched. Writers call Invalidate and the next reader
// refetches.
package listcache

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/3leaps/bucketnav/pkg/browse"
)

// DefaultTTL is used when New is given a zero TTL.
const DefaultTTL = 30 * time.Second

// Key identifies one cached page.
type Key struct {
	Bucket string
	Prefix browse.Prefix
	// Token is the continuation token; empty for the first page.
	Token string
}

func (k Key) String() string {
	return fmt.Sprintf("%s\x00%s\x00%s", k.Bucket, k.Prefix, k.Token)
}

// Fetcher loads a page from the backend.
type Fetcher func(ctx context.Context) (browse.Listing, error)

type entry struct {
	listing browse.Listing
	expires time.Time
}

// Option configures a Cache.
type Option func(*Cache)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Cache) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

// Cache is safe for concurrent use.
type Cache struct {
	ttl    time.Duration
	now    func() time.Time
	logger *zap.Logger

	mu      sync.Mutex
	entries map[Key]entry
	// epoch increments on every invalidation. A fetch started in an older
	// epoch must not store its result.
	epoch uint64

	flights singleflight.Group
}

// New returns a cache. A negative ttl disables expiry.
func New(ttl time.Duration, opts ...Option) *Cache {
	if ttl == 0 {
		ttl = DefaultTTL
	}
	c := &Cache{
		ttl:     ttl,
		now:     time.Now,
		logger:  zap.NewNop(),
		entries: map[Key]entry{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Peek returns a live entry without fetching.
func (c *Cache) Peek(k Key) (browse.Listing, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[k]
	if !ok || c.expiredLocked(e) {
		return browse.Listing{}, false
	}
	return e.listing, true
}

// Get returns the cached page for k or loads it with fetch.
//
// Concurrent misses for the same key share one fetch. Errors are not cached.
func (c *Cache) Get(ctx context.Context, k Key, fetch Fetcher) (browse.Listing, error) {
	c.mu.Lock()
	if e, ok := c.entries[k]; ok && !c.expiredLocked(e) {
		c.mu.Unlock()
		return e.listing, nil
	}
	epoch := c.epoch
	c.mu.Unlock()

	// Keying the flight on the epoch keeps post-invalidation callers off a
	// fetch that started before it.
	flight := fmt.Sprintf("%d\x00%s", epoch, k)
	ch := c.flights.DoChan(flight, func() (any, error) {
		l, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		c.store(k, l, epoch)
		return l, nil
	})

	select {
	case <-ctx.Done():
		return browse.Listing{}, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return browse.Listing{}, r.Err
		}
		return r.Val.(browse.Listing), nil
	}
}

func (c *Cache) store(k Key, l browse.Listing, epoch uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if epoch != c.epoch {
		c.logger.Debug("discarding stale listing", zap.String("bucket", k.Bucket), zap.String("prefix", k.Prefix.String()))
		return
	}
	c.entries[k] = entry{listing: l, expires: c.now().Add(c.ttl)}
}

// Invalidate drops every page of prefix and of every prefix below it.
// The root prefix drops the whole bucket.
func (c *Cache) Invalidate(bucket string, prefix browse.Prefix) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.epoch++
	n := 0
	for k := range c.entries {
		if k.Bucket == bucket && strings.HasPrefix(k.Prefix.String(), prefix.String()) {
			delete(c.entries, k)
			n++
		}
	}
	c.logger.Debug("listing cache invalidated",
		zap.String("bucket", bucket),
		zap.String("prefix", prefix.String()),
		zap.Int("dropped", n),
	)
	return n
}

// Purge empties the cache.
func (c *Cache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.epoch++
	c.entries = map[Key]entry{}
}

// Len returns the number of stored pages, expired ones included.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache) expiredLocked(e entry) bool {
	return c.ttl > 0 && !c.now().Before(e.expires)
}
