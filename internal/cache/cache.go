// Package cache holds rendered GET responses in memory for a bounded time.
package cache

import (
	"bytes"
	"net/http"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// HeaderName reports whether a response was served from the cache.
const HeaderName = "X-Cache"

// KeyPrefix is prepended to every cache key.
const KeyPrefix = "cache:"

type entry struct {
	status    int
	header    http.Header
	body      []byte
	expiresAt time.Time
}

// ResponseCache is a size-bounded LRU of responses with a TTL per entry.
// A nil *ResponseCache is valid and caches nothing.
type ResponseCache struct {
	lru      *expirable.LRU[string, entry]
	now      func() time.Time
	observer func(hit bool)
}

// Option configures a ResponseCache.
type Option func(*ResponseCache)

// WithClock overrides the time source used for per-entry expiry.
func WithClock(now func() time.Time) Option {
	return func(c *ResponseCache) {
		if now != nil {
			c.now = now
		}
	}
}

// WithObserver is called on every lookup.
func WithObserver(fn func(hit bool)) Option {
	return func(c *ResponseCache) {
		c.observer = fn
	}
}

// New returns a cache holding at most size entries, none of which outlive
// maxTTL.
func New(size int, maxTTL time.Duration, opts ...Option) *ResponseCache {
	if size <= 0 {
		size = 512
	}
	c := &ResponseCache{
		lru: expirable.NewLRU[string, entry](size, nil, maxTTL),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *ResponseCache) get(key string) (entry, bool) {
	if c == nil {
		return entry{}, false
	}
	e, ok := c.lru.Get(key)
	if ok && !c.now().Before(e.expiresAt) {
		c.lru.Remove(key)
		ok = false
	}
	if c.observer != nil {
		c.observer(ok)
	}
	return e, ok
}

func (c *ResponseCache) set(key string, e entry) {
	if c == nil {
		return
	}
	c.lru.Add(key, e)
}

// Len returns the number of cached entries.
func (c *ResponseCache) Len() int {
	if c == nil {
		return 0
	}
	return c.lru.Len()
}

// Invalidate removes every key matching pattern, where '*' matches any run
// of characters. It returns the number of removed entries.
func (c *ResponseCache) Invalidate(pattern string) int {
	if c == nil {
		return 0
	}
	removed := 0
	for _, key := range c.lru.Keys() {
		if Match(pattern, key) {
			if c.lru.Remove(key) {
				removed++
			}
		}
	}
	return removed
}

// Purge empties the cache.
func (c *ResponseCache) Purge() {
	if c == nil {
		return
	}
	c.lru.Purge()
}

// Match reports whether key matches pattern. '*' matches any sequence,
// including one containing '/'; every other byte matches itself.
func Match(pattern, key string) bool {
	p, k := 0, 0
	star, mark := -1, 0
	for k < len(key) {
		switch {
		case p < len(pattern) && pattern[p] == '*':
			star, mark = p, k
			p++
		case p < len(pattern) && pattern[p] == key[k]:
			p++
			k++
		case star >= 0:
			p = star + 1
			mark++
			k = mark
		default:
			return false
		}
	}
	for p < len(pattern) && pattern[p] == '*' {
		p++
	}
	return p == len(pattern)
}

// recorder tees the response into a buffer while writing it to the client.
type recorder struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (r *recorder) WriteHeader(status int) {
	if r.status == 0 {
		r.status = status
	}
	r.ResponseWriter.WriteHeader(status)
}

func (r *recorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}
