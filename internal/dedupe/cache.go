// ABOUTME: Thread-safe TTL cache of request ids for idempotent writes
// ABOUTME: A request id may be claimed once per TTL window and released if the write fails

package dedupe

import (
	"container/list"
	"sync"
	"time"
)

// claim stores when a key was taken and its place in the eviction order.
type claim struct {
	at      time.Time
	element *list.Element
}

// Cache tracks claimed request keys. Entries expire after the TTL and the
// oldest entry is evicted once maxSize is reached.
type Cache struct {
	mu      sync.Mutex
	claims  map[string]*claim
	order   *list.List // keys, oldest at front
	ttl     time.Duration
	maxSize int
	now     func() time.Time
	done    chan struct{}
	closed  bool
}

// New creates a cache with the given TTL and capacity. A non-positive maxSize
// means unbounded. A background goroutine sweeps expired entries until Close.
func New(ttl time.Duration, maxSize int) *Cache {
	return newCache(ttl, maxSize, time.Now)
}

func newCache(ttl time.Duration, maxSize int, now func() time.Time) *Cache {
	c := &Cache{
		claims:  make(map[string]*claim),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		now:     now,
		done:    make(chan struct{}),
	}
	go c.sweepLoop(sweepInterval(ttl))
	return c
}

// Key scopes a request id to a caller so two users cannot collide.
func Key(scope, requestID string) string {
	return scope + "\x00" + requestID
}

func sweepInterval(ttl time.Duration) time.Duration {
	if ttl <= 0 || ttl > time.Minute {
		return time.Minute
	}
	return ttl
}

func (c *Cache) live(cl *claim, now time.Time) bool {
	return now.Sub(cl.at) < c.ttl
}

// Seen reports whether key holds an unexpired claim.
func (c *Cache) Seen(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	cl, ok := c.claims[key]
	return ok && c.live(cl, c.now())
}

// Claim takes key if it is free or expired and reports whether the caller now
// owns it. A false result means the request is a duplicate.
func (c *Cache) Claim(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if cl, ok := c.claims[key]; ok {
		if c.live(cl, now) {
			return false
		}
		cl.at = now
		c.order.MoveToBack(cl.element)
		return true
	}

	if c.maxSize > 0 && len(c.claims) >= c.maxSize {
		c.evictOldest()
	}
	c.claims[key] = &claim{at: now, element: c.order.PushBack(key)}
	return true
}

// Release drops a claim so the same request can be retried, typically after
// the write it guarded failed.
func (c *Cache) Release(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cl, ok := c.claims[key]; ok {
		c.order.Remove(cl.element)
		delete(c.claims, key)
	}
}

// Len returns the number of tracked claims, including expired ones not yet swept.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.claims)
}

// evictOldest must be called with mu held.
func (c *Cache) evictOldest() {
	front := c.order.Front()
	if front == nil {
		return
	}
	key, _ := front.Value.(string)
	c.order.Remove(front)
	delete(c.claims, key)
}

func (c *Cache) sweepLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.sweep()
		case <-c.done:
			return
		}
	}
}

// sweep removes expired claims. Claims are ordered by time so it stops at
// the first live one.
func (c *Cache) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for e := c.order.Front(); e != nil; {
		key, _ := e.Value.(string)
		if c.live(c.claims[key], now) {
			return
		}
		next := e.Next()
		c.order.Remove(e)
		delete(c.claims, key)
		e = next
	}
}

// Close stops the background sweep. It is safe to call multiple times.
func (c *Cache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		close(c.done)
		c.closed = true
	}
}
