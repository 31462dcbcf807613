// ABOUTME: Tests for the request id claim cache
// ABOUTME: Validates claim/release, TTL expiry, capacity eviction, sweeping, and concurrency

package dedupe

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// fakeClock lets tests move time without sleeping.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func newTestCache(t *testing.T, ttl time.Duration, maxSize int) (*Cache, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := newCache(ttl, maxSize, clock.Now)
	t.Cleanup(c.Close)
	return c, clock
}

func TestCache_ClaimOnce(t *testing.T) {
	c, _ := newTestCache(t, time.Minute, 10)

	assert.True(t, c.Claim("req-1"))
	assert.False(t, c.Claim("req-1"), "second claim is a duplicate")
	assert.True(t, c.Seen("req-1"))
	assert.False(t, c.Seen("req-2"))
}

func TestCache_ClaimAfterExpiry(t *testing.T) {
	c, clock := newTestCache(t, time.Minute, 10)

	assert.True(t, c.Claim("req-1"))
	clock.Advance(59 * time.Second)
	assert.False(t, c.Claim("req-1"))

	clock.Advance(time.Second)
	assert.False(t, c.Seen("req-1"))
	assert.True(t, c.Claim("req-1"), "expired claim can be retaken")
	assert.Equal(t, 1, c.Len())
}

func TestCache_Release(t *testing.T) {
	c, _ := newTestCache(t, time.Minute, 10)

	assert.True(t, c.Claim("req-1"))
	c.Release("req-1")
	assert.False(t, c.Seen("req-1"))
	assert.True(t, c.Claim("req-1"))

	c.Release("never-claimed")
	assert.Equal(t, 1, c.Len())
}

func TestCache_EvictsOldestAtCapacity(t *testing.T) {
	c, clock := newTestCache(t, time.Hour, 3)

	for _, k := range []string{"a", "b", "c"} {
		assert.True(t, c.Claim(k))
		clock.Advance(time.Second)
	}
	assert.True(t, c.Claim("d"))

	assert.Equal(t, 3, c.Len())
	assert.False(t, c.Seen("a"), "oldest claim evicted")
	assert.True(t, c.Seen("b"))
	assert.True(t, c.Seen("d"))
}

func TestCache_UnboundedWhenMaxSizeZero(t *testing.T) {
	c, _ := newTestCache(t, time.Hour, 0)

	for i := 0; i < 500; i++ {
		c.Claim(Key("user", fmt.Sprintf("req-%d", i)))
	}
	assert.Equal(t, 500, c.Len())
}

func TestCache_Sweep(t *testing.T) {
	c, clock := newTestCache(t, time.Minute, 10)

	c.Claim("old-1")
	c.Claim("old-2")
	clock.Advance(30 * time.Second)
	c.Claim("fresh")
	clock.Advance(45 * time.Second)

	c.sweep()

	assert.Equal(t, 1, c.Len())
	assert.True(t, c.Seen("fresh"))
}

func TestKey_ScopesByCaller(t *testing.T) {
	c, _ := newTestCache(t, time.Minute, 10)

	assert.True(t, c.Claim(Key("alice", "req-1")))
	assert.True(t, c.Claim(Key("bob", "req-1")))
	assert.False(t, c.Claim(Key("alice", "req-1")))
}

func TestCache_ConcurrentClaims(t *testing.T) {
	c, _ := newTestCache(t, time.Minute, 100)

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if c.Claim("contended") {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load(), "exactly one goroutine owns the claim")
}

func TestCache_CloseIdempotent(t *testing.T) {
	c := New(time.Minute, 10)
	c.Close()
	c.Close()
}
