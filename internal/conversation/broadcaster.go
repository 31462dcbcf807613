// ABOUTME: In-memory fan-out of appended thread items to live subscribers
// ABOUTME: Slow subscribers lose items rather than block the writer

package conversation

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/2389/parley-gateway/internal/store"
)

// subscriberBufferSize is the channel buffer for each subscriber.
const subscriberBufferSize = 64

// Subscription delivers items appended to one thread. Items is closed when the
// subscription ends.
type Subscription struct {
	ID       string
	ThreadID string
	Items    <-chan *store.ThreadItem
}

// ItemBroadcaster provides pub/sub for thread items after they are persisted.
// A published item is already durable; delivery is best effort and readers
// that miss items can page History from their last seen cursor.
type ItemBroadcaster struct {
	mu     sync.RWMutex
	subs   map[string]map[string]chan *store.ThreadItem // threadID -> subID -> ch
	closed bool
	logger *slog.Logger
}

// NewItemBroadcaster creates a broadcaster. Pass nil logger for default.
func NewItemBroadcaster(logger *slog.Logger) *ItemBroadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &ItemBroadcaster{
		subs:   make(map[string]map[string]chan *store.ThreadItem),
		logger: logger.With("component", "broadcaster"),
	}
}

// Subscribe registers for items on threadID until ctx is done or Unsubscribe
// is called. Subscribing to a closed broadcaster yields an already closed channel.
func (b *ItemBroadcaster) Subscribe(ctx context.Context, threadID string) *Subscription {
	ch := make(chan *store.ThreadItem, subscriberBufferSize)
	sub := &Subscription{ID: uuid.NewString(), ThreadID: threadID, Items: ch}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return sub
	}
	if b.subs[threadID] == nil {
		b.subs[threadID] = make(map[string]chan *store.ThreadItem)
	}
	b.subs[threadID][sub.ID] = ch
	b.mu.Unlock()

	b.logger.Debug("subscriber added", "thread_id", threadID, "sub_id", sub.ID)

	go func() {
		<-ctx.Done()
		b.Unsubscribe(sub)
	}()

	return sub
}

// Publish delivers item to every subscriber of item.ThreadID without blocking.
// It returns the number of subscribers that received it.
func (b *ItemBroadcaster) Publish(item *store.ThreadItem) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	delivered := 0
	for subID, ch := range b.subs[item.ThreadID] {
		select {
		case ch <- item:
			delivered++
		default:
			b.logger.Debug("dropped item for slow subscriber",
				"thread_id", item.ThreadID,
				"item_id", item.ID,
				"sub_id", subID)
		}
	}
	return delivered
}

// Subscribers returns the number of live subscriptions on threadID.
func (b *ItemBroadcaster) Subscribers(threadID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[threadID])
}

// Unsubscribe ends sub and closes its channel. Repeated calls are no-ops.
func (b *ItemBroadcaster) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subs[sub.ThreadID]
	ch, ok := subs[sub.ID]
	if !ok {
		return
	}
	delete(subs, sub.ID)
	close(ch)
	if len(subs) == 0 {
		delete(b.subs, sub.ThreadID)
	}

	b.logger.Debug("subscriber removed", "thread_id", sub.ThreadID, "sub_id", sub.ID)
}

// Close ends every subscription.
func (b *ItemBroadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for threadID, subs := range b.subs {
		for _, ch := range subs {
			close(ch)
		}
		delete(b.subs, threadID)
	}
	b.closed = true

	b.logger.Debug("broadcaster closed")
}
