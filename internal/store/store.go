// ABOUTME: ConversationStore interface and data types for parley-gateway persistence
// ABOUTME: Defines Thread, ThreadItem, Attachment, Page and the store error taxonomy

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Store errors. Backends wrap these so callers can match with errors.Is.
var (
	// ErrNotFound is returned when a requested item or attachment does not exist
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when appending an item whose id already exists
	ErrConflict = errors.New("already exists")

	// ErrUnavailable is returned when the backing storage is unreachable or timed out
	ErrUnavailable = errors.New("store unavailable")

	// ErrInvalidCursor is returned when a pagination cursor cannot be decoded
	ErrInvalidCursor = errors.New("invalid cursor")

	// ErrInvalidItem is returned for items without content or thread
	ErrInvalidItem = errors.New("invalid item")
)

// Pagination bounds
const (
	DefaultPageLimit = 50
	MaxPageLimit     = 500
)

// Order is the direction of a paginated listing
type Order string

const (
	OrderAsc  Order = "asc"
	OrderDesc Order = "desc"
)

// ParseOrder accepts "asc" or "desc" (case-insensitive). Empty means ascending.
func ParseOrder(s string) (Order, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "asc":
		return OrderAsc, nil
	case "desc":
		return OrderDesc, nil
	default:
		return "", fmt.Errorf("unknown order %q", s)
	}
}

func (o Order) desc() bool {
	return o == OrderDesc
}

// clampLimit applies the default page size and the hard cap
func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultPageLimit
	}
	if limit > MaxPageLimit {
		return MaxPageLimit
	}
	return limit
}

// Thread is a conversation. LoadThread returns a synthesized Thread for an
// unknown id; it is only durable after SaveThread.
type Thread struct {
	ID        string         `json:"id"`
	Title     *string        `json:"title,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	Metadata  map[string]any `json:"metadata"`
	OwnerID   string         `json:"owner_id,omitempty"`

	synthesized bool
}

// Synthesized reports whether LoadThread made t up for an id that has no
// stored record. Saving t persists it.
func (t *Thread) Synthesized() bool {
	return t.synthesized
}

// ThreadItem is one entry in a thread. Content carries the kind-specific payload.
type ThreadItem struct {
	ID        string      `json:"id"`
	ThreadID  string      `json:"thread_id"`
	CreatedAt time.Time   `json:"created_at"`
	Content   ItemContent `json:"-"`
}

// Kind returns the content kind, or "" when the item has no content.
func (i *ThreadItem) Kind() ItemKind {
	if i.Content == nil {
		return ""
	}
	return i.Content.Kind()
}

// Attachment describes an out-of-band file. ThreadID may be attached later.
type Attachment struct {
	ID        string          `json:"id"`
	ThreadID  *string         `json:"thread_id,omitempty"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
	OwnerID   string          `json:"owner_id,omitempty"`
}

// Page is one slice of an ordered listing. Cursor is empty when HasMore is false.
type Page[T any] struct {
	Data    []T    `json:"data"`
	HasMore bool   `json:"has_more"`
	Cursor  string `json:"cursor,omitempty"`
}

// ConversationStore persists threads, their items, and attachments.
//
// Listings are ordered by (created_at, seq) where seq is the order in which
// the backend first stored the record. The caller in ctx (see auth.Caller)
// scopes LoadThreads and stamps ownership on saves.
type ConversationStore interface {
	// Identifiers
	GenerateThreadID(ctx context.Context) string
	GenerateItemID(ctx context.Context, kind ItemKind, thread *Thread) string

	// Threads
	LoadThread(ctx context.Context, threadID string) (*Thread, error)
	SaveThread(ctx context.Context, thread *Thread) error
	LoadThreads(ctx context.Context, limit int, after string, order Order) (*Page[*Thread], error)
	DeleteThread(ctx context.Context, threadID string) error

	// Items. On success AppendThreadItem updates item.ID and item.CreatedAt
	// to the values that were stored.
	AppendThreadItem(ctx context.Context, threadID string, item *ThreadItem) error
	SaveItem(ctx context.Context, threadID, itemID string, item *ThreadItem) error
	LoadThreadItems(ctx context.Context, threadID, after string, limit int, order Order) (*Page[*ThreadItem], error)
	LoadItem(ctx context.Context, threadID, itemID string) (*ThreadItem, error)
	DeleteThreadItem(ctx context.Context, threadID, itemID string) error

	// Attachments
	SaveAttachment(ctx context.Context, attachment *Attachment) error
	LoadAttachment(ctx context.Context, attachmentID string) (*Attachment, error)
	DeleteAttachment(ctx context.Context, attachmentID string) error
	OrphanedAttachments(ctx context.Context, limit int) ([]*Attachment, error)

	// Close releases any resources held by the store
	Close() error
}
