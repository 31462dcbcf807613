// ABOUTME: Record preparation shared by every backend before a write
// ABOUTME: Fills defaults from the caller context and normalizes timestamps

package store

import (
	"context"
	"fmt"

	"github.com/2389/parley-gateway/internal/auth"
)

// defaultThread is what LoadThread returns for an id that was never saved.
func defaultThread(ctx context.Context, threadID string) *Thread {
	return &Thread{
		ID:        threadID,
		CreatedAt: normalizeTime(auth.Now(ctx)),
		Metadata:  map[string]any{},
		OwnerID:   auth.UserID(ctx),

		synthesized: true,
	}
}

// prepareThread returns a copy of thread ready to store.
func prepareThread(ctx context.Context, thread *Thread) *Thread {
	t := copyThread(thread)
	t.synthesized = false
	if t.CreatedAt.IsZero() {
		t.CreatedAt = auth.Now(ctx)
	}
	t.CreatedAt = normalizeTime(t.CreatedAt)
	if t.OwnerID == "" {
		t.OwnerID = auth.UserID(ctx)
	}
	return t
}

// prepareItem validates item and returns a detached copy bound to threadID.
// A missing id is generated and written back to item.
func prepareItem(ctx context.Context, threadID string, item *ThreadItem) (*ThreadItem, error) {
	if threadID == "" {
		return nil, fmt.Errorf("%w: thread id required", ErrInvalidItem)
	}
	if item == nil || item.Content == nil {
		return nil, fmt.Errorf("%w: content required", ErrInvalidItem)
	}
	if !item.Kind().Valid() {
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidItem, item.Kind())
	}
	if item.ID == "" {
		item.ID = NewItemID(item.Kind())
	}

	c, err := cloneItem(item)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidItem, err)
	}
	c.ThreadID = threadID
	if c.CreatedAt.IsZero() {
		c.CreatedAt = auth.Now(ctx)
	}
	c.CreatedAt = normalizeTime(c.CreatedAt)
	return c, nil
}

// withItemID returns a shallow copy of item carrying id, or nil for nil.
func withItemID(item *ThreadItem, id string) *ThreadItem {
	if item == nil {
		return nil
	}
	c := *item
	c.ID = id
	return &c
}

// prepareAttachment returns a copy of attachment ready to store.
func prepareAttachment(ctx context.Context, attachment *Attachment) *Attachment {
	a := copyAttachment(attachment)
	if a.ID == "" {
		a.ID = NewAttachmentID()
		attachment.ID = a.ID
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = auth.Now(ctx)
	}
	a.CreatedAt = normalizeTime(a.CreatedAt)
	if a.OwnerID == "" {
		a.OwnerID = auth.UserID(ctx)
	}
	if len(a.Payload) == 0 {
		a.Payload = []byte("{}")
	}
	return a
}
