// ABOUTME: Identifier generation for threads and items
// ABOUTME: Ids are a kind prefix plus a time-ordered UUIDv7 in hex

package store

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

// NewThreadID returns a fresh thread id of the form thread_<hex>
func NewThreadID() string {
	return "thread_" + newHex()
}

// NewItemID returns a fresh item id prefixed by the kind, e.g. msg_<hex>
func NewItemID(kind ItemKind) string {
	return kind.Prefix() + "_" + newHex()
}

// NewAttachmentID returns a fresh attachment id
func NewAttachmentID() string {
	return "atc_" + newHex()
}

func newHex() string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return strings.ReplaceAll(id.String(), "-", "")
}

// idSource supplies the id half of ConversationStore to each backend.
type idSource struct{}

// GenerateThreadID returns a new globally unique thread id
func (idSource) GenerateThreadID(_ context.Context) string {
	return NewThreadID()
}

// GenerateItemID returns a new globally unique item id for kind
func (idSource) GenerateItemID(_ context.Context, kind ItemKind, _ *Thread) string {
	return NewItemID(kind)
}
