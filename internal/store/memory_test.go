// ABOUTME: Tests for the in-memory store
// ABOUTME: Runs the shared conformance suite and checks copy isolation

package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_Conformance(t *testing.T) {
	runStoreConformance(t, func(t *testing.T) ConversationStore {
		return NewMemoryStore(nil)
	})
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	s := NewMemoryStore(nil)
	ctx := callerCtx("user-1")

	require.NoError(t, s.SaveThread(ctx, &Thread{ID: "thread_a", CreatedAt: baseTime, Metadata: map[string]any{"k": "v"}}))

	got, err := s.LoadThread(ctx, "thread_a")
	require.NoError(t, err)
	got.Metadata["k"] = "mutated"

	again, err := s.LoadThread(ctx, "thread_a")
	require.NoError(t, err)
	assert.Equal(t, "v", again.Metadata["k"])
}

func TestMemoryStore_CanceledContext(t *testing.T) {
	s := NewMemoryStore(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.LoadItem(ctx, "thread_a", "msg_1")
	assert.ErrorIs(t, err, ErrUnavailable, "a canceled context is not a missing record")
	assert.ErrorIs(t, err, context.Canceled)
}
