// ABOUTME: Behavioral test suite shared by every ConversationStore backend
// ABOUTME: Covers default threads, ordering with timestamp ties, cursors, conflicts, and cascades

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/parley-gateway/internal/auth"
)

var baseTime = time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

func callerCtx(userID string) context.Context {
	return auth.WithCaller(context.Background(), &auth.Caller{UserID: userID, Timestamp: baseTime})
}

func textItem(id, text string, at time.Time) *ThreadItem {
	return &ThreadItem{
		ID:        id,
		CreatedAt: at,
		Content:   MessageContent{Role: RoleUser, Text: text},
	}
}

// collectItems pages through a whole thread and returns ids in order.
func collectItems(t *testing.T, s ConversationStore, ctx context.Context, threadID string, limit int, order Order) []string {
	t.Helper()
	var ids []string
	cursor := ""
	for pages := 0; pages < 1000; pages++ {
		page, err := s.LoadThreadItems(ctx, threadID, cursor, limit, order)
		require.NoError(t, err)
		assert.LessOrEqual(t, len(page.Data), limit)
		for _, it := range page.Data {
			ids = append(ids, it.ID)
		}
		if !page.HasMore {
			assert.Empty(t, page.Cursor, "cursor must be empty on the last page")
			return ids
		}
		require.NotEmpty(t, page.Cursor)
		cursor = page.Cursor
	}
	t.Fatal("pagination did not terminate")
	return nil
}

// runStoreConformance exercises the ConversationStore contract against a
// fresh store from newStore for every subtest.
func runStoreConformance(t *testing.T, newStore func(t *testing.T) ConversationStore) {
	t.Run("LoadThread synthesizes a default without persisting", func(t *testing.T) {
		s := newStore(t)
		ctx := callerCtx("user-1")

		thread, err := s.LoadThread(ctx, "thread_missing")
		require.NoError(t, err)
		assert.Equal(t, "thread_missing", thread.ID)
		assert.Nil(t, thread.Title)
		assert.NotNil(t, thread.Metadata)
		assert.Empty(t, thread.Metadata)
		assert.False(t, thread.CreatedAt.IsZero())
		assert.True(t, thread.Synthesized())

		page, err := s.LoadThreads(ctx, 10, "", OrderAsc)
		require.NoError(t, err)
		assert.Empty(t, page.Data, "synthesized thread must not be stored")
	})

	t.Run("SaveThread round trips and stamps the owner", func(t *testing.T) {
		s := newStore(t)
		ctx := callerCtx("user-1")
		title := "Sunday slate"

		err := s.SaveThread(ctx, &Thread{
			ID:        "thread_a",
			Title:     &title,
			CreatedAt: baseTime,
			Metadata:  map[string]any{"sport": "nba", "legs": float64(2)},
		})
		require.NoError(t, err)

		got, err := s.LoadThread(ctx, "thread_a")
		require.NoError(t, err)
		require.NotNil(t, got.Title)
		assert.Equal(t, title, *got.Title)
		assert.True(t, baseTime.Equal(got.CreatedAt))
		assert.Equal(t, "nba", got.Metadata["sport"])
		assert.Equal(t, float64(2), got.Metadata["legs"])
		assert.Equal(t, "user-1", got.OwnerID)
		assert.False(t, got.Synthesized())
	})

	t.Run("SaveThread is last writer wins", func(t *testing.T) {
		s := newStore(t)
		ctx := callerCtx("user-1")
		first, second := "first", "second"

		require.NoError(t, s.SaveThread(ctx, &Thread{ID: "thread_a", Title: &first, CreatedAt: baseTime}))
		require.NoError(t, s.SaveThread(ctx, &Thread{ID: "thread_a", Title: &second, CreatedAt: baseTime, Metadata: map[string]any{"v": "2"}}))

		got, err := s.LoadThread(ctx, "thread_a")
		require.NoError(t, err)
		assert.Equal(t, "second", *got.Title)
		assert.Equal(t, "2", got.Metadata["v"])

		page, err := s.LoadThreads(ctx, 10, "", OrderAsc)
		require.NoError(t, err)
		assert.Len(t, page.Data, 1)
	})

	t.Run("pagination is complete across timestamp ties", func(t *testing.T) {
		s := newStore(t)
		ctx := callerCtx("user-1")

		var want []string
		for i := 0; i < 7; i++ {
			id := fmt.Sprintf("msg_%02d", i)
			want = append(want, id)
			require.NoError(t, s.AppendThreadItem(ctx, "thread_a", textItem(id, "same instant", baseTime)))
		}

		assert.Equal(t, want, collectItems(t, s, ctx, "thread_a", 3, OrderAsc))
		assert.Equal(t, want, collectItems(t, s, ctx, "thread_a", 1, OrderAsc))
		assert.Equal(t, want, collectItems(t, s, ctx, "thread_a", 7, OrderAsc))

		reversed := make([]string, len(want))
		for i, id := range want {
			reversed[len(want)-1-i] = id
		}
		assert.Equal(t, reversed, collectItems(t, s, ctx, "thread_a", 3, OrderDesc))
	})

	t.Run("pages split exactly at the limit", func(t *testing.T) {
		s := newStore(t)
		ctx := callerCtx("user-1")

		for i := 0; i < 4; i++ {
			at := baseTime.Add(time.Duration(i) * time.Second)
			require.NoError(t, s.AppendThreadItem(ctx, "thread_a", textItem(fmt.Sprintf("msg_%d", i), "x", at)))
		}

		page, err := s.LoadThreadItems(ctx, "thread_a", "", 2, OrderAsc)
		require.NoError(t, err)
		assert.Len(t, page.Data, 2)
		assert.True(t, page.HasMore)

		page, err = s.LoadThreadItems(ctx, "thread_a", page.Cursor, 2, OrderAsc)
		require.NoError(t, err)
		assert.Len(t, page.Data, 2)
		assert.False(t, page.HasMore)
		assert.Empty(t, page.Cursor)
		assert.Equal(t, "msg_3", page.Data[1].ID)
	})

	t.Run("limit defaults and caps", func(t *testing.T) {
		s := newStore(t)
		ctx := callerCtx("user-1")

		for i := 0; i < DefaultPageLimit+5; i++ {
			require.NoError(t, s.AppendThreadItem(ctx, "thread_a", textItem(fmt.Sprintf("msg_%03d", i), "x", baseTime)))
		}

		page, err := s.LoadThreadItems(ctx, "thread_a", "", 0, OrderAsc)
		require.NoError(t, err)
		assert.Len(t, page.Data, DefaultPageLimit)
		assert.True(t, page.HasMore)

		page, err = s.LoadThreadItems(ctx, "thread_a", "", MaxPageLimit*10, OrderAsc)
		require.NoError(t, err)
		assert.Len(t, page.Data, DefaultPageLimit+5)
		assert.False(t, page.HasMore)
	})

	t.Run("empty thread yields an empty page", func(t *testing.T) {
		s := newStore(t)

		page, err := s.LoadThreadItems(callerCtx("user-1"), "thread_none", "", 10, OrderAsc)
		require.NoError(t, err)
		assert.NotNil(t, page.Data)
		assert.Empty(t, page.Data)
		assert.False(t, page.HasMore)
		assert.Empty(t, page.Cursor)
	})

	t.Run("invalid cursor is rejected", func(t *testing.T) {
		s := newStore(t)
		ctx := callerCtx("user-1")

		for _, cursor := range []string{"!!!", "bm90LWEtY3Vyc29y", encodeRaw("2025-01-02T03:04:05.000000Z|abc")} {
			_, err := s.LoadThreadItems(ctx, "thread_a", cursor, 10, OrderAsc)
			assert.ErrorIs(t, err, ErrInvalidCursor, "cursor %q", cursor)

			_, err = s.LoadThreads(ctx, 10, cursor, OrderAsc)
			assert.ErrorIs(t, err, ErrInvalidCursor, "cursor %q", cursor)
		}
	})

	t.Run("AppendThreadItem rejects duplicate ids", func(t *testing.T) {
		s := newStore(t)
		ctx := callerCtx("user-1")

		require.NoError(t, s.AppendThreadItem(ctx, "thread_a", textItem("msg_1", "first", baseTime)))
		err := s.AppendThreadItem(ctx, "thread_a", textItem("msg_1", "again", baseTime))
		assert.ErrorIs(t, err, ErrConflict)

		// ids are global, not per thread
		err = s.AppendThreadItem(ctx, "thread_b", textItem("msg_1", "elsewhere", baseTime))
		assert.ErrorIs(t, err, ErrConflict)

		got, err := s.LoadItem(ctx, "thread_a", "msg_1")
		require.NoError(t, err)
		assert.Equal(t, "first", got.Content.(MessageContent).Text)
	})

	t.Run("AppendThreadItem keeps creation time non-decreasing", func(t *testing.T) {
		s := newStore(t)
		ctx := callerCtx("user-1")
		later := baseTime.Add(time.Minute)

		require.NoError(t, s.AppendThreadItem(ctx, "thread_a", textItem("msg_1", "later", later)))

		early := textItem("msg_2", "earlier clock", baseTime)
		require.NoError(t, s.AppendThreadItem(ctx, "thread_a", early))
		assert.True(t, later.Equal(early.CreatedAt), "append should raise the timestamp to the newest item")

		assert.Equal(t, []string{"msg_1", "msg_2"}, collectItems(t, s, ctx, "thread_a", 10, OrderAsc))
	})

	t.Run("AppendThreadItem fills id and timestamp", func(t *testing.T) {
		s := newStore(t)
		ctx := callerCtx("user-1")

		item := &ThreadItem{Content: WidgetContent{Widget: "parlay_builder", Payload: json.RawMessage(`{"decimal":3.83}`)}}
		require.NoError(t, s.AppendThreadItem(ctx, "thread_a", item))
		assert.Regexp(t, `^wdg_[0-9a-f]{32}$`, item.ID)
		assert.True(t, baseTime.Equal(item.CreatedAt), "zero creation time takes the caller timestamp")

		got, err := s.LoadItem(ctx, "thread_a", item.ID)
		require.NoError(t, err)
		assert.Equal(t, "thread_a", got.ThreadID)
		assert.Equal(t, KindWidget, got.Kind())
	})

	t.Run("AppendThreadItem rejects items without content", func(t *testing.T) {
		s := newStore(t)

		err := s.AppendThreadItem(callerCtx("user-1"), "thread_a", &ThreadItem{ID: "msg_1"})
		assert.ErrorIs(t, err, ErrInvalidItem)
	})

	t.Run("SaveItem replaces in place", func(t *testing.T) {
		s := newStore(t)
		ctx := callerCtx("user-1")

		for _, id := range []string{"msg_a", "msg_b", "msg_c"} {
			require.NoError(t, s.AppendThreadItem(ctx, "thread_a", textItem(id, "draft", baseTime)))
		}

		require.NoError(t, s.SaveItem(ctx, "thread_a", "msg_b", textItem("ignored", "final", baseTime)))

		got, err := s.LoadItem(ctx, "thread_a", "msg_b")
		require.NoError(t, err)
		assert.Equal(t, "msg_b", got.ID)
		assert.Equal(t, "final", got.Content.(MessageContent).Text)
		assert.Equal(t, []string{"msg_a", "msg_b", "msg_c"}, collectItems(t, s, ctx, "thread_a", 2, OrderAsc))
	})

	t.Run("SaveItem without a timestamp keeps the stored position", func(t *testing.T) {
		s := newStore(t)
		ctx := callerCtx("user-1")

		for i, id := range []string{"msg_a", "msg_b", "msg_c"} {
			require.NoError(t, s.AppendThreadItem(ctx, "thread_a", textItem(id, "draft", baseTime.Add(time.Duration(i)*time.Second))))
		}

		later := auth.WithCaller(context.Background(), &auth.Caller{UserID: "user-1", Timestamp: baseTime.Add(time.Hour)})
		require.NoError(t, s.SaveItem(later, "thread_a", "msg_a", &ThreadItem{Content: MessageContent{Role: RoleUser, Text: "edited"}}))

		got, err := s.LoadItem(ctx, "thread_a", "msg_a")
		require.NoError(t, err)
		assert.True(t, baseTime.Equal(got.CreatedAt), "stored creation time is kept, got %v", got.CreatedAt)
		assert.Equal(t, "edited", got.Content.(MessageContent).Text)
		assert.Equal(t, []string{"msg_a", "msg_b", "msg_c"}, collectItems(t, s, ctx, "thread_a", 2, OrderAsc))

		require.NoError(t, s.SaveItem(ctx, "thread_a", "msg_a", textItem("msg_a", "moved", baseTime.Add(time.Minute))))
		assert.Equal(t, []string{"msg_b", "msg_c", "msg_a"}, collectItems(t, s, ctx, "thread_a", 2, OrderAsc))

		assert.ErrorIs(t, s.SaveItem(ctx, "thread_a", "msg_x", nil), ErrInvalidItem)
	})

	t.Run("SaveItem creates when absent", func(t *testing.T) {
		s := newStore(t)
		ctx := callerCtx("user-1")

		require.NoError(t, s.SaveItem(ctx, "thread_a", "task_1", &ThreadItem{
			CreatedAt: baseTime,
			Content:   TaskContent{Title: "Pull odds", Status: "done"},
		}))

		got, err := s.LoadItem(ctx, "thread_a", "task_1")
		require.NoError(t, err)
		assert.Equal(t, TaskContent{Title: "Pull odds", Status: "done"}, got.Content)
	})

	t.Run("every content kind round trips", func(t *testing.T) {
		s := newStore(t)
		ctx := callerCtx("user-1")

		contents := []ItemContent{
			MessageContent{Role: RoleAssistant, Text: "Here is your parlay"},
			ToolCallContent{Name: "get_odds", CallID: "call_1", Arguments: json.RawMessage(`{"sport":"nfl"}`), Status: "completed"},
			TaskContent{Title: "Fetch lines", Status: "running"},
			WorkflowContent{Summary: "Research", Tasks: []TaskContent{{Title: "a"}, {Title: "b"}}, Expanded: true},
			AttachmentContent{AttachmentID: "atc_1", Name: "slip.png", MimeType: "image/png"},
			WidgetContent{Widget: "bet_analysis", Payload: json.RawMessage(`{"edge":5.6}`), CopyText: "+5.6%"},
		}

		for i, c := range contents {
			item := &ThreadItem{ID: fmt.Sprintf("%s_%d", c.Kind().Prefix(), i), CreatedAt: baseTime, Content: c}
			require.NoError(t, s.AppendThreadItem(ctx, "thread_a", item))
		}

		page, err := s.LoadThreadItems(ctx, "thread_a", "", 10, OrderAsc)
		require.NoError(t, err)
		require.Len(t, page.Data, len(contents))
		for i, item := range page.Data {
			assert.Equal(t, contents[i].Kind(), item.Kind())
			wantJSON, _ := json.Marshal(contents[i])
			gotJSON, _ := json.Marshal(item.Content)
			assert.JSONEq(t, string(wantJSON), string(gotJSON))
		}
	})

	t.Run("LoadItem reports not found", func(t *testing.T) {
		s := newStore(t)
		ctx := callerCtx("user-1")

		_, err := s.LoadItem(ctx, "thread_a", "msg_missing")
		assert.ErrorIs(t, err, ErrNotFound)

		require.NoError(t, s.AppendThreadItem(ctx, "thread_a", textItem("msg_1", "x", baseTime)))
		_, err = s.LoadItem(ctx, "thread_b", "msg_1")
		assert.ErrorIs(t, err, ErrNotFound, "item must belong to the requested thread")
	})

	t.Run("DeleteThreadItem is idempotent", func(t *testing.T) {
		s := newStore(t)
		ctx := callerCtx("user-1")

		require.NoError(t, s.AppendThreadItem(ctx, "thread_a", textItem("msg_1", "x", baseTime)))
		require.NoError(t, s.DeleteThreadItem(ctx, "thread_a", "msg_1"))
		require.NoError(t, s.DeleteThreadItem(ctx, "thread_a", "msg_1"))
		require.NoError(t, s.DeleteThreadItem(ctx, "thread_a", "never_existed"))

		_, err := s.LoadItem(ctx, "thread_a", "msg_1")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("LoadThreads filters by caller and paginates", func(t *testing.T) {
		s := newStore(t)
		alice := callerCtx("alice")
		bob := callerCtx("bob")

		for i := 0; i < 5; i++ {
			require.NoError(t, s.SaveThread(alice, &Thread{ID: fmt.Sprintf("thread_alice_%d", i), CreatedAt: baseTime}))
		}
		require.NoError(t, s.SaveThread(bob, &Thread{ID: "thread_bob", CreatedAt: baseTime}))

		var ids []string
		cursor := ""
		for {
			page, err := s.LoadThreads(alice, 2, cursor, OrderAsc)
			require.NoError(t, err)
			for _, th := range page.Data {
				assert.Equal(t, "alice", th.OwnerID)
				ids = append(ids, th.ID)
			}
			if !page.HasMore {
				break
			}
			cursor = page.Cursor
		}
		assert.Equal(t, []string{"thread_alice_0", "thread_alice_1", "thread_alice_2", "thread_alice_3", "thread_alice_4"}, ids)

		page, err := s.LoadThreads(bob, 10, "", OrderDesc)
		require.NoError(t, err)
		require.Len(t, page.Data, 1)
		assert.Equal(t, "thread_bob", page.Data[0].ID)

		page, err = s.LoadThreads(context.Background(), 10, "", OrderAsc)
		require.NoError(t, err)
		assert.Len(t, page.Data, 6, "no caller means no owner filter")
	})

	t.Run("DeleteThread cascades items and orphans attachments", func(t *testing.T) {
		s := newStore(t)
		ctx := callerCtx("user-1")
		threadID := "thread_a"
		otherID := "thread_b"

		require.NoError(t, s.SaveThread(ctx, &Thread{ID: threadID, CreatedAt: baseTime}))
		require.NoError(t, s.SaveThread(ctx, &Thread{ID: otherID, CreatedAt: baseTime}))
		require.NoError(t, s.AppendThreadItem(ctx, threadID, textItem("msg_1", "x", baseTime)))
		require.NoError(t, s.AppendThreadItem(ctx, threadID, textItem("msg_2", "y", baseTime)))
		require.NoError(t, s.AppendThreadItem(ctx, otherID, textItem("msg_3", "z", baseTime)))

		require.NoError(t, s.SaveAttachment(ctx, &Attachment{ID: "atc_orphan", ThreadID: &threadID, Payload: json.RawMessage(`{"name":"slip.png"}`), CreatedAt: baseTime}))
		require.NoError(t, s.SaveAttachment(ctx, &Attachment{ID: "atc_live", ThreadID: &otherID, CreatedAt: baseTime}))
		require.NoError(t, s.SaveAttachment(ctx, &Attachment{ID: "atc_pending", CreatedAt: baseTime}))

		orphans, err := s.OrphanedAttachments(ctx, 10)
		require.NoError(t, err)
		assert.Empty(t, orphans)

		require.NoError(t, s.DeleteThread(ctx, threadID))
		require.NoError(t, s.DeleteThread(ctx, threadID), "delete is idempotent")

		page, err := s.LoadThreadItems(ctx, threadID, "", 10, OrderAsc)
		require.NoError(t, err)
		assert.Empty(t, page.Data)

		_, err = s.LoadItem(ctx, otherID, "msg_3")
		assert.NoError(t, err, "other threads are untouched")

		att, err := s.LoadAttachment(ctx, "atc_orphan")
		require.NoError(t, err, "attachments survive thread deletion")
		assert.JSONEq(t, `{"name":"slip.png"}`, string(att.Payload))

		orphans, err = s.OrphanedAttachments(ctx, 10)
		require.NoError(t, err)
		require.Len(t, orphans, 1)
		assert.Equal(t, "atc_orphan", orphans[0].ID)

		thread, err := s.LoadThread(ctx, threadID)
		require.NoError(t, err)
		assert.Nil(t, thread.Title, "deleted thread falls back to a default")
	})

	t.Run("attachments of unsaved or recreated threads are not orphans", func(t *testing.T) {
		s := newStore(t)
		ctx := callerCtx("user-1")
		pending := "thread_pending"
		recreated := "thread_recreated"

		require.NoError(t, s.SaveAttachment(ctx, &Attachment{ID: "atc_pending", ThreadID: &pending, CreatedAt: baseTime}))

		require.NoError(t, s.SaveThread(ctx, &Thread{ID: recreated, CreatedAt: baseTime}))
		require.NoError(t, s.SaveAttachment(ctx, &Attachment{ID: "atc_recreated", ThreadID: &recreated, CreatedAt: baseTime}))
		require.NoError(t, s.DeleteThread(ctx, recreated))
		require.NoError(t, s.SaveThread(ctx, &Thread{ID: recreated, CreatedAt: baseTime}))

		orphans, err := s.OrphanedAttachments(ctx, 10)
		require.NoError(t, err)
		assert.Empty(t, orphans)

		require.NoError(t, s.DeleteThread(ctx, recreated))
		orphans, err = s.OrphanedAttachments(ctx, 10)
		require.NoError(t, err)
		require.Len(t, orphans, 1)
		assert.Equal(t, "atc_recreated", orphans[0].ID)
	})

	t.Run("attachments upsert and delete idempotently", func(t *testing.T) {
		s := newStore(t)
		ctx := callerCtx("user-1")

		_, err := s.LoadAttachment(ctx, "atc_1")
		assert.ErrorIs(t, err, ErrNotFound)

		require.NoError(t, s.SaveAttachment(ctx, &Attachment{ID: "atc_1", Payload: json.RawMessage(`{"v":1}`), CreatedAt: baseTime}))
		threadID := "thread_a"
		require.NoError(t, s.SaveAttachment(ctx, &Attachment{ID: "atc_1", ThreadID: &threadID, Payload: json.RawMessage(`{"v":2}`), CreatedAt: baseTime}))

		got, err := s.LoadAttachment(ctx, "atc_1")
		require.NoError(t, err)
		require.NotNil(t, got.ThreadID)
		assert.Equal(t, threadID, *got.ThreadID)
		assert.JSONEq(t, `{"v":2}`, string(got.Payload))
		assert.Equal(t, "user-1", got.OwnerID)
		assert.True(t, baseTime.Equal(got.CreatedAt))

		require.NoError(t, s.DeleteAttachment(ctx, "atc_1"))
		require.NoError(t, s.DeleteAttachment(ctx, "atc_1"))
		_, err = s.LoadAttachment(ctx, "atc_1")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("concurrent appends keep every item in order", func(t *testing.T) {
		s := newStore(t)
		ctx := callerCtx("user-1")

		const writers, perWriter = 8, 10
		var wg sync.WaitGroup
		errs := make(chan error, writers*perWriter)
		for w := 0; w < writers; w++ {
			wg.Add(1)
			go func(w int) {
				defer wg.Done()
				for i := 0; i < perWriter; i++ {
					item := textItem(fmt.Sprintf("msg_%d_%d", w, i), "x", time.Time{})
					errs <- s.AppendThreadItem(ctx, "thread_a", item)
				}
			}(w)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}

		ids := collectItems(t, s, ctx, "thread_a", 7, OrderAsc)
		assert.Len(t, ids, writers*perWriter)
		seen := make(map[string]bool, len(ids))
		for _, id := range ids {
			assert.False(t, seen[id], "duplicate %s", id)
			seen[id] = true
		}

		var prev time.Time
		cursor := ""
		for {
			page, err := s.LoadThreadItems(ctx, "thread_a", cursor, 25, OrderAsc)
			require.NoError(t, err)
			for _, it := range page.Data {
				assert.False(t, it.CreatedAt.Before(prev))
				prev = it.CreatedAt
			}
			if !page.HasMore {
				break
			}
			cursor = page.Cursor
		}
	})

	t.Run("generated ids are prefixed and unique", func(t *testing.T) {
		s := newStore(t)
		ctx := callerCtx("user-1")

		threadID := s.GenerateThreadID(ctx)
		assert.Regexp(t, `^thread_[0-9a-f]{32}$`, threadID)

		seen := map[string]bool{}
		for _, kind := range []ItemKind{KindMessage, KindToolCall, KindTask, KindWorkflow, KindAttachment, KindWidget} {
			id := s.GenerateItemID(ctx, kind, &Thread{ID: threadID})
			assert.Regexp(t, "^"+kind.Prefix()+`_[0-9a-f]{32}$`, id)
			assert.False(t, seen[id])
			seen[id] = true
		}
	})
}
