// ABOUTME: In-memory ConversationStore used by tests and the "memory" driver
// ABOUTME: Guards state with an RWMutex and hands out copies so callers cannot mutate it

package store

import (
	"context"
	"log/slog"
	"maps"
	"sort"
	"sync"

	"github.com/2389/parley-gateway/internal/auth"
)

type memThread struct {
	thread Thread
	seq    int64
}

type memItem struct {
	item *ThreadItem
	seq  int64
}

// MemoryStore is an in-memory ConversationStore implementation.
type MemoryStore struct {
	idSource

	mu          sync.RWMutex
	seq         int64
	threads     map[string]*memThread  // keyed by thread ID
	items       map[string]*memItem    // keyed by item ID
	attachments map[string]*Attachment // keyed by attachment ID
	newest      map[string]position    // keyed by thread ID, last appended position
	deleted     map[string]struct{}    // thread IDs removed by DeleteThread
	logger      *slog.Logger
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore(logger *slog.Logger) *MemoryStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &MemoryStore{
		threads:     make(map[string]*memThread),
		items:       make(map[string]*memItem),
		attachments: make(map[string]*Attachment),
		newest:      make(map[string]position),
		deleted:     make(map[string]struct{}),
		logger:      logger.With("component", "store", "driver", "memory"),
	}
}

func (m *MemoryStore) nextSeq() int64 {
	m.seq++
	return m.seq
}

func copyThread(t *Thread) *Thread {
	c := *t
	if t.Title != nil {
		title := *t.Title
		c.Title = &title
	}
	c.Metadata = maps.Clone(t.Metadata)
	if c.Metadata == nil {
		c.Metadata = map[string]any{}
	}
	return &c
}

func copyAttachment(a *Attachment) *Attachment {
	c := *a
	if a.ThreadID != nil {
		id := *a.ThreadID
		c.ThreadID = &id
	}
	c.Payload = append([]byte(nil), a.Payload...)
	return &c
}

// LoadThread returns the stored thread or a default one that is not persisted.
func (m *MemoryStore) LoadThread(ctx context.Context, threadID string) (*Thread, error) {
	if err := checkContext(ctx, "loading thread"); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.threads[threadID]
	if !ok {
		return defaultThread(ctx, threadID), nil
	}
	return copyThread(&t.thread), nil
}

// SaveThread upserts the full thread record.
func (m *MemoryStore) SaveThread(ctx context.Context, thread *Thread) error {
	if err := checkContext(ctx, "saving thread"); err != nil {
		return err
	}
	t := prepareThread(ctx, thread)

	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.threads[t.ID]; ok {
		existing.thread = *t
	} else {
		m.threads[t.ID] = &memThread{thread: *t, seq: m.nextSeq()}
	}

	m.logger.Debug("saved thread", "thread_id", t.ID)
	return nil
}

// LoadThreads lists threads, restricted to the caller's own when ctx has one.
func (m *MemoryStore) LoadThreads(ctx context.Context, limit int, after string, order Order) (*Page[*Thread], error) {
	if err := checkContext(ctx, "loading threads"); err != nil {
		return nil, err
	}
	limit = clampLimit(limit)

	var cursor *position
	if after != "" {
		p, err := decodeCursor(after)
		if err != nil {
			return nil, err
		}
		cursor = &p
	}
	owner := auth.UserID(ctx)

	m.mu.RLock()
	defer m.mu.RUnlock()

	rows := make([]*memThread, 0, len(m.threads))
	for _, t := range m.threads {
		if owner != "" && t.thread.OwnerID != owner {
			continue
		}
		rows = append(rows, t)
	}

	pos := func(t *memThread) position { return position{CreatedAt: t.thread.CreatedAt, Seq: t.seq} }
	rows = sliceAfter(rows, pos, cursor, order, limit)

	threads := make([]*Thread, len(rows))
	positions := make([]position, len(rows))
	for i, t := range rows {
		threads[i] = copyThread(&t.thread)
		positions[i] = pos(t)
	}
	return pageOf(threads, positions, limit), nil
}

// DeleteThread removes the thread and its items and records a tombstone.
// Attachments are left in place for OrphanedAttachments.
func (m *MemoryStore) DeleteThread(ctx context.Context, threadID string) error {
	if err := checkContext(ctx, "deleting thread"); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, it := range m.items {
		if it.item.ThreadID == threadID {
			delete(m.items, id)
			removed++
		}
	}
	delete(m.threads, threadID)
	delete(m.newest, threadID)
	m.deleted[threadID] = struct{}{}

	m.logger.Debug("deleted thread", "thread_id", threadID, "items", removed)
	return nil
}

// AppendThreadItem inserts a new item. An existing id yields ErrConflict.
func (m *MemoryStore) AppendThreadItem(ctx context.Context, threadID string, item *ThreadItem) error {
	if err := checkContext(ctx, "appending item"); err != nil {
		return err
	}
	c, err := prepareItem(ctx, threadID, item)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.items[c.ID]; exists {
		return wrapErr("appending item "+c.ID, ErrConflict)
	}

	if newest, ok := m.newest[threadID]; ok && c.CreatedAt.Before(newest.CreatedAt) {
		c.CreatedAt = newest.CreatedAt
	}
	row := &memItem{item: c, seq: m.nextSeq()}
	m.items[c.ID] = row
	m.trackNewest(threadID, row)

	item.CreatedAt = c.CreatedAt
	m.logger.Debug("appended item", "thread_id", threadID, "item_id", c.ID, "kind", c.Kind())
	return nil
}

// SaveItem replaces the full item, creating it when absent. The original
// insertion order is kept on replace.
func (m *MemoryStore) SaveItem(ctx context.Context, threadID, itemID string, item *ThreadItem) error {
	if err := checkContext(ctx, "saving item"); err != nil {
		return err
	}
	c, err := prepareItem(ctx, threadID, withItemID(item, itemID))
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.items[itemID]; ok {
		if item.CreatedAt.IsZero() {
			c.CreatedAt = existing.item.CreatedAt
		}
		existing.item = c
		m.trackNewest(threadID, existing)
	} else {
		row := &memItem{item: c, seq: m.nextSeq()}
		m.items[itemID] = row
		m.trackNewest(threadID, row)
	}

	m.logger.Debug("saved item", "thread_id", threadID, "item_id", itemID)
	return nil
}

func (m *MemoryStore) trackNewest(threadID string, row *memItem) {
	p := position{CreatedAt: row.item.CreatedAt, Seq: row.seq}
	if cur, ok := m.newest[threadID]; !ok || cur.before(p) {
		m.newest[threadID] = p
	}
}

// LoadThreadItems returns one page of a thread's items.
func (m *MemoryStore) LoadThreadItems(ctx context.Context, threadID, after string, limit int, order Order) (*Page[*ThreadItem], error) {
	if err := checkContext(ctx, "loading items"); err != nil {
		return nil, err
	}
	limit = clampLimit(limit)

	var cursor *position
	if after != "" {
		p, err := decodeCursor(after)
		if err != nil {
			return nil, err
		}
		cursor = &p
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var rows []*memItem
	for _, it := range m.items {
		if it.item.ThreadID == threadID {
			rows = append(rows, it)
		}
	}

	pos := func(it *memItem) position { return position{CreatedAt: it.item.CreatedAt, Seq: it.seq} }
	rows = sliceAfter(rows, pos, cursor, order, limit)

	items := make([]*ThreadItem, 0, len(rows))
	positions := make([]position, 0, len(rows))
	for _, it := range rows {
		c, err := cloneItem(it.item)
		if err != nil {
			return nil, err
		}
		items = append(items, c)
		positions = append(positions, pos(it))
	}
	return pageOf(items, positions, limit), nil
}

// LoadItem returns one item of a thread.
func (m *MemoryStore) LoadItem(ctx context.Context, threadID, itemID string) (*ThreadItem, error) {
	if err := checkContext(ctx, "loading item"); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	it, ok := m.items[itemID]
	if !ok || it.item.ThreadID != threadID {
		return nil, ErrNotFound
	}
	return cloneItem(it.item)
}

// DeleteThreadItem removes an item. Deleting a missing item is not an error.
func (m *MemoryStore) DeleteThreadItem(ctx context.Context, threadID, itemID string) error {
	if err := checkContext(ctx, "deleting item"); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if it, ok := m.items[itemID]; ok && it.item.ThreadID == threadID {
		delete(m.items, itemID)
	}
	return nil
}

// SaveAttachment upserts an attachment.
func (m *MemoryStore) SaveAttachment(ctx context.Context, attachment *Attachment) error {
	if err := checkContext(ctx, "saving attachment"); err != nil {
		return err
	}
	a := prepareAttachment(ctx, attachment)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.attachments[a.ID] = copyAttachment(a)
	return nil
}

// LoadAttachment returns an attachment or ErrNotFound.
func (m *MemoryStore) LoadAttachment(ctx context.Context, attachmentID string) (*Attachment, error) {
	if err := checkContext(ctx, "loading attachment"); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.attachments[attachmentID]
	if !ok {
		return nil, ErrNotFound
	}
	return copyAttachment(a), nil
}

// DeleteAttachment removes an attachment. Deleting a missing one is not an error.
func (m *MemoryStore) DeleteAttachment(ctx context.Context, attachmentID string) error {
	if err := checkContext(ctx, "deleting attachment"); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.attachments, attachmentID)
	return nil
}

// OrphanedAttachments lists attachments whose thread was deleted and not
// saved again, oldest first.
func (m *MemoryStore) OrphanedAttachments(ctx context.Context, limit int) ([]*Attachment, error) {
	if err := checkContext(ctx, "listing orphaned attachments"); err != nil {
		return nil, err
	}
	limit = clampLimit(limit)

	m.mu.RLock()
	defer m.mu.RUnlock()

	var orphans []*Attachment
	for _, a := range m.attachments {
		if a.ThreadID == nil {
			continue
		}
		if _, gone := m.deleted[*a.ThreadID]; !gone {
			continue
		}
		if _, ok := m.threads[*a.ThreadID]; ok {
			continue
		}
		orphans = append(orphans, copyAttachment(a))
	}
	sort.Slice(orphans, func(i, j int) bool {
		if !orphans[i].CreatedAt.Equal(orphans[j].CreatedAt) {
			return orphans[i].CreatedAt.Before(orphans[j].CreatedAt)
		}
		return orphans[i].ID < orphans[j].ID
	})
	if len(orphans) > limit {
		orphans = orphans[:limit]
	}
	return orphans, nil
}

// Close is a no-op for the memory store.
func (m *MemoryStore) Close() error {
	return nil
}

// sliceAfter sorts rows in the requested order, drops everything up to and
// including cursor, and keeps at most limit+1 rows.
func sliceAfter[T any](rows []T, pos func(T) position, cursor *position, order Order, limit int) []T {
	sort.Slice(rows, func(i, j int) bool {
		if order.desc() {
			return pos(rows[j]).before(pos(rows[i]))
		}
		return pos(rows[i]).before(pos(rows[j]))
	})

	out := rows[:0]
	for _, r := range rows {
		if cursor != nil {
			p := pos(r)
			if order.desc() && !p.before(*cursor) {
				continue
			}
			if !order.desc() && !cursor.before(p) {
				continue
			}
		}
		out = append(out, r)
		if len(out) > limit {
			break
		}
	}
	return out
}
