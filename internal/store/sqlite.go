// ABOUTME: SQLite implementation of ConversationStore using modernc.org/sqlite
// ABOUTME: Provides thread, item and attachment persistence with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/2389/parley-gateway/internal/auth"
)

// SQLiteStore implements ConversationStore using SQLite
type SQLiteStore struct {
	idSource

	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "store", "driver", "sqlite")

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// The append-path timestamp check relies on a single writer.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("applying %q: %w", p, err)
		}
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS threads (
			seq        INTEGER PRIMARY KEY AUTOINCREMENT,
			id         TEXT NOT NULL UNIQUE,
			title      TEXT,
			owner_id   TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			metadata   TEXT NOT NULL DEFAULT '{}'
		);

		CREATE INDEX IF NOT EXISTS idx_threads_order ON threads(created_at, seq);
		CREATE INDEX IF NOT EXISTS idx_threads_owner ON threads(owner_id, created_at, seq);

		-- Items may reference a thread that was never saved, so there is no
		-- foreign key to threads.
		CREATE TABLE IF NOT EXISTS thread_items (
			seq        INTEGER PRIMARY KEY AUTOINCREMENT,
			id         TEXT NOT NULL UNIQUE,
			thread_id  TEXT NOT NULL,
			kind       TEXT NOT NULL,
			created_at TEXT NOT NULL,
			content    TEXT NOT NULL,

			CHECK (kind IN ('message', 'tool_call', 'task', 'workflow', 'attachment', 'widget'))
		);

		CREATE INDEX IF NOT EXISTS idx_thread_items_order ON thread_items(thread_id, created_at, seq);

		CREATE TABLE IF NOT EXISTS attachments (
			id         TEXT PRIMARY KEY,
			thread_id  TEXT,
			owner_id   TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			payload    TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_attachments_thread ON attachments(thread_id);

		-- Threads removed by DeleteThread. Only their attachments are orphans;
		-- an attachment may name a thread that has not been saved yet.
		CREATE TABLE IF NOT EXISTS deleted_threads (
			id         TEXT PRIMARY KEY,
			deleted_at TEXT NOT NULL
		);
	`

	_, err := s.db.Exec(schema)
	return err
}

// runMigrations applies additive column changes to databases created by
// earlier versions. SQLite has no ADD COLUMN IF NOT EXISTS, so each column is
// checked first.
func (s *SQLiteStore) runMigrations() error {
	migrations := []struct {
		table  string
		column string
		apply  string
	}{
		{
			table:  "threads",
			column: "owner_id",
			apply:  `ALTER TABLE threads ADD COLUMN owner_id TEXT NOT NULL DEFAULT ''`,
		},
		{
			table:  "attachments",
			column: "owner_id",
			apply:  `ALTER TABLE attachments ADD COLUMN owner_id TEXT NOT NULL DEFAULT ''`,
		},
	}

	for _, m := range migrations {
		var exists int
		err := s.db.QueryRow(`SELECT 1 FROM pragma_table_info(?) WHERE name = ?`, m.table, m.column).Scan(&exists)
		if err == nil {
			continue
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("checking %s.%s: %w", m.table, m.column, err)
		}
		if _, err := s.db.Exec(m.apply); err != nil {
			return fmt.Errorf("adding %s column to %s: %w", m.column, m.table, err)
		}
		s.logger.Info("applied migration", "column", m.column, "table", m.table)
	}

	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

// LoadThread returns the stored thread or a default one that is not persisted.
func (s *SQLiteStore) LoadThread(ctx context.Context, threadID string) (*Thread, error) {
	query := `
		SELECT seq, id, title, owner_id, created_at, metadata
		FROM threads
		WHERE id = ?
	`

	t, _, err := scanThread(s.db.QueryRowContext(ctx, query, threadID))
	if errors.Is(err, sql.ErrNoRows) {
		return defaultThread(ctx, threadID), nil
	}
	if err != nil {
		return nil, wrapErr("loading thread", err)
	}
	return t, nil
}

// SaveThread upserts the full thread record. The insertion sequence of an
// existing thread is kept.
func (s *SQLiteStore) SaveThread(ctx context.Context, thread *Thread) error {
	t := prepareThread(ctx, thread)
	metadata, err := json.Marshal(t.Metadata)
	if err != nil {
		return fmt.Errorf("encoding thread metadata: %w", err)
	}

	query := `
		INSERT INTO threads (id, title, owner_id, created_at, metadata)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			owner_id = excluded.owner_id,
			created_at = excluded.created_at,
			metadata = excluded.metadata
	`

	_, err = s.db.ExecContext(ctx, query, t.ID, t.Title, t.OwnerID, formatTime(t.CreatedAt), string(metadata))
	if err != nil {
		return wrapErr("saving thread", err)
	}

	s.logger.Debug("saved thread", "thread_id", t.ID, "owner_id", t.OwnerID)
	return nil
}

// LoadThreads lists threads, restricted to the caller's own when ctx has one.
func (s *SQLiteStore) LoadThreads(ctx context.Context, limit int, after string, order Order) (*Page[*Thread], error) {
	limit = clampLimit(limit)

	var args []any
	query := `
		SELECT seq, id, title, owner_id, created_at, metadata
		FROM threads
		WHERE 1 = 1
	`

	if owner := auth.UserID(ctx); owner != "" {
		query += ` AND owner_id = ?`
		args = append(args, owner)
	}

	cond, cargs, err := cursorCondition(after, order)
	if err != nil {
		return nil, err
	}
	query += cond + orderClause(order) + ` LIMIT ?`
	args = append(args, cargs...)
	args = append(args, limit+1)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapErr("querying threads", err)
	}
	defer rows.Close()

	var threads []*Thread
	var positions []position
	for rows.Next() {
		t, seq, err := scanThread(rows)
		if err != nil {
			return nil, wrapErr("scanning thread row", err)
		}
		threads = append(threads, t)
		positions = append(positions, position{CreatedAt: t.CreatedAt, Seq: seq})
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("iterating thread rows", err)
	}

	return pageOf(threads, positions, limit), nil
}

// DeleteThread removes the thread and its items and records a tombstone, in
// one transaction. Attachments that reference the thread are left for
// OrphanedAttachments.
func (s *SQLiteStore) DeleteThread(ctx context.Context, threadID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapErr("beginning delete", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM thread_items WHERE thread_id = ?`, threadID)
	if err != nil {
		return wrapErr("deleting thread items", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM threads WHERE id = ?`, threadID); err != nil {
		return wrapErr("deleting thread", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO deleted_threads (id, deleted_at) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET deleted_at = excluded.deleted_at
	`, threadID, formatTime(time.Now())); err != nil {
		return wrapErr("recording deleted thread", err)
	}
	if err := tx.Commit(); err != nil {
		return wrapErr("committing delete", err)
	}

	removed, _ := res.RowsAffected()
	s.logger.Debug("deleted thread", "thread_id", threadID, "items", removed)
	return nil
}

// AppendThreadItem inserts a new item. An existing id yields ErrConflict.
// A creation time earlier than the thread's newest item is raised to it.
func (s *SQLiteStore) AppendThreadItem(ctx context.Context, threadID string, item *ThreadItem) error {
	c, err := prepareItem(ctx, threadID, item)
	if err != nil {
		return err
	}
	kind, content, err := encodeContent(c.Content)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapErr("beginning append", err)
	}
	defer tx.Rollback()

	var newest sql.NullString
	err = tx.QueryRowContext(ctx, `SELECT MAX(created_at) FROM thread_items WHERE thread_id = ?`, threadID).Scan(&newest)
	if err != nil {
		return wrapErr("reading newest item", err)
	}
	createdAt := formatTime(c.CreatedAt)
	if newest.Valid && newest.String > createdAt {
		createdAt = newest.String
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO thread_items (id, thread_id, kind, created_at, content)
		VALUES (?, ?, ?, ?, ?)
	`, c.ID, threadID, string(kind), createdAt, string(content))
	if err != nil {
		if isConstraintViolation(err) {
			return wrapErr("appending item "+c.ID, ErrConflict)
		}
		return wrapErr("appending item", err)
	}
	if err := tx.Commit(); err != nil {
		return wrapErr("committing append", err)
	}

	stored, err := parseTime(createdAt)
	if err != nil {
		return fmt.Errorf("parsing stored timestamp: %w", err)
	}
	item.CreatedAt = stored

	s.logger.Debug("appended item", "thread_id", threadID, "item_id", c.ID, "kind", kind)
	return nil
}

// SaveItem replaces the full item, creating it when absent. The original
// insertion sequence is kept on replace.
func (s *SQLiteStore) SaveItem(ctx context.Context, threadID, itemID string, item *ThreadItem) error {
	c, err := prepareItem(ctx, threadID, withItemID(item, itemID))
	if err != nil {
		return err
	}
	kind, content, err := encodeContent(c.Content)
	if err != nil {
		return err
	}

	// A zero CreatedAt keeps a replaced item where it already sorts.
	updates := []string{"thread_id = excluded.thread_id", "kind = excluded.kind", "content = excluded.content"}
	if !item.CreatedAt.IsZero() {
		updates = append(updates, "created_at = excluded.created_at")
	}
	query := `
		INSERT INTO thread_items (id, thread_id, kind, created_at, content)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET ` + strings.Join(updates, ", ")
	_, err = s.db.ExecContext(ctx, query, itemID, threadID, string(kind), formatTime(c.CreatedAt), string(content))
	if err != nil {
		return wrapErr("saving item", err)
	}

	s.logger.Debug("saved item", "thread_id", threadID, "item_id", itemID, "kind", kind)
	return nil
}

// LoadThreadItems returns one page of a thread's items.
func (s *SQLiteStore) LoadThreadItems(ctx context.Context, threadID, after string, limit int, order Order) (*Page[*ThreadItem], error) {
	limit = clampLimit(limit)

	query := `
		SELECT seq, id, thread_id, kind, created_at, content
		FROM thread_items
		WHERE thread_id = ?
	`
	args := []any{threadID}

	cond, cargs, err := cursorCondition(after, order)
	if err != nil {
		return nil, err
	}
	query += cond + orderClause(order) + ` LIMIT ?`
	args = append(args, cargs...)
	args = append(args, limit+1)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapErr("querying items", err)
	}
	defer rows.Close()

	var items []*ThreadItem
	var positions []position
	for rows.Next() {
		item, seq, err := scanItem(rows)
		if err != nil {
			return nil, wrapErr("scanning item row", err)
		}
		items = append(items, item)
		positions = append(positions, position{CreatedAt: item.CreatedAt, Seq: seq})
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("iterating item rows", err)
	}

	return pageOf(items, positions, limit), nil
}

// LoadItem returns one item of a thread.
func (s *SQLiteStore) LoadItem(ctx context.Context, threadID, itemID string) (*ThreadItem, error) {
	query := `
		SELECT seq, id, thread_id, kind, created_at, content
		FROM thread_items
		WHERE id = ? AND thread_id = ?
	`

	item, _, err := scanItem(s.db.QueryRowContext(ctx, query, itemID, threadID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, wrapErr("loading item", err)
	}
	return item, nil
}

// DeleteThreadItem removes an item. Deleting a missing item is not an error.
func (s *SQLiteStore) DeleteThreadItem(ctx context.Context, threadID, itemID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM thread_items WHERE id = ? AND thread_id = ?`, itemID, threadID)
	if err != nil {
		return wrapErr("deleting item", err)
	}
	return nil
}

// SaveAttachment upserts an attachment.
func (s *SQLiteStore) SaveAttachment(ctx context.Context, attachment *Attachment) error {
	a := prepareAttachment(ctx, attachment)

	query := `
		INSERT INTO attachments (id, thread_id, owner_id, created_at, payload)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			thread_id = excluded.thread_id,
			owner_id = excluded.owner_id,
			created_at = excluded.created_at,
			payload = excluded.payload
	`
	_, err := s.db.ExecContext(ctx, query, a.ID, a.ThreadID, a.OwnerID, formatTime(a.CreatedAt), string(a.Payload))
	if err != nil {
		return wrapErr("saving attachment", err)
	}

	s.logger.Debug("saved attachment", "attachment_id", a.ID)
	return nil
}

// LoadAttachment returns an attachment or ErrNotFound.
func (s *SQLiteStore) LoadAttachment(ctx context.Context, attachmentID string) (*Attachment, error) {
	query := `
		SELECT id, thread_id, owner_id, created_at, payload
		FROM attachments
		WHERE id = ?
	`

	a, err := scanAttachment(s.db.QueryRowContext(ctx, query, attachmentID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, wrapErr("loading attachment", err)
	}
	return a, nil
}

// DeleteAttachment removes an attachment. Deleting a missing one is not an error.
func (s *SQLiteStore) DeleteAttachment(ctx context.Context, attachmentID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM attachments WHERE id = ?`, attachmentID); err != nil {
		return wrapErr("deleting attachment", err)
	}
	return nil
}

// OrphanedAttachments lists attachments whose thread was deleted and not
// saved again, oldest first.
func (s *SQLiteStore) OrphanedAttachments(ctx context.Context, limit int) ([]*Attachment, error) {
	query := `
		SELECT a.id, a.thread_id, a.owner_id, a.created_at, a.payload
		FROM attachments a
		JOIN deleted_threads d ON d.id = a.thread_id
		LEFT JOIN threads t ON t.id = a.thread_id
		WHERE t.id IS NULL
		ORDER BY a.created_at ASC, a.id ASC
		LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, query, clampLimit(limit))
	if err != nil {
		return nil, wrapErr("querying orphaned attachments", err)
	}
	defer rows.Close()

	var out []*Attachment
	for rows.Next() {
		a, err := scanAttachment(rows)
		if err != nil {
			return nil, wrapErr("scanning attachment row", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("iterating attachment rows", err)
	}
	return out, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

func scanThread(row rowScanner) (*Thread, int64, error) {
	var (
		t         Thread
		seq       int64
		title     sql.NullString
		createdAt string
		metadata  string
	)
	if err := row.Scan(&seq, &t.ID, &title, &t.OwnerID, &createdAt, &metadata); err != nil {
		return nil, 0, err
	}
	if title.Valid {
		t.Title = &title.String
	}

	var err error
	t.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, 0, fmt.Errorf("parsing created_at: %w", err)
	}
	if err := json.Unmarshal([]byte(metadata), &t.Metadata); err != nil {
		return nil, 0, fmt.Errorf("decoding metadata: %w", err)
	}
	if t.Metadata == nil {
		t.Metadata = map[string]any{}
	}
	return &t, seq, nil
}

func scanItem(row rowScanner) (*ThreadItem, int64, error) {
	var (
		item      ThreadItem
		seq       int64
		kind      string
		createdAt string
		content   string
	)
	if err := row.Scan(&seq, &item.ID, &item.ThreadID, &kind, &createdAt, &content); err != nil {
		return nil, 0, err
	}

	var err error
	item.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, 0, fmt.Errorf("parsing created_at: %w", err)
	}
	item.Content, err = decodeContent(ItemKind(kind), []byte(content))
	if err != nil {
		return nil, 0, err
	}
	return &item, seq, nil
}

func scanAttachment(row rowScanner) (*Attachment, error) {
	var (
		a         Attachment
		threadID  sql.NullString
		createdAt string
		payload   string
	)
	if err := row.Scan(&a.ID, &threadID, &a.OwnerID, &createdAt, &payload); err != nil {
		return nil, err
	}
	if threadID.Valid {
		a.ThreadID = &threadID.String
	}

	var err error
	a.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	a.Payload = json.RawMessage(payload)
	return &a, nil
}

// cursorCondition builds the keyset predicate that resumes after a cursor.
func cursorCondition(after string, order Order) (string, []any, error) {
	if after == "" {
		return "", nil, nil
	}
	p, err := decodeCursor(after)
	if err != nil {
		return "", nil, err
	}
	ts := formatTime(p.CreatedAt)
	op := ">"
	if order.desc() {
		op = "<"
	}
	cond := fmt.Sprintf(` AND (created_at %s ? OR (created_at = ? AND seq %s ?))`, op, op)
	return cond, []any{ts, ts, p.Seq}, nil
}

func orderClause(order Order) string {
	dir := "ASC"
	if order.desc() {
		dir = "DESC"
	}
	return " ORDER BY " + strings.Join([]string{"created_at " + dir, "seq " + dir}, ", ")
}
