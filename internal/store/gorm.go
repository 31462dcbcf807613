// ABOUTME: gorm implementation of ConversationStore for networked databases
// ABOUTME: Runs on Postgres in production and on gorm's sqlite dialect in tests

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/2389/parley-gateway/internal/auth"
)

// threadRecord is the gorm model for threads. CreatedUS mirrors CreatedAt in
// microseconds and is the ordering column, so every dialect compares it exactly.
type threadRecord struct {
	Seq       int64                              `gorm:"primaryKey;autoIncrement"`
	ID        string                             `gorm:"column:id;size:64;not null;uniqueIndex"`
	Title     *string                            `gorm:"size:512"`
	OwnerID   string                             `gorm:"size:128;not null;default:'';index:idx_threads_owner_order,priority:1"`
	CreatedAt time.Time                          `gorm:"not null;autoCreateTime:false"`
	CreatedUS int64                              `gorm:"column:created_us;not null;index:idx_threads_owner_order,priority:2"`
	Metadata  datatypes.JSONType[map[string]any] `gorm:"not null"`
}

func (threadRecord) TableName() string {
	return "threads"
}

type itemRecord struct {
	Seq       int64          `gorm:"primaryKey;autoIncrement"`
	ID        string         `gorm:"column:id;size:64;not null;uniqueIndex"`
	ThreadID  string         `gorm:"size:64;not null;index:idx_thread_items_order,priority:1"`
	Kind      string         `gorm:"size:16;not null"`
	CreatedAt time.Time      `gorm:"not null;autoCreateTime:false"`
	CreatedUS int64          `gorm:"column:created_us;not null;index:idx_thread_items_order,priority:2"`
	Content   datatypes.JSON `gorm:"not null"`
}

func (itemRecord) TableName() string {
	return "thread_items"
}

type attachmentRecord struct {
	ID        string         `gorm:"primaryKey;size:64"`
	ThreadID  *string        `gorm:"size:64;index"`
	OwnerID   string         `gorm:"size:128;not null;default:''"`
	CreatedAt time.Time      `gorm:"not null;autoCreateTime:false"`
	Payload   datatypes.JSON `gorm:"not null"`
}

func (attachmentRecord) TableName() string {
	return "attachments"
}

// deletedThreadRecord is a tombstone written by DeleteThread.
type deletedThreadRecord struct {
	ID        string    `gorm:"primaryKey;size:64"`
	RemovedAt time.Time `gorm:"not null"`
}

func (deletedThreadRecord) TableName() string {
	return "deleted_threads"
}

// GormStore implements ConversationStore on top of gorm.
type GormStore struct {
	idSource

	db     *gorm.DB
	logger *slog.Logger
}

// OpenPostgres connects to dsn and migrates the schema.
func OpenPostgres(dsn string, logger *slog.Logger) (*GormStore, error) {
	return NewGormStore(postgres.Open(dsn), logger)
}

// NewGormStore opens dialector and migrates the schema.
func NewGormStore(dialector gorm.Dialector, logger *slog.Logger) (*GormStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "store", "driver", dialector.Name())

	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger: gormlogger.New(
			slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
			gormlogger.Config{
				SlowThreshold:             500 * time.Millisecond,
				IgnoreRecordNotFoundError: true,
				LogLevel:                  gormlogger.Warn,
			},
		),
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.AutoMigrate(&threadRecord{}, &itemRecord{}, &attachmentRecord{}, &deletedThreadRecord{}); err != nil {
		return nil, fmt.Errorf("migrating schema: %w", err)
	}

	logger.Info("gorm store initialized")
	return &GormStore{db: db, logger: logger}, nil
}

// Close closes the underlying connection pool
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("getting db: %w", err)
	}
	s.logger.Info("closing gorm store")
	return sqlDB.Close()
}

func fromMicros(us int64) time.Time {
	return time.UnixMicro(us).UTC()
}

func (r *threadRecord) toThread() *Thread {
	metadata := r.Metadata.Data()
	if metadata == nil {
		metadata = map[string]any{}
	}
	return &Thread{
		ID:        r.ID,
		Title:     r.Title,
		CreatedAt: fromMicros(r.CreatedUS),
		Metadata:  metadata,
		OwnerID:   r.OwnerID,
	}
}

func (r *itemRecord) toItem() (*ThreadItem, error) {
	content, err := decodeContent(ItemKind(r.Kind), r.Content)
	if err != nil {
		return nil, err
	}
	return &ThreadItem{
		ID:        r.ID,
		ThreadID:  r.ThreadID,
		CreatedAt: fromMicros(r.CreatedUS),
		Content:   content,
	}, nil
}

func (r *attachmentRecord) toAttachment() *Attachment {
	return &Attachment{
		ID:        r.ID,
		ThreadID:  r.ThreadID,
		Payload:   []byte(r.Payload),
		CreatedAt: r.CreatedAt.UTC(),
		OwnerID:   r.OwnerID,
	}
}

func keysetOrder(order Order) clause.OrderBy {
	desc := order.desc()
	return clause.OrderBy{Columns: []clause.OrderByColumn{
		{Column: clause.Column{Name: "created_us"}, Desc: desc},
		{Column: clause.Column{Name: "seq"}, Desc: desc},
	}}
}

// afterCursor narrows q to rows past the cursor in the given order.
func afterCursor(q *gorm.DB, after string, order Order) (*gorm.DB, error) {
	if after == "" {
		return q, nil
	}
	p, err := decodeCursor(after)
	if err != nil {
		return nil, err
	}
	us := p.CreatedAt.UnixMicro()
	if order.desc() {
		return q.Where("(created_us < ? OR (created_us = ? AND seq < ?))", us, us, p.Seq), nil
	}
	return q.Where("(created_us > ? OR (created_us = ? AND seq > ?))", us, us, p.Seq), nil
}

// LoadThread returns the stored thread or a default one that is not persisted.
func (s *GormStore) LoadThread(ctx context.Context, threadID string) (*Thread, error) {
	var rec threadRecord
	err := s.db.WithContext(ctx).Where("id = ?", threadID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return defaultThread(ctx, threadID), nil
	}
	if err != nil {
		return nil, wrapErr("loading thread", err)
	}
	return rec.toThread(), nil
}

// SaveThread upserts the full thread record.
func (s *GormStore) SaveThread(ctx context.Context, thread *Thread) error {
	t := prepareThread(ctx, thread)
	rec := threadRecord{
		ID:        t.ID,
		Title:     t.Title,
		OwnerID:   t.OwnerID,
		CreatedAt: t.CreatedAt,
		CreatedUS: t.CreatedAt.UnixMicro(),
		Metadata:  datatypes.NewJSONType(t.Metadata),
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"title", "owner_id", "created_at", "created_us", "metadata"}),
	}).Create(&rec).Error
	if err != nil {
		return wrapErr("saving thread", err)
	}

	s.logger.Debug("saved thread", "thread_id", t.ID, "owner_id", t.OwnerID)
	return nil
}

// LoadThreads lists threads, restricted to the caller's own when ctx has one.
func (s *GormStore) LoadThreads(ctx context.Context, limit int, after string, order Order) (*Page[*Thread], error) {
	limit = clampLimit(limit)

	q := s.db.WithContext(ctx).Model(&threadRecord{})
	if owner := auth.UserID(ctx); owner != "" {
		q = q.Where("owner_id = ?", owner)
	}
	q, err := afterCursor(q, after, order)
	if err != nil {
		return nil, err
	}

	var recs []threadRecord
	if err := q.Clauses(keysetOrder(order)).Limit(limit + 1).Find(&recs).Error; err != nil {
		return nil, wrapErr("querying threads", err)
	}

	threads := make([]*Thread, len(recs))
	positions := make([]position, len(recs))
	for i := range recs {
		threads[i] = recs[i].toThread()
		positions[i] = position{CreatedAt: threads[i].CreatedAt, Seq: recs[i].Seq}
	}
	return pageOf(threads, positions, limit), nil
}

// DeleteThread removes the thread and its items and records a tombstone, in
// one transaction.
func (s *GormStore) DeleteThread(ctx context.Context, threadID string) error {
	var removed int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("thread_id = ?", threadID).Delete(&itemRecord{})
		if res.Error != nil {
			return res.Error
		}
		removed = res.RowsAffected
		if err := tx.Where("id = ?", threadID).Delete(&threadRecord{}).Error; err != nil {
			return err
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"removed_at"}),
		}).Create(&deletedThreadRecord{ID: threadID, RemovedAt: time.Now().UTC()}).Error
	})
	if err != nil {
		return wrapErr("deleting thread", err)
	}

	s.logger.Debug("deleted thread", "thread_id", threadID, "items", removed)
	return nil
}

// AppendThreadItem inserts a new item. An existing id yields ErrConflict.
// A creation time earlier than the thread's newest item is raised to it.
func (s *GormStore) AppendThreadItem(ctx context.Context, threadID string, item *ThreadItem) error {
	c, err := prepareItem(ctx, threadID, item)
	if err != nil {
		return err
	}
	kind, content, err := encodeContent(c.Content)
	if err != nil {
		return err
	}

	rec := itemRecord{
		ID:        c.ID,
		ThreadID:  threadID,
		Kind:      string(kind),
		CreatedUS: c.CreatedAt.UnixMicro(),
		Content:   datatypes.JSON(content),
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Serialize appends per thread so the newest-item check holds.
		if tx.Dialector.Name() == "postgres" {
			if err := tx.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", threadID).Error; err != nil {
				return err
			}
		}

		var newest sql.NullInt64
		row := tx.Model(&itemRecord{}).Select("MAX(created_us)").Where("thread_id = ?", threadID).Row()
		if err := row.Scan(&newest); err != nil {
			return err
		}
		if newest.Valid && newest.Int64 > rec.CreatedUS {
			rec.CreatedUS = newest.Int64
		}
		rec.CreatedAt = fromMicros(rec.CreatedUS)

		return tx.Create(&rec).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || isConstraintViolation(err) {
			return wrapErr("appending item "+c.ID, ErrConflict)
		}
		return wrapErr("appending item", err)
	}

	item.CreatedAt = rec.CreatedAt
	s.logger.Debug("appended item", "thread_id", threadID, "item_id", c.ID, "kind", kind)
	return nil
}

// SaveItem replaces the full item, creating it when absent.
func (s *GormStore) SaveItem(ctx context.Context, threadID, itemID string, item *ThreadItem) error {
	c, err := prepareItem(ctx, threadID, withItemID(item, itemID))
	if err != nil {
		return err
	}
	kind, content, err := encodeContent(c.Content)
	if err != nil {
		return err
	}

	rec := itemRecord{
		ID:        itemID,
		ThreadID:  threadID,
		Kind:      string(kind),
		CreatedAt: c.CreatedAt,
		CreatedUS: c.CreatedAt.UnixMicro(),
		Content:   datatypes.JSON(content),
	}
	updates := []string{"thread_id", "kind", "content"}
	if !item.CreatedAt.IsZero() {
		updates = append(updates, "created_at", "created_us")
	}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns(updates),
	}).Create(&rec).Error
	if err != nil {
		return wrapErr("saving item", err)
	}

	s.logger.Debug("saved item", "thread_id", threadID, "item_id", itemID, "kind", kind)
	return nil
}

// LoadThreadItems returns one page of a thread's items.
func (s *GormStore) LoadThreadItems(ctx context.Context, threadID, after string, limit int, order Order) (*Page[*ThreadItem], error) {
	limit = clampLimit(limit)

	q := s.db.WithContext(ctx).Model(&itemRecord{}).Where("thread_id = ?", threadID)
	q, err := afterCursor(q, after, order)
	if err != nil {
		return nil, err
	}

	var recs []itemRecord
	if err := q.Clauses(keysetOrder(order)).Limit(limit + 1).Find(&recs).Error; err != nil {
		return nil, wrapErr("querying items", err)
	}

	items := make([]*ThreadItem, 0, len(recs))
	positions := make([]position, 0, len(recs))
	for i := range recs {
		item, err := recs[i].toItem()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
		positions = append(positions, position{CreatedAt: item.CreatedAt, Seq: recs[i].Seq})
	}
	return pageOf(items, positions, limit), nil
}

// LoadItem returns one item of a thread.
func (s *GormStore) LoadItem(ctx context.Context, threadID, itemID string) (*ThreadItem, error) {
	var rec itemRecord
	err := s.db.WithContext(ctx).Where("id = ? AND thread_id = ?", itemID, threadID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, wrapErr("loading item", err)
	}
	return rec.toItem()
}

// DeleteThreadItem removes an item. Deleting a missing item is not an error.
func (s *GormStore) DeleteThreadItem(ctx context.Context, threadID, itemID string) error {
	err := s.db.WithContext(ctx).Where("id = ? AND thread_id = ?", itemID, threadID).Delete(&itemRecord{}).Error
	if err != nil {
		return wrapErr("deleting item", err)
	}
	return nil
}

// SaveAttachment upserts an attachment.
func (s *GormStore) SaveAttachment(ctx context.Context, attachment *Attachment) error {
	a := prepareAttachment(ctx, attachment)
	rec := attachmentRecord{
		ID:        a.ID,
		ThreadID:  a.ThreadID,
		OwnerID:   a.OwnerID,
		CreatedAt: a.CreatedAt,
		Payload:   datatypes.JSON(a.Payload),
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"thread_id", "owner_id", "created_at", "payload"}),
	}).Create(&rec).Error
	if err != nil {
		return wrapErr("saving attachment", err)
	}

	s.logger.Debug("saved attachment", "attachment_id", a.ID)
	return nil
}

// LoadAttachment returns an attachment or ErrNotFound.
func (s *GormStore) LoadAttachment(ctx context.Context, attachmentID string) (*Attachment, error) {
	var rec attachmentRecord
	err := s.db.WithContext(ctx).Where("id = ?", attachmentID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, wrapErr("loading attachment", err)
	}
	return rec.toAttachment(), nil
}

// DeleteAttachment removes an attachment. Deleting a missing one is not an error.
func (s *GormStore) DeleteAttachment(ctx context.Context, attachmentID string) error {
	if err := s.db.WithContext(ctx).Where("id = ?", attachmentID).Delete(&attachmentRecord{}).Error; err != nil {
		return wrapErr("deleting attachment", err)
	}
	return nil
}

// OrphanedAttachments lists attachments whose thread was deleted and not
// saved again, oldest first.
func (s *GormStore) OrphanedAttachments(ctx context.Context, limit int) ([]*Attachment, error) {
	var recs []attachmentRecord
	err := s.db.WithContext(ctx).
		Table("attachments AS a").
		Select("a.*").
		Joins("JOIN deleted_threads d ON d.id = a.thread_id").
		Joins("LEFT JOIN threads t ON t.id = a.thread_id").
		Where("t.id IS NULL").
		Order("a.created_at ASC, a.id ASC").
		Limit(clampLimit(limit)).
		Find(&recs).Error
	if err != nil {
		return nil, wrapErr("querying orphaned attachments", err)
	}

	out := make([]*Attachment, len(recs))
	for i := range recs {
		out[i] = recs[i].toAttachment()
	}
	return out, nil
}
