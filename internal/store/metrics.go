// ABOUTME: Prometheus instrumentation for any ConversationStore
// ABOUTME: Counts operations by result and records their latency

package store

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// storeMetrics holds the collectors registered by Instrument.
type storeMetrics struct {
	// Labels: op, result (ok, not_found, conflict, unavailable, invalid, error)
	operations *prometheus.CounterVec
	// Labels: op
	duration *prometheus.HistogramVec
}

func newStoreMetrics(reg prometheus.Registerer) *storeMetrics {
	factory := promauto.With(reg)
	return &storeMetrics{
		operations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "parley",
				Subsystem: "store",
				Name:      "operations_total",
				Help:      "Total number of conversation store operations by result",
			},
			[]string{"op", "result"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "parley",
				Subsystem: "store",
				Name:      "operation_duration_seconds",
				Help:      "Duration of conversation store operations in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"op"},
		),
	}
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrUnavailable):
		return "unavailable"
	case errors.Is(err, ErrInvalidCursor), errors.Is(err, ErrInvalidItem):
		return "invalid"
	default:
		return "error"
	}
}

func (m *storeMetrics) observe(op string, start time.Time, err error) {
	m.duration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	m.operations.WithLabelValues(op, resultLabel(err)).Inc()
}

type instrumentedStore struct {
	inner   ConversationStore
	metrics *storeMetrics
}

// Instrument wraps inner with operation metrics registered on reg. A nil reg
// uses the default Prometheus registry.
func Instrument(inner ConversationStore, reg prometheus.Registerer) ConversationStore {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return &instrumentedStore{inner: inner, metrics: newStoreMetrics(reg)}
}

func (s *instrumentedStore) GenerateThreadID(ctx context.Context) string {
	return s.inner.GenerateThreadID(ctx)
}

func (s *instrumentedStore) GenerateItemID(ctx context.Context, kind ItemKind, thread *Thread) string {
	return s.inner.GenerateItemID(ctx, kind, thread)
}

func (s *instrumentedStore) LoadThread(ctx context.Context, threadID string) (t *Thread, err error) {
	defer func(start time.Time) { s.metrics.observe("load_thread", start, err) }(time.Now())
	return s.inner.LoadThread(ctx, threadID)
}

func (s *instrumentedStore) SaveThread(ctx context.Context, thread *Thread) (err error) {
	defer func(start time.Time) { s.metrics.observe("save_thread", start, err) }(time.Now())
	return s.inner.SaveThread(ctx, thread)
}

func (s *instrumentedStore) LoadThreads(ctx context.Context, limit int, after string, order Order) (p *Page[*Thread], err error) {
	defer func(start time.Time) { s.metrics.observe("load_threads", start, err) }(time.Now())
	return s.inner.LoadThreads(ctx, limit, after, order)
}

func (s *instrumentedStore) DeleteThread(ctx context.Context, threadID string) (err error) {
	defer func(start time.Time) { s.metrics.observe("delete_thread", start, err) }(time.Now())
	return s.inner.DeleteThread(ctx, threadID)
}

func (s *instrumentedStore) AppendThreadItem(ctx context.Context, threadID string, item *ThreadItem) (err error) {
	defer func(start time.Time) { s.metrics.observe("append_thread_item", start, err) }(time.Now())
	return s.inner.AppendThreadItem(ctx, threadID, item)
}

func (s *instrumentedStore) SaveItem(ctx context.Context, threadID, itemID string, item *ThreadItem) (err error) {
	defer func(start time.Time) { s.metrics.observe("save_item", start, err) }(time.Now())
	return s.inner.SaveItem(ctx, threadID, itemID, item)
}

func (s *instrumentedStore) LoadThreadItems(ctx context.Context, threadID, after string, limit int, order Order) (p *Page[*ThreadItem], err error) {
	defer func(start time.Time) { s.metrics.observe("load_thread_items", start, err) }(time.Now())
	return s.inner.LoadThreadItems(ctx, threadID, after, limit, order)
}

func (s *instrumentedStore) LoadItem(ctx context.Context, threadID, itemID string) (item *ThreadItem, err error) {
	defer func(start time.Time) { s.metrics.observe("load_item", start, err) }(time.Now())
	return s.inner.LoadItem(ctx, threadID, itemID)
}

func (s *instrumentedStore) DeleteThreadItem(ctx context.Context, threadID, itemID string) (err error) {
	defer func(start time.Time) { s.metrics.observe("delete_thread_item", start, err) }(time.Now())
	return s.inner.DeleteThreadItem(ctx, threadID, itemID)
}

func (s *instrumentedStore) SaveAttachment(ctx context.Context, attachment *Attachment) (err error) {
	defer func(start time.Time) { s.metrics.observe("save_attachment", start, err) }(time.Now())
	return s.inner.SaveAttachment(ctx, attachment)
}

func (s *instrumentedStore) LoadAttachment(ctx context.Context, attachmentID string) (a *Attachment, err error) {
	defer func(start time.Time) { s.metrics.observe("load_attachment", start, err) }(time.Now())
	return s.inner.LoadAttachment(ctx, attachmentID)
}

func (s *instrumentedStore) DeleteAttachment(ctx context.Context, attachmentID string) (err error) {
	defer func(start time.Time) { s.metrics.observe("delete_attachment", start, err) }(time.Now())
	return s.inner.DeleteAttachment(ctx, attachmentID)
}

func (s *instrumentedStore) OrphanedAttachments(ctx context.Context, limit int) (out []*Attachment, err error) {
	defer func(start time.Time) { s.metrics.observe("orphaned_attachments", start, err) }(time.Now())
	return s.inner.OrphanedAttachments(ctx, limit)
}

func (s *instrumentedStore) Close() error {
	return s.inner.Close()
}
