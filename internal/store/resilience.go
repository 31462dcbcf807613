// ABOUTME: ConversationStore decorator adding per-operation deadlines and read retries
// ABOUTME: Reads failing with ErrUnavailable are retried with exponential backoff; writes never are

package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ResilienceOptions configures WithResilience.
type ResilienceOptions struct {
	// OpTimeout applies when the caller's context has no deadline. Zero disables it.
	OpTimeout time.Duration
	// ReadRetries is the number of extra attempts for a read after ErrUnavailable.
	ReadRetries int
	// RetryBackoff is the first wait between attempts; it doubles each retry.
	RetryBackoff time.Duration
	Logger       *slog.Logger
}

type resilientStore struct {
	inner  ConversationStore
	opts   ResilienceOptions
	logger *slog.Logger
}

// WithResilience wraps inner so that every operation runs under a deadline
// and idempotent reads survive transient outages.
func WithResilience(inner ConversationStore, opts ResilienceOptions) ConversationStore {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.ReadRetries < 0 {
		opts.ReadRetries = 0
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 50 * time.Millisecond
	}
	return &resilientStore{
		inner:  inner,
		opts:   opts,
		logger: logger.With("component", "store.resilience"),
	}
}

func (r *resilientStore) deadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok || r.opts.OpTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, r.opts.OpTimeout)
}

// classify turns an expired deadline into ErrUnavailable so that a timeout is
// never mistaken for a missing record.
func classify(op string, err error) error {
	if err == nil || errors.Is(err, ErrUnavailable) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
	}
	return err
}

// write runs fn once under the operation deadline.
func (r *resilientStore) write(ctx context.Context, op string, fn func(context.Context) error) error {
	opCtx, cancel := r.deadline(ctx)
	defer cancel()
	return classify(op, fn(opCtx))
}

// read runs fn, retrying ErrUnavailable with exponential backoff.
func (r *resilientStore) read(ctx context.Context, op string, fn func(context.Context) error) error {
	backoff := r.opts.RetryBackoff
	startTime := time.Now()

	for attempt := 0; ; attempt++ {
		opCtx, cancel := r.deadline(ctx)
		err := classify(op, fn(opCtx))
		cancel()

		if err == nil {
			if attempt > 0 {
				r.logger.Info("operation recovered after retries",
					"op", op,
					"attempts", attempt,
					"total_time", time.Since(startTime),
				)
			}
			return nil
		}
		if !errors.Is(err, ErrUnavailable) {
			return err
		}
		if attempt >= r.opts.ReadRetries {
			if attempt > 0 {
				r.logger.Warn("operation failed after all retries exhausted",
					"op", op,
					"total_attempts", attempt+1,
					"error", err,
				)
			}
			return err
		}

		r.logger.Debug("retrying operation after transient error",
			"op", op,
			"attempt", attempt+1,
			"backoff", backoff,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return err
		case <-time.After(backoff):
			backoff *= 2
		}
	}
}

func (r *resilientStore) GenerateThreadID(ctx context.Context) string {
	return r.inner.GenerateThreadID(ctx)
}

func (r *resilientStore) GenerateItemID(ctx context.Context, kind ItemKind, thread *Thread) string {
	return r.inner.GenerateItemID(ctx, kind, thread)
}

func (r *resilientStore) LoadThread(ctx context.Context, threadID string) (*Thread, error) {
	var out *Thread
	err := r.read(ctx, "load_thread", func(ctx context.Context) (err error) {
		out, err = r.inner.LoadThread(ctx, threadID)
		return err
	})
	return out, err
}

func (r *resilientStore) SaveThread(ctx context.Context, thread *Thread) error {
	return r.write(ctx, "save_thread", func(ctx context.Context) error {
		return r.inner.SaveThread(ctx, thread)
	})
}

func (r *resilientStore) LoadThreads(ctx context.Context, limit int, after string, order Order) (*Page[*Thread], error) {
	var out *Page[*Thread]
	err := r.read(ctx, "load_threads", func(ctx context.Context) (err error) {
		out, err = r.inner.LoadThreads(ctx, limit, after, order)
		return err
	})
	return out, err
}

func (r *resilientStore) DeleteThread(ctx context.Context, threadID string) error {
	return r.write(ctx, "delete_thread", func(ctx context.Context) error {
		return r.inner.DeleteThread(ctx, threadID)
	})
}

func (r *resilientStore) AppendThreadItem(ctx context.Context, threadID string, item *ThreadItem) error {
	return r.write(ctx, "append_thread_item", func(ctx context.Context) error {
		return r.inner.AppendThreadItem(ctx, threadID, item)
	})
}

func (r *resilientStore) SaveItem(ctx context.Context, threadID, itemID string, item *ThreadItem) error {
	return r.write(ctx, "save_item", func(ctx context.Context) error {
		return r.inner.SaveItem(ctx, threadID, itemID, item)
	})
}

func (r *resilientStore) LoadThreadItems(ctx context.Context, threadID, after string, limit int, order Order) (*Page[*ThreadItem], error) {
	var out *Page[*ThreadItem]
	err := r.read(ctx, "load_thread_items", func(ctx context.Context) (err error) {
		out, err = r.inner.LoadThreadItems(ctx, threadID, after, limit, order)
		return err
	})
	return out, err
}

func (r *resilientStore) LoadItem(ctx context.Context, threadID, itemID string) (*ThreadItem, error) {
	var out *ThreadItem
	err := r.read(ctx, "load_item", func(ctx context.Context) (err error) {
		out, err = r.inner.LoadItem(ctx, threadID, itemID)
		return err
	})
	return out, err
}

func (r *resilientStore) DeleteThreadItem(ctx context.Context, threadID, itemID string) error {
	return r.write(ctx, "delete_thread_item", func(ctx context.Context) error {
		return r.inner.DeleteThreadItem(ctx, threadID, itemID)
	})
}

func (r *resilientStore) SaveAttachment(ctx context.Context, attachment *Attachment) error {
	return r.write(ctx, "save_attachment", func(ctx context.Context) error {
		return r.inner.SaveAttachment(ctx, attachment)
	})
}

func (r *resilientStore) LoadAttachment(ctx context.Context, attachmentID string) (*Attachment, error) {
	var out *Attachment
	err := r.read(ctx, "load_attachment", func(ctx context.Context) (err error) {
		out, err = r.inner.LoadAttachment(ctx, attachmentID)
		return err
	})
	return out, err
}

func (r *resilientStore) DeleteAttachment(ctx context.Context, attachmentID string) error {
	return r.write(ctx, "delete_attachment", func(ctx context.Context) error {
		return r.inner.DeleteAttachment(ctx, attachmentID)
	})
}

func (r *resilientStore) OrphanedAttachments(ctx context.Context, limit int) ([]*Attachment, error) {
	var out []*Attachment
	err := r.read(ctx, "orphaned_attachments", func(ctx context.Context) (err error) {
		out, err = r.inner.OrphanedAttachments(ctx, limit)
		return err
	})
	return out, err
}

func (r *resilientStore) Close() error {
	return r.inner.Close()
}
