// ABOUTME: Background cleanup of attachments whose thread was deleted
// ABOUTME: Deletes orphans in batches on a fixed interval until its context ends

package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/2389/parley-gateway/internal/store"
)

// Janitor removes attachments left behind by DeleteThread.
type Janitor struct {
	store     store.ConversationStore
	interval  time.Duration
	batchSize int
	logger    *slog.Logger
}

// NewJanitor creates a Janitor. A non-positive batchSize uses 100; sizes
// above store.MaxPageLimit are lowered to it, the most one listing returns.
func NewJanitor(s store.ConversationStore, interval time.Duration, batchSize int, logger *slog.Logger) *Janitor {
	if logger == nil {
		logger = slog.Default()
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	batchSize = min(batchSize, store.MaxPageLimit)
	return &Janitor{
		store:     s,
		interval:  interval,
		batchSize: batchSize,
		logger:    logger.With("component", "janitor"),
	}
}

// Sweep deletes orphaned attachments until none remain and returns how many it removed.
func (j *Janitor) Sweep(ctx context.Context) (int, error) {
	removed := 0
	for {
		orphans, err := j.store.OrphanedAttachments(ctx, j.batchSize)
		if err != nil {
			return removed, fmt.Errorf("listing orphaned attachments: %w", err)
		}
		for _, a := range orphans {
			if err := j.store.DeleteAttachment(ctx, a.ID); err != nil {
				return removed, fmt.Errorf("deleting attachment %s: %w", a.ID, err)
			}
			removed++
		}
		if len(orphans) < j.batchSize {
			return removed, nil
		}
	}
}

// Run sweeps every interval until ctx is done. Sweep failures are logged and
// retried on the next tick. A non-positive interval returns immediately.
func (j *Janitor) Run(ctx context.Context) error {
	if j.interval <= 0 {
		j.logger.Info("janitor disabled")
		return nil
	}

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.logger.Info("janitor started", "interval", j.interval, "batch_size", j.batchSize)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			removed, err := j.Sweep(ctx)
			if err != nil {
				j.logger.Warn("attachment sweep failed", "removed", removed, "error", err)
				continue
			}
			if removed > 0 {
				j.logger.Info("removed orphaned attachments", "count", removed)
			}
		}
	}
}
