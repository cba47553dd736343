package sweeper

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/nkiryanov/videotube/internal/apperrors"
	"github.com/nkiryanov/videotube/internal/logger"
	"github.com/nkiryanov/videotube/internal/models"
	"github.com/nkiryanov/videotube/internal/repository"
)

type Consumer struct {
	countWorkers int

	store   objectDeleter
	orphans repository.OrphanRepo
	now     func() time.Time
	logger  logger.Logger
}

func (c *Consumer) Consume(ctx context.Context, in <-chan models.Orphan) <-chan struct{} {
	idleStopped := make(chan struct{})

	var wg sync.WaitGroup
	for i := 0; i < c.countWorkers; i++ {
		wg.Add(1)
		go func() {
			c.worker(ctx, in)
			wg.Done()
		}()
	}

	go func() {
		defer close(idleStopped)
		wg.Wait()
		c.logger.Debug("Consumer stopped")
	}()

	return idleStopped
}

func (c *Consumer) worker(ctx context.Context, in <-chan models.Orphan) {
	for {
		select {
		case <-ctx.Done():
			return

		case orphan, ok := <-in:
			if !ok {
				c.logger.Debug("Consumer worker stopped, input channel closed")
				return
			}
			c.sweep(ctx, orphan)
		}
	}
}

func (c *Consumer) sweep(ctx context.Context, orphan models.Orphan) {
	err := c.store.Delete(ctx, orphan.ObjectID)

	switch {
	case err == nil, errors.Is(err, apperrors.ErrObjectNotFound):
		if err := c.orphans.Remove(ctx, orphan.ObjectID); err != nil {
			c.logger.Error("Failed to remove swept orphan", "error", err, "object_id", orphan.ObjectID)
			return
		}
		c.logger.Info("Orphan object deleted", "object_id", orphan.ObjectID, "attempts", orphan.Attempts+1)

	default:
		next := c.now().Add(backoff(orphan.Attempts + 1))
		c.logger.Warn("Failed to delete orphan object", "error", err, "object_id", orphan.ObjectID, "next_attempt_at", next)

		if err := c.orphans.Postpone(ctx, orphan.ObjectID, next, err.Error()); err != nil {
			c.logger.Error("Failed to postpone orphan", "error", err, "object_id", orphan.ObjectID)
		}
	}
}
