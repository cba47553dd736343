package sweeper

import (
	"context"
	"time"

	"github.com/nkiryanov/videotube/internal/logger"
	"github.com/nkiryanov/videotube/internal/models"
	"github.com/nkiryanov/videotube/internal/repository"
)

type Producer struct {
	interval  time.Duration
	batchSize int
	lease     time.Duration
	orphans   repository.OrphanRepo
	now       func() time.Time
	logger    logger.Logger
}

func (p *Producer) Produce(ctx context.Context, out chan<- models.Orphan) <-chan struct{} {
	idleStopped := make(chan struct{})
	p.logger.Debug("Starting producer", "interval", p.interval, "batch_size", p.batchSize, "lease", p.lease)

	go func() {
		defer close(idleStopped)

		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				p.logger.Debug("Producer stopped by context")
				return

			case <-ticker.C:
				now := p.now()
				orphans, err := p.orphans.ClaimDue(ctx, now, now.Add(p.lease), p.batchSize)
				if err != nil {
					if ctx.Err() == nil {
						p.logger.Error("Failed to list orphans", "error", err)
					}
					continue
				}

				for _, orphan := range orphans {
					select {
					case <-ctx.Done():
						p.logger.Debug("Producer stopped by context while sending orphans")
						return
					case out <- orphan:
					}
				}
			}
		}
	}()

	return idleStopped
}
