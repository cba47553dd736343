package sweeper

import (
	"context"
	"time"

	"github.com/nkiryanov/videotube/internal/logger"
	"github.com/nkiryanov/videotube/internal/models"
	"github.com/nkiryanov/videotube/internal/repository"
)

const (
	defaultCountWorkers = 4           // Number of workers deleting orphans
	defaultInterval     = time.Minute // Interval for fetching due orphans
	defaultBatchSize    = 100
	defaultLease        = 10 * time.Minute // Claimed orphan is not handed out again for this long

	baseBackoff = time.Minute
	maxBackoff  = 6 * time.Hour
)

type objectDeleter interface {
	Delete(ctx context.Context, objectID string) error
}

type Config struct {
	Workers   int
	Interval  time.Duration
	BatchSize int

	// How long claimed orphan stays hidden from the next fetches
	// Has to outlast deletion of the whole batch, after it the orphan is retried
	Lease time.Duration

	// Clock, time.Now if not set
	Now func() time.Time
}

// Sweeper retries deletion of stored objects that compensation failed to delete
type Sweeper struct {
	consumer *Consumer
	producer *Producer
	logger   logger.Logger
}

func New(cfg Config, store objectDeleter, orphans repository.OrphanRepo, logger logger.Logger) *Sweeper {
	if cfg.Workers <= 0 {
		cfg.Workers = defaultCountWorkers
	}
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.Lease <= 0 {
		cfg.Lease = defaultLease
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Sweeper{
		consumer: &Consumer{
			countWorkers: cfg.Workers,
			store:        store,
			orphans:      orphans,
			now:          cfg.Now,
			logger:       logger,
		},
		producer: &Producer{
			interval:  cfg.Interval,
			batchSize: cfg.BatchSize,
			lease:     cfg.Lease,
			orphans:   orphans,
			now:       cfg.Now,
			logger:    logger,
		},
		logger: logger,
	}
}

// Run sweeping until ctx is done
// Returned channel is closed when every worker stopped
func (s *Sweeper) Run(ctx context.Context) <-chan struct{} {
	idleStopped := make(chan struct{})

	orphanChan := make(chan models.Orphan)

	producerStopped := s.producer.Produce(ctx, orphanChan)
	consumerStopped := s.consumer.Consume(ctx, orphanChan)

	go func() {
		defer close(idleStopped)
		defer close(orphanChan)
		<-producerStopped
		<-consumerStopped
		s.logger.Debug("Sweeper stopped")
	}()

	return idleStopped
}

// Delay before the attempt number n (starting from 1)
func backoff(n int) time.Duration {
	d := baseBackoff
	for i := 1; i < n; i++ {
		d *= 2
		if d >= maxBackoff {
			return maxBackoff
		}
	}
	return d
}
