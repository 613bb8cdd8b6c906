package scheduler

import (
	"context"
	"time"

	"carma_backend/platform/logger"
)

const defaultSweepBatchSize = 500

// IDLister pages through available listing ids in ascending order.
type IDLister interface {
	ListAvailableIDs(ctx context.Context, afterID string, limit int) ([]string, error)
}

// PrecomputeSweeper enqueues a precompute task for every available listing,
// once or on an interval.
type PrecomputeSweeper struct {
	lister    IDLister
	enqueuer  PrecomputeEnqueuer
	log       *logger.Logger
	interval  time.Duration
	batchSize int
	count     int
}

func NewPrecomputeSweeper(lister IDLister, enqueuer PrecomputeEnqueuer, log *logger.Logger, interval time.Duration, batchSize, count int) *PrecomputeSweeper {
	if batchSize <= 0 {
		batchSize = defaultSweepBatchSize
	}

	return &PrecomputeSweeper{
		lister:    lister,
		enqueuer:  enqueuer,
		log:       log,
		interval:  interval,
		batchSize: batchSize,
		count:     count,
	}
}

// Run sweeps immediately and then on every tick. A non-positive interval
// disables the loop.
func (s *PrecomputeSweeper) Run(ctx context.Context) {
	if s == nil || s.interval <= 0 {
		return
	}

	s.sweepAndLog(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepAndLog(ctx)
		}
	}
}

// Sweep pages through every available listing and enqueues a precompute
// task for each. It returns the number of tasks enqueued.
func (s *PrecomputeSweeper) Sweep(ctx context.Context) (int, error) {
	enqueued := 0
	after := ""
	for {
		ids, err := s.lister.ListAvailableIDs(ctx, after, s.batchSize)
		if err != nil {
			return enqueued, err
		}
		if len(ids) == 0 {
			return enqueued, nil
		}

		for _, id := range ids {
			if err := s.enqueuer.EnqueuePrecompute(ctx, PrecomputePayload{ListingID: id, Count: s.count}); err != nil {
				s.log.Warn("precompute enqueue failed", "listing_id", id, "error", err)
				continue
			}
			enqueued++
		}

		after = ids[len(ids)-1]
		if len(ids) < s.batchSize {
			return enqueued, nil
		}
	}
}

func (s *PrecomputeSweeper) sweepAndLog(ctx context.Context) {
	started := time.Now()
	enqueued, err := s.Sweep(ctx)
	if err != nil {
		s.log.Warn("precompute sweep failed", "enqueued", enqueued, "error", err)
		return
	}
	s.log.Info("precompute sweep finished", "enqueued", enqueued, "duration_ms", time.Since(started).Milliseconds())
}
