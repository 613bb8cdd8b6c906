package scheduler

import (
	"context"
	"errors"
	"fmt"

	"carma_backend/internal/comparables/transport"
	"carma_backend/internal/events"
	"carma_backend/platform/apperr"
	"carma_backend/platform/config"
	"carma_backend/platform/logger"

	"github.com/hibiken/asynq"
)

// Comparer computes comparables for a listing.
type Comparer interface {
	Compare(ctx context.Context, req transport.ComparablesRequest) (transport.ComparablesResponse, error)
}

type Worker struct {
	server   *asynq.Server
	mux      *asynq.ServeMux
	comparer Comparer
	bus      events.Bus
	log      *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, comparer Comparer, bus events.Bus, log *logger.Logger) (*Worker, error) {
	opt, err := redisClientOpt(cfg)
	if err != nil {
		return nil, err
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queueName(cfg): 1,
		},
	})

	w := newWorker(comparer, bus, log)
	w.server = server
	return w, nil
}

func newWorker(comparer Comparer, bus events.Bus, log *logger.Logger) *Worker {
	w := &Worker{
		mux:      asynq.NewServeMux(),
		comparer: comparer,
		bus:      bus,
		log:      log,
	}
	w.mux.HandleFunc(TaskListingChanged, w.handleListingChanged)
	w.mux.HandleFunc(TaskPrecompute, w.handlePrecompute)
	return w
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

func (w *Worker) handleListingChanged(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseListingChangedPayload(task)
	if err != nil {
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}
	if payload.Make == "" || payload.Model == "" {
		w.log.Warn("listing change without make or model ignored", "listing_id", payload.ListingID)
		return nil
	}

	if w.bus == nil {
		return nil
	}

	return w.bus.PublishSync(ctx, events.ListingChanged{
		BaseEvent: events.NewBaseEvent(),
		ListingID: payload.ListingID,
		Make:      payload.Make,
		Model:     payload.Model,
	})
}

func (w *Worker) handlePrecompute(ctx context.Context, task *asynq.Task) error {
	payload, err := ParsePrecomputePayload(task)
	if err != nil {
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}

	req := transport.ComparablesRequest{ID: payload.ListingID}
	if payload.Count > 0 {
		req.Count = &payload.Count
	}
	resp, err := w.comparer.Compare(ctx, req)
	if err != nil {
		// Only upstream failures are worth retrying.
		var appErr *apperr.Error
		if errors.As(err, &appErr) && !appErr.Retryable() {
			w.log.Debug("precompute skipped", "listing_id", payload.ListingID, "code", appErr.Code)
			return nil
		}
		return err
	}

	w.log.Debug("precompute finished",
		"listing_id", payload.ListingID,
		"returned", resp.Metadata.Returned,
		"cached", resp.Metadata.Cached,
	)
	return nil
}
