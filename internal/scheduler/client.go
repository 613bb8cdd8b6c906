package scheduler

import (
	"context"
	"time"

	"carma_backend/platform/cache"
	"carma_backend/platform/config"

	"github.com/hibiken/asynq"
)

const (
	precomputeRetention = time.Hour
	precomputeMaxRetry  = 3
)

type Client struct {
	client *asynq.Client
	queue  string
}

// PrecomputeEnqueuer schedules cache warm-up for a listing.
type PrecomputeEnqueuer interface {
	EnqueuePrecompute(ctx context.Context, payload PrecomputePayload) error
}

func NewClient(cfg config.SchedulerConfig) (*Client, error) {
	opt, err := redisClientOpt(cfg)
	if err != nil {
		return nil, err
	}

	return &Client{
		client: asynq.NewClient(opt),
		queue:  queueName(cfg),
	}, nil
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

func (c *Client) EnqueueListingChanged(ctx context.Context, payload ListingChangedPayload) error {
	if c == nil || c.client == nil {
		return nil
	}

	task, err := NewListingChangedTask(payload)
	if err != nil {
		return err
	}

	_, err = c.client.EnqueueContext(ctx, task, asynq.Queue(c.queue))
	return err
}

func (c *Client) EnqueuePrecompute(ctx context.Context, payload PrecomputePayload) error {
	if c == nil || c.client == nil {
		return nil
	}

	task, err := NewPrecomputeTask(payload)
	if err != nil {
		return err
	}

	_, err = c.client.EnqueueContext(ctx, task,
		asynq.Queue(c.queue),
		asynq.MaxRetry(precomputeMaxRetry),
		asynq.Retention(precomputeRetention),
	)
	return err
}

func redisClientOpt(cfg config.SchedulerConfig) (asynq.RedisClientOpt, error) {
	opt, err := cache.ParseRedisURL(cfg.GetRedisURL(), cfg.GetRedisTLSInsecure())
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}

	return asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Username:  opt.Username,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: opt.TLSConfig,
	}, nil
}

func queueName(cfg config.SchedulerConfig) string {
	if queue := cfg.GetAsynqQueueName(); queue != "" {
		return queue
	}
	return "default"
}
