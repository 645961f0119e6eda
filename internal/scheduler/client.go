package scheduler

import (
	"context"
	"time"

	"vdestor_backend/internal/search/querylog"
	"vdestor_backend/platform/config"
	"vdestor_backend/platform/redisx"

	"github.com/hibiken/asynq"
)

const searchLogTaskTimeout = 10 * time.Second

type Client struct {
	client *asynq.Client
	queue  string
}

func NewClient(cfg config.SchedulerConfig) (*Client, error) {
	opt, err := redisx.AsynqOpt(cfg)
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

// RecordSearch enqueues one served search for the worker to persist.
// A nil client drops the entry.
func (c *Client) RecordSearch(ctx context.Context, entry querylog.Entry) error {
	if c == nil || c.client == nil {
		return nil
	}

	task, err := NewSearchLoggedTask(payloadFromEntry(entry, time.Now().UTC()))
	if err != nil {
		return err
	}

	_, err = c.client.EnqueueContext(ctx, task,
		asynq.Queue(c.queue),
		asynq.MaxRetry(3),
		asynq.Timeout(searchLogTaskTimeout),
	)
	return err
}

func payloadFromEntry(entry querylog.Entry, now time.Time) SearchLoggedPayload {
	occurredAt := now
	if entry.CreatedAt != nil {
		occurredAt = *entry.CreatedAt
	}
	return SearchLoggedPayload{
		Query:          entry.Query,
		Source:         entry.Source,
		ResultCount:    entry.ResultCount,
		CityID:         entry.CityID,
		TimingMs:       entry.TimingMs,
		DegradedReason: entry.DegradedReason,
		RequestID:      entry.RequestID,
		OccurredAt:     occurredAt,
	}
}

func (p SearchLoggedPayload) entry() querylog.Entry {
	e := querylog.Entry{
		Query:          p.Query,
		Source:         p.Source,
		ResultCount:    p.ResultCount,
		CityID:         p.CityID,
		TimingMs:       p.TimingMs,
		DegradedReason: p.DegradedReason,
		RequestID:      p.RequestID,
	}
	if !p.OccurredAt.IsZero() {
		at := p.OccurredAt
		e.CreatedAt = &at
	}
	return e
}

func queueName(cfg config.SchedulerConfig) string {
	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}
	return queue
}
