package scheduler

import (
	"context"
	"time"

	"vdestor_backend/platform/logger"
)

const (
	defaultSearchLogCleanupInterval = time.Hour
	defaultSearchLogRetention       = 30 * 24 * time.Hour
)

// LogPruner deletes search log rows older than a cutoff.
type LogPruner interface {
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// SearchLogCleanup periodically removes search log rows past retention.
type SearchLogCleanup struct {
	logs      LogPruner
	log       *logger.Logger
	interval  time.Duration
	retention time.Duration
	now       func() time.Time
}

func NewSearchLogCleanup(logs LogPruner, log *logger.Logger, interval, retention time.Duration) *SearchLogCleanup {
	if interval <= 0 {
		interval = defaultSearchLogCleanupInterval
	}
	if retention <= 0 {
		retention = defaultSearchLogRetention
	}

	return &SearchLogCleanup{
		logs:      logs,
		log:       log,
		interval:  interval,
		retention: retention,
		now:       time.Now,
	}
}

func (c *SearchLogCleanup) Run(ctx context.Context) {
	if c == nil || c.logs == nil {
		return
	}

	c.cleanup(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.cleanup(ctx)
		}
	}
}

func (c *SearchLogCleanup) cleanup(ctx context.Context) {
	deleted, err := c.logs.DeleteBefore(ctx, c.now().Add(-c.retention))
	if err != nil {
		c.log.Warn("search log cleanup failed", "error", err)
		return
	}

	if deleted > 0 {
		c.log.Info("search log cleanup deleted old rows", "deleted", deleted)
	}
}
