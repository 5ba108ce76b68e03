// Package worker runs the server's background maintenance loops.
package worker

import (
	"context"
	"log/slog"
	"time"
)

// Pruner drops cached rows older than a cutoff.
type Pruner interface {
	Prune(ctx context.Context, cutoff time.Time) (int64, error)
}

type Cleaner struct {
	articles Pruner
	maxAge   time.Duration
	interval time.Duration
	now      func() time.Time
}

func NewCleaner(articles Pruner, maxAge time.Duration) *Cleaner {
	return &Cleaner{
		articles: articles,
		maxAge:   maxAge,
		interval: 24 * time.Hour,
		now:      time.Now,
	}
}

// Start begins the daily cleanup cycle. It runs until the context is cancelled.
func (c *Cleaner) Start(ctx context.Context) {
	go func() {
		// Run first cleanup after 1 hour (let the server settle on startup)
		select {
		case <-time.After(1 * time.Hour):
			c.cleanup(ctx)
		case <-ctx.Done():
			slog.Info("cleaner: shutting down before first run")
			return
		}

		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				slog.Info("cleaner: shutting down")
				return
			case <-ticker.C:
				c.cleanup(ctx)
			}
		}
	}()
}

func (c *Cleaner) cleanup(ctx context.Context) {
	slog.Info("cleaner: starting article cache cleanup")

	deleted, err := c.articles.Prune(ctx, c.now().Add(-c.maxAge))
	if err != nil {
		slog.Error("cleaner: error pruning articles", "error", err)
		return
	}

	slog.Info("cleaner: cleanup complete", "deleted", deleted)
}
