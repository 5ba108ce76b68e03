package store

import (
	"context"
	"log/slog"
	"time"
)

const DefaultPollInterval = 500 * time.Millisecond

// Watcher is a saved.Notifier that polls kv versions. Writers in any process
// sharing the database file bump the version, so Notify has nothing to do.
type Watcher struct {
	kv       *KV
	interval time.Duration
}

func NewWatcher(kv *KV, interval time.Duration) *Watcher {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Watcher{kv: kv, interval: interval}
}

func (w *Watcher) Notify(context.Context, string) error { return nil }

// OnChange polls key until the returned stop func is called, calling fn on
// the polling goroutine whenever the version moves.
func (w *Watcher) OnChange(key string, fn func()) (func(), error) {
	ctx, cancel := context.WithCancel(context.Background())
	last, err := w.kv.Version(ctx, key)
	if err != nil {
		cancel()
		return nil, err
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				v, err := w.kv.Version(ctx, key)
				if err != nil {
					if ctx.Err() == nil {
						slog.Error("store: error polling version", "key", key, "error", err)
					}
					continue
				}
				if v == last {
					continue
				}
				last = v
				fn()
			}
		}
	}()
	return func() {
		cancel()
		<-done
	}, nil
}
