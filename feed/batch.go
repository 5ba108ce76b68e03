package feed

import (
	"context"
	"log/slog"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/danielmmetz/hn-reader/metrics"
)

// DefaultConcurrency bounds in-flight requests when a caller passes < 1.
const DefaultConcurrency = 8

// Skip explains why an id produced no value.
type Skip int

const (
	SkipNone Skip = iota
	// SkipFailed: the request failed (FetchError or cancellation).
	SkipFailed
	// SkipMissing: upstream returned null for the id.
	SkipMissing
	// SkipTombstoned: the record is deleted, dead or has no displayable body.
	SkipTombstoned
)

func (s Skip) String() string {
	switch s {
	case SkipNone:
		return "ok"
	case SkipFailed:
		return "failed"
	case SkipMissing:
		return "missing"
	case SkipTombstoned:
		return "tombstoned"
	default:
		return "unknown"
	}
}

// Outcome is the per-id result of a batch fetch.
type Outcome[T any] struct {
	ID    int
	Value *T
	Skip  Skip
	Err   error
}

// OK reports whether the outcome carries a value.
func (o Outcome[T]) OK() bool { return o.Skip == SkipNone && o.Value != nil }

// fetchFunc resolves one id; a nil value with nil error means absent.
type fetchFunc[T any] func(ctx context.Context, id int) (*T, error)

// resolve fetches every id with at most concurrency calls in flight and
// returns one outcome per id, in input order.
func resolve[T any](ctx context.Context, kind string, ids []int, concurrency int, fetch fetchFunc[T], valid func(*T) bool) []Outcome[T] {
	if concurrency < 1 {
		concurrency = DefaultConcurrency
	}
	out := make([]Outcome[T], len(ids))

	var g errgroup.Group
	g.SetLimit(concurrency)
	for i, id := range ids {
		g.Go(func() error {
			out[i] = resolveOne(ctx, id, fetch, valid)
			metrics.BatchOutcomes.WithLabelValues(kind, out[i].Skip.String()).Inc()
			if out[i].Err != nil {
				slog.Debug("batch fetch skipped id", "kind", kind, "id", id, "error", out[i].Err)
			}
			return nil
		})
	}
	g.Wait()
	return out
}

func resolveOne[T any](ctx context.Context, id int, fetch fetchFunc[T], valid func(*T) bool) Outcome[T] {
	if err := ctx.Err(); err != nil {
		return Outcome[T]{ID: id, Skip: SkipFailed, Err: err}
	}
	v, err := fetch(ctx, id)
	switch {
	case err != nil:
		return Outcome[T]{ID: id, Skip: SkipFailed, Err: err}
	case v == nil:
		return Outcome[T]{ID: id, Skip: SkipMissing}
	case valid != nil && !valid(v):
		return Outcome[T]{ID: id, Skip: SkipTombstoned}
	}
	return Outcome[T]{ID: id, Value: v}
}

// successes keeps the values of successful outcomes, preserving order.
func successes[T any](outcomes []Outcome[T]) []T {
	return lo.FilterMap(outcomes, func(o Outcome[T], _ int) (T, bool) {
		if !o.OK() {
			var zero T
			return zero, false
		}
		return *o.Value, true
	})
}
