// Package feed turns id lists from the Hacker News API into pages of
// materialized stories and comments.
package feed

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/danielmmetz/hn-reader/hn"
)

// DefaultLimit is the page size used when a caller passes limit < 1.
const DefaultLimit = 20

const sharedFetchTimeout = 30 * time.Second

// Source is the subset of hn.Client the repository needs.
type Source interface {
	ListIDs(ctx context.Context, feed hn.FeedType) ([]int, error)
	GetItem(ctx context.Context, id int) (*hn.Item, error)
	GetComment(ctx context.Context, id int) (*hn.Comment, error)
}

// Page is one window of a listing. Total counts every upstream id, including
// ids that failed or were filtered out, so Total can exceed len(Items).
type Page[T any] struct {
	Items   []T  `json:"items"`
	HasMore bool `json:"has_more"`
	Total   int  `json:"total"`
}

type Repository struct {
	source      Source
	concurrency int
	sfItem      singleflight.Group
}

// NewRepository returns a repository fetching with the given batch concurrency
// (DefaultConcurrency when < 1).
func NewRepository(source Source, concurrency int) *Repository {
	if concurrency < 1 {
		concurrency = DefaultConcurrency
	}
	return &Repository{source: source, concurrency: concurrency}
}

// Item fetches one story; concurrent callers for the same id share one request.
// The shared request outlives any one caller's cancellation, bounded by
// sharedFetchTimeout, and each caller stops waiting when its own ctx is done.
func (r *Repository) Item(ctx context.Context, id int) (*hn.Item, error) {
	ch := r.sfItem.DoChan(fmt.Sprintf("item-%d", id), func() (interface{}, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedFetchTimeout)
		defer cancel()
		return r.source.GetItem(fetchCtx, id)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*hn.Item), nil
	}
}

// Resolve fetches every id and reports one outcome per id in input order.
func (r *Repository) Resolve(ctx context.Context, ids []int, concurrency int) []Outcome[hn.Item] {
	return resolve[hn.Item](ctx, "item", ids, concurrency, r.Item, func(it *hn.Item) bool {
		return it.ID != 0 && !it.Tombstoned()
	})
}

// BatchFetch returns the stories that resolved, in the order of ids. Failed,
// missing and tombstoned ids are dropped without error.
func (r *Repository) BatchFetch(ctx context.Context, ids []int, concurrency int) []hn.Item {
	return successes(r.Resolve(ctx, ids, concurrency))
}

// ResolveComments is Resolve for the comment path. Tombstoned comments are
// reported by the client as absent and therefore surface as SkipMissing.
func (r *Repository) ResolveComments(ctx context.Context, ids []int, concurrency int) []Outcome[hn.Comment] {
	return resolve[hn.Comment](ctx, "comment", ids, concurrency, r.source.GetComment, (*hn.Comment).Displayable)
}

// Page lists the feed and materializes ids[offset:offset+limit].
func (r *Repository) Page(ctx context.Context, feed hn.FeedType, limit, offset int) (Page[hn.Item], error) {
	limit, offset = normalize(limit, offset)

	ids, err := r.source.ListIDs(ctx, feed)
	if err != nil {
		return Page[hn.Item]{}, err
	}

	items := r.BatchFetch(ctx, window(ids, limit, offset), r.concurrency)
	if err := ctx.Err(); err != nil {
		return Page[hn.Item]{}, err
	}
	return Page[hn.Item]{
		Items:   nonNil(items),
		HasMore: hasMore(len(ids), limit, offset),
		Total:   len(ids),
	}, nil
}

// CommentPage materializes a window of the direct replies to itemID.
func (r *Repository) CommentPage(ctx context.Context, itemID, limit, offset int) (Page[hn.Comment], error) {
	limit, offset = normalize(limit, offset)

	parent, err := r.Item(ctx, itemID)
	if err != nil {
		return Page[hn.Comment]{}, err
	}
	if parent == nil {
		return Page[hn.Comment]{}, fmt.Errorf("item %d: %w", itemID, ErrNotFound)
	}

	kids := parent.Kids
	comments := successes(r.ResolveComments(ctx, window(kids, limit, offset), r.concurrency))
	if err := ctx.Err(); err != nil {
		return Page[hn.Comment]{}, err
	}
	return Page[hn.Comment]{
		Items:   nonNil(comments),
		HasMore: hasMore(len(kids), limit, offset),
		Total:   len(kids),
	}, nil
}

func normalize(limit, offset int) (int, int) {
	if limit < 1 {
		limit = DefaultLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// window returns ids[offset:offset+limit] clamped to the slice bounds.
func window(ids []int, limit, offset int) []int {
	if offset >= len(ids) {
		return nil
	}
	if limit >= len(ids)-offset {
		return ids[offset:]
	}
	return ids[offset : offset+limit]
}

// hasMore reports whether ids remain past the window, without computing
// offset+limit, which overflows for huge limits.
func hasMore(n, limit, offset int) bool {
	return offset < n && limit < n-offset
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
