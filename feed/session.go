package feed

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/danielmmetz/hn-reader/hn"
)

// ErrStale is returned by a load whose result was discarded because a newer
// load, a feed switch or Close superseded it.
var ErrStale = errors.New("load superseded")

const (
	feedFirstPage    = 20
	feedMorePage     = 20
	commentFirstPage = 5
	commentMorePage  = 20
)

// PageFunc loads one window of a listing.
type PageFunc[T any] func(ctx context.Context, limit, offset int) (Page[T], error)

// State is the view state of a session.
type State[T any] struct {
	Items   []T    `json:"items"`
	Loading bool   `json:"loading"`
	Err     string `json:"error,omitempty"`
	HasMore bool   `json:"has_more"`
	Total   int    `json:"total"`
}

// Session holds the transient state of one listing as a view pages through it.
// Only the most recent load may commit; older ones are cancelled and dropped.
type Session[T any] struct {
	mu         sync.Mutex
	pager      PageFunc[T]
	firstLimit int
	moreLimit  int
	state      State[T]
	// next is the offset of the first id not yet requested. It runs ahead of
	// len(state.Items) when a page lost items to failed fetches.
	next       int
	gen        uint64
	cancel     context.CancelFunc
}

func NewSession[T any](pager PageFunc[T], firstLimit, moreLimit int) *Session[T] {
	return &Session[T]{pager: pager, firstLimit: firstLimit, moreLimit: moreLimit}
}

// State returns a copy of the current state.
func (s *Session[T]) State() State[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state
	st.Items = slices.Clone(s.state.Items)
	return st
}

// Load replaces the items with the first page.
func (s *Session[T]) Load(ctx context.Context) error {
	return s.reload(ctx, true)
}

// Refresh reloads the first page, keeping the current items visible until it lands.
func (s *Session[T]) Refresh(ctx context.Context) error {
	return s.reload(ctx, false)
}

func (s *Session[T]) reload(ctx context.Context, clear bool) error {
	s.mu.Lock()
	ctx, gen, pager := s.beginLocked(ctx)
	if clear {
		s.state.Items = nil
	}
	s.mu.Unlock()

	page, err := pager(ctx, s.firstLimit, 0)
	return s.commit(gen, err, func(st *State[T]) {
		s.next = s.firstLimit
		st.Items = page.Items
		st.HasMore = page.HasMore
		st.Total = page.Total
	})
}

// LoadMore appends the next page. It does nothing while a load is running or
// when there is nothing more to load.
func (s *Session[T]) LoadMore(ctx context.Context) error {
	s.mu.Lock()
	if s.state.Loading || !s.state.HasMore {
		s.mu.Unlock()
		return nil
	}
	offset := s.next
	ctx, gen, pager := s.beginLocked(ctx)
	s.mu.Unlock()

	page, err := pager(ctx, s.moreLimit, offset)
	return s.commit(gen, err, func(st *State[T]) {
		s.next = offset + s.moreLimit
		st.Items = append(st.Items, page.Items...)
		st.HasMore = page.HasMore
		st.Total = page.Total
	})
}

// Close cancels any in-flight load; its result will be discarded.
func (s *Session[T]) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.state.Loading = false
}

// beginLocked cancels the previous load and starts a new generation.
func (s *Session[T]) beginLocked(parent context.Context) (context.Context, uint64, PageFunc[T]) {
	if s.cancel != nil {
		s.cancel()
	}
	ctx, cancel := context.WithCancel(parent)
	s.cancel = cancel
	s.gen++
	s.state.Loading = true
	s.state.Err = ""
	return ctx, s.gen, s.pager
}

func (s *Session[T]) commit(gen uint64, err error, apply func(*State[T])) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return ErrStale
	}
	s.cancel()
	s.cancel = nil
	s.state.Loading = false
	if err != nil {
		s.state.Err = err.Error()
		return err
	}
	apply(&s.state)
	return nil
}

// FeedSession is a Session over a story feed that can switch feed types.
type FeedSession struct {
	*Session[hn.Item]
	repo *Repository
	feed hn.FeedType
}

// NewFeedSession pages through feed 20 stories at a time.
func NewFeedSession(repo *Repository, feed hn.FeedType) *FeedSession {
	fs := &FeedSession{repo: repo, feed: feed}
	fs.Session = NewSession(fs.pagerFor(feed), feedFirstPage, feedMorePage)
	return fs
}

func (fs *FeedSession) pagerFor(feed hn.FeedType) PageFunc[hn.Item] {
	return func(ctx context.Context, limit, offset int) (Page[hn.Item], error) {
		return fs.repo.Page(ctx, feed, limit, offset)
	}
}

// Feed returns the current feed type.
func (fs *FeedSession) Feed() hn.FeedType {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.feed
}

// Switch changes the feed type, dropping any load still running for the old
// feed, and loads the first page of the new one.
func (fs *FeedSession) Switch(ctx context.Context, feed hn.FeedType) error {
	fs.mu.Lock()
	fs.feed = feed
	fs.pager = fs.pagerFor(feed)
	fs.mu.Unlock()
	return fs.Load(ctx)
}

// NewCommentSession pages through the replies of itemID: 5 first, then 20 at a time.
func NewCommentSession(repo *Repository, itemID int) *Session[hn.Comment] {
	return NewSession(func(ctx context.Context, limit, offset int) (Page[hn.Comment], error) {
		return repo.CommentPage(ctx, itemID, limit, offset)
	}, commentFirstPage, commentMorePage)
}
