// Package saved keeps the user's saved stories: an ordered in-memory mapping,
// persisted to a Storage on every change and reloaded when a Notifier reports
// that another process or tab wrote it.
package saved

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danielmmetz/hn-reader/metrics"
)

// DefaultKey is the storage key holding the serialized mapping.
const DefaultKey = "hn-saved-stories"

type Option func(*Store)

// WithKey stores the mapping under key instead of DefaultKey.
func WithKey(key string) Option {
	return func(s *Store) { s.key = key }
}

// WithClock replaces time.Now for SavedAt stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

type listener struct {
	id uint64
	fn func()
}

// Store is the saved-items service. Mutations are serialized; persistence
// failures are logged and never returned, the in-memory mapping stays
// authoritative for the process.
type Store struct {
	storage  Storage
	notifier Notifier
	key      string
	now      func() time.Time

	mu      sync.Mutex // serializes mutations and reloads
	snap    atomic.Pointer[Snapshot]
	lastRaw []byte

	lmu       sync.Mutex
	listeners []listener
	nextID    uint64

	stop func()
}

// New loads the mapping from storage and, when notifier is non-nil, starts
// following changes made elsewhere. A missing or unreadable value loads as empty.
func New(ctx context.Context, storage Storage, notifier Notifier, opts ...Option) (*Store, error) {
	s := &Store{
		storage:  storage,
		notifier: notifier,
		key:      DefaultKey,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	raw, err := storage.Get(ctx, s.key)
	if err != nil {
		slog.Error("saved: error reading storage", "key", s.key, "error", err)
		metrics.PersistErrors.WithLabelValues("read").Inc()
		raw = nil
	}
	items, err := decode(raw)
	if err != nil {
		slog.Error("saved: stored value is corrupt, starting empty", "key", s.key, "error", err)
		metrics.PersistErrors.WithLabelValues("read").Inc()
	}
	s.lastRaw = raw
	s.publish(items)

	if notifier != nil {
		stop, err := notifier.OnChange(s.key, func() { s.reload(context.Background()) })
		if err != nil {
			return nil, err
		}
		s.stop = stop
	}
	return s, nil
}

// Close stops following external changes.
func (s *Store) Close() error {
	if s.stop != nil {
		s.stop()
	}
	return nil
}

// Snapshot returns the current immutable view.
func (s *Store) Snapshot() *Snapshot { return s.snap.Load() }

func (s *Store) IsSaved(id int) bool { return s.Snapshot().Has(id) }

func (s *Store) Count() int { return s.Snapshot().Len() }

// Save puts item at the front of the list. It reports false, and changes
// nothing, when the id is already saved.
func (s *Store) Save(ctx context.Context, item Item) bool {
	return s.mutate(ctx, func(items []Item) ([]Item, bool) {
		if contains(items, item.ID) {
			return items, false
		}
		return s.prepend(items, item), true
	})
}

// Unsave removes id. It reports false when id was not saved.
func (s *Store) Unsave(ctx context.Context, id int) bool {
	return s.mutate(ctx, func(items []Item) ([]Item, bool) {
		if !contains(items, id) {
			return items, false
		}
		return remove(items, id), true
	})
}

// Toggle unsaves item when present and saves it otherwise. It reports whether
// the item is saved afterwards.
func (s *Store) Toggle(ctx context.Context, item Item) bool {
	var saved bool
	s.mutate(ctx, func(items []Item) ([]Item, bool) {
		if contains(items, item.ID) {
			return remove(items, item.ID), true
		}
		saved = true
		return s.prepend(items, item), true
	})
	return saved
}

// ClearAll empties the mapping and persists it.
func (s *Store) ClearAll(ctx context.Context) {
	s.mutate(ctx, func([]Item) ([]Item, bool) { return nil, true })
}

// Subscribe registers fn to run after every change, including changes
// adopted from other processes. Listeners run in registration order.
func (s *Store) Subscribe(fn func()) (unsubscribe func()) {
	s.lmu.Lock()
	defer s.lmu.Unlock()
	s.nextID++
	id := s.nextID
	s.listeners = append(s.listeners, listener{id: id, fn: fn})
	return func() {
		s.lmu.Lock()
		defer s.lmu.Unlock()
		for i, l := range s.listeners {
			if l.id == id {
				s.listeners = append(s.listeners[:i:i], s.listeners[i+1:]...)
				return
			}
		}
	}
}

func (s *Store) mutate(ctx context.Context, fn func([]Item) ([]Item, bool)) bool {
	s.mu.Lock()
	next, changed := fn(s.snap.Load().items)
	if !changed {
		s.mu.Unlock()
		return false
	}
	s.publish(next)
	persisted := s.persistLocked(ctx, next)
	s.mu.Unlock()

	if persisted && s.notifier != nil {
		if err := s.notifier.Notify(ctx, s.key); err != nil {
			slog.Error("saved: error notifying other contexts", "key", s.key, "error", err)
			metrics.PersistErrors.WithLabelValues("notify").Inc()
		}
	}
	s.emit()
	return true
}

func (s *Store) persistLocked(ctx context.Context, items []Item) bool {
	raw, err := encode(items)
	if err == nil {
		err = s.storage.Set(ctx, s.key, raw)
	}
	if err != nil {
		slog.Error("saved: error writing storage", "key", s.key, "error", err)
		metrics.PersistErrors.WithLabelValues("write").Inc()
		return false
	}
	s.lastRaw = raw
	return true
}

// reload adopts whatever another context persisted. Values equal to the last
// one read or written are ignored, so a store's own writes echoed back by the
// notifier do not fire listeners.
func (s *Store) reload(ctx context.Context) {
	s.mu.Lock()
	raw, err := s.storage.Get(ctx, s.key)
	if err != nil {
		s.mu.Unlock()
		slog.Error("saved: error reloading storage", "key", s.key, "error", err)
		metrics.PersistErrors.WithLabelValues("read").Inc()
		return
	}
	if bytes.Equal(raw, s.lastRaw) {
		s.mu.Unlock()
		return
	}
	items, err := decode(raw)
	if err != nil {
		slog.Error("saved: reloaded value is corrupt, treating as empty", "key", s.key, "error", err)
		metrics.PersistErrors.WithLabelValues("read").Inc()
	}
	s.lastRaw = raw
	s.publish(items)
	s.mu.Unlock()

	slog.Debug("saved: adopted external change", "key", s.key, "count", len(items))
	s.emit()
}

func (s *Store) publish(items []Item) {
	if items == nil {
		items = []Item{}
	}
	s.snap.Store(newSnapshot(items))
	metrics.SavedItems.Set(float64(len(items)))
}

func (s *Store) emit() {
	s.lmu.Lock()
	ls := make([]listener, len(s.listeners))
	copy(ls, s.listeners)
	s.lmu.Unlock()

	for _, l := range ls {
		l.fn()
	}
}

// prepend returns a new slice with item first, stamped later than every
// existing entry so the order survives a reload.
func (s *Store) prepend(items []Item, item Item) []Item {
	item.SavedAt = s.now().UnixMilli()
	if len(items) > 0 && items[0].SavedAt >= item.SavedAt {
		item.SavedAt = items[0].SavedAt + 1
	}
	next := make([]Item, 0, len(items)+1)
	next = append(next, item)
	return append(next, items...)
}

func contains(items []Item, id int) bool {
	for _, it := range items {
		if it.ID == id {
			return true
		}
	}
	return false
}

func remove(items []Item, id int) []Item {
	next := make([]Item, 0, len(items))
	for _, it := range items {
		if it.ID != id {
			next = append(next, it)
		}
	}
	return next
}
