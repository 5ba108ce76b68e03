package saved

import (
	"context"
	"slices"
	"sync"
)

// MemoryStorage is an in-process Storage. Values are copied in and out.
type MemoryStorage struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{data: make(map[string][]byte)}
}

func (m *MemoryStorage) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.data[key]), nil
}

func (m *MemoryStorage) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = slices.Clone(value)
	return nil
}

// Bus is an in-process Notifier. Notify calls every callback registered for
// the key synchronously, on the notifying goroutine.
type Bus struct {
	mu     sync.Mutex
	nextID int
	subs   map[string]map[int]func()
}

func NewBus() *Bus {
	return &Bus{subs: make(map[string]map[int]func())}
}

func (b *Bus) Notify(_ context.Context, key string) error {
	b.mu.Lock()
	ids := make([]int, 0, len(b.subs[key]))
	for id := range b.subs[key] {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	fns := make([]func(), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, b.subs[key][id])
	}
	b.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
	return nil
}

func (b *Bus) OnChange(key string, fn func()) (func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	if b.subs[key] == nil {
		b.subs[key] = make(map[int]func())
	}
	b.subs[key][id] = fn
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs[key], id)
	}, nil
}
