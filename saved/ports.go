package saved

import "context"

// Storage is an on-device key/value store holding the serialized mapping.
type Storage interface {
	// Get returns the value under key, or nil when the key is absent.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// Notifier carries "storage changed" signals between processes or tabs that
// share a Storage.
type Notifier interface {
	// Notify announces that key was written.
	Notify(ctx context.Context, key string) error
	// OnChange calls fn whenever key may have changed. fn can run on any
	// goroutine. The returned stop function unregisters it.
	OnChange(key string, fn func()) (stop func(), err error)
}
