// Package savedtest holds behaviour tests shared by every saved.Storage and
// saved.Notifier adapter.
package savedtest

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielmmetz/hn-reader/saved"
)

// Wait bounds how long adapters get to deliver a change notification.
const Wait = 5 * time.Second

// TestStorage checks that a Storage round-trips values and reports absent keys as nil.
func TestStorage(t *testing.T, storage saved.Storage) {
	t.Helper()
	ctx := context.Background()

	got, err := storage.Get(ctx, "missing-key")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, storage.Set(ctx, "k", []byte(`{"1":{"id":1}}`)))
	got, err = storage.Get(ctx, "k")
	require.NoError(t, err)
	assert.JSONEq(t, `{"1":{"id":1}}`, string(got))

	require.NoError(t, storage.Set(ctx, "k", []byte(`{}`)))
	got, err = storage.Get(ctx, "k")
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(got))
}

// TestSync checks that two stores sharing storage converge through their
// notifiers: a and b may be the same Notifier.
func TestSync(t *testing.T, storage saved.Storage, a, b saved.Notifier) {
	t.Helper()
	ctx := context.Background()

	first, err := saved.New(ctx, storage, a)
	require.NoError(t, err)
	t.Cleanup(func() { first.Close() })
	second, err := saved.New(ctx, storage, b)
	require.NoError(t, err)
	t.Cleanup(func() { second.Close() })

	var secondChanges atomic.Int64
	second.Subscribe(func() { secondChanges.Add(1) })

	require.True(t, first.Save(ctx, saved.Item{ID: 1, Title: "one"}))
	require.Eventually(t, func() bool { return second.IsSaved(1) }, Wait, 10*time.Millisecond)
	assert.GreaterOrEqual(t, secondChanges.Load(), int64(1))

	require.True(t, second.Unsave(ctx, 1))
	require.Eventually(t, func() bool { return !first.IsSaved(1) }, Wait, 10*time.Millisecond)
	assert.Zero(t, first.Count())
}
