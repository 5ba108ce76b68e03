package redisstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielmmetz/hn-reader/saved/savedtest"
)

func newTest(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestStorage(t *testing.T) {
	mr, client := newTest(t)
	s := New(client, "test:")
	savedtest.TestStorage(t, s)

	got, err := mr.Get("test:k")
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, got)
	require.NoError(t, s.Ping(context.Background()))
}

func TestSync(t *testing.T) {
	mr, client := newTest(t)
	other := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { other.Close() })

	savedtest.TestSync(t, New(client, ""), New(client, ""), New(other, ""))
}

func TestOnChangeFiltersKey(t *testing.T) {
	_, client := newTest(t)
	s := New(client, "")
	ctx := context.Background()

	calls := make(chan struct{}, 10)
	stop, err := s.OnChange("mine", func() { calls <- struct{}{} })
	require.NoError(t, err)

	require.NoError(t, s.Notify(ctx, "other"))
	require.NoError(t, s.Notify(ctx, "mine"))
	select {
	case <-calls:
	case <-time.After(savedtest.Wait):
		t.Fatal("no notification")
	}
	assert.Empty(t, calls)

	stop()
	require.NoError(t, s.Notify(ctx, "mine"))
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, calls)
}

func TestGetError(t *testing.T) {
	mr, client := newTest(t)
	s := New(client, "")
	mr.Close()

	_, err := s.Get(context.Background(), "k")
	assert.ErrorContains(t, err, "redis get k")
}
