// Package redisstore keeps saved-item values in Redis and signals changes
// over Redis pub/sub, so every process pointed at the same server stays in step.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

const DefaultPrefix = "hnreader:"

// Store is both a saved.Storage and a saved.Notifier.
type Store struct {
	client *redis.Client
	prefix string
}

func New(client *redis.Client, prefix string) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Store{client: client, prefix: prefix}
}

func (s *Store) channel() string { return s.prefix + "changed" }

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return b, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	if err := s.client.Set(ctx, s.prefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Notify publishes key on the change channel.
func (s *Store) Notify(ctx context.Context, key string) error {
	if err := s.client.Publish(ctx, s.channel(), key).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", key, err)
	}
	return nil
}

// OnChange subscribes to the change channel and calls fn for every message
// naming key. The subscription is live when OnChange returns.
func (s *Store) OnChange(key string, fn func()) (func(), error) {
	ctx := context.Background()
	sub := s.client.Subscribe(ctx, s.channel())
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("redis subscribe: %w", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for msg := range sub.Channel() {
			if msg.Payload != key {
				continue
			}
			fn()
		}
	}()
	return func() {
		if err := sub.Close(); err != nil {
			slog.Error("redisstore: error closing subscription", "error", err)
		}
		<-done
	}, nil
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
