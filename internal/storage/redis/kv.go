// Package redis stores key-value entries in Redis and announces writes on a
// pub/sub channel so other processes can reload.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/goliatone/go-pushrelay/pkg/interfaces/logger"
	"github.com/goliatone/go-pushrelay/pkg/interfaces/store"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const DefaultPrefix = "pushrelay:"

type KVStore struct {
	client *redis.Client
	prefix string
	origin string
	logger logger.Logger
}

var (
	_ store.KV      = (*KVStore)(nil)
	_ store.Watcher = (*KVStore)(nil)
	_ store.Closer  = (*KVStore)(nil)
)

type Option func(*KVStore)

func WithPrefix(prefix string) Option {
	return func(s *KVStore) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

func WithLogger(l logger.Logger) Option {
	return func(s *KVStore) {
		if l != nil {
			s.logger = l
		}
	}
}

type changeMessage struct {
	Origin string `json:"origin"`
	Key    string `json:"key"`
}

func NewKVStore(client *redis.Client, opts ...Option) (*KVStore, error) {
	if client == nil {
		return nil, errors.New("redis: client is required")
	}
	s := &KVStore{
		client: client,
		prefix: DefaultPrefix,
		origin: uuid.NewString(),
		logger: &logger.Nop{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// Dial connects to addr and verifies the connection with PING.
func Dial(ctx context.Context, addr, password string, db int, opts ...Option) (*KVStore, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis: ping %s: %w", addr, err)
	}
	return NewKVStore(client, opts...)
}

func (s *KVStore) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

func (s *KVStore) Set(ctx context.Context, key string, value []byte) error {
	if err := s.client.Set(ctx, s.prefix+key, value, 0).Err(); err != nil {
		return err
	}
	s.announce(ctx, key)
	return nil
}

func (s *KVStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return err
	}
	s.announce(ctx, key)
	return nil
}

// Watch delivers changes published by other KVStore instances.
func (s *KVStore) Watch(ctx context.Context, fn func(store.Change)) error {
	if fn == nil {
		return errors.New("redis: watch callback is required")
	}
	sub := s.client.Subscribe(ctx, s.channel())
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return fmt.Errorf("redis: subscribe: %w", err)
	}
	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var change changeMessage
				if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
					s.logger.Warn("redis: bad change message", logger.Field{Key: "error", Value: err})
					continue
				}
				if change.Origin == s.origin {
					continue
				}
				fn(store.Change{Key: change.Key})
			}
		}
	}()
	return nil
}

func (s *KVStore) Close() error {
	return s.client.Close()
}

func (s *KVStore) channel() string {
	return s.prefix + "changes"
}

func (s *KVStore) announce(ctx context.Context, key string) {
	payload, _ := json.Marshal(changeMessage{Origin: s.origin, Key: key})
	if err := s.client.Publish(ctx, s.channel(), payload).Err(); err != nil {
		s.logger.Warn("redis: publish change failed", logger.Field{Key: "key", Value: key}, logger.Field{Key: "error", Value: err})
	}
}
