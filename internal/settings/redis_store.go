package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/backend-quote/internal/pricing"
)

const redisKey = "settings:pricing"

// RedisStore keeps the settings as one JSON document without expiry.
type RedisStore struct {
	client redis.UniversalClient
	key    string
}

// NewRedisStore stores settings under prefix + "settings:pricing".
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	return &RedisStore{client: client, key: prefix + redisKey}
}

// Key returns the Redis key holding the document.
func (s *RedisStore) Key() string { return s.key }

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context) (pricing.Settings, bool, error) {
	if s == nil || s.client == nil {
		return pricing.Settings{}, false, nil
	}
	data, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return pricing.Settings{}, false, nil
		}
		return pricing.Settings{}, false, fmt.Errorf("redis get settings: %w", err)
	}
	var out pricing.Settings
	if err := json.Unmarshal(data, &out); err != nil {
		return pricing.Settings{}, false, fmt.Errorf("decode settings: %w", err)
	}
	return out, true, nil
}

// Put implements Store.
func (s *RedisStore) Put(ctx context.Context, v pricing.Settings) error {
	if s == nil || s.client == nil {
		return ErrNotConfigured
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("redis set settings: %w", err)
	}
	return nil
}
