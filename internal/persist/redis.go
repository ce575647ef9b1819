package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/prettylittleliars/backend/internal/game"
)

const snapshotKey = "pll:session"

// RedisStore keeps the snapshot under a single key with no expiry, so a
// restarted process can pick the show back up from another box.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Save(ctx context.Context, state *game.State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	return s.client.Set(ctx, snapshotKey, data, 0).Err()
}

func (s *RedisStore) Load(ctx context.Context) (*game.State, error) {
	data, err := s.client.Get(ctx, snapshotKey).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var state game.State
	if err := json.Unmarshal([]byte(data), &state); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &state, nil
}

func (s *RedisStore) Delete(ctx context.Context) error {
	return s.client.Del(ctx, snapshotKey).Err()
}
