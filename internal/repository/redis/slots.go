package redisrepo

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	redisx "github.com/kirinyoku/stagekit/internal/redis"
)

// SlotStore keeps saved scenes in Redis under stagekit:v1:scene:<slot>.
// Entries never expire.
type SlotStore struct {
	rdb *redis.Client
}

func NewSlotStore(rdb *redis.Client) *SlotStore {
	return &SlotStore{rdb: rdb}
}

func (s *SlotStore) Get(ctx context.Context, slot string) (string, bool, error) {
	const op = "redisrepo.SlotStore.Get"

	v, err := s.rdb.Get(ctx, redisx.KeyScene(slot)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%s:%w", op, err)
	}

	return v, true, nil
}

func (s *SlotStore) Put(ctx context.Context, slot, payload string) error {
	const op = "redisrepo.SlotStore.Put"

	if err := s.rdb.Set(ctx, redisx.KeyScene(slot), payload, 0).Err(); err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}
	return nil
}
