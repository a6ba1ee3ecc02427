// Package slots provides the Postgres-backed scene slot store, fronted by a
// Redis read-through cache.
package slots

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	redisx "github.com/kirinyoku/stagekit/internal/redis"
	"github.com/kirinyoku/stagekit/internal/repository"
	postgresrepo "github.com/kirinyoku/stagekit/internal/repository/postgres"
	redisrepo "github.com/kirinyoku/stagekit/internal/repository/redis"
	"github.com/kirinyoku/stagekit/internal/uow"
)

type Config struct {
	CacheTTL   time.Duration
	MaxRetries int
}

type PostgresStore struct {
	store  *postgresrepo.Store
	uow    *uow.UoW
	cache  *redisrepo.Cache
	logger *slog.Logger
	cfg    Config
}

func NewPostgresStore(
	store *postgresrepo.Store,
	cache *redisrepo.Cache,
	logger *slog.Logger,
	cfg Config,
) *PostgresStore {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 10 * time.Minute
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}

	return &PostgresStore{
		store:  store,
		uow:    uow.New(store),
		cache:  cache,
		logger: logger,
		cfg:    cfg,
	}
}

// cachedSlot also records misses so an empty slot is not re-queried until
// the next save invalidates it.
type cachedSlot struct {
	Payload string `json:"payload"`
	Found   bool   `json:"found"`
}

func (s *PostgresStore) Get(ctx context.Context, slot string) (string, bool, error) {
	const op = "service.slots.PostgresStore.Get"

	v, err := redisrepo.GetOrSetJSON(ctx, s.cache, redisx.KeySceneCache(slot), s.cfg.CacheTTL,
		func(ctx context.Context) (cachedSlot, error) {
			payload, err := s.store.Slots().Get(ctx, slot)
			if errors.Is(err, repository.ErrNotFound) {
				return cachedSlot{}, nil
			}
			if err != nil {
				return cachedSlot{}, err
			}
			return cachedSlot{Payload: payload, Found: true}, nil
		})
	if err != nil {
		return "", false, fmt.Errorf("%s:%w", op, err)
	}

	return v.Payload, v.Found, nil
}

// Put replaces the slot and appends a snapshot in one transaction,
// retrying serialization failures.
func (s *PostgresStore) Put(ctx context.Context, slot, payload string) error {
	const op = "service.slots.PostgresStore.Put"

	var err error
	for attempt := 1; attempt <= s.cfg.MaxRetries; attempt++ {
		err = s.uow.Do(ctx, func(ctx context.Context, tx postgresrepo.DB, after func(uow.AfterCommit)) error {
			repo := s.store.Slots().With(tx)

			version, err := repo.Upsert(ctx, slot, payload)
			if err != nil {
				return err
			}
			if err := repo.AppendSnapshot(ctx, slot, version, payload); err != nil {
				return err
			}

			after(func(ctx context.Context) {
				if err := s.cache.InvalidateScene(ctx, slot); err != nil {
					s.logger.Warn("failed to invalidate scene cache", "slot", slot, "error", err)
				}
			})
			return nil
		})
		if err == nil || !postgresrepo.IsRetryable(err) {
			break
		}
		s.logger.Debug("retrying scene save", "slot", slot, "attempt", attempt, "error", err)
	}
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	return nil
}
