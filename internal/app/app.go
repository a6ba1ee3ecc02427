package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/kirinyoku/stagekit/internal/config"
	"github.com/kirinyoku/stagekit/internal/postgres"
	redisx "github.com/kirinyoku/stagekit/internal/redis"
	postgresrepo "github.com/kirinyoku/stagekit/internal/repository/postgres"
	redisrepo "github.com/kirinyoku/stagekit/internal/repository/redis"
	"github.com/kirinyoku/stagekit/internal/service/configurator"
	"github.com/kirinyoku/stagekit/internal/service/sessions"
	"github.com/kirinyoku/stagekit/internal/service/slots"
	httpgin "github.com/kirinyoku/stagekit/internal/transport/http/gin"
)

type App struct {
	cfg        *config.Config
	logger     *slog.Logger
	rdb        *goredis.Client
	pool       *pgxpool.Pool
	pubsub     *redisx.QuotationPubSub
	sessions   *sessions.Service
	httpServer *http.Server
}

func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	rdb, err := redisx.New(ctx, redisx.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize redis: %w", err)
	}

	a := &App{cfg: cfg, logger: logger, rdb: rdb}

	var store configurator.SlotStore
	switch cfg.Scene.Store {
	case config.StorePostgres:
		dsn := postgres.DSN(
			cfg.Postgres.User,
			cfg.Postgres.Password,
			cfg.Postgres.Host,
			cfg.Postgres.Port,
			cfg.Postgres.Name,
			cfg.Postgres.SSLMode,
		)
		a.pool, err = postgres.New(ctx, postgres.Config{DSN: dsn})
		if err != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("failed to initialize postgres: %w", err)
		}

		pgStore := postgresrepo.NewStore(a.pool)
		if err := pgStore.Migrate(ctx); err != nil {
			a.close()
			return nil, fmt.Errorf("failed to migrate postgres: %w", err)
		}
		store = slots.NewPostgresStore(pgStore, redisrepo.NewCache(rdb), logger, slots.Config{})
	default:
		store = redisrepo.NewSlotStore(rdb)
	}
	logger.Info("scene store selected", "store", cfg.Scene.Store, "slot", cfg.Scene.Slot)

	a.pubsub = redisx.NewQuotationPubSub(rdb)
	limiter := redisrepo.NewSlidingWindowLimiter(rdb, "save", cfg.Limits.SaveRate, cfg.Limits.SaveWindow)
	idem := redisrepo.NewIdempotencyStore(rdb, cfg.Limits.IdempotencyTTL)

	a.sessions = sessions.New(store, limiter, a.pubsub, logger, sessions.Config{
		MaxSessions: cfg.Limits.MaxSessions,
		Slot:        cfg.Scene.Slot,
	})

	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           httpgin.NewRouter(a.sessions, idem, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return a, nil
}

func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("HTTP server listening", "host", a.cfg.Server.Host, "port", a.cfg.Server.Port)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start HTTP server: %w", err)
		}
		return nil
	})

	// Quotation changes published by any instance reach local SSE watchers.
	g.Go(func() error {
		err := a.pubsub.Subscribe(gCtx, func(_ context.Context, msg redisx.QuotationMsg) {
			a.sessions.Dispatch(msg.SessionID, msg.Quotation)
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("quotation subscription: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		a.logger.Info("shutting down")

		a.sessions.CloseAll()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := a.httpServer.Shutdown(ctx)

		a.close()
		return err
	})

	return g.Wait()
}

func (a *App) close() {
	if a.pool != nil {
		a.pool.Close()
	}
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
}
