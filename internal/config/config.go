package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

var ErrInvalid = errors.New("invalid config")

type Config struct {
	Server   ServerConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Scene    SceneConfig
	Limits   LimitsConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type PostgresConfig struct {
	User     string
	Password string
	Name     string
	Host     string
	Port     int
	SSLMode  string
}

type SceneConfig struct {
	// Store selects the slot backend: redis or postgres.
	Store string
	Slot  string
}

type LimitsConfig struct {
	SaveRate       int
	SaveWindow     time.Duration
	IdempotencyTTL time.Duration
	MaxSessions    int
}

// New reads the configuration from the environment, loading .env first
// when present.
func New() (*Config, error) {
	const op = "config.New"

	_ = godotenv.Load()

	cfg, err := FromEnv(os.Getenv)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}
	return cfg, nil
}

// FromEnv builds the configuration from getenv.
func FromEnv(getenv func(string) string) (*Config, error) {
	var err error
	cfg := &Config{}

	cfg.Server.Host = orDefault(getenv("SERVER_HOST"), "localhost")
	if cfg.Server.Port, err = intVar(getenv, "SERVER_PORT", 8080); err != nil {
		return nil, err
	}

	cfg.Redis.Addr = orDefault(getenv("REDIS_ADDR"), "localhost:6379")
	cfg.Redis.Password = getenv("REDIS_PASSWORD")
	if cfg.Redis.DB, err = intVar(getenv, "REDIS_DB", 0); err != nil {
		return nil, err
	}

	cfg.Scene.Store = orDefault(getenv("SCENE_STORE"), StoreRedis)
	cfg.Scene.Slot = orDefault(getenv("SCENE_SLOT"), "default")

	switch cfg.Scene.Store {
	case StoreRedis:
	case StorePostgres:
		if cfg.Postgres, err = postgresFromEnv(getenv); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: SCENE_STORE must be %q or %q, got %q", ErrInvalid, StoreRedis, StorePostgres, cfg.Scene.Store)
	}

	if cfg.Limits.SaveRate, err = intVar(getenv, "SAVE_RATE_LIMIT", 10); err != nil {
		return nil, err
	}
	if cfg.Limits.SaveWindow, err = durationVar(getenv, "SAVE_RATE_WINDOW", time.Minute); err != nil {
		return nil, err
	}
	if cfg.Limits.IdempotencyTTL, err = durationVar(getenv, "IDEMPOTENCY_TTL", 2*time.Hour); err != nil {
		return nil, err
	}
	if cfg.Limits.MaxSessions, err = intVar(getenv, "SESSION_MAX", 100); err != nil {
		return nil, err
	}

	return cfg, nil
}

func postgresFromEnv(getenv func(string) string) (PostgresConfig, error) {
	var err error
	pg := PostgresConfig{
		Host:    orDefault(getenv("POSTGRES_HOST"), "localhost"),
		SSLMode: orDefault(getenv("POSTGRES_SSLMODE"), "disable"),
	}

	if pg.Port, err = intVar(getenv, "POSTGRES_PORT", 5432); err != nil {
		return PostgresConfig{}, err
	}

	for _, v := range []struct {
		name string
		dst  *string
	}{
		{"POSTGRES_USER", &pg.User},
		{"POSTGRES_PASSWORD", &pg.Password},
		{"POSTGRES_DB", &pg.Name},
	} {
		*v.dst = getenv(v.name)
		if *v.dst == "" {
			return PostgresConfig{}, fmt.Errorf("%w: missing %s", ErrInvalid, v.name)
		}
	}

	return pg, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func intVar(getenv func(string) string, name string, def int) (int, error) {
	s := getenv(name)
	if s == "" {
		return def, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid %s: %w", ErrInvalid, name, err)
	}
	return v, nil
}

func durationVar(getenv func(string) string, name string, def time.Duration) (time.Duration, error) {
	s := getenv(name)
	if s == "" {
		return def, nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid %s: %w", ErrInvalid, name, err)
	}
	return v, nil
}
