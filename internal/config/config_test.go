package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestDefaults(t *testing.T) {
	cfg, err := FromEnv(env(nil))
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, StoreRedis, cfg.Scene.Store)
	assert.Equal(t, "default", cfg.Scene.Slot)
	assert.Equal(t, 10, cfg.Limits.SaveRate)
	assert.Equal(t, time.Minute, cfg.Limits.SaveWindow)
	assert.Equal(t, 100, cfg.Limits.MaxSessions)
	assert.Empty(t, cfg.Postgres.User)
}

func TestPostgresRequiresCredentials(t *testing.T) {
	_, err := FromEnv(env(map[string]string{"SCENE_STORE": "postgres", "POSTGRES_USER": "stage"}))
	require.ErrorIs(t, err, ErrInvalid)
	assert.Contains(t, err.Error(), "POSTGRES_PASSWORD")

	cfg, err := FromEnv(env(map[string]string{
		"SCENE_STORE":       "postgres",
		"POSTGRES_USER":     "stage",
		"POSTGRES_PASSWORD": "secret",
		"POSTGRES_DB":       "stagekit",
		"POSTGRES_PORT":     "5433",
	}))
	require.NoError(t, err)
	assert.Equal(t, 5433, cfg.Postgres.Port)
	assert.Equal(t, "disable", cfg.Postgres.SSLMode)
}

func TestInvalidValues(t *testing.T) {
	for name, vars := range map[string]map[string]string{
		"port":   {"SERVER_PORT": "http"},
		"store":  {"SCENE_STORE": "s3"},
		"window": {"SAVE_RATE_WINDOW": "soon"},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := FromEnv(env(vars))
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
}
