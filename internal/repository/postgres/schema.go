package postgresrepo

import (
	"context"
)

const schema = `
CREATE TABLE IF NOT EXISTS scene_slots (
    slot       TEXT PRIMARY KEY,
    payload    JSONB NOT NULL,
    version    BIGINT NOT NULL DEFAULT 1,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS scene_snapshots (
    id         BIGSERIAL PRIMARY KEY,
    slot       TEXT NOT NULL,
    version    BIGINT NOT NULL,
    payload    JSONB NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    UNIQUE (slot, version)
);
`

// Migrate creates the slot tables when missing.
func (s *Store) Migrate(ctx context.Context) error {
	const op = "postgresrepo.Store.Migrate"

	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return wrapDBErr(op, err)
	}
	return nil
}
