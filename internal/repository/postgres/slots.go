package postgresrepo

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

type SlotRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *SlotRepo) With(db DB) *SlotRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *SlotRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

// Get returns the current payload of slot. A missing slot maps to
// repository.ErrNotFound.
func (r *SlotRepo) Get(ctx context.Context, slot string) (string, error) {
	const op = "postgresrepo.SlotRepo.Get"

	var payload string
	if err := r.handle().QueryRow(ctx,
		`SELECT payload::text FROM scene_slots WHERE slot = $1`,
		slot,
	).Scan(&payload); err != nil {
		return "", wrapDBErr(op, err)
	}

	return payload, nil
}

// Upsert replaces the slot payload and returns its new version.
func (r *SlotRepo) Upsert(ctx context.Context, slot, payload string) (int64, error) {
	const op = "postgresrepo.SlotRepo.Upsert"

	var version int64
	if err := r.handle().QueryRow(ctx,
		`INSERT INTO scene_slots(slot, payload)
		 VALUES ($1, $2::jsonb)
		 ON CONFLICT (slot) DO UPDATE
		    SET payload = EXCLUDED.payload,
		        version = scene_slots.version + 1,
		        updated_at = now()
		 RETURNING version`,
		slot, payload,
	).Scan(&version); err != nil {
		return 0, wrapDBErr(op, err)
	}

	return version, nil
}

func (r *SlotRepo) AppendSnapshot(ctx context.Context, slot string, version int64, payload string) error {
	const op = "postgresrepo.SlotRepo.AppendSnapshot"

	if _, err := r.handle().Exec(ctx,
		`INSERT INTO scene_snapshots(slot, version, payload) VALUES ($1, $2, $3::jsonb)`,
		slot, version, payload,
	); err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}
