package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres implements Store on top of a pgxpool.Pool: claim relies on
// SELECT ... FOR UPDATE SKIP LOCKED, most other primitives are one
// predicate-qualified statement, RequeueDLQ runs one transaction per
// requeued item, and InsertBatch follows a dedup conflict with a
// lookup of the existing row.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}
