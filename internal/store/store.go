package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when no return has the requested dedup key.
var ErrNotFound = errors.New("return not found")

type Store struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

const schema = `
CREATE TABLE IF NOT EXISTS returns (
	id            uuid PRIMARY KEY,
	seq           bigserial NOT NULL,
	product       text NOT NULL,
	store         text NOT NULL,
	purchase_date date NOT NULL,
	return_date   date NOT NULL,
	price_minor   bigint NOT NULL CHECK (price_minor > 0),
	currency      text NOT NULL,
	reason        text NOT NULL,
	category      text NOT NULL DEFAULT '',
	city          text NOT NULL DEFAULT '',
	country       text NOT NULL DEFAULT '',
	dedup_key     text NOT NULL,
	created_at    timestamptz NOT NULL DEFAULT clock_timestamp(),
	CONSTRAINT returns_dedup_key_key UNIQUE (dedup_key)
);
CREATE INDEX IF NOT EXISTS returns_return_date_idx ON returns (return_date);
CREATE INDEX IF NOT EXISTS returns_created_at_idx ON returns (created_at DESC);
`

// Migrate creates the returns table and its indexes if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}
