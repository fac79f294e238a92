package database

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

const sessionsMigration = `
CREATE TABLE IF NOT EXISTS sessions (
	id text PRIMARY KEY,
	data bytea NULL,
	expires timestamptz NOT NULL
);

CREATE INDEX IF NOT EXISTS sessions_expires_idx ON sessions (expires);

CREATE TABLE IF NOT EXISTS users (
	id text PRIMARY KEY,
	username text NOT NULL,
	email text NOT NULL,
	password text NOT NULL,
	active boolean NOT NULL DEFAULT true
);

CREATE UNIQUE INDEX IF NOT EXISTS users_username_unique ON users (username);
`

func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, sessionsMigration)
	return err
}
