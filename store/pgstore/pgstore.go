// Package pgstore implements the store interfaces on PostgreSQL. IDs keep the
// ObjectID format of the MongoDB backend and are stored as their hex form,
// which sorts the same way as the raw bytes.
package pgstore

import (
	"context"
	"errors"
	"time"

	"yatube/store"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const opTimeout = 10 * time.Second

var plog = logrus.WithField("component", "pgstore")

const schema = `
CREATE TABLE IF NOT EXISTS groups (
	id          TEXT PRIMARY KEY,
	slug        TEXT NOT NULL UNIQUE,
	title       TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS users (
	id            TEXT PRIMARY KEY,
	username      TEXT NOT NULL UNIQUE,
	email         TEXT NOT NULL UNIQUE,
	name          TEXT NOT NULL DEFAULT '',
	password_hash TEXT,
	created_at    BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS posts (
	id         TEXT PRIMARY KEY,
	author_id  TEXT NOT NULL REFERENCES users(id),
	group_id   TEXT REFERENCES groups(id),
	text       TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS posts_feed_idx ON posts (created_at DESC, id DESC);
CREATE INDEX IF NOT EXISTS posts_group_idx ON posts (group_id, created_at DESC, id DESC);
CREATE INDEX IF NOT EXISTS posts_author_idx ON posts (author_id, created_at DESC, id DESC);
`

// EnsureSchema creates the tables and indexes if they do not exist.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	_, err := pool.Exec(ctx, schema)
	return err
}

// translate maps driver errors onto the store sentinels.
func translate(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return store.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return store.ErrConflict
		case "23503": // foreign_key_violation
			return store.ErrNotFound
		}
	}
	return err
}

func hexPtr(id *primitive.ObjectID) *string {
	if id == nil {
		return nil
	}
	s := id.Hex()
	return &s
}

func parseHexPtr(s *string) (*primitive.ObjectID, error) {
	if s == nil {
		return nil, nil
	}
	id, err := primitive.ObjectIDFromHex(*s)
	if err != nil {
		return nil, err
	}
	return &id, nil
}
