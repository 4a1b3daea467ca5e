// Package db provides PostgreSQL access for the trackline durable store:
// per-user seen-songs history, match snapshots, and the match index.
package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Common errors.
var (
	ErrNotFound = errors.New("not found")
)

// AnonymousUser is the history partition used when the caller presents no
// identity token.
const AnonymousUser = "global"

// DB wraps a PostgreSQL connection pool.
type DB struct {
	pool *pgxpool.Pool
}

// New creates a new database connection pool.
func New(ctx context.Context, databaseURL string) (*DB, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing database URL: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &DB{pool: pool}, nil
}

// Close closes the database connection pool.
func (db *DB) Close() {
	db.pool.Close()
}

// Pool returns the underlying connection pool for advanced operations.
func (db *DB) Pool() *pgxpool.Pool {
	return db.pool
}

// SeenSongs returns a SeenSongRepository.
func (db *DB) SeenSongs() *SeenSongRepository {
	return &SeenSongRepository{pool: db.pool}
}

// Matches returns a MatchRepository.
func (db *DB) Matches() *MatchRepository {
	return &MatchRepository{pool: db.pool}
}

// EnsureSchema creates the tables if they do not exist yet.
func (db *DB) EnsureSchema(ctx context.Context) error {
	if _, err := db.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensuring schema: %w", err)
	}
	return nil
}

const schema = `
CREATE TABLE IF NOT EXISTS seen_songs (
	id              BIGSERIAL PRIMARY KEY,
	user_id         TEXT NOT NULL,
	kind            TEXT NOT NULL,
	song_identifier TEXT NOT NULL,
	artist          TEXT NOT NULL DEFAULT 'unknown',
	title           TEXT NOT NULL DEFAULT 'unknown',
	year            INT  NOT NULL DEFAULT 0,
	seen_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS seen_songs_user_kind_idx
	ON seen_songs (user_id, kind, seen_at DESC);

CREATE TABLE IF NOT EXISTS match_snapshots (
	user_id    TEXT NOT NULL,
	match_id   TEXT NOT NULL,
	version    INT NOT NULL,
	payload    JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (user_id, match_id)
);

CREATE TABLE IF NOT EXISTS match_index (
	user_id    TEXT NOT NULL,
	match_id   TEXT NOT NULL,
	player1    TEXT NOT NULL,
	player2    TEXT NOT NULL,
	p1_score   INT NOT NULL,
	p2_score   INT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (user_id, match_id)
);
`
