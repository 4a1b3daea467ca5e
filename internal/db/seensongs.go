package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// MaxSeenSongs is the cap on a user's rolling seen-songs history.
const MaxSeenSongs = 200

// SeenSongRepository handles seen-songs history operations.
type SeenSongRepository struct {
	pool *pgxpool.Pool
}

// Append records one played song in the user's history.
func (r *SeenSongRepository) Append(ctx context.Context, s *SeenSong) error {
	query := `
		INSERT INTO seen_songs (user_id, kind, song_identifier, artist, title, year, seen_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		RETURNING seen_at
	`
	artist, title := s.Artist, s.Title
	if artist == "" {
		artist = "unknown"
	}
	if title == "" {
		title = "unknown"
	}
	err := r.pool.QueryRow(ctx, query, s.UserID, s.Kind, s.Identifier, artist, title, s.Year).Scan(&s.SeenAt)
	if err != nil {
		return fmt.Errorf("inserting seen song: %w", err)
	}
	return nil
}

// RecentIdentifiers returns the most recent song identifiers in the user's
// history, newest first, at most limit entries.
func (r *SeenSongRepository) RecentIdentifiers(ctx context.Context, userID, kind string, limit int) ([]string, error) {
	query := `
		SELECT song_identifier
		FROM seen_songs
		WHERE user_id = $1 AND kind = $2
		ORDER BY seen_at DESC, id DESC
		LIMIT $3
	`
	rows, err := r.pool.Query(ctx, query, userID, kind, limit)
	if err != nil {
		return nil, fmt.Errorf("querying seen songs: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning seen song: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Trim deletes the oldest entries beyond keep, returning how many were
// removed. Evicted identities become offerable again.
func (r *SeenSongRepository) Trim(ctx context.Context, userID, kind string, keep int) (int64, error) {
	query := `
		DELETE FROM seen_songs
		WHERE id IN (
			SELECT id FROM seen_songs
			WHERE user_id = $1 AND kind = $2
			ORDER BY seen_at DESC, id DESC
			OFFSET $3
		)
	`
	result, err := r.pool.Exec(ctx, query, userID, kind, keep)
	if err != nil {
		return 0, fmt.Errorf("trimming seen songs: %w", err)
	}
	return result.RowsAffected(), nil
}

// RemoveByIdentifier deletes every history entry for one song identity.
// Used to un-mark a persisted look-ahead card that was never shown.
func (r *SeenSongRepository) RemoveByIdentifier(ctx context.Context, userID, kind, identifier string) error {
	query := `
		DELETE FROM seen_songs
		WHERE user_id = $1 AND kind = $2 AND song_identifier = $3
	`
	if _, err := r.pool.Exec(ctx, query, userID, kind, identifier); err != nil {
		return fmt.Errorf("removing seen song: %w", err)
	}
	return nil
}
