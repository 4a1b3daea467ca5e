package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// MatchRepository handles match snapshot and index operations. Snapshot and
// index writes are separate statements with no transaction across them; the
// brief inconsistency window is accepted (last writer wins on each key).
type MatchRepository struct {
	pool *pgxpool.Pool
}

// UpsertSnapshot writes the full match snapshot, last writer wins.
func (r *MatchRepository) UpsertSnapshot(ctx context.Context, snap *MatchSnapshot) error {
	query := `
		INSERT INTO match_snapshots (user_id, match_id, version, payload, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (user_id, match_id) DO UPDATE SET
			version = EXCLUDED.version,
			payload = EXCLUDED.payload,
			updated_at = EXCLUDED.updated_at
		RETURNING updated_at
	`
	err := r.pool.QueryRow(ctx, query, snap.UserID, snap.MatchID, snap.Version, snap.Payload).Scan(&snap.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upserting match snapshot: %w", err)
	}
	return nil
}

// GetSnapshot retrieves a snapshot by (user, match).
func (r *MatchRepository) GetSnapshot(ctx context.Context, userID, matchID string) (*MatchSnapshot, error) {
	query := `
		SELECT user_id, match_id, version, payload, updated_at
		FROM match_snapshots
		WHERE user_id = $1 AND match_id = $2
	`
	var snap MatchSnapshot
	err := r.pool.QueryRow(ctx, query, userID, matchID).Scan(
		&snap.UserID,
		&snap.MatchID,
		&snap.Version,
		&snap.Payload,
		&snap.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying match snapshot: %w", err)
	}
	return &snap, nil
}

// DeleteSnapshot removes a snapshot by (user, match).
func (r *MatchRepository) DeleteSnapshot(ctx context.Context, userID, matchID string) error {
	query := `DELETE FROM match_snapshots WHERE user_id = $1 AND match_id = $2`
	if _, err := r.pool.Exec(ctx, query, userID, matchID); err != nil {
		return fmt.Errorf("deleting match snapshot: %w", err)
	}
	return nil
}

// UpsertSummary writes the index entry for a match.
func (r *MatchRepository) UpsertSummary(ctx context.Context, userID string, s *MatchSummary) error {
	query := `
		INSERT INTO match_index (user_id, match_id, player1, player2, p1_score, p2_score, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id, match_id) DO UPDATE SET
			player1 = EXCLUDED.player1,
			player2 = EXCLUDED.player2,
			p1_score = EXCLUDED.p1_score,
			p2_score = EXCLUDED.p2_score,
			updated_at = EXCLUDED.updated_at
	`
	_, err := r.pool.Exec(ctx, query, userID, s.MatchID, s.Player1, s.Player2, s.Player1Score, s.Player2Score, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upserting match summary: %w", err)
	}
	return nil
}

// ListSummaries returns the user's active matches, most recently updated
// first.
func (r *MatchRepository) ListSummaries(ctx context.Context, userID string) ([]MatchSummary, error) {
	query := `
		SELECT match_id, player1, player2, p1_score, p2_score, updated_at
		FROM match_index
		WHERE user_id = $1
		ORDER BY updated_at DESC
	`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("querying match index: %w", err)
	}
	defer rows.Close()

	var summaries []MatchSummary
	for rows.Next() {
		var s MatchSummary
		if err := rows.Scan(&s.MatchID, &s.Player1, &s.Player2, &s.Player1Score, &s.Player2Score, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning match summary: %w", err)
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

// DeleteSummary removes the index entry for a match.
func (r *MatchRepository) DeleteSummary(ctx context.Context, userID, matchID string) error {
	query := `DELETE FROM match_index WHERE user_id = $1 AND match_id = $2`
	if _, err := r.pool.Exec(ctx, query, userID, matchID); err != nil {
		return fmt.Errorf("deleting match summary: %w", err)
	}
	return nil
}
