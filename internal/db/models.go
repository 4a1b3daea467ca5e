package db

import "time"

// History kinds: duel cards (external link) and single-player preview cards
// live in separate partitions, matching their separate gameplay histories.
const (
	KindDuel    = "duel"
	KindPreview = "preview"
)

// SeenSong is one entry in a user's rolling played-songs history.
type SeenSong struct {
	UserID     string
	Kind       string
	Identifier string
	Artist     string
	Title      string
	Year       int
	SeenAt     time.Time
}

// MatchSnapshot is a full serialized match, keyed by (user, match).
// Payload is an opaque versioned JSON document owned by the session layer.
type MatchSnapshot struct {
	UserID    string
	MatchID   string
	Version   int
	Payload   []byte
	UpdatedAt time.Time
}

// MatchSummary is the lightweight per-user index entry used to render a
// resume list and to enforce the active-match cap.
type MatchSummary struct {
	MatchID      string    `json:"id"`
	Player1      string    `json:"player1"`
	Player2      string    `json:"player2"`
	Player1Score int       `json:"p1Score"`
	Player2Score int       `json:"p2Score"`
	UpdatedAt    time.Time `json:"updatedAt"`
}
