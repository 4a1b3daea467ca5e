// Package session persists in-progress matches: debounced full-state
// snapshots, a per-user resume index, and restore including the exact view
// the player was looking at.
package session

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/oskarlind/trackline/internal/engine"
)

// Snapshot format versions. V1 predates the view sub-snapshot.
const (
	SnapshotV1 = 1
	SnapshotV2 = 2
)

// ViewState captures the screen-level state needed to resume a session on
// exactly the view the player left: the displayed card, the look-ahead
// buffer, the guess input, a pending placement choice, and whether the
// card's reveal face was showing.
type ViewState struct {
	Card        *engine.Card     `json:"card,omitempty"`
	NextCard    *engine.Card     `json:"nextCard,omitempty"`
	GuessInput  string           `json:"guessInput,omitempty"`
	Placement   engine.Placement `json:"placement,omitempty"`
	ShowingBack bool             `json:"showingBack,omitempty"`
}

// Snapshot is the canonical (current-version) saved form of a match.
type Snapshot struct {
	MatchID      string                    `json:"id"`
	Player1Name  string                    `json:"player1Name"`
	Player2Name  string                    `json:"player2Name"`
	Players      map[string]*engine.Player `json:"players"`
	ActivePlayer string                    `json:"activePlayer"`
	RoundCards   []engine.Card             `json:"roundCards"`
	CreatedAt    time.Time                 `json:"createdAt"`
	UpdatedAt    time.Time                 `json:"updatedAt"`
	View         *ViewState                `json:"view,omitempty"`
}

// snapshotV1 is the legacy shape: match state without the view sub-snapshot.
type snapshotV1 struct {
	MatchID      string                    `json:"id"`
	Player1Name  string                    `json:"player1Name"`
	Player2Name  string                    `json:"player2Name"`
	Players      map[string]*engine.Player `json:"players"`
	ActivePlayer string                    `json:"activePlayer"`
	RoundCards   []engine.Card             `json:"roundCards"`
	CreatedAt    time.Time                 `json:"createdAt"`
	UpdatedAt    time.Time                 `json:"updatedAt"`
}

// FromMatch builds a snapshot of the match plus the current view.
func FromMatch(m *engine.Match, view *ViewState) *Snapshot {
	return &Snapshot{
		MatchID:      m.ID,
		Player1Name:  m.Player1Name,
		Player2Name:  m.Player2Name,
		Players:      m.Players,
		ActivePlayer: m.ActivePlayer,
		RoundCards:   m.RoundCards,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
		View:         view,
	}
}

// Match rebuilds the engine state, bypassing random start-year generation.
func (s *Snapshot) Match() *engine.Match {
	return &engine.Match{
		ID:           s.MatchID,
		Player1Name:  s.Player1Name,
		Player2Name:  s.Player2Name,
		Players:      s.Players,
		ActivePlayer: s.ActivePlayer,
		RoundCards:   s.RoundCards,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
	}
}

// Encode serializes the snapshot in the current format.
func (s *Snapshot) Encode() (version int, payload []byte, err error) {
	payload, err = json.Marshal(s)
	if err != nil {
		return 0, nil, fmt.Errorf("encoding snapshot: %w", err)
	}
	return SnapshotV2, payload, nil
}

// Decode parses a stored payload of any known version, upgrading legacy
// shapes to the current one.
func Decode(version int, payload []byte) (*Snapshot, error) {
	switch version {
	case SnapshotV1:
		var v1 snapshotV1
		if err := json.Unmarshal(payload, &v1); err != nil {
			return nil, fmt.Errorf("parsing v1 snapshot: %w", err)
		}
		return upgradeV1(&v1), nil
	case SnapshotV2:
		var s Snapshot
		if err := json.Unmarshal(payload, &s); err != nil {
			return nil, fmt.Errorf("parsing v2 snapshot: %w", err)
		}
		return &s, nil
	default:
		return nil, fmt.Errorf("unknown snapshot version %d", version)
	}
}

// upgradeV1 lifts a legacy snapshot to the current shape. The view is
// reconstructed as a plausible "just revealed" screen from the last
// round-buffer entry, when one exists.
func upgradeV1(v1 *snapshotV1) *Snapshot {
	s := &Snapshot{
		MatchID:      v1.MatchID,
		Player1Name:  v1.Player1Name,
		Player2Name:  v1.Player2Name,
		Players:      v1.Players,
		ActivePlayer: v1.ActivePlayer,
		RoundCards:   v1.RoundCards,
		CreatedAt:    v1.CreatedAt,
		UpdatedAt:    v1.UpdatedAt,
	}
	if n := len(v1.RoundCards); n > 0 {
		last := v1.RoundCards[n-1]
		s.View = &ViewState{Card: &last, ShowingBack: true}
	}
	return s
}
