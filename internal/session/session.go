package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/oskarlind/trackline/internal/db"
)

const (
	// MaxActiveMatches caps how many unfinished duels one user may keep.
	MaxActiveMatches = 2

	// saveDebounce coalesces the burst of saves a single turn produces
	// (guess, reveal, star, turn switch) into one write.
	saveDebounce = 500 * time.Millisecond
)

// ErrTooManyMatches is returned when starting a match would exceed the cap.
var ErrTooManyMatches = errors.New("active match limit reached")

// Store is the durable backend for snapshots and the resume index.
// Implementations return db.ErrNotFound for missing snapshots.
type Store interface {
	PutSnapshot(ctx context.Context, userID, matchID string, version int, payload []byte) error
	GetSnapshot(ctx context.Context, userID, matchID string) (version int, payload []byte, err error)
	DeleteSnapshot(ctx context.Context, userID, matchID string) error
	PutSummary(ctx context.Context, userID string, summary *db.MatchSummary) error
	ListSummaries(ctx context.Context, userID string) ([]db.MatchSummary, error)
	DeleteSummary(ctx context.Context, userID, matchID string) error
}

// HistoryReconciler un-marks a seen-history entry. Used on match deletion to
// make a persisted-but-never-shown look-ahead card offerable again.
// Satisfied by db.SeenSongRepository.
type HistoryReconciler interface {
	RemoveByIdentifier(ctx context.Context, userID, kind, identifier string) error
}

// Manager coordinates snapshot writes: immediate on demand, debounced for
// the in-turn burst, index kept in step with every snapshot.
type Manager struct {
	store   Store
	history HistoryReconciler // may be nil
	kind    string            // seen-history partition for reconciliation

	debounce time.Duration

	mu      sync.Mutex
	pending map[string]*pendingSave // keyed by userID + "/" + matchID
}

type pendingSave struct {
	timer *time.Timer
	snap  *Snapshot
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithDebounce overrides the autosave coalescing window.
func WithDebounce(d time.Duration) ManagerOption {
	return func(m *Manager) { m.debounce = d }
}

// NewManager creates a session manager. history may be nil when the caller
// has no durable seen-history to reconcile.
func NewManager(store Store, history HistoryReconciler, kind string, opts ...ManagerOption) *Manager {
	m := &Manager{
		store:    store,
		history:  history,
		kind:     kind,
		debounce: saveDebounce,
		pending:  make(map[string]*pendingSave),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// CanStart reports whether the user is below the active-match cap.
func (m *Manager) CanStart(ctx context.Context, userID string) (bool, error) {
	summaries, err := m.store.ListSummaries(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("listing active matches: %w", err)
	}
	return len(summaries) < MaxActiveMatches, nil
}

// Save writes the snapshot and its index entry immediately, cancelling any
// debounced write for the same match.
func (m *Manager) Save(ctx context.Context, userID string, snap *Snapshot) error {
	m.cancelPending(userID, snap.MatchID)

	version, payload, err := snap.Encode()
	if err != nil {
		return err
	}
	if err := m.store.PutSnapshot(ctx, userID, snap.MatchID, version, payload); err != nil {
		return fmt.Errorf("saving snapshot: %w", err)
	}
	if err := m.store.PutSummary(ctx, userID, summaryOf(snap)); err != nil {
		return fmt.Errorf("saving match summary: %w", err)
	}
	return nil
}

// ScheduleSave queues a debounced save. Repeated calls within the window
// replace the queued snapshot and reset the timer, so only the latest state
// is written. Failures are logged; autosave never blocks gameplay.
func (m *Manager) ScheduleSave(userID string, snap *Snapshot) {
	key := userID + "/" + snap.MatchID

	m.mu.Lock()
	defer m.mu.Unlock()

	if p, ok := m.pending[key]; ok {
		p.snap = snap
		p.timer.Reset(m.debounce)
		return
	}

	p := &pendingSave{snap: snap}
	p.timer = time.AfterFunc(m.debounce, func() {
		m.mu.Lock()
		current, ok := m.pending[key]
		if !ok || current != p {
			m.mu.Unlock()
			return
		}
		delete(m.pending, key)
		latest := current.snap
		m.mu.Unlock()

		if err := m.Save(context.Background(), userID, latest); err != nil {
			log.Printf("session: autosaving match %s: %v", latest.MatchID, err)
		}
	})
	m.pending[key] = p
}

// Flush forces any queued save for the match to run now.
func (m *Manager) Flush(ctx context.Context, userID, matchID string) error {
	key := userID + "/" + matchID

	m.mu.Lock()
	p, ok := m.pending[key]
	if ok {
		p.timer.Stop()
		delete(m.pending, key)
	}
	m.mu.Unlock()

	if !ok {
		return nil
	}
	return m.Save(ctx, userID, p.snap)
}

// Load fetches and decodes a snapshot, upgrading legacy versions.
func (m *Manager) Load(ctx context.Context, userID, matchID string) (*Snapshot, error) {
	version, payload, err := m.store.GetSnapshot(ctx, userID, matchID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("loading snapshot: %w", err)
	}
	return Decode(version, payload)
}

// List returns the user's resume index, most recently updated first.
func (m *Manager) List(ctx context.Context, userID string) ([]db.MatchSummary, error) {
	return m.store.ListSummaries(ctx, userID)
}

// Delete removes the snapshot and index entry. When the saved view held a
// never-shown look-ahead card, its durable seen-history mark is removed so
// the song becomes offerable again; reconciliation is best-effort.
func (m *Manager) Delete(ctx context.Context, userID, matchID string) error {
	m.cancelPending(userID, matchID)

	snap, err := m.Load(ctx, userID, matchID)
	if err != nil && !errors.Is(err, db.ErrNotFound) {
		log.Printf("session: reading match %s before delete: %v", matchID, err)
	}

	if err := m.store.DeleteSnapshot(ctx, userID, matchID); err != nil {
		return fmt.Errorf("deleting snapshot: %w", err)
	}
	if err := m.store.DeleteSummary(ctx, userID, matchID); err != nil {
		return fmt.Errorf("deleting match summary: %w", err)
	}

	if m.history != nil && snap != nil && snap.View != nil && snap.View.NextCard != nil {
		id := snap.View.NextCard.Identity()
		if err := m.history.RemoveByIdentifier(ctx, userID, m.kind, id); err != nil {
			log.Printf("session: unmarking buffered card %q: %v", id, err)
		}
	}
	return nil
}

// Close stops all queued autosaves without running them.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, p := range m.pending {
		p.timer.Stop()
		delete(m.pending, key)
	}
}

func (m *Manager) cancelPending(userID, matchID string) {
	key := userID + "/" + matchID
	m.mu.Lock()
	if p, ok := m.pending[key]; ok {
		p.timer.Stop()
		delete(m.pending, key)
	}
	m.mu.Unlock()
}

// summaryOf derives the index entry from a snapshot.
func summaryOf(s *Snapshot) *db.MatchSummary {
	summary := &db.MatchSummary{
		MatchID:   s.MatchID,
		Player1:   s.Player1Name,
		Player2:   s.Player2Name,
		UpdatedAt: s.UpdatedAt,
	}
	if p := s.Players[s.Player1Name]; p != nil {
		summary.Player1Score = p.Score()
	}
	if p := s.Players[s.Player2Name]; p != nil {
		summary.Player2Score = p.Score()
	}
	return summary
}

// PgStore adapts the database repositories to the Store interface.
type PgStore struct {
	matches *db.MatchRepository
}

// NewPgStore wraps a match repository.
func NewPgStore(matches *db.MatchRepository) *PgStore {
	return &PgStore{matches: matches}
}

func (s *PgStore) PutSnapshot(ctx context.Context, userID, matchID string, version int, payload []byte) error {
	return s.matches.UpsertSnapshot(ctx, &db.MatchSnapshot{
		UserID:  userID,
		MatchID: matchID,
		Version: version,
		Payload: payload,
	})
}

func (s *PgStore) GetSnapshot(ctx context.Context, userID, matchID string) (int, []byte, error) {
	snap, err := s.matches.GetSnapshot(ctx, userID, matchID)
	if err != nil {
		return 0, nil, err
	}
	return snap.Version, snap.Payload, nil
}

func (s *PgStore) DeleteSnapshot(ctx context.Context, userID, matchID string) error {
	return s.matches.DeleteSnapshot(ctx, userID, matchID)
}

func (s *PgStore) PutSummary(ctx context.Context, userID string, summary *db.MatchSummary) error {
	return s.matches.UpsertSummary(ctx, userID, summary)
}

func (s *PgStore) ListSummaries(ctx context.Context, userID string) ([]db.MatchSummary, error) {
	return s.matches.ListSummaries(ctx, userID)
}

func (s *PgStore) DeleteSummary(ctx context.Context, userID, matchID string) error {
	return s.matches.DeleteSummary(ctx, userID, matchID)
}
