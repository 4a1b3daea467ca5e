package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/oskarlind/trackline/internal/db"
	"github.com/oskarlind/trackline/internal/engine"
	"github.com/oskarlind/trackline/internal/selection"
	"github.com/oskarlind/trackline/internal/session"
)

type fakeCards struct {
	card     *engine.Card
	err      error
	lastUser string
	lastMode string
	lastSeen []string
}

func (f *fakeCards) GenerateCard(_ context.Context, userID, mode string, clientSeen []string) (*engine.Card, error) {
	f.lastUser, f.lastMode, f.lastSeen = userID, mode, clientSeen
	return f.card, f.err
}

type appended struct {
	userID string
	kind   string
	entry  db.SeenSong
}

type fakeSeenHistory struct {
	appends []appended
	trims   int
	err     error
}

func (f *fakeSeenHistory) Append(_ context.Context, s *db.SeenSong) error {
	if f.err != nil {
		return f.err
	}
	f.appends = append(f.appends, appended{userID: s.UserID, kind: s.Kind, entry: *s})
	return nil
}

func (f *fakeSeenHistory) Trim(_ context.Context, _, _ string, _ int) (int64, error) {
	f.trims++
	return 0, nil
}

// memStore is an in-memory session.Store.
type memStore struct {
	mu        sync.Mutex
	snaps     map[string][]byte
	versions  map[string]int
	summaries map[string]db.MatchSummary
}

func newMemStore() *memStore {
	return &memStore{
		snaps:     make(map[string][]byte),
		versions:  make(map[string]int),
		summaries: make(map[string]db.MatchSummary),
	}
}

func (s *memStore) PutSnapshot(_ context.Context, userID, matchID string, version int, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := userID + "/" + matchID
	s.snaps[k] = payload
	s.versions[k] = version
	return nil
}

func (s *memStore) GetSnapshot(_ context.Context, userID, matchID string) (int, []byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := userID + "/" + matchID
	payload, ok := s.snaps[k]
	if !ok {
		return 0, nil, db.ErrNotFound
	}
	return s.versions[k], payload, nil
}

func (s *memStore) DeleteSnapshot(_ context.Context, userID, matchID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.snaps, userID+"/"+matchID)
	return nil
}

func (s *memStore) PutSummary(_ context.Context, userID string, summary *db.MatchSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summaries[userID+"/"+summary.MatchID] = *summary
	return nil
}

func (s *memStore) ListSummaries(_ context.Context, userID string) ([]db.MatchSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []db.MatchSummary
	for k, v := range s.summaries {
		if strings.HasPrefix(k, userID+"/") {
			out = append(out, v)
		}
	}
	return out, nil
}

func (s *memStore) DeleteSummary(_ context.Context, userID, matchID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.summaries, userID+"/"+matchID)
	return nil
}

func rejectAll(_ context.Context, _ string) (string, error) {
	return "", errors.New("invalid token")
}

func newTestServer(t *testing.T, cards CardGenerator, history SeenHistory, verifier TokenVerifier) *httptest.Server {
	t.Helper()
	if verifier == nil {
		verifier = VerifierFunc(rejectAll)
	}
	sessions := session.NewManager(newMemStore(), nil, db.KindDuel)
	handlers := NewHandlers(cards, history, sessions, verifier)
	srv := httptest.NewServer(NewServer(ServerConfig{}, handlers).Router())
	t.Cleanup(srv.Close)
	return srv
}

func TestNewCard(t *testing.T) {
	card := &engine.Card{Artist: "Toto", Title: "Africa", Year: 1982, PreviewURL: "https://p"}
	cards := &fakeCards{card: card}
	srv := newTestServer(t, cards, &fakeSeenHistory{}, nil)

	body := strings.NewReader(`{"clientSeenSongs":["abba - waterloo"]}`)
	resp, err := http.Post(srv.URL+"/v1/cards?mode=preview", "application/json", body)
	if err != nil {
		t.Fatalf("POST /v1/cards: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var got engine.Card
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if got.Title != "Africa" || got.PreviewURL != "https://p" {
		t.Errorf("card = %+v", got)
	}
	if cards.lastMode != selection.ModePreview {
		t.Errorf("mode = %q, want preview", cards.lastMode)
	}
	if cards.lastUser != db.AnonymousUser {
		t.Errorf("user = %q, want anonymous fallback", cards.lastUser)
	}
	if len(cards.lastSeen) != 1 || cards.lastSeen[0] != "abba - waterloo" {
		t.Errorf("client seen = %v", cards.lastSeen)
	}
}

func TestNewCardDefaultsToPreviewMode(t *testing.T) {
	cards := &fakeCards{card: &engine.Card{Title: "Africa"}}
	srv := newTestServer(t, cards, &fakeSeenHistory{}, nil)

	resp, err := http.Post(srv.URL+"/v1/cards", "application/json", nil)
	if err != nil {
		t.Fatalf("POST /v1/cards: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if cards.lastMode != selection.ModePreview {
		t.Errorf("mode = %q, want preview", cards.lastMode)
	}
}

func TestNewCardRejectsUnknownMode(t *testing.T) {
	srv := newTestServer(t, &fakeCards{}, &fakeSeenHistory{}, nil)

	resp, err := http.Post(srv.URL+"/v1/cards?mode=karaoke", "application/json", nil)
	if err != nil {
		t.Fatalf("POST /v1/cards: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestNewCardExhausted(t *testing.T) {
	cards := &fakeCards{err: selection.ErrExhausted}
	srv := newTestServer(t, cards, &fakeSeenHistory{}, nil)

	resp, err := http.Post(srv.URL+"/v1/cards?mode=duel", "application/json", nil)
	if err != nil {
		t.Fatalf("POST /v1/cards: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", resp.StatusCode)
	}
}

func TestNewCardUsesVerifiedIdentity(t *testing.T) {
	cards := &fakeCards{card: &engine.Card{Title: "Africa"}}
	verifier := VerifierFunc(func(_ context.Context, token string) (string, error) {
		if token != "good-token" {
			return "", errors.New("invalid token")
		}
		return "user-42", nil
	})
	srv := newTestServer(t, cards, &fakeSeenHistory{}, verifier)

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/v1/cards", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST /v1/cards: %v", err)
	}
	resp.Body.Close()
	if cards.lastUser != "user-42" {
		t.Errorf("user = %q, want user-42", cards.lastUser)
	}
}

func TestMarkSeen(t *testing.T) {
	history := &fakeSeenHistory{}
	srv := newTestServer(t, &fakeCards{}, history, nil)

	body := strings.NewReader(`{"songIdentifier":"toto - africa","artist":"Toto","title":"Africa","year":1982}`)
	resp, err := http.Post(srv.URL+"/v1/cards/seen?mode=duel", "application/json", body)
	if err != nil {
		t.Fatalf("POST /v1/cards/seen: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", resp.StatusCode)
	}
	if len(history.appends) != 1 {
		t.Fatalf("appends = %d, want 1", len(history.appends))
	}
	got := history.appends[0]
	if got.kind != db.KindDuel || got.entry.Identifier != "toto - africa" || got.entry.Year != 1982 {
		t.Errorf("appended entry = %+v", got)
	}
	if history.trims != 1 {
		t.Errorf("trims = %d, want 1", history.trims)
	}
}

func TestMarkSeenRequiresIdentifier(t *testing.T) {
	srv := newTestServer(t, &fakeCards{}, &fakeSeenHistory{}, nil)

	body := strings.NewReader(`{"artist":"Toto"}`)
	resp, err := http.Post(srv.URL+"/v1/cards/seen", "application/json", body)
	if err != nil {
		t.Fatalf("POST /v1/cards/seen: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func putMatch(t *testing.T, srv *httptest.Server, matchID string, snap *session.Snapshot) *http.Response {
	t.Helper()
	payload, err := json.Marshal(snap)
	if err != nil {
		t.Fatalf("marshal snapshot: %v", err)
	}
	req, _ := http.NewRequest(http.MethodPut, srv.URL+"/v1/matches/"+matchID, strings.NewReader(string(payload)))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("PUT /v1/matches/%s: %v", matchID, err)
	}
	return resp
}

func testSnap(matchID string) *session.Snapshot {
	m := engine.NewMatch("Alice", "Bob", engine.WithID(matchID), engine.WithStartYears(1980, 1990))
	return session.FromMatch(m, nil)
}

func TestMatchLifecycle(t *testing.T) {
	srv := newTestServer(t, &fakeCards{}, &fakeSeenHistory{}, nil)

	resp := putMatch(t, srv, "m1", testSnap("m1"))
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("PUT status = %d, want 204", resp.StatusCode)
	}

	resp, err := http.Get(srv.URL + "/v1/matches/m1")
	if err != nil {
		t.Fatalf("GET /v1/matches/m1: %v", err)
	}
	var snap session.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatalf("decoding snapshot: %v", err)
	}
	resp.Body.Close()
	if snap.MatchID != "m1" || snap.Player1Name != "Alice" {
		t.Errorf("snapshot = %+v", snap)
	}

	resp, err = http.Get(srv.URL + "/v1/matches")
	if err != nil {
		t.Fatalf("GET /v1/matches: %v", err)
	}
	var list struct {
		Matches []db.MatchSummary `json:"matches"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		t.Fatalf("decoding list: %v", err)
	}
	resp.Body.Close()
	if len(list.Matches) != 1 || list.Matches[0].Player2 != "Bob" {
		t.Errorf("matches = %+v", list.Matches)
	}

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/v1/matches/m1", nil)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE /v1/matches/m1: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("DELETE status = %d, want 204", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/v1/matches/m1")
	if err != nil {
		t.Fatalf("GET after delete: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("GET after delete status = %d, want 404", resp.StatusCode)
	}
}

func TestPutMatchEnforcesActiveCap(t *testing.T) {
	srv := newTestServer(t, &fakeCards{}, &fakeSeenHistory{}, nil)

	for i := 0; i < session.MaxActiveMatches; i++ {
		id := fmt.Sprintf("m%d", i)
		resp := putMatch(t, srv, id, testSnap(id))
		resp.Body.Close()
		if resp.StatusCode != http.StatusNoContent {
			t.Fatalf("PUT %s status = %d, want 204", id, resp.StatusCode)
		}
	}

	resp := putMatch(t, srv, "overflow", testSnap("overflow"))
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("PUT overflow status = %d, want 409", resp.StatusCode)
	}

	// Updating an existing match is always allowed.
	resp = putMatch(t, srv, "m0", testSnap("m0"))
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("PUT update status = %d, want 204", resp.StatusCode)
	}
}

func TestGetMatchNotFound(t *testing.T) {
	srv := newTestServer(t, &fakeCards{}, &fakeSeenHistory{}, nil)

	resp, err := http.Get(srv.URL + "/v1/matches/nope")
	if err != nil {
		t.Fatalf("GET /v1/matches/nope: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}
