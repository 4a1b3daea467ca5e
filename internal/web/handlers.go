package web

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/oskarlind/trackline/internal/db"
	"github.com/oskarlind/trackline/internal/engine"
	"github.com/oskarlind/trackline/internal/selection"
	"github.com/oskarlind/trackline/internal/session"
)

// CardGenerator produces one unseen playable card for a user and mode.
type CardGenerator interface {
	GenerateCard(ctx context.Context, userID, mode string, clientSeen []string) (*engine.Card, error)
}

// SeenHistory is the durable seen-songs tier consumed by the handlers.
type SeenHistory interface {
	Append(ctx context.Context, s *db.SeenSong) error
	Trim(ctx context.Context, userID, kind string, keep int) (int64, error)
}

// Handlers contains the JSON API handlers.
type Handlers struct {
	cards    CardGenerator
	history  SeenHistory
	sessions *session.Manager
	verifier TokenVerifier
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(cards CardGenerator, history SeenHistory, sessions *session.Manager, verifier TokenVerifier) *Handlers {
	return &Handlers{
		cards:    cards,
		history:  history,
		sessions: sessions,
		verifier: verifier,
	}
}

type newCardRequest struct {
	ClientSeenSongs []string `json:"clientSeenSongs"`
}

type markSeenRequest struct {
	SongIdentifier string `json:"songIdentifier"`
	Artist         string `json:"artist"`
	Title          string `json:"title"`
	Year           int    `json:"year"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// NewCard handles POST /v1/cards?mode=duel|preview.
func (h *Handlers) NewCard(w http.ResponseWriter, r *http.Request) {
	mode, ok := cardMode(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "mode must be duel or preview")
		return
	}

	var req newCardRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	}

	userID := h.identify(r)
	card, err := h.cards.GenerateCard(r.Context(), userID, mode, req.ClientSeenSongs)
	if err != nil {
		if errors.Is(err, selection.ErrExhausted) {
			respondError(w, http.StatusServiceUnavailable, "no unique song found, try again")
			return
		}
		log.Printf("web: generating card for %s/%s: %v", userID, mode, err)
		respondError(w, http.StatusInternalServerError, "could not generate a card")
		return
	}
	respondJSON(w, http.StatusOK, card)
}

// MarkSeen handles POST /v1/cards/seen?mode=duel|preview: it appends one
// entry to the durable history and trims the partition back to the rolling
// window.
func (h *Handlers) MarkSeen(w http.ResponseWriter, r *http.Request) {
	mode, ok := cardMode(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "mode must be duel or preview")
		return
	}

	var req markSeenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.SongIdentifier == "" {
		respondError(w, http.StatusBadRequest, "songIdentifier is required")
		return
	}

	userID := h.identify(r)
	entry := &db.SeenSong{
		UserID:     userID,
		Kind:       mode,
		Identifier: req.SongIdentifier,
		Artist:     req.Artist,
		Title:      req.Title,
		Year:       req.Year,
	}
	if err := h.history.Append(r.Context(), entry); err != nil {
		log.Printf("web: appending seen song for %s/%s: %v", userID, mode, err)
		respondError(w, http.StatusInternalServerError, "could not record the song")
		return
	}
	if _, err := h.history.Trim(r.Context(), userID, mode, db.MaxSeenSongs); err != nil {
		// The window only grows until the next successful trim.
		log.Printf("web: trimming history for %s/%s: %v", userID, mode, err)
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListMatches handles GET /v1/matches.
func (h *Handlers) ListMatches(w http.ResponseWriter, r *http.Request) {
	userID := h.identify(r)
	summaries, err := h.sessions.List(r.Context(), userID)
	if err != nil {
		log.Printf("web: listing matches for %s: %v", userID, err)
		respondError(w, http.StatusInternalServerError, "could not list matches")
		return
	}
	if summaries == nil {
		summaries = []db.MatchSummary{}
	}
	respondJSON(w, http.StatusOK, map[string][]db.MatchSummary{"matches": summaries})
}

// GetMatch handles GET /v1/matches/{id}.
func (h *Handlers) GetMatch(w http.ResponseWriter, r *http.Request) {
	userID := h.identify(r)
	matchID := chi.URLParam(r, "id")

	snap, err := h.sessions.Load(r.Context(), userID, matchID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			respondError(w, http.StatusNotFound, "match not found")
			return
		}
		log.Printf("web: loading match %s for %s: %v", matchID, userID, err)
		respondError(w, http.StatusInternalServerError, "could not load the match")
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

// PutMatch handles PUT /v1/matches/{id}: the body is a full snapshot, the
// path ID is authoritative. Creating a new match is subject to the
// active-match cap.
func (h *Handlers) PutMatch(w http.ResponseWriter, r *http.Request) {
	userID := h.identify(r)
	matchID := chi.URLParam(r, "id")

	var snap session.Snapshot
	if err := json.NewDecoder(r.Body).Decode(&snap); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	snap.MatchID = matchID

	if _, err := h.sessions.Load(r.Context(), userID, matchID); errors.Is(err, db.ErrNotFound) {
		ok, err := h.sessions.CanStart(r.Context(), userID)
		if err != nil {
			log.Printf("web: checking match cap for %s: %v", userID, err)
			respondError(w, http.StatusInternalServerError, "could not save the match")
			return
		}
		if !ok {
			respondError(w, http.StatusConflict, "active match limit reached")
			return
		}
	}

	if err := h.sessions.Save(r.Context(), userID, &snap); err != nil {
		log.Printf("web: saving match %s for %s: %v", matchID, userID, err)
		respondError(w, http.StatusInternalServerError, "could not save the match")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteMatch handles DELETE /v1/matches/{id}.
func (h *Handlers) DeleteMatch(w http.ResponseWriter, r *http.Request) {
	userID := h.identify(r)
	matchID := chi.URLParam(r, "id")

	if err := h.sessions.Delete(r.Context(), userID, matchID); err != nil {
		log.Printf("web: deleting match %s for %s: %v", matchID, userID, err)
		respondError(w, http.StatusInternalServerError, "could not delete the match")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// cardMode reads the mode query parameter, defaulting to preview.
func cardMode(r *http.Request) (string, bool) {
	mode := r.URL.Query().Get("mode")
	switch mode {
	case "":
		return selection.ModePreview, true
	case selection.ModeDuel, selection.ModePreview:
		return mode, true
	default:
		return "", false
	}
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("web: encoding response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, errorResponse{Error: msg})
}
