// Package api is the client-side HTTP adapter for the trackline server. It
// feeds the sourcing pipeline and syncs match snapshots.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/oskarlind/trackline/internal/db"
	"github.com/oskarlind/trackline/internal/engine"
	"github.com/oskarlind/trackline/internal/session"
)

// ErrNotFound is returned when the server has no such match.
var ErrNotFound = errors.New("not found")

// ErrMatchLimit is returned when the server refuses a new match because the
// active-match cap is reached.
var ErrMatchLimit = errors.New("active match limit reached")

const defaultTimeout = 30 * time.Second

// Client talks to the trackline JSON API. The zero value is not usable;
// construct with New.
type Client struct {
	baseURL    string
	mode       string
	token      string
	httpClient *http.Client
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithToken attaches a bearer token to every request. Without one the
// server files history under the shared anonymous partition.
func WithToken(token string) ClientOption {
	return func(c *Client) { c.token = token }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// New creates a client. mode selects the card flavor and history partition
// (duel or preview) for the whole session.
func New(baseURL, mode string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    baseURL,
		mode:       mode,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
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

// FetchCard asks the server for one unseen card. A 503 means the server's
// retry loop came up empty; that is a burned attempt, not an error, so the
// pipeline's own loop keeps its remaining attempts.
func (c *Client) FetchCard(ctx context.Context, clientSeen []string) (*engine.Card, error) {
	body, err := json.Marshal(newCardRequest{ClientSeenSongs: clientSeen})
	if err != nil {
		return nil, fmt.Errorf("encoding card request: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, "/v1/cards?mode="+url.QueryEscape(c.mode), body)
	if err != nil {
		return nil, err
	}
	defer drain(resp)

	switch resp.StatusCode {
	case http.StatusOK:
		var card engine.Card
		if err := json.NewDecoder(resp.Body).Decode(&card); err != nil {
			return nil, fmt.Errorf("parsing card: %w", err)
		}
		return &card, nil
	case http.StatusServiceUnavailable:
		return nil, nil
	default:
		return nil, fmt.Errorf("fetching card: server returned %d", resp.StatusCode)
	}
}

// MarkSeen records a played card in the durable server-side history.
func (c *Client) MarkSeen(ctx context.Context, card engine.Card) error {
	body, err := json.Marshal(markSeenRequest{
		SongIdentifier: card.Identity(),
		Artist:         card.Artist,
		Title:          card.Title,
		Year:           card.Year,
	})
	if err != nil {
		return fmt.Errorf("encoding seen request: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, "/v1/cards/seen?mode="+url.QueryEscape(c.mode), body)
	if err != nil {
		return err
	}
	defer drain(resp)

	if resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("marking seen: server returned %d", resp.StatusCode)
	}
	return nil
}

// PutMatch uploads a full snapshot under its match ID.
func (c *Client) PutMatch(ctx context.Context, snap *session.Snapshot) error {
	body, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPut, "/v1/matches/"+url.PathEscape(snap.MatchID), body)
	if err != nil {
		return err
	}
	defer drain(resp)

	switch resp.StatusCode {
	case http.StatusNoContent:
		return nil
	case http.StatusConflict:
		return ErrMatchLimit
	default:
		return fmt.Errorf("saving match: server returned %d", resp.StatusCode)
	}
}

// GetMatch downloads a snapshot.
func (c *Client) GetMatch(ctx context.Context, matchID string) (*session.Snapshot, error) {
	resp, err := c.do(ctx, http.MethodGet, "/v1/matches/"+url.PathEscape(matchID), nil)
	if err != nil {
		return nil, err
	}
	defer drain(resp)

	switch resp.StatusCode {
	case http.StatusOK:
		var snap session.Snapshot
		if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
			return nil, fmt.Errorf("parsing snapshot: %w", err)
		}
		return &snap, nil
	case http.StatusNotFound:
		return nil, ErrNotFound
	default:
		return nil, fmt.Errorf("loading match: server returned %d", resp.StatusCode)
	}
}

// ListMatches returns the resume index, most recently updated first.
func (c *Client) ListMatches(ctx context.Context) ([]db.MatchSummary, error) {
	resp, err := c.do(ctx, http.MethodGet, "/v1/matches", nil)
	if err != nil {
		return nil, err
	}
	defer drain(resp)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("listing matches: server returned %d", resp.StatusCode)
	}
	var out struct {
		Matches []db.MatchSummary `json:"matches"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("parsing match list: %w", err)
	}
	return out.Matches, nil
}

// DeleteMatch removes a match and its index entry.
func (c *Client) DeleteMatch(ctx context.Context, matchID string) error {
	resp, err := c.do(ctx, http.MethodDelete, "/v1/matches/"+url.PathEscape(matchID), nil)
	if err != nil {
		return err
	}
	defer drain(resp)

	if resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("deleting match: server returned %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling %s %s: %w", method, path, err)
	}
	return resp, nil
}

func drain(resp *http.Response) {
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}
