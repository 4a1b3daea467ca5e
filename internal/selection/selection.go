// Package selection implements the server-side candidate selection loop:
// ask the generative picker for a song, reject already-seen identities, and
// resolve a playable asset through the catalog chain.
package selection

import (
	"context"
	"errors"
	"log"
	"strings"

	"github.com/oskarlind/trackline/internal/catalog"
	"github.com/oskarlind/trackline/internal/engine"
	"github.com/oskarlind/trackline/internal/picker"
)

// Modes select how a card's playable asset is resolved. They double as the
// history partition: duel cards and preview cards have separate histories.
const (
	ModeDuel    = "duel"    // card carries an external Spotify link
	ModePreview = "preview" // card carries a 30s preview from iTunes/Deezer
)

// MaxAttempts caps the retry loop; the loop self-terminates and reports
// exhaustion rather than being externally cancellable mid-flight.
const MaxAttempts = 5

// MaxSeen is the rolling history window consulted for deduplication.
const MaxSeen = 200

// ErrExhausted is returned when no unique playable candidate was found
// within MaxAttempts. Retryable by the caller, never fatal.
var ErrExhausted = errors.New("no unique playable candidate found")

// SongPicker is the generative source of (artist, title, year) triples.
type SongPicker interface {
	Pick(ctx context.Context, seen []string) (*picker.Pick, error)
}

// PreviewResolver resolves a playable preview across the catalog chain.
type PreviewResolver interface {
	Resolve(ctx context.Context, artist, title string, wantYear int) (*catalog.Candidate, error)
}

// LinkResolver resolves an external track link.
type LinkResolver interface {
	TrackURL(ctx context.Context, artist, title string) (string, error)
}

// HistoryReader reads the durable seen-songs tier.
type HistoryReader interface {
	RecentIdentifiers(ctx context.Context, userID, kind string, limit int) ([]string, error)
}

// Loop runs the retry-until-unique candidate selection.
type Loop struct {
	picker   SongPicker
	previews PreviewResolver
	links    LinkResolver
	history  HistoryReader
}

// NewLoop creates a selection loop. links may be nil when duel mode is not
// served; previews may be nil when preview mode is not served.
func NewLoop(p SongPicker, previews PreviewResolver, links LinkResolver, history HistoryReader) *Loop {
	return &Loop{picker: p, previews: previews, links: links, history: history}
}

// GenerateCard produces one card not present in the union of the client's
// seen set and the user's durable history. Every failure inside an attempt
// (picker error, malformed pick, duplicate, no catalog hit) is folded into
// the retry loop; ErrExhausted is the only failure that escapes.
func (l *Loop) GenerateCard(ctx context.Context, userID, mode string, clientSeen []string) (*engine.Card, error) {
	seen := make(map[string]struct{}, len(clientSeen)+MaxSeen)
	for _, id := range clientSeen {
		seen[strings.ToLower(id)] = struct{}{}
	}

	// Union in the durable tier. A read failure degrades to the client set
	// alone: serving a possible repeat beats refusing to serve at all.
	durable, err := l.history.RecentIdentifiers(ctx, userID, mode, MaxSeen)
	if err != nil {
		log.Printf("selection: reading history for %s/%s: %v", userID, mode, err)
	}
	for _, id := range durable {
		seen[strings.ToLower(id)] = struct{}{}
	}

	for attempt := 0; attempt < MaxAttempts; attempt++ {
		// Each attempt works from an immutable snapshot of the seen set;
		// the set only grows when a card is actually accepted downstream.
		snapshot := identities(seen)

		pick, err := l.picker.Pick(ctx, snapshot)
		if err != nil {
			log.Printf("selection: pick attempt %d: %v", attempt+1, err)
			continue
		}

		card := engine.Card{Artist: pick.Artist, Title: pick.Title, Year: pick.Year}
		if _, dup := seen[card.Identity()]; dup {
			// The model ignored the avoid-list; local check is the backstop.
			continue
		}

		if mode == ModePreview {
			hit, err := l.previews.Resolve(ctx, pick.Artist, pick.Title, pick.Year)
			if err != nil {
				log.Printf("selection: resolving preview: %v", err)
				continue
			}
			if hit == nil {
				continue
			}
			card.PreviewURL = hit.PreviewURL
			card.ExternalURL = hit.ExternalURL
			card.ArtworkURL = hit.ArtworkURL
			card.Source = string(hit.Source)
		} else {
			url, err := l.links.TrackURL(ctx, pick.Artist, pick.Title)
			if err != nil {
				log.Printf("selection: resolving link: %v", err)
				continue
			}
			if url == "" {
				continue
			}
			card.ExternalURL = url
		}

		return &card, nil
	}

	return nil, ErrExhausted
}

func identities(seen map[string]struct{}) []string {
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	return ids
}
