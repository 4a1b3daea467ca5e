// Package catalog queries external music catalogs for playable previews and
// ranks the results against a requested artist/title using the matching rules.
package catalog

import (
	"context"
	"log"

	"github.com/oskarlind/trackline/internal/matching"
)

// Source identifies which catalog produced a candidate.
type Source string

// Known catalog sources.
const (
	SourceITunes Source = "itunes"
	SourceDeezer Source = "deezer"
)

// Candidate is one catalog search hit with a playable preview. Artist and
// Title are the catalog's own spelling, kept for match gating; the requested
// spelling stays authoritative on the final card.
type Candidate struct {
	Artist      string
	Title       string
	Year        int // 0 when the catalog supplies no release year
	PreviewURL  string
	ExternalURL string
	ArtworkURL  string
	Source      Source
}

// Adapter searches one catalog. Implementations return (nil, nil) when the
// catalog has no admissible candidate for the request.
type Adapter interface {
	Search(ctx context.Context, artist, title string, wantYear int) (*Candidate, error)
}

// Resolver tries adapters in a fixed priority order and returns the first
// admissible candidate. Adapter failures are logged and treated as "no
// candidate from this catalog"; they never abort the fallback chain.
type Resolver struct {
	adapters []Adapter
}

// NewResolver creates a resolver that consults adapters in the given order.
func NewResolver(adapters ...Adapter) *Resolver {
	return &Resolver{adapters: adapters}
}

// Resolve returns the best candidate across the catalogs, or (nil, nil) when
// every catalog is exhausted.
func (r *Resolver) Resolve(ctx context.Context, artist, title string, wantYear int) (*Candidate, error) {
	for _, a := range r.adapters {
		c, err := a.Search(ctx, artist, title, wantYear)
		if err != nil {
			log.Printf("catalog: search %q - %q failed: %v", artist, title, err)
			continue
		}
		if c != nil {
			return c, nil
		}
	}
	return nil, nil
}

// bestMatch ranks candidates by score and applies the admissibility gate:
// the top candidate must independently pass both the artist and title match
// predicates, otherwise the whole catalog result is rejected. The score is
// only a tie-breaker among already-admissible candidates.
func bestMatch(candidates []Candidate, artist, title string, wantYear int) *Candidate {
	if len(candidates) == 0 {
		return nil
	}

	best := 0
	bestScore := matching.Score(candidates[0].Artist, candidates[0].Title, candidates[0].Year, artist, title, wantYear)
	for i := 1; i < len(candidates); i++ {
		c := candidates[i]
		if s := matching.Score(c.Artist, c.Title, c.Year, artist, title, wantYear); s > bestScore {
			best, bestScore = i, s
		}
	}

	top := candidates[best]
	if !matching.ArtistMatches(top.Artist, artist) || !matching.TitleMatches(top.Title, title) {
		return nil
	}
	return &top
}

// yearFromDate extracts the leading four-digit year from a catalog date
// string such as "1981-10-26" or "1981-10-26T07:00:00Z". Returns 0 when the
// prefix is not a year.
func yearFromDate(date string) int {
	if len(date) < 4 {
		return 0
	}
	year := 0
	for _, r := range date[:4] {
		if r < '0' || r > '9' {
			return 0
		}
		year = year*10 + int(r-'0')
	}
	return year
}
