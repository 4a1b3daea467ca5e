package selection

import (
	"context"
	"errors"
	"testing"

	"github.com/oskarlind/trackline/internal/catalog"
	"github.com/oskarlind/trackline/internal/picker"
)

type fakePicker struct {
	picks []*picker.Pick // nil entry means a failed attempt
	calls int
}

func (f *fakePicker) Pick(_ context.Context, _ []string) (*picker.Pick, error) {
	if f.calls >= len(f.picks) {
		f.calls++
		return nil, picker.ErrNoPick
	}
	p := f.picks[f.calls]
	f.calls++
	if p == nil {
		return nil, picker.ErrNoPick
	}
	return p, nil
}

type fakePreviews struct {
	hit *catalog.Candidate
	err error
}

func (f *fakePreviews) Resolve(_ context.Context, _, _ string, _ int) (*catalog.Candidate, error) {
	return f.hit, f.err
}

type fakeLinks struct {
	url string
	err error
}

func (f *fakeLinks) TrackURL(_ context.Context, _, _ string) (string, error) {
	return f.url, f.err
}

type fakeHistory struct {
	ids []string
	err error
}

func (f *fakeHistory) RecentIdentifiers(_ context.Context, _, _ string, _ int) ([]string, error) {
	return f.ids, f.err
}

func TestGenerateCardPreviewMode(t *testing.T) {
	p := &fakePicker{picks: []*picker.Pick{{Artist: "Toto", Title: "Africa", Year: 1982}}}
	previews := &fakePreviews{hit: &catalog.Candidate{
		Artist: "Toto", Title: "Africa", PreviewURL: "https://cdn/africa.mp3",
		ExternalURL: "https://itunes/africa", ArtworkURL: "https://img/africa.jpg",
		Source: catalog.SourceITunes,
	}}
	loop := NewLoop(p, previews, nil, &fakeHistory{})

	card, err := loop.GenerateCard(context.Background(), "u1", ModePreview, nil)
	if err != nil {
		t.Fatalf("GenerateCard() error = %v", err)
	}
	if card.PreviewURL != "https://cdn/africa.mp3" {
		t.Errorf("PreviewURL = %q", card.PreviewURL)
	}
	if card.Source != string(catalog.SourceITunes) {
		t.Errorf("Source = %q, want itunes", card.Source)
	}
	// The requested spelling stays authoritative on the card.
	if card.Artist != "Toto" || card.Year != 1982 {
		t.Errorf("card = %+v", card)
	}
}

func TestGenerateCardDuelMode(t *testing.T) {
	p := &fakePicker{picks: []*picker.Pick{{Artist: "ABBA", Title: "Waterloo", Year: 1974}}}
	loop := NewLoop(p, nil, &fakeLinks{url: "https://open.spotify.com/track/x"}, &fakeHistory{})

	card, err := loop.GenerateCard(context.Background(), "u1", ModeDuel, nil)
	if err != nil {
		t.Fatalf("GenerateCard() error = %v", err)
	}
	if card.ExternalURL != "https://open.spotify.com/track/x" {
		t.Errorf("ExternalURL = %q", card.ExternalURL)
	}
	if card.PreviewURL != "" {
		t.Errorf("duel card should carry no preview, got %q", card.PreviewURL)
	}
}

func TestGenerateCardRejectsSeenFromEitherTier(t *testing.T) {
	tests := []struct {
		name       string
		clientSeen []string
		durable    []string
	}{
		{"client tier", []string{"abba - waterloo"}, nil},
		{"durable tier", nil, []string{"abba - waterloo"}},
		{"case-insensitive client entry", []string{"ABBA - Waterloo"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &fakePicker{picks: []*picker.Pick{
				{Artist: "ABBA", Title: "Waterloo", Year: 1974}, // seen, must be rejected
				{Artist: "Toto", Title: "Africa", Year: 1982},
			}}
			loop := NewLoop(p, nil, &fakeLinks{url: "https://link"}, &fakeHistory{ids: tt.durable})

			card, err := loop.GenerateCard(context.Background(), "u1", ModeDuel, tt.clientSeen)
			if err != nil {
				t.Fatalf("GenerateCard() error = %v", err)
			}
			if card.Title != "Africa" {
				t.Errorf("card = %q, want the unseen pick", card.Title)
			}
			if p.calls != 2 {
				t.Errorf("picker called %d times, want 2", p.calls)
			}
		})
	}
}

func TestGenerateCardExhaustsAfterCap(t *testing.T) {
	// Every attempt picks the same seen song.
	same := &picker.Pick{Artist: "ABBA", Title: "Waterloo", Year: 1974}
	p := &fakePicker{picks: []*picker.Pick{same, same, same, same, same, same}}
	loop := NewLoop(p, nil, &fakeLinks{url: "https://link"}, &fakeHistory{})

	_, err := loop.GenerateCard(context.Background(), "u1", ModeDuel, []string{"abba - waterloo"})
	if !errors.Is(err, ErrExhausted) {
		t.Fatalf("GenerateCard() error = %v, want ErrExhausted", err)
	}
	if p.calls != MaxAttempts {
		t.Errorf("picker called %d times, want %d", p.calls, MaxAttempts)
	}
}

func TestGenerateCardFoldsFailuresIntoRetry(t *testing.T) {
	p := &fakePicker{picks: []*picker.Pick{
		nil, // picker failure
		{Artist: "Toto", Title: "Africa", Year: 1982},
	}}
	loop := NewLoop(p, nil, &fakeLinks{url: "https://link"}, &fakeHistory{err: errors.New("db down")})

	// History failure degrades to client-set-only dedup; picker failure is
	// one burned attempt.
	card, err := loop.GenerateCard(context.Background(), "u1", ModeDuel, nil)
	if err != nil {
		t.Fatalf("GenerateCard() error = %v", err)
	}
	if card.Title != "Africa" {
		t.Errorf("card = %q", card.Title)
	}
}

func TestGenerateCardNoCatalogHitBurnsAttempt(t *testing.T) {
	p := &fakePicker{picks: []*picker.Pick{
		{Artist: "Obscure", Title: "B-side", Year: 1991},
		{Artist: "Toto", Title: "Africa", Year: 1982},
	}}
	resolver := &sequencePreviews{hits: []*catalog.Candidate{nil, {PreviewURL: "https://p", Source: catalog.SourceDeezer}}}
	loop := NewLoop(p, resolver, nil, &fakeHistory{})

	card, err := loop.GenerateCard(context.Background(), "u1", ModePreview, nil)
	if err != nil {
		t.Fatalf("GenerateCard() error = %v", err)
	}
	if card.Title != "Africa" {
		t.Errorf("card = %q, want the pick that resolved", card.Title)
	}
}

type sequencePreviews struct {
	hits  []*catalog.Candidate
	calls int
}

func (s *sequencePreviews) Resolve(_ context.Context, _, _ string, _ int) (*catalog.Candidate, error) {
	if s.calls >= len(s.hits) {
		return nil, nil
	}
	h := s.hits[s.calls]
	s.calls++
	return h, nil
}
