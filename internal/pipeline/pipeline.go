// Package pipeline owns card sourcing on the client side: the rolling seen
// set, the retry-until-unique fetch loop, and the one-card look-ahead buffer
// that makes the next round instant.
package pipeline

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/oskarlind/trackline/internal/engine"
)

const (
	// MaxSeen caps the client-local seen history; the oldest identity is
	// evicted FIFO and becomes offerable again.
	MaxSeen = 200

	// MaxAttempts caps the fetch retry loop.
	MaxAttempts = 5
)

// Errors surfaced to the caller.
var (
	// ErrNoUniqueCard means every attempt was rejected or failed; the user
	// may simply retry.
	ErrNoUniqueCard = errors.New("could not fetch a unique song, try again")

	// ErrNotHydrated means a fetch was requested before Hydrate finished.
	// Deciding "no card yet, fetch one" before hydration would double-fetch
	// on resume and desynchronize the look-ahead slot.
	ErrNotHydrated = errors.New("pipeline used before hydration")

	// ErrFetchInFlight means a card fetch is already loading.
	ErrFetchInFlight = errors.New("card fetch already in flight")
)

// CardSource is the remote candidate-generation endpoint. FetchCard failures
// of any kind are treated by the pipeline as "no candidate this attempt".
type CardSource interface {
	FetchCard(ctx context.Context, clientSeen []string) (*engine.Card, error)
	MarkSeen(ctx context.Context, card engine.Card) error
}

// Pipeline is the card sourcing and deduplication state for one session.
type Pipeline struct {
	source CardSource
	store  SeenStore

	saveMu sync.Mutex // serializes local-store writes

	mu         sync.Mutex
	seen       []string // oldest first
	seenSet    map[string]struct{}
	card       *engine.Card
	next       *engine.Card
	loading    bool
	preloading bool
	hydrated   bool
}

// New creates a pipeline. Hydrate must be called before the first fetch.
func New(source CardSource, store SeenStore) *Pipeline {
	return &Pipeline{
		source:  source,
		store:   store,
		seenSet: make(map[string]struct{}),
	}
}

// Hydrate loads the client-local seen history, trimmed to the most recent
// MaxSeen entries. preloaded, when non-nil, is an already-fetched card handed
// in from outside (the instant first card); it is treated exactly like a
// resolved fetch: shown, added to the seen set, marked seen remotely, and
// acknowledged through onPreloadConsumed so the outer session does not serve
// the same card to a second match.
func (p *Pipeline) Hydrate(ctx context.Context, preloaded *engine.Card, onPreloadConsumed func()) error {
	ids, err := p.store.Load()
	if err != nil {
		// A broken local tier only weakens dedup; it never blocks play.
		log.Printf("pipeline: loading local seen history: %v", err)
	}
	if len(ids) > MaxSeen {
		ids = ids[len(ids)-MaxSeen:]
	}

	p.mu.Lock()
	p.seen = ids
	p.seenSet = make(map[string]struct{}, len(ids))
	for _, id := range ids {
		p.seenSet[id] = struct{}{}
	}
	p.hydrated = true

	if preloaded != nil {
		p.card = preloaded
		p.addSeenLocked(preloaded.Identity())
		p.mu.Unlock()
		p.markSeen(*preloaded)
		p.schedulePreload()
		if onPreloadConsumed != nil {
			onPreloadConsumed()
		}
		return nil
	}
	p.mu.Unlock()
	return nil
}

// RestoreView hydrates the displayed card and look-ahead buffer from a saved
// session, before any fetch decision is made. A restored card with an empty
// buffer kicks off a refill, same as any other state where a card is showing
// and the look-ahead slot is vacant.
func (p *Pipeline) RestoreView(card, next *engine.Card) {
	p.mu.Lock()
	p.card = card
	p.next = next
	warm := card != nil && next == nil
	p.mu.Unlock()

	if warm {
		p.schedulePreload()
	}
}

// Current returns the card being shown, if any.
func (p *Pipeline) Current() *engine.Card {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.card
}

// Buffered returns the look-ahead card, if any.
func (p *Pipeline) Buffered() *engine.Card {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.next
}

// GenerateCard makes a card current: instantly from the look-ahead buffer
// when one is ready, otherwise through the retry loop. On success the buffer
// refill is kicked off in the background.
func (p *Pipeline) GenerateCard(ctx context.Context) (*engine.Card, error) {
	p.mu.Lock()
	if !p.hydrated {
		p.mu.Unlock()
		return nil, ErrNotHydrated
	}
	if p.loading {
		p.mu.Unlock()
		return nil, ErrFetchInFlight
	}

	if p.next != nil {
		card := p.next
		p.card, p.next = card, nil
		p.mu.Unlock()

		p.markSeen(*card)
		p.schedulePreload()
		return card, nil
	}

	p.loading = true
	p.mu.Unlock()

	card := p.fetchUnique(ctx)

	p.mu.Lock()
	p.loading = false
	if card == nil {
		p.card = nil
		p.mu.Unlock()
		return nil, ErrNoUniqueCard
	}
	p.card = card
	p.mu.Unlock()

	p.markSeen(*card)
	p.schedulePreload()
	return card, nil
}

// PreloadNext fills the look-ahead buffer. It is a deliberate no-op while a
// fetch is loading or when a buffered card already exists, so it can never
// clobber an in-flight GenerateCard or double-fill the slot.
func (p *Pipeline) PreloadNext(ctx context.Context) {
	p.mu.Lock()
	if !p.hydrated || p.loading || p.preloading || p.next != nil {
		p.mu.Unlock()
		return
	}
	p.preloading = true
	p.mu.Unlock()

	card := p.fetchUnique(ctx)

	p.mu.Lock()
	p.preloading = false
	if card != nil && p.next == nil {
		p.next = card
	}
	p.mu.Unlock()

	if card == nil {
		log.Print("pipeline: could not preload a unique card")
	}
}

// fetchUnique runs the retry loop: each attempt sends an immutable snapshot
// of the seen set, and the set is mutated only when a candidate is accepted.
func (p *Pipeline) fetchUnique(ctx context.Context) *engine.Card {
	for attempt := 0; attempt < MaxAttempts; attempt++ {
		p.mu.Lock()
		snapshot := make([]string, len(p.seen))
		copy(snapshot, p.seen)
		p.mu.Unlock()

		card, err := p.source.FetchCard(ctx, snapshot)
		if err != nil {
			log.Printf("pipeline: fetch attempt %d: %v", attempt+1, err)
			continue
		}
		if card == nil {
			continue
		}

		id := card.Identity()
		p.mu.Lock()
		if _, dup := p.seenSet[id]; dup {
			p.mu.Unlock()
			continue
		}
		p.addSeenLocked(id)
		p.mu.Unlock()
		return card
	}
	return nil
}

// addSeenLocked appends an identity, evicting the oldest beyond MaxSeen, and
// persists the local tier best-effort. Callers hold p.mu.
func (p *Pipeline) addSeenLocked(id string) {
	p.seen = append(p.seen, id)
	if len(p.seen) > MaxSeen {
		evicted := p.seen[0]
		p.seen = p.seen[1:]
		delete(p.seenSet, evicted)
	}
	p.seenSet[id] = struct{}{}
	p.persistSeen()
}

// persistSeen writes the seen list to the local store in the background.
// Writers are serialized through saveMu and snapshot the list only after
// acquiring it, so a slow write can never overwrite a newer one.
func (p *Pipeline) persistSeen() {
	go func() {
		p.saveMu.Lock()
		defer p.saveMu.Unlock()

		p.mu.Lock()
		ids := make([]string, len(p.seen))
		copy(ids, p.seen)
		p.mu.Unlock()

		if err := p.store.Save(ids); err != nil {
			log.Printf("pipeline: saving local seen history: %v", err)
		}
	}()
}

// markSeen appends to the durable tier, fire-and-forget: failures are
// logged, never surfaced, never retried.
func (p *Pipeline) markSeen(card engine.Card) {
	go func() {
		if err := p.source.MarkSeen(context.Background(), card); err != nil {
			log.Printf("pipeline: marking %q seen: %v", card.Identity(), err)
		}
	}()
}

// schedulePreload warms the look-ahead buffer in the background.
func (p *Pipeline) schedulePreload() {
	go p.PreloadNext(context.Background())
}
