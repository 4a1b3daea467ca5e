package engine

import (
	"errors"
	"math"
	"regexp"
	"sort"
	"strconv"
	"time"
)

// Placement disambiguates a guess on a year that already exists on the
// effective timeline.
type Placement string

// Placement values.
const (
	PlacementNone   Placement = ""
	PlacementBefore Placement = "before"
	PlacementAfter  Placement = "after"
)

// ErrInvalidGuess is returned by ValidateGuess for input that must never
// reach the engine.
var ErrInvalidGuess = errors.New("guess must be a four-digit year between 1900 and the current year")

var guessRe = regexp.MustCompile(`^\d{4}$`)

// ValidateGuess checks the raw guess text before it reaches ConfirmGuess:
// exactly four digits, within 1900..current year.
func ValidateGuess(raw string) (int, error) {
	if !guessRe.MatchString(raw) {
		return 0, ErrInvalidGuess
	}
	year, err := strconv.Atoi(raw)
	if err != nil {
		return 0, ErrInvalidGuess
	}
	if year < 1900 || year > time.Now().Year() {
		return 0, ErrInvalidGuess
	}
	return year, nil
}

// GuessResult is the tagged outcome of ConfirmGuess. Lower and Upper are
// the bounds the card year was checked against (math.MinInt/MaxInt stand in
// for the open ends); they let a caller explain the verdict.
type GuessResult struct {
	Correct bool
	Lower   int
	Upper   int
}

// ConfirmGuess validates a guessed year for the current card against the
// active player's effective timeline.
//
// A guess equal to the card's true year is unconditionally correct,
// regardless of placement. When the guessed year already exists on the
// timeline the caller must pass a placement, and the card year must fall
// strictly inside the chosen gap (open interval on both sides). Otherwise
// the card year must fall in the half-open interval (lower, upper] around
// the guess; the inclusive upper end accepts a card landing exactly on the
// next committed year.
//
// On a correct guess the card joins the round buffer. On a wrong guess
// nothing is mutated; the caller is expected to call SwitchPlayerTurn.
func (m *Match) ConfirmGuess(guessedYear int, card Card, placement Placement) GuessResult {
	if card.Year == guessedYear {
		m.RoundCards = append(m.RoundCards, card)
		m.touch()
		return GuessResult{Correct: true, Lower: guessedYear, Upper: guessedYear}
	}

	timeline := m.EffectiveTimeline()
	lower, upper := math.MinInt, math.MaxInt
	var correct bool

	if placement != PlacementNone {
		// Ambiguous guess: the year is a pivot already on the timeline and
		// the card must fit the gap strictly before or after it.
		switch placement {
		case PlacementBefore:
			upper = guessedYear
			if i := sort.SearchInts(timeline, guessedYear); i > 0 {
				lower = timeline[i-1]
			}
		case PlacementAfter:
			lower = guessedYear
			if i := sort.SearchInts(timeline, guessedYear+1); i < len(timeline) {
				upper = timeline[i]
			}
		}
		correct = lower < card.Year && card.Year < upper
	} else {
		i := sort.SearchInts(timeline, guessedYear+1) // first year strictly greater
		switch {
		case i == len(timeline):
			lower = timeline[len(timeline)-1]
		case i == 0:
			upper = timeline[0]
		default:
			lower = timeline[i-1]
			upper = timeline[i]
		}
		correct = lower < card.Year && card.Year <= upper
	}

	if correct {
		m.RoundCards = append(m.RoundCards, card)
		m.touch()
	}
	return GuessResult{Correct: correct, Lower: lower, Upper: upper}
}
