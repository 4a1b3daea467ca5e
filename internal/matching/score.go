package matching

import "strings"

// ArtistMatches reports whether a catalog artist plausibly names the
// requested artist: token overlap of at least 0.5, or one normalized
// name containing the other ("The Beatles" vs "Beatles").
func ArtistMatches(found, want string) bool {
	if TokenOverlap(Tokens(found), Tokens(want)) >= 0.5 {
		return true
	}
	fn, wn := Normalize(found), Normalize(want)
	if fn == "" || wn == "" {
		return false
	}
	return strings.Contains(fn, wn) || strings.Contains(wn, fn)
}

// TitleMatches reports whether a catalog title names the requested title:
// strictly-normalized titles equal, or token overlap of the stripped forms
// of at least 0.6 (tolerates "feat. X" variants).
func TitleMatches(found, want string) bool {
	fn, wn := NormalizeTitle(found), NormalizeTitle(want)
	if fn == wn && fn != "" {
		return true
	}
	return TokenOverlap(Tokens(fn), Tokens(wn)) >= 0.6
}

// Score ranks a catalog result against the requested artist/title/year.
// foundYear and wantYear of 0 mean unknown. Score is a tie-breaker among
// admissible candidates only; admissibility itself is ArtistMatches AND
// TitleMatches on the top-ranked candidate.
func Score(foundArtist, foundTitle string, foundYear int, wantArtist, wantTitle string, wantYear int) int {
	score := 0

	artistOK := ArtistMatches(foundArtist, wantArtist)
	titleOK := TitleMatches(foundTitle, wantTitle)

	if artistOK {
		score += 10
	}
	if titleOK {
		score += 10
	}
	// Penalize covers and tributes: exact title on the wrong artist.
	if !artistOK && titleOK {
		score -= 5
	}

	if wantYear != 0 && foundYear != 0 {
		diff := foundYear - wantYear
		if diff < 0 {
			diff = -diff
		}
		switch {
		case diff <= 1:
			score += 4
		case diff <= 3:
			score += 2
		case diff <= 6:
			score += 1
		}
	}

	return score
}
