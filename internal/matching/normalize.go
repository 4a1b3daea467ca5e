// Package matching provides pure string normalization and fuzzy matching
// for comparing requested songs against catalog search results.
package matching

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripDiacritics decomposes characters and drops combining marks,
// so "Beyoncé" normalizes to "beyonce".
var stripDiacritics = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

var (
	parenRe      = regexp.MustCompile(`\([^)]*\)`)
	bracketRe    = regexp.MustCompile(`\[[^\]]*\]`)
	separatorRe  = regexp.MustCompile(`[-_:]`)
	whitespaceRe = regexp.MustCompile(`\s+`)

	// titleSuffixRe matches qualifier words that distinguish alternate cuts
	// of the same recording and should not affect title comparison.
	titleSuffixRe = regexp.MustCompile(`\b(remix|remastered|radio edit|karaoke|tribute|cover|version|edit|extended|club mix|live)\b`)
)

// Normalize strips diacritics, removes parenthetical and bracketed
// qualifiers, collapses separators and whitespace, and lowercases.
func Normalize(s string) string {
	out, _, err := transform.String(stripDiacritics, s)
	if err != nil {
		out = s
	}
	out = parenRe.ReplaceAllString(out, " ")
	out = bracketRe.ReplaceAllString(out, " ")
	out = separatorRe.ReplaceAllString(out, " ")
	out = whitespaceRe.ReplaceAllString(out, " ")
	return strings.ToLower(strings.TrimSpace(out))
}

// NormalizeTitle applies Normalize and additionally removes a fixed
// vocabulary of suffix words ("remix", "remastered", "radio edit", ...)
// so that alternate cuts compare equal.
func NormalizeTitle(title string) string {
	t := titleSuffixRe.ReplaceAllString(Normalize(title), "")
	t = whitespaceRe.ReplaceAllString(t, " ")
	return strings.TrimSpace(t)
}

// Tokens splits the normalized form of s on whitespace and discards
// single-character tokens.
func Tokens(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(Normalize(s)) {
		if utf8.RuneCountInString(w) > 1 {
			set[w] = struct{}{}
		}
	}
	return set
}

// TokenOverlap returns |a ∩ b| / max(|a|, |b|), in [0, 1].
func TokenOverlap(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for t := range a {
		if _, ok := b[t]; ok {
			inter++
		}
	}
	return float64(inter) / float64(max(len(a), len(b)))
}
