package resolver

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// minTokenLen is the shortest token that takes part in similarity scoring.
const minTokenLen = 3

// Normalize lower-cases s, strips diacritics and collapses whitespace.
func Normalize(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.Join(strings.Fields(strings.ToLower(folded)), " ")
}

// Tokens splits a normalized name on whitespace and drops tokens shorter
// than three characters.
func Tokens(s string) []string {
	var out []string
	for _, tok := range strings.Fields(Normalize(s)) {
		if utf8.RuneCountInString(tok) >= minTokenLen {
			out = append(out, tok)
		}
	}
	return out
}

// Slug renders a name as a lowercase ASCII identifier joined by underscores.
func Slug(s string) string {
	var b strings.Builder
	lastUnderscore := true
	for _, r := range Normalize(s) {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
			lastUnderscore = false
		case !lastUnderscore:
			b.WriteByte('_')
			lastUnderscore = true
		}
	}
	return strings.TrimRight(b.String(), "_")
}

// compact strips every non-alphanumeric rune so "push_up" and "Push Up" compare equal.
func compact(s string) string {
	var b strings.Builder
	for _, r := range Normalize(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
