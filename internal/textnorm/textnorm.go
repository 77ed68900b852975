// Package textnorm canonicalizes free-text answers so comparison is tolerant
// of case, diacritics, punctuation, and spacing.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripMarks decomposes to NFKD and drops combining marks, so "é" -> "e".
var stripMarks = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize lowers the text, folds ё to е, removes diacritics, replaces
// punctuation with spaces, and collapses whitespace. An input with no word
// characters normalizes to the empty string.
func Normalize(text string) string {
	t := strings.ToLower(strings.TrimSpace(text))
	if t == "" {
		return ""
	}
	t = strings.ReplaceAll(t, "ё", "е")
	if out, _, err := transform.String(stripMarks, t); err == nil {
		t = out
	}

	var b strings.Builder
	b.Grow(len(t))
	space := false
	for _, r := range t {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space {
			b.WriteRune(' ')
			space = true
		}
	}
	return strings.TrimSpace(b.String())
}

// IsWordChar reports whether the rune counts as a revealable answer
// character (letters and digits; spaces, hyphens, and punctuation do not).
func IsWordChar(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
