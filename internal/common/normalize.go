package common

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripMarks decomposes characters and drops combining marks, turning
// "Crédito Habitação" into "Credito Habitacao".
var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize produces the match key for a transaction description: uppercase,
// diacritics stripped, whitespace collapsed to single spaces. Rule keyword
// terms go through the same function so matching stays symmetric.
func Normalize(s string) string {
	out, _, err := transform.String(stripMarks, s)
	if err != nil {
		// Transform only fails on malformed input; fall back to the raw text.
		out = s
	}
	out = strings.ToUpper(out)
	return strings.Join(strings.Fields(out), " ")
}

// NormalizeTerms normalizes every term in the slice, dropping any that
// normalize to the empty string.
func NormalizeTerms(terms []string) []string {
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		if n := Normalize(t); n != "" {
			out = append(out, n)
		}
	}
	return out
}
