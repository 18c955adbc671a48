// Package normalizer turns raw user input into the canonical lookup keys
// used by the report index. Keys are lower-case and contain only the letters
// a-z and spaces; every other rune is deleted rather than replaced, so
// "co2 level" becomes "co level".
package normalizer

import (
	"strings"
)

// Normalized pairs a raw search term with its lookup key.
type Normalized struct {
	Raw      string `json:"raw"`
	Term     string `json:"term"`
	Modified bool   `json:"modified"`
}

// Normalize lower-cases raw and deletes every rune that is not a-z or a
// space. Leading, trailing and repeated spaces are kept as typed.
func Normalize(raw string) string {
	lower := strings.ToLower(raw)
	var b strings.Builder
	b.Grow(len(lower))
	for _, r := range lower {
		if isKeyRune(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Term normalizes raw and reports whether characters had to be removed, in
// which case callers should show the substituted term to the user.
func Term(raw string) Normalized {
	term := Normalize(raw)
	return Normalized{
		Raw:      raw,
		Term:     term,
		Modified: term != strings.ToLower(raw),
	}
}

func isKeyRune(r rune) bool {
	return r == ' ' || (r >= 'a' && r <= 'z')
}
