package storage

import (
	"strings"
	"unicode"
)

// MakeNameSearchable lower-cases name and keeps only letters and digits, so
// "Poly(ethylene glycol)" and "polyethylene-glycol" compare equal
func MakeNameSearchable(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
