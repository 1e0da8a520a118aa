package rules

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// CanonicalName returns the canonical form of a user-supplied title or
// rule name: Unicode NFC normalized, surrounding whitespace trimmed,
// internal whitespace runs collapsed to single spaces.
//
// Titles arrive from several sources (admin input, suggestion feeds)
// and are compared when linking quick events to overrides; two strings
// that render identically must compare equal.
func CanonicalName(s string) string {
	return norm.NFC.String(strings.Join(strings.Fields(s), " "))
}

// SameName reports whether two titles are equal in canonical form.
func SameName(a, b string) bool {
	return CanonicalName(a) == CanonicalName(b)
}
