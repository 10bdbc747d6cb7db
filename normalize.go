package main

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// normalizeKey maps a raw substance name to its canonical lookup key:
// lowercase, diacritics stripped, punctuation removed (hyphens kept since
// they are meaningful in chemical names like "5-htp"), whitespace collapsed.
// Total and idempotent: every string maps to a key, and
// normalizeKey(normalizeKey(s)) == normalizeKey(s).
func normalizeKey(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ""
	}

	s = stripDiacritics(s)

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}

	return strings.Join(strings.Fields(b.String()), " ")
}

// stripDiacritics decomposes the string into NFD form and removes combining
// marks, so "áçcénted" becomes "accented".
func stripDiacritics(s string) string {
	decomposed := norm.NFD.String(s)
	var result strings.Builder
	result.Grow(len(decomposed))

	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		result.WriteRune(r)
	}

	return result.String()
}
