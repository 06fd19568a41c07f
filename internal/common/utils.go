package common

import (
	"regexp"
	"strings"
)

// HasAny returns true if s contains any of the substrings.
func HasAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// ClampInt limits n to [lo, hi].
func ClampInt(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}

var zipQuery = regexp.MustCompile(`^\d{5}(,[a-z]{2})?$`)

// IsZipQuery reports whether s looks like a five digit zip code, optionally
// followed by a two letter country code ("94110" or "94110,us").
func IsZipQuery(s string) bool {
	return zipQuery.MatchString(strings.ToLower(strings.TrimSpace(s)))
}
