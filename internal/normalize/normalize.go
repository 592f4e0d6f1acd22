// Package normalize provides utilities for normalizing and sanitizing data.
//
// CacheKey turns free-form album metadata into the identity the shared cache
// is keyed by. Two records that differ only in case, punctuation or spacing
// produce the same key.
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Key is the normalized identity of an album in the shared cache.
// Year is empty when the date hint carried no 4-digit year.
type Key struct {
	Name   string `json:"name"`
	Artist string `json:"artist"`
	Year   string `json:"year"`
}

// WithoutYear returns the key with the year component cleared.
func (k Key) WithoutYear() Key {
	return Key{Name: k.Name, Artist: k.Artist}
}

// IsZero reports whether the key has no name and no artist.
func (k Key) IsZero() bool {
	return k.Name == "" && k.Artist == ""
}

// String renders the key for logs.
func (k Key) String() string {
	if k.Year == "" {
		return k.Name + " / " + k.Artist
	}
	return k.Name + " / " + k.Artist + " (" + k.Year + ")"
}

// CacheKey builds the cache identity for an album.
// "Abbey Road (Remastered)", "The Beatles", "1969-09-26" ->
// {"abbey road remastered", "the beatles", "1969"}.
func CacheKey(name, artist, dateHint string) Key {
	return Key{
		Name:   Text(name),
		Artist: Text(artist),
		Year:   Year(dateHint),
	}
}

// Text normalizes one name or artist string: composed unicode, lowercased,
// every rune that is not a letter, digit or whitespace removed, whitespace
// runs collapsed to a single space, trimmed.
//
// Punctuation is removed before whitespace is collapsed so the function is
// idempotent: "a - b" becomes "a b" in one pass.
func Text(s string) string {
	if s == "" {
		return ""
	}

	s = norm.NFC.String(sanitizeString(s))

	var b strings.Builder
	b.Grow(len(s))
	pendingSpace := false
	for _, r := range s {
		switch {
		case unicode.IsSpace(r):
			pendingSpace = b.Len() > 0
		case unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.Is(unicode.Mn, r):
			if pendingSpace {
				b.WriteByte(' ')
				pendingSpace = false
			}
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

// Matches reports whether a catalog title plausibly names the wanted one:
// after normalization either contains the other. "Abbey Road (Remastered
// 2009)" matches "Abbey Road". Empty strings never match.
func Matches(candidate, want string) bool {
	c, w := Text(candidate), Text(want)
	if c == "" || w == "" {
		return false
	}
	return strings.Contains(c, w) || strings.Contains(w, c)
}

// Year extracts the first run of four consecutive ASCII digits from a
// free-form date hint. "1969-09-26" -> "1969", "Released 2003" -> "2003".
// Returns empty string when there is none.
func Year(dateHint string) string {
	run := 0
	for i := 0; i < len(dateHint); i++ {
		c := dateHint[i]
		if c >= '0' && c <= '9' {
			run++
			if run == 4 {
				return dateHint[i-3 : i+1]
			}
			continue
		}
		run = 0
	}
	return ""
}

// IsMissing reports whether a stored field value should be treated as absent.
// Imports from older clients wrote the literal "undefined" instead of null.
func IsMissing(value string) bool {
	v := strings.TrimSpace(value)
	return v == "" || strings.EqualFold(v, "undefined") || strings.EqualFold(v, "null")
}

// sanitizeString removes null bytes from strings, which can cause
// issues in databases and JSON parsing. Tag parsers sometimes include
// null terminators in strings.
func sanitizeString(s string) string {
	return strings.Map(func(r rune) rune {
		if r == 0 { // null byte
			return -1 // drop it
		}
		return r
	}, s)
}
