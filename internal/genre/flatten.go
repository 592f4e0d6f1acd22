package genre

import (
	"strings"
	"unicode"
)

// Flatten reduces a list of raw catalog tags to the stored genre string:
// canonical names, ignored tags dropped, duplicates removed (first
// occurrence wins), at most limit entries, joined with Separator.
// A non-positive limit means DefaultLimit.
//
//	Flatten([]string{"Rock", "rock", "Hip-Hop", "seen live", "Jazz"}, 3)
//	  -> "rock, hip hop, jazz"
func Flatten(tags []string, limit int) string {
	if limit <= 0 {
		limit = DefaultLimit
	}

	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, limit)
	for _, tag := range tags {
		slug := Slugify(tag)
		if slug == "" || IgnoredTags[slug] {
			continue
		}
		name := Canonical(tag)
		key := Slugify(name)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, name)
		if len(out) == limit {
			break
		}
	}
	return strings.Join(out, Separator)
}

// clean lowercases a tag and collapses its whitespace.
func clean(s string) string {
	return strings.Join(strings.FieldsFunc(strings.ToLower(s), unicode.IsSpace), " ")
}
