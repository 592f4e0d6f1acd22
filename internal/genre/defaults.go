package genre

// IgnoredTags are folksonomy tags catalogs return alongside real genres.
// Keyed by slug.
var IgnoredTags = map[string]bool{
	"seen-live":            true,
	"favorites":            true,
	"favourites":           true,
	"favorite":             true,
	"my-favorites":         true,
	"albums-i-own":         true,
	"owned":                true,
	"vinyl":                true,
	"cd":                   true,
	"spotify":              true,
	"under-2000-listeners": true,
	"check-out":            true,
	"to-listen":            true,
	"awesome":              true,
	"beautiful":            true,
	"love":                 true,
	"male-vocalists":       true,
	"female-vocalists":     true,
	"british":              true,
	"american":             true,
	"uk":                   true,
	"usa":                  true,
	"english":              true,
	"german":               true,
	"french":               true,
	"japanese":             true,
	"00s":                  true,
	"10s":                  true,
	"60s":                  true,
	"70s":                  true,
	"80s":                  true,
	"90s":                  true,
}

// DefaultLimit is how many genres are kept for one record.
const DefaultLimit = 3

// Separator joins genres in the stored representation.
const Separator = ", "
