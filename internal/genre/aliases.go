package genre

// CanonicalAliases maps slugified variations to the canonical display name.
// Catalogs disagree on spelling ("Hip-Hop", "hiphop", "Hip Hop"); the cache
// stores one form so stats and search group them together.
var CanonicalAliases = map[string]string{
	// Hip hop / rap
	"hip-hop":     "hip hop",
	"hiphop":      "hip hop",
	"hip-hop-rap": "hip hop",
	"rap-hip-hop": "hip hop",
	"rap":         "hip hop",

	// R&B / soul
	"r-b":              "r&b",
	"rnb":              "r&b",
	"rhythm-and-blues": "r&b",
	"r-b-soul":         "r&b",
	"contemporary-r-b": "r&b",

	// Electronic
	"electronica":      "electronic",
	"electro":          "electronic",
	"dance-electronic": "electronic",
	"edm":              "electronic",
	"drum-n-bass":      "drum and bass",
	"drum-and-bass":    "drum and bass",
	"dnb":              "drum and bass",

	// Rock
	"rock-n-roll":       "rock and roll",
	"rock-and-roll":     "rock and roll",
	"rock-roll":         "rock and roll",
	"alt-rock":          "alternative rock",
	"alternative":       "alternative rock",
	"indie":             "indie rock",
	"post-punk-revival": "post-punk",
	"prog":              "progressive rock",
	"prog-rock":         "progressive rock",

	// Metal
	"heavy-metal": "metal",
	"nu-metal":    "nu metal",

	// Pop
	"pop-music": "pop",
	"k-pop":     "k-pop",
	"kpop":      "k-pop",
	"j-pop":     "j-pop",
	"jpop":      "j-pop",

	// Misc
	"singer-songwriter": "singer-songwriter",
	"lo-fi":             "lo-fi",
	"lofi":              "lo-fi",
	"soundtracks":       "soundtrack",
	"original-score":    "soundtrack",
	"classical-music":   "classical",
	"country-music":     "country",
	"world-music":       "world",
}

// Canonical returns the canonical display name for a raw tag.
// Returns the cleaned, lowercased input if no specific mapping found.
func Canonical(raw string) string {
	slug := Slugify(raw)
	if slug == "" {
		return ""
	}

	// Check built-in aliases first.
	if canonical, ok := CanonicalAliases[slug]; ok {
		return canonical
	}

	return clean(raw)
}
