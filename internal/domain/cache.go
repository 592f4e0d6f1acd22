package domain

import "time"

// CacheRecord is one entry of the shared cross-user cache.
// The (NameKey, ArtistKey, YearKey) triple is unique. Empty strings stand in
// for absent values.
type CacheRecord struct {
	LastHitAt     time.Time `json:"last_hit_at"`
	CreatedAt     time.Time `json:"created_at"`
	NameKey       string    `json:"name_key"`
	ArtistKey     string    `json:"artist_key"`
	YearKey       string    `json:"year_key,omitempty"`
	DisplayName   string    `json:"display_name"`
	DisplayArtist string    `json:"display_artist"`
	ImageURL      string    `json:"image_url,omitempty"`
	ImageSource   string    `json:"image_source,omitempty"`
	GenreTags     string    `json:"genre_tags,omitempty"`
	GenreSource   string    `json:"genre_source,omitempty"`
	HitCount      int       `json:"hit_count"`
}

// Value returns the cached value and its source for kind.
func (r *CacheRecord) Value(kind Kind) (value, source string) {
	switch kind {
	case KindImage:
		return r.ImageURL, r.ImageSource
	case KindGenre:
		return r.GenreTags, r.GenreSource
	default:
		return "", ""
	}
}

// CacheFields is the payload of an upsert. A non-empty value replaces the
// stored one together with its source; empty value fields never clear
// stored data.
type CacheFields struct {
	DisplayName   string
	DisplayArtist string
	ImageURL      string
	ImageSource   string
	GenreTags     string
	GenreSource   string
}

// FieldsFor builds the upsert payload for a single resolved value.
func FieldsFor(kind Kind, value, source, displayName, displayArtist string) CacheFields {
	f := CacheFields{DisplayName: displayName, DisplayArtist: displayArtist}
	switch kind {
	case KindImage:
		f.ImageURL, f.ImageSource = value, source
	case KindGenre:
		f.GenreTags, f.GenreSource = value, source
	}
	return f
}

// Merge applies the non-empty values of f to r and refreshes LastHitAt. Stores that cannot express the rule in a single statement use
// it inside a transaction.
func (r *CacheRecord) Merge(f CacheFields, now time.Time) {
	if r.DisplayName == "" {
		r.DisplayName = f.DisplayName
	}
	if r.DisplayArtist == "" {
		r.DisplayArtist = f.DisplayArtist
	}
	if f.ImageURL != "" {
		r.ImageURL = f.ImageURL
		r.ImageSource = f.ImageSource
	}
	if f.GenreTags != "" {
		r.GenreTags = f.GenreTags
		r.GenreSource = f.GenreSource
	}
	r.LastHitAt = now
}

// CacheStats summarizes the shared cache.
type CacheStats struct {
	Top       []CacheRecord `json:"top"`
	Total     int           `json:"total"`
	WithImage int           `json:"with_image"`
	WithGenre int           `json:"with_genre"`
	WithBoth  int           `json:"with_both"`
	TotalHits int64         `json:"total_hits"`
}

// StatsTopN is how many most-hit records Stats returns.
const StatsTopN = 10

// PruneMinHits protects records hit at least this often from pruning.
const PruneMinHits = 5
