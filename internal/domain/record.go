package domain

import "time"

// Album is a user's album record. ImageURL and Genres are the fields the
// batches fill in.
type Album struct {
	UpdatedAt   time.Time `json:"updated_at"`
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Title       string    `json:"title"`
	Artist      string    `json:"artist"`
	ReleaseDate string    `json:"release_date,omitempty"`
	ImageURL    string    `json:"image_url,omitempty"`
	Genres      string    `json:"genres,omitempty"`
}

// Track is a user's track record. AlbumName links it to an album by title.
type Track struct {
	UpdatedAt   time.Time `json:"updated_at"`
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Title       string    `json:"title"`
	Artist      string    `json:"artist"`
	AlbumName   string    `json:"album_name,omitempty"`
	ReleaseDate string    `json:"release_date,omitempty"`
	ImageURL    string    `json:"image_url,omitempty"`
	Genres      string    `json:"genres,omitempty"`
}

// MissingByKind counts records lacking each field.
type MissingByKind struct {
	Total        int `json:"total"`
	MissingImage int `json:"missing_image"`
	MissingGenre int `json:"missing_genre"`
}

// MissingCounts is the batch status for one user.
type MissingCounts struct {
	Albums MissingByKind `json:"albums"`
	Tracks MissingByKind `json:"tracks"`
}
