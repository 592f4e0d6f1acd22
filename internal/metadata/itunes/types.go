// Package itunes provides a client for the Apple iTunes Search API, used to
// find album artwork and a primary genre.
package itunes

// AlbumResult represents an album from iTunes search.
type AlbumResult struct {
	ID          int64  `json:"id"`           // iTunes collectionId
	Title       string `json:"title"`        // Collection name
	Artist      string `json:"artist"`       // Artist name
	CoverURL    string `json:"cover_url"`    // High-res cover URL
	Genre       string `json:"genre"`        // primaryGenreName
	ReleaseDate string `json:"release_date"` // ISO 8601 as returned
}

// searchResponse is the raw iTunes API response.
type searchResponse struct {
	ResultCount int            `json:"resultCount"`
	Results     []searchResult `json:"results"`
}

// searchResult is a single result from iTunes search.
type searchResult struct {
	WrapperType      string `json:"wrapperType"`
	CollectionType   string `json:"collectionType"`
	CollectionID     int64  `json:"collectionId"`
	CollectionName   string `json:"collectionName"`
	ArtistName       string `json:"artistName"`
	ArtworkURL60     string `json:"artworkUrl60"`
	ArtworkURL100    string `json:"artworkUrl100"`
	TrackCount       int    `json:"trackCount,omitempty"`
	ReleaseDate      string `json:"releaseDate,omitempty"`
	PrimaryGenreName string `json:"primaryGenreName,omitempty"`
}
