// Package spotify provides a client for the Spotify Web API using the
// client-credentials flow. Only catalog endpoints are used, so no user
// authorization is involved.
package spotify

// Image is one rendition of album artwork.
type Image struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// Artist is a (possibly simplified) artist object. Genres is only filled by
// GetArtist.
type Artist struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Genres []string `json:"genres,omitempty"`
}

// Album is a simplified album object from search.
type Album struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	AlbumType   string   `json:"album_type"`
	ReleaseDate string   `json:"release_date"`
	Artists     []Artist `json:"artists"`
	Images      []Image  `json:"images"`
}

// LargestImage returns the URL of the widest rendition, or "".
func (a *Album) LargestImage() string {
	best := -1
	url := ""
	for _, img := range a.Images {
		if img.URL != "" && img.Width > best {
			best = img.Width
			url = img.URL
		}
	}
	return url
}

// Track is a simplified track object from search.
type Track struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Artists []Artist `json:"artists"`
	Album   Album    `json:"album"`
}

type searchResponse struct {
	Albums *struct {
		Items []Album `json:"items"`
	} `json:"albums,omitempty"`
	Tracks *struct {
		Items []Track `json:"items"`
	} `json:"tracks,omitempty"`
}
