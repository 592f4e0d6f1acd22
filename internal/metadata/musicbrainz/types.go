// Package musicbrainz provides a client for the MusicBrainz web service and
// the Cover Art Archive.
package musicbrainz

// Tag is a folksonomy tag or curated genre with its vote count.
type Tag struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// ArtistCredit names one credited artist.
type ArtistCredit struct {
	Name   string `json:"name"`
	Artist struct {
		ID     string `json:"id"`
		Name   string `json:"name"`
		Tags   []Tag  `json:"tags,omitempty"`
		Genres []Tag  `json:"genres,omitempty"`
	} `json:"artist"`
}

// ReleaseGroup is the abstract album a release belongs to.
type ReleaseGroup struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Tags   []Tag  `json:"tags,omitempty"`
	Genres []Tag  `json:"genres,omitempty"`
}

// Release is one concrete issue of an album.
type Release struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	Date         string         `json:"date,omitempty"`
	Score        int            `json:"score,omitempty"`
	ArtistCredit []ArtistCredit `json:"artist-credit,omitempty"`
	ReleaseGroup *ReleaseGroup  `json:"release-group,omitempty"`
	Tags         []Tag          `json:"tags,omitempty"`
	Genres       []Tag          `json:"genres,omitempty"`
}

// Recording is one recorded track.
type Recording struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	Score        int            `json:"score,omitempty"`
	ArtistCredit []ArtistCredit `json:"artist-credit,omitempty"`
	Releases     []Release      `json:"releases,omitempty"`
	Tags         []Tag          `json:"tags,omitempty"`
	Genres       []Tag          `json:"genres,omitempty"`
}

type releaseSearchResponse struct {
	Count    int       `json:"count"`
	Releases []Release `json:"releases"`
}

type recordingSearchResponse struct {
	Count      int         `json:"count"`
	Recordings []Recording `json:"recordings"`
}

// tagNames appends curated genres before free tags, highest vote first
// within each list as returned by the service.
func tagNames(dst []string, genres, tags []Tag) []string {
	for _, g := range genres {
		dst = append(dst, g.Name)
	}
	for _, t := range tags {
		if t.Count < 0 {
			continue
		}
		dst = append(dst, t.Name)
	}
	return dst
}
