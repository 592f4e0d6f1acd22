package spotify

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/listenupapp/enrichd/internal/normalize"
)

const searchLimit = 5

// fieldQuery renders Spotify's field filter syntax, e.g.
// `album:Abbey Road artist:The Beatles`.
func fieldQuery(pairs ...string) string {
	parts := make([]string, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		if v := strings.TrimSpace(pairs[i+1]); v != "" {
			parts = append(parts, pairs[i]+":"+v)
		}
	}
	return strings.Join(parts, " ")
}

// SearchAlbums searches the catalog for albums.
func (c *Client) SearchAlbums(ctx context.Context, album, artist string) ([]Album, error) {
	var resp searchResponse
	err := c.get(ctx, "/search", url.Values{
		"q":     {fieldQuery("album", album, "artist", artist)},
		"type":  {"album"},
		"limit": {strconv.Itoa(searchLimit)},
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("spotify search albums: %w", err)
	}
	if resp.Albums == nil {
		return nil, nil
	}
	return resp.Albums.Items, nil
}

// SearchTracks searches the catalog for tracks. When the filtered query
// finds nothing it retries once with a plain "track artist" query.
func (c *Client) SearchTracks(ctx context.Context, track, artist string) ([]Track, error) {
	queries := []string{
		fieldQuery("track", track, "artist", artist),
		strings.TrimSpace(track + " " + artist),
	}
	for _, q := range queries {
		var resp searchResponse
		err := c.get(ctx, "/search", url.Values{
			"q":     {q},
			"type":  {"track"},
			"limit": {strconv.Itoa(searchLimit)},
		}, &resp)
		if err != nil {
			return nil, fmt.Errorf("spotify search tracks: %w", err)
		}
		if resp.Tracks != nil && len(resp.Tracks.Items) > 0 {
			return resp.Tracks.Items, nil
		}
	}
	return nil, nil
}

// GetArtist fetches a full artist object, including genres.
func (c *Client) GetArtist(ctx context.Context, id string) (*Artist, error) {
	var a Artist
	if err := c.get(ctx, "/artists/"+url.PathEscape(id), nil, &a); err != nil {
		return nil, fmt.Errorf("spotify get artist %s: %w", id, err)
	}
	return &a, nil
}

// FindAlbum returns the first search result whose title and artist match.
func (c *Client) FindAlbum(ctx context.Context, album, artist string) (*Album, error) {
	albums, err := c.SearchAlbums(ctx, album, artist)
	if err != nil {
		return nil, err
	}
	for i := range albums {
		if !normalize.Matches(albums[i].Name, album) {
			continue
		}
		for _, a := range albums[i].Artists {
			if normalize.Matches(a.Name, artist) {
				return &albums[i], nil
			}
		}
	}
	return nil, nil
}

// CoverURL returns the largest artwork of the matching album, or "".
func (c *Client) CoverURL(ctx context.Context, album, artist string) (string, error) {
	a, err := c.FindAlbum(ctx, album, artist)
	if err != nil || a == nil {
		return "", err
	}
	return a.LargestImage(), nil
}

// ArtistGenres returns the genres of the matching album's primary artist.
// Spotify attaches genres to artists, not albums. When no album matches, a
// track search is tried, since singles are often filed under the track
// title.
func (c *Client) ArtistGenres(ctx context.Context, album, artist string) ([]string, error) {
	var artistID string

	a, err := c.FindAlbum(ctx, album, artist)
	if err != nil {
		return nil, err
	}
	if a != nil && len(a.Artists) > 0 {
		artistID = a.Artists[0].ID
	} else {
		tracks, err := c.SearchTracks(ctx, album, artist)
		if err != nil {
			return nil, err
		}
		for _, t := range tracks {
			if len(t.Artists) > 0 && normalize.Matches(t.Artists[0].Name, artist) {
				artistID = t.Artists[0].ID
				break
			}
		}
	}
	if artistID == "" {
		return nil, nil
	}

	full, err := c.GetArtist(ctx, artistID)
	if err != nil {
		return nil, err
	}
	return full.Genres, nil
}
