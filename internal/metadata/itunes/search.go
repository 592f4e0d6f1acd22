package itunes

import (
	"context"
	"encoding/json/v2"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/listenupapp/enrichd/internal/normalize"
)

const defaultLimit = 10

// SearchAlbums searches iTunes for albums matching the query.
// Returns results with high-resolution cover URLs.
func (c *Client) SearchAlbums(ctx context.Context, query string) ([]AlbumResult, error) {
	if err := c.wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}

	params := url.Values{}
	params.Set("term", query)
	params.Set("media", "music")
	params.Set("entity", "album")
	params.Set("limit", strconv.Itoa(defaultLimit))

	searchURL := c.baseURL + "/search?" + params.Encode()

	c.logger.Debug("searching iTunes",
		"query", query,
		"url", searchURL,
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests, resp.StatusCode == http.StatusForbidden:
		// Apple answers 403 once the per-IP budget is exhausted.
		return nil, ErrRateLimited
	case resp.StatusCode == http.StatusBadRequest:
		return nil, ErrBadRequest
	case resp.StatusCode >= 500:
		return nil, ErrServer
	default:
		return nil, fmt.Errorf("search failed: status %d", resp.StatusCode)
	}

	var searchResp searchResponse
	if err := json.UnmarshalRead(resp.Body, &searchResp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	c.logger.Debug("iTunes search results",
		"query", query,
		"count", searchResp.ResultCount,
	)

	results := make([]AlbumResult, 0, len(searchResp.Results))
	for i := range searchResp.Results {
		r := &searchResp.Results[i]
		if r.WrapperType != "collection" {
			continue
		}

		artworkURL := r.ArtworkURL100
		if artworkURL == "" {
			artworkURL = r.ArtworkURL60
		}

		results = append(results, AlbumResult{
			ID:          r.CollectionID,
			Title:       r.CollectionName,
			Artist:      r.ArtistName,
			CoverURL:    MaxCoverURL(artworkURL),
			Genre:       r.PrimaryGenreName,
			ReleaseDate: r.ReleaseDate,
		})
	}

	return results, nil
}

// FindAlbum searches using both album and artist and returns the first
// result whose title and artist match, or nil.
func (c *Client) FindAlbum(ctx context.Context, album, artist string) (*AlbumResult, error) {
	query := strings.TrimSpace(album)
	if artist != "" {
		query = query + " " + strings.TrimSpace(artist)
	}

	results, err := c.SearchAlbums(ctx, query)
	if err != nil {
		return nil, err
	}

	for i := range results {
		if normalize.Matches(results[i].Title, album) && normalize.Matches(results[i].Artist, artist) {
			return &results[i], nil
		}
	}
	return nil, nil
}
