package musicbrainz

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
)

const (
	defaultSearchLimit = 5

	// minScore discards weak search matches. MusicBrainz scores are 0-100.
	minScore = 80
)

// SearchReleases finds releases by album title and artist.
func (c *Client) SearchReleases(ctx context.Context, album, artist string, limit int) ([]Release, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	query := phrase("artist", artist)
	if album != "" {
		query = phrase("release", album) + " AND " + query
	}

	var resp releaseSearchResponse
	err := c.get(ctx, "/release/", url.Values{
		"query": {query},
		"limit": {strconv.Itoa(limit)},
	}, &resp)
	if err != nil {
		return nil, wrapError("searchReleases", "", err)
	}
	return resp.Releases, nil
}

// GetRelease fetches one release with its tags, genres and release group.
func (c *Client) GetRelease(ctx context.Context, id string) (*Release, error) {
	var rel Release
	err := c.get(ctx, "/release/"+url.PathEscape(id), url.Values{
		"inc": {"tags genres release-groups artist-credits"},
	}, &rel)
	if err != nil {
		return nil, wrapError("getRelease", id, err)
	}
	return &rel, nil
}

// GetReleaseGroup fetches one release group with its tags and genres.
func (c *Client) GetReleaseGroup(ctx context.Context, id string) (*ReleaseGroup, error) {
	var rg ReleaseGroup
	err := c.get(ctx, "/release-group/"+url.PathEscape(id), url.Values{
		"inc": {"tags genres"},
	}, &rg)
	if err != nil {
		return nil, wrapError("getReleaseGroup", id, err)
	}
	return &rg, nil
}

// bestRelease returns the first release scoring at least minScore.
func bestRelease(releases []Release) *Release {
	for i := range releases {
		if releases[i].Score >= minScore {
			return &releases[i]
		}
	}
	return nil
}

// FrontCoverURL returns the Cover Art Archive 500px front image URL for the
// best matching release, after verifying with a HEAD request that the image
// exists. Returns "" when nothing matches.
func (c *Client) FrontCoverURL(ctx context.Context, album, artist string) (string, error) {
	releases, err := c.SearchReleases(ctx, album, artist, defaultSearchLimit)
	if err != nil {
		return "", err
	}

	rel := bestRelease(releases)
	if rel == nil {
		return "", nil
	}

	coverURL := c.coverArtURL + "/release/" + rel.ID + "/front-500"
	ok, err := c.exists(ctx, coverURL)
	if err != nil {
		return "", wrapError("coverArt", rel.ID, err)
	}
	if !ok {
		c.logger.Debug("release has no front cover", "release", rel.ID)
		return "", nil
	}
	return coverURL, nil
}

// exists issues a HEAD request. The archive redirects to the image host,
// which the HTTP client follows.
func (c *Client) exists(ctx context.Context, u string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, u, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return false, err
	}
	resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return true, nil
	case resp.StatusCode == http.StatusNotFound:
		return false, nil
	case resp.StatusCode >= 500:
		return false, ErrServer
	default:
		return false, nil
	}
}
