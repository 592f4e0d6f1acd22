package musicbrainz

import (
	"context"
	"errors"
	"net/url"
	"strconv"
)

// AlbumTags collects genre and tag names for an album: the best matching
// release and its release group first, then, when those carry nothing, the
// best matching recording of the same title with its artist. The list is
// raw; callers flatten it.
func (c *Client) AlbumTags(ctx context.Context, album, artist string) ([]string, error) {
	tags, err := c.releaseTags(ctx, album, artist)
	if err != nil {
		return nil, err
	}
	if len(tags) > 0 {
		return tags, nil
	}
	return c.recordingTags(ctx, album, artist)
}

func (c *Client) releaseTags(ctx context.Context, album, artist string) ([]string, error) {
	releases, err := c.SearchReleases(ctx, album, artist, defaultSearchLimit)
	if err != nil {
		return nil, err
	}
	best := bestRelease(releases)
	if best == nil {
		return nil, nil
	}

	rel, err := c.GetRelease(ctx, best.ID)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	tags := tagNames(nil, rel.Genres, rel.Tags)
	if rel.ReleaseGroup != nil && rel.ReleaseGroup.ID != "" {
		rg, err := c.GetReleaseGroup(ctx, rel.ReleaseGroup.ID)
		switch {
		case err == nil:
			tags = tagNames(tags, rg.Genres, rg.Tags)
		case errors.Is(err, ErrNotFound):
		default:
			c.logger.Debug("release group lookup failed", "id", rel.ReleaseGroup.ID, "error", err)
		}
	}
	return tags, nil
}

// SearchRecordings finds recordings by title and artist.
func (c *Client) SearchRecordings(ctx context.Context, title, artist string, limit int) ([]Recording, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	var resp recordingSearchResponse
	err := c.get(ctx, "/recording/", url.Values{
		"query": {phrase("recording", title) + " AND " + phrase("artist", artist)},
		"limit": {strconv.Itoa(limit)},
	}, &resp)
	if err != nil {
		return nil, wrapError("searchRecordings", "", err)
	}
	return resp.Recordings, nil
}

// GetRecording fetches one recording with tags, genres and artist credits.
func (c *Client) GetRecording(ctx context.Context, id string) (*Recording, error) {
	var rec Recording
	err := c.get(ctx, "/recording/"+url.PathEscape(id), url.Values{
		"inc": {"artist-credits tags genres"},
	}, &rec)
	if err != nil {
		return nil, wrapError("getRecording", id, err)
	}
	return &rec, nil
}

func (c *Client) recordingTags(ctx context.Context, title, artist string) ([]string, error) {
	recs, err := c.SearchRecordings(ctx, title, artist, defaultSearchLimit)
	if err != nil {
		return nil, err
	}

	var best *Recording
	for i := range recs {
		if recs[i].Score >= minScore {
			best = &recs[i]
			break
		}
	}
	if best == nil {
		return nil, nil
	}

	rec, err := c.GetRecording(ctx, best.ID)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	tags := tagNames(nil, rec.Genres, rec.Tags)
	if len(rec.ArtistCredit) > 0 {
		a := rec.ArtistCredit[0].Artist
		tags = tagNames(tags, a.Genres, a.Tags)
	}
	return tags, nil
}
