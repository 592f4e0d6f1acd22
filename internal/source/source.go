// Package source adapts the catalog clients in internal/metadata to the
// single-method shape the resolution chain consumes: given an album name and
// artist, return one value for one kind, or "" when the catalog has none.
package source

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/listenupapp/enrichd/internal/domain"
	domainerrors "github.com/listenupapp/enrichd/internal/errors"
	"github.com/listenupapp/enrichd/internal/genre"
	"github.com/listenupapp/enrichd/internal/metadata/itunes"
	"github.com/listenupapp/enrichd/internal/metadata/musicbrainz"
	"github.com/listenupapp/enrichd/internal/metadata/spotify"
	"github.com/listenupapp/enrichd/internal/ratelimit"
)

// Intervals is the minimum spacing between calls to each catalog.
var Intervals = map[string]time.Duration{
	musicbrainz.Name: musicbrainz.DefaultInterval,
	itunes.Name:      itunes.DefaultInterval,
	spotify.Name:     spotify.DefaultInterval,
}

// NewLimiter returns the limiter shared by every client, with the per-catalog
// intervals applied on top of the given default.
func NewLimiter(defaultInterval time.Duration) *ratelimit.KeyedRateLimiter {
	l := ratelimit.NewSpacing(defaultInterval)
	for name, d := range Intervals {
		l.SetInterval(name, d)
	}
	return l
}

// Adapter resolves one kind of value against one catalog.
type Adapter struct {
	resolve func(ctx context.Context, name, artist string) (string, error)
	name    string
	kind    domain.Kind
}

// Name is the source tag stored with values this adapter finds.
func (a *Adapter) Name() string { return a.name }

// Kind is the field this adapter fills.
func (a *Adapter) Kind() domain.Kind { return a.kind }

// TryResolve returns the value, "" when the catalog has nothing, or a
// SOURCE_UNAVAILABLE error when the catalog could not be asked.
func (a *Adapter) TryResolve(ctx context.Context, name, artist string) (string, error) {
	v, err := a.resolve(ctx, name, artist)
	if err != nil {
		return "", domainerrors.SourceUnavailable(a.name, err)
	}
	return strings.TrimSpace(v), nil
}

// ITunesImage finds cover art through the iTunes Search API.
func ITunesImage(c *itunes.Client) *Adapter {
	return &Adapter{name: itunes.Name, kind: domain.KindImage,
		resolve: func(ctx context.Context, name, artist string) (string, error) {
			album, err := c.FindAlbum(ctx, name, artist)
			if err != nil || album == nil {
				return "", err
			}
			return album.CoverURL, nil
		}}
}

// ITunesGenre uses the album's primary genre from iTunes.
func ITunesGenre(c *itunes.Client) *Adapter {
	return &Adapter{name: itunes.Name, kind: domain.KindGenre,
		resolve: func(ctx context.Context, name, artist string) (string, error) {
			album, err := c.FindAlbum(ctx, name, artist)
			if err != nil || album == nil {
				return "", err
			}
			return genre.Flatten([]string{album.Genre}, genre.DefaultLimit), nil
		}}
}

// MusicBrainzImage finds a Cover Art Archive front image.
func MusicBrainzImage(c *musicbrainz.Client) *Adapter {
	return &Adapter{name: musicbrainz.Name, kind: domain.KindImage, resolve: c.FrontCoverURL}
}

// MusicBrainzGenre flattens release, release-group and recording tags.
func MusicBrainzGenre(c *musicbrainz.Client) *Adapter {
	return &Adapter{name: musicbrainz.Name, kind: domain.KindGenre,
		resolve: func(ctx context.Context, name, artist string) (string, error) {
			tags, err := c.AlbumTags(ctx, name, artist)
			if err != nil {
				return "", err
			}
			return genre.Flatten(tags, genre.DefaultLimit), nil
		}}
}

// SpotifyImage picks the largest artwork of the matching Spotify album.
func SpotifyImage(c *spotify.Client) *Adapter {
	return &Adapter{name: spotify.Name, kind: domain.KindImage, resolve: c.CoverURL}
}

// SpotifyGenre uses the primary artist's genres.
func SpotifyGenre(c *spotify.Client) *Adapter {
	return &Adapter{name: spotify.Name, kind: domain.KindGenre,
		resolve: func(ctx context.Context, name, artist string) (string, error) {
			genres, err := c.ArtistGenres(ctx, name, artist)
			if err != nil {
				return "", err
			}
			return genre.Flatten(genres, genre.DefaultLimit), nil
		}}
}

// Clients holds the configured catalog clients. A nil client is treated as
// disabled; Spotify is nil when no credentials are configured.
type Clients struct {
	ITunes      *itunes.Client
	MusicBrainz *musicbrainz.Client
	Spotify     *spotify.Client
}

// Build returns the adapters for kind in the given order. Disabled catalogs
// are skipped; unknown names are an error.
func (c Clients) Build(kind domain.Kind, order []string) ([]*Adapter, error) {
	adapters := make([]*Adapter, 0, len(order))
	seen := make(map[string]bool, len(order))
	for _, raw := range order {
		name := strings.ToLower(strings.TrimSpace(raw))
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true

		a, err := c.adapter(kind, name)
		if err != nil {
			return nil, err
		}
		if a != nil {
			adapters = append(adapters, a)
		}
	}
	return adapters, nil
}

func (c Clients) adapter(kind domain.Kind, name string) (*Adapter, error) {
	switch name {
	case itunes.Name:
		if c.ITunes == nil {
			return nil, nil
		}
		if kind == domain.KindImage {
			return ITunesImage(c.ITunes), nil
		}
		return ITunesGenre(c.ITunes), nil
	case musicbrainz.Name:
		if c.MusicBrainz == nil {
			return nil, nil
		}
		if kind == domain.KindImage {
			return MusicBrainzImage(c.MusicBrainz), nil
		}
		return MusicBrainzGenre(c.MusicBrainz), nil
	case spotify.Name:
		if c.Spotify == nil {
			return nil, nil
		}
		if kind == domain.KindImage {
			return SpotifyImage(c.Spotify), nil
		}
		return SpotifyGenre(c.Spotify), nil
	default:
		return nil, fmt.Errorf("unknown source %q", name)
	}
}
