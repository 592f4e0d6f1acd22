package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/listenupapp/enrichd/internal/domain"
	domainerrors "github.com/listenupapp/enrichd/internal/errors"
	"github.com/listenupapp/enrichd/internal/metadata/itunes"
	"github.com/listenupapp/enrichd/internal/metadata/musicbrainz"
	"github.com/listenupapp/enrichd/internal/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newITunes(t *testing.T, handler http.HandlerFunc) *itunes.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return itunes.NewClient(nil,
		itunes.WithHTTPClient(server.Client()),
		itunes.WithBaseURL(server.URL),
		itunes.WithLimiter(ratelimit.NewSpacing(0)))
}

const itunesFixture = `{"resultCount": 1, "results": [
	{"wrapperType": "collection", "collectionName": "Abbey Road", "artistName": "The Beatles",
	 "artworkUrl100": "https://img/100x100bb.jpg", "primaryGenreName": "Hip-Hop/Rap"}]}`

func TestITunesAdapters(t *testing.T) {
	c := newITunes(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(itunesFixture))
	})

	image := ITunesImage(c)
	assert.Equal(t, "itunes", image.Name())
	v, err := image.TryResolve(context.Background(), "Abbey Road", "The Beatles")
	require.NoError(t, err)
	assert.Equal(t, "https://img/1000x1000bb.jpg", v)

	g, err := ITunesGenre(c).TryResolve(context.Background(), "Abbey Road", "The Beatles")
	require.NoError(t, err)
	assert.NotEmpty(t, g)

	v, err = image.TryResolve(context.Background(), "Revolver", "The Beatles")
	require.NoError(t, err)
	assert.Empty(t, v)
}

func TestAdapter_WrapsErrorsAsSourceUnavailable(t *testing.T) {
	c := newITunes(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := ITunesImage(c).TryResolve(context.Background(), "Abbey Road", "The Beatles")
	require.Error(t, err)
	assert.ErrorIs(t, err, domainerrors.ErrSourceUnavailable)
	assert.ErrorIs(t, err, itunes.ErrServer)
}

func TestClients_Build(t *testing.T) {
	clients := Clients{
		ITunes:      itunes.NewClient(nil),
		MusicBrainz: musicbrainz.New(musicbrainz.Config{}, nil),
	}

	image, err := clients.Build(domain.KindImage, []string{"spotify", "itunes", "musicbrainz"})
	require.NoError(t, err)
	names := make([]string, 0, len(image))
	for _, a := range image {
		names = append(names, a.Name())
		assert.Equal(t, domain.KindImage, a.Kind())
	}
	assert.Equal(t, []string{"itunes", "musicbrainz"}, names, "spotify is skipped without credentials")

	genres, err := clients.Build(domain.KindGenre, []string{" MusicBrainz", "itunes", "itunes", ""})
	require.NoError(t, err)
	require.Len(t, genres, 2)
	assert.Equal(t, "musicbrainz", genres[0].Name())

	_, err = clients.Build(domain.KindGenre, []string{"lastfm"})
	assert.Error(t, err)
}

func TestNewLimiter_AppliesIntervals(t *testing.T) {
	l := NewLimiter(200 * time.Millisecond)
	assert.Equal(t, 1100*time.Millisecond, l.Interval("musicbrainz"))
	assert.Equal(t, 3*time.Second, l.Interval("itunes"))
	assert.Equal(t, 200*time.Millisecond, l.Interval("spotify"))
	assert.Equal(t, 200*time.Millisecond, l.Interval("other"))
}
