package musicbrainz

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/listenupapp/enrichd/internal/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	releaseSearch = `{"count": 2, "releases": [
		{"id": "rel-weak", "title": "Abbey Road Tribute", "score": 40},
		{"id": "rel-1", "title": "Abbey Road", "score": 100, "release-group": {"id": "rg-1"}}
	]}`
	releaseDetail = `{"id": "rel-1", "title": "Abbey Road",
		"genres": [{"name": "rock", "count": 5}],
		"tags": [{"name": "seen live", "count": 2}],
		"release-group": {"id": "rg-1", "title": "Abbey Road"}}`
	releaseGroupDetail = `{"id": "rg-1", "title": "Abbey Road",
		"genres": [{"name": "pop rock", "count": 9}], "tags": [{"name": "rock", "count": 3}]}`
)

func newTestClient(t *testing.T, mux *http.ServeMux) *Client {
	t.Helper()
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return New(Config{AppName: "enrichd-test", AppVersion: "1.0", Contact: "ops@example.com"}, nil,
		WithHTTPClient(server.Client()),
		WithBaseURLs(server.URL+"/ws/2", server.URL+"/caa"),
		WithLimiter(ratelimit.NewSpacing(0)),
	)
}

func TestConfig_UserAgent(t *testing.T) {
	assert.Equal(t, "enrichd/1.2 ( me@example.com )",
		Config{AppName: "enrichd", AppVersion: "1.2", Contact: "me@example.com"}.UserAgent())
	assert.Equal(t, "enrichd/dev", Config{}.UserAgent())
}

func TestPhrase_EscapesQuotes(t *testing.T) {
	assert.Equal(t, `release:"Say \"Hi\""`, phrase("release", ` Say "Hi" `))
}

func TestFrontCoverURL(t *testing.T) {
	var gotUA, gotQuery string
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws/2/release/", func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotQuery = r.URL.Query().Get("query")
		assert.Equal(t, "json", r.URL.Query().Get("fmt"))
		w.Write([]byte(releaseSearch))
	})
	mux.HandleFunc("HEAD /caa/release/rel-1/front-500", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	c := newTestClient(t, mux)

	u, err := c.FrontCoverURL(context.Background(), "Abbey Road", "The Beatles")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(u, "/caa/release/rel-1/front-500"), u)
	assert.Equal(t, "enrichd-test/1.0 ( ops@example.com )", gotUA)
	assert.Equal(t, `release:"Abbey Road" AND artist:"The Beatles"`, gotQuery)
}

func TestFrontCoverURL_NoArtwork(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws/2/release/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(releaseSearch))
	})
	mux.HandleFunc("HEAD /caa/release/rel-1/front-500", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	c := newTestClient(t, mux)

	u, err := c.FrontCoverURL(context.Background(), "Abbey Road", "The Beatles")
	require.NoError(t, err)
	assert.Empty(t, u)
}

func TestFrontCoverURL_OnlyWeakMatches(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws/2/release/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"releases": [{"id": "x", "score": 10}]}`))
	})
	c := newTestClient(t, mux)

	u, err := c.FrontCoverURL(context.Background(), "Abbey Road", "The Beatles")
	require.NoError(t, err)
	assert.Empty(t, u)
}

func TestAlbumTags_FromReleaseAndGroup(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws/2/release/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(releaseSearch))
	})
	mux.HandleFunc("GET /ws/2/release/rel-1", func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Query().Get("inc"), "release-groups")
		w.Write([]byte(releaseDetail))
	})
	mux.HandleFunc("GET /ws/2/release-group/rg-1", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(releaseGroupDetail))
	})
	c := newTestClient(t, mux)

	tags, err := c.AlbumTags(context.Background(), "Abbey Road", "The Beatles")
	require.NoError(t, err)
	assert.Equal(t, []string{"rock", "seen live", "pop rock", "rock"}, tags)
}

func TestAlbumTags_FallsBackToRecording(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws/2/release/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"releases": []}`))
	})
	mux.HandleFunc("GET /ws/2/recording/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"recordings": [{"id": "rec-1", "title": "Come Together", "score": 95}]}`))
	})
	mux.HandleFunc("GET /ws/2/recording/rec-1", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id": "rec-1", "title": "Come Together",
			"tags": [{"name": "blues rock", "count": 1}],
			"artist-credit": [{"name": "The Beatles", "artist": {"id": "a1", "name": "The Beatles",
				"genres": [{"name": "rock", "count": 20}]}}]}`))
	})
	c := newTestClient(t, mux)

	tags, err := c.AlbumTags(context.Background(), "Come Together", "The Beatles")
	require.NoError(t, err)
	assert.Equal(t, []string{"blues rock", "rock"}, tags)
}

func TestAlbumTags_NothingFound(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws/2/release/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"releases": []}`))
	})
	mux.HandleFunc("GET /ws/2/recording/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"recordings": []}`))
	})
	c := newTestClient(t, mux)

	tags, err := c.AlbumTags(context.Background(), "Nothing", "Nobody")
	require.NoError(t, err)
	assert.Empty(t, tags)
}

func TestClient_StatusErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr error
	}{
		{"service unavailable means throttled", http.StatusServiceUnavailable, ErrRateLimited},
		{"too many requests", http.StatusTooManyRequests, ErrRateLimited},
		{"bad request", http.StatusBadRequest, ErrBadRequest},
		{"server error", http.StatusInternalServerError, ErrServer},
		{"not found", http.StatusNotFound, ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			})
			c := newTestClient(t, mux)

			_, err := c.SearchReleases(context.Background(), "a", "b", 0)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)

			var mbErr *Error
			require.ErrorAs(t, err, &mbErr)
			assert.Equal(t, "searchReleases", mbErr.Op)
		})
	}
}
