package musicbrainz

import (
	"context"
	"encoding/json/v2"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/listenupapp/enrichd/internal/logger"
	"github.com/listenupapp/enrichd/internal/ratelimit"
)

const (
	// Name is the source tag stored with values found here.
	Name = "musicbrainz"

	// DefaultInterval keeps below the one request per second MusicBrainz
	// allows per client.
	DefaultInterval = 1100 * time.Millisecond

	defaultBaseURL     = "https://musicbrainz.org/ws/2"
	defaultCoverArtURL = "https://coverartarchive.org"
	defaultTimeout     = 30 * time.Second

	// Cap on how much of an error body is kept in messages.
	maxErrorBody = 512
)

// Config identifies the application to MusicBrainz. Requests without a
// meaningful User-Agent get throttled or blocked.
type Config struct {
	AppName    string
	AppVersion string
	Contact    string
}

// UserAgent renders the identification string MusicBrainz asks for:
// "AppName/Version ( contact )".
func (c Config) UserAgent() string {
	name, version := c.AppName, c.AppVersion
	if name == "" {
		name = "enrichd"
	}
	if version == "" {
		version = "dev"
	}
	if c.Contact == "" {
		return fmt.Sprintf("%s/%s", name, version)
	}
	return fmt.Sprintf("%s/%s ( %s )", name, version, c.Contact)
}

// Client is a rate-limited MusicBrainz client.
type Client struct {
	http        *http.Client
	limiter     *ratelimit.KeyedRateLimiter
	logger      *slog.Logger
	userAgent   string
	baseURL     string
	coverArtURL string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithBaseURLs points the client at other hosts (tests).
func WithBaseURLs(api, coverArt string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(api, "/")
		c.coverArtURL = strings.TrimRight(coverArt, "/")
	}
}

// WithLimiter shares a limiter with other clients. Requests wait on the
// "musicbrainz" key.
func WithLimiter(l *ratelimit.KeyedRateLimiter) Option {
	return func(c *Client) { c.limiter = l }
}

// New creates a new MusicBrainz client.
func New(cfg Config, log *slog.Logger, opts ...Option) *Client {
	if log == nil {
		log = logger.Nop()
	}
	c := &Client{
		http: &http.Client{
			Timeout: defaultTimeout,
		},
		limiter:     ratelimit.NewSpacing(DefaultInterval),
		logger:      logger.Component(log, Name),
		userAgent:   cfg.UserAgent(),
		baseURL:     defaultBaseURL,
		coverArtURL: defaultCoverArtURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// get executes a rate-limited GET against the web service and decodes the
// JSON body into out.
func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	if err := c.limiter.Wait(ctx, Name); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	query.Set("fmt", "json")
	u := c.baseURL + path + "?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	c.logger.Debug("musicbrainz request",
		"path", path,
	)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		if err := json.UnmarshalRead(resp.Body, out); err != nil {
			return fmt.Errorf("parse response: %w", err)
		}
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode == http.StatusTooManyRequests, resp.StatusCode == http.StatusServiceUnavailable:
		// MusicBrainz answers 503 when the client exceeds its rate.
		return ErrRateLimited
	case resp.StatusCode == http.StatusBadRequest:
		return ErrBadRequest
	case resp.StatusCode >= 500:
		return ErrServer
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}
}

// luceneEscaper escapes characters with meaning inside a quoted Lucene term.
var luceneEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// phrase renders field:"value" for a search query.
func phrase(field, value string) string {
	return field + `:"` + luceneEscaper.Replace(strings.TrimSpace(value)) + `"`
}
