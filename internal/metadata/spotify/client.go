package spotify

import (
	"context"
	"encoding/json/v2"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/listenupapp/enrichd/internal/logger"
	"github.com/listenupapp/enrichd/internal/ratelimit"
)

const (
	// Name is the source tag stored with values found here.
	Name = "spotify"

	// DefaultInterval spaces catalog requests. Spotify publishes no fixed
	// limit; this stays well under the rolling 30s window.
	DefaultInterval = 200 * time.Millisecond

	defaultBaseURL  = "https://api.spotify.com/v1"
	defaultTokenURL = "https://accounts.spotify.com/api/token"
	defaultTimeout  = 30 * time.Second
)

// Config holds application credentials.
type Config struct {
	ClientID     string
	ClientSecret string
}

// Configured reports whether both credentials are set.
func (c Config) Configured() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

// Client is a rate-limited Spotify Web API client. Access tokens are fetched
// and refreshed by the oauth2 transport.
type Client struct {
	http     *http.Client
	limiter  *ratelimit.KeyedRateLimiter
	logger   *slog.Logger
	baseURL  string
	tokenURL string
	base     *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the client used for both token and API requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.base = hc }
}

// WithBaseURLs points the client at other hosts (tests).
func WithBaseURLs(api, token string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(api, "/")
		c.tokenURL = token
	}
}

// WithLimiter shares a limiter with other clients. Requests wait on the
// "spotify" key.
func WithLimiter(l *ratelimit.KeyedRateLimiter) Option {
	return func(c *Client) { c.limiter = l }
}

// New creates a Spotify client. It fails with ErrNotConfigured when the
// credentials are incomplete.
func New(cfg Config, log *slog.Logger, opts ...Option) (*Client, error) {
	if !cfg.Configured() {
		return nil, ErrNotConfigured
	}
	if log == nil {
		log = logger.Nop()
	}
	c := &Client{
		limiter:  ratelimit.NewSpacing(DefaultInterval),
		logger:   logger.Component(log, Name),
		baseURL:  defaultBaseURL,
		tokenURL: defaultTokenURL,
		base:     &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}

	cc := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     c.tokenURL,
		AuthStyle:    oauth2.AuthStyleInHeader,
	}
	// The context only carries the HTTP client used for token requests.
	tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, c.base)
	c.http = cc.Client(tokenCtx)
	c.http.Timeout = c.base.Timeout

	return c, nil
}

// get executes a rate-limited GET against the Web API.
func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	if err := c.limiter.Wait(ctx, Name); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	c.logger.Debug("spotify request", "path", path)

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
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return ErrUnauthorized
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode == http.StatusTooManyRequests:
		c.logger.Warn("spotify throttled", "retry_after", resp.Header.Get("Retry-After"))
		return ErrRateLimited
	case resp.StatusCode == http.StatusBadRequest:
		return ErrBadRequest
	case resp.StatusCode >= 500:
		return ErrServer
	default:
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
}
