package itunes

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/listenupapp/enrichd/internal/logger"
	"github.com/listenupapp/enrichd/internal/ratelimit"
)

const (
	// Name is the source tag stored with values found here.
	Name = "itunes"

	// DefaultInterval is the spacing Apple asks for: about 20 requests per
	// minute.
	DefaultInterval = 3 * time.Second

	defaultBaseURL = "https://itunes.apple.com"
	defaultTimeout = 30 * time.Second
)

// Client provides access to the iTunes Search API.
type Client struct {
	httpClient *http.Client
	limiter    *ratelimit.KeyedRateLimiter
	logger     *slog.Logger
	baseURL    string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithBaseURL points the client at another host (tests).
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithLimiter shares a limiter with other clients. Requests wait on the
// "itunes" key.
func WithLimiter(l *ratelimit.KeyedRateLimiter) Option {
	return func(c *Client) { c.limiter = l }
}

// NewClient creates a new iTunes client.
// Rate limited to one request per DefaultInterval unless a shared limiter is
// given.
func NewClient(log *slog.Logger, opts ...Option) *Client {
	if log == nil {
		log = logger.Nop()
	}
	c := &Client{
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		limiter: ratelimit.NewSpacing(DefaultInterval),
		logger:  logger.Component(log, Name),
		baseURL: defaultBaseURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// wait blocks until rate limiter allows a request.
func (c *Client) wait(ctx context.Context) error {
	return c.limiter.Wait(ctx, Name)
}
