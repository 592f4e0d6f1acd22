package spotify

import "errors"

// Sentinel errors for Spotify API operations.
var (
	ErrNotConfigured = errors.New("spotify: client credentials not configured")
	ErrUnauthorized  = errors.New("spotify: unauthorized")
	ErrNotFound      = errors.New("spotify: not found")
	ErrRateLimited   = errors.New("spotify: rate limited by server")
	ErrBadRequest    = errors.New("spotify: bad request")
	ErrServer        = errors.New("spotify: server error")
)
