package itunes

import "errors"

// Sentinel errors for iTunes API operations.
var (
	ErrRateLimited = errors.New("itunes: rate limited by server")
	ErrBadRequest  = errors.New("itunes: bad request")
	ErrServer      = errors.New("itunes: server error")
)
