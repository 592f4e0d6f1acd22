package musicbrainz

import (
	"errors"
	"fmt"
)

// Sentinel errors for MusicBrainz operations.
var (
	ErrNotFound    = errors.New("musicbrainz: not found")
	ErrRateLimited = errors.New("musicbrainz: rate limited by server")
	ErrBadRequest  = errors.New("musicbrainz: bad request")
	ErrServer      = errors.New("musicbrainz: server error")
)

// Error wraps an underlying error with operation context.
type Error struct {
	Op  string // Operation: "searchReleases", "getRelease", ...
	ID  string // MBID, if applicable
	Err error
}

func (e *Error) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("musicbrainz %s [%s]: %v", e.Op, e.ID, e.Err)
	}
	return fmt.Sprintf("musicbrainz %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func wrapError(op, id string, err error) error {
	return &Error{Op: op, ID: id, Err: err}
}
