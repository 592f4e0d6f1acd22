// Package service provides the business logic layer: enrichment runs and
// jobs, cache administration and record import.
package service

import (
	"context"
	"encoding/json/v2"
	"io"
	"log/slog"

	"github.com/listenupapp/enrichd/internal/domain"
	domainerrors "github.com/listenupapp/enrichd/internal/errors"
	"github.com/listenupapp/enrichd/internal/id"
	"github.com/listenupapp/enrichd/internal/store"
)

// ImportPayload is a batch of records to load into the record store.
type ImportPayload struct {
	Albums []domain.Album `json:"albums"`
	Tracks []domain.Track `json:"tracks"`
}

// ImportResult reports how many records were written.
type ImportResult struct {
	Albums int `json:"albums"`
	Tracks int `json:"tracks"`
}

// LibraryService loads user records into the record store.
type LibraryService struct {
	library store.Library
	logger  *slog.Logger
}

// NewLibraryService creates a new library service.
func NewLibraryService(library store.Library, logger *slog.Logger) *LibraryService {
	return &LibraryService{library: library, logger: logger}
}

// ImportJSON decodes an ImportPayload from r and imports it.
func (s *LibraryService) ImportJSON(ctx context.Context, r io.Reader) (*ImportResult, error) {
	var payload ImportPayload
	if err := json.UnmarshalRead(r, &payload); err != nil {
		return nil, domainerrors.InvalidInputf("decode import: %v", err)
	}
	return s.Import(ctx, &payload)
}

// Import upserts every album and track in payload. Records without an id
// get a generated one. Import stops at the first failing record.
func (s *LibraryService) Import(ctx context.Context, payload *ImportPayload) (*ImportResult, error) {
	var res ImportResult

	for i := range payload.Albums {
		a := &payload.Albums[i]
		if a.ID == "" {
			a.ID = id.MustGenerate(id.Album)
		}
		if err := s.library.UpsertAlbum(ctx, a); err != nil {
			return &res, domainerrors.Wrapf(err, codeFor(err), "import album %q", a.Title)
		}
		res.Albums++
	}

	for i := range payload.Tracks {
		t := &payload.Tracks[i]
		if t.ID == "" {
			t.ID = id.MustGenerate(id.Track)
		}
		if err := s.library.UpsertTrack(ctx, t); err != nil {
			return &res, domainerrors.Wrapf(err, codeFor(err), "import track %q", t.Title)
		}
		res.Tracks++
	}

	s.logger.Info("records imported",
		"albums", res.Albums,
		"tracks", res.Tracks,
	)
	return &res, nil
}

// codeFor maps a store error to a domain error code.
func codeFor(err error) domainerrors.Code {
	switch {
	case domainerrors.Is(err, store.ErrInvalidInput):
		return domainerrors.CodeInvalidInput
	case domainerrors.Is(err, store.ErrNotFound):
		return domainerrors.CodeNotFound
	case domainerrors.Is(err, store.ErrStorageUnavailable):
		return domainerrors.CodeStorageUnavailable
	default:
		return domainerrors.CodeInternal
	}
}
