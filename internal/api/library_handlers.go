package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/listenupapp/enrichd/internal/domain"
	"github.com/listenupapp/enrichd/internal/service"
)

func (s *Server) registerLibraryRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:  "importLibrary",
		Method:       http.MethodPost,
		Path:         "/api/v1/library/import",
		Summary:      "Import records",
		Description:  "Upserts albums and tracks into the record store",
		Tags:         []string{"Library"},
		MaxBodyBytes: MaxImportSize,
	}, s.handleImportLibrary)
}

// === DTOs ===

// AlbumInput is one album of an import.
type AlbumInput struct {
	ID          string `json:"id,omitempty" doc:"Album ID, generated when empty"`
	UserID      string `json:"user_id" doc:"Owner"`
	Title       string `json:"title" doc:"Album title"`
	Artist      string `json:"artist,omitempty" doc:"Album artist"`
	ReleaseDate string `json:"release_date,omitempty" doc:"Release date; its year disambiguates cache entries"`
	ImageURL    string `json:"image_url,omitempty" doc:"Existing cover URL"`
	Genres      string `json:"genres,omitempty" doc:"Existing comma separated genres"`
}

// TrackInput is one track of an import.
type TrackInput struct {
	ID          string `json:"id,omitempty" doc:"Track ID, generated when empty"`
	UserID      string `json:"user_id" doc:"Owner"`
	Title       string `json:"title" doc:"Track title"`
	Artist      string `json:"artist,omitempty" doc:"Track artist"`
	AlbumName   string `json:"album_name,omitempty" doc:"Album the track belongs to"`
	ReleaseDate string `json:"release_date,omitempty" doc:"Release date"`
	ImageURL    string `json:"image_url,omitempty" doc:"Existing cover URL"`
	Genres      string `json:"genres,omitempty" doc:"Existing comma separated genres"`
}

// ImportLibraryRequest is the request body for an import.
type ImportLibraryRequest struct {
	Albums []AlbumInput `json:"albums,omitempty" doc:"Albums to upsert"`
	Tracks []TrackInput `json:"tracks,omitempty" doc:"Tracks to upsert"`
}

// ImportLibraryInput wraps the import request for Huma.
type ImportLibraryInput struct {
	Body ImportLibraryRequest
}

// ImportLibraryOutput wraps the import result for Huma.
type ImportLibraryOutput struct {
	Body *service.ImportResult
}

// === Handlers ===

func (s *Server) handleImportLibrary(ctx context.Context, input *ImportLibraryInput) (*ImportLibraryOutput, error) {
	payload := &service.ImportPayload{
		Albums: make([]domain.Album, 0, len(input.Body.Albums)),
		Tracks: make([]domain.Track, 0, len(input.Body.Tracks)),
	}
	for _, a := range input.Body.Albums {
		payload.Albums = append(payload.Albums, domain.Album{
			ID:          a.ID,
			UserID:      a.UserID,
			Title:       a.Title,
			Artist:      a.Artist,
			ReleaseDate: a.ReleaseDate,
			ImageURL:    a.ImageURL,
			Genres:      a.Genres,
		})
	}
	for _, t := range input.Body.Tracks {
		payload.Tracks = append(payload.Tracks, domain.Track{
			ID:          t.ID,
			UserID:      t.UserID,
			Title:       t.Title,
			Artist:      t.Artist,
			AlbumName:   t.AlbumName,
			ReleaseDate: t.ReleaseDate,
			ImageURL:    t.ImageURL,
			Genres:      t.Genres,
		})
	}

	res, err := s.services.Library.Import(ctx, payload)
	if err != nil {
		return nil, err
	}
	return &ImportLibraryOutput{Body: res}, nil
}
