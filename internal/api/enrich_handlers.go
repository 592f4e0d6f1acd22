package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/listenupapp/enrichd/internal/domain"
	"github.com/listenupapp/enrichd/internal/service"
)

func (s *Server) registerEnrichRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "runEnrichment",
		Method:      http.MethodPost,
		Path:        "/api/v1/enrich/run",
		Summary:     "Run enrichment",
		Description: "Enriches a user's albums and tracks and returns one summary per kind when done",
		Tags:        []string{"Enrichment"},
	}, s.handleRunEnrichment)

	huma.Register(s.api, huma.Operation{
		OperationID: "getEnrichmentStatus",
		Method:      http.MethodGet,
		Path:        "/api/v1/enrich/status",
		Summary:     "Enrichment status",
		Description: "Counts a user's records that still miss an image or genre",
		Tags:        []string{"Enrichment"},
	}, s.handleEnrichmentStatus)
}

// === DTOs ===

// RunEnrichmentRequest is the request body shared by synchronous runs and jobs.
type RunEnrichmentRequest struct {
	UserID      string   `json:"user_id" doc:"Owner of the records to enrich"`
	Kind        string   `json:"kind" doc:"image, genre or both"`
	Target      string   `json:"target,omitempty" doc:"albums, tracks or both (default both)"`
	IDs         []string `json:"ids,omitempty" doc:"Restrict the run to these record IDs"`
	Concurrency int      `json:"concurrency,omitempty" doc:"Items resolved in parallel, 1 to 20"`
	Force       bool     `json:"force,omitempty" doc:"Re-resolve records that already have a value"`
}

func (r RunEnrichmentRequest) toService() service.RunRequest {
	return service.RunRequest{
		UserID:      r.UserID,
		Target:      r.Target,
		Kind:        r.Kind,
		IDs:         r.IDs,
		Concurrency: r.Concurrency,
		Force:       r.Force,
	}
}

// RunEnrichmentInput wraps the run request for Huma.
type RunEnrichmentInput struct {
	Body RunEnrichmentRequest
}

// RunEnrichmentResponse contains the summaries of a finished run.
type RunEnrichmentResponse struct {
	Summaries []*domain.BatchSummary `json:"summaries" doc:"One summary per kind, in run order"`
}

// RunEnrichmentOutput wraps the run response for Huma.
type RunEnrichmentOutput struct {
	Body RunEnrichmentResponse
}

// EnrichmentStatusInput contains parameters for the status query.
type EnrichmentStatusInput struct {
	UserID string `query:"user_id" required:"true" doc:"Owner of the records"`
	Target string `query:"target" doc:"albums, tracks or both"`
}

// EnrichmentStatusOutput wraps the missing counts for Huma.
type EnrichmentStatusOutput struct {
	Body *domain.MissingCounts
}

// === Handlers ===

func (s *Server) handleRunEnrichment(ctx context.Context, input *RunEnrichmentInput) (*RunEnrichmentOutput, error) {
	req := input.Body.toService()
	if err := s.services.Enrichment.Validate(req); err != nil {
		return nil, err
	}
	if err := s.allowTrigger(req.UserID); err != nil {
		return nil, err
	}

	summaries, err := s.services.Enrichment.Run(ctx, req, nil)
	if err != nil {
		return nil, err
	}
	return &RunEnrichmentOutput{Body: RunEnrichmentResponse{Summaries: summaries}}, nil
}

func (s *Server) handleEnrichmentStatus(ctx context.Context, input *EnrichmentStatusInput) (*EnrichmentStatusOutput, error) {
	counts, err := s.services.Enrichment.Status(ctx, input.UserID, input.Target)
	if err != nil {
		return nil, err
	}
	return &EnrichmentStatusOutput{Body: counts}, nil
}
