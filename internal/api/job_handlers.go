package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/listenupapp/enrichd/internal/domain"
)

func (s *Server) registerJobRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:   "startEnrichmentJob",
		Method:        http.MethodPost,
		Path:          "/api/v1/enrich/jobs",
		Summary:       "Start enrichment job",
		Description:   "Queues an enrichment run in the background. Follow it on the job's events stream or poll it",
		Tags:          []string{"Jobs"},
		DefaultStatus: http.StatusAccepted,
	}, s.handleStartJob)

	huma.Register(s.api, huma.Operation{
		OperationID: "getEnrichmentJob",
		Method:      http.MethodGet,
		Path:        "/api/v1/enrich/jobs/{id}",
		Summary:     "Get enrichment job",
		Description: "Returns a job with its live progress while running and its summaries once done",
		Tags:        []string{"Jobs"},
	}, s.handleGetJob)

	huma.Register(s.api, huma.Operation{
		OperationID: "listEnrichmentJobs",
		Method:      http.MethodGet,
		Path:        "/api/v1/enrich/jobs",
		Summary:     "List enrichment jobs",
		Description: "Returns a user's most recent jobs, newest first",
		Tags:        []string{"Jobs"},
	}, s.handleListJobs)
}

// === DTOs ===

// StartJobInput wraps the job request for Huma.
type StartJobInput struct {
	Body RunEnrichmentRequest
}

// StartJobResponse identifies a queued job.
type StartJobResponse struct {
	JobID  string           `json:"job_id" doc:"Job ID"`
	Status domain.JobStatus `json:"status" doc:"Job status at creation"`
}

// StartJobOutput wraps the start job response for Huma.
type StartJobOutput struct {
	Body StartJobResponse
}

// GetJobInput contains parameters for getting a job.
type GetJobInput struct {
	ID string `path:"id" doc:"Job ID"`
}

// JobOutput wraps a job for Huma.
type JobOutput struct {
	Body *domain.Job
}

// ListJobsInput contains parameters for listing jobs.
type ListJobsInput struct {
	UserID string `query:"user_id" required:"true" doc:"Owner of the jobs"`
	Limit  int    `query:"limit" minimum:"0" maximum:"100" doc:"Maximum number of jobs"`
}

// ListJobsResponse contains a list of jobs.
type ListJobsResponse struct {
	Jobs []*domain.Job `json:"jobs" doc:"Jobs, newest first"`
}

// ListJobsOutput wraps the job list for Huma.
type ListJobsOutput struct {
	Body ListJobsResponse
}

// === Handlers ===

func (s *Server) handleStartJob(ctx context.Context, input *StartJobInput) (*StartJobOutput, error) {
	req := input.Body.toService()
	if err := s.services.Enrichment.Validate(req); err != nil {
		return nil, err
	}
	if err := s.allowTrigger(req.UserID); err != nil {
		return nil, err
	}

	job, err := s.services.Enrichment.StartJob(ctx, req)
	if err != nil {
		return nil, err
	}
	return &StartJobOutput{Body: StartJobResponse{JobID: job.ID, Status: job.Status}}, nil
}

func (s *Server) handleGetJob(ctx context.Context, input *GetJobInput) (*JobOutput, error) {
	job, err := s.services.Enrichment.GetJob(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	return &JobOutput{Body: job}, nil
}

func (s *Server) handleListJobs(ctx context.Context, input *ListJobsInput) (*ListJobsOutput, error) {
	limit := input.Limit
	if limit == 0 {
		limit = DefaultJobListLimit
	}

	jobs, err := s.services.Enrichment.ListJobs(ctx, input.UserID, limit)
	if err != nil {
		return nil, err
	}
	if jobs == nil {
		jobs = []*domain.Job{}
	}
	return &ListJobsOutput{Body: ListJobsResponse{Jobs: jobs}}, nil
}
