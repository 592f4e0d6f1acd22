package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/listenupapp/enrichd/internal/domain"
	"github.com/listenupapp/enrichd/internal/enrich"
	domainerrors "github.com/listenupapp/enrichd/internal/errors"
	"github.com/listenupapp/enrichd/internal/id"
	"github.com/listenupapp/enrichd/internal/sse"
	"github.com/listenupapp/enrichd/internal/store"
	"github.com/listenupapp/enrichd/internal/validation"
)

// saveTimeout bounds job bookkeeping writes made after the job's own
// context is gone.
const saveTimeout = 10 * time.Second

// RunRequest describes one enrichment run.
type RunRequest struct {
	UserID      string   `json:"user_id" validate:"required,max=128"`
	Target      string   `json:"target,omitempty" validate:"omitempty,oneof=albums tracks both"`
	Kind        string   `json:"kind" validate:"required,oneof=image genre both"`
	IDs         []string `json:"ids,omitempty" validate:"omitempty,max=500,dive,required"`
	Concurrency int      `json:"concurrency,omitempty" validate:"gte=0,lte=20"`
	Force       bool     `json:"force,omitempty"`
}

// SinkFactory returns the progress sink for the batch of one kind.
type SinkFactory func(kind domain.Kind) enrich.ProgressSink

// EnrichmentService runs enrichment batches over a user's records, either
// synchronously or as background jobs.
type EnrichmentService struct {
	library      store.Library
	jobs         store.JobStore
	orchestrator *enrich.Orchestrator
	events       *sse.Manager
	validator    *validation.Validator
	logger       *slog.Logger
	concurrency  int

	// Background jobs run under ctx and are tracked by wg.
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu   sync.RWMutex
	live map[string]*domain.Progress
}

// NewEnrichmentService creates a new enrichment service. events may be nil,
// in which case jobs publish no events. concurrency is the default window
// size for requests that do not set one.
func NewEnrichmentService(
	library store.Library,
	jobs store.JobStore,
	orchestrator *enrich.Orchestrator,
	events *sse.Manager,
	concurrency int,
	logger *slog.Logger,
) *EnrichmentService {
	ctx, cancel := context.WithCancel(context.Background())
	return &EnrichmentService{
		library:      library,
		jobs:         jobs,
		orchestrator: orchestrator,
		events:       events,
		validator:    validation.New(),
		logger:       logger,
		concurrency:  enrich.ClampConcurrency(concurrency),
		ctx:          ctx,
		cancel:       cancel,
		live:         make(map[string]*domain.Progress),
	}
}

type plan struct {
	scope       domain.Scope
	kinds       []domain.Kind
	concurrency int
	force       bool
}

func (s *EnrichmentService) plan(req RunRequest) (*plan, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	target, err := domain.ParseTarget(req.Target)
	if err != nil {
		return nil, domainerrors.InvalidInput(err.Error())
	}
	kinds, err := domain.ParseKinds(req.Kind)
	if err != nil {
		return nil, domainerrors.InvalidInput(err.Error())
	}

	concurrency := s.concurrency
	if req.Concurrency > 0 {
		concurrency = enrich.ClampConcurrency(req.Concurrency)
	}
	return &plan{
		scope:       domain.Scope{UserID: req.UserID, Target: target, IDs: req.IDs},
		kinds:       kinds,
		concurrency: concurrency,
		force:       req.Force,
	}, nil
}

// Validate reports whether req would be accepted by Run or StartJob.
func (s *EnrichmentService) Validate(req RunRequest) error {
	_, err := s.plan(req)
	return err
}

// Run enriches the records in scope and returns one summary per kind, in
// order. sinks may be nil. A failure to enumerate candidates aborts the run
// with no summaries.
func (s *EnrichmentService) Run(ctx context.Context, req RunRequest, sinks SinkFactory) ([]*domain.BatchSummary, error) {
	p, err := s.plan(req)
	if err != nil {
		return nil, err
	}
	return s.run(ctx, p, sinks)
}

func (s *EnrichmentService) run(ctx context.Context, p *plan, sinks SinkFactory) ([]*domain.BatchSummary, error) {
	summaries := make([]*domain.BatchSummary, 0, len(p.kinds))
	for _, kind := range p.kinds {
		items, err := s.library.LoadCandidates(ctx, p.scope, kind, p.force)
		if err != nil {
			s.logger.Error("failed to load candidates",
				"user_id", p.scope.UserID,
				"kind", kind,
				"error", err,
			)
			return nil, domainerrors.StorageUnavailable("load candidates", err)
		}

		var sink enrich.ProgressSink = enrich.NopSink{}
		if sinks != nil {
			sink = sinks(kind)
		}

		summary := s.orchestrator.Run(ctx, items, enrich.RunOptions{
			Kind:         kind,
			Force:        p.force,
			Concurrency:  p.concurrency,
			Sink:         sink,
			AfterSuccess: s.apply,
		})
		summaries = append(summaries, summary)

		if err := ctx.Err(); err != nil {
			break
		}
	}
	return summaries, nil
}

// apply writes a resolved value to the record and cascades album values to
// the matching tracks. A cascade failure is logged; the album itself was
// enriched.
func (s *EnrichmentService) apply(ctx context.Context, item domain.BatchItem, kind domain.Kind, res *enrich.Result) (int, error) {
	if err := s.library.ApplyResolvedValue(ctx, item, kind, res.Value); err != nil {
		return 0, domainerrors.StorageUnavailable("apply resolved value", err)
	}

	cascaded, err := domain.CascadeValue(ctx, s.library, item, kind, res.Value)
	if err != nil {
		s.logger.Warn("cascade failed",
			"id", item.ID,
			"kind", kind,
			"cascaded", cascaded,
			"error", err,
		)
	}
	return cascaded, nil
}

// StartJob validates req, records a pending job and runs it in the
// background. Progress is published to the job's event subscribers.
func (s *EnrichmentService) StartJob(ctx context.Context, req RunRequest) (*domain.Job, error) {
	p, err := s.plan(req)
	if err != nil {
		return nil, err
	}
	if err := s.ctx.Err(); err != nil {
		return nil, domainerrors.Conflict("service is shutting down")
	}

	jobID, err := id.Generate(id.Job)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "generate job id")
	}
	job := &domain.Job{
		ID:        jobID,
		UserID:    p.scope.UserID,
		Target:    p.scope.Target,
		Kinds:     p.kinds,
		Force:     p.force,
		Status:    domain.JobPending,
		CreatedAt: time.Now(),
	}
	if err := s.jobs.SaveJob(ctx, job); err != nil {
		return nil, domainerrors.StorageUnavailable("save job", err)
	}

	s.logger.Info("enrichment job queued",
		"job_id", job.ID,
		"user_id", job.UserID,
		"kinds", job.Kinds,
	)

	snapshot := *job
	s.wg.Go(func() {
		s.runJob(job, p)
	})
	return &snapshot, nil
}

func (s *EnrichmentService) runJob(job *domain.Job, p *plan) {
	started := time.Now()
	job.StartedAt = &started
	job.Status = domain.JobRunning
	s.saveJob(job)

	s.mu.Lock()
	s.live[job.ID] = &domain.Progress{}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.live, job.ID)
		s.mu.Unlock()
	}()

	summaries, err := s.run(s.ctx, p, func(kind domain.Kind) enrich.ProgressSink {
		sinks := enrich.Sinks{&jobTracker{service: s, jobID: job.ID}}
		if s.events != nil {
			sinks = append(sinks, sse.NewJobSink(s.events, job, kind))
		}
		return sinks
	})

	finished := time.Now()
	job.FinishedAt = &finished
	job.Summaries = summaries
	switch {
	case err != nil:
		job.Status = domain.JobFailed
		job.Error = err.Error()
	case s.ctx.Err() != nil:
		job.Status = domain.JobFailed
		job.Error = "canceled"
	default:
		job.Status = domain.JobCompleted
	}
	s.saveJob(job)

	s.logger.Info("enrichment job finished",
		"job_id", job.ID,
		"status", job.Status,
		"duration", finished.Sub(started),
	)

	if s.events != nil {
		s.events.Emit(sse.NewJobFinishedEvent(job))
	}
}

func (s *EnrichmentService) saveJob(job *domain.Job) {
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	if err := s.jobs.SaveJob(ctx, job); err != nil {
		s.logger.Error("failed to save job",
			"job_id", job.ID,
			"status", job.Status,
			"error", err,
		)
	}
}

// GetJob returns a job, with the latest progress when it is running.
func (s *EnrichmentService) GetJob(ctx context.Context, jobID string) (*domain.Job, error) {
	job, err := s.jobs.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	if p, ok := s.live[jobID]; ok {
		progress := *p
		job.Progress = &progress
	}
	s.mu.RUnlock()
	return job, nil
}

// ListJobs returns a user's most recent jobs.
func (s *EnrichmentService) ListJobs(ctx context.Context, userID string, limit int) ([]*domain.Job, error) {
	if userID == "" {
		return nil, domainerrors.InvalidInput("user_id is required")
	}
	return s.jobs.ListJobs(ctx, userID, limit)
}

// Status reports how many of the user's records still miss each field.
func (s *EnrichmentService) Status(ctx context.Context, userID, target string) (*domain.MissingCounts, error) {
	if userID == "" {
		return nil, domainerrors.InvalidInput("user_id is required")
	}
	t, err := domain.ParseTarget(target)
	if err != nil {
		return nil, domainerrors.InvalidInput(err.Error())
	}
	return s.library.CountMissing(ctx, domain.Scope{UserID: userID, Target: t})
}

// Shutdown cancels running jobs and waits for them to record their final
// state, or for ctx to expire.
func (s *EnrichmentService) Shutdown(ctx context.Context) error {
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// jobTracker keeps the latest progress of a running job for GetJob.
type jobTracker struct {
	service *EnrichmentService
	jobID   string
}

func (t *jobTracker) set(p domain.Progress) {
	t.service.mu.Lock()
	if _, ok := t.service.live[t.jobID]; ok {
		t.service.live[t.jobID] = &p
	}
	t.service.mu.Unlock()
}

func (t *jobTracker) Start(total int) { t.set(domain.Progress{Total: total}) }
func (t *jobTracker) Progress(p domain.Progress) { t.set(p) }
func (t *jobTracker) Complete(*domain.BatchSummary) {}
func (t *jobTracker) Close() {}
