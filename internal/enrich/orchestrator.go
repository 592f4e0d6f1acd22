package enrich

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/listenupapp/enrichd/internal/domain"
	domainerrors "github.com/listenupapp/enrichd/internal/errors"
	"github.com/listenupapp/enrichd/internal/logger"
)

// Concurrency bounds for one batch.
const (
	DefaultConcurrency = 5
	MaxConcurrency     = 20
)

// ClampConcurrency maps a requested window size into [1, MaxConcurrency];
// zero or negative means DefaultConcurrency.
func ClampConcurrency(n int) int {
	switch {
	case n <= 0:
		return DefaultConcurrency
	case n > MaxConcurrency:
		return MaxConcurrency
	default:
		return n
	}
}

// AfterSuccessFunc runs inside the item's worker after a successful
// resolution, before the window completes. It returns how many dependent
// records it updated. An error turns the item's outcome into an error.
type AfterSuccessFunc func(ctx context.Context, item domain.BatchItem, kind domain.Kind, res *Result) (int, error)

// RunOptions configures one batch.
type RunOptions struct {
	Sink         ProgressSink
	AfterSuccess AfterSuccessFunc
	Kind         domain.Kind
	Concurrency  int
	Force        bool
}

// Orchestrator runs a Resolver over a list of items in windows.
type Orchestrator struct {
	resolver Resolver
	observer Observer
	logger   *slog.Logger
	now      func() time.Time
}

// NewOrchestrator creates an orchestrator. A nil observer reports nothing.
func NewOrchestrator(resolver Resolver, observer Observer, log *slog.Logger) *Orchestrator {
	if observer == nil {
		observer = NopObserver{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Orchestrator{
		resolver: resolver,
		observer: observer,
		logger:   logger.Component(log, "orchestrator"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// errCanceled is recorded for items never started because the batch was
// canceled.
var errCanceled = errors.New("canceled")

// Run enriches items and returns the summary. It never fails as a whole:
// every item ends up with exactly one outcome, stored at its input index.
//
// Items are processed in consecutive windows of opts.Concurrency; every item
// of a window runs concurrently and the window drains before the next one
// starts. Items that already have a value are skipped unless opts.Force is
// set. Cancellation is checked between windows; items of windows that never
// started are recorded as errors.
func (o *Orchestrator) Run(ctx context.Context, items []domain.BatchItem, opts RunOptions) *domain.BatchSummary {
	sink := opts.Sink
	if sink == nil {
		sink = NopSink{}
	}
	window := ClampConcurrency(opts.Concurrency)
	total := len(items)

	summary := &domain.BatchSummary{
		StartedAt: o.now(),
		Kind:      opts.Kind,
		Outcomes:  make([]domain.BatchOutcome, total),
	}

	o.logger.Info("batch started",
		"kind", opts.Kind,
		"items", total,
		"concurrency", window,
		"force", opts.Force,
	)
	sink.Start(total)

	var (
		mu      sync.Mutex
		current int
	)
	record := func(i int, out domain.BatchOutcome) {
		summary.Outcomes[i] = out
		o.observer.ItemOutcome(opts.Kind, out.Status)
		if out.Status == domain.StatusSkipped {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		current++
		sink.Progress(domain.Progress{
			Label:   out.Label,
			Outcome: out,
			Current: current,
			Total:   total,
		})
	}

	for start := 0; start < total; start += window {
		end := min(start+window, total)

		if err := ctx.Err(); err != nil {
			o.logger.Warn("batch canceled",
				"kind", opts.Kind,
				"remaining", total-start,
				"error", err,
			)
			for i := start; i < total; i++ {
				record(i, domain.BatchOutcome{
					ID:     items[i].ID,
					Label:  items[i].Label(),
					Status: domain.StatusError,
					Error:  errCanceled.Error(),
				})
			}
			break
		}

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Go(func() {
				record(i, o.process(ctx, items[i], opts))
			})
		}
		wg.Wait()
	}

	summary.FinishedAt = o.now()
	summary.Tally()
	o.observer.BatchFinished(opts.Kind, summary.Duration())

	o.logger.Info("batch finished",
		"kind", opts.Kind,
		"total", summary.Total,
		"succeeded", summary.Succeeded,
		"cache_hits", summary.CacheHits,
		"not_found", summary.NotFound,
		"failed", summary.Failed,
		"skipped", summary.Skipped,
		"cascaded", summary.Cascaded,
		"duration", summary.Duration(),
	)

	sink.Complete(summary)
	sink.Close()
	return summary
}

// process resolves one item. A panic is recovered into an error outcome so
// one bad item cannot take down its window.
func (o *Orchestrator) process(ctx context.Context, item domain.BatchItem, opts RunOptions) (out domain.BatchOutcome) {
	out = domain.BatchOutcome{ID: item.ID, Label: item.Label()}

	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("panic while enriching item",
				"id", item.ID,
				"kind", opts.Kind,
				"panic", r,
			)
			out.Status = domain.StatusError
			out.Value, out.Source = "", ""
			out.Error = fmt.Sprintf("panic: %v", r)
		}
	}()

	if item.HasValue && !opts.Force {
		out.Status = domain.StatusSkipped
		return out
	}

	res, err := o.resolver.Resolve(ctx, opts.Kind, item.CacheName(), item.Artist, item.DateHint, opts.Force)
	switch {
	case errors.Is(err, domainerrors.ErrInvalidInput):
		out.Status = domain.StatusSkipped
		out.Error = err.Error()
		return out
	case err != nil:
		o.logger.Warn("item enrichment failed",
			"id", item.ID,
			"kind", opts.Kind,
			"label", out.Label,
			"error", err,
		)
		out.Status = domain.StatusError
		out.Error = err.Error()
		return out
	case res == nil:
		out.Status = domain.StatusNotFound
		return out
	}

	out.Status = domain.StatusSuccess
	out.Value = res.Value
	out.Source = res.Source

	if opts.AfterSuccess != nil {
		n, err := opts.AfterSuccess(ctx, item, opts.Kind, res)
		if err != nil {
			o.logger.Warn("applying resolved value failed",
				"id", item.ID,
				"kind", opts.Kind,
				"error", err,
			)
			out.Status = domain.StatusError
			out.Error = err.Error()
			return out
		}
		out.Cascaded = n
	}
	return out
}
