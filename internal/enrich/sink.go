package enrich

import "github.com/listenupapp/enrichd/internal/domain"

// ProgressSink receives the events of one batch in order: Start once,
// Progress after every item that was not skipped, Complete once with the
// summary, then Close. Implementations must not block for long; the
// orchestrator calls them from worker goroutines, one call at a time.
type ProgressSink interface {
	Start(total int)
	Progress(p domain.Progress)
	Complete(summary *domain.BatchSummary)
	Close()
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) Start(int) {}
func (NopSink) Progress(domain.Progress) {}
func (NopSink) Complete(*domain.BatchSummary) {}
func (NopSink) Close() {}

// Sinks fans events out to several sinks in order.
type Sinks []ProgressSink

func (s Sinks) Start(total int) {
	for _, sink := range s {
		sink.Start(total)
	}
}

func (s Sinks) Progress(p domain.Progress) {
	for _, sink := range s {
		sink.Progress(p)
	}
}

func (s Sinks) Complete(summary *domain.BatchSummary) {
	for _, sink := range s {
		sink.Complete(summary)
	}
}

func (s Sinks) Close() {
	for _, sink := range s {
		sink.Close()
	}
}
