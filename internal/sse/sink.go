package sse

import (
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/listenupapp/enrichd/internal/domain"
)

// JobSink publishes the events of one batch of an asynchronous job to the
// manager. Close is a no-op; the job's terminal event is emitted separately
// once every batch of the job has run.
type JobSink struct {
	manager *Manager
	jobID   string
	userID  string
	kind    domain.Kind
}

// NewJobSink creates a sink for the kind batch of job.
func NewJobSink(manager *Manager, job *domain.Job, kind domain.Kind) *JobSink {
	return &JobSink{manager: manager, jobID: job.ID, userID: job.UserID, kind: kind}
}

// Start implements enrich.ProgressSink.
func (s *JobSink) Start(total int) {
	s.manager.EmitToJob(s.jobID, s.userID, NewStartEvent(s.kind, total))
}

// Progress implements enrich.ProgressSink.
func (s *JobSink) Progress(p domain.Progress) {
	s.manager.EmitToJob(s.jobID, s.userID, NewProgressEvent(s.kind, p))
}

// Complete implements enrich.ProgressSink.
func (s *JobSink) Complete(summary *domain.BatchSummary) {
	s.manager.EmitToJob(s.jobID, s.userID, NewCompleteEvent(summary))
}

// Close implements enrich.ProgressSink.
func (s *JobSink) Close() {}

// streamBuffer is how many events a StreamSink queues ahead of its writer.
const streamBuffer = 256

// StreamSink writes batch events straight to one HTTP response. Events are
// queued on a buffered channel and written by a single goroutine, so the
// orchestrator never waits on the network. Progress events are dropped when
// the queue is full; start and complete events are not.
//
// One StreamSink can carry several batches: use Batch to get the sink for
// each kind and call Close once after the last batch.
type StreamSink struct {
	w      http.ResponseWriter
	rc     *http.ResponseController
	logger *slog.Logger
	events chan Event
	done   chan struct{}

	mu     sync.Mutex // guards closed
	closed bool
	failed atomic.Bool
}

// NewStreamSink sets the SSE headers on w and starts the writer.
func NewStreamSink(w http.ResponseWriter, logger *slog.Logger) (*StreamSink, error) {
	rc, err := startStream(w)
	if err != nil {
		return nil, err
	}

	s := &StreamSink{
		w:      w,
		rc:     rc,
		logger: logger,
		events: make(chan Event, streamBuffer),
		done:   make(chan struct{}),
	}
	go s.run()
	return s, nil
}

// Batch returns the sink for one kind's batch.
func (s *StreamSink) Batch(kind domain.Kind) *StreamBatch {
	return &StreamBatch{stream: s, kind: kind}
}

// Close stops accepting events and waits until the queued ones are written.
// The response must not be touched by the caller before Close returns.
func (s *StreamSink) Close() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.events)
	}
	s.mu.Unlock()
	<-s.done
}

// Fail queues an error event. Call it before Close when the run aborted.
func (s *StreamSink) Fail(code, message string) {
	s.send(NewErrorEvent(code, message))
}

func (s *StreamSink) run() {
	defer close(s.done)

	heartbeatTicker := time.NewTicker(heartbeatInterval)
	defer heartbeatTicker.Stop()

	for {
		select {
		case event, ok := <-s.events:
			if !ok {
				return
			}
			s.write(event)
		case <-heartbeatTicker.C:
			s.write(NewHeartbeatEvent())
		}
	}
}

// write sends one event unless an earlier write failed. After a failure the
// queue is still drained so senders never block.
func (s *StreamSink) write(event Event) {
	if s.failed.Load() {
		return
	}

	if err := writeEvent(s.w, s.rc, s.logger, event); err != nil {
		s.logger.Info("stream client went away", slog.String("error", err.Error()))
		s.failed.Store(true)
	}
}

func (s *StreamSink) send(event Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.failed.Load() {
		return
	}

	if !event.Droppable() {
		s.events <- event
		return
	}
	select {
	case s.events <- event:
	default:
		s.logger.Warn("stream queue full, dropping event",
			slog.String("event_type", string(event.Type)))
	}
}

// StreamBatch is the enrich.ProgressSink for one batch on a StreamSink.
type StreamBatch struct {
	stream *StreamSink
	kind   domain.Kind
}

// Start implements enrich.ProgressSink.
func (b *StreamBatch) Start(total int) {
	b.stream.send(NewStartEvent(b.kind, total))
}

// Progress implements enrich.ProgressSink.
func (b *StreamBatch) Progress(p domain.Progress) {
	b.stream.send(NewProgressEvent(b.kind, p))
}

// Complete implements enrich.ProgressSink.
func (b *StreamBatch) Complete(summary *domain.BatchSummary) {
	b.stream.send(NewCompleteEvent(summary))
}

// Close implements enrich.ProgressSink. The stream stays open for the next
// batch; StreamSink.Close ends it.
func (b *StreamBatch) Close() {}
