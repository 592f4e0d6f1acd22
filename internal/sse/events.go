// Package sse implements Server-Sent Events for enrichment progress: a
// direct stream for one batch and a manager that fans job events out to
// every subscribed client.
package sse

import (
	"time"

	"github.com/listenupapp/enrichd/internal/domain"
)

// EventType represents the type of SSE Event.
type EventType string

const (
	// EventStart is sent once when a batch begins.
	EventStart EventType = "start"
	// EventProgress is sent after each item that was not skipped.
	EventProgress EventType = "progress"
	// EventComplete carries the summary of a finished batch.
	EventComplete EventType = "complete"
	// EventJobFinished is the last event of an asynchronous job, sent after
	// all of its batches completed or the job failed.
	EventJobFinished EventType = "job.finished"
	// EventError ends a direct stream whose run could not be carried out.
	EventError EventType = "error"

	// EventHeartbeat represents a connection keepalive event.
	EventHeartbeat EventType = "heartbeat"
)

// Event represents an SSE event to be sent to clients.
// The Data field contains the event payload as a JSON object for direct deserialization.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
	Type      EventType `json:"type"`
	JobID     string    `json:"job_id,omitempty"`

	// Filter to a specific user (not sent to client). Empty means all.
	UserID string `json:"-"`
}

// Terminal reports whether no further events follow for the event's job.
func (e Event) Terminal() bool {
	return e.Type == EventJobFinished
}

// Droppable reports whether the event may be discarded for a slow reader.
// Only progress and heartbeat events are; losing any other would leave a
// client without a batch boundary or its job's end.
func (e Event) Droppable() bool {
	return e.Type == EventProgress || e.Type == EventHeartbeat
}

// StartEventData is the data payload for start events.
type StartEventData struct {
	Kind  domain.Kind `json:"kind"`
	Total int         `json:"total"`
}

// ProgressEventData is the data payload for progress events.
type ProgressEventData struct {
	Kind    domain.Kind         `json:"kind"`
	Label   string              `json:"label"`
	Outcome domain.BatchOutcome `json:"outcome"`
	Current int                 `json:"current"`
	Total   int                 `json:"total"`
}

// CompleteEventData is the data payload for complete events.
type CompleteEventData struct {
	Summary *domain.BatchSummary `json:"summary"`
}

// JobFinishedEventData is the data payload for job.finished events.
type JobFinishedEventData struct {
	Status domain.JobStatus `json:"status"`
	Error  string           `json:"error,omitempty"`
}

// ErrorEventData is the data payload for error events.
type ErrorEventData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// HeartbeatEventData is the data payload for heartbeat events.
type HeartbeatEventData struct {
	ServerTime time.Time `json:"server_time"`
}

// NewStartEvent creates a start event.
func NewStartEvent(kind domain.Kind, total int) Event {
	return Event{
		Type:      EventStart,
		Timestamp: time.Now(),
		Data:      StartEventData{Kind: kind, Total: total},
	}
}

// NewProgressEvent creates a progress event.
func NewProgressEvent(kind domain.Kind, p domain.Progress) Event {
	return Event{
		Type:      EventProgress,
		Timestamp: time.Now(),
		Data: ProgressEventData{
			Kind:    kind,
			Label:   p.Label,
			Outcome: p.Outcome,
			Current: p.Current,
			Total:   p.Total,
		},
	}
}

// NewCompleteEvent creates a complete event.
func NewCompleteEvent(summary *domain.BatchSummary) Event {
	return Event{
		Type:      EventComplete,
		Timestamp: time.Now(),
		Data:      CompleteEventData{Summary: summary},
	}
}

// NewJobFinishedEvent creates the terminal event of a job.
func NewJobFinishedEvent(job *domain.Job) Event {
	return Event{
		Type:      EventJobFinished,
		Timestamp: time.Now(),
		JobID:     job.ID,
		UserID:    job.UserID,
		Data:      JobFinishedEventData{Status: job.Status, Error: job.Error},
	}
}

// Replay returns what a subscriber of a finished job missed: one complete
// event per summary, then the terminal event.
func Replay(job *domain.Job) []Event {
	events := make([]Event, 0, len(job.Summaries)+1)
	for _, summary := range job.Summaries {
		ev := NewCompleteEvent(summary)
		ev.JobID = job.ID
		ev.UserID = job.UserID
		events = append(events, ev)
	}
	return append(events, NewJobFinishedEvent(job))
}

// NewErrorEvent creates an error event.
func NewErrorEvent(code, message string) Event {
	return Event{
		Type:      EventError,
		Timestamp: time.Now(),
		Data:      ErrorEventData{Code: code, Message: message},
	}
}

// NewHeartbeatEvent creates a new heartbeat event.
func NewHeartbeatEvent() Event {
	return Event{
		Type:      EventHeartbeat,
		Timestamp: time.Now(),
		Data: HeartbeatEventData{
			ServerTime: time.Now(),
		},
	}
}
