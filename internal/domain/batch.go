package domain

import "time"

// BatchItem is one candidate record for enrichment.
type BatchItem struct {
	ID        string   `json:"id"`
	Kind      ItemKind `json:"kind"`
	Name      string   `json:"name"`
	Artist    string   `json:"artist"`
	AlbumName string   `json:"album_name,omitempty"`
	DateHint  string   `json:"date_hint,omitempty"`
	HasValue  bool     `json:"has_value"`
}

// CacheName is the name the shared cache is keyed by. Tracks resolve
// through their album so every track of an album shares one entry.
func (i BatchItem) CacheName() string {
	if i.Kind == ItemTrack && i.AlbumName != "" {
		return i.AlbumName
	}
	return i.Name
}

// Label is the human-readable identity used in progress events.
func (i BatchItem) Label() string {
	if i.Artist == "" {
		return i.Name
	}
	return i.Name + " - " + i.Artist
}

// OutcomeStatus is the terminal state of one batch item.
type OutcomeStatus string

// Outcome statuses.
const (
	StatusSkipped  OutcomeStatus = "skipped"
	StatusSuccess  OutcomeStatus = "success"
	StatusNotFound OutcomeStatus = "not_found"
	StatusError    OutcomeStatus = "error"
)

// SourceCache marks values served from the shared cache.
const SourceCache = "cache"

// BatchOutcome records what happened to one item.
type BatchOutcome struct {
	ID       string        `json:"id"`
	Label    string        `json:"label"`
	Status   OutcomeStatus `json:"status"`
	Value    string        `json:"value,omitempty"`
	Source   string        `json:"source,omitempty"`
	Error    string        `json:"error,omitempty"`
	Cascaded int           `json:"cascaded,omitempty"`
}

// BatchSummary aggregates one batch. len(Outcomes) always equals Total and
// Outcomes[i] describes the i-th input item.
type BatchSummary struct {
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Kind       Kind           `json:"kind"`
	Outcomes   []BatchOutcome `json:"outcomes"`
	Total      int            `json:"total"`
	Succeeded  int            `json:"succeeded"`
	CacheHits  int            `json:"cache_hits"`
	Failed     int            `json:"failed"`
	NotFound   int            `json:"not_found"`
	Skipped    int            `json:"skipped"`
	Cascaded   int            `json:"cascaded"`
}

// Tally recomputes the counters from Outcomes.
func (s *BatchSummary) Tally() {
	s.Total = len(s.Outcomes)
	s.Succeeded, s.CacheHits, s.Failed, s.NotFound, s.Skipped, s.Cascaded = 0, 0, 0, 0, 0, 0
	for _, o := range s.Outcomes {
		switch o.Status {
		case StatusSuccess:
			s.Succeeded++
			if o.Source == SourceCache {
				s.CacheHits++
			}
		case StatusError:
			s.Failed++
		case StatusNotFound:
			s.NotFound++
		case StatusSkipped:
			s.Skipped++
		}
		s.Cascaded += o.Cascaded
	}
}

// Duration is the wall time of the batch.
func (s *BatchSummary) Duration() time.Duration {
	if s.FinishedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

// Progress is emitted after each non-skipped item completes. Current is
// strictly increasing within one batch.
type Progress struct {
	Label   string       `json:"label"`
	Outcome BatchOutcome `json:"outcome"`
	Current int          `json:"current"`
	Total   int          `json:"total"`
}

// JobStatus is the lifecycle state of an asynchronous enrichment job.
type JobStatus string

// Job statuses.
const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// Job is an enrichment run started in the background.
type Job struct {
	CreatedAt  time.Time       `json:"created_at"`
	StartedAt  *time.Time      `json:"started_at,omitempty"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
	ID         string          `json:"id"`
	UserID     string          `json:"user_id"`
	Target     Target          `json:"target"`
	Status     JobStatus       `json:"status"`
	Error      string          `json:"error,omitempty"`
	Kinds      []Kind          `json:"kinds"`
	Summaries  []*BatchSummary `json:"summaries,omitempty"`
	// Progress is the latest progress of a running job. It is not persisted.
	Progress *Progress `json:"progress,omitempty"`
	Force    bool      `json:"force"`
}

// Done reports whether the job reached a terminal state.
func (j *Job) Done() bool {
	return j.Status == JobCompleted || j.Status == JobFailed
}
