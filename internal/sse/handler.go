package sse

import (
	"context"
	"encoding/json/v2"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/listenupapp/enrichd/internal/domain"
	"github.com/listenupapp/enrichd/internal/store"
)

const writeTimeout = 60 * time.Second

// JobGetter loads a job by id.
type JobGetter interface {
	GetJob(ctx context.Context, id string) (*domain.Job, error)
}

// Handler streams the events of one enrichment job at
// GET /api/v1/enrich/jobs/{id}/events.
type Handler struct {
	manager *Manager
	jobs    JobGetter
	logger  *slog.Logger
}

// NewHandler creates a new SSE Handler.
func NewHandler(manager *Manager, jobs JobGetter, logger *slog.Logger) *Handler {
	return &Handler{
		manager: manager,
		jobs:    jobs,
		logger:  logger,
	}
}

// ServeJob handles the SSE connection for jobID. A job that already
// finished gets its summaries replayed followed by the terminal event.
func (h *Handler) ServeJob(w http.ResponseWriter, r *http.Request, jobID string) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Check if request context is already canceled (early client disconnect).
	if r.Context().Err() != nil {
		return
	}

	// Subscribe before loading the job so a job finishing in between still
	// delivers its terminal event.
	client, err := h.manager.Connect(jobID, "")
	if err != nil {
		h.logger.Error("failed to register SSE client", slog.String("error", err.Error()))
		http.Error(w, "Failed to establish connection", http.StatusInternalServerError)
		return
	}
	defer h.manager.Disconnect(client.ID)

	job, err := h.jobs.GetJob(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "Job not found", http.StatusNotFound)
			return
		}
		h.logger.Error("failed to load job", slog.String("job_id", jobID), slog.String("error", err.Error()))
		http.Error(w, "Failed to load job", http.StatusServiceUnavailable)
		return
	}

	rc, err := startStream(w)
	if err != nil {
		h.logger.Error("failed to flush headers", slog.String("error", err.Error()))
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	clientLogger := h.logger.With(slog.String("client_id", client.ID), slog.String("job_id", jobID))

	if job.Done() {
		for _, ev := range Replay(job) {
			if err := writeEvent(w, rc, clientLogger, ev); err != nil {
				return
			}
		}
		return
	}

	ctx := r.Context()
	heartbeatTicker := time.NewTicker(heartbeatInterval)
	defer heartbeatTicker.Stop()

	for {
		select {
		case event, ok := <-client.EventChan:
			if !ok {
				return
			}
			if err := writeEvent(w, rc, clientLogger, event); err != nil {
				// Client disconnect is normal, not an error condition.
				clientLogger.Info("client disconnected during send")
				return
			}
			if event.Terminal() {
				return
			}

		case <-heartbeatTicker.C:
			if err := writeEvent(w, rc, clientLogger, NewHeartbeatEvent()); err != nil {
				clientLogger.Info("client disconnected during heartbeat")
				return
			}

		case <-client.Done:
			clientLogger.Info("client closed by manager")
			return

		case <-ctx.Done():
			clientLogger.Info("client context canceled")
			return
		}
	}
}

// startStream sets the SSE headers and flushes them.
func startStream(w http.ResponseWriter) (*http.ResponseController, error) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	rc := http.NewResponseController(w)
	if err := rc.Flush(); err != nil {
		return nil, err
	}
	return rc, nil
}

// writeEvent writes one SSE frame using json/v2 and flushes it.
//
//	event: <type>
//	data: <json>
func writeEvent(w io.Writer, rc *http.ResponseController, logger *slog.Logger, event Event) error {
	jsonData, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event data: %w", err)
	}

	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, jsonData); err != nil {
		return err
	}

	if err := rc.Flush(); err != nil {
		return err
	}

	// Reset after each successful write so hung connections time out.
	if err := rc.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		// SetWriteDeadline may not be supported by all ResponseWriters.
		logger.Debug("failed to set write deadline", slog.String("error", err.Error()))
	}

	return nil
}
