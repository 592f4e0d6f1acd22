package api

import (
	"encoding/json/v2"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/listenupapp/enrichd/internal/domain"
	"github.com/listenupapp/enrichd/internal/enrich"
	domainerrors "github.com/listenupapp/enrichd/internal/errors"
	"github.com/listenupapp/enrichd/internal/http/response"
	"github.com/listenupapp/enrichd/internal/service"
	"github.com/listenupapp/enrichd/internal/sse"
	"github.com/listenupapp/enrichd/internal/store"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
)

// handleStream runs enrichment inside the request and streams start,
// progress and complete events for each kind. The stream closes when the
// run ends.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := service.RunRequest{
		UserID: q.Get("user_id"),
		Target: q.Get("target"),
		Kind:   q.Get("kind"),
		IDs:    q["id"],
	}
	if v := q.Get("force"); v != "" {
		force, err := strconv.ParseBool(v)
		if err != nil {
			response.BadRequest(w, "force must be a boolean", s.logger)
			return
		}
		req.Force = force
	}
	if v := q.Get("concurrency"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			response.BadRequest(w, "concurrency must be an integer", s.logger)
			return
		}
		req.Concurrency = n
	}

	if err := s.services.Enrichment.Validate(req); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	if err := s.allowTrigger(req.UserID); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	stream, err := sse.NewStreamSink(w, s.logger)
	if err != nil {
		s.logger.Error("failed to start stream", "error", err)
		response.InternalError(w, "streaming not supported", s.logger)
		return
	}
	defer stream.Close()

	_, err = s.services.Enrichment.Run(r.Context(), req, func(kind domain.Kind) enrich.ProgressSink {
		return stream.Batch(kind)
	})
	if err != nil {
		code := domainerrors.CodeInternal
		var domainErr *domainerrors.Error
		if errors.As(err, &domainErr) {
			code = domainErr.Code
		}
		stream.Fail(string(code), err.Error())
	}
}

// handleJobEvents streams one job's events over SSE.
func (s *Server) handleJobEvents(w http.ResponseWriter, r *http.Request) {
	s.sseHandler.ServeJob(w, r, chi.URLParam(r, "id"))
}

// handleWebSocket delivers one job's events over a websocket as JSON text
// messages, in the same shape as the SSE stream. The socket is closed after
// the job's terminal event.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	jobID := r.URL.Query().Get("job_id")
	if jobID == "" {
		response.BadRequest(w, "job_id is required", s.logger)
		return
	}

	client, err := s.sseManager.Connect(jobID, "")
	if err != nil {
		response.InternalError(w, "failed to subscribe", s.logger)
		return
	}
	defer s.sseManager.Disconnect(client.ID)

	job, err := s.services.Enrichment.GetJob(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			response.NotFound(w, "job not found", s.logger)
			return
		}
		response.HandleError(w, err, s.logger)
		return
	}

	// Upgrade writes its own error response.
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "job_id", jobID, "error", err)
		return
	}
	defer conn.Close()

	logger := s.logger.With("client_id", client.ID, "job_id", jobID)

	if job.Done() {
		for _, ev := range sse.Replay(job) {
			if err := writeWSEvent(conn, ev); err != nil {
				return
			}
		}
		closeWS(conn, "job finished")
		return
	}

	// Reading is required to process pings and the peer's close frame.
	closed := make(chan struct{})
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()

	for {
		select {
		case event, ok := <-client.EventChan:
			if !ok {
				return
			}
			if err := writeWSEvent(conn, event); err != nil {
				logger.Info("websocket client went away", "error", err)
				return
			}
			if event.Terminal() {
				closeWS(conn, "job finished")
				return
			}

		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-closed:
			logger.Info("websocket client closed")
			return

		case <-client.Done:
			return
		}
	}
}

func writeWSEvent(conn *websocket.Conn, event sse.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return conn.WriteMessage(websocket.TextMessage, data)
}

func closeWS(conn *websocket.Conn, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason),
		time.Now().Add(wsWriteWait))
}
