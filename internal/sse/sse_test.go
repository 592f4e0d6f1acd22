package sse

import (
	"bufio"
	"context"
	"encoding/json/v2"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/enrichd/internal/domain"
	"github.com/listenupapp/enrichd/internal/logger"
	"github.com/listenupapp/enrichd/internal/store"
)

type frame struct {
	Type string
	Data map[string]any
}

// readFrames parses SSE frames until n have been read or the stream ends.
func readFrames(t *testing.T, r *bufio.Reader, n int) []frame {
	t.Helper()
	var frames []frame
	var cur frame
	for len(frames) < n {
		line, err := r.ReadString('\n')
		if err != nil {
			break
		}
		line = strings.TrimRight(line, "\n")
		switch {
		case strings.HasPrefix(line, "event: "):
			cur.Type = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			var ev map[string]any
			require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev))
			cur.Data = ev
		case line == "":
			frames = append(frames, cur)
			cur = frame{}
		}
	}
	return frames
}

func startManager(t *testing.T) *Manager {
	t.Helper()
	m := NewManager(logger.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	go m.Start(ctx)
	t.Cleanup(cancel)
	return m
}

func TestManager_FiltersByJob(t *testing.T) {
	m := startManager(t)

	a, err := m.Connect("job-a", "")
	require.NoError(t, err)
	b, err := m.Connect("job-b", "")
	require.NoError(t, err)
	all, err := m.Connect("", "")
	require.NoError(t, err)
	assert.Equal(t, 3, m.ClientCount())

	m.EmitToJob("job-a", "u1", NewStartEvent(domain.KindImage, 3))

	select {
	case ev := <-a.EventChan:
		assert.Equal(t, EventStart, ev.Type)
		assert.Equal(t, "job-a", ev.JobID)
	case <-time.After(time.Second):
		t.Fatal("job-a subscriber got nothing")
	}
	select {
	case ev := <-all.EventChan:
		assert.Equal(t, "job-a", ev.JobID)
	case <-time.After(time.Second):
		t.Fatal("wildcard subscriber got nothing")
	}
	select {
	case ev := <-b.EventChan:
		t.Fatalf("job-b subscriber got %s", ev.Type)
	case <-time.After(50 * time.Millisecond):
	}

	m.Disconnect(a.ID)
	m.Disconnect(a.ID)
	assert.Equal(t, 2, m.ClientCount())
}

func TestManager_EmitAfterShutdownIsDropped(t *testing.T) {
	m := NewManager(logger.Nop())
	c, err := m.Connect("job", "")
	require.NoError(t, err)

	require.NoError(t, m.Shutdown(context.Background()))
	m.Emit(NewHeartbeatEvent())

	_, open := <-c.EventChan
	assert.False(t, open)
	assert.Zero(t, m.ClientCount())
}

func TestManager_SlowClientKeepsTerminalEvents(t *testing.T) {
	m := NewManager(logger.Nop())
	c, err := m.Connect("job", "")
	require.NoError(t, err)

	progress := NewProgressEvent(domain.KindImage, domain.Progress{Current: 1, Total: 1})
	progress.JobID = "job"
	for range clientBufferSize + 1 {
		m.broadcast(progress)
	}
	assert.Len(t, c.EventChan, clientBufferSize, "overflowing progress is dropped")

	// Make room shortly after the terminal event starts waiting.
	go func() {
		time.Sleep(50 * time.Millisecond)
		<-c.EventChan
	}()
	finished := NewJobFinishedEvent(&domain.Job{ID: "job", Status: domain.JobCompleted})
	m.broadcast(finished)

	var last Event
	for range clientBufferSize {
		last = <-c.EventChan
	}
	assert.Equal(t, EventJobFinished, last.Type)
	assert.True(t, last.Terminal())
	assert.False(t, last.Droppable())
}

type fakeJobs struct {
	jobs map[string]*domain.Job
}

func (f *fakeJobs) GetJob(_ context.Context, id string) (*domain.Job, error) {
	job, ok := f.jobs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return job, nil
}

func jobServer(t *testing.T, m *Manager, jobs *fakeJobs) *httptest.Server {
	t.Helper()
	h := NewHandler(m, jobs, logger.Nop())
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.ServeJob(w, r, strings.TrimPrefix(r.URL.Path, "/jobs/"))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestHandler_UnknownJob(t *testing.T) {
	m := startManager(t)
	srv := jobServer(t, m, &fakeJobs{jobs: map[string]*domain.Job{}})

	resp, err := http.Get(srv.URL + "/jobs/missing")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandler_FinishedJobIsReplayed(t *testing.T) {
	m := startManager(t)
	job := &domain.Job{
		ID:        "job-done",
		UserID:    "u1",
		Status:    domain.JobCompleted,
		Summaries: []*domain.BatchSummary{{Kind: domain.KindImage, Total: 2, Succeeded: 2}},
	}
	srv := jobServer(t, m, &fakeJobs{jobs: map[string]*domain.Job{job.ID: job}})

	resp, err := http.Get(srv.URL + "/jobs/job-done")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	frames := readFrames(t, bufio.NewReader(resp.Body), 10)
	require.Len(t, frames, 2)
	assert.Equal(t, "complete", frames[0].Type)
	assert.Equal(t, "job.finished", frames[1].Type)
	assert.Equal(t, "job-done", frames[1].Data["job_id"])
}

func TestHandler_StreamsLiveJobUntilFinished(t *testing.T) {
	m := startManager(t)
	job := &domain.Job{ID: "job-live", UserID: "u1", Status: domain.JobRunning}
	srv := jobServer(t, m, &fakeJobs{jobs: map[string]*domain.Job{job.ID: job}})

	resp, err := http.Get(srv.URL + "/jobs/job-live")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Eventually(t, func() bool { return m.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	sink := NewJobSink(m, job, domain.KindGenre)
	sink.Start(1)
	sink.Progress(domain.Progress{Current: 1, Total: 1, Label: "Abbey Road - The Beatles"})
	sink.Complete(&domain.BatchSummary{Kind: domain.KindGenre, Total: 1, Succeeded: 1})
	sink.Close()
	// Events for other jobs never reach this stream.
	m.EmitToJob("job-other", "u2", NewStartEvent(domain.KindImage, 9))
	finished := *job
	finished.Status = domain.JobCompleted
	m.Emit(NewJobFinishedEvent(&finished))

	frames := readFrames(t, bufio.NewReader(resp.Body), 10)
	var types []string
	for _, f := range frames {
		if f.Type != "heartbeat" {
			types = append(types, f.Type)
		}
	}
	assert.Equal(t, []string{"start", "progress", "complete", "job.finished"}, types)

	data := frames[1].Data["data"].(map[string]any)
	assert.Equal(t, "genre", data["kind"])
	assert.EqualValues(t, 1, data["current"])

	require.Eventually(t, func() bool { return m.ClientCount() == 0 }, time.Second, 5*time.Millisecond)
}

// flushRecorder is a ResponseRecorder safe to read after the writer
// goroutine finished.
type flushRecorder struct {
	*httptest.ResponseRecorder
	mu sync.Mutex
}

func (r *flushRecorder) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ResponseRecorder.Write(p)
}

func (r *flushRecorder) Flush() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ResponseRecorder.Flush()
}

func TestStreamSink_WritesBatchesInOrder(t *testing.T) {
	rec := &flushRecorder{ResponseRecorder: httptest.NewRecorder()}
	stream, err := NewStreamSink(rec, logger.Nop())
	require.NoError(t, err)

	for _, kind := range []domain.Kind{domain.KindImage, domain.KindGenre} {
		b := stream.Batch(kind)
		b.Start(2)
		b.Progress(domain.Progress{Current: 1, Total: 2})
		b.Progress(domain.Progress{Current: 2, Total: 2})
		b.Complete(&domain.BatchSummary{Kind: kind, Total: 2})
		b.Close()
	}
	stream.Close()
	// Events after Close are ignored.
	stream.Batch(domain.KindImage).Start(1)

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	frames := readFrames(t, bufio.NewReader(strings.NewReader(rec.Body.String())), 100)
	var types []string
	for _, f := range frames {
		types = append(types, f.Type)
	}
	assert.Equal(t, []string{
		"start", "progress", "progress", "complete",
		"start", "progress", "progress", "complete",
	}, types)
	assert.Equal(t, "genre", frames[4].Data["data"].(map[string]any)["kind"])
}

type failingWriter struct {
	*httptest.ResponseRecorder
	writes int
}

func (f *failingWriter) Write(p []byte) (int, error) {
	f.writes++
	return 0, http.ErrHandlerTimeout
}

func TestStreamSink_StopsWritingAfterFailure(t *testing.T) {
	w := &failingWriter{ResponseRecorder: httptest.NewRecorder()}
	stream, err := NewStreamSink(w, logger.Nop())
	require.NoError(t, err)

	b := stream.Batch(domain.KindImage)
	b.Start(3)
	for i := range 3 {
		b.Progress(domain.Progress{Current: i + 1, Total: 3})
	}
	b.Complete(&domain.BatchSummary{Total: 3})

	done := make(chan struct{})
	go func() {
		stream.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Close blocked after a failed write")
	}
	assert.Equal(t, 1, w.writes)
}

func TestStreamSink_FailSendsErrorEvent(t *testing.T) {
	rec := &flushRecorder{ResponseRecorder: httptest.NewRecorder()}
	stream, err := NewStreamSink(rec, logger.Nop())
	require.NoError(t, err)

	stream.Fail("STORAGE_UNAVAILABLE", "load candidates")
	stream.Close()

	frames := readFrames(t, bufio.NewReader(strings.NewReader(rec.Body.String())), 100)
	require.Len(t, frames, 1)
	assert.Equal(t, "error", frames[0].Type)
	data := frames[0].Data["data"].(map[string]any)
	assert.Equal(t, "STORAGE_UNAVAILABLE", data["code"])
	assert.Equal(t, "load candidates", data["message"])
}
