package api

import (
	"bufio"
	"encoding/json/v2"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/enrichd/internal/domain"
)

// readEventTypes reads SSE frames until the stream ends and returns their
// event types.
func readEventTypes(t *testing.T, resp *http.Response) []string {
	t.Helper()
	var types []string
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		if name, ok := strings.CutPrefix(scanner.Text(), "event: "); ok && name != "heartbeat" {
			types = append(types, name)
		}
	}
	return types
}

func TestStream_EmitsBatchEventsThenCloses(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.cleanup()
	ts.seed(t)

	srv := httptest.NewServer(ts.server)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/enrich/stream?user_id=u1&kind=image&target=albums")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	assert.Equal(t, []string{"start", "progress", "complete"}, readEventTypes(t, resp))
}

func TestStream_InvalidRequestIsPlainError(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.cleanup()

	srv := httptest.NewServer(ts.server)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/enrich/stream?user_id=u1&kind=lyrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp2, err := http.Get(srv.URL + "/api/v1/enrich/stream?user_id=u1&kind=image&force=maybe")
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp2.StatusCode)
}

func TestJobEvents_ReplaysFinishedJob(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.cleanup()
	ts.seed(t)

	job := startAndWait(t, ts)

	srv := httptest.NewServer(ts.server)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/enrich/jobs/" + job + "/events")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"complete", "job.finished"}, readEventTypes(t, resp))
}

func TestWebSocket_ReplaysFinishedJob(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.cleanup()
	ts.seed(t)

	job := startAndWait(t, ts)

	srv := httptest.NewServer(ts.server)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?job_id=" + job
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var types []string
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), err)
			break
		}
		var ev struct {
			Type  string `json:"type"`
			JobID string `json:"job_id"`
		}
		require.NoError(t, json.Unmarshal(data, &ev))
		assert.Equal(t, job, ev.JobID)
		types = append(types, ev.Type)
	}
	assert.Equal(t, []string{"complete", "job.finished"}, types)
}

func TestWebSocket_RequiresKnownJob(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.cleanup()

	srv := httptest.NewServer(ts.server)
	defer srv.Close()

	base := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	_, resp, err := websocket.DefaultDialer.Dial(base, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	_, resp, err = websocket.DefaultDialer.Dial(base+"?job_id=job-missing", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// startAndWait starts an image job for u1's albums and waits for it to finish.
func startAndWait(t *testing.T, ts *testServer) string {
	t.Helper()

	resp := ts.api.Post("/api/v1/enrich/jobs", map[string]any{
		"user_id": "u1", "kind": "image", "target": "albums",
	})
	require.Equal(t, http.StatusAccepted, resp.Code, resp.Body.String())
	jobID := decodeEnvelope[StartJobResponse](t, resp.Body.Bytes()).Data.JobID

	require.Eventually(t, func() bool {
		resp := ts.api.Get("/api/v1/enrich/jobs/" + jobID)
		if resp.Code != http.StatusOK {
			return false
		}
		job := decodeEnvelope[domain.Job](t, resp.Body.Bytes()).Data
		return job.Done()
	}, 5*time.Second, 20*time.Millisecond)
	return jobID
}
