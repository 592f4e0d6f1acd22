package sse

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/listenupapp/enrichd/internal/id"
)

const (
	managerQueueSize  = 1000
	clientBufferSize  = 100
	heartbeatInterval = 30 * time.Second

	// deliveryTimeout bounds how long a non-droppable event waits for room
	// in a slow client's buffer.
	deliveryTimeout = 2 * time.Second
)

// Client is one subscriber to job events.
type Client struct {
	ConnectedAt time.Time
	EventChan   chan Event
	Done        chan struct{}
	ID          string

	// Empty means "receive all".
	JobID  string
	UserID string
}

func (c *Client) wants(event Event) bool {
	if event.JobID != "" && c.JobID != "" && event.JobID != c.JobID {
		return false
	}
	if event.UserID != "" && c.UserID != "" && event.UserID != c.UserID {
		return false
	}
	return true
}

// Manager fans job events out to subscribed clients. Events are queued by
// Emit and delivered by the loop run in Start.
type Manager struct {
	clients map[string]*Client
	events  chan Event
	logger  *slog.Logger
	wg      sync.WaitGroup
	mu      sync.RWMutex

	heartbeatInterval time.Duration

	// Held for reading while sending on events so Shutdown can close it.
	shutdownMu sync.RWMutex
	shutdown   bool
}

// NewManager creates a new SSE Manager.
func NewManager(logger *slog.Logger) *Manager {
	return &Manager{
		clients:           make(map[string]*Client),
		events:            make(chan Event, managerQueueSize),
		logger:            logger,
		heartbeatInterval: heartbeatInterval,
	}
}

// Start runs the delivery loop until ctx is done or Shutdown drains the
// queue. Call it once, in its own goroutine.
func (m *Manager) Start(ctx context.Context) {
	m.wg.Add(1)
	defer m.wg.Done()

	m.logger.Info("SSE manager starting")

	heartbeat := time.NewTicker(m.heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case event, ok := <-m.events:
			if !ok {
				return
			}
			m.broadcast(event)

		case <-heartbeat.C:
			m.broadcast(NewHeartbeatEvent())

		case <-ctx.Done():
			m.logger.Info("SSE manager stopping")
			m.closeAllClients()
			return
		}
	}
}

// Shutdown stops accepting events, delivers what is queued, and closes all
// clients. Queued events still undelivered when ctx expires are lost.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.shutdownMu.Lock()
	if m.shutdown {
		m.shutdownMu.Unlock()
		return nil
	}
	m.shutdown = true
	close(m.events)
	m.shutdownMu.Unlock()

	done := make(chan struct{})
	go func() {
		for event := range m.events {
			m.broadcast(event)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		m.logger.Warn("SSE event drain timeout, some events may be lost")
	}

	m.wg.Wait()
	m.closeAllClients()

	m.logger.Info("SSE manager shutdown complete")
	return nil
}

// broadcast delivers event to every client that wants it. Droppable events
// skip clients whose buffer is full; others wait up to deliveryTimeout.
func (m *Manager) broadcast(event Event) {
	var delivered, dropped, filtered int

	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, client := range m.clients {
		if !client.wants(event) {
			filtered++
			continue
		}
		if deliver(client, event) {
			delivered++
			continue
		}
		dropped++
		m.logger.Warn("dropped event for slow client",
			slog.String("client_id", client.ID),
			slog.String("event_type", string(event.Type)))
	}

	if event.Type != EventHeartbeat {
		m.logger.Debug("event broadcast",
			slog.String("event_type", string(event.Type)),
			slog.String("job_id", event.JobID),
			slog.Group("stats",
				slog.Int("delivered", delivered),
				slog.Int("filtered", filtered),
				slog.Int("dropped", dropped)))
	}
}

func deliver(client *Client, event Event) bool {
	select {
	case client.EventChan <- event:
		return true
	default:
	}
	if event.Droppable() {
		return false
	}

	timer := time.NewTimer(deliveryTimeout)
	defer timer.Stop()
	select {
	case client.EventChan <- event:
		return true
	case <-timer.C:
		return false
	}
}

// Connect registers a new client subscribed to one job's events. An empty
// jobID subscribes to every job of userID; an empty userID to every user.
func (m *Manager) Connect(jobID, userID string) (*Client, error) {
	clientID, err := id.Generate(id.Client)
	if err != nil {
		return nil, err
	}

	client := &Client{
		ID:          clientID,
		JobID:       jobID,
		UserID:      userID,
		EventChan:   make(chan Event, clientBufferSize),
		Done:        make(chan struct{}),
		ConnectedAt: time.Now(),
	}

	m.mu.Lock()
	m.clients[client.ID] = client
	total := len(m.clients)
	m.mu.Unlock()

	m.logger.Info("SSE client connected",
		slog.String("client_id", clientID),
		slog.String("job_id", jobID),
		slog.Int("total_clients", total))
	return client, nil
}

// Disconnect removes a client and closes its channels. Unknown ids are
// ignored, so it is safe to call after shutdown.
func (m *Manager) Disconnect(clientID string) {
	m.mu.Lock()
	client, ok := m.clients[clientID]
	if !ok {
		m.mu.Unlock()
		return
	}
	delete(m.clients, clientID)
	total := len(m.clients)
	m.mu.Unlock()

	close(client.Done)
	close(client.EventChan)

	m.logger.Info("SSE client disconnected",
		slog.String("client_id", clientID),
		slog.Duration("duration", time.Since(client.ConnectedAt)),
		slog.Int("total_clients", total))
}

// Emit queues an event for delivery. It is a no-op after Shutdown. When the
// queue is full a droppable event is discarded; any other waits up to
// deliveryTimeout.
func (m *Manager) Emit(event Event) {
	m.shutdownMu.RLock()
	defer m.shutdownMu.RUnlock()

	if m.shutdown {
		return
	}

	select {
	case m.events <- event:
		return
	default:
	}

	if !event.Droppable() {
		timer := time.NewTimer(deliveryTimeout)
		defer timer.Stop()
		select {
		case m.events <- event:
			return
		case <-timer.C:
		}
	}
	m.logger.Error("SSE event queue full, dropping event",
		slog.String("event_type", string(event.Type)),
		slog.String("job_id", event.JobID))
}

// EmitToJob queues an event for the subscribers of one job.
func (m *Manager) EmitToJob(jobID, userID string, event Event) {
	event.JobID = jobID
	event.UserID = userID
	m.Emit(event)
}

// ClientCount returns the number of connected clients.
func (m *Manager) ClientCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}

func (m *Manager) closeAllClients() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, client := range m.clients {
		close(client.Done)
		close(client.EventChan)
	}
	clear(m.clients)
}
