package reload

import (
	"bufio"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	ferrors "git.home.luguber.info/inful/assetflow/internal/foundation/errors"
	"git.home.luguber.info/inful/assetflow/internal/metrics"
)

const defaultHeartbeat = 30 * time.Second

// Hub manages server-sent-event clients for reload broadcasts.
type Hub struct {
	mu        sync.RWMutex
	nextID    int
	clients   map[int]*hubClient
	closed    bool
	recorder  metrics.Recorder
	heartbeat time.Duration
}

type hubClient struct {
	id   int
	ch   chan []byte
	done chan struct{}
}

// NewHub returns a hub. A nil recorder disables client gauges.
func NewHub(rec metrics.Recorder) *Hub {
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}
	return &Hub{clients: map[int]*hubClient{}, recorder: rec, heartbeat: defaultHeartbeat}
}

// Name implements Sink.
func (h *Hub) Name() string { return "sse" }

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP implements the SSE endpoint at /livereload.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	closed := h.closed
	h.mu.RUnlock()
	if closed {
		http.Error(w, "livereload shutting down", http.StatusServiceUnavailable)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "stream unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	client := &hubClient{ch: make(chan []byte, 8), done: make(chan struct{})}
	h.mu.Lock()
	client.id = h.nextID
	h.nextID++
	h.clients[client.id] = client
	count := len(h.clients)
	h.mu.Unlock()
	h.recorder.SetReloadClients(count)
	defer h.removeClient(client.id)

	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(": connected\n\n"); err != nil {
		slog.Debug("livereload write", "error", err)
		return
	}
	if err := bw.Flush(); err != nil {
		return
	}
	flusher.Flush()

	hb := time.NewTicker(h.heartbeat)
	defer hb.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-client.done:
			return
		case <-hb.C:
			if _, err := bw.WriteString(": ping\n\n"); err != nil {
				slog.Debug("livereload ping write", "error", err)
				return
			}
			if err := bw.Flush(); err != nil {
				return
			}
			flusher.Flush()
		case payload := <-client.ch:
			if _, err := bw.WriteString("data: " + string(payload) + "\n\n"); err != nil {
				slog.Debug("livereload broadcast write", "error", err)
				return
			}
			if err := bw.Flush(); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func (h *Hub) removeClient(id int) {
	h.mu.Lock()
	c, ok := h.clients[id]
	if ok {
		delete(h.clients, id)
		close(c.done)
	}
	count := len(h.clients)
	h.mu.Unlock()
	if ok {
		h.recorder.SetReloadClients(count)
	}
}

// Send implements Sink by broadcasting the signal to every connected client.
func (h *Hub) Send(_ context.Context, sig Signal) error {
	payload, err := json.Marshal(sig)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryReload, "encode reload signal").Build()
	}
	if !h.Broadcast(payload) {
		return ferrors.ReloadError("livereload hub is shut down").Build()
	}
	return nil
}

// Broadcast queues a payload for every client. Clients whose queue is full are
// dropped; the browser script reconnects on its own. It reports false once the
// hub is shut down.
func (h *Hub) Broadcast(payload []byte) bool {
	h.mu.RLock()
	if h.closed {
		h.mu.RUnlock()
		return false
	}
	snapshot := make([]*hubClient, 0, len(h.clients))
	for _, c := range h.clients {
		snapshot = append(snapshot, c)
	}
	h.mu.RUnlock()

	dropped := 0
	for _, c := range snapshot {
		select {
		case c.ch <- payload:
		case <-c.done:
		default:
			dropped++
			h.removeClient(c.id)
		}
	}
	slog.Debug("livereload broadcast", "clients", len(snapshot), "dropped", dropped)
	return true
}

// Shutdown closes all clients and prevents future broadcasts.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	clients := h.clients
	h.clients = map[int]*hubClient{}
	h.mu.Unlock()
	for _, c := range clients {
		close(c.done)
	}
	h.recorder.SetReloadClients(0)
}
