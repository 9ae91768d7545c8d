// Package replaynotify is an optional push transport that streams replay
// queue terminal-state transitions to connected WebSocket clients: a
// registered-clients map guarded by a mutex, fed by a broadcast call
// instead of a polling ticker since replay transitions already happen at a
// known call site (internal/replay.Queue.Transition's caller).
package replaynotify

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/forrst/forrst/internal/replay"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub tracks connected WebSocket clients and fans replay terminal-state
// notifications out to all of them.
type Hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]bool
	log     *slog.Logger
}

// NewHub constructs an empty Hub.
func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{clients: make(map[*websocket.Conn]bool), log: log}
}

// notification is the wire shape pushed to subscribers on a terminal
// replay-record transition.
type notification struct {
	ReplayID string `json:"replay_id"`
	Status   string `json:"status"`
}

// Notify pushes rec's terminal state to every connected client, dropping
// (and unregistering) any client whose write fails. Non-terminal states are
// not pushed; subscribers only care about a record's final outcome.
func (h *Hub) Notify(rec replay.Record) {
	if !rec.Status.Terminal() {
		return
	}
	msg, err := json.Marshal(notification{ReplayID: rec.ReplayID, Status: string(rec.Status)})
	if err != nil {
		h.log.Warn("failed to marshal replay notification", "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.log.Warn("dropping replay notification client", "error", err)
			conn.Close()
			delete(h.clients, conn)
		}
	}
}

// ServeHTTP upgrades the connection and registers it as a subscriber until
// the client disconnects: register, block reading until error, then
// unregister.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("failed to upgrade replay notification connection", "error", err)
		return
	}

	h.mu.Lock()
	h.clients[conn] = true
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
		conn.Close()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// ClientCount returns the number of currently connected subscribers, for
// tests and health reporting.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
