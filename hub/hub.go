// Package hub pushes session state and announcements to dashboard clients
// over WebSocket.
package hub

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/ElectrobladeIsADev/fitnessguide/analytics"
	"github.com/ElectrobladeIsADev/fitnessguide/announce"

	"github.com/coder/websocket"
	log "github.com/sirupsen/logrus"
)

const (
	sendBuffer   = 64
	writeTimeout = 5 * time.Second
)

// Message is the envelope of every frame sent to clients.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
	Text string `json:"text,omitempty"`
}

const (
	TypeState    = "state"
	TypeAnnounce = "announce"
)

type client struct {
	send chan []byte
}

// Hub manages connected WebSocket clients and broadcasts to all of them.
type Hub struct {
	mu       sync.Mutex
	clients  map[*client]struct{}
	snapshot func() *analytics.SessionState
	accept   *websocket.AcceptOptions
}

// New creates a Hub. originPatterns restricts cross-origin dashboards; an
// empty list only allows same-origin clients.
func New(originPatterns ...string) *Hub {
	return &Hub{
		clients: make(map[*client]struct{}),
		accept:  &websocket.AcceptOptions{OriginPatterns: originPatterns},
	}
}

// SetSnapshot sets the state sent to each client when it connects.
func (h *Hub) SetSnapshot(fn func() *analytics.SessionState) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.snapshot = fn
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, exists := h.clients[c]; exists {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Broadcast sends a text message to all connected clients.
func (h *Hub) Broadcast(payload []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
			// Slow client: drop rather than block the analyzer
		}
	}
}

// BroadcastState sends st to all clients. It fits analytics.StateHandler.
func (h *Hub) BroadcastState(st *analytics.SessionState) {
	data, err := json.Marshal(Message{Type: TypeState, Data: st})
	if err != nil {
		log.Errorf("hub: marshal state: %v", err)
		return
	}
	h.Broadcast(data)
}

// Announce implements announce.Sink by forwarding the text to dashboards.
func (h *Hub) Announce(_ context.Context, a announce.Announcement) error {
	data, err := json.Marshal(Message{Type: TypeAnnounce, Text: a.Text})
	if err != nil {
		return err
	}
	h.Broadcast(data)
	return nil
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}

// ServeHTTP upgrades the request and streams messages until the client
// goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, h.accept)
	if err != nil {
		log.Warnf("WS upgrade: %v", err)
		return
	}
	defer conn.CloseNow()

	c := &client{send: make(chan []byte, sendBuffer)}
	h.register(c)
	defer h.unregister(c)
	log.Debugf("WS client connected: %s", r.RemoteAddr)

	// Incoming messages are ignored; reading detects the disconnect.
	ctx := conn.CloseRead(r.Context())

	h.mu.Lock()
	snapshot := h.snapshot
	h.mu.Unlock()
	if snapshot != nil {
		if data, err := json.Marshal(Message{Type: TypeState, Data: snapshot()}); err == nil {
			if err := write(ctx, conn, data); err != nil {
				return
			}
		}
	}

	for {
		select {
		case <-ctx.Done():
			log.Debugf("WS client disconnected: %s", r.RemoteAddr)
			return
		case msg, ok := <-c.send:
			if !ok {
				conn.Close(websocket.StatusGoingAway, "server shutting down")
				return
			}
			if err := write(ctx, conn, msg); err != nil {
				log.Debugf("WS write to %s: %v", r.RemoteAddr, err)
				return
			}
		}
	}
}

func write(ctx context.Context, conn *websocket.Conn, msg []byte) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, msg)
}
