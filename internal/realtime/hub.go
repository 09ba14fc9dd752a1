package realtime

import (
	"log/slog"
	"sync"
	"time"

	"github.com/mcoot/makeitmeme/internal/model"
)

// sendBufferSize is the number of messages queued per client before drops
const sendBufferSize = 64

// Client is one connected subscriber of a session's events
type Client struct {
	playerID    model.PlayerID
	send        chan Message
	connectedAt time.Time
}

// NewClient creates a client for the given player
func NewClient(playerID model.PlayerID) *Client {
	return &Client{
		playerID:    playerID,
		send:        make(chan Message, sendBufferSize),
		connectedAt: time.Now(),
	}
}

// Messages returns the client's delivery channel. It is closed when the
// client is unregistered or the hub shuts down.
func (c *Client) Messages() <-chan Message {
	return c.send
}

// Hub fans out events to the clients subscribed to a single session.
// Membership changes apply immediately; broadcasts are delivered by Run.
type Hub struct {
	code    model.SessionCode
	clients map[*Client]bool
	closed  bool
	mu      sync.RWMutex
	logger  *slog.Logger

	broadcast chan Message
	done      chan struct{}
	closeOnce sync.Once
}

// NewHub creates a new Hub for a session
func NewHub(code model.SessionCode, logger *slog.Logger) *Hub {
	return &Hub{
		code:      code,
		clients:   make(map[*Client]bool),
		logger:    logger.With(slog.String("session_code", string(code))),
		broadcast: make(chan Message, 256),
		done:      make(chan struct{}),
	}
}

// Run delivers broadcasts until the hub is closed
func (h *Hub) Run() {
	h.logger.Debug("hub started")
	for {
		select {
		case message := <-h.broadcast:
			h.mu.RLock()
			dropped := 0
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					dropped++
				}
			}
			sent := len(h.clients) - dropped
			h.mu.RUnlock()
			if dropped > 0 {
				h.logger.Warn("broadcast partially dropped, client buffers full",
					slog.String("event", message.Type),
					slog.Int("sent", sent),
					slog.Int("dropped", dropped))
			}

		case <-h.done:
			h.logger.Debug("hub stopped")
			return
		}
	}
}

// Register adds a client to the hub. Returns false if the hub has shut down.
func (h *Hub) Register(client *Client) bool {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return false
	}
	h.clients[client] = true
	clientCount := len(h.clients)
	h.mu.Unlock()

	h.logger.Info("client registered",
		slog.String("player_id", string(client.playerID)),
		slog.Int("total_clients", clientCount))
	return true
}

// Unregister removes a client from the hub and closes its channel
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, client)
	close(client.send)
	clientCount := len(h.clients)
	h.mu.Unlock()

	h.logger.Info("client unregistered",
		slog.String("player_id", string(client.playerID)),
		slog.Duration("connection_duration", time.Since(client.connectedAt)),
		slog.Int("total_clients", clientCount))
}

// Broadcast queues a message for every client. Messages are dropped when
// the hub is backed up; clients recover on their next snapshot fetch.
func (h *Hub) Broadcast(message Message) {
	select {
	case h.broadcast <- message:
	default:
		h.logger.Warn("broadcast dropped, hub buffer full", slog.String("event", message.Type))
	}
}

// Close shuts down the hub, disconnecting every client
func (h *Hub) Close() {
	h.closeOnce.Do(func() {
		h.mu.Lock()
		h.closed = true
		clientCount := len(h.clients)
		for client := range h.clients {
			close(client.send)
			delete(h.clients, client)
		}
		h.mu.Unlock()
		close(h.done)
		h.logger.Debug("hub closed", slog.Int("disconnected_clients", clientCount))
	})
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
