package realtime

import (
	"log/slog"
	"sync"

	"github.com/mcoot/makeitmeme/internal/model"
)

// Manager manages hubs for all sessions
type Manager struct {
	hubs   map[model.SessionCode]*Hub
	mu     sync.RWMutex
	logger *slog.Logger
}

// NewManager creates a new Manager
func NewManager(logger *slog.Logger) *Manager {
	return &Manager{
		hubs:   make(map[model.SessionCode]*Hub),
		logger: logger.With(slog.String("component", "realtime")),
	}
}

// GetOrCreateHub returns the hub for a session, creating one if it doesn't exist
func (m *Manager) GetOrCreateHub(code model.SessionCode) *Hub {
	m.mu.Lock()
	defer m.mu.Unlock()

	if hub, ok := m.hubs[code]; ok {
		return hub
	}

	hub := NewHub(code, m.logger)
	m.hubs[code] = hub
	go hub.Run()
	return hub
}

// GetHub returns the hub for a session, or nil if it doesn't exist
func (m *Manager) GetHub(code model.SessionCode) *Hub {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.hubs[code]
}

// Subscribe registers a new client for the session's events. A hub removed
// by cleanup while subscribing is replaced.
func (m *Manager) Subscribe(code model.SessionCode, playerID model.PlayerID) (*Hub, *Client) {
	client := NewClient(playerID)
	for {
		hub := m.GetOrCreateHub(code)
		if hub.Register(client) {
			return hub, client
		}
		m.forget(code, hub)
	}
}

// Deliver broadcasts a message to the session's hub, if anyone is listening
func (m *Manager) Deliver(message Message) {
	if hub := m.GetHub(message.SessionCode); hub != nil {
		hub.Broadcast(message)
	}
}

// RemoveHub removes and closes a hub
func (m *Manager) RemoveHub(code model.SessionCode) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if hub, ok := m.hubs[code]; ok {
		hub.Close()
		delete(m.hubs, code)
		m.logger.Info("hub removed", slog.String("session_code", string(code)))
	}
}

// CleanupEmptyHubs removes hubs with no clients and returns how many went
func (m *Manager) CleanupEmptyHubs() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for code, hub := range m.hubs {
		if hub.ClientCount() == 0 {
			hub.Close()
			delete(m.hubs, code)
			removed++
		}
	}
	if removed > 0 {
		m.logger.Debug("empty hubs cleaned up", slog.Int("removed", removed))
	}
	return removed
}

// HubCount returns the number of live hubs
func (m *Manager) HubCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.hubs)
}

// forget drops a closed hub unless it has already been replaced
func (m *Manager) forget(code model.SessionCode, hub *Hub) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.hubs[code] == hub {
		delete(m.hubs, code)
	}
}
