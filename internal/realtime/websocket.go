package realtime

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mcoot/makeitmeme/internal/model"
)

// WSConfig holds configuration for websocket connections
type WSConfig struct {
	WriteTimeout   time.Duration
	PongTimeout    time.Duration
	PingInterval   time.Duration
	MaxMessageSize int64
	CheckOrigin    func(r *http.Request) bool
}

// DefaultWSConfig returns default websocket configuration
func DefaultWSConfig() WSConfig {
	return WSConfig{
		WriteTimeout:   10 * time.Second,
		PongTimeout:    60 * time.Second,
		PingInterval:   30 * time.Second,
		MaxMessageSize: 512,
	}
}

// WSServer upgrades requests to websockets carrying a session's events.
// Clients only listen; anything they send is discarded.
type WSServer struct {
	manager  *Manager
	upgrader websocket.Upgrader
	config   WSConfig
	logger   *slog.Logger
}

// NewWSServer creates a websocket server over the manager's hubs
func NewWSServer(manager *Manager, config WSConfig, logger *slog.Logger) *WSServer {
	return &WSServer{
		manager: manager,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     config.CheckOrigin,
		},
		config: config,
		logger: logger.With(slog.String("component", "websocket")),
	}
}

// Serve upgrades the connection and pumps events until either side closes
func (s *WSServer) Serve(w http.ResponseWriter, r *http.Request, code model.SessionCode, playerID model.PlayerID) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an error response
		s.logger.Warn("websocket upgrade failed",
			slog.String("session_code", string(code)),
			slog.String("error", err.Error()))
		return
	}

	hub, client := s.manager.Subscribe(code, playerID)
	closed := make(chan struct{})
	go s.readPump(conn, closed)
	s.writePump(conn, client, closed)

	hub.Unregister(client)
	_ = conn.Close()
}

// writePump delivers hub messages and keepalive pings. It returns when the
// client channel closes, a write fails or the read side has gone away.
func (s *WSServer) writePump(conn *websocket.Conn, client *Client, closed <-chan struct{}) {
	ticker := time.NewTicker(s.config.PingInterval)
	defer ticker.Stop()

	_ = conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"connected"}`)); err != nil {
		return
	}

	for {
		select {
		case message, ok := <-client.Messages():
			_ = conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, message.Data); err != nil {
				return
			}

		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-closed:
			return
		}
	}
}

// readPump keeps the read deadline fresh on pongs and signals when the peer goes away
func (s *WSServer) readPump(conn *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)

	conn.SetReadLimit(s.config.MaxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(s.config.PongTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(s.config.PongTimeout))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				s.logger.Debug("websocket closed unexpectedly", slog.String("error", err.Error()))
			}
			return
		}
	}
}
