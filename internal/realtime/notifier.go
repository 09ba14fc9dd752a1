package realtime

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/mcoot/makeitmeme/internal/model"
)

// HubNotifier delivers session events to clients connected to this instance
type HubNotifier struct {
	manager *Manager
	logger  *slog.Logger
}

// NewHubNotifier creates a notifier over the manager's hubs
func NewHubNotifier(manager *Manager, logger *slog.Logger) *HubNotifier {
	return &HubNotifier{
		manager: manager,
		logger:  logger.With(slog.String("component", "realtime")),
	}
}

// Publish implements session.Notifier
func (n *HubNotifier) Publish(ctx context.Context, event model.Event) {
	message, err := Encode(event)
	if err != nil {
		n.logger.Error("failed to encode event",
			slog.String("session_code", string(event.SessionCode)),
			slog.String("error", err.Error()))
		return
	}
	n.manager.Deliver(message)
}

// Publisher is the part of a NATS connection used to publish events
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Subscriber is the part of a NATS connection used to receive events
type Subscriber interface {
	Subscribe(subject string, cb nats.MsgHandler) (*nats.Subscription, error)
}

// Subject returns the NATS subject carrying a session's events
func Subject(prefix string, code model.SessionCode) string {
	return prefix + ".session." + string(code)
}

// NATSNotifier publishes session events to NATS so every instance can
// deliver them to its own clients through a Relay
type NATSNotifier struct {
	conn   Publisher
	prefix string
	logger *slog.Logger
}

// NewNATSNotifier creates a notifier publishing under the subject prefix
func NewNATSNotifier(conn Publisher, prefix string, logger *slog.Logger) *NATSNotifier {
	return &NATSNotifier{
		conn:   conn,
		prefix: prefix,
		logger: logger.With(slog.String("component", "nats")),
	}
}

// Publish implements session.Notifier
func (n *NATSNotifier) Publish(ctx context.Context, event model.Event) {
	message, err := Encode(event)
	if err != nil {
		n.logger.Error("failed to encode event",
			slog.String("session_code", string(event.SessionCode)),
			slog.String("error", err.Error()))
		return
	}
	if err := n.conn.Publish(Subject(n.prefix, event.SessionCode), message.Data); err != nil {
		n.logger.Error("failed to publish event",
			slog.String("session_code", string(event.SessionCode)),
			slog.String("event", message.Type),
			slog.String("error", err.Error()))
	}
}

// Relay feeds events published by any instance into the local hubs
type Relay struct {
	conn    Subscriber
	prefix  string
	manager *Manager
	logger  *slog.Logger
}

// NewRelay creates a relay for events under the subject prefix
func NewRelay(conn Subscriber, prefix string, manager *Manager, logger *slog.Logger) *Relay {
	return &Relay{
		conn:    conn,
		prefix:  prefix,
		manager: manager,
		logger:  logger.With(slog.String("component", "nats")),
	}
}

// Start subscribes to every session's subject. Unsubscribe the returned
// subscription to stop relaying.
func (r *Relay) Start() (*nats.Subscription, error) {
	sub, err := r.conn.Subscribe(r.prefix+".session.*", r.handle)
	if err != nil {
		return nil, fmt.Errorf("subscribe to session events: %w", err)
	}
	return sub, nil
}

func (r *Relay) handle(msg *nats.Msg) {
	message, err := Decode(msg.Data)
	if err != nil {
		r.logger.Warn("dropping malformed event",
			slog.String("subject", msg.Subject),
			slog.String("error", err.Error()))
		return
	}
	r.manager.Deliver(message)
}

// DialNATS connects to a NATS server, reconnecting indefinitely
func DialNATS(url string, logger *slog.Logger) (*nats.Conn, error) {
	logger = logger.With(slog.String("component", "nats"))
	opts := []nats.Option{
		nats.Name("makeitmeme"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				logger.Error("nats disconnected", slog.String("error", err.Error()))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", slog.String("url", nc.ConnectedUrl()))
		}),
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	return nc, nil
}
