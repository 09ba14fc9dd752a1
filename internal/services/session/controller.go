// Package session implements the game session state machine.
package session

import (
	"context"
	"errors"
	"log/slog"

	"github.com/mcoot/makeitmeme/internal/dependencies/clock"
	"github.com/mcoot/makeitmeme/internal/model"
	"github.com/mcoot/makeitmeme/internal/services/distribution"
	"github.com/mcoot/makeitmeme/internal/services/registry"
	"github.com/mcoot/makeitmeme/internal/services/submission"
	"github.com/mcoot/makeitmeme/internal/services/voting"
	"github.com/mcoot/makeitmeme/internal/storage"
)

// Notifier delivers session events to interested clients. Delivery is best
// effort; clients treat events as a prompt to refetch state.
type Notifier interface {
	Publish(ctx context.Context, event model.Event)
}

// TemplateSource provides the templates that can be distributed
type TemplateSource interface {
	ActiveTemplates(ctx context.Context) ([]model.Template, error)
}

// Controller owns every session mutation. Each operation runs inside the
// registry's exclusive section for the session, and events are published
// after the section is left.
type Controller struct {
	storage     storage.Storage
	registry    *registry.Registry
	templates   TemplateSource
	distributor *distribution.Distributor
	tracker     *submission.Tracker
	tally       *voting.Tally
	notifier    Notifier
	clock       clock.Clock
	rules       model.SessionConfig
	logger      *slog.Logger
}

// NewController creates a new session Controller. Sessions created by it use rules.
func NewController(
	storage storage.Storage,
	registry *registry.Registry,
	templates TemplateSource,
	distributor *distribution.Distributor,
	tracker *submission.Tracker,
	tally *voting.Tally,
	notifier Notifier,
	clock clock.Clock,
	rules model.SessionConfig,
	logger *slog.Logger,
) *Controller {
	return &Controller{
		storage:     storage,
		registry:    registry,
		templates:   templates,
		distributor: distributor,
		tracker:     tracker,
		tally:       tally,
		notifier:    notifier,
		clock:       clock,
		rules:       rules,
		logger:      logger.With(slog.String("component", "session")),
	}
}

// Rules returns the configuration applied to new sessions
func (c *Controller) Rules() model.SessionConfig {
	return c.rules
}

// outbox collects events raised while a session is locked
type outbox struct {
	events []model.Event
}

func (o *outbox) add(e model.Event) {
	o.events = append(o.events, e)
}

// mutate loads the session inside its exclusive section (plus any extra
// keys) and runs fn. Raised events are published once the section is left,
// including when fn fails after persisting a transition.
func (c *Controller) mutate(
	ctx context.Context,
	code model.SessionCode,
	extraKeys []string,
	fn func(session *model.Session, out *outbox) error,
) error {
	if !code.Valid() {
		return model.ErrInvalidCode
	}

	out := &outbox{}
	err := func() error {
		unlock := c.registry.Lock(append([]string{registry.SessionKey(code)}, extraKeys...)...)
		defer unlock()

		session, err := c.storage.GetSession(ctx, code)
		if err != nil {
			return err
		}
		return fn(session, out)
	}()

	for _, e := range out.events {
		c.notifier.Publish(ctx, e)
	}
	return err
}

func (c *Controller) event(t model.EventType, session *model.Session, playerID model.PlayerID, payload any) model.Event {
	return model.Event{
		Type:        t,
		SessionCode: session.Code,
		Round:       session.CurrentRound,
		PlayerID:    playerID,
		Timestamp:   c.clock.Now(),
		Payload:     payload,
	}
}

// save persists fn's writes, logging failures with the session's context
func (c *Controller) save(ctx context.Context, session *model.Session, action string, fn func(tx storage.Tx)) error {
	err := c.storage.Update(ctx, func(tx storage.Tx) error {
		fn(tx)
		return nil
	})
	if err != nil {
		c.logger.Error("failed to persist session",
			slog.String("session_code", string(session.Code)),
			slog.String("action", action),
			slog.String("error", err.Error()),
		)
		return err
	}
	return nil
}

// activeSessionOf returns the code of the active session the player
// occupies. References to sessions that ended or vanished are ignored.
func (c *Controller) activeSessionOf(ctx context.Context, player *model.Player) (model.SessionCode, error) {
	if !player.InSession() {
		return "", nil
	}
	session, err := c.storage.GetSession(ctx, player.SessionCode)
	if errors.Is(err, model.ErrSessionNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if !session.IsActive() {
		return "", nil
	}
	return session.Code, nil
}

// releasedPlayers returns the members whose reference points at the
// session, with the reference cleared, ready to be saved
func (c *Controller) releasedPlayers(ctx context.Context, session *model.Session) ([]*model.Player, error) {
	var released []*model.Player
	for _, id := range session.PlayerIDs {
		player, err := c.storage.GetPlayer(ctx, id)
		if errors.Is(err, model.ErrPlayerNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if player.SessionCode == session.Code {
			player.SessionCode = ""
			released = append(released, player)
		}
	}
	return released, nil
}
