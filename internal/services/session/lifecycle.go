package session

import (
	"context"
	"log/slog"

	"github.com/mcoot/makeitmeme/internal/model"
	"github.com/mcoot/makeitmeme/internal/services/registry"
	"github.com/mcoot/makeitmeme/internal/storage"
)

// CreateSession creates a waiting session with the creator as its first player
func (c *Controller) CreateSession(ctx context.Context, creatorID model.PlayerID) (*model.Session, error) {
	unlock := c.registry.Lock(registry.PlayerKey(creatorID))
	defer unlock()

	creator, err := c.storage.GetPlayer(ctx, creatorID)
	if err != nil {
		return nil, err
	}
	busy, err := c.activeSessionOf(ctx, creator)
	if err != nil {
		return nil, err
	}
	if busy != "" {
		return nil, model.ErrAlreadyInSession
	}

	var session *model.Session
	_, err = c.registry.Reserve(ctx, func(code model.SessionCode) error {
		now := c.clock.Now()
		session = &model.Session{
			Code:      code,
			Status:    model.SessionWaiting,
			CreatorID: creatorID,
			PlayerIDs: []model.PlayerID{creatorID},
			Config:    c.rules,
			CreatedAt: now,
			UpdatedAt: now,
		}
		creator.SessionCode = code
		return c.save(ctx, session, "create", func(tx storage.Tx) {
			tx.SaveSession(session)
			tx.SavePlayer(creator)
		})
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info("session created",
		slog.String("session_code", string(session.Code)),
		slog.String("player_id", string(creatorID)),
	)
	return session, nil
}

// JoinSession adds a player to a waiting session. Joining a session the
// player is already in succeeds without change.
func (c *Controller) JoinSession(ctx context.Context, code model.SessionCode, playerID model.PlayerID) (*model.Session, error) {
	var joined *model.Session
	err := c.mutate(ctx, code, []string{registry.PlayerKey(playerID)}, func(session *model.Session, out *outbox) error {
		player, err := c.storage.GetPlayer(ctx, playerID)
		if err != nil {
			return err
		}
		if session.HasPlayer(playerID) {
			joined = session
			return nil
		}
		if session.Status != model.SessionWaiting {
			return model.ErrSessionNotWaiting
		}
		busy, err := c.activeSessionOf(ctx, player)
		if err != nil {
			return err
		}
		if busy != "" {
			return model.ErrAlreadyInSession
		}
		if len(session.PlayerIDs) >= session.Config.MaxPlayers {
			return model.ErrSessionFull
		}

		session.PlayerIDs = append(session.PlayerIDs, playerID)
		session.UpdatedAt = c.clock.Now()
		player.SessionCode = code
		if err := c.save(ctx, session, "join", func(tx storage.Tx) {
			tx.SaveSession(session)
			tx.SavePlayer(player)
		}); err != nil {
			return err
		}

		c.logger.Info("player joined session",
			slog.String("session_code", string(code)),
			slog.String("player_id", string(playerID)),
			slog.Int("player_count", len(session.PlayerIDs)),
		)
		out.add(c.event(model.EventUpdate, session, playerID, model.UpdatePayload{Reason: model.ReasonPlayerJoined}))
		joined = session
		return nil
	})
	return joined, err
}

// LeaveSession removes a player. While waiting the player is dropped (the
// creator role passes on, and an emptied session is destroyed); after the
// session finishes the departure is recorded, completing the session once
// everyone has left. Players cannot leave a session in progress.
func (c *Controller) LeaveSession(ctx context.Context, code model.SessionCode, playerID model.PlayerID) error {
	return c.mutate(ctx, code, []string{registry.PlayerKey(playerID)}, func(session *model.Session, out *outbox) error {
		if !session.HasPlayer(playerID) {
			return model.ErrNotInSession
		}

		switch session.Status {
		case model.SessionWaiting:
			return c.leaveWaiting(ctx, session, playerID, out)
		case model.SessionFinished, model.SessionCompleted:
			return c.depart(ctx, session, playerID, out)
		default:
			return model.ErrPlayerBusy
		}
	})
}

func (c *Controller) leaveWaiting(ctx context.Context, session *model.Session, playerID model.PlayerID, out *outbox) error {
	player, err := c.storage.GetPlayer(ctx, playerID)
	if err != nil {
		return err
	}
	session.RemovePlayer(playerID)
	session.UpdatedAt = c.clock.Now()
	if player.SessionCode == session.Code {
		player.SessionCode = ""
	}

	empty := len(session.PlayerIDs) == 0
	if err := c.save(ctx, session, "leave", func(tx storage.Tx) {
		if empty {
			tx.DeleteSession(session.Code)
		} else {
			tx.SaveSession(session)
		}
		tx.SavePlayer(player)
	}); err != nil {
		return err
	}

	c.logger.Info("player left session",
		slog.String("session_code", string(session.Code)),
		slog.String("player_id", string(playerID)),
		slog.Int("player_count", len(session.PlayerIDs)),
	)
	if empty {
		session.Status = model.SessionCancelled
		out.add(c.event(model.EventSessionCancelled, session, playerID, nil))
		return nil
	}
	out.add(c.event(model.EventUpdate, session, playerID, model.UpdatePayload{Reason: model.ReasonPlayerLeft}))
	return nil
}

func (c *Controller) depart(ctx context.Context, session *model.Session, playerID model.PlayerID, out *outbox) error {
	if session.Status == model.SessionCompleted {
		return nil
	}
	if session.MarkDeparted(playerID) {
		session.Status = model.SessionCompleted
	}
	session.UpdatedAt = c.clock.Now()
	if err := c.save(ctx, session, "depart", func(tx storage.Tx) {
		tx.SaveSession(session)
	}); err != nil {
		return err
	}

	if session.Status == model.SessionCompleted {
		c.logger.Info("session completed",
			slog.String("session_code", string(session.Code)),
		)
	}
	out.add(c.event(model.EventUpdate, session, playerID, model.UpdatePayload{Reason: model.ReasonPlayerLeft}))
	return nil
}

// ArchiveSession marks a finished session completed. Creator only.
func (c *Controller) ArchiveSession(ctx context.Context, code model.SessionCode, actorID model.PlayerID) error {
	return c.mutate(ctx, code, nil, func(session *model.Session, out *outbox) error {
		if !session.IsCreator(actorID) {
			return model.ErrNotCreator
		}
		switch session.Status {
		case model.SessionCompleted:
			return nil
		case model.SessionFinished:
		default:
			return model.ErrSessionNotFinished
		}

		released, err := c.releasedPlayers(ctx, session)
		if err != nil {
			return err
		}
		session.Status = model.SessionCompleted
		session.UpdatedAt = c.clock.Now()
		if err := c.save(ctx, session, "archive", func(tx storage.Tx) {
			tx.SaveSession(session)
			for _, p := range released {
				tx.SavePlayer(p)
			}
		}); err != nil {
			return err
		}

		c.logger.Info("session archived", slog.String("session_code", string(code)))
		out.add(c.event(model.EventUpdate, session, actorID, model.UpdatePayload{Reason: model.ReasonSessionArchived}))
		return nil
	})
}
