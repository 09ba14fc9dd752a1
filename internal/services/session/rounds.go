package session

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mcoot/makeitmeme/internal/model"
	"github.com/mcoot/makeitmeme/internal/storage"
)

// StartSession starts a waiting session. Creator only.
func (c *Controller) StartSession(ctx context.Context, code model.SessionCode, actorID model.PlayerID) (*model.Session, error) {
	var started *model.Session
	err := c.mutate(ctx, code, nil, func(session *model.Session, out *outbox) error {
		if !session.IsCreator(actorID) {
			return model.ErrNotCreator
		}
		if err := c.start(ctx, session, actorID, out); err != nil {
			return err
		}
		started = session
		return nil
	})
	return started, err
}

// start distributes round one and moves the session to started. The
// submissions and the status change are written together, so a failure
// leaves the session waiting and a concurrent caller sees it already started.
func (c *Controller) start(ctx context.Context, session *model.Session, actorID model.PlayerID, out *outbox) error {
	if session.Status != model.SessionWaiting {
		return model.ErrSessionNotWaiting
	}
	if len(session.PlayerIDs) < 2 {
		return model.ErrInsufficientPlayers
	}

	now := c.clock.Now()
	subs, err := c.distribute(ctx, session, 1)
	if err != nil {
		return err
	}

	session.Status = model.SessionStarted
	session.CurrentRound = 1
	session.Phase = model.PhasePlaying
	session.RoundStartTime = now
	session.StartedAt = now
	session.UpdatedAt = now
	if err := c.save(ctx, session, "start", func(tx storage.Tx) {
		for _, sub := range subs {
			tx.SaveSubmission(sub)
		}
		tx.SaveSession(session)
	}); err != nil {
		return err
	}

	c.logger.Info("session started",
		slog.String("session_code", string(session.Code)),
		slog.Int("player_count", len(session.PlayerIDs)),
		slog.Int("submissions", len(subs)),
	)
	out.add(c.event(model.EventGameStarted, session, actorID, model.GameStartedPayload{
		Players:            session.PlayerIDs,
		TemplatesPerPlayer: len(subs) / len(session.PlayerIDs),
	}))
	return nil
}

// distribute builds the submissions handed out for a round without saving them
func (c *Controller) distribute(ctx context.Context, session *model.Session, round int) ([]*model.Submission, error) {
	templates, err := c.templates.ActiveTemplates(ctx)
	if err != nil {
		return nil, err
	}
	assignments, err := c.distributor.Assign(templates, session.PlayerIDs, session.Config.TemplatesPerRound)
	if err != nil {
		return nil, err
	}

	now := c.clock.Now()
	subs := make([]*model.Submission, len(assignments))
	for i, a := range assignments {
		subs[i] = &model.Submission{
			ID:          model.SubmissionID(uuid.NewString()),
			SessionCode: session.Code,
			PlayerID:    a.PlayerID,
			TemplateID:  a.TemplateID,
			Round:       round,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
	}
	return subs, nil
}

// Tick applies any timed transition that is due: auto-cancel and auto-start
// of waiting sessions, and the end of an expired or completed round. It is
// safe to call redundantly; only the first caller to see a condition acts.
func (c *Controller) Tick(ctx context.Context, code model.SessionCode) error {
	err := c.mutate(ctx, code, nil, func(session *model.Session, out *outbox) error {
		return c.tick(ctx, session, out)
	})
	if errors.Is(err, model.ErrSessionNotFound) {
		return nil
	}
	return err
}

func (c *Controller) tick(ctx context.Context, session *model.Session, out *outbox) error {
	now := c.clock.Now()
	switch session.Status {
	case model.SessionWaiting:
		elapsed := now.Sub(session.CreatedAt)
		players := len(session.PlayerIDs)
		if players <= 1 && elapsed > session.Config.CancelAfter {
			return c.cancel(ctx, session, out)
		}
		if players >= 2 && elapsed >= session.Config.AutoStartAfter {
			err := c.start(ctx, session, "", out)
			if errors.Is(err, model.ErrNoTemplates) {
				c.logger.Warn("auto-start skipped, no templates",
					slog.String("session_code", string(session.Code)),
				)
				return nil
			}
			return err
		}
	case model.SessionStarted:
		_, err := c.endRoundIfDue(ctx, session, out)
		return err
	}
	return nil
}

// cancel destroys an abandoned waiting session and releases its players.
// The session is left marked cancelled for the caller's snapshot.
func (c *Controller) cancel(ctx context.Context, session *model.Session, out *outbox) error {
	released, err := c.releasedPlayers(ctx, session)
	if err != nil {
		return err
	}
	if err := c.save(ctx, session, "cancel", func(tx storage.Tx) {
		tx.DeleteSession(session.Code)
		for _, p := range released {
			tx.SavePlayer(p)
		}
	}); err != nil {
		return err
	}

	session.Status = model.SessionCancelled
	c.logger.Info("session cancelled",
		slog.String("session_code", string(session.Code)),
		slog.Int("player_count", len(session.PlayerIDs)),
	)
	out.add(c.event(model.EventSessionCancelled, session, "", nil))
	return nil
}

// endRoundIfDue closes submissions when the round timer has run out or
// every player has submitted. Reports whether the round is now in voting.
func (c *Controller) endRoundIfDue(ctx context.Context, session *model.Session, out *outbox) (bool, error) {
	if session.Status != model.SessionStarted {
		return false, nil
	}
	if session.Phase == model.PhaseVoting {
		return true, nil
	}
	all, count, err := c.tracker.AllSubmitted(ctx, session)
	if err != nil {
		return false, err
	}
	if !all && !session.RoundExpired(c.clock.Now()) {
		return false, nil
	}
	return true, c.endRound(ctx, session, count, all, out)
}

func (c *Controller) endRound(ctx context.Context, session *model.Session, count int, all bool, out *outbox) error {
	now := c.clock.Now()
	session.Phase = model.PhaseVoting
	session.RoundEndedAt = now
	session.UpdatedAt = now
	if err := c.save(ctx, session, "end round", func(tx storage.Tx) {
		tx.SaveSession(session)
	}); err != nil {
		return err
	}

	c.logger.Info("round ended",
		slog.String("session_code", string(session.Code)),
		slog.Int("round", session.CurrentRound),
		slog.Int("submitted", count),
		slog.Bool("all_submitted", all),
	)
	out.add(c.event(model.EventRoundEnded, session, "", model.RoundEndedPayload{
		SubmittedCount: count,
		AllSubmitted:   all,
	}))
	return nil
}

// SubmitEntry finalizes one of the player's submissions for the current
// round. Submitting again replaces the earlier entry. The last player to
// submit ends the round; a submit after the deadline ends it and is rejected.
func (c *Controller) SubmitEntry(
	ctx context.Context,
	code model.SessionCode,
	playerID model.PlayerID,
	submissionID model.SubmissionID,
	texts []string,
) (*model.Submission, error) {
	var entry *model.Submission
	err := c.mutate(ctx, code, nil, func(session *model.Session, out *outbox) error {
		if !session.HasPlayer(playerID) {
			return model.ErrNotInSession
		}
		if session.Status != model.SessionStarted {
			return model.ErrSessionNotStarted
		}
		if session.Phase != model.PhasePlaying {
			return model.ErrRoundClosed
		}
		if session.RoundExpired(c.clock.Now()) {
			_, count, err := c.tracker.AllSubmitted(ctx, session)
			if err != nil {
				return err
			}
			if err := c.endRound(ctx, session, count, false, out); err != nil {
				return err
			}
			return model.ErrRoundClosed
		}

		writes, err := c.tracker.Prepare(ctx, session, playerID, submissionID, texts)
		if err != nil {
			return err
		}
		if err := c.save(ctx, session, "submit", func(tx storage.Tx) {
			for _, sub := range writes {
				tx.SaveSubmission(sub)
			}
		}); err != nil {
			return err
		}
		entry = writes[0]

		c.logger.Info("entry submitted",
			slog.String("session_code", string(code)),
			slog.String("player_id", string(playerID)),
			slog.String("submission_id", string(submissionID)),
			slog.Int("round", session.CurrentRound),
		)

		all, count, err := c.tracker.AllSubmitted(ctx, session)
		if err != nil {
			return err
		}
		if !all {
			return nil
		}
		out.add(c.event(model.EventAllSubmitted, session, playerID, nil))
		return c.endRound(ctx, session, count, true, out)
	})
	return entry, err
}

// CastVote records a vote for a submission of the round being voted on and
// returns the submission's new total
func (c *Controller) CastVote(
	ctx context.Context,
	code model.SessionCode,
	voterID model.PlayerID,
	submissionID model.SubmissionID,
	category string,
) (*model.Vote, int, error) {
	var (
		vote  *model.Vote
		total int
	)
	err := c.mutate(ctx, code, nil, func(session *model.Session, out *outbox) error {
		if _, err := model.ParseVoteCategory(category); err != nil {
			return err
		}
		if session.HasPlayer(voterID) {
			if _, err := c.endRoundIfDue(ctx, session, out); err != nil {
				return err
			}
		}

		var err error
		vote, total, err = c.tally.Cast(ctx, session, voterID, submissionID, category)
		if err != nil {
			return err
		}

		c.logger.Info("vote cast",
			slog.String("session_code", string(code)),
			slog.String("player_id", string(voterID)),
			slog.String("submission_id", string(submissionID)),
			slog.String("category", string(vote.Category)),
			slog.Int("total_points", total),
		)
		out.add(c.event(model.EventUpdate, session, voterID, model.UpdatePayload{Reason: model.ReasonVoteCast}))
		return nil
	})
	return vote, total, err
}

// AdvanceRound moves past the voting phase: to the next round with fresh
// templates, or to finished after the last round. Creator only.
func (c *Controller) AdvanceRound(ctx context.Context, code model.SessionCode, actorID model.PlayerID) (*model.Session, error) {
	var advanced *model.Session
	err := c.mutate(ctx, code, nil, func(session *model.Session, out *outbox) error {
		if !session.IsCreator(actorID) {
			return model.ErrNotCreator
		}
		if session.Status != model.SessionStarted {
			return model.ErrSessionNotStarted
		}
		voting, err := c.endRoundIfDue(ctx, session, out)
		if err != nil {
			return err
		}
		if !voting {
			return model.ErrRoundInProgress
		}

		if session.IsLastRound() {
			err = c.finish(ctx, session, actorID, out)
		} else {
			err = c.nextRound(ctx, session, actorID, out)
		}
		if err != nil {
			return err
		}
		advanced = session
		return nil
	})
	return advanced, err
}

func (c *Controller) nextRound(ctx context.Context, session *model.Session, actorID model.PlayerID, out *outbox) error {
	round := session.CurrentRound + 1
	subs, err := c.distribute(ctx, session, round)
	if err != nil {
		return err
	}

	now := c.clock.Now()
	session.CurrentRound = round
	session.Phase = model.PhasePlaying
	session.RoundStartTime = now
	session.RoundEndedAt = time.Time{}
	session.UpdatedAt = now
	if err := c.save(ctx, session, "next round", func(tx storage.Tx) {
		for _, sub := range subs {
			tx.SaveSubmission(sub)
		}
		tx.SaveSession(session)
	}); err != nil {
		return err
	}

	c.logger.Info("round started",
		slog.String("session_code", string(session.Code)),
		slog.Int("round", round),
		slog.Int("submissions", len(subs)),
	)
	out.add(c.event(model.EventNextRoundStarted, session, actorID, nil))
	return nil
}

// finish ends play and releases every player's session reference
func (c *Controller) finish(ctx context.Context, session *model.Session, actorID model.PlayerID, out *outbox) error {
	released, err := c.releasedPlayers(ctx, session)
	if err != nil {
		return err
	}

	now := c.clock.Now()
	session.Status = model.SessionFinished
	session.Phase = ""
	session.FinishedAt = now
	session.UpdatedAt = now
	if err := c.save(ctx, session, "finish", func(tx storage.Tx) {
		tx.SaveSession(session)
		for _, p := range released {
			tx.SavePlayer(p)
		}
	}); err != nil {
		return err
	}

	c.logger.Info("session finished",
		slog.String("session_code", string(session.Code)),
		slog.Int("rounds", session.CurrentRound),
	)
	out.add(c.event(model.EventGameFinished, session, actorID, model.GameFinishedPayload{Rounds: session.CurrentRound}))
	return nil
}
