package session

import (
	"context"
	"errors"
	"time"

	"github.com/mcoot/makeitmeme/internal/model"
	"github.com/mcoot/makeitmeme/internal/services/registry"
)

// PlayerSummary is a member as shown to other players
type PlayerSummary struct {
	ID        model.PlayerID
	Nickname  string
	IsCreator bool
}

// Snapshot is a point-in-time view of a session from one player's perspective
type Snapshot struct {
	Code               model.SessionCode
	Status             model.SessionStatus
	Phase              model.RoundPhase
	CreatorID          model.PlayerID
	Players            []PlayerSummary
	MaxPlayers         int
	CurrentRound       int
	TotalRounds        int
	TimeRemaining      time.Duration
	CanStart           bool
	IsCreator          bool
	IsMember           bool
	SubmittedCount     int
	AllSubmitted       bool
	HasSubmitted       bool // the viewer has an entry this round
	TemplatesAvailable int  // submissions handed to the viewer this round
}

// Entry is a finalized submission with its author's nickname
type Entry struct {
	Submission *model.Submission
	Nickname   string
	VotedOn    bool // the viewer has voted on it
}

// PodiumEntry is a ranked submission
type PodiumEntry struct {
	Rank       int
	Submission *model.Submission
	Nickname   string
}

// GetSnapshot returns the session as seen by the viewer without applying
// any due transition
func (c *Controller) GetSnapshot(ctx context.Context, code model.SessionCode, viewerID model.PlayerID) (*Snapshot, error) {
	if !code.Valid() {
		return nil, model.ErrInvalidCode
	}
	unlock := c.registry.Lock(registry.SessionKey(code))
	defer unlock()

	session, err := c.storage.GetSession(ctx, code)
	if err != nil {
		return nil, err
	}
	return c.snapshot(ctx, session, viewerID)
}

// CheckStatus applies any due transition, then returns the snapshot. This is
// the entry point for polling clients. A session cancelled by this check is
// reported once with status cancelled.
func (c *Controller) CheckStatus(ctx context.Context, code model.SessionCode, viewerID model.PlayerID) (*Snapshot, error) {
	var snap *Snapshot
	err := c.mutate(ctx, code, nil, func(session *model.Session, out *outbox) error {
		if err := c.tick(ctx, session, out); err != nil {
			return err
		}
		var err error
		snap, err = c.snapshot(ctx, session, viewerID)
		return err
	})
	return snap, err
}

func (c *Controller) snapshot(ctx context.Context, session *model.Session, viewerID model.PlayerID) (*Snapshot, error) {
	now := c.clock.Now()
	snap := &Snapshot{
		Code:         session.Code,
		Status:       session.Status,
		Phase:        session.Phase,
		CreatorID:    session.CreatorID,
		MaxPlayers:   session.Config.MaxPlayers,
		CurrentRound: session.CurrentRound,
		TotalRounds:  session.Config.Rounds,
		IsCreator:    session.IsCreator(viewerID),
		IsMember:     session.HasPlayer(viewerID),
	}

	for _, id := range session.PlayerIDs {
		summary := PlayerSummary{ID: id, IsCreator: session.IsCreator(id)}
		player, err := c.storage.GetPlayer(ctx, id)
		switch {
		case err == nil:
			summary.Nickname = player.Nickname
		case !errors.Is(err, model.ErrPlayerNotFound):
			return nil, err
		}
		snap.Players = append(snap.Players, summary)
	}

	switch session.Status {
	case model.SessionWaiting:
		snap.TimeRemaining = session.WaitingTimeRemaining(now)
		snap.CanStart = snap.IsCreator && len(session.PlayerIDs) >= 2
	case model.SessionStarted:
		if session.Phase == model.PhasePlaying {
			snap.TimeRemaining = session.RoundTimeRemaining(now)
		}
		subs, err := c.storage.ListSubmissions(ctx, session.Code, session.CurrentRound)
		if err != nil {
			return nil, err
		}
		for _, sub := range subs {
			if sub.Selected {
				snap.SubmittedCount++
			}
			if sub.PlayerID == viewerID {
				snap.TemplatesAvailable++
				snap.HasSubmitted = snap.HasSubmitted || sub.Selected
			}
		}
		snap.AllSubmitted = len(session.PlayerIDs) > 0 && snap.SubmittedCount >= len(session.PlayerIDs)
	}
	return snap, nil
}

// PlayerSubmissions returns the templates handed to the player for the current round
func (c *Controller) PlayerSubmissions(ctx context.Context, code model.SessionCode, playerID model.PlayerID) ([]*model.Submission, error) {
	if !code.Valid() {
		return nil, model.ErrInvalidCode
	}
	session, err := c.storage.GetSession(ctx, code)
	if err != nil {
		return nil, err
	}
	if !session.HasPlayer(playerID) {
		return nil, model.ErrNotInSession
	}
	if session.CurrentRound == 0 {
		return []*model.Submission{}, nil
	}

	subs, err := c.storage.ListSubmissions(ctx, code, session.CurrentRound)
	if err != nil {
		return nil, err
	}
	mine := make([]*model.Submission, 0, len(subs))
	for _, sub := range subs {
		if sub.PlayerID == playerID {
			mine = append(mine, sub)
		}
	}
	return mine, nil
}

// RoundEntries returns the finalized submissions of a played round, marking
// the ones the viewer has already voted on
func (c *Controller) RoundEntries(ctx context.Context, code model.SessionCode, viewerID model.PlayerID, round int) ([]Entry, error) {
	if !code.Valid() {
		return nil, model.ErrInvalidCode
	}
	session, err := c.storage.GetSession(ctx, code)
	if err != nil {
		return nil, err
	}
	if !session.HasPlayer(viewerID) {
		return nil, model.ErrNotInSession
	}
	if round < 1 || round > session.CurrentRound {
		return nil, model.ErrInvalidRound
	}

	subs, err := c.tally.RoundEntries(ctx, code, round)
	if err != nil {
		return nil, err
	}
	voted, err := c.tally.VotesByVoter(ctx, code, round)
	if err != nil {
		return nil, err
	}
	nicknames, err := c.nicknames(ctx, session)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, len(subs))
	for i, sub := range subs {
		entries[i] = Entry{
			Submission: sub,
			Nickname:   nicknames[sub.PlayerID],
		}
		for _, id := range voted[viewerID] {
			if id == sub.ID {
				entries[i].VotedOn = true
			}
		}
	}
	return entries, nil
}

// GetPodium ranks every finalized submission of a finished session by points
func (c *Controller) GetPodium(ctx context.Context, code model.SessionCode) ([]PodiumEntry, error) {
	if !code.Valid() {
		return nil, model.ErrInvalidCode
	}
	session, err := c.storage.GetSession(ctx, code)
	if err != nil {
		return nil, err
	}
	if session.Status != model.SessionFinished && session.Status != model.SessionCompleted {
		return nil, model.ErrSessionNotFinished
	}

	ranked, err := c.tally.Podium(ctx, code)
	if err != nil {
		return nil, err
	}
	nicknames, err := c.nicknames(ctx, session)
	if err != nil {
		return nil, err
	}

	podium := make([]PodiumEntry, len(ranked))
	for i, sub := range ranked {
		podium[i] = PodiumEntry{
			Rank:       i + 1,
			Submission: sub,
			Nickname:   nicknames[sub.PlayerID],
		}
	}
	return podium, nil
}

func (c *Controller) nicknames(ctx context.Context, session *model.Session) (map[model.PlayerID]string, error) {
	out := make(map[model.PlayerID]string, len(session.PlayerIDs))
	for _, id := range session.PlayerIDs {
		player, err := c.storage.GetPlayer(ctx, id)
		if errors.Is(err, model.ErrPlayerNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out[id] = player.Nickname
	}
	return out, nil
}
