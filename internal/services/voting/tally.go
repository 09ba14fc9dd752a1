// Package voting records votes on submissions and ranks the results.
package voting

import (
	"cmp"
	"context"
	"slices"

	"github.com/google/uuid"

	"github.com/mcoot/makeitmeme/internal/dependencies/clock"
	"github.com/mcoot/makeitmeme/internal/model"
	"github.com/mcoot/makeitmeme/internal/storage"
)

// Tally records votes and maintains submission scores
type Tally struct {
	storage storage.Storage
	clock   clock.Clock
}

// New creates a Tally
func New(storage storage.Storage, clock clock.Clock) *Tally {
	return &Tally{
		storage: storage,
		clock:   clock,
	}
}

// Cast records a vote by voter on a submission of the session's current round.
// Nothing is written unless every check passes. Returns the stored vote and
// the submission's new total.
func (t *Tally) Cast(
	ctx context.Context,
	session *model.Session,
	voterID model.PlayerID,
	submissionID model.SubmissionID,
	category string,
) (*model.Vote, int, error) {
	cat, err := model.ParseVoteCategory(category)
	if err != nil {
		return nil, 0, err
	}
	if !session.HasPlayer(voterID) {
		return nil, 0, model.ErrNotInSession
	}
	if session.Status != model.SessionStarted || session.Phase != model.PhaseVoting {
		return nil, 0, model.ErrVotingClosed
	}

	sub, err := t.storage.GetSubmission(ctx, submissionID)
	if err != nil {
		return nil, 0, err
	}
	if sub.SessionCode != session.Code {
		return nil, 0, model.ErrSubmissionNotFound
	}
	if sub.Round != session.CurrentRound || !sub.Selected {
		return nil, 0, model.ErrSubmissionNotVotable
	}
	if sub.PlayerID == voterID {
		return nil, 0, model.ErrSelfVote
	}

	vote := &model.Vote{
		ID:           uuid.NewString(),
		SessionCode:  session.Code,
		Round:        session.CurrentRound,
		VoterID:      voterID,
		SubmissionID: sub.ID,
		Category:     cat,
		Points:       cat.Points(),
		CreatedAt:    t.clock.Now(),
	}
	total, err := t.storage.RecordVote(ctx, vote)
	if err != nil {
		return nil, 0, err
	}
	return vote, total, nil
}

// RoundEntries returns the finalized submissions of a round, in submission order
func (t *Tally) RoundEntries(ctx context.Context, code model.SessionCode, round int) ([]*model.Submission, error) {
	subs, err := t.storage.ListSubmissions(ctx, code, round)
	if err != nil {
		return nil, err
	}
	return slices.DeleteFunc(subs, func(s *model.Submission) bool { return !s.Selected }), nil
}

// Podium ranks every finalized submission of the session by points.
// Equal scores are ordered by round, then submission ID.
func (t *Tally) Podium(ctx context.Context, code model.SessionCode) ([]*model.Submission, error) {
	entries, err := t.RoundEntries(ctx, code, 0)
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(entries, func(a, b *model.Submission) int {
		return cmp.Or(
			cmp.Compare(b.TotalPoints, a.TotalPoints),
			cmp.Compare(a.Round, b.Round),
			cmp.Compare(a.ID, b.ID),
		)
	})
	return entries, nil
}

// VotesByVoter returns the submissions each player has voted on in a round
func (t *Tally) VotesByVoter(ctx context.Context, code model.SessionCode, round int) (map[model.PlayerID][]model.SubmissionID, error) {
	votes, err := t.storage.ListVotes(ctx, code, round)
	if err != nil {
		return nil, err
	}
	out := make(map[model.PlayerID][]model.SubmissionID)
	for _, v := range votes {
		out[v.VoterID] = append(out[v.VoterID], v.SubmissionID)
	}
	return out, nil
}
