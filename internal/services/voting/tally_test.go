package voting

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/makeitmeme/internal/dependencies/mocks"
	"github.com/mcoot/makeitmeme/internal/model"
	"github.com/mcoot/makeitmeme/internal/storage"
	"github.com/mcoot/makeitmeme/internal/storage/memory"
)

type TallySuite struct {
	suite.Suite
	storage *memory.Storage
	tally   *Tally
	session *model.Session
	ctx     context.Context
}

func TestTallySuite(t *testing.T) {
	suite.Run(t, new(TallySuite))
}

func (s *TallySuite) SetupTest() {
	s.storage = memory.New()
	s.tally = New(s.storage, mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)))
	s.ctx = context.Background()

	s.session = &model.Session{
		Code:         "ABC123",
		Status:       model.SessionStarted,
		Phase:        model.PhaseVoting,
		PlayerIDs:    []model.PlayerID{"p1", "p2", "p3"},
		CurrentRound: 1,
	}
	s.save(
		&model.Submission{ID: "s1", SessionCode: "ABC123", PlayerID: "p1", Round: 1, Selected: true},
		&model.Submission{ID: "s2", SessionCode: "ABC123", PlayerID: "p2", Round: 1, Selected: true},
		&model.Submission{ID: "s3", SessionCode: "ABC123", PlayerID: "p3", Round: 1},
	)
}

func (s *TallySuite) save(subs ...*model.Submission) {
	s.Require().NoError(s.storage.Update(s.ctx, func(tx storage.Tx) error {
		for _, sub := range subs {
			tx.SaveSubmission(sub)
		}
		return nil
	}))
}

func (s *TallySuite) points(id model.SubmissionID) int {
	sub, err := s.storage.GetSubmission(s.ctx, id)
	s.Require().NoError(err)
	return sub.TotalPoints
}

func (s *TallySuite) TestCastReturnsRunningTotal() {
	vote, total, err := s.tally.Cast(s.ctx, s.session, "p2", "s1", "normal")
	s.Require().NoError(err)
	s.Equal(3, total)
	s.Equal(model.VoteNormal, vote.Category)
	s.Equal(1, vote.Round)
	s.NotEmpty(vote.ID)

	_, total, err = s.tally.Cast(s.ctx, s.session, "p3", "s1", "me_rei")
	s.Require().NoError(err)
	s.Equal(13, total)
	s.Equal(13, s.points("s1"))
}

func (s *TallySuite) TestDuplicateVoteRejected() {
	_, _, err := s.tally.Cast(s.ctx, s.session, "p2", "s1", "mild")
	s.Require().NoError(err)

	_, _, err = s.tally.Cast(s.ctx, s.session, "p2", "s1", "hilarious")
	s.ErrorIs(err, model.ErrDuplicateVote)
	s.ErrorIs(err, model.ErrConflict)
	s.Equal(1, s.points("s1"))
}

func (s *TallySuite) TestSelfVoteRejected() {
	_, _, err := s.tally.Cast(s.ctx, s.session, "p1", "s1", "hilarious")
	s.ErrorIs(err, model.ErrSelfVote)
	s.ErrorIs(err, model.ErrConflict)
	s.Equal(0, s.points("s1"))
}

func (s *TallySuite) TestInvalidCategoryRejectedFirst() {
	_, _, err := s.tally.Cast(s.ctx, s.session, "p1", "s1", "amazing")
	s.ErrorIs(err, model.ErrValidation)
}

func (s *TallySuite) TestVoterMustBeInSession() {
	_, _, err := s.tally.Cast(s.ctx, s.session, "stranger", "s1", "mild")
	s.ErrorIs(err, model.ErrNotInSession)
}

func (s *TallySuite) TestVotingClosedOutsideVotingPhase() {
	s.session.Phase = model.PhasePlaying
	_, _, err := s.tally.Cast(s.ctx, s.session, "p2", "s1", "mild")
	s.ErrorIs(err, model.ErrVotingClosed)

	s.session.Phase = ""
	s.session.Status = model.SessionFinished
	_, _, err = s.tally.Cast(s.ctx, s.session, "p2", "s1", "mild")
	s.ErrorIs(err, model.ErrState)
}

func (s *TallySuite) TestUnsubmittedEntryNotVotable() {
	_, _, err := s.tally.Cast(s.ctx, s.session, "p1", "s3", "mild")
	s.ErrorIs(err, model.ErrSubmissionNotVotable)
}

func (s *TallySuite) TestSubmissionFromOtherSessionNotFound() {
	s.save(&model.Submission{ID: "other", SessionCode: "XYZ789", PlayerID: "p9", Round: 1, Selected: true})
	_, _, err := s.tally.Cast(s.ctx, s.session, "p2", "other", "mild")
	s.ErrorIs(err, model.ErrSubmissionNotFound)
}

func (s *TallySuite) TestConcurrentVotesAllCounted() {
	players := []model.PlayerID{"p2", "p3"}
	for i := range 20 {
		id := model.PlayerID(string(rune('a'+i)) + "-voter")
		players = append(players, id)
	}
	s.session.PlayerIDs = append([]model.PlayerID{"p1"}, players...)

	var wg sync.WaitGroup
	for _, p := range players {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := s.tally.Cast(s.ctx, s.session, p, "s1", "normal")
			s.NoError(err)
		}()
	}
	wg.Wait()
	s.Equal(3*len(players), s.points("s1"))
}

func (s *TallySuite) TestRoundEntriesOnlySelected() {
	entries, err := s.tally.RoundEntries(s.ctx, "ABC123", 1)
	s.Require().NoError(err)
	s.Require().Len(entries, 2)
	s.Equal(model.SubmissionID("s1"), entries[0].ID)
}

func (s *TallySuite) TestPodiumOrdering() {
	s.save(
		&model.Submission{ID: "s4", SessionCode: "ABC123", PlayerID: "p1", Round: 2, Selected: true},
		&model.Submission{ID: "s0", SessionCode: "ABC123", PlayerID: "p3", Round: 2, Selected: true},
	)
	s.session.CurrentRound = 1
	_, _, err := s.tally.Cast(s.ctx, s.session, "p1", "s2", "hilarious")
	s.Require().NoError(err)
	_, _, err = s.tally.Cast(s.ctx, s.session, "p2", "s1", "normal")
	s.Require().NoError(err)
	s.session.CurrentRound = 2
	_, _, err = s.tally.Cast(s.ctx, s.session, "p2", "s4", "normal")
	s.Require().NoError(err)
	_, _, err = s.tally.Cast(s.ctx, s.session, "p2", "s0", "normal")
	s.Require().NoError(err)

	podium, err := s.tally.Podium(s.ctx, "ABC123")
	s.Require().NoError(err)
	ids := make([]model.SubmissionID, len(podium))
	for i, sub := range podium {
		ids[i] = sub.ID
	}
	// s1 ties s0 and s4 on 3 points: round 1 first, then ID within round 2
	s.Equal([]model.SubmissionID{"s2", "s1", "s0", "s4"}, ids)
}

func (s *TallySuite) TestVotesByVoter() {
	_, _, err := s.tally.Cast(s.ctx, s.session, "p3", "s1", "mild")
	s.Require().NoError(err)
	_, _, err = s.tally.Cast(s.ctx, s.session, "p3", "s2", "mild")
	s.Require().NoError(err)

	votes, err := s.tally.VotesByVoter(s.ctx, "ABC123", 1)
	s.Require().NoError(err)
	s.ElementsMatch([]model.SubmissionID{"s1", "s2"}, votes["p3"])
	s.Empty(votes["p1"])
}
