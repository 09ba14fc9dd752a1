package submission

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/makeitmeme/internal/content"
	"github.com/mcoot/makeitmeme/internal/dependencies/mocks"
	"github.com/mcoot/makeitmeme/internal/model"
	"github.com/mcoot/makeitmeme/internal/storage"
	"github.com/mcoot/makeitmeme/internal/storage/memory"
	"github.com/mcoot/makeitmeme/internal/testutil"
)

type TrackerSuite struct {
	suite.Suite
	storage *memory.Storage
	clock   *mocks.MockClock
	tracker *Tracker
	session *model.Session
	ctx     context.Context
}

func TestTrackerSuite(t *testing.T) {
	suite.Run(t, new(TrackerSuite))
}

func (s *TrackerSuite) SetupTest() {
	s.storage = memory.New()
	s.clock = mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	three := model.NewTemplate("three", "Three", "three.jpg")
	three.NumTextBoxes = 3
	pool := content.NewPool(content.NewStaticSource(model.NewTemplate("two", "Two", "two.jpg"), three), s.clock, time.Minute, testutil.NopLogger())
	s.tracker = New(s.storage, pool, s.clock)
	s.ctx = context.Background()

	s.session = &model.Session{
		Code:         "ABC123",
		Status:       model.SessionStarted,
		Phase:        model.PhasePlaying,
		PlayerIDs:    []model.PlayerID{"p1", "p2"},
		CurrentRound: 1,
	}
	s.save(
		&model.Submission{ID: "s1", SessionCode: "ABC123", PlayerID: "p1", TemplateID: "two", Round: 1},
		&model.Submission{ID: "s2", SessionCode: "ABC123", PlayerID: "p1", TemplateID: "three", Round: 1},
		&model.Submission{ID: "s3", SessionCode: "ABC123", PlayerID: "p2", TemplateID: "two", Round: 1},
		&model.Submission{ID: "s4", SessionCode: "ABC123", PlayerID: "p2", TemplateID: "retired", Round: 1},
	)
}

func (s *TrackerSuite) save(subs ...*model.Submission) {
	s.Require().NoError(s.storage.Update(s.ctx, func(tx storage.Tx) error {
		for _, sub := range subs {
			tx.SaveSubmission(sub)
		}
		return nil
	}))
}

func (s *TrackerSuite) submit(player model.PlayerID, id model.SubmissionID, texts ...string) {
	writes, err := s.tracker.Prepare(s.ctx, s.session, player, id, texts)
	s.Require().NoError(err)
	s.save(writes...)
}

func (s *TrackerSuite) TestAllSubmittedOnceEveryPlayerHasAnEntry() {
	all, count, err := s.tracker.AllSubmitted(s.ctx, s.session)
	s.Require().NoError(err)
	s.False(all)
	s.Equal(0, count)

	s.submit("p1", "s1", "top", "bottom")
	all, count, err = s.tracker.AllSubmitted(s.ctx, s.session)
	s.Require().NoError(err)
	s.False(all)
	s.Equal(1, count)

	s.submit("p2", "s3", "hello")
	all, count, err = s.tracker.AllSubmitted(s.ctx, s.session)
	s.Require().NoError(err)
	s.True(all)
	s.Equal(2, count)
}

func (s *TrackerSuite) TestResubmitOverwrites() {
	s.submit("p1", "s1", "first")
	s.submit("p1", "s1", "second")
	s.submit("p1", "s2", "", "", "third")

	count, err := s.tracker.Count(s.ctx, "ABC123", 1)
	s.Require().NoError(err)
	s.Equal(1, count)

	first, err := s.storage.GetSubmission(s.ctx, "s1")
	s.Require().NoError(err)
	s.False(first.Selected)
	s.Equal("second", first.Texts[0])

	chosen, err := s.storage.GetSubmission(s.ctx, "s2")
	s.Require().NoError(err)
	s.True(chosen.Selected)
	s.Equal("third", chosen.Texts[2])
}

func (s *TrackerSuite) TestRejectsOtherPlayersSubmission() {
	_, err := s.tracker.Prepare(s.ctx, s.session, "p1", "s3", []string{"mine now"})
	s.ErrorIs(err, model.ErrNotOwner)
}

func (s *TrackerSuite) TestRejectsUnknownOrStaleSubmission() {
	_, err := s.tracker.Prepare(s.ctx, s.session, "p1", "missing", []string{"x"})
	s.ErrorIs(err, model.ErrSubmissionNotFound)

	s.save(&model.Submission{ID: "old", SessionCode: "ABC123", PlayerID: "p1", TemplateID: "two", Round: 0})
	_, err = s.tracker.Prepare(s.ctx, s.session, "p1", "old", []string{"x"})
	s.ErrorIs(err, model.ErrSubmissionNotFound)
}

func (s *TrackerSuite) TestTextsCheckedAgainstTemplateBoxes() {
	_, err := s.tracker.Prepare(s.ctx, s.session, "p1", "s1", []string{"a", "b", "c"})
	s.ErrorIs(err, model.ErrInvalidTexts)

	_, err = s.tracker.Prepare(s.ctx, s.session, "p1", "s1", []string{"", ""})
	s.ErrorIs(err, model.ErrInvalidTexts)

	long := make([]byte, model.MaxTextLength+1)
	for i := range long {
		long[i] = 'a'
	}
	_, err = s.tracker.Prepare(s.ctx, s.session, "p1", "s1", []string{string(long)})
	s.ErrorIs(err, model.ErrInvalidTexts)
}

func (s *TrackerSuite) TestRetiredTemplateAllowsAllBoxes() {
	s.submit("p2", "s4", "a", "b", "c", "d", "e")
	sub, err := s.storage.GetSubmission(s.ctx, "s4")
	s.Require().NoError(err)
	s.Equal("e", sub.Texts[4])
}
