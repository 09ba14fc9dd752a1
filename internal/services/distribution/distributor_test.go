package distribution

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/makeitmeme/internal/dependencies/mocks"
	"github.com/mcoot/makeitmeme/internal/dependencies/random"
	"github.com/mcoot/makeitmeme/internal/model"
)

type DistributorSuite struct {
	suite.Suite
	random      *mocks.MockRandom
	distributor *Distributor
	players     []model.PlayerID
}

func TestDistributorSuite(t *testing.T) {
	suite.Run(t, new(DistributorSuite))
}

func (s *DistributorSuite) SetupTest() {
	s.random = mocks.NewMockRandom()
	s.distributor = New(s.random)
	s.players = []model.PlayerID{"p1", "p2", "p3", "p4"}
}

func templates(n int) []model.Template {
	out := make([]model.Template, n)
	for i := range out {
		out[i] = model.NewTemplate(model.TemplateID(fmt.Sprintf("t%02d", i)), "T", "t.jpg")
	}
	return out
}

func byPlayer(assignments []Assignment) map[model.PlayerID][]model.TemplateID {
	out := make(map[model.PlayerID][]model.TemplateID)
	for _, a := range assignments {
		out[a.PlayerID] = append(out[a.PlayerID], a.TemplateID)
	}
	return out
}

func (s *DistributorSuite) TestDisjointBlocksPerPlayer() {
	d := New(random.NewSeeded(42))
	assignments, err := d.Assign(templates(12), s.players, 5)
	s.Require().NoError(err)
	s.Len(assignments, 12)

	seen := make(map[model.TemplateID]bool)
	for player, ids := range byPlayer(assignments) {
		s.Len(ids, 3, "player %s", player)
		for _, id := range ids {
			s.False(seen[id], "template %s handed out twice", id)
			seen[id] = true
		}
	}
}

func (s *DistributorSuite) TestCappedAtTemplatesPerRound() {
	assignments, err := s.distributor.Assign(templates(40), s.players, 5)
	s.Require().NoError(err)
	s.Len(assignments, 20)
	for _, ids := range byPlayer(assignments) {
		s.Len(ids, 5)
	}
}

func (s *DistributorSuite) TestBlocksFollowPlayerOrder() {
	// With no queued values every swap picks index 0, which rotates the
	// first element to the back: t01 t02 t03 t00 for four templates.
	assignments, err := s.distributor.Assign(templates(4), []model.PlayerID{"p1", "p2"}, 5)
	s.Require().NoError(err)
	s.Equal([]Assignment{
		{PlayerID: "p1", TemplateID: "t01"},
		{PlayerID: "p1", TemplateID: "t02"},
		{PlayerID: "p2", TemplateID: "t03"},
		{PlayerID: "p2", TemplateID: "t00"},
	}, assignments)
}

func (s *DistributorSuite) TestScarceContentFallsBackToSampling() {
	assignments, err := s.distributor.Assign(templates(1), s.players, 5)
	s.Require().NoError(err)
	s.Len(assignments, 4)
	for _, a := range assignments {
		s.Equal(model.TemplateID("t00"), a.TemplateID)
	}
}

func (s *DistributorSuite) TestSamplingAllowsDuplicates() {
	s.random.QueueIntn(2, 0, 2, 1)
	assignments, err := s.distributor.Assign(templates(3), s.players, 5)
	s.Require().NoError(err)
	s.Equal([]model.TemplateID{"t02", "t00", "t02", "t01"}, []model.TemplateID{
		assignments[0].TemplateID, assignments[1].TemplateID, assignments[2].TemplateID, assignments[3].TemplateID,
	})
}

func (s *DistributorSuite) TestNoTemplatesFails() {
	_, err := s.distributor.Assign(nil, s.players, 5)
	s.ErrorIs(err, model.ErrNoTemplates)
}

func (s *DistributorSuite) TestNoPlayersIsNoop() {
	assignments, err := s.distributor.Assign(templates(5), nil, 5)
	s.Require().NoError(err)
	s.Empty(assignments)

	assignments, err = s.distributor.Assign(nil, nil, 5)
	s.Require().NoError(err)
	s.Empty(assignments)
}

func (s *DistributorSuite) TestPerPlayer() {
	s.Equal(3, PerPlayer(12, 4, 5))
	s.Equal(5, PerPlayer(100, 4, 5))
	s.Equal(0, PerPlayer(1, 4, 5))
	s.Equal(0, PerPlayer(5, 0, 5))
}
