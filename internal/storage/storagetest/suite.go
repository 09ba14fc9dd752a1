// Package storagetest holds a conformance suite run against every storage backend.
package storagetest

import (
	"context"
	"errors"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/makeitmeme/internal/model"
	"github.com/mcoot/makeitmeme/internal/storage"
)

// Suite exercises the storage contract. Backends embed it and set NewStorage.
type Suite struct {
	suite.Suite
	NewStorage func() storage.Storage

	storage storage.Storage
	ctx     context.Context
	now     time.Time
}

func (s *Suite) SetupTest() {
	s.storage = s.NewStorage()
	s.ctx = context.Background()
	s.now = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
}

// Storage returns the backend under test
func (s *Suite) Storage() storage.Storage {
	return s.storage
}

func (s *Suite) createPlayer(id model.PlayerID, nickname string) *model.Player {
	player := &model.Player{ID: id, Nickname: nickname, IsGuest: true, CreatedAt: s.now}
	s.Require().NoError(s.storage.CreatePlayer(s.ctx, player))
	return player
}

func (s *Suite) saveSession(code model.SessionCode, players ...model.PlayerID) *model.Session {
	session := &model.Session{
		Code:      code,
		Status:    model.SessionWaiting,
		CreatorID: players[0],
		PlayerIDs: players,
		Config:    model.DefaultSessionConfig(),
		CreatedAt: s.now,
		UpdatedAt: s.now,
	}
	s.Require().NoError(s.storage.Update(s.ctx, func(tx storage.Tx) error {
		tx.SaveSession(session)
		return nil
	}))
	return session
}

func (s *Suite) saveSubmission(id model.SubmissionID, code model.SessionCode, player model.PlayerID, round int) *model.Submission {
	sub := &model.Submission{
		ID:          id,
		SessionCode: code,
		PlayerID:    player,
		TemplateID:  "tpl-1",
		Round:       round,
		CreatedAt:   s.now,
		UpdatedAt:   s.now,
	}
	s.Require().NoError(s.storage.Update(s.ctx, func(tx storage.Tx) error {
		tx.SaveSubmission(sub)
		return nil
	}))
	return sub
}

// Player tests

func (s *Suite) TestCreateAndGetPlayer() {
	s.createPlayer("p1", "Alice")

	player, err := s.storage.GetPlayer(s.ctx, "p1")
	s.Require().NoError(err)
	s.Equal("Alice", player.Nickname)
	s.True(player.IsGuest)
	s.True(s.now.Equal(player.CreatedAt))
}

func (s *Suite) TestGetPlayerNotFound() {
	_, err := s.storage.GetPlayer(s.ctx, "missing")
	s.ErrorIs(err, model.ErrPlayerNotFound)
}

func (s *Suite) TestNicknameIsUniqueIgnoringCase() {
	s.createPlayer("p1", "Alice")

	err := s.storage.CreatePlayer(s.ctx, &model.Player{ID: "p2", Nickname: "alice", CreatedAt: s.now})
	s.ErrorIs(err, model.ErrNicknameTaken)

	player, err := s.storage.GetPlayerByNickname(s.ctx, "ALICE")
	s.Require().NoError(err)
	s.Equal(model.PlayerID("p1"), player.ID)
}

func (s *Suite) TestDeletePlayerFreesNickname() {
	s.createPlayer("p1", "Alice")
	s.Require().NoError(s.storage.DeletePlayer(s.ctx, "p1"))

	_, err := s.storage.GetPlayer(s.ctx, "p1")
	s.ErrorIs(err, model.ErrPlayerNotFound)
	s.createPlayer("p2", "Alice")
}

func (s *Suite) TestReadsReturnCopies() {
	s.createPlayer("p1", "Alice")

	player, err := s.storage.GetPlayer(s.ctx, "p1")
	s.Require().NoError(err)
	player.SessionCode = "ABC123"

	again, err := s.storage.GetPlayer(s.ctx, "p1")
	s.Require().NoError(err)
	s.False(again.InSession())
}

// Registered player tests

func (s *Suite) TestRegisteredPlayer() {
	s.createPlayer("p1", "Alice")
	rp := &model.RegisteredPlayer{PlayerID: "p1", Username: "alice", PasswordHash: "hash", CreatedAt: s.now, UpdatedAt: s.now}
	s.Require().NoError(s.storage.CreateRegisteredPlayer(s.ctx, rp))

	byName, err := s.storage.GetRegisteredPlayerByUsername(s.ctx, "alice")
	s.Require().NoError(err)
	s.Equal(model.PlayerID("p1"), byName.PlayerID)
	s.Equal("hash", byName.PasswordHash)

	byID, err := s.storage.GetRegisteredPlayer(s.ctx, "p1")
	s.Require().NoError(err)
	s.Equal("alice", byID.Username)

	err = s.storage.CreateRegisteredPlayer(s.ctx, &model.RegisteredPlayer{PlayerID: "p2", Username: "alice", PasswordHash: "x"})
	s.ErrorIs(err, model.ErrUsernameTaken)

	_, err = s.storage.GetRegisteredPlayerByUsername(s.ctx, "bob")
	s.ErrorIs(err, model.ErrPlayerNotFound)
}

// Session tests

func (s *Suite) TestSaveAndGetSession() {
	s.saveSession("ABC123", "p1", "p2")

	session, err := s.storage.GetSession(s.ctx, "ABC123")
	s.Require().NoError(err)
	s.Equal(model.SessionWaiting, session.Status)
	s.Equal([]model.PlayerID{"p1", "p2"}, session.PlayerIDs)
	s.Equal(model.DefaultSessionConfig(), session.Config)

	exists, err := s.storage.SessionExists(s.ctx, "ABC123")
	s.Require().NoError(err)
	s.True(exists)

	codes, err := s.storage.ListSessionCodes(s.ctx)
	s.Require().NoError(err)
	s.Equal([]model.SessionCode{"ABC123"}, codes)
}

func (s *Suite) TestGetSessionNotFound() {
	_, err := s.storage.GetSession(s.ctx, "ZZZ999")
	s.ErrorIs(err, model.ErrSessionNotFound)

	exists, err := s.storage.SessionExists(s.ctx, "ZZZ999")
	s.Require().NoError(err)
	s.False(exists)
}

func (s *Suite) TestUpdateIsAllOrNothing() {
	s.createPlayer("p1", "Alice")
	failure := errors.New("boom")

	err := s.storage.Update(s.ctx, func(tx storage.Tx) error {
		tx.SaveSession(&model.Session{Code: "ABC123", Status: model.SessionWaiting, CreatorID: "p1", PlayerIDs: []model.PlayerID{"p1"}})
		tx.SavePlayer(&model.Player{ID: "p1", Nickname: "Alice", IsGuest: true, SessionCode: "ABC123", CreatedAt: s.now})
		return failure
	})
	s.ErrorIs(err, failure)

	_, err = s.storage.GetSession(s.ctx, "ABC123")
	s.ErrorIs(err, model.ErrSessionNotFound)
	player, err := s.storage.GetPlayer(s.ctx, "p1")
	s.Require().NoError(err)
	s.False(player.InSession())
}

func (s *Suite) TestUpdateSavesPlayerReference() {
	s.createPlayer("p1", "Alice")
	s.saveSession("ABC123", "p1")

	s.Require().NoError(s.storage.Update(s.ctx, func(tx storage.Tx) error {
		tx.SavePlayer(&model.Player{ID: "p1", Nickname: "Alice", IsGuest: true, SessionCode: "ABC123", CreatedAt: s.now})
		return nil
	}))

	player, err := s.storage.GetPlayer(s.ctx, "p1")
	s.Require().NoError(err)
	s.Equal(model.SessionCode("ABC123"), player.SessionCode)

	byNick, err := s.storage.GetPlayerByNickname(s.ctx, "alice")
	s.Require().NoError(err)
	s.Equal(model.PlayerID("p1"), byNick.ID)
}

func (s *Suite) TestDeleteSessionCascades() {
	s.saveSession("ABC123", "p1", "p2")
	s.saveSession("XYZ789", "p3", "p4")
	s.saveSubmission("s1", "ABC123", "p1", 1)
	s.saveSubmission("s2", "XYZ789", "p3", 1)
	_, err := s.storage.RecordVote(s.ctx, &model.Vote{ID: "v1", SessionCode: "ABC123", Round: 1, VoterID: "p2", SubmissionID: "s1", Category: model.VoteNormal, Points: 3, CreatedAt: s.now})
	s.Require().NoError(err)

	s.Require().NoError(s.storage.Update(s.ctx, func(tx storage.Tx) error {
		tx.DeleteSession("ABC123")
		return nil
	}))

	_, err = s.storage.GetSession(s.ctx, "ABC123")
	s.ErrorIs(err, model.ErrSessionNotFound)
	_, err = s.storage.GetSubmission(s.ctx, "s1")
	s.ErrorIs(err, model.ErrSubmissionNotFound)
	votes, err := s.storage.ListVotes(s.ctx, "ABC123", 0)
	s.Require().NoError(err)
	s.Empty(votes)

	codes, err := s.storage.ListSessionCodes(s.ctx)
	s.Require().NoError(err)
	s.Equal([]model.SessionCode{"XYZ789"}, codes)
	_, err = s.storage.GetSubmission(s.ctx, "s2")
	s.NoError(err)
}

// Submission tests

func (s *Suite) TestListSubmissionsByRound() {
	s.saveSession("ABC123", "p1", "p2")
	s.saveSubmission("s3", "ABC123", "p1", 2)
	s.saveSubmission("s2", "ABC123", "p2", 1)
	s.saveSubmission("s1", "ABC123", "p1", 1)

	round1, err := s.storage.ListSubmissions(s.ctx, "ABC123", 1)
	s.Require().NoError(err)
	s.Require().Len(round1, 2)
	s.Equal(model.SubmissionID("s1"), round1[0].ID)
	s.Equal(model.SubmissionID("s2"), round1[1].ID)

	all, err := s.storage.ListSubmissions(s.ctx, "ABC123", 0)
	s.Require().NoError(err)
	s.Require().Len(all, 3)
	s.Equal(model.SubmissionID("s3"), all[2].ID)

	none, err := s.storage.ListSubmissions(s.ctx, "NOPE00", 0)
	s.Require().NoError(err)
	s.Empty(none)
}

func (s *Suite) TestSaveSubmissionKeepsPoints() {
	s.saveSession("ABC123", "p1", "p2")
	sub := s.saveSubmission("s1", "ABC123", "p1", 1)
	_, err := s.storage.RecordVote(s.ctx, &model.Vote{ID: "v1", SessionCode: "ABC123", Round: 1, VoterID: "p2", SubmissionID: "s1", Category: model.VoteHilarious, Points: 10, CreatedAt: s.now})
	s.Require().NoError(err)

	sub.Texts[0] = "top text"
	sub.Selected = true
	sub.TotalPoints = 0
	s.Require().NoError(s.storage.Update(s.ctx, func(tx storage.Tx) error {
		tx.SaveSubmission(sub)
		return nil
	}))

	got, err := s.storage.GetSubmission(s.ctx, "s1")
	s.Require().NoError(err)
	s.Equal("top text", got.Texts[0])
	s.True(got.Selected)
	s.Equal(10, got.TotalPoints)
}

// Vote tests

func (s *Suite) TestRecordVoteAccumulatesPoints() {
	s.saveSession("ABC123", "p1", "p2", "p3")
	s.saveSubmission("s1", "ABC123", "p1", 1)

	total, err := s.storage.RecordVote(s.ctx, &model.Vote{ID: "v1", SessionCode: "ABC123", Round: 1, VoterID: "p2", SubmissionID: "s1", Category: model.VoteNormal, Points: 3, CreatedAt: s.now})
	s.Require().NoError(err)
	s.Equal(3, total)

	total, err = s.storage.RecordVote(s.ctx, &model.Vote{ID: "v2", SessionCode: "ABC123", Round: 1, VoterID: "p3", SubmissionID: "s1", Category: model.VoteHilarious, Points: 10, CreatedAt: s.now.Add(time.Second)})
	s.Require().NoError(err)
	s.Equal(13, total)

	sub, err := s.storage.GetSubmission(s.ctx, "s1")
	s.Require().NoError(err)
	s.Equal(13, sub.TotalPoints)

	votes, err := s.storage.ListVotes(s.ctx, "ABC123", 1)
	s.Require().NoError(err)
	s.Require().Len(votes, 2)
	s.Equal("v1", votes[0].ID)
	s.Equal(model.VoteHilarious, votes[1].Category)
}

func (s *Suite) TestRecordVoteRejectsDuplicate() {
	s.saveSession("ABC123", "p1", "p2")
	s.saveSubmission("s1", "ABC123", "p1", 1)
	vote := &model.Vote{ID: "v1", SessionCode: "ABC123", Round: 1, VoterID: "p2", SubmissionID: "s1", Category: model.VoteMild, Points: 1, CreatedAt: s.now}
	_, err := s.storage.RecordVote(s.ctx, vote)
	s.Require().NoError(err)

	again := *vote
	again.ID = "v2"
	again.Category = model.VoteHilarious
	again.Points = 10
	_, err = s.storage.RecordVote(s.ctx, &again)
	s.ErrorIs(err, model.ErrDuplicateVote)

	sub, err := s.storage.GetSubmission(s.ctx, "s1")
	s.Require().NoError(err)
	s.Equal(1, sub.TotalPoints)
}

func (s *Suite) TestRecordVoteUnknownSubmission() {
	_, err := s.storage.RecordVote(s.ctx, &model.Vote{ID: "v1", SessionCode: "ABC123", Round: 1, VoterID: "p2", SubmissionID: "missing", Category: model.VoteMild, Points: 1, CreatedAt: s.now})
	s.ErrorIs(err, model.ErrSubmissionNotFound)
}
