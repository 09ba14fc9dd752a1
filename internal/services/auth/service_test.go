package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/makeitmeme/internal/dependencies/mocks"
	"github.com/mcoot/makeitmeme/internal/model"
	"github.com/mcoot/makeitmeme/internal/storage"
	"github.com/mcoot/makeitmeme/internal/storage/memory"
	"github.com/mcoot/makeitmeme/internal/testutil"
)

type leaveCall struct {
	code     model.SessionCode
	playerID model.PlayerID
}

type fakeLeaver struct {
	calls []leaveCall
	err   error
}

func (f *fakeLeaver) LeaveSession(ctx context.Context, code model.SessionCode, playerID model.PlayerID) error {
	f.calls = append(f.calls, leaveCall{code, playerID})
	return f.err
}

type ServiceSuite struct {
	suite.Suite
	storage *memory.Storage
	clock   *mocks.MockClock
	leaver  *fakeLeaver
	service *Service
	ctx     context.Context
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.storage = memory.New()
	s.clock = mocks.NewMockClock(testutil.Epoch)
	s.leaver = &fakeLeaver{}
	cfg := DefaultConfig()
	cfg.AdminUsernames = []string{" Root ", ""}
	s.service = New(s.storage, s.leaver, s.clock, cfg, testutil.NopLogger())
	s.ctx = context.Background()
}

// CreatePlayer tests

func (s *ServiceSuite) TestCreatePlayerSucceeds() {
	session, player, err := s.service.CreatePlayer(s.ctx, "  Alice  ")
	s.Require().NoError(err)

	s.NotEmpty(session.Token)
	s.Equal("Alice", player.Nickname)
	s.True(player.IsGuest)
	s.Equal(player.ID, session.PlayerID)
	s.Empty(session.Username)
}

func (s *ServiceSuite) TestCreatePlayerPersistsPlayer() {
	session, _, err := s.service.CreatePlayer(s.ctx, "Alice")
	s.Require().NoError(err)

	player, err := s.storage.GetPlayer(s.ctx, session.PlayerID)
	s.Require().NoError(err)
	s.Equal("Alice", player.Nickname)
}

func (s *ServiceSuite) TestCreatePlayerValidatesNickname() {
	_, _, err := s.service.CreatePlayer(s.ctx, "Al")
	s.ErrorIs(err, model.ErrInvalidNickname)

	_, _, err = s.service.CreatePlayer(s.ctx, "ThisNicknameIsWayTooLong")
	s.ErrorIs(err, model.ErrInvalidNickname)
}

func (s *ServiceSuite) TestCreatePlayerNicknameTaken() {
	_, _, err := s.service.CreatePlayer(s.ctx, "Alice")
	s.Require().NoError(err)

	_, _, err = s.service.CreatePlayer(s.ctx, "ALICE")
	s.ErrorIs(err, model.ErrNicknameTaken)
}

// RegisterPlayer tests

func (s *ServiceSuite) TestRegisterPlayerSucceeds() {
	session, player, err := s.service.RegisterPlayer(s.ctx, "Alice_1", "password123", "Alice")
	s.Require().NoError(err)

	s.NotEmpty(session.Token)
	s.Equal("alice_1", session.Username)
	s.Equal("Alice", player.Nickname)
	s.False(player.IsGuest)
}

func (s *ServiceSuite) TestRegisterPlayerPersistsRegistration() {
	_, _, err := s.service.RegisterPlayer(s.ctx, "alice", "password123", "Alice")
	s.Require().NoError(err)

	rp, err := s.storage.GetRegisteredPlayerByUsername(s.ctx, "alice")
	s.Require().NoError(err)
	s.Equal("alice", rp.Username)
	s.NotEmpty(rp.PasswordHash)
	s.NotEqual("password123", rp.PasswordHash)
}

func (s *ServiceSuite) TestRegisterPlayerValidates() {
	_, _, err := s.service.RegisterPlayer(s.ctx, "a!", "password123", "Alice")
	s.ErrorIs(err, model.ErrInvalidUsername)

	_, _, err = s.service.RegisterPlayer(s.ctx, "alice", "short", "Alice")
	s.ErrorIs(err, model.ErrInvalidPassword)

	_, _, err = s.service.RegisterPlayer(s.ctx, "alice", "password123", "A")
	s.ErrorIs(err, model.ErrInvalidNickname)
}

func (s *ServiceSuite) TestRegisterPlayerFailsIfUsernameExists() {
	_, _, err := s.service.RegisterPlayer(s.ctx, "alice", "password123", "Alice")
	s.Require().NoError(err)

	_, _, err = s.service.RegisterPlayer(s.ctx, "ALICE", "password456", "Alice2")
	s.ErrorIs(err, model.ErrUsernameTaken)

	// The rejected nickname is not reserved
	_, err = s.storage.GetPlayerByNickname(s.ctx, "Alice2")
	s.ErrorIs(err, model.ErrPlayerNotFound)
}

// Login tests

func (s *ServiceSuite) TestLoginSucceeds() {
	registered, _, err := s.service.RegisterPlayer(s.ctx, "alice", "password123", "Alice")
	s.Require().NoError(err)

	session, player, err := s.service.Login(s.ctx, " Alice ", "password123")
	s.Require().NoError(err)
	s.Equal(registered.PlayerID, session.PlayerID)
	s.Equal("Alice", player.Nickname)
	s.NotEqual(registered.Token, session.Token)
}

func (s *ServiceSuite) TestLoginFailsWithWrongPassword() {
	_, _, err := s.service.RegisterPlayer(s.ctx, "alice", "password123", "Alice")
	s.Require().NoError(err)

	_, _, err = s.service.Login(s.ctx, "alice", "wrongpassword")
	s.ErrorIs(err, ErrInvalidCredentials)
}

func (s *ServiceSuite) TestLoginFailsWithUnknownUser() {
	_, _, err := s.service.Login(s.ctx, "nobody", "password123")
	s.ErrorIs(err, ErrInvalidCredentials)
}

// ValidateSession tests

func (s *ServiceSuite) TestValidateSessionSucceeds() {
	session, _, _ := s.service.CreatePlayer(s.ctx, "Alice")

	validated, err := s.service.ValidateSession(session.Token)
	s.Require().NoError(err)
	s.Equal(session.PlayerID, validated.PlayerID)
}

func (s *ServiceSuite) TestValidateSessionFailsWithInvalidToken() {
	_, err := s.service.ValidateSession("invalid-token")
	s.ErrorIs(err, ErrInvalidSession)
}

func (s *ServiceSuite) TestValidateSessionFailsWhenExpired() {
	session, _, _ := s.service.CreatePlayer(s.ctx, "Alice")

	s.clock.Advance(25 * time.Hour)

	_, err := s.service.ValidateSession(session.Token)
	s.ErrorIs(err, ErrInvalidSession)
}

func (s *ServiceSuite) TestGetPlayer() {
	session, _, _ := s.service.CreatePlayer(s.ctx, "Alice")

	player, err := s.service.GetPlayer(s.ctx, session.Token)
	s.Require().NoError(err)
	s.Equal("Alice", player.Nickname)

	_, err = s.service.GetPlayer(s.ctx, "invalid-token")
	s.ErrorIs(err, ErrInvalidSession)
}

// Logout tests

func (s *ServiceSuite) setSessionCode(id model.PlayerID, code model.SessionCode) {
	player, err := s.storage.GetPlayer(s.ctx, id)
	s.Require().NoError(err)
	player.SessionCode = code
	s.Require().NoError(s.storage.Update(s.ctx, func(tx storage.Tx) error {
		tx.SavePlayer(player)
		return nil
	}))
}

func (s *ServiceSuite) TestLogoutInvalidatesToken() {
	session, _, _ := s.service.CreatePlayer(s.ctx, "Alice")

	s.Require().NoError(s.service.Logout(s.ctx, session.Token))
	_, err := s.service.ValidateSession(session.Token)
	s.ErrorIs(err, ErrInvalidSession)
	s.Empty(s.leaver.calls)

	// The guest record is kept
	_, err = s.storage.GetPlayer(s.ctx, session.PlayerID)
	s.NoError(err)
}

func (s *ServiceSuite) TestLogoutLeavesSession() {
	session, _, _ := s.service.CreatePlayer(s.ctx, "Alice")
	s.setSessionCode(session.PlayerID, "ABC123")

	s.Require().NoError(s.service.Logout(s.ctx, session.Token))
	s.Equal([]leaveCall{{"ABC123", session.PlayerID}}, s.leaver.calls)
}

func (s *ServiceSuite) TestLogoutIgnoresGameInProgress() {
	session, _, _ := s.service.CreatePlayer(s.ctx, "Alice")
	s.setSessionCode(session.PlayerID, "ABC123")
	s.leaver.err = model.ErrPlayerBusy

	s.NoError(s.service.Logout(s.ctx, session.Token))
	s.Len(s.leaver.calls, 1)
}

func (s *ServiceSuite) TestLogoutUnknownToken() {
	err := s.service.Logout(s.ctx, "invalid-token")
	s.ErrorIs(err, ErrInvalidSession)
}

// IsAdmin tests

func (s *ServiceSuite) TestIsAdmin() {
	admin, _, err := s.service.RegisterPlayer(s.ctx, "root", "password123", "Rooty")
	s.Require().NoError(err)
	user, _, err := s.service.RegisterPlayer(s.ctx, "alice", "password123", "Alice")
	s.Require().NoError(err)
	guest, _, err := s.service.CreatePlayer(s.ctx, "Guest")
	s.Require().NoError(err)

	s.True(s.service.IsAdmin(admin))
	s.False(s.service.IsAdmin(user))
	s.False(s.service.IsAdmin(guest))
	s.False(s.service.IsAdmin(nil))
}

// CleanExpiredSessions tests

func (s *ServiceSuite) TestCleanExpiredSessionsRemovesExpired() {
	session1, _, _ := s.service.CreatePlayer(s.ctx, "Alice")

	s.clock.Advance(12 * time.Hour)
	session2, _, _ := s.service.CreatePlayer(s.ctx, "Bob")

	s.clock.Advance(13 * time.Hour)
	s.Equal(1, s.service.CleanExpiredSessions())

	_, err := s.service.ValidateSession(session1.Token)
	s.ErrorIs(err, ErrInvalidSession)

	_, err = s.service.ValidateSession(session2.Token)
	s.NoError(err)
}
