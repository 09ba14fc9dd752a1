// Package auth manages player identities and bearer tokens.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"

	"github.com/mcoot/makeitmeme/internal/dependencies/clock"
	"github.com/mcoot/makeitmeme/internal/model"
	"github.com/mcoot/makeitmeme/internal/storage"
)

// Errors
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidSession     = errors.New("invalid or expired session")
)

const (
	usernameMinLength = 3
	usernameMaxLength = 20
	passwordMinLength = 8
)

// Session represents an authenticated bearer token
type Session struct {
	Token     string
	PlayerID  model.PlayerID
	Username  string // empty for guests
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Leaver removes a player from a game session
type Leaver interface {
	LeaveSession(ctx context.Context, code model.SessionCode, playerID model.PlayerID) error
}

// Service handles player identity and token management
type Service struct {
	storage storage.Storage
	leaver  Leaver
	clock   clock.Clock
	logger  *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session

	sessionDuration time.Duration
	admins          []string
}

// Config holds configuration for the auth service
type Config struct {
	SessionDuration time.Duration
	AdminUsernames  []string
}

// DefaultConfig returns default auth configuration
func DefaultConfig() Config {
	return Config{
		SessionDuration: 24 * time.Hour,
	}
}

// New creates a new auth Service. leaver may be nil, in which case logging
// out never touches game sessions.
func New(storage storage.Storage, leaver Leaver, clock clock.Clock, cfg Config, logger *slog.Logger) *Service {
	if cfg.SessionDuration == 0 {
		cfg.SessionDuration = DefaultConfig().SessionDuration
	}
	admins := make([]string, 0, len(cfg.AdminUsernames))
	for _, u := range cfg.AdminUsernames {
		if u = strings.ToLower(strings.TrimSpace(u)); u != "" {
			admins = append(admins, u)
		}
	}
	return &Service{
		storage:         storage,
		leaver:          leaver,
		clock:           clock,
		logger:          logger.With(slog.String("component", "auth")),
		sessions:        make(map[string]*Session),
		sessionDuration: cfg.SessionDuration,
		admins:          admins,
	}
}

// CreatePlayer creates a guest player identified only by nickname
func (s *Service) CreatePlayer(ctx context.Context, nickname string) (*Session, *model.Player, error) {
	nickname, err := model.NormalizeNickname(nickname)
	if err != nil {
		return nil, nil, err
	}

	player := &model.Player{
		ID:        model.PlayerID(s.generateID("p_")),
		Nickname:  nickname,
		IsGuest:   true,
		CreatedAt: s.clock.Now(),
	}
	if err := s.storage.CreatePlayer(ctx, player); err != nil {
		return nil, nil, err
	}

	s.logger.Info("player created",
		slog.String("player_id", string(player.ID)),
		slog.Bool("guest", true),
	)
	return s.createSession(player.ID, ""), player, nil
}

// RegisterPlayer creates a registered player account and session
func (s *Service) RegisterPlayer(ctx context.Context, username, password, nickname string) (*Session, *model.Player, error) {
	username, err := normalizeUsername(username)
	if err != nil {
		return nil, nil, err
	}
	if utf8.RuneCountInString(password) < passwordMinLength {
		return nil, nil, model.ErrInvalidPassword
	}
	nickname, err = model.NormalizeNickname(nickname)
	if err != nil {
		return nil, nil, err
	}

	_, err = s.storage.GetRegisteredPlayerByUsername(ctx, username)
	if err == nil {
		return nil, nil, model.ErrUsernameTaken
	}
	if !errors.Is(err, model.ErrPlayerNotFound) {
		return nil, nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, nil, err
	}

	now := s.clock.Now()
	player := &model.Player{
		ID:        model.PlayerID(s.generateID("p_")),
		Nickname:  nickname,
		IsGuest:   false,
		CreatedAt: now,
	}
	registered := &model.RegisteredPlayer{
		PlayerID:     player.ID,
		Username:     username,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.storage.CreatePlayer(ctx, player); err != nil {
		return nil, nil, err
	}
	if err := s.storage.CreateRegisteredPlayer(ctx, registered); err != nil {
		// Lost a race for the username; free the nickname again
		if delErr := s.storage.DeletePlayer(ctx, player.ID); delErr != nil {
			s.logger.Error("failed to remove orphaned player",
				slog.String("player_id", string(player.ID)),
				slog.String("error", delErr.Error()),
			)
		}
		return nil, nil, err
	}

	s.logger.Info("player registered",
		slog.String("player_id", string(player.ID)),
		slog.String("username", username),
	)
	return s.createSession(player.ID, username), player, nil
}

// Login authenticates a registered player and creates a session
func (s *Service) Login(ctx context.Context, username, password string) (*Session, *model.Player, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	rp, err := s.storage.GetRegisteredPlayerByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, model.ErrPlayerNotFound) {
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(rp.PasswordHash), []byte(password)); err != nil {
		return nil, nil, ErrInvalidCredentials
	}

	player, err := s.storage.GetPlayer(ctx, rp.PlayerID)
	if err != nil {
		return nil, nil, err
	}

	return s.createSession(player.ID, rp.Username), player, nil
}

// ValidateSession checks if a session token is valid and returns the session
func (s *Service) ValidateSession(token string) (*Session, error) {
	s.mu.RLock()
	session, ok := s.sessions[token]
	s.mu.RUnlock()

	if !ok {
		return nil, ErrInvalidSession
	}

	if s.clock.Now().After(session.ExpiresAt) {
		s.mu.Lock()
		delete(s.sessions, token)
		s.mu.Unlock()
		return nil, ErrInvalidSession
	}

	return session, nil
}

// Logout invalidates the token. A player still waiting in a game session
// is removed from it; one in a game in progress stays put.
func (s *Service) Logout(ctx context.Context, token string) error {
	session, err := s.ValidateSession(token)
	if err != nil {
		return err
	}
	s.InvalidateSession(token)

	if s.leaver == nil {
		return nil
	}
	player, err := s.storage.GetPlayer(ctx, session.PlayerID)
	if err != nil {
		return err
	}
	if !player.InSession() {
		return nil
	}
	err = s.leaver.LeaveSession(ctx, player.SessionCode, player.ID)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, model.ErrState), errors.Is(err, model.ErrNotFound), errors.Is(err, model.ErrNotInSession):
		return nil
	default:
		return err
	}
}

// InvalidateSession removes a session
func (s *Service) InvalidateSession(token string) {
	s.mu.Lock()
	delete(s.sessions, token)
	s.mu.Unlock()
}

// GetPlayer returns the player for a session token
func (s *Service) GetPlayer(ctx context.Context, token string) (*model.Player, error) {
	session, err := s.ValidateSession(token)
	if err != nil {
		return nil, err
	}
	return s.storage.GetPlayer(ctx, session.PlayerID)
}

// IsAdmin reports whether the session belongs to a configured admin account
func (s *Service) IsAdmin(session *Session) bool {
	if session == nil || session.Username == "" {
		return false
	}
	return slices.Contains(s.admins, session.Username)
}

// createSession creates a new session for a player
func (s *Service) createSession(playerID model.PlayerID, username string) *Session {
	token := s.generateID("sess_")
	now := s.clock.Now()

	session := &Session{
		Token:     token,
		PlayerID:  playerID,
		Username:  username,
		CreatedAt: now,
		ExpiresAt: now.Add(s.sessionDuration),
	}

	s.mu.Lock()
	s.sessions[token] = session
	s.mu.Unlock()

	return session
}

// generateID generates a random ID with a prefix
func (s *Service) generateID(prefix string) string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return prefix + base64.RawURLEncoding.EncodeToString(b)
}

// CleanExpiredSessions removes expired sessions (call periodically)
func (s *Service) CleanExpiredSessions() int {
	now := s.clock.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for token, session := range s.sessions {
		if now.After(session.ExpiresAt) {
			delete(s.sessions, token)
			removed++
		}
	}
	return removed
}

func normalizeUsername(username string) (string, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	if len(username) < usernameMinLength || len(username) > usernameMaxLength {
		return "", model.ErrInvalidUsername
	}
	for _, r := range username {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') && r != '_' {
			return "", model.ErrInvalidUsername
		}
	}
	return username, nil
}
