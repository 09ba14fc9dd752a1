package model

import (
	"slices"
	"time"
)

const (
	// SessionCodeLength is the length of generated session codes
	SessionCodeLength = 6
	// SessionCodeAlphabet is the set of characters session codes are drawn from
	SessionCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// SessionCode is the human-readable join code of a session
type SessionCode string

// Valid reports whether the code has the expected shape
func (c SessionCode) Valid() bool {
	if len(c) != SessionCodeLength {
		return false
	}
	for _, r := range c {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}

// SessionStatus represents where a session is in its lifecycle
type SessionStatus string

const (
	SessionWaiting   SessionStatus = "waiting"   // accepting players
	SessionStarted   SessionStatus = "started"   // rounds in progress
	SessionFinished  SessionStatus = "finished"  // all rounds played
	SessionCompleted SessionStatus = "completed" // archived after finishing
	SessionCancelled SessionStatus = "cancelled" // abandoned before starting
)

// RoundPhase is the sub-phase of a started session's current round
type RoundPhase string

const (
	PhasePlaying RoundPhase = "playing"
	PhaseVoting  RoundPhase = "voting"
)

// SessionConfig holds the tunable rules of a session
type SessionConfig struct {
	MaxPlayers        int
	Rounds            int
	RoundDuration     time.Duration
	TemplatesPerRound int
	AutoStartAfter    time.Duration // waiting sessions with enough players start on their own
	CancelAfter       time.Duration // waiting sessions with one player are dropped
}

// DefaultSessionConfig returns the standard game rules
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		MaxPlayers:        15,
		Rounds:            3,
		RoundDuration:     120 * time.Second,
		TemplatesPerRound: 5,
		AutoStartAfter:    150 * time.Second,
		CancelAfter:       30 * time.Second,
	}
}

// Validate checks the configuration is playable
func (c SessionConfig) Validate() error {
	if c.MaxPlayers < 2 || c.Rounds < 1 || c.TemplatesPerRound < 1 {
		return ErrInvalidConfig
	}
	if c.RoundDuration <= 0 || c.AutoStartAfter <= 0 || c.CancelAfter <= 0 {
		return ErrInvalidConfig
	}
	return nil
}

// Session is one game instance, identified by its join code
type Session struct {
	Code           SessionCode
	Status         SessionStatus
	CreatorID      PlayerID
	PlayerIDs      []PlayerID // join order
	Departed       []PlayerID // players who left after the session finished
	CurrentRound   int
	Phase          RoundPhase
	RoundStartTime time.Time
	RoundEndedAt   time.Time
	Config         SessionConfig
	StartedAt      time.Time
	FinishedAt     time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// IsActive reports whether players in this session are considered occupied
func (s *Session) IsActive() bool {
	return s.Status == SessionWaiting || s.Status == SessionStarted
}

// HasPlayer reports whether the player is a member of the session
func (s *Session) HasPlayer(id PlayerID) bool {
	return slices.Contains(s.PlayerIDs, id)
}

// IsCreator reports whether the player created the session
func (s *Session) IsCreator(id PlayerID) bool {
	return s.CreatorID == id
}

// RemovePlayer drops a member, handing the creator role to the next player
// in join order when the creator leaves
func (s *Session) RemovePlayer(id PlayerID) {
	s.PlayerIDs = slices.DeleteFunc(s.PlayerIDs, func(p PlayerID) bool { return p == id })
	if s.CreatorID == id && len(s.PlayerIDs) > 0 {
		s.CreatorID = s.PlayerIDs[0]
	}
}

// MarkDeparted records that a member has left a finished session.
// Returns true once every member has departed.
func (s *Session) MarkDeparted(id PlayerID) bool {
	if !slices.Contains(s.Departed, id) {
		s.Departed = append(s.Departed, id)
	}
	for _, p := range s.PlayerIDs {
		if !slices.Contains(s.Departed, p) {
			return false
		}
	}
	return true
}

// WaitingTimeRemaining is the time left before an automatic start
func (s *Session) WaitingTimeRemaining(now time.Time) time.Duration {
	return max(0, s.Config.AutoStartAfter-now.Sub(s.CreatedAt))
}

// RoundTimeRemaining is the time left for submissions in the current round
func (s *Session) RoundTimeRemaining(now time.Time) time.Duration {
	return max(0, s.Config.RoundDuration-now.Sub(s.RoundStartTime))
}

// RoundExpired reports whether the current round's submission window has elapsed
func (s *Session) RoundExpired(now time.Time) bool {
	return now.Sub(s.RoundStartTime) >= s.Config.RoundDuration
}

// IsLastRound reports whether the current round is the final one
func (s *Session) IsLastRound() bool {
	return s.CurrentRound >= s.Config.Rounds
}

// Clone returns a deep copy of the session
func (s *Session) Clone() *Session {
	c := *s
	c.PlayerIDs = slices.Clone(s.PlayerIDs)
	c.Departed = slices.Clone(s.Departed)
	return &c
}
