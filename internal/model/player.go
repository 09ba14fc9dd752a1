package model

import (
	"strings"
	"time"
	"unicode/utf8"
)

const (
	// NicknameMinLength is the shortest nickname accepted, in characters
	NicknameMinLength = 3
	// NicknameMaxLength is the longest nickname accepted, in characters
	NicknameMaxLength = 20
)

// PlayerID uniquely identifies a player across the system
type PlayerID string

// Player represents a game participant
type Player struct {
	ID          PlayerID
	Nickname    string
	IsGuest     bool        // true for nickname-only players
	SessionCode SessionCode // empty when the player is not in an active session
	CreatedAt   time.Time
}

// InSession reports whether the player currently references a session
func (p *Player) InSession() bool {
	return p.SessionCode != ""
}

// Clone returns a copy of the player
func (p *Player) Clone() *Player {
	c := *p
	return &c
}

// RegisteredPlayer extends Player with authentication data
// Stored separately so password hashes never travel with the player record
type RegisteredPlayer struct {
	PlayerID     PlayerID
	Username     string // login username (immutable)
	PasswordHash string // bcrypt hash
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NormalizeNickname trims surrounding whitespace and validates the length
func NormalizeNickname(nickname string) (string, error) {
	nickname = strings.TrimSpace(nickname)
	n := utf8.RuneCountInString(nickname)
	if n < NicknameMinLength || n > NicknameMaxLength {
		return "", ErrInvalidNickname
	}
	return nickname, nil
}

// NicknameKey is the case-insensitive form used for uniqueness checks
func NicknameKey(nickname string) string {
	return strings.ToLower(strings.TrimSpace(nickname))
}
