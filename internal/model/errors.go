package model

import "errors"

// Error kinds. Every domain error below unwraps to exactly one of these,
// so callers can match a specific failure or a whole category.
var (
	ErrValidation    = errors.New("validation failed")
	ErrAuthorization = errors.New("not authorized")
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrState         = errors.New("invalid state")
)

// Error is a domain error tagged with its kind
type Error struct {
	kind error
	msg  string
}

func newError(kind error, msg string) *Error {
	return &Error{kind: kind, msg: msg}
}

// Error implements the error interface
func (e *Error) Error() string {
	return e.msg
}

// Unwrap returns the error kind
func (e *Error) Unwrap() error {
	return e.kind
}

// Kind returns the kind sentinel the error belongs to
func (e *Error) Kind() error {
	return e.kind
}

var (
	// Validation errors
	ErrInvalidNickname = newError(ErrValidation, "nickname must be between 3 and 20 characters")
	ErrInvalidCode     = newError(ErrValidation, "session code must be 6 letters or digits")
	ErrInvalidCategory = newError(ErrValidation, "vote category must be mild, normal or hilarious")
	ErrInvalidTexts    = newError(ErrValidation, "submission texts are invalid for this template")
	ErrInvalidTemplate = newError(ErrValidation, "template layout is invalid")
	ErrInvalidConfig   = newError(ErrValidation, "session configuration is invalid")
	ErrInvalidRound    = newError(ErrValidation, "round has not been played")
	ErrInvalidUsername = newError(ErrValidation, "username must be 3 to 20 letters, digits or underscores")
	ErrInvalidPassword = newError(ErrValidation, "password must be at least 8 characters")

	// Authorization errors
	ErrNotCreator   = newError(ErrAuthorization, "only the session creator can do this")
	ErrNotInSession = newError(ErrAuthorization, "player is not in this session")
	ErrNotOwner     = newError(ErrAuthorization, "submission belongs to another player")
	ErrNotAdmin     = newError(ErrAuthorization, "admin access required")

	// Not found errors
	ErrPlayerNotFound     = newError(ErrNotFound, "player not found")
	ErrSessionNotFound    = newError(ErrNotFound, "session not found")
	ErrSubmissionNotFound = newError(ErrNotFound, "submission not found")
	ErrTemplateNotFound   = newError(ErrNotFound, "template not found")

	// Conflict errors
	ErrNicknameTaken    = newError(ErrConflict, "nickname is already in use")
	ErrUsernameTaken    = newError(ErrConflict, "username is already in use")
	ErrSessionFull      = newError(ErrConflict, "session is full")
	ErrAlreadyInSession = newError(ErrConflict, "player is already in another active session")
	ErrDuplicateVote    = newError(ErrConflict, "player has already voted for this submission")
	ErrSelfVote         = newError(ErrConflict, "players cannot vote for their own submission")

	// State errors
	ErrSessionNotWaiting    = newError(ErrState, "session is not waiting for players")
	ErrSessionNotStarted    = newError(ErrState, "session has not started")
	ErrSessionNotFinished   = newError(ErrState, "session has not finished")
	ErrInsufficientPlayers  = newError(ErrState, "at least 2 players are needed to start")
	ErrRoundInProgress      = newError(ErrState, "round is still in progress")
	ErrRoundClosed          = newError(ErrState, "round is no longer accepting submissions")
	ErrVotingClosed         = newError(ErrState, "voting is not open for this round")
	ErrSubmissionNotVotable = newError(ErrState, "submission is not part of the current vote")
	ErrNoTemplates          = newError(ErrState, "no active templates available")
	ErrPlayerBusy           = newError(ErrState, "player cannot leave a session in progress")
)

// ErrCodeSpaceExhausted is returned when no free session code could be drawn
var ErrCodeSpaceExhausted = errors.New("could not allocate a free session code")
