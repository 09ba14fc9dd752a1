// Package apierr maps domain errors to JSON HTTP error responses.
package apierr

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mcoot/makeitmeme/internal/model"
	"github.com/mcoot/makeitmeme/internal/services/auth"
)

// APIError represents an API error response
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse wraps an APIError
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// Common error codes
const (
	CodeInvalidRequest       = "INVALID_REQUEST"
	CodeInvalidNickname      = "INVALID_NICKNAME"
	CodeInvalidUsername      = "INVALID_USERNAME"
	CodeInvalidPassword      = "INVALID_PASSWORD"
	CodeInvalidSessionCode   = "INVALID_SESSION_CODE"
	CodeInvalidCategory      = "INVALID_CATEGORY"
	CodeInvalidTexts         = "INVALID_TEXTS"
	CodeInvalidRound         = "INVALID_ROUND"
	CodeValidationFailed     = "VALIDATION_FAILED"
	CodeUnauthorized         = "UNAUTHORIZED"
	CodeInvalidCredentials   = "INVALID_CREDENTIALS"
	CodeNotCreator           = "NOT_CREATOR"
	CodeNotInSession         = "NOT_IN_SESSION"
	CodeNotOwner             = "NOT_OWNER"
	CodeNotAdmin             = "NOT_ADMIN"
	CodeForbidden            = "FORBIDDEN"
	CodePlayerNotFound       = "PLAYER_NOT_FOUND"
	CodeSessionNotFound      = "SESSION_NOT_FOUND"
	CodeSubmissionNotFound   = "SUBMISSION_NOT_FOUND"
	CodeTemplateNotFound     = "TEMPLATE_NOT_FOUND"
	CodeNotFound             = "NOT_FOUND"
	CodeNicknameTaken        = "NICKNAME_TAKEN"
	CodeUsernameTaken        = "USERNAME_TAKEN"
	CodeSessionFull          = "SESSION_FULL"
	CodeAlreadyInSession     = "ALREADY_IN_SESSION"
	CodeDuplicateVote        = "DUPLICATE_VOTE"
	CodeSelfVote             = "SELF_VOTE"
	CodeConflict             = "CONFLICT"
	CodeSessionNotWaiting    = "SESSION_NOT_WAITING"
	CodeSessionNotStarted    = "SESSION_NOT_STARTED"
	CodeSessionNotFinished   = "SESSION_NOT_FINISHED"
	CodeInsufficientPlayers  = "INSUFFICIENT_PLAYERS"
	CodeRoundInProgress      = "ROUND_IN_PROGRESS"
	CodeRoundClosed          = "ROUND_CLOSED"
	CodeVotingClosed         = "VOTING_CLOSED"
	CodeSubmissionNotVotable = "SUBMISSION_NOT_VOTABLE"
	CodeNoTemplates          = "NO_TEMPLATES"
	CodePlayerBusy           = "PLAYER_BUSY"
	CodeInvalidState         = "INVALID_STATE"
	CodeCodesExhausted       = "SESSION_CODES_EXHAUSTED"
	CodeInternalError        = "INTERNAL_ERROR"
)

// httpError combines an HTTP status code with an APIError
type httpError struct {
	status   int
	apiError APIError
}

// Error implements error interface
func (e *httpError) Error() string {
	return e.apiError.Message
}

// mapping ties a domain error to its status and code.
// The domain error's own message is shown to the client.
type mapping struct {
	err    error
	status int
	code   string
}

// specific errors, checked before their kind
var specific = []mapping{
	{model.ErrInvalidNickname, http.StatusBadRequest, CodeInvalidNickname},
	{model.ErrInvalidUsername, http.StatusBadRequest, CodeInvalidUsername},
	{model.ErrInvalidPassword, http.StatusBadRequest, CodeInvalidPassword},
	{model.ErrInvalidCode, http.StatusBadRequest, CodeInvalidSessionCode},
	{model.ErrInvalidCategory, http.StatusBadRequest, CodeInvalidCategory},
	{model.ErrInvalidTexts, http.StatusBadRequest, CodeInvalidTexts},
	{model.ErrInvalidRound, http.StatusBadRequest, CodeInvalidRound},

	{model.ErrNotCreator, http.StatusForbidden, CodeNotCreator},
	{model.ErrNotInSession, http.StatusForbidden, CodeNotInSession},
	{model.ErrNotOwner, http.StatusForbidden, CodeNotOwner},
	{model.ErrNotAdmin, http.StatusForbidden, CodeNotAdmin},

	{model.ErrPlayerNotFound, http.StatusNotFound, CodePlayerNotFound},
	{model.ErrSessionNotFound, http.StatusNotFound, CodeSessionNotFound},
	{model.ErrSubmissionNotFound, http.StatusNotFound, CodeSubmissionNotFound},
	{model.ErrTemplateNotFound, http.StatusNotFound, CodeTemplateNotFound},

	{model.ErrNicknameTaken, http.StatusConflict, CodeNicknameTaken},
	{model.ErrUsernameTaken, http.StatusConflict, CodeUsernameTaken},
	{model.ErrSessionFull, http.StatusConflict, CodeSessionFull},
	{model.ErrAlreadyInSession, http.StatusConflict, CodeAlreadyInSession},
	{model.ErrDuplicateVote, http.StatusConflict, CodeDuplicateVote},
	{model.ErrSelfVote, http.StatusConflict, CodeSelfVote},

	{model.ErrSessionNotWaiting, http.StatusConflict, CodeSessionNotWaiting},
	{model.ErrSessionNotStarted, http.StatusConflict, CodeSessionNotStarted},
	{model.ErrSessionNotFinished, http.StatusConflict, CodeSessionNotFinished},
	{model.ErrInsufficientPlayers, http.StatusConflict, CodeInsufficientPlayers},
	{model.ErrRoundInProgress, http.StatusConflict, CodeRoundInProgress},
	{model.ErrRoundClosed, http.StatusConflict, CodeRoundClosed},
	{model.ErrVotingClosed, http.StatusConflict, CodeVotingClosed},
	{model.ErrSubmissionNotVotable, http.StatusConflict, CodeSubmissionNotVotable},
	{model.ErrNoTemplates, http.StatusConflict, CodeNoTemplates},
	{model.ErrPlayerBusy, http.StatusConflict, CodePlayerBusy},
}

// kinds is the fallback for domain errors without a specific code
var kinds = []mapping{
	{model.ErrValidation, http.StatusBadRequest, CodeValidationFailed},
	{model.ErrAuthorization, http.StatusForbidden, CodeForbidden},
	{model.ErrNotFound, http.StatusNotFound, CodeNotFound},
	{model.ErrConflict, http.StatusConflict, CodeConflict},
	{model.ErrState, http.StatusConflict, CodeInvalidState},
}

// WriteError writes an error response to the response writer
func WriteError(w http.ResponseWriter, err error) {
	he := toHTTPError(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(he.status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: he.apiError})
}

// Status returns the HTTP status an error is reported with
func Status(err error) int {
	return toHTTPError(err).status
}

// toHTTPError converts an error to an httpError
func toHTTPError(err error) *httpError {
	var he *httpError
	if errors.As(err, &he) {
		return he
	}

	for _, m := range specific {
		if errors.Is(err, m.err) {
			return &httpError{m.status, APIError{m.code, m.err.Error()}}
		}
	}

	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		return &httpError{http.StatusUnauthorized, APIError{CodeInvalidCredentials, "Invalid username or password"}}
	case errors.Is(err, auth.ErrInvalidSession):
		return &httpError{http.StatusUnauthorized, APIError{CodeUnauthorized, "Invalid or expired session"}}
	case errors.Is(err, model.ErrCodeSpaceExhausted):
		return &httpError{http.StatusServiceUnavailable, APIError{CodeCodesExhausted, "No session codes available, try again"}}
	}

	// Unlisted domain errors fall back to their kind
	var domainErr *model.Error
	if errors.As(err, &domainErr) {
		for _, m := range kinds {
			if errors.Is(err, m.err) {
				return &httpError{m.status, APIError{m.code, domainErr.Error()}}
			}
		}
	}

	return &httpError{http.StatusInternalServerError, APIError{CodeInternalError, "Internal server error"}}
}

// NewInvalidRequestError creates an invalid request error
func NewInvalidRequestError(message string) error {
	return &httpError{http.StatusBadRequest, APIError{CodeInvalidRequest, message}}
}

// NewUnauthorizedError creates an unauthorized error
func NewUnauthorizedError() error {
	return &httpError{http.StatusUnauthorized, APIError{CodeUnauthorized, "Authentication required"}}
}

// NewInternalError creates an internal server error
func NewInternalError() error {
	return &httpError{http.StatusInternalServerError, APIError{CodeInternalError, "Internal server error"}}
}
