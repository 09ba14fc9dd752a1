package storage

import (
	"context"

	"github.com/mcoot/makeitmeme/internal/model"
)

// Storage defines the interface for data persistence.
//
// Reads return copies; mutating a returned value never changes stored state.
// Multi-record writes go through Update so they land together or not at all.
type Storage interface {
	// Player operations
	CreatePlayer(ctx context.Context, player *model.Player) error // ErrNicknameTaken when the nickname is in use
	GetPlayer(ctx context.Context, id model.PlayerID) (*model.Player, error)
	GetPlayerByNickname(ctx context.Context, nickname string) (*model.Player, error)
	DeletePlayer(ctx context.Context, id model.PlayerID) error

	// Registered player operations
	CreateRegisteredPlayer(ctx context.Context, rp *model.RegisteredPlayer) error // ErrUsernameTaken when the username is in use
	GetRegisteredPlayer(ctx context.Context, playerID model.PlayerID) (*model.RegisteredPlayer, error)
	GetRegisteredPlayerByUsername(ctx context.Context, username string) (*model.RegisteredPlayer, error)

	// Session operations
	GetSession(ctx context.Context, code model.SessionCode) (*model.Session, error)
	SessionExists(ctx context.Context, code model.SessionCode) (bool, error)
	ListSessionCodes(ctx context.Context) ([]model.SessionCode, error)

	// Submission operations. Round 0 lists every round, ordered by round then creation.
	GetSubmission(ctx context.Context, id model.SubmissionID) (*model.Submission, error)
	ListSubmissions(ctx context.Context, code model.SessionCode, round int) ([]*model.Submission, error)

	// RecordVote stores a vote and adds its points to the submission,
	// returning the new total. ErrDuplicateVote if the voter already rated it.
	RecordVote(ctx context.Context, vote *model.Vote) (int, error)
	ListVotes(ctx context.Context, code model.SessionCode, round int) ([]*model.Vote, error)

	// Update applies the writes staged by fn atomically.
	// Nothing is written if fn returns an error.
	Update(ctx context.Context, fn func(tx Tx) error) error
}

// Tx stages writes inside Update.
// A submission's TotalPoints is owned by RecordVote and is never overwritten here.
type Tx interface {
	SaveSession(session *model.Session)
	DeleteSession(code model.SessionCode) // also removes the session's submissions and votes
	SavePlayer(player *model.Player)
	SaveSubmission(submission *model.Submission)
}
