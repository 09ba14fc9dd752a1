package storage

import "github.com/mcoot/makeitmeme/internal/model"

// OpKind identifies a staged write
type OpKind int

const (
	OpSaveSession OpKind = iota
	OpDeleteSession
	OpSavePlayer
	OpSaveSubmission
)

// Op is a single staged write. Only the field matching Kind is set.
type Op struct {
	Kind       OpKind
	Session    *model.Session
	Code       model.SessionCode
	Player     *model.Player
	Submission *model.Submission
}

// Batch is a Tx that records writes in order for a backend to apply
type Batch struct {
	ops []Op
}

// Ensure Batch implements Tx
var _ Tx = (*Batch)(nil)

// NewBatch creates an empty batch
func NewBatch() *Batch {
	return &Batch{}
}

// Ops returns the staged writes in the order they were made
func (b *Batch) Ops() []Op {
	return b.ops
}

func (b *Batch) SaveSession(session *model.Session) {
	b.ops = append(b.ops, Op{Kind: OpSaveSession, Session: session.Clone(), Code: session.Code})
}

func (b *Batch) DeleteSession(code model.SessionCode) {
	b.ops = append(b.ops, Op{Kind: OpDeleteSession, Code: code})
}

func (b *Batch) SavePlayer(player *model.Player) {
	b.ops = append(b.ops, Op{Kind: OpSavePlayer, Player: player.Clone()})
}

func (b *Batch) SaveSubmission(submission *model.Submission) {
	b.ops = append(b.ops, Op{Kind: OpSaveSubmission, Submission: submission.Clone(), Code: submission.SessionCode})
}
