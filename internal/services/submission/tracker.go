// Package submission tracks which players have finalized an entry for a round.
package submission

import (
	"context"
	"errors"

	"github.com/mcoot/makeitmeme/internal/dependencies/clock"
	"github.com/mcoot/makeitmeme/internal/model"
	"github.com/mcoot/makeitmeme/internal/storage"
)

// TemplateLookup resolves the layout of a template
type TemplateLookup interface {
	Template(ctx context.Context, id model.TemplateID) (model.Template, error)
}

// Tracker answers submission progress questions and prepares submit writes
type Tracker struct {
	storage   storage.Storage
	templates TemplateLookup
	clock     clock.Clock
}

// New creates a Tracker
func New(storage storage.Storage, templates TemplateLookup, clock clock.Clock) *Tracker {
	return &Tracker{
		storage:   storage,
		templates: templates,
		clock:     clock,
	}
}

// Count returns the number of finalized submissions for a round
func (t *Tracker) Count(ctx context.Context, code model.SessionCode, round int) (int, error) {
	subs, err := t.storage.ListSubmissions(ctx, code, round)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, sub := range subs {
		if sub.Selected {
			count++
		}
	}
	return count, nil
}

// AllSubmitted reports whether every current player has submitted for the
// session's current round, along with the submitted count
func (t *Tracker) AllSubmitted(ctx context.Context, session *model.Session) (bool, int, error) {
	count, err := t.Count(ctx, session.Code, session.CurrentRound)
	if err != nil {
		return false, 0, err
	}
	return len(session.PlayerIDs) > 0 && count >= len(session.PlayerIDs), count, nil
}

// Prepare validates a submit and returns the submissions to save. The chosen
// submission is finalized with the texts; any other submission the player had
// finalized this round is cleared, so a player holds one entry per round.
func (t *Tracker) Prepare(
	ctx context.Context,
	session *model.Session,
	playerID model.PlayerID,
	submissionID model.SubmissionID,
	texts []string,
) ([]*model.Submission, error) {
	target, err := t.storage.GetSubmission(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	if target.SessionCode != session.Code || target.Round != session.CurrentRound {
		return nil, model.ErrSubmissionNotFound
	}
	if target.PlayerID != playerID {
		return nil, model.ErrNotOwner
	}

	boxes := model.MaxTextBoxes
	tpl, err := t.templates.Template(ctx, target.TemplateID)
	switch {
	case err == nil:
		boxes = tpl.NumTextBoxes
	case !errors.Is(err, model.ErrTemplateNotFound):
		return nil, err
	}
	validated, err := model.ValidateTexts(texts, boxes)
	if err != nil {
		return nil, err
	}

	now := t.clock.Now()
	target.Texts = validated
	target.Selected = true
	target.UpdatedAt = now
	writes := []*model.Submission{target}

	subs, err := t.storage.ListSubmissions(ctx, session.Code, session.CurrentRound)
	if err != nil {
		return nil, err
	}
	for _, sub := range subs {
		if sub.PlayerID == playerID && sub.ID != target.ID && sub.Selected {
			sub.Selected = false
			sub.UpdatedAt = now
			writes = append(writes, sub)
		}
	}
	return writes, nil
}
