package model

import (
	"time"
	"unicode/utf8"
)

// MaxTextLength is the longest caption accepted per text box, in characters
const MaxTextLength = 200

// SubmissionID identifies a player's instance of a template
type SubmissionID string

// Submission is a player's captioned instance of a template for one round.
// One is created per distributed template; the player finalizes one of them.
type Submission struct {
	ID          SubmissionID
	SessionCode SessionCode
	PlayerID    PlayerID
	TemplateID  TemplateID
	Round       int
	Texts       [MaxTextBoxes]string
	Selected    bool // true once the player has submitted it
	TotalPoints int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Clone returns a copy of the submission
func (s *Submission) Clone() *Submission {
	c := *s
	return &c
}

// ValidateTexts checks captions against the number of boxes in use.
// At least one box must be filled.
func ValidateTexts(texts []string, boxes int) ([MaxTextBoxes]string, error) {
	var out [MaxTextBoxes]string
	if len(texts) == 0 || len(texts) > MaxTextBoxes {
		return out, ErrInvalidTexts
	}
	filled := false
	for i, text := range texts {
		if utf8.RuneCountInString(text) > MaxTextLength {
			return out, ErrInvalidTexts
		}
		if text == "" {
			continue
		}
		if i >= boxes {
			return out, ErrInvalidTexts
		}
		out[i] = text
		filled = true
	}
	if !filled {
		return out, ErrInvalidTexts
	}
	return out, nil
}
