package model

import (
	"strings"
	"time"
)

// VoteCategory is the qualitative rating a player gives a submission
type VoteCategory string

const (
	VoteMild      VoteCategory = "mild"
	VoteNormal    VoteCategory = "normal"
	VoteHilarious VoteCategory = "hilarious"
)

var votePoints = map[VoteCategory]int{
	VoteMild:      1,
	VoteNormal:    3,
	VoteHilarious: 10,
}

// legacy names still sent by older clients
var voteAliases = map[string]VoteCategory{
	"suave":  VoteMild,
	"me_rei": VoteHilarious,
}

// ParseVoteCategory resolves a category name, including legacy aliases
func ParseVoteCategory(s string) (VoteCategory, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if alias, ok := voteAliases[s]; ok {
		return alias, nil
	}
	c := VoteCategory(s)
	if _, ok := votePoints[c]; !ok {
		return "", ErrInvalidCategory
	}
	return c, nil
}

// Points returns the score a vote of this category is worth
func (c VoteCategory) Points() int {
	return votePoints[c]
}

// Valid reports whether the category is known
func (c VoteCategory) Valid() bool {
	_, ok := votePoints[c]
	return ok
}

// Vote is one player's rating of another player's submission
type Vote struct {
	ID           string
	SessionCode  SessionCode
	Round        int
	VoterID      PlayerID
	SubmissionID SubmissionID
	Category     VoteCategory
	Points       int
	CreatedAt    time.Time
}
