package storage

import (
	"cmp"
	"slices"

	"github.com/mcoot/makeitmeme/internal/model"
)

// SortSubmissions orders submissions by round, then creation time, then ID
func SortSubmissions(subs []*model.Submission) {
	slices.SortFunc(subs, func(a, b *model.Submission) int {
		return cmp.Or(
			cmp.Compare(a.Round, b.Round),
			a.CreatedAt.Compare(b.CreatedAt),
			cmp.Compare(a.ID, b.ID),
		)
	})
}

// SortVotes orders votes by creation time, then ID
func SortVotes(votes []*model.Vote) {
	slices.SortFunc(votes, func(a, b *model.Vote) int {
		return cmp.Or(
			a.CreatedAt.Compare(b.CreatedAt),
			cmp.Compare(a.ID, b.ID),
		)
	})
}
