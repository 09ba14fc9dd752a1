// Package distribution assigns caption templates to the players of a round.
package distribution

import (
	"slices"

	"github.com/mcoot/makeitmeme/internal/dependencies/random"
	"github.com/mcoot/makeitmeme/internal/model"
)

// Assignment gives one template to one player for a round
type Assignment struct {
	PlayerID   model.PlayerID
	TemplateID model.TemplateID
}

// Distributor computes template assignments
type Distributor struct {
	random random.Random
}

// New creates a Distributor drawing from the given random source
func New(random random.Random) *Distributor {
	return &Distributor{random: random}
}

// PerPlayer is the number of distinct templates each player can receive
func PerPlayer(templates, players, perRound int) int {
	if players == 0 {
		return 0
	}
	return min(perRound, templates/players)
}

// Assign hands out templates for a round. When the pool is large enough each
// player gets a disjoint block of a shuffled copy, so no player sees a template
// twice. Otherwise every player gets one template drawn with replacement.
// Assignments are grouped by player, in player order.
func (d *Distributor) Assign(templates []model.Template, players []model.PlayerID, perRound int) ([]Assignment, error) {
	if len(players) == 0 {
		return nil, nil
	}
	if len(templates) == 0 {
		return nil, model.ErrNoTemplates
	}

	perPlayer := PerPlayer(len(templates), len(players), perRound)
	if perPlayer < 1 {
		return d.sample(templates, players), nil
	}

	shuffled := slices.Clone(templates)
	// Fisher-Yates
	for i := len(shuffled) - 1; i > 0; i-- {
		j := d.random.Intn(i + 1)
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	}

	assignments := make([]Assignment, 0, perPlayer*len(players))
	for i, player := range players {
		for _, t := range shuffled[i*perPlayer : (i+1)*perPlayer] {
			assignments = append(assignments, Assignment{PlayerID: player, TemplateID: t.ID})
		}
	}
	return assignments, nil
}

func (d *Distributor) sample(templates []model.Template, players []model.PlayerID) []Assignment {
	assignments := make([]Assignment, 0, len(players))
	for _, player := range players {
		t := templates[d.random.Intn(len(templates))]
		assignments = append(assignments, Assignment{PlayerID: player, TemplateID: t.ID})
	}
	return assignments
}
