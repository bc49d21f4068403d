// Package scoring resolves segment ownership on the unit interval and prices claims.
//
// Everything here is pure: the same snapshot always produces the same outcome.
package scoring

import (
	"sort"

	"github.com/mcdev12/claimline/go/internal/models"
)

// PlayerResult is one player's outcome for a round.
type PlayerResult struct {
	PlayerID string    `json:"playerId"`
	Name     string    `json:"name"`
	Color    string    `json:"color"`
	Emoji    string    `json:"emoji"`
	Points   []float64 `json:"points"`
	Area     float64   `json:"area"`
	Cost     float64   `json:"cost"`
	Payoff   float64   `json:"payoff"`
}

// Outcome is the scored round. Winner is nil when there are no players.
type Outcome struct {
	Results []PlayerResult `json:"results"`
	Winner  *PlayerResult  `json:"winner"`
}

type claim struct {
	x     float64
	owner string
}

// Score computes per-player area, cost and payoff. Players are given in join order; that order
// breaks ties both between equal claims from different players (earlier joiner owns the segment)
// and between equal payoffs.
// Submissions for ids that are not in players are ignored.
func Score(players []*models.Player, submissions map[string][]float64, costPerPoint float64) Outcome {
	claims := make([]claim, 0)
	for _, p := range players {
		for _, x := range submissions[p.ID] {
			claims = append(claims, claim{x: x, owner: p.ID})
		}
	}
	sort.SliceStable(claims, func(i, j int) bool { return claims[i].x < claims[j].x })

	// Equal claims form one group; the segment up to the next distinct claim goes to the
	// group's first member.
	area := make(map[string]float64, len(players))
	for i := 0; i < len(claims); {
		j := i + 1
		for j < len(claims) && claims[j].x == claims[i].x {
			j++
		}
		end := 1.0
		if j < len(claims) {
			end = claims[j].x
		}
		if width := end - claims[i].x; width > 0 {
			area[claims[i].owner] += width
		}
		i = j
	}

	results := make([]PlayerResult, 0, len(players))
	for _, p := range players {
		pts := append([]float64{}, submissions[p.ID]...)
		cost := costPerPoint * float64(len(pts))
		results = append(results, PlayerResult{
			PlayerID: p.ID,
			Name:     p.Name,
			Color:    p.Color,
			Emoji:    p.Emoji,
			Points:   pts,
			Area:     area[p.ID],
			Cost:     cost,
			Payoff:   area[p.ID] - cost,
		})
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Payoff > results[j].Payoff })

	out := Outcome{Results: results}
	if len(results) > 0 {
		winner := results[0]
		out.Winner = &winner
	}
	return out
}
