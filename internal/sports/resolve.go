// Package sports looks up scheduled and finished games for a date and
// normalizes them into model.EventSummary values.
package sports

import (
	"github.com/atmx/bet-consensus/internal/model"
)

// Game statuses reported by the upstream API.
const (
	StatusScheduled = "Scheduled"
	StatusFinished  = "Finished"
)

// Game is one game as returned by the upstream API.
type Game struct {
	ID   int64 `json:"id"`
	Date struct {
		Start string `json:"start"`
	} `json:"date"`
	Teams struct {
		Visitors Team `json:"visitors"`
		Home     Team `json:"home"`
	} `json:"teams"`
	Status struct {
		Long string `json:"long"`
	} `json:"status"`
	Scores *Scores `json:"scores,omitempty"`
}

type Team struct {
	Name string `json:"name"`
}

type Scores struct {
	Visitors Score `json:"visitors"`
	Home     Score `json:"home"`
}

type Score struct {
	Points int `json:"points"`
}

// Resolve converts raw games into summaries. Scheduled games get a TBD
// winner. Finished games are won by the side with strictly more points; a
// tied or unscored finished game is reported as TBD. Games in any other
// status are dropped.
func Resolve(games []Game) []model.EventSummary {
	results := make([]model.EventSummary, 0, len(games))
	for _, g := range games {
		var winner string
		switch g.Status.Long {
		case StatusScheduled:
			winner = model.TBD
		case StatusFinished:
			winner = finishedWinner(g)
		default:
			continue
		}
		results = append(results, model.EventSummary{
			ID:           g.ID,
			Date:         g.Date.Start,
			ParticipantA: g.Teams.Visitors.Name,
			ParticipantB: g.Teams.Home.Name,
			Winner:       winner,
		})
	}
	return results
}

func finishedWinner(g Game) string {
	var visitors, home int
	if g.Scores != nil {
		visitors = g.Scores.Visitors.Points
		home = g.Scores.Home.Points
	}
	switch {
	case visitors > home:
		return g.Teams.Visitors.Name
	case home > visitors:
		return g.Teams.Home.Name
	default:
		return model.TBD
	}
}
