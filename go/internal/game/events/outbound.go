package events

import (
	"github.com/mcdev12/claimline/go/internal/game/scoring"
	"github.com/mcdev12/claimline/go/internal/models"
)

// LobbyPayload is broadcast whenever the roster of a lobby changes.
type LobbyPayload struct {
	RoomID       string                 `json:"roomId"`
	Status       models.RoomStatus      `json:"status"`
	HostID       string                 `json:"hostId"`
	Players      []models.PlayerSummary `json:"players"`
	Settings     models.RoomSettings    `json:"settings"`
	CurrentRound int                    `json:"currentRound"`
	TotalRounds  int                    `json:"totalRounds"`
}

// ReadyCountPayload is used by both ready_to_start_status and ready_status.
type ReadyCountPayload struct {
	ReadyCount   int `json:"readyCount"`
	TotalPlayers int `json:"totalPlayers"`
}

// CountdownPayload is broadcast once per second before a round starts.
type CountdownPayload struct {
	Countdown int `json:"countdown"`
}

// GameStartedPayload opens a round. Times are epoch milliseconds.
type GameStartedPayload struct {
	StartedAt    int64               `json:"startedAt"`
	RevealAt     int64               `json:"revealAt"`
	Settings     models.RoomSettings `json:"settings"`
	CurrentRound int                 `json:"currentRound"`
	TotalRounds  int                 `json:"totalRounds"`
}

// ResultsPayload closes a round.
type ResultsPayload struct {
	Results      []scoring.PlayerResult `json:"results"`
	Winner       *scoring.PlayerResult  `json:"winner"`
	Settings     models.RoomSettings    `json:"settings"`
	CurrentRound int                    `json:"currentRound"`
	TotalRounds  int                    `json:"totalRounds"`
	Totals       []models.PlayerTotal   `json:"totals"`
}

// MatchFinishedPayload carries the final standings.
type MatchFinishedPayload struct {
	Totals      []models.PlayerTotal `json:"totals"`
	TotalRounds int                  `json:"totalRounds"`
	Winner      *models.PlayerTotal  `json:"winner"`
}

// SubmittedPayload confirms an accepted submission to its sender only.
type SubmittedPayload struct {
	RoomID string    `json:"roomId"`
	Points []float64 `json:"points"`
}
