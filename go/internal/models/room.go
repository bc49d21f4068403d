package models

// RoomStatus defines where a room is in its round lifecycle.
type RoomStatus string

const (
	RoomStatusLobby     RoomStatus = "lobby"
	RoomStatusCountdown RoomStatus = "countdown"
	RoomStatusRunning   RoomStatus = "running"
	RoomStatusRevealed  RoomStatus = "revealed"
	RoomStatusFinished  RoomStatus = "finished"
)

// Active reports whether a round is being counted down or played.
func (s RoomStatus) Active() bool {
	return s == RoomStatusCountdown || s == RoomStatusRunning
}

// RoomSettings are fixed when a room is created and copied into every broadcast.
type RoomSettings struct {
	CostPerPoint float64 `json:"costPerPoint"`
	DurationSec  float64 `json:"durationSec"`
	TotalRounds  int     `json:"totalRounds"`
}

// MaxDurationSec bounds a round's length.
const MaxDurationSec = 24 * 60 * 60

// DefaultRoomSettings returns the settings used when a creator leaves a field unset.
func DefaultRoomSettings() RoomSettings {
	return RoomSettings{
		CostPerPoint: 0.05,
		DurationSec:  10,
		TotalRounds:  3,
	}
}

// PlayerTotal is a player's cumulative payoff across the rounds played so far.
type PlayerTotal struct {
	PlayerID    string  `json:"playerId"`
	Name        string  `json:"name"`
	Color       string  `json:"color"`
	Emoji       string  `json:"emoji"`
	TotalPayoff float64 `json:"totalPayoff"`
}

// RoomSummary describes a joinable room for listings.
type RoomSummary struct {
	RoomID      string       `json:"roomId"`
	Status      RoomStatus   `json:"status"`
	Players     int          `json:"players"`
	HostName    string       `json:"hostName"`
	Settings    RoomSettings `json:"settings"`
	CreatedAtMs int64        `json:"createdAt"`
}
