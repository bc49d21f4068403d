package events

import "github.com/mcdev12/claimline/go/internal/models"

// ErrorAck is the acknowledgment of a rejected command. Error is the machine readable kind.
type ErrorAck struct {
	OK      bool   `json:"ok"`
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// OKAck acknowledges a command without extra fields.
type OKAck struct {
	OK bool `json:"ok"`
}

// RoomAck answers create_room and join_room.
type RoomAck struct {
	OK       bool                `json:"ok"`
	RoomID   string              `json:"roomId"`
	Settings models.RoomSettings `json:"settings"`
}

// ReadyAck answers ready_to_start and ready_next.
type ReadyAck struct {
	OK           bool   `json:"ok"`
	ReadyCount   int    `json:"readyCount"`
	TotalPlayers int    `json:"totalPlayers"`
	Info         string `json:"info,omitempty"`
}

// SubmitAck echoes the sanitized claims.
type SubmitAck struct {
	OK     bool      `json:"ok"`
	Points []float64 `json:"points"`
}

// SetNameAck answers set_name.
type SetNameAck struct {
	OK    bool   `json:"ok"`
	Name  string `json:"name"`
	Emoji string `json:"emoji"`
}
