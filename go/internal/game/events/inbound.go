package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/mcdev12/claimline/go/internal/models"
)

// ErrInvalidPayload is returned when an inbound command fails schema validation.
var ErrInvalidPayload = errors.New("invalid payload")

func missing(field string) error {
	return fmt.Errorf("%w: %s is required", ErrInvalidPayload, field)
}

// CreateRoomRequest is the create_room payload. Unset settings take the server defaults.
type CreateRoomRequest struct {
	Name         string   `json:"name"`
	CostPerPoint *float64 `json:"costPerPoint,omitempty"`
	DurationSec  *float64 `json:"durationSec,omitempty"`
	TotalRounds  *int     `json:"totalRounds,omitempty"`
	PreferredID  string   `json:"preferredId,omitempty"`
}

func (r CreateRoomRequest) Validate() error {
	if r.CostPerPoint != nil && (*r.CostPerPoint <= 0 || math.IsNaN(*r.CostPerPoint)) {
		return fmt.Errorf("%w: costPerPoint must be positive", ErrInvalidPayload)
	}
	if r.DurationSec != nil && (*r.DurationSec <= 0 || math.IsNaN(*r.DurationSec)) {
		return fmt.Errorf("%w: durationSec must be positive", ErrInvalidPayload)
	}
	if r.DurationSec != nil && *r.DurationSec > models.MaxDurationSec {
		return fmt.Errorf("%w: durationSec must be at most %d", ErrInvalidPayload, models.MaxDurationSec)
	}
	if r.TotalRounds != nil && *r.TotalRounds <= 0 {
		return fmt.Errorf("%w: totalRounds must be positive", ErrInvalidPayload)
	}
	return nil
}

// JoinRoomRequest is the join_room payload. An empty room id joins the practice room.
type JoinRoomRequest struct {
	RoomID string `json:"roomId"`
	Name   string `json:"name"`
}

func (r JoinRoomRequest) Validate() error { return nil }

// RoomRequest carries only a room id: ready_to_start, start_game, ready_next and leave_room.
type RoomRequest struct {
	RoomID string `json:"roomId"`
}

func (r RoomRequest) Validate() error {
	if strings.TrimSpace(r.RoomID) == "" {
		return missing("roomId")
	}
	return nil
}

// SubmitPointsRequest is the submit_points payload. Points stay raw so malformed entries can be
// coerced instead of failing the whole command. ClientSentAt is the client clock in epoch ms.
type SubmitPointsRequest struct {
	RoomID       string          `json:"roomId"`
	Points       json.RawMessage `json:"points"`
	ClientSentAt *float64        `json:"clientSentAt,omitempty"`
}

func (r SubmitPointsRequest) Validate() error {
	if strings.TrimSpace(r.RoomID) == "" {
		return missing("roomId")
	}
	return nil
}

// SetNameRequest is the set_name payload.
type SetNameRequest struct {
	RoomID string `json:"roomId"`
	Name   string `json:"name"`
}

func (r SetNameRequest) Validate() error {
	if strings.TrimSpace(r.RoomID) == "" {
		return missing("roomId")
	}
	return nil
}
