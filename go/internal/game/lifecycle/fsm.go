package lifecycle

import (
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/claimline/go/internal/game/registry"
	"github.com/mcdev12/claimline/go/internal/models"
)

// transitions lists the legal status changes driven by the round engine. Returning to the
// lobby goes through registry.ResetToLobby and is allowed from anywhere.
var transitions = map[models.RoomStatus][]models.RoomStatus{
	models.RoomStatusLobby:     {models.RoomStatusCountdown},
	models.RoomStatusCountdown: {models.RoomStatusRunning},
	models.RoomStatusRunning:   {models.RoomStatusRevealed},
	models.RoomStatusRevealed:  {models.RoomStatusCountdown, models.RoomStatusFinished},
	models.RoomStatusFinished:  {},
}

func canTransition(from, to models.RoomStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// transition cancels the room's timers and moves it to status to. Illegal moves are logged
// and ignored.
func (e *Engine) transition(room *registry.Room, to models.RoomStatus) bool {
	from := room.Status
	if !canTransition(from, to) {
		log.Warn().
			Str("room_id", room.ID).
			Str("from", string(from)).
			Str("to", string(to)).
			Msg("illegal room transition ignored")
		return false
	}
	room.CancelTimers()
	room.Status = to
	log.Debug().
		Str("room_id", room.ID).
		Str("from", string(from)).
		Str("to", string(to)).
		Int("round", room.CurrentRound).
		Msg("room transition")
	return true
}
