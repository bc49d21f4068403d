package lifecycle

import (
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/claimline/go/internal/game/registry"
)

// arm schedules fn on the room's kind slot, replacing the timer already there. Must be called
// with e.mu held. When the timer fires, fn runs under e.mu only if the room is still live, its
// epoch has not moved and the slot still holds this timer.
func (e *Engine) arm(room *registry.Room, kind registry.TimerKind, d time.Duration, fn func(*registry.Room)) {
	if d < 0 {
		d = 0
	}
	roomID := room.ID
	epoch := room.Epoch()

	var timer clockwork.Timer
	timer = e.clock.AfterFunc(d, func() {
		e.mu.Lock()
		defer e.mu.Unlock()

		current, ok := e.registry.Lookup(roomID)
		if !ok || current != room || room.Epoch() != epoch || !room.Holds(kind, timer) {
			log.Debug().
				Str("room_id", roomID).
				Str("timer", kind.String()).
				Msg("stale timer ignored")
			return
		}
		room.ClearTimer(kind)
		fn(room)
	})
	room.SetTimer(kind, timer)

	log.Debug().
		Str("room_id", roomID).
		Str("timer", kind.String()).
		Dur("duration", d).
		Msg("timer armed")
}
