package lifecycle

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/claimline/go/internal/game/events"
	"github.com/mcdev12/claimline/go/internal/game/registry"
	"github.com/mcdev12/claimline/go/internal/game/scoring"
	"github.com/mcdev12/claimline/go/internal/models"
)

// startRound begins the countdown for the next round. It does nothing while a round is
// already counting down or running.
func (e *Engine) startRound(room *registry.Room) {
	if room.Status.Active() {
		return
	}
	e.flushPending(room)
	if !e.transition(room, models.RoomStatusCountdown) {
		return
	}
	e.registry.EnsureHostPlayer(room)
	room.CurrentRound++
	room.Closing = false
	room.Scored = false
	clear(room.ReadyToStart)
	clear(room.ReadyNext)

	log.Info().
		Str("room_id", room.ID).
		Int("round", room.CurrentRound).
		Int("total_rounds", room.Settings.TotalRounds).
		Int("players", room.PlayerCount()).
		Msg("round countdown started")

	e.countdown(room, e.timing.CountdownStart)
}

func (e *Engine) countdown(room *registry.Room, remaining int) {
	if remaining <= 0 {
		e.beginRunning(room)
		return
	}
	e.out.BroadcastToRoom(room.ID, events.CountdownTick, events.CountdownPayload{Countdown: remaining})
	e.arm(room, registry.TimerCountdown, e.timing.CountdownInterval, func(r *registry.Room) {
		e.countdown(r, remaining-1)
	})
}

func (e *Engine) beginRunning(room *registry.Room) {
	if !e.transition(room, models.RoomStatusRunning) {
		return
	}
	now := e.clock.Now().Truncate(time.Millisecond)
	duration := time.Duration(room.Settings.DurationSec * float64(time.Second))
	room.StartedAt = now
	room.RevealAt = now.Add(duration)
	clear(room.Submissions)

	e.audit.Event(room.ID, "round_start", map[string]any{
		"round":     room.CurrentRound,
		"startedAt": room.StartedAt.UnixMilli(),
		"revealAt":  room.RevealAt.UnixMilli(),
		"settings":  room.Settings,
	})
	e.audit.Event(room.ID, "opportunity_scheduled", map[string]any{
		"round":    room.CurrentRound,
		"revealAt": room.RevealAt.UnixMilli(),
	})
	e.out.BroadcastToRoom(room.ID, events.GameStartedEvent, events.GameStartedPayload{
		StartedAt:    room.StartedAt.UnixMilli(),
		RevealAt:     room.RevealAt.UnixMilli(),
		Settings:     room.Settings,
		CurrentRound: room.CurrentRound,
		TotalRounds:  room.Settings.TotalRounds,
	})

	e.arm(room, registry.TimerRoundEnd, room.RevealAt.Sub(e.clock.Now()), e.endRound)
}

// endRound schedules the reveal. Calling it again for the same round, or outside a running
// round, does nothing.
func (e *Engine) endRound(room *registry.Room) {
	if room.Status != models.RoomStatusRunning || room.Closing {
		return
	}
	room.Closing = true
	room.CancelTimers()
	e.arm(room, registry.TimerRoundEnd, e.timing.AutoSubmitDelay, e.reveal)
}

// reveal fills in empty submissions for silent players and closes the round.
func (e *Engine) reveal(room *registry.Room) {
	if room.Status != models.RoomStatusRunning {
		return
	}
	e.audit.Event(room.ID, "opportunity_arrival", map[string]any{
		"round":     room.CurrentRound,
		"revealAt":  room.RevealAt.UnixMilli(),
		"serverNow": e.clock.Now().UnixMilli(),
	})
	for _, p := range room.Players() {
		if _, ok := room.Submissions[p.ID]; !ok {
			room.Submissions[p.ID] = []float64{}
		}
	}
	if !e.transition(room, models.RoomStatusRevealed) {
		return
	}
	room.Closing = false
	e.arm(room, registry.TimerRoundEnd, e.timing.ResultDelay(), e.publishResults)
}

// publishResults scores the round, updates totals and broadcasts the results.
func (e *Engine) publishResults(room *registry.Room) {
	if room.Status != models.RoomStatusRevealed || room.Scored {
		return
	}
	room.Scored = true
	room.CancelTimers()

	e.audit.Event(room.ID, "round_end", map[string]any{
		"round":       room.CurrentRound,
		"submissions": len(room.Submissions),
	})

	outcome := scoring.Score(room.Players(), room.Submissions, room.Settings.CostPerPoint)
	for _, r := range outcome.Results {
		room.Totals[r.PlayerID] += r.Payoff
	}
	totals := room.TotalsTable()

	e.audit.Event(room.ID, "results", map[string]any{
		"round":   room.CurrentRound,
		"results": outcome.Results,
		"totals":  totals,
	})
	e.out.BroadcastToRoom(room.ID, events.ResultsEvent, events.ResultsPayload{
		Results:      outcome.Results,
		Winner:       outcome.Winner,
		Settings:     room.Settings,
		CurrentRound: room.CurrentRound,
		TotalRounds:  room.Settings.TotalRounds,
		Totals:       totals,
	})

	log.Info().
		Str("room_id", room.ID).
		Int("round", room.CurrentRound).
		Int("players", len(outcome.Results)).
		Msg("round results published")

	e.flushPending(room)
	if e.evictIfEmpty(room) {
		return
	}

	if room.CurrentRound >= room.Settings.TotalRounds {
		// Queued behind results so clients always see the last round's board first.
		e.emitMatchFinished(room)
		e.arm(room, registry.TimerFinish, e.timing.ResultsGrace, e.finishMatch)
	}
	e.maybeAdvance(room)
}

// maybeAdvance moves on once every remaining player is ready for the next round.
func (e *Engine) maybeAdvance(room *registry.Room) {
	if room.Status != models.RoomStatusRevealed || !room.Scored {
		return
	}
	if len(room.ReadyNext) == 0 || len(room.ReadyNext) < room.PlayerCount() {
		return
	}
	if room.CurrentRound >= room.Settings.TotalRounds {
		e.finishMatch(room)
		return
	}
	e.startRound(room)
}

func (e *Engine) finishMatch(room *registry.Room) {
	if room.Status != models.RoomStatusRevealed || room.CurrentRound < room.Settings.TotalRounds {
		return
	}
	if e.transition(room, models.RoomStatusFinished) {
		log.Info().Str("room_id", room.ID).Int("rounds", room.CurrentRound).Msg("match finished")
	}
}

func (e *Engine) emitMatchFinished(room *registry.Room) {
	totals := room.TotalsTable()
	payload := events.MatchFinishedPayload{
		Totals:      totals,
		TotalRounds: room.Settings.TotalRounds,
	}
	if len(totals) > 0 {
		winner := totals[0]
		payload.Winner = &winner
	}
	e.audit.Event(room.ID, "match_finished", map[string]any{
		"totals":      totals,
		"totalRounds": room.Settings.TotalRounds,
	})
	e.out.BroadcastToRoom(room.ID, events.MatchFinishedEvent, payload)
}

// flushPending removes players that left during a running round, keeping their totals.
func (e *Engine) flushPending(room *registry.Room) {
	if len(room.PendingPrune) == 0 {
		return
	}
	ids := make([]string, 0, len(room.PendingPrune))
	for _, p := range room.Players() {
		if _, ok := room.PendingPrune[p.ID]; ok {
			ids = append(ids, p.ID)
		}
	}
	clear(room.PendingPrune)
	for _, id := range ids {
		e.prune(room, id, true)
	}
}

// withinTolerance admits a submission arriving after the reveal when the client sent it
// during the round and it reached the server no later than revealAt plus the tolerance.
func (e *Engine) withinTolerance(room *registry.Room, clientSentAt *float64, now time.Time) bool {
	if room.Status != models.RoomStatusRevealed || room.Scored || clientSentAt == nil {
		return false
	}
	if room.StartedAt.IsZero() || room.RevealAt.IsZero() {
		return false
	}
	deadline := room.RevealAt.Add(e.timing.SubmitTolerance)
	sent := time.UnixMicro(int64(*clientSentAt * 1000))
	if sent.Before(room.StartedAt) || sent.After(deadline) {
		return false
	}
	return !now.After(deadline)
}
