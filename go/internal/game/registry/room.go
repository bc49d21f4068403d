package registry

import (
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/mcdev12/claimline/go/internal/models"
)

// TimerKind names one of the per-room timer slots.
type TimerKind int

const (
	TimerCountdown TimerKind = iota
	TimerRoundEnd
	TimerFinish
	numTimers
)

func (k TimerKind) String() string {
	switch k {
	case TimerCountdown:
		return "countdown"
	case TimerRoundEnd:
		return "round_end"
	case TimerFinish:
		return "finish"
	default:
		return "unknown"
	}
}

// Room is one isolated match. It is not safe for concurrent use; the round engine serializes
// all access.
type Room struct {
	ID        string
	CreatedAt time.Time
	HostID    string
	HostName  string
	Settings  models.RoomSettings
	Status    models.RoomStatus

	CurrentRound int
	StartedAt    time.Time
	RevealAt     time.Time
	// Closing is set once the round's end has been scheduled, Scored once its results went out.
	Closing bool
	Scored  bool

	Submissions  map[string][]float64
	Totals       map[string]float64
	ReadyToStart map[string]struct{}
	ReadyNext    map[string]struct{}
	PendingPrune map[string]struct{}

	players map[string]*models.Player
	order   []string

	timers [numTimers]clockwork.Timer
	epoch  uint64
}

func newRoom(id string, settings models.RoomSettings, now time.Time) *Room {
	return &Room{
		ID:           id,
		CreatedAt:    now,
		HostName:     "Host",
		Settings:     settings,
		Status:       models.RoomStatusLobby,
		Submissions:  make(map[string][]float64),
		Totals:       make(map[string]float64),
		ReadyToStart: make(map[string]struct{}),
		ReadyNext:    make(map[string]struct{}),
		PendingPrune: make(map[string]struct{}),
		players:      make(map[string]*models.Player),
	}
}

// Players returns the room's players in join order.
func (r *Room) Players() []*models.Player {
	out := make([]*models.Player, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.players[id])
	}
	return out
}

// Player looks up a player by connection id.
func (r *Room) Player(id string) (*models.Player, bool) {
	p, ok := r.players[id]
	return p, ok
}

// HasPlayer reports whether id is a player of the room.
func (r *Room) HasPlayer(id string) bool {
	_, ok := r.players[id]
	return ok
}

// PlayerCount is the number of players currently in the room.
func (r *Room) PlayerCount() int {
	return len(r.order)
}

// Roster returns the lobby view of the players in join order.
func (r *Room) Roster() []models.PlayerSummary {
	out := make([]models.PlayerSummary, 0, len(r.order))
	for _, p := range r.Players() {
		out = append(out, p.Summary())
	}
	return out
}

// TotalsTable returns the cumulative standings of the current players, best first.
func (r *Room) TotalsTable() []models.PlayerTotal {
	out := make([]models.PlayerTotal, 0, len(r.order))
	for _, p := range r.Players() {
		out = append(out, models.PlayerTotal{
			PlayerID:    p.ID,
			Name:        p.Name,
			Color:       p.Color,
			Emoji:       p.Emoji,
			TotalPayoff: r.Totals[p.ID],
		})
	}
	sortTotals(out)
	return out
}

// Epoch changes every time the room's timers are cancelled. Timer callbacks capture it when
// armed and must do nothing if it has moved on.
func (r *Room) Epoch() uint64 {
	return r.epoch
}

// SetTimer stores t in the slot for kind, stopping whatever was there.
func (r *Room) SetTimer(kind TimerKind, t clockwork.Timer) {
	if old := r.timers[kind]; old != nil {
		old.Stop()
	}
	r.timers[kind] = t
}

// Holds reports whether t is the timer currently armed in the slot.
func (r *Room) Holds(kind TimerKind, t clockwork.Timer) bool {
	return r.timers[kind] == t
}

// ClearTimer forgets the timer in a slot without bumping the epoch. Used by a callback once
// its own timer has fired.
func (r *Room) ClearTimer(kind TimerKind) {
	r.timers[kind] = nil
}

// HasTimer reports whether a slot holds a live timer.
func (r *Room) HasTimer(kind TimerKind) bool {
	return r.timers[kind] != nil
}

// CancelTimers stops every armed timer and invalidates callbacks already in flight.
func (r *Room) CancelTimers() {
	for i, t := range r.timers {
		if t != nil {
			t.Stop()
			r.timers[i] = nil
		}
	}
	r.epoch++
}

func (r *Room) addPlayer(p *models.Player) {
	r.players[p.ID] = p
	r.order = append(r.order, p.ID)
}

func (r *Room) removePlayer(id string) {
	if _, ok := r.players[id]; !ok {
		return
	}
	delete(r.players, id)
	for i, pid := range r.order {
		if pid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

func (r *Room) usedIdentity() (colors, emojis map[string]bool) {
	colors = make(map[string]bool, len(r.players))
	emojis = make(map[string]bool, len(r.players))
	for _, p := range r.players {
		colors[p.Color] = true
		if p.Emoji != "" {
			emojis[p.Emoji] = true
		}
	}
	return colors, emojis
}
