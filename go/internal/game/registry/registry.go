// Package registry owns every live room and the players inside them.
//
// A Registry is not safe for concurrent use. The round engine holds one lock around every call,
// which also makes the cross-room "one active match" check atomic with room creation.
package registry

import (
	"errors"
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/claimline/go/internal/models"
)

var (
	// ErrRoomNotFound is returned for unknown, non-reserved room ids.
	ErrRoomNotFound = errors.New("room not found")
	// ErrGameInProgress is returned when creation is refused because a match is mid-round.
	ErrGameInProgress = errors.New("a game is already in progress, please wait for it to finish")
	// ErrRoomIDTaken is returned when a preferred room id is already live or reserved.
	ErrRoomIDTaken = errors.New("room id already in use")
)

// Options configures a Registry.
type Options struct {
	Clock             clockwork.Clock
	Rand              *rand.Rand
	DefaultSettings   models.RoomSettings
	SingleActiveMatch bool
	// NewRoomID overrides room id generation, mostly for tests.
	NewRoomID func() string
}

// HostIdentity is who asked for a room to be created.
type HostIdentity struct {
	ConnID string
	Name   string
}

// Registry holds all rooms by id.
type Registry struct {
	rooms map[string]*Room
	opts  Options
}

// New creates an empty registry.
func New(opts Options) *Registry {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if opts.NewRoomID == nil {
		opts.NewRoomID = generateRoomID
	}
	opts.DefaultSettings = resolveSettings(opts.DefaultSettings, models.DefaultRoomSettings())
	return &Registry{
		rooms: make(map[string]*Room),
		opts:  opts,
	}
}

// HasActiveMatch reports whether any room is counting down or running a round.
func (r *Registry) HasActiveMatch() bool {
	for _, room := range r.rooms {
		if room.Status.Active() {
			return true
		}
	}
	return false
}

// Create makes a new lobby room hosted by host. Unset or invalid settings take the defaults.
func (r *Registry) Create(host HostIdentity, settings models.RoomSettings, preferredID string) (*Room, error) {
	if r.opts.SingleActiveMatch && r.HasActiveMatch() {
		return nil, ErrGameInProgress
	}

	id := NormalizeRoomID(preferredID)
	if id != "" {
		if _, exists := r.rooms[id]; exists || id == PracticeRoomID {
			return nil, ErrRoomIDTaken
		}
	} else {
		for {
			id = r.opts.NewRoomID()
			if _, exists := r.rooms[id]; !exists && id != PracticeRoomID {
				break
			}
		}
	}

	room := newRoom(id, resolveSettings(settings, r.opts.DefaultSettings), r.opts.Clock.Now())
	room.HostID = host.ConnID
	room.HostName = SanitizeName(host.Name, "Host")
	r.rooms[id] = room
	r.EnsurePlayer(room, host.ConnID, room.HostName)

	log.Info().
		Str("room_id", id).
		Str("host_id", host.ConnID).
		Float64("cost_per_point", room.Settings.CostPerPoint).
		Float64("duration_sec", room.Settings.DurationSec).
		Int("total_rounds", room.Settings.TotalRounds).
		Msg("room created")
	return room, nil
}

// Get resolves a room id. The reserved practice id always resolves, creating the practice room
// on demand and resetting it out of a finished match.
func (r *Registry) Get(id string) (*Room, error) {
	rid := NormalizeRoomID(id)
	if rid == "" {
		return nil, ErrRoomNotFound
	}
	if rid == PracticeRoomID {
		return r.Practice(), nil
	}
	room, ok := r.rooms[rid]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return room, nil
}

// Lookup returns a live room without any practice room side effects.
func (r *Registry) Lookup(id string) (*Room, bool) {
	room, ok := r.rooms[id]
	return room, ok
}

// Practice returns the practice room, creating it if needed.
func (r *Registry) Practice() *Room {
	room, ok := r.rooms[PracticeRoomID]
	if !ok {
		room = newRoom(PracticeRoomID, r.opts.DefaultSettings, r.opts.Clock.Now())
		r.rooms[PracticeRoomID] = room
		log.Info().Str("room_id", PracticeRoomID).Msg("practice room created")
	} else if room.Status == models.RoomStatusFinished {
		r.ResetToLobby(room)
	}
	return room
}

// Rooms returns every live room, oldest first.
func (r *Registry) Rooms() []*Room {
	out := make([]*Room, 0, len(r.rooms))
	for _, room := range r.rooms {
		out = append(out, room)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// ListJoinable lists rooms waiting in the lobby, excluding the practice room.
func (r *Registry) ListJoinable() []models.RoomSummary {
	out := make([]models.RoomSummary, 0)
	for _, room := range r.Rooms() {
		if room.ID == PracticeRoomID || room.Status != models.RoomStatusLobby {
			continue
		}
		out = append(out, models.RoomSummary{
			RoomID:      room.ID,
			Status:      room.Status,
			Players:     room.PlayerCount(),
			HostName:    room.HostName,
			Settings:    room.Settings,
			CreatedAtMs: room.CreatedAt.UnixMilli(),
		})
	}
	return out
}

// ResetToLobby cancels the room's timers and returns it to a fresh lobby with the same players.
func (r *Registry) ResetToLobby(room *Room) {
	room.CancelTimers()
	room.Status = models.RoomStatusLobby
	room.CurrentRound = 0
	room.StartedAt = time.Time{}
	room.RevealAt = time.Time{}
	room.Closing = false
	room.Scored = false
	clear(room.Submissions)
	clear(room.ReadyNext)
	clear(room.ReadyToStart)
	clear(room.PendingPrune)
	clear(room.Totals)
	for _, id := range room.order {
		room.Totals[id] = 0
	}
	r.EnsureHostPlayer(room)
}

// EnsurePlayer returns the player for connID, creating its identity on first contact.
func (r *Registry) EnsurePlayer(room *Room, connID, name string) *models.Player {
	if connID == "" {
		return nil
	}
	if p, ok := room.players[connID]; ok {
		if p.Emoji == "" {
			_, emojis := room.usedIdentity()
			p.Emoji = pickEmoji(r.opts.Rand, emojis)
		}
		return p
	}

	fallback := "Player"
	if connID == room.HostID {
		fallback = room.HostName
		if fallback == "" {
			fallback = "Host"
		}
	}
	colors, emojis := room.usedIdentity()
	p := &models.Player{
		ID:       connID,
		Name:     SanitizeName(name, fallback),
		Color:    pickColor(room.PlayerCount(), colors),
		Emoji:    pickEmoji(r.opts.Rand, emojis),
		SocketID: connID,
	}
	room.addPlayer(p)
	if _, ok := room.Totals[connID]; !ok {
		room.Totals[connID] = 0
	}
	return p
}

// EnsureHostPlayer makes sure the host id, when set, is also a player.
func (r *Registry) EnsureHostPlayer(room *Room) {
	if room.HostID == "" {
		return
	}
	r.EnsurePlayer(room, room.HostID, room.HostName)
}

// TransferHostIfNeeded hands the host role to the oldest player when the host is gone.
func (r *Registry) TransferHostIfNeeded(room *Room) {
	if room.HostID != "" && room.HasPlayer(room.HostID) {
		return
	}
	previous := room.HostID
	if len(room.order) == 0 {
		room.HostID = ""
		room.HostName = "Host"
		return
	}
	next := room.players[room.order[0]]
	room.HostID = next.ID
	room.HostName = next.Name
	log.Info().
		Str("room_id", room.ID).
		Str("previous_host", previous).
		Str("host_id", next.ID).
		Msg("host migrated")
}

// Prune removes a player from the room. With keepTotals the player's cumulative payoff survives.
func (r *Registry) Prune(room *Room, playerID string, keepTotals bool) {
	room.removePlayer(playerID)
	delete(room.Submissions, playerID)
	delete(room.ReadyNext, playerID)
	delete(room.ReadyToStart, playerID)
	delete(room.PendingPrune, playerID)
	if !keepTotals {
		delete(room.Totals, playerID)
	}
	r.TransferHostIfNeeded(room)
}

// Evict removes a room and cancels its timers. The practice room is reset instead.
func (r *Registry) Evict(id string) {
	room, ok := r.rooms[id]
	if !ok {
		return
	}
	if id == PracticeRoomID {
		r.ResetToLobby(room)
		return
	}
	room.CancelTimers()
	delete(r.rooms, id)
	log.Info().Str("room_id", id).Msg("room evicted")
}

// Close cancels every room's timers and forgets all rooms.
func (r *Registry) Close() {
	for id, room := range r.rooms {
		room.CancelTimers()
		delete(r.rooms, id)
	}
}

func resolveSettings(in, defaults models.RoomSettings) models.RoomSettings {
	out := in
	if !positiveFinite(out.CostPerPoint) {
		out.CostPerPoint = defaults.CostPerPoint
	}
	if !positiveFinite(out.DurationSec) {
		out.DurationSec = defaults.DurationSec
	}
	if out.DurationSec > models.MaxDurationSec {
		out.DurationSec = models.MaxDurationSec
	}
	if out.TotalRounds <= 0 {
		out.TotalRounds = defaults.TotalRounds
	}
	return out
}

func positiveFinite(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

func sortTotals(totals []models.PlayerTotal) {
	sort.SliceStable(totals, func(i, j int) bool { return totals[i].TotalPayoff > totals[j].TotalPayoff })
}
