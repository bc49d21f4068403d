// Package lifecycle runs the round state machine of every room and exposes the player commands
// that drive it.
package lifecycle

import (
	"fmt"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/claimline/go/internal/game/auditlog"
	"github.com/mcdev12/claimline/go/internal/game/events"
	"github.com/mcdev12/claimline/go/internal/game/registry"
	"github.com/mcdev12/claimline/go/internal/game/scoring"
	"github.com/mcdev12/claimline/go/internal/models"
)

// Broadcaster delivers outbound events. Implementations are called with the engine lock held
// and must not block; events for a room must reach clients in call order.
type Broadcaster interface {
	JoinRoom(roomID, connID string)
	LeaveRoom(roomID, connID string)
	BroadcastToRoom(roomID string, event events.Name, payload any)
	SendToConnection(connID string, event events.Name, payload any)
}

type releaser interface {
	Release(roomID string)
}

// Options configures an Engine.
type Options struct {
	Registry    *registry.Registry
	Broadcaster Broadcaster
	Auditor     auditlog.Auditor
	Clock       clockwork.Clock
	Timing      Timing
}

// Engine serializes every command and timer callback behind one lock.
type Engine struct {
	mu       sync.Mutex
	registry *registry.Registry
	out      Broadcaster
	audit    auditlog.Auditor
	clock    clockwork.Clock
	timing   Timing
}

// New creates an Engine.
func New(opts Options) *Engine {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Registry == nil {
		opts.Registry = registry.New(registry.Options{Clock: opts.Clock, SingleActiveMatch: true})
	}
	if opts.Auditor == nil {
		opts.Auditor = auditlog.Nop{}
	}
	return &Engine{
		registry: opts.Registry,
		out:      opts.Broadcaster,
		audit:    opts.Auditor,
		clock:    opts.Clock,
		timing:   opts.Timing.withDefaults(),
	}
}

// EnsurePracticeRoom creates the always-available practice room.
func (e *Engine) EnsurePracticeRoom() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.registry.Practice()
}

// CreateRoom opens a new lobby hosted by connID.
func (e *Engine) CreateRoom(connID string, req events.CreateRoomRequest) (events.RoomAck, error) {
	if err := req.Validate(); err != nil {
		return events.RoomAck{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	settings := models.RoomSettings{}
	if req.CostPerPoint != nil {
		settings.CostPerPoint = *req.CostPerPoint
	}
	if req.DurationSec != nil {
		settings.DurationSec = *req.DurationSec
	}
	if req.TotalRounds != nil {
		settings.TotalRounds = *req.TotalRounds
	}

	room, err := e.registry.Create(registry.HostIdentity{ConnID: connID, Name: req.Name}, settings, req.PreferredID)
	if err != nil {
		return events.RoomAck{}, fmt.Errorf("create room: %w", err)
	}
	e.out.JoinRoom(room.ID, connID)
	e.audit.Event(room.ID, "room_created", map[string]any{
		"hostId":   connID,
		"settings": room.Settings,
	})
	e.emitLobby(room)
	return events.RoomAck{OK: true, RoomID: room.ID, Settings: room.Settings}, nil
}

// JoinRoom adds connID to a lobby. An empty room id joins the practice room.
func (e *Engine) JoinRoom(connID string, req events.JoinRoomRequest) (events.RoomAck, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var room *registry.Room
	if registry.NormalizeRoomID(req.RoomID) == "" {
		room = e.registry.Practice()
	} else {
		r, err := e.registry.Get(req.RoomID)
		if err != nil {
			return events.RoomAck{}, fmt.Errorf("join %q: %w", req.RoomID, err)
		}
		room = r
	}

	e.registry.EnsureHostPlayer(room)
	if room.Status != models.RoomStatusLobby {
		return events.RoomAck{}, fmt.Errorf("game already started in room %s: %w", room.ID, ErrInvalidState)
	}

	if !room.HasPlayer(connID) {
		p := e.registry.EnsurePlayer(room, connID, req.Name)
		e.registry.TransferHostIfNeeded(room)
		e.audit.Event(room.ID, "player_joined", map[string]any{
			"playerId": p.ID,
			"name":     p.Name,
			"color":    p.Color,
			"emoji":    p.Emoji,
		})
	}
	e.out.JoinRoom(room.ID, connID)
	e.emitLobby(room)
	if len(room.ReadyToStart) > 0 {
		e.out.BroadcastToRoom(room.ID, events.ReadyToStartStatus, readyCount(room.ReadyToStart, room))
	}
	return events.RoomAck{OK: true, RoomID: room.ID, Settings: room.Settings}, nil
}

// ReadyToStart marks connID ready in the lobby. The round starts once everyone is ready.
func (e *Engine) ReadyToStart(connID string, req events.RoomRequest) (events.ReadyAck, error) {
	if err := req.Validate(); err != nil {
		return events.ReadyAck{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	room, err := e.registry.Get(req.RoomID)
	if err != nil {
		return events.ReadyAck{}, fmt.Errorf("ready to start: %w", err)
	}
	if room.Status != models.RoomStatusLobby {
		return events.ReadyAck{}, fmt.Errorf("room %s is %s, not in lobby: %w", room.ID, room.Status, ErrInvalidState)
	}
	if !room.HasPlayer(connID) {
		return events.ReadyAck{}, ErrNotInRoom
	}
	if room.PlayerCount() < e.timing.MinPlayers {
		return events.ReadyAck{}, e.insufficientPlayers()
	}

	room.ReadyToStart[connID] = struct{}{}
	status := readyCount(room.ReadyToStart, room)
	e.out.BroadcastToRoom(room.ID, events.ReadyToStartStatus, status)
	if status.ReadyCount >= status.TotalPlayers {
		e.startRound(room)
	}
	return events.ReadyAck{OK: true, ReadyCount: status.ReadyCount, TotalPlayers: status.TotalPlayers}, nil
}

// StartGame lets the host start the match without waiting for everyone to be ready.
func (e *Engine) StartGame(connID string, req events.RoomRequest) (events.OKAck, error) {
	if err := req.Validate(); err != nil {
		return events.OKAck{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	room, err := e.registry.Get(req.RoomID)
	if err != nil {
		return events.OKAck{}, fmt.Errorf("start game: %w", err)
	}
	if room.HostID != connID {
		return events.OKAck{}, ErrNotHost
	}
	if room.Status.Active() {
		return events.OKAck{}, ErrAlreadyRunning
	}
	e.registry.EnsureHostPlayer(room)
	if room.PlayerCount() < e.timing.MinPlayers {
		return events.OKAck{}, e.insufficientPlayers()
	}
	if room.Status == models.RoomStatusRevealed || room.Status == models.RoomStatusFinished {
		e.registry.ResetToLobby(room)
		e.emitLobby(room)
	}
	e.startRound(room)
	return events.OKAck{OK: true}, nil
}

// SubmitPoints records connID's claims for the current round.
func (e *Engine) SubmitPoints(connID string, req events.SubmitPointsRequest) (events.SubmitAck, error) {
	if err := req.Validate(); err != nil {
		return events.SubmitAck{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	room, err := e.registry.Get(req.RoomID)
	if err != nil {
		return events.SubmitAck{}, fmt.Errorf("submit points: %w", err)
	}

	now := e.clock.Now()
	running := room.Status == models.RoomStatusRunning
	if !running && !e.withinTolerance(room, req.ClientSentAt, now) {
		e.audit.Event(room.ID, "submission_reject", map[string]any{
			"playerId":     connID,
			"status":       room.Status,
			"clientSentAt": req.ClientSentAt,
			"serverNow":    now.UnixMilli(),
			"revealAt":     room.RevealAt.UnixMilli(),
		})
		return events.SubmitAck{}, fmt.Errorf("room %s is %s: %w", room.ID, room.Status, ErrNotAcceptingSubmissions)
	}

	if !room.HasPlayer(connID) && room.HostID == connID {
		e.registry.EnsureHostPlayer(room)
	}
	if !room.HasPlayer(connID) {
		return events.SubmitAck{}, ErrNotInRoom
	}

	points := scoring.SanitizePoints(req.Points)
	room.Submissions[connID] = points
	e.audit.Event(room.ID, "submission", map[string]any{
		"playerId":     connID,
		"round":        room.CurrentRound,
		"points":       points,
		"clientSentAt": req.ClientSentAt,
		"serverNow":    now.UnixMilli(),
		"late":         !running,
	})

	if running && len(room.Submissions) >= room.PlayerCount() {
		e.endRound(room)
	}
	return events.SubmitAck{OK: true, Points: points}, nil
}

// SetName renames connID inside a room.
func (e *Engine) SetName(connID string, req events.SetNameRequest) (events.SetNameAck, error) {
	if err := req.Validate(); err != nil {
		return events.SetNameAck{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	room, err := e.registry.Get(req.RoomID)
	if err != nil {
		return events.SetNameAck{}, fmt.Errorf("set name: %w", err)
	}
	p, ok := room.Player(connID)
	if !ok {
		return events.SetNameAck{}, ErrNotInRoom
	}

	fallback := "Player"
	if connID == room.HostID {
		fallback = "Host"
	}
	p.Name = registry.SanitizeName(req.Name, fallback)
	if connID == room.HostID {
		room.HostName = p.Name
	}
	e.emitLobby(room)
	return events.SetNameAck{OK: true, Name: p.Name, Emoji: p.Emoji}, nil
}

// ReadyNext marks connID ready for the next round. Once everyone is ready the next round
// starts, or the match finishes after the last one.
func (e *Engine) ReadyNext(connID string, req events.RoomRequest) (events.ReadyAck, error) {
	if err := req.Validate(); err != nil {
		return events.ReadyAck{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	room, err := e.registry.Get(req.RoomID)
	if err != nil {
		return events.ReadyAck{}, fmt.Errorf("ready next: %w", err)
	}
	if room.Status == models.RoomStatusRunning {
		return events.ReadyAck{
			OK:           true,
			ReadyCount:   len(room.ReadyNext),
			TotalPlayers: room.PlayerCount(),
			Info:         "Round already started",
		}, nil
	}
	if room.Status != models.RoomStatusRevealed {
		return events.ReadyAck{}, fmt.Errorf("room %s is %s, not between rounds: %w", room.ID, room.Status, ErrInvalidState)
	}
	if !room.HasPlayer(connID) {
		return events.ReadyAck{}, ErrNotInRoom
	}

	room.ReadyNext[connID] = struct{}{}
	status := readyCount(room.ReadyNext, room)
	e.out.BroadcastToRoom(room.ID, events.ReadyStatus, status)
	e.maybeAdvance(room)
	return events.ReadyAck{OK: true, ReadyCount: status.ReadyCount, TotalPlayers: status.TotalPlayers}, nil
}

// LeaveRoom removes connID from a room the same way a disconnect would.
func (e *Engine) LeaveRoom(connID string, req events.RoomRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	room, ok := e.registry.Lookup(registry.NormalizeRoomID(req.RoomID))
	if !ok {
		return fmt.Errorf("leave room: %w", ErrRoomNotFound)
	}
	e.out.LeaveRoom(room.ID, connID)
	if room.HasPlayer(connID) {
		e.removeConnection(room, connID)
	}
	return nil
}

// Disconnect removes connID from every room it plays in.
func (e *Engine) Disconnect(connID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, room := range e.registry.Rooms() {
		if !room.HasPlayer(connID) {
			continue
		}
		e.out.LeaveRoom(room.ID, connID)
		e.removeConnection(room, connID)
	}
}

// ListJoinableRooms lists lobbies that can be joined.
func (e *Engine) ListJoinableRooms() []models.RoomSummary {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.registry.ListJoinable()
}

// Close stops every timer and drops all rooms.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.registry.Close()
	log.Info().Msg("round engine closed")
}

// removeConnection applies the disconnect policy for the room's current phase.
func (e *Engine) removeConnection(room *registry.Room, connID string) {
	unscored := room.Status == models.RoomStatusRevealed && !room.Scored
	switch {
	case room.Status == models.RoomStatusRunning || unscored:
		room.PendingPrune[connID] = struct{}{}
		delete(room.ReadyNext, connID)
		delete(room.ReadyToStart, connID)
		log.Info().Str("room_id", room.ID).Str("player_id", connID).Msg("player left before results, prune deferred")
		return
	case room.Status == models.RoomStatusRevealed:
		e.prune(room, connID, true)
		if e.evictIfEmpty(room) {
			return
		}
		e.out.BroadcastToRoom(room.ID, events.ReadyStatus, readyCount(room.ReadyNext, room))
		e.maybeAdvance(room)
	default:
		e.prune(room, connID, hasScoredRound(room))
		if e.evictIfEmpty(room) {
			return
		}
		e.emitLobby(room)
		if room.Status == models.RoomStatusLobby && len(room.ReadyToStart) > 0 {
			status := readyCount(room.ReadyToStart, room)
			e.out.BroadcastToRoom(room.ID, events.ReadyToStartStatus, status)
			if status.TotalPlayers >= e.timing.MinPlayers && status.ReadyCount >= status.TotalPlayers {
				e.startRound(room)
			}
		}
	}
}

func (e *Engine) insufficientPlayers() error {
	return fmt.Errorf("need at least %d players: %w", e.timing.MinPlayers, ErrInsufficientPlayers)
}

// hasScoredRound reports whether the match already produced totals worth keeping.
func hasScoredRound(room *registry.Room) bool {
	switch room.Status {
	case models.RoomStatusFinished:
		return true
	case models.RoomStatusCountdown:
		return room.CurrentRound > 1
	}
	return false
}

func (e *Engine) prune(room *registry.Room, playerID string, keepTotals bool) {
	e.registry.Prune(room, playerID, keepTotals)
	e.audit.Event(room.ID, "player_pruned", map[string]any{
		"playerId":   playerID,
		"keepTotals": keepTotals,
		"hostId":     room.HostID,
	})
}

// evictIfEmpty drops a room nobody plays in anymore. The practice room is reset instead.
func (e *Engine) evictIfEmpty(room *registry.Room) bool {
	if room.PlayerCount() > 0 {
		return false
	}
	e.registry.Evict(room.ID)
	if rel, ok := e.audit.(releaser); ok && room.ID != registry.PracticeRoomID {
		rel.Release(room.ID)
	}
	return true
}

// emitLobby broadcasts the roster while the room waits in the lobby.
func (e *Engine) emitLobby(room *registry.Room) {
	if room.Status != models.RoomStatusLobby {
		return
	}
	e.registry.EnsureHostPlayer(room)
	e.out.BroadcastToRoom(room.ID, events.Lobby, events.LobbyPayload{
		RoomID:       room.ID,
		Status:       room.Status,
		HostID:       room.HostID,
		Players:      room.Roster(),
		Settings:     room.Settings,
		CurrentRound: room.CurrentRound,
		TotalRounds:  room.Settings.TotalRounds,
	})
}

func readyCount(set map[string]struct{}, room *registry.Room) events.ReadyCountPayload {
	return events.ReadyCountPayload{ReadyCount: len(set), TotalPlayers: room.PlayerCount()}
}
