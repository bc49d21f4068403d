package lifecycle

import (
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/claimline/go/internal/game/events"
	"github.com/mcdev12/claimline/go/internal/game/registry"
	"github.com/mcdev12/claimline/go/internal/models"
)

var t0 = time.UnixMilli(1_700_000_000_000)

type sent struct {
	roomID  string
	connID  string
	name    events.Name
	payload any
}

// recorder is an in-memory Broadcaster.
type recorder struct {
	mu      sync.Mutex
	sent    []sent
	members map[string]map[string]bool
}

func newRecorder() *recorder {
	return &recorder{members: make(map[string]map[string]bool)}
}

func (r *recorder) JoinRoom(roomID, connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.members[roomID] == nil {
		r.members[roomID] = make(map[string]bool)
	}
	r.members[roomID][connID] = true
}

func (r *recorder) LeaveRoom(roomID, connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.members[roomID], connID)
}

func (r *recorder) BroadcastToRoom(roomID string, event events.Name, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, sent{roomID: roomID, name: event, payload: payload})
}

func (r *recorder) SendToConnection(connID string, event events.Name, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, sent{connID: connID, name: event, payload: payload})
}

func (r *recorder) named(name events.Name) []sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []sent
	for _, s := range r.sent {
		if s.name == name {
			out = append(out, s)
		}
	}
	return out
}

func (r *recorder) names() []events.Name {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.Name, 0, len(r.sent))
	for _, s := range r.sent {
		out = append(out, s.name)
	}
	return out
}

func (r *recorder) isMember(roomID, connID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.members[roomID][connID]
}

type harness struct {
	t        *testing.T
	clock    *clockwork.FakeClock
	registry *registry.Registry
	engine   *Engine
	out      *recorder
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	clock := clockwork.NewFakeClockAt(t0)
	reg := registry.New(registry.Options{
		Clock:             clock,
		Rand:              rand.New(rand.NewSource(1)),
		SingleActiveMatch: true,
	})
	out := newRecorder()
	engine := New(Options{
		Registry:    reg,
		Broadcaster: out,
		Clock:       clock,
	})
	t.Cleanup(engine.Close)
	return &harness{t: t, clock: clock, registry: reg, engine: engine, out: out}
}

// twoPlayerRoom creates a room hosted by p1 with p2 joined.
func (h *harness) twoPlayerRoom(req events.CreateRoomRequest) string {
	h.t.Helper()
	req.Name = "Ann"
	ack, err := h.engine.CreateRoom("p1", req)
	require.NoError(h.t, err)
	_, err = h.engine.JoinRoom("p2", events.JoinRoomRequest{RoomID: ack.RoomID, Name: "Bob"})
	require.NoError(h.t, err)
	return ack.RoomID
}

func (h *harness) withRoom(roomID string, fn func(room *registry.Room)) {
	h.t.Helper()
	h.engine.mu.Lock()
	defer h.engine.mu.Unlock()
	room, ok := h.registry.Lookup(roomID)
	require.True(h.t, ok, "room %s not found", roomID)
	fn(room)
}

func (h *harness) status(roomID string) models.RoomStatus {
	var status models.RoomStatus
	h.withRoom(roomID, func(room *registry.Room) { status = room.Status })
	return status
}

func (h *harness) waitStatus(roomID string, want models.RoomStatus) {
	h.t.Helper()
	require.Eventually(h.t, func() bool { return h.status(roomID) == want }, time.Second, time.Millisecond,
		"room %s never reached %s", roomID, want)
}

func (h *harness) waitScored(roomID string, round int) {
	h.t.Helper()
	require.Eventually(h.t, func() bool {
		scored := false
		h.withRoom(roomID, func(room *registry.Room) { scored = room.Scored && room.CurrentRound == round })
		return scored
	}, time.Second, time.Millisecond, "round %d never scored", round)
}

// waitTimers blocks until n timers are armed on the fake clock.
func (h *harness) waitTimers(n int) {
	h.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(h.t, h.clock.BlockUntilContext(ctx, n))
}

func (h *harness) runCountdown(roomID string) {
	h.t.Helper()
	for i := 0; i < DefaultTiming().CountdownStart; i++ {
		h.waitTimers(1)
		h.clock.Advance(time.Second)
	}
	h.waitStatus(roomID, models.RoomStatusRunning)
}

// closeRound drives a running round through reveal and results. Without early the round
// deadline has to elapse first.
func (h *harness) closeRound(roomID string, round int, duration time.Duration, early bool) {
	h.t.Helper()
	if !early {
		h.waitTimers(1)
		h.clock.Advance(duration)
	}
	h.waitTimers(1)
	h.clock.Advance(DefaultTiming().AutoSubmitDelay)
	h.waitStatus(roomID, models.RoomStatusRevealed)
	h.waitTimers(1)
	h.clock.Advance(DefaultTiming().ResultDelay())
	h.waitScored(roomID, round)
}

func (h *harness) submit(roomID, connID, points string, clientSentAt *float64) (events.SubmitAck, error) {
	return h.engine.SubmitPoints(connID, events.SubmitPointsRequest{
		RoomID:       roomID,
		Points:       []byte(points),
		ClientSentAt: clientSentAt,
	})
}

func f64(v float64) *float64 { return &v }
func intp(v int) *int        { return &v }

func epochMs(t time.Time) *float64 {
	ms := float64(t.UnixMilli())
	return &ms
}
