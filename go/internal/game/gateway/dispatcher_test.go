package gateway

import (
	"encoding/json"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/claimline/go/internal/game/events"
	"github.com/mcdev12/claimline/go/internal/game/lifecycle"
	"github.com/mcdev12/claimline/go/internal/game/registry"
)

type frame struct {
	connID string
	roomID string
	event  events.Name
	ackID  *int64
	data   json.RawMessage
}

// captureOutbox records everything the engine and the dispatcher send.
type captureOutbox struct {
	mu     sync.Mutex
	frames []frame
}

func (c *captureOutbox) add(f frame, payload any) {
	data, _ := json.Marshal(payload)
	f.data = data
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, f)
}

func (c *captureOutbox) JoinRoom(string, string)  {}
func (c *captureOutbox) LeaveRoom(string, string) {}

func (c *captureOutbox) BroadcastToRoom(roomID string, event events.Name, payload any) {
	c.add(frame{roomID: roomID, event: event}, payload)
}

func (c *captureOutbox) SendToConnection(connID string, event events.Name, payload any) {
	c.add(frame{connID: connID, event: event}, payload)
}

func (c *captureOutbox) SendAck(connID string, ackID int64, payload any) {
	c.add(frame{connID: connID, event: events.Ack, ackID: &ackID}, payload)
}

func (c *captureOutbox) to(connID string) []frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []frame
	for _, f := range c.frames {
		if f.connID == connID {
			out = append(out, f)
		}
	}
	return out
}

func (c *captureOutbox) lastAck(t *testing.T, connID string, into any) {
	t.Helper()
	frames := c.to(connID)
	for i := len(frames) - 1; i >= 0; i-- {
		if frames[i].event == events.Ack {
			require.NoError(t, json.Unmarshal(frames[i].data, into))
			return
		}
	}
	t.Fatalf("no ack sent to %s", connID)
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *captureOutbox, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.UnixMilli(1_700_000_000_000))
	out := &captureOutbox{}
	engine := lifecycle.New(lifecycle.Options{
		Registry: registry.New(registry.Options{
			Clock:             clock,
			Rand:              rand.New(rand.NewSource(1)),
			SingleActiveMatch: true,
		}),
		Broadcaster: out,
		Clock:       clock,
	})
	t.Cleanup(engine.Close)
	return NewDispatcher(engine, out), out, clock
}

func send(d *Dispatcher, client Client, frame string) {
	d.Dispatch(client, []byte(frame))
}

func TestDispatch_CreateAndJoin(t *testing.T) {
	d, out, _ := newTestDispatcher(t)
	host := Client{ID: "c1", Name: "Ann"}

	send(d, host, `{"type":"create_room","ackId":1,"data":{"totalRounds":2,"preferredId":"room42"}}`)
	var created events.RoomAck
	out.lastAck(t, "c1", &created)
	assert.True(t, created.OK)
	assert.Equal(t, "ROOM42", created.RoomID)
	assert.Equal(t, 2, created.Settings.TotalRounds)

	send(d, Client{ID: "c2"}, `{"type":"join_room","ackId":9,"data":{"roomId":"room42","name":"Bob"}}`)
	frames := out.to("c2")
	require.Len(t, frames, 1)
	assert.EqualValues(t, 9, *frames[0].ackID)
	var joined events.RoomAck
	require.NoError(t, json.Unmarshal(frames[0].data, &joined))
	assert.True(t, joined.OK)
}

func TestDispatch_ErrorAcks(t *testing.T) {
	d, out, _ := newTestDispatcher(t)
	c := Client{ID: "c1"}

	cases := []struct {
		frame string
		kind  string
	}{
		{`{"type":"join_room","ackId":1,"data":{"roomId":"NOPE99"}}`, "RoomNotFound"},
		{`{"type":"start_game","ackId":2,"data":{}}`, "InvalidPayload"},
		{`{"type":"teleport","ackId":3}`, "InvalidPayload"},
		{`{"type":"create_room","ackId":4,"data":{"durationSec":0}}`, "InvalidPayload"},
		{`{"type":"submit_points","ackId":5,"data":"oops"}`, "InvalidPayload"},
		{`{"type":"ready_next","ackId":6,"data":{"roomId":"0"}}`, "InvalidState"},
	}
	for _, tc := range cases {
		send(d, c, tc.frame)
		var ack events.ErrorAck
		out.lastAck(t, "c1", &ack)
		assert.False(t, ack.OK, tc.frame)
		assert.Equal(t, tc.kind, ack.Error, tc.frame)
		assert.NotEmpty(t, ack.Message, tc.frame)
	}
}

func TestDispatch_NoAckWithoutAckID(t *testing.T) {
	d, out, _ := newTestDispatcher(t)
	send(d, Client{ID: "c1"}, `{"type":"join_room","data":{"roomId":"NOPE99"}}`)
	send(d, Client{ID: "c1"}, `garbage`)
	assert.Empty(t, out.to("c1"))
}

func TestDispatch_LeaveRoomIsNotAcked(t *testing.T) {
	d, out, _ := newTestDispatcher(t)
	send(d, Client{ID: "c1", Name: "Ann"}, `{"type":"create_room","ackId":1,"data":{"preferredId":"LEAVE1"}}`)
	before := len(out.to("c1"))
	send(d, Client{ID: "c1"}, `{"type":"leave_room","ackId":2,"data":{"roomId":"LEAVE1"}}`)
	assert.Len(t, out.to("c1"), before)
	assert.Empty(t, d.engine.ListJoinableRooms())
}

func TestDispatch_SubmitAcksThenConfirms(t *testing.T) {
	d, out, clock := newTestDispatcher(t)
	send(d, Client{ID: "c1", Name: "Ann"}, `{"type":"create_room","ackId":1,"data":{"preferredId":"SUB123"}}`)
	send(d, Client{ID: "c2", Name: "Bob"}, `{"type":"join_room","ackId":1,"data":{"roomId":"SUB123"}}`)
	send(d, Client{ID: "c1"}, `{"type":"start_game","ackId":2,"data":{"roomId":"SUB123"}}`)

	var started events.OKAck
	out.lastAck(t, "c1", &started)
	require.True(t, started.OK)

	ctx := t.Context()
	for i := 0; i < 3; i++ {
		require.NoError(t, clock.BlockUntilContext(ctx, 1))
		clock.Advance(time.Second)
	}
	require.Eventually(t, func() bool {
		out.mu.Lock()
		defer out.mu.Unlock()
		for _, f := range out.frames {
			if f.event == events.GameStartedEvent {
				return true
			}
		}
		return false
	}, time.Second, time.Millisecond)

	send(d, Client{ID: "c1"}, `{"type":"submit_points","ackId":3,"data":{"roomId":"sub123","points":[0.9,"0.25",-1]}}`)

	frames := out.to("c1")
	require.GreaterOrEqual(t, len(frames), 2)
	ack, confirm := frames[len(frames)-2], frames[len(frames)-1]
	assert.Equal(t, events.Ack, ack.event)
	assert.JSONEq(t, `{"ok":true,"points":[0.25,0.9]}`, string(ack.data))
	assert.Equal(t, events.SubmittedEvent, confirm.event)
	assert.JSONEq(t, `{"roomId":"SUB123","points":[0.25,0.9]}`, string(confirm.data))
}

func TestDispatch_RateLimited(t *testing.T) {
	d, out, _ := newTestDispatcher(t)
	d.RateLimited(Client{ID: "c1"}, []byte(`{"type":"ready_next","ackId":4,"data":{"roomId":"0"}}`))
	var ack events.ErrorAck
	out.lastAck(t, "c1", &ack)
	assert.Equal(t, "RateLimited", ack.Error)

	d.RateLimited(Client{ID: "c2"}, []byte(`{"type":"ready_next"}`))
	assert.Empty(t, out.to("c2"))
}
