package gateway

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/claimline/go/internal/game/events"
)

func TestEncode(t *testing.T) {
	id := int64(7)
	b, err := Encode(events.Ack, &id, events.OKAck{OK: true})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"ack","ackId":7,"data":{"ok":true}}`, string(b))

	b, err = Encode(events.CountdownTick, nil, events.CountdownPayload{Countdown: 2})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"countdown","data":{"countdown":2}}`, string(b))

	_, err = Encode("", nil, nil)
	require.Error(t, err)
}

func TestDecodeEnvelope(t *testing.T) {
	env, err := DecodeEnvelope([]byte(`{"type":"join_room","ackId":3,"data":{"roomId":"abc"}}`))
	require.NoError(t, err)
	assert.Equal(t, events.JoinRoom, env.Type)
	require.NotNil(t, env.AckID)
	assert.EqualValues(t, 3, *env.AckID)

	req, err := DecodeData[events.JoinRoomRequest](env)
	require.NoError(t, err)
	assert.Equal(t, "abc", req.RoomID)

	for _, raw := range []string{``, `not json`, `{"ackId":1}`} {
		_, err := DecodeEnvelope([]byte(raw))
		assert.ErrorIs(t, err, events.ErrInvalidPayload, raw)
	}
}

func TestDecodeData(t *testing.T) {
	req, err := DecodeData[events.RoomRequest](Envelope{Type: events.StartGame})
	require.NoError(t, err)
	assert.Empty(t, req.RoomID)

	_, err = DecodeData[events.RoomRequest](Envelope{Type: events.StartGame, Data: json.RawMessage(`[1,2]`)})
	assert.ErrorIs(t, err, events.ErrInvalidPayload)
}
