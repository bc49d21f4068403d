package gateway

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/claimline/go/internal/game/events"
	"github.com/mcdev12/claimline/go/internal/game/lifecycle"
	"github.com/mcdev12/claimline/go/internal/game/registry"
	"github.com/mcdev12/claimline/go/internal/models"
)

// Engine is the command surface of the round engine.
type Engine interface {
	CreateRoom(connID string, req events.CreateRoomRequest) (events.RoomAck, error)
	JoinRoom(connID string, req events.JoinRoomRequest) (events.RoomAck, error)
	ReadyToStart(connID string, req events.RoomRequest) (events.ReadyAck, error)
	StartGame(connID string, req events.RoomRequest) (events.OKAck, error)
	SubmitPoints(connID string, req events.SubmitPointsRequest) (events.SubmitAck, error)
	SetName(connID string, req events.SetNameRequest) (events.SetNameAck, error)
	ReadyNext(connID string, req events.RoomRequest) (events.ReadyAck, error)
	LeaveRoom(connID string, req events.RoomRequest) error
	Disconnect(connID string)
	ListJoinableRooms() []models.RoomSummary
}

// Outbox is where the dispatcher writes acknowledgments and unicast events.
type Outbox interface {
	SendToConnection(connID string, event events.Name, payload any)
	SendAck(connID string, ackID int64, payload any)
}

// Dispatcher decodes inbound frames, validates them against their schema and runs the
// matching engine command.
type Dispatcher struct {
	engine Engine
	out    Outbox
}

func NewDispatcher(engine Engine, out Outbox) *Dispatcher {
	return &Dispatcher{engine: engine, out: out}
}

// Dispatch handles one frame. The ack, when requested, is queued before any follow-up event
// addressed to the sender.
func (d *Dispatcher) Dispatch(client Client, raw []byte) {
	env, err := DecodeEnvelope(raw)
	if err != nil {
		log.Debug().Err(err).Str("connection_id", client.ID).Msg("dropping undecodable frame")
		d.ack(client, env.AckID, nil, err)
		return
	}

	ack, after, err := d.handle(client, env)
	if err != nil {
		log.Debug().
			Err(err).
			Str("connection_id", client.ID).
			Str("event", string(env.Type)).
			Msg("command rejected")
	}
	if env.Type != events.LeaveRoom {
		d.ack(client, env.AckID, ack, err)
	}
	if err == nil && after != nil {
		after()
	}
}

// RateLimited answers a frame dropped by the connection's limiter.
func (d *Dispatcher) RateLimited(client Client, raw []byte) {
	env, _ := DecodeEnvelope(raw)
	log.Warn().Str("connection_id", client.ID).Str("event", string(env.Type)).Msg("command rate limited")
	if env.AckID != nil {
		d.out.SendAck(client.ID, *env.AckID, events.ErrorAck{
			OK:      false,
			Error:   "RateLimited",
			Message: "too many commands, slow down",
		})
	}
}

// Disconnect forwards a closed connection to the engine.
func (d *Dispatcher) Disconnect(client Client) {
	d.engine.Disconnect(client.ID)
}

func (d *Dispatcher) ack(client Client, ackID *int64, payload any, err error) {
	if ackID == nil {
		return
	}
	if err != nil {
		payload = events.ErrorAck{OK: false, Error: lifecycle.Kind(err), Message: err.Error()}
	}
	d.out.SendAck(client.ID, *ackID, payload)
}

func (d *Dispatcher) handle(client Client, env Envelope) (any, func(), error) {
	switch env.Type {
	case events.CreateRoom:
		req, err := DecodeData[events.CreateRoomRequest](env)
		if err != nil {
			return nil, nil, err
		}
		if req.Name == "" {
			req.Name = client.Name
		}
		ack, err := d.engine.CreateRoom(client.ID, req)
		return ack, nil, err

	case events.JoinRoom:
		req, err := DecodeData[events.JoinRoomRequest](env)
		if err != nil {
			return nil, nil, err
		}
		if req.Name == "" {
			req.Name = client.Name
		}
		ack, err := d.engine.JoinRoom(client.ID, req)
		return ack, nil, err

	case events.ReadyToStart:
		req, err := DecodeData[events.RoomRequest](env)
		if err != nil {
			return nil, nil, err
		}
		ack, err := d.engine.ReadyToStart(client.ID, req)
		return ack, nil, err

	case events.StartGame:
		req, err := DecodeData[events.RoomRequest](env)
		if err != nil {
			return nil, nil, err
		}
		ack, err := d.engine.StartGame(client.ID, req)
		return ack, nil, err

	case events.SubmitPoints:
		req, err := DecodeData[events.SubmitPointsRequest](env)
		if err != nil {
			return nil, nil, err
		}
		ack, err := d.engine.SubmitPoints(client.ID, req)
		if err != nil {
			return nil, nil, err
		}
		return ack, func() {
			d.out.SendToConnection(client.ID, events.SubmittedEvent, events.SubmittedPayload{
				RoomID: registry.NormalizeRoomID(req.RoomID),
				Points: ack.Points,
			})
		}, nil

	case events.SetName:
		req, err := DecodeData[events.SetNameRequest](env)
		if err != nil {
			return nil, nil, err
		}
		ack, err := d.engine.SetName(client.ID, req)
		return ack, nil, err

	case events.ReadyNext:
		req, err := DecodeData[events.RoomRequest](env)
		if err != nil {
			return nil, nil, err
		}
		ack, err := d.engine.ReadyNext(client.ID, req)
		return ack, nil, err

	case events.LeaveRoom:
		req, err := DecodeData[events.RoomRequest](env)
		if err != nil {
			return nil, nil, err
		}
		return nil, nil, d.engine.LeaveRoom(client.ID, req)

	default:
		return nil, nil, fmt.Errorf("%w: unknown command %q", events.ErrInvalidPayload, env.Type)
	}
}
