// Package stream mirrors room broadcasts onto a NATS JetStream stream for external consumers.
package stream

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/claimline/go/internal/game/events"
	"github.com/mcdev12/claimline/go/internal/game/lifecycle"
)

const (
	defaultBuffer  = 1024
	publishTimeout = 5 * time.Second
)

// Mirror is a lifecycle.Broadcaster that forwards everything to the wrapped broadcaster and
// publishes room broadcasts in the background. Publishing never blocks the round engine;
// events are dropped when the buffer is full.
type Mirror struct {
	inner     lifecycle.Broadcaster
	publisher Publisher
	clock     clockwork.Clock
	queue     chan RoomEvent

	mu    sync.Mutex
	stats MirrorStats
}

// MirrorStats counts what happened to mirrored events.
type MirrorStats struct {
	Published     uint64    `json:"published"`
	Failed        uint64    `json:"failed"`
	Dropped       uint64    `json:"dropped"`
	LastPublished time.Time `json:"lastPublished"`
	Queued        int       `json:"queued"`
}

// NewMirror wraps inner. buffer <= 0 uses a default size.
func NewMirror(inner lifecycle.Broadcaster, publisher Publisher, clock clockwork.Clock, buffer int) *Mirror {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Mirror{
		inner:     inner,
		publisher: publisher,
		clock:     clock,
		queue:     make(chan RoomEvent, buffer),
	}
}

func (m *Mirror) JoinRoom(roomID, connID string)  { m.inner.JoinRoom(roomID, connID) }
func (m *Mirror) LeaveRoom(roomID, connID string) { m.inner.LeaveRoom(roomID, connID) }

func (m *Mirror) SendToConnection(connID string, event events.Name, payload any) {
	m.inner.SendToConnection(connID, event, payload)
}

func (m *Mirror) BroadcastToRoom(roomID string, event events.Name, payload any) {
	m.inner.BroadcastToRoom(roomID, event, payload)

	data, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("room_id", roomID).Str("event", string(event)).Msg("mirror: marshal payload")
		return
	}
	ev := RoomEvent{
		ID:        uuid.New(),
		RoomID:    roomID,
		EventType: string(event),
		Payload:   data,
		CreatedAt: m.clock.Now(),
	}
	select {
	case m.queue <- ev:
	default:
		m.mu.Lock()
		m.stats.Dropped++
		m.mu.Unlock()
		log.Warn().Str("room_id", roomID).Str("event", string(event)).Msg("mirror queue full, event dropped")
	}
}

// Stats returns a snapshot of the mirror counters.
func (m *Mirror) Stats() MirrorStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.stats
	s.Queued = len(m.queue)
	return s
}

// Run publishes queued events in order until ctx is done.
func (m *Mirror) Run(ctx context.Context) {
	log.Info().Msg("stream mirror started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("stream mirror stopped")
			return
		case ev := <-m.queue:
			pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
			err := m.publisher.Publish(pubCtx, ev)
			cancel()

			m.mu.Lock()
			if err != nil {
				m.stats.Failed++
			} else {
				m.stats.Published++
				m.stats.LastPublished = m.clock.Now()
			}
			m.mu.Unlock()
			if err != nil {
				log.Error().
					Err(err).
					Str("room_id", ev.RoomID).
					Str("event", ev.EventType).
					Msg("mirror publish failed")
			}
		}
	}
}
