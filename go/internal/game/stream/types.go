package stream

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// RoomEvent is one broadcast mirrored out of the process.
type RoomEvent struct {
	ID        uuid.UUID
	RoomID    string
	EventType string
	Payload   []byte
	CreatedAt time.Time
}

// Publisher sends a RoomEvent to an external bus.
type Publisher interface {
	Publish(ctx context.Context, event RoomEvent) error
}
