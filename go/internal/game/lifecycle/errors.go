package lifecycle

import (
	"errors"

	"github.com/mcdev12/claimline/go/internal/game/events"
	"github.com/mcdev12/claimline/go/internal/game/registry"
)

// Errors returned by Engine commands. Callers match them with errors.Is; the message of the
// wrapping error is safe to show to a player.
var (
	ErrRoomNotFound   = registry.ErrRoomNotFound
	ErrGameInProgress = registry.ErrGameInProgress
	ErrRoomIDTaken    = registry.ErrRoomIDTaken
	ErrInvalidPayload = events.ErrInvalidPayload

	ErrInvalidState            = errors.New("action not allowed in the current room state")
	ErrNotHost                 = errors.New("only the host can do that")
	ErrNotInRoom               = errors.New("not in room")
	ErrInsufficientPlayers     = errors.New("not enough players")
	ErrAlreadyRunning          = errors.New("game already running or counting down")
	ErrNotAcceptingSubmissions = errors.New("not accepting submissions")
)

var kinds = []struct {
	err  error
	kind string
}{
	{ErrRoomNotFound, "RoomNotFound"},
	{ErrGameInProgress, "GameInProgress"},
	{ErrRoomIDTaken, "RoomIdTaken"},
	{ErrInvalidPayload, "InvalidPayload"},
	{ErrInvalidState, "InvalidState"},
	{ErrNotHost, "NotHost"},
	{ErrNotInRoom, "NotInRoom"},
	{ErrInsufficientPlayers, "InsufficientPlayers"},
	{ErrAlreadyRunning, "AlreadyRunning"},
	{ErrNotAcceptingSubmissions, "NotAcceptingSubmissions"},
}

// Kind maps an error to the machine readable name sent in error acks.
func Kind(err error) string {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return "Internal"
}
