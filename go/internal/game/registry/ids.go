package registry

import (
	"crypto/rand"
	"math/big"
	"strings"
)

const (
	// RoomIDLength is the length of generated room ids.
	RoomIDLength = 6
	// PracticeRoomID is the reserved id of the always-available practice room.
	PracticeRoomID = "0"
)

const roomIDChars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// NormalizeRoomID trims and upper-cases a client supplied room id.
func NormalizeRoomID(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}

func generateRoomID() string {
	b := make([]byte, RoomIDLength)
	max := big.NewInt(int64(len(roomIDChars)))
	for i := range b {
		idx, _ := rand.Int(rand.Reader, max)
		b[i] = roomIDChars[idx.Int64()]
	}
	return string(b)
}
