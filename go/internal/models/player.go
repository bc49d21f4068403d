package models

// Player is a participant bound to one connection inside a room.
type Player struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Color    string `json:"color"`
	Emoji    string `json:"emoji"`
	SocketID string `json:"socketId"`
}

// PlayerSummary is the roster view of a player sent in lobby broadcasts.
type PlayerSummary struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
	Emoji string `json:"emoji"`
}

// Summary returns the roster view of the player
func (p *Player) Summary() PlayerSummary {
	return PlayerSummary{ID: p.ID, Name: p.Name, Color: p.Color, Emoji: p.Emoji}
}
