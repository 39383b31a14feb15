package player

import (
	"time"

	"github.com/fed135/mine-land/internal/grid"
)

// Player is the authoritative record for one participant. Owned by the game
// engine; every mutation happens under the engine's world lock, so the
// struct itself carries no synchronization.
type Player struct {
	ID        string
	Username  string
	Color     string
	Pos       grid.Pos
	Score     int
	Flags     int
	Alive     bool
	Connected bool
	SessionID string
	ConnID    string
	JoinedAt  time.Time
}

// Public is the projection of a player that may leave the server.
type Public struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	X         int    `json:"x"`
	Y         int    `json:"y"`
	Score     int    `json:"score"`
	Flags     int    `json:"flags"`
	Alive     bool   `json:"alive"`
	Connected bool   `json:"connected"`
	Color     string `json:"color"`
}

// Public returns the wire-safe view of the player.
func (p *Player) Public() Public {
	if p == nil {
		return Public{}
	}
	return Public{
		ID:        p.ID,
		Username:  p.Username,
		X:         p.Pos.X,
		Y:         p.Pos.Y,
		Score:     p.Score,
		Flags:     p.Flags,
		Alive:     p.Alive,
		Connected: p.Connected,
		Color:     p.Color,
	}
}
