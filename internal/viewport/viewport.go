// Package viewport materializes the per-player sanitized window of the
// world. Nothing a client cannot legitimately see survives the projection:
// covered tiles keep their kind, number, and exploded marker server-side, and
// spawn points are never exposed.
package viewport

import (
	"github.com/fed135/mine-land/internal/grid"
	"github.com/fed135/mine-land/internal/net/proto"
	"github.com/fed135/mine-land/internal/player"
)

const (
	// DefaultExtent is the half-extent used when a client omits a viewport
	// size.
	DefaultExtent = 20
	// MaxExtent caps the half-extent per axis.
	MaxExtent = 100
)

// Extent clamps a requested half-extent into the supported range.
func Extent(requested int) int {
	if requested <= 0 {
		return DefaultExtent
	}
	if requested > MaxExtent {
		return MaxExtent
	}
	return requested
}

// Materialize builds the sanitized tile and player window centered on the
// viewer. Tiles iterate row-major and players come back sorted by id, so two
// materializations without an intervening action are byte-equivalent.
func Materialize(g *grid.Grid, reg *player.Registry, viewer *player.Player, halfX, halfY int) proto.ViewportPayload {
	halfX = Extent(halfX)
	halfY = Extent(halfY)

	payload := proto.ViewportPayload{
		Tiles:   make([]proto.TileView, 0, (2*halfX+1)*(2*halfY+1)/4),
		Players: make([]player.Public, 0, 4),
	}
	if g == nil || viewer == nil {
		return payload
	}

	center := viewer.Pos
	for y := center.Y - halfY; y <= center.Y+halfY; y++ {
		for x := center.X - halfX; x <= center.X+halfX; x++ {
			p := grid.Pos{X: x, Y: y}
			t := g.At(p)
			if t == nil {
				continue
			}
			if view, visible := sanitize(p, t, center); visible {
				payload.Tiles = append(payload.Tiles, view)
			}
		}
	}

	if reg != nil {
		for _, other := range reg.All() {
			if !other.Connected {
				continue
			}
			dx := abs(other.Pos.X - center.X)
			dy := abs(other.Pos.Y - center.Y)
			if dx > halfX || dy > halfY {
				continue
			}
			payload.Players = append(payload.Players, other.Public())
		}
	}
	return payload
}

// sanitize decides what, if anything, a viewer learns about one tile. A
// revealed tile travels in full; a flagged or directly adjacent covered tile
// travels as a stub; everything else is omitted.
func sanitize(p grid.Pos, t *grid.Tile, viewer grid.Pos) (proto.TileView, bool) {
	if t.Revealed {
		return proto.RevealedTileView(p, t), true
	}
	if t.Flagged || grid.Chebyshev(p, viewer) <= 1 {
		return proto.CoveredTileView(p, t), true
	}
	return proto.TileView{}, false
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
