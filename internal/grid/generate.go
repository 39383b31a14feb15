package grid

import (
	"math"
	"math/rand"
)

// Config tunes world generation. The zero value is unusable; start from
// DefaultConfig.
type Config struct {
	Width        int
	Height       int
	MineDensity  float64
	TokenDensity float64
	SpawnCount   int
	SpawnMargin  int
	Seed         string
}

// DefaultConfig matches the published world rules.
func DefaultConfig() Config {
	return Config{
		Width:        1000,
		Height:       1000,
		MineDensity:  0.075,
		TokenDensity: 0.02,
		SpawnCount:   10,
		SpawnMargin:  50,
		Seed:         "mine-land",
	}
}

func (c Config) normalized() Config {
	if c.Width < 8 {
		c.Width = 8
	}
	if c.Height < 8 {
		c.Height = 8
	}
	if c.MineDensity < 0 {
		c.MineDensity = 0
	}
	if c.MineDensity > 0.3 {
		c.MineDensity = 0.3
	}
	if c.TokenDensity < 0 {
		c.TokenDensity = 0
	}
	if c.TokenDensity > 0.3 {
		c.TokenDensity = 0.3
	}
	if c.SpawnCount < 1 {
		c.SpawnCount = 1
	}
	smaller := c.Width
	if c.Height < smaller {
		smaller = c.Height
	}
	if c.SpawnMargin < 0 {
		c.SpawnMargin = 0
	}
	if c.SpawnMargin > smaller/2-1 {
		c.SpawnMargin = smaller/2 - 1
	}
	if c.SpawnMargin < 0 {
		c.SpawnMargin = 0
	}
	if c.Seed == "" {
		c.Seed = "mine-land"
	}
	return c
}

// Generate lays down the world in four deterministic passes: spawn points,
// mines, flag tokens, neighbor numbers. The same config always produces the
// same grid.
func Generate(cfg Config) *Grid {
	cfg = cfg.normalized()
	g := New(cfg.Width, cfg.Height)

	placeSpawns(g, cfg)
	protected := protectedCells(g)

	mineTarget := int(float64(cfg.Width*cfg.Height) * cfg.MineDensity)
	g.Mines = placeScattered(g, cfg, "mines", KindMine, mineTarget, protected)

	tokenTarget := int(float64(cfg.Width*cfg.Height) * cfg.TokenDensity)
	placeScattered(g, cfg, "flag-tokens", KindFlagToken, tokenTarget, protected)

	numberCells(g)
	return g
}

// placeSpawns lays spawn points on a near-square lattice inside the margin
// and reveals them as empty ground.
func placeSpawns(g *Grid, cfg Config) {
	cols := int(math.Ceil(math.Sqrt(float64(cfg.SpawnCount))))
	if cols < 1 {
		cols = 1
	}
	rows := (cfg.SpawnCount + cols - 1) / cols

	spanX := cfg.Width - 2*cfg.SpawnMargin - 1
	spanY := cfg.Height - 2*cfg.SpawnMargin - 1
	if spanX < 0 {
		spanX = 0
	}
	if spanY < 0 {
		spanY = 0
	}

	seen := make(map[Pos]bool, cfg.SpawnCount)
	for i := 0; i < cfg.SpawnCount; i++ {
		col := i % cols
		row := i / cols
		p := Pos{X: cfg.SpawnMargin, Y: cfg.SpawnMargin}
		if cols > 1 {
			p.X += col * spanX / (cols - 1)
		} else {
			p.X += spanX / 2
		}
		if rows > 1 {
			p.Y += row * spanY / (rows - 1)
		} else {
			p.Y += spanY / 2
		}
		p = clampPos(g, p, cfg.SpawnMargin)
		if seen[p] {
			continue
		}
		seen[p] = true
		tile := g.At(p)
		tile.Kind = KindEmpty
		tile.Revealed = true
		g.spawns = append(g.spawns, p)
	}
}

func clampPos(g *Grid, p Pos, margin int) Pos {
	maxX := g.Width - margin - 1
	maxY := g.Height - margin - 1
	if p.X < margin {
		p.X = margin
	}
	if p.X > maxX {
		p.X = maxX
	}
	if p.Y < margin {
		p.Y = margin
	}
	if p.Y > maxY {
		p.Y = maxY
	}
	return p
}

// protectedCells marks every cell within Manhattan distance 2 of a spawn
// point, so neither mines nor tokens land next to fresh players.
func protectedCells(g *Grid) map[Pos]bool {
	protected := make(map[Pos]bool, len(g.spawns)*13)
	for _, s := range g.spawns {
		for dy := -2; dy <= 2; dy++ {
			for dx := -2; dx <= 2; dx++ {
				if abs(dx)+abs(dy) > 2 {
					continue
				}
				p := Pos{X: s.X + dx, Y: s.Y + dy}
				if g.InBounds(p) {
					protected[p] = true
				}
			}
		}
	}
	return protected
}

// placeScattered drops count cells of the given kind by rejection sampling,
// then finishes any shortfall with a shuffled scan of the remaining eligible
// ground. Occupied cells, spawn points, and the protected ring around spawns
// are rejected. Returns the number actually placed, which falls short of
// count only when the board runs out of eligible cells.
func placeScattered(g *Grid, cfg Config, label string, kind TileKind, count int, protected map[Pos]bool) int {
	if count <= 0 {
		return 0
	}
	rng := NewDeterministicRNG(cfg.Seed, label)
	placed := 0
	attempts := 0
	maxAttempts := count * 20
	for placed < count && attempts < maxAttempts {
		attempts++
		p := Pos{X: rng.Intn(g.Width), Y: rng.Intn(g.Height)}
		if protected[p] {
			continue
		}
		tile := g.At(p)
		if tile.Revealed || tile.Kind != KindEmpty {
			continue
		}
		tile.Kind = kind
		placed++
	}
	if placed < count {
		placed += fillShortfall(g, rng, kind, count-placed, protected)
	}
	return placed
}

// fillShortfall places need cells on whatever eligible ground remains,
// shuffled so dense boards do not bias toward the top rows.
func fillShortfall(g *Grid, rng *rand.Rand, kind TileKind, need int, protected map[Pos]bool) int {
	var free []Pos
	for y := 0; y < g.Height; y++ {
		for x := 0; x < g.Width; x++ {
			p := Pos{X: x, Y: y}
			if protected[p] {
				continue
			}
			tile := g.At(p)
			if tile.Revealed || tile.Kind != KindEmpty {
				continue
			}
			free = append(free, p)
		}
	}
	for i := len(free) - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		free[i], free[j] = free[j], free[i]
	}
	if need > len(free) {
		need = len(free)
	}
	for _, p := range free[:need] {
		g.At(p).Kind = kind
	}
	return need
}

// numberCells assigns adjacent-mine counts to the remaining covered ground.
// Flag tokens are deliberately not treated as mine-equivalents.
func numberCells(g *Grid) {
	for y := 0; y < g.Height; y++ {
		for x := 0; x < g.Width; x++ {
			tile := &g.tiles[y*g.Width+x]
			if tile.Revealed || tile.Kind != KindEmpty {
				continue
			}
			if n := g.AdjacentMines(Pos{X: x, Y: y}); n > 0 {
				tile.Kind = KindNumbered
				tile.Number = uint8(n)
			}
		}
	}
}
