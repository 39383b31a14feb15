package grid

// Pos addresses one tile by integer coordinates.
type Pos struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Chebyshev returns the chessboard distance between two positions.
func Chebyshev(a, b Pos) int {
	dx := abs(a.X - b.X)
	dy := abs(a.Y - b.Y)
	if dx > dy {
		return dx
	}
	return dy
}

// Manhattan returns the taxicab distance between two positions.
func Manhattan(a, b Pos) int {
	return abs(a.X-b.X) + abs(a.Y-b.Y)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// TileKind is the underlying content of a cell. Clients never see the kind
// of a covered tile; sanitization happens in the viewport materializer.
type TileKind uint8

const (
	KindEmpty TileKind = iota
	KindNumbered
	KindMine
	KindFlagToken
	KindExplosion
)

func (k TileKind) String() string {
	switch k {
	case KindEmpty:
		return "empty"
	case KindNumbered:
		return "numbered"
	case KindMine:
		return "mine"
	case KindFlagToken:
		return "flag_token"
	case KindExplosion:
		return "explosion"
	default:
		return "unknown"
	}
}

// Tile is one cell of the world. Mutated only by the game engine under its
// write lock.
type Tile struct {
	Kind      TileKind
	Number    uint8
	Revealed  bool
	Flagged   bool
	Exploded  bool
	FlaggedBy string
}

// Covered reports whether the underlying kind is still hidden.
func (t *Tile) Covered() bool {
	return t != nil && !t.Revealed
}

// Grid owns the tile matrix and the spawn-point set.
type Grid struct {
	Width  int
	Height int
	// Mines is the number of mines laid down at generation time.
	Mines  int
	tiles  []Tile
	spawns []Pos
}

// New allocates a blank grid of covered empty tiles.
func New(width, height int) *Grid {
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	return &Grid{
		Width:  width,
		Height: height,
		tiles:  make([]Tile, width*height),
	}
}

// InBounds reports whether p addresses a tile.
func (g *Grid) InBounds(p Pos) bool {
	return g != nil && p.X >= 0 && p.X < g.Width && p.Y >= 0 && p.Y < g.Height
}

// At returns the tile at p, or nil when out of bounds.
func (g *Grid) At(p Pos) *Tile {
	if !g.InBounds(p) {
		return nil
	}
	return &g.tiles[p.Y*g.Width+p.X]
}

// Walkable reports whether a player may stand on p: a revealed non-mine
// tile or any flagged tile. Covered tiles and out-of-bounds are not
// walkable.
func (g *Grid) Walkable(p Pos) bool {
	t := g.At(p)
	if t == nil {
		return false
	}
	if t.Flagged {
		return true
	}
	return t.Revealed && t.Kind != KindMine
}

// AdjacentMines counts mines in the 8-neighborhood of p. Cells outside the
// grid count as non-mines.
func (g *Grid) AdjacentMines(p Pos) int {
	count := 0
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			if dx == 0 && dy == 0 {
				continue
			}
			if t := g.At(Pos{X: p.X + dx, Y: p.Y + dy}); t != nil && t.Kind == KindMine {
				count++
			}
		}
	}
	return count
}

// Spawns returns a copy of the spawn-point set.
func (g *Grid) Spawns() []Pos {
	if g == nil {
		return nil
	}
	return append([]Pos(nil), g.spawns...)
}

// IsSpawn reports whether p is a reserved spawn point.
func (g *Grid) IsSpawn(p Pos) bool {
	for _, s := range g.spawns {
		if s == p {
			return true
		}
	}
	return false
}
