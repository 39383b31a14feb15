package grid

import "testing"

func TestWalkable(t *testing.T) {
	g := New(8, 8)

	revealedEmpty := Pos{X: 1, Y: 1}
	g.At(revealedEmpty).Revealed = true

	revealedMine := Pos{X: 2, Y: 1}
	g.At(revealedMine).Kind = KindMine
	g.At(revealedMine).Revealed = true

	flaggedCovered := Pos{X: 3, Y: 1}
	g.At(flaggedCovered).Kind = KindMine
	g.At(flaggedCovered).Flagged = true

	covered := Pos{X: 4, Y: 1}

	cases := []struct {
		name string
		pos  Pos
		want bool
	}{
		{"revealed empty", revealedEmpty, true},
		{"revealed mine", revealedMine, false},
		{"flagged covered mine", flaggedCovered, true},
		{"covered", covered, false},
		{"out of bounds", Pos{X: -1, Y: 0}, false},
		{"beyond edge", Pos{X: 8, Y: 8}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := g.Walkable(tc.pos); got != tc.want {
				t.Fatalf("Walkable(%+v) = %v, want %v", tc.pos, got, tc.want)
			}
		})
	}
}

func TestAtOutOfBounds(t *testing.T) {
	g := New(4, 4)
	if g.At(Pos{X: 4, Y: 0}) != nil {
		t.Fatalf("expected nil tile outside the grid")
	}
	if g.At(Pos{X: 0, Y: -1}) != nil {
		t.Fatalf("expected nil tile for negative coordinates")
	}
}

func TestDistances(t *testing.T) {
	a := Pos{X: 3, Y: 4}
	b := Pos{X: 6, Y: 2}
	if got := Chebyshev(a, b); got != 3 {
		t.Fatalf("Chebyshev = %d, want 3", got)
	}
	if got := Manhattan(a, b); got != 5 {
		t.Fatalf("Manhattan = %d, want 5", got)
	}
	if Chebyshev(a, a) != 0 || Manhattan(a, a) != 0 {
		t.Fatalf("distance to self must be zero")
	}
}

func TestAdjacentMinesAtEdge(t *testing.T) {
	g := New(3, 3)
	g.At(Pos{X: 1, Y: 0}).Kind = KindMine
	g.At(Pos{X: 2, Y: 2}).Kind = KindMine

	if got := g.AdjacentMines(Pos{X: 0, Y: 0}); got != 1 {
		t.Fatalf("corner count = %d, want 1", got)
	}
	if got := g.AdjacentMines(Pos{X: 1, Y: 1}); got != 2 {
		t.Fatalf("center count = %d, want 2", got)
	}
}
