// Package grid holds the static board: bounds, obstacles, and the pure
// position arithmetic every other package builds on.
package grid

import "fmt"

// Cell is a (row, col) position. Zero value is the origin; Cell is
// comparable and safe as a map key.
type Cell struct {
	Row, Col int
}

func (c Cell) String() string {
	return fmt.Sprintf("[%d, %d]", c.Row, c.Col)
}

// Dir is a unit step in one of the four orthogonal directions, or (0,0)
// for "no direction yet" / WAIT.
type Dir struct {
	DRow, DCol int
}

var Zero = Dir{}

// Grid is the immutable static board.
type Grid struct {
	Rows, Cols int
	Obstacles  map[Cell]struct{}
}

// New builds a grid with the given dimensions and obstacle set. The
// obstacle set is copied so callers may discard their own copy.
func New(rows, cols int, obstacles map[Cell]struct{}) *Grid {
	g := &Grid{Rows: rows, Cols: cols, Obstacles: make(map[Cell]struct{}, len(obstacles))}
	for c := range obstacles {
		g.Obstacles[c] = struct{}{}
	}
	return g
}

// InBounds reports whether c lies within the grid's rows and columns.
func (g *Grid) InBounds(c Cell) bool {
	return c.Row >= 0 && c.Row < g.Rows && c.Col >= 0 && c.Col < g.Cols
}

// IsObstacle reports whether c is a static obstacle.
func (g *Grid) IsObstacle(c Cell) bool {
	_, ok := g.Obstacles[c]
	return ok
}

// IsFree reports in-bounds and not an obstacle.
func (g *Grid) IsFree(c Cell) bool {
	return g.InBounds(c) && !g.IsObstacle(c)
}

// Manhattan returns the L1 distance between two cells.
func Manhattan(a, b Cell) int {
	return absInt(a.Row-b.Row) + absInt(a.Col-b.Col)
}

func absInt(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// Direction returns the unit step from 'from' toward 'to'. It is only
// meaningful for adjacent cells; for non-adjacent cells it returns the
// sign of each axis, which callers use only as a soft tiebreak.
func Direction(from, to Cell) Dir {
	return Dir{DRow: sign(to.Row - from.Row), DCol: sign(to.Col - from.Col)}
}

func sign(n int) int {
	switch {
	case n > 0:
		return 1
	case n < 0:
		return -1
	default:
		return 0
	}
}

// IsTurn reports whether moving in newDir changes heading relative to
// oldDir. No prior direction (oldDir == Zero) is never a turn.
func IsTurn(oldDir, newDir Dir) bool {
	if oldDir == Zero {
		return false
	}
	return oldDir != newDir
}

// Orthogonal4 returns the four orthogonal neighbors of c, in a fixed,
// deterministic order (up, down, left, right).
func Orthogonal4(c Cell) [4]Cell {
	return [4]Cell{
		{Row: c.Row - 1, Col: c.Col},
		{Row: c.Row + 1, Col: c.Col},
		{Row: c.Row, Col: c.Col - 1},
		{Row: c.Row, Col: c.Col + 1},
	}
}

// Neighbors8 returns the eight neighbors (orthogonal + diagonal) of c.
func Neighbors8(c Cell) [8]Cell {
	return [8]Cell{
		{c.Row - 1, c.Col - 1}, {c.Row - 1, c.Col}, {c.Row - 1, c.Col + 1},
		{c.Row, c.Col - 1}, {c.Row, c.Col + 1},
		{c.Row + 1, c.Col - 1}, {c.Row + 1, c.Col}, {c.Row + 1, c.Col + 1},
	}
}

// CorridorScore is the number of free 8-neighbors of c (0 for obstacle
// cells themselves).
func (g *Grid) CorridorScore(c Cell) int {
	if g.IsObstacle(c) {
		return 0
	}
	score := 0
	for _, n := range Neighbors8(c) {
		if g.IsFree(n) {
			score++
		}
	}
	return score
}

// OpenOrthogonalCount is the number of free 4-neighbors of c, used to
// detect narrow passages.
func (g *Grid) OpenOrthogonalCount(c Cell) int {
	n := 0
	for _, nb := range Orthogonal4(c) {
		if g.IsFree(nb) {
			n++
		}
	}
	return n
}

// IsNarrowPassage reports whether c has two or fewer open 4-neighbors.
func (g *Grid) IsNarrowPassage(c Cell) bool {
	return g.OpenOrthogonalCount(c) <= 2
}

// WallRect expands an inclusive rectangle [r1,c1,r2,c2] (corners may be
// given in any order) into the set of cells it covers.
func WallRect(r1, c1, r2, c2 int) (map[Cell]struct{}, error) {
	rStart, rEnd := minInt(r1, r2), maxInt(r1, r2)
	cStart, cEnd := minInt(c1, c2), maxInt(c1, c2)
	cells := make(map[Cell]struct{}, (rEnd-rStart+1)*(cEnd-cStart+1))
	for r := rStart; r <= rEnd; r++ {
		for c := cStart; c <= cEnd; c++ {
			cells[Cell{Row: r, Col: c}] = struct{}{}
		}
	}
	return cells, nil
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
