// Package lattice provides a fixed-size 3D occupancy grid. Each cell holds
// at most one occupant, and every position-taking operation is bounds-checked.
package lattice

import (
	"errors"
	"fmt"
)

// ErrOutOfBounds is returned when a position lies outside the grid.
var ErrOutOfBounds = errors.New("position out of bounds")

// Position is a cell coordinate.
type Position struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
	Z int `json:"z" yaml:"z"`
}

// Add returns the component-wise sum of p and o.
func (p Position) Add(o Position) Position {
	return Position{X: p.X + o.X, Y: p.Y + o.Y, Z: p.Z + o.Z}
}

func (p Position) String() string {
	return fmt.Sprintf("(%d,%d,%d)", p.X, p.Y, p.Z)
}

// Size holds the grid dimensions.
type Size struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
	Z int `json:"z" yaml:"z"`
}

// Cells returns the number of cells in a grid of this size.
func (s Size) Cells() int {
	return s.X * s.Y * s.Z
}

func (s Size) String() string {
	return fmt.Sprintf("%dx%dx%d", s.X, s.Y, s.Z)
}

// Validate checks that every dimension is positive.
func (s Size) Validate() error {
	if s.X <= 0 || s.Y <= 0 || s.Z <= 0 {
		return fmt.Errorf("grid dimensions must be positive, got %s", s)
	}
	return nil
}

// offsets lists the 26 lattice-adjacent offsets (3x3x3 minus the center).
var offsets = func() []Position {
	out := make([]Position, 0, 26)
	for dx := -1; dx <= 1; dx++ {
		for dy := -1; dy <= 1; dy++ {
			for dz := -1; dz <= 1; dz++ {
				if dx == 0 && dy == 0 && dz == 0 {
					continue
				}
				out = append(out, Position{X: dx, Y: dy, Z: dz})
			}
		}
	}
	return out
}()

// Grid is a dense 3D lattice of optional occupants.
// It is not safe for concurrent use.
type Grid[T any] struct {
	size     Size
	cells    []T
	occupied []bool
	count    int
}

// NewGrid creates an empty grid of the given size.
func NewGrid[T any](size Size) (*Grid[T], error) {
	if err := size.Validate(); err != nil {
		return nil, err
	}
	n := size.Cells()
	return &Grid[T]{
		size:     size,
		cells:    make([]T, n),
		occupied: make([]bool, n),
	}, nil
}

// Size returns the grid dimensions.
func (g *Grid[T]) Size() Size {
	return g.size
}

// Len returns the number of occupied cells.
func (g *Grid[T]) Len() int {
	return g.count
}

// InBounds reports whether pos lies inside the grid.
func (g *Grid[T]) InBounds(pos Position) bool {
	return pos.X >= 0 && pos.X < g.size.X &&
		pos.Y >= 0 && pos.Y < g.size.Y &&
		pos.Z >= 0 && pos.Z < g.size.Z
}

func (g *Grid[T]) index(pos Position) (int, error) {
	if !g.InBounds(pos) {
		return 0, fmt.Errorf("%w: %s in %s grid", ErrOutOfBounds, pos, g.size)
	}
	return (pos.X*g.size.Y+pos.Y)*g.size.Z + pos.Z, nil
}

// Place installs v at pos. It returns false without changes if the cell
// is already occupied.
func (g *Grid[T]) Place(pos Position, v T) (bool, error) {
	i, err := g.index(pos)
	if err != nil {
		return false, err
	}
	if g.occupied[i] {
		return false, nil
	}
	g.cells[i] = v
	g.occupied[i] = true
	g.count++
	return true, nil
}

// Remove frees the cell at pos and returns its former occupant, if any.
func (g *Grid[T]) Remove(pos Position) (T, bool, error) {
	var zero T
	i, err := g.index(pos)
	if err != nil {
		return zero, false, err
	}
	if !g.occupied[i] {
		return zero, false, nil
	}
	v := g.cells[i]
	g.cells[i] = zero
	g.occupied[i] = false
	g.count--
	return v, true, nil
}

// IsFree reports whether the cell at pos is empty.
func (g *Grid[T]) IsFree(pos Position) (bool, error) {
	i, err := g.index(pos)
	if err != nil {
		return false, err
	}
	return !g.occupied[i], nil
}

// Get returns the occupant at pos.
func (g *Grid[T]) Get(pos Position) (T, bool, error) {
	var zero T
	i, err := g.index(pos)
	if err != nil {
		return zero, false, err
	}
	if !g.occupied[i] {
		return zero, false, nil
	}
	return g.cells[i], true, nil
}

// Neighbors returns the in-bounds positions adjacent to pos, in a fixed order.
// Positions beyond the grid edge are skipped.
func (g *Grid[T]) Neighbors(pos Position) []Position {
	out := make([]Position, 0, len(offsets))
	for _, off := range offsets {
		n := pos.Add(off)
		if g.InBounds(n) {
			out = append(out, n)
		}
	}
	return out
}

// Each calls fn for every occupied cell in index order.
// Iteration stops early if fn returns false.
func (g *Grid[T]) Each(fn func(pos Position, v T) bool) {
	for x := 0; x < g.size.X; x++ {
		for y := 0; y < g.size.Y; y++ {
			for z := 0; z < g.size.Z; z++ {
				i := (x*g.size.Y+y)*g.size.Z + z
				if !g.occupied[i] {
					continue
				}
				if !fn(Position{X: x, Y: y, Z: z}, g.cells[i]) {
					return
				}
			}
		}
	}
}
