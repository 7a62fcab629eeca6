// Copyright (c) 2026 Andrey Kriulin
// Licensed under the MIT License.
// See the LICENSE file in the project root for full license text.

package voronoi

import (
	"github.com/Tehforsch/subsweep-sub001/delaunay"
	"github.com/Tehforsch/subsweep-sub001/geom"
	"github.com/pkg/errors"
	"github.com/samber/lo"
)

// ConnectionKind tells whether a face borders another cell or the guard.
type ConnectionKind uint8

const (
	// ToInner faces border the cell of a local or halo point.
	ToInner ConnectionKind = iota
	// ToOuter faces border a guard point.
	ToOuter
)

func (k ConnectionKind) String() string {
	if k == ToOuter {
		return "outer"
	}
	return "inner"
}

// CellConnection is the neighbor across a face. Neighbor.Kind distinguishes a
// local neighbor from a halo neighbor owned by Neighbor.Origin.
type CellConnection struct {
	Kind     ConnectionKind
	ID       ParticleID
	Neighbor delaunay.PointKind
}

// Face is the boundary between two cells.
type Face[V any] struct {
	Area float64
	// Normal is the unit vector from the cell's point to the neighbor's point.
	Normal     V
	Connection CellConnection
	// Vertices are the segment endpoints in 2-D and the ordered polygon in 3-D.
	Vertices []V
}

// Cell is the Voronoi cell of one local point.
type Cell[V geom.Vector[V]] struct {
	ID         ParticleID
	PointIndex delaunay.PointIndex
	Center     V
	// Points are the cell vertices, in counter-clockwise order in 2-D.
	Points []V
	Faces  []Face[V]
	Volume float64
	// Size is the radius of the ball with the cell's volume.
	Size float64
	// Infinite cells touch the guard simplex; their geometry is clipped by it.
	Infinite bool
}

// Contains reports whether p lies in the cell, boundary included.
func (c Cell[V]) Contains(p V) bool {
	const eps = 1e-12
	for _, f := range c.Faces {
		if len(f.Vertices) == 0 {
			continue
		}
		if p.Sub(f.Vertices[0]).Dot(f.Normal) > eps*(1+c.Size) {
			return false
		}
	}
	return true
}

// Grid is the set of cells of all local points, ordered by ID.
type Grid[V geom.Vector[V]] struct {
	Cells []Cell[V]
	byID  map[ParticleID]int
}

func newGrid[V geom.Vector[V]](cells []Cell[V]) *Grid[V] {
	g := &Grid[V]{Cells: cells, byID: make(map[ParticleID]int, len(cells))}
	for i, c := range cells {
		g.byID[c.ID] = i
	}
	return g
}

func (g *Grid[V]) NumCells() int {
	return len(g.Cells)
}

// Cell returns the cell at index i.
// It returns an error if the index is out of range.
func (g *Grid[V]) Cell(i int) (Cell[V], error) {
	if i < 0 || i >= len(g.Cells) {
		return Cell[V]{}, errors.Errorf("Cell: index %d out of range [0 %d)", i, len(g.Cells))
	}
	return g.Cells[i], nil
}

func (g *Grid[V]) CellByID(id ParticleID) (Cell[V], bool) {
	i, ok := g.byID[id]
	if !ok {
		return Cell[V]{}, false
	}
	return g.Cells[i], true
}

// TotalVolume sums the volumes of the finite cells.
func (g *Grid[V]) TotalVolume() float64 {
	return lo.SumBy(lo.Filter(g.Cells, func(c Cell[V], _ int) bool { return !c.Infinite }), func(c Cell[V]) float64 {
		return c.Volume
	})
}

// FiniteCells returns the cells that do not touch the guard simplex.
func (g *Grid[V]) FiniteCells() []Cell[V] {
	return lo.Filter(g.Cells, func(c Cell[V], _ int) bool { return !c.Infinite })
}
