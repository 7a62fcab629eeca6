// Copyright (c) 2026 Andrey Kriulin
// Licensed under the MIT License.
// See the LICENSE file in the project root for full license text.

// Package geom implements the dimension-generic geometry the mesh is built on:
// vectors, extents, simplex measures and robust orientation and in-sphere
// predicates with an exact arbitrary-precision fallback.
package geom

import (
	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
)

// Vector is the arithmetic a point type must provide. Both r2.Point and
// r3.Vector satisfy it.
type Vector[V any] interface {
	comparable
	Add(V) V
	Sub(V) V
	Mul(float64) V
	Dot(V) float64
	Norm() float64
}

// Space describes a dimension: how many coordinates a point of type V has
// and how to move between V and a fixed coordinate array. Implementations are
// zero-size and only used as type parameters.
type Space[V Vector[V]] interface {
	Dim() int
	Coords(v V) [3]float64
	FromCoords(c [3]float64) V
}

// TwoD is the planar space of r2.Point.
type TwoD struct{}

func (TwoD) Dim() int { return 2 }

func (TwoD) Coords(p r2.Point) [3]float64 { return [3]float64{p.X, p.Y, 0} }

func (TwoD) FromCoords(c [3]float64) r2.Point { return r2.Point{X: c[0], Y: c[1]} }

// ThreeD is the space of r3.Vector.
type ThreeD struct{}

func (ThreeD) Dim() int { return 3 }

func (ThreeD) Coords(v r3.Vector) [3]float64 { return [3]float64{v.X, v.Y, v.Z} }

func (ThreeD) FromCoords(c [3]float64) r3.Vector { return r3.Vector{X: c[0], Y: c[1], Z: c[2]} }

// Distance returns the Euclidean distance between a and b.
func Distance[V Vector[V]](a, b V) float64 {
	return a.Sub(b).Norm()
}

// Normalize returns v scaled to unit length. The zero vector is returned
// unchanged.
func Normalize[V Vector[V]](v V) V {
	n := v.Norm()
	if n == 0 {
		return v
	}
	return v.Mul(1 / n)
}

// Cross2 returns the z component of the cross product of two planar vectors.
func Cross2(a, b r2.Point) float64 {
	return a.X*b.Y - a.Y*b.X
}
