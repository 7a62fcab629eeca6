// Copyright (c) 2026 Andrey Kriulin
// Licensed under the MIT License.
// See the LICENSE file in the project root for full license text.

package geom

import (
	"math"

	"github.com/pkg/errors"
)

// Extent is an axis-aligned bounding box.
type Extent[V Vector[V]] struct {
	Min V
	Max V
}

// ExtentOf returns the bounding box of points.
func ExtentOf[V Vector[V], S Space[V]](s S, points []V) (Extent[V], error) {
	if len(points) == 0 {
		return Extent[V]{}, errors.New("geom: extent of an empty point set")
	}
	lo := s.Coords(points[0])
	hi := lo
	for _, p := range points[1:] {
		c := s.Coords(p)
		for i := range s.Dim() {
			lo[i] = math.Min(lo[i], c[i])
			hi[i] = math.Max(hi[i], c[i])
		}
	}
	return Extent[V]{Min: s.FromCoords(lo), Max: s.FromCoords(hi)}, nil
}

// Center returns the midpoint of the box.
func (e Extent[V]) Center() V {
	return e.Min.Add(e.Max).Mul(0.5)
}

// Size returns the side lengths of the box.
func (e Extent[V]) Size() V {
	return e.Max.Sub(e.Min)
}

// Radius returns the radius of the sphere around Center that encloses the box.
func (e Extent[V]) Radius() float64 {
	return e.Max.Sub(e.Min).Norm() / 2
}

// Union returns the smallest box containing a and b.
func Union[V Vector[V], S Space[V]](s S, a, b Extent[V]) Extent[V] {
	alo, ahi := s.Coords(a.Min), s.Coords(a.Max)
	blo, bhi := s.Coords(b.Min), s.Coords(b.Max)
	for i := range s.Dim() {
		alo[i] = math.Min(alo[i], blo[i])
		ahi[i] = math.Max(ahi[i], bhi[i])
	}
	return Extent[V]{Min: s.FromCoords(alo), Max: s.FromCoords(ahi)}
}

// Padded returns e grown by rel times its largest side on every side. Sides of
// zero length are first widened so that the result always has volume.
func Padded[V Vector[V], S Space[V]](s S, e Extent[V], rel float64) Extent[V] {
	lo, hi := s.Coords(e.Min), s.Coords(e.Max)
	longest := 0.0
	for i := range s.Dim() {
		longest = math.Max(longest, hi[i]-lo[i])
	}
	if longest == 0 {
		longest = 1
	}
	pad := rel * longest
	for i := range s.Dim() {
		side := hi[i] - lo[i]
		if side == 0 {
			lo[i] -= longest / 2
			hi[i] += longest / 2
		}
		lo[i] -= pad
		hi[i] += pad
	}
	return Extent[V]{Min: s.FromCoords(lo), Max: s.FromCoords(hi)}
}

// ContainsPoint reports whether p lies in the closed box.
func ContainsPoint[V Vector[V], S Space[V]](s S, e Extent[V], p V) bool {
	lo, hi, c := s.Coords(e.Min), s.Coords(e.Max), s.Coords(p)
	for i := range s.Dim() {
		if c[i] < lo[i] || c[i] > hi[i] {
			return false
		}
	}
	return true
}

// IntersectsSphere reports whether the sphere around center with radius r
// touches the box.
func IntersectsSphere[V Vector[V], S Space[V]](s S, e Extent[V], center V, r float64) bool {
	lo, hi, c := s.Coords(e.Min), s.Coords(e.Max), s.Coords(center)
	dist2 := 0.0
	for i := range s.Dim() {
		switch {
		case c[i] < lo[i]:
			d := lo[i] - c[i]
			dist2 += d * d
		case c[i] > hi[i]:
			d := c[i] - hi[i]
			dist2 += d * d
		}
	}
	return dist2 <= r*r
}
