// Copyright (c) 2026 Andrey Kriulin
// Licensed under the MIT License.
// See the LICENSE file in the project root for full license text.

package halo

import (
	"slices"

	"github.com/Tehforsch/subsweep-sub001/geom"
	"github.com/dhconnelly/rtreego"
	"github.com/pkg/errors"
)

const (
	minBranch = 8
	maxBranch = 32
)

type indexed[V any] struct {
	particle Particle[V]
	rect     rtreego.Rect
}

func (e *indexed[V]) Bounds() rtreego.Rect {
	return e.rect
}

// PointIndex answers sphere queries over a fixed set of particles.
type PointIndex[V geom.Vector[V], S geom.Space[V]] struct {
	space S
	tree  *rtreego.Rtree
	size  int
}

// NewPointIndex bulk loads particles into an R-tree.
func NewPointIndex[V geom.Vector[V], S geom.Space[V]](space S, particles []Particle[V]) (*PointIndex[V, S], error) {
	objs := make([]rtreego.Spatial, 0, len(particles))
	for _, p := range particles {
		pt := point(space, p.Position)
		rect, err := rtreego.NewRectFromPoints(pt, pt)
		if err != nil {
			return nil, errors.Wrapf(err, "halo: index particle %d", p.ID)
		}
		objs = append(objs, &indexed[V]{particle: p, rect: rect})
	}
	return &PointIndex[V, S]{
		space: space,
		tree:  rtreego.NewTree(space.Dim(), minBranch, maxBranch, objs...),
		size:  len(particles),
	}, nil
}

// Len returns the number of indexed particles.
func (x *PointIndex[V, S]) Len() int {
	return x.size
}

// Within returns the particles at distance at most radius from center,
// nearest first. Ties are broken by ID.
func (x *PointIndex[V, S]) Within(center V, radius float64) []Particle[V] {
	if x.size == 0 || radius < 0 {
		return nil
	}
	// rtreego treats touching boxes as disjoint, so the query box is widened
	// and the exact distance decides.
	box := point(x.space, center).ToRect(radius*(1+1e-9) + 1e-300)

	type hit struct {
		particle Particle[V]
		dist     float64
	}
	var hits []hit
	for _, obj := range x.tree.SearchIntersect(box) {
		p := obj.(*indexed[V]).particle
		if d := geom.Distance(center, p.Position); d <= radius {
			hits = append(hits, hit{particle: p, dist: d})
		}
	}
	slices.SortFunc(hits, func(a, b hit) int {
		switch {
		case a.dist < b.dist:
			return -1
		case a.dist > b.dist:
			return 1
		case a.particle.ID < b.particle.ID:
			return -1
		case a.particle.ID > b.particle.ID:
			return 1
		}
		return 0
	})

	out := make([]Particle[V], len(hits))
	for i, h := range hits {
		out[i] = h.particle
	}
	return out
}

// Nearest returns the particle closest to p.
func (x *PointIndex[V, S]) Nearest(p V) (Particle[V], bool) {
	if x.size == 0 {
		return Particle[V]{}, false
	}
	obj := x.tree.NearestNeighbor(point(x.space, p))
	if obj == nil {
		return Particle[V]{}, false
	}
	return obj.(*indexed[V]).particle, true
}

func point[V geom.Vector[V], S geom.Space[V]](space S, v V) rtreego.Point {
	c := space.Coords(v)
	return append(rtreego.Point(nil), c[:space.Dim()]...)
}
