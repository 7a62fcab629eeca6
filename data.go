// Copyright (c) 2026 Andrey Kriulin
// Licensed under the MIT License.
// See the LICENSE file in the project root for full license text.

package voronoi

import (
	"iter"

	"github.com/Tehforsch/subsweep-sub001/delaunay"
	"github.com/Tehforsch/subsweep-sub001/geom"
	"github.com/pkg/errors"
)

// BiMap is a one-to-one map that can be looked up from both sides.
type BiMap[K, V comparable] struct {
	forward  map[K]V
	backward map[V]K
}

func NewBiMap[K, V comparable]() *BiMap[K, V] {
	return &BiMap[K, V]{
		forward:  make(map[K]V),
		backward: make(map[V]K),
	}
}

// Insert adds the pair (k, v). It fails if either side is already present.
func (m *BiMap[K, V]) Insert(k K, v V) error {
	if _, ok := m.forward[k]; ok {
		return errors.Errorf("voronoi: duplicate key %v", k)
	}
	if _, ok := m.backward[v]; ok {
		return errors.Errorf("voronoi: duplicate value %v", v)
	}
	m.forward[k] = v
	m.backward[v] = k
	return nil
}

func (m *BiMap[K, V]) Get(k K) (V, bool) {
	v, ok := m.forward[k]
	return v, ok
}

func (m *BiMap[K, V]) Key(v V) (K, bool) {
	k, ok := m.backward[v]
	return k, ok
}

func (m *BiMap[K, V]) Len() int {
	return len(m.forward)
}

// All iterates over the pairs in no particular order.
func (m *BiMap[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		for k, v := range m.forward {
			if !yield(k, v) {
				return
			}
		}
	}
}

// TriangulationData is a finished triangulation together with the identity of
// its points and the lookups needed to build cells.
type TriangulationData[V geom.Vector[V], S geom.Space[V]] struct {
	Triangulation *delaunay.Triangulation[V, S]
	// Inner maps the identity of every local point to its index.
	Inner *BiMap[ParticleID, delaunay.PointIndex]
	// Haloes maps the identity of every imported point to its index.
	Haloes *BiMap[ParticleID, delaunay.PointIndex]

	incident map[delaunay.PointIndex][]delaunay.TetraIndex
	centers  map[delaunay.TetraIndex]V
}

// NewTriangulationData indexes tri. haloes may be nil.
func NewTriangulationData[V geom.Vector[V], S geom.Space[V]](tri *delaunay.Triangulation[V, S], inner, haloes *BiMap[ParticleID, delaunay.PointIndex]) (*TriangulationData[V, S], error) {
	if haloes == nil {
		haloes = NewBiMap[ParticleID, delaunay.PointIndex]()
	}
	d := &TriangulationData[V, S]{
		Triangulation: tri,
		Inner:         inner,
		Haloes:        haloes,
		incident:      make(map[delaunay.PointIndex][]delaunay.TetraIndex, tri.Points.Len()),
		centers:       make(map[delaunay.TetraIndex]V, tri.Tetras.Len()),
	}
	for ti, tet := range tri.Tetras.All() {
		for _, pi := range tet.Points[:tri.Dim()+1] {
			d.incident[pi] = append(d.incident[pi], ti)
		}
		c, _, err := tri.Circumsphere(ti)
		if err != nil {
			return nil, err
		}
		d.centers[ti] = c
	}
	return d, nil
}

// Incident returns the simplices that have pi as a point.
func (d *TriangulationData[V, S]) Incident(pi delaunay.PointIndex) []delaunay.TetraIndex {
	return d.incident[pi]
}

// Circumcenter returns the cached circumcenter of ti.
func (d *TriangulationData[V, S]) Circumcenter(ti delaunay.TetraIndex) V {
	return d.centers[ti]
}

// Connection describes what lies on the far side of the face towards pi.
func (d *TriangulationData[V, S]) Connection(pi delaunay.PointIndex) CellConnection {
	kind := d.Triangulation.Kind(pi)
	switch kind.Kind {
	case delaunay.Inner:
		id, _ := d.Inner.Key(pi)
		return CellConnection{Kind: ToInner, ID: id, Neighbor: kind}
	case delaunay.Halo:
		id, _ := d.Haloes.Key(pi)
		return CellConnection{Kind: ToInner, ID: id, Neighbor: kind}
	}
	return CellConnection{Kind: ToOuter, Neighbor: kind}
}
