// Copyright (c) 2026 Andrey Kriulin
// Licensed under the MIT License.
// See the LICENSE file in the project root for full license text.

package halo

import (
	"context"
	"slices"

	"github.com/Tehforsch/subsweep-sub001/geom"
	"github.com/Tehforsch/subsweep-sub001/transport"
	"github.com/samber/lo"
)

// Local is the search of a single worker owning every point. It never finds
// anything.
type Local[V geom.Vector[V]] struct{}

func (Local[V]) UniqueRadiusSearch(context.Context, []SearchData[V]) (map[transport.Rank][]SearchResult[V], error) {
	return nil, nil
}

func (Local[V]) GlobalExtent(context.Context) (geom.Extent[V], error) {
	return geom.Extent[V]{}, ErrNoExtent
}

func (Local[V]) EveryoneFinished(_ context.Context, numUndecided int) (bool, error) {
	return numUndecided == 0, nil
}

// Static searches a fixed set of foreign points held in the same process.
// Every point is reported at most once.
type Static[V geom.Vector[V], S geom.Space[V]] struct {
	space   S
	indices map[transport.Rank]*PointIndex[V, S]
	ranks   []transport.Rank
	extent  geom.Extent[V]
	empty   bool
	sent    map[ParticleID]struct{}
}

// NewStatic indexes the foreign points of every other rank.
func NewStatic[V geom.Vector[V], S geom.Space[V]](space S, foreign map[transport.Rank][]Particle[V]) (*Static[V, S], error) {
	s := &Static[V, S]{
		space:   space,
		indices: make(map[transport.Rank]*PointIndex[V, S], len(foreign)),
		sent:    make(map[ParticleID]struct{}),
	}
	var all []V
	for rank, particles := range foreign {
		idx, err := NewPointIndex(space, particles)
		if err != nil {
			return nil, err
		}
		s.indices[rank] = idx
		all = append(all, lo.Map(particles, func(p Particle[V], _ int) V { return p.Position })...)
	}
	s.ranks = lo.Keys(s.indices)
	slices.Sort(s.ranks)
	if len(all) == 0 {
		s.empty = true
		return s, nil
	}
	e, err := geom.ExtentOf(space, all)
	if err != nil {
		return nil, err
	}
	s.extent = e
	return s, nil
}

func (s *Static[V, S]) UniqueRadiusSearch(_ context.Context, data []SearchData[V]) (map[transport.Rank][]SearchResult[V], error) {
	out := make(map[transport.Rank][]SearchResult[V])
	for _, req := range data {
		for _, rank := range s.ranks {
			for _, p := range s.indices[rank].Within(req.Center, req.Radius) {
				if _, ok := s.sent[p.ID]; ok {
					continue
				}
				s.sent[p.ID] = struct{}{}
				out[rank] = append(out[rank], SearchResult[V]{Point: p.Position, ID: p.ID, Tetra: req.Tetra})
			}
		}
	}
	return out, nil
}

// GlobalExtent returns the extent of the foreign points. Callers union it
// with their local extent.
func (s *Static[V, S]) GlobalExtent(context.Context) (geom.Extent[V], error) {
	if s.empty {
		return geom.Extent[V]{}, ErrNoExtent
	}
	return s.extent, nil
}

func (s *Static[V, S]) EveryoneFinished(_ context.Context, numUndecided int) (bool, error) {
	return numUndecided == 0, nil
}
