// Copyright (c) 2026 Andrey Kriulin
// Licensed under the MIT License.
// See the LICENSE file in the project root for full license text.

package halo

import (
	"context"
	"slices"
	"time"

	"github.com/Tehforsch/subsweep-sub001/delaunay"
	"github.com/Tehforsch/subsweep-sub001/geom"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// Iteration imports halo points into a triangulation.
type Iteration[V geom.Vector[V], S geom.Space[V]] struct {
	tri    *delaunay.Triangulation[V, S]
	search RadiusSearch[V]
	opts   Options

	checked  map[delaunay.TetraIndex]struct{}
	haloes   map[ParticleID]delaunay.PointIndex
	rounds   int
	imported int
}

// NewIteration prepares an iteration over tri.
func NewIteration[V geom.Vector[V], S geom.Space[V]](tri *delaunay.Triangulation[V, S], search RadiusSearch[V], setters ...Option) (*Iteration[V, S], error) {
	opts := defaultOptions()
	for _, set := range setters {
		if err := set(&opts); err != nil {
			return nil, err
		}
	}
	if opts.Termination == PerRank {
		if c, ok := search.(collective); ok && c.Collective() {
			return nil, ErrUnsupportedTermination
		}
	}
	return &Iteration[V, S]{
		tri:     tri,
		search:  search,
		opts:    opts,
		checked: make(map[delaunay.TetraIndex]struct{}),
		haloes:  make(map[ParticleID]delaunay.PointIndex),
	}, nil
}

// Rounds returns the number of completed rounds.
func (it *Iteration[V, S]) Rounds() int {
	return it.rounds
}

// Imported returns the number of inserted halo points.
func (it *Iteration[V, S]) Imported() int {
	return it.imported
}

// Haloes maps the identity of every imported point to its index.
func (it *Iteration[V, S]) Haloes() map[ParticleID]delaunay.PointIndex {
	return it.haloes
}

// Run performs rounds until the termination rule is met.
func (it *Iteration[V, S]) Run(ctx context.Context) error {
	log := it.opts.Logger
	for {
		undecided := it.undecided()
		done, err := it.finished(ctx, len(undecided))
		if err != nil {
			return errors.Wrapf(err, "halo: termination check in round %d", it.rounds)
		}
		if done {
			log.Info("halo iteration finished",
				zap.Int("rounds", it.rounds),
				zap.Int("halo_points", it.imported))
			return nil
		}
		if it.opts.MaxRounds > 0 && it.rounds >= it.opts.MaxRounds {
			return errors.Wrapf(ErrNotConverged, "halo: %d undecided simplices after %d rounds", len(undecided), it.rounds)
		}

		start := time.Now()
		imported, err := it.round(ctx, undecided)
		if err != nil {
			return errors.Wrapf(err, "halo: round %d", it.rounds)
		}
		it.rounds++
		log.Debug("halo round",
			zap.Int("round", it.rounds),
			zap.Int("undecided", len(undecided)),
			zap.Int("imported", imported),
			zap.Duration("duration", time.Since(start)))
		if it.opts.RoundHook != nil {
			it.opts.RoundHook(it.rounds)
		}
	}
}

func (it *Iteration[V, S]) finished(ctx context.Context, numUndecided int) (bool, error) {
	if it.opts.Termination == PerRank {
		return numUndecided == 0, nil
	}
	return it.search.EveryoneFinished(ctx, numUndecided)
}

// undecided returns the unchecked simplices that have a local point and no
// guard point. Stale entries are dropped from the checked set.
func (it *Iteration[V, S]) undecided() []delaunay.TetraIndex {
	var out []delaunay.TetraIndex
	for ti := range it.checked {
		if !it.tri.Tetras.Contains(ti) {
			delete(it.checked, ti)
		}
	}
	for ti := range it.tri.Tetras.All() {
		if _, ok := it.checked[ti]; ok {
			continue
		}
		if it.tri.HasKind(ti, delaunay.Inner) && !it.tri.HasKind(ti, delaunay.Outer) {
			out = append(out, ti)
		}
	}
	return out
}

func (it *Iteration[V, S]) round(ctx context.Context, undecided []delaunay.TetraIndex) (int, error) {
	requests := make([]SearchData[V], 0, len(undecided))
	for _, ti := range undecided {
		c, r, err := it.tri.Circumsphere(ti)
		if err != nil {
			return 0, err
		}
		requests = append(requests, SearchData[V]{Center: c, Radius: r * it.opts.SafetyFactor, Tetra: ti})
	}

	results, err := it.search.UniqueRadiusSearch(ctx, requests)
	if err != nil {
		return 0, errors.Wrap(err, "halo: radius search")
	}

	answered := make(map[delaunay.TetraIndex]struct{})
	imported := 0
	ranks := lo.Keys(results)
	slices.Sort(ranks)
	for _, rank := range ranks {
		for _, res := range results[rank] {
			answered[res.Tetra] = struct{}{}
			if _, ok := it.haloes[res.ID]; ok {
				continue
			}
			pi, err := it.tri.Insert(res.Point, delaunay.HaloPoint(int(rank)))
			if err != nil {
				return imported, errors.Wrapf(err, "halo: import particle %d from %v", res.ID, rank)
			}
			it.haloes[res.ID] = pi
			imported++
		}
	}
	it.imported += imported

	for _, ti := range undecided {
		if _, ok := answered[ti]; !ok {
			it.checked[ti] = struct{}{}
		}
	}
	return imported, nil
}
