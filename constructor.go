// Copyright (c) 2026 Andrey Kriulin
// Licensed under the MIT License.
// See the LICENSE file in the project root for full license text.

// Package voronoi builds Voronoi grids from distributed point sets.
//
// Every worker triangulates its own points, imports the foreign points that
// can influence its cells through a halo.RadiusSearch, and projects the
// finished Delaunay triangulation onto the cells of its own points.
package voronoi

import (
	"context"
	"iter"
	"slices"
	"time"

	"github.com/Tehforsch/subsweep-sub001/delaunay"
	"github.com/Tehforsch/subsweep-sub001/geom"
	"github.com/Tehforsch/subsweep-sub001/halo"
	"github.com/Tehforsch/subsweep-sub001/visualizer"
	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// ParticleID identifies a point across all workers.
type ParticleID = halo.ParticleID

// Constructor holds a finished local triangulation and builds the grid of the
// local points from it.
type Constructor[V geom.Vector[V], S geom.Space[V]] struct {
	space  S
	data   *TriangulationData[V, S]
	opts   Options
	rounds int
	grid   *Grid[V]
}

type (
	Constructor2D = Constructor[r2.Point, geom.TwoD]
	Constructor3D = Constructor[r3.Vector, geom.ThreeD]
)

// Construct triangulates points, completes the triangulation with halo points
// from search and indexes the result. Any error aborts the construction.
func Construct[V geom.Vector[V], S geom.Space[V]](ctx context.Context, space S, points iter.Seq2[ParticleID, V], search halo.RadiusSearch[V], setters ...Option) (*Constructor[V, S], error) {
	if search == nil {
		return nil, errors.New("voronoi: nil search")
	}
	return construct(ctx, space, points, search, true, setters)
}

// OnlyDelaunay triangulates points without importing halo points.
func OnlyDelaunay[V geom.Vector[V], S geom.Space[V]](ctx context.Context, space S, points iter.Seq2[ParticleID, V], setters ...Option) (*Constructor[V, S], error) {
	return construct(ctx, space, points, halo.Local[V]{}, false, setters)
}

func Construct2D(ctx context.Context, points iter.Seq2[ParticleID, r2.Point], search halo.RadiusSearch[r2.Point], setters ...Option) (*Constructor2D, error) {
	return Construct(ctx, geom.TwoD{}, points, search, setters...)
}

func Construct3D(ctx context.Context, points iter.Seq2[ParticleID, r3.Vector], search halo.RadiusSearch[r3.Vector], setters ...Option) (*Constructor3D, error) {
	return Construct(ctx, geom.ThreeD{}, points, search, setters...)
}

// NewLocal2D constructs the grid of points on a single worker. The ID of each
// point is its index.
func NewLocal2D(points []r2.Point, setters ...Option) (*Constructor2D, error) {
	return Construct2D(context.Background(), Points2D(points), halo.Local[r2.Point]{}, setters...)
}

// NewLocal3D constructs the grid of points on a single worker. The ID of each
// point is its index.
func NewLocal3D(points []r3.Vector, setters ...Option) (*Constructor3D, error) {
	return Construct3D(context.Background(), Points3D(points), halo.Local[r3.Vector]{}, setters...)
}

// Points2D yields the points with their index as ID.
func Points2D(points []r2.Point) iter.Seq2[ParticleID, r2.Point] {
	return indexed(points)
}

// Points3D yields the points with their index as ID.
func Points3D(points []r3.Vector) iter.Seq2[ParticleID, r3.Vector] {
	return indexed(points)
}

func indexed[V any](points []V) iter.Seq2[ParticleID, V] {
	return func(yield func(ParticleID, V) bool) {
		for i, p := range points {
			if !yield(ParticleID(i), p) {
				return
			}
		}
	}
}

func construct[V geom.Vector[V], S geom.Space[V]](ctx context.Context, space S, points iter.Seq2[ParticleID, V], search halo.RadiusSearch[V], withHalo bool, setters []Option) (*Constructor[V, S], error) {
	opts := defaultOptions()
	for _, set := range setters {
		if err := set(&opts); err != nil {
			return nil, err
		}
	}
	log := opts.Logger

	var (
		ids       []ParticleID
		positions []V
	)
	for id, p := range points {
		ids = append(ids, id)
		positions = append(positions, p)
	}

	extent, err := constructionExtent(ctx, space, positions, search, opts)
	if err != nil {
		return nil, err
	}
	var triOpts []delaunay.Option
	if opts.GuardScale != 0 {
		triOpts = append(triOpts, delaunay.WithGuardScale(opts.GuardScale))
	}
	tri, err := delaunay.New(space, extent, triOpts...)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	log.Debug("local construction started",
		zap.Int("points", len(positions)),
		zap.Int("dimension", space.Dim()))
	inner := NewBiMap[ParticleID, delaunay.PointIndex]()
	for i, p := range positions {
		if _, ok := inner.Get(ids[i]); ok {
			return nil, errors.Errorf("voronoi: duplicate particle id %d", ids[i])
		}
		pi, err := tri.Insert(p, delaunay.InnerPoint())
		if err != nil {
			return nil, errors.Wrapf(err, "voronoi: insert particle %d", ids[i])
		}
		if err := inner.Insert(ids[i], pi); err != nil {
			return nil, err
		}
	}
	log.Debug("local construction finished",
		zap.Int("points", len(positions)),
		zap.Int("tetras", tri.Tetras.Len()),
		zap.Int("dimension", space.Dim()),
		zap.Duration("duration", time.Since(start)))
	if opts.Visualizer != nil {
		if err := visualizer.DumpTriangulation(opts.Visualizer, "local", tri); err != nil {
			return nil, err
		}
	}

	c := &Constructor[V, S]{space: space, opts: opts}
	haloes := NewBiMap[ParticleID, delaunay.PointIndex]()
	if withHalo {
		it, err := halo.NewIteration(tri, search,
			halo.WithSafetyFactor(opts.SafetyFactor),
			halo.WithTermination(opts.Termination),
			halo.WithMaxRounds(opts.MaxRounds),
			halo.WithLogger(log),
			halo.WithRoundHook(func(round int) {
				if opts.Visualizer == nil {
					return
				}
				if err := visualizer.DumpTriangulation(opts.Visualizer, "halo", tri); err != nil {
					log.Warn("dump failed", zap.Int("round", round), zap.Error(err))
				}
			}))
		if err != nil {
			return nil, err
		}
		if err := it.Run(ctx); err != nil {
			return nil, err
		}
		c.rounds = it.Rounds()
		for id, pi := range it.Haloes() {
			if err := haloes.Insert(id, pi); err != nil {
				return nil, err
			}
		}
	}

	data, err := NewTriangulationData(tri, inner, haloes)
	if err != nil {
		return nil, err
	}
	c.data = data
	return c, nil
}

// constructionExtent returns the region the guard simplex has to enclose: the
// configured extent, or the local extent joined with the extent known to the
// search.
func constructionExtent[V geom.Vector[V], S geom.Space[V]](ctx context.Context, space S, positions []V, search halo.RadiusSearch[V], opts Options) (geom.Extent[V], error) {
	if opts.extent != nil {
		e, ok := opts.extent.(geom.Extent[V])
		if !ok {
			return geom.Extent[V]{}, errors.Errorf("voronoi: extent of type %T does not match the point type", opts.extent)
		}
		return geom.Padded(space, e, extentPadding), nil
	}

	var (
		extent geom.Extent[V]
		found  bool
	)
	if len(positions) > 0 {
		e, err := geom.ExtentOf(space, positions)
		if err != nil {
			return geom.Extent[V]{}, err
		}
		extent, found = e, true
	}
	global, err := search.GlobalExtent(ctx)
	switch {
	case errors.Is(err, halo.ErrNoExtent):
	case err != nil:
		return geom.Extent[V]{}, errors.Wrap(err, "voronoi: global extent")
	case found:
		extent = geom.Union(space, extent, global)
	default:
		extent, found = global, true
	}
	if !found {
		return geom.Extent[V]{}, errors.New("voronoi: no points and no global extent")
	}
	return geom.Padded(space, extent, extentPadding), nil
}

// Grid returns the cells of the local points, ordered by ID. It is built on
// the first call.
func (c *Constructor[V, S]) Grid() (*Grid[V], error) {
	if c.grid != nil {
		return c.grid, nil
	}
	ids := make([]ParticleID, 0, c.data.Inner.Len())
	for id := range c.data.Inner.All() {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	cells := make([]Cell[V], 0, len(ids))
	for _, id := range ids {
		pi, _ := c.data.Inner.Get(id)
		cell, err := buildCell(c.data, id, pi)
		if err != nil {
			return nil, err
		}
		cells = append(cells, cell)
	}
	grid := newGrid(cells)

	if d := c.opts.Visualizer; d != nil {
		sites := lo.Map(cells, func(cell Cell[V], _ int) V { return cell.Center })
		var polygons [][]V
		for _, cell := range cells {
			if c.space.Dim() == 2 {
				polygons = append(polygons, cell.Points)
				continue
			}
			for _, f := range cell.Faces {
				polygons = append(polygons, f.Vertices)
			}
		}
		if err := visualizer.DumpGrid(d, c.space, "grid", sites, polygons); err != nil {
			return nil, err
		}
	}
	c.grid = grid
	return grid, nil
}

func (c *Constructor[V, S]) Triangulation() *delaunay.Triangulation[V, S] {
	return c.data.Triangulation
}

func (c *Constructor[V, S]) Data() *TriangulationData[V, S] {
	return c.data
}

// PointByID returns the index of a local or halo point.
func (c *Constructor[V, S]) PointByID(id ParticleID) (delaunay.PointIndex, bool) {
	if pi, ok := c.data.Inner.Get(id); ok {
		return pi, true
	}
	return c.data.Haloes.Get(id)
}

// IDByPoint returns the identity of a local or halo point. Guard points have
// none.
func (c *Constructor[V, S]) IDByPoint(pi delaunay.PointIndex) (ParticleID, bool) {
	if id, ok := c.data.Inner.Key(pi); ok {
		return id, true
	}
	return c.data.Haloes.Key(pi)
}

// Rounds returns the number of halo rounds run.
func (c *Constructor[V, S]) Rounds() int {
	return c.rounds
}

// HaloCount returns the number of imported halo points.
func (c *Constructor[V, S]) HaloCount() int {
	return c.data.Haloes.Len()
}
