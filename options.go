// Copyright (c) 2026 Andrey Kriulin
// Licensed under the MIT License.
// See the LICENSE file in the project root for full license text.

package voronoi

import (
	"math"

	"github.com/Tehforsch/subsweep-sub001/delaunay"
	"github.com/Tehforsch/subsweep-sub001/geom"
	"github.com/Tehforsch/subsweep-sub001/halo"
	"github.com/Tehforsch/subsweep-sub001/visualizer"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	// extentPadding grows the extent handed to the guard simplex, relative to
	// its longest side.
	extentPadding = 0.1
)

type Options struct {
	SafetyFactor float64
	Termination  halo.Termination
	MaxRounds    int
	GuardScale   float64
	Logger       *zap.Logger
	Visualizer   *visualizer.Dumper

	// extent holds a geom.Extent[V]; it is checked against V in Construct.
	extent any
}

type Option func(*Options) error

func defaultOptions() Options {
	return Options{
		SafetyFactor: halo.DefaultSafetyFactor,
		Termination:  halo.Global,
		Logger:       zap.NewNop(),
	}
}

// WithSafetyFactor scales the radius of every halo search. It must be at
// least 1.
func WithSafetyFactor(f float64) Option {
	return func(o *Options) error {
		if f < 1 || math.IsInf(f, 0) || math.IsNaN(f) {
			return errors.Errorf("voronoi: safety factor must be at least 1, got %v", f)
		}
		o.SafetyFactor = f
		return nil
	}
}

func WithTermination(t halo.Termination) Option {
	return func(o *Options) error {
		if t != halo.Global && t != halo.PerRank {
			return errors.Errorf("voronoi: unknown termination %v", t)
		}
		o.Termination = t
		return nil
	}
}

// WithMaxRounds bounds the number of halo rounds. Zero means no bound.
func WithMaxRounds(n int) Option {
	return func(o *Options) error {
		if n < 0 {
			return errors.Errorf("voronoi: max rounds must not be negative, got %d", n)
		}
		o.MaxRounds = n
		return nil
	}
}

// WithGuardScale is passed on to the triangulation.
func WithGuardScale(scale float64) Option {
	return func(o *Options) error {
		if err := delaunay.WithGuardScale(scale)(&delaunay.Options{}); err != nil {
			return err
		}
		o.GuardScale = scale
		return nil
	}
}

// WithExtent fixes the region the guard simplex has to enclose. It must contain
// every local and halo point. V must match the point type of the constructor.
func WithExtent[V geom.Vector[V]](e geom.Extent[V]) Option {
	return func(o *Options) error {
		o.extent = e
		return nil
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(o *Options) error {
		if l == nil {
			return errors.New("voronoi: nil logger")
		}
		o.Logger = l
		return nil
	}
}

// WithVisualizer dumps the triangulation after local construction and after
// every halo round, and the grid once it is built.
func WithVisualizer(d *visualizer.Dumper) Option {
	return func(o *Options) error {
		if d == nil {
			return errors.New("voronoi: nil visualizer")
		}
		o.Visualizer = d
		return nil
	}
}
