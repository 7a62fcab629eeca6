// Copyright (c) 2026 Andrey Kriulin
// Licensed under the MIT License.
// See the LICENSE file in the project root for full license text.

// Package halo completes a worker's local triangulation with the foreign
// points that can influence its cells.
//
// Every simplex made only of local points whose circumsphere could still
// contain a foreign point is turned into a radius search. Found points are
// inserted as halo points and the affected simplices are searched again in the
// next round, until no worker has undecided simplices left.
package halo

import (
	"context"
	"math"

	"github.com/Tehforsch/subsweep-sub001/delaunay"
	"github.com/Tehforsch/subsweep-sub001/geom"
	"github.com/Tehforsch/subsweep-sub001/transport"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const DefaultSafetyFactor = 1.05

var (
	// ErrNotConverged is returned when the round limit is reached.
	ErrNotConverged = errors.New("halo: iteration did not converge within the round limit")
	// ErrUnsupportedTermination is returned for per-rank termination with a
	// search that needs every worker in every round.
	ErrUnsupportedTermination = errors.New("halo: per-rank termination needs a non-collective search")
	// ErrNoExtent is returned by searches that know nothing beyond the local points.
	ErrNoExtent = errors.New("halo: search has no global extent")
)

// ParticleID identifies a point across all workers.
type ParticleID uint64

// Particle is a point with its identity.
type Particle[V any] struct {
	ID       ParticleID
	Position V
}

// SearchData asks for all foreign points within Radius of Center on behalf of
// the simplex Tetra.
type SearchData[V any] struct {
	Center V
	Radius float64
	Tetra  delaunay.TetraIndex
}

// SearchResult is a foreign point found for the simplex Tetra.
type SearchResult[V any] struct {
	Point V
	ID    ParticleID
	Tetra delaunay.TetraIndex
}

// RadiusSearch finds foreign points.
type RadiusSearch[V geom.Vector[V]] interface {
	// UniqueRadiusSearch returns foreign points within each search sphere,
	// grouped by owning rank. A point is returned at most once over the
	// lifetime of the search.
	UniqueRadiusSearch(ctx context.Context, data []SearchData[V]) (map[transport.Rank][]SearchResult[V], error)
	// GlobalExtent returns the extent of all points of all workers.
	GlobalExtent(ctx context.Context) (geom.Extent[V], error)
	// EveryoneFinished reports whether no worker has undecided simplices left.
	EveryoneFinished(ctx context.Context, numUndecided int) (bool, error)
}

// collective is implemented by searches that need every worker to take part
// in every round.
type collective interface {
	Collective() bool
}

// Termination selects when a worker leaves the round loop.
type Termination uint8

const (
	// Global stops when every worker is finished.
	Global Termination = iota
	// PerRank stops as soon as this worker has nothing left to ask.
	PerRank
)

func (t Termination) String() string {
	switch t {
	case Global:
		return "global"
	case PerRank:
		return "per-rank"
	}
	return "unknown"
}

// ParseTermination parses "global" or "per-rank".
func ParseTermination(s string) (Termination, error) {
	switch s {
	case "global", "":
		return Global, nil
	case "per-rank":
		return PerRank, nil
	}
	return Global, errors.Errorf("halo: unknown termination %q", s)
}

// Options configures an Iteration.
type Options struct {
	SafetyFactor float64
	Termination  Termination
	MaxRounds    int
	Logger       *zap.Logger
	RoundHook    func(round int)
}

// Option sets a field of Options.
type Option func(*Options) error

// WithSafetyFactor scales every search radius. It must be at least 1.
func WithSafetyFactor(f float64) Option {
	return func(o *Options) error {
		if f < 1 || math.IsInf(f, 0) || math.IsNaN(f) {
			return errors.Errorf("halo: safety factor must be at least 1, got %v", f)
		}
		o.SafetyFactor = f
		return nil
	}
}

// WithTermination sets the termination rule.
func WithTermination(t Termination) Option {
	return func(o *Options) error {
		if t != Global && t != PerRank {
			return errors.Errorf("halo: unknown termination %d", t)
		}
		o.Termination = t
		return nil
	}
}

// WithMaxRounds bounds the number of rounds. Zero means unbounded.
func WithMaxRounds(n int) Option {
	return func(o *Options) error {
		if n < 0 {
			return errors.Errorf("halo: max rounds must not be negative, got %d", n)
		}
		o.MaxRounds = n
		return nil
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(o *Options) error {
		if l == nil {
			return errors.New("halo: nil logger")
		}
		o.Logger = l
		return nil
	}
}

// WithRoundHook calls fn after every completed round.
func WithRoundHook(fn func(round int)) Option {
	return func(o *Options) error {
		o.RoundHook = fn
		return nil
	}
}

func defaultOptions() Options {
	return Options{
		SafetyFactor: DefaultSafetyFactor,
		Termination:  Global,
		Logger:       zap.NewNop(),
	}
}
