// Copyright (c) 2026 Andrey Kriulin
// Licensed under the MIT License.
// See the LICENSE file in the project root for full license text.

package halo

import (
	"context"
	"slices"

	"github.com/Tehforsch/subsweep-sub001/geom"
	"github.com/Tehforsch/subsweep-sub001/transport"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

type extentRecord struct {
	Min   [3]float64
	Max   [3]float64
	Empty bool
}

type requestRecord struct {
	Center [3]float64
	Radius float64
	Tag    uint64
}

type replyRecord struct {
	Point [3]float64
	ID    uint64
	Tag   uint64
}

// exportCache remembers which particles were sent to which rank. Particles
// sent in the current round move to the permanent set on flush.
type exportCache struct {
	previously map[transport.Rank]map[ParticleID]struct{}
	now        map[transport.Rank]map[ParticleID]struct{}
}

func newExportCache() *exportCache {
	return &exportCache{
		previously: make(map[transport.Rank]map[ParticleID]struct{}),
		now:        make(map[transport.Rank]map[ParticleID]struct{}),
	}
}

func (c *exportCache) sent(rank transport.Rank, id ParticleID) bool {
	if _, ok := c.previously[rank][id]; ok {
		return true
	}
	_, ok := c.now[rank][id]
	return ok
}

func (c *exportCache) mark(rank transport.Rank, id ParticleID) {
	if c.now[rank] == nil {
		c.now[rank] = make(map[ParticleID]struct{})
	}
	c.now[rank][id] = struct{}{}
}

func (c *exportCache) flush() {
	for rank, ids := range c.now {
		if c.previously[rank] == nil {
			c.previously[rank] = ids
		} else {
			for id := range ids {
				c.previously[rank][id] = struct{}{}
			}
		}
		delete(c.now, rank)
	}
}

// ParallelOption configures a Parallel search.
type ParallelOption func(*parallelOptions) error

type parallelOptions struct {
	extent *extentRecord
	logger *zap.Logger
}

// WithFixedExtent makes GlobalExtent return e instead of the union of all
// local extents.
func WithFixedExtent[V geom.Vector[V], S geom.Space[V]](space S, e geom.Extent[V]) ParallelOption {
	return func(o *parallelOptions) error {
		o.extent = &extentRecord{Min: space.Coords(e.Min), Max: space.Coords(e.Max)}
		return nil
	}
}

// WithSearchLogger sets the logger of a Parallel search.
func WithSearchLogger(l *zap.Logger) ParallelOption {
	return func(o *parallelOptions) error {
		if l == nil {
			return errors.New("halo: nil logger")
		}
		o.logger = l
		return nil
	}
}

// Parallel is the search of a worker that owns part of the points and talks to
// the others over a transport.Communicator. Every call is collective.
type Parallel[V geom.Vector[V], S geom.Space[V]] struct {
	space   S
	comm    transport.Communicator
	local   *PointIndex[V, S]
	extents []extentRecord
	fixed   *extentRecord
	cache   *exportCache
	logger  *zap.Logger
}

// NewParallel indexes the local particles and gathers the extents of all
// workers. It is collective.
func NewParallel[V geom.Vector[V], S geom.Space[V]](ctx context.Context, comm transport.Communicator, space S, local []Particle[V], setters ...ParallelOption) (*Parallel[V, S], error) {
	var opts parallelOptions
	for _, set := range setters {
		if err := set(&opts); err != nil {
			return nil, err
		}
	}
	if opts.logger == nil {
		opts.logger = zap.NewNop()
	}

	idx, err := NewPointIndex(space, local)
	if err != nil {
		return nil, err
	}

	own := extentRecord{Empty: true}
	if len(local) > 0 {
		e, err := geom.ExtentOf(space, lo.Map(local, func(p Particle[V], _ int) V { return p.Position }))
		if err != nil {
			return nil, err
		}
		own = extentRecord{Min: space.Coords(e.Min), Max: space.Coords(e.Max)}
	}
	extents, err := transport.AllGather(ctx, comm, own)
	if err != nil {
		return nil, errors.Wrap(err, "halo: gather extents")
	}

	return &Parallel[V, S]{
		space:   space,
		comm:    comm,
		local:   idx,
		extents: extents,
		fixed:   opts.extent,
		cache:   newExportCache(),
		logger:  opts.logger.With(zap.Int("rank", int(comm.Rank()))),
	}, nil
}

func (p *Parallel[V, S]) Collective() bool {
	return true
}

func (p *Parallel[V, S]) extent(r extentRecord) geom.Extent[V] {
	return geom.Extent[V]{Min: p.space.FromCoords(r.Min), Max: p.space.FromCoords(r.Max)}
}

// UniqueRadiusSearch sends each request to the ranks whose extent meets the
// search sphere, answers the requests of the other ranks and collects the
// replies. Each request is answered with the nearest local particle not yet
// sent to the requesting rank.
func (p *Parallel[V, S]) UniqueRadiusSearch(ctx context.Context, data []SearchData[V]) (map[transport.Rank][]SearchResult[V], error) {
	requests := make(map[transport.Rank][]requestRecord)
	for i, req := range data {
		for r, rec := range p.extents {
			rank := transport.Rank(r)
			if rank == p.comm.Rank() || rec.Empty {
				continue
			}
			if !geom.IntersectsSphere(p.space, p.extent(rec), req.Center, req.Radius) {
				continue
			}
			requests[rank] = append(requests[rank], requestRecord{
				Center: p.space.Coords(req.Center),
				Radius: req.Radius,
				Tag:    uint64(i),
			})
		}
	}

	incoming, err := transport.ExchangeRecords(ctx, p.comm, requests)
	if err != nil {
		return nil, errors.Wrap(err, "halo: exchange requests")
	}

	replies := make(map[transport.Rank][]replyRecord)
	ranks := lo.Keys(incoming)
	slices.Sort(ranks)
	for _, rank := range ranks {
		for _, req := range incoming[rank] {
			for _, cand := range p.local.Within(p.space.FromCoords(req.Center), req.Radius) {
				if p.cache.sent(rank, cand.ID) {
					continue
				}
				p.cache.mark(rank, cand.ID)
				replies[rank] = append(replies[rank], replyRecord{
					Point: p.space.Coords(cand.Position),
					ID:    uint64(cand.ID),
					Tag:   req.Tag,
				})
				break
			}
		}
	}
	p.cache.flush()

	answers, err := transport.ExchangeRecords(ctx, p.comm, replies)
	if err != nil {
		return nil, errors.Wrap(err, "halo: exchange replies")
	}

	out := make(map[transport.Rank][]SearchResult[V])
	for rank, recs := range answers {
		for _, rec := range recs {
			if rec.Tag >= uint64(len(data)) {
				return nil, errors.Errorf("halo: %v answered unknown request %d", rank, rec.Tag)
			}
			out[rank] = append(out[rank], SearchResult[V]{
				Point: p.space.FromCoords(rec.Point),
				ID:    ParticleID(rec.ID),
				Tetra: data[rec.Tag].Tetra,
			})
		}
	}
	p.logger.Debug("radius search",
		zap.Int("requests", len(data)),
		zap.Int("answered", lo.SumBy(lo.Values(replies), func(r []replyRecord) int { return len(r) })),
		zap.Int("received", lo.SumBy(lo.Values(out), func(r []SearchResult[V]) int { return len(r) })))
	return out, nil
}

// GlobalExtent returns the configured extent, or the union of the extents of
// all workers.
func (p *Parallel[V, S]) GlobalExtent(context.Context) (geom.Extent[V], error) {
	if p.fixed != nil {
		return p.extent(*p.fixed), nil
	}
	var (
		out   geom.Extent[V]
		found bool
	)
	for _, rec := range p.extents {
		if rec.Empty {
			continue
		}
		if !found {
			out, found = p.extent(rec), true
			continue
		}
		out = geom.Union(p.space, out, p.extent(rec))
	}
	if !found {
		return geom.Extent[V]{}, ErrNoExtent
	}
	return out, nil
}

// EveryoneFinished sums the undecided counts of all workers.
func (p *Parallel[V, S]) EveryoneFinished(ctx context.Context, numUndecided int) (bool, error) {
	total, err := transport.AllReduceSum(ctx, p.comm, numUndecided)
	if err != nil {
		return false, errors.Wrap(err, "halo: reduce undecided counts")
	}
	return total == 0, nil
}
