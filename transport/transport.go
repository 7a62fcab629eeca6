// Copyright (c) 2026 Andrey Kriulin
// Licensed under the MIT License.
// See the LICENSE file in the project root for full license text.

// Package transport moves byte payloads and typed records between the
// workers of a mesh construction.
//
// Every operation is collective: all workers must call the same operations in
// the same order. The in-process LocalCluster implements the contract with a
// channel mesh and checks that workers stay in step.
package transport

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// ErrSequence is returned when workers call collectives out of step.
var ErrSequence = errors.New("transport: collective calls out of step")

// Rank identifies a worker.
type Rank int

func (r Rank) String() string {
	return fmt.Sprintf("rank %d", int(r))
}

// Communicator is the worker's view of the cluster.
type Communicator interface {
	Rank() Rank
	Size() int
	// Exchange sends outgoing[r] to every rank r and returns what every other
	// rank sent to this one. Missing entries are sent as empty payloads. The
	// result has an entry for every rank other than the caller, plus the
	// caller's own entry if it addressed itself.
	Exchange(ctx context.Context, outgoing map[Rank][]byte) (map[Rank][]byte, error)
}

type envelope struct {
	seq     uint64
	payload []byte
}

// LocalCluster connects n in-process workers.
type LocalCluster struct {
	size  int
	links [][]chan envelope
	comms []*LocalComm
}

// NewLocalCluster returns a cluster of n workers.
func NewLocalCluster(n int) (*LocalCluster, error) {
	if n < 1 {
		return nil, errors.Errorf("transport: cluster needs at least one worker, got %d", n)
	}
	c := &LocalCluster{size: n, links: make([][]chan envelope, n)}
	for from := range n {
		c.links[from] = make([]chan envelope, n)
		for to := range n {
			if from != to {
				// One spare slot lets a worker run one collective ahead.
				c.links[from][to] = make(chan envelope, 2)
			}
		}
	}
	for r := range n {
		c.comms = append(c.comms, &LocalComm{cluster: c, rank: Rank(r)})
	}
	return c, nil
}

// Size returns the number of workers.
func (c *LocalCluster) Size() int {
	return c.size
}

// Comm returns the communicator of rank r.
func (c *LocalCluster) Comm(r Rank) *LocalComm {
	return c.comms[r]
}

// LocalComm is one worker's endpoint of a LocalCluster. It must only be used
// from one goroutine.
type LocalComm struct {
	cluster *LocalCluster
	rank    Rank
	seq     uint64
}

func (c *LocalComm) Rank() Rank {
	return c.rank
}

func (c *LocalComm) Size() int {
	return c.cluster.size
}

func (c *LocalComm) Exchange(ctx context.Context, outgoing map[Rank][]byte) (map[Rank][]byte, error) {
	for r := range outgoing {
		if r < 0 || int(r) >= c.cluster.size {
			return nil, errors.Errorf("transport: %v addressed unknown %v", c.rank, r)
		}
	}
	c.seq++

	for to := range c.cluster.size {
		if Rank(to) == c.rank {
			continue
		}
		env := envelope{seq: c.seq, payload: outgoing[Rank(to)]}
		select {
		case c.cluster.links[c.rank][to] <- env:
		case <-ctx.Done():
			return nil, errors.Wrapf(ctx.Err(), "transport: %v sending to rank %d", c.rank, to)
		}
	}

	incoming := make(map[Rank][]byte, c.cluster.size)
	if own, ok := outgoing[c.rank]; ok {
		incoming[c.rank] = own
	}
	for from := range c.cluster.size {
		if Rank(from) == c.rank {
			continue
		}
		select {
		case env := <-c.cluster.links[from][c.rank]:
			if env.seq != c.seq {
				return nil, errors.Wrapf(ErrSequence, "transport: %v got message %d from rank %d during collective %d", c.rank, env.seq, from, c.seq)
			}
			incoming[Rank(from)] = env.payload
		case <-ctx.Done():
			return nil, errors.Wrapf(ctx.Err(), "transport: %v receiving from rank %d", c.rank, from)
		}
	}
	return incoming, nil
}

// Run calls fn once per worker of cluster, each in its own goroutine. The
// first error cancels the context of the other workers and is returned.
func Run(ctx context.Context, cluster *LocalCluster, fn func(ctx context.Context, comm Communicator) error) error {
	g, ctx := errgroup.WithContext(ctx)
	for r := range cluster.Size() {
		comm := cluster.Comm(Rank(r))
		g.Go(func() error {
			if err := fn(ctx, comm); err != nil {
				return errors.Wrapf(err, "transport: %v", comm.Rank())
			}
			return nil
		})
	}
	return g.Wait()
}
