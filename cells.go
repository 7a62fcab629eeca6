// Copyright (c) 2026 Andrey Kriulin
// Licensed under the MIT License.
// See the LICENSE file in the project root for full license text.

package voronoi

import (
	"math"

	"github.com/Tehforsch/subsweep-sub001/delaunay"
	"github.com/Tehforsch/subsweep-sub001/geom"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

func vec[V geom.Vector[V], S geom.Space[V]](space S, v V) r3.Vector {
	c := space.Coords(v)
	return r3.Vector{X: c[0], Y: c[1], Z: c[2]}
}

func unvec[V geom.Vector[V], S geom.Space[V]](space S, v r3.Vector) V {
	return space.FromCoords([3]float64{v.X, v.Y, v.Z})
}

// buildCell constructs the cell of the local point pi.
func buildCell[V geom.Vector[V], S geom.Space[V]](d *TriangulationData[V, S], id ParticleID, pi delaunay.PointIndex) (Cell[V], error) {
	tri := d.Triangulation
	incident := d.Incident(pi)
	if len(incident) == 0 {
		return Cell[V]{}, errors.Errorf("voronoi: point %v has no incident simplices", pi)
	}
	cell := Cell[V]{
		ID:         id,
		PointIndex: pi,
		Center:     tri.Position(pi),
	}
	for _, ti := range incident {
		if tri.ContainsOuter(ti) {
			cell.Infinite = true
			break
		}
	}

	var err error
	if tri.Dim() == 2 {
		err = buildCell2D(d, &cell)
	} else {
		err = buildCell3D(d, &cell)
	}
	if err != nil {
		return Cell[V]{}, errors.Wrapf(err, "voronoi: cell of particle %d", id)
	}
	return cell, nil
}

// buildCell2D walks the triangles around the point counter-clockwise. The
// triangle after (p, a, b) is the one across the edge (p, b), and the cell edge
// between their circumcenters is dual to that edge.
func buildCell2D[V geom.Vector[V], S geom.Space[V]](d *TriangulationData[V, S], cell *Cell[V]) error {
	tri := d.Triangulation
	space := tri.Space()
	pi := cell.PointIndex
	p := vec(space, cell.Center)

	start := d.Incident(pi)[0]
	var (
		centers   []r3.Vector
		neighbors []delaunay.PointIndex
	)
	ti := start
	for range len(d.Incident(pi)) + 1 {
		tet := tri.Tetras.At(ti)
		k := tet.Slot(pi)
		centers = append(centers, vec(space, d.Circumcenter(ti)))
		neighbors = append(neighbors, tet.Points[(k+2)%3])
		next := tet.Faces[(k+1)%3].Opposing
		if !next.Valid() {
			return errors.New("fan around point is not closed")
		}
		ti = next.Tetra
		if ti == start {
			break
		}
	}
	if ti != start {
		return errors.New("fan around point does not return to its start")
	}

	n := len(centers)
	area := 0.0
	for i := range n {
		a, b := centers[i], centers[(i+1)%n]
		area += a.X*b.Y - b.X*a.Y

		q := vec(space, tri.Position(neighbors[i]))
		cell.Faces = append(cell.Faces, Face[V]{
			Area:       b.Sub(a).Norm(),
			Normal:     unvec[V](space, q.Sub(p).Normalize()),
			Connection: d.Connection(neighbors[i]),
			Vertices:   []V{unvec[V](space, a), unvec[V](space, b)},
		})
		cell.Points = append(cell.Points, unvec[V](space, a))
	}
	cell.Volume = math.Abs(area) / 2
	cell.Size = math.Sqrt(cell.Volume / math.Pi)
	return nil
}

// buildCell3D builds one face per Delaunay edge (p, q). The face is the polygon
// of circumcenters of the ring of tetrahedra around the edge.
func buildCell3D[V geom.Vector[V], S geom.Space[V]](d *TriangulationData[V, S], cell *Cell[V]) error {
	tri := d.Triangulation
	space := tri.Space()
	pi := cell.PointIndex
	p := vec(space, cell.Center)

	seen := make(map[delaunay.TetraIndex]struct{})
	first := make(map[delaunay.PointIndex]delaunay.TetraIndex)
	var order []delaunay.PointIndex
	for _, ti := range d.Incident(pi) {
		if _, ok := seen[ti]; !ok {
			seen[ti] = struct{}{}
			cell.Points = append(cell.Points, d.Circumcenter(ti))
		}
		for _, q := range tri.Tetras.At(ti).Points[:4] {
			if q == pi {
				continue
			}
			if _, ok := first[q]; !ok {
				first[q] = ti
				order = append(order, q)
			}
		}
	}

	for _, q := range order {
		ring, err := edgeRing(d, pi, q, first[q])
		if err != nil {
			return err
		}
		poly := make([]r3.Vector, len(ring))
		for i, ti := range ring {
			poly[i] = vec(space, d.Circumcenter(ti))
		}
		area := 0.0
		for i := 1; i+1 < len(poly); i++ {
			area += poly[i].Sub(poly[0]).Cross(poly[i+1].Sub(poly[0])).Norm() / 2
		}
		normal := vec(space, tri.Position(q)).Sub(p).Normalize()
		cell.Volume += area * math.Abs(normal.Dot(poly[0].Sub(p))) / 3

		verts := make([]V, len(poly))
		for i, v := range poly {
			verts[i] = unvec[V](space, v)
		}
		cell.Faces = append(cell.Faces, Face[V]{
			Area:       area,
			Normal:     unvec[V](space, normal),
			Connection: d.Connection(q),
			Vertices:   verts,
		})
	}
	cell.Size = math.Cbrt(3 * cell.Volume / (4 * math.Pi))
	return nil
}

// edgeRing returns the tetrahedra around the edge (p, q) in cyclic order,
// starting at start. Each step leaves the current tetrahedron across the face
// opposite the point it shares with the previous one.
func edgeRing[V geom.Vector[V], S geom.Space[V]](d *TriangulationData[V, S], p, q delaunay.PointIndex, start delaunay.TetraIndex) ([]delaunay.TetraIndex, error) {
	tri := d.Triangulation
	limit := len(d.Incident(p))
	ring := []delaunay.TetraIndex{start}

	tet := tri.Tetras.At(start)
	var came delaunay.PointIndex
	for _, x := range tet.Points[:4] {
		if x != p && x != q {
			came = x
			break
		}
	}
	ti := start
	for range limit {
		tet = tri.Tetras.At(ti)
		k := tet.Slot(came)
		next := tet.Faces[k].Opposing
		if !next.Valid() {
			return nil, errors.Errorf("ring around edge %v-%v is not closed", p, q)
		}
		// The point shared with the tetrahedron just left, other than p and q.
		for _, x := range tet.Points[:4] {
			if x != p && x != q && x != came {
				came = x
				break
			}
		}
		ti = next.Tetra
		if ti == start {
			return ring, nil
		}
		ring = append(ring, ti)
	}
	return nil, errors.Errorf("ring around edge %v-%v does not return to its start", p, q)
}
