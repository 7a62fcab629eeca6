// Copyright (c) 2026 Andrey Kriulin
// Licensed under the MIT License.
// See the LICENSE file in the project root for full license text.

package delaunay

import (
	"container/heap"

	"github.com/Tehforsch/subsweep-sub001/geom"
	"github.com/pkg/errors"
)

// Insert adds p with the given kind and restores the Delaunay property.
//
// A point that is outside the guard simplex or lies on an existing face, edge
// or vertex is rejected before anything changes. An error during flipping
// leaves the mesh half updated and poisons the triangulation.
func (t *Triangulation[V, S]) Insert(p V, kind PointKind) (PointIndex, error) {
	if t.err != nil {
		return 0, errors.Wrap(ErrPoisoned, t.err.Error())
	}
	if !finite(t.space, p) {
		return 0, errors.Errorf("delaunay: non-finite point %v", p)
	}

	ti, err := t.locate(p)
	if err != nil {
		return 0, err
	}

	pi := t.Points.Insert(p)
	t.kinds[pi] = kind
	if err := t.split(ti, pi); err != nil {
		t.err = err
		return 0, err
	}
	if err := t.restore(pi); err != nil {
		t.err = err
		return 0, err
	}
	t.stats.Insertions++
	return pi, nil
}

// InsertAll inserts points in order and returns their indices.
func (t *Triangulation[V, S]) InsertAll(points []V, kind PointKind) ([]PointIndex, error) {
	out := make([]PointIndex, 0, len(points))
	for _, p := range points {
		pi, err := t.Insert(p, kind)
		if err != nil {
			return out, errors.Wrapf(err, "delaunay: insert %v", p)
		}
		out = append(out, pi)
	}
	return out, nil
}

// Locate returns the simplex that strictly contains p.
func (t *Triangulation[V, S]) Locate(p V) (TetraIndex, error) {
	return t.locate(p)
}

type containment uint8

const (
	outside containment = iota
	inside
	onBoundary
)

// contains tests p against every face of ti. crossed[i] is set when p lies
// beyond face i.
func (t *Triangulation[V, S]) contains(ti TetraIndex, p V) (containment, [4]bool) {
	var crossed [4]bool
	pts := t.TetraPositions(ti)
	res := inside
	for i := range pts {
		orig := pts[i]
		pts[i] = p
		switch t.pred.Orientation(pts) {
		case geom.Negative:
			crossed[i] = true
			res = outside
		case geom.Zero:
			if res == inside {
				res = onBoundary
			}
		}
		pts[i] = orig
	}
	return res, crossed
}

// locate walks from the most recently created simplex towards p, always
// expanding the candidate whose centroid is closest to p. If the walk runs
// dry it falls back to testing every simplex.
func (t *Triangulation[V, S]) locate(p V) (TetraIndex, error) {
	start := t.lastInsertion
	if !t.Tetras.Contains(start) {
		for ti := range t.Tetras.All() {
			start = ti
			break
		}
	}

	visited := map[TetraIndex]struct{}{start: {}}
	h := &tetraHeap{{tetra: start, dist: t.centroidDistance(start, p)}}
	for h.Len() > 0 {
		cur := heap.Pop(h).(tetraDist).tetra
		t.stats.LocateSteps++
		res, crossed := t.contains(cur, p)
		switch res {
		case inside:
			return cur, nil
		case onBoundary:
			return 0, errors.Wrapf(ErrDegenerate, "delaunay: %v lies on the boundary of %v", p, cur)
		}
		tet := t.Tetras.At(cur)
		for i := 0; i <= t.dim; i++ {
			next := tet.Faces[i].Opposing.Tetra
			if !crossed[i] || next == 0 {
				continue
			}
			if _, ok := visited[next]; ok {
				continue
			}
			visited[next] = struct{}{}
			heap.Push(h, tetraDist{tetra: next, dist: t.centroidDistance(next, p)})
		}
	}

	t.stats.FullScans++
	for ti := range t.Tetras.All() {
		if _, ok := visited[ti]; ok {
			continue
		}
		switch res, _ := t.contains(ti, p); res {
		case inside:
			return ti, nil
		case onBoundary:
			return 0, errors.Wrapf(ErrDegenerate, "delaunay: %v lies on the boundary of %v", p, ti)
		}
	}
	return 0, errors.Wrapf(ErrOutsideGuard, "delaunay: locate %v", p)
}

func (t *Triangulation[V, S]) centroidDistance(ti TetraIndex, p V) float64 {
	return geom.Distance(geom.Centroid(t.TetraPositions(ti)), p)
}

type tetraDist struct {
	tetra TetraIndex
	dist  float64
}

type tetraHeap []tetraDist

func (h tetraHeap) Len() int           { return len(h) }
func (h tetraHeap) Less(i, j int) bool { return h[i].dist < h[j].dist }
func (h tetraHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *tetraHeap) Push(x any)        { *h = append(*h, x.(tetraDist)) }

func (h *tetraHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// split replaces ti by D+1 simplices that share the new point pi.
func (t *Triangulation[V, S]) split(ti TetraIndex, pi PointIndex) error {
	tet := t.Tetras.At(ti)
	tuples := make([][4]PointIndex, t.dim+1)
	for k := range tuples {
		tuples[k] = tet.Points
		tuples[k][k] = pi
	}
	created, err := t.replace([]TetraIndex{ti}, tuples)
	if err != nil {
		return err
	}
	t.stats.Splits++
	t.enqueue(created, pi)
	return nil
}

type boundaryFace struct {
	key     [3]PointIndex
	face    FaceIndex
	outside ConnectionData
	used    bool
}

type pendingFace struct {
	key   [3]PointIndex
	tetra TetraIndex
	slot  int
	face  FaceIndex
	done  bool
}

// replace swaps the simplices old for new ones built from tuples. The union
// of old and new must cover the same region, so every boundary face of old
// is a face of exactly one new simplex and every other new face is shared by
// exactly two new simplices. Tuples are reoriented if needed; a flat tuple is
// rejected before the mesh is touched.
func (t *Triangulation[V, S]) replace(old []TetraIndex, tuples [][4]PointIndex) ([]TetraIndex, error) {
	pts := make([]V, t.dim+1)
	for n := range tuples {
		for i := range pts {
			pts[i] = t.Position(tuples[n][i])
		}
		switch t.pred.Orientation(pts) {
		case geom.Zero:
			return nil, errors.Wrapf(ErrDegenerate, "delaunay: flat simplex %v", tuples[n][:t.dim+1])
		case geom.Negative:
			tuples[n][0], tuples[n][1] = tuples[n][1], tuples[n][0]
		}
	}

	isOld := func(ti TetraIndex) bool {
		for _, o := range old {
			if o == ti {
				return true
			}
		}
		return false
	}

	var boundary []boundaryFace
	var internal []FaceIndex
	for _, ti := range old {
		tet := *t.Tetras.At(ti)
		for i := 0; i <= t.dim; i++ {
			fi := tet.Faces[i]
			if fi.Opposing.Valid() && isOld(fi.Opposing.Tetra) {
				internal = append(internal, fi.Face)
				continue
			}
			boundary = append(boundary, boundaryFace{
				key:     t.faceKey(tet.Points, i),
				face:    fi.Face,
				outside: fi.Opposing,
			})
		}
	}

	for _, ti := range old {
		t.Tetras.Remove(ti)
	}
	for _, f := range internal {
		// Each internal face was seen from both sides.
		t.Faces.Remove(f)
	}

	created := make([]TetraIndex, len(tuples))
	for n, tuple := range tuples {
		created[n] = t.Tetras.Insert(Tetra{Points: tuple})
	}

	var pending []pendingFace
	for n, ti := range created {
		tet := t.Tetras.At(ti)
		for i := 0; i <= t.dim; i++ {
			key := t.faceKey(tet.Points, i)
			if b := findBoundary(boundary, key); b != nil {
				b.used = true
				tet.Faces[i] = FaceInfo{Face: b.face, Opposing: b.outside}
				if b.outside.Valid() {
					other := t.Tetras.At(b.outside.Tetra)
					j := other.FaceSlot(b.face)
					if j < 0 {
						panic("delaunay: outside simplex lost its face " + b.face.String())
					}
					other.Faces[j].Opposing = ConnectionData{Tetra: ti, Point: tuples[n][i]}
				}
				continue
			}
			if pf := findPending(pending, key); pf != nil {
				pf.done = true
				other := t.Tetras.At(pf.tetra)
				tet.Faces[i] = FaceInfo{
					Face:     pf.face,
					Opposing: ConnectionData{Tetra: pf.tetra, Point: other.Points[pf.slot]},
				}
				other.Faces[pf.slot].Opposing = ConnectionData{Tetra: ti, Point: tuples[n][i]}
				continue
			}
			f := t.Faces.Insert(Face{Points: key})
			tet.Faces[i] = FaceInfo{Face: f}
			pending = append(pending, pendingFace{key: key, tetra: ti, slot: i, face: f})
		}
	}

	for _, b := range boundary {
		if !b.used {
			panic("delaunay: boundary face " + b.face.String() + " not covered by the new simplices")
		}
	}
	for _, pf := range pending {
		if !pf.done {
			panic("delaunay: face " + pf.face.String() + " has no partner among the new simplices")
		}
	}

	t.lastInsertion = created[len(created)-1]
	return created, nil
}

func findBoundary(faces []boundaryFace, key [3]PointIndex) *boundaryFace {
	for i := range faces {
		if faces[i].key == key && !faces[i].used {
			return &faces[i]
		}
	}
	return nil
}

func findPending(faces []pendingFace, key [3]PointIndex) *pendingFace {
	for i := range faces {
		if faces[i].key == key && !faces[i].done {
			return &faces[i]
		}
	}
	return nil
}
