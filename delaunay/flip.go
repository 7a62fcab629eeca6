// Copyright (c) 2026 Andrey Kriulin
// Licensed under the MIT License.
// See the LICENSE file in the project root for full license text.

package delaunay

import (
	"github.com/Tehforsch/subsweep-sub001/geom"
	"github.com/pkg/errors"
)

// flipCheck is a simplex containing the new point together with its face
// opposite that point.
type flipCheck struct {
	tetra TetraIndex
	face  FaceIndex
}

func (t *Triangulation[V, S]) enqueue(created []TetraIndex, pi PointIndex) {
	for _, ti := range created {
		tet := t.Tetras.At(ti)
		k := tet.Slot(pi)
		if k < 0 || !tet.Faces[k].Opposing.Valid() {
			continue
		}
		t.toCheck = append(t.toCheck, flipCheck{tetra: ti, face: tet.Faces[k].Face})
	}
}

// restore flips until no face opposite pi has its far point strictly inside
// the circumsphere of the near simplex.
func (t *Triangulation[V, S]) restore(pi PointIndex) error {
	for len(t.toCheck) > 0 {
		c := t.toCheck[len(t.toCheck)-1]
		t.toCheck = t.toCheck[:len(t.toCheck)-1]

		tet, ok := t.Tetras.Get(c.tetra)
		if !ok {
			continue
		}
		k := tet.FaceSlot(c.face)
		if k < 0 || tet.Points[k] != pi || !tet.Faces[k].Opposing.Valid() {
			continue
		}
		q := t.Position(tet.Faces[k].Opposing.Point)
		if t.pred.InSphere(t.TetraPositions(c.tetra), q) != geom.Positive {
			continue
		}
		if err := t.flip(c.tetra, k); err != nil {
			t.toCheck = t.toCheck[:0]
			return err
		}
	}
	return nil
}

// flip replaces the simplex ti and its neighbor across face k, where
// Points[k] is the new point p and q is the point across the face.
func (t *Triangulation[V, S]) flip(ti TetraIndex, k int) error {
	tet := *t.Tetras.At(ti)
	p := tet.Points[k]
	across := tet.Faces[k].Opposing
	q := across.Point

	// others is ordered so that (others..., p) is positively oriented.
	others := make([]PointIndex, 0, t.dim)
	for i := 0; i <= t.dim; i++ {
		if i != k {
			others = append(others, tet.Points[i])
		}
	}
	if (t.dim-k)%2 == 1 {
		others[0], others[1] = others[1], others[0]
	}

	var created []TetraIndex
	var err error
	switch t.dim {
	case 2:
		created, err = t.flip2(ti, across.Tetra, p, q, others)
	case 3:
		created, err = t.flip3(ti, across.Tetra, p, q, others)
	}
	if err != nil {
		return err
	}
	t.enqueue(created, p)
	return nil
}

func (t *Triangulation[V, S]) orient(pts ...PointIndex) geom.Sign {
	pos := make([]V, len(pts))
	for i, p := range pts {
		pos[i] = t.Position(p)
	}
	return t.pred.Orientation(pos)
}

// flip2 exchanges the diagonal ab of the quadrilateral paqb for pq. The
// quadrilateral must be convex, i.e. a and b lie on opposite sides of pq.
func (t *Triangulation[V, S]) flip2(t1, t2 TetraIndex, p, q PointIndex, others []PointIndex) ([]TetraIndex, error) {
	a, b := others[0], others[1]
	sa, sb := t.orient(p, q, a), t.orient(p, q, b)
	if sa == geom.Zero || sb == geom.Zero {
		return nil, errors.Wrapf(ErrDegenerate, "delaunay: %v lies on the line through %v and %v", a, p, q)
	}
	if sa == sb {
		t.stats.SkippedFlips++
		return nil, nil
	}
	created, err := t.replace([]TetraIndex{t1, t2}, [][4]PointIndex{{p, q, a}, {p, q, b}})
	if err != nil {
		return nil, err
	}
	t.stats.Flips22++
	return created, nil
}

// flip3 performs a 2-to-3 flip when the segment pq crosses the shared face
// abc, a 3-to-2 flip when it passes beside exactly one edge that has only
// three incident simplices, and a 4-to-4 flip when it passes through an edge
// that has four. Other configurations are left to later flips.
func (t *Triangulation[V, S]) flip3(t1, t2 TetraIndex, p, q PointIndex, others []PointIndex) ([]TetraIndex, error) {
	a, b, c := others[0], others[1], others[2]
	mu := [3]geom.Sign{
		t.orient(p, q, b, c).Neg(),
		t.orient(p, q, c, a).Neg(),
		t.orient(p, q, a, b).Neg(),
	}
	negative, zero := -1, -1
	count, zeros := 0, 0
	for i, s := range mu {
		switch s {
		case geom.Zero:
			zero = i
			zeros++
		case geom.Negative:
			negative = i
			count++
		}
	}

	switch {
	case zeros == 1 && count == 0:
		return t.flip4(t1, t2, p, q, others[zero], others[(zero+1)%3], others[(zero+2)%3])
	case zeros > 0:
	case count == 0:
		created, err := t.replace([]TetraIndex{t1, t2}, [][4]PointIndex{
			{p, q, a, b},
			{p, q, b, c},
			{p, q, c, a},
		})
		if err != nil {
			return nil, err
		}
		t.stats.Flips23++
		return created, nil
	case count == 1:
		v := others[negative]
		f1, f2 := others[(negative+1)%3], others[(negative+2)%3]
		tet1, tet2 := t.Tetras.At(t1), t.Tetras.At(t2)
		t3 := tet1.Faces[tet1.Slot(v)].Opposing.Tetra
		if t3 == 0 || t3 != tet2.Faces[tet2.Slot(v)].Opposing.Tetra {
			break
		}
		created, err := t.replace([]TetraIndex{t1, t2, t3}, [][4]PointIndex{
			{p, q, v, f1},
			{p, q, v, f2},
		})
		if err != nil {
			return nil, err
		}
		t.stats.Flips32++
		return created, nil
	}
	t.stats.SkippedFlips++
	return nil, nil
}

// flip4 handles a segment pq through the interior of edge bc of the face abc.
// If bc is shared by exactly four simplices pabc, qabc, pdbc and qdbc, they are
// replaced by the four simplices around pq.
func (t *Triangulation[V, S]) flip4(t1, t2 TetraIndex, p, q, a, b, c PointIndex) ([]TetraIndex, error) {
	tet1, tet2 := t.Tetras.At(t1), t.Tetras.At(t2)
	across1, across2 := tet1.Faces[tet1.Slot(a)].Opposing, tet2.Faces[tet2.Slot(a)].Opposing
	if !across1.Valid() || !across2.Valid() || across1.Point != across2.Point {
		t.stats.SkippedFlips++
		return nil, nil
	}
	t3, t4, d := across1.Tetra, across2.Tetra, across1.Point
	tet3 := t.Tetras.At(t3)
	if k := tet3.Slot(p); k < 0 || tet3.Faces[k].Opposing.Tetra != t4 {
		t.stats.SkippedFlips++
		return nil, nil
	}
	created, err := t.replace([]TetraIndex{t1, t2, t3, t4}, [][4]PointIndex{
		{p, q, a, b},
		{p, q, a, c},
		{p, q, d, b},
		{p, q, d, c},
	})
	if err != nil {
		return nil, err
	}
	t.stats.Flips44++
	return created, nil
}
