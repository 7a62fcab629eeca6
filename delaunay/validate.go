// Copyright (c) 2026 Andrey Kriulin
// Licensed under the MIT License.
// See the LICENSE file in the project root for full license text.

package delaunay

import (
	"github.com/Tehforsch/subsweep-sub001/geom"
	"github.com/pkg/errors"
)

// Validate checks the combinatorial structure: every simplex is positively
// oriented, its faces exist and match its points, and every neighbor link is
// mirrored by the neighbor. It also checks that no face is orphaned.
func (t *Triangulation[V, S]) Validate() error {
	used := make(map[FaceIndex]int, t.Faces.Len())
	for ti, tet := range t.Tetras.All() {
		if s := t.orient(tet.Points[:t.dim+1]...); s != geom.Positive {
			return errors.Errorf("delaunay: %v has orientation %v", ti, s)
		}
		for i := 0; i <= t.dim; i++ {
			fi := tet.Faces[i]
			face, ok := t.Faces.Get(fi.Face)
			if !ok {
				return errors.Errorf("delaunay: %v references missing face %v", ti, fi.Face)
			}
			if key := t.faceKey(tet.Points, i); face.Points != key {
				return errors.Errorf("delaunay: face %v of %v has points %v, want %v", fi.Face, ti, face.Points, key)
			}
			used[fi.Face]++
			if !fi.Opposing.Valid() {
				continue
			}
			other, ok := t.Tetras.Get(fi.Opposing.Tetra)
			if !ok {
				return errors.Errorf("delaunay: %v has stale neighbor %v", ti, fi.Opposing.Tetra)
			}
			j := other.FaceSlot(fi.Face)
			if j < 0 {
				return errors.Errorf("delaunay: neighbor %v of %v does not share face %v", fi.Opposing.Tetra, ti, fi.Face)
			}
			if other.Points[j] != fi.Opposing.Point {
				return errors.Errorf("delaunay: %v expects %v opposite %v, found %v", ti, fi.Opposing.Point, fi.Face, other.Points[j])
			}
			if back := other.Faces[j].Opposing; back.Tetra != ti || back.Point != tet.Points[i] {
				return errors.Errorf("delaunay: link %v -> %v is not mirrored", ti, fi.Opposing.Tetra)
			}
		}
	}
	for fi := range t.Faces.All() {
		switch n := used[fi]; n {
		case 1, 2:
		default:
			return errors.Errorf("delaunay: face %v is used by %d simplices", fi, n)
		}
	}
	return nil
}

// ValidateDelaunay checks that no non-guard point lies strictly inside the
// circumsphere of any simplex. It takes quadratic time and is meant for
// tests and debugging.
func (t *Triangulation[V, S]) ValidateDelaunay() error {
	for ti, tet := range t.Tetras.All() {
		pts := t.TetraPositions(ti)
		for pi, p := range t.Points.All() {
			if t.kinds[pi].Kind == Outer || tet.Slot(pi) >= 0 {
				continue
			}
			if t.pred.InSphere(pts, p) == geom.Positive {
				return errors.Errorf("delaunay: %v at %v lies inside the circumsphere of %v", pi, p, ti)
			}
		}
	}
	return nil
}
