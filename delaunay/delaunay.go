// Copyright (c) 2026 Andrey Kriulin
// Licensed under the MIT License.
// See the LICENSE file in the project root for full license text.

// Package delaunay implements incremental Delaunay triangulation in two and
// three dimensions.
//
// Points are inserted one at a time into a guard simplex that encloses the
// whole domain. Each insertion locates the containing simplex, splits it and
// restores the empty-circumsphere property with flips. Simplices, faces and
// points live in generation-tagged arenas, so an index held across an
// insertion either still refers to the same object or is detectably stale.
package delaunay

import (
	"math"

	"github.com/Tehforsch/subsweep-sub001/arena"
	"github.com/Tehforsch/subsweep-sub001/geom"
	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

const (
	defaultGuardScale = 3.0

	// guardAngle rotates the guard simplex so that none of its edges is
	// parallel to a coordinate axis.
	guardAngle = 0.1234
	guardTilt  = 0.2345
)

var (
	// ErrDegenerate is returned for a duplicate point, a point on an existing
	// face, edge or vertex, or a flip through an edge.
	ErrDegenerate = errors.Wrap(geom.ErrPrecision, "delaunay: degenerate insertion")
	// ErrOutsideGuard is returned for a point outside the guard simplex.
	ErrOutsideGuard = errors.New("delaunay: point lies outside the guard simplex")
	// ErrPoisoned is returned by every call after an insertion failed half way.
	ErrPoisoned = errors.New("delaunay: triangulation is unusable after an earlier error")
)

type (
	PointIndex uint64
	FaceIndex  uint64
	TetraIndex uint64
)

func (i PointIndex) String() string { return "p" + arena.Index(i).String() }
func (i FaceIndex) String() string  { return "f" + arena.Index(i).String() }
func (i TetraIndex) String() string { return "t" + arena.Index(i).String() }

// Kind classifies a stored point.
type Kind uint8

const (
	// Outer points span the guard simplex and never represent data.
	Outer Kind = iota
	// Inner points are owned by this worker.
	Inner
	// Halo points were imported from another worker.
	Halo
)

func (k Kind) String() string {
	switch k {
	case Outer:
		return "outer"
	case Inner:
		return "inner"
	case Halo:
		return "halo"
	}
	return "unknown"
}

// PointKind is the tag stored with every point. Origin is the owning worker
// of a Halo point.
type PointKind struct {
	Kind   Kind
	Origin int
}

func OuterPoint() PointKind { return PointKind{Kind: Outer} }

func InnerPoint() PointKind { return PointKind{Kind: Inner} }

func HaloPoint(origin int) PointKind { return PointKind{Kind: Halo, Origin: origin} }

// ConnectionData names the simplex on the far side of a face and its point
// opposite that face. The zero value means the face is on the boundary.
type ConnectionData struct {
	Tetra TetraIndex
	Point PointIndex
}

// Valid reports whether there is a simplex on the far side.
func (c ConnectionData) Valid() bool {
	return c.Tetra != 0
}

// FaceInfo is a face of a simplex together with what lies behind it.
type FaceInfo struct {
	Face     FaceIndex
	Opposing ConnectionData
}

// Face is the sub-simplex shared by two simplices. Points holds D sorted
// indices; unused entries are zero.
type Face struct {
	Points [3]PointIndex
}

// Tetra is a triangle in 2-D or a tetrahedron in 3-D. Faces[i] lies opposite
// Points[i]. Only the first D+1 entries are used, and the points are always
// positively oriented.
type Tetra struct {
	Points [4]PointIndex
	Faces  [4]FaceInfo
}

// Slot returns the position of p in t, or -1.
func (t *Tetra) Slot(p PointIndex) int {
	for i, q := range t.Points {
		if q == p && p != 0 {
			return i
		}
	}
	return -1
}

// FaceSlot returns the position of f in t, or -1.
func (t *Tetra) FaceSlot(f FaceIndex) int {
	for i, fi := range t.Faces {
		if fi.Face == f && f != 0 {
			return i
		}
	}
	return -1
}

// Stats counts the work done by a Triangulation.
type Stats struct {
	Insertions   int
	Splits       int
	Flips22      int
	Flips23      int
	Flips32      int
	Flips44      int
	SkippedFlips int
	LocateSteps  int
	FullScans    int
	Predicates   geom.Stats
}

// Options configures a Triangulation.
type Options struct {
	GuardScale float64
}

// Option sets a field of Options.
type Option func(*Options) error

// WithGuardScale sets how far the guard simplex reaches beyond the bounding
// sphere of the extent. The inscribed sphere of the guard simplex has scale
// times the radius of the extent's bounding sphere.
func WithGuardScale(scale float64) Option {
	return func(o *Options) error {
		if scale <= 1 || math.IsInf(scale, 0) || math.IsNaN(scale) {
			return errors.Errorf("delaunay: guard scale must be greater than 1, got %v", scale)
		}
		o.GuardScale = scale
		return nil
	}
}

// Triangulation is a Delaunay triangulation of points of type V in space S.
type Triangulation[V geom.Vector[V], S geom.Space[V]] struct {
	Points *arena.Arena[PointIndex, V]
	Faces  *arena.Arena[FaceIndex, Face]
	Tetras *arena.Arena[TetraIndex, Tetra]

	space S
	dim   int
	pred  geom.Predicates[V, S]
	kinds map[PointIndex]PointKind

	lastInsertion TetraIndex
	toCheck       []flipCheck
	stats         Stats
	err           error
}

type (
	Triangulation2D = Triangulation[r2.Point, geom.TwoD]
	Triangulation3D = Triangulation[r3.Vector, geom.ThreeD]
)

// New returns a triangulation containing only the guard simplex, sized to
// enclose extent.
func New[V geom.Vector[V], S geom.Space[V]](space S, extent geom.Extent[V], setters ...Option) (*Triangulation[V, S], error) {
	opts := Options{GuardScale: defaultGuardScale}
	for _, set := range setters {
		if err := set(&opts); err != nil {
			return nil, err
		}
	}
	return NewFromSimplex(space, guardSimplex(space, extent, opts.GuardScale))
}

// NewFromSimplex returns a triangulation whose guard simplex is given
// explicitly. The points may be in either orientation.
func NewFromSimplex[V geom.Vector[V], S geom.Space[V]](space S, simplex []V) (*Triangulation[V, S], error) {
	d := space.Dim()
	if d != 2 && d != 3 {
		return nil, errors.Errorf("delaunay: unsupported dimension %d", d)
	}
	if len(simplex) != d+1 {
		return nil, errors.Errorf("delaunay: guard simplex needs %d points, got %d", d+1, len(simplex))
	}

	t := empty[V](space)
	pts := append([]V(nil), simplex...)
	switch t.pred.Orientation(pts) {
	case geom.Zero:
		return nil, errors.Wrap(ErrDegenerate, "delaunay: flat guard simplex")
	case geom.Negative:
		pts[0], pts[1] = pts[1], pts[0]
	}

	var tet Tetra
	for i, p := range pts {
		if !finite(space, p) {
			return nil, errors.Errorf("delaunay: non-finite guard point %v", p)
		}
		pi := t.Points.Insert(p)
		t.kinds[pi] = OuterPoint()
		tet.Points[i] = pi
	}
	for i := 0; i <= d; i++ {
		tet.Faces[i] = FaceInfo{Face: t.Faces.Insert(Face{Points: t.faceKey(tet.Points, i)})}
	}
	t.lastInsertion = t.Tetras.Insert(tet)
	return t, nil
}

func empty[V geom.Vector[V], S geom.Space[V]](space S) *Triangulation[V, S] {
	return &Triangulation[V, S]{
		Points: arena.New[PointIndex, V](0),
		Faces:  arena.New[FaceIndex, Face](0),
		Tetras: arena.New[TetraIndex, Tetra](0),
		space:  space,
		dim:    space.Dim(),
		pred:   geom.Predicates[V, S]{Space: space},
		kinds:  make(map[PointIndex]PointKind),
	}
}

// guardSimplex returns a rotated regular simplex whose inscribed sphere has
// scale times the radius of the extent's bounding sphere.
func guardSimplex[V geom.Vector[V], S geom.Space[V]](space S, extent geom.Extent[V], scale float64) []V {
	d := space.Dim()
	c := space.Coords(extent.Center())
	r := extent.Radius()
	if r == 0 || math.IsNaN(r) {
		r = 1
	}
	radius := scale * float64(d) * r

	var dirs [][3]float64
	switch d {
	case 2:
		for k := range 3 {
			a := math.Pi/2 + guardAngle + 2*math.Pi*float64(k)/3
			dirs = append(dirs, [3]float64{math.Cos(a), math.Sin(a), 0})
		}
	case 3:
		sa, ca := math.Sincos(guardAngle)
		sb, cb := math.Sincos(guardTilt)
		for _, v := range [4][3]float64{{1, 1, 1}, {1, -1, -1}, {-1, 1, -1}, {-1, -1, 1}} {
			x, y, z := v[0]/math.Sqrt(3), v[1]/math.Sqrt(3), v[2]/math.Sqrt(3)
			x, y = x*ca-y*sa, x*sa+y*ca
			y, z = y*cb-z*sb, y*sb+z*cb
			dirs = append(dirs, [3]float64{x, y, z})
		}
	}

	out := make([]V, len(dirs))
	for i, dir := range dirs {
		var p [3]float64
		for j := range d {
			p[j] = c[j] + radius*dir[j]
		}
		out[i] = space.FromCoords(p)
	}
	return out
}

// Dim returns the spatial dimension.
func (t *Triangulation[V, S]) Dim() int {
	return t.dim
}

// Space returns the space the triangulation lives in.
func (t *Triangulation[V, S]) Space() S {
	return t.space
}

// Err returns the error that poisoned the triangulation, if any.
func (t *Triangulation[V, S]) Err() error {
	return t.err
}

// Stats returns the work counters.
func (t *Triangulation[V, S]) Stats() Stats {
	s := t.stats
	s.Predicates = t.pred.Stats
	return s
}

// Kind returns the tag of pi. Unknown indices are reported as Outer.
func (t *Triangulation[V, S]) Kind(pi PointIndex) PointKind {
	return t.kinds[pi]
}

// Position returns the coordinates of pi. It panics on a stale index.
func (t *Triangulation[V, S]) Position(pi PointIndex) V {
	return *t.Points.At(pi)
}

// TetraPoints returns the D+1 points of ti.
func (t *Triangulation[V, S]) TetraPoints(ti TetraIndex) []PointIndex {
	tet := t.Tetras.At(ti)
	return append([]PointIndex(nil), tet.Points[:t.dim+1]...)
}

// TetraPositions returns the coordinates of the D+1 points of ti.
func (t *Triangulation[V, S]) TetraPositions(ti TetraIndex) []V {
	tet := t.Tetras.At(ti)
	out := make([]V, t.dim+1)
	for i := range out {
		out[i] = t.Position(tet.Points[i])
	}
	return out
}

// Circumsphere returns the center and radius of the circumsphere of ti.
func (t *Triangulation[V, S]) Circumsphere(ti TetraIndex) (V, float64, error) {
	pts := t.TetraPositions(ti)
	c, err := geom.Circumcenter(t.space, pts)
	if err != nil {
		var zero V
		return zero, 0, errors.Wrapf(err, "delaunay: circumsphere of %v", ti)
	}
	return c, geom.Distance(c, pts[0]), nil
}

// HasKind reports whether any point of ti has kind k.
func (t *Triangulation[V, S]) HasKind(ti TetraIndex, k Kind) bool {
	tet := t.Tetras.At(ti)
	for _, p := range tet.Points[:t.dim+1] {
		if t.kinds[p].Kind == k {
			return true
		}
	}
	return false
}

// ContainsOuter reports whether ti has a guard point.
func (t *Triangulation[V, S]) ContainsOuter(ti TetraIndex) bool {
	return t.HasKind(ti, Outer)
}

// faceKey returns the sorted points of pts without pts[skip].
func (t *Triangulation[V, S]) faceKey(pts [4]PointIndex, skip int) [3]PointIndex {
	var k [3]PointIndex
	n := 0
	for i := 0; i <= t.dim; i++ {
		if i == skip {
			continue
		}
		k[n] = pts[i]
		n++
	}
	for i := 1; i < n; i++ {
		for j := i; j > 0 && k[j] < k[j-1]; j-- {
			k[j], k[j-1] = k[j-1], k[j]
		}
	}
	return k
}

func finite[V geom.Vector[V], S geom.Space[V]](space S, p V) bool {
	c := space.Coords(p)
	for i := range space.Dim() {
		if math.IsNaN(c[i]) || math.IsInf(c[i], 0) {
			return false
		}
	}
	return true
}
