// Copyright (c) 2026 Andrey Kriulin
// Licensed under the MIT License.
// See the LICENSE file in the project root for full license text.

package voronoi

import (
	"context"
	"math"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/Tehforsch/subsweep-sub001/delaunay"
	"github.com/Tehforsch/subsweep-sub001/geom"
	"github.com/Tehforsch/subsweep-sub001/halo"
	"github.com/Tehforsch/subsweep-sub001/transport"
	"github.com/Tehforsch/subsweep-sub001/utils"
	"github.com/Tehforsch/subsweep-sub001/visualizer"
	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/markus-wa/quickhull-go/v2"
)

const tolerance = 1e-9

// BiMap

func TestBiMap(t *testing.T) {
	m := NewBiMap[ParticleID, delaunay.PointIndex]()
	if err := m.Insert(1, 10); err != nil {
		t.Fatalf("Insert(1, 10) error = %v", err)
	}
	if err := m.Insert(2, 20); err != nil {
		t.Fatalf("Insert(2, 20) error = %v", err)
	}
	if err := m.Insert(1, 30); err == nil {
		t.Errorf("Insert(1, 30) with a duplicate key error = nil, want error")
	}
	if err := m.Insert(3, 20); err == nil {
		t.Errorf("Insert(3, 20) with a duplicate value error = nil, want error")
	}
	if m.Len() != 2 {
		t.Errorf("Len() = %v, want 2", m.Len())
	}
	if v, ok := m.Get(2); !ok || v != 20 {
		t.Errorf("Get(2) = %v, %v, want 20, true", v, ok)
	}
	if k, ok := m.Key(10); !ok || k != 1 {
		t.Errorf("Key(10) = %v, %v, want 1, true", k, ok)
	}
	if _, ok := m.Get(3); ok {
		t.Errorf("Get(3) ok = true, want false")
	}

	got := make(map[ParticleID]delaunay.PointIndex)
	for k, v := range m.All() {
		got[k] = v
	}
	want := map[ParticleID]delaunay.PointIndex{1: 10, 2: 20}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("All() mismatch (-want +got):\n%v", diff)
	}
}

// Options

func TestOptions(t *testing.T) {
	tests := []struct {
		name    string
		opt     Option
		wantErr bool
	}{
		{"safety factor", WithSafetyFactor(1.5), false},
		{"safety factor below one", WithSafetyFactor(0.9), true},
		{"safety factor nan", WithSafetyFactor(math.NaN()), true},
		{"termination", WithTermination(halo.PerRank), false},
		{"unknown termination", WithTermination(halo.Termination(7)), true},
		{"max rounds", WithMaxRounds(3), false},
		{"negative max rounds", WithMaxRounds(-1), true},
		{"guard scale", WithGuardScale(4), false},
		{"small guard scale", WithGuardScale(1), true},
		{"nil logger", WithLogger(nil), true},
		{"nil visualizer", WithVisualizer(nil), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := defaultOptions()
			err := tt.opt(&opts)
			if (err != nil) != tt.wantErr {
				t.Errorf("option error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConstruct_Errors(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name   string
		points []r2.Point
		ids    []ParticleID
		opts   []Option
	}{
		{"no points", nil, nil, nil},
		{"duplicate id", []r2.Point{{X: 0, Y: 0}, {X: 1, Y: 0}}, []ParticleID{4, 4}, nil},
		{"duplicate point", []r2.Point{{X: 0, Y: 0}, {X: 0, Y: 0}}, []ParticleID{0, 1}, nil},
		{"extent of another dimension", []r2.Point{{X: 0, Y: 0}}, []ParticleID{0},
			[]Option{WithExtent(geom.Extent[r3.Vector]{Max: r3.Vector{X: 1, Y: 1, Z: 1}})}},
		{"bad option", []r2.Point{{X: 0, Y: 0}}, []ParticleID{0}, []Option{WithMaxRounds(-1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			points := func(yield func(ParticleID, r2.Point) bool) {
				for i, p := range tt.points {
					if !yield(tt.ids[i], p) {
						return
					}
				}
			}
			if _, err := Construct2D(ctx, points, halo.Local[r2.Point]{}, tt.opts...); err == nil {
				t.Errorf("Construct2D() error = nil, want error")
			}
		})
	}
}

// Cells

func mustFace[V geom.Vector[V]](t *testing.T, c Cell[V], id ParticleID) Face[V] {
	t.Helper()
	for _, f := range c.Faces {
		if f.Connection.Kind == ToInner && f.Connection.ID == id {
			return f
		}
	}
	t.Fatalf("cell %d has no face towards %d", c.ID, id)
	return Face[V]{}
}

func mustCell[V geom.Vector[V]](t *testing.T, g *Grid[V], id ParticleID) Cell[V] {
	t.Helper()
	c, ok := g.CellByID(id)
	if !ok {
		t.Fatalf("CellByID(%d) ok = false, want true", id)
	}
	return c
}

func mustGrid[V geom.Vector[V], S geom.Space[V]](t *testing.T, c *Constructor[V, S]) *Grid[V] {
	t.Helper()
	g, err := c.Grid()
	if err != nil {
		t.Fatalf("Grid() error = %v", err)
	}
	return g
}

func TestCell2D(t *testing.T) {
	points := []r2.Point{{X: 0, Y: 0}, {X: 0.1, Y: 0.9}, {X: 0.9, Y: 0.2}, {X: 0.25, Y: 0.25}}
	c, err := NewLocal2D(points)
	if err != nil {
		t.Fatalf("NewLocal2D() error = %v", err)
	}
	grid := mustGrid(t, c)
	if grid.NumCells() != 4 {
		t.Fatalf("NumCells() = %v, want 4", grid.NumCells())
	}

	cell := mustCell(t, grid, 3)
	if cell.Infinite {
		t.Errorf("cell 3 is infinite, want finite")
	}
	if len(cell.Faces) != 3 {
		t.Fatalf("cell 3 has %v faces, want 3", len(cell.Faces))
	}
	if math.Abs(cell.Volume-0.3968809165232358) > tolerance {
		t.Errorf("cell 3 volume = %v, want 0.3968809165232358", cell.Volume)
	}
	if want := math.Sqrt(cell.Volume / math.Pi); math.Abs(cell.Size-want) > tolerance {
		t.Errorf("cell 3 size = %v, want %v", cell.Size, want)
	}

	opt := cmpopts.EquateApprox(0, tolerance)
	tests := []struct {
		neighbor ParticleID
		area     float64
		normal   r2.Point
	}{
		{0, 1.0846512947129363, r2.Point{X: -math.Sqrt(0.5), Y: -math.Sqrt(0.5)}},
		{1, 0.862988661979256, r2.Point{X: -0.22485950669875832, Y: 0.9743911956946198}},
		{2, 0.9638545380497548, r2.Point{X: 0.9970544855015816, Y: -0.07669649888473688}},
	}
	for _, tt := range tests {
		f := mustFace(t, cell, tt.neighbor)
		if diff := cmp.Diff(tt.area, f.Area, opt); diff != "" {
			t.Errorf("face to %d area mismatch (-want +got):\n%v", tt.neighbor, diff)
		}
		if diff := cmp.Diff(tt.normal, f.Normal, opt); diff != "" {
			t.Errorf("face to %d normal mismatch (-want +got):\n%v", tt.neighbor, diff)
		}
		if f.Connection.Neighbor.Kind != delaunay.Inner {
			t.Errorf("face to %d neighbor kind = %v, want %v", tt.neighbor, f.Connection.Neighbor.Kind, delaunay.Inner)
		}
	}

	if !cell.Contains(points[3]) {
		t.Errorf("cell 3 does not contain its own point")
	}
	if cell.Contains(points[0]) {
		t.Errorf("cell 3 contains point 0")
	}
	for _, id := range []ParticleID{0, 1, 2} {
		if !mustCell(t, grid, id).Infinite {
			t.Errorf("hull cell %d is finite, want infinite", id)
		}
	}
}

func TestCell3D(t *testing.T) {
	points := []r3.Vector{
		{X: 0, Y: 0, Z: 0},
		{X: 0.6, Y: 0.1, Z: 0.1},
		{X: 0.1, Y: 0.5, Z: 0.1},
		{X: 0.1, Y: 0.1, Z: 0.4},
		{X: 0.1, Y: 0.1, Z: 0.1},
	}
	c, err := NewLocal3D(points)
	if err != nil {
		t.Fatalf("NewLocal3D() error = %v", err)
	}
	grid := mustGrid(t, c)
	if grid.NumCells() != 5 {
		t.Fatalf("NumCells() = %v, want 5", grid.NumCells())
	}

	cell := mustCell(t, grid, 4)
	if cell.Infinite {
		t.Errorf("cell 4 is infinite, want finite")
	}
	if len(cell.Faces) != 4 {
		t.Fatalf("cell 4 has %v faces, want 4", len(cell.Faces))
	}
	if len(cell.Points) != 4 {
		t.Errorf("cell 4 has %v points, want 4", len(cell.Points))
	}
	if math.Abs(cell.Volume-0.0703125) > tolerance {
		t.Errorf("cell 4 volume = %v, want 0.0703125", cell.Volume)
	}

	opt := cmpopts.EquateApprox(0, tolerance)
	s := 1 / math.Sqrt(3)
	tests := []struct {
		neighbor ParticleID
		area     float64
		normal   r3.Vector
	}{
		{0, 0.4871392896287468, r3.Vector{X: -s, Y: -s, Z: -s}},
		{1, 0.28125, r3.Vector{X: 1}},
		{2, 0.28125, r3.Vector{Y: 1}},
		{3, 0.28125, r3.Vector{Z: 1}},
	}
	for _, tt := range tests {
		f := mustFace(t, cell, tt.neighbor)
		if diff := cmp.Diff(tt.area, f.Area, opt); diff != "" {
			t.Errorf("face to %d area mismatch (-want +got):\n%v", tt.neighbor, diff)
		}
		if diff := cmp.Diff(tt.normal, f.Normal, opt); diff != "" {
			t.Errorf("face to %d normal mismatch (-want +got):\n%v", tt.neighbor, diff)
		}
		if len(f.Vertices) != 3 {
			t.Errorf("face to %d has %v vertices, want 3", tt.neighbor, len(f.Vertices))
		}
	}
	if !cell.Contains(r3.Vector{X: 0.2, Y: 0.2, Z: 0.2}) {
		t.Errorf("cell 4 does not contain (0.2, 0.2, 0.2)")
	}
	if cell.Contains(r3.Vector{X: 0.4, Y: 0.1, Z: 0.1}) {
		t.Errorf("cell 4 contains (0.4, 0.1, 0.1)")
	}
}

func TestGrid_Regular(t *testing.T) {
	points := utils.GenerateGrid2D(10, 10, 1)
	c, err := NewLocal2D(points)
	if err != nil {
		t.Fatalf("NewLocal2D() error = %v", err)
	}
	grid := mustGrid(t, c)
	finite := grid.FiniteCells()
	if len(finite) != 64 {
		t.Fatalf("FiniteCells() len = %v, want 64", len(finite))
	}
	for _, cell := range finite {
		if math.Abs(cell.Volume-1) > tolerance {
			t.Errorf("cell %d volume = %v, want 1", cell.ID, cell.Volume)
		}
	}
	if math.Abs(grid.TotalVolume()-64) > 1e-6 {
		t.Errorf("TotalVolume() = %v, want 64", grid.TotalVolume())
	}
}

func TestGrid_Cell(t *testing.T) {
	c, err := NewLocal2D(utils.GenerateRandomPoints2D(10, 0))
	if err != nil {
		t.Fatalf("NewLocal2D() error = %v", err)
	}
	grid := mustGrid(t, c)
	tests := []struct {
		name    string
		idx     int
		wantErr bool
	}{
		{"first", 0, false},
		{"last", 9, false},
		{"negative", -1, true},
		{"past end", 10, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cell, err := grid.Cell(tt.idx)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Cell(%v) error = %v, wantErr %v", tt.idx, err, tt.wantErr)
			}
			if err == nil && cell.ID != ParticleID(tt.idx) {
				t.Errorf("Cell(%v).ID = %v, want %v", tt.idx, cell.ID, tt.idx)
			}
		})
	}
	if again := mustGrid(t, c); again != grid {
		t.Errorf("Grid() built the grid twice")
	}
}

// nearest returns the index of the point closest to q.
func nearest[V geom.Vector[V]](points []V, q V) (int, float64) {
	best, dist := -1, math.Inf(1)
	for i, p := range points {
		if d := geom.Distance(p, q); d < dist {
			best, dist = i, d
		}
	}
	return best, dist
}

func checkLookup[V geom.Vector[V]](t *testing.T, grid *Grid[V], points, lookups []V) {
	t.Helper()
	for _, q := range lookups {
		n, dist := nearest(points, q)
		if !mustCell(t, grid, ParticleID(n)).Contains(q) {
			t.Errorf("cell %d of the nearest point does not contain %v", n, q)
		}
		for i, p := range points {
			if geom.Distance(p, q) > dist+1e-9 && mustCell(t, grid, ParticleID(i)).Contains(q) {
				t.Errorf("cell %d contains %v although point %d is closer", i, q, n)
			}
		}
	}
}

func TestGrid_LookupMatchesNearest2D(t *testing.T) {
	points := utils.GenerateRandomPoints2D(200, 1)
	c, err := NewLocal2D(points)
	if err != nil {
		t.Fatalf("NewLocal2D() error = %v", err)
	}
	//nolint:gosec
	random := rand.New(rand.NewSource(2))
	lookups := make([]r2.Point, 300)
	for i := range lookups {
		lookups[i] = r2.Point{X: random.Float64(), Y: random.Float64()}
	}
	checkLookup(t, mustGrid(t, c), points, lookups)
}

func TestGrid_LookupMatchesNearest3D(t *testing.T) {
	points := utils.GenerateRandomPoints3D(100, 1)
	c, err := NewLocal3D(points)
	if err != nil {
		t.Fatalf("NewLocal3D() error = %v", err)
	}
	//nolint:gosec
	random := rand.New(rand.NewSource(2))
	lookups := make([]r3.Vector, 150)
	for i := range lookups {
		lookups[i] = r3.Vector{X: random.Float64(), Y: random.Float64(), Z: random.Float64()}
	}
	checkLookup(t, mustGrid(t, c), points, lookups)
}

func hullVolume(points []r3.Vector) float64 {
	qh := new(quickhull.QuickHull)
	ch := qh.ConvexHull(points, true, true, 0)
	center := geom.Centroid(points)
	volume := 0.0
	for i := 0; i+2 < len(ch.Indices); i += 3 {
		a := points[ch.Indices[i]].Sub(center)
		b := points[ch.Indices[i+1]].Sub(center)
		c := points[ch.Indices[i+2]].Sub(center)
		volume += math.Abs(a.Dot(b.Cross(c))) / 6
	}
	return volume
}

func TestCell3D_VolumeMatchesConvexHull(t *testing.T) {
	c, err := NewLocal3D(utils.GenerateRandomPoints3D(150, 3))
	if err != nil {
		t.Fatalf("NewLocal3D() error = %v", err)
	}
	finite := mustGrid(t, c).FiniteCells()
	if len(finite) == 0 {
		t.Fatalf("no finite cells")
	}
	for _, cell := range finite {
		want := hullVolume(cell.Points)
		if math.Abs(cell.Volume-want) > 1e-9*math.Max(1, want) {
			t.Errorf("cell %d volume = %v, want %v", cell.ID, cell.Volume, want)
		}
	}
}

// Halo

func TestConstruct_HaloMatchesFullGrid(t *testing.T) {
	t.Run("2d", func(t *testing.T) {
		points := utils.GenerateRandomPoints2D(300, 4)
		full, err := NewLocal2D(points)
		if err != nil {
			t.Fatalf("NewLocal2D() error = %v", err)
		}
		checkHaloMatchesFullGrid(t, geom.TwoD{}, points, full)
	})
	t.Run("3d", func(t *testing.T) {
		points := utils.GenerateRandomPoints3D(300, 4)
		full, err := NewLocal3D(points)
		if err != nil {
			t.Fatalf("NewLocal3D() error = %v", err)
		}
		checkHaloMatchesFullGrid(t, geom.ThreeD{}, points, full)
	})
}

// checkHaloMatchesFullGrid builds the cells of the points with x < 0.5, taking
// the others as halo points of rank 1, and compares the finite cells with the
// grid of all points.
func checkHaloMatchesFullGrid[V geom.Vector[V], S geom.Space[V]](t *testing.T, space S, points []V, full *Constructor[V, S]) {
	t.Helper()
	fullGrid := mustGrid(t, full)

	var (
		local   []halo.Particle[V]
		foreign []halo.Particle[V]
	)
	for i, p := range points {
		particle := halo.Particle[V]{ID: ParticleID(i), Position: p}
		if space.Coords(p)[0] < 0.5 {
			local = append(local, particle)
		} else {
			foreign = append(foreign, particle)
		}
	}
	search, err := halo.NewStatic(space, map[transport.Rank][]halo.Particle[V]{1: foreign})
	if err != nil {
		t.Fatalf("NewStatic() error = %v", err)
	}
	seq := func(yield func(ParticleID, V) bool) {
		for _, p := range local {
			if !yield(p.ID, p.Position) {
				return
			}
		}
	}
	c, err := Construct[V, S](context.Background(), space, seq, search, WithTermination(halo.PerRank))
	if err != nil {
		t.Fatalf("Construct() error = %v", err)
	}
	if c.Rounds() == 0 {
		t.Errorf("Rounds() = 0, want at least one round")
	}
	if c.HaloCount() == 0 {
		t.Errorf("HaloCount() = 0, want imported halo points")
	}

	grid := mustGrid(t, c)
	if grid.NumCells() != len(local) {
		t.Fatalf("NumCells() = %v, want %v", grid.NumCells(), len(local))
	}
	finite := grid.FiniteCells()
	if len(finite) < len(local)/2 {
		t.Fatalf("only %v of %v cells are finite", len(finite), len(local))
	}
	haloFaces := 0
	for _, cell := range finite {
		want := mustCell(t, fullGrid, cell.ID)
		if math.Abs(cell.Volume-want.Volume) > tolerance {
			t.Errorf("cell %d volume = %v, want %v", cell.ID, cell.Volume, want.Volume)
		}
		if len(cell.Faces) != len(want.Faces) {
			t.Errorf("cell %d has %v faces, want %v", cell.ID, len(cell.Faces), len(want.Faces))
		}
		for _, f := range cell.Faces {
			if f.Connection.Neighbor.Kind != delaunay.Halo {
				continue
			}
			haloFaces++
			if f.Connection.Neighbor.Origin != 1 {
				t.Errorf("halo neighbor %d origin = %v, want 1", f.Connection.ID, f.Connection.Neighbor.Origin)
			}
			if pi, ok := c.PointByID(f.Connection.ID); !ok || c.Triangulation().Kind(pi).Kind != delaunay.Halo {
				t.Errorf("PointByID(%d) does not resolve to a halo point", f.Connection.ID)
			}
		}
	}
	if haloFaces == 0 {
		t.Errorf("no finite cell borders a halo point")
	}
}

func TestOnlyDelaunay(t *testing.T) {
	points := utils.GenerateRandomPoints2D(50, 5)
	c, err := OnlyDelaunay(context.Background(), geom.TwoD{}, Points2D(points))
	if err != nil {
		t.Fatalf("OnlyDelaunay() error = %v", err)
	}
	if c.Rounds() != 0 || c.HaloCount() != 0 {
		t.Errorf("Rounds(), HaloCount() = %v, %v, want 0, 0", c.Rounds(), c.HaloCount())
	}
	if err := c.Triangulation().ValidateDelaunay(); err != nil {
		t.Errorf("ValidateDelaunay() error = %v", err)
	}
	for i := range points {
		pi, ok := c.PointByID(ParticleID(i))
		if !ok {
			t.Fatalf("PointByID(%d) ok = false", i)
		}
		if id, ok := c.IDByPoint(pi); !ok || id != ParticleID(i) {
			t.Errorf("IDByPoint(%v) = %v, %v, want %v, true", pi, id, ok, i)
		}
	}
}

func TestConstruct_WithExtentAndVisualizer(t *testing.T) {
	dumper, err := visualizer.New(filepath.Join(t.TempDir(), "svg"))
	if err != nil {
		t.Fatalf("visualizer.New() error = %v", err)
	}
	extent := geom.Extent[r2.Point]{Min: r2.Point{X: -1, Y: -1}, Max: r2.Point{X: 2, Y: 2}}
	c, err := NewLocal2D(utils.GenerateRandomPoints2D(30, 6), WithExtent(extent), WithVisualizer(dumper))
	if err != nil {
		t.Fatalf("NewLocal2D() error = %v", err)
	}
	mustGrid(t, c)
	// Local construction, one halo round and the grid.
	if dumper.Counter() != 3 {
		t.Errorf("Counter() = %v, want 3", dumper.Counter())
	}
}

// Benchmarks

func BenchmarkNewLocal2D(b *testing.B) {
	points := utils.GenerateRandomPoints2D(1000, 0)
	b.ReportAllocs()
	for b.Loop() {
		c, err := NewLocal2D(points)
		if err != nil {
			b.Fatalf("NewLocal2D(...) error = %v, want nil", err)
		}
		if _, err := c.Grid(); err != nil {
			b.Fatalf("Grid() error = %v, want nil", err)
		}
	}
}

func BenchmarkNewLocal3D(b *testing.B) {
	points := utils.GenerateRandomPoints3D(300, 0)
	b.ReportAllocs()
	for b.Loop() {
		c, err := NewLocal3D(points)
		if err != nil {
			b.Fatalf("NewLocal3D(...) error = %v, want nil", err)
		}
		if _, err := c.Grid(); err != nil {
			b.Fatalf("Grid() error = %v, want nil", err)
		}
	}
}
