// Copyright (c) 2026 Andrey Kriulin
// Licensed under the MIT License.
// See the LICENSE file in the project root for full license text.

package visualizer

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Tehforsch/subsweep-sub001/delaunay"
	"github.com/Tehforsch/subsweep-sub001/geom"
	"github.com/Tehforsch/subsweep-sub001/utils"
	"github.com/golang/geo/r2"
)

func mustReadDump(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile(%v) error = %v", path, err)
	}
	return string(data)
}

func TestDumpTriangulation(t *testing.T) {
	d, err := New(filepath.Join(t.TempDir(), "dumps"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	points := utils.GenerateRandomPoints2D(20, 0)
	extent, err := geom.ExtentOf(geom.TwoD{}, points)
	if err != nil {
		t.Fatalf("ExtentOf() error = %v", err)
	}
	tri, err := delaunay.New(geom.TwoD{}, extent)
	if err != nil {
		t.Fatalf("delaunay.New() error = %v", err)
	}
	if _, err := tri.InsertAll(points, delaunay.InnerPoint()); err != nil {
		t.Fatalf("InsertAll() error = %v", err)
	}

	if err := DumpTriangulation(d, "tri", tri); err != nil {
		t.Fatalf("DumpTriangulation() error = %v", err)
	}
	if err := DumpTriangulation(d, "tri", tri); err != nil {
		t.Fatalf("DumpTriangulation() error = %v", err)
	}
	if d.Counter() != 2 {
		t.Errorf("Counter() = %v, want 2", d.Counter())
	}

	out := mustReadDump(t, filepath.Join(d.Dir, "0001_tri.svg"))
	if !strings.Contains(out, "<svg") {
		t.Errorf("dump does not contain an svg element")
	}
	if got := strings.Count(out, "<circle"); got != len(points) {
		t.Errorf("dump has %v circles, want %v", got, len(points))
	}
	if !strings.Contains(out, "<line") {
		t.Errorf("dump does not contain any edges")
	}
}

func TestDumpGrid(t *testing.T) {
	d := &Dumper{Dir: t.TempDir()}
	sites := []r2.Point{{X: 0.5, Y: 0.5}}
	square := [][]r2.Point{{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1}}}

	if err := DumpGrid(d, geom.TwoD{}, "grid", sites, square); err != nil {
		t.Fatalf("DumpGrid() error = %v", err)
	}
	out := mustReadDump(t, filepath.Join(d.Dir, "0000_grid.svg"))
	if got := strings.Count(out, "<polygon"); got != 1 {
		t.Errorf("dump has %v polygons, want 1", got)
	}
	if got := strings.Count(out, "<circle"); got != 1 {
		t.Errorf("dump has %v circles, want 1", got)
	}
}

func TestDumpGrid_MissingDir(t *testing.T) {
	d := &Dumper{Dir: filepath.Join(t.TempDir(), "missing")}
	err := DumpGrid(d, geom.TwoD{}, "grid", []r2.Point{{}}, nil)
	if err == nil {
		t.Fatalf("DumpGrid() into a missing directory error = nil, want error")
	}
	if d.Counter() != 0 {
		t.Errorf("Counter() = %v after a failed dump, want 0", d.Counter())
	}
}
