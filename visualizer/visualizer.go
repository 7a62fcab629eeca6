// Copyright (c) 2026 Andrey Kriulin
// Licensed under the MIT License.
// See the LICENSE file in the project root for full license text.

// Package visualizer writes SVG snapshots of triangulations and Voronoi cells
// for debugging. Points are projected onto the x/y plane.
package visualizer

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/Tehforsch/subsweep-sub001/delaunay"
	"github.com/Tehforsch/subsweep-sub001/geom"
	svg "github.com/ajstarks/svgo"
	"github.com/pkg/errors"
)

const (
	defaultWidth  = 800
	defaultHeight = 800
	margin        = 20

	backgroundStyle = "fill:rgb(255,255,255)"
	edgeStyle       = "stroke:rgb(170,170,170);stroke-width:1;stroke-opacity:1.0"
	polygonStyle    = "fill:rgb(255,255,255);stroke:rgb(170,170,170);stroke-width:1;stroke-opacity:1.0"
	innerStyle      = "fill:rgb(255,0,0)"
	haloStyle       = "fill:rgb(0,0,255)"
)

// Dumper writes numbered SVG files into Dir. Every dump takes the next number,
// so a sequence of dumps can be replayed in order.
type Dumper struct {
	Dir    string
	Width  int
	Height int

	counter int
}

// New returns a Dumper writing into dir, creating it if needed.
func New(dir string) (*Dumper, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "visualizer: create dump directory")
	}
	return &Dumper{Dir: dir, Width: defaultWidth, Height: defaultHeight}, nil
}

// Counter returns the number of dumps written so far.
func (d *Dumper) Counter() int {
	return d.counter
}

func (d *Dumper) size() (int, int) {
	w, h := d.Width, d.Height
	if w <= 0 {
		w = defaultWidth
	}
	if h <= 0 {
		h = defaultHeight
	}
	return w, h
}

// create opens the next numbered file for name.
func (d *Dumper) create(name string) (*os.File, error) {
	path := filepath.Join(d.Dir, fmt.Sprintf("%04d_%s.svg", d.counter, name))
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrap(err, "visualizer: create dump")
	}
	d.counter++
	return f, nil
}

// frame maps x/y coordinates onto the canvas, y pointing up.
type frame struct {
	minX, minY, scale float64
	height            int
}

func newFrame(xs, ys []float64, width, height int) frame {
	f := frame{scale: 1, height: height}
	if len(xs) == 0 {
		return f
	}
	minX, maxX := xs[0], xs[0]
	minY, maxY := ys[0], ys[0]
	for i := range xs {
		minX, maxX = math.Min(minX, xs[i]), math.Max(maxX, xs[i])
		minY, maxY = math.Min(minY, ys[i]), math.Max(maxY, ys[i])
	}
	span := math.Max(maxX-minX, maxY-minY)
	if span == 0 {
		span = 1
	}
	f.minX, f.minY = minX, minY
	f.scale = float64(min(width, height)-2*margin) / span
	return f
}

func (f frame) screen(c [3]float64) (int, int) {
	x := margin + (c[0]-f.minX)*f.scale
	y := float64(f.height) - margin - (c[1]-f.minY)*f.scale
	return int(math.Round(x)), int(math.Round(y))
}

func render(w io.Writer, width, height int, draw func(canvas *svg.SVG)) {
	canvas := svg.New(w)
	canvas.Start(width, height)
	canvas.Rect(0, 0, width, height, backgroundStyle)
	draw(canvas)
	canvas.End()
}

func closeFile(f *os.File) error {
	if err := f.Close(); err != nil {
		return errors.Wrap(err, "visualizer: close dump")
	}
	return nil
}

// DumpTriangulation draws the edges between non-guard points of tri together
// with its inner and halo points.
func DumpTriangulation[V geom.Vector[V], S geom.Space[V]](d *Dumper, name string, tri *delaunay.Triangulation[V, S]) error {
	space := tri.Space()
	var xs, ys []float64
	for pi, p := range tri.Points.All() {
		if tri.Kind(pi).Kind == delaunay.Outer {
			continue
		}
		c := space.Coords(p)
		xs, ys = append(xs, c[0]), append(ys, c[1])
	}
	width, height := d.size()
	fr := newFrame(xs, ys, width, height)

	f, err := d.create(name)
	if err != nil {
		return err
	}
	render(f, width, height, func(canvas *svg.SVG) {
		for _, tet := range tri.Tetras.All() {
			pts := tet.Points[:tri.Dim()+1]
			for i := range pts {
				for j := i + 1; j < len(pts); j++ {
					if tri.Kind(pts[i]).Kind == delaunay.Outer || tri.Kind(pts[j]).Kind == delaunay.Outer {
						continue
					}
					x1, y1 := fr.screen(space.Coords(tri.Position(pts[i])))
					x2, y2 := fr.screen(space.Coords(tri.Position(pts[j])))
					canvas.Line(x1, y1, x2, y2, edgeStyle)
				}
			}
		}
		for pi, p := range tri.Points.All() {
			style := innerStyle
			switch tri.Kind(pi).Kind {
			case delaunay.Outer:
				continue
			case delaunay.Halo:
				style = haloStyle
			}
			x, y := fr.screen(space.Coords(p))
			canvas.Circle(x, y, 3, style)
		}
	})
	return closeFile(f)
}

// DumpGrid draws cell outlines and the sites they belong to. Each polygon is a
// closed outline; 3-D cells are drawn face by face.
func DumpGrid[V geom.Vector[V], S geom.Space[V]](d *Dumper, space S, name string, sites []V, polygons [][]V) error {
	var xs, ys []float64
	for _, s := range sites {
		c := space.Coords(s)
		xs, ys = append(xs, c[0]), append(ys, c[1])
	}
	width, height := d.size()
	fr := newFrame(xs, ys, width, height)

	f, err := d.create(name)
	if err != nil {
		return err
	}
	render(f, width, height, func(canvas *svg.SVG) {
		xPoints := make([]int, 0)
		yPoints := make([]int, 0)
		for _, poly := range polygons {
			xPoints, yPoints = xPoints[:0], yPoints[:0]
			for _, v := range poly {
				x, y := fr.screen(space.Coords(v))
				xPoints = append(xPoints, x)
				yPoints = append(yPoints, y)
			}
			canvas.Polygon(xPoints, yPoints, polygonStyle)
		}
		for _, s := range sites {
			x, y := fr.screen(space.Coords(s))
			canvas.Circle(x, y, 3, innerStyle)
		}
	})
	return closeFile(f)
}
