// Copyright (c) 2026 Andrey Kriulin
// Licensed under the MIT License.
// See the LICENSE file in the project root for full license text.

package geom

import (
	"math"

	"github.com/pkg/errors"
)

// Circumcenter returns the center of the sphere through the D+1 points of a
// simplex. It solves 2(pi-p0)·x = |pi-p0|² with partial pivoting and returns
// ErrPrecision for a flat simplex.
func Circumcenter[V Vector[V], S Space[V]](s S, simplex []V) (V, error) {
	d := s.Dim()
	if len(simplex) != d+1 {
		panic("geom: Circumcenter needs D+1 points")
	}
	p0 := s.Coords(simplex[0])

	var a [3][4]float64
	for i := 1; i <= d; i++ {
		c := s.Coords(simplex[i])
		sq := 0.0
		for j := range d {
			x := c[j] - p0[j]
			a[i-1][j] = 2 * x
			sq += x * x
		}
		a[i-1][d] = sq
	}

	for col := range d {
		pivot := col
		for r := col + 1; r < d; r++ {
			if math.Abs(a[r][col]) > math.Abs(a[pivot][col]) {
				pivot = r
			}
		}
		if math.Abs(a[pivot][col]) <= 1e-300 {
			var zero V
			return zero, errors.Wrap(ErrPrecision, "geom: circumcenter of a flat simplex")
		}
		a[col], a[pivot] = a[pivot], a[col]
		for r := col + 1; r < d; r++ {
			f := a[r][col] / a[col][col]
			for c := col; c <= d; c++ {
				a[r][c] -= f * a[col][c]
			}
		}
	}

	var x [3]float64
	for r := d - 1; r >= 0; r-- {
		v := a[r][d]
		for c := r + 1; c < d; c++ {
			v -= a[r][c] * x[c]
		}
		x[r] = v / a[r][r]
	}
	for j := range d {
		x[j] += p0[j]
	}
	return s.FromCoords(x), nil
}

// SimplexVolume returns the unsigned D-dimensional volume of a simplex.
func SimplexVolume[V Vector[V], S Space[V]](s S, simplex []V) float64 {
	d := s.Dim()
	p0 := s.Coords(simplex[0])
	var m matrix
	for i := 1; i <= d; i++ {
		c := s.Coords(simplex[i])
		for j := range d {
			m[i-1][j] = c[j] - p0[j]
		}
	}
	det, _ := detPerm(&m, d)
	fact := 1.0
	for k := 2; k <= d; k++ {
		fact *= float64(k)
	}
	return math.Abs(det) / fact
}

// Centroid returns the average of points.
func Centroid[V Vector[V]](points []V) V {
	var sum V
	for _, p := range points {
		sum = sum.Add(p)
	}
	return sum.Mul(1 / float64(len(points)))
}
