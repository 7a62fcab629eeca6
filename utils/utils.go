// Copyright (c) 2026 Andrey Kriulin
// Licensed under the MIT License.
// See the LICENSE file in the project root for full license text.

// Package utils provides point generators for building meshes in tests,
// benchmarks and examples.

package utils

import (
	"math/rand"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
)

// GenerateRandomPoints2D generates points uniformly distributed in the unit
// square. The seed parameter ensures reproducibility.
func GenerateRandomPoints2D(cnt int, seed int64) []r2.Point {
	//nolint:gosec
	random := rand.New(rand.NewSource(seed))
	points := make([]r2.Point, cnt)

	for i := range cnt {
		points[i] = r2.Point{X: random.Float64(), Y: random.Float64()}
	}

	return points
}

// GenerateRandomPoints3D generates points uniformly distributed in the unit
// cube. The seed parameter ensures reproducibility.
func GenerateRandomPoints3D(cnt int, seed int64) []r3.Vector {
	//nolint:gosec
	random := rand.New(rand.NewSource(seed))
	points := make([]r3.Vector, cnt)

	for i := range cnt {
		points[i] = r3.Vector{X: random.Float64(), Y: random.Float64(), Z: random.Float64()}
	}

	return points
}

// GenerateGrid2D returns the nx*ny points (i*spacing, j*spacing), row by row.
func GenerateGrid2D(nx, ny int, spacing float64) []r2.Point {
	points := make([]r2.Point, 0, max(nx*ny, 0))
	for j := range ny {
		for i := range nx {
			points = append(points, r2.Point{X: float64(i) * spacing, Y: float64(j) * spacing})
		}
	}
	return points
}
