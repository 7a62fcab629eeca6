// Copyright (c) 2026 Andrey Kriulin
// Licensed under the MIT License.
// See the LICENSE file in the project root for full license text.

package geom

import (
	"math"
	"math/big"

	"github.com/pkg/errors"
)

// ErrPrecision is returned when a predicate that must have a definite sign is
// exactly zero even under exact arithmetic, i.e. the input is degenerate.
var ErrPrecision = errors.New("geom: degenerate configuration, predicate is exactly zero")

// Sign is the sign of a determinant.
type Sign int8

const (
	Negative Sign = -1
	Zero     Sign = 0
	Positive Sign = 1
)

func (s Sign) String() string {
	switch s {
	case Negative:
		return "negative"
	case Positive:
		return "positive"
	}
	return "zero"
}

// Neg returns the opposite sign.
func (s Sign) Neg() Sign {
	return -s
}

// Definite returns ErrPrecision for Zero.
func (s Sign) Definite() (Sign, error) {
	if s == Zero {
		return Zero, ErrPrecision
	}
	return s, nil
}

const (
	maxOrder = 5

	// roundoff is the unit roundoff of float64.
	roundoff = 0x1p-53
)

// errorFactor bounds the relative error of an order n determinant evaluated by
// cofactor expansion on entries that are themselves rounded differences.
func errorFactor(n int) float64 {
	return float64(int(1)<<(n+2)) * roundoff
}

type matrix [maxOrder][maxOrder]float64

// Stats counts predicate evaluations.
type Stats struct {
	Evaluations    uint64
	ExactFallbacks uint64
}

// Predicates evaluates orientation and in-sphere predicates in the space S.
// The zero value is ready to use. A Predicates is not safe for concurrent use
// because it updates Stats.
type Predicates[V Vector[V], S Space[V]] struct {
	Space S
	Stats Stats
}

// Orientation returns the sign of det[p1-p0, ..., pD-p0] for the D+1 points
// of a simplex. Positive means positively oriented.
func (p *Predicates[V, S]) Orientation(pts []V) Sign {
	d := p.Space.Dim()
	if len(pts) != d+1 {
		panic("geom: Orientation needs D+1 points")
	}
	var coords [maxOrder][3]float64
	for i, v := range pts {
		coords[i] = p.Space.Coords(v)
	}

	var m matrix
	for i := 1; i <= d; i++ {
		for j := range d {
			m[i-1][j] = coords[i][j] - coords[0][j]
		}
	}
	return p.sign(&m, d, func() Sign {
		return exactOrientation(coords[:d+1], d)
	})
}

// InSphere reports where q lies relative to the circumsphere of the
// positively oriented simplex: Positive strictly inside, Zero on the sphere,
// Negative outside.
func (p *Predicates[V, S]) InSphere(simplex []V, q V) Sign {
	d := p.Space.Dim()
	if len(simplex) != d+1 {
		panic("geom: InSphere needs D+1 points")
	}
	var coords [maxOrder][3]float64
	for i, v := range simplex {
		coords[i] = p.Space.Coords(v)
	}
	qc := p.Space.Coords(q)

	var m matrix
	for i := 0; i <= d; i++ {
		sq := 0.0
		for j := range d {
			x := coords[i][j] - qc[j]
			m[i][j] = x
			sq += x * x
		}
		m[i][d] = sq
	}
	s := p.sign(&m, d+1, func() Sign {
		return exactInSphere(coords[:d+1], qc, d)
	})
	// The lifted determinant changes sign with the parity of the dimension.
	if d%2 == 1 {
		s = s.Neg()
	}
	return s
}

func (p *Predicates[V, S]) sign(m *matrix, n int, exact func() Sign) Sign {
	p.Stats.Evaluations++
	if s, ok := triageSign(m, n); ok {
		return s
	}
	p.Stats.ExactFallbacks++
	return exact()
}

// Orientation evaluates the orientation predicate without collecting stats.
func Orientation[V Vector[V], S Space[V]](s S, pts ...V) Sign {
	p := Predicates[V, S]{Space: s}
	return p.Orientation(pts)
}

// InSphere evaluates the in-sphere predicate without collecting stats.
func InSphere[V Vector[V], S Space[V]](s S, simplex []V, q V) Sign {
	p := Predicates[V, S]{Space: s}
	return p.InSphere(simplex, q)
}

// triageSign evaluates the determinant in floating point and reports whether
// its sign can be trusted.
func triageSign(m *matrix, n int) (Sign, bool) {
	det, perm := detPerm(m, n)
	if math.IsNaN(det) {
		return Zero, false
	}
	bound := errorFactor(n) * perm
	switch {
	case det > bound:
		return Positive, true
	case det < -bound:
		return Negative, true
	}
	return Zero, false
}

// detPerm returns the determinant of the leading n×n block of m together with
// the permanent of its absolute values, which bounds the rounding error.
func detPerm(m *matrix, n int) (det, perm float64) {
	switch n {
	case 0:
		return 1, 1
	case 1:
		return m[0][0], math.Abs(m[0][0])
	case 2:
		a, b := m[0][0]*m[1][1], m[0][1]*m[1][0]
		return a - b, math.Abs(a) + math.Abs(b)
	}
	var minor matrix
	sign := 1.0
	for col := range n {
		for r := 1; r < n; r++ {
			k := 0
			for c := range n {
				if c == col {
					continue
				}
				minor[r-1][k] = m[r][c]
				k++
			}
		}
		d, p := detPerm(&minor, n-1)
		det += sign * m[0][col] * d
		perm += math.Abs(m[0][col]) * p
		sign = -sign
	}
	return det, perm
}

// Determinant returns the determinant of a square matrix of order at most 5.
func Determinant(rows [][]float64) float64 {
	n := len(rows)
	if n > maxOrder {
		panic("geom: Determinant supports matrices up to 5x5")
	}
	var m matrix
	for i, row := range rows {
		if len(row) != n {
			panic("geom: Determinant needs a square matrix")
		}
		copy(m[i][:], row)
	}
	det, _ := detPerm(&m, n)
	return det
}

// ExactDeterminantSign returns the sign of the determinant of a square matrix
// of floats, computed exactly.
func ExactDeterminantSign(rows [][]float64) Sign {
	m := make([][]*big.Rat, len(rows))
	for i, row := range rows {
		m[i] = make([]*big.Rat, len(row))
		for j, x := range row {
			m[i][j] = rat(x)
		}
	}
	return ratDeterminantSign(m)
}

// TriageDeterminantSign returns the sign of the determinant using the float
// evaluation and reports whether it could be trusted.
func TriageDeterminantSign(rows [][]float64) (Sign, bool) {
	var m matrix
	for i, row := range rows {
		copy(m[i][:], row)
	}
	return triageSign(&m, len(rows))
}

func exactOrientation(coords [][3]float64, d int) Sign {
	m := make([][]*big.Rat, d)
	for i := 1; i <= d; i++ {
		m[i-1] = make([]*big.Rat, d)
		for j := range d {
			m[i-1][j] = new(big.Rat).Sub(rat(coords[i][j]), rat(coords[0][j]))
		}
	}
	return ratDeterminantSign(m)
}

func exactInSphere(coords [][3]float64, q [3]float64, d int) Sign {
	m := make([][]*big.Rat, d+1)
	for i := 0; i <= d; i++ {
		m[i] = make([]*big.Rat, d+1)
		sq := new(big.Rat)
		for j := range d {
			x := new(big.Rat).Sub(rat(coords[i][j]), rat(q[j]))
			m[i][j] = x
			sq.Add(sq, new(big.Rat).Mul(x, x))
		}
		m[i][d] = sq
	}
	return ratDeterminantSign(m)
}

// ratDeterminantSign runs Gaussian elimination on m in place.
func ratDeterminantSign(m [][]*big.Rat) Sign {
	n := len(m)
	sign := 1
	for col := range n {
		pivot := -1
		for r := col; r < n; r++ {
			if m[r][col].Sign() != 0 {
				pivot = r
				break
			}
		}
		if pivot < 0 {
			return Zero
		}
		if pivot != col {
			m[pivot], m[col] = m[col], m[pivot]
			sign = -sign
		}
		sign *= m[col][col].Sign()
		for r := col + 1; r < n; r++ {
			if m[r][col].Sign() == 0 {
				continue
			}
			f := new(big.Rat).Quo(m[r][col], m[col][col])
			for c := col; c < n; c++ {
				m[r][c].Sub(m[r][c], new(big.Rat).Mul(f, m[col][c]))
			}
		}
	}
	return Sign(sign)
}

func rat(x float64) *big.Rat {
	r := new(big.Rat)
	if r.SetFloat64(x) == nil {
		panic("geom: non-finite coordinate")
	}
	return r
}
