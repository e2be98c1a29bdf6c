// Package symmetry finds the point-group operations of a crystal and serves
// them to the triplet search.
package symmetry

import (
	"errors"
	"fmt"
	"math"

	"github.com/banshee-data/phonon3/internal/crystal"
)

// ErrNoIdentity is returned when the structure check rejects even the
// identity, which means the tolerance is too small for the positions given.
var ErrNoIdentity = errors.New("symmetry: identity operation not found")

// Rotation is an integer rotation matrix in lattice coordinates acting on
// fractional column vectors.
type Rotation [3][3]int

// IdentityRotation is the identity operation.
var IdentityRotation = Rotation{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}

// Transpose returns the transposed rotation, which acts on reduced
// reciprocal-space coordinates.
func (r Rotation) Transpose() Rotation {
	var t Rotation
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			t[i][j] = r[j][i]
		}
	}
	return t
}

// Apply returns r·v.
func (r Rotation) Apply(v [3]int) [3]int {
	var out [3]int
	for i := 0; i < 3; i++ {
		out[i] = r[i][0]*v[0] + r[i][1]*v[1] + r[i][2]*v[2]
	}
	return out
}

// Negate returns -r.
func (r Rotation) Negate() Rotation {
	var n Rotation
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			n[i][j] = -r[i][j]
		}
	}
	return n
}

func (r Rotation) det() int {
	return r[0][0]*(r[1][1]*r[2][2]-r[1][2]*r[2][1]) -
		r[0][1]*(r[1][0]*r[2][2]-r[1][2]*r[2][0]) +
		r[0][2]*(r[1][0]*r[2][1]-r[1][1]*r[2][0])
}

// Symmetry is the point group of a crystal and the tolerance it was found with.
type Symmetry struct {
	operations []Rotation
	symprec    float64
}

// New wraps a known set of point-group operations.
func New(operations []Rotation, symprec float64) *Symmetry {
	ops := make([]Rotation, len(operations))
	copy(ops, operations)
	return &Symmetry{operations: ops, symprec: symprec}
}

// Identity returns the trivial point group.
func Identity(symprec float64) *Symmetry {
	return New([]Rotation{IdentityRotation}, symprec)
}

// PointGroupOperations returns the rotations of the point group.
func (s *Symmetry) PointGroupOperations() []Rotation { return s.operations }

// Tolerance returns the distance tolerance in Å.
func (s *Symmetry) Tolerance() float64 { return s.symprec }

// Find searches the rotations that leave the lattice metric invariant and map
// the structure onto itself with some translation. Positions are compared
// with tolerance symprec in Å.
func Find(cell *crystal.Cell, symprec float64) (*Symmetry, error) {
	if err := cell.Validate(); err != nil {
		return nil, err
	}
	var ops []Rotation
	for _, w := range latticeRotations(cell.Lattice, symprec) {
		if mapsStructure(cell, w, symprec) {
			ops = append(ops, w)
		}
	}
	if len(ops) == 0 {
		return nil, fmt.Errorf("%w (symprec=%g)", ErrNoIdentity, symprec)
	}
	return &Symmetry{operations: ops, symprec: symprec}, nil
}

// latticeRotations enumerates integer matrices with entries in {-1,0,1} and
// determinant ±1 that preserve the metric tensor.
func latticeRotations(lattice [3][3]float64, symprec float64) []Rotation {
	var metric [3][3]float64
	maxLen := 0.0
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			for k := 0; k < 3; k++ {
				metric[i][j] += lattice[i][k] * lattice[j][k]
			}
		}
		maxLen = math.Max(maxLen, math.Sqrt(metric[i][i]))
	}
	tol := 2 * symprec * maxLen

	var out []Rotation
	var w Rotation
	for code := 0; code < 19683; code++ {
		c := code
		for i := 0; i < 3; i++ {
			for j := 0; j < 3; j++ {
				w[i][j] = c%3 - 1
				c /= 3
			}
		}
		if d := w.det(); d != 1 && d != -1 {
			continue
		}
		if preservesMetric(w, metric, tol) {
			out = append(out, w)
		}
	}
	return out
}

func preservesMetric(w Rotation, g [3][3]float64, tol float64) bool {
	// (WᵀGW)_ij = Σ_kl W_ki G_kl W_lj
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			var v float64
			for k := 0; k < 3; k++ {
				for l := 0; l < 3; l++ {
					v += float64(w[k][i]) * g[k][l] * float64(w[l][j])
				}
			}
			if math.Abs(v-g[i][j]) > tol {
				return false
			}
		}
	}
	return true
}

func mapsStructure(cell *crystal.Cell, w Rotation, symprec float64) bool {
	x0 := rotate(w, cell.Positions[0])
	for j := 0; j < cell.NumAtoms(); j++ {
		if cell.TypeOf(j) != cell.TypeOf(0) {
			continue
		}
		var t [3]float64
		for k := 0; k < 3; k++ {
			t[k] = cell.Positions[j][k] - x0[k]
		}
		if mapsWithTranslation(cell, w, t, symprec) {
			return true
		}
	}
	return false
}

func mapsWithTranslation(cell *crystal.Cell, w Rotation, t [3]float64, symprec float64) bool {
	for i := 0; i < cell.NumAtoms(); i++ {
		x := rotate(w, cell.Positions[i])
		for k := 0; k < 3; k++ {
			x[k] += t[k]
		}
		matched := false
		for j := 0; j < cell.NumAtoms(); j++ {
			if cell.TypeOf(i) != cell.TypeOf(j) {
				continue
			}
			var d [3]float64
			for k := 0; k < 3; k++ {
				d[k] = x[k] - cell.Positions[j][k]
				d[k] -= math.Round(d[k])
			}
			if crystal.Norm(cell.Cartesian(d)) < symprec {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}

func rotate(w Rotation, x [3]float64) [3]float64 {
	var out [3]float64
	for i := 0; i < 3; i++ {
		out[i] = float64(w[i][0])*x[0] + float64(w[i][1])*x[1] + float64(w[i][2])*x[2]
	}
	return out
}
