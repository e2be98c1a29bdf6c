// Package fc3 stores third-order force constants of a supercell.
package fc3

import (
	"errors"
	"fmt"
	"math"
)

// ErrShape is returned when the flat data does not match the atom count.
var ErrShape = errors.New("fc3: shape mismatch")

// ForceConstants holds Φ[i][j][k][α][β][γ] in eV/Å³ for supercell atoms
// i, j, k, stored contiguously with γ fastest.
type ForceConstants struct {
	n    int
	data []float64
}

// New allocates zeroed force constants for n supercell atoms.
func New(n int) *ForceConstants {
	return &ForceConstants{n: n, data: make([]float64, n*n*n*27)}
}

// FromData wraps data, which must hold n³·27 values, without copying.
func FromData(n int, data []float64) (*ForceConstants, error) {
	if n <= 0 || len(data) != n*n*n*27 {
		return nil, fmt.Errorf("%w: %d values for %d atoms, want %d", ErrShape, len(data), n, n*n*n*27)
	}
	return &ForceConstants{n: n, data: data}, nil
}

// NumAtoms returns the number of supercell atoms.
func (f *ForceConstants) NumAtoms() int { return f.n }

// Data returns the flat backing slice.
func (f *ForceConstants) Data() []float64 { return f.data }

// Block returns the 27 Cartesian components for the atom triple (i, j, k).
func (f *ForceConstants) Block(i, j, k int) []float64 {
	off := ((i*f.n+j)*f.n + k) * 27
	return f.data[off : off+27]
}

// At returns one element.
func (f *ForceConstants) At(i, j, k, a, b, c int) float64 {
	return f.Block(i, j, k)[a*9+b*3+c]
}

// Set assigns one element.
func (f *ForceConstants) Set(i, j, k, a, b, c int, v float64) {
	f.Block(i, j, k)[a*9+b*3+c] = v
}

// Add adds v to one element.
func (f *ForceConstants) Add(i, j, k, a, b, c int, v float64) {
	f.Block(i, j, k)[a*9+b*3+c] += v
}

// PermutationAsymmetry returns the largest deviation between an element and
// its images under simultaneous permutation of atom and Cartesian indices.
// It is zero for force constants derived from a potential.
func (f *ForceConstants) PermutationAsymmetry() float64 {
	var worst float64
	idx := [3][2]int{}
	perms := [][3]int{{0, 2, 1}, {1, 0, 2}, {1, 2, 0}, {2, 0, 1}, {2, 1, 0}}
	for i := 0; i < f.n; i++ {
		for j := 0; j < f.n; j++ {
			for k := 0; k < f.n; k++ {
				for a := 0; a < 3; a++ {
					for b := 0; b < 3; b++ {
						for c := 0; c < 3; c++ {
							v := f.At(i, j, k, a, b, c)
							idx[0] = [2]int{i, a}
							idx[1] = [2]int{j, b}
							idx[2] = [2]int{k, c}
							for _, p := range perms {
								x, y, z := idx[p[0]], idx[p[1]], idx[p[2]]
								d := math.Abs(v - f.At(x[0], y[0], z[0], x[1], y[1], z[1]))
								worst = math.Max(worst, d)
							}
						}
					}
				}
			}
		}
	}
	return worst
}
