// Package crystal holds the crystal geometry consumed by the phonon and
// interaction calculations: unit cells, the primitive cell with its
// primitive↔supercell atom maps, and shortest lattice vectors between atoms.
package crystal

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

var (
	// ErrInvalidCell is returned when a cell has inconsistent or degenerate data.
	ErrInvalidCell = errors.New("crystal: invalid cell")

	// ErrPrimitiveMismatch is returned when a supercell cannot be folded onto
	// the requested primitive cell.
	ErrPrimitiveMismatch = errors.New("crystal: supercell does not match primitive cell")
)

// Cell is a periodic arrangement of atoms. Lattice rows are the basis vectors
// in Å and Positions are fractional coordinates in that basis.
type Cell struct {
	Lattice   [3][3]float64
	Positions [][3]float64
	Masses    []float64
	Numbers   []int
}

// NumAtoms returns the number of atoms in the cell.
func (c *Cell) NumAtoms() int { return len(c.Positions) }

// Validate checks that per-atom slices agree and the lattice is not singular.
func (c *Cell) Validate() error {
	n := len(c.Positions)
	if n == 0 {
		return fmt.Errorf("%w: no atoms", ErrInvalidCell)
	}
	if len(c.Masses) != n {
		return fmt.Errorf("%w: %d masses for %d atoms", ErrInvalidCell, len(c.Masses), n)
	}
	if len(c.Numbers) != 0 && len(c.Numbers) != n {
		return fmt.Errorf("%w: %d type numbers for %d atoms", ErrInvalidCell, len(c.Numbers), n)
	}
	for i, m := range c.Masses {
		if !(m > 0) {
			return fmt.Errorf("%w: mass of atom %d is %g", ErrInvalidCell, i, m)
		}
	}
	if math.Abs(Det(c.Lattice)) < 1e-12 {
		return fmt.Errorf("%w: singular lattice", ErrInvalidCell)
	}
	return nil
}

// Volume returns the cell volume in Å³.
func (c *Cell) Volume() float64 { return math.Abs(Det(c.Lattice)) }

// Cartesian converts fractional coordinates to Cartesian ones.
func (c *Cell) Cartesian(frac [3]float64) [3]float64 {
	return RowTimes(frac, c.Lattice)
}

// TypeOf returns the type number of atom i, or 0 when the cell carries none.
func (c *Cell) TypeOf(i int) int {
	if len(c.Numbers) == 0 {
		return 0
	}
	return c.Numbers[i]
}

// ReciprocalLattice returns the inverse of the lattice matrix. Its columns are
// the reciprocal basis vectors without the 2π factor.
func (c *Cell) ReciprocalLattice() (*mat.Dense, error) {
	var inv mat.Dense
	if err := inv.Inverse(denseOf(c.Lattice)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCell, err)
	}
	return &inv, nil
}

// distance returns the shortest Cartesian distance between two fractional
// positions under the periodicity of lattice.
func distance(a, b [3]float64, lattice [3][3]float64) float64 {
	var d [3]float64
	for k := 0; k < 3; k++ {
		d[k] = a[k] - b[k]
		d[k] -= math.Round(d[k])
	}
	return Norm(RowTimes(d, lattice))
}
