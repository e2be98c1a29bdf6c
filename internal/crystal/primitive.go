package crystal

import (
	"fmt"
	"math"
)

// Primitive is the primitive cell of a supercell together with the atom
// index maps between the two.
type Primitive struct {
	Cell

	// P2S maps a primitive atom to its representative supercell atom.
	P2S []int
	// S2P maps a supercell atom to the supercell index of its primitive
	// representative.
	S2P []int
	// S2PIndex maps a supercell atom to its primitive atom index.
	S2PIndex []int
}

// NewPrimitive folds supercell onto the primitive cell whose lattice rows are
// pmat·supercell.Lattice. Atoms that coincide modulo the primitive lattice
// within symprec (Å) are merged; the first one seen is the representative.
func NewPrimitive(supercell *Cell, pmat [3][3]float64, symprec float64) (*Primitive, error) {
	if err := supercell.Validate(); err != nil {
		return nil, err
	}
	lattice := MatMul(pmat, supercell.Lattice)
	ratio := Det(supercell.Lattice) / Det(lattice)
	nPrim := int(math.Round(ratio))
	if nPrim <= 0 || math.Abs(ratio-float64(nPrim)) > 1e-6 {
		return nil, fmt.Errorf("%w: volume ratio %g is not a positive integer", ErrPrimitiveMismatch, ratio)
	}
	if supercell.NumAtoms()%nPrim != 0 {
		return nil, fmt.Errorf("%w: %d atoms cannot fill %d primitive cells",
			ErrPrimitiveMismatch, supercell.NumAtoms(), nPrim)
	}
	inv, err := Inverse(lattice)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPrimitiveMismatch, err)
	}

	p := &Primitive{
		Cell:     Cell{Lattice: lattice},
		S2P:      make([]int, supercell.NumAtoms()),
		S2PIndex: make([]int, supercell.NumAtoms()),
	}
	for s := 0; s < supercell.NumAtoms(); s++ {
		frac := RowTimes(supercell.Cartesian(supercell.Positions[s]), inv)
		for k := range frac {
			frac[k] -= math.Floor(frac[k])
		}
		found := -1
		for i, pos := range p.Positions {
			if distance(frac, pos, lattice) < symprec {
				found = i
				break
			}
		}
		if found < 0 {
			found = len(p.Positions)
			p.Positions = append(p.Positions, frac)
			p.Masses = append(p.Masses, supercell.Masses[s])
			p.Numbers = append(p.Numbers, supercell.TypeOf(s))
			p.P2S = append(p.P2S, s)
		} else if supercell.TypeOf(s) != p.Numbers[found] ||
			math.Abs(supercell.Masses[s]-p.Masses[found]) > 1e-8 {
			return nil, fmt.Errorf("%w: supercell atom %d overlaps primitive atom %d with a different species",
				ErrPrimitiveMismatch, s, found)
		}
		p.S2P[s] = p.P2S[found]
		p.S2PIndex[s] = found
	}
	if got, want := len(p.Positions)*nPrim, supercell.NumAtoms(); got != want {
		return nil, fmt.Errorf("%w: %d primitive atoms times %d cells != %d supercell atoms",
			ErrPrimitiveMismatch, len(p.Positions), nPrim, want)
	}
	return p, nil
}

// NumBands returns the number of phonon bands, three per primitive atom.
func (p *Primitive) NumBands() int { return 3 * p.NumAtoms() }
