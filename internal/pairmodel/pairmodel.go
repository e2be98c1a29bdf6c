// Package pairmodel generates force constants of a central pair potential.
// It provides small synthetic crystals with physically consistent second-
// and third-order force constants for tests and tooling.
package pairmodel

import (
	"errors"
	"fmt"
	"math"

	"github.com/banshee-data/phonon3/internal/crystal"
	"github.com/banshee-data/phonon3/internal/dynmat"
	"github.com/banshee-data/phonon3/internal/fc3"
	"github.com/banshee-data/phonon3/internal/symmetry"
)

// ErrNoBonds is returned when no atom pair lies within the model cutoff.
var ErrNoBonds = errors.New("pairmodel: no bonds within cutoff")

// Model is a pair potential V(r) expanded about its minimum at every bond
// shorter than Cutoff: V”(r) = Spring and V”'(r) = Cubic.
type Model struct {
	Spring float64 // eV/Å²
	Cubic  float64 // eV/Å³
	Cutoff float64 // Å
}

type bond struct {
	i, j int
	d    [3]float64 // unit vector from i to j
	r    float64
}

// bonds lists every pair (i < j) and periodic image closer than the cutoff.
func (m Model) bonds(cell *crystal.Cell) ([]bond, error) {
	var out []bond
	n := cell.NumAtoms()
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			for a := -1; a <= 1; a++ {
				for b := -1; b <= 1; b++ {
					for c := -1; c <= 1; c++ {
						var frac [3]float64
						for k := 0; k < 3; k++ {
							frac[k] = cell.Positions[j][k] - cell.Positions[i][k]
							frac[k] -= math.Round(frac[k])
						}
						frac[0] += float64(a)
						frac[1] += float64(b)
						frac[2] += float64(c)
						v := cell.Cartesian(frac)
						r := crystal.Norm(v)
						if r == 0 || r >= m.Cutoff {
							continue
						}
						out = append(out, bond{i: i, j: j, r: r, d: [3]float64{v[0] / r, v[1] / r, v[2] / r}})
					}
				}
			}
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: cutoff %g Å", ErrNoBonds, m.Cutoff)
	}
	return out, nil
}

func (b bond) atoms() [2]int { return [2]int{b.i, b.j} }

// sign of the derivative of V(x_j - x_i) with respect to atom l of the bond.
func (b bond) sign(l int) float64 { return float64(2*l - 1) }

// ForceConstants2 returns Φ[i][j][α][β] of the model in cell. The acoustic
// sum rule holds by construction.
func (m Model) ForceConstants2(cell *crystal.Cell) (dynmat.ForceConstants, error) {
	bonds, err := m.bonds(cell)
	if err != nil {
		return nil, err
	}
	n := cell.NumAtoms()
	fc := make(dynmat.ForceConstants, n)
	for i := range fc {
		fc[i] = make([][3][3]float64, n)
	}
	for _, b := range bonds {
		at := b.atoms()
		for l := 0; l < 2; l++ {
			for p := 0; p < 2; p++ {
				s := b.sign(l) * b.sign(p) * m.Spring
				for x := 0; x < 3; x++ {
					for y := 0; y < 3; y++ {
						fc[at[l]][at[p]][x][y] += s * b.d[x] * b.d[y]
					}
				}
			}
		}
	}
	return fc, nil
}

// ForceConstants3 returns Φ[i][j][k][α][β][γ] of the model in cell. The
// result is symmetric under any permutation of its atom-axis pairs.
func (m Model) ForceConstants3(cell *crystal.Cell) (*fc3.ForceConstants, error) {
	bonds, err := m.bonds(cell)
	if err != nil {
		return nil, err
	}
	fc := fc3.New(cell.NumAtoms())
	for _, b := range bonds {
		t := m.thirdDerivative(b)
		at := b.atoms()
		for l := 0; l < 2; l++ {
			for p := 0; p < 2; p++ {
				for q := 0; q < 2; q++ {
					s := b.sign(l) * b.sign(p) * b.sign(q)
					for x := 0; x < 3; x++ {
						for y := 0; y < 3; y++ {
							for z := 0; z < 3; z++ {
								fc.Add(at[l], at[p], at[q], x, y, z, s*t[x][y][z])
							}
						}
					}
				}
			}
		}
	}
	return fc, nil
}

// thirdDerivative of V(|r|) at a bond, with V' = 0.
func (m Model) thirdDerivative(b bond) [3][3][3]float64 {
	var t [3][3][3]float64
	d := b.d
	kr := m.Spring / b.r
	for x := 0; x < 3; x++ {
		for y := 0; y < 3; y++ {
			for z := 0; z < 3; z++ {
				ddd := d[x] * d[y] * d[z]
				t[x][y][z] = m.Cubic*ddd + kr*(delta(x, y)*d[z]+delta(x, z)*d[y]+delta(y, z)*d[x]-3*ddd)
			}
		}
	}
	return t
}

func delta(a, b int) float64 {
	if a == b {
		return 1
	}
	return 0
}

// CsCl returns a two-atom simple cubic cell with lattice constant a (Å) and
// atoms of the given masses (AMU) at the corner and the body centre.
func CsCl(a, massA, massB float64) *crystal.Cell {
	return &crystal.Cell{
		Lattice:   [3][3]float64{{a, 0, 0}, {0, a, 0}, {0, 0, a}},
		Positions: [][3]float64{{0, 0, 0}, {0.5, 0.5, 0.5}},
		Masses:    []float64{massA, massB},
		Numbers:   []int{1, 2},
	}
}

// Supercell repeats cell dims times along its lattice vectors. Atoms are
// ordered cell by cell, so the first unit cell keeps the original indices.
func Supercell(cell *crystal.Cell, dims [3]int) *crystal.Cell {
	sc := &crystal.Cell{}
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			sc.Lattice[r][c] = cell.Lattice[r][c] * float64(dims[r])
		}
	}
	for z := 0; z < dims[2]; z++ {
		for y := 0; y < dims[1]; y++ {
			for x := 0; x < dims[0]; x++ {
				for i, p := range cell.Positions {
					sc.Positions = append(sc.Positions, [3]float64{
						(p[0] + float64(x)) / float64(dims[0]),
						(p[1] + float64(y)) / float64(dims[1]),
						(p[2] + float64(z)) / float64(dims[2]),
					})
					sc.Masses = append(sc.Masses, cell.Masses[i])
					sc.Numbers = append(sc.Numbers, cell.TypeOf(i))
				}
			}
		}
	}
	return sc
}

// System is a model crystal ready for an interaction calculation.
type System struct {
	Unit      *crystal.Cell
	Supercell *crystal.Cell
	Primitive *crystal.Primitive
	Symmetry  *symmetry.Symmetry
	FC2       dynmat.ForceConstants
	FC3       *fc3.ForceConstants
}

// Build expands unit into a dims supercell, folds it back to the primitive
// cell, finds its point group and evaluates the model force constants.
func Build(unit *crystal.Cell, dims [3]int, m Model, symprec float64) (*System, error) {
	for _, d := range dims {
		if d <= 0 {
			return nil, fmt.Errorf("pairmodel: supercell dimensions must be positive, got %v", dims)
		}
	}
	sc := Supercell(unit, dims)
	var pmat [3][3]float64
	for k := 0; k < 3; k++ {
		pmat[k][k] = 1 / float64(dims[k])
	}
	prim, err := crystal.NewPrimitive(sc, pmat, symprec)
	if err != nil {
		return nil, fmt.Errorf("pairmodel: primitive cell: %w", err)
	}
	sym, err := symmetry.Find(&prim.Cell, symprec)
	if err != nil {
		return nil, fmt.Errorf("pairmodel: symmetry: %w", err)
	}
	fc2, err := m.ForceConstants2(sc)
	if err != nil {
		return nil, err
	}
	phi3, err := m.ForceConstants3(sc)
	if err != nil {
		return nil, err
	}
	return &System{Unit: unit, Supercell: sc, Primitive: prim, Symmetry: sym, FC2: fc2, FC3: phi3}, nil
}
