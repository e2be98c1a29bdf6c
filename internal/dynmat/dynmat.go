// Package dynmat builds dynamical matrices from harmonic force constants.
package dynmat

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/phonon3/internal/crystal"
)

var (
	// ErrShape is returned when the force constants do not match the supercell.
	ErrShape = errors.New("dynmat: force constants shape mismatch")

	// ErrNACParams is returned for inconsistent non-analytic correction data.
	ErrNACParams = errors.New("dynmat: invalid non-analytic correction parameters")
)

// ForceConstants are second-order force constants Φ[i][j][α][β] between
// supercell atoms i and j in eV/Å².
type ForceConstants [][][3][3]float64

// NACParams are the inputs of the non-analytic term at the zone centre.
type NACParams struct {
	// BornCharges holds one effective charge tensor per primitive atom.
	BornCharges [][3][3]float64
	Dielectric  [3][3]float64
	// Factor converts e²/(ε₀·Å³) to the force-constant unit; 14.399652 for
	// eV and Å.
	Factor float64
}

// Options configure New. Nil pointers leave the corresponding step out.
type Options struct {
	NAC                  *NACParams
	FrequencyScaleFactor *float64
	Decimals             *int
	Symprec              float64
}

// DynamicalMatrix generates mass-weighted dynamical matrices at arbitrary
// reduced wavevectors.
type DynamicalMatrix struct {
	primitive *crystal.Primitive
	fc2       ForceConstants
	svecs     *crystal.ShortestVectors
	nac       *NACParams
	decimals  *int
}

// New prepares a dynamical matrix generator. The force constants are copied
// and scaled by the square of the frequency scale factor.
func New(fc2 ForceConstants, supercell *crystal.Cell, primitive *crystal.Primitive, opts Options) (*DynamicalMatrix, error) {
	ns := supercell.NumAtoms()
	if len(fc2) != ns {
		return nil, fmt.Errorf("%w: %d rows for %d supercell atoms", ErrShape, len(fc2), ns)
	}
	scale := 1.0
	if opts.FrequencyScaleFactor != nil {
		scale = *opts.FrequencyScaleFactor * *opts.FrequencyScaleFactor
	}
	fc := make(ForceConstants, ns)
	for i := range fc2 {
		if len(fc2[i]) != ns {
			return nil, fmt.Errorf("%w: row %d has %d entries, want %d", ErrShape, i, len(fc2[i]), ns)
		}
		fc[i] = make([][3][3]float64, ns)
		for j := range fc2[i] {
			for a := 0; a < 3; a++ {
				for b := 0; b < 3; b++ {
					fc[i][j][a][b] = fc2[i][j][a][b] * scale
				}
			}
		}
	}
	if opts.NAC != nil && len(opts.NAC.BornCharges) != primitive.NumAtoms() {
		return nil, fmt.Errorf("%w: %d Born charges for %d primitive atoms",
			ErrNACParams, len(opts.NAC.BornCharges), primitive.NumAtoms())
	}
	symprec := opts.Symprec
	if symprec <= 0 {
		symprec = 1e-5
	}
	svecs, err := crystal.SmallestVectors(supercell, primitive, symprec)
	if err != nil {
		return nil, err
	}
	return &DynamicalMatrix{
		primitive: primitive,
		fc2:       fc,
		svecs:     svecs,
		nac:       opts.NAC,
		decimals:  opts.Decimals,
	}, nil
}

// Primitive returns the primitive cell the matrices are expressed in.
func (d *DynamicalMatrix) Primitive() *crystal.Primitive { return d.primitive }

// Size returns the matrix dimension, three per primitive atom.
func (d *DynamicalMatrix) Size() int { return d.primitive.NumBands() }

// Matrix returns the Hermitian dynamical matrix at reduced wavevector q.
// At q = 0 a non-nil nacDirection (Cartesian) selects the non-analytic term
// when NAC parameters were given.
func (d *DynamicalMatrix) Matrix(q [3]float64, nacDirection []float64) (*mat.CDense, error) {
	p := d.primitive
	np := p.NumAtoms()
	n := 3 * np
	dm := mat.NewCDense(n, n, nil)

	for s := range d.fc2 {
		j := p.S2PIndex[s]
		for i := 0; i < np; i++ {
			phase := d.phase(q, s, i)
			invMass := 1 / math.Sqrt(p.Masses[i]*p.Masses[j])
			fc := &d.fc2[p.P2S[i]][s]
			for a := 0; a < 3; a++ {
				for b := 0; b < 3; b++ {
					v := dm.At(3*i+a, 3*j+b) + complex(fc[a][b]*invMass, 0)*phase
					dm.Set(3*i+a, 3*j+b, v)
				}
			}
		}
	}

	if d.nac != nil && q == ([3]float64{}) && len(nacDirection) == 3 {
		if err := d.addNonAnalytic(dm, nacDirection); err != nil {
			return nil, err
		}
	}

	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			h := (dm.At(i, j) + cmplx.Conj(dm.At(j, i))) / 2
			if d.decimals != nil {
				h = complex(round(real(h), *d.decimals), round(imag(h), *d.decimals))
			}
			dm.Set(i, j, h)
			dm.Set(j, i, cmplx.Conj(h))
		}
	}
	return dm, nil
}

// phase averages exp(2πi q·r) over the equally short vectors r from
// primitive atom i to supercell atom s.
func (d *DynamicalMatrix) phase(q [3]float64, s, i int) complex128 {
	vecs := d.svecs.Vectors(s, i)
	var sum complex128
	for _, r := range vecs {
		arg := 2 * math.Pi * (q[0]*r[0] + q[1]*r[1] + q[2]*r[2])
		sum += cmplx.Exp(complex(0, arg))
	}
	return sum / complex(float64(len(vecs)), 0)
}

// addNonAnalytic adds
//
//	Factor·4π/V · (q̂·Z_i)_α (q̂·Z_j)_β / (q̂·ε·q̂) / sqrt(m_i m_j)
func (d *DynamicalMatrix) addNonAnalytic(dm *mat.CDense, dir []float64) error {
	nrm := math.Sqrt(dir[0]*dir[0] + dir[1]*dir[1] + dir[2]*dir[2])
	if nrm == 0 {
		return nil
	}
	qhat := [3]float64{dir[0] / nrm, dir[1] / nrm, dir[2] / nrm}
	var denom float64
	for a := 0; a < 3; a++ {
		for b := 0; b < 3; b++ {
			denom += qhat[a] * d.nac.Dielectric[a][b] * qhat[b]
		}
	}
	if denom <= 0 {
		return fmt.Errorf("%w: q·ε·q = %g along %v", ErrNACParams, denom, qhat)
	}
	p := d.primitive
	np := p.NumAtoms()
	qz := make([][3]float64, np)
	for i := 0; i < np; i++ {
		for a := 0; a < 3; a++ {
			for c := 0; c < 3; c++ {
				qz[i][a] += qhat[c] * d.nac.BornCharges[i][c][a]
			}
		}
	}
	pref := d.nac.Factor * 4 * math.Pi / p.Volume() / denom
	for i := 0; i < np; i++ {
		for j := 0; j < np; j++ {
			invMass := 1 / math.Sqrt(p.Masses[i]*p.Masses[j])
			for a := 0; a < 3; a++ {
				for b := 0; b < 3; b++ {
					v := dm.At(3*i+a, 3*j+b) + complex(pref*qz[i][a]*qz[j][b]*invMass, 0)
					dm.Set(3*i+a, 3*j+b, v)
				}
			}
		}
	}
	return nil
}

func round(x float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(x*p) / p
}
