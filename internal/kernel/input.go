// Package kernel turns third-order force constants and phonon states into
// squared three-phonon matrix elements. Two routes are provided: a two-stage
// pipeline (RealToReciprocal followed by ReciprocalToNormal) and a fused
// contraction that never forms the reciprocal-space tensor.
package kernel

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"

	"github.com/banshee-data/phonon3/internal/crystal"
	"github.com/banshee-data/phonon3/internal/fc3"
	"github.com/banshee-data/phonon3/internal/grid"
)

var (
	// ErrInput is returned when the kernel inputs are inconsistent.
	ErrInput = errors.New("kernel: inconsistent input")

	// ErrPhononsMissing is returned when a triplet references a grid point
	// whose phonons have not been computed.
	ErrPhononsMissing = errors.New("kernel: phonons not computed")
)

// Input is everything a kernel reads. It is read-only while a kernel runs.
type Input struct {
	Triplets    [][3]int
	GridAddress [][3]int
	Mesh        grid.Mesh

	FC3       *fc3.ForceConstants
	Vectors   *crystal.ShortestVectors
	Primitive *crystal.Primitive

	// Frequencies is [grid][band], Eigenvectors is [grid][row][band] and
	// Done flags the grid points whose phonons are filled.
	Frequencies  []float64
	Eigenvectors []complex128
	Done         []bool

	BandIndices     []int
	CutoffFrequency float64
	SymmetrizeFC3Q  bool
}

// NumBand returns the number of bands, three per primitive atom.
func (in *Input) NumBand() int { return 3 * in.Primitive.NumAtoms() }

// OutputLen returns the length of the flat result
// [triplet][selected band][band][band].
func (in *Input) OutputLen() int {
	nb := in.NumBand()
	return len(in.Triplets) * len(in.BandIndices) * nb * nb
}

// Validate checks shapes and that every referenced grid point is filled.
func (in *Input) Validate() error {
	if in.FC3 == nil || in.Vectors == nil || in.Primitive == nil {
		return fmt.Errorf("%w: missing force constants, vectors or primitive cell", ErrInput)
	}
	ns := in.FC3.NumAtoms()
	if in.Vectors.NumSupercellAtoms() != ns || len(in.Primitive.S2PIndex) != ns {
		return fmt.Errorf("%w: fc3 covers %d atoms, vectors %d, primitive map %d",
			ErrInput, ns, in.Vectors.NumSupercellAtoms(), len(in.Primitive.S2PIndex))
	}
	nb := in.NumBand()
	ngrid := len(in.Done)
	if len(in.Frequencies) != ngrid*nb || len(in.Eigenvectors) != ngrid*nb*nb {
		return fmt.Errorf("%w: phonon storage does not match %d grid points with %d bands", ErrInput, ngrid, nb)
	}
	for _, b := range in.BandIndices {
		if b < 0 || b >= nb {
			return fmt.Errorf("%w: band index %d not in [0, %d)", ErrInput, b, nb)
		}
	}
	for t, tr := range in.Triplets {
		for _, gp := range tr {
			if gp < 0 || gp >= ngrid || gp >= len(in.GridAddress) {
				return fmt.Errorf("%w: triplet %d %v references grid point %d outside [0, %d)", ErrInput, t, tr, gp, ngrid)
			}
			if !in.Done[gp] {
				return fmt.Errorf("%w: grid point %d of triplet %d %v", ErrPhononsMissing, gp, t, tr)
			}
		}
	}
	return nil
}

func (in *Input) frequencies(gp int) []float64 {
	nb := in.NumBand()
	return in.Frequencies[gp*nb : (gp+1)*nb]
}

func (in *Input) eigenvectors(gp int) []complex128 {
	n2 := in.NumBand() * in.NumBand()
	return in.Eigenvectors[gp*n2 : (gp+1)*n2]
}

// phaseTable fills dst[p*ns+s] with exp(2πi q·r) averaged over the shortest
// vectors r from primitive atom p to supercell atom s.
func (in *Input) phaseTable(dst []complex128, q [3]float64) {
	ns := in.FC3.NumAtoms()
	np := in.Primitive.NumAtoms()
	for p := 0; p < np; p++ {
		for s := 0; s < ns; s++ {
			vecs := in.Vectors.Vectors(s, p)
			var sum complex128
			for _, r := range vecs {
				sum += cmplx.Exp(complex(0, 2*math.Pi*(q[0]*r[0]+q[1]*r[1]+q[2]*r[2])))
			}
			dst[p*ns+s] = sum / complex(float64(len(vecs)), 0)
		}
	}
}

// prephases fills dst[p] with exp(2πi G·x_p), where G is the reciprocal
// lattice vector q1+q2+q3 of the triplet and x_p the primitive position.
func (in *Input) prephases(dst []complex128, addrs [3][3]int) {
	var g [3]int
	for k := 0; k < 3; k++ {
		g[k] = addrs[0][k] + addrs[1][k] + addrs[2][k]
	}
	sum := in.Mesh.Reduced(g)
	for p, x := range in.Primitive.Positions {
		dst[p] = cmplx.Exp(complex(0, 2*math.Pi*(sum[0]*x[0]+sum[1]*x[1]+sum[2]*x[2])))
	}
}

func (in *Input) addresses(tr [3]int) [3][3]int {
	return [3][3]int{in.GridAddress[tr[0]], in.GridAddress[tr[1]], in.GridAddress[tr[2]]}
}

// permutations of the three triplet positions, used to symmetrize.
var permutations = [6][3]int{{0, 1, 2}, {0, 2, 1}, {1, 0, 2}, {1, 2, 0}, {2, 0, 1}, {2, 1, 0}}

func permute(tr [3]int, p [3]int) [3]int {
	return [3]int{tr[p[0]], tr[p[1]], tr[p[2]]}
}

// squared turns an amplitude into |amp|²/(f0·f1·f2), or zero when any
// frequency is not above the cutoff.
func squared(amp complex128, f0, f1, f2, cutoff float64) float64 {
	if f0 <= cutoff || f1 <= cutoff || f2 <= cutoff {
		return 0
	}
	return (real(amp)*real(amp) + imag(amp)*imag(amp)) / (f0 * f1 * f2)
}
