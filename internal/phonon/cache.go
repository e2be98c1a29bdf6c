// Package phonon stores phonon frequencies and eigenvectors per grid point
// and fills them on demand, diagonalizing each point at most once.
package phonon

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/phonon3/internal/grid"
	"github.com/banshee-data/phonon3/internal/monitoring"
)

var (
	// ErrGridPoint is returned for grid point indices outside the cache.
	ErrGridPoint = errors.New("phonon: grid point out of range")

	// ErrDimension is returned when a matrix or eigensolver result does not
	// have the cache's band count.
	ErrDimension = errors.New("phonon: dimension mismatch")
)

// DynamicalMatrix produces the Hermitian dynamical matrix at a reduced
// wavevector.
type DynamicalMatrix interface {
	Matrix(q [3]float64, nacDirection []float64) (*mat.CDense, error)
}

// Eigensolver diagonalizes a Hermitian matrix reading the given triangle.
type Eigensolver interface {
	EigenHermitian(a *mat.CDense, uplo blas.Uplo) ([]float64, *mat.CDense, error)
}

// DiagonalizationError reports a failed eigen decomposition at a grid point.
type DiagonalizationError struct {
	GridPoint int
	Address   [3]int
	Err       error
}

func (e *DiagonalizationError) Error() string {
	return fmt.Sprintf("phonon: diagonalization at grid point %d (address %v): %v", e.GridPoint, e.Address, e.Err)
}

func (e *DiagonalizationError) Unwrap() error { return e.Err }

// Cache owns frequencies, eigenvectors and completion flags for every point
// of a BZ grid. Storage is allocated once and never resized. A Cache must not
// be filled concurrently.
type Cache struct {
	nband        int
	frequencies  []float64
	eigenvectors []complex128
	done         []bool

	solver  Eigensolver
	uplo    blas.Uplo
	factor  float64
	metrics *monitoring.Metrics
}

// NewCache allocates zeroed storage for numGrid points with numBand bands.
// factor converts the square root of an eigenvalue to THz.
func NewCache(numGrid, numBand int, solver Eigensolver, uplo blas.Uplo, factor float64, metrics *monitoring.Metrics) *Cache {
	return &Cache{
		nband:        numBand,
		frequencies:  make([]float64, numGrid*numBand),
		eigenvectors: make([]complex128, numGrid*numBand*numBand),
		done:         make([]bool, numGrid),
		solver:       solver,
		uplo:         uplo,
		factor:       factor,
		metrics:      metrics,
	}
}

// Len returns the number of grid points the cache covers.
func (c *Cache) Len() int { return len(c.done) }

// NumBands returns the number of bands per grid point.
func (c *Cache) NumBands() int { return c.nband }

// Done reports whether grid point gp has been filled.
func (c *Cache) Done(gp int) bool { return c.done[gp] }

// Frequencies returns the frequencies at gp in THz, ascending. Unstable modes
// are negative. The slice aliases the cache.
func (c *Cache) Frequencies(gp int) []float64 {
	return c.frequencies[gp*c.nband : (gp+1)*c.nband]
}

// Eigenvectors returns the row-major band×band eigenvector matrix at gp;
// column b is the eigenvector of band b. The slice aliases the cache.
func (c *Cache) Eigenvectors(gp int) []complex128 {
	n2 := c.nband * c.nband
	return c.eigenvectors[gp*n2 : (gp+1)*n2]
}

// EigenvectorMatrix wraps Eigenvectors(gp) as a matrix sharing its storage.
func (c *Cache) EigenvectorMatrix(gp int) *mat.CDense {
	return mat.NewCDense(c.nband, c.nband, c.Eigenvectors(gp))
}

// Arrays returns the backing storage: frequencies [grid][band], eigenvectors
// [grid][row][band] and the completion flags.
func (c *Cache) Arrays() ([]float64, []complex128, []bool) {
	return c.frequencies, c.eigenvectors, c.done
}

// Fill diagonalizes dm at every listed grid point that is not yet done.
// addresses are BZ grid addresses indexed by grid point; the wavevector of gp
// is addresses[gp]/mesh. nacDirection is used only at the zone centre.
// Already filled points are left untouched.
func (c *Cache) Fill(dm DynamicalMatrix, gridPoints []int, addresses [][3]int, mesh grid.Mesh, nacDirection []float64) error {
	for _, gp := range gridPoints {
		if gp < 0 || gp >= len(c.done) || gp >= len(addresses) {
			return fmt.Errorf("%w: %d not in [0, %d)", ErrGridPoint, gp, len(c.done))
		}
		if c.done[gp] {
			continue
		}
		if err := c.solve(dm, gp, addresses[gp], mesh, nacDirection); err != nil {
			return err
		}
	}
	return nil
}

func (c *Cache) solve(dm DynamicalMatrix, gp int, addr [3]int, mesh grid.Mesh, nacDirection []float64) error {
	var dir []float64
	if addr == ([3]int{}) {
		dir = nacDirection
	}
	m, err := dm.Matrix(mesh.Reduced(addr), dir)
	if err != nil {
		return fmt.Errorf("phonon: dynamical matrix at grid point %d (address %v): %w", gp, addr, err)
	}
	if r, cols := m.Dims(); r != c.nband || cols != c.nband {
		return fmt.Errorf("%w: dynamical matrix is %dx%d, want %dx%d", ErrDimension, r, cols, c.nband, c.nband)
	}
	values, vectors, err := c.solver.EigenHermitian(m, c.uplo)
	c.metrics.ObserveDiagonalization()
	if err != nil {
		return &DiagonalizationError{GridPoint: gp, Address: addr, Err: err}
	}
	if len(values) != c.nband {
		return fmt.Errorf("%w: %d eigenvalues, want %d", ErrDimension, len(values), c.nband)
	}

	freqs := c.Frequencies(gp)
	unstable := 0
	for b, v := range values {
		freqs[b] = math.Copysign(math.Sqrt(math.Abs(v)), v) * c.factor
		if v < 0 {
			unstable++
		}
	}
	if unstable > 0 {
		monitoring.Logf("phonon: %d imaginary mode(s) at grid point %d (address %v), lowest %.4f THz", unstable, gp, addr, freqs[0])
	}
	vecs := c.Eigenvectors(gp)
	for i := 0; i < c.nband; i++ {
		for b := 0; b < c.nband; b++ {
			vecs[i*c.nband+b] = vectors.At(i, b)
		}
	}
	c.done[gp] = true
	return nil
}
