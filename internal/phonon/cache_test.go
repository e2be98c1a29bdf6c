package phonon

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/phonon3/internal/grid"
	"github.com/banshee-data/phonon3/internal/linalg"
	"github.com/banshee-data/phonon3/internal/monitoring"
)

// diagonalMatrix returns diag(values(q)) and records the directions seen.
type diagonalMatrix struct {
	values func(q [3]float64) []float64
	dirs   [][]float64
}

func (d *diagonalMatrix) Matrix(q [3]float64, dir []float64) (*mat.CDense, error) {
	d.dirs = append(d.dirs, dir)
	v := d.values(q)
	m := mat.NewCDense(len(v), len(v), nil)
	for i, x := range v {
		m.Set(i, i, complex(x, 0))
	}
	return m, nil
}

// countingSolver counts calls and records the triangle it was given.
type countingSolver struct {
	calls int
	uplo  blas.Uplo
	fail  error
}

func (s *countingSolver) EigenHermitian(a *mat.CDense, uplo blas.Uplo) ([]float64, *mat.CDense, error) {
	s.calls++
	s.uplo = uplo
	if s.fail != nil {
		return nil, nil, s.fail
	}
	return linalg.HermitianSolver{}.EigenHermitian(a, uplo)
}

func addresses(mesh grid.Mesh) [][3]int {
	out := make([][3]int, mesh.NumGrid())
	for gp := range out {
		out[gp] = mesh.Address(gp)
	}
	return out
}

func TestFill_Idempotent(t *testing.T) {
	mesh := grid.Mesh{2, 2, 2}
	dm := &diagonalMatrix{values: func(q [3]float64) []float64 {
		return []float64{1 + q[0], 4 + q[1], 9 + q[2]}
	}}
	solver := &countingSolver{}
	c := NewCache(mesh.NumGrid(), 3, solver, blas.Upper, 1, nil)

	require.NoError(t, c.Fill(dm, []int{0, 1, 3}, addresses(mesh), mesh, nil))
	assert.Equal(t, 3, solver.calls)
	assert.Equal(t, blas.Upper, solver.uplo)

	freqs := append([]float64(nil), c.Frequencies(1)...)
	vecs := append([]complex128(nil), c.Eigenvectors(1)...)

	require.NoError(t, c.Fill(dm, []int{1, 3, 0, 1}, addresses(mesh), mesh, nil))
	assert.Equal(t, 3, solver.calls, "filled points must not be diagonalized again")
	assert.Equal(t, freqs, c.Frequencies(1))
	assert.Equal(t, vecs, c.Eigenvectors(1))

	require.NoError(t, c.Fill(dm, []int{2}, addresses(mesh), mesh, nil))
	assert.Equal(t, 4, solver.calls)

	for gp := 0; gp < c.Len(); gp++ {
		assert.Equal(t, gp <= 3, c.Done(gp), "grid point %d", gp)
	}
}

func TestFill_SignedFrequencies(t *testing.T) {
	mesh := grid.Mesh{1, 1, 1}
	dm := &diagonalMatrix{values: func([3]float64) []float64 { return []float64{4, -9, 0.25} }}
	c := NewCache(1, 3, linalg.HermitianSolver{}, blas.Lower, 2, nil)

	var logged []string
	original := monitoring.Logf
	t.Cleanup(func() { monitoring.Logf = original })
	monitoring.SetLogger(func(format string, v ...interface{}) {
		logged = append(logged, fmt.Sprintf(format, v...))
	})

	require.NoError(t, c.Fill(dm, []int{0}, addresses(mesh), mesh, nil))
	assert.InDeltaSlice(t, []float64{-6, 1, 4}, c.Frequencies(0), 1e-12)
	require.Len(t, logged, 1)
	assert.Contains(t, logged[0], "1 imaginary mode(s) at grid point 0")

	// Each eigenvector of a diagonal matrix is a unit vector.
	ev := c.EigenvectorMatrix(0)
	for b := 0; b < 3; b++ {
		var n float64
		for i := 0; i < 3; i++ {
			v := ev.At(i, b)
			n += real(v)*real(v) + imag(v)*imag(v)
		}
		assert.InDelta(t, 1, n, 1e-12)
	}
	assert.InDelta(t, 1, math.Abs(real(ev.At(1, 0)))+math.Abs(imag(ev.At(1, 0))), 1e-12)
}

func TestFill_NACDirectionOnlyAtGamma(t *testing.T) {
	mesh := grid.Mesh{2, 1, 1}
	dm := &diagonalMatrix{values: func([3]float64) []float64 { return []float64{1, 2, 3} }}
	c := NewCache(2, 3, linalg.HermitianSolver{}, blas.Lower, 1, nil)

	dir := []float64{0, 0, 1}
	require.NoError(t, c.Fill(dm, []int{0, 1}, addresses(mesh), mesh, dir))
	require.Len(t, dm.dirs, 2)
	assert.Equal(t, dir, dm.dirs[0])
	assert.Nil(t, dm.dirs[1])
}

func TestFill_Errors(t *testing.T) {
	mesh := grid.Mesh{2, 1, 1}
	dm := &diagonalMatrix{values: func([3]float64) []float64 { return []float64{1, 2, 3} }}

	c := NewCache(2, 3, &countingSolver{}, blas.Lower, 1, nil)
	assert.ErrorIs(t, c.Fill(dm, []int{2}, addresses(mesh), mesh, nil), ErrGridPoint)
	assert.ErrorIs(t, c.Fill(dm, []int{-1}, addresses(mesh), mesh, nil), ErrGridPoint)

	wrong := NewCache(2, 4, &countingSolver{}, blas.Lower, 1, nil)
	assert.ErrorIs(t, wrong.Fill(dm, []int{0}, addresses(mesh), mesh, nil), ErrDimension)

	failure := errors.New("no convergence")
	failing := NewCache(2, 3, &countingSolver{fail: failure}, blas.Lower, 1, nil)
	err := failing.Fill(dm, []int{0, 1}, addresses(mesh), mesh, nil)
	var derr *DiagonalizationError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, 0, derr.GridPoint)
	assert.ErrorIs(t, err, failure)
	assert.False(t, failing.Done(0))

	broken := NewCache(2, 3, &countingSolver{}, blas.Lower, 1, nil)
	bad := errors.New("singular dielectric tensor")
	err = broken.Fill(failingMatrix{err: bad}, []int{1}, addresses(mesh), mesh, nil)
	assert.ErrorIs(t, err, bad)
	assert.False(t, errors.As(err, &derr), "matrix construction failures are not diagonalization failures")
}

type failingMatrix struct{ err error }

func (f failingMatrix) Matrix([3]float64, []float64) (*mat.CDense, error) { return nil, f.err }
