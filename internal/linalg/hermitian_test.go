package linalg

import (
	"math"
	"math/cmplx"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/mat"
)

func randomHermitian(rng *rand.Rand, n int) *mat.CDense {
	h := mat.NewCDense(n, n, nil)
	for i := 0; i < n; i++ {
		h.Set(i, i, complex(rng.NormFloat64(), 0))
		for j := 0; j < i; j++ {
			v := complex(rng.NormFloat64(), rng.NormFloat64())
			h.Set(i, j, v)
			h.Set(j, i, cmplx.Conj(v))
		}
	}
	return h
}

// checkEigen verifies ascending order, H·v = λ·v and orthonormal columns.
func checkEigen(t *testing.T, h *mat.CDense, values []float64, vectors *mat.CDense) {
	t.Helper()
	n, _ := h.Dims()
	require.Len(t, values, n)
	for i := 1; i < n; i++ {
		assert.LessOrEqual(t, values[i-1], values[i])
	}
	for b := 0; b < n; b++ {
		for i := 0; i < n; i++ {
			var hv complex128
			for j := 0; j < n; j++ {
				hv += h.At(i, j) * vectors.At(j, b)
			}
			assert.InDelta(t, 0, cmplx.Abs(hv-complex(values[b], 0)*vectors.At(i, b)), 1e-9, "band %d row %d", b, i)
		}
		for c := 0; c < n; c++ {
			var dot complex128
			for i := 0; i < n; i++ {
				dot += cmplx.Conj(vectors.At(i, b)) * vectors.At(i, c)
			}
			want := 0.0
			if b == c {
				want = 1
			}
			assert.InDelta(t, want, cmplx.Abs(dot), 1e-9, "<v%d|v%d>", b, c)
		}
	}
}

func TestEigenHermitian_Random(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for _, n := range []int{1, 2, 6, 9} {
		h := randomHermitian(rng, n)
		values, vectors, err := HermitianSolver{}.EigenHermitian(h, blas.Lower)
		require.NoError(t, err, "n=%d", n)
		checkEigen(t, h, values, vectors)
	}
}

func TestEigenHermitian_Degenerate(t *testing.T) {
	h := mat.NewCDense(3, 3, []complex128{
		2, 1i, 0,
		-1i, 2, 0,
		0, 0, 1,
	})
	values, vectors, err := HermitianSolver{}.EigenHermitian(h, blas.Upper)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{1, 1, 3}, values, 1e-12)
	checkEigen(t, h, values, vectors)

	id := mat.NewCDense(4, 4, nil)
	for i := 0; i < 4; i++ {
		id.Set(i, i, 1)
	}
	values, vectors, err = HermitianSolver{}.EigenHermitian(id, blas.Lower)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{1, 1, 1, 1}, values, 1e-12)
	checkEigen(t, id, values, vectors)
}

func TestEigenHermitian_ReadsOnlyTriangle(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	h := randomHermitian(rng, 5)

	lower := mat.NewCDense(5, 5, nil)
	upper := mat.NewCDense(5, 5, nil)
	lower.Copy(h)
	upper.Copy(h)
	for i := 0; i < 5; i++ {
		for j := 0; j < i; j++ {
			lower.Set(j, i, complex(math.NaN(), 0))
			upper.Set(i, j, 99+99i)
		}
	}

	vl, _, err := HermitianSolver{}.EigenHermitian(lower, blas.Lower)
	require.NoError(t, err)
	vu, _, err := HermitianSolver{}.EigenHermitian(upper, blas.Upper)
	require.NoError(t, err)
	want, _, err := HermitianSolver{}.EigenHermitian(h, blas.Lower)
	require.NoError(t, err)

	assert.InDeltaSlice(t, want, vl, 1e-12)
	assert.InDeltaSlice(t, want, vu, 1e-12)
}

func TestEigenHermitian_Errors(t *testing.T) {
	_, _, err := HermitianSolver{}.EigenHermitian(mat.NewCDense(2, 3, nil), blas.Lower)
	assert.ErrorIs(t, err, ErrNonSquare)

	_, _, err = HermitianSolver{}.EigenHermitian(mat.NewCDense(2, 2, nil), blas.All)
	assert.ErrorIs(t, err, ErrBadTriangle)
}
