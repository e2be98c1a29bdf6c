// Package linalg diagonalizes the Hermitian matrices produced by the
// dynamical matrix builder.
package linalg

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"
	"sort"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/mat"
)

var (
	// ErrEigenFailed is returned when the eigen decomposition does not converge.
	ErrEigenFailed = errors.New("linalg: eigen decomposition failed")

	// ErrNonSquare is returned for non-square input.
	ErrNonSquare = errors.New("linalg: matrix is not square")

	// ErrBadTriangle is returned for a triangle other than blas.Upper or blas.Lower.
	ErrBadTriangle = errors.New("linalg: triangle must be blas.Upper or blas.Lower")
)

// HermitianSolver computes eigenpairs of complex Hermitian matrices. It embeds
// the n×n matrix H = A + iB in the real symmetric 2n×2n matrix
//
//	[ A  -B ]
//	[ B   A ]
//
// whose spectrum is that of H with every eigenvalue doubled, and recovers an
// orthonormal complex basis from the doubled eigenspaces.
type HermitianSolver struct{}

// EigenHermitian returns the eigenvalues of a in ascending order and a matrix
// whose columns are the matching orthonormal eigenvectors. Only the triangle
// selected by uplo is read; the other is taken to be its conjugate transpose.
func (HermitianSolver) EigenHermitian(a *mat.CDense, uplo blas.Uplo) ([]float64, *mat.CDense, error) {
	n, c := a.Dims()
	if n != c {
		return nil, nil, fmt.Errorf("%w: %dx%d", ErrNonSquare, n, c)
	}
	if uplo != blas.Upper && uplo != blas.Lower {
		return nil, nil, ErrBadTriangle
	}

	sym := mat.NewSymDense(2*n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j <= i; j++ {
			var h complex128
			if uplo == blas.Lower {
				h = a.At(i, j)
			} else {
				h = cmplx.Conj(a.At(j, i))
			}
			if i == j {
				h = complex(real(h), 0)
			}
			re, im := real(h), imag(h)
			// Lower triangle of the embedding; SetSym mirrors it.
			sym.SetSym(i, j, re)
			sym.SetSym(n+i, n+j, re)
			sym.SetSym(n+i, j, im)
			sym.SetSym(n+j, i, -im)
		}
	}

	var eig mat.EigenSym
	if ok := eig.Factorize(sym, true); !ok {
		return nil, nil, fmt.Errorf("%w: %dx%d Hermitian matrix", ErrEigenFailed, n, n)
	}
	values := eig.Values(nil)
	var vectors mat.Dense
	eig.VectorsTo(&vectors)

	return complexBasis(values, &vectors, n)
}

// complexBasis picks n orthonormal complex eigenvectors out of the 2n real
// eigenvectors of the embedding. Eigenvalues are grouped into degenerate
// clusters and each cluster contributes half of its real vectors, chosen by
// pivoted Gram–Schmidt in the complex inner product.
func complexBasis(values []float64, vectors *mat.Dense, n int) ([]float64, *mat.CDense, error) {
	scale := 1.0
	for _, v := range values {
		scale = math.Max(scale, math.Abs(v))
	}
	tol := 1e-9 * scale

	out := mat.NewCDense(n, n, nil)
	outValues := make([]float64, 0, n)
	accepted := make([][]complex128, 0, n)

	candidate := func(col int) []complex128 {
		z := make([]complex128, n)
		for i := 0; i < n; i++ {
			z[i] = complex(vectors.At(i, col), vectors.At(n+i, col))
		}
		return z
	}

	start := 0
	for start < len(values) && len(accepted) < n {
		end := start + 1
		for end < len(values) && values[end]-values[start] < tol {
			end++
		}
		want := (end - start + 1) / 2
		if rest := n - len(accepted); want > rest {
			want = rest
		}
		pool := make([][]complex128, 0, end-start)
		poolValues := make([]float64, 0, end-start)
		for col := start; col < end; col++ {
			pool = append(pool, candidate(col))
			poolValues = append(poolValues, values[col])
		}
		for k := 0; k < want; k++ {
			best, bestNorm := -1, 0.0
			for p, z := range pool {
				if z == nil {
					continue
				}
				orthogonalize(z, accepted)
				if nrm := norm(z); nrm > bestNorm {
					best, bestNorm = p, nrm
				}
			}
			if best < 0 || bestNorm < 1e-6 {
				return nil, nil, fmt.Errorf("%w: degenerate eigenspace of size %d lost rank", ErrEigenFailed, end-start)
			}
			z := pool[best]
			pool[best] = nil
			for i := range z {
				z[i] /= complex(bestNorm, 0)
			}
			accepted = append(accepted, z)
			outValues = append(outValues, poolValues[best])
		}
		start = end
	}
	if len(accepted) != n {
		return nil, nil, fmt.Errorf("%w: recovered %d of %d eigenvectors", ErrEigenFailed, len(accepted), n)
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return outValues[order[a]] < outValues[order[b]] })
	sorted := make([]float64, n)
	for col, k := range order {
		sorted[col] = outValues[k]
		for i := 0; i < n; i++ {
			out.Set(i, col, accepted[k][i])
		}
	}
	return sorted, out, nil
}

func orthogonalize(z []complex128, basis [][]complex128) {
	for _, u := range basis {
		var dot complex128
		for i := range u {
			dot += cmplx.Conj(u[i]) * z[i]
		}
		for i := range u {
			z[i] -= dot * u[i]
		}
	}
}

func norm(z []complex128) float64 {
	var s float64
	for _, v := range z {
		s += real(v)*real(v) + imag(v)*imag(v)
	}
	return math.Sqrt(s)
}
