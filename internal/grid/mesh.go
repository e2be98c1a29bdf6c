// Package grid addresses the reciprocal-space sampling mesh: grid point
// indices, the Brillouin-zone grid with boundary duplicates, and the search
// for momentum-conserving wavevector triplets.
package grid

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidMesh is returned for meshes with non-positive dimensions.
	ErrInvalidMesh = errors.New("grid: invalid mesh")

	// ErrInvalidGridPoint is returned for grid point indices outside the mesh.
	ErrInvalidGridPoint = errors.New("grid: grid point out of range")
)

// Mesh is the number of sampling points along each reciprocal lattice vector.
type Mesh [3]int

// Validate checks that every dimension is positive.
func (m Mesh) Validate() error {
	for i, n := range m {
		if n <= 0 {
			return fmt.Errorf("%w: mesh[%d]=%d in %v", ErrInvalidMesh, i, n, m)
		}
	}
	return nil
}

// NumGrid returns the number of grid points.
func (m Mesh) NumGrid() int { return m[0] * m[1] * m[2] }

// GridPoint returns the index of the grid point at addr, taking every
// component modulo the mesh. The first component runs fastest.
func (m Mesh) GridPoint(addr [3]int) int {
	return mod(addr[0], m[0]) + m[0]*(mod(addr[1], m[1])+m[1]*mod(addr[2], m[2]))
}

// Address returns the address of grid point gp with components in
// (-m/2, m/2].
func (m Mesh) Address(gp int) [3]int {
	var a [3]int
	a[0] = gp % m[0]
	a[1] = (gp / m[0]) % m[1]
	a[2] = gp / (m[0] * m[1])
	for k := 0; k < 3; k++ {
		if 2*a[k] > m[k] {
			a[k] -= m[k]
		}
	}
	return a
}

// Conserves reports whether the three addresses sum to a multiple of the
// mesh and returns the componentwise residual of that sum modulo the mesh.
func (m Mesh) Conserves(a, b, c [3]int) (bool, [3]int) {
	var r [3]int
	ok := true
	for k := 0; k < 3; k++ {
		r[k] = mod(a[k]+b[k]+c[k], m[k])
		if r[k] != 0 {
			ok = false
		}
	}
	return ok, r
}

// Reduced returns the address as a reduced wavevector addr/mesh.
func (m Mesh) Reduced(addr [3]int) [3]float64 {
	return [3]float64{
		float64(addr[0]) / float64(m[0]),
		float64(addr[1]) / float64(m[1]),
		float64(addr[2]) / float64(m[2]),
	}
}

func mod(a, n int) int {
	r := a % n
	if r < 0 {
		r += n
	}
	return r
}
