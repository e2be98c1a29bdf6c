package grid

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// BZGrid is the mesh relocated into the Brillouin zone. Addresses[gp] for
// gp < NumGrid is the shortest image of grid point gp; images of equal length
// on the zone boundary are appended after the first NumGrid entries.
type BZGrid struct {
	Mesh      Mesh
	Addresses [][3]int
	// Map indexes the doubled mesh: Map[doubled index of addr] is the BZ
	// grid index holding addr, or -1.
	Map []int

	rec         *mat.Dense
	equivalents [][]int
	tolerance   float64
}

// NewBZGrid builds the Brillouin-zone grid for mesh using the reciprocal
// lattice rec, whose columns are the reciprocal basis vectors.
func NewBZGrid(mesh Mesh, rec *mat.Dense) (*BZGrid, error) {
	if err := mesh.Validate(); err != nil {
		return nil, err
	}
	n := mesh.NumGrid()
	g := &BZGrid{
		Mesh:        mesh,
		Addresses:   make([][3]int, n, n+n/2),
		Map:         make([]int, 8*n),
		rec:         rec,
		equivalents: make([][]int, n),
	}
	for i := range g.Map {
		g.Map[i] = -1
	}
	minStep := math.Inf(1)
	for k := 0; k < 3; k++ {
		b := math.Sqrt(rec.At(0, k)*rec.At(0, k) + rec.At(1, k)*rec.At(1, k) + rec.At(2, k)*rec.At(2, k))
		minStep = math.Min(minStep, b/float64(mesh[k]))
	}
	g.tolerance = 0.01 * minStep * minStep

	// Candidate shifts with the unshifted address first so that it wins ties.
	shifts := make([][3]int, 0, 27)
	shifts = append(shifts, [3]int{})
	for i := -1; i <= 1; i++ {
		for j := -1; j <= 1; j++ {
			for k := -1; k <= 1; k++ {
				if i != 0 || j != 0 || k != 0 {
					shifts = append(shifts, [3]int{i, j, k})
				}
			}
		}
	}

	var extra [][3]int
	var extraOwner []int
	for gp := 0; gp < n; gp++ {
		base := mesh.Address(gp)
		minLen := math.Inf(1)
		lengths := make([]float64, len(shifts))
		for s, sh := range shifts {
			lengths[s] = g.length2(shifted(base, sh, mesh))
			if lengths[s] < minLen {
				minLen = lengths[s]
			}
		}
		first := true
		for s, sh := range shifts {
			if lengths[s]-minLen > g.tolerance {
				continue
			}
			addr := shifted(base, sh, mesh)
			if first {
				g.Addresses[gp] = addr
				first = false
				continue
			}
			extra = append(extra, addr)
			extraOwner = append(extraOwner, gp)
		}
	}
	g.Addresses = append(g.Addresses, extra...)
	for gp := 0; gp < n; gp++ {
		g.equivalents[gp] = []int{gp}
	}
	for i, owner := range extraOwner {
		g.equivalents[owner] = append(g.equivalents[owner], n+i)
	}
	for i, addr := range g.Addresses {
		g.Map[g.doubledIndex(addr)] = i
	}
	return g, nil
}

// Len returns the number of BZ grid points, boundary duplicates included.
func (g *BZGrid) Len() int { return len(g.Addresses) }

// Index returns the BZ grid index holding exactly addr, or -1.
func (g *BZGrid) Index(addr [3]int) int { return g.Map[g.doubledIndex(addr)] }

// Equivalents returns the BZ grid indices of all images of grid point gp.
func (g *BZGrid) Equivalents(gp int) []int { return g.equivalents[gp] }

// length2 returns the squared Cartesian length of the wavevector at addr.
func (g *BZGrid) length2(addr [3]int) float64 {
	q := g.Mesh.Reduced(addr)
	var l float64
	for i := 0; i < 3; i++ {
		c := g.rec.At(i, 0)*q[0] + g.rec.At(i, 1)*q[1] + g.rec.At(i, 2)*q[2]
		l += c * c
	}
	return l
}

func (g *BZGrid) doubledIndex(addr [3]int) int {
	m := g.Mesh
	return mod(addr[0], 2*m[0]) + 2*m[0]*(mod(addr[1], 2*m[1])+2*m[1]*mod(addr[2], 2*m[2]))
}

func shifted(a, s [3]int, mesh Mesh) [3]int {
	return [3]int{a[0] + s[0]*mesh[0], a[1] + s[1]*mesh[1], a[2] + s[2]*mesh[2]}
}
