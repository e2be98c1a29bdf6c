package grid

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/phonon3/internal/symmetry"
)

// Triplets is the result of a triplet search at a fixed first wavevector.
// Triplet entries are BZ grid indices into GridAddress.
type Triplets struct {
	Triplets [][3]int
	Weights  []int

	GridAddress [][3]int
	BZMap       []int

	// TripletsMap maps every second grid point to the grid point of its
	// representative triplet. IRMap maps every second grid point to its
	// representative under the little group alone. Both are nil unless
	// requested.
	TripletsMap []int
	IRMap       []int
}

// Len returns the number of triplets.
func (t *Triplets) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Triplets)
}

// TotalWeight returns the sum of the triplet weights.
func (t *Triplets) TotalWeight() int {
	if t == nil {
		return 0
	}
	var s int
	for _, w := range t.Weights {
		s += w
	}
	return s
}

// Locator finds the momentum-conserving triplets (q1, q2, q3) with
// q1+q2+q3 ≡ 0 on a mesh. The zero value applies time reversal.
type Locator struct {
	NoTimeReversal bool
}

// TripletsAtQ returns the triplets at grid point gp reduced by the little
// group of q1 (point-group rotations, their time-reversed partners unless
// disabled) and by the exchange of q2 and q3. The weight of a triplet is the
// number of second grid points it represents, so the weights sum to the
// number of grid points.
func (l Locator) TripletsAtQ(gp int, mesh Mesh, rotations []symmetry.Rotation, rec *mat.Dense, storesTripletsMap bool) (*Triplets, error) {
	bz, err := l.prepare(gp, mesh, rec)
	if err != nil {
		return nil, err
	}
	n := mesh.NumGrid()
	a1 := mesh.Address(gp)

	little := littleGroup(l.reciprocalRotations(rotations), a1, mesh, gp)
	irMap := make([]int, n)
	for g2 := 0; g2 < n; g2++ {
		a2 := mesh.Address(g2)
		best := g2
		for _, r := range little {
			if p := mesh.GridPoint(r.Apply(a2)); p < best {
				best = p
			}
		}
		irMap[g2] = best
	}

	tripletsMap := make([]int, n)
	for g2 := 0; g2 < n; g2++ {
		g3 := thirdPoint(mesh, a1, mesh.Address(g2))
		tripletsMap[g2] = min(irMap[g2], irMap[g3])
	}

	out := l.collect(gp, bz, tripletsMap)
	if storesTripletsMap {
		out.TripletsMap = tripletsMap
		out.IRMap = irMap
	}
	return out, nil
}

// NoSymTripletsAtQ returns every triplet at grid point gp with weight one.
func (l Locator) NoSymTripletsAtQ(gp int, mesh Mesh, rec *mat.Dense, storesTripletsMap bool) (*Triplets, error) {
	bz, err := l.prepare(gp, mesh, rec)
	if err != nil {
		return nil, err
	}
	n := mesh.NumGrid()
	identity := make([]int, n)
	for i := range identity {
		identity[i] = i
	}
	out := l.collect(gp, bz, identity)
	if storesTripletsMap {
		out.TripletsMap = identity
		out.IRMap = append([]int(nil), identity...)
	}
	return out, nil
}

func (l Locator) prepare(gp int, mesh Mesh, rec *mat.Dense) (*BZGrid, error) {
	if err := mesh.Validate(); err != nil {
		return nil, err
	}
	if gp < 0 || gp >= mesh.NumGrid() {
		return nil, fmt.Errorf("%w: %d not in [0, %d)", ErrInvalidGridPoint, gp, mesh.NumGrid())
	}
	return NewBZGrid(mesh, rec)
}

// collect turns a representative map over second grid points into BZ
// triplets with weights, in ascending order of the representative.
func (l Locator) collect(gp int, bz *BZGrid, tripletsMap []int) *Triplets {
	mesh := bz.Mesh
	weights := make(map[int]int)
	for _, r := range tripletsMap {
		weights[r]++
	}
	out := &Triplets{GridAddress: bz.Addresses, BZMap: bz.Map}
	a1 := bz.Addresses[gp]
	for g2, r := range tripletsMap {
		if g2 != r {
			continue
		}
		g3 := thirdPoint(mesh, mesh.Address(gp), mesh.Address(g2))
		b2, b3 := bz.closestPair(a1, g2, g3)
		out.Triplets = append(out.Triplets, [3]int{gp, b2, b3})
		out.Weights = append(out.Weights, weights[r])
	}
	return out
}

// closestPair picks the BZ images of g2 and g3 whose sum with a1 is the
// shortest reciprocal lattice vector.
func (g *BZGrid) closestPair(a1 [3]int, g2, g3 int) (int, int) {
	best2, best3 := g2, g3
	bestLen := math.Inf(1)
	for _, b2 := range g.Equivalents(g2) {
		for _, b3 := range g.Equivalents(g3) {
			a2, a3 := g.Addresses[b2], g.Addresses[b3]
			sum := [3]int{a1[0] + a2[0] + a3[0], a1[1] + a2[1] + a3[1], a1[2] + a2[2] + a3[2]}
			if l := g.length2(sum); l < bestLen-g.tolerance {
				bestLen = l
				best2, best3 = b2, b3
			}
		}
	}
	return best2, best3
}

func (l Locator) reciprocalRotations(rotations []symmetry.Rotation) []symmetry.Rotation {
	seen := make(map[symmetry.Rotation]bool)
	var out []symmetry.Rotation
	add := func(r symmetry.Rotation) {
		if !seen[r] {
			seen[r] = true
			out = append(out, r)
		}
	}
	for _, w := range rotations {
		r := w.Transpose()
		add(r)
		if !l.NoTimeReversal {
			add(r.Negate())
		}
	}
	if len(out) == 0 {
		add(symmetry.IdentityRotation)
	}
	return out
}

func littleGroup(rotations []symmetry.Rotation, a1 [3]int, mesh Mesh, gp int) []symmetry.Rotation {
	var out []symmetry.Rotation
	for _, r := range rotations {
		if mesh.GridPoint(r.Apply(a1)) == gp {
			out = append(out, r)
		}
	}
	return out
}

func thirdPoint(mesh Mesh, a1, a2 [3]int) int {
	return mesh.GridPoint([3]int{-a1[0] - a2[0], -a1[1] - a2[1], -a1[2] - a2[2]})
}
