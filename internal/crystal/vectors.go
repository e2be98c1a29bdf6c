package crystal

import (
	"fmt"
	"math"
)

// ShortestVectors holds, for every supercell atom s and primitive atom i, the
// shortest vectors from P2S[i] to s under supercell periodicity, expressed in
// fractional coordinates of the primitive lattice. Equally short images are
// all kept; their count is the multiplicity.
type ShortestVectors struct {
	vectors [][][][3]float64
}

// Vectors returns the shortest vectors from primitive atom p to supercell atom s.
func (sv *ShortestVectors) Vectors(s, p int) [][3]float64 { return sv.vectors[s][p] }

// Multiplicity returns the number of equally short vectors from p to s.
func (sv *ShortestVectors) Multiplicity(s, p int) int { return len(sv.vectors[s][p]) }

// NumSupercellAtoms returns the number of supercell atoms covered.
func (sv *ShortestVectors) NumSupercellAtoms() int { return len(sv.vectors) }

// SmallestVectors computes the shortest supercell-periodic vectors between
// every primitive atom and every supercell atom. Images whose lengths differ
// from the minimum by less than symprec (Å) are treated as equivalent.
func SmallestVectors(supercell *Cell, primitive *Primitive, symprec float64) (*ShortestVectors, error) {
	inv, err := Inverse(primitive.Lattice)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCell, err)
	}
	ns := supercell.NumAtoms()
	np := primitive.NumAtoms()
	sv := &ShortestVectors{vectors: make([][][][3]float64, ns)}

	type image struct {
		cart   [3]float64
		length float64
	}
	images := make([]image, 0, 27)
	for s := 0; s < ns; s++ {
		sv.vectors[s] = make([][][3]float64, np)
		for p := 0; p < np; p++ {
			var d [3]float64
			for k := 0; k < 3; k++ {
				d[k] = supercell.Positions[s][k] - supercell.Positions[primitive.P2S[p]][k]
				d[k] -= math.Round(d[k])
			}
			images = images[:0]
			minLen := math.Inf(1)
			for i := -1; i <= 1; i++ {
				for j := -1; j <= 1; j++ {
					for k := -1; k <= 1; k++ {
						shifted := [3]float64{d[0] + float64(i), d[1] + float64(j), d[2] + float64(k)}
						cart := supercell.Cartesian(shifted)
						l := Norm(cart)
						images = append(images, image{cart: cart, length: l})
						if l < minLen {
							minLen = l
						}
					}
				}
			}
			for _, im := range images {
				if im.length-minLen < symprec {
					sv.vectors[s][p] = append(sv.vectors[s][p], RowTimes(im.cart, inv))
				}
			}
		}
	}
	return sv, nil
}
