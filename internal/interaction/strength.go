package interaction

import (
	"gonum.org/v1/gonum/floats"

	"github.com/banshee-data/phonon3/internal/units"
)

// Strength is the interaction-strength tensor of the last Run, shaped
// [triplet][selected band][band][band]. Data aliases the engine's buffer
// and is overwritten by the next Run.
type Strength struct {
	Shape [4]int
	Data  []float64
}

// Len returns the number of elements.
func (s Strength) Len() int { return len(s.Data) }

// At returns the element at triplet t, selected band j and bands k, l.
func (s Strength) At(t, j, k, l int) float64 {
	return s.Data[((t*s.Shape[1]+j)*s.Shape[2]+k)*s.Shape[3]+l]
}

// Sum returns the sum over the last two axes at (t, j).
func (s Strength) Sum(t, j int) float64 {
	return floats.Sum(s.block(t, j))
}

func (s Strength) block(t, j int) []float64 {
	n := s.Shape[2] * s.Shape[3]
	off := (t*s.Shape[1] + j) * n
	return s.Data[off : off+n]
}

// averagePeierls replaces every (triplet, band) block by its mean. The sum
// of each block is unchanged.
func averagePeierls(s Strength) {
	for t := 0; t < s.Shape[0]; t++ {
		for j := 0; j < s.Shape[1]; j++ {
			b := s.block(t, j)
			mean := floats.Sum(b) / float64(len(b))
			for i := range b {
				b[i] = mean
			}
		}
	}
}

// meanSquare returns Σ_t w_t Σ_kl s[t,j,k,l] per selected band j, in the
// units fixed by MeanSquareStrengthFactor for nGrid points.
func meanSquare(s Strength, weights []int, nGrid int) []float64 {
	out := make([]float64, s.Shape[1])
	for t := 0; t < s.Shape[0]; t++ {
		w := float64(weights[t])
		for j := range out {
			out[j] += w * s.Sum(t, j)
		}
	}
	floats.Scale(units.MeanSquareStrengthFactor(nGrid), out)
	return out
}
