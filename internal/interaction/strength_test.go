package interaction

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/floats"
)

func sampleStrength() Strength {
	s := Strength{Shape: [4]int{2, 1, 2, 2}}
	s.Data = []float64{1, 2, 3, 4, 0, 0, 0, 8}
	return s
}

func TestAveragePeierls(t *testing.T) {
	s := sampleStrength()
	averagePeierls(s)
	assert.Equal(t, []float64{2.5, 2.5, 2.5, 2.5, 2, 2, 2, 2}, s.Data)
}

func TestMeanSquare_Linear(t *testing.T) {
	s := sampleStrength()
	weights := []int{3, 5}

	base := meanSquare(s, weights, 8)
	double := Strength{Shape: s.Shape, Data: append([]float64(nil), s.Data...)}
	floats.Scale(2, double.Data)

	assert.InDelta(t, 2*base[0], meanSquare(double, weights, 8)[0], 1e-12*base[0])
	assert.InDelta(t, base[0]/2, meanSquare(s, weights, 16)[0], 1e-12*base[0])
	assert.Positive(t, base[0])
}

func TestStrengthAccessors(t *testing.T) {
	s := sampleStrength()
	assert.Equal(t, 8, s.Len())
	assert.Equal(t, 3.0, s.At(0, 0, 1, 0))
	assert.Equal(t, 8.0, s.At(1, 0, 1, 1))
	assert.Equal(t, 10.0, s.Sum(0, 0))
	assert.Equal(t, 8.0, s.Sum(1, 0))
}
