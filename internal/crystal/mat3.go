package crystal

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// RowTimes returns the row vector v multiplied by m.
func RowTimes(v [3]float64, m [3][3]float64) [3]float64 {
	var out [3]float64
	for j := 0; j < 3; j++ {
		out[j] = v[0]*m[0][j] + v[1]*m[1][j] + v[2]*m[2][j]
	}
	return out
}

// MatMul returns a·b.
func MatMul(a, b [3][3]float64) [3][3]float64 {
	var out [3][3]float64
	for i := 0; i < 3; i++ {
		out[i] = RowTimes(a[i], b)
	}
	return out
}

// Det returns the determinant of m.
func Det(m [3][3]float64) float64 {
	return m[0][0]*(m[1][1]*m[2][2]-m[1][2]*m[2][1]) -
		m[0][1]*(m[1][0]*m[2][2]-m[1][2]*m[2][0]) +
		m[0][2]*(m[1][0]*m[2][1]-m[1][1]*m[2][0])
}

// Inverse returns the inverse of m.
func Inverse(m [3][3]float64) ([3][3]float64, error) {
	var inv mat.Dense
	if err := inv.Inverse(denseOf(m)); err != nil {
		return [3][3]float64{}, err
	}
	return arrayOf(&inv), nil
}

// Norm returns the Euclidean length of v.
func Norm(v [3]float64) float64 {
	return math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
}

func denseOf(m [3][3]float64) *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		m[0][0], m[0][1], m[0][2],
		m[1][0], m[1][1], m[1][2],
		m[2][0], m[2][1], m[2][2],
	})
}

func arrayOf(m mat.Matrix) [3][3]float64 {
	var out [3][3]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out[i][j] = m.At(i, j)
		}
	}
	return out
}
