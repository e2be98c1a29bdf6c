package main

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/phonon3/internal/grid"
	"github.com/banshee-data/phonon3/internal/monitoring"
	"github.com/banshee-data/phonon3/internal/units"
	"github.com/banshee-data/phonon3/internal/version"
)

func TestParseTriple(t *testing.T) {
	tests := []struct {
		in      string
		want    [3]int
		wantErr bool
	}{
		{"2,2,2", [3]int{2, 2, 2}, false},
		{" 4, 3 ,1", [3]int{4, 3, 1}, false},
		{"2,2", [3]int{}, true},
		{"2,x,2", [3]int{}, true},
		{"2,0,2", [3]int{}, true},
	}
	for _, tc := range tests {
		got, err := parseTriple(tc.in)
		if tc.wantErr {
			assert.Error(t, err, "input %q", tc.in)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tc.want, got)
	}
}

func TestRelativeDiff(t *testing.T) {
	assert.Zero(t, relativeDiff(nil, nil))
	assert.Zero(t, relativeDiff([]float64{0, 0}, []float64{0, 0}))
	assert.InDelta(t, 0.25, relativeDiff([]float64{4, 2}, []float64{4, 3}), 1e-15)
}

func TestOrthonormalityError(t *testing.T) {
	s := complex(1/math.Sqrt2, 0)
	unitary := mat.NewCDense(2, 2, []complex128{s, s * 1i, s * 1i, s})
	assert.InDelta(t, 0, orthonormalityError(unitary), 1e-15)

	skewed := mat.NewCDense(2, 2, []complex128{1, 0.5, 0, 1})
	assert.InDelta(t, 0.5, orthonormalityError(skewed), 1e-15)
}

func TestRunComparison(t *testing.T) {
	monitoring.SetSlogger(nil)
	cfg := Config{
		Mesh:      grid.Mesh{2, 2, 2},
		Supercell: [3]int{2, 2, 2},
		Lattice:   3.0,
		Spring:    2.0,
		Cubic:     -6.0,
		Unit:      units.UnitTHz,
	}
	result, err := runComparison(cfg)
	require.NoError(t, err)

	assert.Equal(t, 8, result.GridPoints)
	assert.Equal(t, version.Version, result.Version)
	assert.Less(t, result.MaxRelativeDiff, 1e-6)
	assert.Len(t, result.MeanSquare, 6)
	assert.GreaterOrEqual(t, result.Diagonalizations, 8)
	assert.LessOrEqual(t, result.Diagonalizations, 27)
	assert.Positive(t, result.MaxFrequency)
	assert.Less(t, result.FC3Asymmetry, 1e-12)
	assert.Less(t, result.EigenvectorError, 1e-10)
	require.Len(t, result.PerBackend, 2)

	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "out.json")
	require.NoError(t, exportJSON(result, jsonPath))
	data, err := os.ReadFile(jsonPath)
	require.NoError(t, err)
	var decoded ComparisonResult
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, result.Triplets, decoded.Triplets)

	plotPath := filepath.Join(dir, "out.png")
	require.NoError(t, exportPlot(result, plotPath))
	info, err := os.Stat(plotPath)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}
