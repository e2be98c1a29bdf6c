package crystal_test

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/phonon3/internal/crystal"
	"github.com/banshee-data/phonon3/internal/testutil"
)

func TestCellValidate(t *testing.T) {
	good := crystal.Cell{
		Lattice:   [3][3]float64{{3, 0, 0}, {0, 3, 0}, {0, 0, 3}},
		Positions: [][3]float64{{0, 0, 0}},
		Masses:    []float64{1},
	}
	tests := []struct {
		name   string
		mutate func(c *crystal.Cell)
		ok     bool
	}{
		{"valid", func(c *crystal.Cell) {}, true},
		{"no atoms", func(c *crystal.Cell) { c.Positions = nil; c.Masses = nil }, false},
		{"mass count", func(c *crystal.Cell) { c.Masses = []float64{1, 2} }, false},
		{"type count", func(c *crystal.Cell) { c.Numbers = []int{1, 2} }, false},
		{"zero mass", func(c *crystal.Cell) { c.Masses = []float64{0} }, false},
		{"singular lattice", func(c *crystal.Cell) { c.Lattice[2] = c.Lattice[1] }, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := good
			tc.mutate(&c)
			err := c.Validate()
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, crystal.ErrInvalidCell)
			}
		})
	}
}

func TestMat3(t *testing.T) {
	m := [3][3]float64{{2, 0, 0}, {1, 3, 0}, {0, 0, 4}}
	assert.InDelta(t, 24.0, crystal.Det(m), 1e-12)

	inv, err := crystal.Inverse(m)
	require.NoError(t, err)
	id := crystal.MatMul(m, inv)
	want := [3][3]float64{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
	if diff := cmp.Diff(want, id, cmpopts.EquateApprox(0, 1e-12)); diff != "" {
		t.Errorf("m·m⁻¹ mismatch (-want +got):\n%s", diff)
	}

	_, err = crystal.Inverse([3][3]float64{{1, 2, 3}, {2, 4, 6}, {0, 0, 1}})
	assert.Error(t, err)

	assert.Equal(t, [3]float64{2, 3, 0}, crystal.RowTimes([3]float64{0, 1, 0}, [3][3]float64{{1, 0, 0}, {2, 3, 0}, {0, 0, 1}}))
	assert.InDelta(t, 5.0, crystal.Norm([3]float64{3, 4, 0}), 1e-15)
}

func TestReciprocalLattice(t *testing.T) {
	sys := testutil.CsCl(t)
	rec, err := sys.Primitive.ReciprocalLattice()
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			want := 0.0
			if i == j {
				want = 1.0 / 3
			}
			assert.InDelta(t, want, rec.At(i, j), 1e-12, "rec[%d][%d]", i, j)
		}
	}
}

func TestNewPrimitive(t *testing.T) {
	sys := testutil.CsCl(t)
	p := sys.Primitive

	assert.Equal(t, 2, p.NumAtoms())
	assert.Equal(t, 6, p.NumBands())
	assert.Equal(t, []int{0, 1}, p.P2S)
	assert.InDelta(t, 27.0, p.Volume(), 1e-9)
	if diff := cmp.Diff([][3]float64{{0, 0, 0}, {0.5, 0.5, 0.5}}, p.Positions, cmpopts.EquateApprox(0, 1e-12)); diff != "" {
		t.Errorf("primitive positions mismatch (-want +got):\n%s", diff)
	}
	for s := range sys.Supercell.Positions {
		assert.Equal(t, s%2, p.S2PIndex[s], "S2PIndex[%d]", s)
		assert.Equal(t, s%2, p.S2P[s], "S2P[%d]", s)
	}
}

func TestNewPrimitive_Mismatch(t *testing.T) {
	sys := testutil.CsCl(t)
	third := 1.0 / 3
	_, err := crystal.NewPrimitive(sys.Supercell, [3][3]float64{{third, 0, 0}, {0, third, 0}, {0, 0, third}}, testutil.Symprec)
	assert.True(t, errors.Is(err, crystal.ErrPrimitiveMismatch), "error = %v", err)
}

func TestSmallestVectors(t *testing.T) {
	sys := testutil.CsCl(t)
	sv, err := crystal.SmallestVectors(sys.Supercell, sys.Primitive, testutil.Symprec)
	require.NoError(t, err)
	require.Equal(t, 16, sv.NumSupercellAtoms())

	// Supercell atoms are ordered cell by cell with x fastest, two per cell.
	index := func(x, y, z, atom int) int { return ((z*2+y)*2+x)*2 + atom }

	tests := []struct {
		name string
		s, p int
		mult int
	}{
		{"self", index(0, 0, 0, 0), 0, 1},
		{"nearest neighbour", index(0, 0, 0, 1), 0, 1},
		{"face of supercell", index(1, 0, 0, 0), 0, 2},
		{"edge of supercell", index(1, 1, 0, 0), 0, 4},
		{"corner of supercell", index(1, 1, 1, 0), 0, 8},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.mult, sv.Multiplicity(tc.s, tc.p))
		})
	}

	for _, v := range sv.Vectors(index(1, 0, 0, 0), 0) {
		assert.InDelta(t, 1.0, math.Abs(v[0]), 1e-12)
		assert.InDelta(t, 0.0, v[1], 1e-12)
		assert.InDelta(t, 0.0, v[2], 1e-12)
	}
	nn := sv.Vectors(index(0, 0, 0, 1), 0)
	require.Len(t, nn, 1)
	if diff := cmp.Diff([3]float64{0.5, 0.5, 0.5}, nn[0], cmpopts.EquateApprox(0, 1e-12)); diff != "" {
		t.Errorf("nearest-neighbour vector mismatch (-want +got):\n%s", diff)
	}
}
