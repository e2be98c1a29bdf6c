package interaction

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/blas"

	"github.com/banshee-data/phonon3/internal/config"
	"github.com/banshee-data/phonon3/internal/units"
)

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()
	require.NoError(t, opts.Validate())
	assert.Equal(t, blas.Lower, opts.EigenTriangle)
	assert.Equal(t, units.VaspToTHz, opts.FrequencyFactorToTHz)
	assert.Equal(t, BackendFused, opts.Backend.Name())
}

func TestOptionsFromConfig(t *testing.T) {
	backend := "reference"
	triangle := "U"
	cutoff := 0.2
	peierls := true
	cfg := &config.InteractionConfig{
		Backend:         &backend,
		EigenTriangle:   &triangle,
		CutoffFrequency: &cutoff,
		UsePeierlsModel: &peierls,
	}

	opts, err := OptionsFromConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, BackendReference, opts.Backend.Name())
	assert.Equal(t, blas.Upper, opts.EigenTriangle)
	assert.Equal(t, 0.2, opts.CutoffFrequency)
	assert.True(t, opts.UsePeierlsModel)
	assert.False(t, opts.IsNoSym)

	defaults, err := OptionsFromConfig(config.MustLoadDefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, BackendFused, defaults.Backend.Name())
	assert.Equal(t, blas.Lower, defaults.EigenTriangle)
}

func TestOptionsFromConfig_Errors(t *testing.T) {
	backend := "gpu"
	_, err := OptionsFromConfig(&config.InteractionConfig{Backend: &backend})
	assert.ErrorIs(t, err, ErrConfiguration)

	factor := -1.0
	_, err = OptionsFromConfig(&config.InteractionConfig{FrequencyFactorToTHz: &factor})
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestBackendByName(t *testing.T) {
	tests := []struct {
		name    string
		want    Backend
		wantErr bool
	}{
		{"", FusedBackend{Workers: 4}, false},
		{BackendFused, FusedBackend{Workers: 4}, false},
		{BackendReference, ReferenceBackend{}, false},
		{"cuda", nil, true},
	}
	for _, tc := range tests {
		got, err := BackendByName(tc.name, 4)
		if tc.wantErr {
			assert.ErrorIs(t, err, ErrConfiguration, "name %q", tc.name)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tc.want, got)
	}
}

func TestConservationErrorMessage(t *testing.T) {
	err := &ConservationError{GridPoint: 3, Index: 1, Triplet: [3]int{3, 4, 5}, Residual: [3]int{1, 0, 0}}
	assert.Contains(t, err.Error(), "grid point 3")
	assert.Contains(t, err.Error(), "residual [1 0 0]")
	assert.ErrorIs(t, err, ErrSymmetryConsistency)
}
