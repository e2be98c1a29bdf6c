package interaction

import (
	"fmt"

	"gonum.org/v1/gonum/blas"

	"github.com/banshee-data/phonon3/internal/config"
	"github.com/banshee-data/phonon3/internal/units"
)

// Options are the immutable settings of an Engine.
type Options struct {
	// UsePeierlsModel replaces every (triplet, band) slice of the result by
	// its mean, keeping the slice total.
	UsePeierlsModel bool
	// IsNoSym disables the symmetry reduction of triplets.
	IsNoSym bool
	// SymmetrizeFC3Q averages the reciprocal-space force constants over the
	// six orderings of each triplet before projection.
	SymmetrizeFC3Q bool
	// CutoffFrequency in THz; modes at or below it contribute zero.
	CutoffFrequency float64
	// EigenTriangle selects which triangle of the dynamical matrix the
	// eigensolver reads.
	EigenTriangle blas.Uplo
	// FrequencyFactorToTHz converts square roots of eigenvalues to THz.
	FrequencyFactorToTHz float64
	// Backend computes the interaction strength when Run is given nil.
	Backend Backend
}

// DefaultOptions returns the settings used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		EigenTriangle:        blas.Lower,
		FrequencyFactorToTHz: units.VaspToTHz,
		Backend:              FusedBackend{},
	}
}

// Validate checks the option values.
func (o Options) Validate() error {
	if o.CutoffFrequency < 0 {
		return fmt.Errorf("%w: cutoff frequency must be non-negative, got %g", ErrConfiguration, o.CutoffFrequency)
	}
	if o.EigenTriangle != blas.Upper && o.EigenTriangle != blas.Lower {
		return fmt.Errorf("%w: eigen triangle must be upper or lower, got %q", ErrConfiguration, rune(o.EigenTriangle))
	}
	if !(o.FrequencyFactorToTHz > 0) {
		return fmt.Errorf("%w: frequency factor must be positive, got %g", ErrConfiguration, o.FrequencyFactorToTHz)
	}
	return nil
}

// OptionsFromConfig builds Options from a loaded InteractionConfig.
func OptionsFromConfig(cfg *config.InteractionConfig) (Options, error) {
	backend, err := BackendByName(cfg.GetBackend(), cfg.GetWorkers())
	if err != nil {
		return Options{}, opErrorf(opOptionsFromConfig, err)
	}
	uplo := blas.Lower
	if cfg.GetEigenTriangle() == "U" {
		uplo = blas.Upper
	}
	opts := Options{
		UsePeierlsModel:      cfg.GetUsePeierlsModel(),
		IsNoSym:              cfg.GetIsNoSym(),
		SymmetrizeFC3Q:       cfg.GetSymmetrizeFC3Q(),
		CutoffFrequency:      cfg.GetCutoffFrequency(),
		EigenTriangle:        uplo,
		FrequencyFactorToTHz: cfg.GetFrequencyFactorToTHz(),
		Backend:              backend,
	}
	if err := opts.Validate(); err != nil {
		return Options{}, opErrorf(opOptionsFromConfig, err)
	}
	return opts, nil
}
