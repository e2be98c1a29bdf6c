package interaction

import (
	"fmt"

	"github.com/banshee-data/phonon3/internal/kernel"
)

// Backend names.
const (
	BackendFused     = "fused"
	BackendReference = "reference"
)

// Backend computes squared three-phonon matrix elements for every triplet
// of in into out, laid out [triplet][selected band][band][band].
type Backend interface {
	Name() string
	Compute(in *kernel.Input, out []float64) error
}

// FusedBackend contracts the real-space force constants directly, in
// parallel over triplets.
type FusedBackend struct {
	Workers int
}

// Name implements Backend.
func (FusedBackend) Name() string { return BackendFused }

// Compute implements Backend.
func (b FusedBackend) Compute(in *kernel.Input, out []float64) error {
	return kernel.Fused{Workers: b.Workers}.Run(in, out)
}

// ReferenceBackend Fourier transforms to reciprocal space per triplet and
// then projects onto the normal modes.
type ReferenceBackend struct{}

// Name implements Backend.
func (ReferenceBackend) Name() string { return BackendReference }

// Compute implements Backend.
func (ReferenceBackend) Compute(in *kernel.Input, out []float64) error {
	return kernel.Pipeline(in, out)
}

// BackendByName returns the backend registered under name.
func BackendByName(name string, workers int) (Backend, error) {
	switch name {
	case BackendFused, "":
		return FusedBackend{Workers: workers}, nil
	case BackendReference:
		return ReferenceBackend{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown backend %q (want %s or %s)", ErrConfiguration, name, BackendFused, BackendReference)
	}
}
