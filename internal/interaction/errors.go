package interaction

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration covers invalid construction inputs and calls made in
	// the wrong order.
	ErrConfiguration = errors.New("interaction: configuration error")

	// ErrNotReady is returned when a step runs before its prerequisites
	// (dynamical matrix, grid point) are set. It is a configuration error.
	ErrNotReady = fmt.Errorf("%w: not ready", ErrConfiguration)

	// ErrSymmetryConsistency is returned when the triplet locator produces a
	// triplet that does not conserve momentum.
	ErrSymmetryConsistency = errors.New("interaction: triplet violates momentum conservation")

	// ErrNumerical is returned when the eigensolver fails on a dynamical matrix.
	ErrNumerical = errors.New("interaction: numerical failure")
)

// Operation tags used when wrapping errors.
const (
	opNew                = "New"
	opSetDynamicalMatrix = "SetDynamicalMatrix"
	opSetGridPoint       = "SetGridPoint"
	opSetPhonon          = "SetPhonon"
	opRun                = "Run"
	opOptionsFromConfig  = "OptionsFromConfig"
	opSetNACQDirection   = "SetNACQDirection"
)

// opErrorf wraps err with an operation tag. Call only with a non-nil err.
func opErrorf(op string, err error) error {
	return fmt.Errorf("%s: %w", op, err)
}

// ConservationError reports a triplet whose grid addresses do not sum to a
// multiple of the mesh.
type ConservationError struct {
	GridPoint int
	Index     int
	Triplet   [3]int
	Addresses [3][3]int
	Residual  [3]int
}

func (e *ConservationError) Error() string {
	return fmt.Sprintf("interaction: triplet %d %v at grid point %d has addresses %v with residual %v modulo the mesh",
		e.Index, e.Triplet, e.GridPoint, e.Addresses, e.Residual)
}

func (e *ConservationError) Unwrap() error { return ErrSymmetryConsistency }
