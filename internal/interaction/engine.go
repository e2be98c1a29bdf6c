// Package interaction computes three-phonon interaction strengths on a
// reciprocal-space mesh. An Engine enumerates the momentum-conserving
// triplets at a chosen grid point, fills phonons lazily and hands the
// contraction to a Backend.
//
// An Engine is not safe for concurrent use.
package interaction

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/phonon3/internal/crystal"
	"github.com/banshee-data/phonon3/internal/dynmat"
	"github.com/banshee-data/phonon3/internal/fc3"
	"github.com/banshee-data/phonon3/internal/grid"
	"github.com/banshee-data/phonon3/internal/kernel"
	"github.com/banshee-data/phonon3/internal/linalg"
	"github.com/banshee-data/phonon3/internal/monitoring"
	"github.com/banshee-data/phonon3/internal/phonon"
	"github.com/banshee-data/phonon3/internal/symmetry"
)

// SymmetryProvider supplies the point-group rotations of the primitive cell
// in lattice coordinates and the tolerance they were found with.
type SymmetryProvider interface {
	PointGroupOperations() []symmetry.Rotation
	Tolerance() float64
}

// TripletLocator finds the momentum-conserving triplets at a grid point.
type TripletLocator interface {
	TripletsAtQ(gp int, mesh grid.Mesh, rotations []symmetry.Rotation, rec *mat.Dense, storesTripletsMap bool) (*grid.Triplets, error)
	NoSymTripletsAtQ(gp int, mesh grid.Mesh, rec *mat.Dense, storesTripletsMap bool) (*grid.Triplets, error)
}

// DynamicalMatrixBuilder turns harmonic force constants into a dynamical
// matrix generator.
type DynamicalMatrixBuilder func(fc2 dynmat.ForceConstants, supercell *crystal.Cell, primitive *crystal.Primitive, opts dynmat.Options) (phonon.DynamicalMatrix, error)

// Option replaces a collaborator of the Engine.
type Option func(*Engine)

// WithLocator sets the triplet locator. The default is grid.Locator{}.
func WithLocator(l TripletLocator) Option {
	return func(e *Engine) { e.locator = l }
}

// WithEigensolver sets the Hermitian eigensolver used to fill phonons.
func WithEigensolver(s phonon.Eigensolver) Option {
	return func(e *Engine) { e.solver = s }
}

// WithMetrics records diagonalizations and runs in m.
func WithMetrics(m *monitoring.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithDynamicalMatrixBuilder sets the builder used by SetDynamicalMatrix.
func WithDynamicalMatrixBuilder(b DynamicalMatrixBuilder) Option {
	return func(e *Engine) { e.build = b }
}

func buildDynamicalMatrix(fc2 dynmat.ForceConstants, supercell *crystal.Cell, primitive *crystal.Primitive, opts dynmat.Options) (phonon.DynamicalMatrix, error) {
	return dynmat.New(fc2, supercell, primitive, opts)
}

// Engine holds the state of a three-phonon interaction calculation: the
// triplets at one grid point, the phonon cache over the whole BZ grid and
// the strength buffer of the last Run.
type Engine struct {
	id   string
	opts Options

	supercell *crystal.Cell
	primitive *crystal.Primitive
	mesh      grid.Mesh
	sym       SymmetryProvider
	fc3       *fc3.ForceConstants
	vectors   *crystal.ShortestVectors
	rec       *mat.Dense
	bz        *grid.BZGrid
	bands     []int

	locator TripletLocator
	solver  phonon.Eigensolver
	build   DynamicalMatrixBuilder
	metrics *monitoring.Metrics

	dm           phonon.DynamicalMatrix
	nacDirection []float64
	cache        *phonon.Cache

	gridPoint int
	triplets  *grid.Triplets

	// arena holds room for the largest triplet set; strength is the slice
	// of it written by the last Run.
	arena    []float64
	strength Strength
}

// New validates the inputs and allocates the BZ grid, the phonon cache and
// the strength buffer. bandIndices selects the bands at the first wavevector;
// nil selects all of them.
func New(supercell *crystal.Cell, primitive *crystal.Primitive, mesh grid.Mesh, sym SymmetryProvider, fc *fc3.ForceConstants, bandIndices []int, opts Options, with ...Option) (*Engine, error) {
	if supercell == nil || primitive == nil || sym == nil || fc == nil {
		return nil, opErrorf(opNew, fmt.Errorf("%w: supercell, primitive, symmetry and fc3 are required", ErrConfiguration))
	}
	if err := opts.Validate(); err != nil {
		return nil, opErrorf(opNew, err)
	}
	if err := mesh.Validate(); err != nil {
		return nil, opErrorf(opNew, fmt.Errorf("%w: %w", ErrConfiguration, err))
	}
	if err := supercell.Validate(); err != nil {
		return nil, opErrorf(opNew, fmt.Errorf("%w: supercell: %w", ErrConfiguration, err))
	}
	if fc.NumAtoms() != supercell.NumAtoms() {
		return nil, opErrorf(opNew, fmt.Errorf("%w: fc3 covers %d atoms, supercell has %d", ErrConfiguration, fc.NumAtoms(), supercell.NumAtoms()))
	}
	if len(primitive.S2PIndex) != supercell.NumAtoms() {
		return nil, opErrorf(opNew, fmt.Errorf("%w: primitive maps %d supercell atoms, supercell has %d", ErrConfiguration, len(primitive.S2PIndex), supercell.NumAtoms()))
	}

	nb := primitive.NumBands()
	bands, err := selectBands(bandIndices, nb)
	if err != nil {
		return nil, opErrorf(opNew, err)
	}

	rec, err := primitive.ReciprocalLattice()
	if err != nil {
		return nil, opErrorf(opNew, fmt.Errorf("%w: %w", ErrConfiguration, err))
	}
	bz, err := grid.NewBZGrid(mesh, rec)
	if err != nil {
		return nil, opErrorf(opNew, fmt.Errorf("%w: %w", ErrConfiguration, err))
	}
	vectors, err := crystal.SmallestVectors(supercell, primitive, sym.Tolerance())
	if err != nil {
		return nil, opErrorf(opNew, fmt.Errorf("%w: %w", ErrConfiguration, err))
	}

	e := &Engine{
		id:        uuid.NewString(),
		opts:      opts,
		supercell: supercell,
		primitive: primitive,
		mesh:      mesh,
		sym:       sym,
		fc3:       fc,
		vectors:   vectors,
		rec:       rec,
		bz:        bz,
		bands:     bands,
		locator:   grid.Locator{},
		solver:    linalg.HermitianSolver{},
		build:     buildDynamicalMatrix,
		gridPoint: -1,
	}
	for _, o := range with {
		o(e)
	}
	e.cache = phonon.NewCache(bz.Len(), nb, e.solver, opts.EigenTriangle, opts.FrequencyFactorToTHz, e.metrics)
	// The triplet weights sum to the number of grid points and each is at
	// least one, so no triplet set is longer than the mesh.
	e.arena = make([]float64, mesh.NumGrid()*len(bands)*nb*nb)
	e.strength = Strength{Shape: [4]int{0, len(bands), nb, nb}}

	monitoring.Logger().Debug("interaction engine created",
		"engine", e.id, "mesh", mesh, "bz_points", bz.Len(), "bands", nb, "selected_bands", len(bands))
	return e, nil
}

func selectBands(bandIndices []int, nb int) ([]int, error) {
	if bandIndices == nil {
		bands := make([]int, nb)
		for i := range bands {
			bands[i] = i
		}
		return bands, nil
	}
	if len(bandIndices) == 0 {
		return nil, fmt.Errorf("%w: empty band selection", ErrConfiguration)
	}
	for _, b := range bandIndices {
		if b < 0 || b >= nb {
			return nil, fmt.Errorf("%w: band index %d not in [0, %d)", ErrConfiguration, b, nb)
		}
	}
	return slices.Clone(bandIndices), nil
}

// SetDynamicalMatrix builds the dynamical matrix generator used by SetPhonon.
// When opts.Symprec is zero the symmetry tolerance is used.
func (e *Engine) SetDynamicalMatrix(fc2 dynmat.ForceConstants, supercell *crystal.Cell, primitive *crystal.Primitive, opts dynmat.Options) error {
	if primitive.NumBands() != e.primitive.NumBands() {
		return opErrorf(opSetDynamicalMatrix, fmt.Errorf("%w: primitive cell has %d bands, engine has %d", ErrConfiguration, primitive.NumBands(), e.primitive.NumBands()))
	}
	if opts.Symprec == 0 {
		opts.Symprec = e.sym.Tolerance()
	}
	dm, err := e.build(fc2, supercell, primitive, opts)
	if err != nil {
		return opErrorf(opSetDynamicalMatrix, fmt.Errorf("%w: %w", ErrConfiguration, err))
	}
	e.dm = dm
	return nil
}

// SetNACQDirection sets the direction of approach to the zone centre used
// for the non-analytic term. nil clears it. A zone-centre point already in
// the cache keeps its phonons.
func (e *Engine) SetNACQDirection(dir []float64) error {
	if dir == nil {
		e.nacDirection = nil
		return nil
	}
	if len(dir) != 3 {
		return opErrorf(opSetNACQDirection, fmt.Errorf("%w: direction has %d components, want 3", ErrConfiguration, len(dir)))
	}
	e.nacDirection = slices.Clone(dir)
	return nil
}

// SetGridPoint finds the triplets at grid point gp, replacing the previous
// set. Every triplet is checked for momentum conservation; a violation is
// returned as a *ConservationError. With storesTripletsMap the triplet and
// irreducible maps are kept on the result.
func (e *Engine) SetGridPoint(gp int, storesTripletsMap bool) error {
	if gp < 0 || gp >= e.mesh.NumGrid() {
		return opErrorf(opSetGridPoint, fmt.Errorf("%w: grid point %d not in [0, %d)", ErrConfiguration, gp, e.mesh.NumGrid()))
	}

	var (
		t   *grid.Triplets
		err error
	)
	if e.opts.IsNoSym {
		t, err = e.locator.NoSymTripletsAtQ(gp, e.mesh, e.rec, storesTripletsMap)
	} else {
		t, err = e.locator.TripletsAtQ(gp, e.mesh, e.sym.PointGroupOperations(), e.rec, storesTripletsMap)
	}
	if err != nil {
		return opErrorf(opSetGridPoint, fmt.Errorf("%w: %w", ErrConfiguration, err))
	}
	if err := e.checkTriplets(gp, t); err != nil {
		return opErrorf(opSetGridPoint, err)
	}

	e.gridPoint = gp
	e.triplets = t
	e.strength.Shape[0] = 0
	e.strength.Data = nil

	monitoring.Logger().Info("grid point set",
		"engine", e.id, "grid_point", gp, "triplets", t.Len(), "total_weight", t.TotalWeight())
	return nil
}

func (e *Engine) checkTriplets(gp int, t *grid.Triplets) error {
	if len(t.GridAddress) != e.bz.Len() {
		return fmt.Errorf("%w: locator grid has %d points, engine grid has %d", ErrConfiguration, len(t.GridAddress), e.bz.Len())
	}
	if len(t.Weights) != len(t.Triplets) {
		return fmt.Errorf("%w: %d weights for %d triplets", ErrConfiguration, len(t.Weights), len(t.Triplets))
	}
	if len(t.Triplets) > e.mesh.NumGrid() {
		return fmt.Errorf("%w: %d triplets exceed the %d grid points", ErrConfiguration, len(t.Triplets), e.mesh.NumGrid())
	}
	for i, tr := range t.Triplets {
		for _, p := range tr {
			if p < 0 || p >= len(t.GridAddress) {
				return fmt.Errorf("%w: triplet %d %v references grid point %d outside [0, %d)", ErrConfiguration, i, tr, p, len(t.GridAddress))
			}
		}
		addrs := [3][3]int{t.GridAddress[tr[0]], t.GridAddress[tr[1]], t.GridAddress[tr[2]]}
		if ok, residual := e.mesh.Conserves(addrs[0], addrs[1], addrs[2]); !ok {
			return &ConservationError{GridPoint: gp, Index: i, Triplet: tr, Addresses: addrs, Residual: residual}
		}
	}
	return nil
}

// SetPhonon fills the phonons at the listed BZ grid points. Points already
// filled are left untouched.
func (e *Engine) SetPhonon(gridPoints []int) error {
	if e.dm == nil {
		return opErrorf(opSetPhonon, fmt.Errorf("%w: dynamical matrix is not set", ErrNotReady))
	}
	if err := e.cache.Fill(e.dm, gridPoints, e.bz.Addresses, e.mesh, e.nacDirection); err != nil {
		var derr *phonon.DiagonalizationError
		if errors.As(err, &derr) {
			return opErrorf(opSetPhonon, fmt.Errorf("%w: %w", ErrNumerical, err))
		}
		return opErrorf(opSetPhonon, fmt.Errorf("%w: %w", ErrConfiguration, err))
	}
	return nil
}

// Run computes the interaction strength of the current triplets with b, or
// with the configured backend when b is nil. Phonons of every point the
// triplets reference are filled first.
func (e *Engine) Run(b Backend) error {
	if e.dm == nil {
		return opErrorf(opRun, fmt.Errorf("%w: dynamical matrix is not set", ErrNotReady))
	}
	if e.triplets == nil {
		return opErrorf(opRun, fmt.Errorf("%w: grid point is not set", ErrNotReady))
	}
	if b == nil {
		b = e.opts.Backend
	}
	if b == nil {
		b = FusedBackend{}
	}

	if err := e.SetPhonon(e.tripletPoints()); err != nil {
		return err
	}

	freqs, vecs, done := e.cache.Arrays()
	in := &kernel.Input{
		Triplets:        e.triplets.Triplets,
		GridAddress:     e.bz.Addresses,
		Mesh:            e.mesh,
		FC3:             e.fc3,
		Vectors:         e.vectors,
		Primitive:       e.primitive,
		Frequencies:     freqs,
		Eigenvectors:    vecs,
		Done:            done,
		BandIndices:     e.bands,
		CutoffFrequency: e.opts.CutoffFrequency,
		SymmetrizeFC3Q:  e.opts.SymmetrizeFC3Q,
	}

	start := time.Now()
	out := e.arena[:in.OutputLen()]
	clear(out)
	if err := b.Compute(in, out); err != nil {
		// The arena is cleared or partly written; drop the previous result.
		e.strength.Shape[0] = 0
		e.strength.Data = nil
		return opErrorf(opRun, fmt.Errorf("%s backend: %w", b.Name(), err))
	}
	e.strength.Shape[0] = e.triplets.Len()
	e.strength.Data = out
	if e.opts.UsePeierlsModel {
		averagePeierls(e.strength)
	}
	elapsed := time.Since(start)
	e.metrics.ObserveRun(b.Name(), elapsed)

	monitoring.Logger().Info("interaction strength computed",
		"engine", e.id, "grid_point", e.gridPoint, "backend", b.Name(),
		"triplets", e.triplets.Len(), "elapsed", elapsed)
	return nil
}

// tripletPoints returns the distinct grid points the triplets reference, in
// ascending order.
func (e *Engine) tripletPoints() []int {
	points := make([]int, 0, 3*e.triplets.Len())
	for _, tr := range e.triplets.Triplets {
		points = append(points, tr[0], tr[1], tr[2])
	}
	slices.Sort(points)
	return slices.Compact(points)
}

// MeanSquareStrength returns the weighted mean over triplets of the strength
// summed over the last two bands, one value per selected band, in eV².
// Before the first Run it is all zeros.
func (e *Engine) MeanSquareStrength() []float64 {
	if e.strength.Shape[0] == 0 {
		return make([]float64, len(e.bands))
	}
	return meanSquare(e.strength, e.triplets.Weights, e.mesh.NumGrid())
}

// InteractionStrength returns the result of the last Run. It is empty until
// Run succeeds, after SetGridPoint and after a failed Run.
func (e *Engine) InteractionStrength() Strength { return e.strength }

// TripletsAtQ returns the triplets of the current grid point, or nil before
// SetGridPoint.
func (e *Engine) TripletsAtQ() *grid.Triplets { return e.triplets }

// GridPoint returns the current grid point, or -1 before SetGridPoint.
func (e *Engine) GridPoint() int { return e.gridPoint }

// Phonons returns the cache storage: frequencies [grid][band], eigenvectors
// [grid][row][band] and completion flags. Unfilled points are zero.
func (e *Engine) Phonons() ([]float64, []complex128, []bool) { return e.cache.Arrays() }

// PhononCache returns the phonon cache.
func (e *Engine) PhononCache() *phonon.Cache { return e.cache }

// GridAddress returns the BZ grid addresses.
func (e *Engine) GridAddress() [][3]int { return e.bz.Addresses }

// BZMap returns the doubled-mesh map into GridAddress.
func (e *Engine) BZMap() []int { return e.bz.Map }

// BandIndices returns the selected bands at the first wavevector.
func (e *Engine) BandIndices() []int { return e.bands }

// Mesh returns the sampling mesh.
func (e *Engine) Mesh() grid.Mesh { return e.mesh }

// DynamicalMatrix returns the generator set by SetDynamicalMatrix, or nil.
func (e *Engine) DynamicalMatrix() phonon.DynamicalMatrix { return e.dm }

// Primitive returns the primitive cell.
func (e *Engine) Primitive() *crystal.Primitive { return e.primitive }

// FrequencyFactorToTHz returns the eigenvalue to THz conversion factor.
func (e *Engine) FrequencyFactorToTHz() float64 { return e.opts.FrequencyFactorToTHz }

// EigenTriangle returns the triangle the eigensolver reads.
func (e *Engine) EigenTriangle() blas.Uplo { return e.opts.EigenTriangle }

// IsNoSym reports whether triplets are left unreduced.
func (e *Engine) IsNoSym() bool { return e.opts.IsNoSym }

// CutoffFrequency returns the cutoff in THz.
func (e *Engine) CutoffFrequency() float64 { return e.opts.CutoffFrequency }

// Options returns the engine settings.
func (e *Engine) Options() Options { return e.opts }
