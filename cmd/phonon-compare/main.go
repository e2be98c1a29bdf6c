// Command phonon-compare runs both interaction-strength backends over every
// grid point of a model crystal and reports how closely they agree.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"math/cmplx"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/phonon3/internal/config"
	"github.com/banshee-data/phonon3/internal/dynmat"
	"github.com/banshee-data/phonon3/internal/grid"
	"github.com/banshee-data/phonon3/internal/interaction"
	"github.com/banshee-data/phonon3/internal/monitoring"
	"github.com/banshee-data/phonon3/internal/pairmodel"
	"github.com/banshee-data/phonon3/internal/units"
	"github.com/banshee-data/phonon3/internal/version"
)

// Config holds the command-line settings.
type Config struct {
	ConfigFile string
	Mesh       grid.Mesh
	Supercell  [3]int
	Lattice    float64
	Spring     float64
	Cubic      float64
	Unit       string
	OutputDir  string
	OutputJSON string
	OutputPlot string
	Verbose    bool
	Version    bool
}

// ComparisonResult is the report written to stdout and, optionally, JSON.
type ComparisonResult struct {
	Version          string        `json:"version"`
	Mesh             grid.Mesh     `json:"mesh"`
	Supercell        [3]int        `json:"supercell"`
	GridPoints       int           `json:"grid_points"`
	Triplets         int           `json:"triplets"`
	Diagonalizations int           `json:"diagonalizations"`
	MaxFrequency     float64       `json:"max_frequency"`
	FC3Asymmetry     float64       `json:"fc3_permutation_asymmetry"`
	EigenvectorError float64       `json:"eigenvector_orthonormality_error"`
	FrequencyUnit    string        `json:"frequency_unit"`
	MaxRelativeDiff  float64       `json:"max_relative_diff"`
	WorstGridPoint   int           `json:"worst_grid_point"`
	MeanSquare       []float64     `json:"mean_square_ev2"`
	PerBackend       []BackendStat `json:"per_backend"`
	DurationSecs     float64       `json:"duration_secs"`
}

// BackendStat is the accumulated cost of one backend.
type BackendStat struct {
	Name      string  `json:"name"`
	TotalSecs float64 `json:"total_secs"`
	AvgMs     float64 `json:"avg_ms"`
}

func main() {
	cfg, err := parseFlags()
	if err != nil {
		log.Fatal(err)
	}
	if cfg.Version {
		fmt.Println("phonon-compare", version.String())
		return
	}

	if cfg.OutputDir != "" {
		if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
			log.Fatalf("Failed to create output directory: %v", err)
		}
	}

	result, err := runComparison(cfg)
	if err != nil {
		log.Fatalf("Comparison failed: %v", err)
	}

	printResults(result)

	if cfg.OutputJSON != "" {
		outputPath := outputPath(cfg, cfg.OutputJSON)
		if err := exportJSON(result, outputPath); err != nil {
			log.Printf("Warning: failed to export JSON: %v", err)
		} else {
			log.Printf("Results exported to: %s", outputPath)
		}
	}
	if cfg.OutputPlot != "" {
		outputPath := outputPath(cfg, cfg.OutputPlot)
		if err := exportPlot(result, outputPath); err != nil {
			log.Printf("Warning: failed to write plot: %v", err)
		} else {
			log.Printf("Plot written to: %s", outputPath)
		}
	}
}

func outputPath(cfg Config, name string) string {
	if cfg.OutputDir == "" {
		return name
	}
	return filepath.Join(cfg.OutputDir, name)
}

func parseFlags() (Config, error) {
	cfg := Config{}
	var mesh, supercell string

	flag.StringVar(&cfg.ConfigFile, "config", "", "Interaction config JSON (defaults built in)")
	flag.StringVar(&mesh, "mesh", "2,2,2", "Sampling mesh, e.g. 4,4,4")
	flag.StringVar(&supercell, "supercell", "2,2,2", "Supercell dimensions of the model crystal")
	flag.Float64Var(&cfg.Lattice, "a", 3.0, "Lattice constant in Å")
	flag.Float64Var(&cfg.Spring, "spring", 2.0, "Pair potential V'' in eV/Å²")
	flag.Float64Var(&cfg.Cubic, "cubic", -6.0, "Pair potential V''' in eV/Å³")
	flag.StringVar(&cfg.Unit, "units", units.UnitTHz, "Frequency unit for the report: "+units.GetValidUnitsString())
	flag.StringVar(&cfg.OutputDir, "output", "", "Output directory for results")
	flag.StringVar(&cfg.OutputJSON, "json", "", "Output JSON filename (e.g., results.json)")
	flag.StringVar(&cfg.OutputPlot, "plot", "", "Output PNG filename for the per-band mean square strength")
	flag.BoolVar(&cfg.Verbose, "verbose", false, "Enable verbose logging")
	flag.BoolVar(&cfg.Version, "version", false, "Print build version and exit")
	flag.Parse()

	var err error
	if cfg.Mesh, err = parseTriple(mesh); err != nil {
		return cfg, fmt.Errorf("invalid -mesh: %w", err)
	}
	if cfg.Supercell, err = parseTriple(supercell); err != nil {
		return cfg, fmt.Errorf("invalid -supercell: %w", err)
	}
	if !units.IsValid(cfg.Unit) {
		return cfg, fmt.Errorf("invalid -units %q, want one of %s", cfg.Unit, units.GetValidUnitsString())
	}
	return cfg, nil
}

func parseTriple(s string) ([3]int, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return [3]int{}, fmt.Errorf("want three comma-separated integers, got %q", s)
	}
	var out [3]int
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return [3]int{}, err
		}
		if v <= 0 {
			return [3]int{}, fmt.Errorf("component %d must be positive, got %d", i, v)
		}
		out[i] = v
	}
	return out, nil
}

func loadConfig(path string) (*config.InteractionConfig, error) {
	if path == "" {
		return config.EmptyInteractionConfig(), nil
	}
	return config.LoadInteractionConfig(path)
}

func runComparison(cfg Config) (*ComparisonResult, error) {
	icfg, err := loadConfig(cfg.ConfigFile)
	if err != nil {
		return nil, err
	}
	opts, err := interaction.OptionsFromConfig(icfg)
	if err != nil {
		return nil, err
	}

	model := pairmodel.Model{Spring: cfg.Spring, Cubic: cfg.Cubic, Cutoff: 0.95 * cfg.Lattice}
	sys, err := pairmodel.Build(pairmodel.CsCl(cfg.Lattice, 132.905, 35.453), cfg.Supercell, model, icfg.GetSymprec())
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	metrics, err := monitoring.NewMetrics(reg)
	if err != nil {
		return nil, err
	}

	engine, err := interaction.New(sys.Supercell, sys.Primitive, cfg.Mesh, sys.Symmetry, sys.FC3, nil, opts, interaction.WithMetrics(metrics))
	if err != nil {
		return nil, err
	}
	if err := engine.SetDynamicalMatrix(sys.FC2, sys.Supercell, sys.Primitive, dynmat.Options{}); err != nil {
		return nil, err
	}

	log.Printf("Comparing backends on mesh %v (%d grid points, %d bands)", cfg.Mesh, cfg.Mesh.NumGrid(), sys.Primitive.NumBands())
	workers := icfg.GetWorkers()
	backends := []interaction.Backend{interaction.FusedBackend{Workers: workers}, interaction.ReferenceBackend{}}
	elapsed := make([]time.Duration, len(backends))

	start := time.Now()
	result := &ComparisonResult{
		Version:        version.Version,
		Mesh:           cfg.Mesh,
		Supercell:      cfg.Supercell,
		GridPoints:     cfg.Mesh.NumGrid(),
		FrequencyUnit:  cfg.Unit,
		WorstGridPoint: -1,
		MeanSquare:     make([]float64, sys.Primitive.NumBands()),
	}
	for gp := 0; gp < cfg.Mesh.NumGrid(); gp++ {
		if err := engine.SetGridPoint(gp, false); err != nil {
			return nil, err
		}
		result.Triplets += engine.TripletsAtQ().Len()

		var first []float64
		for i, b := range backends {
			t0 := time.Now()
			if err := engine.Run(b); err != nil {
				return nil, err
			}
			elapsed[i] += time.Since(t0)
			data := engine.InteractionStrength().Data
			if i == 0 {
				first = append(first, data...)
				floats.Add(result.MeanSquare, engine.MeanSquareStrength())
				continue
			}
			if d := relativeDiff(first, data); d > result.MaxRelativeDiff || result.WorstGridPoint < 0 {
				result.MaxRelativeDiff = d
				result.WorstGridPoint = gp
			}
		}
		if cfg.Verbose {
			log.Printf("grid point %d: %d triplets", gp, engine.TripletsAtQ().Len())
		}
	}
	floats.Scale(1/float64(cfg.Mesh.NumGrid()), result.MeanSquare)

	freqs, _, done := engine.Phonons()
	nb := sys.Primitive.NumBands()
	cache := engine.PhononCache()
	for gp, ok := range done {
		if ok {
			result.MaxFrequency = max(result.MaxFrequency, floats.Max(freqs[gp*nb:(gp+1)*nb]))
			result.EigenvectorError = max(result.EigenvectorError, orthonormalityError(cache.EigenvectorMatrix(gp)))
		}
	}
	result.FC3Asymmetry = sys.FC3.PermutationAsymmetry()
	result.MaxFrequency = units.ConvertFrequency(result.MaxFrequency, cfg.Unit)
	result.Diagonalizations = int(promtestutil.ToFloat64(metrics.Diagonalizations))
	result.DurationSecs = time.Since(start).Seconds()
	for i, b := range backends {
		result.PerBackend = append(result.PerBackend, BackendStat{
			Name:      b.Name(),
			TotalSecs: elapsed[i].Seconds(),
			AvgMs:     float64(elapsed[i].Milliseconds()) / float64(cfg.Mesh.NumGrid()),
		})
	}
	return result, nil
}

// relativeDiff returns max|a-b| / max|a|, or 0 when a is all zeros.
func relativeDiff(a, b []float64) float64 {
	if len(a) == 0 {
		return 0
	}
	scale := max(floats.Max(a), -floats.Min(a))
	if scale == 0 {
		return 0
	}
	return floats.Distance(a, b, math.Inf(1)) / scale
}

// orthonormalityError returns max |(VᴴV - I)ᵢⱼ| over the columns of v.
func orthonormalityError(v *mat.CDense) float64 {
	r, c := v.Dims()
	var worst float64
	for i := 0; i < c; i++ {
		for j := 0; j < c; j++ {
			var dot complex128
			for k := 0; k < r; k++ {
				dot += cmplx.Conj(v.At(k, i)) * v.At(k, j)
			}
			if i == j {
				dot--
			}
			worst = max(worst, cmplx.Abs(dot))
		}
	}
	return worst
}

func printResults(result *ComparisonResult) {
	fmt.Println("\n=== Backend Comparison Results ===")
	fmt.Printf("Mesh: %v (%d grid points)\n", result.Mesh, result.GridPoints)
	fmt.Printf("Supercell: %v\n", result.Supercell)
	fmt.Printf("Triplets: %d\n", result.Triplets)
	fmt.Printf("Diagonalizations: %d\n", result.Diagonalizations)
	fmt.Printf("Max Frequency: %.4f %s\n", result.MaxFrequency, result.FrequencyUnit)
	fmt.Printf("Processing Time: %.2fs\n", result.DurationSecs)

	fmt.Println("\n--- Per-Backend Timing ---")
	for _, s := range result.PerBackend {
		fmt.Printf("%s: %.3fs total, %.2f ms per grid point\n", s.Name, s.TotalSecs, s.AvgMs)
	}

	fmt.Println("\n--- Agreement ---")
	fmt.Printf("Max Relative Difference: %.3e (grid point %d)\n", result.MaxRelativeDiff, result.WorstGridPoint)

	fmt.Println("\n--- Input Diagnostics ---")
	fmt.Printf("FC3 Permutation Asymmetry: %.3e eV/Å³\n", result.FC3Asymmetry)
	fmt.Printf("Eigenvector Orthonormality Error: %.3e\n", result.EigenvectorError)

	fmt.Println("\n--- Mean Square Strength (eV²) ---")
	for b, v := range result.MeanSquare {
		fmt.Printf("band %d: %.6e\n", b, v)
	}
}

func exportJSON(result *ComparisonResult, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

func exportPlot(result *ComparisonResult, path string) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Mean square interaction strength, mesh %v", result.Mesh)
	p.X.Label.Text = "Band"
	p.Y.Label.Text = "eV²"

	bars, err := plotter.NewBarChart(plotter.Values(result.MeanSquare), vg.Points(20))
	if err != nil {
		return err
	}
	p.Add(bars)
	names := make([]string, len(result.MeanSquare))
	for i := range names {
		names[i] = strconv.Itoa(i)
	}
	p.NominalX(names...)
	return p.Save(8*vg.Inch, 4*vg.Inch, path)
}
