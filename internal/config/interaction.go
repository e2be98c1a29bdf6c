// Package config loads the settings of a three-phonon interaction
// calculation from JSON.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/banshee-data/phonon3/internal/units"
)

// DefaultConfigPath is the path to the canonical interaction defaults file.
const DefaultConfigPath = "config/interaction.defaults.json"

// InteractionConfig is the root configuration of an interaction calculation.
// Omitted fields fall back to the defaults returned by the Get* methods.
type InteractionConfig struct {
	UsePeierlsModel      *bool    `json:"use_peierls_model,omitempty"`
	IsNoSym              *bool    `json:"is_nosym,omitempty"`
	SymmetrizeFC3Q       *bool    `json:"symmetrize_fc3_q,omitempty"`
	CutoffFrequency      *float64 `json:"cutoff_frequency,omitempty"` // THz
	EigenTriangle        *string  `json:"eigen_triangle,omitempty"`   // "L" or "U"
	FrequencyFactorToTHz *float64 `json:"frequency_factor_to_thz,omitempty"`
	Symprec              *float64 `json:"symprec,omitempty"` // Å

	// Backend selection
	Backend *string `json:"backend,omitempty"` // "fused" or "reference"
	Workers *int    `json:"workers,omitempty"` // 0 means GOMAXPROCS
}

// EmptyInteractionConfig returns an InteractionConfig with all fields nil.
func EmptyInteractionConfig() *InteractionConfig {
	return &InteractionConfig{}
}

// LoadInteractionConfig loads an InteractionConfig from a JSON file.
// The file must have a .json extension and be at most 1MB.
func LoadInteractionConfig(path string) (*InteractionConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyInteractionConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath, searching the current
// directory and its parents. Panics if the file cannot be loaded, intended
// for test setup.
func MustLoadDefaultConfig() *InteractionConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath, // from internal/config/
		"../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadInteractionConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *InteractionConfig) Validate() error {
	if c.CutoffFrequency != nil && *c.CutoffFrequency < 0 {
		return fmt.Errorf("cutoff_frequency must be non-negative, got %g", *c.CutoffFrequency)
	}
	if c.EigenTriangle != nil && *c.EigenTriangle != "L" && *c.EigenTriangle != "U" {
		return fmt.Errorf("eigen_triangle must be \"L\" or \"U\", got %q", *c.EigenTriangle)
	}
	if c.FrequencyFactorToTHz != nil && *c.FrequencyFactorToTHz <= 0 {
		return fmt.Errorf("frequency_factor_to_thz must be positive, got %g", *c.FrequencyFactorToTHz)
	}
	if c.Symprec != nil && *c.Symprec <= 0 {
		return fmt.Errorf("symprec must be positive, got %g", *c.Symprec)
	}
	if c.Backend != nil && *c.Backend != "fused" && *c.Backend != "reference" {
		return fmt.Errorf("backend must be \"fused\" or \"reference\", got %q", *c.Backend)
	}
	if c.Workers != nil && *c.Workers < 0 {
		return fmt.Errorf("workers must be non-negative, got %d", *c.Workers)
	}
	return nil
}

// GetUsePeierlsModel returns the use_peierls_model value or the default.
func (c *InteractionConfig) GetUsePeierlsModel() bool {
	if c.UsePeierlsModel == nil {
		return false
	}
	return *c.UsePeierlsModel
}

// GetIsNoSym returns the is_nosym value or the default.
func (c *InteractionConfig) GetIsNoSym() bool {
	if c.IsNoSym == nil {
		return false
	}
	return *c.IsNoSym
}

// GetSymmetrizeFC3Q returns the symmetrize_fc3_q value or the default.
func (c *InteractionConfig) GetSymmetrizeFC3Q() bool {
	if c.SymmetrizeFC3Q == nil {
		return false
	}
	return *c.SymmetrizeFC3Q
}

// GetCutoffFrequency returns the cutoff_frequency value or the default.
func (c *InteractionConfig) GetCutoffFrequency() float64 {
	if c.CutoffFrequency == nil {
		return 0
	}
	return *c.CutoffFrequency
}

// GetEigenTriangle returns the eigen_triangle value or the default.
func (c *InteractionConfig) GetEigenTriangle() string {
	if c.EigenTriangle == nil || *c.EigenTriangle == "" {
		return "L"
	}
	return *c.EigenTriangle
}

// GetFrequencyFactorToTHz returns the frequency_factor_to_thz value or the
// default, the VASP unit factor.
func (c *InteractionConfig) GetFrequencyFactorToTHz() float64 {
	if c.FrequencyFactorToTHz == nil {
		return units.VaspToTHz
	}
	return *c.FrequencyFactorToTHz
}

// GetSymprec returns the symprec value or the default.
func (c *InteractionConfig) GetSymprec() float64 {
	if c.Symprec == nil {
		return 1e-5
	}
	return *c.Symprec
}

// GetBackend returns the backend value or the default.
func (c *InteractionConfig) GetBackend() string {
	if c.Backend == nil || *c.Backend == "" {
		return "fused"
	}
	return *c.Backend
}

// GetWorkers returns the workers value or the default.
func (c *InteractionConfig) GetWorkers() int {
	if c.Workers == nil {
		return 0
	}
	return *c.Workers
}
