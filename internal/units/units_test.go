package units

import (
	"math"
	"testing"
)

func TestConvertFrequency(t *testing.T) {
	tests := []struct {
		name     string
		freqTHz  float64
		unit     string
		expected float64
	}{
		{"1 THz to meV", 1.0, UnitMeV, 4.13566733},
		{"1 THz to cm-1", 1.0, UnitCm, 33.35641},
		{"1 THz to THz", 1.0, UnitTHz, 1.0},
		{"unknown unit stays THz", 2.5, "hz", 2.5},
		{"zero", 0.0, UnitMeV, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ConvertFrequency(tt.freqTHz, tt.unit)
			if math.Abs(result-tt.expected) > 1e-4 {
				t.Errorf("ConvertFrequency(%f, %s) = %f, want %f", tt.freqTHz, tt.unit, result, tt.expected)
			}
		})
	}
}

func TestIsValid(t *testing.T) {
	tests := []struct {
		name     string
		unit     string
		expected bool
	}{
		{"valid thz", UnitTHz, true},
		{"valid mev", UnitMeV, true},
		{"valid cm-1", UnitCm, true},
		{"invalid unit", "hz", false},
		{"empty string", "", false},
		{"case sensitive", "THz", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValid(tt.unit); got != tt.expected {
				t.Errorf("IsValid(%q) = %v, want %v", tt.unit, got, tt.expected)
			}
		})
	}
}

func TestVaspToTHz(t *testing.T) {
	if math.Abs(VaspToTHz-15.633302) > 1e-5 {
		t.Errorf("VaspToTHz = %f, want ~15.633302", VaspToTHz)
	}
}

func TestMeanSquareStrengthFactor(t *testing.T) {
	f1 := MeanSquareStrengthFactor(1)
	if f1 <= 0 || math.IsInf(f1, 0) || math.IsNaN(f1) {
		t.Fatalf("factor must be finite and positive, got %g", f1)
	}

	// Reference value of the closed form evaluated term by term.
	hbar := 4.13566733e-15 / (2 * math.Pi) * 1.60217733e-19
	want := math.Pow(hbar, 3) / 36 / 8 *
		math.Pow(1.60217733e-19, 2) / 1e-60 /
		math.Pow(2*math.Pi*1e12, 3) /
		math.Pow(1.6605402e-27, 3) /
		math.Pow(4.13566733e-15*1e12*1.60217733e-19, 2)
	if math.Abs(f1-want)/want > 1e-12 {
		t.Errorf("MeanSquareStrengthFactor(1) = %g, want %g", f1, want)
	}

	// Inverse in grid size.
	f8 := MeanSquareStrengthFactor(8)
	if math.Abs(f1/f8-8) > 1e-12 {
		t.Errorf("factor ratio for 1 vs 8 grid points = %g, want 8", f1/f8)
	}
}
