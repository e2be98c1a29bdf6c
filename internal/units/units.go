// Package units provides the physical constants and frequency units shared by
// the phonon and interaction packages.
package units

import "math"

// Physical constants in SI units unless stated otherwise.
const (
	PlanckConstant = 4.13566733e-15 // eV s
	EV             = 1.60217733e-19 // J
	Angstrom       = 1.0e-10        // m
	THz            = 1.0e12         // /s
	AMU            = 1.6605402e-27  // kg
	SpeedOfLight   = 299792458      // m/s
)

// Derived constants.
var (
	Hbar    = PlanckConstant / (2 * math.Pi) // eV s
	THzToEv = PlanckConstant * 1e12          // eV

	// VaspToTHz converts sqrt(eV/Å²/AMU) to THz; it is the default
	// factor applied to the square roots of dynamical matrix eigenvalues.
	VaspToTHz = math.Sqrt(EV/AMU) / Angstrom / (2 * math.Pi) / 1e12
)

// Frequency unit names.
const (
	UnitTHz = "thz"
	UnitMeV = "mev"
	UnitCm  = "cm-1"
)

// ValidFrequencyUnits contains all valid frequency unit names
var ValidFrequencyUnits = []string{UnitTHz, UnitMeV, UnitCm}

// IsValid checks if the given unit is a known frequency unit
func IsValid(unit string) bool {
	for _, validUnit := range ValidFrequencyUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// GetValidUnitsString returns a comma-separated string of valid units for error messages
func GetValidUnitsString() string {
	return "thz, mev, cm-1"
}

// ConvertFrequency converts a frequency in THz to the target unit.
// Unknown units leave the value in THz.
func ConvertFrequency(freqTHz float64, targetUnit string) float64 {
	switch targetUnit {
	case UnitMeV:
		return freqTHz * THzToEv * 1000
	case UnitCm:
		return freqTHz * THz / (SpeedOfLight * 100)
	default:
		return freqTHz
	}
}

// MeanSquareStrengthFactor returns the constant that turns a
// weight-summed interaction strength (in eV²/Å⁶/AMU³/THz³ units) into
// eV², for a grid with nGrid points:
//
//	(ħ·e)³ / (36·8) · e² / Å⁶ / (2π·THz)³ / amu³ / nGrid / (THzToEv·e)²
func MeanSquareStrengthFactor(nGrid int) float64 {
	hbarJ := Hbar * EV
	f := hbarJ * hbarJ * hbarJ / 36 / 8
	f *= EV * EV / math.Pow(Angstrom, 6)
	f /= math.Pow(2*math.Pi*THz, 3)
	f /= AMU * AMU * AMU
	f /= float64(nGrid)
	e := THzToEv * EV
	return f / (e * e)
}
