package conformer

import (
	"fmt"
	"strings"
	"time"

	"github.com/molinfo-vienna/CDPKit-sub014/pkg/errors"
)

// SamplingMode selects the generation strategy.
type SamplingMode int

const (
	ModeAuto SamplingMode = iota
	ModeSystematic
	ModeStochastic
)

func (m SamplingMode) String() string {
	switch m {
	case ModeSystematic:
		return "systematic"
	case ModeStochastic:
		return "stochastic"
	default:
		return "auto"
	}
}

// ParseSamplingMode accepts "auto", "systematic" and "stochastic".
func ParseSamplingMode(s string) (SamplingMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return ModeAuto, nil
	case "systematic":
		return ModeSystematic, nil
	case "stochastic":
		return ModeStochastic, nil
	}
	return ModeAuto, errors.InvalidParam("unknown sampling mode").WithDetail(s)
}

// Defaults.
const (
	DefaultEnergyWindow               = 10.0
	DefaultMaxPoolSize                = 10000
	DefaultMaxFragmentPoolSize        = 100
	DefaultMinRMSD                    = 0.5
	DefaultMaxNumOutputConformers     = 100
	DefaultTimeout                    = 30 * time.Minute
	DefaultForceFieldType             = "generic"
	DefaultDielectricConstant         = 1.0
	DefaultDistanceExponent           = 1.0
	DefaultMacrocycleRotorBondCount   = 10
	DefaultAngleIncrement             = 30.0
	DefaultMaxFragmentCombinations    = 1000
	DefaultMaxNumSampledConformers    = 2000
	DefaultConvergenceCheckCycleSize  = 100
	DefaultConvergenceRatio           = 0.1
	DefaultMaxNumRefinementIterations = 500
	DefaultRefinementTolerance        = 0.01
	DefaultRandomSeed                 = 42
)

// Settings parameterise one generation run. They are read-only during a run.
type Settings struct {
	SamplingMode SamplingMode

	// EnergyWindow (kcal/mol) above the best energy within which conformers are kept.
	EnergyWindow float64
	// MaxPoolSize caps the orchestrator's candidate pool and every tree node pool.
	MaxPoolSize int
	// MaxFragmentPoolSize caps the conformers generated per rigid fragment.
	MaxFragmentPoolSize int
	// MinRMSD (Å) below which two output conformers count as duplicates.
	MinRMSD float64
	// MaxNumOutputConformers caps the final output; 0 means unlimited.
	MaxNumOutputConformers int
	// Timeout is the wall-clock budget; 0 disables it.
	Timeout time.Duration

	ForceFieldType                   string
	StrictForceFieldParameterization bool
	DielectricConstant               float64
	DistanceExponent                 float64

	EnumerateRings               bool
	SampleHeteroAtomHydrogens    bool
	EnumerateNitrogenInvertomers bool

	// MacrocycleRotorBondCountThreshold: rings with more flexible bonds switch
	// auto mode to stochastic sampling.
	MacrocycleRotorBondCountThreshold int

	SampleAngleToleranceRanges bool
	DefaultAngleIncrement      float64

	// MaxFragmentCombinations caps the fragment conformer combinations explored
	// by systematic sampling.
	MaxFragmentCombinations int

	// Stochastic sampling.
	MaxNumSampledConformers   int
	ConvergenceCheckCycleSize int
	ConvergenceRatio          float64

	MaxNumRefinementIterations int
	RefinementTolerance        float64

	IncludeInputCoordinates        bool
	GenerateCoordinatesFromScratch bool

	// RandomSeed seeds embedding; 0 draws a seed from the clock in stochastic mode.
	RandomSeed int64
}

// DefaultSettings returns the standard parameter set.
func DefaultSettings() Settings {
	return Settings{
		SamplingMode:                      ModeAuto,
		EnergyWindow:                      DefaultEnergyWindow,
		MaxPoolSize:                       DefaultMaxPoolSize,
		MaxFragmentPoolSize:               DefaultMaxFragmentPoolSize,
		MinRMSD:                           DefaultMinRMSD,
		MaxNumOutputConformers:            DefaultMaxNumOutputConformers,
		Timeout:                           DefaultTimeout,
		ForceFieldType:                    DefaultForceFieldType,
		DielectricConstant:                DefaultDielectricConstant,
		DistanceExponent:                  DefaultDistanceExponent,
		EnumerateRings:                    true,
		MacrocycleRotorBondCountThreshold: DefaultMacrocycleRotorBondCount,
		DefaultAngleIncrement:             DefaultAngleIncrement,
		MaxFragmentCombinations:           DefaultMaxFragmentCombinations,
		MaxNumSampledConformers:           DefaultMaxNumSampledConformers,
		ConvergenceCheckCycleSize:         DefaultConvergenceCheckCycleSize,
		ConvergenceRatio:                  DefaultConvergenceRatio,
		MaxNumRefinementIterations:        DefaultMaxNumRefinementIterations,
		RefinementTolerance:               DefaultRefinementTolerance,
		IncludeInputCoordinates:           false,
		RandomSeed:                        DefaultRandomSeed,
	}
}

// Validate checks parameter ranges.
func (s Settings) Validate() error {
	var problems []string
	if s.EnergyWindow <= 0 {
		problems = append(problems, fmt.Sprintf("energy window must be positive, got %g", s.EnergyWindow))
	}
	if s.MaxPoolSize <= 0 {
		problems = append(problems, fmt.Sprintf("max pool size must be positive, got %d", s.MaxPoolSize))
	}
	if s.MaxFragmentPoolSize <= 0 {
		problems = append(problems, fmt.Sprintf("max fragment pool size must be positive, got %d", s.MaxFragmentPoolSize))
	}
	if s.MinRMSD < 0 {
		problems = append(problems, fmt.Sprintf("min RMSD must not be negative, got %g", s.MinRMSD))
	}
	if s.MaxNumOutputConformers < 0 {
		problems = append(problems, "max output conformers must not be negative")
	}
	if s.Timeout < 0 {
		problems = append(problems, "timeout must not be negative")
	}
	if s.DielectricConstant <= 0 {
		problems = append(problems, "dielectric constant must be positive")
	}
	if s.DistanceExponent <= 0 {
		problems = append(problems, "distance exponent must be positive")
	}
	if s.MacrocycleRotorBondCountThreshold < 0 {
		problems = append(problems, "macrocycle threshold must not be negative")
	}
	if s.DefaultAngleIncrement <= 0 || s.DefaultAngleIncrement > 360 {
		problems = append(problems, fmt.Sprintf("angle increment must be in (0, 360], got %g", s.DefaultAngleIncrement))
	}
	if s.MaxFragmentCombinations <= 0 {
		problems = append(problems, "max fragment combinations must be positive")
	}
	if s.MaxNumSampledConformers < 0 {
		problems = append(problems, "max sampled conformers must not be negative")
	}
	if s.ConvergenceCheckCycleSize <= 0 {
		problems = append(problems, "convergence check cycle size must be positive")
	}
	if s.ConvergenceRatio < 0 || s.ConvergenceRatio > 1 {
		problems = append(problems, "convergence ratio must be in [0, 1]")
	}
	if s.MaxNumRefinementIterations < 0 {
		problems = append(problems, "refinement iterations must not be negative")
	}
	if s.RefinementTolerance <= 0 {
		problems = append(problems, "refinement tolerance must be positive")
	}
	if len(problems) > 0 {
		return errors.New(errors.ErrCodeConfGenSettingsInvalid, "invalid settings").
			WithDetail(strings.Join(problems, "; "))
	}
	return nil
}

//Personal.AI order the ending
