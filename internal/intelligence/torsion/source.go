package torsion

import (
	"math"

	"github.com/samber/lo"

	"github.com/molinfo-vienna/CDPKit-sub014/internal/domain/molecule"
	"github.com/molinfo-vienna/CDPKit-sub014/internal/infrastructure/monitoring/logging"
)

// DefaultAngleIncrement is the fallback grid spacing in degrees.
const DefaultAngleIncrement = 30.0

// duplicateAngle is the tolerance (degrees) within which two candidate angles
// with the same reference atoms are merged.
const duplicateAngle = 1.0

// Match is one rule mapping onto a bond. Atoms[1] and Atoms[2] are the bond
// atoms (Atoms[1] == bond begin); Atoms[0] and Atoms[3] are the reference
// atoms bonded to them.
type Match struct {
	Rule  *Rule
	Bond  int
	Atoms [4]int
}

// Angle is a candidate dihedral in degrees, defined against reference atoms
// Ref1 (bonded to the bond's begin atom) and Ref2 (bonded to its end atom).
// A reference of -1 lets the consumer choose.
type Angle struct {
	Degrees float64
	Ref1    int
	Ref2    int
}

// Options controls rule matching and angle expansion.
type Options struct {
	StopAtFirstRule     bool
	StopAtFirstCategory bool
	UniqueMappingsOnly  bool
	// SampleToleranceRanges adds angle ± Tolerance1 for every rule angle.
	SampleToleranceRanges bool
	// AngleIncrement is the fallback grid spacing in degrees.
	AngleIncrement float64
}

// DefaultOptions returns the standard matching policy.
func DefaultOptions() Options {
	return Options{
		StopAtFirstCategory: true,
		UniqueMappingsOnly:  true,
		AngleIncrement:      DefaultAngleIncrement,
	}
}

// AngleSource resolves candidate torsion angles for bonds. Libraries are
// searched in order.
type AngleSource struct {
	libs   []*Library
	opts   Options
	logger logging.Logger
}

// SourceOption configures an AngleSource.
type SourceOption func(*AngleSource)

// WithLibraries replaces the default library list.
func WithLibraries(libs ...*Library) SourceOption {
	return func(s *AngleSource) { s.libs = libs }
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) SourceOption {
	return func(s *AngleSource) { s.logger = l }
}

// NewAngleSource returns an AngleSource over the default library unless
// WithLibraries is given.
func NewAngleSource(opts Options, options ...SourceOption) *AngleSource {
	if opts.AngleIncrement <= 0 || opts.AngleIncrement > 360 {
		opts.AngleIncrement = DefaultAngleIncrement
	}
	s := &AngleSource{opts: opts, logger: logging.NewNopLogger()}
	for _, o := range options {
		o(s)
	}
	if len(s.libs) == 0 {
		s.libs = []*Library{DefaultLibrary()}
	}
	return s
}

// Options returns the matching policy.
func (s *AngleSource) Options() Options { return s.opts }

// Matches returns the rule matches for bond in depth-first library order.
func (s *AngleSource) Matches(mol *molecule.Molecule, bond int) []Match {
	mol.Perceive()
	var out []Match
	stop := false

	var search func(c *Category) bool
	search = func(c *Category) bool {
		if c.compiled != nil && !c.compiled.MatchesBond(mol, bond) {
			return false
		}
		matched := false
		for _, r := range c.Rules {
			mappings := r.compiled.MatchBond(mol, bond)
			if len(mappings) == 0 {
				continue
			}
			if s.opts.UniqueMappingsOnly {
				mappings = uniqueMappings(mol, mappings)
			}
			for _, m := range mappings {
				out = append(out, Match{Rule: r, Bond: bond, Atoms: m})
			}
			matched = true
			if s.opts.StopAtFirstRule {
				stop = true
				return true
			}
		}
		if matched && s.opts.StopAtFirstCategory {
			stop = true
			return true
		}
		for _, sub := range c.Categories {
			if search(sub) {
				matched = true
			}
			if stop {
				return matched
			}
		}
		return matched
	}

	for _, lib := range s.libs {
		for _, c := range lib.Categories {
			search(c)
			if stop {
				return out
			}
		}
	}
	return out
}

// uniqueMappings keeps the first mapping per pair of reference symmetry
// classes.
func uniqueMappings(mol *molecule.Molecule, mappings [][4]int) [][4]int {
	return lo.UniqBy(mappings, func(m [4]int) [2]int {
		return [2]int{mol.SymmetryClass(m[0]), mol.SymmetryClass(m[3])}
	})
}

// Angles returns the candidate angles for bond: rule angles in match order
// (expanded by their tolerance when enabled), or the uniform grid when no rule
// matches. fromRules reports which case applied.
func (s *AngleSource) Angles(mol *molecule.Molecule, bond int) (angles []Angle, fromRules bool) {
	matches := s.Matches(mol, bond)
	if len(matches) == 0 {
		s.logger.Debug("no torsion rule matched, using grid",
			logging.Int("bond", bond), logging.Float64("increment", s.opts.AngleIncrement))
		return GridAngles(s.opts.AngleIncrement), false
	}
	for _, m := range matches {
		for _, e := range m.Rule.Angles {
			values := []float64{e.Angle}
			if s.opts.SampleToleranceRanges && e.Tolerance1 > 0 {
				values = append(values, e.Angle-e.Tolerance1, e.Angle+e.Tolerance1)
			}
			for _, v := range values {
				angles = appendUnique(angles, Angle{Degrees: molecule.NormalizeDegrees(v), Ref1: m.Atoms[0], Ref2: m.Atoms[3]})
			}
		}
	}
	return angles, true
}

// GridAngles returns a uniform grid starting at 0°, normalised to [-180, 180).
func GridAngles(increment float64) []Angle {
	if increment <= 0 || increment > 360 {
		increment = DefaultAngleIncrement
	}
	n := int(math.Ceil(360/increment - 1e-9))
	out := make([]Angle, 0, n)
	for i := 0; i < n; i++ {
		out = appendUnique(out, Angle{Degrees: molecule.NormalizeDegrees(float64(i) * increment), Ref1: -1, Ref2: -1})
	}
	return out
}

func appendUnique(list []Angle, a Angle) []Angle {
	for _, x := range list {
		if x.Ref1 == a.Ref1 && x.Ref2 == a.Ref2 && molecule.AngularDistanceDegrees(x.Degrees, a.Degrees) < duplicateAngle {
			return list
		}
	}
	return append(list, a)
}

//Personal.AI order the ending
