package forcefield

import (
	"math"
	"strings"

	"github.com/molinfo-vienna/CDPKit-sub014/internal/domain/molecule"
	"github.com/molinfo-vienna/CDPKit-sub014/pkg/errors"
)

// Type selects the term set.
type Type string

const (
	// TypeGeneric uses every term.
	TypeGeneric Type = "generic"
	// TypeGenericNoElectrostatics omits Coulomb terms.
	TypeGenericNoElectrostatics Type = "generic_no_estat"
)

// ParseType resolves a force field type name.
func ParseType(s string) (Type, error) {
	switch Type(strings.ToLower(strings.TrimSpace(s))) {
	case "", TypeGeneric:
		return TypeGeneric, nil
	case TypeGenericNoElectrostatics:
		return TypeGenericNoElectrostatics, nil
	}
	return "", errors.New(errors.ErrCodeForceFieldUnknownType, "unknown force field type").WithDetail(s)
}

// Config parameterises setup.
type Config struct {
	Type Type
	// Strict fails setup for atoms without dedicated parameters.
	Strict             bool
	DielectricConstant float64
	DistanceExponent   float64
}

// DefaultConfig returns the generic force field in vacuum.
func DefaultConfig() Config {
	return Config{Type: TypeGeneric, DielectricConstant: 1, DistanceExponent: 1}
}

// Parameterizer turns a molecular graph into interaction terms.
type Parameterizer interface {
	Parameterize(mol *molecule.Molecule, cfg Config) (*InteractionData, error)
}

// Generic is the default Parameterizer.
type Generic struct{}

// NewParameterizer returns the default Parameterizer.
func NewParameterizer() Parameterizer { return Generic{} }

const (
	coulombConstant = 332.0716
	scale14VdW      = 0.5
	scale14Elec     = 0.75
)

type atomParams struct {
	eps float64
}

var ljEpsilon = map[int]atomParams{
	1: {0.020}, 5: {0.100}, 6: {0.070}, 7: {0.070}, 8: {0.060}, 9: {0.060},
	14: {0.400}, 15: {0.200}, 16: {0.250}, 17: {0.270}, 34: {0.290}, 35: {0.320}, 53: {0.400},
}

// Parameterize implements Parameterizer.
func (Generic) Parameterize(mol *molecule.Molecule, cfg Config) (*InteractionData, error) {
	if err := mol.Validate(); err != nil {
		return nil, err
	}
	if cfg.DielectricConstant <= 0 {
		cfg.DielectricConstant = 1
	}
	if cfg.DistanceExponent <= 0 {
		cfg.DistanceExponent = 1
	}
	mol.Perceive()

	for i, a := range mol.Atoms {
		_, known := ljEpsilon[a.Number]
		if cfg.Strict && !known {
			return nil, errors.New(errors.ErrCodeForceFieldSetupFailed, "no parameters for atom").
				WithDetailf("atom %d (%s)", i, a.Symbol)
		}
		if cfg.Strict && mol.Degree(i) > 6 {
			return nil, errors.New(errors.ErrCodeForceFieldSetupFailed, "unsupported coordination").
				WithDetailf("atom %d has %d neighbours", i, mol.Degree(i))
		}
	}

	d := &InteractionData{DielectricConstant: cfg.DielectricConstant, DistanceExponent: cfg.DistanceExponent}
	setupStretch(mol, d)
	setupBend(mol, d)
	setupTorsion(mol, d)
	setupNonbonded(mol, d, cfg.Type != TypeGenericNoElectrostatics)
	return d, nil
}

func covalentRadius(n int) float64 {
	e, _ := molecule.ElementByNumber(n)
	return e.CovalentRadius
}

func vdwRadius(n int) float64 {
	e, _ := molecule.ElementByNumber(n)
	return e.VdWRadius
}

// ReferenceBondLength returns the ideal length of bond b.
func ReferenceBondLength(mol *molecule.Molecule, b int) float64 {
	bond := mol.Bonds[b]
	r := covalentRadius(mol.Atoms[bond.Begin].Number) + covalentRadius(mol.Atoms[bond.End].Number)
	switch {
	case bond.Aromatic:
		r -= 0.13
	case bond.Order == 2:
		r -= 0.18
	case bond.Order == 3:
		r -= 0.32
	}
	return r
}

func setupStretch(mol *molecule.Molecule, d *InteractionData) {
	for _, b := range mol.Bonds {
		k := 300.0
		switch {
		case b.Aromatic:
			k = 450
		case b.Order == 2:
			k = 600
		case b.Order == 3:
			k = 900
		}
		d.Stretch = append(d.Stretch, StretchTerm{A: b.Begin, B: b.End, R0: ReferenceBondLength(mol, b.Index), K: k})
	}
}

// ReferenceAngle returns the ideal a-center-c angle in degrees.
func ReferenceAngle(mol *molecule.Molecule, a, center, c int) float64 {
	if size := mol.SmallestRingSize(a, center, c); size == 3 || size == 4 {
		return map[int]float64{3: 60, 4: 90}[size]
	} else if size == 5 && mol.Atoms[center].Aromatic {
		return 108
	}
	switch mol.HybridizationOf(center) {
	case molecule.HybridSP:
		return 180
	case molecule.HybridSP2:
		return 120
	}
	switch mol.Atoms[center].Number {
	case 7:
		return 107
	case 8:
		return 106
	case 16:
		return 100
	}
	return 109.47
}

func setupBend(mol *molecule.Molecule, d *InteractionData) {
	const kHarmonic = 60.0
	for center := range mol.Atoms {
		nbs := mol.Neighbors(center)
		for i := 0; i < len(nbs); i++ {
			for j := i + 1; j < len(nbs); j++ {
				a, c := nbs[i].Atom, nbs[j].Atom
				theta0 := molecule.Deg2Rad(ReferenceAngle(mol, a, center, c))
				k := kHarmonic
				if s := math.Sin(theta0); s > 0.1 {
					k = kHarmonic / (s * s)
				}
				d.Bend = append(d.Bend, BendTerm{A: a, B: center, C: c, CosTheta0: math.Cos(theta0), K: k})
			}
		}
	}
}

// torsionProfile returns the barrier (split over all torsions about the bond),
// periodicity and sign for a central bond.
func torsionProfile(mol *molecule.Molecule, b molecule.Bond) (v float64, n int, sign float64) {
	hb, hc := mol.HybridizationOf(b.Begin), mol.HybridizationOf(b.End)
	switch {
	case b.Aromatic:
		return 12, 2, -1
	case b.Order == 2:
		return 24, 2, -1
	case isAmide(mol, b):
		return 16, 2, -1
	case hb == molecule.HybridSP2 && hc == molecule.HybridSP2:
		return 5, 2, -1
	case hb == molecule.HybridSP2 || hc == molecule.HybridSP2:
		return 1.0, 3, -1
	case molecule.IsHeteroatom(mol.Atoms[b.Begin].Number) || molecule.IsHeteroatom(mol.Atoms[b.End].Number):
		return 1.5, 3, 1
	}
	return 2.9, 3, 1
}

func isAmide(mol *molecule.Molecule, b molecule.Bond) bool {
	if b.Order != 1 {
		return false
	}
	check := func(c, n int) bool {
		if mol.Atoms[c].Number != 6 || mol.Atoms[n].Number != 7 {
			return false
		}
		for _, nb := range mol.Neighbors(c) {
			z := mol.Atoms[nb.Atom].Number
			if mol.Bonds[nb.Bond].Order == 2 && (z == 8 || z == 16) {
				return true
			}
		}
		return false
	}
	return check(b.Begin, b.End) || check(b.End, b.Begin)
}

func setupTorsion(mol *molecule.Molecule, d *InteractionData) {
	for _, b := range mol.Bonds {
		hb, hc := mol.HybridizationOf(b.Begin), mol.HybridizationOf(b.End)
		if hb == molecule.HybridSP || hc == molecule.HybridSP || hb == molecule.HybridS || hc == molecule.HybridS {
			continue
		}
		var as, ds []int
		for _, nb := range mol.Neighbors(b.Begin) {
			if nb.Atom != b.End {
				as = append(as, nb.Atom)
			}
		}
		for _, nb := range mol.Neighbors(b.End) {
			if nb.Atom != b.Begin {
				ds = append(ds, nb.Atom)
			}
		}
		if len(as) == 0 || len(ds) == 0 {
			continue
		}
		v, n, sign := torsionProfile(mol, b)
		var quads [][4]int
		for _, a := range as {
			for _, dd := range ds {
				if a != dd {
					quads = append(quads, [4]int{a, b.Begin, b.End, dd})
				}
			}
		}
		for _, q := range quads {
			d.Torsion = append(d.Torsion, TorsionTerm{A: q[0], B: q[1], C: q[2], D: q[3], V: v / float64(len(quads)), N: n, Sign: sign})
		}
	}
}

func setupNonbonded(mol *molecule.Molecule, d *InteractionData, electrostatics bool) {
	n := mol.AtomCount()
	for i := 0; i < n; i++ {
		ai := mol.Atoms[i]
		for j := i + 1; j < n; j++ {
			dist := mol.TopologicalDistance(i, j)
			if dist < 3 {
				continue
			}
			aj := mol.Atoms[j]
			vdwScale, elecScale := 1.0, 1.0
			if dist == 3 {
				vdwScale, elecScale = scale14VdW, scale14Elec
			}
			eps := math.Sqrt(epsilon(ai.Number)*epsilon(aj.Number)) * vdwScale
			d.VdW = append(d.VdW, VdWTerm{A: i, B: j, RMin: vdwRadius(ai.Number) + vdwRadius(aj.Number), Eps: eps})
			if electrostatics && ai.FormalCharge != 0 && aj.FormalCharge != 0 {
				qq := coulombConstant * float64(ai.FormalCharge*aj.FormalCharge) * elecScale
				d.Electrostatic = append(d.Electrostatic, ElectrostaticTerm{A: i, B: j, QQ: qq})
			}
		}
	}
}

func epsilon(z int) float64 {
	if p, ok := ljEpsilon[z]; ok {
		return p.eps
	}
	return 0.1
}

//Personal.AI order the ending
