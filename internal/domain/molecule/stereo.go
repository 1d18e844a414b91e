package molecule

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/molinfo-vienna/CDPKit-sub014/pkg/errors"
)

// minChiralVolume is the smallest |signed volume| (Å³) treated as a defined
// configuration when perceiving stereo from coordinates.
const minChiralVolume = 0.05

// AtomStereo fixes the configuration of a tetrahedral centre: the sign of the
// signed volume spanned by three reference neighbours around the centre.
type AtomStereo struct {
	Center int
	Refs   [3]int
	Parity int // +1 or -1
}

// Satisfied reports whether coords realise the configuration.
func (s AtomStereo) Satisfied(coords []r3.Vec) bool {
	v := SignedVolume(coords[s.Center], coords[s.Refs[0]], coords[s.Refs[1]], coords[s.Refs[2]])
	return v*float64(s.Parity) > 0
}

// Atoms returns the centre followed by the reference atoms.
func (s AtomStereo) Atoms() []int {
	return []int{s.Center, s.Refs[0], s.Refs[1], s.Refs[2]}
}

// BondStereo fixes a double bond as cis or trans with respect to one reference
// neighbour on each side (Refs[0] bonded to Begin, Refs[1] bonded to End).
type BondStereo struct {
	Bond int
	Refs [2]int
	Cis  bool
}

// Satisfied reports whether coords realise the configuration.
func (s BondStereo) Satisfied(m *Molecule, coords []r3.Vec) bool {
	b := m.Bonds[s.Bond]
	phi := Dihedral(coords[s.Refs[0]], coords[b.Begin], coords[b.End], coords[s.Refs[1]])
	return (math.Abs(phi) < math.Pi/2) == s.Cis
}

// AddAtomStereo registers a tetrahedral configuration.
func (m *Molecule) AddAtomStereo(s AtomStereo) error {
	for _, a := range s.Atoms() {
		if a < 0 || a >= len(m.Atoms) {
			return errors.New(errors.ErrCodeMoleculeAtomIndex, "stereo atom out of range").WithDetailf("atom %d", a)
		}
	}
	for _, r := range s.Refs {
		if _, ok := m.BondBetween(s.Center, r); !ok {
			return errors.InvalidParam("stereo reference is not a neighbour of the centre").
				WithDetailf("center %d, ref %d", s.Center, r)
		}
	}
	if s.Parity != 1 && s.Parity != -1 {
		return errors.InvalidParam("stereo parity must be +1 or -1")
	}
	m.AtomStereo = append(m.AtomStereo, s)
	return nil
}

// AddBondStereo registers a double-bond configuration.
func (m *Molecule) AddBondStereo(s BondStereo) error {
	if s.Bond < 0 || s.Bond >= len(m.Bonds) {
		return errors.New(errors.ErrCodeMoleculeBondIndex, "stereo bond out of range").WithDetailf("bond %d", s.Bond)
	}
	b := m.Bonds[s.Bond]
	if _, ok := m.BondBetween(b.Begin, s.Refs[0]); !ok || s.Refs[0] == b.End {
		return errors.InvalidParam("bond stereo reference must neighbour the begin atom")
	}
	if _, ok := m.BondBetween(b.End, s.Refs[1]); !ok || s.Refs[1] == b.Begin {
		return errors.InvalidParam("bond stereo reference must neighbour the end atom")
	}
	m.BondStereo = append(m.BondStereo, s)
	return nil
}

// HasStereo reports whether any configuration is specified.
func (m *Molecule) HasStereo() bool {
	return len(m.AtomStereo) > 0 || len(m.BondStereo) > 0
}

// StereoSatisfied checks every specified configuration against coords.
func (m *Molecule) StereoSatisfied(coords []r3.Vec) bool {
	for _, s := range m.AtomStereo {
		if !s.Satisfied(coords) {
			return false
		}
	}
	for _, s := range m.BondStereo {
		if !s.Satisfied(m, coords) {
			return false
		}
	}
	return true
}

// PerceiveStereoFromCoordinates replaces the stereo descriptors with those
// realised by the input 3D coordinates: tetrahedral centres with
// topologically distinct neighbours and acyclic double bonds with
// distinguishable substituents. Invertible amine nitrogens are skipped.
func (m *Molecule) PerceiveStereoFromCoordinates() error {
	if !m.Has3D || !m.HasHeavyAtomCoordinates() {
		return errors.New(errors.ErrCodeMoleculeNoCoordinates, "stereo perception needs 3D coordinates").WithDetail(m.Name)
	}
	m.Perceive()
	m.AtomStereo = nil
	m.BondStereo = nil

	for i := range m.Atoms {
		if m.Atoms[i].Hybridization != HybridSP3 || m.IsInvertibleNitrogen(i) {
			continue
		}
		nbs := m.adj[i]
		if len(nbs) < 3 || len(nbs) > 4 || !m.distinctClasses(nbs) || !m.allPositioned(i, nbs) {
			continue
		}
		s := AtomStereo{Center: i, Refs: [3]int{nbs[0].Atom, nbs[1].Atom, nbs[2].Atom}}
		v := SignedVolume(m.Coords[i], m.Coords[s.Refs[0]], m.Coords[s.Refs[1]], m.Coords[s.Refs[2]])
		if math.Abs(v) < minChiralVolume {
			continue
		}
		s.Parity = 1
		if v < 0 {
			s.Parity = -1
		}
		m.AtomStereo = append(m.AtomStereo, s)
	}

	for _, b := range m.Bonds {
		if b.Order != 2 || b.Aromatic || (b.InRing && m.SmallestRingSize(b.Begin, b.End) < 8) {
			continue
		}
		rb, okB := m.stereoRef(b.Begin, b.End)
		re, okE := m.stereoRef(b.End, b.Begin)
		if !okB || !okE || !m.allPositioned(b.Begin, []Neighbor{{Atom: rb}, {Atom: b.End}, {Atom: re}}) {
			continue
		}
		phi := Dihedral(m.Coords[rb], m.Coords[b.Begin], m.Coords[b.End], m.Coords[re])
		m.BondStereo = append(m.BondStereo, BondStereo{Bond: b.Index, Refs: [2]int{rb, re}, Cis: math.Abs(phi) < math.Pi/2})
	}
	return nil
}

func (m *Molecule) distinctClasses(nbs []Neighbor) bool {
	seen := map[int]bool{}
	for _, nb := range nbs {
		c := m.per.symClasses[nb.Atom]
		if seen[c] {
			return false
		}
		seen[c] = true
	}
	return true
}

func (m *Molecule) allPositioned(center int, nbs []Neighbor) bool {
	if !m.CoordMask.Test(uint(center)) {
		return false
	}
	for _, nb := range nbs {
		if !m.CoordMask.Test(uint(nb.Atom)) {
			return false
		}
	}
	return true
}

// stereoRef picks the reference substituent of atom a (excluding partner) for a
// double bond; ok is false when the substituents cannot be told apart.
func (m *Molecule) stereoRef(a, partner int) (int, bool) {
	var others []int
	for _, nb := range m.adj[a] {
		if nb.Atom != partner {
			others = append(others, nb.Atom)
		}
	}
	switch len(others) {
	case 1:
		return others[0], true
	case 2:
		if m.per.symClasses[others[0]] == m.per.symClasses[others[1]] {
			return -1, false
		}
		return others[0], true
	}
	return -1, false
}

//Personal.AI order the ending
