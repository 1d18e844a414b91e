// Package molecule provides the molecular graph consumed by the conformer
// engine: atoms, bonds, adjacency, input coordinates, stereo descriptors and the
// perceived properties (rings, aromaticity, hybridisation, symmetry classes,
// rotatable bonds) that fragmentation and torsion sampling depend on.
//
// A Molecule is mutable while it is being built. Perception runs lazily on the
// first query and is invalidated by any structural change. A Molecule is not
// safe for concurrent mutation; concurrent read-only use after Perceive is fine.
package molecule

import (
	"fmt"

	"github.com/bits-and-blooms/bitset"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/molinfo-vienna/CDPKit-sub014/pkg/errors"
)

// OrderAromatic is the bond order used on input to mark an aromatic bond.
const OrderAromatic = 4

// Hybridization is the perceived orbital hybridisation of an atom.
type Hybridization int

const (
	HybridUnknown Hybridization = iota
	HybridS
	HybridSP
	HybridSP2
	HybridSP3
)

func (h Hybridization) String() string {
	switch h {
	case HybridS:
		return "s"
	case HybridSP:
		return "sp"
	case HybridSP2:
		return "sp2"
	case HybridSP3:
		return "sp3"
	default:
		return "unknown"
	}
}

// Atom is a vertex of the molecular graph.
type Atom struct {
	Index        int
	Number       int
	Symbol       string
	FormalCharge int

	// Aromatic is set from input or by aromaticity perception.
	Aromatic bool

	// Perceived.
	InRing        bool
	Hybridization Hybridization
}

// Bond is an edge of the molecular graph.
type Bond struct {
	Index    int
	Begin    int
	End      int
	Order    int
	Aromatic bool

	// Perceived.
	InRing bool
}

// Other returns the bond atom that is not atom.
func (b Bond) Other(atom int) int {
	if b.Begin == atom {
		return b.End
	}
	return b.Begin
}

// Contains reports whether atom is one of the bond's endpoints.
func (b Bond) Contains(atom int) bool {
	return b.Begin == atom || b.End == atom
}

// Neighbor is an adjacency entry: the neighbouring atom and the connecting bond.
type Neighbor struct {
	Atom int
	Bond int
}

// Molecule is the molecular graph plus optional input coordinates.
type Molecule struct {
	Name  string
	Atoms []Atom
	Bonds []Bond

	// Coords holds input coordinates; only entries set in CoordMask are valid.
	Coords    []r3.Vec
	CoordMask *bitset.BitSet

	// Has3D is true when the coordinates are three-dimensional.
	Has3D bool

	// Props carries SD data fields and other annotations.
	Props map[string]string

	AtomStereo []AtomStereo
	BondStereo []BondStereo

	adj [][]Neighbor
	per *perception
}

// New returns an empty molecule.
func New(name string) *Molecule {
	return &Molecule{
		Name:      name,
		CoordMask: bitset.New(0),
		Props:     map[string]string{},
	}
}

// AddAtom appends an atom and returns its index. Unknown symbols are accepted;
// the element number is then 0.
func (m *Molecule) AddAtom(symbol string) int {
	el, _ := LookupElement(symbol)
	idx := len(m.Atoms)
	m.Atoms = append(m.Atoms, Atom{Index: idx, Number: el.Number, Symbol: el.Symbol})
	m.adj = append(m.adj, nil)
	m.Coords = append(m.Coords, r3.Vec{})
	m.invalidate()
	return idx
}

// AddAtomAt appends an atom with a known position.
func (m *Molecule) AddAtomAt(symbol string, pos r3.Vec) int {
	idx := m.AddAtom(symbol)
	m.SetCoord(idx, pos)
	return idx
}

// SetFormalCharge sets the formal charge of atom i.
func (m *Molecule) SetFormalCharge(i, charge int) {
	m.Atoms[i].FormalCharge = charge
	m.invalidate()
}

// AddBond connects atoms a and b. Order 1-3 or OrderAromatic.
func (m *Molecule) AddBond(a, b, order int) (int, error) {
	if a < 0 || a >= len(m.Atoms) || b < 0 || b >= len(m.Atoms) {
		return -1, errors.New(errors.ErrCodeMoleculeAtomIndex, "bond atom index out of range").
			WithDetailf("bond %d-%d, %d atoms", a, b, len(m.Atoms))
	}
	if a == b {
		return -1, errors.InvalidParam("bond must join two distinct atoms").WithDetailf("atom %d", a)
	}
	if _, ok := m.BondBetween(a, b); ok {
		return -1, errors.InvalidParam("duplicate bond").WithDetailf("atoms %d-%d", a, b)
	}
	if order < 1 || order > OrderAromatic {
		return -1, errors.InvalidParam("unsupported bond order").WithDetailf("order %d", order)
	}
	idx := len(m.Bonds)
	bond := Bond{Index: idx, Begin: a, End: b, Order: order}
	if order == OrderAromatic {
		bond.Order = 1
		bond.Aromatic = true
		m.Atoms[a].Aromatic = true
		m.Atoms[b].Aromatic = true
	}
	m.Bonds = append(m.Bonds, bond)
	m.adj[a] = append(m.adj[a], Neighbor{Atom: b, Bond: idx})
	m.adj[b] = append(m.adj[b], Neighbor{Atom: a, Bond: idx})
	m.invalidate()
	return idx, nil
}

// MustAddBond is AddBond that panics on error; meant for fixtures and tests.
func (m *Molecule) MustAddBond(a, b, order int) int {
	idx, err := m.AddBond(a, b, order)
	if err != nil {
		panic(err)
	}
	return idx
}

// SetCoord records an input position for atom i.
func (m *Molecule) SetCoord(i int, p r3.Vec) {
	m.Coords[i] = p
	m.CoordMask.Set(uint(i))
	if p.Z != 0 {
		m.Has3D = true
	}
}

// AtomCount returns the number of atoms.
func (m *Molecule) AtomCount() int { return len(m.Atoms) }

// BondCount returns the number of bonds.
func (m *Molecule) BondCount() int { return len(m.Bonds) }

// Neighbors returns the adjacency list of atom i. The slice must not be modified.
func (m *Molecule) Neighbors(i int) []Neighbor { return m.adj[i] }

// Degree returns the number of explicit neighbours of atom i.
func (m *Molecule) Degree(i int) int { return len(m.adj[i]) }

// HeavyDegree returns the number of non-hydrogen neighbours of atom i.
func (m *Molecule) HeavyDegree(i int) int {
	n := 0
	for _, nb := range m.adj[i] {
		if m.Atoms[nb.Atom].Number != 1 {
			n++
		}
	}
	return n
}

// HydrogenCount returns the number of explicit hydrogen neighbours of atom i.
func (m *Molecule) HydrogenCount(i int) int {
	return m.Degree(i) - m.HeavyDegree(i)
}

// IsHydrogen reports whether atom i is a hydrogen.
func (m *Molecule) IsHydrogen(i int) bool { return m.Atoms[i].Number == 1 }

// HeavyAtoms returns the indices of all non-hydrogen atoms in ascending order.
func (m *Molecule) HeavyAtoms() []int {
	out := make([]int, 0, len(m.Atoms))
	for i := range m.Atoms {
		if m.Atoms[i].Number != 1 {
			out = append(out, i)
		}
	}
	return out
}

// BondBetween returns the bond joining a and b.
func (m *Molecule) BondBetween(a, b int) (int, bool) {
	if a < 0 || a >= len(m.adj) {
		return -1, false
	}
	for _, nb := range m.adj[a] {
		if nb.Atom == b {
			return nb.Bond, true
		}
	}
	return -1, false
}

// HasCoordinates reports whether every atom has an input position.
func (m *Molecule) HasCoordinates() bool {
	return len(m.Atoms) > 0 && m.CoordMask.Count() == uint(len(m.Atoms))
}

// HasHeavyAtomCoordinates reports whether every heavy atom has an input position.
func (m *Molecule) HasHeavyAtomCoordinates() bool {
	if len(m.Atoms) == 0 {
		return false
	}
	for i := range m.Atoms {
		if m.Atoms[i].Number != 1 && !m.CoordMask.Test(uint(i)) {
			return false
		}
	}
	return true
}

// CoordinatesCopy returns a fresh copy of the input coordinates.
func (m *Molecule) CoordinatesCopy() []r3.Vec {
	out := make([]r3.Vec, len(m.Coords))
	copy(out, m.Coords)
	return out
}

// Validate checks structural consistency.
func (m *Molecule) Validate() error {
	if len(m.Atoms) == 0 {
		return errors.New(errors.ErrCodeMoleculeEmpty, "molecule has no atoms").WithDetail(m.Name)
	}
	for i, a := range m.Atoms {
		if a.Index != i {
			return errors.Internal("atom index mismatch").WithDetailf("slot %d holds %d", i, a.Index)
		}
	}
	for i, b := range m.Bonds {
		if b.Index != i || b.Begin < 0 || b.End < 0 || b.Begin >= len(m.Atoms) || b.End >= len(m.Atoms) {
			return errors.New(errors.ErrCodeMoleculeBondIndex, "bond is inconsistent").WithDetailf("bond %d", i)
		}
	}
	return nil
}

// Clone returns a deep copy of the molecule without cached perception.
func (m *Molecule) Clone() *Molecule {
	c := &Molecule{
		Name:       m.Name,
		Atoms:      append([]Atom(nil), m.Atoms...),
		Bonds:      append([]Bond(nil), m.Bonds...),
		Coords:     append([]r3.Vec(nil), m.Coords...),
		CoordMask:  m.CoordMask.Clone(),
		Has3D:      m.Has3D,
		Props:      make(map[string]string, len(m.Props)),
		AtomStereo: append([]AtomStereo(nil), m.AtomStereo...),
		BondStereo: append([]BondStereo(nil), m.BondStereo...),
		adj:        make([][]Neighbor, len(m.adj)),
	}
	for k, v := range m.Props {
		c.Props[k] = v
	}
	for i := range m.adj {
		c.adj[i] = append([]Neighbor(nil), m.adj[i]...)
	}
	return c
}

func (m *Molecule) String() string {
	return fmt.Sprintf("Molecule(%q, %d atoms, %d bonds)", m.Name, len(m.Atoms), len(m.Bonds))
}

func (m *Molecule) invalidate() {
	m.per = nil
}

//Personal.AI order the ending
