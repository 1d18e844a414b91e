package molecule

import (
	"github.com/bits-and-blooms/bitset"
)

// RotorOptions controls rotatable bond perception.
type RotorOptions struct {
	// HeteroAtomHydrogens treats bonds to OH, NH and SH groups as rotatable.
	HeteroAtomHydrogens bool
}

// IsRotatableBond reports whether bond b is a torsion the sampler should drive:
// an acyclic, non-aromatic single bond whose end atoms both carry a further
// substituent and neither of which is linear.
func (m *Molecule) IsRotatableBond(b int, opts RotorOptions) bool {
	m.Perceive()
	bond := m.Bonds[b]
	if bond.Order != 1 || bond.Aromatic || bond.InRing {
		return false
	}
	return m.rotorEnd(bond.Begin, bond.End, opts) && m.rotorEnd(bond.End, bond.Begin, opts)
}

func (m *Molecule) rotorEnd(a, partner int, opts RotorOptions) bool {
	atom := m.Atoms[a]
	if atom.Hybridization == HybridSP || atom.Hybridization == HybridS {
		return false
	}
	heavy, hyd := 0, 0
	for _, nb := range m.adj[a] {
		if nb.Atom == partner {
			continue
		}
		if m.Atoms[nb.Atom].Number == 1 {
			hyd++
		} else {
			heavy++
		}
	}
	if heavy > 0 {
		return true
	}
	return opts.HeteroAtomHydrogens && hyd > 0 && (atom.Number == 7 || atom.Number == 8 || atom.Number == 16)
}

// RotatableBonds returns the mask of rotatable bonds.
func (m *Molecule) RotatableBonds(opts RotorOptions) *bitset.BitSet {
	mask := bitset.New(uint(len(m.Bonds)))
	for i := range m.Bonds {
		if m.IsRotatableBond(i, opts) {
			mask.Set(uint(i))
		}
	}
	return mask
}

// RingFlexibleBondCount returns, for the ring r, the number of non-aromatic
// single ring bonds.
func (m *Molecule) RingFlexibleBondCount(r Ring) int {
	n := 0
	for _, b := range r.Bonds {
		bond := m.Bonds[b]
		if bond.Order == 1 && !bond.Aromatic {
			n++
		}
	}
	return n
}

// MaxRingFlexibleBondCount returns the largest RingFlexibleBondCount over the
// SSSR, restricted to rings fully inside atoms when atoms is non-nil.
func (m *Molecule) MaxRingFlexibleBondCount(atoms *bitset.BitSet) int {
	best := 0
	for _, r := range m.Rings() {
		if atoms != nil && !atoms.Test(uint(r.Atoms[0])) {
			continue
		}
		if n := m.RingFlexibleBondCount(r); n > best {
			best = n
		}
	}
	return best
}

//Personal.AI order the ending
