package molecule

import (
	"sort"

	"github.com/bits-and-blooms/bitset"
)

// Fragment is a read-only view of an atom subset of a molecule together with
// the bonds induced by it. Atom and bond indices stay in the molecule's space.
type Fragment struct {
	Mol   *Molecule
	Atoms []int
	Bonds []int

	atomMask *bitset.BitSet
	bondMask *bitset.BitSet
}

// WholeFragment returns a view of the entire molecule.
func (m *Molecule) WholeFragment() Fragment {
	atoms := make([]int, len(m.Atoms))
	for i := range atoms {
		atoms[i] = i
	}
	return m.FragmentOf(atoms)
}

// FragmentOf returns the induced view of atoms (order is normalised).
func (m *Molecule) FragmentOf(atoms []int) Fragment {
	sorted := append([]int(nil), atoms...)
	sort.Ints(sorted)
	am := bitset.New(uint(len(m.Atoms)))
	for _, a := range sorted {
		am.Set(uint(a))
	}
	bm := bitset.New(uint(len(m.Bonds)))
	var bonds []int
	for _, b := range m.Bonds {
		if am.Test(uint(b.Begin)) && am.Test(uint(b.End)) {
			bm.Set(uint(b.Index))
			bonds = append(bonds, b.Index)
		}
	}
	return Fragment{Mol: m, Atoms: sorted, Bonds: bonds, atomMask: am, bondMask: bm}
}

// AtomMask returns the fragment's atom set over the molecule's atom space.
func (f Fragment) AtomMask() *bitset.BitSet { return f.atomMask }

// BondMask returns the fragment's bond set over the molecule's bond space.
func (f Fragment) BondMask() *bitset.BitSet { return f.bondMask }

// ContainsAtom reports whether atom belongs to the fragment.
func (f Fragment) ContainsAtom(atom int) bool { return f.atomMask.Test(uint(atom)) }

// ContainsBond reports whether bond belongs to the fragment.
func (f Fragment) ContainsBond(bond int) bool { return f.bondMask.Test(uint(bond)) }

// SplitByBondMask returns the connected pieces of the fragment after removing
// the bonds in split. Pieces are ordered by their smallest atom index and each
// piece lists its atoms in ascending order.
func (f Fragment) SplitByBondMask(split *bitset.BitSet) [][]int {
	m := f.Mol
	seen := bitset.New(uint(len(m.Atoms)))
	var pieces [][]int
	for _, s := range f.Atoms {
		if seen.Test(uint(s)) {
			continue
		}
		seen.Set(uint(s))
		piece := []int{s}
		stack := []int{s}
		for len(stack) > 0 {
			u := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			for _, nb := range m.adj[u] {
				if !f.bondMask.Test(uint(nb.Bond)) || (split != nil && split.Test(uint(nb.Bond))) {
					continue
				}
				if seen.Test(uint(nb.Atom)) {
					continue
				}
				seen.Set(uint(nb.Atom))
				piece = append(piece, nb.Atom)
				stack = append(stack, nb.Atom)
			}
		}
		sort.Ints(piece)
		pieces = append(pieces, piece)
	}
	return pieces
}

// Components returns the connected components of the molecule.
func (m *Molecule) Components() [][]int {
	return m.WholeFragment().SplitByBondMask(nil)
}

// Extract copies the induced subgraph of atoms into a new molecule. The
// returned slice maps new atom indices to the original ones. Coordinates and
// stereo descriptors fully contained in the subset are carried over.
func (m *Molecule) Extract(atoms []int) (*Molecule, []int) {
	sorted := append([]int(nil), atoms...)
	sort.Ints(sorted)
	index := make(map[int]int, len(sorted))
	sub := New(m.Name)
	sub.Has3D = m.Has3D
	for _, a := range sorted {
		atom := m.Atoms[a]
		i := sub.AddAtom(atom.Symbol)
		sub.Atoms[i].Number = atom.Number
		sub.Atoms[i].FormalCharge = atom.FormalCharge
		sub.Atoms[i].Aromatic = atom.Aromatic
		if m.CoordMask.Test(uint(a)) {
			sub.Coords[i] = m.Coords[a]
			sub.CoordMask.Set(uint(i))
		}
		index[a] = i
	}
	for _, b := range m.Bonds {
		nb, okB := index[b.Begin]
		ne, okE := index[b.End]
		if !okB || !okE {
			continue
		}
		order := b.Order
		if b.Aromatic {
			order = OrderAromatic
		}
		sub.MustAddBond(nb, ne, order)
	}
	for _, s := range m.AtomStereo {
		c, ok := index[s.Center]
		r0, ok0 := index[s.Refs[0]]
		r1, ok1 := index[s.Refs[1]]
		r2, ok2 := index[s.Refs[2]]
		if ok && ok0 && ok1 && ok2 {
			sub.AtomStereo = append(sub.AtomStereo, AtomStereo{Center: c, Refs: [3]int{r0, r1, r2}, Parity: s.Parity})
		}
	}
	for _, s := range m.BondStereo {
		b := m.Bonds[s.Bond]
		nb, okB := index[b.Begin]
		ne, okE := index[b.End]
		r0, ok0 := index[s.Refs[0]]
		r1, ok1 := index[s.Refs[1]]
		if !okB || !okE || !ok0 || !ok1 {
			continue
		}
		bond, _ := sub.BondBetween(nb, ne)
		sub.BondStereo = append(sub.BondStereo, BondStereo{Bond: bond, Refs: [2]int{r0, r1}, Cis: s.Cis})
	}
	return sub, sorted
}

//Personal.AI order the ending
