package molecule

import (
	"fmt"
	"sort"
	"strings"

	"github.com/bits-and-blooms/bitset"
)

// Ring is one member of the smallest set of smallest rings.
type Ring struct {
	// Atoms in cycle order.
	Atoms []int
	// Bonds in ascending index order.
	Bonds    []int
	BondMask *bitset.BitSet
}

// Size returns the number of ring atoms.
func (r Ring) Size() int { return len(r.Atoms) }

// ContainsAtom reports whether atom is a member of the ring.
func (r Ring) ContainsAtom(atom int) bool {
	for _, a := range r.Atoms {
		if a == atom {
			return true
		}
	}
	return false
}

type perception struct {
	rings      []Ring
	symClasses []int
	numClasses int
	topoDist   []uint8
}

// Perceive runs ring, aromaticity, hybridisation and symmetry perception.
// Queries call it implicitly; calling it up front makes later read-only use
// safe across goroutines.
func (m *Molecule) Perceive() {
	if m.per != nil {
		return
	}
	p := &perception{}
	m.per = p
	m.perceiveRingBonds()
	p.rings = m.findSSSR()
	m.perceiveAromaticity()
	m.perceiveHybridization()
	p.symClasses, p.numClasses = m.computeSymmetryClasses()
}

// Rings returns the smallest set of smallest rings.
func (m *Molecule) Rings() []Ring {
	m.Perceive()
	return m.per.rings
}

// IsRingBond reports whether bond b is part of a cycle.
func (m *Molecule) IsRingBond(b int) bool {
	m.Perceive()
	return m.Bonds[b].InRing
}

// IsRingAtom reports whether atom i is part of a cycle.
func (m *Molecule) IsRingAtom(i int) bool {
	m.Perceive()
	return m.Atoms[i].InRing
}

// HybridizationOf returns the perceived hybridisation of atom i.
func (m *Molecule) HybridizationOf(i int) Hybridization {
	m.Perceive()
	return m.Atoms[i].Hybridization
}

// SmallestRingSize returns the size of the smallest SSSR ring containing both
// atoms, or 0.
func (m *Molecule) SmallestRingSize(atoms ...int) int {
	best := 0
	for _, r := range m.Rings() {
		all := true
		for _, a := range atoms {
			if !r.ContainsAtom(a) {
				all = false
				break
			}
		}
		if all && (best == 0 || r.Size() < best) {
			best = r.Size()
		}
	}
	return best
}

// ─────────────────────────────────────────────────────────────────────────────
// Ring bonds (bridge detection)
// ─────────────────────────────────────────────────────────────────────────────

func (m *Molecule) perceiveRingBonds() {
	n := len(m.Atoms)
	disc := make([]int, n)
	low := make([]int, n)
	for i := range disc {
		disc[i] = -1
	}
	bridge := make([]bool, len(m.Bonds))
	timer := 0

	var visit func(u, viaBond int)
	visit = func(u, viaBond int) {
		disc[u] = timer
		low[u] = timer
		timer++
		for _, nb := range m.adj[u] {
			if nb.Bond == viaBond {
				continue
			}
			if disc[nb.Atom] < 0 {
				visit(nb.Atom, nb.Bond)
				if low[nb.Atom] < low[u] {
					low[u] = low[nb.Atom]
				}
				if low[nb.Atom] > disc[u] {
					bridge[nb.Bond] = true
				}
			} else if disc[nb.Atom] < low[u] {
				low[u] = disc[nb.Atom]
			}
		}
	}
	for i := 0; i < n; i++ {
		if disc[i] < 0 {
			visit(i, -1)
		}
	}

	for i := range m.Atoms {
		m.Atoms[i].InRing = false
	}
	for i := range m.Bonds {
		b := &m.Bonds[i]
		b.InRing = !bridge[i]
		if b.InRing {
			m.Atoms[b.Begin].InRing = true
			m.Atoms[b.End].InRing = true
		}
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// SSSR (Horton candidates, greedy GF(2) independence)
// ─────────────────────────────────────────────────────────────────────────────

func (m *Molecule) findSSSR() []Ring {
	numRingBonds := 0
	ringAtoms := bitset.New(uint(len(m.Atoms)))
	for _, b := range m.Bonds {
		if b.InRing {
			numRingBonds++
			ringAtoms.Set(uint(b.Begin))
			ringAtoms.Set(uint(b.End))
		}
	}
	if numRingBonds == 0 {
		return nil
	}
	// Cyclomatic number of the ring-bond subgraph.
	expected := numRingBonds - int(ringAtoms.Count()) + m.countRingComponents(ringAtoms)

	var candidates []Ring
	for r, ok := ringAtoms.NextSet(0); ok; r, ok = ringAtoms.NextSet(r + 1) {
		candidates = append(candidates, m.hortonCycles(int(r))...)
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Size() != candidates[j].Size() {
			return candidates[i].Size() < candidates[j].Size()
		}
		return lessIntSlices(candidates[i].Bonds, candidates[j].Bonds)
	})

	basis := map[uint]*bitset.BitSet{}
	var rings []Ring
	for _, c := range candidates {
		if len(rings) == expected {
			break
		}
		if independent(basis, c.BondMask) {
			rings = append(rings, c)
		}
	}
	return rings
}

func (m *Molecule) countRingComponents(ringAtoms *bitset.BitSet) int {
	seen := bitset.New(uint(len(m.Atoms)))
	count := 0
	for s, ok := ringAtoms.NextSet(0); ok; s, ok = ringAtoms.NextSet(s + 1) {
		if seen.Test(s) {
			continue
		}
		count++
		stack := []int{int(s)}
		seen.Set(s)
		for len(stack) > 0 {
			u := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			for _, nb := range m.adj[u] {
				if m.Bonds[nb.Bond].InRing && !seen.Test(uint(nb.Atom)) {
					seen.Set(uint(nb.Atom))
					stack = append(stack, nb.Atom)
				}
			}
		}
	}
	return count
}

// hortonCycles returns the cycles formed by a BFS tree rooted at r and each
// non-tree ring edge whose two tree paths only meet at r.
func (m *Molecule) hortonCycles(r int) []Ring {
	n := len(m.Atoms)
	parent := make([]int, n)
	parentBond := make([]int, n)
	dist := make([]int, n)
	for i := range parent {
		parent[i] = -2
	}
	parent[r] = -1
	parentBond[r] = -1
	queue := []int{r}
	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		for _, nb := range m.adj[u] {
			if !m.Bonds[nb.Bond].InRing || parent[nb.Atom] != -2 {
				continue
			}
			parent[nb.Atom] = u
			parentBond[nb.Atom] = nb.Bond
			dist[nb.Atom] = dist[u] + 1
			queue = append(queue, nb.Atom)
		}
	}

	pathTo := func(x int) (atoms, bonds []int) {
		for x != r {
			atoms = append(atoms, x)
			bonds = append(bonds, parentBond[x])
			x = parent[x]
		}
		return atoms, bonds
	}

	var out []Ring
	for _, b := range m.Bonds {
		if !b.InRing {
			continue
		}
		x, y := b.Begin, b.End
		if parent[x] == -2 || parent[y] == -2 {
			continue
		}
		if parentBond[x] == b.Index || parentBond[y] == b.Index {
			continue
		}
		px, bx := pathTo(x)
		py, by := pathTo(y)
		if !disjoint(px, py) {
			continue
		}
		atoms := make([]int, 0, len(px)+len(py)+1)
		atoms = append(atoms, r)
		for i := len(px) - 1; i >= 0; i-- {
			atoms = append(atoms, px[i])
		}
		atoms = append(atoms, py...)

		mask := bitset.New(uint(len(m.Bonds)))
		bonds := make([]int, 0, len(bx)+len(by)+1)
		for _, e := range append(append(bx, by...), b.Index) {
			mask.Set(uint(e))
			bonds = append(bonds, e)
		}
		sort.Ints(bonds)
		out = append(out, Ring{Atoms: atoms, Bonds: bonds, BondMask: mask})
	}
	return out
}

// independent reduces v against the basis (keyed by pivot bit) and adds it
// when a non-zero remainder is left.
func independent(basis map[uint]*bitset.BitSet, v *bitset.BitSet) bool {
	cand := v.Clone()
	for {
		pivot, ok := cand.NextSet(0)
		if !ok {
			return false
		}
		row, exists := basis[pivot]
		if !exists {
			basis[pivot] = cand
			return true
		}
		cand.InPlaceSymmetricDifference(row)
	}
}

func disjoint(a, b []int) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return false
			}
		}
	}
	return true
}

func lessIntSlices(a, b []int) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}

// ─────────────────────────────────────────────────────────────────────────────
// Aromaticity (Hückel rule on SSSR rings)
// ─────────────────────────────────────────────────────────────────────────────

func (m *Molecule) perceiveAromaticity() {
	for _, r := range m.per.rings {
		if r.Size() < 5 || r.Size() > 7 {
			continue
		}
		if m.allBondsAromatic(r) {
			continue
		}
		electrons := 0
		ok := true
		for _, a := range r.Atoms {
			e, eligible := m.piElectrons(a, r)
			if !eligible {
				ok = false
				break
			}
			electrons += e
		}
		if !ok || electrons%4 != 2 {
			continue
		}
		for _, a := range r.Atoms {
			m.Atoms[a].Aromatic = true
		}
		for _, b := range r.Bonds {
			m.Bonds[b].Aromatic = true
		}
	}
}

func (m *Molecule) allBondsAromatic(r Ring) bool {
	for _, b := range r.Bonds {
		if !m.Bonds[b].Aromatic {
			return false
		}
	}
	return true
}

// piElectrons returns the pi electron contribution of atom a to ring r.
func (m *Molecule) piElectrons(a int, r Ring) (int, bool) {
	atom := m.Atoms[a]
	inRingDouble, exoDouble, triple := false, false, false
	for _, nb := range m.adj[a] {
		b := m.Bonds[nb.Bond]
		switch {
		case b.Order == 3:
			triple = true
		case b.Order == 2 && r.ContainsAtom(nb.Atom) && ringHasBond(r, nb.Bond):
			inRingDouble = true
		case b.Order == 2:
			exoDouble = true
		case b.Aromatic && ringHasBond(r, nb.Bond):
			inRingDouble = true
		}
	}
	switch {
	case triple:
		return 0, false
	case inRingDouble:
		return 1, true
	case exoDouble:
		return 0, atom.Number == 6
	}
	switch atom.Number {
	case 7, 15:
		if atom.FormalCharge > 0 {
			return 0, false
		}
		return 2, m.Degree(a) <= 3
	case 8, 16, 34:
		return 2, atom.FormalCharge == 0
	case 6:
		switch {
		case atom.FormalCharge < 0:
			return 2, true
		case atom.FormalCharge > 0:
			return 0, true
		}
	}
	return 0, false
}

func ringHasBond(r Ring, bond int) bool {
	i := sort.SearchInts(r.Bonds, bond)
	return i < len(r.Bonds) && r.Bonds[i] == bond
}

// ─────────────────────────────────────────────────────────────────────────────
// Hybridisation
// ─────────────────────────────────────────────────────────────────────────────

func (m *Molecule) perceiveHybridization() {
	for i := range m.Atoms {
		m.Atoms[i].Hybridization = m.baseHybridization(i)
	}
	// Lone-pair donors conjugated with a pi system are planar.
	for i := range m.Atoms {
		a := &m.Atoms[i]
		if a.Hybridization != HybridSP3 || a.Number != 7 || m.Degree(i) > 3 || a.FormalCharge > 0 {
			continue
		}
		for _, nb := range m.adj[i] {
			h := m.Atoms[nb.Atom].Hybridization
			if h == HybridSP2 || h == HybridSP {
				a.Hybridization = HybridSP2
				break
			}
		}
	}
}

func (m *Molecule) baseHybridization(i int) Hybridization {
	a := m.Atoms[i]
	if a.Number == 1 {
		return HybridS
	}
	if a.Aromatic {
		return HybridSP2
	}
	doubles, triples := 0, 0
	for _, nb := range m.adj[i] {
		switch m.Bonds[nb.Bond].Order {
		case 2:
			doubles++
		case 3:
			triples++
		}
	}
	switch {
	case triples > 0 || doubles > 1:
		return HybridSP
	case doubles == 1:
		return HybridSP2
	}
	return HybridSP3
}

// IsInvertibleNitrogen reports whether atom i is a pyramidal, acyclic-inversion
// capable amine nitrogen.
func (m *Molecule) IsInvertibleNitrogen(i int) bool {
	m.Perceive()
	a := m.Atoms[i]
	return a.Number == 7 && a.FormalCharge == 0 && !a.Aromatic &&
		a.Hybridization == HybridSP3 && m.Degree(i) == 3
}

// ─────────────────────────────────────────────────────────────────────────────
// Topological symmetry classes
// ─────────────────────────────────────────────────────────────────────────────

// SymmetryClass returns the topological equivalence class of atom i.
func (m *Molecule) SymmetryClass(i int) int {
	m.Perceive()
	return m.per.symClasses[i]
}

// SymmetryClasses returns a copy of all atom classes.
func (m *Molecule) SymmetryClasses() []int {
	m.Perceive()
	return append([]int(nil), m.per.symClasses...)
}

func (m *Molecule) computeSymmetryClasses() ([]int, int) {
	n := len(m.Atoms)
	keys := make([]string, n)
	for i, a := range m.Atoms {
		keys[i] = fmt.Sprintf("%d|%d|%d|%d|%t|%t", a.Number, m.Degree(i), m.HydrogenCount(i), a.FormalCharge, a.Aromatic, a.InRing)
	}
	classes, count := rankKeys(keys)
	for iter := 0; iter < n; iter++ {
		for i := range m.Atoms {
			nbKeys := make([]string, 0, len(m.adj[i]))
			for _, nb := range m.adj[i] {
				b := m.Bonds[nb.Bond]
				nbKeys = append(nbKeys, fmt.Sprintf("%d:%d:%t", classes[nb.Atom], b.Order, b.Aromatic))
			}
			sort.Strings(nbKeys)
			keys[i] = fmt.Sprintf("%d(%s)", classes[i], strings.Join(nbKeys, ","))
		}
		next, nextCount := rankKeys(keys)
		classes = next
		if nextCount == count {
			break
		}
		count = nextCount
	}
	return classes, count
}

func rankKeys(keys []string) ([]int, int) {
	uniq := append([]string(nil), keys...)
	sort.Strings(uniq)
	rank := map[string]int{}
	for _, k := range uniq {
		if _, ok := rank[k]; !ok {
			rank[k] = len(rank)
		}
	}
	out := make([]int, len(keys))
	for i, k := range keys {
		out[i] = rank[k]
	}
	return out, len(rank)
}

// ─────────────────────────────────────────────────────────────────────────────
// Topological distances
// ─────────────────────────────────────────────────────────────────────────────

// MaxTopologicalDistance is the cap applied by TopologicalDistance.
const MaxTopologicalDistance = 255

// TopologicalDistance returns the bond-count distance between a and b, capped
// at MaxTopologicalDistance (also returned for disconnected atoms).
func (m *Molecule) TopologicalDistance(a, b int) int {
	m.Perceive()
	if m.per.topoDist == nil {
		m.per.topoDist = m.computeTopologicalDistances()
	}
	return int(m.per.topoDist[a*len(m.Atoms)+b])
}

func (m *Molecule) computeTopologicalDistances() []uint8 {
	n := len(m.Atoms)
	out := make([]uint8, n*n)
	for i := range out {
		out[i] = MaxTopologicalDistance
	}
	queue := make([]int, 0, n)
	for s := 0; s < n; s++ {
		row := out[s*n : (s+1)*n]
		row[s] = 0
		queue = append(queue[:0], s)
		for len(queue) > 0 {
			u := queue[0]
			queue = queue[1:]
			if row[u] == MaxTopologicalDistance-1 {
				continue
			}
			for _, nb := range m.adj[u] {
				if row[nb.Atom] == MaxTopologicalDistance {
					row[nb.Atom] = row[u] + 1
					queue = append(queue, nb.Atom)
				}
			}
		}
	}
	return out
}

//Personal.AI order the ending
