package molecule

// Automorphisms enumerates up to limit topological automorphisms of the
// subgraph induced by atoms. Each mapping is aligned with atoms: mapping[k] is
// the image of atoms[k]. Images respect symmetry classes, and bonds (with order
// and aromaticity) inside the subset are preserved. The identity is always
// among the results when limit > 0.
func (m *Molecule) Automorphisms(atoms []int, limit int) [][]int {
	m.Perceive()
	if limit <= 0 || len(atoms) == 0 {
		return nil
	}
	pos := make(map[int]int, len(atoms))
	for k, a := range atoms {
		pos[a] = k
	}
	order := m.searchOrder(atoms, pos)

	n := len(atoms)
	image := make([]int, n)
	for i := range image {
		image[i] = -1
	}
	used := make(map[int]bool, n)
	var out [][]int

	identity := make([]int, n)
	copy(identity, atoms)
	out = append(out, identity)

	var extend func(depth int) bool
	extend = func(depth int) bool {
		if depth == n {
			if !isIdentity(image, atoms) {
				out = append(out, append([]int(nil), image...))
			}
			return len(out) >= limit
		}
		k := order[depth]
		src := atoms[k]
		cls := m.per.symClasses[src]
		for _, cand := range atoms {
			if used[cand] || m.per.symClasses[cand] != cls {
				continue
			}
			if !m.consistent(src, cand, image, atoms) {
				continue
			}
			image[k] = cand
			used[cand] = true
			if extend(depth + 1) {
				return true
			}
			used[cand] = false
			image[k] = -1
		}
		return false
	}
	if limit > 1 {
		extend(0)
	}
	return out
}

// consistent checks that mapping src to cand preserves every bond between src
// and already-mapped subset atoms.
func (m *Molecule) consistent(src, cand int, image, atoms []int) bool {
	for k, img := range image {
		if img < 0 {
			continue
		}
		other := atoms[k]
		b1, ok1 := m.BondBetween(src, other)
		b2, ok2 := m.BondBetween(cand, img)
		if ok1 != ok2 {
			return false
		}
		if ok1 && (m.Bonds[b1].Order != m.Bonds[b2].Order || m.Bonds[b1].Aromatic != m.Bonds[b2].Aromatic) {
			return false
		}
	}
	return true
}

// searchOrder returns subset positions in breadth-first order so that each
// atom after the first of its component has a mapped neighbour.
func (m *Molecule) searchOrder(atoms []int, pos map[int]int) []int {
	seen := make([]bool, len(atoms))
	order := make([]int, 0, len(atoms))
	for start := range atoms {
		if seen[start] {
			continue
		}
		seen[start] = true
		queue := []int{start}
		for len(queue) > 0 {
			k := queue[0]
			queue = queue[1:]
			order = append(order, k)
			for _, nb := range m.adj[atoms[k]] {
				if j, ok := pos[nb.Atom]; ok && !seen[j] {
					seen[j] = true
					queue = append(queue, j)
				}
			}
		}
	}
	return order
}

func isIdentity(image, atoms []int) bool {
	for k := range image {
		if image[k] != atoms[k] {
			return false
		}
	}
	return true
}

//Personal.AI order the ending
