// Package fragtree decomposes a molecule into rigid fragments joined by
// rotatable bonds and reassembles whole-molecule conformers from fragment
// conformer pools, sampling torsion angles at every join.
//
// The tree is a node arena addressed by index. Leaves are filled from outside
// (see fragconf); internal nodes combine their children bottom-up.
package fragtree

import (
	"sort"

	"github.com/bits-and-blooms/bitset"

	"github.com/molinfo-vienna/CDPKit-sub014/internal/domain/conformer"
	"github.com/molinfo-vienna/CDPKit-sub014/internal/domain/molecule"
	"github.com/molinfo-vienna/CDPKit-sub014/internal/infrastructure/monitoring/logging"
	"github.com/molinfo-vienna/CDPKit-sub014/internal/intelligence/forcefield"
	"github.com/molinfo-vienna/CDPKit-sub014/internal/intelligence/torsion"
	"github.com/molinfo-vienna/CDPKit-sub014/pkg/errors"
)

// Defaults.
const (
	// DefaultClashFactor scales the summed covalent radii below which two
	// non-neighbouring atoms clash.
	DefaultClashFactor = 1.0
	// LineUpSpacing is the gap (Å) between bounding boxes of fragments placed
	// side by side.
	LineUpSpacing = 2.0
	// clashMinTopoDistance: pairs closer than this in bonds are never checked.
	clashMinTopoDistance = 4
)

// Options configures a Tree.
type Options struct {
	// EnergyWindow above the best combination; 0 keeps everything.
	EnergyWindow float64
	// MaxPoolSize caps every node's pool; 0 means unlimited.
	MaxPoolSize int
	ClashFactor float64
	// CacheSize bounds the idle records kept for reuse.
	CacheSize int
}

// Option configures a Tree.
type Option func(*Tree)

// WithOptions sets the tree options.
func WithOptions(o Options) Option { return func(t *Tree) { t.opts = o } }

// WithControl sets the cancellation control polled during generation.
func WithControl(c *conformer.Control) Option { return func(t *Tree) { t.ctrl = c } }

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option { return func(t *Tree) { t.logger = l } }

// AngleResolver supplies candidate torsion angles for a bond.
// *torsion.AngleSource implements it.
type AngleResolver interface {
	Angles(mol *molecule.Molecule, bond int) ([]torsion.Angle, bool)
}

// Tree is a binary fragment tree over one molecule. It is not safe for
// concurrent use.
type Tree struct {
	mol    *molecule.Molecule
	cache  *conformer.Cache[*conformer.Record]
	nodes  []*Node
	leaves []int
	root   int

	clashRadius []float64
	ff          *forcefield.InteractionData

	opts   Options
	ctrl   *conformer.Control
	logger logging.Logger
}

// New returns an empty tree for mol.
func New(mol *molecule.Molecule, options ...Option) *Tree {
	t := &Tree{mol: mol, root: -1, logger: logging.NewNopLogger()}
	t.opts.ClashFactor = DefaultClashFactor
	for _, o := range options {
		o(t)
	}
	if t.opts.ClashFactor <= 0 {
		t.opts.ClashFactor = DefaultClashFactor
	}
	t.cache = conformer.NewRecordCache(mol.AtomCount(), t.opts.CacheSize)
	t.logger = t.logger.Named("fragtree")
	return t
}

// Molecule returns the molecule the tree was created for.
func (t *Tree) Molecule() *molecule.Molecule { return t.mol }

// Root returns the root node, or nil before Build.
func (t *Tree) Root() *Node {
	if t.root < 0 {
		return nil
	}
	return t.nodes[t.root]
}

// Node returns the node with index i.
func (t *Tree) Node(i int) *Node { return t.nodes[i] }

// NumNodes returns the arena size.
func (t *Tree) NumNodes() int { return len(t.nodes) }

// Leaves returns the leaf nodes in creation order.
func (t *Tree) Leaves() []*Node {
	out := make([]*Node, len(t.leaves))
	for i, l := range t.leaves {
		out[i] = t.nodes[l]
	}
	return out
}

// Build partitions frag into the pieces left after removing splitBonds, makes
// one leaf per piece and pairs them into a binary tree. Frontier nodes joined
// by exactly one split bond are paired first, scanning pairs in frontier order
// and split bonds in index order; the scan restarts after every merge.
// Remaining nodes are then merged two at a time without a split bond.
//
// ff holds the whole molecule's interaction terms (may be nil). Each term is
// owned by the lowest node whose core atoms contain all of its atoms.
func (t *Tree) Build(frag molecule.Fragment, splitBonds *bitset.BitSet, ff *forcefield.InteractionData) error {
	if frag.Mol != t.mol {
		return errors.InvalidParam("fragment belongs to another molecule")
	}
	t.releaseAll()
	t.nodes = t.nodes[:0]
	t.leaves = t.leaves[:0]
	t.root = -1
	t.ff = ff
	t.buildClashRadii()

	split := bitset.New(uint(t.mol.BondCount()))
	if splitBonds != nil {
		split = splitBonds.Intersection(frag.BondMask())
	}
	pieces := frag.SplitByBondMask(split)
	pieceOf := make(map[int]int, len(frag.Atoms))
	for p, atoms := range pieces {
		for _, a := range atoms {
			pieceOf[a] = p
		}
	}

	var bonds []int
	for b, ok := split.NextSet(0); ok; b, ok = split.NextSet(b + 1) {
		bond := t.mol.Bonds[b]
		if pieceOf[bond.Begin] == pieceOf[bond.End] {
			return errors.InvalidParam("split bond is not a bridge").WithDetailf("bond %d", b)
		}
		bonds = append(bonds, int(b))
	}

	for _, piece := range pieces {
		t.leaves = append(t.leaves, t.newLeaf(piece, bonds))
	}
	if len(t.leaves) == 0 {
		t.leaves = append(t.leaves, t.newLeaf(nil, nil))
	}

	frontier := append([]int(nil), t.leaves...)
	for {
		merged := false
	search:
		for i := 0; i < len(frontier); i++ {
			for j := i + 1; j < len(frontier); j++ {
				left, right := t.nodes[frontier[i]], t.nodes[frontier[j]]
				for k, b := range bonds {
					if !connects(t.mol.Bonds[b], left, right) {
						continue
					}
					for _, other := range bonds[k+1:] {
						if connects(t.mol.Bonds[other], left, right) {
							return errors.InvalidParam("fragments joined by more than one split bond").
								WithDetailf("bonds %d and %d", b, other)
						}
					}
					parent := t.newParent(left, right, b)
					frontier = append(append(append([]int(nil), frontier[:i]...), frontier[i+1:j]...), frontier[j+1:]...)
					frontier = append(frontier, parent)
					bonds = append(bonds[:k:k], bonds[k+1:]...)
					merged = true
					break search
				}
			}
		}
		if !merged {
			break
		}
	}
	for len(frontier) > 1 {
		parent := t.newParent(t.nodes[frontier[0]], t.nodes[frontier[1]], -1)
		frontier = append(frontier[2:], parent)
	}
	t.root = frontier[0]
	t.assignTerms(frag)

	t.logger.Debug("fragment tree built",
		logging.Int("leaves", len(t.leaves)), logging.Int("nodes", len(t.nodes)),
		logging.Int("split_bonds", int(split.Count())))
	return nil
}

func connects(b molecule.Bond, left, right *Node) bool {
	l, r := left.coreMask, right.coreMask
	return (l.Test(uint(b.Begin)) && r.Test(uint(b.End))) || (l.Test(uint(b.End)) && r.Test(uint(b.Begin)))
}

func (t *Tree) newNode() *Node {
	n := &Node{
		tree:        t,
		index:       len(t.nodes),
		parent:      -1,
		left:        -1,
		right:       -1,
		splitBond:   -1,
		splitAtoms:  [2]int{-1, -1},
		torsionRefs: [2]int{-1, -1},
	}
	t.nodes = append(t.nodes, n)
	return n
}

// newLeaf creates a leaf for piece. Its atom set adds the atoms across every
// split bond leaving the piece.
func (t *Tree) newLeaf(piece []int, splitBonds []int) int {
	n := t.newNode()
	size := uint(t.mol.AtomCount())
	n.coreMask = bitset.New(size)
	for _, a := range piece {
		n.coreMask.Set(uint(a))
	}
	n.atomMask = n.coreMask.Clone()
	for _, b := range splitBonds {
		bond := t.mol.Bonds[b]
		switch {
		case n.coreMask.Test(uint(bond.Begin)):
			n.atomMask.Set(uint(bond.End))
		case n.coreMask.Test(uint(bond.End)):
			n.atomMask.Set(uint(bond.Begin))
		}
	}
	n.atoms = maskAtoms(n.atomMask)
	return n.index
}

func (t *Tree) newParent(left, right *Node, bond int) int {
	n := t.newNode()
	n.left, n.right = left.index, right.index
	left.parent, right.parent = n.index, n.index
	n.atomMask = left.atomMask.Union(right.atomMask)
	n.coreMask = left.coreMask.Union(right.coreMask)
	n.atoms = maskAtoms(n.atomMask)
	if bond >= 0 {
		b := t.mol.Bonds[bond]
		n.splitBond = bond
		if left.coreMask.Test(uint(b.Begin)) {
			n.splitAtoms = [2]int{b.Begin, b.End}
		} else {
			n.splitAtoms = [2]int{b.End, b.Begin}
		}
	}
	return n.index
}

func maskAtoms(mask *bitset.BitSet) []int {
	out := make([]int, 0, mask.Count())
	for i, ok := mask.NextSet(0); ok; i, ok = mask.NextSet(i + 1) {
		out = append(out, int(i))
	}
	return out
}

// assignTerms hands every interaction term inside frag to the lowest node
// whose core covers it.
func (t *Tree) assignTerms(frag molecule.Fragment) {
	for _, n := range t.nodes {
		n.terms = nil
	}
	if t.ff == nil {
		return
	}
	leafOf := make(map[int]int, len(frag.Atoms))
	for _, l := range t.leaves {
		n := t.nodes[l]
		for i, ok := n.coreMask.NextSet(0); ok; i, ok = n.coreMask.NextSet(i + 1) {
			leafOf[int(i)] = l
		}
	}
	depth := make([]int, len(t.nodes))
	for i := len(t.nodes) - 1; i >= 0; i-- {
		if p := t.nodes[i].parent; p >= 0 {
			depth[i] = depth[p] + 1
		}
	}
	lca := func(a, b int) int {
		for a != b {
			if depth[a] >= depth[b] {
				a = t.nodes[a].parent
			} else {
				b = t.nodes[b].parent
			}
		}
		return a
	}
	parts := t.ff.Split(len(t.nodes), func(atoms []int) int {
		owner := -1
		for _, a := range atoms {
			l, ok := leafOf[a]
			if !ok {
				return -1
			}
			if owner < 0 {
				owner = l
			} else {
				owner = lca(owner, l)
			}
		}
		return owner
	})
	for i, n := range t.nodes {
		n.terms = parts[i]
	}
}

func (t *Tree) buildClashRadii() {
	t.clashRadius = make([]float64, t.mol.AtomCount())
	for i, a := range t.mol.Atoms {
		el, _ := molecule.ElementByNumber(a.Number)
		t.clashRadius[i] = el.CovalentRadius * t.opts.ClashFactor
	}
}

// AssignTorsionAngles resolves the candidate angles of every split bond.
// Reference atoms are re-oriented so that the first belongs to the node's
// left side.
func (t *Tree) AssignTorsionAngles(src AngleResolver) {
	for _, n := range t.nodes {
		if n.splitBond < 0 {
			continue
		}
		angles, _ := src.Angles(t.mol, n.splitBond)
		n.SetTorsionAngles(angles)
	}
}

// GenerateConformers runs the bottom-up combination from the root.
func (t *Tree) GenerateConformers(energyOrdered bool) conformer.ReturnCode {
	if t.root < 0 {
		return conformer.ConfGenFailed
	}
	return t.nodes[t.root].GenerateConformers(energyOrdered)
}

// Conformers returns the root pool. The records stay owned by the tree.
func (t *Tree) Conformers() []*conformer.Record {
	if t.root < 0 {
		return nil
	}
	return t.nodes[t.root].conformers
}

// NumConformers returns the root pool size.
func (t *Tree) NumConformers() int { return len(t.Conformers()) }

// ClearConformers empties every node pool.
func (t *Tree) ClearConformers() {
	for _, n := range t.nodes {
		n.ClearConformers()
	}
}

// ClearConformersForAtoms empties every leaf whose core intersects mask and
// all ancestors of such leaves.
func (t *Tree) ClearConformersForAtoms(mask *bitset.BitSet) {
	for _, l := range t.leaves {
		n := t.nodes[l]
		if n.coreMask.IntersectionCardinality(mask) == 0 {
			continue
		}
		for i := l; i >= 0; i = t.nodes[i].parent {
			t.nodes[i].ClearConformers()
		}
	}
}

// Close releases every record and shuts the record cache down.
func (t *Tree) Close() error {
	t.releaseAll()
	return t.cache.Close()
}

// Outstanding returns the number of records currently held by node pools.
func (t *Tree) Outstanding() int { return t.cache.Outstanding() }

func (t *Tree) releaseAll() {
	for _, n := range t.nodes {
		n.ClearConformers()
	}
}

func (t *Tree) check() conformer.ReturnCode { return t.ctrl.Check() }

// sortByEnergy orders records by ascending energy, stable.
func sortByEnergy(recs []*conformer.Record) {
	sort.SliceStable(recs, func(i, j int) bool { return conformer.ByEnergy(recs[i].Energy, recs[j].Energy) })
}

//Personal.AI order the ending
