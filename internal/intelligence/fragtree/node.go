package fragtree

import (
	"math"
	"sort"

	"github.com/bits-and-blooms/bitset"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/molinfo-vienna/CDPKit-sub014/internal/domain/conformer"
	"github.com/molinfo-vienna/CDPKit-sub014/internal/domain/molecule"
	"github.com/molinfo-vienna/CDPKit-sub014/internal/intelligence/forcefield"
	"github.com/molinfo-vienna/CDPKit-sub014/internal/intelligence/torsion"
	"github.com/molinfo-vienna/CDPKit-sub014/pkg/errors"
)

const (
	// collinearEps is the squared length below which a reference vector is
	// treated as lying on the bond axis.
	collinearEps = 1e-6
	// pruneFactor: a pool growing past pruneFactor·MaxPoolSize during
	// combination is trimmed early.
	pruneFactor = 4
)

// Node is a fragment tree node. Leaves own a rigid piece plus its link atoms;
// internal nodes join two children, optionally across a rotatable bond.
type Node struct {
	tree   *Tree
	index  int
	parent int
	left   int
	right  int

	atoms    []int
	atomMask *bitset.BitSet
	coreMask *bitset.BitSet

	splitBond   int
	splitAtoms  [2]int
	torsionRefs [2]int
	angles      []torsion.Angle

	terms      *forcefield.InteractionData
	conformers []*conformer.Record
	sorted     bool

	// changed is raised when the pool is (re)filled and cleared once the
	// parent has consumed it.
	changed bool
	frames  []frame

	clashPairs [][2]int
	clashReady bool
}

// frame is a child conformer expressed in its alignment frame.
type frame struct {
	origin  r3.Vec
	x, y, z r3.Vec
	// local holds the child's atom positions in frame coordinates, aligned
	// with the child's atom list.
	local   []r3.Vec
	bondLen float64
}

func (f *frame) toLocal(p r3.Vec) r3.Vec {
	d := r3.Sub(p, f.origin)
	return r3.Vec{X: r3.Dot(d, f.x), Y: r3.Dot(d, f.y), Z: r3.Dot(d, f.z)}
}

func (f *frame) toWorld(q r3.Vec) r3.Vec {
	return r3.Add(f.origin, r3.Add(r3.Scale(q.X, f.x), r3.Add(r3.Scale(q.Y, f.y), r3.Scale(q.Z, f.z))))
}

// Index returns the node's arena index.
func (n *Node) Index() int { return n.index }

// IsLeaf reports whether the node has no children.
func (n *Node) IsLeaf() bool { return n.left < 0 }

// Parent returns the parent node, or nil for the root.
func (n *Node) Parent() *Node {
	if n.parent < 0 {
		return nil
	}
	return n.tree.nodes[n.parent]
}

// Left returns the left child, or nil for a leaf.
func (n *Node) Left() *Node {
	if n.left < 0 {
		return nil
	}
	return n.tree.nodes[n.left]
}

// Right returns the right child, or nil for a leaf.
func (n *Node) Right() *Node {
	if n.right < 0 {
		return nil
	}
	return n.tree.nodes[n.right]
}

// Atoms returns the global atom indices covered, ascending.
func (n *Node) Atoms() []int { return n.atoms }

// AtomMask returns the covered atoms including link atoms.
func (n *Node) AtomMask() *bitset.BitSet { return n.atomMask }

// CoreMask returns the covered atoms without link atoms.
func (n *Node) CoreMask() *bitset.BitSet { return n.coreMask }

// SplitBond returns the bond joining the children, or -1.
func (n *Node) SplitBond() int { return n.splitBond }

// SplitAtoms returns the split bond atoms on the left and right side.
func (n *Node) SplitAtoms() [2]int { return n.splitAtoms }

// TorsionReferences returns the designated reference atoms, -1 when unset.
func (n *Node) TorsionReferences() [2]int { return n.torsionRefs }

// TorsionAngles returns the candidate angles sampled at the split bond.
func (n *Node) TorsionAngles() []torsion.Angle { return n.angles }

// Terms returns the interaction terms evaluated at this node.
func (n *Node) Terms() *forcefield.InteractionData { return n.terms }

// Conformers returns the pool. Coordinates are indexed by global atom index.
func (n *Node) Conformers() []*conformer.Record { return n.conformers }

// NumConformers returns the pool size.
func (n *Node) NumConformers() int { return len(n.conformers) }

// Changed reports whether the pool changed since the parent last used it.
func (n *Node) Changed() bool { return n.changed }

// SetTorsionAngles replaces the candidate angles. Reference atoms are swapped
// where needed so that Ref1 lies on the left side. The first angle with two
// explicit references designates the node's reference atoms.
func (n *Node) SetTorsionAngles(angles []torsion.Angle) {
	n.angles = n.angles[:0]
	n.torsionRefs = [2]int{-1, -1}
	if n.splitBond < 0 {
		return
	}
	swap := n.tree.mol.Bonds[n.splitBond].Begin != n.splitAtoms[0]
	for _, a := range angles {
		if swap {
			a.Ref1, a.Ref2 = a.Ref2, a.Ref1
		}
		n.angles = append(n.angles, a)
		if n.torsionRefs[0] < 0 && a.Ref1 >= 0 && a.Ref2 >= 0 {
			n.torsionRefs = [2]int{a.Ref1, a.Ref2}
		}
	}
}

// AddConformer appends a conformer given as coordinates aligned with Atoms.
// Its energy is the node's local interaction energy.
func (n *Node) AddConformer(coords []r3.Vec) error {
	if len(coords) != len(n.atoms) {
		return errors.InvalidParam("conformer size does not match fragment").
			WithDetailf("got %d coordinates for %d atoms", len(coords), len(n.atoms))
	}
	rec := n.tree.cache.Acquire()
	for i, a := range n.atoms {
		rec.Coords[a] = coords[i]
	}
	rec.Energy = n.terms.Energy(rec.Coords)
	n.conformers = append(n.conformers, rec)
	n.sorted = false
	n.changed = true
	return nil
}

// ClearConformers releases the pool.
func (n *Node) ClearConformers() {
	if len(n.conformers) > 0 {
		n.tree.cache.ReleaseAll(n.conformers)
	}
	n.conformers = nil
	n.frames = nil
	n.sorted = false
	n.changed = true
}

// ─────────────────────────────────────────────────────────────────────────────
// Generation
// ─────────────────────────────────────────────────────────────────────────────

// GenerateConformers fills the pool from the children's pools. A filled pool
// is returned as is (sorted first if energyOrdered). A timeout keeps the
// combinations found so far.
func (n *Node) GenerateConformers(energyOrdered bool) conformer.ReturnCode {
	t := n.tree
	if len(n.conformers) > 0 {
		if energyOrdered && !n.sorted {
			sortByEnergy(n.conformers)
			n.sorted = true
			n.frames = nil
		}
		return conformer.Success
	}
	if n.IsLeaf() {
		if len(n.atoms) == 0 {
			return conformer.Success
		}
		return conformer.TorsionDrivingFailed
	}
	if rc := t.check(); rc != conformer.Success {
		return rc
	}

	ordered := energyOrdered || t.opts.EnergyWindow > 0
	left, right := t.nodes[n.left], t.nodes[n.right]
	if rc := left.GenerateConformers(ordered); rc != conformer.Success {
		return rc
	}
	if rc := right.GenerateConformers(ordered); rc != conformer.Success {
		return rc
	}
	if len(left.conformers) == 0 || len(right.conformers) == 0 {
		return conformer.ConfGenFailed
	}

	var rc conformer.ReturnCode
	if n.splitBond < 0 {
		rc = n.lineUp(left, right)
	} else {
		rc = n.drive(left, right)
	}
	left.changed = false
	right.changed = false

	n.trim()
	if energyOrdered && !n.sorted {
		sortByEnergy(n.conformers)
		n.sorted = true
	}
	n.changed = true
	if rc == conformer.Success && len(n.conformers) == 0 {
		return conformer.ConfGenFailed
	}
	return rc
}

// lineUp places the right fragment beside the left one, pairing conformers
// by index.
func (n *Node) lineUp(left, right *Node) conformer.ReturnCode {
	t := n.tree
	nl, nr := len(left.conformers), len(right.conformers)
	best := math.Inf(1)
	for i := 0; i < max(nl, nr); i++ {
		if rc := t.check(); rc != conformer.Success {
			return rc
		}
		lc := left.conformers[min(i, nl-1)]
		rc := right.conformers[min(i, nr-1)]

		lbox := molecule.BoundingBox(lc.Coords, left.atoms)
		rbox := molecule.BoundingBox(rc.Coords, right.atoms)
		shift := r3.Vec{
			X: lbox.Max.X + LineUpSpacing - rbox.Min.X,
			Y: (lbox.Min.Y+lbox.Max.Y)/2 - (rbox.Min.Y+rbox.Max.Y)/2,
			Z: (lbox.Min.Z+lbox.Max.Z)/2 - (rbox.Min.Z+rbox.Max.Z)/2,
		}
		rec := t.cache.Acquire()
		for _, a := range left.atoms {
			rec.Coords[a] = lc.Coords[a]
		}
		for _, a := range right.atoms {
			rec.Coords[a] = r3.Add(rc.Coords[a], shift)
		}
		e := lc.Energy + rc.Energy + n.terms.Energy(rec.Coords)
		if t.opts.EnergyWindow > 0 && e > best+t.opts.EnergyWindow {
			t.cache.Release(rec)
			break
		}
		rec.Energy = e
		n.conformers = append(n.conformers, rec)
		best = math.Min(best, e)
	}
	return conformer.Success
}

// drive samples the torsion angles at the split bond for every pair of child
// conformers. Without candidate angles the children are paired by index and
// joined without rotation.
func (n *Node) drive(left, right *Node) conformer.ReturnCode {
	t := n.tree
	a, b := n.splitAtoms[0], n.splitAtoms[1]
	lframes := left.alignedFrames(a, b, n.torsionRefs[0], false)
	rframes := right.alignedFrames(b, a, n.torsionRefs[1], true)
	placeRight := n.rightSourced(left, right)

	window := t.opts.EnergyWindow
	best := math.Inf(1)
	var fallback *conformer.Record
	defer func() {
		if fallback == nil {
			return
		}
		if len(n.conformers) == 0 {
			n.conformers = append(n.conformers, fallback)
		} else {
			t.cache.Release(fallback)
		}
	}()

	// try assembles one combination and reports whether the window rejected it.
	try := func(li, ri int, phi float64) bool {
		lc, rc := left.conformers[li], right.conformers[ri]
		rec := t.cache.Acquire()
		n.assemble(rec, lc, &lframes[li], &rframes[ri], placeRight, phi)
		e := lc.Energy + rc.Energy + n.terms.Energy(rec.Coords)
		rec.Energy = e
		if n.clashes(rec.Coords) {
			if fallback == nil || e < fallback.Energy {
				if fallback != nil {
					t.cache.Release(fallback)
				}
				fallback = rec
			} else {
				t.cache.Release(rec)
			}
			return false
		}
		if window > 0 && e > best+window {
			t.cache.Release(rec)
			return true
		}
		n.conformers = append(n.conformers, rec)
		best = math.Min(best, e)
		return false
	}

	if len(n.angles) == 0 {
		nl, nr := len(left.conformers), len(right.conformers)
		for i := 0; i < max(nl, nr); i++ {
			if rc := t.check(); rc != conformer.Success {
				return rc
			}
			if try(min(i, nl-1), min(i, nr-1), 0) {
				break
			}
		}
		return conformer.Success
	}

	for li := range left.conformers {
		if rc := t.check(); rc != conformer.Success {
			return rc
		}
		for ri := range right.conformers {
			for _, phi := range n.rotations(left, right, &lframes[li], &rframes[ri]) {
				try(li, ri, phi)
			}
		}
		if t.opts.MaxPoolSize > 0 && len(n.conformers) > pruneFactor*t.opts.MaxPoolSize {
			n.trim()
		}
	}
	return conformer.Success
}

// rotations converts the candidate angles into rotations about the frame
// axis for one conformer pair, in radians. Angles defined against reference
// atoms other than the frame references are shifted by the references'
// azimuths. Rotations within 1° of an earlier one are dropped.
func (n *Node) rotations(left, right *Node, lf, rf *frame) []float64 {
	out := make([]float64, 0, len(n.angles))
	seen := make([]float64, 0, len(n.angles))
	for _, ang := range n.angles {
		deg := ang.Degrees + azimuth(left, lf, ang.Ref1) - azimuth(right, rf, ang.Ref2)
		deg = molecule.NormalizeDegrees(deg)
		dup := false
		for _, s := range seen {
			if molecule.AngularDistanceDegrees(s, deg) < 1 {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		seen = append(seen, deg)
		out = append(out, molecule.Deg2Rad(deg))
	}
	return out
}

// azimuth returns the angle (degrees) of atom about the frame's x axis,
// measured from +y towards +z. Unknown atoms have azimuth 0.
func azimuth(side *Node, f *frame, atom int) float64 {
	if atom < 0 {
		return 0
	}
	i := sort.SearchInts(side.atoms, atom)
	if i >= len(side.atoms) || side.atoms[i] != atom {
		return 0
	}
	p := f.local[i]
	if p.Y*p.Y+p.Z*p.Z < collinearEps {
		return 0
	}
	return molecule.Rad2Deg(math.Atan2(p.Z, p.Y))
}

// rightSourced marks, aligned with the node's atoms, which positions come
// from the right child: its core atoms, and atoms only the right child knows.
func (n *Node) rightSourced(left, right *Node) []bool {
	out := make([]bool, len(n.atoms))
	for i, a := range n.atoms {
		u := uint(a)
		switch {
		case right.coreMask.Test(u):
			out[i] = true
		case left.coreMask.Test(u), left.atomMask.Test(u):
			out[i] = false
		default:
			out[i] = true
		}
	}
	return out
}

// assemble writes the combination of lc and the right conformer rotated by
// phi into rec.
func (n *Node) assemble(rec, lc *conformer.Record, lf, rf *frame, placeRight []bool, phi float64) {
	right := n.tree.nodes[n.right]
	rot := r3.NewRotation(phi, r3.Vec{X: 1})
	offset := r3.Vec{X: lf.bondLen}
	for i, a := range n.atoms {
		if !placeRight[i] {
			rec.Coords[a] = lc.Coords[a]
			continue
		}
		j := sort.SearchInts(right.atoms, a)
		q := r3.Add(rot.Rotate(rf.local[j]), offset)
		rec.Coords[a] = lf.toWorld(q)
	}
}

// clashes reports whether any checked left/right core atom pair is closer
// than the sum of their clash radii.
func (n *Node) clashes(coords []r3.Vec) bool {
	t := n.tree
	if !n.clashReady {
		n.buildClashPairs()
	}
	for _, p := range n.clashPairs {
		lim := t.clashRadius[p[0]] + t.clashRadius[p[1]]
		d := r3.Sub(coords[p[0]], coords[p[1]])
		if r3.Dot(d, d) < lim*lim {
			return true
		}
	}
	return false
}

func (n *Node) buildClashPairs() {
	t := n.tree
	left, right := t.nodes[n.left], t.nodes[n.right]
	n.clashPairs = n.clashPairs[:0]
	for i, ok := left.coreMask.NextSet(0); ok; i, ok = left.coreMask.NextSet(i + 1) {
		for j, ok := right.coreMask.NextSet(0); ok; j, ok = right.coreMask.NextSet(j + 1) {
			if t.mol.TopologicalDistance(int(i), int(j)) >= clashMinTopoDistance {
				n.clashPairs = append(n.clashPairs, [2]int{int(i), int(j)})
			}
		}
	}
	n.clashReady = true
}

// trim drops entries above the window, then sorts and caps the pool.
func (n *Node) trim() {
	t := n.tree
	if len(n.conformers) == 0 {
		return
	}
	if w := t.opts.EnergyWindow; w > 0 {
		emin := math.Inf(1)
		for _, c := range n.conformers {
			emin = math.Min(emin, c.Energy)
		}
		kept := n.conformers[:0]
		for _, c := range n.conformers {
			if c.Energy <= emin+w {
				kept = append(kept, c)
			} else {
				t.cache.Release(c)
			}
		}
		n.conformers = kept
	}
	if limit := t.opts.MaxPoolSize; limit > 0 && len(n.conformers) > limit {
		sortByEnergy(n.conformers)
		t.cache.ReleaseAll(n.conformers[limit:])
		n.conformers = n.conformers[:limit]
		n.sorted = true
		return
	}
	n.sorted = false
}

// ─────────────────────────────────────────────────────────────────────────────
// Alignment frames
// ─────────────────────────────────────────────────────────────────────────────

// alignedFrames returns the alignment frame of every conformer of n, rebuilt
// only when the pool changed. origin is the split-bond atom on n's side and
// partner the atom across the bond. The x axis points from origin to partner,
// or away from it when reversed.
func (n *Node) alignedFrames(origin, partner, ref int, reversed bool) []frame {
	if !n.changed && len(n.frames) == len(n.conformers) {
		return n.frames
	}
	n.frames = make([]frame, len(n.conformers))
	for i, c := range n.conformers {
		n.frames[i] = n.buildFrame(c.Coords, origin, partner, ref, reversed)
	}
	return n.frames
}

func (n *Node) buildFrame(coords []r3.Vec, origin, partner, ref int, reversed bool) frame {
	o := coords[origin]
	axis := r3.Sub(coords[partner], o)
	f := frame{origin: o, bondLen: r3.Norm(axis)}
	if f.bondLen == 0 {
		axis = r3.Vec{X: 1}
	}
	f.x = r3.Unit(axis)
	if reversed {
		f.x = r3.Scale(-1, f.x)
	}

	y, ok := n.perpendicularTowards(coords, f, ref)
	if !ok {
		for _, nb := range n.tree.mol.Neighbors(origin) {
			if nb.Atom == partner || !n.atomMask.Test(uint(nb.Atom)) {
				continue
			}
			if y, ok = n.perpendicularTowards(coords, f, nb.Atom); ok {
				break
			}
		}
	}
	if !ok {
		for _, a := range n.atoms {
			if a == origin || a == partner {
				continue
			}
			if y, ok = n.perpendicularTowards(coords, f, a); ok {
				break
			}
		}
	}
	if !ok {
		y = molecule.Perpendicular(f.x)
	}
	f.y = y
	f.z = r3.Cross(f.x, f.y)

	f.local = make([]r3.Vec, len(n.atoms))
	for i, a := range n.atoms {
		f.local[i] = f.toLocal(coords[a])
	}
	return f
}

// perpendicularTowards returns the unit component of atom's position
// (relative to the frame origin) orthogonal to the frame axis.
func (n *Node) perpendicularTowards(coords []r3.Vec, f frame, atom int) (r3.Vec, bool) {
	if atom < 0 || !n.atomMask.Test(uint(atom)) {
		return r3.Vec{}, false
	}
	v := r3.Sub(coords[atom], f.origin)
	v = r3.Sub(v, r3.Scale(r3.Dot(v, f.x), f.x))
	if r3.Dot(v, v) < collinearEps {
		return r3.Vec{}, false
	}
	return r3.Unit(v), true
}

//Personal.AI order the ending
