package confgen

import (
	"math"
	"sort"

	"github.com/samber/lo"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/molinfo-vienna/CDPKit-sub014/internal/domain/conformer"
	"github.com/molinfo-vienna/CDPKit-sub014/internal/domain/molecule"
	"github.com/molinfo-vienna/CDPKit-sub014/internal/infrastructure/monitoring/logging"
	"github.com/molinfo-vienna/CDPKit-sub014/internal/intelligence/fragconf"
	"github.com/molinfo-vienna/CDPKit-sub014/internal/intelligence/fragtree"
)

// combinationWindowFactor widens the energy window used to prune fragment
// conformer combinations.
const combinationWindowFactor = 2.0

// enumerationCheckInterval is the number of enumeration steps between polls
// of the run control.
const enumerationCheckInterval = 64

// leafPool is a leaf's fragment conformers ordered by the leaf's own energy.
type leafPool struct {
	leaf     *fragtree.Node
	coords   [][]r3.Vec
	energies []float64
}

// systematic cuts the component at its rotatable bonds, fills the leaves from
// the fragment service and enumerates leaf conformer combinations depth-first.
func (r *run) systematic(comp []int, log logging.Logger) ([]conformer.Data, conformer.ReturnCode) {
	frag := r.mol.FragmentOf(comp)
	rotors := r.mol.RotatableBonds(molecule.RotorOptions{HeteroAtomHydrogens: r.s.SampleHeteroAtomHydrogens})

	tree := fragtree.New(r.mol,
		fragtree.WithOptions(fragtree.Options{EnergyWindow: r.s.EnergyWindow, MaxPoolSize: r.s.MaxPoolSize}),
		fragtree.WithControl(r.ctrl),
		fragtree.WithLogger(log))
	defer r.closeTree(tree)
	if err := tree.Build(frag, rotors, r.ff); err != nil {
		log.Error("cannot build fragment tree", logging.Err(err))
		return nil, conformer.ConfGenFailed
	}
	tree.AssignTorsionAngles(r.g.angles)

	pools, rc := r.leafPools(tree, log)
	if rc != conformer.Success {
		return nil, rc
	}
	log.Debug("fragment pools ready",
		logging.Int("leaves", len(pools)),
		logging.Any("pool_sizes", lo.Map(pools, func(p *leafPool, _ int) int { return len(p.coords) })))

	c := &collector{window: r.s.EnergyWindow, max: r.s.MaxPoolSize, emin: math.Inf(1)}
	rc = r.enumerate(tree, pools, c, log)
	return c.result(), rc
}

// leafPools asks the fragment service for every leaf's conformers.
func (r *run) leafPools(tree *fragtree.Tree, log logging.Logger) ([]*leafPool, conformer.ReturnCode) {
	seed := r.seed()
	scratch := make([]r3.Vec, r.mol.AtomCount())
	var pools []*leafPool
	for _, leaf := range tree.Leaves() {
		atoms := leaf.Atoms()
		pool, rc := r.g.fragments.Generate(r.ctrl.Context(), fragconf.Request{
			Mol:     r.mol,
			Atoms:   atoms,
			FF:      r.ff,
			Seed:    fragconf.SeedFor(seed, atoms),
			Control: r.ctrl,
		})
		if rc != conformer.Success {
			log.Warn("fragment conformer generation failed", logging.Stringer("status", rc), logging.Int("first_atom", atoms[0]))
			return nil, rc
		}
		if len(pool.Conformers) == 0 {
			return nil, conformer.ConfGenFailed
		}

		lp := &leafPool{leaf: leaf}
		for _, c := range pool.Conformers {
			for k, a := range atoms {
				scratch[a] = c.Coords[k]
			}
			lp.coords = append(lp.coords, c.Coords)
			lp.energies = append(lp.energies, leaf.Terms().Energy(scratch))
		}
		order := lo.Range(len(lp.coords))
		sort.SliceStable(order, func(i, j int) bool { return conformer.ByEnergy(lp.energies[order[i]], lp.energies[order[j]]) })
		lp.coords = lo.Map(order, func(i, _ int) []r3.Vec { return lp.coords[i] })
		lp.energies = lo.Map(order, func(i, _ int) float64 { return lp.energies[i] })
		pools = append(pools, lp)
	}
	return pools, conformer.Success
}

// enumerate walks leaf conformer index tuples in lexicographic order with an
// explicit stack. A branch is cut once its partial energy plus the best
// energies of the remaining leaves exceeds the best tuple energy by more than
// the widened window.
func (r *run) enumerate(tree *fragtree.Tree, pools []*leafPool, c *collector, log logging.Logger) conformer.ReturnCode {
	n := len(pools)
	suffixMin := make([]float64, n+1)
	for i := n - 1; i >= 0; i-- {
		suffixMin[i] = suffixMin[i+1] + pools[i].energies[0]
	}
	bound := combinationWindowFactor * r.s.EnergyWindow

	type level struct {
		next    int
		partial float64
	}
	stack := []level{{}}
	choice := make([]int, n)
	current := lo.Times(n, func(int) int { return -1 })
	best := math.Inf(1)
	combos := 0
	defer func() { r.g.metrics.AddFragmentCombinations(combos) }()

	for step := 1; len(stack) > 0; step++ {
		if step%enumerationCheckInterval == 0 {
			if rc := r.ctrl.Check(); rc != conformer.Success {
				log.Debug("fragment combination enumeration interrupted", logging.Stringer("status", rc), logging.Int("combinations", combos))
				return rc
			}
		}
		depth := len(stack) - 1
		top := &stack[depth]
		if top.next >= len(pools[depth].energies) {
			stack = stack[:depth]
			continue
		}
		k := top.next
		top.next++
		e := top.partial + pools[depth].energies[k]
		if !math.IsInf(best, 1) && e+suffixMin[depth+1] > best+bound {
			// Later entries of this leaf are no better.
			stack = stack[:depth]
			continue
		}
		choice[depth] = k
		if depth < n-1 {
			stack = append(stack, level{partial: e})
			continue
		}

		best = math.Min(best, e)
		combos++
		if rc := r.assemble(tree, pools, choice, current, c); rc != conformer.Success {
			if rc.Interrupted() {
				return rc
			}
			log.Debug("combination failed", logging.Stringer("status", rc), logging.Any("tuple", choice))
		}
		if r.s.MaxFragmentCombinations > 0 && combos >= r.s.MaxFragmentCombinations {
			log.Debug("fragment combination limit reached", logging.Int("combinations", combos))
			break
		}
	}
	if c.size() == 0 {
		return conformer.TorsionDrivingFailed
	}
	return conformer.Success
}

// assemble loads one tuple into the tree, reusing leaves that did not change,
// and collects the root conformers.
func (r *run) assemble(tree *fragtree.Tree, pools []*leafPool, choice, current []int, c *collector) conformer.ReturnCode {
	for i, p := range pools {
		if current[i] != choice[i] {
			tree.ClearConformersForAtoms(p.leaf.CoreMask())
		}
	}
	for i, p := range pools {
		if p.leaf.NumConformers() > 0 && current[i] == choice[i] {
			continue
		}
		if err := p.leaf.AddConformer(p.coords[choice[i]]); err != nil {
			r.log.Error("cannot load fragment conformer", logging.Err(err))
			return conformer.ConfGenFailed
		}
		current[i] = choice[i]
	}
	rc := tree.GenerateConformers(true)
	if rc == conformer.Success || rc == conformer.Timeout {
		for _, rec := range tree.Conformers() {
			c.add(rec)
		}
	}
	return rc
}

// ─────────────────────────────────────────────────────────────────────────────
// Candidate collection
// ─────────────────────────────────────────────────────────────────────────────

// collector keeps whole-molecule candidates within the window of the lowest
// energy seen, capped at max entries.
type collector struct {
	window float64
	max    int
	emin   float64
	items  []conformer.Data
}

func (c *collector) add(rec *conformer.Record) {
	if math.IsNaN(rec.Energy) {
		return
	}
	if c.window > 0 && rec.Energy > c.emin+c.window {
		return
	}
	c.items = append(c.items, rec.Detach())
	if rec.Energy < c.emin {
		c.emin = rec.Energy
		c.tighten()
	}
	if c.max > 0 && len(c.items) > 2*c.max {
		c.truncate()
	}
}

func (c *collector) tighten() {
	if c.window <= 0 {
		return
	}
	c.items = lo.Filter(c.items, func(d conformer.Data, _ int) bool { return d.Energy <= c.emin+c.window })
}

func (c *collector) truncate() {
	sort.SliceStable(c.items, func(i, j int) bool { return conformer.ByEnergy(c.items[i].Energy, c.items[j].Energy) })
	if c.max > 0 && len(c.items) > c.max {
		c.items = c.items[:c.max]
	}
}

func (c *collector) size() int { return len(c.items) }

func (c *collector) result() []conformer.Data {
	c.tighten()
	c.truncate()
	return c.items
}

//Personal.AI order the ending
