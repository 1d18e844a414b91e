package confgen

import (
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/molinfo-vienna/CDPKit-sub014/internal/domain/conformer"
	"github.com/molinfo-vienna/CDPKit-sub014/internal/infrastructure/monitoring/logging"
	"github.com/molinfo-vienna/CDPKit-sub014/internal/intelligence/embedding"
	"github.com/molinfo-vienna/CDPKit-sub014/internal/intelligence/fragconf"
	"github.com/molinfo-vienna/CDPKit-sub014/internal/intelligence/selector"
)

const (
	// stochasticTrials is the number of embedding attempts per sample.
	stochasticTrials = 3
	// maxConsecutiveFailures aborts stochastic sampling.
	maxConsecutiveFailures = 20
)

// stochastic samples the component by repeated random embedding until the
// yield of new unique conformers per cycle drops below the convergence ratio.
func (r *run) stochastic(comp []int, log logging.Logger) ([]conformer.Data, conformer.ReturnCode) {
	sub, atoms := r.mol.Extract(comp)
	ff := fragconf.LocalTerms(r.ff, r.mol.AtomCount(), atoms)

	opts := embedding.DefaultOptions()
	opts.MaxTrials = 1
	opts.MinimizeIterations = r.s.MaxNumRefinementIterations
	opts.GradientTolerance = r.s.RefinementTolerance
	emb, err := embedding.New(sub, ff, opts)
	if err != nil {
		log.Error("cannot set up embedding", logging.Err(err))
		return nil, conformer.ConfGenFailed
	}
	rng := rand.New(rand.NewSource(fragconf.SeedFor(r.seed(), atoms)))
	sel := selector.New(sub, selector.Options{MinRMSD: r.s.MinRMSD})
	window := r.s.EnergyWindow
	cycle := r.s.ConvergenceCheckCycleSize

	var pool []conformer.Data
	emin := math.Inf(1)
	failures, sampled, unique := 0, 0, 0
	status := conformer.Success

sampling:
	for r.s.MaxNumSampledConformers <= 0 || sampled < r.s.MaxNumSampledConformers {
		if rc := r.ctrl.Check(); rc != conformer.Success {
			status = rc
			break
		}
		var (
			coords []r3.Vec
			energy float64
			ok     bool
		)
		for trial := 0; trial < stochasticTrials && !ok; trial++ {
			coords, energy, err = emb.Embed(rng)
			ok = err == nil
		}
		sampled++
		if !ok {
			failures++
			if failures >= maxConsecutiveFailures {
				log.Warn("stochastic sampling gave up", logging.Int("consecutive_failures", failures), logging.Err(err))
				break
			}
			continue
		}
		failures = 0

		if energy < emin {
			emin = energy
			pool = withinWindow(pool, emin, window)
		}
		if window <= 0 || energy <= emin+window {
			pool = append(pool, conformer.Data{Coords: coords, Energy: energy})
		}

		if cycle > 0 && sampled%cycle == 0 {
			pool = dedup(sel, pool, window)
			gained := max(0, len(pool)-unique)
			unique = len(pool)
			ratio := float64(gained) / float64(cycle)
			log.Debug("convergence check", logging.Int("sampled", sampled), logging.Int("unique", unique), logging.Float64("ratio", ratio))
			if ratio < r.s.ConvergenceRatio {
				break sampling
			}
		}
	}
	r.g.metrics.AddSampledConformers(sampled)

	if status == conformer.Aborted {
		return nil, status
	}
	pool = dedup(sel, pool, window)
	if r.s.MaxPoolSize > 0 && len(pool) > r.s.MaxPoolSize {
		pool = pool[:r.s.MaxPoolSize]
	}
	log.Debug("stochastic sampling done", logging.Int("sampled", sampled), logging.Int("conformers", len(pool)))
	if len(pool) == 0 && status == conformer.Success {
		status = conformer.ConfGenFailed
	}
	return r.toGlobal(pool, atoms), status
}

func withinWindow(pool []conformer.Data, emin, window float64) []conformer.Data {
	if window <= 0 {
		return pool
	}
	kept := pool[:0]
	for _, d := range pool {
		if d.Energy <= emin+window {
			kept = append(kept, d)
		}
	}
	return kept
}

// dedup sorts by energy and drops RMSD duplicates of lower-energy entries.
func dedup(sel *selector.Selector, pool []conformer.Data, window float64) []conformer.Data {
	sort.SliceStable(pool, func(i, j int) bool { return conformer.ByEnergy(pool[i].Energy, pool[j].Energy) })
	return sel.Select(nil, pool, 0, window)
}

// toGlobal expands coordinates of the extracted component to the whole
// molecule's atom indexing.
func (r *run) toGlobal(pool []conformer.Data, atoms []int) []conformer.Data {
	out := make([]conformer.Data, len(pool))
	for i, d := range pool {
		coords := make([]r3.Vec, r.mol.AtomCount())
		for k, a := range atoms {
			coords[a] = d.Coords[k]
		}
		out[i] = conformer.Data{Coords: coords, Energy: d.Energy}
	}
	return out
}

//Personal.AI order the ending
