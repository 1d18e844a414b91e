// Package fragconf supplies conformer pools for the rigid fragments a
// molecule is cut into: input geometry where usable, embedded structures
// otherwise, with ring conformer enumeration and nitrogen invertomers.
package fragconf

import (
	"context"
	"hash/fnv"
	"math/rand"
	"sort"

	"github.com/bits-and-blooms/bitset"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/molinfo-vienna/CDPKit-sub014/internal/domain/conformer"
	"github.com/molinfo-vienna/CDPKit-sub014/internal/domain/molecule"
	"github.com/molinfo-vienna/CDPKit-sub014/internal/infrastructure/monitoring/logging"
	"github.com/molinfo-vienna/CDPKit-sub014/internal/intelligence/embedding"
	"github.com/molinfo-vienna/CDPKit-sub014/internal/intelligence/forcefield"
	"github.com/molinfo-vienna/CDPKit-sub014/internal/intelligence/selector"
)

// DefaultRingTrials is the number of embeddings tried for a ring fragment.
const DefaultRingTrials = 12

// Request describes one fragment of a molecule.
type Request struct {
	// Mol is the whole molecule.
	Mol *molecule.Molecule
	// Atoms are the fragment's global atom indices, including link atoms
	// across cut bonds.
	Atoms []int
	// FF holds the whole molecule's interaction terms; terms reaching outside
	// the fragment are ignored.
	FF *forcefield.InteractionData
	// Seed makes embedding reproducible.
	Seed int64
	// Control is polled between embeddings. May be nil.
	Control *conformer.Control
}

// Pool is the service's answer: conformers with coordinates aligned to Atoms
// (ascending global indices).
type Pool struct {
	Atoms      []int
	Conformers []conformer.Data
	// FromInput reports that the input geometry was among the candidates.
	FromInput bool
}

// Service generates fragment conformer pools.
type Service interface {
	Generate(ctx context.Context, req Request) (*Pool, conformer.ReturnCode)
}

// Options controls a Generator.
type Options struct {
	MaxPoolSize                  int
	EnergyWindow                 float64
	MinRMSD                      float64
	EnumerateRings               bool
	EnumerateNitrogenInvertomers bool
	GenerateFromScratch          bool
	RingTrials                   int
	Embedding                    embedding.Options
}

// OptionsFromSettings derives fragment generation options from run settings.
func OptionsFromSettings(s conformer.Settings) Options {
	emb := embedding.DefaultOptions()
	if s.MaxNumRefinementIterations > 0 {
		emb.MinimizeIterations = s.MaxNumRefinementIterations
	}
	if s.RefinementTolerance > 0 {
		emb.GradientTolerance = s.RefinementTolerance
	}
	return Options{
		MaxPoolSize:                  s.MaxFragmentPoolSize,
		EnergyWindow:                 s.EnergyWindow,
		MinRMSD:                      s.MinRMSD,
		EnumerateRings:               s.EnumerateRings,
		EnumerateNitrogenInvertomers: s.EnumerateNitrogenInvertomers,
		GenerateFromScratch:          s.GenerateCoordinatesFromScratch,
		RingTrials:                   DefaultRingTrials,
		Embedding:                    emb,
	}
}

// Generator is the default Service.
type Generator struct {
	opts   Options
	logger logging.Logger
}

// NewGenerator returns a Generator.
func NewGenerator(opts Options, logger logging.Logger) *Generator {
	if opts.MaxPoolSize <= 0 {
		opts.MaxPoolSize = conformer.DefaultMaxFragmentPoolSize
	}
	if opts.RingTrials <= 0 {
		opts.RingTrials = DefaultRingTrials
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Generator{opts: opts, logger: logger.Named("fragconf")}
}

// SeedFor derives a per-fragment seed from a run seed and the fragment atoms.
func SeedFor(base int64, atoms []int) int64 {
	h := fnv.New64a()
	var buf [8]byte
	for _, a := range atoms {
		for i := range buf {
			buf[i] = byte(a >> (8 * i))
		}
		h.Write(buf[:])
	}
	return base ^ int64(h.Sum64()&0x7fffffffffffffff)
}

// Generate returns the conformer pool of req's fragment, lowest energy first.
func (g *Generator) Generate(ctx context.Context, req Request) (*Pool, conformer.ReturnCode) {
	ctrl := req.Control
	if ctrl == nil {
		ctrl = conformer.NewControl(ctx, nil, 0)
	}
	if rc := ctrl.Check(); rc != conformer.Success {
		return nil, rc
	}
	if len(req.Atoms) == 0 {
		return &Pool{}, conformer.Success
	}

	sub, atoms := req.Mol.Extract(req.Atoms)
	ff := LocalTerms(req.FF, req.Mol.AtomCount(), atoms)
	pool := &Pool{Atoms: atoms}
	log := g.logger.With(logging.Int("atoms", len(atoms)), logging.Int("first_atom", atoms[0]))

	var cands []conformer.Data
	if !g.opts.GenerateFromScratch && sub.Has3D && sub.HasHeavyAtomCoordinates() {
		c, err := g.fromInput(sub, ff, req.Seed)
		if err != nil {
			log.Debug("input geometry not usable", logging.Err(err))
		} else {
			cands = append(cands, c)
			pool.FromInput = true
		}
	}

	trials := 0
	switch {
	case len(sub.Rings()) > 0 && g.opts.EnumerateRings:
		trials = g.opts.RingTrials
	case len(cands) == 0:
		trials = 1
	}
	if trials > 0 {
		emb, err := embedding.New(sub, ff, g.opts.Embedding)
		if err != nil {
			log.Warn("cannot set up embedding", logging.Err(err))
			return pool, conformer.ConfGenFailed
		}
		rng := rand.New(rand.NewSource(req.Seed))
		failures := 0
		for i := 0; i < trials; i++ {
			if rc := ctrl.Check(); rc != conformer.Success {
				pool.Conformers = g.finish(sub, cands)
				return pool, rc
			}
			coords, energy, err := emb.Embed(rng)
			if err != nil {
				failures++
				continue
			}
			cands = append(cands, conformer.Data{Coords: coords, Energy: energy})
		}
		if failures > 0 {
			log.Debug("embedding trials failed", logging.Int("failed", failures), logging.Int("trials", trials))
		}
	}

	if g.opts.EnumerateNitrogenInvertomers && len(sub.AtomStereo) == 0 && hasInvertibleNitrogen(sub) {
		n := len(cands)
		for _, c := range cands[:n] {
			cands = append(cands, mirrored(c))
		}
	}

	pool.Conformers = g.finish(sub, cands)
	if len(pool.Conformers) == 0 {
		log.Warn("no fragment conformer generated")
		return pool, conformer.ConfGenFailed
	}
	log.Debug("fragment pool ready", logging.Int("conformers", len(pool.Conformers)), logging.Bool("from_input", pool.FromInput))
	return pool, conformer.Success
}

// fromInput completes missing input positions and scores the structure.
func (g *Generator) fromInput(sub *molecule.Molecule, ff *forcefield.InteractionData, seed int64) (conformer.Data, error) {
	coords := sub.CoordinatesCopy()
	if sub.HasCoordinates() {
		return conformer.Data{Coords: coords, Energy: ff.Energy(coords)}, nil
	}
	known := bitset.New(uint(sub.AtomCount())).Union(sub.CoordMask)
	energy, err := embedding.NewCompleter(sub, ff, g.opts.Embedding).Complete(coords, known, rand.New(rand.NewSource(seed)))
	if err != nil {
		return conformer.Data{}, err
	}
	return conformer.Data{Coords: coords, Energy: energy}, nil
}

// finish sorts by energy, applies the window, removes duplicates and caps.
func (g *Generator) finish(sub *molecule.Molecule, cands []conformer.Data) []conformer.Data {
	if len(cands) == 0 {
		return nil
	}
	sel := selector.New(sub, selector.Options{MinRMSD: g.opts.MinRMSD})
	sorted := append([]conformer.Data(nil), cands...)
	sort.SliceStable(sorted, func(i, j int) bool { return conformer.ByEnergy(sorted[i].Energy, sorted[j].Energy) })
	return sel.Select(nil, sorted, g.opts.MaxPoolSize, g.opts.EnergyWindow)
}

// LocalTerms re-indexes the whole-molecule terms onto the extracted fragment.
func LocalTerms(ff *forcefield.InteractionData, numAtoms int, atoms []int) *forcefield.InteractionData {
	if ff == nil {
		return nil
	}
	index := make([]int, numAtoms)
	for i := range index {
		index[i] = -1
	}
	for local, global := range atoms {
		index[global] = local
	}
	return ff.Remap(index)
}

func hasInvertibleNitrogen(m *molecule.Molecule) bool {
	for i := range m.Atoms {
		if m.IsInvertibleNitrogen(i) && !m.IsRingAtom(i) {
			return true
		}
	}
	return false
}

func mirrored(c conformer.Data) conformer.Data {
	out := c.Clone()
	for i := range out.Coords {
		out.Coords[i] = r3.Vec{X: out.Coords[i].X, Y: out.Coords[i].Y, Z: -out.Coords[i].Z}
	}
	return out
}

//Personal.AI order the ending
