// Package confgen is the conformer generation use case: it chooses between
// systematic fragment-tree sampling and stochastic embedding, handles
// multi-component molecules and selects a diverse, energy-ranked output.
package confgen

import (
	"context"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/molinfo-vienna/CDPKit-sub014/internal/domain/conformer"
	"github.com/molinfo-vienna/CDPKit-sub014/internal/domain/molecule"
	"github.com/molinfo-vienna/CDPKit-sub014/internal/infrastructure/monitoring/logging"
	"github.com/molinfo-vienna/CDPKit-sub014/internal/intelligence/embedding"
	"github.com/molinfo-vienna/CDPKit-sub014/internal/intelligence/forcefield"
	"github.com/molinfo-vienna/CDPKit-sub014/internal/intelligence/fragconf"
	"github.com/molinfo-vienna/CDPKit-sub014/internal/intelligence/fragtree"
	"github.com/molinfo-vienna/CDPKit-sub014/internal/intelligence/selector"
	"github.com/molinfo-vienna/CDPKit-sub014/internal/intelligence/torsion"
	"github.com/molinfo-vienna/CDPKit-sub014/pkg/errors"
)

// Metrics receives per-run observations. ConfGenMetrics in the prometheus
// package implements it.
type Metrics interface {
	ObserveRun(mode, status string, elapsed time.Duration, conformers int)
	AddFragmentCombinations(n int)
	AddSampledConformers(n int)
}

type noopMetrics struct{}

func (noopMetrics) ObserveRun(string, string, time.Duration, int) {}
func (noopMetrics) AddFragmentCombinations(int)                   {}
func (noopMetrics) AddSampledConformers(int)                      {}

// Result is the outcome of one run.
type Result struct {
	RunID    string
	Molecule string
	Status   conformer.ReturnCode
	// Mode is stochastic when any component was sampled stochastically.
	Mode       conformer.SamplingMode
	Conformers []conformer.Data
	// InputFallback reports that sampling produced nothing and the conformer
	// derived from the input coordinates was returned instead.
	InputFallback bool
	// NumCandidates counts the whole-molecule structures considered before
	// output selection.
	NumCandidates int
	Elapsed       time.Duration
}

// Generator runs conformer generation with fixed settings. A Generator may be
// shared; each Generate call is independent.
type Generator struct {
	settings  conformer.Settings
	ffConfig  forcefield.Config
	logger    logging.Logger
	metrics   Metrics
	angles    fragtree.AngleResolver
	params    forcefield.Parameterizer
	fragments fragconf.Service
}

// Option configures a Generator.
type Option func(*Generator)

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option { return func(g *Generator) { g.logger = l } }

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) Option { return func(g *Generator) { g.metrics = m } }

// WithAngleSource replaces the torsion angle source.
func WithAngleSource(a fragtree.AngleResolver) Option { return func(g *Generator) { g.angles = a } }

// WithParameterizer replaces the force field setup.
func WithParameterizer(p forcefield.Parameterizer) Option { return func(g *Generator) { g.params = p } }

// WithFragmentService replaces the fragment conformer service.
func WithFragmentService(s fragconf.Service) Option { return func(g *Generator) { g.fragments = s } }

// NewGenerator validates settings and returns a Generator.
func NewGenerator(settings conformer.Settings, opts ...Option) (*Generator, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	ffType, err := forcefield.ParseType(settings.ForceFieldType)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfGenSettingsInvalid, "invalid force field type")
	}
	g := &Generator{
		settings: settings,
		ffConfig: forcefield.Config{
			Type:               ffType,
			Strict:             settings.StrictForceFieldParameterization,
			DielectricConstant: settings.DielectricConstant,
			DistanceExponent:   settings.DistanceExponent,
		},
		logger:  logging.NewNopLogger(),
		metrics: noopMetrics{},
		params:  forcefield.NewParameterizer(),
	}
	for _, o := range opts {
		o(g)
	}
	g.logger = g.logger.Named("confgen")
	if g.angles == nil {
		g.angles = NewAngleSource(settings, g.logger)
	}
	if g.fragments == nil {
		g.fragments = fragconf.NewGenerator(fragconf.OptionsFromSettings(settings), g.logger)
	}
	return g, nil
}

// NewAngleSource builds the torsion angle source for settings. Without
// libraries the built-in rule set is used.
func NewAngleSource(settings conformer.Settings, logger logging.Logger, libs ...*torsion.Library) *torsion.AngleSource {
	opts := []torsion.SourceOption{torsion.WithLogger(logger)}
	if len(libs) > 0 {
		opts = append(opts, torsion.WithLibraries(libs...))
	}
	return torsion.NewAngleSource(torsion.Options{
		StopAtFirstCategory:   true,
		UniqueMappingsOnly:    true,
		SampleToleranceRanges: settings.SampleAngleToleranceRanges,
		AngleIncrement:        settings.DefaultAngleIncrement,
	}, opts...)
}

// LoadTorsionLibraries reads rule files in order. Unless replaceDefault is
// set the built-in library is appended as the final fallback.
func LoadTorsionLibraries(files []string, replaceDefault bool) ([]*torsion.Library, error) {
	libs := make([]*torsion.Library, 0, len(files)+1)
	for _, f := range files {
		lib, err := torsion.LoadLibrary(f)
		if err != nil {
			return nil, err
		}
		libs = append(libs, lib)
	}
	if !replaceDefault || len(libs) == 0 {
		libs = append(libs, torsion.DefaultLibrary())
	}
	return libs, nil
}

// Settings returns the run settings.
func (g *Generator) Settings() conformer.Settings { return g.settings }

// RunOption adjusts a single Generate call.
type RunOption func(*runOptions)

type runOptions struct {
	abort conformer.AbortFunc
	mode  conformer.SamplingMode
}

// WithAbort installs a callback polled at every loop boundary; returning
// true aborts the run.
func WithAbort(f conformer.AbortFunc) RunOption { return func(o *runOptions) { o.abort = f } }

// WithMode overrides the configured sampling mode.
func WithMode(m conformer.SamplingMode) RunOption { return func(o *runOptions) { o.mode = m } }

// Generate produces conformers of mol. Failures of the sampling itself are
// reported through Result.Status; the error is reserved for invalid input.
func (g *Generator) Generate(ctx context.Context, mol *molecule.Molecule, opts ...RunOption) (*Result, error) {
	if mol == nil {
		return nil, errors.InvalidParam("molecule is nil")
	}
	if err := mol.Validate(); err != nil {
		return nil, err
	}
	ro := runOptions{mode: g.settings.SamplingMode}
	for _, o := range opts {
		o(&ro)
	}

	start := time.Now()
	res := &Result{RunID: uuid.NewString(), Molecule: mol.Name, Mode: conformer.ModeSystematic}
	r := &run{
		g:    g,
		s:    g.settings,
		mol:  mol,
		mode: ro.mode,
		ctrl: conformer.NewControl(ctx, ro.abort, g.settings.Timeout),
		log:  g.logger.With(logging.RunID(res.RunID), logging.Molecule(mol.Name)),
	}
	r.execute(res)
	res.Elapsed = time.Since(start)

	g.metrics.ObserveRun(res.Mode.String(), res.Status.String(), res.Elapsed, len(res.Conformers))
	r.log.Info("conformer generation finished",
		logging.Stringer("status", res.Status),
		logging.Stringer("mode", res.Mode),
		logging.Int("conformers", len(res.Conformers)),
		logging.Int("candidates", res.NumCandidates),
		logging.Bool("input_fallback", res.InputFallback),
		logging.Duration("elapsed", res.Elapsed))
	return res, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Run
// ─────────────────────────────────────────────────────────────────────────────

// run holds the state of one Generate call.
type run struct {
	g    *Generator
	s    conformer.Settings
	mol  *molecule.Molecule
	mode conformer.SamplingMode
	ctrl *conformer.Control
	log  logging.Logger
	ff   *forcefield.InteractionData
}

func (r *run) execute(res *Result) {
	ff, err := r.g.params.Parameterize(r.mol, r.g.ffConfig)
	if err != nil {
		r.log.Warn("force field setup failed", logging.Err(err))
		res.Status = conformer.ForceFieldSetupFailed
		return
	}
	r.ff = ff
	if r.mol.AtomCount() == 0 {
		res.Status = conformer.ConfGenFailed
		return
	}

	input, haveInput := r.inputConformer()
	cands, status := r.sample(res)
	res.NumCandidates = len(cands)
	res.Status = status

	switch {
	case status == conformer.Aborted:
		return
	case len(cands) == 0 && haveInput:
		r.log.Info("no conformer sampled, returning input geometry", logging.Stringer("status", status))
		res.Conformers = []conformer.Data{input}
		res.InputFallback = true
		if !status.Interrupted() {
			res.Status = conformer.Success
		}
		return
	}
	var kept []conformer.Data
	if haveInput && r.s.IncludeInputCoordinates {
		kept = []conformer.Data{input}
	}
	res.Conformers = r.selectOutput(kept, cands)
}

// sample runs every component and composites the results.
func (r *run) sample(res *Result) ([]conformer.Data, conformer.ReturnCode) {
	comps := r.mol.Components()
	pools := make([][]conformer.Data, len(comps))
	status := conformer.Success
	for i, comp := range comps {
		mode := r.chooseMode(comp)
		if mode == conformer.ModeStochastic {
			res.Mode = conformer.ModeStochastic
		}
		log := r.log.With(logging.Int("component", i), logging.Int("atoms", len(comp)), logging.Stringer("mode", mode))
		log.Debug("sampling component")

		var rc conformer.ReturnCode
		if mode == conformer.ModeStochastic {
			pools[i], rc = r.stochastic(comp, log)
		} else {
			pools[i], rc = r.systematic(comp, log)
		}
		if rc != conformer.Success {
			log.Warn("component sampling incomplete", logging.Stringer("status", rc), logging.Int("conformers", len(pools[i])))
			if status == conformer.Success {
				status = rc
			}
			if rc.Interrupted() {
				break
			}
		}
	}

	if status == conformer.Aborted {
		return nil, status
	}
	for _, p := range pools {
		if len(p) == 0 {
			return nil, firstFailure(status)
		}
	}
	if len(comps) == 1 {
		return pools[0], status
	}
	cands, rc := r.composite(pools)
	if status == conformer.Success {
		status = rc
	}
	return cands, status
}

func firstFailure(status conformer.ReturnCode) conformer.ReturnCode {
	if status == conformer.Success {
		return conformer.ConfGenFailed
	}
	return status
}

// chooseMode applies the configured mode, resolving auto by the largest
// number of flexible ring bonds in any ring of the component.
func (r *run) chooseMode(comp []int) conformer.SamplingMode {
	if r.mode != conformer.ModeAuto {
		return r.mode
	}
	frag := r.mol.FragmentOf(comp)
	if r.mol.MaxRingFlexibleBondCount(frag.AtomMask()) > r.s.MacrocycleRotorBondCountThreshold {
		return conformer.ModeStochastic
	}
	return conformer.ModeSystematic
}

// composite lines the component conformers up side by side through a
// fragment tree without split bonds.
func (r *run) composite(pools [][]conformer.Data) ([]conformer.Data, conformer.ReturnCode) {
	tree := fragtree.New(r.mol,
		fragtree.WithOptions(fragtree.Options{EnergyWindow: r.s.EnergyWindow, MaxPoolSize: r.s.MaxPoolSize}),
		fragtree.WithControl(r.ctrl),
		fragtree.WithLogger(r.log))
	defer r.closeTree(tree)
	if err := tree.Build(r.mol.WholeFragment(), nil, r.ff); err != nil {
		r.log.Error("cannot build component tree", logging.Err(err))
		return nil, conformer.ConfGenFailed
	}
	for i, leaf := range tree.Leaves() {
		atoms := leaf.Atoms()
		buf := make([]r3.Vec, len(atoms))
		for _, c := range pools[i] {
			for k, a := range atoms {
				buf[k] = c.Coords[a]
			}
			if err := leaf.AddConformer(buf); err != nil {
				r.log.Error("cannot add component conformer", logging.Err(err))
				return nil, conformer.ConfGenFailed
			}
		}
	}
	rc := tree.GenerateConformers(true)
	return detachAll(tree.Conformers()), rc
}

func (r *run) closeTree(t *fragtree.Tree) {
	if err := t.Close(); err != nil {
		r.log.Error("record cache not drained", logging.Err(err))
	}
}

func detachAll(recs []*conformer.Record) []conformer.Data {
	out := make([]conformer.Data, len(recs))
	for i, rec := range recs {
		out[i] = rec.Detach()
	}
	return out
}

// inputConformer derives a conformer from the input coordinates, completing
// missing positions.
func (r *run) inputConformer() (conformer.Data, bool) {
	if !r.mol.Has3D || !r.mol.HasHeavyAtomCoordinates() {
		return conformer.Data{}, false
	}
	coords := r.mol.CoordinatesCopy()
	if r.mol.HasCoordinates() {
		return conformer.Data{Coords: coords, Energy: r.ff.Energy(coords)}, true
	}
	opts := embedding.DefaultOptions()
	opts.MinimizeIterations = r.s.MaxNumRefinementIterations
	opts.GradientTolerance = r.s.RefinementTolerance
	known := r.mol.CoordMask.Clone()
	energy, err := embedding.NewCompleter(r.mol, r.ff, opts).Complete(coords, known, rand.New(rand.NewSource(r.seed())))
	if err != nil {
		r.log.Debug("cannot complete input coordinates", logging.Err(err))
		return conformer.Data{}, false
	}
	return conformer.Data{Coords: coords, Energy: energy}, true
}

// seed returns the configured seed, or a clock-derived one for seed 0.
func (r *run) seed() int64 {
	if r.s.RandomSeed != 0 {
		return r.s.RandomSeed
	}
	return time.Now().UnixNano()
}

// selectOutput ranks candidates by energy and keeps a diverse subset.
func (r *run) selectOutput(kept, cands []conformer.Data) []conformer.Data {
	sel := selector.New(r.mol, selector.Options{MinRMSD: r.s.MinRMSD})
	return sel.Select(kept, cands, r.s.MaxNumOutputConformers, r.s.EnergyWindow)
}

//Personal.AI order the ending
