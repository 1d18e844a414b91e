package embedding

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/molinfo-vienna/CDPKit-sub014/internal/domain/molecule"
	"github.com/molinfo-vienna/CDPKit-sub014/internal/intelligence/forcefield"
	"github.com/molinfo-vienna/CDPKit-sub014/pkg/errors"
)

// Defaults.
const (
	DefaultMaxTrials          = 10
	DefaultRefineIterations   = 300
	DefaultMinimizeIterations = 500
	DefaultGradientTolerance  = 0.01

	// minChiralVolume is the signed volume target for stereo centres.
	minChiralVolume = 0.5
	chiralWeight    = 1.0
)

// ErrEmbeddingFailed is returned when no trial produced a valid structure.
var ErrEmbeddingFailed = errors.New(errors.ErrCodeConfGenEmbeddingFailed, "coordinate embedding failed")

// Options controls an Embedder.
type Options struct {
	// MaxTrials bounds attempts per Embed call.
	MaxTrials int
	// RefineIterations bounds the error-function refinement.
	RefineIterations int
	// MinimizeIterations bounds the force-field minimisation; 0 disables it.
	MinimizeIterations int
	GradientTolerance  float64
}

// DefaultOptions returns the standard embedding options.
func DefaultOptions() Options {
	return Options{
		MaxTrials:          DefaultMaxTrials,
		RefineIterations:   DefaultRefineIterations,
		MinimizeIterations: DefaultMinimizeIterations,
		GradientTolerance:  DefaultGradientTolerance,
	}
}

type chiralConstraint struct {
	center int
	refs   [3]int
	parity float64
}

// Embedder produces random 3D structures of one molecule. It is not safe for
// concurrent use.
type Embedder struct {
	mol    *molecule.Molecule
	ff     *forcefield.InteractionData
	bounds *Bounds
	chiral []chiralConstraint
	opts   Options
}

// New prepares an Embedder. ff may be nil, in which case structures are only
// refined against the distance bounds.
func New(mol *molecule.Molecule, ff *forcefield.InteractionData, opts Options) (*Embedder, error) {
	if err := mol.Validate(); err != nil {
		return nil, err
	}
	if opts.MaxTrials <= 0 {
		opts.MaxTrials = DefaultMaxTrials
	}
	if opts.RefineIterations <= 0 {
		opts.RefineIterations = DefaultRefineIterations
	}
	if opts.GradientTolerance <= 0 {
		opts.GradientTolerance = DefaultGradientTolerance
	}
	e := &Embedder{mol: mol, ff: ff, bounds: BuildBounds(mol), opts: opts}
	for _, s := range mol.AtomStereo {
		e.chiral = append(e.chiral, chiralConstraint{center: s.Center, refs: s.Refs, parity: float64(s.Parity)})
	}
	return e, nil
}

// Bounds returns the smoothed distance bounds.
func (e *Embedder) Bounds() *Bounds { return e.bounds }

// Embed returns new coordinates and their force-field energy (0 without a
// force field).
func (e *Embedder) Embed(rng *rand.Rand) ([]r3.Vec, float64, error) {
	n := e.mol.AtomCount()
	if n == 1 {
		return []r3.Vec{{}}, e.ff.Energy([]r3.Vec{{}}), nil
	}
	var lastErr error
	for trial := 0; trial < e.opts.MaxTrials; trial++ {
		coords, err := e.trial(rng)
		if err != nil {
			lastErr = err
			continue
		}
		energy := e.ff.Energy(coords)
		if e.ff != nil && e.opts.MinimizeIterations > 0 {
			energy, err = forcefield.Minimize(e.ff, coords, forcefield.MinimizeOptions{
				MaxIterations:     e.opts.MinimizeIterations,
				GradientTolerance: e.opts.GradientTolerance,
			})
			if err != nil {
				lastErr = err
				continue
			}
		}
		if !e.mol.StereoSatisfied(coords) || math.IsNaN(energy) || math.IsInf(energy, 0) {
			lastErr = errors.New(errors.ErrCodeConfGenEmbeddingFailed, "stereo violated after minimisation")
			continue
		}
		return coords, energy, nil
	}
	if lastErr == nil {
		return nil, 0, ErrEmbeddingFailed
	}
	return nil, 0, errors.Wrap(lastErr, errors.ErrCodeConfGenEmbeddingFailed, "coordinate embedding failed").
		WithDetailf("%s after %d trials", e.mol.Name, e.opts.MaxTrials)
}

func (e *Embedder) trial(rng *rand.Rand) ([]r3.Vec, error) {
	coords, err := e.metricEmbed(rng)
	if err != nil {
		return nil, err
	}
	e.refine(coords)
	if len(e.chiral) > 0 {
		if e.chiralSatisfied(coords)*2 < len(e.chiral) {
			for i := range coords {
				coords[i].Z = -coords[i].Z
			}
			e.refine(coords)
		}
		if e.chiralSatisfied(coords) != len(e.chiral) {
			return nil, errors.New(errors.ErrCodeConfGenEmbeddingFailed, "chiral constraints violated")
		}
	}
	return coords, nil
}

func (e *Embedder) chiralSatisfied(coords []r3.Vec) int {
	ok := 0
	for _, c := range e.chiral {
		v := molecule.SignedVolume(coords[c.center], coords[c.refs[0]], coords[c.refs[1]], coords[c.refs[2]])
		if v*c.parity > 0 {
			ok++
		}
	}
	return ok
}

// metricEmbed samples a distance matrix within the bounds and projects its
// metric matrix onto the three largest eigenvectors.
func (e *Embedder) metricEmbed(rng *rand.Rand) ([]r3.Vec, error) {
	n := e.bounds.n
	d2 := make([]float64, n*n)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			lo, hi := e.bounds.Lower(i, j), e.bounds.Upper(i, j)
			d := lo + rng.Float64()*(hi-lo)
			d2[i*n+j], d2[j*n+i] = d*d, d*d
		}
	}

	row := make([]float64, n)
	total := 0.0
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			row[i] += d2[i*n+j]
		}
		total += row[i]
	}
	total /= float64(n * n)
	g := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			v := -0.5 * (d2[i*n+j] - row[i]/float64(n) - row[j]/float64(n) + total)
			g.SetSym(i, j, v)
		}
	}

	var es mat.EigenSym
	if !es.Factorize(g, true) {
		return nil, errors.New(errors.ErrCodeConfGenEmbeddingFailed, "metric matrix factorisation failed")
	}
	values := es.Values(nil)
	var vecs mat.Dense
	es.VectorsTo(&vecs)

	var scale [3]float64
	for k := 0; k < 3 && k < n; k++ {
		lambda := values[n-1-k]
		if lambda < 1e-3 {
			lambda = 1e-3 + rng.Float64()*1e-2
		}
		scale[k] = math.Sqrt(lambda)
	}
	at := func(i, k int) float64 {
		if k >= n {
			return 0
		}
		return scale[k] * vecs.At(i, n-1-k)
	}
	coords := make([]r3.Vec, n)
	for i := range coords {
		coords[i] = r3.Vec{X: at(i, 0), Y: at(i, 1), Z: at(i, 2)}
	}
	// Break exact degeneracies of planar embeddings.
	for i := range coords {
		coords[i] = r3.Add(coords[i], r3.Vec{X: jitter(rng), Y: jitter(rng), Z: jitter(rng)})
	}
	return coords, nil
}

func jitter(rng *rand.Rand) float64 { return (rng.Float64() - 0.5) * 0.1 }

// refine minimises the bound violation error function with chiral penalties.
func (e *Embedder) refine(coords []r3.Vec) {
	n := len(coords)
	x0 := make([]float64, 3*n)
	for i, p := range coords {
		x0[3*i], x0[3*i+1], x0[3*i+2] = p.X, p.Y, p.Z
	}
	problem := optimize.Problem{
		Func: func(x []float64) float64 { return e.errorFunc(x, nil) },
		Grad: func(grad, x []float64) { e.errorFunc(x, grad) },
	}
	start := e.errorFunc(x0, nil)
	if start == 0 {
		return
	}
	settings := &optimize.Settings{MajorIterations: e.opts.RefineIterations, GradientThreshold: 1e-4}
	res, _ := optimize.Minimize(problem, x0, settings, &optimize.LBFGS{})
	if res == nil || res.Location.X == nil || math.IsNaN(res.Location.F) || res.Location.F > start {
		return
	}
	x := res.Location.X
	for i := range coords {
		coords[i] = r3.Vec{X: x[3*i], Y: x[3*i+1], Z: x[3*i+2]}
	}
}

// errorFunc evaluates the distance and chirality error; grad is filled when
// non-nil.
func (e *Embedder) errorFunc(x, grad []float64) float64 {
	for i := range grad {
		grad[i] = 0
	}
	n := e.bounds.n
	at := func(i int) r3.Vec { return r3.Vec{X: x[3*i], Y: x[3*i+1], Z: x[3*i+2]} }
	addGrad := func(i int, g r3.Vec) {
		grad[3*i] += g.X
		grad[3*i+1] += g.Y
		grad[3*i+2] += g.Z
	}

	total := 0.0
	for i := 0; i < n; i++ {
		pi := at(i)
		for j := i + 1; j < n; j++ {
			v := r3.Sub(pi, at(j))
			d2 := r3.Norm2(v)
			lo, hi := e.bounds.Lower(i, j), e.bounds.Upper(i, j)
			var de float64
			switch {
			case d2 > hi*hi:
				f := d2/(hi*hi) - 1
				total += f * f
				de = 2 * f / (hi * hi)
			case d2 < lo*lo:
				l2 := lo * lo
				f := 2*l2/(l2+d2) - 1
				total += f * f
				de = 2 * f * (-2 * l2 / ((l2 + d2) * (l2 + d2)))
			default:
				continue
			}
			if grad != nil {
				g := r3.Scale(2*de, v)
				addGrad(i, g)
				addGrad(j, r3.Scale(-1, g))
			}
		}
	}

	for _, c := range e.chiral {
		pc, pa, pb, pd := at(c.center), at(c.refs[0]), at(c.refs[1]), at(c.refs[2])
		ua, ub, ud := r3.Sub(pa, pc), r3.Sub(pb, pc), r3.Sub(pd, pc)
		v := r3.Dot(ua, r3.Cross(ub, ud))
		p := minChiralVolume - c.parity*v
		if p <= 0 {
			continue
		}
		total += chiralWeight * p * p
		if grad != nil {
			dv := -2 * chiralWeight * p * c.parity
			ga := r3.Scale(dv, r3.Cross(ub, ud))
			gb := r3.Scale(dv, r3.Cross(ud, ua))
			gd := r3.Scale(dv, r3.Cross(ua, ub))
			addGrad(c.refs[0], ga)
			addGrad(c.refs[1], gb)
			addGrad(c.refs[2], gd)
			addGrad(c.center, r3.Scale(-1, r3.Add(ga, r3.Add(gb, gd))))
		}
	}
	return total
}

//Personal.AI order the ending
