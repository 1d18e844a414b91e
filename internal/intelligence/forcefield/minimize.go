package forcefield

import (
	"math"

	"github.com/bits-and-blooms/bitset"
	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/molinfo-vienna/CDPKit-sub014/pkg/errors"
)

// MinimizeOptions controls local energy minimisation.
type MinimizeOptions struct {
	// MaxIterations bounds the L-BFGS major iterations; 0 only evaluates.
	MaxIterations int
	// GradientTolerance is the gradient infinity-norm at which to stop.
	GradientTolerance float64
	// Fixed marks atoms whose coordinates stay put. nil frees every atom.
	Fixed *bitset.BitSet
}

// Minimize relaxes coords in place and returns the final energy. Coordinates
// are only replaced by a structure of lower or equal energy.
func Minimize(d *InteractionData, coords []r3.Vec, opts MinimizeOptions) (float64, error) {
	e0 := d.Energy(coords)
	if d.NumTerms() == 0 || opts.MaxIterations <= 0 {
		return e0, nil
	}
	if math.IsNaN(e0) || math.IsInf(e0, 0) {
		return e0, errors.New(errors.ErrCodeForceFieldMinimizeFailed, "energy is not finite")
	}

	free := make([]int, 0, len(coords))
	for i := range coords {
		if opts.Fixed == nil || !opts.Fixed.Test(uint(i)) {
			free = append(free, i)
		}
	}
	if len(free) == 0 {
		return e0, nil
	}

	work := make([]r3.Vec, len(coords))
	copy(work, coords)
	grad := make([]r3.Vec, len(coords))

	load := func(x []float64) {
		for k, a := range free {
			work[a] = r3.Vec{X: x[3*k], Y: x[3*k+1], Z: x[3*k+2]}
		}
	}
	x0 := make([]float64, 3*len(free))
	for k, a := range free {
		x0[3*k], x0[3*k+1], x0[3*k+2] = coords[a].X, coords[a].Y, coords[a].Z
	}

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			load(x)
			return d.Energy(work)
		},
		Grad: func(g, x []float64) {
			load(x)
			d.EnergyAndGradient(work, grad)
			for k, a := range free {
				g[3*k], g[3*k+1], g[3*k+2] = grad[a].X, grad[a].Y, grad[a].Z
			}
		},
	}
	tol := opts.GradientTolerance
	if tol <= 0 {
		tol = 1e-3
	}
	settings := &optimize.Settings{
		MajorIterations:   opts.MaxIterations,
		GradientThreshold: tol,
	}

	res, err := optimize.Minimize(problem, x0, settings, &optimize.LBFGS{})
	// Line search stalls surface as errors but still carry a usable location.
	if res == nil || res.Location.X == nil {
		if err == nil {
			err = errors.New(errors.ErrCodeForceFieldMinimizeFailed, "minimizer returned no result")
		}
		return e0, errors.Wrap(err, errors.ErrCodeForceFieldMinimizeFailed, "minimization failed")
	}
	if f := res.Location.F; !math.IsNaN(f) && f <= e0 {
		load(res.Location.X)
		copy(coords, work)
		return f, nil
	}
	return e0, nil
}

//Personal.AI order the ending
