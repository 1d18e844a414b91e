package embedding

import (
	"math/rand"

	"github.com/bits-and-blooms/bitset"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/molinfo-vienna/CDPKit-sub014/internal/domain/molecule"
	"github.com/molinfo-vienna/CDPKit-sub014/internal/intelligence/forcefield"
	"github.com/molinfo-vienna/CDPKit-sub014/pkg/errors"
)

// Completer fills in the positions of atoms missing from a partial structure
// (typically hydrogens) and relaxes them with the known atoms held fixed.
type Completer struct {
	mol  *molecule.Molecule
	ff   *forcefield.InteractionData
	opts Options
}

// NewCompleter returns a Completer for mol.
func NewCompleter(mol *molecule.Molecule, ff *forcefield.InteractionData, opts Options) *Completer {
	if opts.GradientTolerance <= 0 {
		opts.GradientTolerance = DefaultGradientTolerance
	}
	if opts.MinimizeIterations <= 0 {
		opts.MinimizeIterations = DefaultMinimizeIterations
	}
	return &Completer{mol: mol, ff: ff, opts: opts}
}

// Complete places every atom not in known, writing into coords, and returns
// the force-field energy of the completed structure. Every connected
// component needs at least one known atom.
func (c *Completer) Complete(coords []r3.Vec, known *bitset.BitSet, rng *rand.Rand) (float64, error) {
	n := c.mol.AtomCount()
	if len(coords) != n {
		return 0, errors.InvalidParam("coordinate count mismatch").WithDetailf("%d coordinates for %d atoms", len(coords), n)
	}
	placed := known.Clone()
	if placed.Len() < uint(n) {
		placed = placed.Union(bitset.New(uint(n)))
	}
	if placed.Count() == uint(n) {
		return c.ff.Energy(coords), nil
	}

	queue := make([]int, 0, n)
	for i, ok := placed.NextSet(0); ok && i < uint(n); i, ok = placed.NextSet(i + 1) {
		queue = append(queue, int(i))
	}
	for len(queue) > 0 {
		a := queue[0]
		queue = queue[1:]
		for _, nb := range c.mol.Neighbors(a) {
			if placed.Test(uint(nb.Atom)) {
				continue
			}
			dir := randomUnit(rng)
			r := forcefield.ReferenceBondLength(c.mol, nb.Bond)
			coords[nb.Atom] = r3.Add(coords[a], r3.Scale(r, dir))
			placed.Set(uint(nb.Atom))
			queue = append(queue, nb.Atom)
		}
	}
	if placed.Count() != uint(n) {
		return 0, errors.New(errors.ErrCodeMoleculeNoCoordinates, "component without known coordinates").WithDetail(c.mol.Name)
	}

	if c.ff == nil {
		return 0, nil
	}
	return forcefield.Minimize(c.ff, coords, forcefield.MinimizeOptions{
		MaxIterations:     c.opts.MinimizeIterations,
		GradientTolerance: c.opts.GradientTolerance,
		Fixed:             known,
	})
}

func randomUnit(rng *rand.Rand) r3.Vec {
	for {
		v := r3.Vec{X: rng.Float64()*2 - 1, Y: rng.Float64()*2 - 1, Z: rng.Float64()*2 - 1}
		if n := r3.Norm2(v); n > 1e-4 && n <= 1 {
			return r3.Unit(v)
		}
	}
}

//Personal.AI order the ending
