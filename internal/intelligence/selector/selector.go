// Package selector implements symmetry-aware RMSD comparison of conformers and
// the energy-ordered, diversity-filtered selection built on it.
package selector

import (
	"math"
	"sort"

	"github.com/samber/lo"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/molinfo-vienna/CDPKit-sub014/internal/domain/conformer"
	"github.com/molinfo-vienna/CDPKit-sub014/internal/domain/molecule"
)

// DefaultMaxAutomorphisms caps the symmetry mappings tried per comparison.
const DefaultMaxAutomorphisms = 256

// minHeavyAtoms is the heavy-atom count below which hydrogens take part in
// the comparison.
const minHeavyAtoms = 3

// Options configures a Selector.
type Options struct {
	// MinRMSD (Å) below which two conformers are duplicates.
	MinRMSD float64
	// MaxAutomorphisms caps the symmetry mappings; 0 uses the default.
	MaxAutomorphisms int
	// IncludeHydrogens compares all atoms instead of heavy atoms only.
	IncludeHydrogens bool
}

// Selector compares conformers of one molecule. Coordinates passed to its
// methods are indexed by the molecule's atom indices.
type Selector struct {
	atoms    []int
	mappings [][]int
	minRMSD  float64
}

// New prepares a Selector for mol.
func New(mol *molecule.Molecule, opts Options) *Selector {
	limit := opts.MaxAutomorphisms
	if limit <= 0 {
		limit = DefaultMaxAutomorphisms
	}
	atoms := mol.HeavyAtoms()
	if opts.IncludeHydrogens || len(atoms) < minHeavyAtoms {
		atoms = lo.Range(mol.AtomCount())
	}
	s := &Selector{atoms: atoms, minRMSD: opts.MinRMSD}
	s.mappings = mol.Automorphisms(atoms, limit)
	if len(s.mappings) == 0 {
		s.mappings = [][]int{atoms}
	}
	return s
}

// NumMappings returns the number of symmetry mappings in use.
func (s *Selector) NumMappings() int { return len(s.mappings) }

// MinRMSD returns the duplicate threshold.
func (s *Selector) MinRMSD() float64 { return s.minRMSD }

// RMSD returns the smallest RMSD between a and b after optimal superposition,
// minimised over the molecule's symmetry mappings.
func (s *Selector) RMSD(a, b []r3.Vec) float64 {
	best := math.Inf(1)
	p := make([]r3.Vec, len(s.atoms))
	q := make([]r3.Vec, len(s.atoms))
	for k, atom := range s.atoms {
		p[k] = a[atom]
	}
	for _, m := range s.mappings {
		for k, image := range m {
			q[k] = b[image]
		}
		if d := superposedRMSD(p, q); d < best {
			best = d
			if best == 0 {
				break
			}
		}
	}
	return best
}

// IsDuplicate reports whether c lies within MinRMSD of any of kept.
func (s *Selector) IsDuplicate(c []r3.Vec, kept [][]r3.Vec) bool {
	if s.minRMSD <= 0 {
		return false
	}
	for _, k := range kept {
		if s.RMSD(c, k) < s.minRMSD {
			return true
		}
	}
	return false
}

// Select returns candidates in ascending energy order, skipping duplicates of
// already accepted entries. kept are accepted up front and count towards
// maxCount (0 means unlimited). Candidates above the lowest candidate energy
// plus window are dropped when window > 0.
func (s *Selector) Select(kept, candidates []conformer.Data, maxCount int, window float64) []conformer.Data {
	idx := s.SelectIndices(len(candidates),
		func(i int) []r3.Vec { return candidates[i].Coords },
		func(i int) float64 { return candidates[i].Energy },
		lo.Map(kept, func(d conformer.Data, _ int) []r3.Vec { return d.Coords }),
		maxCount, window)
	out := append([]conformer.Data(nil), kept...)
	for _, i := range idx {
		out = append(out, candidates[i])
	}
	return out
}

// SelectIndices is Select over an abstract candidate list. It returns the
// indices of the accepted candidates in acceptance order.
func (s *Selector) SelectIndices(n int, coords func(int) []r3.Vec, energy func(int) float64,
	kept [][]r3.Vec, maxCount int, window float64) []int {
	order := lo.Range(n)
	sort.SliceStable(order, func(i, j int) bool { return conformer.ByEnergy(energy(order[i]), energy(order[j])) })

	accepted := append([][]r3.Vec(nil), kept...)
	var out []int
	if n == 0 || (maxCount > 0 && len(accepted) >= maxCount) {
		return out
	}
	emin := energy(order[0])
	for _, i := range order {
		if window > 0 && energy(i) > emin+window {
			break
		}
		c := coords(i)
		if s.IsDuplicate(c, accepted) {
			continue
		}
		accepted = append(accepted, c)
		out = append(out, i)
		if maxCount > 0 && len(accepted) >= maxCount {
			break
		}
	}
	return out
}

// superposedRMSD is the Kabsch RMSD of two equally long point lists.
func superposedRMSD(p, q []r3.Vec) float64 {
	n := len(p)
	if n == 0 {
		return 0
	}
	cp := centroid(p)
	cq := centroid(q)

	h := mat.NewDense(3, 3, nil)
	var sp, sq float64
	for k := range p {
		a := r3.Sub(p[k], cp)
		b := r3.Sub(q[k], cq)
		sp += r3.Dot(a, a)
		sq += r3.Dot(b, b)
		av := [3]float64{a.X, a.Y, a.Z}
		bv := [3]float64{b.X, b.Y, b.Z}
		for i := 0; i < 3; i++ {
			for j := 0; j < 3; j++ {
				h.Set(i, j, h.At(i, j)+av[i]*bv[j])
			}
		}
	}

	var svd mat.SVD
	if !svd.Factorize(h, mat.SVDNone) {
		return math.Sqrt(math.Max(0, (sp+sq)/float64(n)))
	}
	sv := svd.Values(nil)
	trace := sv[0] + sv[1]
	if mat.Det(h) < 0 {
		trace -= sv[2]
	} else {
		trace += sv[2]
	}
	return math.Sqrt(math.Max(0, (sp+sq-2*trace)/float64(n)))
}

func centroid(p []r3.Vec) r3.Vec {
	var c r3.Vec
	for _, v := range p {
		c = r3.Add(c, v)
	}
	return r3.Scale(1/float64(len(p)), c)
}

//Personal.AI order the ending
