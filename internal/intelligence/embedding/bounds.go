// Package embedding generates 3D coordinates from a molecular graph with a
// compact distance-geometry procedure: a smoothed bounds matrix, random
// metric-matrix embedding, error-function refinement with chiral-volume
// penalties and a final force-field minimisation.
package embedding

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/molinfo-vienna/CDPKit-sub014/internal/domain/molecule"
	"github.com/molinfo-vienna/CDPKit-sub014/internal/intelligence/forcefield"
)

const (
	bondTolerance   = 0.01
	angleTolerance  = 0.04
	planarTolerance = 0.05
	maxUpper        = 100.0

	// vdwLowerScale scales summed van der Waals radii into non-bonded lower bounds.
	vdwLowerScale = 0.6
)

// Bounds holds symmetric lower and upper distance bounds.
type Bounds struct {
	n            int
	lower, upper []float64
	fixed        []bool
}

func newBounds(n int) *Bounds {
	b := &Bounds{n: n, lower: make([]float64, n*n), upper: make([]float64, n*n), fixed: make([]bool, n*n)}
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i != j {
				b.upper[i*n+j] = maxUpper
			}
		}
	}
	return b
}

// Size returns the number of atoms.
func (b *Bounds) Size() int { return b.n }

// Lower returns the lower bound of pair (i, j).
func (b *Bounds) Lower(i, j int) float64 { return b.lower[i*b.n+j] }

// Upper returns the upper bound of pair (i, j).
func (b *Bounds) Upper(i, j int) float64 { return b.upper[i*b.n+j] }

func (b *Bounds) set(i, j int, lo, hi float64) {
	b.lower[i*b.n+j], b.lower[j*b.n+i] = lo, lo
	b.upper[i*b.n+j], b.upper[j*b.n+i] = hi, hi
	b.fixed[i*b.n+j], b.fixed[j*b.n+i] = true, true
}

func (b *Bounds) isFixed(i, j int) bool { return b.fixed[i*b.n+j] }

// BuildBounds derives the distance bounds of mol from its reference geometry.
func BuildBounds(mol *molecule.Molecule) *Bounds {
	mol.Perceive()
	n := mol.AtomCount()
	b := newBounds(n)

	for _, bond := range mol.Bonds {
		r := forcefield.ReferenceBondLength(mol, bond.Index)
		b.set(bond.Begin, bond.End, r-bondTolerance, r+bondTolerance)
	}

	for c := 0; c < n; c++ {
		nbs := mol.Neighbors(c)
		for i := 0; i < len(nbs); i++ {
			for j := i + 1; j < len(nbs); j++ {
				a, d := nbs[i].Atom, nbs[j].Atom
				if b.isFixed(a, d) {
					continue
				}
				r1 := forcefield.ReferenceBondLength(mol, nbs[i].Bond)
				r2 := forcefield.ReferenceBondLength(mol, nbs[j].Bond)
				theta := molecule.Deg2Rad(forcefield.ReferenceAngle(mol, a, c, d))
				dist := math.Sqrt(r1*r1 + r2*r2 - 2*r1*r2*math.Cos(theta))
				b.set(a, d, dist-angleTolerance, dist+angleTolerance)
			}
		}
	}

	for _, bond := range mol.Bonds {
		setTorsionBounds(mol, b, bond)
	}

	for i := 0; i < n; i++ {
		ri := vdwRadius(mol, i)
		for j := i + 1; j < n; j++ {
			if b.isFixed(i, j) {
				continue
			}
			lo := vdwLowerScale * (ri + vdwRadius(mol, j))
			b.lower[i*n+j], b.lower[j*n+i] = lo, lo
		}
	}

	b.smooth()
	return b
}

func vdwRadius(mol *molecule.Molecule, i int) float64 {
	e, _ := molecule.ElementByNumber(mol.Atoms[i].Number)
	return e.VdWRadius
}

// setTorsionBounds bounds the 1-4 pairs across bond by their cis and trans
// distances. Stereo double bonds and aromatic ring torsions are pinned.
func setTorsionBounds(mol *molecule.Molecule, b *Bounds, bond molecule.Bond) {
	var stereo *molecule.BondStereo
	for k := range mol.BondStereo {
		if mol.BondStereo[k].Bond == bond.Index {
			stereo = &mol.BondStereo[k]
		}
	}
	rbc := forcefield.ReferenceBondLength(mol, bond.Index)
	for _, na := range mol.Neighbors(bond.Begin) {
		if na.Atom == bond.End {
			continue
		}
		for _, nd := range mol.Neighbors(bond.End) {
			a, d := na.Atom, nd.Atom
			if d == bond.Begin || a == d || b.isFixed(a, d) {
				continue
			}
			rab := forcefield.ReferenceBondLength(mol, na.Bond)
			rcd := forcefield.ReferenceBondLength(mol, nd.Bond)
			t1 := molecule.Deg2Rad(forcefield.ReferenceAngle(mol, a, bond.Begin, bond.End))
			t2 := molecule.Deg2Rad(forcefield.ReferenceAngle(mol, bond.Begin, bond.End, d))
			cis := torsionDistance(rab, rbc, rcd, t1, t2, 0)
			trans := torsionDistance(rab, rbc, rcd, t1, t2, math.Pi)

			switch {
			case stereo != nil:
				sameSide := (a == stereo.Refs[0]) == (d == stereo.Refs[1])
				if sameSide == stereo.Cis {
					b.set(a, d, cis-planarTolerance, cis+planarTolerance)
				} else {
					b.set(a, d, trans-planarTolerance, trans+planarTolerance)
				}
			case bond.Aromatic && aromaticCis(mol, a, bond, d):
				b.set(a, d, cis-planarTolerance, cis+planarTolerance)
			case bond.Aromatic:
				b.set(a, d, trans-planarTolerance, trans+planarTolerance)
			default:
				b.set(a, d, cis, trans)
			}
		}
	}
}

// aromaticCis reports whether a and d sit on the same side of an aromatic bond:
// both in one ring with the bond, or both exocyclic to it.
func aromaticCis(mol *molecule.Molecule, a int, bond molecule.Bond, d int) bool {
	if mol.SmallestRingSize(a, bond.Begin, bond.End, d) > 0 {
		return true
	}
	return mol.SmallestRingSize(a, bond.Begin, bond.End) == 0 && mol.SmallestRingSize(bond.Begin, bond.End, d) == 0
}

// torsionDistance returns the a-d distance of a-b-c-d for the given internal
// coordinates and dihedral phi.
func torsionDistance(rab, rbc, rcd, t1, t2, phi float64) float64 {
	a := r3.Vec{X: rab * math.Cos(t1), Y: rab * math.Sin(t1)}
	d := r3.Vec{X: rbc - rcd*math.Cos(t2), Y: rcd * math.Sin(t2) * math.Cos(phi), Z: rcd * math.Sin(t2) * math.Sin(phi)}
	return r3.Norm(r3.Sub(a, d))
}

// smooth applies triangle-inequality smoothing and clamps inconsistent pairs.
func (b *Bounds) smooth() {
	n := b.n
	for k := 0; k < n; k++ {
		for i := 0; i < n; i++ {
			if i == k {
				continue
			}
			uik, lik := b.upper[i*n+k], b.lower[i*n+k]
			for j := i + 1; j < n; j++ {
				if j == k {
					continue
				}
				ukj, lkj := b.upper[k*n+j], b.lower[k*n+j]
				ij := i*n + j
				if u := uik + ukj; u < b.upper[ij] {
					b.upper[ij], b.upper[j*n+i] = u, u
				}
				if l := lik - ukj; l > b.lower[ij] {
					b.lower[ij], b.lower[j*n+i] = l, l
				}
				if l := lkj - uik; l > b.lower[ij] {
					b.lower[ij], b.lower[j*n+i] = l, l
				}
			}
		}
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if b.lower[i*n+j] > b.upper[i*n+j] {
				b.lower[i*n+j], b.lower[j*n+i] = b.upper[i*n+j], b.upper[i*n+j]
			}
		}
	}
}

//Personal.AI order the ending
