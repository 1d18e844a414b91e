// Package forcefield implements the compact molecular mechanics model the
// conformer engine scores and refines structures with: harmonic bond
// stretching, cosine-harmonic angle bending, periodic torsions, Lennard-Jones
// van der Waals and Coulomb electrostatics.
//
// Interaction terms carry explicit atom lists so that callers can partition
// them over fragments and evaluate only the terms a combination step touches.
package forcefield

import (
	"github.com/bits-and-blooms/bitset"
)

// StretchTerm: E = K (r - R0)².
type StretchTerm struct {
	A, B  int
	R0, K float64
}

// BendTerm: E = K (cos θ - CosTheta0)², θ at B.
type BendTerm struct {
	A, B, C   int
	CosTheta0 float64
	K         float64
}

// TorsionTerm: E = V/2 (1 + Sign cos(N φ)).
type TorsionTerm struct {
	A, B, C, D int
	V          float64
	N          int
	Sign       float64
}

// VdWTerm: E = Eps [(RMin/r)¹² - 2 (RMin/r)⁶].
type VdWTerm struct {
	A, B      int
	RMin, Eps float64
}

// ElectrostaticTerm: E = QQ / (D r^n), QQ already contains the Coulomb constant.
type ElectrostaticTerm struct {
	A, B int
	QQ   float64
}

// InteractionData is a parameterised set of interaction terms.
type InteractionData struct {
	Stretch       []StretchTerm
	Bend          []BendTerm
	Torsion       []TorsionTerm
	VdW           []VdWTerm
	Electrostatic []ElectrostaticTerm

	DielectricConstant float64
	DistanceExponent   float64
}

func (d *InteractionData) emptyLike() *InteractionData {
	return &InteractionData{DielectricConstant: d.DielectricConstant, DistanceExponent: d.DistanceExponent}
}

// NumTerms returns the total number of terms.
func (d *InteractionData) NumTerms() int {
	if d == nil {
		return 0
	}
	return len(d.Stretch) + len(d.Bend) + len(d.Torsion) + len(d.VdW) + len(d.Electrostatic)
}

// Subset returns the terms whose atoms all lie in mask.
func (d *InteractionData) Subset(mask *bitset.BitSet) *InteractionData {
	in := func(atoms ...int) bool {
		for _, a := range atoms {
			if !mask.Test(uint(a)) {
				return false
			}
		}
		return true
	}
	out := d.Split(1, func(atoms []int) int {
		if in(atoms...) {
			return 0
		}
		return -1
	})
	return out[0]
}

// Split distributes the terms over n buckets. assign receives a term's atoms
// and returns the bucket index, or a negative value to drop the term.
func (d *InteractionData) Split(n int, assign func(atoms []int) int) []*InteractionData {
	out := make([]*InteractionData, n)
	for i := range out {
		out[i] = d.emptyLike()
	}
	var buf [4]int
	for _, t := range d.Stretch {
		buf[0], buf[1] = t.A, t.B
		if k := assign(buf[:2]); k >= 0 {
			out[k].Stretch = append(out[k].Stretch, t)
		}
	}
	for _, t := range d.Bend {
		buf[0], buf[1], buf[2] = t.A, t.B, t.C
		if k := assign(buf[:3]); k >= 0 {
			out[k].Bend = append(out[k].Bend, t)
		}
	}
	for _, t := range d.Torsion {
		buf[0], buf[1], buf[2], buf[3] = t.A, t.B, t.C, t.D
		if k := assign(buf[:4]); k >= 0 {
			out[k].Torsion = append(out[k].Torsion, t)
		}
	}
	for _, t := range d.VdW {
		buf[0], buf[1] = t.A, t.B
		if k := assign(buf[:2]); k >= 0 {
			out[k].VdW = append(out[k].VdW, t)
		}
	}
	for _, t := range d.Electrostatic {
		buf[0], buf[1] = t.A, t.B
		if k := assign(buf[:2]); k >= 0 {
			out[k].Electrostatic = append(out[k].Electrostatic, t)
		}
	}
	return out
}

// Remap translates every atom index through index (new := index[old]) and
// drops terms touching atoms mapped to a negative value.
func (d *InteractionData) Remap(index []int) *InteractionData {
	out := d.emptyLike()
	ok := func(atoms ...int) bool {
		for _, a := range atoms {
			if a >= len(index) || index[a] < 0 {
				return false
			}
		}
		return true
	}
	for _, t := range d.Stretch {
		if ok(t.A, t.B) {
			t.A, t.B = index[t.A], index[t.B]
			out.Stretch = append(out.Stretch, t)
		}
	}
	for _, t := range d.Bend {
		if ok(t.A, t.B, t.C) {
			t.A, t.B, t.C = index[t.A], index[t.B], index[t.C]
			out.Bend = append(out.Bend, t)
		}
	}
	for _, t := range d.Torsion {
		if ok(t.A, t.B, t.C, t.D) {
			t.A, t.B, t.C, t.D = index[t.A], index[t.B], index[t.C], index[t.D]
			out.Torsion = append(out.Torsion, t)
		}
	}
	for _, t := range d.VdW {
		if ok(t.A, t.B) {
			t.A, t.B = index[t.A], index[t.B]
			out.VdW = append(out.VdW, t)
		}
	}
	for _, t := range d.Electrostatic {
		if ok(t.A, t.B) {
			t.A, t.B = index[t.A], index[t.B]
			out.Electrostatic = append(out.Electrostatic, t)
		}
	}
	return out
}

//Personal.AI order the ending
