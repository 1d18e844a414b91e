package forcefield

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// minDistance guards the nonbonded terms against coincident atoms.
const minDistance = 1e-3

// Energy returns the total energy (kcal/mol) of coords. A nil receiver has
// zero energy.
func (d *InteractionData) Energy(coords []r3.Vec) float64 {
	if d == nil {
		return 0
	}
	return d.StretchEnergy(coords) + d.BendEnergy(coords) + d.TorsionEnergy(coords) +
		d.VdWEnergy(coords) + d.ElectrostaticEnergy(coords)
}

// StretchEnergy returns the bond stretching contribution.
func (d *InteractionData) StretchEnergy(coords []r3.Vec) float64 {
	e := 0.0
	for _, t := range d.Stretch {
		dr := r3.Norm(r3.Sub(coords[t.A], coords[t.B])) - t.R0
		e += t.K * dr * dr
	}
	return e
}

// BendEnergy returns the angle bending contribution.
func (d *InteractionData) BendEnergy(coords []r3.Vec) float64 {
	e := 0.0
	for _, t := range d.Bend {
		c, _, _, ok := cosAngle(coords[t.A], coords[t.B], coords[t.C])
		if !ok {
			continue
		}
		dc := c - t.CosTheta0
		e += t.K * dc * dc
	}
	return e
}

// TorsionEnergy returns the torsional contribution.
func (d *InteractionData) TorsionEnergy(coords []r3.Vec) float64 {
	e := 0.0
	for _, t := range d.Torsion {
		phi, ok := dihedral(coords[t.A], coords[t.B], coords[t.C], coords[t.D])
		if !ok {
			continue
		}
		e += 0.5 * t.V * (1 + t.Sign*math.Cos(float64(t.N)*phi))
	}
	return e
}

// VdWEnergy returns the van der Waals contribution.
func (d *InteractionData) VdWEnergy(coords []r3.Vec) float64 {
	e := 0.0
	for _, t := range d.VdW {
		r := math.Max(r3.Norm(r3.Sub(coords[t.A], coords[t.B])), minDistance)
		s6 := math.Pow(t.RMin/r, 6)
		e += t.Eps * (s6*s6 - 2*s6)
	}
	return e
}

// ElectrostaticEnergy returns the Coulomb contribution.
func (d *InteractionData) ElectrostaticEnergy(coords []r3.Vec) float64 {
	e := 0.0
	for _, t := range d.Electrostatic {
		r := math.Max(r3.Norm(r3.Sub(coords[t.A], coords[t.B])), minDistance)
		e += t.QQ / (d.DielectricConstant * math.Pow(r, d.DistanceExponent))
	}
	return e
}

// EnergyAndGradient returns the energy and writes dE/dx into grad, which must
// have len(coords) entries. grad is overwritten.
func (d *InteractionData) EnergyAndGradient(coords []r3.Vec, grad []r3.Vec) float64 {
	for i := range grad {
		grad[i] = r3.Vec{}
	}
	if d == nil {
		return 0
	}
	e := 0.0

	for _, t := range d.Stretch {
		v := r3.Sub(coords[t.A], coords[t.B])
		r := r3.Norm(v)
		dr := r - t.R0
		e += t.K * dr * dr
		if r < 1e-12 {
			continue
		}
		g := r3.Scale(2*t.K*dr/r, v)
		grad[t.A] = r3.Add(grad[t.A], g)
		grad[t.B] = r3.Sub(grad[t.B], g)
	}

	for _, t := range d.Bend {
		c, u, v, ok := cosAngle(coords[t.A], coords[t.B], coords[t.C])
		if !ok {
			continue
		}
		dc := c - t.CosTheta0
		e += t.K * dc * dc
		nu, nv := r3.Norm(u), r3.Norm(v)
		f := 2 * t.K * dc
		dA := r3.Sub(r3.Scale(1/(nu*nv), v), r3.Scale(c/(nu*nu), u))
		dC := r3.Sub(r3.Scale(1/(nu*nv), u), r3.Scale(c/(nv*nv), v))
		grad[t.A] = r3.Add(grad[t.A], r3.Scale(f, dA))
		grad[t.C] = r3.Add(grad[t.C], r3.Scale(f, dC))
		grad[t.B] = r3.Sub(grad[t.B], r3.Scale(f, r3.Add(dA, dC)))
	}

	for _, t := range d.Torsion {
		p0, p1, p2, p3 := coords[t.A], coords[t.B], coords[t.C], coords[t.D]
		b1 := r3.Sub(p1, p0)
		b2 := r3.Sub(p2, p1)
		b3 := r3.Sub(p3, p2)
		m := r3.Cross(b1, b2)
		n := r3.Cross(b2, b3)
		mm, nn := r3.Norm2(m), r3.Norm2(n)
		lb2 := r3.Norm(b2)
		if mm < 1e-12 || nn < 1e-12 || lb2 < 1e-12 {
			continue
		}
		phi := math.Atan2(lb2*r3.Dot(b1, n), r3.Dot(m, n))
		nf := float64(t.N)
		e += 0.5 * t.V * (1 + t.Sign*math.Cos(nf*phi))
		dEdPhi := -0.5 * t.V * t.Sign * nf * math.Sin(nf*phi)

		g0 := r3.Scale(-lb2/mm, m)
		g3 := r3.Scale(lb2/nn, n)
		f12 := r3.Dot(b1, b2) / (lb2 * lb2)
		f32 := r3.Dot(b3, b2) / (lb2 * lb2)
		// Inner-atom derivatives after Blondel and Karplus (1996).
		g1 := r3.Add(r3.Scale(-1-f12, g0), r3.Scale(f32, g3))
		g2 := r3.Sub(r3.Scale(-1-f32, g3), r3.Scale(-f12, g0))
		grad[t.A] = r3.Add(grad[t.A], r3.Scale(dEdPhi, g0))
		grad[t.B] = r3.Add(grad[t.B], r3.Scale(dEdPhi, g1))
		grad[t.C] = r3.Add(grad[t.C], r3.Scale(dEdPhi, g2))
		grad[t.D] = r3.Add(grad[t.D], r3.Scale(dEdPhi, g3))
	}

	for _, t := range d.VdW {
		v := r3.Sub(coords[t.A], coords[t.B])
		r := math.Max(r3.Norm(v), minDistance)
		s6 := math.Pow(t.RMin/r, 6)
		e += t.Eps * (s6*s6 - 2*s6)
		dEdr := 12 * t.Eps / r * (s6 - s6*s6)
		g := r3.Scale(dEdr/r, v)
		grad[t.A] = r3.Add(grad[t.A], g)
		grad[t.B] = r3.Sub(grad[t.B], g)
	}

	for _, t := range d.Electrostatic {
		v := r3.Sub(coords[t.A], coords[t.B])
		r := math.Max(r3.Norm(v), minDistance)
		rn := math.Pow(r, d.DistanceExponent)
		e += t.QQ / (d.DielectricConstant * rn)
		dEdr := -d.DistanceExponent * t.QQ / (d.DielectricConstant * rn * r)
		g := r3.Scale(dEdr/r, v)
		grad[t.A] = r3.Add(grad[t.A], g)
		grad[t.B] = r3.Sub(grad[t.B], g)
	}
	return e
}

func cosAngle(a, b, c r3.Vec) (cos float64, u, v r3.Vec, ok bool) {
	u = r3.Sub(a, b)
	v = r3.Sub(c, b)
	nu, nv := r3.Norm(u), r3.Norm(v)
	if nu < 1e-12 || nv < 1e-12 {
		return 0, u, v, false
	}
	cos = r3.Dot(u, v) / (nu * nv)
	return math.Max(-1, math.Min(1, cos)), u, v, true
}

func dihedral(p0, p1, p2, p3 r3.Vec) (float64, bool) {
	b1 := r3.Sub(p1, p0)
	b2 := r3.Sub(p2, p1)
	b3 := r3.Sub(p3, p2)
	m := r3.Cross(b1, b2)
	n := r3.Cross(b2, b3)
	if r3.Norm2(m) < 1e-12 || r3.Norm2(n) < 1e-12 {
		return 0, false
	}
	return math.Atan2(r3.Norm(b2)*r3.Dot(b1, n), r3.Dot(m, n)), true
}

//Personal.AI order the ending
