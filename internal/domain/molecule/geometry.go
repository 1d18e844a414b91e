package molecule

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Dihedral returns the signed torsion angle p0-p1-p2-p3 in radians, in (-π, π].
func Dihedral(p0, p1, p2, p3 r3.Vec) float64 {
	b1 := r3.Sub(p1, p0)
	b2 := r3.Sub(p2, p1)
	b3 := r3.Sub(p3, p2)
	n1 := r3.Cross(b1, b2)
	n2 := r3.Cross(b2, b3)
	y := r3.Norm(b2) * r3.Dot(b1, n2)
	x := r3.Dot(n1, n2)
	return math.Atan2(y, x)
}

// BondAngle returns the angle a-b-c in radians.
func BondAngle(a, b, c r3.Vec) float64 {
	u := r3.Sub(a, b)
	v := r3.Sub(c, b)
	nu, nv := r3.Norm(u), r3.Norm(v)
	if nu == 0 || nv == 0 {
		return 0
	}
	cos := r3.Dot(u, v) / (nu * nv)
	return math.Acos(math.Max(-1, math.Min(1, cos)))
}

// SignedVolume returns (a-c)·((b-c)×(d-c)).
func SignedVolume(c, a, b, d r3.Vec) float64 {
	return r3.Dot(r3.Sub(a, c), r3.Cross(r3.Sub(b, c), r3.Sub(d, c)))
}

// Distance returns |a-b|.
func Distance(a, b r3.Vec) float64 {
	return r3.Norm(r3.Sub(a, b))
}

// Centroid returns the mean position of the selected atoms.
func Centroid(coords []r3.Vec, atoms []int) r3.Vec {
	var c r3.Vec
	if len(atoms) == 0 {
		return c
	}
	for _, a := range atoms {
		c = r3.Add(c, coords[a])
	}
	return r3.Scale(1/float64(len(atoms)), c)
}

// BoundingBox returns the axis-aligned box of the selected atoms.
func BoundingBox(coords []r3.Vec, atoms []int) r3.Box {
	if len(atoms) == 0 {
		return r3.Box{}
	}
	box := r3.Box{Min: coords[atoms[0]], Max: coords[atoms[0]]}
	for _, a := range atoms[1:] {
		p := coords[a]
		box.Min.X = math.Min(box.Min.X, p.X)
		box.Min.Y = math.Min(box.Min.Y, p.Y)
		box.Min.Z = math.Min(box.Min.Z, p.Z)
		box.Max.X = math.Max(box.Max.X, p.X)
		box.Max.Y = math.Max(box.Max.Y, p.Y)
		box.Max.Z = math.Max(box.Max.Z, p.Z)
	}
	return box
}

// Perpendicular returns a unit vector orthogonal to v.
func Perpendicular(v r3.Vec) r3.Vec {
	axis := r3.Vec{X: 1}
	if math.Abs(v.X) > math.Abs(v.Y) && math.Abs(v.X) > math.Abs(v.Z) {
		axis = r3.Vec{Y: 1}
	}
	return r3.Unit(r3.Cross(v, axis))
}

// NormalizeDegrees maps an angle to [-180, 180).
func NormalizeDegrees(a float64) float64 {
	a = math.Mod(a+180, 360)
	if a < 0 {
		a += 360
	}
	return a - 180
}

// AngularDistanceDegrees returns the circular distance between two angles.
func AngularDistanceDegrees(a, b float64) float64 {
	d := math.Abs(NormalizeDegrees(a - b))
	return math.Min(d, 360-d)
}

// Deg2Rad converts degrees to radians.
func Deg2Rad(d float64) float64 { return d * math.Pi / 180 }

// Rad2Deg converts radians to degrees.
func Rad2Deg(r float64) float64 { return r * 180 / math.Pi }

//Personal.AI order the ending
