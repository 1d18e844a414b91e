package testutil

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/molinfo-vienna/CDPKit-sub014/internal/domain/molecule"
)

// ─────────────────────────────────────────────────────────────────────────────
// Molecule fixtures
// ─────────────────────────────────────────────────────────────────────────────

// AddHydrogens attaches n hydrogens to atom.
func AddHydrogens(m *molecule.Molecule, atom, n int) {
	for i := 0; i < n; i++ {
		h := m.AddAtom("H")
		m.MustAddBond(atom, h, 1)
	}
}

func chain(name string, n int) *molecule.Molecule {
	m := molecule.New(name)
	for i := 0; i < n; i++ {
		m.AddAtom("C")
		if i > 0 {
			m.MustAddBond(i-1, i, 1)
		}
	}
	return m
}

func saturate(m *molecule.Molecule, carbons []int, valence int) {
	for _, c := range carbons {
		order := 0
		for _, nb := range m.Neighbors(c) {
			order += m.Bonds[nb.Bond].Order
		}
		AddHydrogens(m, c, valence-order)
	}
}

// ButaneSkeleton is C-C-C-C without hydrogens: one rotatable bond.
func ButaneSkeleton() *molecule.Molecule {
	return chain("butane-skeleton", 4)
}

// Butane is n-butane with explicit hydrogens. Carbons are atoms 0-3.
func Butane() *molecule.Molecule {
	m := chain("butane", 4)
	saturate(m, []int{0, 1, 2, 3}, 4)
	return m
}

// Pentane is n-pentane with explicit hydrogens: two rotatable bonds.
func Pentane() *molecule.Molecule {
	m := chain("pentane", 5)
	saturate(m, []int{0, 1, 2, 3, 4}, 4)
	return m
}

// Ethanol is CH3-CH2-OH. The C-O bond is only rotatable when hydroxyl
// hydrogens are sampled.
func Ethanol() *molecule.Molecule {
	m := chain("ethanol", 2)
	o := m.AddAtom("O")
	m.MustAddBond(1, o, 1)
	AddHydrogens(m, 0, 3)
	AddHydrogens(m, 1, 2)
	AddHydrogens(m, o, 1)
	return m
}

// EthylMethylAmine is CH3-NH-CH2-CH3 with an invertible nitrogen (atom 1).
func EthylMethylAmine() *molecule.Molecule {
	m := molecule.New("ethylmethylamine")
	c0 := m.AddAtom("C")
	n := m.AddAtom("N")
	c2 := m.AddAtom("C")
	c3 := m.AddAtom("C")
	m.MustAddBond(c0, n, 1)
	m.MustAddBond(n, c2, 1)
	m.MustAddBond(c2, c3, 1)
	AddHydrogens(m, c0, 3)
	AddHydrogens(m, n, 1)
	AddHydrogens(m, c2, 2)
	AddHydrogens(m, c3, 3)
	return m
}

func addBenzeneRing(m *molecule.Molecule) []int {
	ring := make([]int, 6)
	for i := range ring {
		ring[i] = m.AddAtom("C")
	}
	for i := range ring {
		m.MustAddBond(ring[i], ring[(i+1)%6], molecule.OrderAromatic)
	}
	return ring
}

// Benzene with explicit hydrogens. Ring carbons are atoms 0-5.
func Benzene() *molecule.Molecule {
	m := molecule.New("benzene")
	for _, c := range addBenzeneRing(m) {
		AddHydrogens(m, c, 1)
	}
	return m
}

// Biphenyl has one rotatable bond between atoms 0 and 6.
func Biphenyl() *molecule.Molecule {
	m := molecule.New("biphenyl")
	a := addBenzeneRing(m)
	b := addBenzeneRing(m)
	m.MustAddBond(a[0], b[0], 1)
	for _, c := range append(a[1:], b[1:]...) {
		AddHydrogens(m, c, 1)
	}
	return m
}

func cycloalkane(name string, n int) *molecule.Molecule {
	m := chain(name, n)
	m.MustAddBond(n-1, 0, 1)
	carbons := make([]int, n)
	for i := range carbons {
		carbons[i] = i
	}
	saturate(m, carbons, 4)
	return m
}

// Cyclohexane with explicit hydrogens.
func Cyclohexane() *molecule.Molecule { return cycloalkane("cyclohexane", 6) }

// Cyclododecane is a twelve-membered saturated ring: a macrocycle under the
// default threshold of ten flexible ring bonds.
func Cyclododecane() *molecule.Molecule { return cycloalkane("cyclododecane", 12) }

// WaterAndEthane is a two-component record.
func WaterAndEthane() *molecule.Molecule {
	m := molecule.New("water.ethane")
	o := m.AddAtom("O")
	AddHydrogens(m, o, 2)
	c1 := m.AddAtom("C")
	c2 := m.AddAtom("C")
	m.MustAddBond(c1, c2, 1)
	AddHydrogens(m, c1, 3)
	AddHydrogens(m, c2, 3)
	return m
}

// tetrahedral returns the four sp3 directions scaled to length r.
func tetrahedral(r float64) [4]r3.Vec {
	s := r / math.Sqrt(3)
	return [4]r3.Vec{{X: s, Y: s, Z: s}, {X: s, Y: -s, Z: -s}, {X: -s, Y: s, Z: -s}, {X: -s, Y: -s, Z: s}}
}

// BromochlorofluoromethaneWithCoords is CHFClBr with a tetrahedral 3D
// geometry. The centre is atom 0; swapping mirror=true inverts it.
func BromochlorofluoromethaneWithCoords(mirror bool) *molecule.Molecule {
	m := molecule.New("CHFClBr")
	dirs := tetrahedral(1)
	if mirror {
		for i := range dirs {
			dirs[i].Z = -dirs[i].Z
		}
	}
	c := m.AddAtomAt("C", r3.Vec{})
	for i, sym := range []string{"H", "F", "Cl", "Br"} {
		length := map[string]float64{"H": 1.09, "F": 1.35, "Cl": 1.77, "Br": 1.94}[sym]
		a := m.AddAtomAt(sym, r3.Scale(length, dirs[i]))
		m.MustAddBond(c, a, 1)
	}
	return m
}

// EthaneWithCoords is staggered ethane with 3D coordinates.
func EthaneWithCoords() *molecule.Molecule {
	m := molecule.New("ethane")
	c0 := m.AddAtomAt("C", r3.Vec{})
	c1 := m.AddAtomAt("C", r3.Vec{X: 1.53})
	m.MustAddBond(c0, c1, 1)
	const rH, dx = 1.03, 0.36
	for k := 0; k < 3; k++ {
		a := float64(k) * 2 * math.Pi / 3
		h := m.AddAtomAt("H", r3.Vec{X: -dx, Y: rH * math.Cos(a), Z: rH * math.Sin(a)})
		m.MustAddBond(c0, h, 1)
	}
	for k := 0; k < 3; k++ {
		a := float64(k)*2*math.Pi/3 + math.Pi/3
		h := m.AddAtomAt("H", r3.Vec{X: 1.53 + dx, Y: rH * math.Cos(a), Z: rH * math.Sin(a)})
		m.MustAddBond(c1, h, 1)
	}
	return m
}

//Personal.AI order the ending
