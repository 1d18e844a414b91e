package forcefield

import (
	"math"
	"math/rand"
	"testing"

	"github.com/bits-and-blooms/bitset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/molinfo-vienna/CDPKit-sub014/internal/domain/molecule"
	"github.com/molinfo-vienna/CDPKit-sub014/internal/testutil"
	"github.com/molinfo-vienna/CDPKit-sub014/pkg/errors"
)

// scatter places n points in a cube keeping them at least minDist apart.
func scatter(n int, seed int64, minDist float64) []r3.Vec {
	rng := rand.New(rand.NewSource(seed))
	out := make([]r3.Vec, 0, n)
	for len(out) < n {
		p := r3.Vec{X: rng.Float64() * 6, Y: rng.Float64() * 6, Z: rng.Float64() * 6}
		ok := true
		for _, q := range out {
			if r3.Norm(r3.Sub(p, q)) < minDist {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, p)
		}
	}
	return out
}

func flatten(v []r3.Vec) []float64 {
	x := make([]float64, 0, 3*len(v))
	for _, p := range v {
		x = append(x, p.X, p.Y, p.Z)
	}
	return x
}

func unflatten(x []float64) []r3.Vec {
	v := make([]r3.Vec, len(x)/3)
	for i := range v {
		v[i] = r3.Vec{X: x[3*i], Y: x[3*i+1], Z: x[3*i+2]}
	}
	return v
}

func TestParseType(t *testing.T) {
	tests := []struct {
		in   string
		want Type
		ok   bool
	}{
		{"", TypeGeneric, true},
		{"generic", TypeGeneric, true},
		{" GENERIC_NO_ESTAT ", TypeGenericNoElectrostatics, true},
		{"mmff94", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseType(tt.in)
			if !tt.ok {
				assert.True(t, errors.IsCode(err, errors.ErrCodeForceFieldUnknownType))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParameterize_Butane(t *testing.T) {
	mol := testutil.Butane()
	d, err := NewParameterizer().Parameterize(mol, DefaultConfig())
	require.NoError(t, err)

	assert.Len(t, d.Stretch, 13)
	// 4 carbons with 4 neighbours: 4 * C(4,2) = 24 angles.
	assert.Len(t, d.Bend, 24)
	// C-H bonds carry no torsions; each C-C bond has 3*3 torsions.
	assert.Len(t, d.Torsion, 27)
	assert.Empty(t, d.Electrostatic)
	for _, term := range d.VdW {
		assert.GreaterOrEqual(t, mol.TopologicalDistance(term.A, term.B), 3)
	}

	var barrier float64
	for _, term := range d.Torsion {
		if term.B == 1 && term.C == 2 {
			barrier += term.V
		}
	}
	assert.InDelta(t, 2.9, barrier, 1e-9)
}

func TestParameterize_Strict(t *testing.T) {
	mol := testutil.ButaneSkeleton()
	x := mol.AddAtom("Xx")
	mol.MustAddBond(3, x, 1)

	_, err := NewParameterizer().Parameterize(mol, Config{Type: TypeGeneric, Strict: true})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeForceFieldSetupFailed))

	d, err := NewParameterizer().Parameterize(mol, Config{Type: TypeGeneric})
	require.NoError(t, err)
	assert.Positive(t, d.NumTerms())
}

func TestParameterize_Electrostatics(t *testing.T) {
	mol := testutil.ButaneSkeleton()
	mol.SetFormalCharge(0, 1)
	mol.SetFormalCharge(3, -1)

	d, err := NewParameterizer().Parameterize(mol, DefaultConfig())
	require.NoError(t, err)
	require.Len(t, d.Electrostatic, 1)
	assert.InDelta(t, -coulombConstant*scale14Elec, d.Electrostatic[0].QQ, 1e-9)

	d, err = NewParameterizer().Parameterize(mol, Config{Type: TypeGenericNoElectrostatics})
	require.NoError(t, err)
	assert.Empty(t, d.Electrostatic)
}

func TestParameterize_EmptyMolecule(t *testing.T) {
	_, err := NewParameterizer().Parameterize(molecule.New("empty"), DefaultConfig())
	assert.True(t, errors.IsCode(err, errors.ErrCodeMoleculeEmpty))
}

func TestReferenceGeometry(t *testing.T) {
	benzene := testutil.Benzene()
	assert.InDelta(t, 1.39, ReferenceBondLength(benzene, 0), 1e-9)
	assert.InDelta(t, 120, ReferenceAngle(benzene, 0, 1, 2), 1e-9)

	butane := testutil.Butane()
	assert.InDelta(t, 1.52, ReferenceBondLength(butane, 0), 1e-9)
	assert.InDelta(t, 109.47, ReferenceAngle(butane, 0, 1, 2), 1e-9)
}

func TestEnergyAndGradient_MatchesFiniteDifferences(t *testing.T) {
	mol := testutil.Butane()
	mol.SetFormalCharge(0, 1)
	mol.SetFormalCharge(3, -1)
	d, err := NewParameterizer().Parameterize(mol, Config{Type: TypeGeneric, DielectricConstant: 4, DistanceExponent: 2})
	require.NoError(t, err)

	coords := scatter(mol.AtomCount(), 7, 1.5)
	grad := make([]r3.Vec, len(coords))
	e := d.EnergyAndGradient(coords, grad)
	assert.InDelta(t, d.Energy(coords), e, 1e-9*math.Max(1, math.Abs(e)))

	want := fd.Gradient(nil, func(x []float64) float64 {
		return d.Energy(unflatten(x))
	}, flatten(coords), &fd.Settings{Formula: fd.Central, Step: 1e-5})

	got := flatten(grad)
	for i := range want {
		assert.InDelta(t, want[i], got[i], 1e-3*math.Max(1, math.Abs(want[i])), "component %d", i)
	}
}

func TestTorsionEnergy_StaggeredBelowEclipsed(t *testing.T) {
	mol := testutil.EthaneWithCoords()
	d, err := NewParameterizer().Parameterize(mol, DefaultConfig())
	require.NoError(t, err)

	staggered := mol.CoordinatesCopy()
	eclipsed := mol.CoordinatesCopy()
	rot := r3.NewRotation(math.Pi/3, r3.Vec{X: 1})
	for i := 5; i < 8; i++ {
		eclipsed[i] = rot.Rotate(eclipsed[i])
	}
	assert.InDelta(t, 0, d.TorsionEnergy(staggered), 1e-6)
	assert.InDelta(t, 2.9, d.TorsionEnergy(eclipsed), 1e-6)
	assert.Less(t, d.Energy(staggered), d.Energy(eclipsed))
}

func TestMinimize(t *testing.T) {
	mol := testutil.ButaneSkeleton()
	d, err := NewParameterizer().Parameterize(mol, DefaultConfig())
	require.NoError(t, err)

	coords := []r3.Vec{{X: 0}, {X: 1.9, Y: 0.3}, {X: 2.6, Y: 1.8}, {X: 4.4, Y: 1.9, Z: 0.4}}
	fixed := bitset.New(4).Set(0)
	before := d.Energy(coords)

	e, err := Minimize(d, coords, MinimizeOptions{MaxIterations: 200, GradientTolerance: 1e-4, Fixed: fixed})
	require.NoError(t, err)
	assert.Less(t, e, before)
	assert.InDelta(t, d.Energy(coords), e, 1e-9)
	assert.Equal(t, r3.Vec{}, coords[0])
	assert.InDelta(t, 1.52, r3.Norm(r3.Sub(coords[1], coords[0])), 0.05)
}

func TestMinimize_FreeMolecule(t *testing.T) {
	mol := testutil.ButaneSkeleton()
	d, err := NewParameterizer().Parameterize(mol, DefaultConfig())
	require.NoError(t, err)
	coords := scatter(4, 3, 1.2)
	before := d.Energy(coords)

	e, err := Minimize(d, coords, MinimizeOptions{MaxIterations: 500})
	require.NoError(t, err)
	assert.LessOrEqual(t, e, before)
	assert.InDelta(t, d.Energy(coords), e, 1e-9)
}

func TestMinimize_NoIterations(t *testing.T) {
	mol := testutil.ButaneSkeleton()
	d, err := NewParameterizer().Parameterize(mol, DefaultConfig())
	require.NoError(t, err)
	coords := []r3.Vec{{X: 0}, {X: 1.9, Y: 0.3}, {X: 2.6, Y: 1.8}, {X: 4.4, Y: 1.9, Z: 0.4}}
	orig := append([]r3.Vec(nil), coords...)

	e, err := Minimize(d, coords, MinimizeOptions{})
	require.NoError(t, err)
	assert.Equal(t, orig, coords)
	assert.InDelta(t, d.Energy(orig), e, 1e-12)
}

func TestInteractionData_SplitSubsetRemap(t *testing.T) {
	mol := testutil.Butane()
	d, err := NewParameterizer().Parameterize(mol, DefaultConfig())
	require.NoError(t, err)

	// Partition by whether any atom is a hydrogen.
	parts := d.Split(2, func(atoms []int) int {
		for _, a := range atoms {
			if mol.IsHydrogen(a) {
				return 1
			}
		}
		return 0
	})
	assert.Equal(t, d.NumTerms(), parts[0].NumTerms()+parts[1].NumTerms())

	heavy := bitset.New(uint(mol.AtomCount()))
	for _, a := range mol.HeavyAtoms() {
		heavy.Set(uint(a))
	}
	sub := d.Subset(heavy)
	assert.Equal(t, parts[0].NumTerms(), sub.NumTerms())
	assert.Len(t, sub.Stretch, 3)
	assert.Len(t, sub.Torsion, 1)

	index := make([]int, mol.AtomCount())
	for i := range index {
		index[i] = -1
	}
	index[0], index[1], index[2], index[3] = 3, 2, 1, 0
	re := d.Remap(index)
	assert.Equal(t, sub.NumTerms(), re.NumTerms())
	assert.Equal(t, 3, re.Torsion[0].A)

	var nilData *InteractionData
	assert.Zero(t, nilData.NumTerms())
	assert.Zero(t, nilData.Energy(nil))
}

//Personal.AI order the ending
