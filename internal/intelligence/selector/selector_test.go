package selector

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/molinfo-vienna/CDPKit-sub014/internal/domain/conformer"
	"github.com/molinfo-vienna/CDPKit-sub014/internal/testutil"
)

func transformed(coords []r3.Vec, angle float64, shift r3.Vec) []r3.Vec {
	rot := r3.NewRotation(angle, r3.Vec{X: 1, Y: 2, Z: 3})
	out := make([]r3.Vec, len(coords))
	for i, c := range coords {
		out[i] = r3.Add(rot.Rotate(c), shift)
	}
	return out
}

func TestSuperposedRMSD(t *testing.T) {
	p := []r3.Vec{{}, {X: 1}}
	q := []r3.Vec{{}, {X: 3}}
	assert.InDelta(t, 1.0, superposedRMSD(p, q), 1e-9)
	assert.Equal(t, 0.0, superposedRMSD(nil, nil))
}

func TestRMSD_RigidMotionIsZero(t *testing.T) {
	mol := testutil.BromochlorofluoromethaneWithCoords(false)
	s := New(mol, Options{MinRMSD: 0.5})
	moved := transformed(mol.Coords, 1.1, r3.Vec{X: 4, Y: -2, Z: 7})
	assert.InDelta(t, 0, s.RMSD(mol.Coords, moved), 1e-6)
}

func TestRMSD_MirrorImageDiffers(t *testing.T) {
	left := testutil.BromochlorofluoromethaneWithCoords(false)
	right := testutil.BromochlorofluoromethaneWithCoords(true)
	s := New(left, Options{})
	assert.Equal(t, 1, s.NumMappings())
	assert.Greater(t, s.RMSD(left.Coords, right.Coords), 0.1)
}

func TestRMSD_SymmetryCorrected(t *testing.T) {
	mol := testutil.EthaneWithCoords()
	swapped := append([]r3.Vec(nil), mol.Coords...)
	swapped[2], swapped[3] = swapped[3], swapped[2]

	s := New(mol, Options{MinRMSD: 0.1})
	assert.Greater(t, s.NumMappings(), 1)
	assert.InDelta(t, 0, s.RMSD(mol.Coords, swapped), 1e-6)
	assert.Greater(t, superposedRMSD(mol.Coords, swapped), 0.2)
	assert.True(t, s.IsDuplicate(swapped, [][]r3.Vec{mol.Coords}))
}

func TestIsDuplicate_DisabledThreshold(t *testing.T) {
	mol := testutil.EthaneWithCoords()
	s := New(mol, Options{})
	assert.False(t, s.IsDuplicate(mol.Coords, [][]r3.Vec{mol.Coords}))
}

func TestSelect(t *testing.T) {
	mol := testutil.BromochlorofluoromethaneWithCoords(false)
	mirror := testutil.BromochlorofluoromethaneWithCoords(true)
	s := New(mol, Options{MinRMSD: 0.1})

	base := conformer.Data{Coords: mol.Coords, Energy: 2}
	dup := conformer.Data{Coords: transformed(mol.Coords, 0.3, r3.Vec{Z: 1}), Energy: 1}
	other := conformer.Data{Coords: mirror.Coords, Energy: 3}
	high := conformer.Data{Coords: transformed(mirror.Coords, 0, r3.Vec{}), Energy: 50}

	tests := []struct {
		name     string
		kept     []conformer.Data
		maxCount int
		window   float64
		energies []float64
	}{
		{"dedup keeps lowest", nil, 0, 0, []float64{1, 3}},
		{"window", nil, 0, 1.5, []float64{1}},
		{"count cap", nil, 1, 0, []float64{1}},
		{"kept first", []conformer.Data{other}, 0, 0, []float64{3, 1}},
		{"kept fills cap", []conformer.Data{other}, 1, 0, []float64{3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := s.Select(tt.kept, []conformer.Data{base, high, dup, other}, tt.maxCount, tt.window)
			got := make([]float64, len(out))
			for i, d := range out {
				got[i] = d.Energy
			}
			assert.Equal(t, tt.energies, got)
		})
	}
}

func TestSelect_OutputIsDiverse(t *testing.T) {
	mol := testutil.EthaneWithCoords()
	s := New(mol, Options{MinRMSD: 0.3})
	var cands []conformer.Data
	for i := 0; i < 12; i++ {
		coords := append([]r3.Vec(nil), mol.Coords...)
		// Twist the second methyl group.
		rot := r3.NewRotation(float64(i)*math.Pi/18, r3.Vec{X: 1})
		for _, h := range []int{5, 6, 7} {
			coords[h] = rot.Rotate(coords[h])
		}
		cands = append(cands, conformer.Data{Coords: coords, Energy: float64(i)})
	}
	out := s.Select(nil, cands, 0, 0)
	require.NotEmpty(t, out)
	for i := range out {
		for j := i + 1; j < len(out); j++ {
			assert.GreaterOrEqual(t, s.RMSD(out[i].Coords, out[j].Coords), 0.3)
		}
	}
}

//Personal.AI order the ending
