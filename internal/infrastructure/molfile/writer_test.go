package molfile

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/molinfo-vienna/CDPKit-sub014/internal/domain/conformer"
	"github.com/molinfo-vienna/CDPKit-sub014/internal/domain/molecule"
	"github.com/molinfo-vienna/CDPKit-sub014/internal/testutil"
	"github.com/molinfo-vienna/CDPKit-sub014/pkg/errors"
)

func fixedClock() time.Time { return time.Date(2024, 3, 7, 9, 30, 0, 0, time.UTC) }

func shifted(coords []r3.Vec, dx float64) []r3.Vec {
	out := make([]r3.Vec, len(coords))
	for i, p := range coords {
		out[i] = r3.Add(p, r3.Vec{X: dx})
	}
	return out
}

func TestWriteConformers_ReadBack(t *testing.T) {
	mol := testutil.EthaneWithCoords()
	confs := []conformer.Data{
		{Coords: mol.CoordinatesCopy(), Energy: 1.23456},
		{Coords: shifted(mol.Coords, 2), Energy: 4.5},
	}

	data, err := MarshalConformers(mol, confs, WithClock(fixedClock), WithProgram("TEST"))
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(data), recordTerminator+"\n"))
	assert.Contains(t, string(data), "  TEST    03072409303D\n")

	mols, err := ReadAll(bytes.NewReader(data))
	require.NoError(t, err)
	require.Len(t, mols, 2)
	for i, m := range mols {
		assert.Equal(t, "ethane", m.Name)
		require.Equal(t, mol.AtomCount(), m.AtomCount())
		require.Equal(t, mol.BondCount(), m.BondCount())
		for a := range confs[i].Coords {
			assert.InDelta(t, confs[i].Coords[a].X, m.Coords[a].X, 1e-4)
			assert.InDelta(t, confs[i].Coords[a].Y, m.Coords[a].Y, 1e-4)
			assert.InDelta(t, confs[i].Coords[a].Z, m.Coords[a].Z, 1e-4)
		}
		e, ok := ParseEnergy(m)
		require.True(t, ok)
		assert.InDelta(t, confs[i].Energy, e, 1e-4)
	}
	assert.Equal(t, "2", mols[1].Props[FieldConformer])
}

func TestWrite_ChargesAndAromaticity(t *testing.T) {
	mol := testutil.Benzene()
	mol.SetFormalCharge(0, -1)
	mol.SetFormalCharge(1, 4)
	coords := make([]r3.Vec, mol.AtomCount())
	for i := range coords {
		coords[i] = r3.Vec{X: float64(i), Y: 1, Z: 0.5}
	}

	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.Write(mol, coords, DataField{Name: "NOTE", Value: "x"}))
	require.NoError(t, w.Flush())
	assert.Contains(t, buf.String(), "M  CHG  2   1  -1   2   4\n")

	got, err := ParseMolBlock(buf.String())
	require.NoError(t, err)
	assert.Equal(t, -1, got.Atoms[0].FormalCharge)
	assert.Equal(t, 4, got.Atoms[1].FormalCharge)
	assert.True(t, got.Bonds[0].Aromatic)
	assert.Equal(t, "x", got.Props["NOTE"])
}

func TestWrite_DataOverridesProps(t *testing.T) {
	mol := testutil.EthaneWithCoords()
	mol.Props[FieldEnergy] = "99"
	mol.Props["ID"] = "E1"

	data, err := MarshalConformers(mol, []conformer.Data{{Coords: mol.Coords, Energy: 1}})
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(data), "<"+FieldEnergy+">"))

	got, err := ParseMolBlock(string(data))
	require.NoError(t, err)
	assert.Equal(t, "E1", got.Props["ID"])
	assert.Equal(t, "1.0000", got.Props[FieldEnergy])
}

func TestWrite_Errors(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	assert.Error(t, w.Write(nil, nil))

	mol := testutil.EthaneWithCoords()
	err := w.Write(mol, mol.Coords[:2])
	assert.True(t, errors.IsCode(err, errors.ErrCodeBadRequest))

	big := molecule.New("big")
	for i := 0; i <= maxV2000Atoms; i++ {
		big.AddAtom("C")
	}
	err = w.Write(big, nil)
	assert.True(t, errors.IsCode(err, errors.ErrCodeMoleculeInvalidFormat))
}

//Personal.AI order the ending
