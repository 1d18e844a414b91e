package conformer

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/molinfo-vienna/CDPKit-sub014/pkg/errors"
)

func TestRecord_EnergyUndefinedUntilSet(t *testing.T) {
	r := NewRecord(3)
	assert.Len(t, r.Coords, 3)
	assert.False(t, r.HasEnergy())

	r.Energy = -1.5
	assert.True(t, r.HasEnergy())

	r.Reset()
	assert.False(t, r.HasEnergy())
	assert.Equal(t, r3.Vec{}, r.Coords[0])
}

func TestRecord_CopySwapDetach(t *testing.T) {
	a := NewRecord(2)
	a.Coords[1] = r3.Vec{X: 1, Y: 2, Z: 3}
	a.Energy = 4

	b := NewRecord(0)
	b.CopyFrom(a)
	require.Len(t, b.Coords, 2)
	assert.Equal(t, a.Coords[1], b.Coords[1])

	c := NewRecord(2)
	c.Energy = 9
	a.Swap(c)
	assert.Equal(t, 9.0, a.Energy)
	assert.Equal(t, 4.0, c.Energy)
	assert.Equal(t, r3.Vec{X: 1, Y: 2, Z: 3}, c.Coords[1])

	d := c.Detach()
	c.Coords[1] = r3.Vec{}
	assert.Equal(t, r3.Vec{X: 1, Y: 2, Z: 3}, d.Coords[1])
}

func TestByEnergy_NaNSortsLast(t *testing.T) {
	assert.True(t, ByEnergy(1, 2))
	assert.False(t, ByEnergy(2, 1))
	assert.True(t, ByEnergy(5, math.NaN()))
	assert.False(t, ByEnergy(math.NaN(), 5))
}

func TestCache_AcquireReleaseAccounting(t *testing.T) {
	c := NewRecordCache(4, 2)

	r1 := c.Acquire()
	r2 := c.Acquire()
	r3rec := c.Acquire()
	assert.Equal(t, 3, c.Outstanding())

	r1.Energy = 1
	c.Release(r1)
	assert.False(t, r1.HasEnergy(), "released records are reset")
	c.ReleaseAll([]*Record{r2, r3rec})

	assert.Equal(t, 0, c.Outstanding())
	assert.LessOrEqual(t, c.Idle(), 2, "idle objects are bounded")
	require.NoError(t, c.Close())
}

func TestCache_ReusesReleasedObjects(t *testing.T) {
	c := NewRecordCache(1, 4)
	r := c.Acquire()
	c.Release(r)
	again := c.Acquire()
	assert.Same(t, r, again)
	c.Release(again)
	require.NoError(t, c.Close())
}

func TestCache_CloseWithOutstandingFails(t *testing.T) {
	c := NewRecordCache(1, 4)
	r := c.Acquire()

	err := c.Close()
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeConfGenCacheMisuse))

	c.Release(r)
	require.NoError(t, c.Close())
}

func TestCache_ScopedReleasesOnError(t *testing.T) {
	c := NewRecordCache(1, 4)
	boom := errors.Internal("boom")

	err := c.Scoped(func(r *Record) error {
		assert.Equal(t, 1, c.Outstanding())
		return boom
	})
	assert.Equal(t, boom, err)
	assert.Equal(t, 0, c.Outstanding())
}

func TestReturnCode_StringAndParse(t *testing.T) {
	codes := []ReturnCode{Success, Timeout, Aborted, ForceFieldSetupFailed, ConfGenFailed, TorsionDrivingFailed}
	for _, code := range codes {
		parsed, ok := ParseReturnCode(code.String())
		require.True(t, ok, code.String())
		assert.Equal(t, code, parsed)
	}
	assert.Equal(t, "UNKNOWN", ReturnCode(99).String())
	assert.True(t, Timeout.Interrupted())
	assert.True(t, Aborted.Interrupted())
	assert.False(t, ConfGenFailed.Interrupted())
	assert.True(t, Success.OK())
}

func TestControl_Check(t *testing.T) {
	t.Run("nil control", func(t *testing.T) {
		var c *Control
		assert.Equal(t, Success, c.Check())
	})

	t.Run("abort callback", func(t *testing.T) {
		calls := 0
		c := NewControl(context.Background(), func() bool { calls++; return calls >= 2 }, 0)
		assert.Equal(t, Success, c.Check())
		assert.Equal(t, Aborted, c.Check())
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		assert.Equal(t, Aborted, NewControl(ctx, nil, 0).Check())
	})

	t.Run("context deadline", func(t *testing.T) {
		ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
		defer cancel()
		assert.Equal(t, Timeout, NewControl(ctx, nil, 0).Check())
	})

	t.Run("settings timeout", func(t *testing.T) {
		c := NewControl(context.Background(), nil, time.Nanosecond)
		time.Sleep(time.Millisecond)
		assert.Equal(t, Timeout, c.Check())
	})
}

func TestParseSamplingMode(t *testing.T) {
	tests := []struct {
		in   string
		want SamplingMode
		err  bool
	}{
		{"", ModeAuto, false},
		{"AUTO", ModeAuto, false},
		{"systematic", ModeSystematic, false},
		{" stochastic ", ModeStochastic, false},
		{"random", ModeAuto, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSamplingMode(tt.in)
			if tt.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, mustParse(t, got.String()))
		})
	}
}

func mustParse(t *testing.T, s string) SamplingMode {
	m, err := ParseSamplingMode(s)
	require.NoError(t, err)
	return m
}

func TestSettings_Validate(t *testing.T) {
	require.NoError(t, DefaultSettings().Validate())

	tests := []struct {
		name   string
		mutate func(*Settings)
	}{
		{"energy window", func(s *Settings) { s.EnergyWindow = 0 }},
		{"pool size", func(s *Settings) { s.MaxPoolSize = 0 }},
		{"rmsd", func(s *Settings) { s.MinRMSD = -1 }},
		{"angle increment", func(s *Settings) { s.DefaultAngleIncrement = 0 }},
		{"convergence ratio", func(s *Settings) { s.ConvergenceRatio = 2 }},
		{"dielectric", func(s *Settings) { s.DielectricConstant = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultSettings()
			tt.mutate(&s)
			err := s.Validate()
			require.Error(t, err)
			assert.True(t, errors.IsCode(err, errors.ErrCodeConfGenSettingsInvalid))
		})
	}
}

//Personal.AI order the ending
