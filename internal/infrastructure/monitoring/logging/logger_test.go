package logging

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newObservedLogger(level zapcore.Level) (Logger, *observer.ObservedLogs) {
	core, logs := observer.New(level)
	return NewLoggerFromCore(core), logs
}

func TestNewLogger_Formats(t *testing.T) {
	tests := []struct {
		name string
		cfg  LogConfig
	}{
		{"json", LogConfig{Level: LevelInfo, Format: "json", OutputPaths: []string{"stderr"}}},
		{"console", LogConfig{Level: LevelDebug, Format: "console", OutputPaths: []string{"stderr"}}},
		{"defaults", LogConfig{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := NewLogger(tt.cfg)
			require.NoError(t, err)
			assert.NotNil(t, l)
		})
	}
}

func TestNewLogger_EmptyOutputPathsRejected(t *testing.T) {
	l, err := NewLogger(LogConfig{OutputPaths: []string{}})
	assert.Error(t, err)
	assert.Nil(t, l)
}

func TestNewLeveledLogger_ChangesLevel(t *testing.T) {
	l, level, err := NewLeveledLogger(LogConfig{Level: LevelWarn})
	require.NoError(t, err)
	require.NotNil(t, l)
	assert.False(t, level.Enabled(zapcore.InfoLevel))

	level.SetLevel(ParseLevel("debug"))
	assert.True(t, level.Enabled(zapcore.DebugLevel))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, zapcore.WarnLevel, ParseLevel("warning"))
	assert.Equal(t, zapcore.ErrorLevel, ParseLevel(" error "))
	assert.Equal(t, zapcore.InfoLevel, ParseLevel("verbose"))
}

func TestZapLogger_FieldsAreTyped(t *testing.T) {
	l, logs := newObservedLogger(zapcore.DebugLevel)

	l.Info("run finished",
		RunID("r-1"),
		Int("conformers", 12),
		Float64("min_energy", -3.5),
		Bool("fallback", false),
		Duration("elapsed", 2*time.Second),
		Err(errors.New("boom")),
	)

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "run finished", entry.Message)
	ctx := entry.ContextMap()
	assert.Equal(t, "r-1", ctx["run_id"])
	assert.Equal(t, int64(12), ctx["conformers"])
	assert.Equal(t, -3.5, ctx["min_energy"])
	assert.Equal(t, false, ctx["fallback"])
	assert.Equal(t, "boom", ctx["error"])
}

func TestZapLogger_LevelFiltering(t *testing.T) {
	l, logs := newObservedLogger(zapcore.WarnLevel)

	l.Debug("d")
	l.Info("i")
	l.Warn("w")
	l.Error("e")

	assert.Equal(t, 2, logs.Len())
}

func TestZapLogger_WithAndNamed(t *testing.T) {
	l, logs := newObservedLogger(zapcore.DebugLevel)

	child := l.Named("tree").With(Molecule("butane"))
	child.Debug("node combined")

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "tree", entry.LoggerName)
	assert.Equal(t, "butane", entry.ContextMap()["molecule"])
}

func TestErr_Nil(t *testing.T) {
	f := Err(nil)
	assert.Equal(t, "error", f.Key)
	assert.Equal(t, "<nil>", f.Value)
}

func TestNopLogger_AllMethodsNoOp(t *testing.T) {
	l := NewNopLogger()
	l.Debug("msg")
	l.Info("msg")
	l.Warn("msg")
	l.Error("msg")
	assert.Equal(t, l, l.With(String("k", "v")))
	assert.Equal(t, l, l.Named("x"))
	assert.NoError(t, l.Sync())
}

func TestDefault_SetAndOrDefault(t *testing.T) {
	orig := Default()
	t.Cleanup(func() { SetDefault(orig) })

	l, _ := newObservedLogger(zapcore.InfoLevel)
	SetDefault(l)
	SetDefault(nil)

	assert.Same(t, l, Default())
	assert.Same(t, l, OrDefault(nil))

	other := NewNopLogger()
	assert.Equal(t, other, OrDefault(other))
}

//Personal.AI order the ending
