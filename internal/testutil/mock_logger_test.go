package testutil_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/molinfo-vienna/CDPKit-sub014/internal/infrastructure/monitoring/logging"
	"github.com/molinfo-vienna/CDPKit-sub014/internal/testutil"
)

var (
	_ logging.Logger = (*testutil.MockLogger)(nil)
	_ logging.Logger = (*testutil.NopLogger)(nil)
)

func TestMockLogger_Levels(t *testing.T) {
	logger := testutil.NewMockLogger()
	emit := map[string]func(string, ...logging.Field){
		"debug": logger.Debug,
		"info":  logger.Info,
		"warn":  logger.Warn,
		"error": logger.Error,
		"fatal": logger.Fatal,
	}
	for level, fn := range emit {
		fn("run finished", logging.String("status", "SUCCESS"))
		assert.True(t, logger.HasMessage(level, "run finished"), level)
	}
	assert.Len(t, logger.GetMessages(), len(emit))

	logger.Clear()
	assert.Empty(t, logger.GetMessages())
	assert.False(t, logger.HasMessage("info", "run finished"))
}

func TestMockLogger_ChildrenShareBuffer(t *testing.T) {
	root := testutil.NewMockLogger()

	child := root.Named("confgen").With(logging.Int("atoms", 12)).Named("tree")
	child.Warn("pool truncated", logging.Int("size", 3))

	msgs := root.GetMessages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "confgen.tree", msgs[0].Name)
	v, ok := root.FieldValue("warn", "pool truncated", "atoms")
	assert.True(t, ok)
	assert.Equal(t, 12, v)

	_, ok = root.FieldValue("warn", "pool truncated", "missing")
	assert.False(t, ok)
}

func TestNopLogger(t *testing.T) {
	logger := testutil.NewNopLogger()
	logger.With(logging.String("k", "v")).Named("x").Info("dropped")
	assert.NoError(t, logger.Sync())
}

//Personal.AI order the ending
