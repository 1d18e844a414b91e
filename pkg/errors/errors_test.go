package errors_test

import (
	stderrors "errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/molinfo-vienna/CDPKit-sub014/pkg/errors"
)

// ─────────────────────────────────────────────────────────────────────────────
// New / Wrap
// ─────────────────────────────────────────────────────────────────────────────

func TestNew_FieldsAreSetCorrectly(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		code    errors.ErrorCode
		message string
	}{
		{"internal error", errors.CodeInternal, "unexpected failure"},
		{"empty molecule", errors.ErrCodeMoleculeEmpty, "molecule has no atoms"},
		{"invalid param", errors.CodeInvalidParam, "energy window must be positive"},
		{"bad pattern", errors.ErrCodeTorsionPatternInvalid, "unbalanced bracket"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			ae := errors.New(tc.code, tc.message)

			require.NotNil(t, ae)
			assert.Equal(t, tc.code, ae.Code)
			assert.Equal(t, tc.message, ae.Message)
			assert.Empty(t, ae.Detail)
			assert.Nil(t, ae.Cause)
			assert.Contains(t, ae.Stack, "errors_test.go")
		})
	}
}

func TestNewf_FormatsMessage(t *testing.T) {
	ae := errors.Newf(errors.ErrCodeMoleculeAtomIndex, "atom %d out of range [0,%d)", 7, 5)
	assert.Equal(t, "atom 7 out of range [0,5)", ae.Message)
}

func TestWrap_NilErrReturnsNil(t *testing.T) {
	t.Parallel()

	assert.Nil(t, errors.Wrap(nil, errors.CodeInternal, "should not matter"))
}

func TestWrap_CauseChainIsPreserved(t *testing.T) {
	t.Parallel()

	root := stderrors.New("disk full")
	wrapped := errors.Wrap(root, errors.ErrCodeStorageError, "write sdf")

	require.NotNil(t, wrapped)
	assert.True(t, stderrors.Is(wrapped, root))
	assert.Equal(t, root, stderrors.Unwrap(wrapped))
	assert.Contains(t, wrapped.Error(), "disk full")
}

func TestWrap_UnknownCodePreservesOriginal(t *testing.T) {
	t.Parallel()

	inner := errors.New(errors.ErrCodeForceFieldSetupFailed, "no parameters for Xx")
	outer := errors.Wrap(inner, errors.CodeUnknown, "setup")

	assert.Equal(t, errors.ErrCodeForceFieldSetupFailed, outer.Code)
}

// ─────────────────────────────────────────────────────────────────────────────
// Error formatting and builders
// ─────────────────────────────────────────────────────────────────────────────

func TestError_Format(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  *errors.AppError
		want string
	}{
		{"message only", errors.New(errors.CodeInternal, "boom"), "[COMMON_001] boom"},
		{"with detail", errors.New(errors.CodeInternal, "boom").WithDetail("atom 3"), "[COMMON_001] boom: atom 3"},
		{"with cause", errors.New(errors.CodeInternal, "boom").WithCause(fmt.Errorf("io")), "[COMMON_001] boom: io"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestWithDetail_DoesNotMutateReceiver(t *testing.T) {
	orig := errors.InvalidParam("bad")
	clone := orig.WithDetailf("value=%d", 3)

	assert.Empty(t, orig.Detail)
	assert.Equal(t, "value=3", clone.Detail)
}

func TestBuilders_NilSafe(t *testing.T) {
	var ae *errors.AppError
	assert.Nil(t, ae.WithDetail("x"))
	assert.Nil(t, ae.WithCause(stderrors.New("x")))
}

// ─────────────────────────────────────────────────────────────────────────────
// Chain inspection
// ─────────────────────────────────────────────────────────────────────────────

func TestIsCode_TraversesStdlibWrapping(t *testing.T) {
	t.Parallel()

	inner := errors.New(errors.ErrCodeTorsionLibraryInvalid, "duplicate rule")
	outer := fmt.Errorf("load library: %w", inner)

	assert.True(t, errors.IsCode(outer, errors.ErrCodeTorsionLibraryInvalid))
	assert.False(t, errors.IsCode(outer, errors.CodeInternal))
	assert.False(t, errors.IsCode(nil, errors.CodeInternal))
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, errors.IsNotFound(errors.NotFound("x")))
	assert.True(t, errors.IsNotFound(errors.New(errors.ErrCodeConfGenResultNotFound, "x")))
	assert.False(t, errors.IsNotFound(errors.Internal("x")))
}

func TestGetCode(t *testing.T) {
	assert.Equal(t, errors.CodeOK, errors.GetCode(nil))
	assert.Equal(t, errors.CodeUnknown, errors.GetCode(stderrors.New("plain")))
	assert.Equal(t, errors.CodeConflict, errors.GetCode(errors.InvalidState("x")))
}

func TestAs_FindsAppError(t *testing.T) {
	var target *errors.AppError
	err := fmt.Errorf("ctx: %w", errors.Internal("deep"))
	require.True(t, errors.As(err, &target))
	assert.True(t, strings.HasPrefix(target.Error(), "[COMMON_001]"))
}

//Personal.AI order the ending
