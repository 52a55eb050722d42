package apperror

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewAndError(t *testing.T) {
	e := New(NotFound, "configuration missing")
	require.Equal(t, "NotFound: configuration missing", e.Error())
	require.Nil(t, e.Unwrap())
}

func TestWrapIncludesCause(t *testing.T) {
	cause := errors.New("boom")
	e := Wrap(CommandFailed, "command failed", cause)
	require.ErrorIs(t, e, cause)
	require.Contains(t, e.Error(), "boom")
}

func TestWithDetails(t *testing.T) {
	e := WithDetails(ConfigInvalid, "dependency cycle detected", map[string]any{"cycle": []string{"a", "b"}})
	require.Equal(t, []string{"a", "b"}, e.Details["cycle"])
}

func TestIsHelpers(t *testing.T) {
	require.True(t, IsNotFound(New(NotFound, "x")))
	require.True(t, IsConfigInvalid(New(ConfigInvalid, "x")))
	require.True(t, IsBusy(New(Busy, "x")))
	require.True(t, IsPortUnavailable(New(PortUnavailable, "x")))
	require.True(t, IsStartupFailed(New(StartupFailed, "x")))
	require.False(t, IsNotFound(New(Busy, "x")))
	require.False(t, IsNotFound(errors.New("plain")))
}

func TestKindOf(t *testing.T) {
	require.Equal(t, HandlerMissing, KindOf(New(HandlerMissing, "x")))
	require.Equal(t, Internal, KindOf(errors.New("plain")))
}

func TestErrorsAsThroughWrap(t *testing.T) {
	wrapped := Wrap(BuildFailed, "build failed", New(Internal, "inner"))
	var target *Error
	require.True(t, errors.As(wrapped, &target))
	require.Equal(t, BuildFailed, target.Kind)
}
