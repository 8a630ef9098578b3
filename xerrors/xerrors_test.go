package xerrors_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/guideforge/engine/xerrors"
)

func TestStepErrorUnwrap(t *testing.T) {
	cause := errors.New("element gone")
	se := xerrors.NewStepError(xerrors.NotFound, "locate by label failed", cause)
	require.ErrorIs(t, se, cause)

	got, ok := xerrors.AsStepError(se)
	require.True(t, ok)
	require.Equal(t, xerrors.NotFound, got.Kind)
}

func TestPlaceholderError(t *testing.T) {
	err := xerrors.NewPlaceholderError("secret", "MISSING")
	require.EqualError(t, err, "unknown placeholder secret.MISSING")
}

func TestStuckLoopError(t *testing.T) {
	err := xerrors.NewStuckLoopError("last two triples match")
	require.Contains(t, err.Error(), "stuck")
}
