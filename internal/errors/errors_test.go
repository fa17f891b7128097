package errors_test

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mcdev12/quizarena/internal/errors"
)

func TestNew(t *testing.T) {
	cause := stderrors.New("boom")
	err := errors.New(errors.CodeUnknownGame,
		errors.WithMessagef("no game with code %s", "ABC123"),
		errors.WithDetail("gameCode", "ABC123"),
		errors.WithCause(cause),
	)

	require.Equal(t, errors.CodeUnknownGame, err.Code)
	require.Equal(t, "no game with code ABC123", err.Message)
	require.Equal(t, "ABC123", err.Details["gameCode"])
	require.ErrorIs(t, err, cause)
}

func TestConvert(t *testing.T) {
	t.Run("typed errors pass through, even wrapped", func(t *testing.T) {
		typed := errors.New(errors.CodeKicked)
		wrapped := fmt.Errorf("dispatch: %w", typed)

		require.Equal(t, typed, errors.Convert(wrapped))
	})

	t.Run("plain errors become internal", func(t *testing.T) {
		e := errors.Convert(stderrors.New("boom"))
		require.Equal(t, errors.CodeInternal, e.Code)
	})
}

func TestIs(t *testing.T) {
	err := errors.New(errors.CodeWindowClosed)
	require.True(t, errors.Is(err, errors.CodeWindowClosed))
	require.False(t, errors.Is(err, errors.CodeKicked))
	require.False(t, errors.Is(stderrors.New("boom"), errors.CodeWindowClosed))
}
