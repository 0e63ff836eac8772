package errors_test

import (
	stderrors "errors"
	"testing"

	"github.com/jrsteele09/crm-session-broker/internal/errors"
	"github.com/stretchr/testify/require"
)

func TestWrapf(t *testing.T) {
	t.Run("nil stays nil", func(t *testing.T) {
		require.NoError(t, errors.Wrapf(nil, "get %s", "abc"))
	})

	t.Run("keeps the chain", func(t *testing.T) {
		err := errors.Wrapf(errors.ErrSessionNotFound, "get %s", "abc")
		require.EqualError(t, err, "get abc: session not found")
		require.True(t, errors.Is(err, errors.ErrSessionNotFound))
		require.False(t, errors.Is(err, errors.ErrStateNotFound))
	})
}

type codeErr struct{ code int }

func (c *codeErr) Error() string { return "code" }

func TestAs(t *testing.T) {
	err := errors.Wrapf(&codeErr{code: 7}, "outer")
	var target *codeErr
	require.True(t, errors.As(err, &target))
	require.Equal(t, 7, target.code)
	require.False(t, errors.As(stderrors.New("plain"), &target))
}
