package cancellation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alexisbeaulieu97/actionflow/internal/domain/action"
)

func TestRegistryCancelAllAbortsEveryToken(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	tokens := []*Token{
		NewToken(context.Background()),
		NewToken(context.Background()),
		NewToken(context.Background()),
	}
	reg.Register("", tokens[0])
	reg.Register("hero", tokens[1])
	reg.Register("footer", tokens[2])
	require.Equal(t, 3, reg.Size())

	require.Equal(t, 3, reg.CancelAll())
	require.Equal(t, 0, reg.Size())
	require.Empty(t, reg.Owners())

	for i, token := range tokens {
		require.True(t, token.Aborted(), "token %d should be aborted", i)
		require.ErrorIs(t, context.Cause(token.Context()), action.ErrAborted)
	}
}

func TestRegistryCancelOwnerOnlyTouchesOwner(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	mine := NewToken(context.Background())
	other := NewToken(context.Background())
	reg.Register("carousel", mine)
	reg.Register("carousel", NewToken(context.Background()))
	reg.Register("form", other)

	require.Equal(t, 2, reg.OwnerSize("carousel"))
	require.Equal(t, 2, reg.CancelOwner("carousel"))

	require.True(t, mine.Aborted())
	require.False(t, other.Aborted())
	require.Equal(t, 1, reg.Size())
	require.Equal(t, 0, reg.OwnerSize("carousel"))
	require.Equal(t, []string{"form"}, reg.Owners())
}

func TestRegistryReleaseRemovesWithoutAbort(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	token := NewToken(context.Background())
	id := reg.Register("hero", token)

	reg.Release(id)
	reg.Release(id)

	require.Equal(t, 0, reg.Size())
	require.Equal(t, 0, reg.OwnerSize("hero"))
	require.False(t, errors.Is(context.Cause(token.Context()), action.ErrAborted))
	require.False(t, token.Aborted())
	require.Error(t, token.Context().Err(), "released tokens still free their context")
	require.False(t, reg.Cancel(id), "released ids are unknown")
}

func TestIsAbortDistinguishesDeadlines(t *testing.T) {
	t.Parallel()

	require.True(t, IsAbort(ErrAborted))
	require.True(t, IsAbort(context.Canceled))
	require.False(t, IsAbort(context.DeadlineExceeded))
	require.False(t, IsAbort(errors.New("boom")))
	require.False(t, IsAbort(nil))
}

func TestOwnerRoundTripsThroughContext(t *testing.T) {
	t.Parallel()

	ctx := WithOwner(context.Background(), "checkout")
	require.Equal(t, "checkout", OwnerFrom(ctx))
	require.Equal(t, "", OwnerFrom(context.Background()))
}
