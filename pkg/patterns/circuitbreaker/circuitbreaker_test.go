package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errDown = errors.New("down")

func fail(ctx context.Context) (int, error) { return 0, errDown }
func ok(ctx context.Context) (int, error)   { return 1, nil }

func TestBreaker_OpensAfterMaxFailures(t *testing.T) {
	cb := New[int](2, WithResetTimeout[int](time.Hour))
	ctx := context.Background()

	_, err := cb.Execute(ctx, fail)
	assert.ErrorIs(t, err, errDown)
	assert.Equal(t, StateClosed, cb.State())

	_, err = cb.Execute(ctx, fail)
	assert.ErrorIs(t, err, errDown)
	assert.Equal(t, StateOpen, cb.State())

	_, err = cb.Execute(ctx, ok)
	assert.ErrorIs(t, err, ErrOpen)
}

func TestBreaker_HalfOpenRecovers(t *testing.T) {
	var transitions []State
	cb := New[int](1,
		WithResetTimeout[int](10*time.Millisecond),
		WithStateChangeHook[int](func(_, to State) { transitions = append(transitions, to) }),
	)
	ctx := context.Background()

	_, _ = cb.Execute(ctx, fail)
	require.Equal(t, StateOpen, cb.State())

	time.Sleep(20 * time.Millisecond)
	v, err := cb.Execute(ctx, ok)
	require.NoError(t, err)
	assert.Equal(t, 1, v)
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, []State{StateOpen, StateHalfOpen, StateClosed}, transitions)
}

func TestBreaker_IgnoresNonFailures(t *testing.T) {
	notFound := errors.New("not found")
	cb := New[int](1, WithFailurePredicate[int](func(err error) bool { return errors.Is(err, errDown) }))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := cb.Execute(ctx, func(ctx context.Context) (int, error) { return 0, notFound })
		assert.ErrorIs(t, err, notFound)
	}
	assert.Equal(t, StateClosed, cb.State())
}
