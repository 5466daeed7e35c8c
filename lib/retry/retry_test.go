package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSucceedsFirstTry(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Options{Attempts: 3, Name: "noop"}, func(ctx context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 1, calls)
}

func TestExhaustsAttempts(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	err := Do(context.Background(), Options{
		Attempts: 3,
		Delay:    time.Millisecond,
		Name:     "always-fails",
	}, func(ctx context.Context) error {
		calls++
		return boom
	})
	require.ErrorIs(t, err, boom)
	require.Equal(t, 3, calls)
}

func TestRecoversMidway(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Options{
		Attempts: 5,
		Delay:    time.Millisecond,
		Name:     "flaky",
	}, func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("not yet")
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, calls)
}

func TestContextCancelAbortsWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(time.Millisecond * 10)
		cancel()
	}()

	err := Do(ctx, Options{
		Attempts: 2,
		Delay:    time.Minute,
		Name:     "slow",
	}, func(ctx context.Context) error {
		return errors.New("fail fast, wait long")
	})
	require.ErrorIs(t, err, context.Canceled)
}

func TestZeroAttemptsRunsOnce(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Options{Name: "unset"}, func(ctx context.Context) error {
		calls++
		return errors.New("nope")
	})
	require.Error(t, err)
	require.Equal(t, 1, calls)
}
