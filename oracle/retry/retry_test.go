package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/GPTx-global/rngoracle/oracle/log"
	"github.com/stretchr/testify/require"
)

func fastConfig(attempts int) Config {
	return Config{
		MaxAttempts: attempts,
		BaseDelay:   time.Millisecond,
		MaxDelay:    5 * time.Millisecond,
		Multiplier:  2.0,
	}
}

func TestDo_SucceedsAfterTransientFailures(t *testing.T) {
	log.InitLogger()

	calls := 0
	err := Do(context.Background(), fastConfig(5), func() error {
		calls++
		if calls < 3 {
			return errors.New("dial tcp: connection refused")
		}
		return nil
	}, DefaultIsRetryable)

	require.NoError(t, err)
	require.Equal(t, 3, calls)
}

func TestDo_StopsOnNonRetryable(t *testing.T) {
	calls := 0
	permanent := errors.New("bad request")
	err := Do(context.Background(), fastConfig(5), func() error {
		calls++
		return permanent
	}, DefaultIsRetryable)

	require.ErrorIs(t, err, permanent)
	require.Equal(t, 1, calls)
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(3), func() error {
		calls++
		return errors.New("i/o timeout")
	}, DefaultIsRetryable)

	require.Error(t, err)
	require.Contains(t, err.Error(), "all 3 attempts failed")
	require.Equal(t, 3, calls)
}

func TestDo_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Do(ctx, fastConfig(3), func() error { return nil }, DefaultIsRetryable)
	require.ErrorIs(t, err, context.Canceled)
}

func TestDelay(t *testing.T) {
	cfg := Config{BaseDelay: time.Second, MaxDelay: 5 * time.Second, Multiplier: 2.0}

	require.Equal(t, time.Second, Delay(cfg, 1))
	require.Equal(t, 2*time.Second, Delay(cfg, 2))
	require.Equal(t, 4*time.Second, Delay(cfg, 3))
	require.Equal(t, 5*time.Second, Delay(cfg, 4))
	require.Equal(t, time.Second, Delay(cfg, 0))
}

func TestDefaultIsRetryable(t *testing.T) {
	require.False(t, DefaultIsRetryable(nil))
	require.True(t, DefaultIsRetryable(errors.New("read: connection reset by peer")))
	require.True(t, DefaultIsRetryable(errors.New("unexpected status 503")))
	require.False(t, DefaultIsRetryable(errors.New("unexpected status 400")))
}
