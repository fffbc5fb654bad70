package backoff

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPolicy_DelayGrowth(t *testing.T) {
	p := Policy{MaxRetries: 3, InitialDelay: time.Second, Factor: 2}

	assert.Equal(t, time.Second, p.Delay(0))
	assert.Equal(t, 2*time.Second, p.Delay(1))
	assert.Equal(t, 4*time.Second, p.Delay(2))
}

func TestDo_PropagatesLastError(t *testing.T) {
	p := Policy{MaxRetries: 3, InitialDelay: time.Millisecond, Factor: 2}

	attempts := 0
	lastErr := errors.New("attempt 4 failed")

	err := Do(context.Background(), p, func() error {
		attempts++
		if attempts == 4 {
			return lastErr
		}
		return errors.New("boom")
	})

	require.ErrorIs(t, err, lastErr)
	assert.Equal(t, 4, attempts)
}

func TestDo_ZeroRetriesIsSingleAttempt(t *testing.T) {
	p := Policy{MaxRetries: 0, InitialDelay: time.Millisecond, Factor: 2}

	attempts := 0
	boom := errors.New("boom")

	err := Do(context.Background(), p, func() error {
		attempts++
		return boom
	})

	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, attempts)
}

func TestDo_StopsOnSuccess(t *testing.T) {
	p := Policy{MaxRetries: 5, InitialDelay: time.Millisecond, Factor: 2}

	attempts := 0

	err := Do(context.Background(), p, func() error {
		attempts++
		if attempts < 3 {
			return errors.New("boom")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestDo_ContextCanceledDuringWait(t *testing.T) {
	p := Policy{MaxRetries: 3, InitialDelay: time.Hour, Factor: 2}

	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := Do(ctx, p, func() error {
		return errors.New("boom")
	})

	require.ErrorIs(t, err, context.Canceled)
}

func TestSleep_ZeroReturnsImmediately(t *testing.T) {
	require.NoError(t, Sleep(context.Background(), 0))
}
