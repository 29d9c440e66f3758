package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBroker = errors.New("broker unavailable")

func TestWithTimeout_DeadlineExceeded(t *testing.T) {
	_, err := WithTimeout(context.Background(), 10*time.Millisecond, "search", func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})

	var te *TimeoutError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "search", te.Op)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWithTimeout_ParentCancelIsNotATimeout(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := WithTimeout(ctx, time.Minute, "search", func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})

	assert.ErrorIs(t, err, context.Canceled)
	var te *TimeoutError
	assert.False(t, errors.As(err, &te))
}

func TestWithTimeout_ReturnsValue(t *testing.T) {
	v, err := WithTimeout(context.Background(), time.Second, "noop", func(ctx context.Context) (string, error) {
		return "done", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "done", v)

	v, err = WithTimeout(context.Background(), 0, "inline", func(ctx context.Context) (string, error) {
		return "inline", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "inline", v)
}

func TestRetry_SucceedsAfterFailures(t *testing.T) {
	attempts := 0
	cfg := RetryConfig{MaxAttempts: 3, Backoff: Backoff{Initial: time.Millisecond}}
	err := Retry(context.Background(), "publish", cfg, func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return errBroker
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetry_GivesUp(t *testing.T) {
	attempts := 0
	cfg := RetryConfig{MaxAttempts: 2, Backoff: Backoff{Initial: time.Millisecond}}
	err := Retry(context.Background(), "publish", cfg, func(ctx context.Context) error {
		attempts++
		return errBroker
	})

	assert.ErrorIs(t, err, errBroker)
	assert.ErrorContains(t, err, "gave up after 2 attempts")
	assert.Equal(t, 2, attempts)
}

func TestRetry_PermanentStopsEarly(t *testing.T) {
	attempts := 0
	cfg := RetryConfig{MaxAttempts: 5, Backoff: Backoff{Initial: time.Millisecond}}
	err := Retry(context.Background(), "publish", cfg, func(ctx context.Context) error {
		attempts++
		return Permanent(ErrCircuitOpen)
	})

	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, 1, attempts)
}

func TestBackoff_Delay(t *testing.T) {
	b := Backoff{Initial: 100 * time.Millisecond, Max: time.Second, Multiplier: 2}

	assert.Equal(t, 100*time.Millisecond, b.Delay(1))
	assert.Equal(t, 400*time.Millisecond, b.Delay(3))
	assert.Equal(t, time.Second, b.Delay(10))

	b.Jitter = 0.5
	for range 50 {
		d := b.Delay(2)
		assert.GreaterOrEqual(t, d, 100*time.Millisecond)
		assert.LessOrEqual(t, d, 300*time.Millisecond)
	}
}

func TestCircuitBreaker_OpensAndRecovers(t *testing.T) {
	// Given
	now := time.Unix(0, 0)
	cb := NewCircuitBreaker("kafka", CircuitBreakerConfig{FailureThreshold: 2, ResetTimeout: time.Minute})
	cb.now = func() time.Time { return now }
	fail := func(ctx context.Context) error { return errBroker }
	ok := func(ctx context.Context) error { return nil }
	ctx := context.Background()

	// When
	_ = cb.Execute(ctx, fail)
	_ = cb.Execute(ctx, fail)

	// Then
	assert.Equal(t, StateOpen, cb.State())
	assert.ErrorIs(t, cb.Execute(ctx, ok), ErrCircuitOpen)

	now = now.Add(time.Minute)
	require.NoError(t, cb.Execute(ctx, ok))
	assert.Equal(t, StateClosed, cb.State())
}

func TestNewCircuitBreaker_ZeroConfigDefaults(t *testing.T) {
	now := time.Unix(0, 0)
	cb := NewCircuitBreaker("index", CircuitBreakerConfig{})
	cb.now = func() time.Time { return now }
	fail := func(ctx context.Context) error { return errBroker }
	ctx := context.Background()

	for range 4 {
		_ = cb.Execute(ctx, fail)
	}
	assert.Equal(t, StateClosed, cb.State())
	_ = cb.Execute(ctx, fail)
	assert.Equal(t, StateOpen, cb.State())

	now = now.Add(29 * time.Second)
	assert.ErrorIs(t, cb.Execute(ctx, fail), ErrCircuitOpen)
	now = now.Add(time.Second)
	require.NoError(t, cb.Execute(ctx, func(ctx context.Context) error { return nil }))
	assert.Equal(t, StateClosed, cb.State())
}
