// Deckd - Candidate Deck Recommendation Service
// Copyright 2026 Swipedeck
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/swipedeck/deckd

package resilience

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swipedeck/deckd/internal/models"
)

// testProfile returns a profile tuned for fast tests: tiny backoff, short
// timeouts, small breaker window.
func testProfile(name string) models.ResilienceProfile {
	p := models.DefaultResilienceProfile(name)
	p.Timeout = 200 * time.Millisecond
	p.InitialBackoff = time.Millisecond
	p.JitterFraction = 0
	p.MinCalls = 3
	p.FailureRateThreshold = 50
	p.SlowCallDuration = 0
	p.OpenStateWait = 50 * time.Millisecond
	p.MaxWait = 20 * time.Millisecond
	return p
}

func TestExecuteSuccess(t *testing.T) {
	c := NewCaller(testProfile("test-success"))

	result, err := ExecuteTyped(context.Background(), c, func(ctx context.Context) (string, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", result)
}

func TestRetryRecoverFromTransientFailures(t *testing.T) {
	p := testProfile("test-retry")
	p.MaxAttempts = 3
	c := NewCaller(p)

	var calls atomic.Int32
	result, err := ExecuteTyped(context.Background(), c, func(ctx context.Context) (int, error) {
		if calls.Add(1) < 3 {
			return 0, errors.New("transient")
		}
		return 42, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 42, result)
	assert.Equal(t, int32(3), calls.Load())
}

func TestRetryStopsOnPermanentError(t *testing.T) {
	p := testProfile("test-permanent")
	p.MaxAttempts = 5
	c := NewCaller(p)

	var calls atomic.Int32
	_, err := c.Execute(context.Background(), func(ctx context.Context) (interface{}, error) {
		calls.Add(1)
		return nil, &StatusError{Code: http.StatusBadRequest}
	})

	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load(), "4xx must not be retried")

	var se *StatusError
	assert.True(t, errors.As(err, &se))
}

func TestRetryExhaustsAttemptBudget(t *testing.T) {
	p := testProfile("test-budget")
	p.MaxAttempts = 3
	c := NewCaller(p)

	var calls atomic.Int32
	_, err := c.Execute(context.Background(), func(ctx context.Context) (interface{}, error) {
		calls.Add(1)
		return nil, &StatusError{Code: http.StatusInternalServerError}
	})

	require.Error(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestPerAttemptTimeout(t *testing.T) {
	p := testProfile("test-timeout")
	p.Timeout = 20 * time.Millisecond
	p.MaxAttempts = 2
	c := NewCaller(p)

	var calls atomic.Int32
	_, err := c.Execute(context.Background(), func(ctx context.Context) (interface{}, error) {
		calls.Add(1)
		select {
		case <-time.After(time.Second):
			return "late", nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, int32(2), calls.Load(), "timeouts are retryable")
}

func TestCircuitBreakerOpensAndFailsFast(t *testing.T) {
	p := testProfile("test-breaker")
	p.MaxAttempts = 1
	c := NewCaller(p)

	var calls atomic.Int32
	failing := func(ctx context.Context) (interface{}, error) {
		calls.Add(1)
		return nil, errors.New("boom")
	}

	// MinCalls failing observations trip the breaker.
	for i := 0; i < int(p.MinCalls); i++ {
		_, err := c.Execute(context.Background(), failing)
		require.Error(t, err)
	}
	invoked := calls.Load()

	// While open, calls are rejected without reaching the operation.
	_, err := c.Execute(context.Background(), failing)
	require.Error(t, err)
	assert.True(t, IsRejected(err), "expected rejection, got %v", err)
	assert.Equal(t, invoked, calls.Load(), "open breaker must not invoke the operation")

	// After the open-state wait the breaker goes half-open and trials again.
	time.Sleep(p.OpenStateWait + 10*time.Millisecond)
	_, err = c.Execute(context.Background(), func(ctx context.Context) (interface{}, error) {
		return "recovered", nil
	})
	assert.NoError(t, err)
}

func TestPermanentErrorsDoNotTripBreaker(t *testing.T) {
	p := testProfile("test-breaker-4xx")
	p.MaxAttempts = 1
	c := NewCaller(p)

	for i := 0; i < int(p.MinCalls)*2; i++ {
		_, err := c.Execute(context.Background(), func(ctx context.Context) (interface{}, error) {
			return nil, &StatusError{Code: http.StatusNotFound}
		})
		require.Error(t, err)
		assert.False(t, IsRejected(err), "breaker must stay closed on 4xx")
	}
}

func TestSlowCallSucceedsForCaller(t *testing.T) {
	p := testProfile("test-slow-success")
	p.SlowCallDuration = 5 * time.Millisecond
	c := NewCaller(p)

	result, err := ExecuteTyped(context.Background(), c, func(ctx context.Context) (string, error) {
		time.Sleep(10 * time.Millisecond)
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", result, "a slow call still delivers its result")
}

func TestSlowCallRateTripsBreaker(t *testing.T) {
	p := testProfile("test-slow-breaker")
	p.MaxAttempts = 1
	p.SlowCallDuration = time.Millisecond
	p.SlowCallRateThreshold = 50
	c := NewCaller(p)

	var calls atomic.Int32
	slowOp := func(ctx context.Context) (interface{}, error) {
		calls.Add(1)
		time.Sleep(5 * time.Millisecond)
		return "slow", nil
	}

	// Every call succeeds, so only the slow-call rate can open the
	// breaker.
	for i := 0; i < int(p.MinCalls); i++ {
		_, err := c.Execute(context.Background(), slowOp)
		require.NoError(t, err)
	}
	invoked := calls.Load()

	_, err := c.Execute(context.Background(), slowOp)
	require.Error(t, err)
	assert.True(t, IsRejected(err), "expected rejection, got %v", err)
	assert.Equal(t, invoked, calls.Load(), "open breaker must not invoke the operation")
}

func TestFastSuccessesKeepBreakerClosed(t *testing.T) {
	p := testProfile("test-fast")
	p.SlowCallDuration = 100 * time.Millisecond
	p.SlowCallRateThreshold = 50
	c := NewCaller(p)

	for i := 0; i < int(p.MinCalls)*2; i++ {
		_, err := c.Execute(context.Background(), func(ctx context.Context) (interface{}, error) {
			return "fast", nil
		})
		require.NoError(t, err)
	}
	assert.Equal(t, gobreaker.StateClosed, c.State())
}

func TestBulkheadRejectsWhenFull(t *testing.T) {
	p := testProfile("test-bulkhead")
	p.MaxConcurrent = 1
	p.MaxWait = 10 * time.Millisecond
	c := NewCaller(p)

	blocker := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = c.Execute(context.Background(), func(ctx context.Context) (interface{}, error) {
			<-blocker
			return nil, nil
		})
	}()

	// Wait until the first call holds the only permit.
	require.Eventually(t, func() bool {
		return len(c.permits) == 1
	}, time.Second, time.Millisecond)

	var invoked atomic.Bool
	_, err := c.Execute(context.Background(), func(ctx context.Context) (interface{}, error) {
		invoked.Store(true)
		return nil, nil
	})

	assert.ErrorIs(t, err, ErrBulkheadFull)
	assert.False(t, invoked.Load(), "rejected call must never reach the operation")

	close(blocker)
	<-done
}

func TestExecuteFailOpenReturnsFallback(t *testing.T) {
	p := testProfile("test-failopen")
	p.MaxAttempts = 1
	c := NewCaller(p)

	got := ExecuteFailOpen(context.Background(), c, []string{}, func(ctx context.Context) ([]string, error) {
		return nil, errors.New("downstream down")
	})
	assert.Empty(t, got)

	got = ExecuteFailOpen(context.Background(), c, nil, func(ctx context.Context) ([]string, error) {
		return []string{"a"}, nil
	})
	assert.Equal(t, []string{"a"}, got)
}

func TestIsPermanentClassification(t *testing.T) {
	assert.False(t, IsPermanent(nil))
	assert.False(t, IsPermanent(errors.New("transport")))
	assert.False(t, IsPermanent(context.DeadlineExceeded))
	assert.False(t, IsPermanent(&StatusError{Code: http.StatusBadGateway}))
	assert.True(t, IsPermanent(&StatusError{Code: http.StatusUnprocessableEntity}))
	assert.True(t, IsPermanent(context.Canceled))
	assert.True(t, IsPermanent(Permanent(errors.New("bad event"))))
}
