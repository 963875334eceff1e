// Deckd - Candidate Deck Recommendation Service
// Copyright 2026 Swipedeck
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/swipedeck/deckd

// Package resilience composes the failure-handling decorators applied to
// every outbound dependency call: bulkhead admission, circuit breaker,
// retry with exponential backoff, and a per-attempt timeout, in that order.
//
// One Caller exists per dependency (profiles, swipes, cache), built once at
// startup from that dependency's ResilienceProfile and shared by all calls.
// Its breaker and bulkhead counters are the only mutable shared state and
// are internally synchronized.
//
// Failure policy stays with the call site: read paths use ExecuteFailOpen
// to degrade to a default result, fire-and-forget paths use ExecuteSilent.
package resilience

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/swipedeck/deckd/internal/logging"
	"github.com/swipedeck/deckd/internal/metrics"
	"github.com/swipedeck/deckd/internal/models"
)

// Operation is a fallible call against one dependency. The context carries
// the per-attempt deadline; implementations must respect it.
type Operation func(ctx context.Context) (interface{}, error)

// errSlowCall classifies a successful call that exceeded the slow-call
// duration. It only travels between the retry block and the breaker's
// accounting; Execute strips it before the result reaches the caller.
var errSlowCall = errors.New("dependency call exceeded slow-call duration")

// Caller wraps operations against a single dependency with the configured
// resilience stack. Safe for concurrent use.
type Caller struct {
	profile models.ResilienceProfile
	breaker *gobreaker.CircuitBreaker[interface{}]
	permits chan struct{}

	// Slow calls in the breaker's current window. gobreaker counts them
	// as failures but cannot tell them apart, so the split is kept here
	// and resynchronized when the window resets.
	slowCalls      atomic.Uint32
	windowRequests atomic.Uint32
}

// NewCaller builds the resilience stack for one dependency.
func NewCaller(profile models.ResilienceProfile) *Caller {
	name := profile.Name

	metrics.CircuitBreakerState.WithLabelValues(name).Set(0) // 0 = closed

	maxConcurrent := profile.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}

	c := &Caller{
		profile: profile,
		permits: make(chan struct{}, maxConcurrent),
	}

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: profile.HalfOpenCalls,
		Interval:    profile.WindowInterval,
		Timeout:     profile.OpenStateWait,

		// Open when, after at least MinCalls observations in the current
		// window, the failure rate or the slow-call rate meets its
		// threshold. Runs under the breaker's lock.
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			// gobreaker resets its counts each window generation without
			// notice; a Requests value below the last observed one
			// reveals the reset.
			if counts.Requests < c.windowRequests.Load() {
				c.slowCalls.Store(0)
			}
			c.windowRequests.Store(counts.Requests)

			if counts.Requests < profile.MinCalls {
				return false
			}

			slow := c.slowCalls.Load()
			if slow > counts.TotalFailures {
				slow = counts.TotalFailures
			}
			failureRate := float64(counts.TotalFailures-slow) / float64(counts.Requests) * 100
			slowRate := float64(slow) / float64(counts.Requests) * 100

			trip := failureRate >= profile.FailureRateThreshold ||
				(profile.SlowCallRateThreshold > 0 && slowRate >= profile.SlowCallRateThreshold)
			if trip {
				logging.Warn().
					Str("dependency", name).
					Uint32("failures", counts.TotalFailures-slow).
					Uint32("slow_calls", slow).
					Float64("failure_rate", failureRate).
					Float64("slow_call_rate", slowRate).
					Msg("circuit breaker opening")
			}
			return trip
		},

		// Permanent input errors do not indicate dependency trouble and
		// must not push the breaker toward open. Slow calls must.
		IsSuccessful: func(err error) bool {
			return err == nil || IsPermanent(err)
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			// Every state transition starts a fresh counting generation.
			c.slowCalls.Store(0)
			c.windowRequests.Store(0)

			logging.Info().
				Str("dependency", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
		},
	}

	c.breaker = gobreaker.NewCircuitBreaker[interface{}](settings)
	return c
}

// Name returns the dependency name this caller protects.
func (c *Caller) Name() string { return c.profile.Name }

// State returns the current breaker state for health reporting.
func (c *Caller) State() gobreaker.State { return c.breaker.State() }

// Execute runs op through bulkhead, breaker, retry and per-attempt timeout.
// The returned error is ErrBulkheadFull or a gobreaker rejection when the
// call never reached the operation (check IsRejected), otherwise the final
// attempt's error.
func (c *Caller) Execute(ctx context.Context, op Operation) (interface{}, error) {
	start := time.Now()

	release, err := c.acquire(ctx)
	if err != nil {
		metrics.BulkheadRejections.WithLabelValues(c.profile.Name).Inc()
		metrics.ObserveDependencyCall(c.profile.Name, "rejected", start)
		return nil, err
	}
	defer release()

	result, err := c.breaker.Execute(func() (interface{}, error) {
		res, slow, err := c.retry(ctx, op)
		if err == nil && slow {
			c.slowCalls.Add(1)
			metrics.SlowCalls.WithLabelValues(c.profile.Name).Inc()
			return res, errSlowCall
		}
		return res, err
	})

	// A slow call is a failure to the breaker but a success to the caller.
	if errors.Is(err, errSlowCall) {
		logging.Ctx(ctx).Warn().
			Str("dependency", c.profile.Name).
			Dur("threshold", c.profile.SlowCallDuration).
			Msg("dependency call exceeded slow-call duration")
		err = nil
	}

	switch {
	case err == nil:
		metrics.ObserveDependencyCall(c.profile.Name, "success", start)
	case IsRejected(err):
		metrics.ObserveDependencyCall(c.profile.Name, "rejected", start)
		logging.Ctx(ctx).Warn().Err(err).Str("dependency", c.profile.Name).Msg("call rejected by circuit breaker")
	default:
		metrics.ObserveDependencyCall(c.profile.Name, "failure", start)
	}

	return result, err
}

// acquire takes a bulkhead permit, waiting up to MaxWait. The returned
// release function must be called exactly once.
func (c *Caller) acquire(ctx context.Context) (func(), error) {
	gauge := metrics.BulkheadInFlight.WithLabelValues(c.profile.Name)

	select {
	case c.permits <- struct{}{}:
	default:
		// Fast path exhausted; wait for a permit up to MaxWait.
		timer := time.NewTimer(c.profile.MaxWait)
		defer timer.Stop()
		select {
		case c.permits <- struct{}{}:
		case <-timer.C:
			return nil, ErrBulkheadFull
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	gauge.Inc()
	return func() {
		<-c.permits
		gauge.Dec()
	}, nil
}

// retry runs op up to MaxAttempts times with exponential backoff and
// jitter, one timeout per attempt. Permanent errors stop the loop. The
// second return reports whether the successful attempt took at least
// SlowCallDuration.
func (c *Caller) retry(ctx context.Context, op Operation) (interface{}, bool, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.profile.InitialBackoff
	bo.Multiplier = c.profile.BackoffMultiplier
	bo.RandomizationFactor = c.profile.JitterFraction
	bo.MaxElapsedTime = 0 // attempt budget, not time budget

	maxRetries := uint64(0)
	if c.profile.MaxAttempts > 1 {
		maxRetries = uint64(c.profile.MaxAttempts - 1)
	}

	var (
		result interface{}
		slow   bool
	)
	attempt := func() error {
		attemptCtx, cancel := context.WithTimeout(ctx, c.profile.Timeout)
		defer cancel()

		attemptStart := time.Now()
		res, err := op(attemptCtx)
		if err != nil {
			if IsPermanent(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		result = res
		slow = c.profile.SlowCallDuration > 0 && time.Since(attemptStart) >= c.profile.SlowCallDuration
		return nil
	}

	notify := func(err error, next time.Duration) {
		metrics.RetryAttempts.WithLabelValues(c.profile.Name).Inc()
		logging.Ctx(ctx).Debug().
			Err(err).
			Str("dependency", c.profile.Name).
			Dur("backoff", next).
			Msg("retrying dependency call")
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(bo, maxRetries), ctx)
	if err := backoff.RetryNotify(attempt, policy, notify); err != nil {
		return nil, false, err
	}
	return result, slow, nil
}

// ExecuteTyped runs op through the caller and casts the result.
func ExecuteTyped[T any](ctx context.Context, c *Caller, op func(ctx context.Context) (T, error)) (T, error) {
	result, err := c.Execute(ctx, func(ctx context.Context) (interface{}, error) {
		return op(ctx)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	typed, ok := result.(T)
	if !ok {
		var zero T
		return zero, Permanent(&StatusError{Code: 0, Body: "unexpected result type"})
	}
	return typed, nil
}

// ExecuteFailOpen is the read-path policy: on any failure it logs and
// returns the fallback instead of the error, so the deck pipeline degrades
// to "no recommendation data" rather than failing the request.
func ExecuteFailOpen[T any](ctx context.Context, c *Caller, fallback T, op func(ctx context.Context) (T, error)) T {
	result, err := ExecuteTyped(ctx, c, op)
	if err != nil {
		logging.Ctx(ctx).Warn().
			Err(err).
			Str("dependency", c.Name()).
			Msg("read path failing open to default result")
		return fallback
	}
	return result
}

// ExecuteSilent is the fire-and-forget policy: failures are logged and
// dropped so producers are never blocked.
func ExecuteSilent(ctx context.Context, c *Caller, op func(ctx context.Context) error) {
	_, err := c.Execute(ctx, func(ctx context.Context) (interface{}, error) {
		return nil, op(ctx)
	})
	if err != nil {
		logging.Ctx(ctx).Warn().
			Err(err).
			Str("dependency", c.Name()).
			Msg("fire-and-forget call dropped")
	}
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
