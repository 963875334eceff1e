// Deckd - Candidate Deck Recommendation Service
// Copyright 2026 Swipedeck
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/swipedeck/deckd

package models

import "time"

// ResilienceProfile is the per-dependency configuration for the resilient
// caller wrapping that dependency. One profile exists per outbound
// dependency (profiles client, swipes client, cache client); each is built
// once at process start and shared, immutable, by all calls.
type ResilienceProfile struct {
	// Name identifies the dependency in logs and metrics.
	Name string `koanf:"name"`

	// Timeout is the per-attempt deadline for one call.
	Timeout time.Duration `koanf:"timeout"`

	// Circuit breaker parameters.

	// WindowInterval is the sliding measurement window; counts reset each
	// interval while the breaker is closed.
	WindowInterval time.Duration `koanf:"window_interval"`
	// MinCalls is the minimum number of observed calls before the failure
	// rate is evaluated.
	MinCalls uint32 `koanf:"min_calls"`
	// FailureRateThreshold is the failure percentage (0-100] at or above
	// which the breaker opens.
	FailureRateThreshold float64 `koanf:"failure_rate_threshold"`
	// SlowCallRateThreshold is the percentage [0-100] of calls slower than
	// SlowCallDuration at or above which the breaker opens; zero disables
	// the slow-call trip condition. A dependency answering successfully
	// but too slowly is as harmful to deck latency as one failing
	// outright.
	SlowCallRateThreshold float64 `koanf:"slow_call_rate_threshold"`
	// SlowCallDuration is the duration at or beyond which a successful
	// call counts as slow. Zero disables slow-call accounting.
	SlowCallDuration time.Duration `koanf:"slow_call_duration"`
	// HalfOpenCalls is the number of trial calls permitted half-open.
	HalfOpenCalls uint32 `koanf:"half_open_calls"`
	// OpenStateWait is how long the breaker stays open before trialing.
	OpenStateWait time.Duration `koanf:"open_state_wait"`

	// Retry parameters.

	// MaxAttempts is the total attempt budget including the first call.
	MaxAttempts int `koanf:"max_attempts"`
	// InitialBackoff is the first retry delay.
	InitialBackoff time.Duration `koanf:"initial_backoff"`
	// BackoffMultiplier grows the delay between attempts.
	BackoffMultiplier float64 `koanf:"backoff_multiplier"`
	// JitterFraction randomizes each delay by +/- this fraction.
	JitterFraction float64 `koanf:"jitter_fraction"`

	// Bulkhead parameters.

	// MaxConcurrent bounds in-flight calls to the dependency.
	MaxConcurrent int `koanf:"max_concurrent"`
	// MaxWait is how long a call may wait for a bulkhead permit before
	// being rejected.
	MaxWait time.Duration `koanf:"max_wait"`
}

// DefaultResilienceProfile returns conservative production defaults for the
// named dependency. Callers override individual fields from configuration.
func DefaultResilienceProfile(name string) ResilienceProfile {
	return ResilienceProfile{
		Name:                  name,
		Timeout:               2 * time.Second,
		WindowInterval:        time.Minute,
		MinCalls:              10,
		FailureRateThreshold:  50,
		SlowCallRateThreshold: 100,
		SlowCallDuration:      time.Second,
		HalfOpenCalls:         3,
		OpenStateWait:         30 * time.Second,
		MaxAttempts:           3,
		InitialBackoff:        100 * time.Millisecond,
		BackoffMultiplier:     2.0,
		JitterFraction:        0.25,
		MaxConcurrent:         25,
		MaxWait:               250 * time.Millisecond,
	}
}
