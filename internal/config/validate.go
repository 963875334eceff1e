// Deckd - Candidate Deck Recommendation Service
// Copyright 2026 Swipedeck
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/swipedeck/deckd

package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks structural constraints (tags) plus cross-field rules the
// tag language cannot express. Called by Load; exported for tests and for
// callers that assemble a Config programmatically.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}

	if c.Deck.OnDemandLimit > c.Deck.BuildLimit {
		return fmt.Errorf("deck.on_demand_limit (%d) must not exceed deck.build_limit (%d)",
			c.Deck.OnDemandLimit, c.Deck.BuildLimit)
	}

	for _, p := range []struct {
		path        string
		maxAttempts int
		rate        float64
		slowRate    float64
	}{
		{"profiles.resilience", c.Profiles.Resilience.MaxAttempts, c.Profiles.Resilience.FailureRateThreshold, c.Profiles.Resilience.SlowCallRateThreshold},
		{"swipes.resilience", c.Swipes.Resilience.MaxAttempts, c.Swipes.Resilience.FailureRateThreshold, c.Swipes.Resilience.SlowCallRateThreshold},
		{"cache.resilience", c.Cache.Resilience.MaxAttempts, c.Cache.Resilience.FailureRateThreshold, c.Cache.Resilience.SlowCallRateThreshold},
	} {
		if p.maxAttempts < 1 {
			return fmt.Errorf("%s.max_attempts must be at least 1", p.path)
		}
		if p.rate <= 0 || p.rate > 100 {
			return fmt.Errorf("%s.failure_rate_threshold must be in (0, 100]", p.path)
		}
		if p.slowRate < 0 || p.slowRate > 100 {
			return fmt.Errorf("%s.slow_call_rate_threshold must be in [0, 100]", p.path)
		}
	}

	if c.NATS.Enabled {
		if c.NATS.URL == "" && !c.NATS.EmbeddedServer {
			return fmt.Errorf("nats.url is required when nats is enabled without an embedded server")
		}
		if c.NATS.SwipeTopic == "" || c.NATS.ProfileTopic == "" {
			return fmt.Errorf("nats.swipe_topic and nats.profile_topic are required when nats is enabled")
		}
	}

	return nil
}
