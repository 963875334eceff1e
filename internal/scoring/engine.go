// Deckd - Candidate Deck Recommendation Service
// Copyright 2026 Swipedeck
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/swipedeck/deckd

// Package scoring computes compatibility scores between a viewer and a
// candidate profile as the sum of independent weighted strategy
// contributions.
//
// Each strategy implements the Strategy interface and is registered with
// the engine; composition is plain iteration. Scores are pure functions of
// their inputs: no randomness, no clock reads, bit-identical results for
// repeated calls. The composite score is an unweighted sum of contributions
// and is deliberately not normalized, so score comparisons stay meaningful
// across the whole deck within one build.
package scoring

import (
	"github.com/swipedeck/deckd/internal/models"
)

// Strategy is one independent scoring dimension.
type Strategy interface {
	// Name identifies the strategy in logs.
	Name() string

	// Weight is the strategy's maximum contribution.
	Weight() float64

	// Contribute returns the weighted contribution for the pair, in
	// [0, Weight()].
	Contribute(viewer, candidate *models.Profile) float64
}

// Engine sums strategy contributions into a composite score.
// Safe for concurrent use; strategies are registered at construction and
// never mutated afterwards.
type Engine struct {
	strategies []Strategy
}

// NewEngine creates an engine with the given strategies.
func NewEngine(strategies ...Strategy) *Engine {
	return &Engine{strategies: strategies}
}

// NewDefaultEngine creates the production engine: age and proximity.
func NewDefaultEngine() *Engine {
	return NewEngine(NewAgeStrategy(), NewProximityStrategy())
}

// Score computes the composite score for the pair. Always >= 0.
func (e *Engine) Score(viewer, candidate *models.Profile) float64 {
	var total float64
	for _, s := range e.strategies {
		if c := s.Contribute(viewer, candidate); c > 0 {
			total += c
		}
	}
	return total
}

// Strategies returns the registered strategies, for introspection.
func (e *Engine) Strategies() []Strategy {
	return e.strategies
}
