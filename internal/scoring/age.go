// Deckd - Candidate Deck Recommendation Service
// Copyright 2026 Swipedeck
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/swipedeck/deckd

package scoring

import (
	"github.com/swipedeck/deckd/internal/models"
)

const (
	ageWeight = 1.0

	// neutralAgeContribution is returned when the viewer states no age
	// bounds at all; the candidate is neither favored nor penalized.
	neutralAgeContribution = 0.5

	// ageDecayYears is the deviation at which the contribution reaches 0.
	ageDecayYears = 10.0
)

// AgeStrategy scores how well the candidate's age fits the viewer's stated
// bounds. Inside the bounds the contribution is the full weight; outside,
// it decays linearly and reaches zero at ageDecayYears past the nearest
// bound.
type AgeStrategy struct{}

// NewAgeStrategy creates the age strategy.
func NewAgeStrategy() *AgeStrategy { return &AgeStrategy{} }

func (s *AgeStrategy) Name() string    { return "age" }
func (s *AgeStrategy) Weight() float64 { return ageWeight }

func (s *AgeStrategy) Contribute(viewer, candidate *models.Profile) float64 {
	if viewer == nil || candidate == nil {
		return 0
	}
	prefs := viewer.Preferences
	if prefs == nil || (prefs.MinAge <= 0 && prefs.MaxAge <= 0) {
		return neutralAgeContribution
	}

	resolved := prefs.Resolved()
	age := candidate.Age

	if age >= resolved.MinAge && age <= resolved.MaxAge {
		return ageWeight
	}

	// Distance in years to the nearest bound.
	var delta float64
	if age < resolved.MinAge {
		delta = float64(resolved.MinAge - age)
	} else {
		delta = float64(age - resolved.MaxAge)
	}

	decayed := 1 - delta/ageDecayYears
	if decayed < 0 {
		return 0
	}
	return decayed * ageWeight
}
