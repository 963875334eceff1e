// Deckd - Candidate Deck Recommendation Service
// Copyright 2026 Swipedeck
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/swipedeck/deckd

package models

import (
	"github.com/google/uuid"
)

// Default preference bounds applied when a profile has no stated preferences
// or a preference field is unset.
const (
	DefaultMinAge     = 18
	DefaultMaxAge     = 50
	DefaultGender     = "ANY"
	DefaultMaxRangeKM = 100.0
)

// GenderAny matches any declared gender in a preference filter.
const GenderAny = "ANY"

// Coordinates is a geographic point in decimal degrees.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Preferences are a viewer's stated matching preferences. Any zero-valued
// field resolves to the documented default via Resolved.
type Preferences struct {
	MinAge     int     `json:"minAge"`
	MaxAge     int     `json:"maxAge"`
	Gender     string  `json:"gender"`
	MaxRangeKM float64 `json:"maxRange"`
}

// Resolved returns a copy of p with every unset field replaced by its
// default. A nil receiver resolves to all defaults.
func (p *Preferences) Resolved() Preferences {
	out := Preferences{
		MinAge:     DefaultMinAge,
		MaxAge:     DefaultMaxAge,
		Gender:     DefaultGender,
		MaxRangeKM: DefaultMaxRangeKM,
	}
	if p == nil {
		return out
	}
	if p.MinAge > 0 {
		out.MinAge = p.MinAge
	}
	if p.MaxAge > 0 {
		out.MaxAge = p.MaxAge
	}
	if p.Gender != "" {
		out.Gender = p.Gender
	}
	if p.MaxRangeKM > 0 {
		out.MaxRangeKM = p.MaxRangeKM
	}
	return out
}

// Profile is a viewer or candidate as served by the profile collaborator.
// Location and Preferences are optional; absence is meaningful (a profile
// without coordinates is never distance-filtered).
type Profile struct {
	ID          uuid.UUID    `json:"id"`
	Age         int          `json:"age"`
	Gender      string       `json:"gender"`
	Location    *Coordinates `json:"location,omitempty"`
	Preferences *Preferences `json:"preferences,omitempty"`
}

// HasLocation reports whether the profile carries usable coordinates.
func (p *Profile) HasLocation() bool {
	return p != nil && p.Location != nil
}

// ScoredCandidate pairs a candidate with its composite compatibility score
// for one viewer. Score is always >= 0.
type ScoredCandidate struct {
	CandidateID uuid.UUID `json:"candidateId"`
	Score       float64   `json:"score"`
}

// RebuildReport aggregates the outcome of a full-population deck rebuild.
// Per-viewer failures are isolated; the counts let operators judge how much
// of the population was refreshed.
type RebuildReport struct {
	Viewers  int `json:"viewers"`
	Rebuilt  int `json:"rebuilt"`
	Failed   int `json:"failed"`
	Skipped  int `json:"skipped"`
	Duration int `json:"durationMs"`
}
