// Deckd - Candidate Deck Recommendation Service
// Copyright 2026 Swipedeck
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/swipedeck/deckd

package scoring

import (
	"math"

	"github.com/swipedeck/deckd/internal/models"
)

const (
	proximityWeight = 0.8

	// earthRadiusKM is the mean Earth radius used by the haversine formula.
	earthRadiusKM = 6371.0
)

// ProximityStrategy scores geographic closeness. Candidates inside the
// viewer's max range contribute proportionally to how close they are;
// beyond the range, or when either side lacks coordinates, the contribution
// is zero.
type ProximityStrategy struct{}

// NewProximityStrategy creates the proximity strategy.
func NewProximityStrategy() *ProximityStrategy { return &ProximityStrategy{} }

func (s *ProximityStrategy) Name() string    { return "proximity" }
func (s *ProximityStrategy) Weight() float64 { return proximityWeight }

func (s *ProximityStrategy) Contribute(viewer, candidate *models.Profile) float64 {
	if !viewer.HasLocation() || !candidate.HasLocation() {
		return 0
	}

	maxRange := viewer.Preferences.Resolved().MaxRangeKM
	distance := Distance(*viewer.Location, *candidate.Location)
	if distance > maxRange {
		return 0
	}
	return (1 - distance/maxRange) * proximityWeight
}

// Distance returns the great-circle distance between two points in
// kilometers, via the haversine formula.
func Distance(a, b models.Coordinates) float64 {
	lat1 := radians(a.Lat)
	lat2 := radians(b.Lat)
	dLat := radians(b.Lat - a.Lat)
	dLon := radians(b.Lon - a.Lon)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKM * math.Asin(math.Sqrt(h))
}

func radians(degrees float64) float64 {
	return degrees * math.Pi / 180
}
