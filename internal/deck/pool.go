// Deckd - Candidate Deck Recommendation Service
// Copyright 2026 Swipedeck
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/swipedeck/deckd

package deck

import (
	"context"

	"github.com/google/uuid"

	"github.com/swipedeck/deckd/internal/clients"
	"github.com/swipedeck/deckd/internal/logging"
	"github.com/swipedeck/deckd/internal/models"
	"github.com/swipedeck/deckd/internal/scoring"
)

// Pool fetches and filters the candidate set for one viewer: a server-side
// filtered page from the profile service, minus candidates the viewer has
// already swiped on, minus candidates beyond the viewer's range.
//
// Both dependency calls are read paths and fail open: a failing profile
// service yields an empty pool, a failing swipe service yields an
// unfiltered pool (already-seen candidates may transiently reappear; the
// next swipe event removes them again).
type Pool struct {
	profiles clients.ProfileAPI
	swipes   clients.SwipeAPI
}

// NewPool creates a candidate pool over the two collaborator clients.
func NewPool(profiles clients.ProfileAPI, swipes clients.SwipeAPI) *Pool {
	return &Pool{profiles: profiles, swipes: swipes}
}

// Fetch returns up to limit candidates for the viewer. Output order is
// unspecified; ranking is imposed downstream by the scoring engine.
func (p *Pool) Fetch(ctx context.Context, viewer *models.Profile, limit int) []models.Profile {
	prefs := viewer.Preferences.Resolved()

	candidates, err := p.profiles.Search(ctx, viewer.ID, prefs.Gender, prefs.MinAge, prefs.MaxAge, limit)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).
			Str("viewer_id", viewer.ID.String()).
			Msg("profile search failed, candidate pool empty")
		return nil
	}
	if len(candidates) == 0 {
		return nil
	}

	swiped := p.alreadySwiped(ctx, viewer.ID, candidates)

	out := make([]models.Profile, 0, len(candidates))
	for _, candidate := range candidates {
		if candidate.ID == viewer.ID || swiped[candidate.ID] {
			continue
		}
		if !withinRange(viewer, &candidate, prefs.MaxRangeKM) {
			continue
		}
		out = append(out, candidate)
	}
	return out
}

// alreadySwiped queries the swipe service once with the full candidate
// batch. Only the viewer's outgoing swipes exclude a candidate; incoming
// swipes never do. On failure the filter degrades to "nothing swiped".
func (p *Pool) alreadySwiped(ctx context.Context, viewerID uuid.UUID, candidates []models.Profile) map[uuid.UUID]bool {
	ids := make([]uuid.UUID, len(candidates))
	for i, c := range candidates {
		ids[i] = c.ID
	}

	swiped, err := p.swipes.BetweenBatch(ctx, viewerID, ids)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).
			Str("viewer_id", viewerID.String()).
			Int("batch", len(ids)).
			Msg("swipe batch lookup failed, pool unfiltered")
		return nil
	}
	return swiped
}

// withinRange applies the hard geo filter. Missing coordinates on either
// side do not filter: the pair passes through and the proximity strategy
// simply contributes nothing.
func withinRange(viewer, candidate *models.Profile, maxRangeKM float64) bool {
	if !viewer.HasLocation() || !candidate.HasLocation() {
		return true
	}
	return scoring.Distance(*viewer.Location, *candidate.Location) <= maxRangeKM
}
