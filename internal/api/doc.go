// Deckd - Candidate Deck Recommendation Service
// Copyright 2026 Swipedeck
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/swipedeck/deckd

// Package api exposes the admin HTTP surface over the deck subsystem:
// deck inspection and paging, manual invalidation, rebuild triggering,
// health and Prometheus metrics. Swiping itself is served elsewhere;
// these endpoints exist for operators and sibling services.
package api
