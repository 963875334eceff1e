// Deckd - Candidate Deck Recommendation Service
// Copyright 2026 Swipedeck
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/swipedeck/deckd

// Package models defines the domain types shared across the deck pipeline:
// viewer/candidate profiles with stated preferences, scored deck entries,
// the inbound event payloads consumed from collaborator services, and the
// per-dependency resilience profiles.
//
// Types in this package are plain data. Behavior lives in the packages that
// consume them (scoring, deck, eventprocessor).
package models
