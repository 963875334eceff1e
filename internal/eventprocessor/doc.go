// Deckd - Candidate Deck Recommendation Service
// Copyright 2026 Swipedeck
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/swipedeck/deckd

// Package eventprocessor consumes domain events from NATS JetStream and
// keeps cached decks consistent with them.
//
// Two subjects are consumed. swipe.created removes the swiped candidate
// from the swiper's deck so a candidate is never shown twice, regardless
// of swipe direction. profile.changed invalidates the owner's whole deck
// when the change affects filtering or scoring; cosmetic changes are
// dropped.
//
// Delivery is at-most-once from the deck's point of view: handlers log
// failures and ack anyway. A lost invalidation only extends staleness
// until the deck's TTL expires, which is an accepted trade against
// redelivery storms on a hot subject.
package eventprocessor
