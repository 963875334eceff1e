// Deckd - Candidate Deck Recommendation Service
// Copyright 2026 Swipedeck
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/swipedeck/deckd

package models

import (
	"fmt"

	"github.com/google/uuid"
)

// ChangeType classifies a profile mutation and selects the invalidation
// policy applied to cached decks. It is a closed enumeration: unknown values
// must be logged and no-opped, never silently coerced.
type ChangeType string

const (
	// ChangePreferences covers edits to the owner's matching preferences.
	// Only the owner's own deck is affected.
	ChangePreferences ChangeType = "PREFERENCES"

	// ChangeCriticalFields covers edits to fields other viewers score on
	// (age, declared gender). Affects the owner's deck and, until TTL
	// expiry, the owner's entries in other viewers' decks.
	ChangeCriticalFields ChangeType = "CRITICAL_FIELDS"

	// ChangeLocation covers coordinate updates; same blast radius as
	// ChangeCriticalFields.
	ChangeLocation ChangeType = "LOCATION_CHANGE"

	// ChangeNonCritical covers cosmetic edits (bio text, photo order) that
	// never influence scoring or filtering.
	ChangeNonCritical ChangeType = "NON_CRITICAL"
)

// Known reports whether t is one of the closed set of change types.
func (t ChangeType) Known() bool {
	switch t {
	case ChangePreferences, ChangeCriticalFields, ChangeLocation, ChangeNonCritical:
		return true
	}
	return false
}

// SwipeDecision is the direction of a swipe. Deck invalidation is identical
// for both directions; the decision is carried for logging only.
type SwipeDecision string

const (
	SwipeLeft  SwipeDecision = "LEFT"
	SwipeRight SwipeDecision = "RIGHT"
)

// SwipeCreatedEvent is published by the swipe service whenever a viewer
// swipes on a candidate.
type SwipeCreatedEvent struct {
	EventID     uuid.UUID     `json:"eventId"`
	SwiperID    uuid.UUID     `json:"swiperId"`
	SwipedID    uuid.UUID     `json:"swipedId"`
	Decision    SwipeDecision `json:"decision"`
	TimestampMs int64         `json:"timestampMs"`
}

// Validate rejects structurally unusable swipe events. A zero swiper or
// swiped ID makes the event unactionable and it must be dropped.
func (e *SwipeCreatedEvent) Validate() error {
	if e.SwiperID == uuid.Nil {
		return fmt.Errorf("swipe event %s: missing swiperId", e.EventID)
	}
	if e.SwipedID == uuid.Nil {
		return fmt.Errorf("swipe event %s: missing swipedId", e.EventID)
	}
	return nil
}

// ProfileChangedEvent is published by the profile service after a profile
// mutation has been committed.
type ProfileChangedEvent struct {
	EventID       uuid.UUID         `json:"eventId"`
	ProfileID     uuid.UUID         `json:"profileId"`
	ChangeType    ChangeType        `json:"changeType"`
	ChangedFields []string          `json:"changedFields,omitempty"`
	Timestamp     int64             `json:"timestamp"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// Validate rejects structurally unusable profile-change events.
func (e *ProfileChangedEvent) Validate() error {
	if e.ProfileID == uuid.Nil {
		return fmt.Errorf("profile event %s: missing profileId", e.EventID)
	}
	return nil
}
