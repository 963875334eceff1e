// Deckd - Candidate Deck Recommendation Service
// Copyright 2026 Swipedeck
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/swipedeck/deckd

package eventprocessor

import (
	"context"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/swipedeck/deckd/internal/logging"
	"github.com/swipedeck/deckd/internal/metrics"
	"github.com/swipedeck/deckd/internal/models"
)

// Event handling outcomes for metrics.
const (
	outcomeSuccess = "success"
	outcomeInvalid = "invalid"
	outcomeFailure = "failure"
	outcomeIgnored = "ignored"
)

// DeckMutator is the deck write surface invalidation needs.
type DeckMutator interface {
	// Remove deletes one candidate from one viewer's deck. Returns the
	// number of entries removed (0 or 1).
	Remove(ctx context.Context, viewerID, candidateID uuid.UUID) (int64, error)

	// Invalidate drops a viewer's whole deck.
	Invalidate(ctx context.Context, viewerID uuid.UUID) (int64, error)
}

// InvalidationCoordinator maps domain events to deck mutations.
//
// Every handler returns nil: a failed mutation is logged and the message
// acked anyway. Redelivering an invalidation the cache cannot currently
// apply would not help, and the deck TTL bounds how long the resulting
// staleness can last.
type InvalidationCoordinator struct {
	cache        DeckMutator
	swipeTopic   string
	profileTopic string
}

// NewInvalidationCoordinator creates the coordinator for the two
// matching subjects.
func NewInvalidationCoordinator(cache DeckMutator, swipeTopic, profileTopic string) *InvalidationCoordinator {
	return &InvalidationCoordinator{
		cache:        cache,
		swipeTopic:   swipeTopic,
		profileTopic: profileTopic,
	}
}

// Register attaches both handlers to the router over the given
// subscriber.
func (c *InvalidationCoordinator) Register(router *Router, subscriber message.Subscriber) {
	router.AddConsumerHandler("swipe-invalidator", c.swipeTopic, subscriber, c.HandleSwipeCreated)
	router.AddConsumerHandler("profile-invalidator", c.profileTopic, subscriber, c.HandleProfileChanged)
}

// HandleSwipeCreated removes the swiped candidate from the swiper's deck.
// Both swipe directions remove: a candidate already decided on must never
// be shown again. Only the swiper's deck is touched; the swiped user's
// deck still holds the swiper until their own action or TTL removes them.
func (c *InvalidationCoordinator) HandleSwipeCreated(msg *message.Message) error {
	start := time.Now()
	// The message UUID ties every log line for this event together.
	ctx := logging.ContextWithCorrelationID(msg.Context(), msg.UUID)

	var event models.SwipeCreatedEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		logging.Ctx(ctx).Warn().Err(err).
			Str("message_id", msg.UUID).
			Msg("dropping undecodable swipe event")
		metrics.ObserveEvent(c.swipeTopic, outcomeInvalid, start)
		return nil
	}
	if err := event.Validate(); err != nil {
		logging.Ctx(ctx).Warn().Err(err).
			Str("message_id", msg.UUID).
			Msg("dropping invalid swipe event")
		metrics.ObserveEvent(c.swipeTopic, outcomeInvalid, start)
		return nil
	}

	removed, err := c.cache.Remove(ctx, event.SwiperID, event.SwipedID)
	if err != nil {
		logging.Ctx(ctx).Error().Err(err).
			Str("swiper_id", event.SwiperID.String()).
			Str("swiped_id", event.SwipedID.String()).
			Msg("deck entry removal failed, acking anyway")
		metrics.ObserveEvent(c.swipeTopic, outcomeFailure, start)
		return nil
	}

	logging.Ctx(ctx).Debug().
		Str("swiper_id", event.SwiperID.String()).
		Str("swiped_id", event.SwipedID.String()).
		Str("decision", string(event.Decision)).
		Int64("removed", removed).
		Msg("swipe applied to deck")
	metrics.ObserveEvent(c.swipeTopic, outcomeSuccess, start)
	return nil
}

// HandleProfileChanged invalidates the owner's deck when the change can
// alter filtering or scoring. Critical changes also leave the owner's
// stale entries in other viewers' decks until those decks expire; no
// reverse index tracks them.
func (c *InvalidationCoordinator) HandleProfileChanged(msg *message.Message) error {
	start := time.Now()
	ctx := logging.ContextWithCorrelationID(msg.Context(), msg.UUID)

	var event models.ProfileChangedEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		logging.Ctx(ctx).Warn().Err(err).
			Str("message_id", msg.UUID).
			Msg("dropping undecodable profile event")
		metrics.ObserveEvent(c.profileTopic, outcomeInvalid, start)
		return nil
	}
	if err := event.Validate(); err != nil {
		logging.Ctx(ctx).Warn().Err(err).
			Str("message_id", msg.UUID).
			Msg("dropping invalid profile event")
		metrics.ObserveEvent(c.profileTopic, outcomeInvalid, start)
		return nil
	}

	switch event.ChangeType {
	case models.ChangePreferences, models.ChangeCriticalFields, models.ChangeLocation:
		if _, err := c.cache.Invalidate(ctx, event.ProfileID); err != nil {
			logging.Ctx(ctx).Error().Err(err).
				Str("profile_id", event.ProfileID.String()).
				Str("change_type", string(event.ChangeType)).
				Msg("deck invalidation failed, acking anyway")
			metrics.ObserveEvent(c.profileTopic, outcomeFailure, start)
			return nil
		}
		logging.Ctx(ctx).Debug().
			Str("profile_id", event.ProfileID.String()).
			Str("change_type", string(event.ChangeType)).
			Msg("deck invalidated")
		metrics.ObserveEvent(c.profileTopic, outcomeSuccess, start)

	case models.ChangeNonCritical:
		metrics.ObserveEvent(c.profileTopic, outcomeIgnored, start)

	default:
		// Closed enumeration: an unknown type is a producer version
		// skew signal, not an invalidation trigger.
		logging.Ctx(ctx).Warn().
			Str("profile_id", event.ProfileID.String()).
			Str("change_type", string(event.ChangeType)).
			Msg("unknown profile change type, ignoring")
		metrics.ObserveEvent(c.profileTopic, outcomeIgnored, start)
	}
	return nil
}
