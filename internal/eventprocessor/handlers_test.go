// Deckd - Candidate Deck Recommendation Service
// Copyright 2026 Swipedeck
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/swipedeck/deckd

package eventprocessor

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swipedeck/deckd/internal/logging"
	"github.com/swipedeck/deckd/internal/models"
)

type mutation struct {
	op            string
	viewerID      uuid.UUID
	candidateID   uuid.UUID
	correlationID string
}

type recordingMutator struct {
	mu        sync.Mutex
	mutations []mutation
	removeErr error
	invalErr  error
}

func (m *recordingMutator) Remove(ctx context.Context, viewerID, candidateID uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.removeErr != nil {
		return 0, m.removeErr
	}
	m.mutations = append(m.mutations, mutation{
		op:            "remove",
		viewerID:      viewerID,
		candidateID:   candidateID,
		correlationID: logging.CorrelationIDFromContext(ctx),
	})
	return 1, nil
}

func (m *recordingMutator) Invalidate(ctx context.Context, viewerID uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.invalErr != nil {
		return 0, m.invalErr
	}
	m.mutations = append(m.mutations, mutation{
		op:            "invalidate",
		viewerID:      viewerID,
		correlationID: logging.CorrelationIDFromContext(ctx),
	})
	return 1, nil
}

func (m *recordingMutator) all() []mutation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mutation(nil), m.mutations...)
}

func eventMessage(t *testing.T, event any) *message.Message {
	t.Helper()
	payload, err := json.Marshal(event)
	require.NoError(t, err)
	return message.NewMessage(watermill.NewUUID(), payload)
}

func TestHandleSwipeCreatedRemovesFromSwiperDeck(t *testing.T) {
	mutator := &recordingMutator{}
	c := NewInvalidationCoordinator(mutator, "swipe.created", "profile.changed")

	swiper, swiped := uuid.New(), uuid.New()
	for _, decision := range []models.SwipeDecision{models.SwipeLeft, models.SwipeRight} {
		msg := eventMessage(t, models.SwipeCreatedEvent{
			EventID:  uuid.New(),
			SwiperID: swiper,
			SwipedID: swiped,
			Decision: decision,
		})
		require.NoError(t, c.HandleSwipeCreated(msg))
	}

	muts := mutator.all()
	require.Len(t, muts, 2, "both directions remove the candidate")
	for _, m := range muts {
		assert.Equal(t, "remove", m.op)
		assert.Equal(t, swiper, m.viewerID, "only the swiper's deck is touched")
		assert.Equal(t, swiped, m.candidateID)
	}
}

func TestHandlersCorrelateMutationsByMessageID(t *testing.T) {
	mutator := &recordingMutator{}
	c := NewInvalidationCoordinator(mutator, "swipe.created", "profile.changed")

	msg := eventMessage(t, models.SwipeCreatedEvent{
		EventID:  uuid.New(),
		SwiperID: uuid.New(),
		SwipedID: uuid.New(),
		Decision: models.SwipeLeft,
	})
	require.NoError(t, c.HandleSwipeCreated(msg))

	muts := mutator.all()
	require.Len(t, muts, 1)
	assert.Equal(t, msg.UUID, muts[0].correlationID, "cache calls run under the event's correlation ID")
}

func TestHandleSwipeCreatedAcksInvalidEvents(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
	}{
		{"malformed json", []byte(`{"swiperId": not-json`)},
		{"missing swiper", mustMarshal(t, models.SwipeCreatedEvent{EventID: uuid.New(), SwipedID: uuid.New()})},
		{"missing swiped", mustMarshal(t, models.SwipeCreatedEvent{EventID: uuid.New(), SwiperID: uuid.New()})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mutator := &recordingMutator{}
			c := NewInvalidationCoordinator(mutator, "swipe.created", "profile.changed")

			err := c.HandleSwipeCreated(message.NewMessage(watermill.NewUUID(), tt.payload))
			assert.NoError(t, err, "invalid events are dropped, never redelivered")
			assert.Empty(t, mutator.all())
		})
	}
}

func TestHandleSwipeCreatedAcksOnCacheFailure(t *testing.T) {
	mutator := &recordingMutator{removeErr: errors.New("cache unavailable")}
	c := NewInvalidationCoordinator(mutator, "swipe.created", "profile.changed")

	msg := eventMessage(t, models.SwipeCreatedEvent{
		EventID:  uuid.New(),
		SwiperID: uuid.New(),
		SwipedID: uuid.New(),
		Decision: models.SwipeRight,
	})

	assert.NoError(t, c.HandleSwipeCreated(msg), "mutation failure still acks")
}

func TestHandleProfileChangedPolicy(t *testing.T) {
	tests := []struct {
		changeType models.ChangeType
		wantOp     string
	}{
		{models.ChangePreferences, "invalidate"},
		{models.ChangeCriticalFields, "invalidate"},
		{models.ChangeLocation, "invalidate"},
		{models.ChangeNonCritical, ""},
		{models.ChangeType("SOMETHING_NEW"), ""},
	}

	for _, tt := range tests {
		t.Run(string(tt.changeType), func(t *testing.T) {
			mutator := &recordingMutator{}
			c := NewInvalidationCoordinator(mutator, "swipe.created", "profile.changed")

			owner := uuid.New()
			msg := eventMessage(t, models.ProfileChangedEvent{
				EventID:    uuid.New(),
				ProfileID:  owner,
				ChangeType: tt.changeType,
			})
			require.NoError(t, c.HandleProfileChanged(msg))

			muts := mutator.all()
			if tt.wantOp == "" {
				assert.Empty(t, muts, "change type must not touch the deck")
				return
			}
			require.Len(t, muts, 1)
			assert.Equal(t, tt.wantOp, muts[0].op)
			assert.Equal(t, owner, muts[0].viewerID, "only the owner's deck is invalidated")
		})
	}
}

func TestHandleProfileChangedAcksInvalidEvents(t *testing.T) {
	mutator := &recordingMutator{}
	c := NewInvalidationCoordinator(mutator, "swipe.created", "profile.changed")

	err := c.HandleProfileChanged(message.NewMessage(watermill.NewUUID(), []byte(`not json`)))
	assert.NoError(t, err)

	err = c.HandleProfileChanged(eventMessage(t, models.ProfileChangedEvent{
		EventID:    uuid.New(),
		ChangeType: models.ChangePreferences,
	}))
	assert.NoError(t, err, "nil profile ID is dropped")
	assert.Empty(t, mutator.all())
}

func TestHandleProfileChangedAcksOnCacheFailure(t *testing.T) {
	mutator := &recordingMutator{invalErr: errors.New("cache unavailable")}
	c := NewInvalidationCoordinator(mutator, "swipe.created", "profile.changed")

	msg := eventMessage(t, models.ProfileChangedEvent{
		EventID:    uuid.New(),
		ProfileID:  uuid.New(),
		ChangeType: models.ChangeLocation,
	})
	assert.NoError(t, c.HandleProfileChanged(msg))
}

func mustMarshal(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}
