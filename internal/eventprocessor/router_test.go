// Deckd - Candidate Deck Recommendation Service
// Copyright 2026 Swipedeck
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/swipedeck/deckd

package eventprocessor

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swipedeck/deckd/internal/models"
)

func TestRouterDeliversEventsToCoordinator(t *testing.T) {
	logger := watermill.NopLogger{}
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, logger)
	t.Cleanup(func() { _ = pubSub.Close() })

	mutator := &recordingMutator{}
	coordinator := NewInvalidationCoordinator(mutator, "swipe.created", "profile.changed")

	router, err := NewRouter(DefaultRouterConfig(), logger)
	require.NoError(t, err)
	coordinator.Register(router, pubSub)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = router.Run(ctx) }()

	select {
	case <-router.Running():
	case <-time.After(5 * time.Second):
		t.Fatal("router did not start")
	}

	swiper, swiped, owner := uuid.New(), uuid.New(), uuid.New()
	require.NoError(t, pubSub.Publish("swipe.created", eventMessage(t, models.SwipeCreatedEvent{
		EventID:  uuid.New(),
		SwiperID: swiper,
		SwipedID: swiped,
		Decision: models.SwipeLeft,
	})))
	require.NoError(t, pubSub.Publish("profile.changed", eventMessage(t, models.ProfileChangedEvent{
		EventID:    uuid.New(),
		ProfileID:  owner,
		ChangeType: models.ChangeCriticalFields,
	})))

	require.Eventually(t, func() bool {
		return len(mutator.all()) == 2
	}, 5*time.Second, 10*time.Millisecond)

	byOp := map[string]mutation{}
	for _, m := range mutator.all() {
		byOp[m.op] = m
	}
	assert.Equal(t, swiper, byOp["remove"].viewerID)
	assert.Equal(t, swiped, byOp["remove"].candidateID)
	assert.Equal(t, owner, byOp["invalidate"].viewerID)

	require.NoError(t, router.Close())
}

func TestDefaultSubscriberConfigRequiresStream(t *testing.T) {
	cfg := DefaultSubscriberConfig("nats://127.0.0.1:4222")
	cfg.StreamName = ""

	_, err := NewSubscriber(cfg, watermill.NopLogger{})
	assert.Error(t, err)
}
