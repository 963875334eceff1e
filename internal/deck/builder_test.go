// Deckd - Candidate Deck Recommendation Service
// Copyright 2026 Swipedeck
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/swipedeck/deckd

package deck

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swipedeck/deckd/internal/models"
	"github.com/swipedeck/deckd/internal/scoring"
)

// captureWriter records Populate calls and can be told to fail for
// specific viewers.
type captureWriter struct {
	mu      sync.Mutex
	decks   map[uuid.UUID][]models.ScoredCandidate
	ttls    map[uuid.UUID]time.Duration
	failFor map[uuid.UUID]error
}

func newCaptureWriter() *captureWriter {
	return &captureWriter{
		decks:   make(map[uuid.UUID][]models.ScoredCandidate),
		ttls:    make(map[uuid.UUID]time.Duration),
		failFor: make(map[uuid.UUID]error),
	}
}

func (w *captureWriter) Populate(_ context.Context, viewerID uuid.UUID, entries []models.ScoredCandidate, ttl time.Duration) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.failFor[viewerID]; err != nil {
		return err
	}
	w.decks[viewerID] = entries
	w.ttls[viewerID] = ttl
	return nil
}

func (w *captureWriter) deck(viewerID uuid.UUID) []models.ScoredCandidate {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.decks[viewerID]
}

func testBuilderConfig() BuilderConfig {
	return BuilderConfig{
		TTL:           time.Hour,
		BuildLimit:    100,
		OnDemandLimit: 25,
		PageSize:      2,
		Concurrency:   2,
	}
}

func TestRebuildRanksDescendingAndTruncates(t *testing.T) {
	viewer := models.Profile{
		ID:          uuid.New(),
		Age:         30,
		Preferences: &models.Preferences{MinAge: 25, MaxAge: 35},
	}
	// Age contributions: 30 is inside the band, 40 is 5 years past it,
	// 45 is at the decay horizon.
	best := models.Profile{ID: uuid.New(), Age: 30}
	mid := models.Profile{ID: uuid.New(), Age: 40}
	worst := models.Profile{ID: uuid.New(), Age: 45}

	profiles := &stubProfiles{searchResult: []models.Profile{worst, best, mid}}
	writer := newCaptureWriter()
	cfg := testBuilderConfig()
	b := NewBuilder(NewPool(profiles, &stubSwipes{}), scoring.NewDefaultEngine(), writer, profiles, cfg)

	n, err := b.Rebuild(context.Background(), &viewer, 2, "scheduled")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	deck := writer.deck(viewer.ID)
	require.Len(t, deck, 2, "deck truncated to limit")
	assert.Equal(t, best.ID, deck[0].CandidateID)
	assert.Equal(t, mid.ID, deck[1].CandidateID)
	assert.Greater(t, deck[0].Score, deck[1].Score)
	assert.Equal(t, cfg.TTL, writer.ttls[viewer.ID])
}

func TestRebuildEmptyPoolWritesEmptyDeck(t *testing.T) {
	viewer := models.Profile{ID: uuid.New(), Age: 30}
	writer := newCaptureWriter()
	profiles := &stubProfiles{}
	b := NewBuilder(NewPool(profiles, &stubSwipes{}), scoring.NewDefaultEngine(), writer, profiles, testBuilderConfig())

	n, err := b.Rebuild(context.Background(), &viewer, 10, "scheduled")
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, writer.deck(viewer.ID))
}

func TestRebuildPropagatesCacheWriteFailure(t *testing.T) {
	viewer := models.Profile{ID: uuid.New(), Age: 30}
	writer := newCaptureWriter()
	writer.failFor[viewer.ID] = errors.New("cache write failed")

	profiles := &stubProfiles{searchResult: []models.Profile{{ID: uuid.New(), Age: 30}}}
	b := NewBuilder(NewPool(profiles, &stubSwipes{}), scoring.NewDefaultEngine(), writer, profiles, testBuilderConfig())

	_, err := b.Rebuild(context.Background(), &viewer, 10, "scheduled")
	assert.Error(t, err)
}

func TestRebuildOnDemandLoadsViewer(t *testing.T) {
	viewer := models.Profile{ID: uuid.New(), Age: 30}
	candidate := models.Profile{ID: uuid.New(), Age: 30}

	profiles := &stubProfiles{
		searchResult: []models.Profile{candidate},
		byID:         map[uuid.UUID]*models.Profile{viewer.ID: &viewer},
	}
	writer := newCaptureWriter()
	b := NewBuilder(NewPool(profiles, &stubSwipes{}), scoring.NewDefaultEngine(), writer, profiles, testBuilderConfig())

	n, err := b.RebuildOnDemand(context.Background(), viewer.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, writer.deck(viewer.ID), 1)
}

func TestRebuildOnDemandUnknownViewer(t *testing.T) {
	profiles := &stubProfiles{byID: map[uuid.UUID]*models.Profile{}}
	writer := newCaptureWriter()
	b := NewBuilder(NewPool(profiles, &stubSwipes{}), scoring.NewDefaultEngine(), writer, profiles, testBuilderConfig())

	_, err := b.RebuildOnDemand(context.Background(), uuid.New())
	assert.Error(t, err)
}

func TestRebuildAllIsolatesViewerFailures(t *testing.T) {
	v1 := models.Profile{ID: uuid.New(), Age: 30}
	v2 := models.Profile{ID: uuid.New(), Age: 31}
	v3 := models.Profile{ID: uuid.New(), Age: 32}

	profiles := &stubProfiles{
		searchResult: []models.Profile{{ID: uuid.New(), Age: 30}},
		pages: [][]models.Profile{
			{v1, v2},
			{v3},
		},
	}
	writer := newCaptureWriter()
	writer.failFor[v2.ID] = errors.New("cache write failed")

	b := NewBuilder(NewPool(profiles, &stubSwipes{}), scoring.NewDefaultEngine(), writer, profiles, testBuilderConfig())

	report := b.RebuildAll(context.Background())

	assert.Equal(t, 3, report.Viewers)
	assert.Equal(t, 2, report.Rebuilt)
	assert.Equal(t, 1, report.Failed)
	assert.Zero(t, report.Skipped)

	require.Len(t, writer.deck(v1.ID), 1)
	require.Len(t, writer.deck(v3.ID), 1)
	assert.Empty(t, writer.deck(v2.ID))
}

func TestRebuildAllStopsPagingOnShortPage(t *testing.T) {
	v1 := models.Profile{ID: uuid.New(), Age: 30}

	profiles := &stubProfiles{
		searchResult: []models.Profile{{ID: uuid.New(), Age: 30}},
		pages:        [][]models.Profile{{v1}},
	}
	writer := newCaptureWriter()
	b := NewBuilder(NewPool(profiles, &stubSwipes{}), scoring.NewDefaultEngine(), writer, profiles, testBuilderConfig())

	report := b.RebuildAll(context.Background())

	assert.Equal(t, 1, report.Viewers)
	assert.Equal(t, 1, report.Rebuilt)
}

func TestRebuildAllPageFailureEndsPassKeepingProgress(t *testing.T) {
	v1 := models.Profile{ID: uuid.New(), Age: 30}
	v2 := models.Profile{ID: uuid.New(), Age: 31}

	profiles := &stubProfiles{
		searchResult: []models.Profile{{ID: uuid.New(), Age: 30}},
		pages: [][]models.Profile{
			{v1, v2},
			{{ID: uuid.New(), Age: 33}},
		},
		pageErr:   errors.New("population page unavailable"),
		pageErrAt: 1,
	}
	writer := newCaptureWriter()
	b := NewBuilder(NewPool(profiles, &stubSwipes{}), scoring.NewDefaultEngine(), writer, profiles, testBuilderConfig())

	report := b.RebuildAll(context.Background())

	assert.Equal(t, 2, report.Viewers, "only the page before the failure is processed")
	assert.Equal(t, 2, report.Rebuilt)
	require.Len(t, writer.deck(v1.ID), 1)
	require.Len(t, writer.deck(v2.ID), 1)
}
