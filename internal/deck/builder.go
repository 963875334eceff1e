// Deckd - Candidate Deck Recommendation Service
// Copyright 2026 Swipedeck
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/swipedeck/deckd

package deck

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/swipedeck/deckd/internal/clients"
	"github.com/swipedeck/deckd/internal/logging"
	"github.com/swipedeck/deckd/internal/metrics"
	"github.com/swipedeck/deckd/internal/models"
	"github.com/swipedeck/deckd/internal/scoring"
)

// BuilderConfig holds deck building policy. See config.DeckConfig for the
// externally configurable source of these values.
type BuilderConfig struct {
	// TTL applied to every populated deck.
	TTL time.Duration

	// BuildLimit is the deck size for scheduled/batch rebuilds.
	BuildLimit int

	// OnDemandLimit is the deck size for synchronous read-miss builds.
	OnDemandLimit int

	// PageSize is the viewer-population page size during RebuildAll.
	PageSize int

	// Concurrency bounds concurrent per-viewer rebuilds in RebuildAll.
	Concurrency int

	// RatePerSecond paces rebuild starts in RebuildAll; 0 disables.
	RatePerSecond float64
}

// Writer is the deck write surface the builder needs. *Cache implements
// it; only the builder and the invalidation coordinator may write decks.
type Writer interface {
	Populate(ctx context.Context, viewerID uuid.UUID, entries []models.ScoredCandidate, ttl time.Duration) error
}

// Builder orchestrates pool, scoring engine and cache to (re)populate
// decks. Per-viewer rebuilds are independent and may run concurrently;
// RebuildAll bounds its own fan-out to stay inside dependency bulkheads.
type Builder struct {
	pool     *Pool
	engine   *scoring.Engine
	cache    Writer
	profiles clients.ProfileAPI
	cfg      BuilderConfig
}

// NewBuilder creates a deck builder.
func NewBuilder(pool *Pool, engine *scoring.Engine, cache Writer, profiles clients.ProfileAPI, cfg BuilderConfig) *Builder {
	return &Builder{pool: pool, engine: engine, cache: cache, profiles: profiles, cfg: cfg}
}

// Rebuild repopulates one viewer's deck: fetch candidates, score, rank
// descending, truncate to limit, write with the configured TTL. Returns
// the number of entries written.
func (b *Builder) Rebuild(ctx context.Context, viewer *models.Profile, limit int, trigger string) (int, error) {
	start := time.Now()

	candidates := b.pool.Fetch(ctx, viewer, limit)

	scored := make([]models.ScoredCandidate, len(candidates))
	for i, candidate := range candidates {
		scored[i] = models.ScoredCandidate{
			CandidateID: candidate.ID,
			Score:       b.engine.Score(viewer, &candidate),
		}
	}

	sort.Slice(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	if len(scored) > limit {
		scored = scored[:limit]
	}

	if err := b.cache.Populate(ctx, viewer.ID, scored, b.cfg.TTL); err != nil {
		metrics.DeckBuilds.WithLabelValues(trigger, "failure").Inc()
		return 0, err
	}

	metrics.DeckBuilds.WithLabelValues(trigger, "success").Inc()
	metrics.DeckBuildDuration.Observe(time.Since(start).Seconds())
	logging.Ctx(ctx).Debug().
		Str("viewer_id", viewer.ID.String()).
		Int("entries", len(scored)).
		Str("trigger", trigger).
		Msg("deck rebuilt")
	return len(scored), nil
}

// RebuildOnDemand builds a deck synchronously for a viewer known only by
// ID, as happens on a read miss. Uses the shorter on-demand limit.
func (b *Builder) RebuildOnDemand(ctx context.Context, viewerID uuid.UUID) (int, error) {
	viewer, err := b.profiles.Get(ctx, viewerID)
	if err != nil {
		metrics.DeckBuilds.WithLabelValues("on_demand", "failure").Inc()
		return 0, fmt.Errorf("load viewer %s: %w", viewerID, err)
	}
	return b.Rebuild(ctx, viewer, b.cfg.OnDemandLimit, "on_demand")
}

// RebuildAll pages through the whole viewer population and rebuilds each
// deck. One viewer's failure never aborts the batch: failures are counted,
// logged and skipped. Fan-out is bounded by Concurrency and optionally
// paced by RatePerSecond.
func (b *Builder) RebuildAll(ctx context.Context) models.RebuildReport {
	start := time.Now()

	var viewers, rebuilt, failed atomic.Int64

	limiter := rate.NewLimiter(rate.Inf, 1)
	if b.cfg.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(b.cfg.RatePerSecond), 1)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.cfg.Concurrency)

	for page := 0; ; page++ {
		profiles, err := b.profiles.Page(ctx, page, b.cfg.PageSize)
		if err != nil {
			// Losing a population page ends the pass; decks already
			// rebuilt stay fresh and the next scheduled pass catches up.
			logging.Ctx(ctx).Error().Err(err).Int("page", page).Msg("population page failed, ending rebuild pass")
			break
		}
		if len(profiles) == 0 {
			break
		}

		for i := range profiles {
			viewer := profiles[i]
			viewers.Add(1)

			if err := limiter.Wait(gctx); err != nil {
				break
			}
			g.Go(func() error {
				if _, err := b.Rebuild(gctx, &viewer, b.cfg.BuildLimit, "scheduled"); err != nil {
					failed.Add(1)
					logging.Ctx(gctx).Warn().Err(err).
						Str("viewer_id", viewer.ID.String()).
						Msg("viewer rebuild failed, continuing batch")
					return nil
				}
				rebuilt.Add(1)
				return nil
			})
		}

		if len(profiles) < b.cfg.PageSize {
			break
		}
	}

	_ = g.Wait()

	report := models.RebuildReport{
		Viewers:  int(viewers.Load()),
		Rebuilt:  int(rebuilt.Load()),
		Failed:   int(failed.Load()),
		Skipped:  int(viewers.Load() - rebuilt.Load() - failed.Load()),
		Duration: int(time.Since(start).Milliseconds()),
	}
	logging.Ctx(ctx).Info().
		Int("viewers", report.Viewers).
		Int("rebuilt", report.Rebuilt).
		Int("failed", report.Failed).
		Msg("full rebuild pass finished")
	return report
}
