// Deckd - Candidate Deck Recommendation Service
// Copyright 2026 Swipedeck
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/swipedeck/deckd

// Package deck implements the deck pipeline: the candidate pool that
// fetches and filters candidates for a viewer, the Redis-backed ranked-set
// cache that stores each viewer's deck, and the builder that orchestrates
// pool, scoring and cache for single-viewer and full-population rebuilds.
package deck

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/swipedeck/deckd/internal/logging"
	"github.com/swipedeck/deckd/internal/metrics"
	"github.com/swipedeck/deckd/internal/models"
	"github.com/swipedeck/deckd/internal/resilience"
)

// keyPrefix namespaces deck keys in the shared Redis instance.
const keyPrefix = "deck:"

// Cache is the per-viewer ranked deck store, backed by Redis sorted sets
// with a TTL per key. Entries are unique per candidate within one viewer's
// deck and ordered by descending score.
//
// Every Redis operation passes through the cache dependency's resilience
// caller. Cache unavailability is never fatal: reads degrade to miss,
// writes to no-op, per the deck pipeline's fail-open contract.
type Cache struct {
	rdb    *redis.Client
	caller *resilience.Caller
}

// NewCache creates the deck cache on the given Redis client.
func NewCache(rdb *redis.Client, caller *resilience.Caller) *Cache {
	return &Cache{rdb: rdb, caller: caller}
}

// Key returns the Redis key for a viewer's deck.
func Key(viewerID uuid.UUID) string {
	return keyPrefix + viewerID.String()
}

// Populate replaces the viewer's deck with the given entries and refreshes
// the TTL. The replace is atomic from the caller's perspective (DEL, ZADD
// and EXPIRE travel in one transactional pipeline). An empty entry list
// just deletes the key so the next read is a clean miss.
func (c *Cache) Populate(ctx context.Context, viewerID uuid.UUID, entries []models.ScoredCandidate, ttl time.Duration) error {
	key := Key(viewerID)

	_, err := c.caller.Execute(ctx, func(ctx context.Context) (interface{}, error) {
		pipe := c.rdb.TxPipeline()
		pipe.Del(ctx, key)
		if len(entries) > 0 {
			members := make([]redis.Z, len(entries))
			for i, e := range entries {
				members[i] = redis.Z{Score: e.Score, Member: e.CandidateID.String()}
			}
			pipe.ZAdd(ctx, key, members...)
			pipe.Expire(ctx, key, ttl)
		}
		_, err := pipe.Exec(ctx)
		return nil, err
	})

	if err != nil {
		metrics.CacheOperations.WithLabelValues("populate", "failure").Inc()
		return fmt.Errorf("populate deck %s: %w", viewerID, err)
	}
	metrics.CacheOperations.WithLabelValues("populate", "success").Inc()
	metrics.DeckSize.Observe(float64(len(entries)))
	return nil
}

// Page returns one page of candidate IDs in descending score order.
// An absent or expired key, and any cache failure, yield an empty page.
func (c *Cache) Page(ctx context.Context, viewerID uuid.UUID, offset, limit int) []uuid.UUID {
	if limit <= 0 {
		return nil
	}
	key := Key(viewerID)

	members := resilience.ExecuteFailOpen(ctx, c.caller, []string{}, func(ctx context.Context) ([]string, error) {
		return c.rdb.ZRevRange(ctx, key, int64(offset), int64(offset+limit-1)).Result()
	})

	ids := make([]uuid.UUID, 0, len(members))
	for _, m := range members {
		id, err := uuid.Parse(m)
		if err != nil {
			// A foreign member means the key was written by something
			// else; skip it rather than failing the page.
			logging.Ctx(ctx).Warn().Str("member", m).Str("key", key).Msg("skipping non-UUID deck member")
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

// Size returns the number of entries in the viewer's deck, 0 when the key
// is absent, expired, or the cache is unavailable.
func (c *Cache) Size(ctx context.Context, viewerID uuid.UUID) int64 {
	return resilience.ExecuteFailOpen(ctx, c.caller, 0, func(ctx context.Context) (int64, error) {
		return c.rdb.ZCard(ctx, Key(viewerID)).Result()
	})
}

// Exists reports whether the viewer currently has a cached deck.
func (c *Cache) Exists(ctx context.Context, viewerID uuid.UUID) bool {
	n := resilience.ExecuteFailOpen(ctx, c.caller, 0, func(ctx context.Context) (int64, error) {
		return c.rdb.Exists(ctx, Key(viewerID)).Result()
	})
	return n > 0
}

// Remove deletes one candidate from the viewer's deck, returning how many
// entries were removed (0 or 1). Removing a non-member is a no-op, so the
// operation is idempotent under event redelivery. Cache failure counts as
// a no-op.
func (c *Cache) Remove(ctx context.Context, viewerID, candidateID uuid.UUID) (int64, error) {
	removed, err := resilience.ExecuteTyped(ctx, c.caller, func(ctx context.Context) (int64, error) {
		return c.rdb.ZRem(ctx, Key(viewerID), candidateID.String()).Result()
	})
	if err != nil {
		metrics.CacheOperations.WithLabelValues("remove", "failure").Inc()
		return 0, fmt.Errorf("remove %s from deck %s: %w", candidateID, viewerID, err)
	}
	metrics.CacheOperations.WithLabelValues("remove", "success").Inc()
	return removed, nil
}

// Invalidate deletes the viewer's whole deck, returning the number of keys
// removed (0 or 1). Idempotent; cache failure counts as a no-op.
func (c *Cache) Invalidate(ctx context.Context, viewerID uuid.UUID) (int64, error) {
	removed, err := resilience.ExecuteTyped(ctx, c.caller, func(ctx context.Context) (int64, error) {
		return c.rdb.Del(ctx, Key(viewerID)).Result()
	})
	if err != nil {
		metrics.CacheOperations.WithLabelValues("invalidate", "failure").Inc()
		return 0, fmt.Errorf("invalidate deck %s: %w", viewerID, err)
	}
	metrics.CacheOperations.WithLabelValues("invalidate", "success").Inc()
	return removed, nil
}
