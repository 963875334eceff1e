// Deckd - Candidate Deck Recommendation Service
// Copyright 2026 Swipedeck
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/swipedeck/deckd

package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/swipedeck/deckd/internal/logging"
	"github.com/swipedeck/deckd/internal/metrics"
	"github.com/swipedeck/deckd/internal/models"
)

// DeckReader is the read surface handlers page decks through.
type DeckReader interface {
	Page(ctx context.Context, viewerID uuid.UUID, offset, limit int) []uuid.UUID
	Size(ctx context.Context, viewerID uuid.UUID) int64
	Exists(ctx context.Context, viewerID uuid.UUID) bool
	Invalidate(ctx context.Context, viewerID uuid.UUID) (int64, error)
}

// Rebuilder triggers deck builds.
type Rebuilder interface {
	RebuildOnDemand(ctx context.Context, viewerID uuid.UUID) (int, error)
	RebuildAll(ctx context.Context) models.RebuildReport
}

// Handler serves the admin endpoints.
type Handler struct {
	decks    DeckReader
	builder  Rebuilder
	pageSize int
}

// NewHandler creates the admin handler. pageSize caps the per-request
// page limit.
func NewHandler(decks DeckReader, builder Rebuilder, pageSize int) *Handler {
	return &Handler{decks: decks, builder: builder, pageSize: pageSize}
}

type deckPageResponse struct {
	ViewerID   uuid.UUID   `json:"viewerId"`
	Candidates []uuid.UUID `json:"candidates"`
	Offset     int         `json:"offset"`
	Limit      int         `json:"limit"`
	Total      int64       `json:"total"`
	Rebuilt    bool        `json:"rebuilt"`
}

// DeckPage serves one page of a viewer's deck. A read miss triggers a
// synchronous on-demand rebuild: this is the one admin call that blocks
// on the dependency chain, and its latency is bounded by the dependency
// timeouts.
func (h *Handler) DeckPage(w http.ResponseWriter, r *http.Request) {
	viewerID, ok := viewerIDParam(w, r)
	if !ok {
		return
	}

	offset := intQuery(r, "offset", 0)
	limit := intQuery(r, "limit", h.pageSize)
	if offset < 0 || limit <= 0 {
		respondError(w, http.StatusBadRequest, "INVALID_PAGING", "offset must be >= 0 and limit > 0", nil)
		return
	}
	if limit > h.pageSize {
		limit = h.pageSize
	}

	ctx := r.Context()
	rebuilt := false
	if !h.decks.Exists(ctx, viewerID) {
		metrics.CacheMisses.Inc()
		if _, err := h.builder.RebuildOnDemand(ctx, viewerID); err != nil {
			respondError(w, http.StatusBadGateway, "REBUILD_FAILED", "could not build deck for viewer", err)
			return
		}
		rebuilt = true
	}

	respondJSON(w, http.StatusOK, deckPageResponse{
		ViewerID:   viewerID,
		Candidates: h.decks.Page(ctx, viewerID, offset, limit),
		Offset:     offset,
		Limit:      limit,
		Total:      h.decks.Size(ctx, viewerID),
		Rebuilt:    rebuilt,
	})
}

// DeckSize reports the number of entries in a viewer's deck.
func (h *Handler) DeckSize(w http.ResponseWriter, r *http.Request) {
	viewerID, ok := viewerIDParam(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"viewerId": viewerID,
		"size":     h.decks.Size(r.Context(), viewerID),
	})
}

// DeckExists reports whether a viewer currently has a cached deck.
func (h *Handler) DeckExists(w http.ResponseWriter, r *http.Request) {
	viewerID, ok := viewerIDParam(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"viewerId": viewerID,
		"exists":   h.decks.Exists(r.Context(), viewerID),
	})
}

// DeckInvalidate drops a viewer's deck. Idempotent: deleting a missing
// deck reports removed=0.
func (h *Handler) DeckInvalidate(w http.ResponseWriter, r *http.Request) {
	viewerID, ok := viewerIDParam(w, r)
	if !ok {
		return
	}
	removed, err := h.decks.Invalidate(r.Context(), viewerID)
	if err != nil {
		respondError(w, http.StatusBadGateway, "INVALIDATE_FAILED", "cache unavailable", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"viewerId": viewerID,
		"removed":  removed,
	})
}

// RebuildAll kicks off an asynchronous full-population rebuild and
// returns immediately. Progress is visible through metrics and logs.
func (h *Handler) RebuildAll(w http.ResponseWriter, r *http.Request) {
	go func() {
		// Detached from the request: the pass outlives the HTTP call.
		report := h.builder.RebuildAll(context.WithoutCancel(r.Context()))
		logging.Info().
			Int("viewers", report.Viewers).
			Int("rebuilt", report.Rebuilt).
			Int("failed", report.Failed).
			Msg("manual rebuild pass finished")
	}()

	respondJSON(w, http.StatusAccepted, map[string]interface{}{
		"started": true,
	})
}

// Health reports liveness. Dependency failures degrade behavior instead
// of failing the process, so liveness does not fan out to dependencies.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
	})
}

func viewerIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := chi.URLParam(r, "viewerID")
	id, err := uuid.Parse(raw)
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_VIEWER_ID", "viewerID must be a UUID", nil)
		return uuid.Nil, false
	}
	return id, true
}

func intQuery(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
