// Deckd - Candidate Deck Recommendation Service
// Copyright 2026 Swipedeck
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/swipedeck/deckd

package clients

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/swipedeck/deckd/internal/models"
	"github.com/swipedeck/deckd/internal/resilience"
)

// SwipeAPI is the consumed surface of the swipe service.
type SwipeAPI interface {
	// BetweenBatch reports, for each candidate, whether the viewer has
	// already swiped on them (the viewer's outgoing swipes only).
	BetweenBatch(ctx context.Context, viewerID uuid.UUID, candidateIDs []uuid.UUID) (map[uuid.UUID]bool, error)
}

var (
	_ SwipeAPI = (*SwipeClient)(nil)
	_ SwipeAPI = (*ResilientSwipeClient)(nil)
)

// SwipeClient is the plain REST client for the swipe service.
type SwipeClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewSwipeClient creates a swipe service client.
func NewSwipeClient(baseURL string) *SwipeClient {
	return &SwipeClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type betweenBatchRequest struct {
	ViewerID     uuid.UUID   `json:"viewerId"`
	CandidateIDs []uuid.UUID `json:"candidateIds"`
}

type betweenBatchResponse struct {
	Results map[uuid.UUID]bool `json:"results"`
}

// BetweenBatch posts the full candidate batch in one call; the swipe
// service answers with a per-candidate already-swiped flag.
func (c *SwipeClient) BetweenBatch(ctx context.Context, viewerID uuid.UUID, candidateIDs []uuid.UUID) (map[uuid.UUID]bool, error) {
	payload, err := json.Marshal(betweenBatchRequest{ViewerID: viewerID, CandidateIDs: candidateIDs})
	if err != nil {
		return nil, resilience.Permanent(fmt.Errorf("encode between-batch request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/v1/swipes/between-batch", bytes.NewReader(payload))
	if err != nil {
		return nil, resilience.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("between-batch request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &resilience.StatusError{Code: resp.StatusCode, Body: string(body)}
	}

	var out betweenBatchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode between-batch response: %w", err)
	}
	if out.Results == nil {
		out.Results = map[uuid.UUID]bool{}
	}
	return out.Results, nil
}

// ResilientSwipeClient wraps SwipeClient with the swipes dependency's
// resilience stack.
type ResilientSwipeClient struct {
	client *SwipeClient
	caller *resilience.Caller
}

// NewResilientSwipeClient builds the decorated client from the dependency's
// resilience profile.
func NewResilientSwipeClient(baseURL string, profile models.ResilienceProfile) *ResilientSwipeClient {
	return &ResilientSwipeClient{
		client: NewSwipeClient(baseURL),
		caller: resilience.NewCaller(profile),
	}
}

// Caller exposes the underlying resilience caller for health reporting.
func (c *ResilientSwipeClient) Caller() *resilience.Caller { return c.caller }

func (c *ResilientSwipeClient) BetweenBatch(ctx context.Context, viewerID uuid.UUID, candidateIDs []uuid.UUID) (map[uuid.UUID]bool, error) {
	return resilience.ExecuteTyped(ctx, c.caller, func(ctx context.Context) (map[uuid.UUID]bool, error) {
		return c.client.BetweenBatch(ctx, viewerID, candidateIDs)
	})
}
