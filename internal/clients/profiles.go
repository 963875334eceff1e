// Deckd - Candidate Deck Recommendation Service
// Copyright 2026 Swipedeck
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/swipedeck/deckd

// Package clients implements the HTTP clients for the collaborator services
// the deck pipeline consumes: the profile service and the swipe service.
// Each client has a plain REST implementation and a resilient decorator
// that routes every call through the dependency's resilience.Caller.
package clients

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/swipedeck/deckd/internal/models"
	"github.com/swipedeck/deckd/internal/resilience"
)

// ProfileAPI is the consumed surface of the profile service.
type ProfileAPI interface {
	// Search returns up to limit candidate profiles matching the given
	// server-side filters, excluding the viewer's own profile.
	Search(ctx context.Context, viewerID uuid.UUID, gender string, minAge, maxAge, limit int) ([]models.Profile, error)

	// Page returns one page of the full profile population, for batch
	// rebuilds. Pages are zero-based.
	Page(ctx context.Context, pageNumber, limit int) ([]models.Profile, error)

	// Get returns a single profile by ID.
	Get(ctx context.Context, id uuid.UUID) (*models.Profile, error)
}

// Ensure both implementations satisfy the interface.
var (
	_ ProfileAPI = (*ProfileClient)(nil)
	_ ProfileAPI = (*ResilientProfileClient)(nil)
)

// ProfileClient is the plain REST client for the profile service.
type ProfileClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewProfileClient creates a profile service client.
// The HTTP client timeout is a backstop; per-attempt deadlines come from
// the resilience layer's context.
func NewProfileClient(baseURL string) *ProfileClient {
	return &ProfileClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Search queries /api/v1/profiles/search with server-side filters.
func (c *ProfileClient) Search(ctx context.Context, viewerID uuid.UUID, gender string, minAge, maxAge, limit int) ([]models.Profile, error) {
	q := url.Values{}
	q.Set("viewerId", viewerID.String())
	q.Set("gender", gender)
	q.Set("minAge", strconv.Itoa(minAge))
	q.Set("maxAge", strconv.Itoa(maxAge))
	q.Set("limit", strconv.Itoa(limit))

	var out []models.Profile
	if err := c.getJSON(ctx, "/api/v1/profiles/search?"+q.Encode(), &out); err != nil {
		return nil, fmt.Errorf("profile search: %w", err)
	}
	return out, nil
}

// Page queries /api/v1/profiles for one population page.
func (c *ProfileClient) Page(ctx context.Context, pageNumber, limit int) ([]models.Profile, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(pageNumber))
	q.Set("limit", strconv.Itoa(limit))

	var out []models.Profile
	if err := c.getJSON(ctx, "/api/v1/profiles?"+q.Encode(), &out); err != nil {
		return nil, fmt.Errorf("profile page %d: %w", pageNumber, err)
	}
	return out, nil
}

// Get queries /api/v1/profiles/{id}.
func (c *ProfileClient) Get(ctx context.Context, id uuid.UUID) (*models.Profile, error) {
	var out models.Profile
	if err := c.getJSON(ctx, "/api/v1/profiles/"+id.String(), &out); err != nil {
		return nil, fmt.Errorf("profile get %s: %w", id, err)
	}
	return &out, nil
}

func (c *ProfileClient) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return resilience.Permanent(err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &resilience.StatusError{Code: resp.StatusCode, Body: string(body)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// ResilientProfileClient wraps ProfileClient with the profiles dependency's
// resilience stack.
type ResilientProfileClient struct {
	client *ProfileClient
	caller *resilience.Caller
}

// NewResilientProfileClient builds the decorated client from the
// dependency's resilience profile.
func NewResilientProfileClient(baseURL string, profile models.ResilienceProfile) *ResilientProfileClient {
	return &ResilientProfileClient{
		client: NewProfileClient(baseURL),
		caller: resilience.NewCaller(profile),
	}
}

// Caller exposes the underlying resilience caller for health reporting.
func (c *ResilientProfileClient) Caller() *resilience.Caller { return c.caller }

func (c *ResilientProfileClient) Search(ctx context.Context, viewerID uuid.UUID, gender string, minAge, maxAge, limit int) ([]models.Profile, error) {
	return resilience.ExecuteTyped(ctx, c.caller, func(ctx context.Context) ([]models.Profile, error) {
		return c.client.Search(ctx, viewerID, gender, minAge, maxAge, limit)
	})
}

func (c *ResilientProfileClient) Page(ctx context.Context, pageNumber, limit int) ([]models.Profile, error) {
	return resilience.ExecuteTyped(ctx, c.caller, func(ctx context.Context) ([]models.Profile, error) {
		return c.client.Page(ctx, pageNumber, limit)
	})
}

func (c *ResilientProfileClient) Get(ctx context.Context, id uuid.UUID) (*models.Profile, error) {
	return resilience.ExecuteTyped(ctx, c.caller, func(ctx context.Context) (*models.Profile, error) {
		return c.client.Get(ctx, id)
	})
}
