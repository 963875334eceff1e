// Deckd - Candidate Deck Recommendation Service
// Copyright 2026 Swipedeck
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/swipedeck/deckd

package services

import (
	"context"
	"fmt"
)

// EventRouter matches the message router's lifecycle.
type EventRouter interface {
	Run(ctx context.Context) error
	Close() error
}

// EventRouterService supervises the invalidation event router. Run
// blocks for the router's lifetime; a crash is surfaced to suture for
// restart with the durable consumer resuming where it left off.
type EventRouterService struct {
	router EventRouter
	name   string
}

// NewEventRouterService wraps an event router for supervision.
func NewEventRouterService(router EventRouter) *EventRouterService {
	return &EventRouterService{router: router, name: "event-router"}
}

// Serve implements suture.Service.
func (s *EventRouterService) Serve(ctx context.Context) error {
	if err := s.router.Run(ctx); err != nil {
		return fmt.Errorf("event router failed: %w", err)
	}
	return ctx.Err()
}

// String identifies the service in supervisor logs.
func (s *EventRouterService) String() string {
	return s.name
}
