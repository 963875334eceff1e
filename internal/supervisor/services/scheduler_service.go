// Deckd - Candidate Deck Recommendation Service
// Copyright 2026 Swipedeck
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/swipedeck/deckd

package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/swipedeck/deckd/internal/models"
)

// DeckRebuilder runs one full-population rebuild pass.
type DeckRebuilder interface {
	RebuildAll(ctx context.Context) models.RebuildReport
}

// SchedulerConfig holds rebuild scheduling settings.
type SchedulerConfig struct {
	// Interval between full rebuild passes. Zero disables scheduling;
	// the service then idles until shutdown so the supervisor tree
	// shape stays uniform.
	Interval time.Duration

	// RunOnStartup triggers a pass as soon as the service starts,
	// warming decks after a cold deploy.
	RunOnStartup bool
}

// SchedulerService periodically refreshes every viewer's deck, keeping
// deck ages inside the TTL so synchronous on-demand builds stay rare.
type SchedulerService struct {
	builder DeckRebuilder
	config  SchedulerConfig
	logger  zerolog.Logger
	name    string
}

// NewSchedulerService creates the rebuild scheduler.
func NewSchedulerService(builder DeckRebuilder, cfg SchedulerConfig, logger zerolog.Logger) *SchedulerService {
	return &SchedulerService{
		builder: builder,
		config:  cfg,
		logger:  logger.With().Str("service", "rebuild-scheduler").Logger(),
		name:    "rebuild-scheduler",
	}
}

// Serve implements suture.Service.
func (s *SchedulerService) Serve(ctx context.Context) error {
	s.logger.Info().
		Dur("interval", s.config.Interval).
		Bool("run_on_startup", s.config.RunOnStartup).
		Msg("rebuild scheduler starting")

	if s.config.RunOnStartup {
		s.run(ctx)
	}

	if s.config.Interval <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("rebuild scheduler shutting down")
			return ctx.Err()
		case <-ticker.C:
			s.run(ctx)
		}
	}
}

func (s *SchedulerService) run(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	report := s.builder.RebuildAll(ctx)
	s.logger.Info().
		Int("viewers", report.Viewers).
		Int("rebuilt", report.Rebuilt).
		Int("failed", report.Failed).
		Int("duration_ms", report.Duration).
		Msg("scheduled rebuild pass finished")
}

// String identifies the service in supervisor logs.
func (s *SchedulerService) String() string {
	return s.name
}
