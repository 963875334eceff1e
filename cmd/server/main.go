// Deckd - Candidate Deck Recommendation Service
// Copyright 2026 Swipedeck
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/swipedeck/deckd

// Package main is the entry point for the deckd server.
//
// deckd precomputes a ranked deck of candidate profiles per viewer and
// keeps it consistent with swipe and profile-change events. Components
// start in order: configuration, logging, Redis deck cache, dependency
// clients with their resilience decorators, the scoring engine and deck
// builder, NATS event processing, and finally the supervised HTTP admin
// surface.
//
// Configuration layers via Koanf v2, highest priority last: built-in
// defaults, an optional YAML file (DECKD_CONFIG_PATH), then DECKD_*
// environment variables.
//
// The process shuts down gracefully on SIGINT and SIGTERM.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/swipedeck/deckd/internal/api"
	"github.com/swipedeck/deckd/internal/clients"
	"github.com/swipedeck/deckd/internal/config"
	"github.com/swipedeck/deckd/internal/deck"
	"github.com/swipedeck/deckd/internal/eventprocessor"
	"github.com/swipedeck/deckd/internal/logging"
	"github.com/swipedeck/deckd/internal/resilience"
	"github.com/swipedeck/deckd/internal/scoring"
	"github.com/swipedeck/deckd/internal/supervisor"
	"github.com/swipedeck/deckd/internal/supervisor/services"
)

func main() {
	if err := run(); err != nil {
		logging.Error().Err(err).Msg("deckd exited with error")
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logging.Info().
		Str("server_addr", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)).
		Bool("nats_enabled", cfg.NATS.Enabled).
		Msg("deckd starting")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Deck cache on Redis; all access goes through its resilience caller.
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Cache.Addr,
		Password: cfg.Cache.Password,
		DB:       cfg.Cache.DB,
	})
	defer func() { _ = rdb.Close() }()
	cache := deck.NewCache(rdb, resilience.NewCaller(cfg.Cache.Resilience))

	profileClient := clients.NewResilientProfileClient(cfg.Profiles.URL, cfg.Profiles.Resilience)
	swipeClient := clients.NewResilientSwipeClient(cfg.Swipes.URL, cfg.Swipes.Resilience)

	engine := scoring.NewDefaultEngine()
	pool := deck.NewPool(profileClient, swipeClient)
	builder := deck.NewBuilder(pool, engine, cache, profileClient, deck.BuilderConfig{
		TTL:           cfg.Deck.TTL,
		BuildLimit:    cfg.Deck.BuildLimit,
		OnDemandLimit: cfg.Deck.OnDemandLimit,
		PageSize:      cfg.Deck.PageSize,
		Concurrency:   cfg.Deck.RebuildConcurrency,
		RatePerSecond: cfg.Deck.RebuildRatePerSecond,
	})

	slogger := slog.New(logging.NewSlogHandler())
	tree := supervisor.NewTree(slogger, supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})

	if cfg.NATS.Enabled {
		if err := setupEventProcessing(ctx, cfg, cache, tree); err != nil {
			return err
		}
	} else {
		logging.Warn().Msg("NATS disabled: decks refresh only via TTL and the rebuild scheduler")
	}

	tree.AddMessagingService(services.NewSchedulerService(builder, services.SchedulerConfig{
		Interval:     cfg.Deck.RebuildInterval,
		RunOnStartup: cfg.Deck.RebuildOnStartup,
	}, logging.Logger()))

	handler := api.NewHandler(cache, builder, cfg.Deck.PageSize)
	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           api.NewRouter(handler, cfg.Server),
		ReadHeaderTimeout: 10 * time.Second,
	}
	tree.AddAPIService(services.NewHTTPServerService(httpServer, cfg.Server.ShutdownTimeout))

	logging.Info().Msg("deckd running")
	err = tree.Serve(ctx)
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("supervisor tree: %w", err)
	}

	if report, rerr := tree.UnstoppedServiceReport(); rerr == nil && len(report) > 0 {
		for _, svc := range report {
			logging.Warn().Str("service", svc.Name).Msg("service missed shutdown timeout")
		}
	}
	logging.Info().Msg("deckd stopped")
	return nil
}

// setupEventProcessing wires the invalidation pipeline: optional embedded
// NATS server, stream provisioning, durable subscriber, and the router
// with both handlers, supervised in the messaging layer.
func setupEventProcessing(ctx context.Context, cfg *config.Config, cache *deck.Cache, tree *supervisor.Tree) error {
	natsURL := cfg.NATS.URL

	if cfg.NATS.EmbeddedServer {
		serverCfg := eventprocessor.DefaultServerConfig()
		serverCfg.StoreDir = cfg.NATS.StoreDir
		embedded, err := eventprocessor.NewEmbeddedServer(&serverCfg)
		if err != nil {
			return fmt.Errorf("start embedded NATS: %w", err)
		}
		natsURL = embedded.ClientURL()
		logging.Info().Str("url", natsURL).Msg("embedded NATS server started")
	}

	js, nc, err := eventprocessor.ConnectJetStream(natsURL)
	if err != nil {
		return err
	}
	// nc stays open for the process lifetime; the OS reclaims it on exit.
	_ = nc

	initializer, err := eventprocessor.NewStreamInitializer(js, eventprocessor.DefaultStreamConfig(cfg.NATS))
	if err != nil {
		return err
	}
	if _, err := initializer.EnsureStream(ctx); err != nil {
		return fmt.Errorf("ensure stream: %w", err)
	}

	wmLogger := eventprocessor.NewWatermillLogger(logging.Logger())

	subCfg := eventprocessor.SubscriberConfigFrom(cfg.NATS)
	subCfg.URL = natsURL
	subscriber, err := eventprocessor.NewSubscriber(subCfg, wmLogger)
	if err != nil {
		return fmt.Errorf("create subscriber: %w", err)
	}

	router, err := eventprocessor.NewRouter(eventprocessor.DefaultRouterConfig(), wmLogger)
	if err != nil {
		return fmt.Errorf("create event router: %w", err)
	}

	coordinator := eventprocessor.NewInvalidationCoordinator(cache, cfg.NATS.SwipeTopic, cfg.NATS.ProfileTopic)
	coordinator.Register(router, subscriber.Messages())

	tree.AddMessagingService(services.NewEventRouterService(router))
	return nil
}
