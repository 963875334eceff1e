// Deckd - Candidate Deck Recommendation Service
// Copyright 2026 Swipedeck
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/swipedeck/deckd

// Package config defines the deckd configuration model and its layered
// loading via Koanf v2: built-in defaults, then an optional YAML file, then
// environment variables (highest priority, DECKD_ prefix).
package config

import (
	"time"

	"github.com/swipedeck/deckd/internal/models"
)

// Config is the root configuration for the deckd process.
type Config struct {
	Server   ServerConfig  `koanf:"server"`
	Logging  LoggingConfig `koanf:"logging"`
	Profiles ServiceConfig `koanf:"profiles"`
	Swipes   ServiceConfig `koanf:"swipes"`
	Cache    CacheConfig   `koanf:"cache"`
	NATS     NATSConfig    `koanf:"nats"`
	Deck     DeckConfig    `koanf:"deck"`
}

// ServerConfig holds HTTP admin server settings.
type ServerConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port" validate:"gt=0,lte=65535"`

	// ShutdownTimeout bounds graceful shutdown of in-flight requests.
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// RateLimit is requests per minute per client IP on admin endpoints.
	// Zero disables rate limiting.
	RateLimit int `koanf:"rate_limit" validate:"gte=0"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error disabled"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// ServiceConfig holds settings for one HTTP collaborator service
// (profile service, swipe service).
type ServiceConfig struct {
	URL        string                   `koanf:"url" validate:"required,url"`
	Resilience models.ResilienceProfile `koanf:"resilience"`
}

// CacheConfig holds Redis connection settings for the shared deck cache.
type CacheConfig struct {
	Addr       string                   `koanf:"addr" validate:"required"`
	Password   string                   `koanf:"password"`
	DB         int                      `koanf:"db" validate:"gte=0"`
	Resilience models.ResilienceProfile `koanf:"resilience"`
}

// NATSConfig holds JetStream event ingestion settings.
type NATSConfig struct {
	Enabled bool   `koanf:"enabled"`
	URL     string `koanf:"url"`

	// EmbeddedServer runs an in-process NATS JetStream server for
	// single-instance deployments without external infrastructure.
	EmbeddedServer bool   `koanf:"embedded_server"`
	StoreDir       string `koanf:"store_dir"`

	StreamName       string        `koanf:"stream_name"`
	SwipeTopic       string        `koanf:"swipe_topic"`
	ProfileTopic     string        `koanf:"profile_topic"`
	DurableName      string        `koanf:"durable_name"`
	QueueGroup       string        `koanf:"queue_group"`
	SubscribersCount int           `koanf:"subscribers_count" validate:"gte=1"`
	AckWaitTimeout   time.Duration `koanf:"ack_wait_timeout"`
	MaxReconnects    int           `koanf:"max_reconnects"`
	ReconnectWait    time.Duration `koanf:"reconnect_wait"`
}

// DeckConfig holds deck building and caching policy.
type DeckConfig struct {
	// TTL is how long a populated deck stays valid. Hours, not minutes:
	// stale recommendation data is tolerable, a missing deck is not. The
	// TTL also bounds cross-deck staleness after critical profile changes.
	TTL time.Duration `koanf:"ttl" validate:"gt=0"`

	// BuildLimit is the deck size for scheduled/batch rebuilds.
	BuildLimit int `koanf:"build_limit" validate:"gt=0"`

	// OnDemandLimit is the (typically smaller) deck size for synchronous
	// builds triggered by a read miss.
	OnDemandLimit int `koanf:"on_demand_limit" validate:"gt=0"`

	// PageSize is the viewer-population page size during RebuildAll.
	PageSize int `koanf:"page_size" validate:"gt=0"`

	// RebuildConcurrency bounds concurrent per-viewer rebuilds during a
	// full-population pass, keeping fan-out inside dependency bulkheads.
	RebuildConcurrency int `koanf:"rebuild_concurrency" validate:"gt=0"`

	// RebuildRatePerSecond paces viewer rebuild starts during RebuildAll.
	// Zero disables pacing.
	RebuildRatePerSecond float64 `koanf:"rebuild_rate_per_second" validate:"gte=0"`

	// RebuildInterval is the period of the scheduled full rebuild.
	// Zero disables the scheduler.
	RebuildInterval time.Duration `koanf:"rebuild_interval"`

	// RebuildOnStartup runs a full rebuild pass as soon as the scheduler
	// starts instead of waiting for the first interval. Useful after a
	// cache flush; off by default because a fleet restart would stampede
	// the profile service.
	RebuildOnStartup bool `koanf:"rebuild_on_startup"`
}

// defaultConfig returns the built-in defaults, the lowest configuration
// layer. Resilience profiles default per dependency and are individually
// overridable from file or environment.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ShutdownTimeout: 10 * time.Second,
			RateLimit:       120,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Profiles: ServiceConfig{
			URL:        "http://localhost:8081",
			Resilience: models.DefaultResilienceProfile("profiles"),
		},
		Swipes: ServiceConfig{
			URL:        "http://localhost:8082",
			Resilience: models.DefaultResilienceProfile("swipes"),
		},
		Cache: CacheConfig{
			Addr:       "localhost:6379",
			DB:         0,
			Resilience: cacheResilienceDefaults(),
		},
		NATS: NATSConfig{
			Enabled:          true,
			URL:              "nats://127.0.0.1:4222",
			EmbeddedServer:   false,
			StoreDir:         "/data/nats/jetstream",
			StreamName:       "MATCHING",
			SwipeTopic:       "swipe.created",
			ProfileTopic:     "profile.changed",
			DurableName:      "deck-invalidator",
			QueueGroup:       "deck-invalidators",
			SubscribersCount: 4,
			AckWaitTimeout:   30 * time.Second,
			MaxReconnects:    -1,
			ReconnectWait:    2 * time.Second,
		},
		Deck: DeckConfig{
			TTL:                  6 * time.Hour,
			BuildLimit:           100,
			OnDemandLimit:        25,
			PageSize:             200,
			RebuildConcurrency:   8,
			RebuildRatePerSecond: 50,
			RebuildInterval:      6 * time.Hour,
			RebuildOnStartup:     false,
		},
	}
}

// cacheResilienceDefaults tightens the generic profile for Redis: calls are
// cheap, so the timeout and backoff shrink and concurrency grows.
func cacheResilienceDefaults() models.ResilienceProfile {
	p := models.DefaultResilienceProfile("cache")
	p.Timeout = 500 * time.Millisecond
	p.SlowCallDuration = 250 * time.Millisecond
	p.InitialBackoff = 50 * time.Millisecond
	p.MaxAttempts = 2
	p.MaxConcurrent = 100
	p.MaxWait = 100 * time.Millisecond
	return p
}
