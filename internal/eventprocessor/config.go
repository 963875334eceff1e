// Deckd - Candidate Deck Recommendation Service
// Copyright 2026 Swipedeck
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/swipedeck/deckd

package eventprocessor

import (
	"time"

	"github.com/swipedeck/deckd/internal/config"
)

// SubscriberConfig holds durable JetStream consumption settings.
type SubscriberConfig struct {
	// URL is the NATS server connection URL.
	URL string

	// StreamName binds the consumer to an existing stream. Required:
	// the invalidator never auto-provisions streams from topic names.
	StreamName string

	// DurableName is the consumer durable prefix; redeployments resume
	// from the durable's position instead of replaying the stream.
	DurableName string

	// QueueGroup load-balances deliveries across instances.
	QueueGroup string

	// SubscribersCount is the number of concurrent message processors.
	// Deck invalidation is commutative per viewer so out-of-order
	// processing across goroutines is acceptable.
	SubscribersCount int

	AckWaitTimeout time.Duration
	CloseTimeout   time.Duration
	MaxDeliver     int
	MaxAckPending  int
	MaxReconnects  int
	ReconnectWait  time.Duration
}

// DefaultSubscriberConfig returns production defaults for the subscriber.
func DefaultSubscriberConfig(url string) SubscriberConfig {
	return SubscriberConfig{
		URL:              url,
		StreamName:       "MATCHING",
		DurableName:      "deck-invalidator",
		QueueGroup:       "deck-invalidators",
		SubscribersCount: 4,
		AckWaitTimeout:   30 * time.Second,
		CloseTimeout:     30 * time.Second,
		MaxDeliver:       1,
		MaxAckPending:    1024,
		MaxReconnects:    -1,
		ReconnectWait:    2 * time.Second,
	}
}

// SubscriberConfigFrom maps the service NATS section onto a subscriber
// config, keeping the library defaults for fields the section omits.
func SubscriberConfigFrom(cfg config.NATSConfig) SubscriberConfig {
	out := DefaultSubscriberConfig(cfg.URL)
	out.StreamName = cfg.StreamName
	out.DurableName = cfg.DurableName
	out.QueueGroup = cfg.QueueGroup
	if cfg.SubscribersCount > 0 {
		out.SubscribersCount = cfg.SubscribersCount
	}
	if cfg.AckWaitTimeout > 0 {
		out.AckWaitTimeout = cfg.AckWaitTimeout
	}
	if cfg.MaxReconnects != 0 {
		out.MaxReconnects = cfg.MaxReconnects
	}
	if cfg.ReconnectWait > 0 {
		out.ReconnectWait = cfg.ReconnectWait
	}
	return out
}

// ServerConfig holds embedded NATS server settings.
type ServerConfig struct {
	Host              string
	Port              int
	StoreDir          string
	JetStreamMaxMem   int64
	JetStreamMaxStore int64
}

// DefaultServerConfig returns production defaults for the embedded server.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:              "127.0.0.1",
		Port:              4222,
		StoreDir:          "/data/nats/jetstream",
		JetStreamMaxMem:   1 << 30,
		JetStreamMaxStore: 10 << 30,
	}
}

// StreamConfig describes the matching-events stream the invalidator
// consumes from.
type StreamConfig struct {
	Name            string
	Subjects        []string
	MaxAge          time.Duration
	MaxBytes        int64
	MaxMsgs         int64
	DuplicateWindow time.Duration
	Replicas        int
}

// DefaultStreamConfig returns the stream layout for the two matching
// subjects, retained long enough to ride out a weekend outage.
func DefaultStreamConfig(cfg config.NATSConfig) StreamConfig {
	return StreamConfig{
		Name:            cfg.StreamName,
		Subjects:        []string{cfg.SwipeTopic, cfg.ProfileTopic},
		MaxAge:          72 * time.Hour,
		MaxBytes:        2 << 30,
		MaxMsgs:         -1,
		DuplicateWindow: 2 * time.Minute,
		Replicas:        1,
	}
}

// RouterConfig holds message-router middleware settings.
type RouterConfig struct {
	CloseTimeout time.Duration

	// Retry applies to infrastructure failures surfaced by middleware,
	// never to handler outcomes: handlers ack unconditionally.
	RetryMaxRetries      int
	RetryInitialInterval time.Duration
	RetryMaxInterval     time.Duration
	RetryMultiplier      float64
}

// DefaultRouterConfig returns production defaults for the router.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		CloseTimeout:         30 * time.Second,
		RetryMaxRetries:      3,
		RetryInitialInterval: 500 * time.Millisecond,
		RetryMaxInterval:     10 * time.Second,
		RetryMultiplier:      2.0,
	}
}
