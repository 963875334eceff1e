// Deckd - Candidate Deck Recommendation Service
// Copyright 2026 Swipedeck
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/swipedeck/deckd

package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swipedeck/deckd/internal/models"
)

type mockHTTPServer struct {
	listenErr   error
	shutdownErr error
	shutdown    atomic.Bool
	done        chan struct{}
}

func newMockHTTPServer() *mockHTTPServer {
	return &mockHTTPServer{done: make(chan struct{})}
}

func (m *mockHTTPServer) ListenAndServe() error {
	if m.listenErr != nil {
		return m.listenErr
	}
	<-m.done
	return errors.New("http: Server closed")
}

func (m *mockHTTPServer) Shutdown(_ context.Context) error {
	m.shutdown.Store(true)
	close(m.done)
	return m.shutdownErr
}

func TestHTTPServerServiceStartFailure(t *testing.T) {
	srv := newMockHTTPServer()
	srv.listenErr = errors.New("bind: address already in use")
	svc := NewHTTPServerService(srv, time.Second)

	err := svc.Serve(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "address already in use")
}

func TestHTTPServerServiceGracefulShutdown(t *testing.T) {
	srv := newMockHTTPServer()
	svc := NewHTTPServerService(srv, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- svc.Serve(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("service did not stop")
	}
	assert.True(t, srv.shutdown.Load())
}

type countingRebuilder struct {
	runs atomic.Int64
}

func (c *countingRebuilder) RebuildAll(_ context.Context) models.RebuildReport {
	c.runs.Add(1)
	return models.RebuildReport{Viewers: 1, Rebuilt: 1}
}

func TestSchedulerRunsOnStartupAndInterval(t *testing.T) {
	rebuilder := &countingRebuilder{}
	svc := NewSchedulerService(rebuilder, SchedulerConfig{
		Interval:     20 * time.Millisecond,
		RunOnStartup: true,
	}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- svc.Serve(ctx) }()

	require.Eventually(t, func() bool {
		return rebuilder.runs.Load() >= 2
	}, 5*time.Second, 5*time.Millisecond, "startup pass plus at least one scheduled pass")

	cancel()
	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestSchedulerDisabledIdlesUntilShutdown(t *testing.T) {
	rebuilder := &countingRebuilder{}
	svc := NewSchedulerService(rebuilder, SchedulerConfig{Interval: 0}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- svc.Serve(ctx) }()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop")
	}
	assert.Zero(t, rebuilder.runs.Load())
}

type blockingRouter struct {
	closed atomic.Bool
}

func (r *blockingRouter) Run(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

func (r *blockingRouter) Close() error {
	r.closed.Store(true)
	return nil
}

func TestEventRouterServiceStopsWithContext(t *testing.T) {
	svc := NewEventRouterService(&blockingRouter{})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- svc.Serve(ctx) }()

	cancel()
	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("router service did not stop")
	}
}
