package liveview

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/jakechorley/shift-calendar/pkg/changefeed"
	"github.com/jakechorley/shift-calendar/pkg/db"
	"github.com/jakechorley/shift-calendar/pkg/metrics"
)

var (
	// ErrFeedClosed is reported by Err once the change feed has gone away
	ErrFeedClosed = errors.New("change feed closed")
	// ErrRunning is returned by Start on a synchronizer that is already running
	ErrRunning = errors.New("synchronizer already running")
)

// Synchronizer owns one session's view
type Synchronizer struct {
	source  Source
	logger  *zap.Logger
	metrics *metrics.Metrics

	mu        sync.RWMutex
	view      *View
	listeners []func(*View)
	err       error
	cancel    context.CancelFunc
	done      chan struct{}
}

// Option configures a Synchronizer
type Option func(*Synchronizer)

// WithMetrics counts refetches
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Synchronizer) {
		s.metrics = m
	}
}

// New creates a stopped synchronizer
func New(source Source, logger *zap.Logger, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		source: source,
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OnUpdate registers fn to receive every new view, starting with the one
// fetched by Start. fn runs on the synchronizer's goroutine.
func (s *Synchronizer) OnUpdate(fn func(*View)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Snapshot returns the current view, nil before the first fetch
func (s *Synchronizer) Snapshot() *View {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view
}

// Err returns ErrFeedClosed after the change feed dropped
func (s *Synchronizer) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// Done is closed when the running synchronizer stops for any reason. It is
// nil before the first successful Start.
func (s *Synchronizer) Done() <-chan struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.done
}

// Start subscribes to shift changes, fetches the initial view and keeps it
// current until Stop is called or the feed drops. The subscription is made
// before the fetch so no change can fall between the two.
func (s *Synchronizer) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		return ErrRunning
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.err = nil
	s.mu.Unlock()

	sub, err := s.source.Subscribe(runCtx, db.EntityShifts,
		changefeed.OpInsert, changefeed.OpUpdate, changefeed.OpDelete)
	if err != nil {
		s.reset(cancel)
		return fmt.Errorf("failed to subscribe to shift changes: %w", err)
	}

	view, err := Fetch(runCtx, s.source)
	s.metrics.Refetched(err)
	if err != nil {
		sub.Close()
		s.reset(cancel)
		return fmt.Errorf("failed to fetch initial view: %w", err)
	}

	done := make(chan struct{})
	s.mu.Lock()
	s.done = done
	s.mu.Unlock()
	s.publish(view)

	s.logger.Debug("Live view started",
		zap.Int("members", len(view.Members)),
		zap.Int("shifts", len(view.Days)))

	go s.run(runCtx, sub, done)
	return nil
}

// Stop releases the subscription and waits for the loop to exit. Changes
// made while stopped are picked up by the fresh fetch of the next Start.
func (s *Synchronizer) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	if done != nil {
		<-done
	}
	s.reset(cancel)
}

func (s *Synchronizer) reset(cancel context.CancelFunc) {
	cancel()
	s.mu.Lock()
	s.cancel = nil
	s.mu.Unlock()
}

func (s *Synchronizer) run(ctx context.Context, sub *changefeed.Subscription, done chan struct{}) {
	defer close(done)
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-sub.C():
			if !ok {
				s.feedClosed()
				return
			}
		}

		// Signals that arrived while waiting collapse into this refetch
		if !drain(sub) {
			s.feedClosed()
			return
		}
		s.refetch(ctx)
	}
}

// drain empties pending signals, returning false if the channel closed
func drain(sub *changefeed.Subscription) bool {
	for {
		select {
		case _, ok := <-sub.C():
			if !ok {
				return false
			}
		default:
			return true
		}
	}
}

func (s *Synchronizer) refetch(ctx context.Context) {
	view, err := Fetch(ctx, s.source)
	s.metrics.Refetched(err)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Warn("Failed to refresh live view, keeping previous view", zap.Error(err))
		}
		return
	}
	s.logger.Debug("Live view refreshed", zap.Int("shifts", len(view.Days)))
	s.publish(view)
}

func (s *Synchronizer) feedClosed() {
	s.logger.Warn("Change feed closed, live view is no longer updating")
	s.mu.Lock()
	s.err = ErrFeedClosed
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.mu.Unlock()
}

func (s *Synchronizer) publish(view *View) {
	s.mu.Lock()
	s.view = view
	listeners := make([]func(*View), len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(view)
	}
}
