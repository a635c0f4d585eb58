// Package scheduler fans independent negotiation sessions out over a bounded
// worker pool with an optional wall-clock cutoff.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/negolab/negosim/pkg/negotiation"
	"github.com/rs/zerolog"
)

// Scheduler admits enumerated work items FIFO under the concurrency cap.
// Sessions are independent: one failing session never aborts its siblings.
type Scheduler struct {
	runner SessionRunner
	sink   Sink
	opts   Options
	logger zerolog.Logger
}

// New creates a scheduler.
func New(runner SessionRunner, sink Sink, opts Options, logger zerolog.Logger) (*Scheduler, error) {
	if runner == nil {
		return nil, fmt.Errorf("session runner is required")
	}
	if sink == nil {
		return nil, fmt.Errorf("results sink is required")
	}
	if opts.Concurrency <= 0 {
		return nil, fmt.Errorf("concurrency cap must be positive, got %d", opts.Concurrency)
	}
	if opts.Grace < 0 {
		return nil, fmt.Errorf("grace period must not be negative")
	}

	return &Scheduler{
		runner: runner,
		sink:   sink,
		opts:   opts,
		logger: logger,
	}, nil
}

// Run drives every item to an outcome or a reported drop. The returned
// summary satisfies Enumerated == Completed + Errored + Dropped.
func (s *Scheduler) Run(ctx context.Context, items []Item) (*Summary, error) {
	runID := s.opts.RunID
	if runID == "" {
		var err error
		runID, err = gonanoid.New()
		if err != nil {
			return nil, fmt.Errorf("failed to generate run id: %w", err)
		}
	}

	logger := s.logger.With().Str("run_id", runID).Logger()
	logger.Info().
		Int("items", len(items)).
		Int("concurrency", s.opts.Concurrency).
		Bool("deadline_set", !s.opts.Deadline.IsZero()).
		Msg("Experiment run started")

	start := time.Now()

	var (
		completed       atomic.Int64
		errored         atomic.Int64
		persistFailures atomic.Int64
		wg              sync.WaitGroup
	)

	// The admission semaphore is the only shared mutable resource between
	// sessions: acquire before starting, release on any terminal state.
	sem := make(chan struct{}, s.opts.Concurrency)

	sessionCtx, cancelSessions := context.WithCancel(ctx)
	defer cancelSessions()

	dropped := 0
	deadlineHit := false

admission:
	for i, item := range items {
		if !s.opts.Deadline.IsZero() && !time.Now().Before(s.opts.Deadline) {
			dropped = len(items) - i
			deadlineHit = true
			logger.Warn().
				Int("dropped", dropped).
				Msg("Deadline reached; remaining items dropped")
			break
		}

		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			dropped = len(items) - i
			break admission
		}

		wg.Add(1)
		go func(item Item) {
			defer wg.Done()
			defer func() { <-sem }()

			outcome := s.runner.Run(sessionCtx, item.Config)

			// An outcome that never reached the sink is lost work, not a
			// completion, so persist failures count toward Errored.
			if err := s.sink.Persist(item, outcome); err != nil {
				persistFailures.Add(1)
				errored.Add(1)
				logger.Error().Err(err).
					Int("product_id", item.Config.Product.ID).
					Str("scenario", string(item.Config.Scenario)).
					Msg("Failed to persist outcome")
				return
			}

			if outcome.Result == negotiation.ResultError {
				errored.Add(1)
			} else {
				completed.Add(1)
			}
		}(item)
	}

	s.waitWithGrace(&wg, deadlineHit, cancelSessions, logger)

	summary := &Summary{
		RunID:           runID,
		Enumerated:      len(items),
		Completed:       int(completed.Load()),
		Errored:         int(errored.Load()),
		PersistFailures: int(persistFailures.Load()),
		Dropped:         dropped,
		Elapsed:         time.Since(start),
	}

	logger.Info().
		Int("completed", summary.Completed).
		Int("errored", summary.Errored).
		Int("persist_failures", summary.PersistFailures).
		Int("dropped", summary.Dropped).
		Dur("elapsed", summary.Elapsed).
		Msg("Experiment run finished")

	return summary, nil
}

// waitWithGrace waits for in-flight sessions. After a deadline hit they get
// the grace period to finish their current turn, then are force-cancelled;
// cancelled sessions still persist their partial transcript.
func (s *Scheduler) waitWithGrace(wg *sync.WaitGroup, deadlineHit bool, cancel context.CancelFunc, logger zerolog.Logger) {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	if !deadlineHit || s.opts.Grace <= 0 {
		if deadlineHit {
			cancel()
		}
		<-done
		return
	}

	select {
	case <-done:
	case <-time.After(s.opts.Grace):
		logger.Warn().
			Dur("grace", s.opts.Grace).
			Msg("Grace period elapsed; cancelling in-flight sessions")
		cancel()
		<-done
	}
}
