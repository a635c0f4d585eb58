package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/negolab/negosim/pkg/negotiation"
	"github.com/negolab/negosim/pkg/products"
	"github.com/negolab/negosim/pkg/scenario"
)

// fakeRunner tracks in-flight concurrency and returns a canned result per
// session.
type fakeRunner struct {
	delay     time.Duration
	result    func(cfg negotiation.Config) negotiation.Result
	inFlight  atomic.Int64
	maxSeen   atomic.Int64
	callCount atomic.Int64
}

func (r *fakeRunner) Run(ctx context.Context, cfg negotiation.Config) *negotiation.Outcome {
	r.callCount.Add(1)
	current := r.inFlight.Add(1)
	for {
		seen := r.maxSeen.Load()
		if current <= seen || r.maxSeen.CompareAndSwap(seen, current) {
			break
		}
	}
	defer r.inFlight.Add(-1)

	if r.delay > 0 {
		select {
		case <-time.After(r.delay):
		case <-ctx.Done():
			return &negotiation.Outcome{Result: negotiation.ResultError, FailureReason: "cancelled"}
		}
	}

	result := negotiation.ResultDeal
	if r.result != nil {
		result = r.result(cfg)
	}
	return &negotiation.Outcome{Result: result}
}

// memorySink collects persisted outcomes.
type memorySink struct {
	mu       sync.Mutex
	outcomes []*negotiation.Outcome
}

func (s *memorySink) Persist(item Item, outcome *negotiation.Outcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcomes = append(s.outcomes, outcome)
	return nil
}

func (s *memorySink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.outcomes)
}

// failingSink rejects outcomes for the configured product IDs.
type failingSink struct {
	mu      sync.Mutex
	failIDs map[int]bool
	stored  int
}

func (s *failingSink) Persist(item Item, outcome *negotiation.Outcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failIDs[item.Config.Product.ID] {
		return errors.New("disk full")
	}
	s.stored++
	return nil
}

func makeItems(n int) []Item {
	items := make([]Item, n)
	for i := range items {
		items[i] = Item{Config: negotiation.Config{
			Product:         products.Product{ID: i + 1, Name: "p", RetailPrice: 100, WholesalePrice: 60},
			Scenario:        scenario.Mid,
			Budget:          80,
			BuyerModel:      "gpt-4o-mini",
			SellerModel:     "gpt-4o-mini",
			MaxTurns:        10,
			ExperimentIndex: i,
		}}
	}
	return items
}

func TestSchedulerRun(t *testing.T) {
	nop := zerolog.Nop()

	t.Run("should run every item exactly once", func(t *testing.T) {
		runner := &fakeRunner{}
		sink := &memorySink{}
		sched, err := New(runner, sink, Options{Concurrency: 4}, nop)
		require.NoError(t, err)

		summary, err := sched.Run(context.Background(), makeItems(20))
		require.NoError(t, err)

		assert.Equal(t, 20, summary.Enumerated)
		assert.Equal(t, 20, summary.Completed)
		assert.Zero(t, summary.Errored)
		assert.Zero(t, summary.Dropped)
		assert.Equal(t, int64(20), runner.callCount.Load())
		assert.Equal(t, 20, sink.count())
	})

	t.Run("should never exceed the concurrency cap", func(t *testing.T) {
		runner := &fakeRunner{delay: 10 * time.Millisecond}
		sched, err := New(runner, &memorySink{}, Options{Concurrency: 3}, nop)
		require.NoError(t, err)

		_, err = sched.Run(context.Background(), makeItems(12))
		require.NoError(t, err)

		assert.LessOrEqual(t, runner.maxSeen.Load(), int64(3))
	})

	t.Run("should account errored sessions separately", func(t *testing.T) {
		runner := &fakeRunner{result: func(cfg negotiation.Config) negotiation.Result {
			if cfg.Product.ID%2 == 0 {
				return negotiation.ResultError
			}
			return negotiation.ResultDeal
		}}
		sink := &memorySink{}
		sched, err := New(runner, sink, Options{Concurrency: 2}, nop)
		require.NoError(t, err)

		summary, err := sched.Run(context.Background(), makeItems(10))
		require.NoError(t, err)

		assert.Equal(t, 5, summary.Completed)
		assert.Equal(t, 5, summary.Errored)
		assert.Equal(t, summary.Enumerated, summary.Completed+summary.Errored+summary.Dropped)
		// Failed sessions are persisted like any other.
		assert.Equal(t, 10, sink.count())
	})

	t.Run("should drop all remaining items once the deadline passes", func(t *testing.T) {
		runner := &fakeRunner{}
		sink := &memorySink{}
		sched, err := New(runner, sink, Options{
			Concurrency: 2,
			Deadline:    time.Now().Add(-time.Second),
		}, nop)
		require.NoError(t, err)

		summary, err := sched.Run(context.Background(), makeItems(8))
		require.NoError(t, err)

		assert.Equal(t, 8, summary.Dropped)
		assert.Zero(t, summary.Completed)
		assert.Zero(t, sink.count())
		assert.Equal(t, summary.Enumerated, summary.Completed+summary.Errored+summary.Dropped)
	})

	t.Run("should let in-flight sessions finish within the grace period", func(t *testing.T) {
		runner := &fakeRunner{delay: 20 * time.Millisecond}
		sink := &memorySink{}
		sched, err := New(runner, sink, Options{
			Concurrency: 2,
			Deadline:    time.Now().Add(30 * time.Millisecond),
			Grace:       time.Second,
		}, nop)
		require.NoError(t, err)

		summary, err := sched.Run(context.Background(), makeItems(50))
		require.NoError(t, err)

		assert.Positive(t, summary.Dropped, "deadline should cut off admission")
		assert.Equal(t, summary.Enumerated, summary.Completed+summary.Errored+summary.Dropped)
		assert.Equal(t, summary.Completed+summary.Errored, sink.count(),
			"every admitted session persists an outcome")
	})

	t.Run("should count persist failures as errored", func(t *testing.T) {
		runner := &fakeRunner{}
		sink := &failingSink{failIDs: map[int]bool{2: true, 4: true}}
		sched, err := New(runner, sink, Options{Concurrency: 2}, nop)
		require.NoError(t, err)

		summary, err := sched.Run(context.Background(), makeItems(6))
		require.NoError(t, err)

		assert.Equal(t, 4, summary.Completed)
		assert.Equal(t, 2, summary.Errored)
		assert.Equal(t, 2, summary.PersistFailures)
		assert.Equal(t, summary.Enumerated, summary.Completed+summary.Errored+summary.Dropped)
	})

	t.Run("should use a caller-provided run id", func(t *testing.T) {
		sched, err := New(&fakeRunner{}, &memorySink{}, Options{Concurrency: 1, RunID: "run-42"}, nop)
		require.NoError(t, err)

		summary, err := sched.Run(context.Background(), makeItems(1))
		require.NoError(t, err)
		assert.Equal(t, "run-42", summary.RunID)
	})
}

func TestSchedulerNew(t *testing.T) {
	nop := zerolog.Nop()

	t.Run("should reject a non-positive concurrency cap", func(t *testing.T) {
		_, err := New(&fakeRunner{}, &memorySink{}, Options{Concurrency: 0}, nop)
		assert.Error(t, err)
	})

	t.Run("should require a runner and a sink", func(t *testing.T) {
		_, err := New(nil, &memorySink{}, Options{Concurrency: 1}, nop)
		assert.Error(t, err)
		_, err = New(&fakeRunner{}, nil, Options{Concurrency: 1}, nop)
		assert.Error(t, err)
	})
}

func TestEnumerate(t *testing.T) {
	prods := []products.Product{
		{ID: 1, Name: "a", RetailPrice: 100, WholesalePrice: 60},
		{ID: 2, Name: "b", RetailPrice: 200, WholesalePrice: 150},
	}

	t.Run("should expand the full grid", func(t *testing.T) {
		items, err := Enumerate(Enumeration{
			SellerModels: []string{"gpt-4o", "claude-sonnet-4-20250514"},
			BuyerModels:  []string{"gpt-4o-mini"},
			Products:     prods,
			Repetitions:  3,
			MaxTurns:     20,
		})
		require.NoError(t, err)

		// 2 sellers x 1 buyer x 2 products x 5 scenarios x 3 repetitions
		assert.Len(t, items, 60)
	})

	t.Run("should precompute the budget per scenario", func(t *testing.T) {
		items, err := Enumerate(Enumeration{
			SellerModels: []string{"gpt-4o"},
			BuyerModels:  []string{"gpt-4o-mini"},
			Products:     prods[:1],
			Scenarios:    []scenario.Scenario{scenario.Low},
			Repetitions:  1,
			MaxTurns:     20,
		})
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.InDelta(t, 48, items[0].Config.Budget, 1e-9)
		assert.Equal(t, scenario.Low, items[0].Config.Scenario)
	})

	t.Run("should number repetitions from zero within a cell", func(t *testing.T) {
		items, err := Enumerate(Enumeration{
			SellerModels: []string{"gpt-4o"},
			BuyerModels:  []string{"gpt-4o-mini"},
			Products:     prods[:1],
			Scenarios:    []scenario.Scenario{scenario.Retail},
			Repetitions:  3,
			MaxTurns:     20,
		})
		require.NoError(t, err)
		require.Len(t, items, 3)
		for i, item := range items {
			assert.Equal(t, i, item.Config.ExperimentIndex)
		}
	})

	t.Run("should reject an empty grid axis", func(t *testing.T) {
		_, err := Enumerate(Enumeration{
			SellerModels: []string{"gpt-4o"},
			Products:     prods,
			Repetitions:  1,
		})
		assert.Error(t, err)
	})
}
