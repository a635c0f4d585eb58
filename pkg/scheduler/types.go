package scheduler

import (
	"context"
	"time"

	"github.com/negolab/negosim/pkg/negotiation"
)

// Item is one enumerated unit of work: a fully determined session config.
type Item struct {
	Config negotiation.Config
}

// SessionRunner executes one session to a terminal outcome. It must always
// return an outcome; failures are encoded as error outcomes, never lost.
type SessionRunner interface {
	Run(ctx context.Context, cfg negotiation.Config) *negotiation.Outcome
}

// Sink receives every terminal outcome. Implementations must be safe for
// concurrent use; the sink is the only cross-session shared state besides
// the admission counter.
type Sink interface {
	Persist(item Item, outcome *negotiation.Outcome) error
}

// Options bounds a run: the concurrency cap and the optional wall-clock
// cutoff after which no new session starts.
type Options struct {
	// RunID tags the run; generated when empty.
	RunID string

	// Concurrency is the cap C on simultaneously in-flight sessions.
	Concurrency int

	// Deadline, when non-zero, stops admission of new sessions. In-flight
	// sessions get Grace to finish before forced cancellation.
	Deadline time.Time
	Grace    time.Duration
}

// Summary is the accounting for one run. Enumerated always equals
// Completed + Errored + Dropped: nothing is silently lost.
type Summary struct {
	RunID      string
	Enumerated int
	Completed  int
	Errored    int
	Dropped    int
	Elapsed    time.Duration

	// PersistFailures is the subset of Errored where the session finished
	// but its outcome could not be written to the sink.
	PersistFailures int
}
