package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// RetryPolicy bounds the transient-error retries around a single provider
// call. Each attempt carries its own timeout; an attempt timeout counts as a
// transient transport error, cancellation of the parent context does not.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	CallTimeout    time.Duration
}

// DefaultRetryPolicy mirrors the retry budget used for all agent calls.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    3,
		InitialBackoff: time.Second,
		CallTimeout:    60 * time.Second,
	}
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	d := DefaultRetryPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = d.MaxAttempts
	}
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = d.InitialBackoff
	}
	if p.CallTimeout <= 0 {
		p.CallTimeout = d.CallTimeout
	}
	return p
}

// callWithRetry runs fn under the policy with exponential backoff. It stops
// early on permanent errors and on parent context cancellation.
func callWithRetry(ctx context.Context, policy RetryPolicy, logger zerolog.Logger, fn func(context.Context) (*LLMResponse, error)) (*LLMResponse, error) {
	policy = policy.withDefaults()

	var lastErr error

	for attempt := 0; attempt < policy.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		attemptCtx, cancel := context.WithTimeout(ctx, policy.CallTimeout)
		response, err := fn(attemptCtx)
		cancel()

		if err == nil {
			return response, nil
		}

		// An expired attempt deadline is transient unless the parent
		// context itself is done.
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			err = &TransportError{Err: err}
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		lastErr = err

		if !IsRetryable(err) {
			return nil, err
		}

		if attempt == policy.MaxAttempts-1 {
			break
		}

		// Exponential backoff: 1s, 2s, 4s
		delay := policy.InitialBackoff * (1 << attempt)
		logger.Info().
			Int("attempt", attempt+1).
			Dur("delay", delay).
			Err(err).
			Msg("Retrying after transient error")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	// Flatten the last error into the message: the exhaustion error must not
	// unwrap to the attempt deadlines it absorbed, or callers would mistake
	// a spent retry budget for cancellation.
	return nil, fmt.Errorf("max retries (%d) exceeded: %v", policy.MaxAttempts, lastErr)
}
