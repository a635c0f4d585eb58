package negotiation

import (
	"context"
	"errors"
	"fmt"
)

// MalformedResponseError reports an agent response that could not be used as
// a turn at all (empty or unintelligible content). Offer-extraction failures
// are not malformed responses; they degrade to a turn without an offer.
type MalformedResponseError struct {
	Role   Role
	Reason string
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("%s returned a malformed response: %s", e.Role, e.Reason)
}

// IsMalformed reports whether err is a malformed-response error.
func IsMalformed(err error) bool {
	var m *MalformedResponseError
	return errors.As(err, &m)
}

// IsCancellation reports whether err is the result of the session context
// being cancelled, which is reported distinctly from genuine agent failures.
// The context's own state is the deciding signal: retry layers wrap attempt
// timeouts that also unwrap to context.DeadlineExceeded, and with a live
// context those are genuine failures, not cancellation.
func IsCancellation(ctx context.Context, err error) bool {
	if ctx.Err() == nil {
		return false
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
