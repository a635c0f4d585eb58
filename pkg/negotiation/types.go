package negotiation

import (
	"context"
	"fmt"

	"github.com/negolab/negosim/pkg/products"
	"github.com/negolab/negosim/pkg/scenario"
)

// Role identifies which side of the negotiation produced a turn.
type Role string

const (
	Buyer  Role = "buyer"
	Seller Role = "seller"
)

// Other returns the counterpart role.
func (r Role) Other() Role {
	if r == Buyer {
		return Seller
	}
	return Buyer
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == Buyer || r == Seller
}

// Turn is one utterance in the transcript. Turns are immutable once appended.
type Turn struct {
	Index         int      `json:"index"`
	Role          Role     `json:"speaker"`
	Text          string   `json:"message"`
	Offer         *float64 `json:"offer,omitempty"`
	RoleViolation bool     `json:"role_violation,omitempty"`
}

// Utterance is what an AgentProxy returns for one turn: the message text and
// the price offer extracted from it, if any.
type Utterance struct {
	Text  string
	Offer *float64
}

// Result is the terminal state of a session.
type Result string

const (
	ResultDeal            Result = "deal"
	ResultNoDeal          Result = "no_deal"
	ResultMaxTurnsReached Result = "max_turns_reached"
	ResultError           Result = "error"
)

// Config fully determines a session's inputs. Two sessions with identical
// config are independent repeated trials.
type Config struct {
	Product         products.Product
	Scenario        scenario.Scenario
	Budget          float64
	BuyerModel      string
	SellerModel     string
	MaxTurns        int
	ExperimentIndex int

	// OpeningRole is the side that speaks first. Defaults to the buyer.
	OpeningRole Role

	// MalformedLimit is the number of consecutive unusable agent responses
	// tolerated before the session escalates to an error outcome.
	MalformedLimit int
}

func (c *Config) applyDefaults() {
	if c.OpeningRole == "" {
		c.OpeningRole = Buyer
	}
	if c.MalformedLimit <= 0 {
		c.MalformedLimit = 3
	}
}

// Validate rejects configs that cannot produce a meaningful session.
func (c Config) Validate() error {
	if c.MaxTurns <= 0 {
		return fmt.Errorf("max turns must be positive, got %d", c.MaxTurns)
	}
	if c.Budget < 0 {
		return fmt.Errorf("budget must not be negative, got %f", c.Budget)
	}
	if c.OpeningRole != "" && !c.OpeningRole.Valid() {
		return fmt.Errorf("invalid opening role: %s", c.OpeningRole)
	}
	if !c.Scenario.Valid() {
		return fmt.Errorf("invalid budget scenario: %s", c.Scenario)
	}
	return c.Product.Validate()
}

// Outcome is the terminal record of one session. It is created exactly once,
// at termination, and never mutated afterwards.
type Outcome struct {
	SessionID   string
	Result      Result
	FinalPrice  *float64
	Turns       []Turn
	EndedAtTurn int

	// SellerOffers tracks the seller's standing offer per seller turn,
	// seeded with the retail price.
	SellerOffers []float64

	// RoleViolations lists turn indices flagged as role-order violation
	// candidates. Recorded, never auto-corrected.
	RoleViolations []int

	// FailureReason is set when Result is ResultError.
	FailureReason string
}

// AgentProxy produces the next utterance for one fixed role, given the
// transcript so far. Implementations own their retry budget: an error return
// means that budget is exhausted.
type AgentProxy interface {
	Role() Role
	NextUtterance(ctx context.Context, transcript []Turn) (Utterance, error)
}

// Verdict is the evaluator's reading of the buyer's latest reply.
type Verdict int

const (
	VerdictContinue Verdict = iota
	VerdictAccept
	VerdictReject
)

// Evaluator decides whether the transcript has reached a terminal agreement
// or refusal. The precise phrase detection is deliberately replaceable; the
// session's transition rules are the contract.
type Evaluator interface {
	Evaluate(ctx context.Context, transcript []Turn) (Verdict, error)
}
