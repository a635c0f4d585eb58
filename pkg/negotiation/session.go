// Package negotiation drives one buyer/seller exchange to a terminal outcome.
package negotiation

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Session owns one buyer/seller pair for one product under one budget
// scenario. It runs the turn loop to a terminal state and produces the
// transcript plus outcome metadata. A session is single-use.
type Session struct {
	cfg    Config
	buyer  AgentProxy
	seller AgentProxy
	eval   Evaluator
	logger zerolog.Logger
	id     string
}

// New creates a session. The proxies' roles must match their slots.
func New(cfg Config, buyer, seller AgentProxy, eval Evaluator, logger zerolog.Logger) (*Session, error) {
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid session config: %w", err)
	}
	if buyer == nil || seller == nil {
		return nil, fmt.Errorf("both proxies are required")
	}
	if buyer.Role() != Buyer {
		return nil, fmt.Errorf("buyer proxy reports role %s", buyer.Role())
	}
	if seller.Role() != Seller {
		return nil, fmt.Errorf("seller proxy reports role %s", seller.Role())
	}
	if eval == nil {
		return nil, fmt.Errorf("evaluator is required")
	}

	id := uuid.NewString()
	return &Session{
		cfg:    cfg,
		buyer:  buyer,
		seller: seller,
		eval:   eval,
		logger: logger.With().Str("session_id", id).Logger(),
		id:     id,
	}, nil
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Run executes the turn loop. It always returns an outcome: agent failures
// and cancellation become a terminal error outcome with the partial
// transcript preserved, never a panic or a lost session.
func (s *Session) Run(ctx context.Context) *Outcome {
	s.logger.Info().
		Str("product", s.cfg.Product.Name).
		Str("scenario", string(s.cfg.Scenario)).
		Float64("budget", s.cfg.Budget).
		Int("max_turns", s.cfg.MaxTurns).
		Msg("Negotiation started")

	var (
		turns           []Turn
		violations      []int
		malformedStreak int
		active          = s.cfg.OpeningRole
		standingOffer   = s.cfg.Product.RetailPrice
		sellerOffers    = []float64{s.cfg.Product.RetailPrice}
	)

	finish := func(result Result, finalPrice *float64, reason string) *Outcome {
		out := &Outcome{
			SessionID:      s.id,
			Result:         result,
			FinalPrice:     finalPrice,
			Turns:          turns,
			EndedAtTurn:    len(turns),
			SellerOffers:   sellerOffers,
			RoleViolations: violations,
			FailureReason:  reason,
		}
		s.logger.Info().
			Str("result", string(result)).
			Int("turns", out.EndedAtTurn).
			Msg("Negotiation finished")
		return out
	}

	for len(turns) < s.cfg.MaxTurns {
		if err := ctx.Err(); err != nil {
			return finish(ResultError, nil, "cancelled")
		}

		proxy := s.seller
		if active == Buyer {
			proxy = s.buyer
		}

		utt, err := proxy.NextUtterance(ctx, turns)
		if err != nil {
			if IsCancellation(ctx, err) {
				return finish(ResultError, nil, "cancelled")
			}
			if IsMalformed(err) {
				malformedStreak++
				if malformedStreak > s.cfg.MalformedLimit {
					return finish(ResultError, nil, fmt.Sprintf("repeated malformed responses: %v", err))
				}
				// Degrade to an empty turn without an offer; it still
				// counts toward the turn limit.
				utt = Utterance{}
			} else {
				return finish(ResultError, nil, fmt.Sprintf("%s agent failed: %v", active, err))
			}
		} else {
			malformedStreak = 0
		}

		turn := Turn{
			Index: len(turns) + 1,
			Role:  active,
			Text:  utt.Text,
			Offer: utt.Offer,
		}
		if impliesRoleViolation(active, utt.Text) {
			turn.RoleViolation = true
			violations = append(violations, turn.Index)
			s.logger.Warn().
				Int("turn", turn.Index).
				Str("role", string(active)).
				Msg("Role violation candidate recorded")
		}
		turns = append(turns, turn)

		if active == Seller {
			if turn.Offer != nil {
				standingOffer = *turn.Offer
			}
			sellerOffers = append(sellerOffers, standingOffer)
		}

		s.logger.Debug().
			Int("turn", turn.Index).
			Str("role", string(active)).
			Msg("Turn recorded")

		// The evaluator reads the buyer's reply against the seller's most
		// recent offer, so it only runs once both sides have spoken.
		if active == Buyer && len(turns) >= 2 {
			verdict, err := s.eval.Evaluate(ctx, turns)
			if err != nil {
				if IsCancellation(ctx, err) {
					return finish(ResultError, nil, "cancelled")
				}
				s.logger.Warn().Err(err).Msg("Evaluator failed; continuing negotiation")
				verdict = VerdictContinue
			}

			switch verdict {
			case VerdictAccept:
				// An over-budget acceptance is still a deal: the session
				// never vetoes it, the anomaly pass flags it later.
				price := standingOffer
				return finish(ResultDeal, &price, "")
			case VerdictReject:
				return finish(ResultNoDeal, nil, "")
			}
		}

		active = active.Other()
	}

	return finish(ResultMaxTurnsReached, nil, "")
}

// impliesRoleViolation reports whether an utterance self-identifies as the
// counterpart role. Detection is a candidate signal for the anomaly pass,
// not grounds for correction.
func impliesRoleViolation(role Role, text string) bool {
	lowered := strings.ToLower(text)
	other := string(role.Other())
	for _, marker := range []string{
		other + ":",
		"as the " + other,
		"speaking as the " + other,
		"i am the " + other,
	} {
		if strings.Contains(lowered, marker) {
			return true
		}
	}
	return false
}
