package agent

import (
	"context"
	"strings"

	"github.com/negolab/negosim/pkg/negotiation"
	"github.com/rs/zerolog"
)

// LLMEvaluator judges the buyer's latest reply with a summary model, the
// default acceptance detector. The state-machine contract does not depend on
// this particular detector; see KeywordEvaluator for the rule-based variant.
type LLMEvaluator struct {
	provider LLMProvider
	model    string
	retry    RetryPolicy
	logger   zerolog.Logger
}

// NewLLMEvaluator creates the summary-model verdict evaluator.
func NewLLMEvaluator(provider LLMProvider, model string, retry RetryPolicy, logger zerolog.Logger) *LLMEvaluator {
	return &LLMEvaluator{
		provider: provider,
		model:    model,
		retry:    retry,
		logger:   logger,
	}
}

// Evaluate classifies the buyer's latest message as acceptance, rejection or
// a continuation of the negotiation.
func (e *LLMEvaluator) Evaluate(ctx context.Context, transcript []negotiation.Turn) (negotiation.Verdict, error) {
	buyerMsg := latestText(transcript, negotiation.Buyer)
	if buyerMsg == "" {
		return negotiation.VerdictContinue, nil
	}
	sellerMsg := latestText(transcript, negotiation.Seller)

	response, err := callWithRetry(ctx, e.retry, e.logger, func(callCtx context.Context) (*LLMResponse, error) {
		return e.provider.Call(callCtx, LLMRequest{
			Model:     e.model,
			Messages:  []Message{{Role: "user", Content: verdictPrompt(buyerMsg, sellerMsg)}},
			MaxTokens: 16,
		})
	})
	if err != nil {
		return negotiation.VerdictContinue, err
	}

	verdict := strings.ToUpper(response.Content)
	switch {
	case strings.Contains(verdict, "ACCEPTANCE"):
		return negotiation.VerdictAccept, nil
	case strings.Contains(verdict, "REJECTION"):
		return negotiation.VerdictReject, nil
	default:
		return negotiation.VerdictContinue, nil
	}
}

// KeywordEvaluator is the rule-based acceptance detector: no model calls,
// deterministic, suitable for tests and offline replays.
type KeywordEvaluator struct{}

var acceptPhrases = []string{
	"i accept",
	"i'll take it",
	"it's a deal",
	"we have a deal",
	"deal!",
	"sounds good, i'll buy",
	"i agree to",
}

var rejectPhrases = []string{
	"cannot afford",
	"can't afford",
	"i have to walk away",
	"walking away",
	"no deal",
	"i must decline",
	"not interested anymore",
	"i won't be purchasing",
}

// Evaluate scans the buyer's latest message for explicit acceptance or
// withdrawal phrases.
func (KeywordEvaluator) Evaluate(_ context.Context, transcript []negotiation.Turn) (negotiation.Verdict, error) {
	buyerMsg := strings.ToLower(latestText(transcript, negotiation.Buyer))
	if buyerMsg == "" {
		return negotiation.VerdictContinue, nil
	}

	for _, phrase := range rejectPhrases {
		if strings.Contains(buyerMsg, phrase) {
			return negotiation.VerdictReject, nil
		}
	}
	for _, phrase := range acceptPhrases {
		if strings.Contains(buyerMsg, phrase) {
			return negotiation.VerdictAccept, nil
		}
	}
	return negotiation.VerdictContinue, nil
}

func latestText(transcript []negotiation.Turn, role negotiation.Role) string {
	for i := len(transcript) - 1; i >= 0; i-- {
		if transcript[i].Role == role {
			return transcript[i].Text
		}
	}
	return ""
}
