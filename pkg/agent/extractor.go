package agent

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

// offerPattern matches a monetary quantity: $1,234,567.89, $1234 and so on.
var offerPattern = regexp.MustCompile(`\$([0-9,]+(\.[0-9]+)?)`)

// ParseOffer extracts the first dollar-denominated amount from text. It
// returns nil when no recognizable price is present; extraction failure is
// never fatal.
func ParseOffer(text string) *float64 {
	match := offerPattern.FindStringSubmatch(text)
	if match == nil {
		return nil
	}

	value, err := strconv.ParseFloat(strings.ReplaceAll(match[1], ",", ""), 64)
	if err != nil {
		return nil
	}
	return &value
}

// Extractor pulls the seller's current price offer out of an utterance using
// a summary model, falling back to pattern matching when the model call
// fails. This keeps extraction usable even with a degraded summary provider.
type Extractor struct {
	provider LLMProvider
	model    string
	retry    RetryPolicy
	logger   zerolog.Logger
}

// NewExtractor creates an offer extractor backed by a summary model.
func NewExtractor(provider LLMProvider, model string, retry RetryPolicy, logger zerolog.Logger) *Extractor {
	return &Extractor{
		provider: provider,
		model:    model,
		retry:    retry,
		logger:   logger,
	}
}

// ExtractOffer returns the offer stated in a seller message, or nil when the
// message makes no clear offer.
func (e *Extractor) ExtractOffer(ctx context.Context, sellerMessage string) *float64 {
	response, err := callWithRetry(ctx, e.retry, e.logger, func(callCtx context.Context) (*LLMResponse, error) {
		return e.provider.Call(callCtx, LLMRequest{
			Model:     e.model,
			Messages:  []Message{{Role: "user", Content: extractionPrompt(sellerMessage)}},
			MaxTokens: 64,
		})
	})
	if err != nil {
		e.logger.Warn().Err(err).Msg("Offer extraction call failed; falling back to pattern match")
		return ParseOffer(sellerMessage)
	}

	answer := strings.TrimSpace(response.Content)
	if strings.Contains(answer, "None") {
		return nil
	}

	if offer := ParseOffer(answer); offer != nil {
		return offer
	}

	e.logger.Debug().
		Str("raw", answer).
		Msg("No price found in extraction response")
	return nil
}
