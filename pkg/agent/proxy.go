package agent

import (
	"context"
	"strings"

	"github.com/negolab/negosim/pkg/negotiation"
	"github.com/negolab/negosim/pkg/products"
	"github.com/rs/zerolog"
)

// Proxy binds one negotiation role to a model. It builds the role's private
// prompt, calls the provider under the retry policy, and extracts the price
// offer from the returned utterance. The counterpart's private context never
// enters the request.
type Proxy struct {
	role        negotiation.Role
	model       string
	provider    LLMProvider
	extractor   *Extractor
	product     products.Product
	budget      float64
	temperature float64
	maxTokens   int
	retry       RetryPolicy
	logger      zerolog.Logger
}

// ProxyConfig holds the shared knobs for both proxies.
type ProxyConfig struct {
	Temperature float64
	MaxTokens   int
	Retry       RetryPolicy
}

func (c ProxyConfig) withDefaults() ProxyConfig {
	if c.Temperature == 0 {
		c.Temperature = 0.7
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = 1000
	}
	return c
}

// NewBuyerProxy creates the buyer-side proxy. The budget is the buyer's
// private context.
func NewBuyerProxy(provider LLMProvider, model string, product products.Product, budget float64, cfg ProxyConfig, logger zerolog.Logger) *Proxy {
	cfg = cfg.withDefaults()
	return &Proxy{
		role:        negotiation.Buyer,
		model:       model,
		provider:    provider,
		product:     product,
		budget:      budget,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		retry:       cfg.Retry,
		logger:      logger.With().Str("role", "buyer").Str("model", model).Logger(),
	}
}

// NewSellerProxy creates the seller-side proxy. The wholesale floor is the
// seller's private context (already part of the product record). The
// extractor pulls the standing offer out of each seller utterance.
func NewSellerProxy(provider LLMProvider, model string, product products.Product, extractor *Extractor, cfg ProxyConfig, logger zerolog.Logger) *Proxy {
	cfg = cfg.withDefaults()
	return &Proxy{
		role:        negotiation.Seller,
		model:       model,
		provider:    provider,
		extractor:   extractor,
		product:     product,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		retry:       cfg.Retry,
		logger:      logger.With().Str("role", "seller").Str("model", model).Logger(),
	}
}

// Role returns the side this proxy argues for.
func (p *Proxy) Role() negotiation.Role {
	return p.role
}

// NextUtterance produces the role's next message given the transcript so far.
func (p *Proxy) NextUtterance(ctx context.Context, transcript []negotiation.Turn) (negotiation.Utterance, error) {
	request := p.buildRequest(transcript)

	response, err := callWithRetry(ctx, p.retry, p.logger, func(callCtx context.Context) (*LLMResponse, error) {
		return p.provider.Call(callCtx, request)
	})
	if err != nil {
		return negotiation.Utterance{}, err
	}

	text := strings.TrimSpace(response.Content)
	if text == "" {
		return negotiation.Utterance{}, &negotiation.MalformedResponseError{
			Role:   p.role,
			Reason: "empty response content",
		}
	}

	return negotiation.Utterance{
		Text:  text,
		Offer: p.extractOffer(ctx, text),
	}, nil
}

func (p *Proxy) buildRequest(transcript []negotiation.Turn) LLMRequest {
	// The opener speaks into an empty transcript; that first message is
	// prompted directly rather than through the chat frame.
	if len(transcript) == 0 {
		prompt := sellerOpeningPrompt(p.product)
		if p.role == negotiation.Buyer {
			prompt = buyerOpeningPrompt(p.product, p.budget)
		}
		return LLMRequest{
			Model:       p.model,
			Messages:    []Message{{Role: "user", Content: prompt}},
			Temperature: p.temperature,
			MaxTokens:   p.maxTokens,
		}
	}

	system := sellerSystemPrompt(p.product)
	if p.role == negotiation.Buyer {
		system = buyerSystemPrompt(p.product, p.budget)
	}

	return LLMRequest{
		Model:        p.model,
		Messages:     chatMessages(p.role, transcript),
		Temperature:  p.temperature,
		MaxTokens:    p.maxTokens,
		SystemPrompt: system,
	}
}

// extractOffer pulls a price out of the utterance. Seller messages go
// through the summary-model extractor when one is configured; buyer
// counter-offers use plain pattern matching.
func (p *Proxy) extractOffer(ctx context.Context, text string) *float64 {
	if p.role == negotiation.Seller && p.extractor != nil {
		return p.extractor.ExtractOffer(ctx, text)
	}
	return ParseOffer(text)
}
