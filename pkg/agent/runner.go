package agent

import (
	"context"
	"fmt"

	"github.com/negolab/negosim/pkg/negotiation"
	"github.com/rs/zerolog"
)

// Runner builds and runs negotiation sessions for experiment work items. It
// resolves providers per model id, wires the proxies and the evaluator, and
// guarantees that every run yields an outcome record.
type Runner struct {
	factory      *ProviderFactory
	summaryModel string
	proxyCfg     ProxyConfig
	useKeywords  bool
	logger       zerolog.Logger
}

// RunnerConfig holds runner construction parameters.
type RunnerConfig struct {
	Factory      *ProviderFactory
	SummaryModel string
	Proxy        ProxyConfig

	// UseKeywordEvaluator replaces the summary-model acceptance detector
	// with the rule-based one.
	UseKeywordEvaluator bool

	Logger zerolog.Logger
}

// NewRunner creates a session runner.
func NewRunner(cfg RunnerConfig) (*Runner, error) {
	if cfg.Factory == nil {
		return nil, fmt.Errorf("provider factory is required")
	}
	if cfg.SummaryModel == "" && !cfg.UseKeywordEvaluator {
		return nil, fmt.Errorf("summary model is required for the LLM evaluator")
	}

	return &Runner{
		factory:      cfg.Factory,
		summaryModel: cfg.SummaryModel,
		proxyCfg:     cfg.Proxy,
		useKeywords:  cfg.UseKeywordEvaluator,
		logger:       cfg.Logger,
	}, nil
}

// ValidateModels fails fast on model ids no provider can serve, before any
// session is scheduled.
func (r *Runner) ValidateModels(models ...string) error {
	for _, model := range models {
		if model == "" {
			continue
		}
		if _, err := r.factory.ForModel(model); err != nil {
			return err
		}
	}
	return nil
}

// Run executes one session to its terminal outcome. Construction failures
// become error outcomes so the scheduler's accounting stays exact.
func (r *Runner) Run(ctx context.Context, cfg negotiation.Config) *negotiation.Outcome {
	session, err := r.buildSession(cfg)
	if err != nil {
		r.logger.Error().Err(err).
			Str("buyer_model", cfg.BuyerModel).
			Str("seller_model", cfg.SellerModel).
			Msg("Failed to build session")
		return &negotiation.Outcome{
			Result:        negotiation.ResultError,
			FailureReason: err.Error(),
		}
	}

	return session.Run(ctx)
}

func (r *Runner) buildSession(cfg negotiation.Config) (*negotiation.Session, error) {
	buyerProvider, err := r.factory.ForModel(cfg.BuyerModel)
	if err != nil {
		return nil, fmt.Errorf("buyer model: %w", err)
	}
	sellerProvider, err := r.factory.ForModel(cfg.SellerModel)
	if err != nil {
		return nil, fmt.Errorf("seller model: %w", err)
	}

	var (
		extractor *Extractor
		evaluator negotiation.Evaluator = KeywordEvaluator{}
	)
	if r.summaryModel != "" {
		summaryProvider, err := r.factory.ForModel(r.summaryModel)
		if err != nil {
			return nil, fmt.Errorf("summary model: %w", err)
		}
		extractor = NewExtractor(summaryProvider, r.summaryModel, r.proxyCfg.Retry, r.logger)
		if !r.useKeywords {
			evaluator = NewLLMEvaluator(summaryProvider, r.summaryModel, r.proxyCfg.Retry, r.logger)
		}
	}

	buyer := NewBuyerProxy(buyerProvider, cfg.BuyerModel, cfg.Product, cfg.Budget, r.proxyCfg, r.logger)
	seller := NewSellerProxy(sellerProvider, cfg.SellerModel, cfg.Product, extractor, r.proxyCfg, r.logger)

	return negotiation.New(cfg, buyer, seller, evaluator, r.logger)
}
