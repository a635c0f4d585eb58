package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/negolab/negosim/pkg/agent"
)

// Validator validates configuration values
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateAPIKey validates an API key format
func (v *Validator) ValidateAPIKey(key string, provider string) error {
	if key == "" {
		return fmt.Errorf("%s API key cannot be empty", provider)
	}

	switch provider {
	case "anthropic":
		if !strings.HasPrefix(key, "sk-ant-") {
			return fmt.Errorf("invalid Anthropic API key format (should start with sk-ant-)")
		}
	case "openai":
		if !strings.HasPrefix(key, "sk-") {
			return fmt.Errorf("invalid OpenAI API key format (should start with sk-)")
		}
	}

	return nil
}

// ValidateModel validates a model identifier. Unknown ids fail here rather
// than mid-run.
func (v *Validator) ValidateModel(model string) error {
	if model == "" {
		return fmt.Errorf("model name cannot be empty")
	}
	if !strings.HasPrefix(model, "claude") && !agent.IsOpenAIModel(model) {
		return fmt.Errorf("unknown model id %s (expected a claude-*, gpt-* or o1/o3/o4 model)", model)
	}
	return nil
}

// ValidateOpeningRole validates the opening role setting
func (v *Validator) ValidateOpeningRole(role string) error {
	if role == "" {
		return nil // Use default
	}
	if role != "buyer" && role != "seller" {
		return fmt.Errorf("invalid opening role: %s (must be buyer or seller)", role)
	}
	return nil
}

// ValidateEvaluator validates the acceptance-detector setting
func (v *Validator) ValidateEvaluator(kind string) error {
	if kind == "" {
		return nil // Use default
	}
	if kind != "llm" && kind != "rules" {
		return fmt.Errorf("invalid evaluator: %s (must be llm or rules)", kind)
	}
	return nil
}

// ValidateLogLevel validates log level
func (v *Validator) ValidateLogLevel(level string) error {
	validLevels := []string{"debug", "info", "warn", "error"}
	for _, valid := range validLevels {
		if level == valid {
			return nil
		}
	}
	return fmt.Errorf("invalid log level: %s (must be one of: %s)", level, strings.Join(validLevels, ", "))
}

// ValidateConfig performs comprehensive validation
func (v *Validator) ValidateConfig(cfg *Config) []error {
	var errors []error

	if cfg.ProductsFile == "" {
		errors = append(errors, fmt.Errorf("products file is required"))
	}
	if cfg.OutputDir == "" {
		errors = append(errors, fmt.Errorf("output directory is required"))
	}

	if len(cfg.Models.Buyers) == 0 {
		errors = append(errors, fmt.Errorf("at least one buyer model is required"))
	}
	if len(cfg.Models.Sellers) == 0 {
		errors = append(errors, fmt.Errorf("at least one seller model is required"))
	}
	for _, model := range append(append([]string{}, cfg.Models.Buyers...), cfg.Models.Sellers...) {
		if err := v.ValidateModel(model); err != nil {
			errors = append(errors, err)
		}
	}
	if cfg.Experiment.Evaluator != "rules" {
		if err := v.ValidateModel(cfg.Models.Summary); err != nil {
			errors = append(errors, fmt.Errorf("summary model: %w", err))
		}
	}

	if cfg.AI.AnthropicAPIKey != "" {
		if err := v.ValidateAPIKey(cfg.AI.AnthropicAPIKey, "anthropic"); err != nil {
			errors = append(errors, err)
		}
	}
	if cfg.AI.OpenAIAPIKey != "" {
		if err := v.ValidateAPIKey(cfg.AI.OpenAIAPIKey, "openai"); err != nil {
			errors = append(errors, err)
		}
	}

	if cfg.Experiment.MaxTurns <= 0 {
		errors = append(errors, fmt.Errorf("experiment.max_turns must be positive"))
	}
	if cfg.Experiment.Repetitions <= 0 {
		errors = append(errors, fmt.Errorf("experiment.repetitions must be positive"))
	}
	if err := v.ValidateOpeningRole(cfg.Experiment.OpeningRole); err != nil {
		errors = append(errors, err)
	}
	if err := v.ValidateEvaluator(cfg.Experiment.Evaluator); err != nil {
		errors = append(errors, err)
	}
	if cfg.Experiment.Temperature < 0 || cfg.Experiment.Temperature > 1 {
		errors = append(errors, fmt.Errorf("experiment.temperature must be between 0 and 1"))
	}

	if cfg.Scheduler.Concurrency <= 0 {
		errors = append(errors, fmt.Errorf("scheduler.concurrency must be positive"))
	}
	if cfg.Scheduler.GraceSeconds < 0 {
		errors = append(errors, fmt.Errorf("scheduler.grace_seconds must be >= 0"))
	}
	if cfg.Scheduler.RunUntil != "" {
		if _, err := time.Parse(time.RFC3339, cfg.Scheduler.RunUntil); err != nil {
			errors = append(errors, fmt.Errorf("scheduler.run_until must be RFC3339: %w", err))
		}
	}

	if cfg.Retry.MaxAttempts < 0 {
		errors = append(errors, fmt.Errorf("retry.max_attempts must be >= 0"))
	}
	if cfg.Retry.InitialBackoffMs < 0 {
		errors = append(errors, fmt.Errorf("retry.initial_backoff_ms must be >= 0"))
	}
	if cfg.Retry.CallTimeoutSeconds < 0 {
		errors = append(errors, fmt.Errorf("retry.call_timeout_seconds must be >= 0"))
	}

	if cfg.Anomaly.Tolerance < 0 {
		errors = append(errors, fmt.Errorf("anomaly.tolerance must be >= 0"))
	}
	if cfg.Anomaly.DeadlockWindow <= 0 {
		errors = append(errors, fmt.Errorf("anomaly.deadlock_window must be positive"))
	}

	if err := v.ValidateLogLevel(cfg.Logging.Level); err != nil {
		errors = append(errors, err)
	}

	return errors
}
