// Package config defines the experiment run configuration and its loading
// and validation. Configuration errors abort the run before any session
// starts.
package config

import (
	"encoding/json"
)

// Config represents the main negosim configuration
type Config struct {
	// Products dataset file
	ProductsFile string `json:"products_file" mapstructure:"products_file"`

	// Models
	Models ModelsConfig `json:"models" mapstructure:"models"`

	// Experiment grid and session knobs
	Experiment ExperimentConfig `json:"experiment" mapstructure:"experiment"`

	// Scheduler caps
	Scheduler SchedulerConfig `json:"scheduler" mapstructure:"scheduler"`

	// Per-call retry budget for agent calls
	Retry RetryConfig `json:"retry" mapstructure:"retry"`

	// Anomaly classifier tuning
	Anomaly AnomalyConfig `json:"anomaly" mapstructure:"anomaly"`

	// AI provider credentials
	AI AIConfig `json:"ai" mapstructure:"ai"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Output directory for persisted results
	OutputDir string `json:"output_dir" mapstructure:"output_dir"`
}

// ModelsConfig names the models driving each side of the negotiation. The
// Cartesian product of Sellers × Buyers is part of the experiment grid.
type ModelsConfig struct {
	Buyers  []string `json:"buyers" mapstructure:"buyers"`
	Sellers []string `json:"sellers" mapstructure:"sellers"`
	Summary string   `json:"summary" mapstructure:"summary"`
}

// ExperimentConfig holds the per-session and grid parameters.
type ExperimentConfig struct {
	MaxTurns    int    `json:"max_turns" mapstructure:"max_turns"`
	Repetitions int    `json:"repetitions" mapstructure:"repetitions"`
	OpeningRole string `json:"opening_role" mapstructure:"opening_role"` // buyer, seller
	Evaluator   string `json:"evaluator" mapstructure:"evaluator"`       // llm, rules
	Append      bool   `json:"append" mapstructure:"append"`
	Temperature float64 `json:"temperature" mapstructure:"temperature"`
	MaxTokens   int     `json:"max_tokens" mapstructure:"max_tokens"`
}

// SchedulerConfig bounds the run.
type SchedulerConfig struct {
	Concurrency int `json:"concurrency" mapstructure:"concurrency"`

	// RunUntil, when set (RFC3339), is the wall-clock cutoff after which no
	// new session starts.
	RunUntil     string `json:"run_until" mapstructure:"run_until"`
	GraceSeconds int    `json:"grace_seconds" mapstructure:"grace_seconds"`
}

// RetryConfig bounds transient-error retries around one agent call.
type RetryConfig struct {
	MaxAttempts        int `json:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs   int `json:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	CallTimeoutSeconds int `json:"call_timeout_seconds" mapstructure:"call_timeout_seconds"`
}

// AnomalyConfig tunes the offline classifier.
type AnomalyConfig struct {
	Tolerance      float64 `json:"tolerance" mapstructure:"tolerance"`
	DeadlockWindow int     `json:"deadlock_window" mapstructure:"deadlock_window"`
}

// AIConfig holds AI provider configuration
type AIConfig struct {
	AnthropicAPIKey string `json:"anthropic_api_key" mapstructure:"anthropic_api_key"`
	OpenAIAPIKey    string `json:"openai_api_key" mapstructure:"openai_api_key"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		ProductsFile: "dataset/products.json",
		OutputDir:    "results",
		Models: ModelsConfig{
			Buyers:  []string{"gpt-4o-mini"},
			Sellers: []string{"gpt-4o-mini"},
			Summary: "gpt-4o-mini",
		},
		Experiment: ExperimentConfig{
			MaxTurns:    20,
			Repetitions: 3,
			OpeningRole: "buyer",
			Evaluator:   "llm",
			Temperature: 0.7,
			MaxTokens:   1000,
		},
		Scheduler: SchedulerConfig{
			Concurrency:  4,
			GraceSeconds: 30,
		},
		Retry: RetryConfig{
			MaxAttempts:        3,
			InitialBackoffMs:   1000,
			CallTimeoutSeconds: 60,
		},
		Anomaly: AnomalyConfig{
			Tolerance:      0,
			DeadlockWindow: 3,
		},
		Logging: LoggingConfig{
			Level:     "info",
			Redaction: true,
		},
	}
}

// String returns a JSON representation of the config
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}
