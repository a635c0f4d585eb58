package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateModel(t *testing.T) {
	v := NewValidator()

	t.Run("should accept known model families", func(t *testing.T) {
		for _, model := range []string{"claude-sonnet-4-20250514", "gpt-4o-mini", "o1", "o3-mini", "o4-mini"} {
			assert.NoError(t, v.ValidateModel(model), "model %s", model)
		}
	})

	t.Run("should reject unknown model ids", func(t *testing.T) {
		for _, model := range []string{"", "llama-3-70b", "oracle-1", "olmo-2-13b"} {
			assert.Error(t, v.ValidateModel(model), "model %q", model)
		}
	})
}

func TestValidateAPIKey(t *testing.T) {
	v := NewValidator()

	assert.NoError(t, v.ValidateAPIKey("sk-ant-abc123", "anthropic"))
	assert.NoError(t, v.ValidateAPIKey("sk-abc123", "openai"))
	assert.Error(t, v.ValidateAPIKey("", "openai"))
	assert.Error(t, v.ValidateAPIKey("abc123", "anthropic"))
	assert.Error(t, v.ValidateAPIKey("sk-abc123", "anthropic"))
}

func TestValidateConfig(t *testing.T) {
	v := NewValidator()

	t.Run("should accept the default config", func(t *testing.T) {
		errs := v.ValidateConfig(DefaultConfig())
		assert.Empty(t, errs)
	})

	t.Run("should require a summary model for the llm evaluator", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Models.Summary = ""
		errs := v.ValidateConfig(cfg)
		assert.NotEmpty(t, errs)
	})

	t.Run("should allow a missing summary model with the rules evaluator", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Models.Summary = ""
		cfg.Experiment.Evaluator = "rules"
		errs := v.ValidateConfig(cfg)
		assert.Empty(t, errs)
	})

	t.Run("should collect every violation", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Experiment.MaxTurns = 0
		cfg.Scheduler.Concurrency = -1
		cfg.Logging.Level = "loud"
		errs := v.ValidateConfig(cfg)
		assert.Len(t, errs, 3)
	})

	t.Run("should reject a malformed run-until timestamp", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Scheduler.RunUntil = "tomorrow at noon"
		errs := v.ValidateConfig(cfg)
		assert.NotEmpty(t, errs)
	})

	t.Run("should reject an unknown opening role", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Experiment.OpeningRole = "moderator"
		errs := v.ValidateConfig(cfg)
		assert.NotEmpty(t, errs)
	})
}
