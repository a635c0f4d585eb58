package agent

import (
	"context"
	"fmt"
	"strings"
)

// LLMProvider is an interface for LLM API providers
type LLMProvider interface {
	// Call makes an LLM API call
	Call(ctx context.Context, request LLMRequest) (*LLMResponse, error)

	// Provider returns the provider name
	Provider() string
}

// LLMRequest contains the request parameters for LLM call
type LLMRequest struct {
	Model        string
	Messages     []Message
	Temperature  float64
	MaxTokens    int
	SystemPrompt string
}

// LLMResponse contains the response from LLM
type LLMResponse struct {
	Content string
	Usage   *TokenUsage
}

// Message is one entry in a chat-formatted request.
type Message struct {
	Role    string `json:"role"` // system, user, assistant
	Content string `json:"content"`
}

// TokenUsage tracks token consumption
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// ProviderFactory resolves model identifiers to providers. The provider is
// inferred from the model id (claude-* models go to Anthropic, gpt-* and the
// o1/o3/o4 reasoning families to OpenAI); an unknown id is a configuration
// error reported before any session starts.
type ProviderFactory struct {
	AnthropicAPIKey string
	OpenAIAPIKey    string
}

// openAIReasoningPrefixes covers OpenAI's o-series model ids. Matching a bare
// "o" would swallow unrelated model families.
var openAIReasoningPrefixes = []string{"o1", "o3", "o4"}

// IsOpenAIModel reports whether the model id belongs to OpenAI.
func IsOpenAIModel(model string) bool {
	if strings.HasPrefix(model, "gpt") {
		return true
	}
	for _, prefix := range openAIReasoningPrefixes {
		if strings.HasPrefix(model, prefix) {
			return true
		}
	}
	return false
}

// ForModel returns a provider able to serve the given model id.
func (f *ProviderFactory) ForModel(model string) (LLMProvider, error) {
	switch {
	case strings.HasPrefix(model, "claude"):
		if f.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("model %s requires an Anthropic API key", model)
		}
		return NewAnthropicProvider(f.AnthropicAPIKey), nil
	case IsOpenAIModel(model):
		if f.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("model %s requires an OpenAI API key", model)
		}
		return NewOpenAIProvider(f.OpenAIAPIKey), nil
	default:
		return nil, fmt.Errorf("unknown model id: %s", model)
	}
}
