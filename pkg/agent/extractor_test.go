package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOffer(t *testing.T) {
	t.Run("should extract the first dollar amount", func(t *testing.T) {
		cases := map[string]float64{
			"I can do $90.":                             90,
			"The best I can offer is $22,900 today":     22900,
			"$1,299.00 and it ships tomorrow":           1299,
			"How about $85.50? That is my final offer.": 85.5,
		}
		for in, want := range cases {
			got := ParseOffer(in)
			require.NotNil(t, got, "input %q", in)
			assert.InDelta(t, want, *got, 1e-9, "input %q", in)
		}
	})

	t.Run("should return nil when no price is present", func(t *testing.T) {
		for _, in := range []string{
			"Let me think about it.",
			"What features does it have?",
			"100 dollars sounds fair", // no $ marker
			"",
		} {
			assert.Nil(t, ParseOffer(in), "input %q", in)
		}
	})
}

// stubProvider returns canned responses in order, then repeats the last one.
type stubProvider struct {
	responses []string
	err       error
	calls     int
	requests  []LLMRequest
}

func (s *stubProvider) Call(ctx context.Context, request LLMRequest) (*LLMResponse, error) {
	s.calls++
	s.requests = append(s.requests, request)
	if s.err != nil {
		return nil, s.err
	}
	idx := s.calls - 1
	if idx >= len(s.responses) {
		idx = len(s.responses) - 1
	}
	return &LLMResponse{Content: s.responses[idx]}, nil
}

func (s *stubProvider) Provider() string { return "stub" }

func TestExtractOffer(t *testing.T) {
	nop := zerolog.Nop()
	fastRetry := RetryPolicy{MaxAttempts: 1, InitialBackoff: 1, CallTimeout: 1e9}

	t.Run("should return the model's extracted price", func(t *testing.T) {
		provider := &stubProvider{responses: []string{"$22900"}}
		extractor := NewExtractor(provider, "gpt-4o-mini", fastRetry, nop)

		offer := extractor.ExtractOffer(context.Background(), "the best I can do is $22900 with a $3000 warranty")
		require.NotNil(t, offer)
		assert.Equal(t, 22900.0, *offer)
	})

	t.Run("should return nil on a None answer", func(t *testing.T) {
		provider := &stubProvider{responses: []string{"None"}}
		extractor := NewExtractor(provider, "gpt-4o-mini", fastRetry, nop)

		offer := extractor.ExtractOffer(context.Background(), "tell me more about the warranty")
		assert.Nil(t, offer)
	})

	t.Run("should fall back to pattern matching when the call fails", func(t *testing.T) {
		provider := &stubProvider{err: errors.New("invalid api key")}
		extractor := NewExtractor(provider, "gpt-4o-mini", fastRetry, nop)

		offer := extractor.ExtractOffer(context.Background(), "I can offer $85 for it")
		require.NotNil(t, offer)
		assert.Equal(t, 85.0, *offer)
	})
}
