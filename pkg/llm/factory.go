package llm

import (
	"fmt"

	"go.uber.org/zap"
)

// Provider names accepted by NewScoringClient.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// NewScoringClient creates the LLM client for the configured provider.
// "openai" covers any OpenAI-compatible endpoint (including local servers);
// "anthropic" talks to the Anthropic Messages API.
func NewScoringClient(provider string, cfg *Config, logger *zap.Logger) (LLMClient, error) {
	switch provider {
	case ProviderOpenAI, "":
		return NewClient(cfg, logger)
	case ProviderAnthropic:
		return NewAnthropicClient(cfg, logger)
	}
	return nil, fmt.Errorf("unknown llm provider %q", provider)
}
