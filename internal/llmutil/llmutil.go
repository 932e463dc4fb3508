// Package llmutil constructs the chat client for the configured provider.
package llmutil

import (
	"fmt"

	"github.com/dimanchick22/alicebot/internal/config"
	"github.com/dimanchick22/alicebot/llm"
	"github.com/dimanchick22/alicebot/providers/anthropic"
	"github.com/dimanchick22/alicebot/providers/ollama"
	"github.com/dimanchick22/alicebot/providers/openai"
)

// Build returns the chat client for the configured provider, plus the raw
// ollama client when that provider is active (it backs model listing and
// switching). Provider none yields a nil client and the bot answers from
// templates only.
func Build(cfg config.LLMSettings) (llm.Client, *ollama.Client, error) {
	switch cfg.Provider {
	case config.ProviderNone:
		return nil, nil, nil
	case config.ProviderOllama:
		oc := ollama.New(cfg.Endpoint, cfg.RequestTimeout)
		return oc, oc, nil
	case config.ProviderOpenAI:
		if cfg.APIKey == "" {
			return nil, nil, fmt.Errorf("llm.api_key is required for provider %s", cfg.Provider)
		}
		return openai.New(cfg.Endpoint, cfg.APIKey, cfg.RequestTimeout), nil, nil
	case config.ProviderAnthropic:
		if cfg.APIKey == "" {
			return nil, nil, fmt.Errorf("llm.api_key is required for provider %s", cfg.Provider)
		}
		return anthropic.New(cfg.Endpoint, cfg.APIKey, cfg.RequestTimeout), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown llm.provider: %s", cfg.Provider)
	}
}
