package provider

import (
	"context"
	"errors"
	"time"

	"github.com/orakle-ai/orakle/config"
	openai_provider "github.com/orakle-ai/orakle/provider/openai"
)

// Client represents different LLM providers
type Client string

const (
	OpenAI    Client = "openai"
	Anthropic Client = "anthropic"
)

// Provider is the interface all LLM implementations must satisfy. The
// middleware only needs an opaque chat-completion call that returns text.
type Provider interface {
	ChatCompletion(ctx context.Context, system, user string) (string, error)
}

// ErrNotConfigured indicates no LLM credentials were supplied.
var ErrNotConfigured = errors.New("llm provider not configured")

// NewProvider creates an LLM client from configuration. Callers that can
// degrade (e.g. fusion falling back to weighted ranking) should treat
// ErrNotConfigured as "run without an LLM".
func NewProvider(cfg config.LLMConfig) (Provider, error) {
	if cfg.APIKey == "" {
		return nil, ErrNotConfigured
	}
	client := Client(cfg.Provider)
	if client == "" {
		client = OpenAI
	}
	switch client {
	case OpenAI:
		model := cfg.Model
		if model == "" {
			model = "gpt-4o-mini"
		}
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		return openai_provider.NewOpenAIClient(cfg.APIKey, model, cfg.Temperature, cfg.MaxTokens, timeout), nil
	case Anthropic:
		return nil, errors.New("anthropic client not implemented yet")
	default:
		return nil, errors.New("unsupported LLM provider")
	}
}
