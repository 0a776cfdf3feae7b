package llm

import (
	"context"
	"time"

	"github.com/sqlball/sqlball/internal/config"
	"github.com/sqlball/sqlball/internal/errors"
)

// Supported LLM providers
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"
)

// Generator produces raw model output for a prompt. Implementations must
// honor context cancellation and return an error rather than blocking.
type Generator interface {
	Generate(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// Config holds provider connection settings
type Config struct {
	Provider   string
	Model      string
	APIKey     string
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
}

// ConfigFromApp translates application configuration into client settings
func ConfigFromApp(cfg config.LLMConfig) Config {
	timeout, err := time.ParseDuration(cfg.Timeout)
	if err != nil || timeout <= 0 {
		timeout = 60 * time.Second
	}

	return Config{
		Provider:   cfg.Provider,
		Model:      cfg.Model,
		APIKey:     cfg.APIKey,
		BaseURL:    cfg.BaseURL,
		Timeout:    timeout,
		MaxRetries: 2,
		RetryDelay: time.Second,
	}
}

// validate checks provider requirements and fills in default endpoints
func (c *Config) validate() error {
	if c.Model == "" {
		return errors.New(errors.ErrTypeConfig, "model is required")
	}

	switch c.Provider {
	case ProviderOpenAI:
		if c.APIKey == "" {
			return errors.New(errors.ErrTypeConfig, "API key is required for OpenAI provider")
		}

		if c.BaseURL == "" {
			c.BaseURL = "https://api.openai.com/v1"
		}
	case ProviderAnthropic:
		if c.APIKey == "" {
			return errors.New(errors.ErrTypeConfig, "API key is required for Anthropic provider")
		}

		if c.BaseURL == "" {
			c.BaseURL = "https://api.anthropic.com/v1"
		}
	case ProviderOllama:
		if c.BaseURL == "" {
			c.BaseURL = "http://localhost:11434"
		}
	default:
		return errors.Newf(errors.ErrTypeConfig, "unsupported provider: %s", c.Provider)
	}

	return nil
}
