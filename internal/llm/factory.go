package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// Supported providers.
const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
	ProviderMock   = "mock"
)

// Options selects and configures a backend.
type Options struct {
	Provider   string
	BaseURL    string
	APIKey     string
	ChatModel  string
	EmbedModel string
	Timeout    time.Duration
}

// New creates the Client for opts.Provider, wrapped so that every call is bounded by opts.Timeout.
func New(ctx context.Context, opts Options) (Client, error) {
	var (
		client Client
		err    error
	)

	switch opts.Provider {
	case ProviderOllama:
		client, err = NewOllamaClient(opts.BaseURL, opts.ChatModel, opts.EmbedModel, opts.Timeout)
	case ProviderOpenAI:
		client = NewOpenAIClient(opts.BaseURL, opts.APIKey, opts.ChatModel, opts.EmbedModel, opts.Timeout)
	case ProviderGemini:
		client, err = NewGeminiClient(ctx, opts.APIKey, opts.ChatModel, opts.EmbedModel, opts.Timeout)
	case ProviderMock:
		logrus.Warn("LLM_PROVIDER=mock, using offline mock inference client")
		client = NewMockClient()
	default:
		return nil, fmt.Errorf("unknown llm provider: %q", opts.Provider)
	}
	if err != nil {
		return nil, err
	}

	return WithTimeout(client, opts.Timeout), nil
}
