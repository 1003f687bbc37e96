package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
)

// OllamaClient talks to a local Ollama server.
type OllamaClient struct {
	api        *api.Client
	chatModel  string
	embedModel string
}

var _ Client = (*OllamaClient)(nil)

// NewOllamaClient creates a client for the server at baseURL.
func NewOllamaClient(baseURL, chatModel, embedModel string, timeout time.Duration) (*OllamaClient, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse ollama base url: %w", err)
	}

	return &OllamaClient{
		api:        api.NewClient(u, &http.Client{Timeout: timeout}),
		chatModel:  chatModel,
		embedModel: embedModel,
	}, nil
}

// Complete sends a non-streaming chat request.
func (c *OllamaClient) Complete(ctx context.Context, messages []Message, temperature float64) (string, error) {
	msgs := make([]api.Message, 0, len(messages))
	for _, m := range messages {
		msgs = append(msgs, api.Message{Role: m.Role, Content: m.Content})
	}

	stream := false
	req := &api.ChatRequest{
		Model:    c.chatModel,
		Messages: msgs,
		Stream:   &stream,
		Options:  map[string]any{"temperature": temperature},
	}

	var sb strings.Builder
	err := c.api.Chat(ctx, req, func(resp api.ChatResponse) error {
		sb.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to complete chat: %w", err)
	}

	return sb.String(), nil
}

// Embed generates an embedding vector for the given text.
func (c *OllamaClient) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := c.api.Embed(ctx, &api.EmbedRequest{Model: c.embedModel, Input: text})
	if err != nil {
		return nil, fmt.Errorf("failed to embed content: %w", err)
	}

	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0]) == 0 {
		return nil, ErrEmptyEmbedding
	}

	return resp.Embeddings[0], nil
}
