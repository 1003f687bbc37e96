// Package llm provides the inference-service contract used by the memory tiers
// and its implementations for Ollama, OpenAI-compatible servers and Gemini.
package llm

import (
	"context"
	"errors"
)

// Chat roles understood by every backend.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ErrEmptyEmbedding is returned when a backend answers without a vector.
var ErrEmptyEmbedding = errors.New("llm: empty embedding")

// Message is one entry of a chat completion request.
type Message struct {
	Role    string
	Content string
}

// Embedder provides text embedding capability.
type Embedder interface {
	// Embed generates an embedding vector for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Completer produces text completions.
type Completer interface {
	// Complete returns the assistant text for the ordered messages.
	// An empty string with a nil error is a valid, degenerate answer.
	Complete(ctx context.Context, messages []Message, temperature float64) (string, error)
}

// Client is the full inference service: completion plus embeddings.
type Client interface {
	Completer
	Embedder
}
