package llm

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

const mockDimensions = 256

// MockClient is an offline Client for local runs and tests.
// Embeddings are hashed bags of words, so texts sharing words score as similar.
type MockClient struct {
	// CompleteFunc overrides the default echo completion when set.
	CompleteFunc func(messages []Message, temperature float64) (string, error)
}

var _ Client = (*MockClient)(nil)

// NewMockClient creates a new mock client.
func NewMockClient() *MockClient {
	return &MockClient{}
}

// Complete returns CompleteFunc's answer, or echoes the last user message.
func (m *MockClient) Complete(ctx context.Context, messages []Message, temperature float64) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if m.CompleteFunc != nil {
		return m.CompleteFunc(messages, temperature)
	}

	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleUser {
			return "[mock] " + lastLine(messages[i].Content), nil
		}
	}
	return "", nil
}

// Embed creates a deterministic embedding from the words of text.
func (m *MockClient) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(words) == 0 {
		return nil, ErrEmptyEmbedding
	}

	embedding := make([]float32, mockDimensions)
	for _, w := range words {
		h := fnv.New32a()
		h.Write([]byte(w))
		embedding[h.Sum32()%mockDimensions]++
	}

	return normalize(embedding), nil
}

// normalize converts embedding to unit vector.
func normalize(vec []float32) []float32 {
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}

	n := float32(math.Sqrt(norm))
	for i := range vec {
		vec[i] /= n
	}
	return vec
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndex(s, "\n"); i >= 0 {
		return strings.TrimSpace(s[i+1:])
	}
	return s
}
