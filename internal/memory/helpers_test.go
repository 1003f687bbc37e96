package memory

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/easeaico/convo-memory/internal/llm"
)

// newTestStore returns an initialized in-memory SQLite store closed at test end.
func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	ctx := context.Background()

	store, err := NewSQLiteStore(ctx, ":memory:")
	if err != nil {
		t.Fatalf("failed to create SQLite store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	if err := store.InitSchema(ctx); err != nil {
		t.Fatalf("failed to initialize schema: %v", err)
	}
	return store
}

// stepClock makes nowFunc return strictly increasing times for the test.
func stepClock(t *testing.T) {
	t.Helper()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	n := 0
	prev := nowFunc
	nowFunc = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		n++
		return base.Add(time.Duration(n) * time.Second)
	}
	t.Cleanup(func() { nowFunc = prev })
}

// stubClient is a scripted llm.Client. Embeddings come from the bag-of-words mock.
type stubClient struct {
	mock        *llm.MockClient
	completion  string
	completeErr error
	failEmbed   map[string]bool

	mu      sync.Mutex
	prompts [][]llm.Message
}

func newStubClient(completion string) *stubClient {
	return &stubClient{mock: llm.NewMockClient(), completion: completion, failEmbed: map[string]bool{}}
}

func (s *stubClient) Complete(ctx context.Context, messages []llm.Message, temperature float64) (string, error) {
	s.mu.Lock()
	s.prompts = append(s.prompts, messages)
	s.mu.Unlock()
	if s.completeErr != nil {
		return "", s.completeErr
	}
	return s.completion, nil
}

func (s *stubClient) Embed(ctx context.Context, text string) ([]float32, error) {
	if s.failEmbed[text] {
		return nil, errors.New("embedding failed")
	}
	return s.mock.Embed(ctx, text)
}

func (s *stubClient) lastPrompt() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.prompts) == 0 {
		return ""
	}
	msgs := s.prompts[len(s.prompts)-1]
	return msgs[len(msgs)-1].Content
}

// faultyStore wraps a Store and fails selected operations.
type faultyStore struct {
	Store
	appendEpisodeErr error
	listEpisodesErr  error
	recentErr        error
}

func (f *faultyStore) AppendEpisode(ctx context.Context, ep *Episode) error {
	if f.appendEpisodeErr != nil {
		return f.appendEpisodeErr
	}
	return f.Store.AppendEpisode(ctx, ep)
}

func (f *faultyStore) ListEpisodes(ctx context.Context, owner, sessionID string) ([]Episode, error) {
	if f.listEpisodesErr != nil {
		return nil, f.listEpisodesErr
	}
	return f.Store.ListEpisodes(ctx, owner, sessionID)
}

func (f *faultyStore) RecentMessages(ctx context.Context, owner, sessionID string, limit int) ([]Message, error) {
	if f.recentErr != nil {
		return nil, f.recentErr
	}
	return f.Store.RecentMessages(ctx, owner, sessionID, limit)
}

func appendMessages(t *testing.T, store Store, owner, sessionID string, contents ...string) {
	t.Helper()
	for i, c := range contents {
		role := RoleUser
		if i%2 == 1 {
			role = RoleAssistant
		}
		if err := store.AppendMessage(context.Background(), &Message{Owner: owner, SessionID: sessionID, Role: role, Content: c}); err != nil {
			t.Fatalf("failed to append message: %v", err)
		}
	}
}

func contents(messages []Message) string {
	parts := make([]string, len(messages))
	for i, m := range messages {
		parts[i] = m.Content
	}
	return strings.Join(parts, ",")
}
