package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/easeaico/convo-memory/internal/lease"
	"github.com/easeaico/convo-memory/internal/llm"
	"github.com/easeaico/convo-memory/internal/memory"
)

// fakeLLM routes completions by system prompt: extraction, the two summary
// kinds, and chat. Embeddings come from the bag-of-words mock.
type fakeLLM struct {
	*llm.MockClient

	mu          sync.Mutex
	chatPrompts []string
	chatReply   string
	chatErr     error
	summary     string
	sessionRuns int
	profileRuns int
}

func newFakeLLM() *fakeLLM {
	return &fakeLLM{MockClient: llm.NewMockClient(), chatReply: "Sure.", summary: "summary text"}
}

func (f *fakeLLM) Complete(ctx context.Context, messages []llm.Message, temperature float64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	system, user := messages[0].Content, messages[len(messages)-1].Content
	switch {
	case strings.Contains(system, "fact extraction"):
		if strings.Contains(user, "favorite color is blue") {
			return `[{"fact": "favorite color is blue", "importance": 0.9}]`, nil
		}
		return "[]", nil
	case strings.Contains(system, "conversation summarizer"):
		f.sessionRuns++
		return f.summary, nil
	case strings.Contains(system, "profile generator"):
		f.profileRuns++
		return "profile: " + f.summary, nil
	default:
		f.chatPrompts = append(f.chatPrompts, user)
		return f.chatReply, f.chatErr
	}
}

func (f *fakeLLM) lastChatPrompt() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.chatPrompts) == 0 {
		return ""
	}
	return f.chatPrompts[len(f.chatPrompts)-1]
}

// failingStore fails selected store operations.
type failingStore struct {
	memory.Store
	appendErr      error
	getSummaryErr  error
	listEpisodeErr error
	dailyErr       error
	sessionCntErr  error
}

// CountUserMessages fails session-scoped counts only; owner-wide counts pass through.
func (f *failingStore) CountUserMessages(ctx context.Context, owner, sessionID string) (int, error) {
	if f.sessionCntErr != nil && sessionID != "" {
		return 0, f.sessionCntErr
	}
	return f.Store.CountUserMessages(ctx, owner, sessionID)
}

func (f *failingStore) AppendMessage(ctx context.Context, msg *memory.Message) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	return f.Store.AppendMessage(ctx, msg)
}

func (f *failingStore) GetSummary(ctx context.Context, owner string, scope memory.Scope, sessionID string) (*memory.Summary, error) {
	if f.getSummaryErr != nil {
		return nil, f.getSummaryErr
	}
	return f.Store.GetSummary(ctx, owner, scope, sessionID)
}

func (f *failingStore) ListEpisodes(ctx context.Context, owner, sessionID string) ([]memory.Episode, error) {
	if f.listEpisodeErr != nil {
		return nil, f.listEpisodeErr
	}
	return f.Store.ListEpisodes(ctx, owner, sessionID)
}

func (f *failingStore) DailyMessageCounts(ctx context.Context, owner string, days int) ([]memory.DailyCount, error) {
	if f.dailyErr != nil {
		return nil, f.dailyErr
	}
	return f.Store.DailyMessageCounts(ctx, owner, days)
}

var errBoom = errors.New("boom")

func newTestStore(t *testing.T) *memory.SQLiteStore {
	t.Helper()
	ctx := context.Background()

	store, err := memory.NewSQLiteStore(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.InitSchema(ctx))
	return store
}

func newTestOrchestrator(t *testing.T, store memory.Store, client llm.Client, opts Options) *Orchestrator {
	t.Helper()
	return New(store, client, lease.NewLocalLocker(), opts)
}

func runTurns(t *testing.T, o *Orchestrator, owner, sessionID string, messages ...string) []*TurnResult {
	t.Helper()
	results := make([]*TurnResult, 0, len(messages))
	for _, m := range messages {
		res, err := o.HandleTurn(context.Background(), owner, sessionID, m)
		require.NoError(t, err)
		results = append(results, res)
	}
	return results
}
