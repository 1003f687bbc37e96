package tools

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/easeaico/convo-memory/internal/llm"
	"github.com/easeaico/convo-memory/internal/memory"
)

func newTestHandler(t *testing.T, extraction string) (*Handler, memory.Store) {
	t.Helper()
	ctx := context.Background()

	store, err := memory.NewSQLiteStore(ctx, ":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	if err := store.InitSchema(ctx); err != nil {
		t.Fatalf("failed to init schema: %v", err)
	}

	client := &llm.MockClient{CompleteFunc: func([]llm.Message, float64) (string, error) {
		return extraction, nil
	}}
	return NewHandler(memory.NewEpisodicIndex(store, client), store, 3), store
}

func decode(t *testing.T, raw string) ToolResult {
	t.Helper()
	var result ToolResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		t.Fatalf("invalid tool result %q: %v", raw, err)
	}
	return result
}

func TestBuildTools(t *testing.T) {
	h, _ := newTestHandler(t, "[]")

	tools, err := BuildTools(h)
	if err != nil {
		t.Fatalf("BuildTools() error = %v", err)
	}

	want := []string{recallFactsTool, rememberTool, userProfileTool}
	if len(tools) != len(want) {
		t.Fatalf("expected %d tools, got %d", len(want), len(tools))
	}
	for i, tool := range tools {
		if tool.Name() != want[i] {
			t.Errorf("tool %d: expected %q, got %q", i, want[i], tool.Name())
		}
	}
}

func TestHandleToolCall_RememberThenRecall(t *testing.T) {
	ctx := context.Background()
	h, _ := newTestHandler(t, `[{"fact": "favorite color is blue", "importance": 0.9}]`)

	raw, err := h.HandleToolCall(ctx, "alice", "s1", rememberTool, map[string]any{"text": "My favorite color is blue"})
	if err != nil {
		t.Fatalf("HandleToolCall() error = %v", err)
	}
	if res := decode(t, raw); !res.Success || !strings.Contains(raw, "favorite color is blue") {
		t.Fatalf("unexpected remember result %s", raw)
	}

	// recall searches every session of the owner
	raw, err = h.HandleToolCall(ctx, "alice", "other-session", recallFactsTool, map[string]any{"query": "favorite color"})
	if err != nil {
		t.Fatalf("HandleToolCall() error = %v", err)
	}
	if res := decode(t, raw); !res.Success || !strings.Contains(raw, `"fact":"favorite color is blue"`) {
		t.Errorf("unexpected recall result %s", raw)
	}

	raw, _ = h.HandleToolCall(ctx, "bob", "s1", recallFactsTool, map[string]any{"query": "favorite color"})
	if !strings.Contains(raw, "No relevant facts found.") {
		t.Errorf("expected no facts for another owner, got %s", raw)
	}
}

func TestHandleToolCall_UserProfile(t *testing.T) {
	ctx := context.Background()
	h, store := newTestHandler(t, "[]")

	raw, _ := h.HandleToolCall(ctx, "alice", "s1", userProfileTool, nil)
	if !strings.Contains(raw, "No profile yet.") {
		t.Errorf("expected empty profile, got %s", raw)
	}

	if err := store.UpsertSummary(ctx, &memory.Summary{Owner: "alice", Scope: memory.ScopeLifetime, Text: "Enjoys hiking."}); err != nil {
		t.Fatalf("failed to seed profile: %v", err)
	}

	raw, _ = h.HandleToolCall(ctx, "alice", "s1", userProfileTool, nil)
	if res := decode(t, raw); !res.Success || res.Data != "Enjoys hiking." {
		t.Errorf("unexpected profile result %s", raw)
	}
}

func TestHandleToolCall_Validation(t *testing.T) {
	ctx := context.Background()
	h, _ := newTestHandler(t, "[]")

	tests := []struct {
		name    string
		tool    string
		args    map[string]any
		wantErr string
	}{
		{name: "recall without query", tool: recallFactsTool, args: map[string]any{}, wantErr: "query is required"},
		{name: "remember blank text", tool: rememberTool, args: map[string]any{"text": "  "}, wantErr: "text is required"},
		{name: "wrong argument type", tool: recallFactsTool, args: map[string]any{"query": 42}, wantErr: "query is required"},
		{name: "unknown tool", tool: "read_file_content", args: nil, wantErr: "unknown tool: read_file_content"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := h.HandleToolCall(ctx, "alice", "s1", tt.tool, tt.args)
			if err != nil {
				t.Fatalf("HandleToolCall() error = %v", err)
			}
			res := decode(t, raw)
			if res.Success || res.Error != tt.wantErr {
				t.Errorf("expected error %q, got %+v", tt.wantErr, res)
			}
		})
	}
}
