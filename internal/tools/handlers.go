package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/easeaico/convo-memory/internal/memory"
)

// Handler provides implementations for all memory tools.
type Handler struct {
	index *memory.EpisodicIndex
	store memory.Store
	topK  int
}

// NewHandler creates a new tool handler with the given dependencies.
func NewHandler(index *memory.EpisodicIndex, store memory.Store, topK int) *Handler {
	return &Handler{index: index, store: store, topK: topK}
}

// ToolResult represents the result of a tool execution.
type ToolResult struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// HandleToolCall dispatches and executes a tool call based on its name.
func (h *Handler) HandleToolCall(ctx context.Context, owner, sessionID, name string, args map[string]any) (string, error) {
	var result ToolResult

	switch name {
	case recallFactsTool:
		query, _ := args["query"].(string)
		result = h.recallFacts(ctx, owner, query)
	case rememberTool:
		text, _ := args["text"].(string)
		result = h.remember(ctx, owner, sessionID, text)
	case userProfileTool:
		result = h.userProfile(ctx, owner)
	default:
		result = ToolResult{
			Success: false,
			Error:   fmt.Sprintf("unknown tool: %s", name),
		}
	}

	jsonResult, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("failed to marshal result: %w", err)
	}

	return string(jsonResult), nil
}

// recallFacts ranks the owner's facts across all sessions against query.
func (h *Handler) recallFacts(ctx context.Context, owner, query string) ToolResult {
	if strings.TrimSpace(query) == "" {
		return ToolResult{Success: false, Error: "query is required"}
	}

	episodes, err := h.index.RetrieveRelevant(ctx, owner, query, "", h.topK)
	if err != nil {
		return ToolResult{Success: false, Error: fmt.Sprintf("failed to search facts: %v", err)}
	}

	if len(episodes) == 0 {
		return ToolResult{Success: true, Data: "No relevant facts found."}
	}

	results := make([]map[string]any, 0, len(episodes))
	for _, ep := range episodes {
		results = append(results, map[string]any{
			"fact":       ep.Fact,
			"importance": ep.Importance,
			"session_id": ep.SessionID,
			"created_at": ep.CreatedAt,
		})
	}

	return ToolResult{Success: true, Data: results}
}

// remember runs fact extraction over text and stores what it finds.
func (h *Handler) remember(ctx context.Context, owner, sessionID, text string) ToolResult {
	if strings.TrimSpace(text) == "" {
		return ToolResult{Success: false, Error: "text is required"}
	}

	episodes, err := h.index.ExtractAndStore(ctx, owner, sessionID, text)
	if err != nil && len(episodes) == 0 {
		return ToolResult{Success: false, Error: fmt.Sprintf("failed to store facts: %v", err)}
	}

	facts := make([]string, 0, len(episodes))
	for _, ep := range episodes {
		facts = append(facts, ep.Fact)
	}

	return ToolResult{Success: true, Data: facts}
}

// userProfile returns the owner's lifetime summary.
func (h *Handler) userProfile(ctx context.Context, owner string) ToolResult {
	sum, err := h.store.GetSummary(ctx, owner, memory.ScopeLifetime, "")
	if errors.Is(err, memory.ErrNotFound) {
		return ToolResult{Success: true, Data: "No profile yet."}
	}
	if err != nil {
		return ToolResult{Success: false, Error: fmt.Sprintf("failed to load profile: %v", err)}
	}

	return ToolResult{Success: true, Data: sum.Text}
}
