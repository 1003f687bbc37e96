// Package tools defines ADK tool declarations that give an agent access to
// its user's long-term memory.
package tools

import (
	"fmt"

	"google.golang.org/adk/tool"
	"google.golang.org/adk/tool/functiontool"
)

const (
	recallFactsTool = "recall_facts"
	rememberTool    = "remember"
	userProfileTool = "get_user_profile"
)

// --- Tool Input Structs ---

// RecallFactsArgs is the input for recall_facts tool.
type RecallFactsArgs struct {
	Query string `json:"query" jsonschema:"description=What to look for in the user's remembered facts"`
}

// RememberArgs is the input for remember tool.
type RememberArgs struct {
	Text string `json:"text" jsonschema:"description=A statement by or about the user worth keeping"`
}

// UserProfileArgs is the input for get_user_profile tool.
type UserProfileArgs struct{}

// --- Tool Handlers ---

func createRecallFactsTool(h *Handler) (tool.Tool, error) {
	handler := func(ctx tool.Context, args RecallFactsArgs) (ToolResult, error) {
		return h.recallFacts(ctx, ctx.UserID(), args.Query), nil
	}

	return functiontool.New(functiontool.Config{
		Name:        recallFactsTool,
		Description: "Search everything remembered about the current user, across all of their sessions, for facts related to the query.",
	}, handler)
}

func createRememberTool(h *Handler) (tool.Tool, error) {
	handler := func(ctx tool.Context, args RememberArgs) (ToolResult, error) {
		return h.remember(ctx, ctx.UserID(), ctx.SessionID(), args.Text), nil
	}

	return functiontool.New(functiontool.Config{
		Name:        rememberTool,
		Description: "Extract durable facts from the text and store them in the current user's memory.",
	}, handler)
}

func createUserProfileTool(h *Handler) (tool.Tool, error) {
	handler := func(ctx tool.Context, _ UserProfileArgs) (ToolResult, error) {
		return h.userProfile(ctx, ctx.UserID()), nil
	}

	return functiontool.New(functiontool.Config{
		Name:        userProfileTool,
		Description: "Return the long-term profile summarizing the current user's past sessions.",
	}, handler)
}

// BuildTools creates all memory tools backed by h.
func BuildTools(h *Handler) ([]tool.Tool, error) {
	builders := []struct {
		name  string
		build func(*Handler) (tool.Tool, error)
	}{
		{recallFactsTool, createRecallFactsTool},
		{rememberTool, createRememberTool},
		{userProfileTool, createUserProfileTool},
	}

	tools := make([]tool.Tool, 0, len(builders))
	for _, b := range builders {
		t, err := b.build(h)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s tool: %w", b.name, err)
		}
		tools = append(tools, t)
	}

	return tools, nil
}
