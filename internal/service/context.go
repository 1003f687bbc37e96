// Package service provides the memory orchestrator that composes the memory
// tiers into a per-turn context and sequences the writes of a turn.
package service

import (
	"strings"

	"github.com/easeaico/convo-memory/internal/memory"
)

// contextRecentMessages is how many window messages are rendered into the context.
const contextRecentMessages = 5

// TurnContext holds the memory tiers fetched for one turn.
type TurnContext struct {
	// LifetimeSummary is the owner profile, empty when none exists.
	LifetimeSummary string

	// SessionSummary is the current session's summary, empty when none exists.
	SessionSummary string

	// Recent is the recent window, oldest first.
	Recent []memory.Message

	// Facts are the relevant episode facts, most relevant first.
	Facts []string
}

// Render composes the context text. Sections without content are omitted.
func (c *TurnContext) Render() string {
	var sections []string

	if c.LifetimeSummary != "" {
		sections = append(sections, "User Profile: "+c.LifetimeSummary)
	}
	if c.SessionSummary != "" {
		sections = append(sections, "Session Summary: "+c.SessionSummary)
	}
	if len(c.Recent) > 0 {
		recent := c.Recent[max(0, len(c.Recent)-contextRecentMessages):]
		lines := make([]string, 0, len(recent)+1)
		lines = append(lines, "Recent Conversation:")
		for _, m := range recent {
			lines = append(lines, string(m.Role)+": "+m.Content)
		}
		sections = append(sections, strings.Join(lines, "\n"))
	}
	if len(c.Facts) > 0 {
		sections = append(sections, "Relevant Facts: "+strings.Join(c.Facts, "; "))
	}

	return strings.Join(sections, "\n\n")
}
