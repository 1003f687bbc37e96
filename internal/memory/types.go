// Package memory provides the storage contract, store implementations and the
// memory tiers (recent window, episodic index, summaries) of a conversation.
package memory

import "time"

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Scope is the granularity of a summary.
type Scope string

const (
	ScopeSession  Scope = "session"
	ScopeLifetime Scope = "lifetime"
)

// DefaultSessionID is used when a caller supplies no session.
const DefaultSessionID = "default"

// Message is one immutable turn of a conversation.
type Message struct {
	ID        string
	Owner     string
	SessionID string
	Role      Role
	Content   string
	CreatedAt time.Time
}

// Summary is a condensed view of a session or of an owner's whole history.
// There is at most one Summary per (Owner, Scope, SessionID); SessionID is
// empty for lifetime summaries.
type Summary struct {
	ID        string
	Owner     string
	SessionID string
	Scope     Scope
	Text      string
	CreatedAt time.Time
}

// Episode is an extracted fact with its importance and embedding.
type Episode struct {
	ID         string
	Owner      string
	SessionID  string
	Fact       string
	Importance float64
	Embedding  []float32
	CreatedAt  time.Time
}

// DailyCount is the number of messages an owner exchanged on one UTC day.
type DailyCount struct {
	Date  string // YYYY-MM-DD
	Count int
}
