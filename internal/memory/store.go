package memory

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a requested summary does not exist.
var ErrNotFound = errors.New("memory: not found")

// Store defines the contract for durable memory state.
// Every read goes to the backing engine; implementations keep no cache.
type Store interface {
	// AppendMessage persists a message. ID and CreatedAt are filled in when zero.
	AppendMessage(ctx context.Context, msg *Message) error

	// RecentMessages returns at most limit messages of a session, newest first.
	// Ties on CreatedAt are broken by insertion order.
	RecentMessages(ctx context.Context, owner, sessionID string, limit int) ([]Message, error)

	// CountUserMessages counts role=user messages of a session, or of every
	// session of the owner when sessionID is empty.
	CountUserMessages(ctx context.Context, owner, sessionID string) (int, error)

	// GetSummary returns the summary for the key or ErrNotFound.
	GetSummary(ctx context.Context, owner string, scope Scope, sessionID string) (*Summary, error)

	// UpsertSummary atomically replaces the summary for (Owner, Scope, SessionID).
	UpsertSummary(ctx context.Context, s *Summary) error

	// ListSessionSummaries returns session-scope summaries of the owner, newest first.
	ListSessionSummaries(ctx context.Context, owner string, limit int) ([]Summary, error)

	// AppendEpisode persists an episode. Episodes are never overwritten.
	AppendEpisode(ctx context.Context, ep *Episode) error

	// ListEpisodes loads every episode of the owner, restricted to a session when
	// sessionID is non-empty.
	ListEpisodes(ctx context.Context, owner, sessionID string) ([]Episode, error)

	// RecentEpisodes returns at most limit episodes of a session, newest first.
	RecentEpisodes(ctx context.Context, owner, sessionID string, limit int) ([]Episode, error)

	// DailyMessageCounts groups the owner's messages by UTC day, ascending, at most days entries.
	DailyMessageCounts(ctx context.Context, owner string, days int) ([]DailyCount, error)

	// Close releases any resources held by the store.
	Close() error
}

// nowFunc is replaced in tests that need deterministic timestamps.
var nowFunc = func() time.Time { return time.Now().UTC() }

func prepareMessage(msg *Message) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = nowFunc()
	}
	if msg.SessionID == "" {
		msg.SessionID = DefaultSessionID
	}
}

func prepareSummary(s *Summary) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = nowFunc()
	}
	if s.Scope == ScopeLifetime {
		s.SessionID = ""
	}
}

func prepareEpisode(ep *Episode) {
	if ep.ID == "" {
		ep.ID = uuid.NewString()
	}
	if ep.CreatedAt.IsZero() {
		ep.CreatedAt = nowFunc()
	}
	if ep.SessionID == "" {
		ep.SessionID = DefaultSessionID
	}
}
