package memory

import (
	"context"
	"time"
)

// timeoutStore bounds every call of the wrapped store.
type timeoutStore struct {
	next    Store
	timeout time.Duration
}

// WithTimeout wraps store so that each call runs under its own deadline.
// A non-positive timeout returns store unchanged.
func WithTimeout(store Store, timeout time.Duration) Store {
	if timeout <= 0 {
		return store
	}
	return &timeoutStore{next: store, timeout: timeout}
}

func (t *timeoutStore) AppendMessage(ctx context.Context, msg *Message) error {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.AppendMessage(ctx, msg)
}

func (t *timeoutStore) RecentMessages(ctx context.Context, owner, sessionID string, limit int) ([]Message, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.RecentMessages(ctx, owner, sessionID, limit)
}

func (t *timeoutStore) CountUserMessages(ctx context.Context, owner, sessionID string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.CountUserMessages(ctx, owner, sessionID)
}

func (t *timeoutStore) GetSummary(ctx context.Context, owner string, scope Scope, sessionID string) (*Summary, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.GetSummary(ctx, owner, scope, sessionID)
}

func (t *timeoutStore) UpsertSummary(ctx context.Context, s *Summary) error {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.UpsertSummary(ctx, s)
}

func (t *timeoutStore) ListSessionSummaries(ctx context.Context, owner string, limit int) ([]Summary, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.ListSessionSummaries(ctx, owner, limit)
}

func (t *timeoutStore) AppendEpisode(ctx context.Context, ep *Episode) error {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.AppendEpisode(ctx, ep)
}

func (t *timeoutStore) ListEpisodes(ctx context.Context, owner, sessionID string) ([]Episode, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.ListEpisodes(ctx, owner, sessionID)
}

func (t *timeoutStore) RecentEpisodes(ctx context.Context, owner, sessionID string, limit int) ([]Episode, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.RecentEpisodes(ctx, owner, sessionID, limit)
}

func (t *timeoutStore) DailyMessageCounts(ctx context.Context, owner string, days int) ([]DailyCount, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.DailyMessageCounts(ctx, owner, days)
}

func (t *timeoutStore) Close() error {
	return t.next.Close()
}
