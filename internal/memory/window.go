package memory

import (
	"context"
	"slices"
)

// RecentWindow is a bounded, chronological view of a session's messages.
type RecentWindow struct {
	store Store
	size  int
}

// NewRecentWindow creates a window of the given default size.
func NewRecentWindow(store Store, size int) *RecentWindow {
	return &RecentWindow{store: store, size: size}
}

// Size returns the default window size.
func (w *RecentWindow) Size() int {
	return w.size
}

// Recent returns at most limit messages, oldest first. A non-positive limit
// uses the window size.
func (w *RecentWindow) Recent(ctx context.Context, owner, sessionID string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = w.size
	}

	messages, err := w.store.RecentMessages(ctx, owner, sessionID, limit)
	if err != nil {
		return nil, err
	}

	slices.Reverse(messages)
	return messages, nil
}

// UserMessageCount counts the role=user messages of a session, or of every
// session of the owner when sessionID is empty.
func (w *RecentWindow) UserMessageCount(ctx context.Context, owner, sessionID string) (int, error) {
	return w.store.CountUserMessages(ctx, owner, sessionID)
}
