package memory

import (
	"context"
	"testing"
	"time"
)

// deadlineStore records whether calls carried a deadline.
type deadlineStore struct {
	Store
	sawDeadline bool
}

func (d *deadlineStore) CountUserMessages(ctx context.Context, owner, sessionID string) (int, error) {
	_, d.sawDeadline = ctx.Deadline()
	return d.Store.CountUserMessages(ctx, owner, sessionID)
}

func TestWithTimeout(t *testing.T) {
	inner := &deadlineStore{Store: newTestStore(t)}

	if got := WithTimeout(inner, 0); got != Store(inner) {
		t.Error("expected non-positive timeout to return the store unchanged")
	}

	wrapped := WithTimeout(inner, time.Second)
	if _, err := wrapped.CountUserMessages(context.Background(), "u1", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !inner.sawDeadline {
		t.Error("expected the wrapped call to carry a deadline")
	}
}
