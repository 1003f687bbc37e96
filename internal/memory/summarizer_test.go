package memory

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestSummaryDue(t *testing.T) {
	tests := []struct {
		count, every int
		want         bool
	}{
		{count: 5, every: 5, want: true},
		{count: 10, every: 5, want: true},
		{count: 15, every: 5, want: true},
		{count: 4, every: 5, want: false},
		{count: 6, every: 5, want: false},
		{count: 0, every: 5, want: false},
		{count: 20, every: 20, want: true},
		{count: 5, every: 0, want: false},
	}

	for _, tt := range tests {
		if got := SummaryDue(tt.count, tt.every); got != tt.want {
			t.Errorf("SummaryDue(%d, %d) = %v, want %v", tt.count, tt.every, got, tt.want)
		}
	}
}

func TestSummarizer_SummarizeSession(t *testing.T) {
	ctx := context.Background()
	stepClock(t)
	store := newTestStore(t)
	appendMessages(t, store, "u1", "s1", "I am planning a trip", "Where to?", "Japan in spring")

	client := newStubClient("  - Trip to Japan in spring  ")
	summarizer := NewSummarizer(store, NewRecentWindow(store, 10), client)

	sum, err := summarizer.SummarizeSession(ctx, "u1", "s1")
	if err != nil {
		t.Fatalf("failed to summarize: %v", err)
	}
	if sum == nil || sum.Text != "- Trip to Japan in spring" {
		t.Fatalf("unexpected summary: %+v", sum)
	}

	prompt := client.lastPrompt()
	if !strings.Contains(prompt, "user: I am planning a trip\nassistant: Where to?\nuser: Japan in spring") {
		t.Errorf("expected chronological transcript in prompt, got %q", prompt)
	}

	stored, err := store.GetSummary(ctx, "u1", ScopeSession, "s1")
	if err != nil {
		t.Fatalf("failed to get summary: %v", err)
	}
	if stored.Text != sum.Text {
		t.Errorf("expected stored text %q, got %q", sum.Text, stored.Text)
	}

	client.completion = "updated summary"
	updated, err := summarizer.SummarizeSession(ctx, "u1", "s1")
	if err != nil {
		t.Fatalf("failed to re-summarize: %v", err)
	}
	stored, err = store.GetSummary(ctx, "u1", ScopeSession, "s1")
	if err != nil {
		t.Fatalf("failed to get summary: %v", err)
	}
	if stored.Text != "updated summary" {
		t.Errorf("expected upsert to replace text, got %q", stored.Text)
	}
	if updated.ID != stored.ID || updated.ID != sum.ID {
		t.Errorf("expected returned id to match stored id %q, got %q (first %q)", stored.ID, updated.ID, sum.ID)
	}
}

func TestSummarizer_BlankOutputKeepsPrevious(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	appendMessages(t, store, "u1", "s1", "hello")

	if err := store.UpsertSummary(ctx, &Summary{Owner: "u1", SessionID: "s1", Scope: ScopeSession, Text: "previous"}); err != nil {
		t.Fatalf("failed to seed summary: %v", err)
	}

	summarizer := NewSummarizer(store, NewRecentWindow(store, 10), newStubClient(" \n "))

	sum, err := summarizer.SummarizeSession(ctx, "u1", "s1")
	if err != nil || sum != nil {
		t.Fatalf("expected no summary and no error, got %+v, %v", sum, err)
	}

	stored, err := store.GetSummary(ctx, "u1", ScopeSession, "s1")
	if err != nil {
		t.Fatalf("failed to get summary: %v", err)
	}
	if stored.Text != "previous" {
		t.Errorf("expected previous summary to survive, got %q", stored.Text)
	}
}

func TestSummarizer_NothingToSummarize(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	client := newStubClient("should not be used")
	summarizer := NewSummarizer(store, NewRecentWindow(store, 10), client)

	if sum, err := summarizer.SummarizeSession(ctx, "u1", "empty"); err != nil || sum != nil {
		t.Errorf("expected nil session summary, got %+v, %v", sum, err)
	}
	if sum, err := summarizer.SummarizeLifetime(ctx, "u1"); err != nil || sum != nil {
		t.Errorf("expected nil lifetime summary, got %+v, %v", sum, err)
	}
	if len(client.prompts) != 0 {
		t.Errorf("expected no completion requests, got %d", len(client.prompts))
	}
}

func TestSummarizer_SummarizeLifetime(t *testing.T) {
	ctx := context.Background()
	stepClock(t)
	store := newTestStore(t)

	for _, s := range []struct{ sid, text string }{
		{"s1", "talked about cooking"},
		{"s2", "planned a trip to Japan"},
	} {
		if err := store.UpsertSummary(ctx, &Summary{Owner: "u1", SessionID: s.sid, Scope: ScopeSession, Text: s.text}); err != nil {
			t.Fatalf("failed to seed summary: %v", err)
		}
	}

	client := newStubClient("Enjoys cooking and travel.")
	summarizer := NewSummarizer(store, NewRecentWindow(store, 10), client)

	sum, err := summarizer.SummarizeLifetime(ctx, "u1")
	if err != nil {
		t.Fatalf("failed to summarize: %v", err)
	}
	if sum == nil || sum.Scope != ScopeLifetime || sum.SessionID != "" {
		t.Fatalf("unexpected lifetime summary: %+v", sum)
	}

	prompt := client.lastPrompt()
	if !strings.Contains(prompt, "Session 1: planned a trip to Japan") || !strings.Contains(prompt, "Session 2: talked about cooking") {
		t.Errorf("expected numbered session summaries newest first, got %q", prompt)
	}

	stored, err := store.GetSummary(ctx, "u1", ScopeLifetime, "")
	if err != nil {
		t.Fatalf("failed to get lifetime summary: %v", err)
	}
	if stored.Text != "Enjoys cooking and travel." {
		t.Errorf("unexpected stored text %q", stored.Text)
	}
}

func TestSummarizer_CompletionError(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	appendMessages(t, store, "u1", "s1", "hello")

	wantErr := errors.New("model offline")
	client := newStubClient("")
	client.completeErr = wantErr
	summarizer := NewSummarizer(store, NewRecentWindow(store, 10), client)

	if _, err := summarizer.SummarizeSession(ctx, "u1", "s1"); !errors.Is(err, wantErr) {
		t.Errorf("expected completion error, got %v", err)
	}
	if _, err := store.GetSummary(ctx, "u1", ScopeSession, "s1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected no summary to be written, got %v", err)
	}
}
