package memory

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/easeaico/convo-memory/internal/llm"
)

const (
	// SessionTranscriptSize is how many recent messages feed a session summary.
	SessionTranscriptSize = 30
	// LifetimeSourceSummaries is how many session summaries feed a lifetime summary.
	LifetimeSourceSummaries = 10
)

// SummaryDue reports whether count has reached a positive multiple of every.
func SummaryDue(count, every int) bool {
	return every > 0 && count > 0 && count%every == 0
}

// Summarizer condenses sessions into session summaries and session summaries
// into a lifetime profile. Both are upserts of a single row per key.
type Summarizer struct {
	store  Store
	window *RecentWindow
	llm    llm.Completer
	log    *logrus.Entry
}

// NewSummarizer creates a Summarizer.
func NewSummarizer(store Store, window *RecentWindow, client llm.Completer) *Summarizer {
	return &Summarizer{
		store:  store,
		window: window,
		llm:    client,
		log:    logrus.WithField("component", "summarizer"),
	}
}

// SummarizeSession regenerates the session summary from the last messages.
// It returns nil without writing when there is nothing to summarize or the
// generated text is blank.
func (s *Summarizer) SummarizeSession(ctx context.Context, owner, sessionID string) (*Summary, error) {
	messages, err := s.window.Recent(ctx, owner, sessionID, SessionTranscriptSize)
	if err != nil {
		return nil, fmt.Errorf("failed to load transcript: %w", err)
	}
	if len(messages) == 0 {
		return nil, nil
	}

	text, err := s.llm.Complete(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: sessionSystemPrompt},
		{Role: llm.RoleUser, Content: render(sessionPromptTmpl, map[string]any{"Messages": messages})},
	}, summaryTemperature)
	if err != nil {
		return nil, fmt.Errorf("failed to generate session summary: %w", err)
	}

	return s.save(ctx, &Summary{Owner: owner, SessionID: sessionID, Scope: ScopeSession, Text: text})
}

// SummarizeLifetime regenerates the owner profile from the latest session summaries.
func (s *Summarizer) SummarizeLifetime(ctx context.Context, owner string) (*Summary, error) {
	summaries, err := s.store.ListSessionSummaries(ctx, owner, LifetimeSourceSummaries)
	if err != nil {
		return nil, fmt.Errorf("failed to load session summaries: %w", err)
	}
	if len(summaries) == 0 {
		return nil, nil
	}

	text, err := s.llm.Complete(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: lifetimeSystemPrompt},
		{Role: llm.RoleUser, Content: render(lifetimePromptTmpl, map[string]any{"Summaries": summaries})},
	}, summaryTemperature)
	if err != nil {
		return nil, fmt.Errorf("failed to generate lifetime summary: %w", err)
	}

	return s.save(ctx, &Summary{Owner: owner, Scope: ScopeLifetime, Text: text})
}

func (s *Summarizer) save(ctx context.Context, sum *Summary) (*Summary, error) {
	sum.Text = strings.TrimSpace(sum.Text)
	if sum.Text == "" {
		s.log.WithFields(logrus.Fields{"owner": sum.Owner, "scope": sum.Scope}).Warn("blank summary, keeping previous")
		return nil, nil
	}

	if err := s.store.UpsertSummary(ctx, sum); err != nil {
		return nil, err
	}
	return sum, nil
}
