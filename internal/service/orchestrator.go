package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/easeaico/convo-memory/internal/lease"
	"github.com/easeaico/convo-memory/internal/llm"
	"github.com/easeaico/convo-memory/internal/memory"
)

const (
	// FallbackReply is returned when the inference service fails or answers with nothing.
	FallbackReply = "I apologize, but I'm having trouble processing your request right now."

	chatSystemPrompt = "You are a helpful AI assistant. Give brief, helpful responses."
	chatTemperature  = 0.7

	snapshotRecentMessages    = 16
	snapshotRecentFacts       = 20
	aggregateDays             = 30
	aggregateSessionSummaries = 5
)

// ErrInvalidInput is returned for a turn without owner or message.
var ErrInvalidInput = errors.New("service: owner and message are required")

// Options tunes the orchestrator.
type Options struct {
	// ShortTermN is the recent window size fetched per turn.
	ShortTermN int
	// EpisodicTopK is how many facts are retrieved per turn.
	EpisodicTopK int
	// EpisodicOwnerScope retrieves facts from every session of the owner
	// instead of the current session only.
	EpisodicOwnerScope bool
	// SummarizeEvery is the session summary interval in user messages.
	SummarizeEvery int
	// LifetimeEvery is the lifetime summary interval in user messages.
	LifetimeEvery int
	// LifetimeSessionCounter counts the lifetime interval with the current
	// session's user messages instead of the owner-wide total.
	LifetimeSessionCounter bool
}

// DefaultOptions returns the stock tuning.
func DefaultOptions() Options {
	return Options{ShortTermN: 10, EpisodicTopK: 5, SummarizeEvery: 5, LifetimeEvery: 25}
}

// MemoryUsed reports which memory fed a reply.
type MemoryUsed struct {
	ShortTermCount  int
	LifetimeSummary string
	EpisodicFacts   []string
}

// TurnResult is the outcome of HandleTurn.
type TurnResult struct {
	Reply      string
	MemoryUsed MemoryUsed
}

// Snapshot is a read-only view of a session's memory.
type Snapshot struct {
	Owner           string
	SessionID       string
	RecentMessages  []memory.Message
	SessionSummary  *memory.Summary
	LifetimeSummary *memory.Summary
	RecentFacts     []memory.Episode
}

// Aggregate is an owner-wide activity view.
type Aggregate struct {
	Owner                  string
	DailyCounts            []memory.DailyCount
	LifetimeSummary        *memory.Summary
	RecentSessionSummaries []memory.Summary
}

// Orchestrator composes the memory tiers for each turn.
type Orchestrator struct {
	store      memory.Store
	window     *memory.RecentWindow
	episodic   *memory.EpisodicIndex
	summarizer *memory.Summarizer
	llm        llm.Completer
	locker     lease.Locker
	opts       Options
	metrics    *metrics
	log        *logrus.Entry
}

// New creates an Orchestrator. A nil locker disables summary leases.
func New(store memory.Store, client llm.Client, locker lease.Locker, opts Options) *Orchestrator {
	if locker == nil {
		locker = lease.NopLocker{}
	}
	log := logrus.WithField("component", "orchestrator")
	window := memory.NewRecentWindow(store, opts.ShortTermN)

	return &Orchestrator{
		store:      store,
		window:     window,
		episodic:   memory.NewEpisodicIndex(store, client),
		summarizer: memory.NewSummarizer(store, window, client),
		llm:        client,
		locker:     locker,
		opts:       opts,
		metrics:    newMetrics(log),
		log:        log,
	}
}

// Episodic returns the episodic index the orchestrator writes to.
func (o *Orchestrator) Episodic() *memory.EpisodicIndex {
	return o.episodic
}

// HandleTurn runs one conversational turn. The only error it returns besides
// ErrInvalidInput is a failure to persist the inbound message; every other
// failure degrades the reply or the memory written for it.
func (o *Orchestrator) HandleTurn(ctx context.Context, owner, sessionID, message string) (*TurnResult, error) {
	owner = strings.TrimSpace(owner)
	if owner == "" || strings.TrimSpace(message) == "" {
		return nil, ErrInvalidInput
	}
	if sessionID == "" {
		sessionID = memory.DefaultSessionID
	}

	// a started turn runs to completion even if the caller goes away
	ctx = context.WithoutCancel(ctx)
	start := time.Now()
	log := o.log.WithFields(logrus.Fields{"owner": owner, "session": sessionID})

	userMsg := memory.Message{Owner: owner, SessionID: sessionID, Role: memory.RoleUser, Content: message}
	if err := o.store.AppendMessage(ctx, &userMsg); err != nil {
		log.WithError(err).Error("failed to persist user message")
		return nil, fmt.Errorf("failed to persist user message: %w", err)
	}

	tc := o.gather(ctx, log, owner, sessionID, message)

	reply, fallback := o.reply(ctx, log, tc, message)

	assistantMsg := memory.Message{Owner: owner, SessionID: sessionID, Role: memory.RoleAssistant, Content: reply}
	if err := o.store.AppendMessage(ctx, &assistantMsg); err != nil {
		log.WithError(err).Warn("failed to persist assistant message")
	}

	episodes, err := o.episodic.ExtractAndStore(ctx, owner, sessionID, message)
	if err != nil {
		log.WithError(err).Warn("fact extraction failed")
	}
	o.metrics.add(ctx, o.metrics.episodes, int64(len(episodes)))

	o.summarize(ctx, log, owner, sessionID)

	o.metrics.observeTurn(ctx, start, fallback)
	log.WithFields(logrus.Fields{
		"recent":    len(tc.Recent),
		"facts":     len(tc.Facts),
		"extracted": len(episodes),
		"fallback":  fallback,
	}).Debug("turn handled")

	return &TurnResult{
		Reply: reply,
		MemoryUsed: MemoryUsed{
			ShortTermCount:  len(tc.Recent),
			LifetimeSummary: tc.LifetimeSummary,
			EpisodicFacts:   tc.Facts,
		},
	}, nil
}

// gather fetches the four tiers concurrently. A tier that fails to load is
// logged and left empty.
func (o *Orchestrator) gather(ctx context.Context, log *logrus.Entry, owner, sessionID, query string) *TurnContext {
	var (
		tc TurnContext
		g  errgroup.Group
	)

	degrade := func(tier string, err error) {
		log.WithError(err).WithField("tier", tier).Warn("memory tier unavailable, continuing without it")
		o.metrics.add(ctx, o.metrics.degraded, 1, attribute.String("tier", tier))
	}

	g.Go(func() error {
		recent, err := o.window.Recent(ctx, owner, sessionID, o.opts.ShortTermN)
		if err != nil {
			degrade("recent", err)
			return nil
		}
		tc.Recent = recent
		return nil
	})

	g.Go(func() error {
		sum, err := o.store.GetSummary(ctx, owner, memory.ScopeSession, sessionID)
		switch {
		case errors.Is(err, memory.ErrNotFound):
		case err != nil:
			degrade("session_summary", err)
		default:
			tc.SessionSummary = sum.Text
		}
		return nil
	})

	g.Go(func() error {
		sum, err := o.store.GetSummary(ctx, owner, memory.ScopeLifetime, "")
		switch {
		case errors.Is(err, memory.ErrNotFound):
		case err != nil:
			degrade("lifetime_summary", err)
		default:
			tc.LifetimeSummary = sum.Text
		}
		return nil
	})

	g.Go(func() error {
		scope := sessionID
		if o.opts.EpisodicOwnerScope {
			scope = ""
		}
		episodes, err := o.episodic.RetrieveRelevant(ctx, owner, query, scope, o.opts.EpisodicTopK)
		if err != nil {
			degrade("episodic", err)
			return nil
		}
		facts := make([]string, 0, len(episodes))
		for _, ep := range episodes {
			facts = append(facts, ep.Fact)
		}
		tc.Facts = facts
		return nil
	})

	_ = g.Wait()
	return &tc
}

// reply asks the inference service for an answer, substituting FallbackReply
// on failure or blank output.
func (o *Orchestrator) reply(ctx context.Context, log *logrus.Entry, tc *TurnContext, message string) (string, bool) {
	prompt := fmt.Sprintf("Context: %s\n\nUser: %s\n\nAssistant:", tc.Render(), message)

	text, err := o.llm.Complete(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: chatSystemPrompt},
		{Role: llm.RoleUser, Content: prompt},
	}, chatTemperature)
	if err != nil {
		log.WithError(err).Warn("completion failed, using fallback reply")
		return FallbackReply, true
	}

	if strings.TrimSpace(text) == "" {
		log.Warn("empty completion, using fallback reply")
		return FallbackReply, true
	}
	return text, false
}

// summarize evaluates both summary triggers. Generation for a key runs under a
// lease; a turn that finds the lease taken skips generation.
func (o *Orchestrator) summarize(ctx context.Context, log *logrus.Entry, owner, sessionID string) {
	sessionCount, err := o.window.UserMessageCount(ctx, owner, sessionID)
	if err != nil {
		log.WithError(err).Warn("failed to count session user messages")
	} else if memory.SummaryDue(sessionCount, o.opts.SummarizeEvery) {
		o.withLease(ctx, log, sessionLeaseKey(owner, sessionID), func() {
			sum, err := o.summarizer.SummarizeSession(ctx, owner, sessionID)
			if err != nil {
				log.WithError(err).Warn("session summary failed")
				return
			}
			if sum != nil {
				o.metrics.add(ctx, o.metrics.summaries, 1, attribute.String("scope", string(memory.ScopeSession)))
				log.WithField("user_messages", sessionCount).Info("session summary updated")
			}
		})
	}

	var lifetimeCount int
	if o.opts.LifetimeSessionCounter {
		if err != nil {
			return
		}
		lifetimeCount = sessionCount
	} else {
		lifetimeCount, err = o.window.UserMessageCount(ctx, owner, "")
		if err != nil {
			log.WithError(err).Warn("failed to count owner user messages")
			return
		}
	}

	if memory.SummaryDue(lifetimeCount, o.opts.LifetimeEvery) {
		o.withLease(ctx, log, lifetimeLeaseKey(owner), func() {
			sum, err := o.summarizer.SummarizeLifetime(ctx, owner)
			if err != nil {
				log.WithError(err).Warn("lifetime summary failed")
				return
			}
			if sum != nil {
				o.metrics.add(ctx, o.metrics.summaries, 1, attribute.String("scope", string(memory.ScopeLifetime)))
				log.WithField("user_messages", lifetimeCount).Info("lifetime summary updated")
			}
		})
	}
}

// sessionLeaseKey length-prefixes the owner so that IDs containing ':' cannot
// map two different sessions to one key.
func sessionLeaseKey(owner, sessionID string) string {
	return fmt.Sprintf("session:%d:%s:%s", len(owner), owner, sessionID)
}

func lifetimeLeaseKey(owner string) string {
	return "lifetime:" + owner
}

func (o *Orchestrator) withLease(ctx context.Context, log *logrus.Entry, key string, fn func()) {
	release, acquired, err := o.locker.TryAcquire(ctx, key)
	if err != nil {
		log.WithError(err).WithField("lease", key).Warn("lease unavailable, skipping summary")
		return
	}
	if !acquired {
		log.WithField("lease", key).Debug("summary already in progress")
		return
	}
	defer release()

	fn()
}

// Snapshot returns the recent messages, both summaries and the newest facts of a session.
func (o *Orchestrator) Snapshot(ctx context.Context, owner, sessionID string) (*Snapshot, error) {
	if sessionID == "" {
		sessionID = memory.DefaultSessionID
	}
	snap := &Snapshot{Owner: owner, SessionID: sessionID}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		msgs, err := o.window.Recent(gctx, owner, sessionID, snapshotRecentMessages)
		snap.RecentMessages = msgs
		return err
	})
	g.Go(func() error {
		sum, err := optionalSummary(o.store.GetSummary(gctx, owner, memory.ScopeSession, sessionID))
		snap.SessionSummary = sum
		return err
	})
	g.Go(func() error {
		sum, err := optionalSummary(o.store.GetSummary(gctx, owner, memory.ScopeLifetime, ""))
		snap.LifetimeSummary = sum
		return err
	})
	g.Go(func() error {
		facts, err := o.episodic.RecentFacts(gctx, owner, sessionID, snapshotRecentFacts)
		snap.RecentFacts = facts
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to load memory snapshot: %w", err)
	}
	return snap, nil
}

// Aggregate returns daily message counts, the lifetime summary and the latest session summaries.
func (o *Orchestrator) Aggregate(ctx context.Context, owner string) (*Aggregate, error) {
	agg := &Aggregate{Owner: owner}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		counts, err := o.store.DailyMessageCounts(gctx, owner, aggregateDays)
		agg.DailyCounts = counts
		return err
	})
	g.Go(func() error {
		sum, err := optionalSummary(o.store.GetSummary(gctx, owner, memory.ScopeLifetime, ""))
		agg.LifetimeSummary = sum
		return err
	})
	g.Go(func() error {
		sums, err := o.store.ListSessionSummaries(gctx, owner, aggregateSessionSummaries)
		agg.RecentSessionSummaries = sums
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to aggregate memory: %w", err)
	}
	return agg, nil
}

func optionalSummary(sum *memory.Summary, err error) (*memory.Summary, error) {
	if errors.Is(err, memory.ErrNotFound) {
		return nil, nil
	}
	return sum, err
}
