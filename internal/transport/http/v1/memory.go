package v1

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/easeaico/convo-memory/internal/memory"
	"github.com/easeaico/convo-memory/internal/service"
)

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// MemoryUsed mirrors service.MemoryUsed on the wire.
type MemoryUsed struct {
	ShortTermCount  int      `json:"short_term_count"`
	LongTermSummary *string  `json:"long_term_summary"`
	EpisodicFacts   []string `json:"episodic_facts"`
}

// ChatResponse is the body returned by POST /api/chat.
type ChatResponse struct {
	Reply      string     `json:"reply"`
	MemoryUsed MemoryUsed `json:"memory_used"`
}

type messageView struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type factView struct {
	Fact       string    `json:"fact"`
	Importance float64   `json:"importance"`
	CreatedAt  time.Time `json:"created_at"`
}

type summaryView struct {
	SessionID string    `json:"session_id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

type dailyCountView struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// Chat runs one turn.
// POST /api/chat
func (h *Handler) Chat(c echo.Context) error {
	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if strings.TrimSpace(req.UserID) == "" || strings.TrimSpace(req.Message) == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "user_id and message are required"})
	}

	ctx := c.Request().Context()

	result, err := h.service.HandleTurn(ctx, req.UserID, req.SessionID, req.Message)
	if errors.Is(err, service.ErrInvalidInput) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	facts := result.MemoryUsed.EpisodicFacts
	if facts == nil {
		facts = []string{}
	}

	return c.JSON(http.StatusOK, ChatResponse{
		Reply: result.Reply,
		MemoryUsed: MemoryUsed{
			ShortTermCount:  result.MemoryUsed.ShortTermCount,
			LongTermSummary: optionalText(result.MemoryUsed.LifetimeSummary),
			EpisodicFacts:   facts,
		},
	})
}

// GetMemory returns the memory snapshot of a session.
// GET /api/memory/:user_id?session_id=default
func (h *Handler) GetMemory(c echo.Context) error {
	userID := c.Param("user_id")
	sessionID := c.QueryParam("session_id")
	if sessionID == "" {
		sessionID = memory.DefaultSessionID
	}

	ctx := c.Request().Context()

	snap, err := h.service.Snapshot(ctx, userID, sessionID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	messages := make([]messageView, 0, len(snap.RecentMessages))
	for _, m := range snap.RecentMessages {
		messages = append(messages, messageView{Role: string(m.Role), Content: m.Content, CreatedAt: m.CreatedAt})
	}

	facts := make([]factView, 0, len(snap.RecentFacts))
	for _, ep := range snap.RecentFacts {
		facts = append(facts, factView{Fact: ep.Fact, Importance: ep.Importance, CreatedAt: ep.CreatedAt})
	}

	return c.JSON(http.StatusOK, map[string]any{
		"user_id":          userID,
		"session_id":       sessionID,
		"recent_messages":  messages,
		"session_summary":  summaryText(snap.SessionSummary),
		"lifetime_summary": summaryText(snap.LifetimeSummary),
		"episodic_facts":   facts,
	})
}

// GetAggregate returns owner-wide activity.
// GET /api/aggregate/:user_id
func (h *Handler) GetAggregate(c echo.Context) error {
	userID := c.Param("user_id")

	ctx := c.Request().Context()

	agg, err := h.service.Aggregate(ctx, userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	counts := make([]dailyCountView, 0, len(agg.DailyCounts))
	for _, dc := range agg.DailyCounts {
		counts = append(counts, dailyCountView{Date: dc.Date, Count: dc.Count})
	}

	summaries := make([]summaryView, 0, len(agg.RecentSessionSummaries))
	for _, s := range agg.RecentSessionSummaries {
		summaries = append(summaries, summaryView{SessionID: s.SessionID, Text: s.Text, CreatedAt: s.CreatedAt})
	}

	return c.JSON(http.StatusOK, map[string]any{
		"user_id":                  userID,
		"daily_counts":             counts,
		"lifetime_summary":         summaryText(agg.LifetimeSummary),
		"recent_session_summaries": summaries,
	})
}

func summaryText(s *memory.Summary) *string {
	if s == nil {
		return nil
	}
	return &s.Text
}

func optionalText(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
