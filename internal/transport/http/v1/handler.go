// Package v1 provides the HTTP handlers of the memory service.
package v1

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/easeaico/convo-memory/internal/service"
)

// MemoryService is the core surface the handlers expose.
type MemoryService interface {
	HandleTurn(ctx context.Context, owner, sessionID, message string) (*service.TurnResult, error)
	Snapshot(ctx context.Context, owner, sessionID string) (*service.Snapshot, error)
	Aggregate(ctx context.Context, owner string) (*service.Aggregate, error)
}

// Handler handles HTTP requests.
type Handler struct {
	service MemoryService
}

// NewHandler creates a new handler.
func NewHandler(service MemoryService) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.POST("/api/chat", h.Chat)
	e.GET("/api/memory/:user_id", h.GetMemory)
	e.GET("/api/aggregate/:user_id", h.GetAggregate)

	e.GET("/health", h.Health)
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "healthy"})
}
