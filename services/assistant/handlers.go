// Copyright (C) 2025 Savwangs
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package assistant

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

// sessionCookie names the browser cookie carrying the session id.
const sessionCookie = "coursedb_session"

// sessionKey is the gin context key the middleware stores the id under.
const sessionKey = "session_id"

// Asker is the service surface the handlers need; the concrete Service
// satisfies it, tests swap in a mock.
type Asker interface {
	Ask(ctx context.Context, sessionID, text string) (Answer, error)
	Conversation(sessionID string) (turns int, ok bool)
	Clear(sessionID string)
	CoursesLoaded() int
}

// Handlers holds the HTTP handlers for the assistant API.
type Handlers struct {
	service Asker
	logger  *slog.Logger
}

// NewHandlers builds the handler set.
func NewHandlers(service Asker, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{service: service, logger: logger}
}

// SessionMiddleware assigns each caller a uuid session cookie.
func SessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := c.Cookie(sessionCookie)
		if err != nil || id == "" {
			id = uuid.NewString()
			c.SetCookie(sessionCookie, id, int((7 * 24 * 3600)), "/", "", false, true)
		}
		c.Set(sessionKey, id)
		c.Next()
	}
}

func sessionID(c *gin.Context) string {
	if id, ok := c.Get(sessionKey); ok {
		if s, ok := id.(string); ok {
			return s
		}
	}
	return ""
}

// Ask handles POST /api/ask.
func (h *Handlers) Ask(c *gin.Context) {
	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "request must carry a non-empty \"query\" field"})
		return
	}

	sid := sessionID(c)
	logger := h.logger.With(slog.String("session_id", sid))
	if sc := trace.SpanContextFromContext(c.Request.Context()); sc.IsValid() {
		logger = logger.With(slog.String("trace_id", sc.TraceID().String()))
	}

	answer, err := h.service.Ask(c.Request.Context(), sid, req.Query)
	if err != nil {
		logger.Error("ask failed", slog.String("error", err.Error()))
		c.JSON(http.StatusOK, AskResponse{Success: false, Error: "I couldn't process that question. Try rephrasing it."})
		return
	}

	c.JSON(http.StatusOK, AskResponse{
		Success:       true,
		Response:      answer.Text,
		Clarification: answer.Clarified,
	})
}

// Conversation handles GET /api/conversation.
func (h *Handlers) Conversation(c *gin.Context) {
	turns, ok := h.service.Conversation(sessionID(c))
	c.JSON(http.StatusOK, ConversationResponse{
		Success:       true,
		HasHistory:    ok && turns > 0,
		ExchangeCount: turns,
	})
}

// Clear handles POST /api/clear.
func (h *Handlers) Clear(c *gin.Context) {
	h.service.Clear(sessionID(c))
	c.JSON(http.StatusOK, ClearResponse{Success: true})
}

// Health handles GET /api/health.
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:        "healthy",
		CoursesLoaded: h.service.CoursesLoaded(),
	})
}
