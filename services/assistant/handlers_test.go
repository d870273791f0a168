// Copyright (C) 2025 Savwangs
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// mockAsker scripts the service surface for handler tests.
type mockAsker struct {
	askFunc          func(ctx context.Context, sessionID, text string) (Answer, error)
	conversationFunc func(sessionID string) (int, bool)
	clearFunc        func(sessionID string)
	coursesLoaded    int
}

func (m *mockAsker) Ask(ctx context.Context, sessionID, text string) (Answer, error) {
	return m.askFunc(ctx, sessionID, text)
}

func (m *mockAsker) Conversation(sessionID string) (int, bool) {
	if m.conversationFunc != nil {
		return m.conversationFunc(sessionID)
	}
	return 0, false
}

func (m *mockAsker) Clear(sessionID string) {
	if m.clearFunc != nil {
		m.clearFunc(sessionID)
	}
}

func (m *mockAsker) CoursesLoaded() int { return m.coursesLoaded }

func newTestRouter(svc Asker) *gin.Engine {
	r := gin.New()
	r.Use(SessionMiddleware())
	RegisterRoutes(r.Group("/api"), NewHandlers(svc, nil))
	return r
}

func TestAskEndpoint(t *testing.T) {
	var gotText, gotSession string
	svc := &mockAsker{askFunc: func(_ context.Context, sessionID, text string) (Answer, error) {
		gotSession, gotText = sessionID, text
		return Answer{Text: "Found 1 matching section"}, nil
	}}
	r := newTestRouter(svc)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/ask", strings.NewReader(`{"query":"show me COMSC-110"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp AskResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Success || resp.Response != "Found 1 matching section" {
		t.Errorf("resp = %+v", resp)
	}
	if gotText != "show me COMSC-110" {
		t.Errorf("text = %q", gotText)
	}
	if gotSession == "" {
		t.Error("no session id assigned")
	}
	// A cookie must come back for the next turn.
	found := false
	for _, c := range w.Result().Cookies() {
		if c.Name == sessionCookie && c.Value != "" {
			found = true
		}
	}
	if !found {
		t.Error("session cookie not set")
	}
}

func TestAskEndpointReusesCookie(t *testing.T) {
	var sessions []string
	svc := &mockAsker{askFunc: func(_ context.Context, sessionID, _ string) (Answer, error) {
		sessions = append(sessions, sessionID)
		return Answer{Text: "ok"}, nil
	}}
	r := newTestRouter(svc)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/ask", strings.NewReader(`{"query":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(&http.Cookie{Name: sessionCookie, Value: "fixed-session"})
	r.ServeHTTP(w, req)

	if len(sessions) != 1 || sessions[0] != "fixed-session" {
		t.Errorf("sessions = %v", sessions)
	}
}

func TestAskEndpointRejectsMissingQuery(t *testing.T) {
	svc := &mockAsker{askFunc: func(_ context.Context, _, _ string) (Answer, error) {
		t.Fatal("service must not be called")
		return Answer{}, nil
	}}
	r := newTestRouter(svc)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/ask", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestAskEndpointServiceError(t *testing.T) {
	svc := &mockAsker{askFunc: func(_ context.Context, _, _ string) (Answer, error) {
		return Answer{}, errors.New("boom")
	}}
	r := newTestRouter(svc)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/ask", strings.NewReader(`{"query":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	var resp AskResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Success || resp.Error == "" {
		t.Errorf("resp = %+v, want graceful failure envelope", resp)
	}
}

func TestConversationEndpoint(t *testing.T) {
	svc := &mockAsker{
		askFunc:          nil,
		conversationFunc: func(string) (int, bool) { return 3, true },
	}
	r := newTestRouter(svc)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/conversation", nil))

	var resp ConversationResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.HasHistory || resp.ExchangeCount != 3 {
		t.Errorf("resp = %+v", resp)
	}
}

func TestClearEndpoint(t *testing.T) {
	cleared := false
	svc := &mockAsker{clearFunc: func(string) { cleared = true }}
	r := newTestRouter(svc)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/clear", nil))

	if !cleared {
		t.Error("Clear not invoked")
	}
	var resp ClearResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil || !resp.Success {
		t.Errorf("resp = %+v err = %v", resp, err)
	}
}

func TestHealthEndpoint(t *testing.T) {
	svc := &mockAsker{coursesLoaded: 42}
	r := newTestRouter(svc)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	var resp HealthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "healthy" || resp.CoursesLoaded != 42 {
		t.Errorf("resp = %+v", resp)
	}
}
