// Copyright (C) 2025 Savwangs
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package assistant

// AskRequest is the body of POST /api/ask.
type AskRequest struct {
	Query string `json:"query" binding:"required"`
}

// AskResponse is the envelope every /api/ask reply uses.
type AskResponse struct {
	Success  bool   `json:"success"`
	Response string `json:"response,omitempty"`
	Error    string `json:"error,omitempty"`

	// Clarification marks replies that ask the user a question back.
	Clarification bool `json:"clarification,omitempty"`
}

// ConversationResponse is the body of GET /api/conversation.
type ConversationResponse struct {
	Success       bool `json:"success"`
	HasHistory    bool `json:"has_history"`
	ExchangeCount int  `json:"exchange_count"`
}

// ClearResponse is the body of POST /api/clear.
type ClearResponse struct {
	Success bool `json:"success"`
}

// HealthResponse is the body of GET /api/health.
type HealthResponse struct {
	Status        string `json:"status"`
	CoursesLoaded int    `json:"courses_loaded"`
}

// ErrorResponse is the generic error envelope.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}
