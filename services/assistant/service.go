// Copyright (C) 2025 Savwangs
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package assistant wires the conversational course assistant: session
// state, interpretation, search, composition and the HTTP transport.
package assistant

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/Savwangs/course-database/services/assistant/catalog"
	"github.com/Savwangs/course-database/services/assistant/compose"
	"github.com/Savwangs/course-database/services/assistant/logstore"
	"github.com/Savwangs/course-database/services/assistant/query"
	"github.com/Savwangs/course-database/services/assistant/search"
	"github.com/Savwangs/course-database/services/assistant/session"
)

// Answer is the outcome of one turn.
type Answer struct {
	// Text is the reply to show the user.
	Text string

	// Query is the executed query; nil when the turn ended in a
	// clarification question.
	Query *query.StructuredQuery

	// Clarified marks turns that asked the user to disambiguate.
	Clarified bool
}

// Service runs the answer pipeline for one deployment.
//
// Thread Safety: safe for concurrent use; per-session serialization comes
// from the session store.
type Service struct {
	catalog      *catalog.Provider
	interpreter  *query.Interpreter
	sessions     *session.Store
	interactions logstore.Logger
	logger       *slog.Logger
}

// NewService wires a Service. A nil interactions logger disables the
// interaction log.
func NewService(provider *catalog.Provider, interpreter *query.Interpreter, sessions *session.Store, interactions logstore.Logger, logger *slog.Logger) *Service {
	if interactions == nil {
		interactions = logstore.NopLogger{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	liveCount := sessions.Len
	sessionGaugeSource.Store(&liveCount)
	return &Service{
		catalog:      provider,
		interpreter:  interpreter,
		sessions:     sessions,
		interactions: interactions,
		logger:       logger,
	}
}

// Ask answers one question within a session.
//
// Description:
//
//	The whole turn holds the session's lock: interpret against the
//	conversation, execute, compose, then fold the outcome back into the
//	conversation. The catalog index is captured once at the start so a
//	concurrent reload cannot mix generations mid-turn.
func (s *Service) Ask(ctx context.Context, sessionID, text string) (Answer, error) {
	start := time.Now()
	defer func() { askDuration.Observe(time.Since(start).Seconds()) }()

	ctx, span := otel.Tracer("coursedb/assistant").Start(ctx, "assistant.Ask")
	defer span.End()
	span.SetAttributes(attribute.String("session_id", sessionID))

	idx := s.catalog.Current()
	vocab := query.Vocabulary{
		Codes:       idx.Codes(),
		Subjects:    idx.Subjects(),
		Instructors: idx.Instructors(),
	}

	convo, release := s.sessions.Acquire(sessionID)
	defer release()

	outcome, err := s.interpreter.Interpret(ctx, text, convo, vocab)
	if err != nil {
		askTotal.WithLabelValues("error").Inc()
		return Answer{}, err
	}

	if outcome.Clarification != nil {
		convo.Turns++
		answer := Answer{
			Text:      compose.ComposeClarification(outcome.Clarification),
			Clarified: true,
		}
		s.record(ctx, sessionID, text, nil, answer.Text)
		askTotal.WithLabelValues("clarification").Inc()
		return answer, nil
	}

	q := outcome.Query
	result := search.Run(ctx, idx, q)
	searchMatches.Observe(float64(len(result.Sections)))

	var conflicts *catalog.ConflictReport
	if q.Intent == query.IntentConflictCheck {
		report := catalog.CheckConflicts(result.Sections)
		conflicts = &report
	}

	answerText := compose.Compose(compose.Input{
		Query:       q,
		Result:      result,
		Conflicts:   conflicts,
		Suggestions: s.suggestions(idx, result),
	})

	s.updateContext(convo, q, result)
	s.record(ctx, sessionID, text, q, answerText)

	s.logger.Info("turn answered",
		slog.String("session_id", sessionID),
		slog.String("intent", string(q.Intent)),
		slog.Int("matches", len(result.Sections)),
		slog.Bool("used_context", q.UsedContext))
	askTotal.WithLabelValues("answered").Inc()
	return Answer{Text: answerText, Query: q}, nil
}

// suggestions fuzzy-corrects unknown codes and subjects against the live
// vocabulary for the composer's "did you mean" line.
func (s *Service) suggestions(idx *catalog.Index, result search.Result) []string {
	var out []string
	for _, code := range result.UnknownCodes {
		if match, ok := query.NearestTerm(code, idx.Codes(), 2); ok {
			out = append(out, match)
		}
	}
	for _, subj := range result.UnknownSubjects {
		if match, ok := query.NearestTerm(subj, idx.Subjects(), 2); ok {
			out = append(out, match)
		}
	}
	return out
}

// updateContext folds an answered turn back into the conversation.
func (s *Service) updateContext(convo *query.Context, q *query.StructuredQuery, result search.Result) {
	convo.Turns++
	convo.LastFilters = q.Filters

	if len(result.Courses) > 0 {
		codes := make([]string, 0, len(result.Courses))
		for _, c := range result.Courses {
			codes = append(codes, c.Code)
		}
		convo.LastCourses = codes
	} else if len(q.CourseCodes) > 0 {
		convo.LastCourses = append([]string(nil), q.CourseCodes...)
	}

	if len(q.Subjects) > 0 {
		convo.LastSubjects = append([]string(nil), q.Subjects...)
	}

	ids := make([]string, 0, len(result.Sections))
	for _, sec := range result.Sections {
		ids = append(ids, sec.CourseCode+"/"+sec.ID)
	}
	convo.LastResultIDs = ids
}

// record emits the interaction log entry; failures never fail the turn.
func (s *Service) record(ctx context.Context, sessionID, text string, q *query.StructuredQuery, response string) {
	err := s.interactions.Log(ctx, logstore.Entry{
		Timestamp: time.Now().UTC(),
		SessionID: sessionID,
		UserText:  text,
		Query:     q,
		Response:  response,
	})
	if err != nil {
		s.logger.Warn("interaction log write failed", slog.String("error", err.Error()))
	}
}

// Conversation reports whether a session has history and how many turns.
func (s *Service) Conversation(sessionID string) (turns int, ok bool) {
	return s.sessions.Peek(sessionID)
}

// Clear resets a session's conversation.
func (s *Service) Clear(sessionID string) {
	s.sessions.Clear(sessionID)
	s.logger.Info("conversation cleared", slog.String("session_id", sessionID))
}

// CoursesLoaded returns the live catalog's course count.
func (s *Service) CoursesLoaded() int {
	return s.catalog.Current().CourseCount()
}
