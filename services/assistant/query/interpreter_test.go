// Copyright (C) 2025 Savwangs
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package query

import (
	"context"
	"errors"
	"testing"

	"github.com/Savwangs/course-database/services/assistant/catalog"
)

// mockParser scripts a Parser for interpreter tests.
type mockParser struct {
	parseFunc func(ctx context.Context, text string, vocab Vocabulary) (Parse, error)
}

func (m *mockParser) Parse(ctx context.Context, text string, vocab Vocabulary) (Parse, error) {
	return m.parseFunc(ctx, text, vocab)
}

func newTestInterpreter(llm Parser) *Interpreter {
	cfg := DefaultInterpreterConfig()
	cfg.LLMRateLimit = 0 // no limiter in tests
	return NewInterpreter(testRules(), llm, cfg, nil)
}

func TestInterpretExplicitCode(t *testing.T) {
	it := newTestInterpreter(nil)
	convo := &Context{}

	out, err := it.Interpret(context.Background(), "tell me about COMSC-110", convo, testVocab())
	if err != nil {
		t.Fatalf("Interpret() error = %v", err)
	}
	if out.Query == nil {
		t.Fatal("expected a query outcome")
	}
	if out.Query.Confidence < 0.9 {
		t.Errorf("explicit code confidence = %v", out.Query.Confidence)
	}
	if out.Query.UsedContext {
		t.Error("fresh query marked as context-resolved")
	}
}

func TestInterpretFollowUpInheritsScopeAndFilters(t *testing.T) {
	it := newTestInterpreter(nil)
	convo := &Context{
		LastCourses: []string{"COMSC-110"},
		LastFilters: Filters{},
		Turns:       1,
	}

	out, err := it.Interpret(context.Background(), "only the online ones", convo, testVocab())
	if err != nil {
		t.Fatalf("Interpret() error = %v", err)
	}
	if out.Query == nil {
		t.Fatalf("expected a query, got clarification %+v", out.Clarification)
	}
	if len(out.Query.CourseCodes) != 1 || out.Query.CourseCodes[0] != "COMSC-110" {
		t.Errorf("inherited codes = %v", out.Query.CourseCodes)
	}
	if out.Query.Filters.Format != catalog.FormatOnline {
		t.Errorf("explicit format = %v, want online", out.Query.Filters.Format)
	}
	if !out.Query.UsedContext {
		t.Error("follow-up not marked as context-resolved")
	}
}

func TestInterpretBareFilterNarrowsPreviousAnswer(t *testing.T) {
	it := newTestInterpreter(nil)
	convo := &Context{
		LastCourses: []string{"COMSC-110"},
		Turns:       1,
	}

	// No pronoun, no follow-up phrasing: just a filter on its own.
	out, err := it.Interpret(context.Background(), "online only", convo, testVocab())
	if err != nil {
		t.Fatalf("Interpret() error = %v", err)
	}
	if out.Query == nil {
		t.Fatalf("expected a query, got clarification %+v", out.Clarification)
	}
	if len(out.Query.CourseCodes) != 1 || out.Query.CourseCodes[0] != "COMSC-110" {
		t.Errorf("inherited codes = %v, want previous scope", out.Query.CourseCodes)
	}
	if out.Query.Filters.Format != catalog.FormatOnline {
		t.Errorf("format = %v, want online", out.Query.Filters.Format)
	}
	if !out.Query.UsedContext {
		t.Error("bare-filter refinement not marked as context-resolved")
	}
}

func TestInterpretBareFilterWithoutAntecedentSearchesCatalog(t *testing.T) {
	it := newTestInterpreter(nil)

	out, err := it.Interpret(context.Background(), "what's open on saturdays?", &Context{}, testVocab())
	if err != nil {
		t.Fatalf("Interpret() error = %v", err)
	}
	if out.Query == nil {
		t.Fatalf("expected a whole-catalog query, got %+v", out.Clarification)
	}
	if out.Query.UsedContext {
		t.Error("fresh filter query marked as context-resolved")
	}
	if out.Query.Scoped() {
		t.Errorf("fresh filter query picked up a scope: %+v", out.Query)
	}
}

func TestInterpretExplicitFieldsWinOverInherited(t *testing.T) {
	it := newTestInterpreter(nil)
	convo := &Context{
		LastCourses: []string{"COMSC-110"},
		LastFilters: Filters{Format: catalog.FormatOnline, Days: catalog.Monday},
		Turns:       1,
	}

	out, err := it.Interpret(context.Background(), "what about the in person ones?", convo, testVocab())
	if err != nil {
		t.Fatalf("Interpret() error = %v", err)
	}
	if out.Query == nil {
		t.Fatal("expected a query outcome")
	}
	if out.Query.Filters.Format != catalog.FormatInPerson {
		t.Errorf("format = %v, explicit in-person should override inherited online", out.Query.Filters.Format)
	}
	if out.Query.Filters.Days != catalog.Monday {
		t.Errorf("days = %v, inherited Monday should persist", out.Query.Filters.Days)
	}
}

func TestInterpretPronounWithoutAntecedent(t *testing.T) {
	it := newTestInterpreter(nil)
	convo := &Context{}

	out, err := it.Interpret(context.Background(), "when does it meet?", convo, testVocab())
	if err != nil {
		t.Fatalf("Interpret() error = %v", err)
	}
	if out.Clarification == nil {
		t.Fatal("pronoun with no antecedent should yield a clarification")
	}
	if convo.Pending == nil {
		t.Error("clarification not stored as pending")
	}
}

func TestInterpretClearResetsAnaphora(t *testing.T) {
	it := newTestInterpreter(nil)
	convo := &Context{LastCourses: []string{"COMSC-110"}, Turns: 3}
	convo.Clear()

	out, err := it.Interpret(context.Background(), "when does it meet?", convo, testVocab())
	if err != nil {
		t.Fatalf("Interpret() error = %v", err)
	}
	if out.Clarification == nil {
		t.Error("pronoun after clear should yield a clarification")
	}
}

func TestInterpretOrdinalsResolveAgainstLastResults(t *testing.T) {
	it := newTestInterpreter(nil)
	convo := &Context{
		LastCourses:   []string{"COMSC-110"},
		LastResultIDs: []string{"COMSC-110/5657", "COMSC-110/9024"},
		Turns:         1,
	}

	out, err := it.Interpret(context.Background(), "who teaches the first one?", convo, testVocab())
	if err != nil {
		t.Fatalf("Interpret() error = %v", err)
	}
	if out.Query == nil {
		t.Fatalf("expected a query, got %+v", out.Clarification)
	}
	if len(out.Query.SectionIDs) != 1 || out.Query.SectionIDs[0] != "COMSC-110/5657" {
		t.Errorf("section ids = %v", out.Query.SectionIDs)
	}
	if out.Query.Intent != IntentInstructorLookup {
		t.Errorf("intent = %v", out.Query.Intent)
	}
}

func TestInterpretLowConfidenceClarifies(t *testing.T) {
	it := newTestInterpreter(nil)

	out, err := it.Interpret(context.Background(), "hello there", &Context{}, testVocab())
	if err != nil {
		t.Fatalf("Interpret() error = %v", err)
	}
	if out.Clarification == nil {
		t.Error("contentless question should yield a clarification")
	}
}

func TestInterpretClarificationAnswer(t *testing.T) {
	it := newTestInterpreter(nil)
	target := StructuredQuery{Intent: IntentSearch, CourseCodes: []string{"MATH-192"}}
	convo := &Context{
		Pending: &Clarification{
			Question: "Which one?",
			Candidates: []Interpretation{
				{Label: "COMSC-110", Query: StructuredQuery{Intent: IntentSearch, CourseCodes: []string{"COMSC-110"}}},
				{Label: "MATH-192", Query: target},
			},
		},
	}

	out, err := it.Interpret(context.Background(), "the second one", convo, testVocab())
	if err != nil {
		t.Fatalf("Interpret() error = %v", err)
	}
	if out.Query == nil {
		t.Fatal("clarification answer not resolved")
	}
	if out.Query.Intent != IntentClarificationAnswer {
		t.Errorf("intent = %v", out.Query.Intent)
	}
	if len(out.Query.CourseCodes) != 1 || out.Query.CourseCodes[0] != "MATH-192" {
		t.Errorf("codes = %v", out.Query.CourseCodes)
	}
	if convo.Pending != nil {
		t.Error("pending clarification not cleared")
	}
}

func TestInterpretLLMFallbackAfterFailures(t *testing.T) {
	calls := 0
	failing := &mockParser{parseFunc: func(_ context.Context, _ string, _ Vocabulary) (Parse, error) {
		calls++
		return Parse{}, errors.New("provider down")
	}}
	it := newTestInterpreter(failing)
	convo := &Context{}

	// Turn 1: two attempts (initial + retry), rules answer anyway.
	out, err := it.Interpret(context.Background(), "show me COMSC-110", convo, testVocab())
	if err != nil || out.Query == nil {
		t.Fatalf("turn 1: out=%+v err=%v", out, err)
	}
	if calls != 2 {
		t.Errorf("turn 1 LLM attempts = %d, want 2 (initial + retry)", calls)
	}

	// Turn 2: two more failures bench the LLM.
	if _, err := it.Interpret(context.Background(), "show me MATH-192", convo, testVocab()); err != nil {
		t.Fatalf("turn 2: %v", err)
	}
	if calls != 4 {
		t.Errorf("turn 2 LLM attempts = %d, want 4", calls)
	}

	// Turn 3: benched; no further LLM calls, rules still answer.
	out, err = it.Interpret(context.Background(), "show me ENGL-C1000", convo, testVocab())
	if err != nil || out.Query == nil {
		t.Fatalf("turn 3: out=%+v err=%v", out, err)
	}
	if calls != 4 {
		t.Errorf("turn 3 LLM attempts = %d, want 4 (benched)", calls)
	}
}

func TestInterpretLLMReadingWins(t *testing.T) {
	llm := &mockParser{parseFunc: func(_ context.Context, text string, _ Vocabulary) (Parse, error) {
		return Parse{Query: StructuredQuery{
			Raw:     text,
			Intent:  IntentConflictCheck,
			Filters: Filters{Format: catalog.FormatHybrid},
		}}, nil
	}}
	it := newTestInterpreter(llm)

	out, err := it.Interpret(context.Background(), "can I take COMSC-110 alongside something hybrid?", &Context{}, testVocab())
	if err != nil {
		t.Fatalf("Interpret() error = %v", err)
	}
	if out.Query == nil {
		t.Fatal("expected a query outcome")
	}
	if out.Query.Intent != IntentConflictCheck {
		t.Errorf("intent = %v, want LLM's conflict-check", out.Query.Intent)
	}
	// Rule-extracted code unioned in even though the LLM missed it.
	if len(out.Query.CourseCodes) != 1 || out.Query.CourseCodes[0] != "COMSC-110" {
		t.Errorf("codes = %v, want union with rule extraction", out.Query.CourseCodes)
	}
}
