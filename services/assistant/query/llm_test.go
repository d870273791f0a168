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
	"github.com/Savwangs/course-database/services/assistant/providers"
)

// mockChatClient lets each test script the provider's reply.
type mockChatClient struct {
	chatFunc func(ctx context.Context, messages []providers.Message, opts providers.ChatOptions) (string, error)
}

func (m *mockChatClient) Chat(ctx context.Context, messages []providers.Message, opts providers.ChatOptions) (string, error) {
	return m.chatFunc(ctx, messages, opts)
}

func TestLLMParserStrictJSON(t *testing.T) {
	client := &mockChatClient{chatFunc: func(_ context.Context, _ []providers.Message, _ providers.ChatOptions) (string, error) {
		return `{"intent":"search","course_codes":["COMSC-110"],"subjects":[],"filters":{"format":"online","days":["T","Th"],"days_any_of":true},"refers_to_previous":false}`, nil
	}}

	p, err := NewLLMParser(client, DefaultLLMParserConfig()).Parse(context.Background(), "online comsc on T or Th", testVocab())
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(p.Query.CourseCodes) != 1 || p.Query.CourseCodes[0] != "COMSC-110" {
		t.Errorf("codes = %v", p.Query.CourseCodes)
	}
	if p.Query.Filters.Format != catalog.FormatOnline {
		t.Errorf("format = %v", p.Query.Filters.Format)
	}
	if p.Query.Filters.Days != catalog.Tuesday|catalog.Thursday || !p.Query.Filters.DaysAnyOf {
		t.Errorf("days = %v anyOf=%v", p.Query.Filters.Days, p.Query.Filters.DaysAnyOf)
	}
}

func TestLLMParserTolerantOfFences(t *testing.T) {
	client := &mockChatClient{chatFunc: func(_ context.Context, _ []providers.Message, _ providers.ChatOptions) (string, error) {
		return "Here you go:\n```json\n{\"intent\":\"prerequisite\",\"course_codes\":[\"MATH-192\"]}\n```", nil
	}}

	p, err := NewLLMParser(client, DefaultLLMParserConfig()).Parse(context.Background(), "prereqs for math 192", testVocab())
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if p.Query.Intent != IntentPrerequisite {
		t.Errorf("intent = %v", p.Query.Intent)
	}
}

func TestLLMParserEnforcesAllowList(t *testing.T) {
	client := &mockChatClient{chatFunc: func(_ context.Context, _ []providers.Message, _ providers.ChatOptions) (string, error) {
		return `{"intent":"search","course_codes":["FAKE-999","COMSC-110"],"subjects":["BOGUS","MATH"]}`, nil
	}}

	p, err := NewLLMParser(client, DefaultLLMParserConfig()).Parse(context.Background(), "x", testVocab())
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(p.Query.CourseCodes) != 1 || p.Query.CourseCodes[0] != "COMSC-110" {
		t.Errorf("hallucinated code survived: %v", p.Query.CourseCodes)
	}
	if len(p.Query.Subjects) != 1 || p.Query.Subjects[0] != "MATH" {
		t.Errorf("hallucinated subject survived: %v", p.Query.Subjects)
	}
}

func TestLLMParserErrors(t *testing.T) {
	client := &mockChatClient{chatFunc: func(_ context.Context, _ []providers.Message, _ providers.ChatOptions) (string, error) {
		return "", errors.New("connection refused")
	}}
	if _, err := NewLLMParser(client, DefaultLLMParserConfig()).Parse(context.Background(), "x", testVocab()); err == nil {
		t.Error("transport error not surfaced")
	}

	client = &mockChatClient{chatFunc: func(_ context.Context, _ []providers.Message, _ providers.ChatOptions) (string, error) {
		return "I cannot help with that.", nil
	}}
	if _, err := NewLLMParser(client, DefaultLLMParserConfig()).Parse(context.Background(), "x", testVocab()); err == nil {
		t.Error("non-JSON reply not surfaced as error")
	}
}
