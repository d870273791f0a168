// Copyright (C) 2025 Savwangs
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package logstore

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Savwangs/course-database/services/assistant/query"
)

func TestFileLoggerWritesOneLinePerTurn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "interactions.jsonl")
	l, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger() error = %v", err)
	}
	defer l.Close()

	for i, text := range []string{"show me COMSC-110", "only the online ones"} {
		err := l.Log(context.Background(), Entry{
			Timestamp: time.Now(),
			SessionID: "sess-1",
			UserText:  text,
			Query:     &query.StructuredQuery{Intent: query.IntentSearch, Raw: text},
			Response:  "...",
		})
		if err != nil {
			t.Fatalf("Log(%d) error = %v", i, err)
		}
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open log: %v", err)
	}
	defer f.Close()

	var lines int
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines++
		var e Entry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			t.Errorf("line %d is not valid JSON: %v", lines, err)
		}
		if e.SessionID != "sess-1" {
			t.Errorf("line %d session = %q", lines, e.SessionID)
		}
	}
	if lines != 2 {
		t.Errorf("lines = %d, want 2", lines)
	}
}

func TestBadgerLoggerRoundTrip(t *testing.T) {
	l, err := NewBadgerLogger(t.TempDir())
	if err != nil {
		t.Fatalf("NewBadgerLogger() error = %v", err)
	}
	defer l.Close()

	for _, text := range []string{"first question", "second question"} {
		if err := l.Log(context.Background(), Entry{SessionID: "sess-9", UserText: text}); err != nil {
			t.Fatalf("Log() error = %v", err)
		}
	}
	if err := l.Log(context.Background(), Entry{SessionID: "other", UserText: "unrelated"}); err != nil {
		t.Fatalf("Log() error = %v", err)
	}

	entries, err := l.Session("sess-9")
	if err != nil {
		t.Fatalf("Session() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	if entries[0].UserText != "first question" || entries[1].UserText != "second question" {
		t.Errorf("entries out of order: %+v", entries)
	}
}

func TestNopLogger(t *testing.T) {
	var l Logger = NopLogger{}
	if err := l.Log(context.Background(), Entry{}); err != nil {
		t.Errorf("NopLogger.Log() error = %v", err)
	}
}
