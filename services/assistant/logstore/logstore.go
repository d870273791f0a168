// Copyright (C) 2025 Savwangs
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package logstore records the assistant's interaction log: one entry per
// answered turn with the raw question, the resolved query and the reply.
//
// Logging never fails a turn; callers log and swallow errors from Log.
package logstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/Savwangs/course-database/services/assistant/query"
)

// Entry is one logged interaction.
type Entry struct {
	Timestamp time.Time              `json:"timestamp"`
	SessionID string                 `json:"session_id"`
	UserText  string                 `json:"user_prompt"`
	Query     *query.StructuredQuery `json:"parsed_query,omitempty"`
	Response  string                 `json:"response"`
}

// Logger records interaction entries.
//
// Thread Safety: implementations must be safe for concurrent use.
type Logger interface {
	Log(ctx context.Context, entry Entry) error
	Close() error
}

// =============================================================================
// JSONL file logger
// =============================================================================

// FileLogger appends one JSON object per line to a log file.
type FileLogger struct {
	mu sync.Mutex
	f  *os.File
}

// NewFileLogger opens (or creates) the JSONL log at path.
func NewFileLogger(path string) (*FileLogger, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open interaction log: %w", err)
	}
	return &FileLogger{f: f}, nil
}

// Log implements Logger.
func (l *FileLogger) Log(_ context.Context, entry Entry) error {
	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal log entry: %w", err)
	}
	line = append(line, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.f.Write(line); err != nil {
		return fmt.Errorf("append log entry: %w", err)
	}
	return nil
}

// Close implements Logger.
func (l *FileLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.f.Close()
}

// =============================================================================
// Nop logger
// =============================================================================

// NopLogger discards entries; used in tests and when logging is disabled.
type NopLogger struct{}

// Log implements Logger.
func (NopLogger) Log(context.Context, Entry) error { return nil }

// Close implements Logger.
func (NopLogger) Close() error { return nil }
