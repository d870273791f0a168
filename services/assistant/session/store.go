// Copyright (C) 2025 Savwangs
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package session keeps per-session conversation state in memory.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Savwangs/course-database/services/assistant/query"
)

// DefaultTTL is how long an idle conversation is kept.
const DefaultTTL = 30 * time.Minute

// Store holds conversation contexts keyed by session id.
//
// Description:
//
//	Acquire hands out the session's context together with a release func
//	and holds a per-session lock in between, so a whole turn (interpret,
//	search, context update) runs without interleaving with another request
//	on the same session. Different sessions never contend.
//
// Thread Safety: safe for concurrent use.
type Store struct {
	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time

	mu       sync.Mutex
	sessions map[string]*entry
}

type entry struct {
	mu        sync.Mutex
	convo     *query.Context
	updatedAt time.Time
}

// NewStore builds a Store with the given idle TTL; zero means DefaultTTL.
func NewStore(ttl time.Duration, logger *slog.Logger) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		ttl:      ttl,
		logger:   logger,
		now:      time.Now,
		sessions: make(map[string]*entry),
	}
}

// Acquire returns the session's conversation context with its lock held.
// The caller must invoke release exactly once when the turn is done.
// Unknown and expired sessions start fresh.
func (s *Store) Acquire(id string) (*query.Context, func()) {
	s.mu.Lock()
	e, ok := s.sessions[id]
	if ok && s.now().Sub(e.updatedAt) > s.ttl {
		delete(s.sessions, id)
		ok = false
	}
	if !ok {
		e = &entry{convo: &query.Context{}, updatedAt: s.now()}
		s.sessions[id] = e
	}
	s.mu.Unlock()

	e.mu.Lock()
	return e.convo, func() {
		// updatedAt is guarded by the store lock; Peek and the sweeper
		// read it without holding the per-session lock.
		s.mu.Lock()
		e.updatedAt = s.now()
		s.mu.Unlock()
		e.mu.Unlock()
	}
}

// Peek reports whether the session has history and how many turns. It may
// block briefly behind an in-flight turn on the same session.
func (s *Store) Peek(id string) (turns int, ok bool) {
	s.mu.Lock()
	e, found := s.sessions[id]
	if found && s.now().Sub(e.updatedAt) > s.ttl {
		found = false
	}
	s.mu.Unlock()
	if !found {
		return 0, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.convo.Turns, true
}

// Clear resets the session's conversation immediately.
func (s *Store) Clear(id string) {
	s.mu.Lock()
	e, ok := s.sessions[id]
	s.mu.Unlock()
	if !ok {
		return
	}
	e.mu.Lock()
	e.convo.Clear()
	e.mu.Unlock()
	s.mu.Lock()
	e.updatedAt = s.now()
	s.mu.Unlock()
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// SweepOnce drops expired sessions and returns how many were removed.
func (s *Store) SweepOnce() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	cutoff := s.now().Add(-s.ttl)
	for id, e := range s.sessions {
		if e.updatedAt.Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// Run sweeps expired sessions periodically until ctx is cancelled.
func (s *Store) Run(ctx context.Context) error {
	interval := s.ttl / 2
	if interval > 5*time.Minute {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if removed := s.SweepOnce(); removed > 0 {
				s.logger.Debug("swept expired sessions", slog.Int("removed", removed))
			}
		}
	}
}
