// Copyright (C) 2025 Savwangs
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package session

import (
	"sync"
	"testing"
	"time"
)

func TestAcquirePersistsAcrossTurns(t *testing.T) {
	s := NewStore(time.Hour, nil)

	convo, release := s.Acquire("sess-1")
	convo.LastCourses = []string{"COMSC-110"}
	convo.Turns = 1
	release()

	convo, release = s.Acquire("sess-1")
	defer release()
	if convo.Turns != 1 || len(convo.LastCourses) != 1 {
		t.Errorf("state lost: %+v", convo)
	}
}

func TestAcquireSerializesSameSession(t *testing.T) {
	s := NewStore(time.Hour, nil)
	var order []int
	var mu sync.Mutex

	convo, release := s.Acquire("sess-1")
	_ = convo

	done := make(chan struct{})
	go func() {
		c2, r2 := s.Acquire("sess-1")
		mu.Lock()
		order = append(order, 2)
		mu.Unlock()
		c2.Turns++
		r2()
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	order = append(order, 1)
	mu.Unlock()
	release()
	<-done

	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Errorf("second Acquire ran before first release: %v", order)
	}
}

func TestClearResetsContext(t *testing.T) {
	s := NewStore(time.Hour, nil)
	convo, release := s.Acquire("sess-1")
	convo.LastCourses = []string{"COMSC-110"}
	convo.Turns = 2
	release()

	s.Clear("sess-1")

	convo, release = s.Acquire("sess-1")
	defer release()
	if convo.Turns != 0 || convo.HasAntecedent() {
		t.Errorf("context not cleared: %+v", convo)
	}
}

func TestExpiryStartsFresh(t *testing.T) {
	s := NewStore(time.Minute, nil)
	base := time.Now()
	s.now = func() time.Time { return base }

	convo, release := s.Acquire("sess-1")
	convo.Turns = 3
	release()

	s.now = func() time.Time { return base.Add(2 * time.Minute) }
	convo, release = s.Acquire("sess-1")
	defer release()
	if convo.Turns != 0 {
		t.Errorf("expired session survived: %+v", convo)
	}
}

func TestSweepOnce(t *testing.T) {
	s := NewStore(time.Minute, nil)
	base := time.Now()
	s.now = func() time.Time { return base }

	for _, id := range []string{"a", "b", "c"} {
		_, release := s.Acquire(id)
		release()
	}
	if s.Len() != 3 {
		t.Fatalf("Len() = %d", s.Len())
	}

	s.now = func() time.Time { return base.Add(2 * time.Minute) }
	if removed := s.SweepOnce(); removed != 3 {
		t.Errorf("SweepOnce() = %d, want 3", removed)
	}
	if s.Len() != 0 {
		t.Errorf("Len() after sweep = %d", s.Len())
	}
}

func TestPeek(t *testing.T) {
	s := NewStore(time.Hour, nil)
	if _, ok := s.Peek("missing"); ok {
		t.Error("Peek on missing session reported history")
	}
	convo, release := s.Acquire("sess-1")
	convo.Turns = 4
	release()
	turns, ok := s.Peek("sess-1")
	if !ok || turns != 4 {
		t.Errorf("Peek = %d, %v", turns, ok)
	}
}
