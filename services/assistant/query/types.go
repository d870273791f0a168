// Copyright (C) 2025 Savwangs
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package query turns free-form questions into structured catalog queries.
//
// Parsing is layered: a deterministic rule parser always runs, an optional
// LLM parser can override it for phrasings the rules miss, and the
// Interpreter on top owns conversation policy (follow-up merging, pronoun
// resolution, clarification, confidence gating).
package query

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/Savwangs/course-database/services/assistant/catalog"
)

// Sentinel errors surfaced by the interpreter.
var (
	// ErrNoAntecedent means the question referred back ("it", "those") but
	// the conversation has no prior result to resolve against.
	ErrNoAntecedent = errors.New("no antecedent in conversation")

	// ErrEmptyQuery means the question had no usable content.
	ErrEmptyQuery = errors.New("empty query")
)

// =============================================================================
// Intents
// =============================================================================

// Intent classifies what the user is asking for.
type Intent string

// Recognized intents.
const (
	IntentSearch              Intent = "search"
	IntentPrerequisite        Intent = "prerequisite"
	IntentInstructorLookup    Intent = "instructor-lookup"
	IntentComparison          Intent = "comparison"
	IntentConflictCheck       Intent = "conflict-check"
	IntentClarificationAnswer Intent = "clarification-answer"
)

// =============================================================================
// Filters
// =============================================================================

// Filters narrows a section search. Zero values mean "not requested", which
// is what makes follow-up merging work: only explicitly set fields override
// inherited ones.
type Filters struct {
	Format     catalog.Format
	Status     catalog.Status
	Instructor string

	// Days is the requested day set. With DaysAnyOf false (the default)
	// a section must meet on every requested day; with DaysAnyOf true,
	// on at least one. Only an explicit "or" between day words sets
	// DaysAnyOf.
	Days      catalog.DaySet
	DaysAnyOf bool

	// Time restricts meeting start times to a half-open window
	// (morning/afternoon/evening buckets or an explicit range).
	Time catalog.TimeRange
}

// IsZero reports whether no filter field is set.
func (f Filters) IsZero() bool {
	return f.Format == "" && f.Status == "" && f.Instructor == "" &&
		f.Days == 0 && f.Time.IsZero()
}

// MergeFilters overlays explicit fields of over onto base.
// Setting Days also carries over's DaysAnyOf flag.
func MergeFilters(base, over Filters) Filters {
	out := base
	if over.Format != "" {
		out.Format = over.Format
	}
	if over.Status != "" {
		out.Status = over.Status
	}
	if over.Instructor != "" {
		out.Instructor = over.Instructor
	}
	if over.Days != 0 {
		out.Days = over.Days
		out.DaysAnyOf = over.DaysAnyOf
	}
	if !over.Time.IsZero() {
		out.Time = over.Time
	}
	return out
}

// =============================================================================
// Structured queries
// =============================================================================

// StructuredQuery is the resolved, executable form of one question.
type StructuredQuery struct {
	Intent      Intent
	CourseCodes []string
	Subjects    []string

	// SectionIDs holds "CODE/ID" keys when the question targets specific
	// sections from an earlier answer ("who teaches the first one?").
	SectionIDs []string

	Filters Filters

	// Confidence is the interpreter's belief that this reading is what
	// the user meant, in [0,1].
	Confidence float64

	// UsedContext marks queries that inherited scope or filters from the
	// conversation rather than the question text.
	UsedContext bool

	// Raw preserves the original question text for logging.
	Raw string
}

// Scoped reports whether the query names any courses, subjects or sections.
func (q *StructuredQuery) Scoped() bool {
	return len(q.CourseCodes) > 0 || len(q.Subjects) > 0 || len(q.SectionIDs) > 0
}

// Normalize uppercases and dedups codes and subjects, keeping sorted order
// so downstream output is deterministic.
func (q *StructuredQuery) Normalize() {
	q.CourseCodes = normalizeSet(q.CourseCodes)
	q.Subjects = normalizeSet(q.Subjects)
}

func normalizeSet(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := in[:0]
	for _, v := range in {
		v = strings.ToUpper(strings.TrimSpace(v))
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// =============================================================================
// Clarification
// =============================================================================

// Interpretation is one candidate reading offered to the user.
type Interpretation struct {
	Label      string
	Query      StructuredQuery
	Confidence float64
}

// Clarification asks the user to disambiguate instead of guessing.
type Clarification struct {
	Question   string
	Candidates []Interpretation
}

// =============================================================================
// Conversation context
// =============================================================================

// Context is the per-session conversation state the interpreter resolves
// follow-ups against. The session store owns locking; the interpreter treats
// the value it is handed as exclusively held for the turn.
type Context struct {
	LastCourses  []string
	LastSubjects []string
	LastFilters  Filters

	// LastResultIDs are the "CODE/ID" keys of the previous answer's
	// sections, in the order they were presented.
	LastResultIDs []string

	// Pending holds an unanswered clarification. Its candidates are not
	// part of the context proper until the user picks one.
	Pending *Clarification

	Turns int
}

// HasAntecedent reports whether a back-reference can resolve.
func (c *Context) HasAntecedent() bool {
	return c != nil && (len(c.LastCourses) > 0 || len(c.LastSubjects) > 0 || len(c.LastResultIDs) > 0)
}

// Clear drops all remembered state in place.
func (c *Context) Clear() {
	*c = Context{}
}

// =============================================================================
// Parser contract
// =============================================================================

// Vocabulary is the catalog's allow-list handed to parsers: only codes and
// subjects present here may appear in a parse.
type Vocabulary struct {
	Codes       []string
	Subjects    []string
	Instructors []string
}

// Parse is a raw parser output before the interpreter applies policy.
type Parse struct {
	Query StructuredQuery

	// Anaphoric marks questions that refer back to earlier results
	// ("when does it meet", "only the online ones").
	Anaphoric bool

	// Ordinals are 1-based positions into the previous answer's sections
	// ("the first one"); -1 means the last one.
	Ordinals []int

	// FollowUp marks scoped refinements phrased as continuations
	// ("what about MATH-192?"): new scope, inherited filters.
	FollowUp bool
}

// Parser extracts a structured query from question text. Implementations
// must be safe for concurrent use.
type Parser interface {
	Parse(ctx context.Context, text string, vocab Vocabulary) (Parse, error)
}
