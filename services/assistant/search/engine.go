// Copyright (C) 2025 Savwangs
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package search executes structured queries against a catalog index.
package search

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/Savwangs/course-database/services/assistant/catalog"
	"github.com/Savwangs/course-database/services/assistant/query"
)

// Result is the outcome of executing one query.
type Result struct {
	// Sections are the matches, always in deterministic order
	// (course code asc, section id asc).
	Sections []*catalog.Section

	// Courses are the scoped course records, for prerequisite and
	// comparison answers.
	Courses []*catalog.Course

	// Baseline is how many sections the scope had before filters were
	// applied. Zero matches with a non-zero baseline means the filters
	// were too strict; a zero baseline means the scope itself was empty.
	Baseline int

	// UnknownCodes and UnknownSubjects are requested names the catalog
	// does not have, kept for the composer's guidance. The parsers
	// allow-list names against the live vocabulary, so these fill in only
	// when a query carries names from elsewhere: conversation scope
	// inherited from before a catalog reload, or a caller bypassing the
	// interpreter.
	UnknownCodes    []string
	UnknownSubjects []string
}

// Run executes a resolved query against the index.
//
// Description:
//
//	Scope resolution first (explicit sections > codes > subjects > whole
//	catalog), then filters. Filtering never reorders: the scope is built
//	in deterministic order and each filter only removes. The same query
//	against the same index always yields the identical result.
func Run(ctx context.Context, idx *catalog.Index, q *query.StructuredQuery) Result {
	_, span := otel.Tracer("coursedb/search").Start(ctx, "search.Run")
	defer span.End()

	res := resolveScope(idx, q)
	res.Baseline = len(res.Sections)
	res.Sections = applyFilters(res.Sections, q.Filters)

	span.SetAttributes(
		attribute.Int("baseline", res.Baseline),
		attribute.Int("matches", len(res.Sections)),
	)
	return res
}

// resolveScope picks the candidate sections the filters will narrow.
func resolveScope(idx *catalog.Index, q *query.StructuredQuery) Result {
	var res Result

	if len(q.SectionIDs) > 0 {
		for _, key := range q.SectionIDs {
			code, id, ok := strings.Cut(key, "/")
			if !ok {
				continue
			}
			if s := idx.Section(code, id); s != nil {
				res.Sections = append(res.Sections, s)
				if c := idx.ByCode(code); c != nil {
					res.Courses = appendCourse(res.Courses, c)
				}
			}
		}
		catalog.SortSections(res.Sections)
		return res
	}

	if len(q.CourseCodes) > 0 {
		for _, code := range q.CourseCodes {
			c := idx.ByCode(code)
			if c == nil {
				res.UnknownCodes = append(res.UnknownCodes, code)
				continue
			}
			res.Courses = appendCourse(res.Courses, c)
			res.Sections = append(res.Sections, c.Sections...)
		}
		catalog.SortSections(res.Sections)
		return res
	}

	if len(q.Subjects) > 0 {
		for _, subj := range q.Subjects {
			courses := idx.BySubject(subj)
			if len(courses) == 0 {
				res.UnknownSubjects = append(res.UnknownSubjects, subj)
				continue
			}
			for _, c := range courses {
				res.Courses = appendCourse(res.Courses, c)
				res.Sections = append(res.Sections, c.Sections...)
			}
		}
		catalog.SortSections(res.Sections)
		return res
	}

	res.Courses = idx.Courses()
	res.Sections = idx.Sections()
	return res
}

func appendCourse(courses []*catalog.Course, c *catalog.Course) []*catalog.Course {
	for _, existing := range courses {
		if existing.Code == c.Code {
			return courses
		}
	}
	return append(courses, c)
}

// applyFilters removes sections that fail any requested filter.
func applyFilters(sections []*catalog.Section, f query.Filters) []*catalog.Section {
	if f.IsZero() {
		return sections
	}
	out := make([]*catalog.Section, 0, len(sections))
	for _, s := range sections {
		if matches(s, f) {
			out = append(out, s)
		}
	}
	return out
}

func matches(s *catalog.Section, f query.Filters) bool {
	if f.Format != "" && !matchesFormat(s.Format, f.Format) {
		return false
	}
	if f.Status != "" && s.Status != f.Status {
		return false
	}
	if f.Instructor != "" &&
		!strings.Contains(catalog.NormalizeInstructor(s.Instructor), catalog.NormalizeInstructor(f.Instructor)) {
		return false
	}
	if f.Days != 0 && !matchesDays(s, f) {
		return false
	}
	if !f.Time.IsZero() && !matchesTime(s, f.Time) {
		return false
	}
	return true
}

// matchesFormat treats "in-person" as including hybrid sections: a hybrid
// section does meet in a room.
func matchesFormat(have, want catalog.Format) bool {
	if have == want {
		return true
	}
	return want == catalog.FormatInPerson && have == catalog.FormatHybrid
}

// matchesDays applies the conjunctive/disjunctive day filter against the
// union of the section's meeting days.
func matchesDays(s *catalog.Section, f query.Filters) bool {
	combined := s.CombinedDays()
	if f.DaysAnyOf {
		return combined.Intersects(f.Days)
	}
	return combined.Contains(f.Days)
}

// matchesTime keeps sections with at least one timed meeting starting
// inside the requested window.
func matchesTime(s *catalog.Section, window catalog.TimeRange) bool {
	for _, m := range s.Meetings {
		if m.Async {
			continue
		}
		if m.Time.Start >= window.Start && m.Time.Start < window.End {
			return true
		}
	}
	return false
}
