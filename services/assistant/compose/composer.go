// Copyright (C) 2025 Savwangs
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package compose renders query results into the assistant's reply text.
//
// Composition is pure string assembly over already-sorted results: the same
// input always yields the byte-identical reply. No LLM touches the output.
package compose

import (
	"fmt"
	"strings"

	"github.com/Savwangs/course-database/services/assistant/catalog"
	"github.com/Savwangs/course-database/services/assistant/query"
	"github.com/Savwangs/course-database/services/assistant/search"
)

// Input carries everything one reply needs.
type Input struct {
	Query  *query.StructuredQuery
	Result search.Result

	// Conflicts is set for conflict-check intents.
	Conflicts *catalog.ConflictReport

	// Suggestions are fuzzy corrections for unknown codes/subjects,
	// already resolved by the caller.
	Suggestions []string
}

// Compose renders the reply for one resolved query.
func Compose(in Input) string {
	switch in.Query.Intent {
	case query.IntentPrerequisite:
		return composePrerequisites(in)
	case query.IntentInstructorLookup:
		return composeInstructors(in)
	case query.IntentComparison:
		return composeComparison(in)
	case query.IntentConflictCheck:
		return composeConflicts(in)
	default:
		return composeSearch(in)
	}
}

// ComposeClarification renders a clarification question with its numbered
// candidates.
func ComposeClarification(cl *query.Clarification) string {
	var b strings.Builder
	b.WriteString(cl.Question)
	if len(cl.Candidates) > 0 {
		b.WriteString("\n")
		for i, cand := range cl.Candidates {
			fmt.Fprintf(&b, "\n  %d. %s", i+1, cand.Label)
		}
	}
	return b.String()
}

// =============================================================================
// Search replies
// =============================================================================

// formatOrder fixes the group order in every reply.
var formatOrder = []struct {
	format catalog.Format
	header string
}{
	{catalog.FormatHybrid, "HYBRID"},
	{catalog.FormatInPerson, "IN-PERSON"},
	{catalog.FormatOnline, "ONLINE"},
}

func composeSearch(in Input) string {
	if len(in.Result.Sections) == 0 {
		return composeNotFound(in)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d matching section%s:\n", len(in.Result.Sections), plural(len(in.Result.Sections)))

	for _, group := range formatOrder {
		var lines []string
		for _, s := range in.Result.Sections {
			if s.Format == group.format {
				lines = append(lines, "  "+sectionLine(s, courseTitle(in.Result.Courses, s.CourseCode)))
			}
		}
		if len(lines) == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n%s:\n", group.header)
		b.WriteString(strings.Join(lines, "\n"))
		b.WriteString("\n")
	}

	b.WriteString(nextSteps(in))
	return b.String()
}

func sectionLine(s *catalog.Section, title string) string {
	parts := []string{fmt.Sprintf("%s section %s", s.CourseCode, s.ID)}
	if title != "" {
		parts[0] = fmt.Sprintf("%s (%s) section %s", s.CourseCode, title, s.ID)
	}
	if s.Instructor != "" {
		parts = append(parts, s.Instructor)
	}
	parts = append(parts, meetingSummary(s))
	parts = append(parts, string(s.Status))
	return strings.Join(parts, " | ")
}

func meetingSummary(s *catalog.Section) string {
	var out []string
	for _, m := range s.Meetings {
		switch {
		case m.Async:
			out = append(out, "Asynchronous")
		case m.Days == 0:
			out = append(out, m.Time.String())
		default:
			summary := m.Days.String() + " " + m.Time.String()
			if m.Location != "" && !strings.EqualFold(m.Location, "online") {
				summary += " (" + m.Location + ")"
			}
			out = append(out, summary)
		}
	}
	if len(out) == 0 {
		return "schedule TBA"
	}
	return strings.Join(out, "; ")
}

func courseTitle(courses []*catalog.Course, code string) string {
	for _, c := range courses {
		if c.Code == code {
			return c.Title
		}
	}
	return ""
}

func nextSteps(in Input) string {
	var b strings.Builder
	b.WriteString("\nNext steps:\n")
	b.WriteString("  - Ask about prerequisites, e.g. \"what are the prerequisites for ")
	if len(in.Result.Courses) > 0 {
		b.WriteString(in.Result.Courses[0].Code)
	} else {
		b.WriteString("COMSC-110")
	}
	b.WriteString("?\"\n")
	b.WriteString("  - Narrow down with filters like \"only the online ones\" or \"open sections on Tuesdays\".\n")
	b.WriteString("  - Check overlaps with \"do these conflict?\".")
	return b.String()
}

// composeNotFound tells "bad name" apart from "filters too strict" using
// the unfiltered baseline.
func composeNotFound(in Input) string {
	var b strings.Builder

	if len(in.Result.UnknownCodes) > 0 || len(in.Result.UnknownSubjects) > 0 {
		unknown := append(append([]string{}, in.Result.UnknownCodes...), in.Result.UnknownSubjects...)
		fmt.Fprintf(&b, "I couldn't find %s in the catalog.", strings.Join(unknown, ", "))
		if len(in.Suggestions) > 0 {
			fmt.Fprintf(&b, " Did you mean %s?", strings.Join(in.Suggestions, " or "))
		}
		return b.String()
	}

	if in.Result.Baseline > 0 {
		fmt.Fprintf(&b, "No sections match those filters, but the scope has %d section%s without them.",
			in.Result.Baseline, plural(in.Result.Baseline))
		b.WriteString(" Try relaxing a filter, e.g. drop the day or time restriction.")
		return b.String()
	}

	b.WriteString("I couldn't find any matching courses. Try a course code like COMSC-110 or a subject like MATH.")
	return b.String()
}

// =============================================================================
// Prerequisites, instructors, comparison, conflicts
// =============================================================================

func composePrerequisites(in Input) string {
	if len(in.Result.Courses) == 0 {
		return composeNotFound(in)
	}
	var b strings.Builder
	for i, c := range in.Result.Courses {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "%s (%s):\n", c.Code, c.Title)
		if c.Prerequisites != "" {
			fmt.Fprintf(&b, "  Prerequisites: %s", c.Prerequisites)
		} else {
			b.WriteString("  No prerequisites listed.")
		}
		if len(c.Equivalents) > 0 {
			fmt.Fprintf(&b, "\n  Equivalent courses: %s", strings.Join(c.Equivalents, ", "))
		}
	}
	return b.String()
}

func composeInstructors(in Input) string {
	if len(in.Result.Sections) == 0 {
		return composeNotFound(in)
	}
	var b strings.Builder
	for i, s := range in.Result.Sections {
		if i > 0 {
			b.WriteString("\n")
		}
		instructor := s.Instructor
		if instructor == "" {
			instructor = "staff (no instructor listed)"
		}
		fmt.Fprintf(&b, "%s section %s is taught by %s.", s.CourseCode, s.ID, instructor)
	}
	return b.String()
}

func composeComparison(in Input) string {
	if len(in.Result.Courses) < 2 {
		if len(in.Result.Courses) == 0 {
			return composeNotFound(in)
		}
		return "I need two courses to compare. Name both, e.g. \"compare COMSC-110 and COMSC-200\"."
	}
	var b strings.Builder
	b.WriteString("Comparison:\n")
	for _, c := range in.Result.Courses {
		open := 0
		for _, s := range c.Sections {
			if s.Status == catalog.StatusOpen {
				open++
			}
		}
		fmt.Fprintf(&b, "\n%s (%s):\n", c.Code, c.Title)
		fmt.Fprintf(&b, "  Units: %g\n", c.Units)
		if c.Prerequisites != "" {
			fmt.Fprintf(&b, "  Prerequisites: %s\n", c.Prerequisites)
		} else {
			b.WriteString("  Prerequisites: none listed\n")
		}
		fmt.Fprintf(&b, "  Sections: %d (%d open)", len(c.Sections), open)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func composeConflicts(in Input) string {
	if in.Conflicts == nil || len(in.Result.Sections) < 2 {
		return "I need at least two specific sections or courses to check for conflicts."
	}
	if !in.Conflicts.HasConflicts() {
		return fmt.Sprintf("No conflicts: the %d sections never overlap on a shared day.", len(in.Result.Sections))
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Found %d conflict%s:\n", len(in.Conflicts.Conflicts), plural(len(in.Conflicts.Conflicts)))
	for _, c := range in.Conflicts.Conflicts {
		fmt.Fprintf(&b, "\n  %s section %s (%s %s) overlaps %s section %s (%s %s) on %s.",
			c.A.CourseCode, c.A.ID, c.MeetingA.Days, c.MeetingA.Time,
			c.B.CourseCode, c.B.ID, c.MeetingB.Days, c.MeetingB.Time,
			c.Days)
	}
	return b.String()
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
