// Copyright (C) 2025 Savwangs
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package catalog

// Conflict is one pair of meetings that collide on at least one shared day.
type Conflict struct {
	A        *Section
	B        *Section
	MeetingA Meeting
	MeetingB Meeting
	// Days is the shared-day intersection the collision happens on.
	Days DaySet
}

// ConflictReport is the outcome of checking one set of sections.
type ConflictReport struct {
	Conflicts []Conflict
}

// HasConflicts reports whether any pair collides.
func (r ConflictReport) HasConflicts() bool {
	return len(r.Conflicts) > 0
}

// CheckConflicts examines every unordered pair of the given sections.
//
// Description:
//
//	Two sections conflict when any meeting of one shares at least one day
//	with a meeting of the other AND the two half-open time ranges overlap.
//	Meetings on disjoint days never conflict regardless of time, and
//	asynchronous meetings never conflict with anything. Sections arrive in
//	deterministic order, so the report's pair order is deterministic too.
func CheckConflicts(sections []*Section) ConflictReport {
	var report ConflictReport
	for i := 0; i < len(sections); i++ {
		for j := i + 1; j < len(sections); j++ {
			report.Conflicts = append(report.Conflicts, pairConflicts(sections[i], sections[j])...)
		}
	}
	return report
}

func pairConflicts(a, b *Section) []Conflict {
	var out []Conflict
	for _, ma := range a.Meetings {
		if ma.Async {
			continue
		}
		for _, mb := range b.Meetings {
			if mb.Async {
				continue
			}
			shared := ma.Days & mb.Days
			if shared == 0 {
				continue
			}
			if !ma.Time.Overlaps(mb.Time) {
				continue
			}
			out = append(out, Conflict{A: a, B: b, MeetingA: ma, MeetingB: mb, Days: shared})
		}
	}
	return out
}
