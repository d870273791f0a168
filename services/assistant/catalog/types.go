// Copyright (C) 2025 Savwangs
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package catalog defines the immutable course data model and the read-only
// lookup index built over it at load time.
//
// The catalog is loaded once from a JSON export of the section scraper and
// never mutated in place; refreshing the catalog builds a brand-new Index
// and swaps it atomically (see Provider).
package catalog

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// =============================================================================
// Days
// =============================================================================

// DaySet is a bit set over the seven weekdays.
//
// Description:
//
//	Meetings carry a DaySet; queries carry a DaySet plus a conjunctive/
//	disjunctive flag. The zero value is the empty set.
type DaySet uint8

// Weekday bits, Monday first to match the catalog's "M T W Th F Sa Su" tokens.
const (
	Monday DaySet = 1 << iota
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

// dayTokens maps catalog and natural-language day tokens to bits.
// Order matters when formatting: longest-token-first when parsing "TTh".
var dayTokens = map[string]DaySet{
	"m": Monday, "mon": Monday, "monday": Monday,
	"t": Tuesday, "tu": Tuesday, "tue": Tuesday, "tues": Tuesday, "tuesday": Tuesday,
	"w": Wednesday, "wed": Wednesday, "wednesday": Wednesday,
	"th": Thursday, "thu": Thursday, "thur": Thursday, "thurs": Thursday, "thursday": Thursday,
	"f": Friday, "fri": Friday, "friday": Friday,
	"sa": Saturday, "sat": Saturday, "saturday": Saturday,
	"su": Sunday, "sun": Sunday, "sunday": Sunday,
}

// dayOrder lists bits in display order with their canonical short names.
var dayOrder = []struct {
	bit  DaySet
	name string
}{
	{Monday, "M"},
	{Tuesday, "T"},
	{Wednesday, "W"},
	{Thursday, "Th"},
	{Friday, "F"},
	{Saturday, "Sa"},
	{Sunday, "Su"},
}

// ParseDay parses a single day token ("Th", "thursday") into its bit.
//
// Outputs:
//   - DaySet: The single-day bit, 0 if unrecognized.
//   - bool: True if the token was recognized.
func ParseDay(token string) (DaySet, bool) {
	d, ok := dayTokens[strings.ToLower(strings.TrimSpace(token))]
	return d, ok
}

// ParseDays parses a catalog days field such as "M W", "TTh", "T Th" or
// "Tue/Thu" into a DaySet.
//
// Description:
//
//	Splits on whitespace, commas and slashes, then resolves each token.
//	The glued forms "MW" and "TTh" produced by some scrapes are split
//	before token resolution. "Online", "TBA" and "Asynchronous" yield the
//	empty set without error; genuinely unknown tokens return an error so
//	the loader can flag the record.
func ParseDays(raw string) (DaySet, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	low := strings.ToLower(s)
	if low == "online" || low == "tba" || low == "asynchronous" || low == "see comments" {
		return 0, nil
	}

	// Un-glue the common compact forms before splitting.
	s = strings.ReplaceAll(s, "TTh", "T Th")
	s = strings.ReplaceAll(s, "MW", "M W")
	s = strings.ReplaceAll(s, "/", " ")
	s = strings.ReplaceAll(s, ",", " ")

	var set DaySet
	for _, tok := range strings.Fields(s) {
		d, ok := ParseDay(tok)
		if !ok {
			return 0, fmt.Errorf("unknown day token %q in %q", tok, raw)
		}
		set |= d
	}
	return set, nil
}

// Contains reports whether the set includes every bit of other.
func (d DaySet) Contains(other DaySet) bool {
	return d&other == other
}

// Intersects reports whether the two sets share at least one day.
func (d DaySet) Intersects(other DaySet) bool {
	return d&other != 0
}

// Count returns the number of days in the set.
func (d DaySet) Count() int {
	n := 0
	for v := d; v != 0; v &= v - 1 {
		n++
	}
	return n
}

// String renders the set in catalog order, e.g. "T Th".
func (d DaySet) String() string {
	if d == 0 {
		return ""
	}
	parts := make([]string, 0, 7)
	for _, e := range dayOrder {
		if d&e.bit != 0 {
			parts = append(parts, e.name)
		}
	}
	return strings.Join(parts, " ")
}

// =============================================================================
// Time ranges
// =============================================================================

// TimeRange is a half-open interval [Start, End) in minutes since midnight.
type TimeRange struct {
	Start int
	End   int
}

// Overlaps reports whether two half-open ranges overlap.
// Touching at a boundary (one ends exactly when the other starts) is not
// an overlap.
func (t TimeRange) Overlaps(other TimeRange) bool {
	return t.Start < other.End && other.Start < t.End
}

// IsZero reports whether the range is unset.
func (t TimeRange) IsZero() bool {
	return t.Start == 0 && t.End == 0
}

// String renders the range as "9:00AM - 10:15AM".
func (t TimeRange) String() string {
	return formatClock(t.Start) + " - " + formatClock(t.End)
}

// ParseClock parses a clock string like "9:00AM" or "12:05 PM" into minutes
// since midnight.
func ParseClock(raw string) (int, error) {
	s := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(raw), " ", ""))
	pm := strings.HasSuffix(s, "PM")
	am := strings.HasSuffix(s, "AM")
	if !pm && !am {
		return 0, fmt.Errorf("clock %q missing AM/PM suffix", raw)
	}
	s = strings.TrimSuffix(strings.TrimSuffix(s, "PM"), "AM")

	hh, mm := s, "0"
	if i := strings.IndexByte(s, ':'); i >= 0 {
		hh, mm = s[:i], s[i+1:]
	}
	hour, err := strconv.Atoi(hh)
	if err != nil || hour < 1 || hour > 12 {
		return 0, fmt.Errorf("clock %q has invalid hour", raw)
	}
	minute, err := strconv.Atoi(mm)
	if err != nil || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("clock %q has invalid minute", raw)
	}
	if pm && hour != 12 {
		hour += 12
	}
	if am && hour == 12 {
		hour = 0
	}
	return hour*60 + minute, nil
}

// ParseTimeRange parses a catalog time field such as "9:00AM - 10:15AM".
//
// "Asynchronous", "TBA" and empty strings yield the zero range with
// async=true so callers can distinguish untimed online meetings from
// malformed data.
func ParseTimeRange(raw string) (tr TimeRange, async bool, err error) {
	s := strings.TrimSpace(raw)
	low := strings.ToLower(s)
	if s == "" || low == "asynchronous" || low == "tba" || low == "see comments" {
		return TimeRange{}, true, nil
	}
	parts := strings.SplitN(s, "-", 2)
	if len(parts) != 2 {
		return TimeRange{}, false, fmt.Errorf("time %q is not a range", raw)
	}
	start, err := ParseClock(parts[0])
	if err != nil {
		return TimeRange{}, false, err
	}
	end, err := ParseClock(parts[1])
	if err != nil {
		return TimeRange{}, false, err
	}
	if end <= start {
		return TimeRange{}, false, fmt.Errorf("time %q ends before it starts", raw)
	}
	return TimeRange{Start: start, End: end}, false, nil
}

func formatClock(minutes int) string {
	hour := minutes / 60
	min := minutes % 60
	suffix := "AM"
	display := hour
	switch {
	case hour == 0:
		display = 12
	case hour == 12:
		suffix = "PM"
	case hour > 12:
		display = hour - 12
		suffix = "PM"
	}
	return fmt.Sprintf("%d:%02d%s", display, min, suffix)
}

// =============================================================================
// Formats and statuses
// =============================================================================

// Format classifies how a section meets.
type Format string

// Section formats, matching the scraper's vocabulary.
const (
	FormatInPerson Format = "in-person"
	FormatOnline   Format = "online"
	FormatHybrid   Format = "hybrid"
)

// ParseFormat normalizes a free-form format string.
func ParseFormat(raw string) (Format, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "in-person", "in person", "inperson", "face-to-face":
		return FormatInPerson, true
	case "online", "remote":
		return FormatOnline, true
	case "hybrid", "part-online", "part-onl":
		return FormatHybrid, true
	}
	return "", false
}

// Status is the enrollment state of a section.
type Status string

// Section statuses. Every loaded section has exactly one of these.
const (
	StatusOpen     Status = "open"
	StatusClosed   Status = "closed"
	StatusWaitlist Status = "waitlist"
)

// ParseStatus maps raw scraper status text ("Open, Seats Available",
// "Clsd", "Waitlisted") onto the three-value enum. Unrecognized text maps
// to open, mirroring the scraper's default.
func ParseStatus(raw string) Status {
	low := strings.ToLower(raw)
	switch {
	case strings.Contains(low, "wait"):
		return StatusWaitlist
	case strings.Contains(low, "clsd"), strings.Contains(low, "closed"), strings.Contains(low, "full"):
		return StatusClosed
	default:
		return StatusOpen
	}
}

// Modality tags a single meeting block.
type Modality string

// Meeting modalities.
const (
	ModalityLecture    Modality = "lecture"
	ModalityLab        Modality = "lab"
	ModalityDiscussion Modality = "discussion"
)

// =============================================================================
// Core records
// =============================================================================

// Meeting is one recurring time/place block belonging to a section.
//
// Invariant: Days is non-empty unless Async is true.
type Meeting struct {
	Days     DaySet
	Time     TimeRange
	Async    bool
	Location string
	Modality Modality
}

// Section is one offered instance of a course.
//
// Sections are immutable after catalog load; the index hands out shared
// pointers that must not be mutated.
type Section struct {
	// ID is the section number, unique within its course.
	ID string

	// CourseCode is the owning course's code; always resolvable in the
	// same index.
	CourseCode string

	// Instructor is the display name as scraped, e.g. "Lo, Julie".
	Instructor string

	Format   Format
	Status   Status
	Units    float64
	Meetings []Meeting
}

// MeetsOn reports whether the section's combined meeting days cover all of
// the given days.
func (s *Section) MeetsOn(days DaySet) bool {
	return s.CombinedDays().Contains(days)
}

// CombinedDays returns the union of all meeting day sets.
func (s *Section) CombinedDays() DaySet {
	var set DaySet
	for _, m := range s.Meetings {
		set |= m.Days
	}
	return set
}

// Course is one catalog entry with its offered sections.
type Course struct {
	// Code is "SUBJECT-NUMBER", e.g. "COMSC-110". Unique per load.
	Code string

	// Subject is the prefix of Code, e.g. "COMSC".
	Subject string

	Title         string
	Prerequisites string
	Units         float64
	Sections      []*Section

	// Equivalents lists course codes that satisfy the same requirement
	// (e.g. ENGL-C1000E for ENGL-C1000).
	Equivalents []string
}

// SubjectOf extracts the subject prefix from a course code.
func SubjectOf(code string) string {
	if i := strings.IndexByte(code, '-'); i > 0 {
		return code[:i]
	}
	return code
}

// NormalizeInstructor lowercases and collapses an instructor name for index
// keys and substring matching.
func NormalizeInstructor(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

// SortSections orders sections deterministically: course code ascending,
// then section id ascending. All result sets in the system use this order.
func SortSections(sections []*Section) {
	sort.SliceStable(sections, func(i, j int) bool {
		if sections[i].CourseCode != sections[j].CourseCode {
			return sections[i].CourseCode < sections[j].CourseCode
		}
		return sections[i].ID < sections[j].ID
	})
}
