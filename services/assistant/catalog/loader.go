// Copyright (C) 2025 Savwangs
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package catalog

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
)

// =============================================================================
// Wire format
// =============================================================================

// courseRecord mirrors one element of the scraper's JSON export.
type courseRecord struct {
	CourseCode        string          `json:"course_code" validate:"required"`
	CourseTitle       string          `json:"course_title" validate:"required"`
	Units             float64         `json:"units"`
	Prerequisites     string          `json:"prerequisites"`
	EquivalentCourses []string        `json:"equivalent_courses"`
	Sections          []sectionRecord `json:"sections" validate:"dive"`
}

type sectionRecord struct {
	SectionNumber string          `json:"section_number" validate:"required"`
	Instructor    string          `json:"instructor"`
	Status        string          `json:"status"`
	Units         float64         `json:"units"`
	Meetings      []meetingRecord `json:"meetings"`
}

type meetingRecord struct {
	Days   string `json:"days"`
	Time   string `json:"time"`
	Room   string `json:"room"`
	Format string `json:"format"`
}

// =============================================================================
// Loading
// =============================================================================

// LoadReport summarizes one catalog load.
type LoadReport struct {
	Courses         int
	Sections        int
	SkippedCourses  int
	SkippedSections int
}

// Loader reads scraper JSON exports into an immutable Index.
//
// Thread Safety: a Loader is stateless apart from its validator and logger
// and is safe for concurrent use.
type Loader struct {
	validate *validator.Validate
	logger   *slog.Logger
}

// NewLoader builds a Loader. A nil logger falls back to slog.Default().
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger,
	}
}

// LoadFile reads and indexes the catalog JSON at path.
func (l *Loader) LoadFile(path string) (*Index, LoadReport, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, LoadReport{}, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()
	return l.Load(f)
}

// Load reads and indexes catalog JSON from r.
//
// Description:
//
//	Malformed records do not abort the load. A course missing its code or
//	title, or a meeting whose time field cannot be parsed, is skipped with
//	a DataIntegrity warning and counted in the report. The load fails only
//	when the document itself is not valid JSON or yields zero usable
//	courses.
func (l *Loader) Load(r io.Reader) (*Index, LoadReport, error) {
	var records []courseRecord
	dec := json.NewDecoder(r)
	if err := dec.Decode(&records); err != nil {
		return nil, LoadReport{}, fmt.Errorf("decode catalog: %w", err)
	}

	var report LoadReport
	builder := NewBuilder()
	for i, rec := range records {
		course, skippedSections, err := l.buildCourse(rec)
		if err != nil {
			report.SkippedCourses++
			l.logger.Warn("DataIntegrity: skipping course record",
				slog.Int("record", i),
				slog.String("course_code", rec.CourseCode),
				slog.String("error", err.Error()))
			continue
		}
		report.SkippedSections += skippedSections
		report.Courses++
		report.Sections += len(course.Sections)
		builder.Add(course)
	}

	if report.Courses == 0 {
		return nil, report, fmt.Errorf("catalog contains no usable courses (%d records skipped)", report.SkippedCourses)
	}

	idx := builder.Build()
	l.logger.Info("catalog loaded",
		slog.Int("courses", report.Courses),
		slog.Int("sections", report.Sections),
		slog.Int("skipped_courses", report.SkippedCourses),
		slog.Int("skipped_sections", report.SkippedSections))
	return idx, report, nil
}

func (l *Loader) buildCourse(rec courseRecord) (*Course, int, error) {
	if err := l.validate.Struct(rec); err != nil {
		return nil, 0, fmt.Errorf("validate: %w", err)
	}

	code := strings.ToUpper(strings.TrimSpace(rec.CourseCode))
	course := &Course{
		Code:          code,
		Subject:       SubjectOf(code),
		Title:         strings.TrimSpace(rec.CourseTitle),
		Prerequisites: strings.TrimSpace(rec.Prerequisites),
		Units:         rec.Units,
	}
	for _, eq := range rec.EquivalentCourses {
		if eq = strings.ToUpper(strings.TrimSpace(eq)); eq != "" && eq != code {
			course.Equivalents = append(course.Equivalents, eq)
		}
	}

	skipped := 0
	for _, sr := range rec.Sections {
		section, err := l.buildSection(code, sr)
		if err != nil {
			skipped++
			l.logger.Warn("DataIntegrity: skipping section record",
				slog.String("course_code", code),
				slog.String("section", sr.SectionNumber),
				slog.String("error", err.Error()))
			continue
		}
		course.Sections = append(course.Sections, section)
	}
	return course, skipped, nil
}

func (l *Loader) buildSection(courseCode string, rec sectionRecord) (*Section, error) {
	if strings.TrimSpace(rec.SectionNumber) == "" {
		return nil, fmt.Errorf("section missing section_number")
	}

	section := &Section{
		ID:         strings.TrimSpace(rec.SectionNumber),
		CourseCode: courseCode,
		Instructor: strings.TrimSpace(rec.Instructor),
		Status:     ParseStatus(rec.Status),
		Units:      rec.Units,
	}

	var formats []Format
	for _, mr := range rec.Meetings {
		days, err := ParseDays(mr.Days)
		if err != nil {
			return nil, err
		}
		tr, async, err := ParseTimeRange(mr.Time)
		if err != nil {
			return nil, err
		}
		meeting := Meeting{
			Days:     days,
			Time:     tr,
			Async:    async,
			Location: strings.TrimSpace(mr.Room),
			Modality: ModalityLecture,
		}
		// The scraper carries no modality field; rooms labelled LAB or
		// DISC are the only signal.
		switch room := strings.ToLower(mr.Room); {
		case strings.Contains(room, "lab"):
			meeting.Modality = ModalityLab
		case strings.Contains(room, "disc"):
			meeting.Modality = ModalityDiscussion
		}
		section.Meetings = append(section.Meetings, meeting)

		if f, ok := ParseFormat(mr.Format); ok {
			formats = append(formats, f)
		}
	}

	section.Format = deriveFormat(formats, section.Meetings)
	return section, nil
}

// deriveFormat collapses per-meeting formats into the section format.
//
// Mixed formats (some meetings online, some in a room) make the section
// hybrid. A section whose meetings are all untimed with no rooms is online.
func deriveFormat(formats []Format, meetings []Meeting) Format {
	var sawOnline, sawInPerson bool
	for _, f := range formats {
		switch f {
		case FormatHybrid:
			return FormatHybrid
		case FormatOnline:
			sawOnline = true
		case FormatInPerson:
			sawInPerson = true
		}
	}
	if len(formats) == 0 {
		// No explicit format field; infer from meeting shape.
		for _, m := range meetings {
			if m.Async || strings.EqualFold(m.Location, "online") {
				sawOnline = true
			} else {
				sawInPerson = true
			}
		}
	}
	switch {
	case sawOnline && sawInPerson:
		return FormatHybrid
	case sawOnline:
		return FormatOnline
	default:
		return FormatInPerson
	}
}
