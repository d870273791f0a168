// Copyright (C) 2025 Savwangs
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package catalog

import (
	"strings"
	"testing"
)

const sampleCatalog = `[
  {
    "course_code": "COMSC-110",
    "course_title": "Introduction to Programming",
    "units": 4,
    "prerequisites": "MATH-120 or equivalent",
    "sections": [
      {
        "section_number": "9024",
        "instructor": "Lo, Julie",
        "status": "Open, Seats Available",
        "units": 4,
        "meetings": [
          {"days": "T Th", "time": "9:30AM - 10:45AM", "room": "ATC-101", "format": "in-person"},
          {"days": "", "time": "Asynchronous", "room": "Online", "format": "online"}
        ]
      },
      {
        "section_number": "5657",
        "instructor": "Patel, Ravi",
        "status": "Waitlisted",
        "units": 4,
        "meetings": [
          {"days": "", "time": "Asynchronous", "room": "Online", "format": "online"}
        ]
      }
    ]
  },
  {
    "course_code": "ENGL-C1000",
    "course_title": "Academic Reading and Writing",
    "units": 4,
    "equivalent_courses": ["ENGL-C1000E"],
    "sections": [
      {
        "section_number": "8292",
        "instructor": "Nguyen, Mai",
        "status": "Clsd",
        "units": 4,
        "meetings": [
          {"days": "M W", "time": "1:00PM - 2:15PM", "room": "FO-223", "format": "in-person"}
        ]
      }
    ]
  },
  {
    "course_code": "",
    "course_title": "Broken Record",
    "sections": []
  },
  {
    "course_code": "MATH-192",
    "course_title": "Analytic Geometry and Calculus I",
    "units": 5,
    "sections": [
      {
        "section_number": "9100",
        "instructor": "Okafor, Chidi",
        "status": "Open",
        "units": 5,
        "meetings": [
          {"days": "M T W Th", "time": "11:00AM - 12:05PM", "room": "MA-104", "format": "in-person"}
        ]
      },
      {
        "section_number": "",
        "instructor": "Nobody",
        "status": "Open",
        "meetings": []
      }
    ]
  }
]`

func loadSample(t *testing.T) (*Index, LoadReport) {
	t.Helper()
	idx, report, err := NewLoader(nil).Load(strings.NewReader(sampleCatalog))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return idx, report
}

func TestLoaderSkipsMalformedRecords(t *testing.T) {
	idx, report := loadSample(t)

	if report.Courses != 3 {
		t.Errorf("Courses = %d, want 3", report.Courses)
	}
	if report.SkippedCourses != 1 {
		t.Errorf("SkippedCourses = %d, want 1", report.SkippedCourses)
	}
	if report.SkippedSections != 1 {
		t.Errorf("SkippedSections = %d, want 1", report.SkippedSections)
	}
	if idx.ByCode("MATH-192") == nil {
		t.Error("MATH-192 missing after a sibling record was skipped")
	}
	if got := len(idx.ByCode("MATH-192").Sections); got != 1 {
		t.Errorf("MATH-192 sections = %d, want 1", got)
	}
}

func TestLoaderDerivesSectionFormat(t *testing.T) {
	idx, _ := loadSample(t)

	hybrid := idx.Section("COMSC-110", "9024")
	if hybrid == nil || hybrid.Format != FormatHybrid {
		t.Errorf("mixed-meeting section format = %v, want hybrid", hybrid)
	}
	online := idx.Section("COMSC-110", "5657")
	if online == nil || online.Format != FormatOnline {
		t.Errorf("async-only section format = %v, want online", online)
	}
	inPerson := idx.Section("ENGL-C1000", "8292")
	if inPerson == nil || inPerson.Format != FormatInPerson {
		t.Errorf("room-only section format = %v, want in-person", inPerson)
	}
}

func TestLoaderInfersMeetingModality(t *testing.T) {
	const labCatalog = `[
	  {
	    "course_code": "CHEM-120",
	    "course_title": "General Chemistry I",
	    "units": 5,
	    "sections": [
	      {
	        "section_number": "3301",
	        "instructor": "Haddad, Lina",
	        "status": "Open",
	        "units": 5,
	        "meetings": [
	          {"days": "M W", "time": "9:00AM - 10:15AM", "room": "PS-104", "format": "in-person"},
	          {"days": "F", "time": "9:00AM - 11:50AM", "room": "PS LAB-2", "format": "in-person"},
	          {"days": "Th", "time": "1:00PM - 1:50PM", "room": "DISC-12", "format": "in-person"}
	        ]
	      }
	    ]
	  }
	]`

	idx, _, err := NewLoader(nil).Load(strings.NewReader(labCatalog))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	sec := idx.Section("CHEM-120", "3301")
	if sec == nil || len(sec.Meetings) != 3 {
		t.Fatalf("section = %+v", sec)
	}
	want := []Modality{ModalityLecture, ModalityLab, ModalityDiscussion}
	for i, m := range sec.Meetings {
		if m.Modality != want[i] {
			t.Errorf("meeting %d modality = %v, want %v (room %q)", i, m.Modality, want[i], m.Location)
		}
	}
}

func TestLoaderParsesEquivalents(t *testing.T) {
	idx, _ := loadSample(t)
	engl := idx.ByCode("ENGL-C1000")
	if engl == nil || len(engl.Equivalents) != 1 || engl.Equivalents[0] != "ENGL-C1000E" {
		t.Errorf("Equivalents = %v, want [ENGL-C1000E]", engl.Equivalents)
	}
}

func TestLoaderRejectsEmptyCatalog(t *testing.T) {
	if _, _, err := NewLoader(nil).Load(strings.NewReader(`[]`)); err == nil {
		t.Error("empty catalog accepted")
	}
	if _, _, err := NewLoader(nil).Load(strings.NewReader(`{not json`)); err == nil {
		t.Error("invalid JSON accepted")
	}
}

func TestIndexLookups(t *testing.T) {
	idx, _ := loadSample(t)

	if c := idx.ByCode("comsc-110"); c == nil || c.Code != "COMSC-110" {
		t.Error("ByCode should be case-insensitive")
	}
	if got := len(idx.BySubject("COMSC")); got != 1 {
		t.Errorf("BySubject(COMSC) = %d courses, want 1", got)
	}
	if got := idx.SectionsByInstructor("lo"); len(got) != 1 || got[0].ID != "9024" {
		t.Errorf("SectionsByInstructor(lo) = %v", got)
	}
	if got := idx.SectionsByInstructor("zzz"); got != nil {
		t.Errorf("SectionsByInstructor(zzz) = %v, want nil", got)
	}

	codes := idx.Codes()
	for i := 1; i < len(codes); i++ {
		if codes[i-1] >= codes[i] {
			t.Errorf("Codes() not sorted: %v", codes)
		}
	}
}

func TestProviderSwap(t *testing.T) {
	idx, _ := loadSample(t)
	p := NewProvider(idx)
	if p.Current() != idx {
		t.Fatal("Current() should return the initial index")
	}

	next := NewBuilder()
	next.Add(&Course{Code: "ART-101", Subject: "ART", Title: "Drawing"})
	idx2 := next.Build()

	if prev := p.Swap(idx2); prev != idx {
		t.Error("Swap should return the previous index")
	}
	if p.Current().ByCode("ART-101") == nil {
		t.Error("swapped index not visible")
	}
}
