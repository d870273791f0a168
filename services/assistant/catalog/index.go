// Copyright (C) 2025 Savwangs
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package catalog

import (
	"sort"
	"strings"
	"sync/atomic"
)

// =============================================================================
// Index
// =============================================================================

// Index is the frozen, read-only view of one catalog load.
//
// Description:
//
//	All lookup maps are built once by Builder.Build and never mutated, so
//	an Index is safe for unbounded concurrent reads with no locking. A new
//	catalog file produces a new Index; Provider swaps the pointer whole.
type Index struct {
	courses       []*Course
	byCode        map[string]*Course
	bySubject     map[string][]*Course
	sections      []*Section
	sectionByKey  map[string]*Section // "CODE/ID"
	byInstructor  map[string][]*Section
	codes         []string
	subjects      []string
	instructorKey []string
}

// Builder accumulates courses and freezes them into an Index.
type Builder struct {
	courses []*Course
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Add appends a course. Later duplicates of the same code win at Build time.
func (b *Builder) Add(course *Course) {
	b.courses = append(b.courses, course)
}

// Build freezes the accumulated courses into an Index.
//
// Courses, sections and vocabularies are sorted so every derived listing is
// deterministic across loads of the same data.
func (b *Builder) Build() *Index {
	idx := &Index{
		byCode:       make(map[string]*Course, len(b.courses)),
		bySubject:    make(map[string][]*Course),
		sectionByKey: make(map[string]*Section),
		byInstructor: make(map[string][]*Section),
	}

	for _, c := range b.courses {
		if prev, ok := idx.byCode[c.Code]; ok {
			// Duplicate code: replace in place, keep first position.
			*prev = *c
			continue
		}
		idx.byCode[c.Code] = c
		idx.courses = append(idx.courses, c)
	}

	sort.Slice(idx.courses, func(i, j int) bool { return idx.courses[i].Code < idx.courses[j].Code })

	for _, c := range idx.courses {
		idx.bySubject[c.Subject] = append(idx.bySubject[c.Subject], c)
		idx.codes = append(idx.codes, c.Code)

		SortSections(c.Sections)
		for _, s := range c.Sections {
			idx.sections = append(idx.sections, s)
			idx.sectionByKey[sectionKey(s.CourseCode, s.ID)] = s
			if s.Instructor != "" {
				key := NormalizeInstructor(s.Instructor)
				idx.byInstructor[key] = append(idx.byInstructor[key], s)
			}
		}
	}
	SortSections(idx.sections)

	for subj := range idx.bySubject {
		idx.subjects = append(idx.subjects, subj)
	}
	sort.Strings(idx.subjects)

	for key := range idx.byInstructor {
		idx.instructorKey = append(idx.instructorKey, key)
	}
	sort.Strings(idx.instructorKey)

	return idx
}

func sectionKey(code, id string) string {
	return code + "/" + id
}

// ByCode returns the course with the given code, nil if absent.
func (x *Index) ByCode(code string) *Course {
	return x.byCode[strings.ToUpper(strings.TrimSpace(code))]
}

// BySubject returns all courses under a subject prefix, in code order.
func (x *Index) BySubject(subject string) []*Course {
	return x.bySubject[strings.ToUpper(strings.TrimSpace(subject))]
}

// Section resolves a (course code, section id) pair.
func (x *Index) Section(code, id string) *Section {
	return x.sectionByKey[sectionKey(strings.ToUpper(strings.TrimSpace(code)), strings.TrimSpace(id))]
}

// Sections returns every section in deterministic order. Callers must not
// mutate the returned slice or its elements.
func (x *Index) Sections() []*Section {
	return x.sections
}

// Courses returns every course in code order.
func (x *Index) Courses() []*Course {
	return x.courses
}

// SectionsByInstructor returns sections whose normalized instructor name
// contains the given name fragment, in deterministic order.
func (x *Index) SectionsByInstructor(name string) []*Section {
	needle := NormalizeInstructor(name)
	if needle == "" {
		return nil
	}
	var out []*Section
	for _, key := range x.instructorKey {
		if strings.Contains(key, needle) {
			out = append(out, x.byInstructor[key]...)
		}
	}
	SortSections(out)
	return out
}

// Codes returns the sorted course-code vocabulary.
func (x *Index) Codes() []string {
	return x.codes
}

// Subjects returns the sorted subject vocabulary.
func (x *Index) Subjects() []string {
	return x.subjects
}

// Instructors returns the sorted normalized instructor vocabulary.
func (x *Index) Instructors() []string {
	return x.instructorKey
}

// CourseCount returns the number of indexed courses.
func (x *Index) CourseCount() int {
	return len(x.courses)
}

// =============================================================================
// Provider
// =============================================================================

// Provider hands out the current Index and accepts whole-index swaps.
//
// Thread Safety: Current and Swap are safe for concurrent use; readers
// hold the Index they got for the duration of one request so a mid-request
// swap never mixes two catalog generations.
type Provider struct {
	current atomic.Pointer[Index]
}

// NewProvider wraps an initial index.
func NewProvider(idx *Index) *Provider {
	p := &Provider{}
	p.current.Store(idx)
	return p
}

// Current returns the live index.
func (p *Provider) Current() *Index {
	return p.current.Load()
}

// Swap installs a new index and returns the previous one.
func (p *Provider) Swap(idx *Index) *Index {
	return p.current.Swap(idx)
}
