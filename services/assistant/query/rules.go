// Copyright (C) 2025 Savwangs
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package query

import (
	"context"
	"regexp"
	"strings"

	"github.com/Savwangs/course-database/services/assistant/catalog"
)

// RuleSet is the deterministic parser's tunable vocabulary, loaded from the
// rules config file.
type RuleSet struct {
	// SubjectSynonyms maps lowercased phrases ("computer science") to
	// subject codes ("COMSC"). Multi-word phrases are matched before
	// single words.
	SubjectSynonyms map[string]string

	// FuzzySubjectDistance bounds Levenshtein correction of subject-like
	// tokens. 0 disables fuzzy correction.
	FuzzySubjectDistance int
}

// RuleParser is the deterministic, always-available parser.
//
// Description:
//
//	Runs a fixed phrase pipeline over the question: course codes, subject
//	mentions (synonyms, then exact vocabulary, then bounded fuzzy
//	correction), day words with and/or connectives, time-of-day buckets,
//	format, status and instructor phrases, and finally intent keywords.
//	It never guesses beyond its tables, so its output is reproducible.
//
// Thread Safety: immutable after construction; safe for concurrent use.
type RuleParser struct {
	rules    RuleSet
	synonyms []synonymEntry
}

type synonymEntry struct {
	phrase  string
	subject string
	words   int
}

var (
	codeRe = regexp.MustCompile(`(?i)\b([a-z]{2,7})[-\s]?(c?[0-9]{1,4}[a-z]?)\b`)
	wordRe = regexp.MustCompile(`[a-z0-9'\-]+`)

	// Title phrases first ("professor lo"), then linking phrases
	// ("taught by nguyen"); the title pass wins so "with professor lo"
	// captures the name, not the title.
	instructorTitleRe = regexp.MustCompile(`(?i)\b(?:prof(?:essor)?|dr|instructor|teacher)\.?\s+([a-z][a-z'\-]+)`)
	instructorLinkRe  = regexp.MustCompile(`(?i)\b(?:taught by|instructor for|with)\s+([a-z][a-z'\-]+)`)
)

// NewRuleParser builds a RuleParser from a rule set.
func NewRuleParser(rules RuleSet) *RuleParser {
	p := &RuleParser{rules: rules}
	for phrase, subject := range rules.SubjectSynonyms {
		phrase = strings.ToLower(strings.TrimSpace(phrase))
		if phrase == "" {
			continue
		}
		p.synonyms = append(p.synonyms, synonymEntry{
			phrase:  phrase,
			subject: strings.ToUpper(subject),
			words:   len(strings.Fields(phrase)),
		})
	}
	// Longest phrases first so "computer science" beats "science".
	for i := 0; i < len(p.synonyms); i++ {
		for j := i + 1; j < len(p.synonyms); j++ {
			si, sj := p.synonyms[i], p.synonyms[j]
			if sj.words > si.words || (sj.words == si.words && sj.phrase < si.phrase) {
				p.synonyms[i], p.synonyms[j] = sj, si
			}
		}
	}
	return p
}

// Parse implements Parser.
func (p *RuleParser) Parse(_ context.Context, text string, vocab Vocabulary) (Parse, error) {
	low := strings.ToLower(strings.TrimSpace(text))
	if low == "" {
		return Parse{}, ErrEmptyQuery
	}

	q := StructuredQuery{Raw: text, Intent: IntentSearch}

	consumed := p.extractCodes(low, vocab, &q)
	p.extractSubjects(low, consumed, vocab, &q)
	p.extractDays(low, &q)
	p.extractTime(low, &q)
	p.extractFormat(low, &q)
	p.extractStatus(low, &q)
	p.extractInstructor(low, &q)
	q.Intent = detectIntent(low)
	q.Normalize()

	return Parse{
		Query:     q,
		Anaphoric: detectAnaphora(low, &q),
		Ordinals:  detectOrdinals(low),
		FollowUp:  strings.HasPrefix(low, "what about") || strings.HasPrefix(low, "how about"),
	}, nil
}

// =============================================================================
// Phrase pipeline
// =============================================================================

// extractCodes pulls SUBJ-NUM course codes, allow-listed against the
// catalog. Returns the subject tokens consumed by matched codes so the
// subject pass does not double-count them.
func (p *RuleParser) extractCodes(low string, vocab Vocabulary, q *StructuredQuery) map[string]bool {
	consumed := make(map[string]bool)
	allowed := make(map[string]bool, len(vocab.Codes))
	for _, c := range vocab.Codes {
		allowed[c] = true
	}
	subjects := make(map[string]bool, len(vocab.Subjects))
	for _, s := range vocab.Subjects {
		subjects[s] = true
	}

	for _, m := range codeRe.FindAllStringSubmatch(low, -1) {
		subj := strings.ToUpper(m[1])
		num := strings.ToUpper(m[2])
		if !subjects[subj] {
			if syn, ok := p.rules.SubjectSynonyms[strings.ToLower(subj)]; ok {
				subj = strings.ToUpper(syn)
			} else if corrected, ok := NearestTerm(subj, vocab.Subjects, p.rules.FuzzySubjectDistance); ok {
				subj = corrected
			} else {
				continue
			}
		}
		code := subj + "-" + num
		if allowed[code] {
			q.CourseCodes = append(q.CourseCodes, code)
			consumed[strings.ToLower(m[1])] = true
		}
	}
	return consumed
}

func (p *RuleParser) extractSubjects(low string, consumed map[string]bool, vocab Vocabulary, q *StructuredQuery) {
	subjects := make(map[string]bool, len(vocab.Subjects))
	for _, s := range vocab.Subjects {
		subjects[s] = true
	}

	// Synonym phrases first ("computer science classes").
	for _, syn := range p.synonyms {
		if strings.Contains(low, syn.phrase) && subjects[syn.subject] {
			q.Subjects = append(q.Subjects, syn.subject)
		}
	}

	// Then bare subject tokens, exact or fuzzy within the bound.
	for _, word := range wordRe.FindAllString(low, -1) {
		if consumed[word] || len(word) < 3 {
			continue
		}
		upper := strings.ToUpper(word)
		if subjects[upper] {
			q.Subjects = append(q.Subjects, upper)
			continue
		}
		if p.rules.FuzzySubjectDistance > 0 && len(word) >= 4 {
			if corrected, ok := NearestTerm(word, vocab.Subjects, p.rules.FuzzySubjectDistance); ok {
				q.Subjects = append(q.Subjects, corrected)
			}
		}
	}
}

// extractDays finds day words and decides conjunctive vs disjunctive from
// the connective actually used: only an explicit "or" relaxes the filter.
func (p *RuleParser) extractDays(low string, q *StructuredQuery) {
	words := wordRe.FindAllString(low, -1)
	var dayPositions []int
	for i, w := range words {
		// Bare "t"/"m" etc. inside prose are too ambiguous; require the
		// longer forms in free text.
		if len(w) < 3 && w != "th" {
			continue
		}
		if _, ok := catalog.ParseDay(w); ok {
			dayPositions = append(dayPositions, i)
			d, _ := catalog.ParseDay(w)
			q.Filters.Days |= d
		}
	}
	if len(dayPositions) < 2 {
		return
	}
	for k := 0; k < len(dayPositions)-1; k++ {
		for i := dayPositions[k] + 1; i < dayPositions[k+1]; i++ {
			if words[i] == "or" {
				q.Filters.DaysAnyOf = true
				return
			}
		}
	}
}

func (p *RuleParser) extractTime(low string, q *StructuredQuery) {
	const (
		noon    = 12 * 60
		fivePM  = 17 * 60
		dayEnd  = 24 * 60
		dayZero = 0
	)
	switch {
	case strings.Contains(low, "morning"):
		q.Filters.Time = catalog.TimeRange{Start: dayZero, End: noon}
	case strings.Contains(low, "afternoon"):
		q.Filters.Time = catalog.TimeRange{Start: noon, End: fivePM}
	case strings.Contains(low, "evening"), strings.Contains(low, "night"):
		q.Filters.Time = catalog.TimeRange{Start: fivePM, End: dayEnd}
	}

	if m := regexp.MustCompile(`(?i)\bafter\s+(\d{1,2}(?::\d{2})?\s*[ap]m)`).FindStringSubmatch(low); m != nil {
		if start, err := catalog.ParseClock(m[1]); err == nil {
			q.Filters.Time = catalog.TimeRange{Start: start, End: dayEnd}
		}
	}
	if m := regexp.MustCompile(`(?i)\bbefore\s+(\d{1,2}(?::\d{2})?\s*[ap]m)`).FindStringSubmatch(low); m != nil {
		if end, err := catalog.ParseClock(m[1]); err == nil {
			q.Filters.Time = catalog.TimeRange{Start: dayZero, End: end}
		}
	}
	if strings.Contains(low, "before noon") {
		q.Filters.Time = catalog.TimeRange{Start: dayZero, End: noon}
	}
}

func (p *RuleParser) extractFormat(low string, q *StructuredQuery) {
	switch {
	case strings.Contains(low, "hybrid"):
		q.Filters.Format = catalog.FormatHybrid
	case strings.Contains(low, "in person"), strings.Contains(low, "in-person"),
		strings.Contains(low, "on campus"), strings.Contains(low, "face to face"):
		q.Filters.Format = catalog.FormatInPerson
	case strings.Contains(low, "online"), strings.Contains(low, "remote"):
		q.Filters.Format = catalog.FormatOnline
	}
}

func (p *RuleParser) extractStatus(low string, q *StructuredQuery) {
	switch {
	case strings.Contains(low, "waitlist"):
		q.Filters.Status = catalog.StatusWaitlist
	case strings.Contains(low, "closed"), strings.Contains(low, "full sections"):
		q.Filters.Status = catalog.StatusClosed
	case strings.Contains(low, "open"), strings.Contains(low, "available"),
		strings.Contains(low, "still has seats"), strings.Contains(low, "seats left"):
		q.Filters.Status = catalog.StatusOpen
	}
}

var instructorTitles = map[string]bool{
	"prof": true, "professor": true, "dr": true, "instructor": true, "teacher": true,
}

var instructorStopwords = map[string]bool{
	"for": true, "of": true, "the": true, "in": true, "on": true, "a": true,
}

func (p *RuleParser) extractInstructor(low string, q *StructuredQuery) {
	if m := instructorTitleRe.FindStringSubmatch(low); m != nil && !instructorStopwords[m[1]] {
		q.Filters.Instructor = m[1]
		return
	}
	if m := instructorLinkRe.FindStringSubmatch(low); m != nil && !instructorTitles[m[1]] && !instructorStopwords[m[1]] {
		q.Filters.Instructor = m[1]
	}
}

// =============================================================================
// Intent and anaphora
// =============================================================================

func detectIntent(low string) Intent {
	switch {
	case strings.Contains(low, "prereq"), strings.Contains(low, "prerequisite"),
		strings.Contains(low, "take before"), strings.Contains(low, "required before"):
		return IntentPrerequisite
	case strings.Contains(low, "who teaches"), strings.Contains(low, "who is teaching"),
		strings.Contains(low, "instructor for"), strings.Contains(low, "who's teaching"):
		return IntentInstructorLookup
	case strings.Contains(low, "conflict"), strings.Contains(low, "overlap"),
		strings.Contains(low, "same time"), strings.Contains(low, "clash"),
		strings.Contains(low, "back to back"), strings.Contains(low, "together"):
		return IntentConflictCheck
	case strings.Contains(low, "compare"), strings.Contains(low, "difference between"),
		strings.Contains(low, "versus"), strings.Contains(low, " vs "):
		return IntentComparison
	default:
		return IntentSearch
	}
}

var anaphorTokens = map[string]bool{
	"it": true, "its": true, "they": true, "them": true,
	"those": true, "these": true, "that": true, "ones": true, "one": true,
}

// detectAnaphora reports back-references: pronouns, ordinals, or a bare
// refinement with no scope of its own ("only the online ones",
// "what about tuesday").
func detectAnaphora(low string, q *StructuredQuery) bool {
	for _, w := range wordRe.FindAllString(low, -1) {
		if anaphorTokens[w] {
			return true
		}
	}
	if q.Scoped() {
		return false
	}
	if strings.HasPrefix(low, "what about") || strings.HasPrefix(low, "how about") ||
		strings.HasPrefix(low, "only ") || strings.HasPrefix(low, "just ") {
		return true
	}
	return false
}

var ordinalWords = map[string]int{
	"first": 1, "second": 2, "third": 3, "fourth": 4, "fifth": 5, "last": -1,
}

func detectOrdinals(low string) []int {
	var out []int
	for _, w := range wordRe.FindAllString(low, -1) {
		if n, ok := ordinalWords[w]; ok {
			out = append(out, n)
		}
	}
	return out
}
