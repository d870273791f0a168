// Copyright (C) 2025 Savwangs
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package query

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Savwangs/course-database/services/assistant/catalog"
	"github.com/Savwangs/course-database/services/assistant/providers"
)

// LLMParserConfig tunes the LLM-backed parser.
type LLMParserConfig struct {
	Model       string
	Timeout     time.Duration
	Temperature float64
	MaxTokens   int
}

// DefaultLLMParserConfig returns conservative defaults: short timeout,
// temperature zero, enough tokens for the JSON schema and no more.
func DefaultLLMParserConfig() LLMParserConfig {
	return LLMParserConfig{
		Timeout:     8 * time.Second,
		Temperature: 0.0,
		MaxTokens:   400,
	}
}

// LLMParser extracts a structured query by asking an LLM for strict JSON.
//
// Description:
//
//	The prompt carries the catalog's subject vocabulary as an allow-list
//	and demands a single JSON object. The reply is fenced-JSON-tolerant
//	(first '{' to last '}') and every code and subject in it is checked
//	against the vocabulary before it is believed; the model can never
//	introduce a course the catalog does not have.
//
// Thread Safety: immutable after construction; safe for concurrent use.
type LLMParser struct {
	client providers.ChatClient
	cfg    LLMParserConfig
}

// NewLLMParser builds an LLMParser over a chat client.
func NewLLMParser(client providers.ChatClient, cfg LLMParserConfig) *LLMParser {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultLLMParserConfig().Timeout
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultLLMParserConfig().MaxTokens
	}
	return &LLMParser{client: client, cfg: cfg}
}

// ===== Wire schema =====

type llmParse struct {
	Intent      string     `json:"intent"`
	CourseCodes []string   `json:"course_codes"`
	Subjects    []string   `json:"subjects"`
	Filters     llmFilters `json:"filters"`

	// RefersToPrevious marks follow-ups that need the conversation's
	// last answer ("when does it meet").
	RefersToPrevious bool `json:"refers_to_previous"`

	// Ordinals are 1-based positions into the previous answer; -1 means
	// the last entry.
	Ordinals []int `json:"ordinals"`
}

type llmFilters struct {
	Format     string   `json:"format"`
	Status     string   `json:"status"`
	Instructor string   `json:"instructor"`
	Days       []string `json:"days"`
	DaysAnyOf  bool     `json:"days_any_of"`
	TimeOfDay  string   `json:"time_of_day"`
}

const llmSystemPrompt = `You convert questions about a college course catalog into one strict JSON object. Output ONLY the JSON object, no prose, no code fences.

Schema:
{
  "intent": "search" | "prerequisite" | "instructor-lookup" | "comparison" | "conflict-check",
  "course_codes": ["SUBJ-NUM", ...],
  "subjects": ["SUBJ", ...],
  "filters": {
    "format": "" | "online" | "in-person" | "hybrid",
    "status": "" | "open" | "closed" | "waitlist",
    "instructor": "",
    "days": ["M","T","W","Th","F","Sa","Su"],
    "days_any_of": false,
    "time_of_day": "" | "morning" | "afternoon" | "evening"
  },
  "refers_to_previous": false,
  "ordinals": []
}

Rules:
- Use ONLY subjects from the allowed list; leave out anything else.
- days_any_of is true ONLY when the user says "or" between days.
- refers_to_previous is true when the question uses pronouns or refines an earlier answer.
- ordinals: "the first one" -> [1], "the last one" -> [-1].
- Unset fields stay empty; never invent filters the user did not ask for.`

// Parse implements Parser.
func (p *LLMParser) Parse(ctx context.Context, text string, vocab Vocabulary) (Parse, error) {
	if strings.TrimSpace(text) == "" {
		return Parse{}, ErrEmptyQuery
	}
	if p.client == nil {
		return Parse{}, fmt.Errorf("llm parser has no chat client")
	}

	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	user := fmt.Sprintf("Allowed subjects: %s\n\nQuestion: %s",
		strings.Join(vocab.Subjects, ", "), text)

	reply, err := p.client.Chat(ctx, []providers.Message{
		{Role: "system", Content: llmSystemPrompt},
		{Role: "user", Content: user},
	}, providers.ChatOptions{
		Temperature: p.cfg.Temperature,
		MaxTokens:   p.cfg.MaxTokens,
		Model:       p.cfg.Model,
	})
	if err != nil {
		return Parse{}, fmt.Errorf("llm chat: %w", err)
	}

	raw, err := extractJSONObject(reply)
	if err != nil {
		return Parse{}, err
	}
	var wire llmParse
	if err := json.Unmarshal([]byte(raw), &wire); err != nil {
		return Parse{}, fmt.Errorf("llm reply is not valid JSON: %w", err)
	}
	return p.toParse(text, wire, vocab), nil
}

// extractJSONObject tolerates models that wrap JSON in prose or fences.
func extractJSONObject(reply string) (string, error) {
	start := strings.IndexByte(reply, '{')
	end := strings.LastIndexByte(reply, '}')
	if start < 0 || end <= start {
		return "", fmt.Errorf("llm reply contains no JSON object")
	}
	return reply[start : end+1], nil
}

func (p *LLMParser) toParse(text string, wire llmParse, vocab Vocabulary) Parse {
	allowedCodes := make(map[string]bool, len(vocab.Codes))
	for _, c := range vocab.Codes {
		allowedCodes[c] = true
	}
	allowedSubjects := make(map[string]bool, len(vocab.Subjects))
	for _, s := range vocab.Subjects {
		allowedSubjects[s] = true
	}

	q := StructuredQuery{Raw: text, Intent: normalizeIntent(wire.Intent)}
	for _, code := range wire.CourseCodes {
		code = strings.ToUpper(strings.TrimSpace(code))
		if allowedCodes[code] {
			q.CourseCodes = append(q.CourseCodes, code)
		}
	}
	for _, subj := range wire.Subjects {
		subj = strings.ToUpper(strings.TrimSpace(subj))
		if allowedSubjects[subj] {
			q.Subjects = append(q.Subjects, subj)
		}
	}

	if f, ok := catalog.ParseFormat(wire.Filters.Format); ok {
		q.Filters.Format = f
	}
	switch strings.ToLower(wire.Filters.Status) {
	case "open":
		q.Filters.Status = catalog.StatusOpen
	case "closed":
		q.Filters.Status = catalog.StatusClosed
	case "waitlist":
		q.Filters.Status = catalog.StatusWaitlist
	}
	q.Filters.Instructor = strings.TrimSpace(wire.Filters.Instructor)

	for _, tok := range wire.Filters.Days {
		if d, ok := catalog.ParseDay(tok); ok {
			q.Filters.Days |= d
		}
	}
	q.Filters.DaysAnyOf = wire.Filters.DaysAnyOf && q.Filters.Days != 0

	switch strings.ToLower(wire.Filters.TimeOfDay) {
	case "morning":
		q.Filters.Time = catalog.TimeRange{Start: 0, End: 12 * 60}
	case "afternoon":
		q.Filters.Time = catalog.TimeRange{Start: 12 * 60, End: 17 * 60}
	case "evening":
		q.Filters.Time = catalog.TimeRange{Start: 17 * 60, End: 24 * 60}
	}

	q.Normalize()
	return Parse{Query: q, Anaphoric: wire.RefersToPrevious, Ordinals: wire.Ordinals}
}

func normalizeIntent(raw string) Intent {
	switch Intent(strings.ToLower(strings.TrimSpace(raw))) {
	case IntentPrerequisite:
		return IntentPrerequisite
	case IntentInstructorLookup:
		return IntentInstructorLookup
	case IntentComparison:
		return IntentComparison
	case IntentConflictCheck:
		return IntentConflictCheck
	default:
		return IntentSearch
	}
}
