// Copyright (C) 2025 Savwangs
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package query

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"
)

// ===== Metrics =====

var (
	interpretTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coursedb_interpret_total",
		Help: "Interpreter outcomes by kind.",
	}, []string{"outcome"})

	interpretDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "coursedb_interpret_duration_seconds",
		Help:    "Time to interpret one question.",
		Buckets: prometheus.DefBuckets,
	})

	llmParseFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "coursedb_llm_parse_failures_total",
		Help: "LLM parse attempts that failed and fell back to rules.",
	})
)

// Outcome is the interpreter's answer for one turn: exactly one of Query or
// Clarification is set.
type Outcome struct {
	Query         *StructuredQuery
	Clarification *Clarification
}

// InterpreterConfig tunes interpretation policy.
type InterpreterConfig struct {
	// ConfidenceThreshold gates low-confidence readings into
	// clarifications instead of guesses.
	ConfidenceThreshold float64

	// LLMRateLimit caps inference calls per second; bursts of one.
	// Zero disables the limiter.
	LLMRateLimit float64

	// LLMCooldown is how long the LLM is skipped after two consecutive
	// failures.
	LLMCooldown time.Duration
}

// DefaultInterpreterConfig returns the production defaults.
func DefaultInterpreterConfig() InterpreterConfig {
	return InterpreterConfig{
		ConfidenceThreshold: 0.5,
		LLMRateLimit:        5,
		LLMCooldown:         time.Minute,
	}
}

// Interpreter owns conversation policy on top of the parsers.
//
// Description:
//
//	The rule parser always runs; the LLM parser (when configured) runs
//	beside it and its reading wins when it succeeds, since it handles
//	phrasings the rules miss. Inference failures are retried once, and
//	after two consecutive failed turns the LLM is benched for a cooldown
//	so a dead provider cannot slow every request. The interpreter then
//	resolves back-references against the conversation, merges follow-up
//	filters (explicit fields win), and gates low-confidence readings into
//	clarification questions.
//
// Thread Safety: safe for concurrent use. The Context passed to Interpret
// must be exclusively held by the caller for the turn; the session store
// guarantees that.
type Interpreter struct {
	rules   Parser
	llm     Parser
	cfg     InterpreterConfig
	limiter *rate.Limiter
	logger  *slog.Logger

	mu           sync.Mutex
	llmFailures  int
	llmBenchedAt time.Time
}

// NewInterpreter builds an Interpreter. llm may be nil for the rules-only
// deployment.
func NewInterpreter(rules Parser, llm Parser, cfg InterpreterConfig, logger *slog.Logger) *Interpreter {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ConfidenceThreshold <= 0 {
		cfg.ConfidenceThreshold = DefaultInterpreterConfig().ConfidenceThreshold
	}
	if cfg.LLMCooldown <= 0 {
		cfg.LLMCooldown = DefaultInterpreterConfig().LLMCooldown
	}
	it := &Interpreter{rules: rules, llm: llm, cfg: cfg, logger: logger}
	if cfg.LLMRateLimit > 0 {
		it.limiter = rate.NewLimiter(rate.Limit(cfg.LLMRateLimit), 1)
	}
	return it
}

// Interpret resolves one question against the conversation.
//
// Inputs:
//   - ctx: Request context; bounds any inference call.
//   - text: The raw question.
//   - convo: The session's conversation state, exclusively held.
//   - vocab: The live catalog vocabulary (allow-list).
//
// Outputs:
//   - Outcome: A resolved query, or a clarification to show the user.
//   - error: ErrEmptyQuery, or an inference transport error only when no
//     fallback could produce a reading (never in practice: rules always run).
func (it *Interpreter) Interpret(ctx context.Context, text string, convo *Context, vocab Vocabulary) (Outcome, error) {
	start := time.Now()
	defer func() { interpretDuration.Observe(time.Since(start).Seconds()) }()

	ctx, span := otel.Tracer("coursedb/query").Start(ctx, "query.Interpret")
	defer span.End()

	if strings.TrimSpace(text) == "" {
		interpretTotal.WithLabelValues("empty").Inc()
		return Outcome{}, ErrEmptyQuery
	}

	// A pending clarification intercepts the turn first: the user may be
	// answering the question we asked.
	if convo != nil && convo.Pending != nil {
		if picked, ok := resolveClarificationAnswer(text, convo.Pending); ok {
			convo.Pending = nil
			q := picked
			q.Raw = text
			q.Intent = IntentClarificationAnswer
			span.SetAttributes(attribute.String("outcome", "clarification_answer"))
			interpretTotal.WithLabelValues("clarification_answer").Inc()
			return Outcome{Query: &q}, nil
		}
		// Not an answer; drop the stale question and read it fresh.
		convo.Pending = nil
	}

	parse, err := it.parse(ctx, text, vocab)
	if err != nil {
		interpretTotal.WithLabelValues("parse_error").Inc()
		return Outcome{}, err
	}

	outcome, err := it.resolve(parse, convo)
	if err != nil {
		return Outcome{}, err
	}
	if outcome.Clarification != nil {
		if convo != nil {
			convo.Pending = outcome.Clarification
		}
		span.SetAttributes(attribute.String("outcome", "clarification"))
		interpretTotal.WithLabelValues("clarification").Inc()
		return outcome, nil
	}

	span.SetAttributes(
		attribute.String("outcome", "query"),
		attribute.String("intent", string(outcome.Query.Intent)),
		attribute.Float64("confidence", outcome.Query.Confidence),
	)
	interpretTotal.WithLabelValues("query").Inc()
	return outcome, nil
}

// parse runs the rule parser and, when available, the LLM parser.
func (it *Interpreter) parse(ctx context.Context, text string, vocab Vocabulary) (Parse, error) {
	ruleParse, ruleErr := it.rules.Parse(ctx, text, vocab)
	if it.llm == nil || !it.llmAvailable() {
		return ruleParse, ruleErr
	}
	if it.limiter != nil && !it.limiter.Allow() {
		return ruleParse, ruleErr
	}

	modelParse, err := it.llm.Parse(ctx, text, vocab)
	if err != nil {
		// One retry; providers hiccup.
		modelParse, err = it.llm.Parse(ctx, text, vocab)
	}
	if err != nil {
		llmParseFailures.Inc()
		it.recordLLMFailure(err)
		return ruleParse, ruleErr
	}
	it.recordLLMSuccess()

	// The LLM reading wins, but deterministic extractions it missed are
	// kept: the rules never hallucinate, so their codes are safe to union.
	merged := modelParse
	merged.Query.CourseCodes = append(merged.Query.CourseCodes, ruleParse.Query.CourseCodes...)
	merged.Query.Normalize()
	merged.Anaphoric = merged.Anaphoric || ruleParse.Anaphoric
	merged.FollowUp = merged.FollowUp || ruleParse.FollowUp
	if len(merged.Ordinals) == 0 {
		merged.Ordinals = ruleParse.Ordinals
	}
	return merged, nil
}

func (it *Interpreter) llmAvailable() bool {
	it.mu.Lock()
	defer it.mu.Unlock()
	if it.llmFailures < 2 {
		return true
	}
	if time.Since(it.llmBenchedAt) >= it.cfg.LLMCooldown {
		it.llmFailures = 0
		return true
	}
	return false
}

func (it *Interpreter) recordLLMFailure(err error) {
	it.mu.Lock()
	defer it.mu.Unlock()
	it.llmFailures++
	if it.llmFailures == 2 {
		it.llmBenchedAt = time.Now()
		it.logger.Warn("benching LLM parser after consecutive failures",
			slog.String("error", err.Error()),
			slog.Duration("cooldown", it.cfg.LLMCooldown))
	}
}

func (it *Interpreter) recordLLMSuccess() {
	it.mu.Lock()
	it.llmFailures = 0
	it.mu.Unlock()
}

// =============================================================================
// Context resolution
// =============================================================================

// resolve applies conversation policy to a raw parse.
func (it *Interpreter) resolve(parse Parse, convo *Context) (Outcome, error) {
	q := parse.Query

	// A bare refinement ("online only", "on tuesdays") names no course or
	// subject of its own; with an antecedent it narrows the previous
	// answer rather than searching the whole catalog.
	anaphoric := parse.Anaphoric
	if !anaphoric && !q.Scoped() && !q.Filters.IsZero() &&
		convo != nil && convo.HasAntecedent() {
		anaphoric = true
	}

	if anaphoric && !q.Scoped() {
		if convo == nil || !convo.HasAntecedent() {
			return Outcome{Clarification: &Clarification{
				Question: "I'm not sure what that refers to. Which course or subject do you mean?",
			}}, nil
		}
		q.CourseCodes = append([]string(nil), convo.LastCourses...)
		q.Subjects = append([]string(nil), convo.LastSubjects...)
		q.Filters = MergeFilters(convo.LastFilters, q.Filters)
		q.UsedContext = true

		if len(parse.Ordinals) > 0 {
			ids, err := pickOrdinals(parse.Ordinals, convo.LastResultIDs)
			if err != nil {
				return Outcome{Clarification: &Clarification{
					Question: "I don't have that many results from the last answer. Which section do you mean?",
				}}, nil
			}
			q.SectionIDs = ids
		}
	} else if parse.FollowUp && convo != nil && convo.Turns > 0 {
		// New scope, inherited filters: "what about MATH-192?" after an
		// online-only search stays online-only.
		q.Filters = MergeFilters(convo.LastFilters, q.Filters)
		q.UsedContext = true
	}

	q.Confidence = scoreConfidence(&q)
	q.Normalize()

	if q.Confidence < it.cfg.ConfidenceThreshold {
		return Outcome{Clarification: it.lowConfidenceClarification(&q)}, nil
	}
	return Outcome{Query: &q}, nil
}

// scoreConfidence is a fixed heuristic, not a probability: explicit scope
// beats inherited scope beats bare filters.
func scoreConfidence(q *StructuredQuery) float64 {
	switch {
	case len(q.CourseCodes) > 0 || len(q.SectionIDs) > 0:
		if q.UsedContext {
			return 0.75
		}
		return 0.95
	case len(q.Subjects) > 0:
		if q.UsedContext {
			return 0.75
		}
		return 0.85
	case !q.Filters.IsZero():
		if q.UsedContext {
			return 0.75
		}
		// Filters over the whole catalog are a legitimate query
		// ("what's open on Saturdays?").
		return 0.6
	default:
		return 0.3
	}
}

func (it *Interpreter) lowConfidenceClarification(q *StructuredQuery) *Clarification {
	return &Clarification{
		Question: "I couldn't tell which courses you're asking about. Try a course code like COMSC-110, a subject like MATH, or a filter like \"online classes on Tuesdays\".",
		Candidates: []Interpretation{
			{Label: "Search the whole catalog with no filters", Query: StructuredQuery{Intent: IntentSearch, Raw: q.Raw}, Confidence: 0.3},
		},
	}
}

// pickOrdinals maps 1-based positions (and -1 for last) into result ids.
func pickOrdinals(ordinals []int, resultIDs []string) ([]string, error) {
	if len(resultIDs) == 0 {
		return nil, fmt.Errorf("no previous results")
	}
	var out []string
	for _, n := range ordinals {
		idx := n - 1
		if n == -1 {
			idx = len(resultIDs) - 1
		}
		if idx < 0 || idx >= len(resultIDs) {
			return nil, fmt.Errorf("ordinal %d out of range", n)
		}
		out = append(out, resultIDs[idx])
	}
	return out, nil
}

// resolveClarificationAnswer matches the user's reply against the pending
// candidates: by 1-based number, ordinal word, or label substring.
func resolveClarificationAnswer(text string, pending *Clarification) (StructuredQuery, bool) {
	low := strings.ToLower(strings.TrimSpace(text))
	if low == "" || len(pending.Candidates) == 0 {
		return StructuredQuery{}, false
	}

	if n, err := strconv.Atoi(low); err == nil && n >= 1 && n <= len(pending.Candidates) {
		return pending.Candidates[n-1].Query, true
	}
	for word, n := range ordinalWords {
		if strings.Contains(low, word) && n >= 1 && n <= len(pending.Candidates) {
			return pending.Candidates[n-1].Query, true
		}
	}
	for _, cand := range pending.Candidates {
		if strings.Contains(low, strings.ToLower(cand.Label)) ||
			(cand.Label != "" && strings.Contains(strings.ToLower(cand.Label), low)) {
			return cand.Query, true
		}
	}
	return StructuredQuery{}, false
}
