package executor

import (
	"context"
	"errors"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/Report-Index-Search/internal/index"
	"github.com/Adithya-Monish-Kumar-K/Report-Index-Search/internal/searcher/evaluator"
	"github.com/Adithya-Monish-Kumar-K/Report-Index-Search/internal/searcher/parser"
	apperrors "github.com/Adithya-Monish-Kumar-K/Report-Index-Search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Report-Index-Search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Report-Index-Search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Report-Index-Search/pkg/tracing"
)

// Outcome labels recorded on the search_queries_total counter.
const (
	OutcomeFound        = "found"
	OutcomeEmpty        = "empty"
	OutcomeTermNotFound = "term_not_found"
	OutcomeInvalid      = "invalid"
	OutcomeError        = "error"
)

// IndexSource supplies the index to search. *index.Holder implements it.
type IndexSource interface {
	Current() *index.Index
}

// SearchResult is an evaluated query together with the text shown to the
// user and the index version it was computed against.
type SearchResult struct {
	Query    string `json:"query"`
	RawQuery string `json:"raw_query"`
	evaluator.Outcome
	Messages     []string `json:"messages"`
	IndexVersion string   `json:"index_version"`
}

type Executor struct {
	source    IndexSource
	evaluator *evaluator.Evaluator
	metrics   *metrics.Metrics
}

// New creates an Executor. m may be nil.
func New(source IndexSource, eval *evaluator.Evaluator, m *metrics.Metrics) *Executor {
	return &Executor{
		source:    source,
		evaluator: eval,
		metrics:   m,
	}
}

// IndexVersion returns the version of the index currently being served, or
// "" when none is loaded.
func (e *Executor) IndexVersion() string {
	if idx := e.source.Current(); idx != nil {
		return idx.Version()
	}
	return ""
}

// Execute evaluates q against the current index.
func (e *Executor) Execute(ctx context.Context, q *parser.Query) (*SearchResult, error) {
	log := logger.FromContext(ctx).With("component", "query-executor")
	_, span := tracing.StartChildSpan(ctx, "evaluate")
	defer span.End()
	if q == nil {
		e.count(OutcomeInvalid)
		return nil, fmt.Errorf("%w: nil query", apperrors.ErrInvalidQuery)
	}
	idx := e.source.Current()
	if idx == nil {
		e.count(OutcomeError)
		return nil, fmt.Errorf("searching %q: %w", q.String(), apperrors.ErrIndexUnavailable)
	}
	out, err := e.evaluator.Evaluate(q, idx)
	if err != nil {
		if errors.Is(err, apperrors.ErrInvalidQuery) {
			e.count(OutcomeInvalid)
		} else {
			e.count(OutcomeError)
		}
		return nil, err
	}

	label := OutcomeFound
	switch {
	case !out.Found():
		label = OutcomeTermNotFound
	case out.Empty():
		label = OutcomeEmpty
	}
	e.count(label)
	span.SetAttr("terms", len(q.Terms))
	span.SetAttr("results", out.Count)
	if e.metrics != nil && out.Found() {
		e.metrics.SearchResultsCount.Observe(float64(out.Count))
		if out.LargeResult {
			e.metrics.LargeResultsTotal.Inc()
		}
	}

	log.Info("query executed",
		"query", q.String(),
		"outcome", label,
		"results", out.Count,
		"missing", out.MissingTerms,
		"index_version", idx.Version(),
	)
	return Decorate(q, *out, idx.Version()), nil
}

// Decorate attaches the query text and the user messages for q to an
// outcome. Outcomes are shared between queries with the same normalized
// form, so the text must come from the caller's own query.
func Decorate(q *parser.Query, out evaluator.Outcome, indexVersion string) *SearchResult {
	return &SearchResult{
		Query:        q.String(),
		RawQuery:     q.RawQuery,
		Outcome:      out,
		Messages:     evaluator.Messages(q, &out),
		IndexVersion: indexVersion,
	}
}

func (e *Executor) count(outcome string) {
	if e.metrics != nil {
		e.metrics.SearchQueriesTotal.WithLabelValues(outcome).Inc()
	}
}
