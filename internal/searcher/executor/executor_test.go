package executor

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/Adithya-Monish-Kumar-K/Report-Index-Search/internal/index"
	"github.com/Adithya-Monish-Kumar-K/Report-Index-Search/internal/searcher/evaluator"
	"github.com/Adithya-Monish-Kumar-K/Report-Index-Search/internal/searcher/parser"
	apperrors "github.com/Adithya-Monish-Kumar-K/Report-Index-Search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Report-Index-Search/pkg/metrics"
)

func newExecutor(t *testing.T, postings map[string][]string) (*Executor, *metrics.Metrics) {
	t.Helper()
	holder := index.NewHolder()
	if postings != nil {
		holder.Store(index.New(postings, "v1"), "test")
	}
	m := metrics.New(prometheus.NewRegistry())
	return New(holder, evaluator.New(2), m), m
}

func mustParse(t *testing.T, text string) *parser.Query {
	t.Helper()
	q, err := parser.Parse(text)
	if err != nil {
		t.Fatal(err)
	}
	return q
}

func TestExecute(t *testing.T) {
	exec, m := newExecutor(t, map[string][]string{
		"coal": {"R1", "R3", "R4"},
		"seam": {"R2", "R3"},
		"rare": {},
	})
	tests := []struct {
		query   string
		status  evaluator.Status
		results []string
		outcome string
	}{
		{"coal AND seam", evaluator.StatusFound, []string{"R3"}, OutcomeFound},
		{"Coal NOT seam", evaluator.StatusFound, []string{"R1", "R4"}, OutcomeFound},
		{"rare", evaluator.StatusFound, []string{}, OutcomeEmpty},
		{"gold OR coal", evaluator.StatusTermNotFound, []string{}, OutcomeTermNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			res, err := exec.Execute(context.Background(), mustParse(t, tt.query))
			if err != nil {
				t.Fatalf("Execute() error = %v", err)
			}
			if res.Status != tt.status {
				t.Errorf("Status = %s, want %s", res.Status, tt.status)
			}
			if !reflect.DeepEqual(res.Results, tt.results) {
				t.Errorf("Results = %v, want %v", res.Results, tt.results)
			}
			if res.IndexVersion != "v1" {
				t.Errorf("IndexVersion = %q, want v1", res.IndexVersion)
			}
			if len(res.Messages) == 0 {
				t.Error("expected user messages")
			}
			if got := testutil.ToFloat64(m.SearchQueriesTotal.WithLabelValues(tt.outcome)); got != 1 {
				t.Errorf("search_queries_total{outcome=%s} = %v, want 1", tt.outcome, got)
			}
		})
	}
}

func TestExecuteLargeResult(t *testing.T) {
	exec, m := newExecutor(t, map[string][]string{"coal": {"R1", "R2", "R3"}})
	res, err := exec.Execute(context.Background(), parser.Single("coal"))
	if err != nil {
		t.Fatal(err)
	}
	if !res.LargeResult || res.Count != 3 || len(res.Results) != 3 {
		t.Errorf("unexpected large result: %+v", res)
	}
	if got := testutil.ToFloat64(m.LargeResultsTotal); got != 1 {
		t.Errorf("large_results_total = %v, want 1", got)
	}
	if !strings.Contains(strings.Join(res.Messages, " "), "too many to print") {
		t.Errorf("Messages = %q", res.Messages)
	}
}

func TestExecuteWithoutIndex(t *testing.T) {
	exec, m := newExecutor(t, nil)
	_, err := exec.Execute(context.Background(), parser.Single("coal"))
	if !errors.Is(err, apperrors.ErrIndexUnavailable) {
		t.Errorf("error = %v, want ErrIndexUnavailable", err)
	}
	if exec.IndexVersion() != "" {
		t.Error("IndexVersion should be empty without an index")
	}
	if got := testutil.ToFloat64(m.SearchQueriesTotal.WithLabelValues(OutcomeError)); got != 1 {
		t.Errorf("search_queries_total{outcome=error} = %v, want 1", got)
	}
}

func TestExecuteInvalidQuery(t *testing.T) {
	exec, _ := newExecutor(t, map[string][]string{"coal": {"R1"}})
	q := &parser.Query{Terms: parser.Single("coal").Terms, Joins: []parser.Join{"XOR"}}
	if _, err := exec.Execute(context.Background(), q); !errors.Is(err, apperrors.ErrInvalidQuery) {
		t.Errorf("error = %v, want ErrInvalidQuery", err)
	}
	if _, err := exec.Execute(context.Background(), nil); !errors.Is(err, apperrors.ErrInvalidQuery) {
		t.Errorf("nil query error = %v, want ErrInvalidQuery", err)
	}
}
