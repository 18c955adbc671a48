// Package evaluator runs boolean queries against an inverted index of report
// identifiers. Evaluation is a pure function of the query and the index: every
// referenced term is looked up first, the results are combined pairwise left to
// right, and the final set is deduplicated and sorted ascending.
package evaluator

import (
	"errors"
	"fmt"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/Report-Index-Search/internal/searcher/parser"
	apperrors "github.com/Adithya-Monish-Kumar-K/Report-Index-Search/pkg/errors"
)

// DefaultLargeResultThreshold is the result count above which presentation
// layers summarise instead of listing every identifier.
const DefaultLargeResultThreshold = 200

// ErrInvalidJoin is returned by Combine for a join outside AND, OR and NOT.
var ErrInvalidJoin = errors.New("invalid join")

// Index resolves a normalized term to the identifiers of the documents that
// contain it. ok is false when the term is not a key of the index at all.
type Index interface {
	Lookup(term string) (docIDs []string, ok bool)
}

type Status string

const (
	StatusFound        Status = "found"
	StatusTermNotFound Status = "term_not_found"
)

// Outcome is the result of one evaluation. A TermNotFound outcome never
// carries results, only the keys that were missing.
type Outcome struct {
	Status       Status   `json:"status"`
	Results      []string `json:"results"`
	Count        int      `json:"count"`
	LargeResult  bool     `json:"large_result"`
	MissingTerms []string `json:"missing_terms,omitempty"`
}

// Found reports whether every term resolved.
func (o *Outcome) Found() bool {
	return o.Status == StatusFound
}

// Empty reports whether every term resolved but the combination matched
// nothing.
func (o *Outcome) Empty() bool {
	return o.Status == StatusFound && o.Count == 0
}

// Evaluator holds the display policy applied to outcomes. It keeps no state
// between calls and is safe for concurrent use.
type Evaluator struct {
	largeResultThreshold int
}

// New returns an Evaluator flagging results larger than threshold. A
// negative threshold selects DefaultLargeResultThreshold.
func New(largeResultThreshold int) *Evaluator {
	if largeResultThreshold < 0 {
		largeResultThreshold = DefaultLargeResultThreshold
	}
	return &Evaluator{largeResultThreshold: largeResultThreshold}
}

// LargeResultThreshold returns the configured threshold.
func (e *Evaluator) LargeResultThreshold() int {
	return e.largeResultThreshold
}

// Evaluate looks up every term of q in idx and combines the postings as
// (term1 join1 term2) join2 term3. A missing term fails the whole query with
// a TermNotFound outcome; an invalid query is returned as an error.
func (e *Evaluator) Evaluate(q *parser.Query, idx Index) (*Outcome, error) {
	if q == nil {
		return nil, fmt.Errorf("%w: nil query", apperrors.ErrInvalidQuery)
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}
	if idx == nil {
		return nil, fmt.Errorf("evaluating %q: %w", q.String(), apperrors.ErrIndexUnavailable)
	}

	postings := make([][]string, len(q.Terms))
	var missing []string
	for i, term := range q.Terms {
		docIDs, ok := idx.Lookup(term.Term)
		if !ok {
			missing = append(missing, term.Term)
			continue
		}
		postings[i] = docIDs
	}
	if len(missing) > 0 {
		return &Outcome{
			Status:       StatusTermNotFound,
			Results:      []string{},
			MissingTerms: missing,
		}, nil
	}

	result := dedupSorted(postings[0])
	for i, join := range q.Joins {
		combined, err := Combine(join, result, postings[i+1])
		if err != nil {
			return nil, fmt.Errorf("%w: %v", apperrors.ErrInvalidQuery, err)
		}
		result = combined
	}
	return &Outcome{
		Status:      StatusFound,
		Results:     result,
		Count:       len(result),
		LargeResult: len(result) > e.largeResultThreshold,
	}, nil
}

// Combine applies one join to two identifier collections. AND keeps
// identifiers present in both, OR keeps identifiers present in either and NOT
// keeps identifiers of a that are absent from b. The result holds each
// identifier once, sorted ascending.
func Combine(join parser.Join, a, b []string) ([]string, error) {
	var keep func(inA, inB bool) bool
	switch join {
	case parser.JoinAND:
		keep = func(inA, inB bool) bool { return inA && inB }
	case parser.JoinOR:
		keep = func(inA, inB bool) bool { return inA || inB }
	case parser.JoinNOT:
		keep = func(inA, inB bool) bool { return inA && !inB }
	default:
		return nil, fmt.Errorf("%w %q", ErrInvalidJoin, string(join))
	}

	setA := toSet(a)
	setB := toSet(b)
	result := make([]string, 0, len(setA))
	for id := range setA {
		_, inB := setB[id]
		if keep(true, inB) {
			result = append(result, id)
		}
	}
	for id := range setB {
		if _, inA := setA[id]; inA {
			continue
		}
		if keep(false, true) {
			result = append(result, id)
		}
	}
	sort.Strings(result)
	return result, nil
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func dedupSorted(ids []string) []string {
	set := toSet(ids)
	result := make([]string, 0, len(set))
	for id := range set {
		result = append(result, id)
	}
	sort.Strings(result)
	return result
}
