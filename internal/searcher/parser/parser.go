// Package parser builds search queries from user input. A query holds one to
// three normalized terms joined by AND, OR or NOT and is always evaluated
// left to right: (term1 join1 term2) join2 term3.
package parser

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/Adithya-Monish-Kumar-K/Report-Index-Search/internal/searcher/normalizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/Report-Index-Search/pkg/errors"
)

// MaxTerms is the number of terms the fixed two-join grammar allows.
const MaxTerms = 3

type Join string

const (
	JoinAND Join = "AND"
	JoinOR  Join = "OR"
	JoinNOT Join = "NOT"
)

// Valid reports whether j is one of AND, OR or NOT.
func (j Join) Valid() bool {
	switch j {
	case JoinAND, JoinOR, JoinNOT:
		return true
	}
	return false
}

// ParseJoin accepts a join name in any letter case.
func ParseJoin(s string) (Join, error) {
	j := Join(strings.ToUpper(strings.TrimSpace(s)))
	if !j.Valid() {
		return "", fmt.Errorf("%w: unknown join %q (want AND, OR or NOT)", apperrors.ErrInvalidQuery, s)
	}
	return j, nil
}

// Query is a single-, two- or three-term search. Joins always has exactly
// len(Terms)-1 entries.
type Query struct {
	Terms    []normalizer.Normalized `json:"terms"`
	Joins    []Join                  `json:"joins"`
	RawQuery string                  `json:"raw_query"`
}

// Single builds a one-term query.
func Single(raw string) *Query {
	return &Query{
		Terms:    []normalizer.Normalized{normalizer.Term(raw)},
		Joins:    []Join{},
		RawQuery: raw,
	}
}

// New builds a query from raw terms and the joins between them.
func New(raws []string, joins []Join) (*Query, error) {
	q := &Query{
		Terms: make([]normalizer.Normalized, 0, len(raws)),
		Joins: joins,
	}
	if q.Joins == nil {
		q.Joins = []Join{}
	}
	for _, raw := range raws {
		q.Terms = append(q.Terms, normalizer.Term(raw))
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}
	q.RawQuery = q.raw()
	return q, nil
}

// FromForm builds a query from the search form fields. A blank term3 yields
// a two-term query and blank term2 and term3 a single-term query; join
// values are only read for the terms that are used.
func FromForm(term1, join1, term2, join2, term3 string) (*Query, error) {
	if term1 == "" {
		return nil, fmt.Errorf("%w: the first search term is required", apperrors.ErrInvalidQuery)
	}
	if term2 == "" && term3 == "" {
		return Single(term1), nil
	}
	j1, err := ParseJoin(join1)
	if err != nil {
		return nil, err
	}
	if term3 == "" {
		return New([]string{term1, term2}, []Join{j1})
	}
	j2, err := ParseJoin(join2)
	if err != nil {
		return nil, err
	}
	return New([]string{term1, term2, term3}, []Join{j1, j2})
}

// Parse reads a free-text query such as "coal seam AND gold NOT copper".
// The upper-case words AND, OR and NOT are joins; every run of other words
// forms one term, so multi-word phrases need no quoting. A term keeps its
// text as typed, inner spacing included; only the whitespace separating it
// from a join or the ends of the input is dropped.
func Parse(text string) (*Query, error) {
	spans := wordSpans(text)
	if len(spans) == 0 {
		return nil, fmt.Errorf("%w: query is empty", apperrors.ErrInvalidQuery)
	}
	raws := make([]string, 0, MaxTerms)
	joins := make([]Join, 0, MaxTerms-1)
	termStart, termEnd := -1, -1
	for i, sp := range spans {
		j := Join(text[sp[0]:sp[1]])
		if !j.Valid() {
			if termStart < 0 {
				termStart = sp[0]
			}
			termEnd = sp[1]
			continue
		}
		if termStart < 0 {
			return nil, fmt.Errorf("%w: %s at position %d has no term before it", apperrors.ErrInvalidQuery, j, i+1)
		}
		raws = append(raws, text[termStart:termEnd])
		joins = append(joins, j)
		termStart = -1
	}
	if termStart < 0 {
		return nil, fmt.Errorf("%w: query ends with %s", apperrors.ErrInvalidQuery, joins[len(joins)-1])
	}
	raws = append(raws, text[termStart:termEnd])
	q, err := New(raws, joins)
	if err != nil {
		return nil, err
	}
	q.RawQuery = text
	return q, nil
}

// wordSpans returns the byte offsets [start, end) of each whitespace
// separated word in text.
func wordSpans(text string) [][2]int {
	var spans [][2]int
	start := -1
	for i, r := range text {
		if unicode.IsSpace(r) {
			if start >= 0 {
				spans = append(spans, [2]int{start, i})
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		spans = append(spans, [2]int{start, len(text)})
	}
	return spans
}

// Validate checks the term count and every join.
func (q *Query) Validate() error {
	if len(q.Terms) == 0 {
		return fmt.Errorf("%w: no search terms", apperrors.ErrInvalidQuery)
	}
	if len(q.Terms) > MaxTerms {
		return fmt.Errorf("%w: at most %d terms are supported, got %d", apperrors.ErrInvalidQuery, MaxTerms, len(q.Terms))
	}
	if len(q.Joins) != len(q.Terms)-1 {
		return fmt.Errorf("%w: %d terms need %d joins, got %d", apperrors.ErrInvalidQuery, len(q.Terms), len(q.Terms)-1, len(q.Joins))
	}
	for _, j := range q.Joins {
		if !j.Valid() {
			return fmt.Errorf("%w: unknown join %q", apperrors.ErrInvalidQuery, string(j))
		}
	}
	return nil
}

// Modified reports whether any term lost characters during normalization.
func (q *Query) Modified() bool {
	for _, t := range q.Terms {
		if t.Modified {
			return true
		}
	}
	return false
}

// Keys returns the normalized lookup keys in query order.
func (q *Query) Keys() []string {
	keys := make([]string, len(q.Terms))
	for i, t := range q.Terms {
		keys[i] = t.Term
	}
	return keys
}

// String renders the normalized query, e.g. "coal AND seam OR gold". Two
// queries with the same String evaluate identically.
func (q *Query) String() string {
	return q.render(func(t normalizer.Normalized) string { return t.Term })
}

func (q *Query) raw() string {
	return q.render(func(t normalizer.Normalized) string { return t.Raw })
}

func (q *Query) render(term func(normalizer.Normalized) string) string {
	var b strings.Builder
	for i, t := range q.Terms {
		if i > 0 {
			b.WriteByte(' ')
			b.WriteString(string(q.Joins[i-1]))
			b.WriteByte(' ')
		}
		b.WriteString(term(t))
	}
	return b.String()
}
