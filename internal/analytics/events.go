package analytics

import (
	"time"

	"github.com/Adithya-Monish-Kumar-K/Report-Index-Search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/Report-Index-Search/internal/searcher/parser"
)

type EventType string

const (
	EventSearch EventType = "search"
	EventExport EventType = "export"
)

// SearchEvent describes one answered search or CSV export. Status is one of
// the executor outcome labels.
type SearchEvent struct {
	Type         EventType `json:"type"`
	Status       string    `json:"status"`
	Query        string    `json:"query"`
	RawQuery     string    `json:"raw_query"`
	Terms        []string  `json:"terms"`
	Joins        []string  `json:"joins,omitempty"`
	Count        int       `json:"count"`
	LargeResult  bool      `json:"large_result"`
	MissingTerms []string  `json:"missing_terms,omitempty"`
	LatencyMs    int64     `json:"latency_ms"`
	CacheHit     bool      `json:"cache_hit"`
	IndexVersion string    `json:"index_version,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
	RequestID    string    `json:"request_id,omitempty"`
}

// NewSearchEvent builds the event for a completed search.
func NewSearchEvent(typ EventType, q *parser.Query, res *executor.SearchResult, cacheHit bool, latency time.Duration) SearchEvent {
	joins := make([]string, len(q.Joins))
	for i, j := range q.Joins {
		joins[i] = string(j)
	}
	status := executor.OutcomeFound
	switch {
	case !res.Found():
		status = executor.OutcomeTermNotFound
	case res.Empty():
		status = executor.OutcomeEmpty
	}
	return SearchEvent{
		Type:         typ,
		Status:       status,
		Query:        q.String(),
		RawQuery:     q.RawQuery,
		Terms:        q.Keys(),
		Joins:        joins,
		Count:        res.Count,
		LargeResult:  res.LargeResult,
		MissingTerms: res.MissingTerms,
		LatencyMs:    latency.Milliseconds(),
		CacheHit:     cacheHit,
		IndexVersion: res.IndexVersion,
		Timestamp:    time.Now().UTC(),
	}
}
