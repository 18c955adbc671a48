package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Report-Index-Search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Report-Index-Search/internal/index"
	"github.com/Adithya-Monish-Kumar-K/Report-Index-Search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/Report-Index-Search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/Report-Index-Search/internal/searcher/export"
	"github.com/Adithya-Monish-Kumar-K/Report-Index-Search/internal/searcher/parser"
	apperrors "github.com/Adithya-Monish-Kumar-K/Report-Index-Search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Report-Index-Search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Report-Index-Search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Report-Index-Search/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/Report-Index-Search/pkg/tracing"
)

type SearchExecutor interface {
	Execute(ctx context.Context, q *parser.Query) (*executor.SearchResult, error)
	IndexVersion() string
}

// IndexSource exposes the snapshot being served. *index.Holder implements it.
type IndexSource interface {
	Snapshot() *index.Snapshot
}

// Refresher reloads the index on demand. *loader.Loader implements it.
type Refresher interface {
	Refresh(ctx context.Context) error
}

type Tracker interface {
	Track(event analytics.SearchEvent)
}

// SearchResponse is the body of GET /api/v1/search.
type SearchResponse struct {
	*executor.SearchResult
	CacheHit bool `json:"cache_hit"`
}

// Options carries the optional collaborators; nil fields disable the
// feature they back.
type Options struct {
	Cache     *cache.QueryCache
	Tracker   Tracker
	Refresher Refresher
	Metrics   *metrics.Metrics
}

type Handler struct {
	executor SearchExecutor
	source   IndexSource
	opts     Options
	logger   *slog.Logger
}

func New(exec SearchExecutor, source IndexSource, opts Options) *Handler {
	return &Handler{
		executor: exec,
		source:   source,
		opts:     opts,
		logger:   slog.Default().With("component", "search-handler"),
	}
}

// Register mounts every route on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/search/export", h.Export)
	mux.HandleFunc("GET /api/v1/index", h.IndexInfo)
	mux.HandleFunc("POST /api/v1/index/refresh", h.RefreshIndex)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
}

// Search answers ?q=coal+AND+seam or the form fields
// ?term1=&join1=&term2=&join2=&term3=.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx, span := startSpan(r, "search")
	defer endSpan(ctx, span)
	q, err := queryFromRequest(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	span.SetAttr("query", q.String())
	result, cacheHit, err := h.run(ctx, q)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.finish(r, analytics.EventSearch, q, result, cacheHit, start)
	h.writeJSON(w, http.StatusOK, &SearchResponse{SearchResult: result, CacheHit: cacheHit})
}

// Export answers the same parameters as Search with a CSV attachment of the
// full result. Queries with missing terms are reported as JSON instead.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx, span := startSpan(r, "export")
	defer endSpan(ctx, span)
	q, err := queryFromRequest(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	span.SetAttr("query", q.String())
	result, cacheHit, err := h.run(ctx, q)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.finish(r, analytics.EventExport, q, result, cacheHit, start)
	if !result.Found() {
		h.writeJSON(w, http.StatusNotFound, &SearchResponse{SearchResult: result, CacheHit: cacheHit})
		return
	}
	w.Header().Set("Content-Type", export.ContentType+"; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename(q)))
	w.WriteHeader(http.StatusOK)
	if err := export.WriteCSV(w, result.Results); err != nil {
		logger.FromContext(r.Context()).Error("writing csv export failed", "error", err)
	}
}

func (h *Handler) IndexInfo(w http.ResponseWriter, r *http.Request) {
	snap := h.source.Snapshot()
	if snap == nil {
		h.writeError(w, r, fmt.Errorf("%w: no index loaded", apperrors.ErrIndexUnavailable))
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"version":   snap.Index.Version(),
		"terms":     snap.Index.Len(),
		"documents": snap.Index.DocCount(),
		"source":    snap.Source,
		"loaded_at": snap.LoadedAt.UTC().Format(time.RFC3339),
	})
}

func (h *Handler) RefreshIndex(w http.ResponseWriter, r *http.Request) {
	if h.opts.Refresher == nil {
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "index refresh is disabled"})
		return
	}
	if err := h.opts.Refresher.Refresh(r.Context()); err != nil {
		logger.FromContext(r.Context()).Error("index refresh failed", "error", err)
		h.writeJSON(w, http.StatusBadGateway, map[string]string{"error": "index refresh failed"})
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{
		"status":  "refreshed",
		"version": h.executor.IndexVersion(),
	})
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.opts.Cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	hits, misses := h.opts.Cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.opts.Cache == nil {
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "caching is disabled"})
		return
	}
	deleted, err := h.opts.Cache.Invalidate(r.Context())
	if err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "cache invalidation failed"})
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"status": "invalidated", "keys_deleted": deleted})
}

func (h *Handler) run(ctx context.Context, q *parser.Query) (*executor.SearchResult, bool, error) {
	if h.opts.Cache == nil {
		result, err := h.executor.Execute(ctx, q)
		return result, false, err
	}
	version := h.executor.IndexVersion()
	if version == "" {
		result, err := h.executor.Execute(ctx, q)
		return result, false, err
	}
	ctx, span := tracing.StartChildSpan(ctx, "cache")
	defer span.End()
	result, hit, err := h.opts.Cache.GetOrCompute(ctx, version, q, func() (*executor.SearchResult, error) {
		return h.executor.Execute(ctx, q)
	})
	span.SetAttr("hit", hit)
	return result, hit, err
}

// startSpan opens the root span of a request, traced under its request id.
func startSpan(r *http.Request, name string) (context.Context, *tracing.Span) {
	return tracing.StartSpan(r.Context(), name, middleware.GetRequestID(r.Context()))
}

func endSpan(ctx context.Context, span *tracing.Span) {
	span.End()
	span.Log(ctx, logger.FromContext(ctx))
}

func (h *Handler) finish(r *http.Request, typ analytics.EventType, q *parser.Query, result *executor.SearchResult, cacheHit bool, start time.Time) {
	latency := time.Since(start)
	ctx := r.Context()
	if h.opts.Metrics != nil {
		status := "disabled"
		if h.opts.Cache != nil {
			status = "miss"
			if cacheHit {
				status = "hit"
			}
		}
		h.opts.Metrics.SearchLatency.WithLabelValues(status).Observe(latency.Seconds())
	}
	logger.FromContext(ctx).Info("search completed",
		"type", typ,
		"query", q.String(),
		"status", result.Status,
		"count", result.Count,
		"cache_hit", cacheHit,
		"latency_ms", latency.Milliseconds(),
	)
	if h.opts.Tracker != nil {
		event := analytics.NewSearchEvent(typ, q, result, cacheHit, latency)
		event.RequestID = middleware.GetRequestID(ctx)
		h.opts.Tracker.Track(event)
	}
}

func queryFromRequest(r *http.Request) (*parser.Query, error) {
	params := r.URL.Query()
	if text := params.Get("q"); text != "" {
		return parser.Parse(text)
	}
	if params.Get("term1") != "" {
		return parser.FromForm(
			params.Get("term1"), params.Get("join1"),
			params.Get("term2"), params.Get("join2"),
			params.Get("term3"),
		)
	}
	return nil, fmt.Errorf("%w: query parameter 'q' or 'term1' is required", apperrors.ErrInvalidQuery)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

// writeError maps err to a status code. Client errors echo the message;
// server errors are logged and answered generically.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatusCode(err)
	message := err.Error()
	switch {
	case errors.Is(err, apperrors.ErrIndexUnavailable):
		message = "the report index is not available yet"
	case status >= 500:
		logger.FromContext(r.Context()).Error("search failed", "error", err)
		message = "search failed"
	}
	h.writeJSON(w, status, map[string]string{"error": message})
}
