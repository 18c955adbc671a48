// Package loader acquires the report index: it fetches the published index
// document over HTTP, keeps the parsed index in an index.Holder, refreshes it
// on a schedule, and falls back to the newest on-disk segment when the remote
// copy cannot be fetched.
package loader

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/Report-Index-Search/internal/index"
	"github.com/Adithya-Monish-Kumar-K/Report-Index-Search/internal/index/segment"
	"github.com/Adithya-Monish-Kumar-K/Report-Index-Search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Report-Index-Search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Report-Index-Search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Report-Index-Search/pkg/resilience"
)

const (
	SourceRemote   = "remote"
	SourceSnapshot = "snapshot"
	SourceFile     = "file"

	// segmentsToKeep bounds the snapshot directory.
	segmentsToKeep = 3
)

type Loader struct {
	cfg     config.IndexConfig
	client  *http.Client
	holder  *index.Holder
	writer  *segment.Writer
	breaker *resilience.CircuitBreaker
	metrics *metrics.Metrics
	group   singleflight.Group
	logger  *slog.Logger
}

// New creates a Loader that publishes into holder. m may be nil.
func New(cfg config.IndexConfig, holder *index.Holder, m *metrics.Metrics) *Loader {
	l := &Loader{
		cfg:     cfg,
		client:  &http.Client{},
		holder:  holder,
		metrics: m,
		logger:  slog.Default().With("component", "index-loader"),
	}
	if cfg.SnapshotDir != "" {
		l.writer = segment.NewWriter(cfg.SnapshotDir)
	}
	l.breaker = resilience.NewCircuitBreaker("index-fetch", resilience.CircuitBreakerConfig{
		FailureThreshold: cfg.FailureThreshold,
		ResetTimeout:     cfg.ResetTimeout,
		OnStateChange: func(name string, from, to resilience.State) {
			if m != nil {
				m.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
			}
		},
	})
	return l
}

// WithHTTPClient replaces the client used for remote fetches.
func (l *Loader) WithHTTPClient(c *http.Client) *Loader {
	l.client = c
	return l
}

// Bootstrap installs the first index: the remote copy when it can be
// fetched, otherwise the newest snapshot on disk.
func (l *Loader) Bootstrap(ctx context.Context) error {
	if l.cfg.URL != "" {
		err := l.Refresh(ctx)
		if err == nil {
			return nil
		}
		l.logger.Warn("remote index unavailable, trying local snapshot", "error", err)
	}
	if l.cfg.SnapshotDir == "" {
		return fmt.Errorf("%w: no remote index and no snapshot directory", apperrors.ErrIndexUnavailable)
	}
	if err := l.LoadSnapshot(); err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrIndexUnavailable, err)
	}
	return nil
}

// Refresh fetches the remote index and installs it. Concurrent calls share
// one fetch. A successful fetch is also written as a local snapshot.
//
// The shared fetch does not inherit any caller's cancellation; it is bounded
// by the fetch timeout and retry settings instead. A caller whose ctx ends
// first gets ctx.Err() while the fetch carries on for the others.
func (l *Loader) Refresh(ctx context.Context) error {
	flightCtx := context.WithoutCancel(ctx)
	ch := l.group.DoChan("refresh", func() (interface{}, error) {
		return nil, l.refresh(flightCtx)
	})
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Loader) refresh(ctx context.Context) error {
	idx, err := l.Fetch(ctx)
	if err != nil {
		l.observe(SourceRemote, "error", nil)
		return err
	}
	if current := l.holder.Current(); current != nil && current.Version() == idx.Version() {
		l.logger.Info("index unchanged", "version", idx.Version())
		l.observe(SourceRemote, "unchanged", idx)
		return nil
	}
	l.install(idx, SourceRemote)
	l.writeSnapshot(idx)
	return nil
}

// Fetch downloads and parses the remote index without installing it.
func (l *Loader) Fetch(ctx context.Context) (*index.Index, error) {
	if l.cfg.URL == "" {
		return nil, fmt.Errorf("%w: index url not configured", apperrors.ErrIndexUnavailable)
	}
	var body []byte
	retryCfg := resilience.RetryConfig{
		MaxAttempts:  l.cfg.MaxAttempts,
		InitialDelay: l.cfg.RetryDelay,
	}
	err := resilience.Retry(ctx, "index-fetch", retryCfg, func() error {
		return l.breaker.Execute(func() error {
			fetchCtx, cancel := l.fetchContext(ctx)
			defer cancel()
			data, err := l.download(fetchCtx)
			if err != nil {
				return err
			}
			body = data
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("fetching index from %s: %w", l.cfg.URL, err)
	}
	postings, err := index.Decode(body)
	if err != nil {
		return nil, err
	}
	return index.New(postings, ""), nil
}

func (l *Loader) fetchContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if l.cfg.FetchTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, l.cfg.FetchTimeout)
}

func (l *Loader) download(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.cfg.URL, nil)
	if err != nil {
		return nil, resilience.Permanent(fmt.Errorf("building request: %w", err))
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting index: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("unexpected status %d", resp.StatusCode)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return nil, resilience.Permanent(err)
		}
		return nil, err
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading index body: %w", err)
	}
	return data, nil
}

// FetchStatus reports the state of the breaker guarding remote fetches.
func (l *Loader) FetchStatus() resilience.Status {
	return l.breaker.Status()
}

// LoadSnapshot installs the newest segment from the snapshot directory.
func (l *Loader) LoadSnapshot() error {
	path, err := segment.Latest(l.cfg.SnapshotDir)
	if err != nil {
		l.observe(SourceSnapshot, "error", nil)
		return err
	}
	idx, err := segment.Load(path)
	if err != nil {
		l.observe(SourceSnapshot, "error", nil)
		return fmt.Errorf("loading snapshot %s: %w", path, err)
	}
	l.install(idx, SourceSnapshot)
	return nil
}

// StartRefreshLoop refreshes the index every interval until ctx is done.
// Failed refreshes keep serving the current index.
func (l *Loader) StartRefreshLoop(ctx context.Context, interval time.Duration) {
	if interval <= 0 || l.cfg.URL == "" {
		return
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				l.logger.Info("index refresh loop stopping")
				return
			case <-ticker.C:
				if err := l.Refresh(ctx); err != nil {
					l.logger.Error("periodic index refresh failed", "error", err)
				}
			}
		}
	}()
	l.logger.Info("index refresh loop started", "interval", interval)
}

func (l *Loader) install(idx *index.Index, source string) {
	l.holder.Store(idx, source)
	l.observe(source, "ok", idx)
	l.logger.Info("index installed",
		"source", source,
		"version", idx.Version(),
		"terms", idx.Len(),
		"documents", idx.DocCount(),
	)
}

func (l *Loader) writeSnapshot(idx *index.Index) {
	if l.writer == nil || idx.Len() == 0 {
		return
	}
	name, err := l.writer.Write(idx)
	if err != nil {
		l.logger.Error("writing index snapshot failed", "error", err)
		return
	}
	if removed, err := segment.Prune(l.cfg.SnapshotDir, segmentsToKeep); err != nil {
		l.logger.Warn("pruning old snapshots failed", "error", err)
	} else if removed > 0 {
		l.logger.Debug("old snapshots pruned", "removed", removed)
	}
	l.logger.Info("index snapshot written", "segment", name)
}

func (l *Loader) observe(source, status string, idx *index.Index) {
	if l.metrics == nil {
		return
	}
	l.metrics.IndexRefreshesTotal.WithLabelValues(source, status).Inc()
	if idx != nil && status == "ok" {
		l.metrics.IndexTerms.Set(float64(idx.Len()))
		l.metrics.IndexDocuments.Set(float64(idx.DocCount()))
	}
}

// LoadFile reads an index from a local path. Segment files are read with the
// segment reader; anything else is decoded as the published JSON document.
func LoadFile(path string) (*index.Index, error) {
	if filepath.Ext(path) == segment.FileExt {
		return segment.Load(path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading index file: %w", err)
	}
	postings, err := index.Decode(data)
	if err != nil {
		return nil, err
	}
	return index.New(postings, ""), nil
}
