//go:build integration

// Package integration wires the search service in process against a fake
// remote index, and exercises the Redis cache and the Postgres analytics
// store when those services are reachable.
//
// Run with:
//
//	go test -v -tags=integration ./test/integration/...
package integration

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Adithya-Monish-Kumar-K/Report-Index-Search/internal/index"
	"github.com/Adithya-Monish-Kumar-K/Report-Index-Search/internal/index/loader"
	"github.com/Adithya-Monish-Kumar-K/Report-Index-Search/internal/searcher/evaluator"
	"github.com/Adithya-Monish-Kumar-K/Report-Index-Search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/Report-Index-Search/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/Report-Index-Search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Report-Index-Search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Report-Index-Search/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/Report-Index-Search/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/Report-Index-Search/pkg/ratelimit"
	pkgredis "github.com/Adithya-Monish-Kumar-K/Report-Index-Search/pkg/redis"
)

// ---------------------------------------------------------------------------
// Remote index
// ---------------------------------------------------------------------------

// remoteIndex serves the index the way the published bucket does: a JSON
// string holding the JSON object.
type remoteIndex struct {
	doc     atomic.Value
	fetches atomic.Int32
}

func newRemoteIndex(t *testing.T, postings map[string][]string) (*remoteIndex, *httptest.Server) {
	t.Helper()
	ri := &remoteIndex{}
	ri.set(t, postings)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ri.fetches.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.Write(ri.doc.Load().([]byte))
	}))
	t.Cleanup(srv.Close)
	return ri, srv
}

func (ri *remoteIndex) set(t *testing.T, postings map[string][]string) {
	t.Helper()
	inner, err := json.Marshal(postings)
	if err != nil {
		t.Fatal(err)
	}
	outer, err := json.Marshal(string(inner))
	if err != nil {
		t.Fatal(err)
	}
	ri.doc.Store(outer)
}

// ---------------------------------------------------------------------------
// Search service
// ---------------------------------------------------------------------------

type serverOptions struct {
	adminKey  string
	rateLimit int
	threshold int
}

// newSearchServer assembles the search service as cmd/searcher does, minus
// Redis and Kafka.
func newSearchServer(t *testing.T, indexURL string, opts serverOptions) *httptest.Server {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	m := metrics.New(prometheus.NewRegistry())
	holder := index.NewHolder()
	ld := loader.New(config.IndexConfig{
		URL:              indexURL,
		SnapshotDir:      t.TempDir(),
		FetchTimeout:     5 * time.Second,
		MaxAttempts:      1,
		RetryDelay:       10 * time.Millisecond,
		FailureThreshold: 5,
		ResetTimeout:     time.Second,
	}, holder, m)
	if err := ld.Bootstrap(ctx); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}

	threshold := opts.threshold
	if threshold == 0 {
		threshold = evaluator.DefaultLargeResultThreshold
	}
	exec := executor.New(holder, evaluator.New(threshold), m)
	h := handler.New(exec, holder, handler.Options{Refresher: ld, Metrics: m})

	mux := http.NewServeMux()
	h.Register(mux)

	var adminKeys []string
	if opts.adminKey != "" {
		adminKeys = []string{middleware.HashKey(opts.adminKey)}
	}
	var chain http.Handler = mux
	chain = middleware.Timeout(5 * time.Second)(chain)
	chain = middleware.AdminAuth(adminKeys)(chain)
	if opts.rateLimit > 0 {
		limiter := ratelimit.New(opts.rateLimit, time.Minute)
		go limiter.Run(ctx, time.Minute)
		chain = middleware.RateLimit(limiter, false, m)(chain)
	}
	chain = middleware.CORS(middleware.DefaultCORSConfig([]string{"https://reports.example"}))(chain)
	chain = middleware.Metrics(m)(chain)
	chain = middleware.RequestID(chain)

	srv := httptest.NewServer(chain)
	t.Cleanup(srv.Close)
	return srv
}

// ---------------------------------------------------------------------------
// External services
// ---------------------------------------------------------------------------

// skipIfNoPostgres skips the test when PostgreSQL is unavailable.
func skipIfNoPostgres(t *testing.T) *postgres.Client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	db, err := postgres.New(ctx, config.PostgresConfig{
		Host:            envOrDefault("TEST_POSTGRES_HOST", "localhost"),
		Port:            envOrDefaultInt("TEST_POSTGRES_PORT", 5432),
		Database:        envOrDefault("TEST_POSTGRES_DB", "reportsearch_test"),
		User:            envOrDefault("TEST_POSTGRES_USER", "reportsearch"),
		Password:        envOrDefault("TEST_POSTGRES_PASSWORD", "localdev"),
		SSLMode:         "disable",
		MaxOpenConns:    5,
		MaxIdleConns:    2,
		ConnMaxLifetime: 5 * time.Minute,
	})
	if err != nil {
		t.Skipf("skipping integration test: postgres unavailable: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// skipIfNoRedis skips the test when Redis is unavailable. Tests use a
// separate logical database.
func skipIfNoRedis(t *testing.T) *pkgredis.Client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	client, err := pkgredis.NewClient(ctx, config.RedisConfig{
		Addr:     envOrDefault("TEST_REDIS_ADDR", "localhost:6379"),
		DB:       envOrDefaultInt("TEST_REDIS_DB", 15),
		PoolSize: 5,
	})
	if err != nil {
		t.Skipf("skipping integration test: redis unavailable: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

// ---------------------------------------------------------------------------
// Env helpers
// ---------------------------------------------------------------------------

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrDefaultInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
