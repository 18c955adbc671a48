// Command searcher serves boolean report searches over HTTP.
//
// On start it installs the report index (remote copy first, newest local
// snapshot as fallback), refreshes it on a schedule, and answers
// GET /api/v1/search and GET /api/v1/search/export. Results are cached in
// Redis when it is reachable and search events are published to Kafka for
// the analytics service.
//
// Usage:
//
//	go run ./cmd/searcher [-config configs/searcher.yaml]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/Adithya-Monish-Kumar-K/Report-Index-Search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Report-Index-Search/internal/index"
	"github.com/Adithya-Monish-Kumar-K/Report-Index-Search/internal/index/loader"
	"github.com/Adithya-Monish-Kumar-K/Report-Index-Search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/Report-Index-Search/internal/searcher/evaluator"
	"github.com/Adithya-Monish-Kumar-K/Report-Index-Search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/Report-Index-Search/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/Report-Index-Search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Report-Index-Search/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/Report-Index-Search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Report-Index-Search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Report-Index-Search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Report-Index-Search/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/Report-Index-Search/pkg/ratelimit"
	pkgredis "github.com/Adithya-Monish-Kumar-K/Report-Index-Search/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/Report-Index-Search/pkg/resilience"
)

func main() {
	configPath := flag.String("config", "configs/searcher.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting search service", "port", cfg.Server.Port, "index_url", cfg.Index.URL)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)
	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port, reg)
		defer shutdownMetrics(context.Background())
	}

	holder := index.NewHolder()
	ld := loader.New(cfg.Index, holder, m)
	if err := ld.Bootstrap(ctx); err != nil {
		slog.Error("no report index available", "error", err)
		os.Exit(1)
	}
	ld.StartRefreshLoop(ctx, cfg.Index.RefreshInterval)

	var queryCache *cache.QueryCache
	var redisClient *pkgredis.Client
	if cfg.Search.CacheEnabled {
		redisClient, err = pkgredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, search caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			queryCache = cache.New(redisClient, cfg.Redis.CacheTTL, m)
			slog.Info("search cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	var tracker handler.Tracker
	if cfg.Analytics.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.SearchEvents)
		defer producer.Close()
		collector := analytics.NewCollector(producer, cfg.Analytics.BufferSize)
		collector.Start(ctx)
		defer collector.Close()
		tracker = collector
		slog.Info("analytics collector started", "topic", cfg.Kafka.Topics.SearchEvents)
	}

	checker := health.NewChecker()
	checker.Register("index", func(ctx context.Context) health.ComponentHealth {
		snap := holder.Snapshot()
		if snap == nil {
			return health.ComponentHealth{Status: health.StatusDown, Message: "no index loaded"}
		}
		return health.ComponentHealth{
			Status:  health.StatusUp,
			Message: fmt.Sprintf("%d terms, version %s, source %s", snap.Index.Len(), snap.Index.Version(), snap.Source),
		}
	})
	checker.RegisterOptional("index-fetch", func(ctx context.Context) health.ComponentHealth {
		st := ld.FetchStatus()
		if st.State == resilience.StateOpen {
			return health.ComponentHealth{
				Status:  health.StatusDown,
				Message: fmt.Sprintf("circuit open after %d failures, retry in %s", st.Failures, st.RetryIn.Round(time.Second)),
			}
		}
		return health.ComponentHealth{Status: health.StatusUp, Message: "circuit " + st.State.String()}
	})
	if redisClient != nil {
		checker.RegisterOptional("redis", health.PingCheck(redisClient.Ping))
	}

	exec := executor.New(holder, evaluator.New(cfg.Search.LargeResultThreshold), m)
	h := handler.New(exec, holder, handler.Options{
		Cache:     queryCache,
		Tracker:   tracker,
		Refresher: ld,
		Metrics:   m,
	})

	mux := http.NewServeMux()
	h.Register(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	if len(cfg.Server.AdminKeys) == 0 {
		slog.Warn("no admin keys configured, index refresh and cache invalidation are unauthenticated")
	}

	// request → RequestID → Metrics → CORS → RateLimit → AdminAuth → Timeout → mux
	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	chain = middleware.AdminAuth(cfg.Server.AdminKeys)(chain)
	if cfg.Server.RateLimit > 0 {
		limiter := ratelimit.New(cfg.Server.RateLimit, cfg.Server.RateWindow)
		go limiter.Run(ctx, 5*time.Minute)
		chain = middleware.RateLimit(limiter, cfg.Server.TrustProxy, m)(chain)
	}
	chain = middleware.CORS(middleware.DefaultCORSConfig(cfg.Server.CORSOrigins))(chain)
	chain = middleware.Metrics(m)(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Handlers may still call Track until Shutdown returns, so the deferred
	// collector close must wait for it.
	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("search service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	<-shutdownDone

	slog.Info("search service stopped")
}
