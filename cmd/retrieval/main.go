// Command retrieval starts the query HTTP service.
//
// It answers POST /api/v1/query by embedding the query text and running the
// search cascade (vector, then keyword, then recency) against PostgreSQL.
// Results are cached per owner in Redis and optionally passed to an external
// LLM to synthesize an answer from the assembled context.
//
// Usage:
//
//	go run ./cmd/retrieval [-config configs/development.yaml]
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

	"github.com/docforge/rag-pipeline/internal/embedding"
	"github.com/docforge/rag-pipeline/internal/llm"
	"github.com/docforge/rag-pipeline/internal/retrieval"
	"github.com/docforge/rag-pipeline/internal/store"
	"github.com/docforge/rag-pipeline/pkg/config"
	"github.com/docforge/rag-pipeline/pkg/health"
	"github.com/docforge/rag-pipeline/pkg/kafka"
	"github.com/docforge/rag-pipeline/pkg/logger"
	"github.com/docforge/rag-pipeline/pkg/metrics"
	"github.com/docforge/rag-pipeline/pkg/middleware"
	"github.com/docforge/rag-pipeline/pkg/postgres"
	"github.com/docforge/rag-pipeline/pkg/redis"
)

// main wires the retrieval engine, query cache, LLM client, and analytics
// producer into the HTTP API. Graceful shutdown is triggered by
// SIGINT/SIGTERM.
func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting retrieval service", "port", cfg.Server.Port)

	db, err := postgres.New(cfg.Postgres)
	if err != nil {
		slog.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("connected to postgres")

	m := metrics.New()
	documents := store.New(db)

	provider := embedding.ProviderFromConfig(cfg.Embedding)
	if provider == nil {
		slog.Warn("no embedding provider configured, using hash fallback only")
	}
	generator := embedding.NewGenerator(provider, m, cfg.Embedding.Concurrency)
	engine := retrieval.NewEngine(documents, generator, cfg.Retrieval, m)

	var rc *redis.Client
	if rc, err = redis.NewClient(cfg.Redis); err != nil {
		slog.Warn("redis unavailable, query caching disabled", "error", err)
		rc = nil
	} else {
		defer rc.Close()
		slog.Info("connected to redis")
	}
	cache := retrieval.NewQueryCache(rc, cfg.Redis.CacheTTL, m)

	llmClient := llm.NewClient(cfg.LLM)
	if llmClient == nil {
		slog.Info("no llm endpoint configured, answers disabled")
	}

	analyticsProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents)
	defer analyticsProducer.Close()

	h := retrieval.NewHandler(engine, cache, llmClient, cfg.Retrieval.ContextTopK, analyticsProducer)

	checker := health.NewChecker()
	checker.Register("postgres", func(ctx context.Context) health.ComponentHealth {
		start := time.Now()
		if err := db.DB.PingContext(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp, Latency: time.Since(start).String()}
	})
	checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
		if rc == nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "cache disabled"}
		}
		if err := rc.Ping(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})

	mux := http.NewServeMux()
	h.Routes(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	chain = middleware.Metrics(m)(chain)
	chain = middleware.RequestID(chain)

	var stopMetrics func(context.Context) error
	if cfg.Metrics.Enabled {
		stopMetrics = metrics.StartServer(cfg.Metrics.Port)
		slog.Info("metrics server listening", "port", cfg.Metrics.Port)
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
		if stopMetrics != nil {
			if err := stopMetrics(shutdownCtx); err != nil {
				slog.Error("metrics server shutdown error", "error", err)
			}
		}
	}()

	slog.Info("retrieval service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("retrieval service stopped")
}
