// Command processor starts the document processing worker.
//
// It consumes processing requests from Kafka and runs each document through
// the full pipeline: text extraction, normalization, chunking, quality
// analysis, embedding generation, and persistence to PostgreSQL. Outcomes are
// published as analytics events and owner query caches are invalidated after
// each successful run. A small JSON-RPC listener exposes document status and
// reprocess operations to the gateway.
//
// Usage:
//
//	go run ./cmd/processor [-config configs/development.yaml]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/docforge/rag-pipeline/internal/embedding"
	"github.com/docforge/rag-pipeline/internal/extractor"
	"github.com/docforge/rag-pipeline/internal/pipeline"
	"github.com/docforge/rag-pipeline/internal/retrieval"
	"github.com/docforge/rag-pipeline/internal/store"
	"github.com/docforge/rag-pipeline/pkg/config"
	"github.com/docforge/rag-pipeline/pkg/kafka"
	"github.com/docforge/rag-pipeline/pkg/logger"
	"github.com/docforge/rag-pipeline/pkg/metrics"
	"github.com/docforge/rag-pipeline/pkg/postgres"
	"github.com/docforge/rag-pipeline/pkg/redis"
	"github.com/docforge/rag-pipeline/pkg/rpc"
)

// main wires the processing pipeline: PostgreSQL store, extractor, embedding
// generator, orchestrator, Kafka consumer, and the admin RPC listener.
// Graceful shutdown is triggered by SIGINT/SIGTERM.
func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting processor service",
		"topic", cfg.Kafka.Topics.DocumentProcess,
		"rpc_addr", cfg.Pipeline.RPCAddr,
	)

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

	orchestrator := pipeline.NewOrchestrator(extractor.New(), generator, documents, cfg.Pipeline, m)

	// Redis is optional here: without it owner caches simply expire on TTL.
	var cache pipeline.CacheInvalidator
	if rc, err := redis.NewClient(cfg.Redis); err != nil {
		slog.Warn("redis unavailable, query cache invalidation disabled", "error", err)
	} else {
		defer rc.Close()
		cache = retrieval.NewQueryCache(rc, cfg.Redis.CacheTTL, m)
		slog.Info("connected to redis")
	}

	analyticsProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents)
	defer analyticsProducer.Close()
	requeueProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.DocumentProcess)
	defer requeueProducer.Close()

	worker := pipeline.NewConsumer(orchestrator, analyticsProducer, cache)
	consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.DocumentProcess, worker.Handle)
	defer consumer.Close()

	rpcServer := rpc.NewServer()
	pipeline.NewRPCService(documents, requeueProducer).Register(rpcServer)
	go func() {
		if err := rpcServer.Serve(cfg.Pipeline.RPCAddr); err != nil {
			slog.Error("rpc server error", "error", err)
		}
	}()
	slog.Info("rpc listener started", "addr", cfg.Pipeline.RPCAddr, "methods", rpcServer.MethodCount())

	var stopMetrics func(context.Context) error
	if cfg.Metrics.Enabled {
		stopMetrics = metrics.StartServer(cfg.Metrics.Port)
		slog.Info("metrics server listening", "port", cfg.Metrics.Port)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("processor ready, consuming from kafka",
		"topic", cfg.Kafka.Topics.DocumentProcess,
		"group", cfg.Kafka.ConsumerGroup,
	)
	if err := consumer.Start(ctx); err != nil {
		slog.Error("consumer error", "error", err)
	}

	rpcServer.Stop()
	if stopMetrics != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := stopMetrics(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown error", "error", err)
		}
	}

	slog.Info("processor service stopped")
}
