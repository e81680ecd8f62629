// Command gateway starts the API gateway service.
//
// The gateway is the single entry point for external clients. It
// authenticates requests via API keys (SHA-256 validated against PostgreSQL),
// applies per-owner rate limiting, and proxies document uploads to the
// ingestion service and queries to the retrieval service. Reprocess and
// status admin endpoints go over the processor's RPC listener.
//
// Usage:
//
//	go run ./cmd/gateway [-config configs/development.yaml]
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

	"github.com/docforge/rag-pipeline/internal/auth"
	"github.com/docforge/rag-pipeline/internal/gateway"
	"github.com/docforge/rag-pipeline/pkg/config"
	"github.com/docforge/rag-pipeline/pkg/health"
	"github.com/docforge/rag-pipeline/pkg/logger"
	"github.com/docforge/rag-pipeline/pkg/metrics"
	"github.com/docforge/rag-pipeline/pkg/middleware"
	"github.com/docforge/rag-pipeline/pkg/postgres"
	"github.com/docforge/rag-pipeline/pkg/rpc"
)

// main wires PostgreSQL, the API key store, the rate limiter, the processor
// RPC client, and the gateway middleware chain into the HTTP server. Graceful
// shutdown is triggered by SIGINT/SIGTERM.
func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting gateway service",
		"port", cfg.Gateway.Port,
		"ingestion_url", cfg.Gateway.IngestionURL,
		"retrieval_url", cfg.Gateway.RetrievalURL,
	)

	db, err := postgres.New(cfg.Postgres)
	if err != nil {
		slog.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("connected to postgres")

	keys := auth.NewAPIKeyStore(db)
	limiter := auth.NewRateLimiter(cfg.Gateway.RatePerSecond, cfg.Gateway.RateBurst)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				limiter.Prune(10 * time.Minute)
			}
		}
	}()

	// Processor RPC is optional: without it the admin endpoints return 503.
	var processor gateway.ProcessorClient
	if client, err := rpc.Dial(cfg.Gateway.ProcessorRPCURL); err != nil {
		slog.Warn("processor rpc unavailable, admin endpoints disabled", "error", err)
	} else {
		defer client.Close()
		processor = client
		slog.Info("connected to processor rpc", "addr", cfg.Gateway.ProcessorRPCURL)
	}

	h, err := gateway.NewHandler(cfg.Gateway.IngestionURL, cfg.Gateway.RetrievalURL, processor)
	if err != nil {
		slog.Error("failed to build gateway handler", "error", err)
		os.Exit(1)
	}

	m := metrics.New()
	checker := health.NewChecker()
	checker.Register("postgres", func(ctx context.Context) health.ComponentHealth {
		start := time.Now()
		if err := db.DB.PingContext(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp, Latency: time.Since(start).String()}
	})

	mux := http.NewServeMux()
	h.Routes(mux)

	protected := gateway.Chain(mux,
		middleware.RequestID,
		middleware.Metrics(m),
		gateway.CORS,
		gateway.Auth(keys),
		gateway.RateLimit(limiter),
	)

	// Health probes bypass auth.
	outer := http.NewServeMux()
	outer.HandleFunc("GET /health/live", checker.LiveHandler())
	outer.HandleFunc("GET /health/ready", checker.ReadyHandler())
	outer.Handle("/", protected)

	var stopMetrics func(context.Context) error
	if cfg.Metrics.Enabled {
		stopMetrics = metrics.StartServer(cfg.Metrics.Port)
		slog.Info("metrics server listening", "port", cfg.Metrics.Port)
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Gateway.Port),
		Handler:      outer,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

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

	slog.Info("gateway service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("gateway service stopped")
}
