// Command ingestd runs the document ingestion service.
//
// It accepts documents via POST /api/v1/documents, validates them, assigns
// ids in PostgreSQL (deduplicating by content hash), and publishes document
// events to Kafka for the search replicas to index.
//
// Usage:
//
//	go run ./cmd/ingestd [-config configs/development.yaml]
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

	"github.com/quorumsearch/quorumsearch/internal/ingestion/handler"
	"github.com/quorumsearch/quorumsearch/internal/ingestion/publisher"
	"github.com/quorumsearch/quorumsearch/pkg/config"
	"github.com/quorumsearch/quorumsearch/pkg/health"
	"github.com/quorumsearch/quorumsearch/pkg/kafka"
	"github.com/quorumsearch/quorumsearch/pkg/logger"
	"github.com/quorumsearch/quorumsearch/pkg/metrics"
	"github.com/quorumsearch/quorumsearch/pkg/middleware"
	"github.com/quorumsearch/quorumsearch/pkg/postgres"
	"github.com/quorumsearch/quorumsearch/pkg/ratelimit"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup("ingestd", cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting ingestion service", "port", cfg.Server.Port)

	m := metrics.New()
	var stopMetrics func(context.Context) error
	if cfg.Metrics.Enabled {
		stopMetrics = metrics.StartServer(cfg.Metrics.Port)
	}

	db, err := postgres.New(cfg.Postgres)
	if err != nil {
		slog.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("connected to postgres", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)

	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.DocumentIngest)
	defer producer.Close()
	slog.Info("kafka producer initialized", "topic", cfg.Kafka.Topics.DocumentIngest)

	pub := publisher.New(db, producer)
	h := handler.New(pub, m)

	checker := health.NewChecker()
	checker.Register("postgres", health.FromPing(db.HealthCheck))

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/documents", h.Ingest)
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	if cfg.Server.RateLimit > 0 {
		chain = middleware.RateLimit(ratelimit.New(time.Minute), cfg.Server.RateLimit)(chain)
	}
	chain = middleware.Metrics(m)(chain)
	chain = middleware.RequestID(chain)

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
		if stopMetrics != nil {
			if err := stopMetrics(shutdownCtx); err != nil {
				slog.Error("metrics server shutdown error", "error", err)
			}
		}
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("ingestion service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("ingestion service stopped")
}
