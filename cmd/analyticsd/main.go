// Command analyticsd runs the search analytics service.
//
// It consumes search events from Kafka, folds them into in-memory rollups
// (query volume, latency percentiles, cache hit rate, top and zero-result
// queries), and serves them at GET /api/v1/analytics. When PostgreSQL is
// reachable, snapshots are persisted periodically and exposed at
// GET /api/v1/analytics/history.
//
// Usage:
//
//	go run ./cmd/analyticsd [-config configs/development.yaml]
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

	"github.com/quorumsearch/quorumsearch/internal/analytics"
	"github.com/quorumsearch/quorumsearch/internal/analytics/aggregator"
	"github.com/quorumsearch/quorumsearch/pkg/config"
	"github.com/quorumsearch/quorumsearch/pkg/health"
	"github.com/quorumsearch/quorumsearch/pkg/kafka"
	"github.com/quorumsearch/quorumsearch/pkg/logger"
	"github.com/quorumsearch/quorumsearch/pkg/metrics"
	"github.com/quorumsearch/quorumsearch/pkg/middleware"
	"github.com/quorumsearch/quorumsearch/pkg/postgres"
	"github.com/quorumsearch/quorumsearch/pkg/ratelimit"
)

// consumerGroup is stable across restarts: the aggregator resumes from
// committed offsets instead of recounting the whole topic.
const consumerGroup = "quorumsearch-analyticsd"

const snapshotInterval = time.Minute

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup("analyticsd", cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting analytics service", "port", cfg.Server.Port)

	m := metrics.New()
	var stopMetrics func(context.Context) error
	if cfg.Metrics.Enabled {
		stopMetrics = metrics.StartServer(cfg.Metrics.Port)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	agg := analytics.NewAggregator()
	consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.SearchEvents,
		consumerGroup, analytics.HandleEvent(agg))
	go func() {
		if err := consumer.Start(ctx); err != nil {
			slog.Error("consumer error", "error", err)
		}
	}()
	slog.Info("aggregator consuming", "topic", cfg.Kafka.Topics.SearchEvents, "group", consumerGroup)

	checker := health.NewChecker()
	checker.Register("aggregator", func(ctx context.Context) health.ComponentHealth {
		return health.ComponentHealth{
			Status:  health.StatusUp,
			Message: fmt.Sprintf("%d events aggregated", agg.TotalQueries()),
		}
	})

	// Snapshot persistence is best effort: without PostgreSQL the service
	// still serves live rollups, just no history.
	var history analytics.SnapshotStore
	db, err := postgres.New(cfg.Postgres)
	if err != nil {
		slog.Warn("postgres unavailable, snapshot persistence disabled", "error", err)
		checker.Register("postgres", func(ctx context.Context) health.ComponentHealth {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "snapshot persistence disabled"}
		})
	} else {
		defer db.Close()
		store := aggregator.NewStore(db)
		if last, err := store.LatestSnapshot(ctx); err != nil {
			slog.Warn("failed to load latest snapshot", "error", err)
		} else if last != nil {
			slog.Info("resuming after previous run", "prior_total_queries", last.TotalQueries)
		}
		store.StartPeriodicSave(ctx, agg, snapshotInterval)
		history = store
		checker.Register("postgres", health.FromPing(db.HealthCheck))
	}

	h := analytics.NewHandler(agg, history)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/analytics", h.Stats)
	mux.HandleFunc("GET /api/v1/analytics/history", h.History)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	if cfg.Server.RateLimit > 0 {
		chain = middleware.RateLimit(ratelimit.New(time.Minute), cfg.Server.RateLimit)(chain)
	}
	chain = middleware.CORS(middleware.DefaultCORSConfig())(chain)
	chain = middleware.Metrics(m)(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

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

	slog.Info("analytics service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("analytics service stopped")
}
