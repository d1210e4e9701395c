// Command searchd runs one search replica: an HTTP query API over an
// in-memory inverted index that is rebuilt from the document-ingest topic
// at boot and kept current by the same consumer.
package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/quorumsearch/quorumsearch/internal/analytics"
	"github.com/quorumsearch/quorumsearch/internal/corpus"
	"github.com/quorumsearch/quorumsearch/internal/dictionary"
	"github.com/quorumsearch/quorumsearch/internal/indexer"
	"github.com/quorumsearch/quorumsearch/internal/indexer/consumer"
	"github.com/quorumsearch/quorumsearch/internal/searcher/cache"
	"github.com/quorumsearch/quorumsearch/internal/searcher/executor"
	"github.com/quorumsearch/quorumsearch/internal/searcher/handler"
	"github.com/quorumsearch/quorumsearch/pkg/config"
	"github.com/quorumsearch/quorumsearch/pkg/health"
	"github.com/quorumsearch/quorumsearch/pkg/kafka"
	"github.com/quorumsearch/quorumsearch/pkg/logger"
	"github.com/quorumsearch/quorumsearch/pkg/metrics"
	"github.com/quorumsearch/quorumsearch/pkg/middleware"
	"github.com/quorumsearch/quorumsearch/pkg/postgres"
	"github.com/quorumsearch/quorumsearch/pkg/ratelimit"
	pkgredis "github.com/quorumsearch/quorumsearch/pkg/redis"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup("searchd", cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting search replica",
		"port", cfg.Server.Port,
		"corpus_driver", cfg.Corpus.Driver,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	var stopMetrics func(context.Context) error
	if cfg.Metrics.Enabled {
		stopMetrics = metrics.StartServer(cfg.Metrics.Port)
	}

	store, closeStore, err := newCorpusStore(cfg)
	if err != nil {
		slog.Error("failed to initialize corpus store", "error", err)
		os.Exit(1)
	}
	defer closeStore()

	dict := dictionary.New()
	for _, entry := range cfg.Dictionary.Entries {
		dict.Add(entry)
	}
	if dict.Len() > 0 {
		slog.Info("tag dictionary loaded", "entries", dict.Len())
	}

	engine := indexer.NewEngine(store, dict)

	group := replicaGroup(cfg.Kafka.ConsumerGroup)
	ingest := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.DocumentIngest, group,
		consumer.HandleMessage(engine, m))
	ic := consumer.New(ingest)

	var queryCache *cache.QueryCache
	var redisClient *pkgredis.Client
	if cfg.Redis.Enabled {
		redisClient, err = pkgredis.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, search caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			queryCache = cache.New(redisClient, cfg.Redis, m)
			slog.Info("search cache enabled",
				"addr", cfg.Redis.Addr,
				"ttl", cfg.Redis.CacheTTL,
			)
		}
	}

	analyticsProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.SearchEvents)
	defer analyticsProducer.Close()
	collector := analytics.NewCollector(analyticsProducer, 10000, m)
	collector.Start(ctx)
	defer collector.Close()

	exec := executor.New(engine.Index(), store)
	h := handler.New(handler.Deps{
		Executor:  exec,
		Phrases:   engine.Phrases(),
		Corpus:    store,
		Stats:     engine.Index(),
		Cache:     queryCache,
		Collector: collector,
		Metrics:   m,
		Search:    cfg.Search,
		Tracing:   cfg.Tracing,
	})

	checker := health.NewChecker()
	checker.Register("index", func(ctx context.Context) health.ComponentHealth {
		return health.ComponentHealth{
			Status: health.StatusUp,
			Message: fmt.Sprintf("%d documents, %d terms",
				engine.Index().DocCount(), engine.Index().TermCount()),
		}
	})
	checker.Register("corpus", func(ctx context.Context) health.ComponentHealth {
		n, err := store.Count(ctx)
		if err != nil {
			return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp, Message: fmt.Sprintf("%d documents", n)}
	})
	checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
		if redisClient == nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "not configured"}
		}
		if err := redisClient.Ping(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/phrase", h.Phrase)
	mux.HandleFunc("GET /api/v1/documents/{id}", h.Document)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
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

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return ic.Start(gctx)
	})
	g.Go(func() error {
		slog.Info("search replica listening", "addr", server.Addr, "consumer_group", group)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if stopMetrics != nil {
			if err := stopMetrics(shutdownCtx); err != nil {
				slog.Error("metrics server shutdown error", "error", err)
			}
		}
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		slog.Error("search replica exited with error", "error", err)
		os.Exit(1)
	}
	slog.Info("search replica stopped")
}

// newCorpusStore selects the document store per config. Memory keeps each
// replica self-contained; postgres shares the ingestion database.
func newCorpusStore(cfg *config.Config) (corpus.Store, func(), error) {
	switch cfg.Corpus.Driver {
	case "", "memory":
		return corpus.NewMemoryStore(), func() {}, nil
	case "postgres":
		db, err := postgres.New(cfg.Postgres)
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		return corpus.NewPostgresStore(db), func() { db.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown corpus driver %q", cfg.Corpus.Driver)
	}
}

// replicaGroup builds an ephemeral consumer group name so every boot
// replays the ingest topic from the beginning into the empty index.
func replicaGroup(base string) string {
	host, err := os.Hostname()
	if err != nil {
		host = "replica"
	}
	var b [4]byte
	if _, err := rand.Read(b[:]); err == nil {
		return fmt.Sprintf("%s-%s-%s", base, host, hex.EncodeToString(b[:]))
	}
	return fmt.Sprintf("%s-%s", base, host)
}
