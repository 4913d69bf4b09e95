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

	"github.com/Adithya-Monish-Kumar-K/tdt-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/tdt-search/internal/indexer/consumer"
	"github.com/Adithya-Monish-Kumar-K/tdt-search/internal/indexer/corpus"
	"github.com/Adithya-Monish-Kumar-K/tdt-search/internal/indexer/store"
	"github.com/Adithya-Monish-Kumar-K/tdt-search/internal/searcher"
	"github.com/Adithya-Monish-Kumar-K/tdt-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/tdt-search/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/tdt-search/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/tdt-search/internal/searcher/snippet"
	"github.com/Adithya-Monish-Kumar-K/tdt-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/tdt-search/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/tdt-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/tdt-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/tdt-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/tdt-search/pkg/middleware"
	pkgredis "github.com/Adithya-Monish-Kumar-K/tdt-search/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/tdt-search/pkg/resilience"
)

const (
	cacheCallTimeout   = 200 * time.Millisecond
	analyticsBufferLen = 10000
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting search service", "port", cfg.Server.Port, "data_dir", cfg.Indexer.DataDir)

	st, err := store.Open(cfg.Indexer.DataDir)
	if err != nil {
		slog.Error("failed to open index", "error", err)
		os.Exit(1)
	}
	if snap, err := st.Snapshot(); err != nil {
		slog.Warn("no committed index yet, queries will fail until one is built", "error", err)
	} else {
		slog.Info("index loaded", "version", snap.Version(), "docs", snap.DocCount())
	}

	texts, err := corpus.NewCachedReader(corpus.NewReader(cfg.Indexer.CorpusRoot), cfg.Search.DocCacheSize)
	if err != nil {
		slog.Error("failed to create document cache", "error", err)
		os.Exit(1)
	}
	weighting, err := ranker.ByName(cfg.Search.Weighting)
	if err != nil {
		slog.Error("invalid weighting", "error", err)
		os.Exit(1)
	}

	m := metrics.New()
	opts := []searcher.Option{
		searcher.WithWeighting(weighting),
		searcher.WithSnippetOptions(snippet.Options{
			MaxLength: cfg.Search.SnippetLength,
			Open:      cfg.Search.HighlightOpen,
			Close:     cfg.Search.HighlightClose,
		}),
		searcher.WithMetrics(m),
	}

	checker := health.NewChecker()
	checker.Register("index", health.SnapshotCheck(st.Snapshot))

	var redisClient *pkgredis.Client
	if cfg.Redis.Addr != "" {
		redisClient, err = pkgredis.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, search caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			backend := cache.Guard(redisClient, cacheCallTimeout, resilience.CircuitBreakerConfig{
				OnStateChange: func(name string, _, to resilience.State) {
					m.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
				},
			})
			opts = append(opts, searcher.WithCache(cache.New[searcher.Response](backend, cfg.Redis.CacheTTL, m)))
			checker.Register("redis", health.PingCheck(redisClient, true))
			slog.Info("search cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// With Kafka, query events go through the topic so the aggregate covers
	// every search instance; without it they are aggregated in-process.
	aggregator := analytics.NewAggregator()
	if cfg.Kafka.Enabled() {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.QueryEvents)
		defer producer.Close()
		collector := analytics.NewCollector(producer, analyticsBufferLen)
		collector.Start(ctx)
		defer collector.Close()
		go func() {
			if err := aggregator.Consume(ctx, cfg.Kafka, cfg.Kafka.Topics.QueryEvents); err != nil {
				slog.Error("analytics aggregator error", "error", err)
			}
		}()
		opts = append(opts, searcher.WithTracker(collector))
		slog.Info("query analytics via kafka", "topic", cfg.Kafka.Topics.QueryEvents)
	} else {
		opts = append(opts, searcher.WithTracker(aggregator))
	}

	svc := searcher.New(st, texts, opts...)

	if cfg.Kafka.Enabled() {
		// A commit event can arrive before the renamed segment is visible.
		kc := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.IndexCommitted,
			consumer.HandleMessage(st, svc, m),
			kafka.WithRetry(resilience.RetryConfig{MaxAttempts: 5, InitialDelay: 250 * time.Millisecond}))
		reloads := consumer.New(kc)
		go func() {
			if err := reloads.Start(ctx); err != nil {
				slog.Error("reload consumer error", "error", err)
			}
		}()
		slog.Info("reload consumer started", "topic", cfg.Kafka.Topics.IndexCommitted)
	}

	if cfg.Metrics.Enabled {
		ms := metrics.NewServer(cfg.Metrics.Port, nil)
		ms.Start()
		defer ms.Shutdown(context.Background())
	}

	h := handler.New(svc, cfg.Search.DefaultLimit, cfg.Search.MaxResults)

	mux := http.NewServeMux()
	h.Register(mux)
	mux.HandleFunc("GET /api/v1/analytics", analytics.NewHandler(aggregator).Stats)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Metrics(m)(chain)
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
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
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("search service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("search service stopped")
}
