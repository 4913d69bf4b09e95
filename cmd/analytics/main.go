// Command analytics aggregates query events published by every search
// instance and serves the combined summary at GET /api/v1/analytics.
//
// Usage:
//
//	go run ./cmd/analytics [-config tdtsearch.yaml]
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
	"github.com/Adithya-Monish-Kumar-K/tdt-search/internal/analytics/history"
	"github.com/Adithya-Monish-Kumar-K/tdt-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/tdt-search/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/tdt-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/tdt-search/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/tdt-search/pkg/postgres"
)

const snapshotInterval = time.Minute

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	if !cfg.Kafka.Enabled() {
		slog.Error("analytics service needs kafka.brokers")
		os.Exit(1)
	}
	slog.Info("starting analytics service", "port", cfg.Server.Port, "topic", cfg.Kafka.Topics.QueryEvents)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	aggregator := analytics.NewAggregator()
	consumerDone := make(chan error, 1)
	go func() {
		consumerDone <- aggregator.Consume(ctx, cfg.Kafka, cfg.Kafka.Topics.QueryEvents)
	}()

	checker := health.NewChecker()
	checker.Register("kafka", func(context.Context) health.ComponentHealth {
		select {
		case err := <-consumerDone:
			consumerDone <- err
			msg := "consumer stopped"
			if err != nil {
				msg = err.Error()
			}
			return health.ComponentHealth{Status: health.StatusDown, Message: msg}
		default:
			return health.ComponentHealth{Status: health.StatusUp, Message: "consumer active"}
		}
	})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/analytics", analytics.NewHandler(aggregator).Stats)

	if cfg.Postgres.Enabled() {
		db, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			slog.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		store := history.NewStore(db)
		if err := store.EnsureSchema(ctx); err != nil {
			slog.Error("failed to prepare history schema", "error", err)
			os.Exit(1)
		}
		if last, err := store.Latest(ctx); err != nil {
			slog.Warn("reading last stats snapshot", "error", err)
		} else if last != nil {
			slog.Info("previous stats snapshot found",
				"captured_at", last.CapturedAt,
				"total_searches", last.Stats.TotalSearches,
			)
		}
		go store.Run(ctx, aggregator, snapshotInterval)
		checker.Register("postgres", health.PingCheck(db, true))
		mux.HandleFunc("GET /api/v1/analytics/history", history.Handler(store))
	}
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
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

	slog.Info("analytics service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("analytics service stopped")
}
