package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/tdt-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/tdt-search/internal/indexer/catalog"
	"github.com/Adithya-Monish-Kumar-K/tdt-search/internal/indexer/store"
	"github.com/Adithya-Monish-Kumar-K/tdt-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/tdt-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/tdt-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/tdt-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/tdt-search/pkg/postgres"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	corpusRoot := flag.String("corpus", "", "corpus root (overrides indexer.corpusRoot)")
	force := flag.Bool("force", false, "index even if the index already has documents")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *corpusRoot != "" {
		cfg.Indexer.CorpusRoot = *corpusRoot
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting indexer",
		"corpus_root", cfg.Indexer.CorpusRoot,
		"data_dir", cfg.Indexer.DataDir,
		"workers", cfg.Indexer.Workers,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *force); err != nil {
		slog.Error("indexing failed", "error", err)
		os.Exit(1)
	}
	slog.Info("indexer stopped")
}

func run(ctx context.Context, cfg *config.Config, force bool) error {
	st, err := store.Open(cfg.Indexer.DataDir)
	if err != nil {
		return err
	}
	if snap, err := st.Snapshot(); err == nil && snap.DocCount() > 0 && !force {
		slog.Info("index already populated, skipping build",
			"version", snap.Version(),
			"docs", snap.DocCount(),
		)
		return nil
	}

	m := metrics.New()
	opts := []indexer.Option{
		indexer.WithWorkers(cfg.Indexer.Workers),
		indexer.WithProgressEvery(cfg.Indexer.ProgressEvery),
		indexer.WithFileSuffix(cfg.Indexer.FileSuffix),
		indexer.WithMetrics(m),
	}

	if cfg.Metrics.Enabled {
		ms := metrics.NewServer(cfg.Metrics.Port, nil)
		ms.Start()
		defer ms.Shutdown(context.Background())
	}

	if cfg.Postgres.Enabled() {
		db, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			slog.Warn("catalog unavailable, continuing without it", "error", err)
		} else {
			defer db.Close()
			cat := catalog.New(db)
			if err := cat.EnsureSchema(ctx); err != nil {
				slog.Warn("catalog schema setup failed, continuing without it", "error", err)
			} else {
				opts = append(opts, indexer.WithRecorder(cat))
				slog.Info("document catalog enabled", "host", cfg.Postgres.Host)
			}
		}
	}

	if cfg.Kafka.Enabled() {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.IndexCommitted)
		defer producer.Close()
		opts = append(opts, indexer.WithNotifier(producer))
		slog.Info("commit notifications enabled", "topic", cfg.Kafka.Topics.IndexCommitted)
	}

	report, err := indexer.NewBuilder(st, opts...).BuildIndex(ctx, cfg.Indexer.CorpusRoot)
	if err != nil {
		return err
	}

	fmt.Printf("indexed %d documents (%d skipped, %d duplicates) in %s, index version %d\n",
		report.Indexed, report.Skipped, report.Duplicates, report.Elapsed.Round(time.Millisecond), report.Version)
	return nil
}
