// Command search queries a committed index from the terminal, either once
// for the words given on the command line or interactively.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/tdt-search/internal/indexer/corpus"
	"github.com/Adithya-Monish-Kumar-K/tdt-search/internal/indexer/store"
	"github.com/Adithya-Monish-Kumar-K/tdt-search/internal/searcher"
	"github.com/Adithya-Monish-Kumar-K/tdt-search/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/tdt-search/internal/searcher/snippet"
	"github.com/Adithya-Monish-Kumar-K/tdt-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/tdt-search/pkg/logger"
)

const defaultHits = 10

type options struct {
	configPath string
	indexDir   string
	corpusRoot string
	hits       int
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "search [--hits N] [query words...]",
		Short: "Search the TDT3 index",
		Long: `Search the committed index with free words and "quoted phrases".

With query words, runs one search and exits. Without, starts an
interactive prompt; type quit, exit or q to leave.

Examples:
  search --hits 5 hurricane
  search '"new york" hurricane disaster'`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, args, opts)
		},
	}

	cmd.Flags().StringVar(&opts.configPath, "config", "", "path to config file")
	cmd.Flags().StringVar(&opts.indexDir, "index", "", "index directory (overrides indexer.dataDir)")
	cmd.Flags().StringVar(&opts.corpusRoot, "corpus", "", "corpus root (overrides indexer.corpusRoot)")
	cmd.Flags().IntVar(&opts.hits, "hits", defaultHits, "number of results to show")
	return cmd
}

func run(cmd *cobra.Command, args []string, opts options) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if opts.indexDir != "" {
		cfg.Indexer.DataDir = opts.indexDir
	}
	if opts.corpusRoot != "" {
		cfg.Indexer.CorpusRoot = opts.corpusRoot
	}
	logger.SetupWriter(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.Format)

	svc, err := newService(cfg)
	if err != nil {
		return err
	}
	r := newRenderer(cmd.OutOrStdout(), snippetOptions(cfg))

	if len(args) > 0 {
		query := strings.TrimSpace(strings.Join(args, " "))
		if query == "" {
			return fmt.Errorf("no query words given")
		}
		return searchOnce(cmd.Context(), svc, r, query, opts.hits)
	}
	return repl(cmd.Context(), cmd.InOrStdin(), svc, r, opts.hits)
}

func newService(cfg *config.Config) (*searcher.Service, error) {
	st, err := store.Open(cfg.Indexer.DataDir)
	if err != nil {
		return nil, err
	}
	if _, err := st.Snapshot(); err != nil {
		return nil, fmt.Errorf("no index in %s, run the indexer first: %w", cfg.Indexer.DataDir, err)
	}
	texts, err := corpus.NewCachedReader(corpus.NewReader(cfg.Indexer.CorpusRoot), cfg.Search.DocCacheSize)
	if err != nil {
		return nil, err
	}
	weighting, err := ranker.ByName(cfg.Search.Weighting)
	if err != nil {
		return nil, err
	}
	return searcher.New(st, texts,
		searcher.WithWeighting(weighting),
		searcher.WithSnippetOptions(snippetOptions(cfg)),
	), nil
}

func snippetOptions(cfg *config.Config) snippet.Options {
	return snippet.Options{
		MaxLength: cfg.Search.SnippetLength,
		Open:      cfg.Search.HighlightOpen,
		Close:     cfg.Search.HighlightClose,
	}
}
