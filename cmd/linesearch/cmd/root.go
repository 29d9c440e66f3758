// Package cmd implements the linesearch command line: build the index,
// search it and show matching lines of a single document.
package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/indexer/store"
	"github.com/Adithya-Monish-Kumar-K/linesearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/linesearch/pkg/logger"
)

type globalOptions struct {
	configPath  string
	documentDir string
	indexDir    string
	backend     string
	logLevel    string
}

// app is what every subcommand needs after flags are parsed.
type app struct {
	cfg   *config.Config
	store *store.Store
}

func NewRootCmd() *cobra.Command {
	var opts globalOptions

	cmd := &cobra.Command{
		Use:   "linesearch",
		Short: "Line-level full-text search over a directory of documents",
		Long: `linesearch indexes every line of the documents in a directory and
answers keyword queries with the matching documents and line numbers.

Examples:
  linesearch index --docs ./notes
  linesearch search quick fox
  linesearch lines a.txt fox`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Path to config file")
	cmd.PersistentFlags().StringVar(&opts.documentDir, "docs", "", "Document directory (overrides storage.documentDir)")
	cmd.PersistentFlags().StringVar(&opts.indexDir, "index", "", "Index directory (overrides storage.indexDir)")
	cmd.PersistentFlags().StringVar(&opts.backend, "backend", "", "Index backend: segment or bleve")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "Log level: debug, info, warn, error")

	cmd.AddCommand(newIndexCmd(&opts))
	cmd.AddCommand(newSearchCmd(&opts))
	cmd.AddCommand(newLinesCmd(&opts))
	return cmd
}

// Execute runs the root command with a context cancelled on SIGINT/SIGTERM.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return NewRootCmd().ExecuteContext(ctx)
}

// load resolves configuration and opens the index store. Logs go to stderr
// so stdout carries only results.
func (o *globalOptions) load(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.documentDir != "" {
		cfg.Storage.DocumentDir = o.documentDir
	}
	if o.indexDir != "" {
		cfg.Storage.IndexDir = o.indexDir
	}
	if o.backend != "" {
		cfg.Indexer.Backend = o.backend
	}
	if cmd.Flags().Changed("log-level") || o.configPath == "" {
		cfg.Logging.Level = o.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger.Setup(config.LoggingConfig{Level: cfg.Logging.Level, Format: "text"}, cmd.ErrOrStderr())

	backend, err := store.NewBackend(cfg.Indexer.Backend)
	if err != nil {
		return nil, err
	}
	st, err := store.Open(cfg.Storage.IndexDir, backend)
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, store: st}, nil
}

func (a *app) close() {
	a.store.Close()
}
