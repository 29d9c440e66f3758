package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/indexer/store"
	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/indexer/watcher"
	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/ingestion/publisher"
	"github.com/Adithya-Monish-Kumar-K/linesearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/linesearch/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/linesearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/linesearch/pkg/metrics"
)

func main() {
	configPath := flag.String("config", "", "path to config file (defaults apply when empty)")
	sourceDir := flag.String("source", "", "document directory (overrides storage.documentDir)")
	watch := flag.Bool("watch", false, "keep running and rebuild when the document directory changes")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *sourceDir != "" {
		cfg.Storage.DocumentDir = *sourceDir
	}

	logger.Setup(cfg.Logging, nil)
	slog.Info("starting indexer",
		"document_dir", cfg.Storage.DocumentDir,
		"index_dir", cfg.Storage.IndexDir,
		"backend", cfg.Indexer.Backend,
		"watch", *watch || cfg.Indexer.Watch,
	)

	backend, err := store.NewBackend(cfg.Indexer.Backend)
	if err != nil {
		slog.Error("invalid index backend", "error", err)
		os.Exit(1)
	}
	st, err := store.Open(cfg.Storage.IndexDir, backend)
	if err != nil {
		slog.Error("failed to open index store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var opts []indexer.Option
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.IndexComplete)
		defer producer.Close()
		opts = append(opts, indexer.WithNotifier(publisher.New(producer, cfg.Storage.IndexDir)))
	}
	if (*watch || cfg.Indexer.Watch) && cfg.Metrics.Enabled {
		opts = append(opts, indexer.WithMetrics(metrics.New()))
		ms := metrics.NewServer(cfg.Metrics.Port, prometheus.DefaultGatherer)
		ms.Start()
		defer ms.Shutdown(context.Background())
	}
	builder := indexer.NewBuilder(st, cfg.Indexer, opts...)

	stats, err := builder.Build(ctx, cfg.Storage.DocumentDir)
	if err != nil {
		slog.Error("index build failed", "error", err)
		if !*watch && !cfg.Indexer.Watch {
			os.Exit(1)
		}
	} else {
		slog.Info("index ready",
			"generation", stats.Generation,
			"documents", stats.Documents,
			"units", stats.Units,
			"duration", stats.Duration,
		)
	}

	if *watch || cfg.Indexer.Watch {
		w := watcher.New(cfg.Storage.DocumentDir, cfg.Indexer.WatchDebounce, builder)
		if err := w.Run(ctx); err != nil {
			slog.Error("watcher error", "error", err)
			os.Exit(1)
		}
	}

	slog.Info("indexer stopped")
}
