package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/indexer/consumer"
	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/indexer/store"
	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/indexer/watcher"
	ingesthandler "github.com/Adithya-Monish-Kumar-K/linesearch/internal/ingestion/handler"
	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/ingestion/publisher"
	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/ingestion/uploader"
	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/searcher"
	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/searcher/provenance"
	"github.com/Adithya-Monish-Kumar-K/linesearch/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/linesearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/linesearch/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/linesearch/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/linesearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/linesearch/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/linesearch/pkg/middleware"
)

func main() {
	configPath := flag.String("config", "", "path to config file (defaults apply when empty)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging, nil)
	slog.Info("starting search service",
		"port", cfg.Server.Port,
		"document_dir", cfg.Storage.DocumentDir,
		"index_dir", cfg.Storage.IndexDir,
		"backend", cfg.Indexer.Backend,
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
	if err := os.MkdirAll(cfg.Storage.DocumentDir, 0o755); err != nil {
		slog.Error("failed to create document directory", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
		ms := metrics.NewServer(cfg.Metrics.Port, prometheus.DefaultGatherer)
		ms.Start()
		defer ms.Shutdown(context.Background())
	}

	builderOpts := []indexer.Option{indexer.WithMetrics(m)}
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.IndexComplete)
		defer producer.Close()
		builderOpts = append(builderOpts, indexer.WithNotifier(publisher.New(producer, cfg.Storage.IndexDir)))

		groupID := fmt.Sprintf("%s-%s-%d", cfg.Kafka.ConsumerGroup, hostname(), os.Getpid())
		kafkaConsumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.IndexComplete, groupID, consumer.HandleIndexComplete(st))
		indexConsumer := consumer.New(kafkaConsumer)
		go func() {
			if err := indexConsumer.Start(ctx); err != nil {
				slog.Error("index consumer error", "error", err)
			}
		}()
		slog.Info("index events enabled", "topic", cfg.Kafka.Topics.IndexComplete, "group", groupID)
	}
	builder := indexer.NewBuilder(st, cfg.Indexer, builderOpts...)

	if cfg.Indexer.BuildOnStart {
		if _, err := builder.Build(ctx, cfg.Storage.DocumentDir); err != nil {
			slog.Error("initial index build failed", "error", err)
		}
	}
	if cfg.Indexer.Watch {
		w := watcher.New(cfg.Storage.DocumentDir, cfg.Indexer.WatchDebounce, builder)
		go func() {
			if err := w.Run(ctx); err != nil {
				slog.Error("watcher error", "error", err)
			}
		}()
	}

	resolver := provenance.New(cfg.Storage.DocumentDir, cfg.Search.ProvenanceWorkers)
	service := searcher.NewService(
		executor.New(st, cfg.Search),
		resolver,
		cfg.Search,
		searcher.WithMetrics(m),
		searcher.WithTracing(cfg.Tracing.Enabled),
	)
	searchH := handler.New(service, resolver)
	uploadH := ingesthandler.New(
		uploader.New(cfg.Storage.DocumentDir, cfg.Upload.MaxBytes, builder, m),
		cfg.Upload.FormField,
		cfg.Upload.MaxBytes,
	)

	checker := health.NewChecker(5 * time.Second)
	checker.Register("index", func(ctx context.Context) error {
		sn, err := st.Acquire()
		if errors.Is(err, apperrors.ErrIndexNotFound) {
			return health.Degraded("index not built")
		}
		if err != nil {
			return err
		}
		sn.Release()
		return nil
	})
	checker.Register("documents", health.DirCheck(cfg.Storage.DocumentDir))

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/search", searchH.Search)
	mux.HandleFunc("POST /search", searchH.Search)
	mux.HandleFunc("GET /api/v1/documents/{id}/lines", searchH.Lines)
	mux.HandleFunc("POST /api/v1/documents", uploadH.Upload)
	mux.HandleFunc("POST /upload", uploadH.Upload)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	chain := middleware.Chain(mux,
		middleware.RequestID,
		middleware.Timeout(cfg.Server.WriteTimeout),
		middleware.Metrics(m),
	)

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

func hostname() string {
	h, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return h
}
