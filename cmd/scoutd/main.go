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

	"github.com/RidgeOps/scout/internal/api"
	"github.com/RidgeOps/scout/internal/config"
	"github.com/RidgeOps/scout/internal/metrics"
	"github.com/RidgeOps/scout/internal/storage"
	"github.com/RidgeOps/scout/internal/storage/memstore"
	"github.com/RidgeOps/scout/internal/storage/postgres"
	"github.com/RidgeOps/scout/internal/storage/sqlite"
	"github.com/RidgeOps/scout/internal/task"
	"github.com/RidgeOps/scout/internal/youtube"
)

func main() {
	cfg := config.Default()
	if err := cfg.LoadEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	listenAddr := flag.String("listen", cfg.ListenAddr, "API listen address")
	metricsAddr := flag.String("metrics-addr", cfg.MetricsAddr, "Prometheus metrics listen address")
	backend := flag.String("storage", cfg.StorageBackend, "Storage backend: sqlite, postgres, or memory")
	sqlitePath := flag.String("sqlite-path", cfg.SQLitePath, "SQLite database path")
	postgresDSN := flag.String("postgres-dsn", cfg.PostgresDSN, "Postgres connection string")
	region := flag.String("region", cfg.Region, "Target region code for search and classification")
	maxResults := flag.Int("max-results", cfg.MaxResultsPerQuery, "Maximum search results per keyword")
	videoDelayMs := flag.Int("video-delay", int(cfg.VideoDelay/time.Millisecond), "Delay after each video lookup (milliseconds)")
	keywordDelayMs := flag.Int("keyword-delay", int(cfg.KeywordDelay/time.Millisecond), "Delay between keywords (milliseconds)")
	maxTasks := flag.Int("max-tasks", int(cfg.MaxConcurrentTasks), "Maximum concurrently running tasks")
	verbose := flag.Bool("v", false, "Enable verbose logging")
	flag.Parse()

	cfg.ListenAddr = *listenAddr
	cfg.MetricsAddr = *metricsAddr
	cfg.StorageBackend = *backend
	cfg.SQLitePath = *sqlitePath
	cfg.PostgresDSN = *postgresDSN
	cfg.Region = *region
	cfg.MaxResultsPerQuery = *maxResults
	cfg.VideoDelay = time.Duration(*videoDelayMs) * time.Millisecond
	cfg.KeywordDelay = time.Duration(*keywordDelayMs) * time.Millisecond
	cfg.MaxConcurrentTasks = int64(*maxTasks)
	cfg.Verbose = *verbose

	level := slog.LevelInfo
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	store, err := openStore(cfg)
	if err != nil {
		logger.Error("open store", slog.Any("error", err))
		os.Exit(1)
	}
	defer store.Close()

	newClient := func(apiKey string) (youtube.Client, error) {
		return youtube.NewDataAPI(youtube.Config{
			APIKey:  apiKey,
			Timeout: cfg.RequestTimeout,
			Logger:  logger,
		})
	}

	runner := task.NewRunner(store, newClient, task.Config{
		MaxConcurrent:      cfg.MaxConcurrentTasks,
		Region:             cfg.Region,
		MaxResultsPerQuery: cfg.MaxResultsPerQuery,
		PublishedAfter:     cfg.PublishedAfter,
		VideoDelay:         cfg.VideoDelay,
		KeywordDelay:       cfg.KeywordDelay,
	}, logger)

	validateKey := func(ctx context.Context, apiKey string) error {
		client, err := youtube.NewDataAPI(youtube.Config{
			APIKey:  apiKey,
			Timeout: cfg.RequestTimeout,
			Logger:  logger,
		})
		if err != nil {
			return err
		}
		return client.ValidateKey(ctx)
	}

	metricsSrv := metrics.Start(cfg.MetricsAddr)
	apiSrv := api.New(api.Config{
		Addr:           cfg.ListenAddr,
		ValidateKey:    validateKey,
		MinSubscribers: cfg.MinSubscribers,
		MinViewCount:   cfg.MinViewCount,
		Logger:         logger,
	}, store, runner)
	apiSrv.Start()

	logger.Info("scoutd started",
		slog.String("listen", cfg.ListenAddr),
		slog.String("metrics", cfg.MetricsAddr),
		slog.String("storage", cfg.StorageBackend))

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := apiSrv.Stop(shutdownCtx); err != nil {
		logger.Warn("api shutdown", slog.Any("error", err))
	}
	if err := metricsSrv.Stop(shutdownCtx); err != nil {
		logger.Warn("metrics shutdown", slog.Any("error", err))
	}

	// Let in-flight tasks reach a terminal state before closing the store.
	runner.Wait()
}

func openStore(cfg *config.Config) (storage.Store, error) {
	switch cfg.StorageBackend {
	case config.BackendSQLite:
		return sqlite.New(cfg.SQLitePath)
	case config.BackendPostgres:
		return postgres.New(context.Background(), cfg.PostgresDSN)
	case config.BackendMemory:
		return memstore.New(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}
