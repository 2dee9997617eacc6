package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"

	"github.com/google/uuid"

	"idealista-scraper/internal/app"
	"idealista-scraper/internal/cache"
	"idealista-scraper/internal/config"
	"idealista-scraper/internal/fetcher"
	"idealista-scraper/internal/observability"
	"idealista-scraper/internal/scraper"
	"idealista-scraper/internal/storage"
	"idealista-scraper/internal/storage/mssql"
	"idealista-scraper/internal/storage/postgres"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	opts, err := parseFlags(args, os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitUsage
	}

	cfg, err := config.LoadConfig(opts.ConfigPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return exitFailure
	}
	opts.applyOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		return exitFailure
	}

	// Запрос валидируется до любой сетевой активности и до запуска браузера
	runID := uuid.NewString()
	req, err := opts.request(cfg, runID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitUsage
	}

	logger, err := observability.NewLogger(observability.Options{
		LogPath:    cfg.Observability.LogPath,
		LogLevel:   cfg.Observability.LogLevel,
		MaxSizeMB:  cfg.Observability.LogMaxSizeMB,
		MaxBackups: cfg.Observability.LogMaxBackups,
		MaxAgeDays: cfg.Observability.LogMaxAgeDays,
		Compress:   true,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to init logger: %v\n", err)
		return exitFailure
	}
	defer func() { _ = logger.Sync() }()

	selectors, err := cfg.Selectors()
	if err != nil {
		logger.Error("Failed to load selectors", "error", err.Error())
		return exitFailure
	}

	keywords, err := config.LoadExpressions(cfg.ExpressionsFile)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		logger.Warn("Expressions file not found, expenses detection disabled", "path", cfg.ExpressionsFile)
	case err != nil:
		logger.Warn("Failed to load expressions, expenses detection disabled", "error", err.Error())
	case keywords.Len() == 0:
		logger.Warn("No expressions configured, expenses detection disabled")
	default:
		logger.Info("Expressions loaded", "count", keywords.Len())
		logger.Debug("Expenses keywords", "keywords", keywords.Words())
	}

	ctx, cancel := app.GracefulShutdown(context.Background(), logger)
	defer cancel()

	pageFetcher, closeFetcher, err := newPageFetcher(cfg, logger)
	if err != nil {
		logger.Error("Failed to init fetcher", "mode", cfg.Fetcher.Mode, "error", err.Error())
		return exitFailure
	}
	defer closeFetcher()

	sink, closeSink, err := newSink(cfg, runID, logger)
	if err != nil {
		logger.Error("Failed to init storage", "driver", cfg.Storage.Driver, "error", err.Error())
		return exitFailure
	}
	defer closeSink()

	pageCache := cache.NewPageCache(cfg.Cache.Dir, cfg.Cache.Extension, logger)
	chain := fetcher.NewFetchOrCacheChain(pageFetcher, pageCache, logger)
	classifier := scraper.NewExpensesClassifier(chain, keywords, selectors, logger)

	extractor, err := scraper.NewExtractor(selectors, cfg.Site.Origin, classifier, logger)
	if err != nil {
		logger.Error("Failed to init extractor", "error", err.Error())
		return exitFailure
	}

	orchestrator := app.NewOrchestrator(
		logger,
		scraper.NewPaginator(cfg.Site.PagePrefix, cfg.Site.PageSuffix),
		chain,
		extractor,
		sink,
	)

	result, err := orchestrator.Run(ctx, req)
	if err != nil {
		logger.Error("Crawl failed", "state", result.State.String(), "error", err.Error())
	} else {
		logger.Info("Done",
			"state", result.State.String(),
			"records", len(result.Records),
			"run_id", result.RunID,
		)
	}
	return exitCode(result, err)
}

// exitCode: завершённый, прерванный и пустой прогоны дают 0.
func exitCode(result *app.CrawlResult, err error) int {
	switch {
	case err == nil:
		return exitOK
	case app.IsConfigError(err):
		return exitUsage
	default:
		return exitFailure
	}
}

func newPageFetcher(cfg *config.Config, logger *observability.Logger) (fetcher.PageFetcher, func(), error) {
	if cfg.Fetcher.Mode == "rod" {
		bf, err := fetcher.NewBrowserFetcher(cfg, logger)
		if err != nil {
			return nil, nil, err
		}
		return bf, func() {
			if err := bf.Close(); err != nil {
				logger.Warn("Failed to close browser", "error", err.Error())
			}
		}, nil
	}
	return fetcher.NewFetcher(cfg, logger), func() {}, nil
}

// newSink: файл всегда, БД только если задан storage.driver.
func newSink(cfg *config.Config, runID string, logger *observability.Logger) (storage.Sink, func(), error) {
	fileSink := storage.NewFileSink(cfg.Crawl.OutputDir, logger)

	var (
		repo storage.Repository
		err  error
	)
	switch cfg.Storage.Driver {
	case "":
		return fileSink, func() {}, nil
	case "mssql":
		repo, err = mssql.NewRepository(cfg.Storage.DSN, cfg.GetCommandTimeout(), logger)
	case "postgres":
		repo, err = postgres.NewRepository(cfg.Storage.DSN, cfg.GetCommandTimeout(), logger)
	default:
		err = fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
	if err != nil {
		return nil, nil, err
	}

	closeRepo := func() {
		if err := repo.Close(); err != nil {
			logger.Warn("Failed to close repository", "error", err.Error())
		}
	}
	return storage.NewMultiSink(fileSink, storage.NewRepositorySink(repo, runID, logger)), closeRepo, nil
}
