package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"

	"idealista-scraper/internal/fetcher"
	"idealista-scraper/internal/observability"
	"idealista-scraper/internal/politeness"
	"idealista-scraper/internal/scraper"
	"idealista-scraper/internal/storage"
)

type State int

const (
	StateIdle State = iota
	StateRunning
	StateCompleted
	StateInterrupted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateInterrupted:
		return "interrupted"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// PageExtractor превращает документ страницы выдачи в объявления.
type PageExtractor interface {
	Extract(ctx context.Context, doc *goquery.Document, pageURL string) scraper.PageResult
}

type CrawlStats struct {
	Pages           int // страницы, с которых извлекли данные
	SkippedPages    int // ни сеть, ни кэш не отдали страницу
	Listings        int
	SkippedListings int
	CacheHits       int
	Elapsed         time.Duration
}

type CrawlResult struct {
	State    State
	Records  []scraper.Listing
	Stats    CrawlStats
	RunID    string
	FlushErr error
}

type Orchestrator struct {
	logger    *observability.Logger
	paginator *scraper.Paginator
	resolver  scraper.Resolver
	extractor PageExtractor
	sink      storage.Sink
	delayOpts []politeness.Option
}

func NewOrchestrator(
	logger *observability.Logger,
	paginator *scraper.Paginator,
	resolver scraper.Resolver,
	extractor PageExtractor,
	sink storage.Sink,
	delayOpts ...politeness.Option,
) *Orchestrator {
	return &Orchestrator{
		logger:    logger,
		paginator: paginator,
		resolver:  resolver,
		extractor: extractor,
		sink:      sink,
		delayOpts: delayOpts,
	}
}

// Run обходит страницы StartPage..EndPage строго последовательно.
// При отмене ctx уже собранные записи сбрасываются в sink, результат StateInterrupted.
func (o *Orchestrator) Run(ctx context.Context, req CrawlRequest) (*CrawlResult, error) {
	result := &CrawlResult{State: StateIdle, RunID: req.RunID}
	if result.RunID == "" {
		result.RunID = uuid.NewString()
	}
	logger := o.logger.With("run_id", result.RunID)

	if err := req.Validate(); err != nil {
		logger.Error("Crawl request rejected", "error", err.Error())
		result.State = StateFailed
		return result, err
	}

	delay, err := politeness.NewDelay(req.MinDelay, req.MaxDelay, o.delayOpts...)
	if err != nil {
		result.State = StateFailed
		return result, &ConfigError{Field: "delay", Reason: err.Error()}
	}

	start := time.Now()
	result.State = StateRunning
	logger.Info("Starting crawl",
		"base_url", req.BaseURL,
		"start_page", req.StartPage,
		"end_page", req.EndPage,
		"pages", req.Pages(),
		"min_delay_s", req.MinDelay,
		"max_delay_s", req.MaxDelay,
		"output", req.Output,
	)

	for page := req.StartPage; page <= req.EndPage; page++ {
		if ctx.Err() != nil {
			logger.Info("Crawl cancelled before page", "page", page)
			result.State = StateInterrupted
			break
		}

		pageURL, err := o.paginator.PageURL(req.BaseURL, page)
		if err != nil {
			logger.Error("Failed to build page URL", "page", page, "error", err.Error())
			result.State = StateFailed
			result.Stats.Elapsed = time.Since(start)
			return result, fmt.Errorf("page %d: %w", page, err)
		}

		logger.Debug("Processing page", "page", page, "url", pageURL)

		// Сеть → кэш; если обоих нет, страницу пропускаем
		markup, source, err := o.resolver.Resolve(ctx, pageURL)
		if err != nil && ctx.Err() != nil {
			logger.Info("Crawl cancelled during page fetch", "page", page, "url", pageURL)
			result.State = StateInterrupted
			break
		}
		if err != nil {
			logger.Warn("Page unavailable, skipping",
				"page", page,
				"url", pageURL,
				"error", err.Error(),
			)
			result.Stats.SkippedPages++
			continue
		}
		if source == fetcher.SourceCache {
			result.Stats.CacheHits++
		}

		doc, err := scraper.ParseDocument(markup)
		if err != nil {
			logger.Warn("Parse listing failed, skipping",
				"page", page,
				"url", pageURL,
				"error", err.Error(),
			)
			result.Stats.SkippedPages++
			continue
		}

		pageResult := o.extractor.Extract(ctx, doc, pageURL)

		// Детали страницы могли не загрузиться из-за отмены, такую страницу не сохраняем
		if ctx.Err() != nil {
			logger.Info("Crawl cancelled during page, discarding its records",
				"page", page,
				"discarded", len(pageResult.Listings),
			)
			result.State = StateInterrupted
			break
		}

		result.Records = append(result.Records, pageResult.Listings...)
		result.Stats.Pages++
		result.Stats.Listings += len(pageResult.Listings)
		result.Stats.SkippedListings += len(pageResult.Skipped)

		logger.Info("Page processed",
			"page", page,
			"url", pageURL,
			"source", source,
			"found", len(pageResult.Listings),
			"skipped", len(pageResult.Skipped),
			"total", len(result.Records),
		)

		if page == req.EndPage {
			break
		}

		pause, err := delay.Wait(ctx)
		if err != nil {
			logger.Info("Crawl cancelled during politeness delay", "page", page)
			result.State = StateInterrupted
			break
		}
		logger.Debug("Politeness delay elapsed", "page", page, "pause", pause.String())
	}

	if result.State == StateRunning {
		result.State = StateCompleted
	}
	result.Stats.Elapsed = time.Since(start)

	return result, o.finish(logger, req, result)
}

// finish сбрасывает записи в sink; вызывается и при завершении, и при прерывании.
func (o *Orchestrator) finish(logger *observability.Logger, req CrawlRequest, result *CrawlResult) error {
	flushErr := o.sink.Write(result.Records, req.Output)
	result.FlushErr = flushErr

	logger.Info("Crawl finished",
		"state", result.State.String(),
		"pages", result.Stats.Pages,
		"skipped_pages", result.Stats.SkippedPages,
		"listings", result.Stats.Listings,
		"skipped_listings", result.Stats.SkippedListings,
		"cache_hits", result.Stats.CacheHits,
		"elapsed", result.Stats.Elapsed.String(),
	)

	if flushErr != nil {
		logger.Error("Flush failed", "output", req.Output, "error", flushErr.Error())
		return fmt.Errorf("flush results: %w", flushErr)
	}
	return nil
}

// IsConfigError сообщает, что прогон не начался из-за невалидного запроса.
func IsConfigError(err error) bool {
	var cfgErr *ConfigError
	return errors.As(err, &cfgErr)
}
