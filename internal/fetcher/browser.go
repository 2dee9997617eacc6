package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"idealista-scraper/internal/config"
	"idealista-scraper/internal/observability"
)

// BrowserFetcher renders pages in headless Chromium via rod and returns the
// resulting DOM as HTML. One browser per process, one tab per fetch.
type BrowserFetcher struct {
	browser      *rod.Browser
	launcher     *launcher.Launcher
	cfg          *config.Config
	logger       *observability.Logger
	rateLimiter  *RateLimiter
	robotsCache  *RobotsCache
	robotsClient *http.Client // только для robots.txt, страницы рендерит браузер
}

func NewBrowserFetcher(cfg *config.Config, logger *observability.Logger) (*BrowserFetcher, error) {
	bin := cfg.Rod.ChromePath
	if bin == "" {
		if path, ok := launcher.LookPath(); ok {
			bin = path
		} else {
			logger.Info("No browser binary found, downloading default")
			path, err := launcher.NewBrowser().Get()
			if err != nil {
				return nil, fmt.Errorf("download browser: %w", err)
			}
			bin = path
		}
	}

	l := launcher.New().
		Bin(bin).
		Headless(cfg.Rod.Headless).
		NoSandbox(true).
		Set("disable-gpu").
		Set("disable-dev-shm-usage")

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("connect browser: %w", err)
	}

	logger.Info("Browser started", "bin", bin, "headless", cfg.Rod.Headless)

	return &BrowserFetcher{
		browser:     browser,
		launcher:    l,
		cfg:         cfg,
		logger:      logger,
		rateLimiter: NewRateLimiter(cfg.RateLimit.RPM, cfg.RateLimit.Burst),
		robotsCache: newRobotsGuard(cfg, logger),
		robotsClient: &http.Client{
			Timeout:   cfg.GetTotalTimeout(),
			Transport: &http.Transport{Proxy: http.ProxyFromEnvironment},
		},
	}, nil
}

func (b *BrowserFetcher) FetchPage(ctx context.Context, urlStr string) (string, error) {
	parsedURL, err := url.Parse(urlStr)
	if err != nil || parsedURL.Host == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidURL, urlStr)
	}

	if err := b.robotsCache.Check(ctx, parsedURL, b.robotsClient); err != nil {
		return "", err
	}

	if err := b.rateLimiter.Wait(ctx, parsedURL.Host); err != nil {
		return "", fmt.Errorf("rate limit error: %w", err)
	}

	tab, err := b.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return "", fmt.Errorf("open tab: %w", err)
	}
	// Закрываем вкладку без ctx запроса: после отмены он уже мёртв
	defer func() {
		if err := tab.Close(); err != nil {
			b.logger.Debug("Failed to close tab", "url", urlStr, "error", err.Error())
		}
	}()

	page := tab.Context(ctx).Timeout(b.cfg.GetRodPageTimeout())

	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
		UserAgent:      b.cfg.HTTP.UserAgent,
		AcceptLanguage: b.cfg.HTTP.AcceptLanguage,
	}); err != nil {
		b.logger.Warn("Set user agent failed", "url", urlStr, "error", err.Error())
	}

	if err := page.Navigate(urlStr); err != nil {
		return "", fmt.Errorf("navigate: %w", err)
	}

	if err := page.Timeout(b.cfg.GetRodWaitLoadTimeout()).WaitLoad(); err != nil {
		b.logger.Warn("WaitLoad failed, continuing anyway", "url", urlStr, "error", err.Error())
	}

	// Даём догрузиться ленивым блокам (комментарии на детальной странице)
	if delay := b.cfg.GetRodLazyLoadDelay(); delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	html, err := page.HTML()
	if err != nil {
		return "", fmt.Errorf("read page html: %w", err)
	}

	b.logger.Debug("Page rendered", "url", urlStr, "bytes", len(html))
	return html, nil
}

// Close shuts the browser down and removes its temp profile.
func (b *BrowserFetcher) Close() error {
	err := b.browser.Close()
	b.launcher.Kill()
	b.launcher.Cleanup()
	return err
}
