package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/temoto/robotstxt"

	"idealista-scraper/internal/config"
	"idealista-scraper/internal/observability"
)

type RobotsCache struct {
	cache     map[string]*robotsEntry
	ttl       time.Duration
	userAgent string
	mu        sync.RWMutex
	logger    *observability.Logger
}

type robotsEntry struct {
	data      *robotstxt.RobotsData // nil: правил нет, всё разрешено
	expiresAt time.Time
}

// newRobotsGuard returns nil when http.respect_robots is off.
func newRobotsGuard(cfg *config.Config, logger *observability.Logger) *RobotsCache {
	if !cfg.HTTP.RespectRobots {
		return nil
	}
	return NewRobotsCache(cfg.GetRobotsCacheTTL(), cfg.HTTP.UserAgent, logger)
}

// Check returns ErrDisallowed when robots.txt forbids target. A nil cache allows everything.
func (rc *RobotsCache) Check(ctx context.Context, target *url.URL, client *http.Client) error {
	if rc == nil || rc.IsAllowed(ctx, target, client) {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrDisallowed, target.String())
}

func NewRobotsCache(ttl time.Duration, userAgent string, logger *observability.Logger) *RobotsCache {
	return &RobotsCache{
		cache:     make(map[string]*robotsEntry),
		ttl:       ttl,
		userAgent: userAgent,
		logger:    logger,
	}
}

// IsAllowed checks target against the host's robots.txt.
// Any failure to get robots.txt means "allowed".
func (rc *RobotsCache) IsAllowed(ctx context.Context, target *url.URL, client *http.Client) bool {
	host := target.Host

	rc.mu.RLock()
	cached, exists := rc.cache[host]
	rc.mu.RUnlock()

	if !exists || time.Now().After(cached.expiresAt) {
		data, ok := rc.fetch(ctx, target, client)
		if !ok {
			return true
		}
		cached = &robotsEntry{data: data, expiresAt: time.Now().Add(rc.ttl)}

		rc.mu.Lock()
		rc.cache[host] = cached
		rc.mu.Unlock()
	}

	if cached.data == nil {
		return true
	}
	return cached.data.TestAgent(target.RequestURI(), rc.userAgent)
}

func (rc *RobotsCache) fetch(ctx context.Context, target *url.URL, client *http.Client) (*robotstxt.RobotsData, bool) {
	robotsURL := url.URL{Scheme: target.Scheme, Host: target.Host, Path: "/robots.txt"}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL.String(), nil)
	if err != nil {
		return nil, false
	}
	req.Header.Set("User-Agent", rc.userAgent)

	resp, err := client.Do(req)
	if err != nil {
		// Network error: assume allowed, try again next time
		rc.logger.Debug("robots.txt fetch failed", "host", target.Host, "error", err.Error())
		return nil, false
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		// No robots.txt: everything allowed until TTL expires
		return nil, true
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 512<<10))
	if err != nil {
		return nil, false
	}

	data, err := robotstxt.FromBytes(body)
	if err != nil {
		rc.logger.Warn("robots.txt parse failed", "host", target.Host, "error", err.Error())
		return nil, true
	}
	return data, true
}
