// internal/config/config.go
package config

import (
	"fmt"
	"net/url"
	"time"
)

type Config struct {
	Site                SiteConfig          `yaml:"site"`
	Fetcher             FetcherConfig       `yaml:"fetcher"`
	Rod                 RodConfig           `yaml:"rod"`
	Backoff             BackoffConfig       `yaml:"backoff"`
	RobotsCacheTTLHours int                 `yaml:"robots_cache_ttl_hours"`
	HTTP                HttpConfig          `yaml:"http"`
	RateLimit           RateLimitConfig     `yaml:"rate_limit"`
	Crawl               CrawlConfig         `yaml:"crawl"`
	Cache               CacheConfig         `yaml:"cache"`
	SelectorsFile       string              `yaml:"selectors_file"`
	ExpressionsFile     string              `yaml:"expressions_file"`
	Storage             StorageConfig       `yaml:"storage"`
	Observability       ObservabilityConfig `yaml:"observability"`
}

type SiteConfig struct {
	Origin     string `yaml:"origin"`
	BaseURL    string `yaml:"base_url"`
	PagePrefix string `yaml:"page_prefix"`
	PageSuffix string `yaml:"page_suffix"`
}

type FetcherConfig struct {
	Mode string `yaml:"mode"` // http | rod
}

type RodConfig struct {
	ChromePath       string `yaml:"chrome_path"`
	Headless         bool   `yaml:"headless"`
	PageTimeoutS     int    `yaml:"page_timeout_s"`
	WaitLoadTimeoutS int    `yaml:"wait_load_timeout_s"`
	LazyLoadDelayS   int    `yaml:"lazy_load_delay_s"`
}

type BackoffConfig struct {
	MinMS     int `yaml:"min_ms"`
	MaxMS     int `yaml:"max_ms"`
	JitterPct int `yaml:"jitter_pct"`
}

type HttpConfig struct {
	UserAgent        string `yaml:"user_agent"`
	AcceptLanguage   string `yaml:"accept_language"`
	ConnectTimeoutMS int    `yaml:"connect_timeout_ms"`
	TotalTimeoutMS   int    `yaml:"total_timeout_ms"`
	MaxRetries       int    `yaml:"max_retries"`
	RespectRobots    bool   `yaml:"respect_robots"`
}

type RateLimitConfig struct {
	RPM   int `yaml:"rpm"`
	Burst int `yaml:"burst"`
}

type CrawlConfig struct {
	MinDelayS int    `yaml:"min_delay_s"`
	MaxDelayS int    `yaml:"max_delay_s"`
	Output    string `yaml:"output"`
	OutputDir string `yaml:"output_dir"`
}

type CacheConfig struct {
	Dir       string `yaml:"dir"`
	Extension string `yaml:"extension"`
}

type StorageConfig struct {
	Driver           string `yaml:"driver"` // "" | mssql | postgres
	DSN              string `yaml:"dsn"`
	CommandTimeoutMS int    `yaml:"command_timeout_ms"`
}

type ObservabilityConfig struct {
	LogPath       string `yaml:"log_path"`
	LogLevel      string `yaml:"log_level"`
	LogMaxSizeMB  int    `yaml:"log_max_size_mb"`
	LogMaxBackups int    `yaml:"log_max_backups"`
	LogMaxAgeDays int    `yaml:"log_max_age_days"`
}

// Default возвращает конфиг, с которым CLI работает без YAML файла.
func Default() *Config {
	return &Config{
		Site: SiteConfig{
			Origin:     "https://www.idealista.com",
			PagePrefix: "pagina-",
			PageSuffix: ".htm",
		},
		Fetcher: FetcherConfig{Mode: "http"},
		Rod: RodConfig{
			Headless:         true,
			PageTimeoutS:     60,
			WaitLoadTimeoutS: 30,
			LazyLoadDelayS:   2,
		},
		Backoff: BackoffConfig{
			MinMS:     500,
			MaxMS:     8000,
			JitterPct: 20,
		},
		RobotsCacheTTLHours: 12,
		HTTP: HttpConfig{
			UserAgent:        "Mozilla/5.0 (X11; Linux x86_64; rv:128.0) Gecko/20100101 Firefox/128.0",
			AcceptLanguage:   "es-ES,es;q=0.9,en;q=0.5",
			ConnectTimeoutMS: 10000,
			TotalTimeoutMS:   30000,
			MaxRetries:       2,
			RespectRobots:    false,
		},
		RateLimit: RateLimitConfig{
			RPM:   30,
			Burst: 1,
		},
		Crawl: CrawlConfig{
			MinDelayS: 2,
			MaxDelayS: 20,
			Output:    "results.csv",
			OutputDir: "output",
		},
		Cache: CacheConfig{
			Dir:       "cached_pages",
			Extension: ".html",
		},
		ExpressionsFile: "expressions.yaml",
		Storage: StorageConfig{
			CommandTimeoutMS: 5000,
		},
		Observability: ObservabilityConfig{
			LogLevel:      "info",
			LogMaxSizeMB:  20,
			LogMaxBackups: 5,
			LogMaxAgeDays: 30,
		},
	}
}

// Validation
func (c *Config) Validate() error {
	if c.Site.Origin == "" {
		return fmt.Errorf("site.origin is required")
	}
	if u, err := url.Parse(c.Site.Origin); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("site.origin must be an absolute URL")
	}
	if c.Site.PagePrefix == "" {
		return fmt.Errorf("site.page_prefix is required")
	}
	if c.Fetcher.Mode != "http" && c.Fetcher.Mode != "rod" {
		return fmt.Errorf("fetcher.mode must be 'http' or 'rod'")
	}
	if c.HTTP.UserAgent == "" {
		return fmt.Errorf("http.user_agent is required")
	}
	if c.HTTP.ConnectTimeoutMS <= 0 {
		return fmt.Errorf("http.connect_timeout_ms must be > 0")
	}
	if c.HTTP.TotalTimeoutMS <= 0 {
		return fmt.Errorf("http.total_timeout_ms must be > 0")
	}
	if c.HTTP.MaxRetries < 0 {
		return fmt.Errorf("http.max_retries must be >= 0")
	}
	if c.RateLimit.RPM <= 0 {
		return fmt.Errorf("rate_limit.rpm must be > 0")
	}
	if c.RateLimit.Burst <= 0 {
		return fmt.Errorf("rate_limit.burst must be > 0")
	}
	if c.Crawl.MinDelayS < 0 {
		return fmt.Errorf("crawl.min_delay_s must be >= 0")
	}
	if c.Crawl.MinDelayS > c.Crawl.MaxDelayS {
		return fmt.Errorf("crawl.min_delay_s must be <= crawl.max_delay_s")
	}
	if c.Crawl.Output == "" {
		return fmt.Errorf("crawl.output is required")
	}
	if c.Crawl.OutputDir == "" {
		return fmt.Errorf("crawl.output_dir is required")
	}
	if c.Cache.Dir == "" {
		return fmt.Errorf("cache.dir is required")
	}
	if c.Storage.Driver != "" && c.Storage.Driver != "mssql" && c.Storage.Driver != "postgres" {
		return fmt.Errorf("storage.driver must be empty, 'mssql' or 'postgres'")
	}
	if c.Storage.Driver != "" {
		if c.Storage.DSN == "" {
			return fmt.Errorf("storage.dsn is required when storage.driver is set")
		}
		if c.Storage.CommandTimeoutMS <= 0 {
			return fmt.Errorf("storage.command_timeout_ms must be > 0")
		}
	}
	if c.Observability.LogLevel == "" {
		return fmt.Errorf("observability.log_level is required")
	}
	if c.RobotsCacheTTLHours <= 0 {
		return fmt.Errorf("robots_cache_ttl_hours must be > 0")
	}
	if c.Backoff.MinMS <= 0 {
		return fmt.Errorf("backoff.min_ms must be > 0")
	}
	if c.Backoff.MaxMS <= 0 {
		return fmt.Errorf("backoff.max_ms must be > 0")
	}
	if c.Backoff.MinMS > c.Backoff.MaxMS {
		return fmt.Errorf("backoff.min_ms must be <= backoff.max_ms")
	}
	if c.Backoff.JitterPct < 0 || c.Backoff.JitterPct > 100 {
		return fmt.Errorf("backoff.jitter_pct must be between 0 and 100")
	}
	if c.Fetcher.Mode == "rod" {
		if c.Rod.PageTimeoutS <= 0 {
			return fmt.Errorf("rod.page_timeout_s must be > 0")
		}
		if c.Rod.WaitLoadTimeoutS <= 0 {
			return fmt.Errorf("rod.wait_load_timeout_s must be > 0")
		}
		if c.Rod.LazyLoadDelayS < 0 {
			return fmt.Errorf("rod.lazy_load_delay_s must be >= 0")
		}
	}
	return nil
}

// Getters
func (c *Config) GetConnectTimeout() time.Duration {
	return time.Duration(c.HTTP.ConnectTimeoutMS) * time.Millisecond
}

func (c *Config) GetTotalTimeout() time.Duration {
	return time.Duration(c.HTTP.TotalTimeoutMS) * time.Millisecond
}

func (c *Config) GetBackoffMin() time.Duration {
	return time.Duration(c.Backoff.MinMS) * time.Millisecond
}

func (c *Config) GetBackoffMax() time.Duration {
	return time.Duration(c.Backoff.MaxMS) * time.Millisecond
}

func (c *Config) GetCommandTimeout() time.Duration {
	return time.Duration(c.Storage.CommandTimeoutMS) * time.Millisecond
}

func (c *Config) GetRobotsCacheTTL() time.Duration {
	return time.Duration(c.RobotsCacheTTLHours) * time.Hour
}

func (c *Config) GetRodPageTimeout() time.Duration {
	return time.Duration(c.Rod.PageTimeoutS) * time.Second
}

func (c *Config) GetRodWaitLoadTimeout() time.Duration {
	return time.Duration(c.Rod.WaitLoadTimeoutS) * time.Second
}

func (c *Config) GetRodLazyLoadDelay() time.Duration {
	return time.Duration(c.Rod.LazyLoadDelayS) * time.Second
}
