package app

import (
	"fmt"
	"net/url"
	"strings"
)

// CrawlRequest описывает один прогон: диапазон страниц, задержки и имя выходного файла.
type CrawlRequest struct {
	BaseURL   string
	StartPage int
	EndPage   int // включительно
	MinDelay  int // секунды
	MaxDelay  int
	Output    string
	RunID     string // если пустой, сгенерируется в Run
}

// ConfigError: невалидный запрос, обнаруженный до любого сетевого обращения.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid crawl request: %s %s", e.Field, e.Reason)
}

// Pages возвращает число страниц в диапазоне.
func (r CrawlRequest) Pages() int {
	if r.EndPage < r.StartPage {
		return 0
	}
	return r.EndPage - r.StartPage + 1
}

func (r CrawlRequest) Validate() error {
	u, err := url.Parse(strings.TrimSpace(r.BaseURL))
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return &ConfigError{Field: "base_url", Reason: fmt.Sprintf("must be an absolute http(s) URL, got %q", r.BaseURL)}
	}

	if r.StartPage < 1 {
		return &ConfigError{Field: "start_page", Reason: "must be >= 1"}
	}
	if r.StartPage > r.EndPage {
		return &ConfigError{Field: "end_page", Reason: fmt.Sprintf("must be >= start_page (%d > %d)", r.StartPage, r.EndPage)}
	}

	if r.MinDelay < 0 {
		return &ConfigError{Field: "min_delay", Reason: "must be >= 0"}
	}
	if r.MinDelay > r.MaxDelay {
		return &ConfigError{Field: "max_delay", Reason: fmt.Sprintf("must be >= min_delay (%d > %d)", r.MinDelay, r.MaxDelay)}
	}

	if strings.TrimSpace(r.Output) == "" {
		return &ConfigError{Field: "output", Reason: "must not be empty"}
	}

	return nil
}
