package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"regexp"
	"strconv"

	"idealista-scraper/internal/app"
	"idealista-scraper/internal/config"
)

// errUsage: ошибка разбора аргументов, код выхода 2.
var errUsage = errors.New("usage error")

// A,B  A:B  A-B
var rangeRe = regexp.MustCompile(`^\s*(\d+)\s*[,:\-]\s*(\d+)\s*$`)

type cliOptions struct {
	URL        string
	Pages      string
	Delay      string
	Output     string
	ConfigPath string
	LogLevel   string
	Mode       string
}

func parseFlags(args []string, stderr io.Writer) (*cliOptions, error) {
	opts := &cliOptions{}
	fs := flag.NewFlagSet("idealista-rooms", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVar(&opts.URL, "url", "", "base listing URL (default: site.base_url from config)")
	fs.StringVar(&opts.URL, "u", "", "shorthand for -url")
	fs.StringVar(&opts.Pages, "pages", "", "page range START,END (required; also START:END or START-END)")
	fs.StringVar(&opts.Pages, "p", "", "shorthand for -pages")
	fs.StringVar(&opts.Delay, "delay", "", "politeness delay MIN,MAX in seconds (default: crawl.min/max_delay_s, 2,20)")
	fs.StringVar(&opts.Delay, "d", "", "shorthand for -delay")
	fs.StringVar(&opts.Output, "output", "", "output file name, .csv or .xlsx (default: crawl.output, results.csv)")
	fs.StringVar(&opts.Output, "o", "", "shorthand for -output")
	fs.StringVar(&opts.ConfigPath, "config", "", "path to YAML config (optional)")
	fs.StringVar(&opts.LogLevel, "log-level", "", "log level: debug, info, warn, error")
	fs.StringVar(&opts.Mode, "mode", "", "fetcher mode: http or rod")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", errUsage, err)
	}
	if fs.NArg() > 0 {
		fs.Usage()
		return nil, fmt.Errorf("%w: unexpected arguments %v", errUsage, fs.Args())
	}
	if opts.Pages == "" {
		fs.Usage()
		return nil, fmt.Errorf("%w: -pages is required", errUsage)
	}
	if opts.Mode != "" && opts.Mode != "http" && opts.Mode != "rod" {
		return nil, fmt.Errorf("%w: -mode must be 'http' or 'rod', got %q", errUsage, opts.Mode)
	}

	return opts, nil
}

// parseRange разбирает пару целых "A,B", "A:B" или "A-B".
func parseRange(s string) (int, int, error) {
	m := rangeRe.FindStringSubmatch(s)
	if m == nil {
		return 0, 0, fmt.Errorf("invalid range %q, expected A,B", s)
	}
	a, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid range %q: %w", s, err)
	}
	b, err := strconv.Atoi(m[2])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid range %q: %w", s, err)
	}
	return a, b, nil
}

// applyOverrides переносит флаги, перекрывающие конфиг.
func (o *cliOptions) applyOverrides(cfg *config.Config) {
	if o.Mode != "" {
		cfg.Fetcher.Mode = o.Mode
	}
	if o.LogLevel != "" {
		cfg.Observability.LogLevel = o.LogLevel
	}
}

// request собирает CrawlRequest: флаги поверх значений из конфига.
func (o *cliOptions) request(cfg *config.Config, runID string) (app.CrawlRequest, error) {
	req := app.CrawlRequest{
		BaseURL:  cfg.Site.BaseURL,
		MinDelay: cfg.Crawl.MinDelayS,
		MaxDelay: cfg.Crawl.MaxDelayS,
		Output:   cfg.Crawl.Output,
		RunID:    runID,
	}
	if o.URL != "" {
		req.BaseURL = o.URL
	}
	if o.Output != "" {
		req.Output = o.Output
	}

	start, end, err := parseRange(o.Pages)
	if err != nil {
		return req, &app.ConfigError{Field: "pages", Reason: err.Error()}
	}
	req.StartPage, req.EndPage = start, end

	if o.Delay != "" {
		lo, hi, err := parseRange(o.Delay)
		if err != nil {
			return req, &app.ConfigError{Field: "delay", Reason: err.Error()}
		}
		req.MinDelay, req.MaxDelay = lo, hi
	}

	return req, req.Validate()
}
