package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"idealista-scraper/internal/observability"
	"idealista-scraper/internal/politeness"
	"idealista-scraper/internal/scraper"
	"idealista-scraper/internal/storage"
)

const baseURL = "https://x.test/rooms/"

func listingMarkup(page int) string {
	return fmt.Sprintf(`<html><body>
<div class="item-info-container">
  <a class="item-link" href="/inmueble/%d/">Habitación %d, Madrid</a>
  <span class="item-price">%d€/mes</span>
  <div class="item-detail-char"><span class="item-detail">2 hab.</span></div>
</div>
</body></html>`, page, page, 300+page)
}

type fakeResolver struct {
	pages   map[string]string
	calls   []string
	onCall  func(n int)
	sources map[string]string
}

func (f *fakeResolver) Resolve(_ context.Context, url string) (string, string, error) {
	f.calls = append(f.calls, url)
	if f.onCall != nil {
		f.onCall(len(f.calls))
	}
	markup, ok := f.pages[url]
	if !ok {
		return "", "", errors.New("page unavailable")
	}
	source := "fetch"
	if s, ok := f.sources[url]; ok {
		source = s
	}
	return markup, source, nil
}

type fakeSink struct {
	calls   int
	records []scraper.Listing
	name    string
	err     error
}

func (s *fakeSink) Write(records []scraper.Listing, name string) error {
	s.calls++
	s.records = records
	s.name = name
	return s.err
}

func pagesFor(from, to int, skip ...int) map[string]string {
	p := scraper.NewPaginator("page-", ".htm")
	skipped := make(map[int]bool)
	for _, s := range skip {
		skipped[s] = true
	}
	pages := make(map[string]string)
	for n := from; n <= to; n++ {
		if skipped[n] {
			continue
		}
		u, _ := p.PageURL(baseURL, n)
		pages[u] = listingMarkup(n)
	}
	return pages
}

func newTestOrchestrator(t *testing.T, resolver scraper.Resolver, sink storage.Sink, wait func(ctx context.Context, d time.Duration) error) *Orchestrator {
	t.Helper()
	logger := observability.NewNopLogger()
	extractor, err := scraper.NewExtractor(scraper.DefaultSelectors(), "https://x.test", nil, logger)
	if err != nil {
		t.Fatalf("NewExtractor() error = %v", err)
	}
	return NewOrchestrator(logger, scraper.NewPaginator("page-", ".htm"), resolver, extractor, sink, politeness.WithWaitFunc(wait))
}

func request(start, end int) CrawlRequest {
	return CrawlRequest{BaseURL: baseURL, StartPage: start, EndPage: end, MinDelay: 0, MaxDelay: 0, Output: "results.csv"}
}

func TestRunAttemptsEveryPage(t *testing.T) {
	resolver := &fakeResolver{pages: pagesFor(1, 5, 3)}
	sink := &fakeSink{}
	waits := 0
	o := newTestOrchestrator(t, resolver, sink, func(context.Context, time.Duration) error {
		waits++
		return nil
	})

	result, err := o.Run(context.Background(), request(1, 5))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(resolver.calls) != 5 {
		t.Errorf("resolver calls = %d, want 5", len(resolver.calls))
	}
	// Пауза только после успешных страниц и не после последней
	if waits != 3 {
		t.Errorf("delay waits = %d, want 3", waits)
	}
	if result.State != StateCompleted {
		t.Errorf("State = %v, want completed", result.State)
	}
	if result.Stats.Pages != 4 || result.Stats.SkippedPages != 1 || result.Stats.Listings != 4 {
		t.Errorf("Stats = %+v", result.Stats)
	}
	if sink.calls != 1 || len(sink.records) != 4 || sink.name != "results.csv" {
		t.Errorf("sink got %d calls, %d records, name %q", sink.calls, len(sink.records), sink.name)
	}
	if result.RunID == "" {
		t.Errorf("RunID not generated")
	}

	// Записи идут в порядке страниц
	wantLinks := []string{"/inmueble/1/", "/inmueble/2/", "/inmueble/4/", "/inmueble/5/"}
	for i, l := range result.Records {
		if l.Link != "https://x.test"+wantLinks[i] {
			t.Errorf("Records[%d].Link = %q, want %q", i, l.Link, wantLinks[i])
		}
	}
}

func TestRunInterruptedDuringDelay(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	resolver := &fakeResolver{pages: pagesFor(1, 10)}
	sink := &fakeSink{}
	waits := 0
	o := newTestOrchestrator(t, resolver, sink, func(ctx context.Context, _ time.Duration) error {
		waits++
		if waits == 3 {
			cancel()
			return ctx.Err()
		}
		return nil
	})

	result, err := o.Run(ctx, request(1, 10))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if result.State != StateInterrupted {
		t.Errorf("State = %v, want interrupted", result.State)
	}
	if len(resolver.calls) != 3 {
		t.Errorf("resolver calls = %d, want 3", len(resolver.calls))
	}
	if sink.calls != 1 || len(sink.records) != 3 {
		t.Errorf("flushed %d records in %d calls, want 3 records in 1 call", len(sink.records), sink.calls)
	}
}

func TestRunInterruptedDuringPageDiscardsIt(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	resolver := &fakeResolver{pages: pagesFor(1, 4)}
	resolver.onCall = func(n int) {
		if n == 2 {
			cancel()
		}
	}
	sink := &fakeSink{}
	o := newTestOrchestrator(t, resolver, sink, func(context.Context, time.Duration) error { return nil })

	result, err := o.Run(ctx, request(1, 4))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if result.State != StateInterrupted {
		t.Errorf("State = %v, want interrupted", result.State)
	}
	if len(sink.records) != 1 || sink.records[0].Link != "https://x.test/inmueble/1/" {
		t.Errorf("flushed records = %+v, want only page 1", sink.records)
	}
}

func TestRunInterruptedDuringFetchIsNotSkippedPage(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Страница 2 недоступна ни в сети, ни в кэше, а ctx отменяется во время её загрузки
	resolver := &fakeResolver{pages: pagesFor(1, 3, 2)}
	resolver.onCall = func(n int) {
		if n == 2 {
			cancel()
		}
	}
	sink := &fakeSink{}
	o := newTestOrchestrator(t, resolver, sink, func(context.Context, time.Duration) error { return nil })

	result, err := o.Run(ctx, request(1, 3))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if result.State != StateInterrupted {
		t.Errorf("State = %v, want interrupted", result.State)
	}
	if result.Stats.SkippedPages != 0 {
		t.Errorf("SkippedPages = %d, want 0", result.Stats.SkippedPages)
	}
	if len(resolver.calls) != 2 {
		t.Errorf("resolver calls = %d, want 2", len(resolver.calls))
	}
	if sink.calls != 1 || len(sink.records) != 1 {
		t.Errorf("sink calls = %d, records = %d, want 1 flush of page 1", sink.calls, len(sink.records))
	}
}

func TestRunEmptyResult(t *testing.T) {
	p := scraper.NewPaginator("page-", ".htm")
	pages := make(map[string]string)
	for n := 1; n <= 3; n++ {
		u, _ := p.PageURL(baseURL, n)
		pages[u] = "<html><body><p>No hay resultados</p></body></html>"
	}

	dir := filepath.Join(t.TempDir(), "output")
	sink := storage.NewFileSink(dir, observability.NewNopLogger())
	o := newTestOrchestrator(t, &fakeResolver{pages: pages}, sink, func(context.Context, time.Duration) error { return nil })

	result, err := o.Run(context.Background(), request(1, 3))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.State != StateCompleted || len(result.Records) != 0 {
		t.Errorf("Run() = %v with %d records, want completed and empty", result.State, len(result.Records))
	}
	if _, err := os.Stat(filepath.Join(dir, "results.csv")); !os.IsNotExist(err) {
		t.Errorf("output file should not exist for empty results")
	}
}

func TestRunCacheHitsCounted(t *testing.T) {
	pages := pagesFor(1, 2)
	p := scraper.NewPaginator("page-", ".htm")
	second, _ := p.PageURL(baseURL, 2)
	resolver := &fakeResolver{pages: pages, sources: map[string]string{second: "cache"}}

	o := newTestOrchestrator(t, resolver, &fakeSink{}, func(context.Context, time.Duration) error { return nil })
	result, err := o.Run(context.Background(), request(1, 2))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Stats.CacheHits != 1 {
		t.Errorf("CacheHits = %d, want 1", result.Stats.CacheHits)
	}
}

func TestRunRejectsInvalidRequest(t *testing.T) {
	tests := []struct {
		name string
		req  CrawlRequest
	}{
		{"reversed range", request(5, 2)},
		{"zero start", request(0, 2)},
		{"relative url", CrawlRequest{BaseURL: "/rooms", StartPage: 1, EndPage: 1, Output: "r.csv"}},
		{"delay order", CrawlRequest{BaseURL: baseURL, StartPage: 1, EndPage: 1, MinDelay: 5, MaxDelay: 1, Output: "r.csv"}},
		{"negative delay", CrawlRequest{BaseURL: baseURL, StartPage: 1, EndPage: 1, MinDelay: -1, MaxDelay: 1, Output: "r.csv"}},
	}

	for _, tt := range tests {
		resolver := &fakeResolver{}
		sink := &fakeSink{}
		o := newTestOrchestrator(t, resolver, sink, func(context.Context, time.Duration) error { return nil })

		result, err := o.Run(context.Background(), tt.req)
		if !IsConfigError(err) {
			t.Errorf("%s: Run() error = %v, want ConfigError", tt.name, err)
		}
		if result.State != StateFailed {
			t.Errorf("%s: State = %v, want failed", tt.name, result.State)
		}
		if len(resolver.calls) != 0 || sink.calls != 0 {
			t.Errorf("%s: no fetch or flush expected, got %d resolves, %d flushes", tt.name, len(resolver.calls), sink.calls)
		}
	}
}

func TestRunReturnsFlushError(t *testing.T) {
	flushErr := errors.New("disk full")
	sink := &fakeSink{err: flushErr}
	o := newTestOrchestrator(t, &fakeResolver{pages: pagesFor(1, 1)}, sink, func(context.Context, time.Duration) error { return nil })

	result, err := o.Run(context.Background(), request(1, 1))
	if !errors.Is(err, flushErr) {
		t.Errorf("Run() error = %v, want flush error", err)
	}
	if !errors.Is(result.FlushErr, flushErr) || result.State != StateCompleted {
		t.Errorf("result = %+v", result)
	}
}

func TestStateString(t *testing.T) {
	tests := map[State]string{
		StateIdle:        "idle",
		StateRunning:     "running",
		StateCompleted:   "completed",
		StateInterrupted: "interrupted",
		StateFailed:      "failed",
	}
	for s, want := range tests {
		if s.String() != want {
			t.Errorf("State(%d).String() = %q, want %q", int(s), s.String(), want)
		}
	}
}

func TestRunAllPagesUnavailable(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "output")
	sink := storage.NewFileSink(dir, observability.NewNopLogger())
	waits := 0
	resolver := &fakeResolver{}
	o := newTestOrchestrator(t, resolver, sink, func(context.Context, time.Duration) error {
		waits++
		return nil
	})

	result, err := o.Run(context.Background(), request(1, 3))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.State != StateCompleted || len(result.Records) != 0 || result.Stats.SkippedPages != 3 {
		t.Errorf("Run() = %v, records %d, stats %+v", result.State, len(result.Records), result.Stats)
	}
	if len(resolver.calls) != 3 || waits != 0 {
		t.Errorf("resolver calls = %d, waits = %d, want 3 and 0", len(resolver.calls), waits)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Errorf("output dir should not be created when nothing was scraped")
	}
}

func TestCrawlRequestPages(t *testing.T) {
	tests := []struct {
		start, end int
		expected   int
	}{
		{1, 1, 1},
		{2, 5, 4},
		{5, 2, 0},
	}

	for _, tt := range tests {
		if got := request(tt.start, tt.end).Pages(); got != tt.expected {
			t.Errorf("Pages(%d..%d) = %d, want %d", tt.start, tt.end, got, tt.expected)
		}
	}
}
