package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"idealista-scraper/internal/normalize"
	"idealista-scraper/internal/observability"
)

var errMissingElement = errors.New("element not found")

// Classifier решает по ссылке на объявление, включены ли расходы.
type Classifier interface {
	Classify(ctx context.Context, detailURL string) bool
}

type Extractor struct {
	selectors  *Selectors
	origin     *url.URL
	classifier Classifier
	logger     *observability.Logger
}

func NewExtractor(selectors *Selectors, origin string, classifier Classifier, logger *observability.Logger) (*Extractor, error) {
	originURL, err := url.Parse(origin)
	if err != nil || originURL.Scheme == "" || originURL.Host == "" {
		return nil, fmt.Errorf("site origin must be an absolute URL, got %q", origin)
	}
	return &Extractor{
		selectors:  selectors,
		origin:     originURL,
		classifier: classifier,
		logger:     logger,
	}, nil
}

// ParseDocument строит дерево документа из сырого HTML
func ParseDocument(markup string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return doc, nil
}

// Extract обходит контейнеры объявлений в порядке документа.
// Битый контейнер пропускается и логируется, страница целиком не падает.
func (e *Extractor) Extract(ctx context.Context, doc *goquery.Document, pageURL string) PageResult {
	var result PageResult

	doc.Find(e.selectors.Container).Each(func(i int, sel *goquery.Selection) {
		item := e.extractOne(ctx, i, sel)
		if item.Skip != nil {
			e.logger.Warn("Skipping listing container",
				"page_url", pageURL,
				"index", item.Skip.Index,
				"field", item.Skip.Field,
				"error", item.Skip.Err.Error(),
			)
			result.Skipped = append(result.Skipped, *item.Skip)
			return
		}
		result.Listings = append(result.Listings, *item.Listing)
	})

	return result
}

func (e *Extractor) extractOne(ctx context.Context, index int, sel *goquery.Selection) ItemResult {
	skip := func(field string, err error) ItemResult {
		return ItemResult{Skip: &SkipReason{Index: index, Field: field, Err: err}}
	}

	// Комнаты: первая характеристика в блоке деталей
	rooms := sel.Find(e.selectors.Rooms).First()
	if rooms.Length() == 0 {
		return skip("rooms", errMissingElement)
	}

	price := sel.Find(e.selectors.Price).First()
	if price.Length() == 0 {
		return skip("price", errMissingElement)
	}

	anchor := sel.Find(e.selectors.Link).First()
	if anchor.Length() == 0 {
		return skip("link", errMissingElement)
	}

	href, exists := anchor.Attr("href")
	if !exists || strings.TrimSpace(href) == "" {
		return skip("href", errors.New("missing href attribute"))
	}

	link, err := e.absoluteLink(href)
	if err != nil {
		return skip("href", err)
	}

	listing := &Listing{
		Price:    normalize.CleanText(price.Text()),
		Locality: normalize.Locality(anchor.Text()),
		Rooms:    normalize.CleanText(rooms.Text()),
		Link:     link,
	}
	if e.classifier != nil {
		listing.ExpensesIncluded = e.classifier.Classify(ctx, link)
	}

	return ItemResult{Listing: listing}
}

// absoluteLink приклеивает относительную ссылку к origin сайта.
func (e *Extractor) absoluteLink(href string) (string, error) {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", fmt.Errorf("malformed href %q: %w", href, err)
	}
	abs := e.origin.ResolveReference(ref)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return "", fmt.Errorf("unsupported link scheme %q", abs.Scheme)
	}
	return abs.String(), nil
}
