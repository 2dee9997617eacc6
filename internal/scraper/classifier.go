package scraper

import (
	"context"

	"github.com/PuerkitoBio/goquery"

	"idealista-scraper/internal/normalize"
	"idealista-scraper/internal/observability"
)

// Resolver отдаёт HTML страницы тем же путём, что и для листинга (сеть → кэш).
type Resolver interface {
	Resolve(ctx context.Context, url string) (markup string, source string, err error)
}

// ExpensesClassifier ищет ключевые слова в комментариях детальной страницы.
// Совпадение по подстроке, не по целому слову.
type ExpensesClassifier struct {
	resolver  Resolver
	keywords  *normalize.KeywordSet
	selectors *Selectors
	logger    *observability.Logger
}

func NewExpensesClassifier(resolver Resolver, keywords *normalize.KeywordSet, selectors *Selectors, logger *observability.Logger) *ExpensesClassifier {
	return &ExpensesClassifier{
		resolver:  resolver,
		keywords:  keywords,
		selectors: selectors,
		logger:    logger,
	}
}

// Classify возвращает false, если страница недоступна: отсутствие данных не ошибка.
func (c *ExpensesClassifier) Classify(ctx context.Context, detailURL string) bool {
	// Без ключевых слов ответ всегда false, в сеть не ходим
	if c.keywords.Len() == 0 {
		return false
	}

	markup, source, err := c.resolver.Resolve(ctx, detailURL)
	if err != nil {
		c.logger.Debug("Detail page unavailable",
			"url", detailURL,
			"error", err.Error(),
		)
		return false
	}

	doc, err := ParseDocument(markup)
	if err != nil {
		c.logger.Warn("Detail page parse failed",
			"url", detailURL,
			"source", source,
			"error", err.Error(),
		)
		return false
	}

	return c.matchComments(doc, detailURL)
}

func (c *ExpensesClassifier) matchComments(doc *goquery.Document, detailURL string) bool {
	matched := false
	doc.Find(c.selectors.Comment).EachWithBreak(func(_ int, comment *goquery.Selection) bool {
		comment.Find(c.selectors.Paragraph).EachWithBreak(func(_ int, p *goquery.Selection) bool {
			if keyword, ok := c.keywords.Match(normalize.FoldText(p.Text())); ok {
				c.logger.Debug("Expenses keyword matched", "url", detailURL, "keyword", keyword)
				matched = true
			}
			return !matched
		})
		return !matched
	})
	return matched
}
