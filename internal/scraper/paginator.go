package scraper

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// Paginator строит URL N-й страницы выдачи, вставляя или заменяя
// сегмент пути вида "<prefix><N><suffix>" (на idealista это "pagina-2.htm").
type Paginator struct {
	prefix  string
	suffix  string
	pattern *regexp.Regexp
}

func NewPaginator(prefix, suffix string) *Paginator {
	return &Paginator{
		prefix:  prefix,
		suffix:  suffix,
		pattern: regexp.MustCompile(`^` + regexp.QuoteMeta(prefix) + `\d+(?:` + regexp.QuoteMeta(suffix) + `)?$`),
	}
}

// PageURL чистая функция: повторный вызов с тем же номером даёт тот же URL,
// а старый сегмент страницы всегда заменяется, а не дублируется.
func (p *Paginator) PageURL(baseURL string, page int) (string, error) {
	if page < 1 {
		return "", fmt.Errorf("page number must be >= 1, got %d", page)
	}

	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL %q: %w", baseURL, err)
	}

	// Режем экранированный путь, чтобы %2F внутри сегмента не стал разделителем
	path := strings.TrimRight(u.EscapedPath(), "/")
	var segments []string
	if path != "" {
		for _, seg := range strings.Split(path, "/") {
			if p.pattern.MatchString(seg) {
				continue
			}
			segments = append(segments, seg)
		}
	}
	segments = append(segments, fmt.Sprintf("%s%d%s", p.prefix, page, p.suffix))

	rawPath := strings.Join(segments, "/")
	if !strings.HasPrefix(rawPath, "/") {
		rawPath = "/" + rawPath
	}

	decoded, err := url.PathUnescape(rawPath)
	if err != nil {
		return "", fmt.Errorf("invalid base URL path %q: %w", baseURL, err)
	}
	u.Path = decoded
	u.RawPath = rawPath
	return u.String(), nil
}
