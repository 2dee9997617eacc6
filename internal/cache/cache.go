package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"idealista-scraper/internal/observability"
)

// PageCache хранит сырой HTML страниц на диске, ключ: нормализованный URL.
// Запись best-effort: ошибка логируется и не прерывает обход.
type PageCache struct {
	dir       string
	extension string
	logger    *observability.Logger
}

func NewPageCache(dir, extension string, logger *observability.Logger) *PageCache {
	if extension == "" {
		extension = ".html"
	}
	return &PageCache{
		dir:       dir,
		extension: extension,
		logger:    logger,
	}
}

// maxKeyLen держит имя файла в пределах 255 байт (NAME_MAX) вместе с хешем и расширением.
const maxKeyLen = 200

// Key превращает URL в имя файла: без схемы, "/" заменены на "_".
// Слишком длинный ключ обрезается, а к нему добавляется короткий sha256 полного URL.
func (c *PageCache) Key(url string) string {
	key := strings.TrimPrefix(url, "https://")
	key = strings.TrimPrefix(key, "http://")
	key = strings.ReplaceAll(key, "/", "_")

	if len(key) > maxKeyLen {
		cut := maxKeyLen
		for cut > 0 && !utf8.RuneStart(key[cut]) {
			cut--
		}
		sum := sha256.Sum256([]byte(url))
		key = key[:cut] + "_" + hex.EncodeToString(sum[:8])
	}
	return key + c.extension
}

func (c *PageCache) path(url string) string {
	return filepath.Join(c.dir, c.Key(url))
}

// Save перезаписывает запись для url. Каталог создаётся при первой записи.
func (c *PageCache) Save(url, markup string) {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		c.logger.Warn("Cache dir create failed",
			"dir", c.dir,
			"url", url,
			"error", err.Error(),
		)
		return
	}

	path := c.path(url)
	if err := os.WriteFile(path, []byte(markup), 0o644); err != nil {
		c.logger.Warn("Cache write failed",
			"url", url,
			"path", path,
			"error", err.Error(),
		)
		return
	}

	c.logger.Debug("Page cached", "url", url, "path", path, "bytes", len(markup))
}

// Load возвращает found=false без ошибки, если записи нет.
func (c *PageCache) Load(url string) (string, bool, error) {
	data, err := os.ReadFile(c.path(url))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to read cached page: %w", err)
	}
	return string(data), true, nil
}
