package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"idealista-scraper/internal/scraper"
)

// LoadSelectors загружает селекторы из YAML файла поверх дефолтных
func LoadSelectors(filePath string) (*scraper.Selectors, error) {
	if filePath == "" {
		return nil, fmt.Errorf("selectors file path is empty")
	}

	// Проверяем существование файла
	if _, err := os.Stat(filePath); err != nil {
		return nil, fmt.Errorf("selectors file not found: %s: %w", filePath, err)
	}

	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open selectors file: %w", err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			fmt.Printf("Warning: failed to close selectors file: %v\n", closeErr)
		}
	}()

	selectors := scraper.DefaultSelectors()
	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(selectors); err != nil {
		return nil, fmt.Errorf("failed to parse selectors YAML: %w", err)
	}

	if err := validateSelectors(selectors); err != nil {
		return nil, err
	}

	return selectors, nil
}

// Selectors возвращает селекторы из selectors_file или дефолтные, если файл не задан.
// Относительный путь считается от каталога configs.
func (c *Config) Selectors() (*scraper.Selectors, error) {
	if c.SelectorsFile == "" {
		return scraper.DefaultSelectors(), nil
	}
	return LoadSelectors(resolvePath(c.SelectorsFile))
}

func resolvePath(filePath string) string {
	if filepath.IsAbs(filePath) {
		return filePath
	}
	if _, err := os.Stat(filePath); err == nil {
		return filePath
	}
	return filepath.Join("configs", filePath)
}

// validateSelectors проверяет минимальный набор селекторов
func validateSelectors(s *scraper.Selectors) error {
	if s.Container == "" {
		return fmt.Errorf("container selector is required")
	}
	if s.Rooms == "" {
		return fmt.Errorf("rooms selector is required")
	}
	if s.Price == "" {
		return fmt.Errorf("price selector is required")
	}
	if s.Link == "" {
		return fmt.Errorf("link selector is required")
	}
	if s.Comment == "" {
		return fmt.Errorf("comment selector is required")
	}
	if s.Paragraph == "" {
		return fmt.Errorf("paragraph selector is required")
	}
	return nil
}
