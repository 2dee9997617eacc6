package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"idealista-scraper/internal/normalize"
)

type expressionsFile struct {
	Expressions []string `yaml:"expressions"`
}

// LoadExpressions читает ключевые слова для поиска "gastos incluidos".
// Формат: {"expressions": [...]}, подходит и YAML, и JSON.
// Отсутствующий файл возвращается как ошибка с fs.ErrNotExist внутри,
// вызывающий сам решает, работать ли с пустым набором.
func LoadExpressions(filePath string) (*normalize.KeywordSet, error) {
	if filePath == "" {
		return normalize.NewKeywordSet(nil), nil
	}

	data, err := os.ReadFile(resolvePath(filePath))
	if err != nil {
		return normalize.NewKeywordSet(nil), fmt.Errorf("failed to read expressions file: %w", err)
	}

	var parsed expressionsFile
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return normalize.NewKeywordSet(nil), fmt.Errorf("failed to parse expressions file %s: %w", filePath, err)
	}

	return normalize.NewKeywordSet(parsed.Expressions), nil
}
