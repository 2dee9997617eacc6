package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Переменные окружения, которые перекрывают значения из YAML.
const (
	EnvStorageDSN = "SCRAPER_STORAGE_DSN"
	EnvChromePath = "SCRAPER_CHROME_PATH"
	EnvLogLevel   = "SCRAPER_LOG_LEVEL"
	EnvLogPath    = "SCRAPER_LOG_PATH"
)

// LoadConfig читает YAML поверх Default(), применяет .env и переменные
// окружения и валидирует результат. Пустой путь означает "только дефолты".
func LoadConfig(filePath string) (*Config, error) {
	cfg := Default()

	if filePath != "" {
		file, err := os.Open(filePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open config file: %w", err)
		}
		defer func() {
			if closeErr := file.Close(); closeErr != nil {
				// Логируем ошибку, но не возвращаем — иначе перезапишем основную ошибку
				log.Printf("Warning: failed to close config file: %v", closeErr)
			}
		}()

		decoder := yaml.NewDecoder(file)
		decoder.KnownFields(true)
		if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation error: %w", err)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv(EnvStorageDSN); v != "" {
		cfg.Storage.DSN = v
	}
	if v := os.Getenv(EnvChromePath); v != "" {
		cfg.Rod.ChromePath = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Observability.LogLevel = v
	}
	if v := os.Getenv(EnvLogPath); v != "" {
		cfg.Observability.LogPath = v
	}
}
