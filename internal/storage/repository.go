package storage

import (
	"context"
	"time"
)

// ListingRow представляет объявление для сохранения в БД
type ListingRow struct {
	Link             string // уникальный ключ
	Price            string
	ExpensesIncluded bool
	Locality         string
	Rooms            string
	RunID            string // uuid прогона
	Batch            string // имя выходного файла прогона
	CheckSum         string // SHA256 полей объявления
	ScrapedAt        time.Time
}

// Repository интерфейс для работы с хранилищем объявлений
type Repository interface {
	// UpsertListing сохраняет или обновляет объявление по Link, возвращает (isNew, isUpdated, error)
	UpsertListing(ctx context.Context, row *ListingRow) (isNew bool, isUpdated bool, err error)

	// CountByRun получает количество объявлений, записанных прогоном
	CountByRun(ctx context.Context, runID string) (int, error)

	Close() error
}
