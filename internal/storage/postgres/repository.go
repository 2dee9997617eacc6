package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"idealista-scraper/internal/observability"
	"idealista-scraper/internal/storage"
)

type Repository struct {
	db             *sql.DB
	commandTimeout time.Duration
	logger         *observability.Logger
}

// NewRepository открывает соединение, ждёт готовности БД и создаёт таблицу, если её нет.
func NewRepository(dsn string, commandTimeout time.Duration, logger *observability.Logger) (*Repository, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	for i := 0; i < 5; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err = db.PingContext(ctx)
		cancel()
		if err == nil {
			break
		}
		logger.Warn("Postgres not ready, retrying", "attempt", i+1, "error", err.Error())
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: ping failed after retries: %w", err)
	}

	r := &Repository{db: db, commandTimeout: commandTimeout, logger: logger}
	if err := r.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}
	return r, nil
}

func (r *Repository) migrate() error {
	ctx, cancel := context.WithTimeout(context.Background(), r.commandTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS listings (
			id                SERIAL PRIMARY KEY,
			link              TEXT        UNIQUE NOT NULL,
			price             TEXT        NOT NULL DEFAULT '',
			expenses_included BOOLEAN     NOT NULL DEFAULT FALSE,
			locality          TEXT        NOT NULL DEFAULT '',
			rooms             TEXT        NOT NULL DEFAULT '',
			run_id            UUID        NOT NULL,
			batch             TEXT        NOT NULL DEFAULT '',
			checksum          CHAR(64)    NOT NULL,
			scraped_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_listings_run_id   ON listings(run_id);
		CREATE INDEX IF NOT EXISTS idx_listings_locality ON listings(locality);
	`)
	return err
}

// UpsertListing вставляет объявление или обновляет его, если изменился checksum.
func (r *Repository) UpsertListing(ctx context.Context, row *storage.ListingRow) (isNew bool, isUpdated bool, err error) {
	ctx, cancel := context.WithTimeout(ctx, r.commandTimeout)
	defer cancel()

	// xmax = 0 только у только что вставленной строки
	query := `
		INSERT INTO listings (link, price, expenses_included, locality, rooms, run_id, batch, checksum, scraped_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (link) DO UPDATE SET
			price = EXCLUDED.price,
			expenses_included = EXCLUDED.expenses_included,
			locality = EXCLUDED.locality,
			rooms = EXCLUDED.rooms,
			run_id = EXCLUDED.run_id,
			batch = EXCLUDED.batch,
			checksum = EXCLUDED.checksum,
			scraped_at = EXCLUDED.scraped_at
		WHERE listings.checksum <> EXCLUDED.checksum
		RETURNING (xmax = 0) AS inserted
	`

	var inserted bool
	err = r.db.QueryRowContext(ctx, query,
		row.Link,
		row.Price,
		row.ExpensesIncluded,
		row.Locality,
		row.Rooms,
		row.RunID,
		row.Batch,
		row.CheckSum,
		row.ScrapedAt,
	).Scan(&inserted)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		// checksum совпал, строка не менялась
		return false, false, nil
	case err != nil:
		return false, false, fmt.Errorf("postgres: upsert: %w", err)
	}

	return inserted, !inserted, nil
}

func (r *Repository) CountByRun(ctx context.Context, runID string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, r.commandTimeout)
	defer cancel()

	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM listings WHERE run_id = $1`, runID).Scan(&count); err != nil {
		return 0, fmt.Errorf("postgres: count: %w", err)
	}
	return count, nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}
