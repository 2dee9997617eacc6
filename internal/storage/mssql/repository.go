package mssql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/microsoft/go-mssqldb"

	"idealista-scraper/internal/observability"
	"idealista-scraper/internal/storage"
)

type Repository struct {
	db             *sql.DB
	commandTimeout time.Duration
	logger         *observability.Logger
}

func NewRepository(dsn string, commandTimeout time.Duration, logger *observability.Logger) (*Repository, error) {
	db, err := sql.Open("sqlserver", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Тестируем соединение
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	r := &Repository{
		db:             db,
		commandTimeout: commandTimeout,
		logger:         logger,
	}
	if err := r.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

func (r *Repository) ensureSchema(ctx context.Context) error {
	query := `
		IF OBJECT_ID(N'dbo.TblListings', N'U') IS NULL
		CREATE TABLE dbo.TblListings (
			[UID]              INT IDENTITY(1,1) PRIMARY KEY,
			[Link]             NVARCHAR(450) NOT NULL UNIQUE,
			[Price]            NVARCHAR(100) NOT NULL,
			[ExpensesIncluded] BIT           NOT NULL,
			[Locality]         NVARCHAR(500) NOT NULL,
			[Rooms]            NVARCHAR(100) NOT NULL,
			[RunID]            NVARCHAR(36)  NOT NULL,
			[Batch]            NVARCHAR(255) NOT NULL,
			[CheckSum]         CHAR(64)      NOT NULL,
			[ScrapedAt]        DATETIME2     NOT NULL
		);
	`
	if _, err := r.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}

// UpsertListing сохраняет или обновляет объявление
func (r *Repository) UpsertListing(ctx context.Context, row *storage.ListingRow) (isNew bool, isUpdated bool, err error) {
	ctx, cancel := context.WithTimeout(ctx, r.commandTimeout)
	defer cancel()

	// MERGE statement для MS SQL; $action отличает INSERT от UPDATE.
	// Строку с тем же CheckSum не трогаем.
	query := `
		MERGE INTO TblListings AS target
		USING (SELECT @Link AS Link) AS source
		ON target.[Link] = source.Link
		WHEN MATCHED AND target.[CheckSum] <> @CheckSum THEN
			UPDATE SET
				[Price] = @Price,
				[ExpensesIncluded] = @ExpensesIncluded,
				[Locality] = @Locality,
				[Rooms] = @Rooms,
				[RunID] = @RunID,
				[Batch] = @Batch,
				[CheckSum] = @CheckSum,
				[ScrapedAt] = @ScrapedAt
		WHEN NOT MATCHED THEN
			INSERT ([Link], [Price], [ExpensesIncluded], [Locality], [Rooms], [RunID], [Batch], [CheckSum], [ScrapedAt])
			VALUES (@Link, @Price, @ExpensesIncluded, @Locality, @Rooms, @RunID, @Batch, @CheckSum, @ScrapedAt)
		OUTPUT $action;
	`

	stmt, err := r.db.PrepareContext(ctx, query)
	if err != nil {
		return false, false, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() {
		if err := stmt.Close(); err != nil {
			r.logger.Error("Failed to close statement", "error", err.Error())
		}
	}()

	var action string
	err = stmt.QueryRowContext(ctx,
		sql.Named("Link", row.Link),
		sql.Named("Price", row.Price),
		sql.Named("ExpensesIncluded", row.ExpensesIncluded),
		sql.Named("Locality", row.Locality),
		sql.Named("Rooms", row.Rooms),
		sql.Named("RunID", row.RunID),
		sql.Named("Batch", row.Batch),
		sql.Named("CheckSum", row.CheckSum),
		sql.Named("ScrapedAt", row.ScrapedAt),
	).Scan(&action)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		// Не изменилось
		return false, false, nil
	case err != nil:
		return false, false, fmt.Errorf("failed to execute upsert: %w", err)
	}

	return action == "INSERT", action == "UPDATE", nil
}

// CountByRun получает количество объявлений, записанных прогоном
func (r *Repository) CountByRun(ctx context.Context, runID string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, r.commandTimeout)
	defer cancel()

	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM TblListings WHERE [RunID] = @RunID`,
		sql.Named("RunID", runID),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to query database: %w", err)
	}

	return count, nil
}

// Close закрывает соединение с БД
func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}
