package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"idealista-scraper/internal/checksum"
	"idealista-scraper/internal/observability"
	"idealista-scraper/internal/scraper"
)

// RepositorySink зеркалирует результаты прогона в БД (upsert по Link).
type RepositorySink struct {
	repo     Repository
	runID    string
	checksum *checksum.Generator
	logger   *observability.Logger
	now      func() time.Time
}

func NewRepositorySink(repo Repository, runID string, logger *observability.Logger) *RepositorySink {
	return &RepositorySink{
		repo:     repo,
		runID:    runID,
		checksum: checksum.NewGenerator(),
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Write выполняется и после отмены прогона, поэтому контекст свой, а не crawl'а.
func (s *RepositorySink) Write(records []scraper.Listing, name string) error {
	if len(records) == 0 {
		return nil
	}

	ctx := context.Background()
	scrapedAt := s.now()

	var (
		errs     []error
		inserted int
		updated  int
	)
	for i := range records {
		l := &records[i]
		row := &ListingRow{
			Link:             l.Link,
			Price:            l.Price,
			ExpensesIncluded: l.ExpensesIncluded,
			Locality:         l.Locality,
			Rooms:            l.Rooms,
			RunID:            s.runID,
			Batch:            name,
			CheckSum:         s.checksum.GenerateListingHash(l.Link, l.Price, l.Rooms, l.Locality, l.ExpensesIncluded),
			ScrapedAt:        scrapedAt,
		}

		isNew, isUpdated, err := s.repo.UpsertListing(ctx, row)
		if err != nil {
			s.logger.Error("Failed to upsert listing",
				"link", l.Link,
				"error", err.Error(),
			)
			errs = append(errs, fmt.Errorf("upsert %s: %w", l.Link, err))
			continue
		}
		if isNew {
			inserted++
		} else if isUpdated {
			updated++
		}
	}

	stored, err := s.repo.CountByRun(ctx, s.runID)
	if err != nil {
		s.logger.Warn("Failed to count run listings", "run_id", s.runID, "error", err.Error())
		stored = -1
	}

	s.logger.Info("Listings mirrored to database",
		"run_id", s.runID,
		"batch", name,
		"inserted", inserted,
		"updated", updated,
		"failed", len(errs),
		"stored_for_run", stored,
	)

	return errors.Join(errs...)
}
