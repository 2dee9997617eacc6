package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"idealista-scraper/internal/observability"
	"idealista-scraper/internal/scraper"
)

const xlsxSheet = "Listings"

// Header: порядок колонок выходного файла.
var Header = []string{"Price", "ExpensesIncluded", "Locality", "Rooms", "Link"}

// FileSink пишет записи в <dir>/<name>: .xlsx через excelize, всё остальное в CSV.
type FileSink struct {
	dir    string
	logger *observability.Logger
}

func NewFileSink(dir string, logger *observability.Logger) *FileSink {
	return &FileSink{dir: dir, logger: logger}
}

// Path возвращает итоговый путь файла для имени name.
func (s *FileSink) Path(name string) string {
	if filepath.IsAbs(name) || s.dir == "" {
		return name
	}
	return filepath.Join(s.dir, name)
}

func (s *FileSink) Write(records []scraper.Listing, name string) error {
	if len(records) == 0 {
		s.logger.Info("No records to write, output file not created", "output", name)
		return nil
	}

	path := s.Path(name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	var err error
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		err = writeXLSX(path, records)
	} else {
		err = writeCSV(path, records)
	}
	if err != nil {
		return err
	}

	s.logger.Info("Results written", "path", path, "records", len(records))
	return nil
}

func row(l scraper.Listing) []string {
	return []string{
		l.Price,
		strconv.FormatBool(l.ExpensesIncluded),
		strings.TrimSpace(l.Locality),
		l.Rooms,
		l.Link,
	}
}

func writeCSV(path string, records []scraper.Listing) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("csv: create file %q: %w", path, err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(Header); err != nil {
		_ = f.Close()
		return fmt.Errorf("csv: write header: %w", err)
	}
	for _, l := range records {
		if err := w.Write(row(l)); err != nil {
			_ = f.Close()
			return fmt.Errorf("csv: write row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return fmt.Errorf("csv: flush: %w", err)
	}
	return f.Close()
}

func writeXLSX(path string, records []scraper.Listing) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", xlsxSheet); err != nil {
		return fmt.Errorf("xlsx: rename sheet: %w", err)
	}

	if err := setRow(f, 1, Header); err != nil {
		return fmt.Errorf("xlsx: write header: %w", err)
	}
	for i, l := range records {
		if err := setRow(f, i+2, row(l)); err != nil {
			return fmt.Errorf("xlsx: write row %d: %w", i+2, err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("xlsx: save %q: %w", path, err)
	}
	return nil
}

func setRow(f *excelize.File, rowNum int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, rowNum)
	if err != nil {
		return err
	}
	cells := make([]interface{}, len(values))
	for i, v := range values {
		cells[i] = v
	}
	return f.SetSheetRow(xlsxSheet, cell, &cells)
}
