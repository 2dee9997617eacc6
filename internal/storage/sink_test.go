package storage

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/xuri/excelize/v2"

	"idealista-scraper/internal/observability"
	"idealista-scraper/internal/scraper"
)

func sampleListings() []scraper.Listing {
	return []scraper.Listing{
		{Price: "450€/mes", ExpensesIncluded: true, Locality: "  Habitación en Lavapiés ", Rooms: "3 hab.", Link: "https://x.test/inmueble/1/"},
		{Price: "600€/mes", ExpensesIncluded: false, Locality: "Ático en Chamberí", Rooms: "1 hab.", Link: "https://x.test/inmueble/2/"},
	}
}

func TestFileSinkCSV(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "output")
	sink := NewFileSink(dir, observability.NewNopLogger())

	if err := sink.Write(sampleListings(), "results.csv"); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	f, err := os.Open(filepath.Join(dir, "results.csv"))
	if err != nil {
		t.Fatalf("output file not created: %v", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}

	expected := [][]string{
		{"Price", "ExpensesIncluded", "Locality", "Rooms", "Link"},
		{"450€/mes", "true", "Habitación en Lavapiés", "3 hab.", "https://x.test/inmueble/1/"},
		{"600€/mes", "false", "Ático en Chamberí", "1 hab.", "https://x.test/inmueble/2/"},
	}
	if !reflect.DeepEqual(rows, expected) {
		t.Errorf("CSV rows = %v, want %v", rows, expected)
	}
}

func TestFileSinkXLSX(t *testing.T) {
	dir := t.TempDir()
	sink := NewFileSink(dir, observability.NewNopLogger())

	if err := sink.Write(sampleListings(), "results.xlsx"); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	f, err := excelize.OpenFile(filepath.Join(dir, "results.xlsx"))
	if err != nil {
		t.Fatalf("OpenFile() error = %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(xlsxSheet)
	if err != nil {
		t.Fatalf("GetRows() error = %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("xlsx rows = %d, want 3", len(rows))
	}
	if !reflect.DeepEqual(rows[0], Header) {
		t.Errorf("xlsx header = %v, want %v", rows[0], Header)
	}
	if rows[1][1] != "true" || rows[1][2] != "Habitación en Lavapiés" {
		t.Errorf("xlsx row 1 = %v", rows[1])
	}
}

func TestFileSinkEmptyWritesNothing(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "output")
	sink := NewFileSink(dir, observability.NewNopLogger())

	if err := sink.Write(nil, "results.csv"); err != nil {
		t.Fatalf("Write(nil) error = %v", err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Errorf("output dir should not be created for empty results, stat err = %v", err)
	}
}

type fakeSink struct {
	err     error
	written [][]scraper.Listing
	names   []string
}

func (f *fakeSink) Write(records []scraper.Listing, name string) error {
	f.written = append(f.written, records)
	f.names = append(f.names, name)
	return f.err
}

func TestMultiSinkJoinsErrors(t *testing.T) {
	errA := errors.New("disk full")
	errB := errors.New("db down")
	a := &fakeSink{err: errA}
	ok := &fakeSink{}
	b := &fakeSink{err: errB}

	err := NewMultiSink(a, ok, b).Write(sampleListings(), "out.csv")

	if !errors.Is(err, errA) || !errors.Is(err, errB) {
		t.Errorf("Write() error = %v, want both sink errors", err)
	}
	for i, s := range []*fakeSink{a, ok, b} {
		if len(s.written) != 1 || s.names[0] != "out.csv" {
			t.Errorf("sink %d was not written to", i)
		}
	}
}

type fakeRepo struct {
	rows    map[string]*ListingRow
	failFor string
	counted int
}

func (r *fakeRepo) UpsertListing(_ context.Context, row *ListingRow) (bool, bool, error) {
	if row.Link == r.failFor {
		return false, false, errors.New("constraint violation")
	}
	prev, exists := r.rows[row.Link]
	r.rows[row.Link] = row
	if !exists {
		return true, false, nil
	}
	return false, prev.CheckSum != row.CheckSum, nil
}

func (r *fakeRepo) CountByRun(_ context.Context, runID string) (int, error) {
	r.counted++
	n := 0
	for _, row := range r.rows {
		if row.RunID == runID {
			n++
		}
	}
	return n, nil
}

func (r *fakeRepo) Close() error { return nil }

func TestRepositorySink(t *testing.T) {
	repo := &fakeRepo{rows: make(map[string]*ListingRow)}
	sink := NewRepositorySink(repo, "run-1", observability.NewNopLogger())

	if err := sink.Write(sampleListings(), "results.csv"); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	if repo.counted != 1 {
		t.Errorf("CountByRun calls = %d, want 1 after upserts", repo.counted)
	}
	if len(repo.rows) != 2 || repo.rows["https://x.test/inmueble/2/"].RunID != "run-1" {
		t.Errorf("rows = %+v, want both listings stored for run-1", repo.rows)
	}

	row := repo.rows["https://x.test/inmueble/1/"]
	if row == nil {
		t.Fatalf("listing not upserted")
	}
	if row.Batch != "results.csv" || len(row.CheckSum) != 64 || row.ScrapedAt.IsZero() {
		t.Errorf("row = %+v, want batch, checksum and timestamp filled", row)
	}
}

func TestRepositorySinkContinuesAfterError(t *testing.T) {
	repo := &fakeRepo{rows: make(map[string]*ListingRow), failFor: "https://x.test/inmueble/1/"}
	sink := NewRepositorySink(repo, "run-2", observability.NewNopLogger())

	err := sink.Write(sampleListings(), "results.csv")
	if err == nil {
		t.Fatalf("Write() error = nil, want upsert failure")
	}
	if _, ok := repo.rows["https://x.test/inmueble/2/"]; !ok {
		t.Errorf("second listing should still be upserted")
	}
}
