package storage

import (
	"errors"
	"fmt"

	"idealista-scraper/internal/scraper"
)

// Sink принимает итоговые записи прогона. name: имя выходного файла (батча).
type Sink interface {
	Write(records []scraper.Listing, name string) error
}

// MultiSink пишет во все sink'и по очереди; ошибка одного не останавливает остальные.
type MultiSink struct {
	sinks []Sink
}

func NewMultiSink(sinks ...Sink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

func (m *MultiSink) Write(records []scraper.Listing, name string) error {
	var errs []error
	for i, s := range m.sinks {
		if err := s.Write(records, name); err != nil {
			errs = append(errs, fmt.Errorf("sink %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}
