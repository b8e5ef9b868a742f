// Package publish delivers finished records to external consumers.
package publish

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"

	"nmeafix/internal/nmea"
)

// Sink receives finished records.
type Sink interface {
	Publish(rec nmea.Record) error
	Close() error
}

// Encode is the wire form shared by every sink: one JSON object per record.
func Encode(rec nmea.Record) ([]byte, error) {
	return json.Marshal(rec)
}

// Multi fans a record out to several sinks. A failing sink does not stop
// delivery to the others.
type Multi []Sink

func (m Multi) Publish(rec nmea.Record) error {
	var errs []error
	for i, s := range m {
		if err := s.Publish(rec); err != nil {
			errs = append(errs, fmt.Errorf("sink %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Handler returns a finish callback that publishes to s and logs failures.
func Handler(s Sink) func(nmea.Record) {
	return func(rec nmea.Record) {
		if err := s.Publish(rec); err != nil {
			log.Warn("publish failed", "utc", rec.UTC, "err", err)
		}
	}
}
