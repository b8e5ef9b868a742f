package main

import (
	"fmt"
	"io"
	"time"

	"github.com/golang/geo/s2"

	"nmeafix/internal/gps"
	"nmeafix/internal/nmea"
)

// earthRadiusMeters is the IUGG mean radius.
const earthRadiusMeters = 6371008.8

type summary struct {
	Counts    gps.Counters
	Records   int
	Complete  int
	Passing   int
	FirstUnix *int64
	LastUnix  *int64

	// TrackMeters is the great-circle length of the path through complete
	// records in store order.
	TrackMeters float64
}

func summarize(recs []nmea.Record, counts gps.Counters, q nmea.Quality) summary {
	s := summary{Counts: counts, Records: len(recs)}

	var prev s2.LatLng
	havePrev := false
	for _, r := range recs {
		if q.Accept(r) {
			s.Passing++
		}
		if !r.IsComplete() {
			continue
		}
		s.Complete++

		if r.Unix != nil {
			ts := *r.Unix
			if s.FirstUnix == nil {
				s.FirstUnix = &ts
			}
			s.LastUnix = &ts
		}

		p := s2.LatLngFromDegrees(r.Latitude.Degrees(), r.Longitude.Degrees())
		if havePrev {
			s.TrackMeters += prev.Distance(p).Radians() * earthRadiusMeters
		}
		prev, havePrev = p, true
	}
	return s
}

func (s summary) write(w io.Writer) error {
	c := s.Counts
	lines := []string{
		fmt.Sprintf("lines: %d", c.Lines),
		fmt.Sprintf("parsed: %d", c.Parsed),
		fmt.Sprintf("unrecognized: %d", c.Unrecognized),
		fmt.Sprintf("malformed: %d", c.Malformed),
		fmt.Sprintf("field_count: %d", c.FieldCount),
		fmt.Sprintf("timestamp: %d", c.Timestamp),
		fmt.Sprintf("bad_field: %d", c.BadField),
		fmt.Sprintf("no_cursor: %d", c.NoCursor),
		fmt.Sprintf("checksum: %d", c.Checksum),
		fmt.Sprintf("records: %d", s.Records),
		fmt.Sprintf("complete: %d", s.Complete),
		fmt.Sprintf("quality_ok: %d", s.Passing),
	}
	if s.FirstUnix != nil {
		lines = append(lines,
			"first_utc: "+time.Unix(*s.FirstUnix, 0).UTC().Format(time.RFC3339),
			"last_utc: "+time.Unix(*s.LastUnix, 0).UTC().Format(time.RFC3339),
		)
	}
	lines = append(lines, fmt.Sprintf("track_m: %.1f", s.TrackMeters))

	for _, l := range lines {
		if _, err := fmt.Fprintln(w, l); err != nil {
			return err
		}
	}
	return nil
}
