package gps

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"nmeafix/internal/nmea"
	"nmeafix/internal/source"
)

// LineRecorder captures raw lines before they are parsed.
type LineRecorder interface {
	WriteLine(now time.Time, sentence string) error
}

type Config struct {
	// Source is required by Start; HandleLine works without it.
	Source     source.Source
	SourceName string

	Checksum nmea.ChecksumMode
	Quality  nmea.Quality

	// CompleteOnly and FilterQuality form the publish policy.
	CompleteOnly  bool
	FilterQuality bool

	// MaxRecords bounds the store; 0 means unbounded.
	MaxRecords int

	Recorder LineRecorder

	// OnFinish receives every finished record that passes the policy. It
	// runs on the ingest goroutine without the service lock held.
	OnFinish func(nmea.Record)
}

// Counters tallies line outcomes.
type Counters struct {
	Lines        uint64 `json:"lines"`
	Parsed       uint64 `json:"parsed"`
	Unrecognized uint64 `json:"unrecognized"`
	Malformed    uint64 `json:"malformed"`
	FieldCount   uint64 `json:"field_count"`
	Timestamp    uint64 `json:"timestamp"`
	BadField     uint64 `json:"bad_field"`
	NoCursor     uint64 `json:"no_cursor"`
	Checksum     uint64 `json:"checksum"`
	Finished     uint64 `json:"finished"`
	Published    uint64 `json:"published"`
	Rejected     uint64 `json:"rejected"`
	Pruned       uint64 `json:"pruned"`
	RecordErrors uint64 `json:"record_errors,omitempty"`
}

type Snapshot struct {
	Source          string               `json:"source,omitempty"`
	Running         bool                 `json:"running"`
	Records         int                  `json:"records"`
	Cursor          string               `json:"cursor,omitempty"`
	CurrentComplete bool                 `json:"current_complete"`
	Counts          Counters             `json:"counts"`
	LastLineUTC     string               `json:"last_line_utc,omitempty"`
	LastError       string               `json:"last_error,omitempty"`
	LastFinished    *nmea.Record         `json:"last_finished,omitempty"`
	Line            *source.LineSnapshot `json:"line,omitempty"`
}

type Service struct {
	cfg Config

	mu           sync.Mutex
	parser       *nmea.Parser
	counts       Counters
	lastLine     time.Time
	lastErr      string
	lastFinished *nmea.Record
	running      bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(cfg Config) *Service {
	if cfg.Checksum == "" {
		cfg.Checksum = nmea.ChecksumPresent
	}
	return &Service{cfg: cfg, parser: nmea.NewParser()}
}

// Start runs the source in the background until ctx is done, Close is
// called or the source is exhausted. The record under the cursor is
// finished when the source stops.
func (s *Service) Start(ctx context.Context) error {
	if s == nil {
		return fmt.Errorf("gps service is nil")
	}
	if ctx == nil {
		return fmt.Errorf("ctx is nil")
	}
	if s.cfg.Source == nil {
		return fmt.Errorf("gps source is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return nil
	}
	childCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		log.Info("gps enabled", "source", s.cfg.SourceName)

		err := s.cfg.Source.Run(childCtx, s.onLine)
		if err != nil {
			log.Error("gps source stopped", "source", s.cfg.SourceName, "err", err)
			s.setError(err.Error())
		} else {
			log.Info("gps source stopped", "source", s.cfg.SourceName)
		}
		s.Flush()

		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()
	return nil
}

func (s *Service) Close() {
	if s == nil {
		return
	}
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
}

// Wait blocks until the background source returns.
func (s *Service) Wait() {
	s.wg.Wait()
}

// onLine adapts HandleLine to a source: parse errors are counted and
// logged, never fatal.
func (s *Service) onLine(line string) error {
	if err := s.HandleLine(line); err != nil {
		log.Debug("nmea line rejected", "err", err, "line", line)
	}
	return nil
}

// HandleLine checks, parses and merges one raw line. A move of the cursor
// finishes the record it left.
func (s *Service) HandleLine(line string) error {
	s.mu.Lock()
	now := time.Now().UTC()
	s.counts.Lines++
	s.lastLine = now

	if s.cfg.Recorder != nil {
		if err := s.cfg.Recorder.WriteLine(now, line); err != nil {
			s.counts.RecordErrors++
			s.lastErr = "record: " + err.Error()
		}
	}

	if err := nmea.VerifyChecksum(line, s.cfg.Checksum); err != nil {
		s.counts.Checksum++
		s.lastErr = err.Error()
		s.mu.Unlock()
		return err
	}

	prev, hadCursor := s.parser.Cursor()
	t, err := s.parser.ParseLine(line)
	s.countOutcomeLocked(t, err)

	var out []nmea.Record
	if cur, _ := s.parser.Cursor(); hadCursor && cur != prev {
		out = s.finishLocked(prev)
	}
	s.mu.Unlock()

	s.emit(out)
	return err
}

// Flush finishes the record under the cursor, as if the cursor had moved.
func (s *Service) Flush() {
	s.mu.Lock()
	var out []nmea.Record
	if cur, ok := s.parser.Cursor(); ok {
		out = s.finishLocked(cur)
	}
	s.mu.Unlock()
	s.emit(out)
}

func (s *Service) countOutcomeLocked(t nmea.SentenceType, err error) {
	switch {
	case err == nil && t == nmea.TypeUnrecognized:
		s.counts.Unrecognized++
		return
	case err == nil:
		s.counts.Parsed++
		return
	case errors.Is(err, nmea.ErrMalformedSentence):
		s.counts.Malformed++
	case errors.Is(err, nmea.ErrFieldCountMismatch):
		s.counts.FieldCount++
	case errors.Is(err, nmea.ErrMalformedTimestamp):
		s.counts.Timestamp++
	case errors.Is(err, nmea.ErrMalformedField):
		s.counts.BadField++
	case errors.Is(err, nmea.ErrNoCursor):
		s.counts.NoCursor++
	}
	s.lastErr = err.Error()
}

func (s *Service) finishLocked(key string) []nmea.Record {
	rec, ok := s.parser.Record(key)
	if !ok {
		return nil
	}
	s.counts.Finished++
	s.pruneLocked()

	if !s.acceptLocked(rec) {
		s.counts.Rejected++
		return nil
	}
	s.counts.Published++
	last := rec.Clone()
	s.lastFinished = &last
	return []nmea.Record{rec}
}

func (s *Service) acceptLocked(rec nmea.Record) bool {
	if s.cfg.CompleteOnly && !rec.IsComplete() {
		return false
	}
	if s.cfg.FilterQuality && !s.cfg.Quality.Accept(rec) {
		return false
	}
	return true
}

// pruneLocked drops the oldest records until the store fits MaxRecords.
// The record under the cursor always stays.
func (s *Service) pruneLocked() {
	if s.cfg.MaxRecords <= 0 {
		return
	}
	for _, k := range s.parser.Keys() {
		if s.parser.Len() <= s.cfg.MaxRecords {
			return
		}
		if s.parser.Remove(k) {
			s.counts.Pruned++
		}
	}
}

func (s *Service) emit(recs []nmea.Record) {
	if s.cfg.OnFinish == nil {
		return
	}
	for _, r := range recs {
		s.cfg.OnFinish(r)
	}
}

func (s *Service) Snapshot() Snapshot {
	if s == nil {
		return Snapshot{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	out := Snapshot{
		Source:          s.cfg.SourceName,
		Running:         s.running,
		Records:         s.parser.Len(),
		CurrentComplete: s.parser.CurrentComplete(),
		Counts:          s.counts,
		LastError:       s.lastErr,
	}
	if cur, ok := s.parser.Cursor(); ok {
		out.Cursor = cur
	}
	if !s.lastLine.IsZero() {
		out.LastLineUTC = s.lastLine.Format(time.RFC3339Nano)
	}
	if s.lastFinished != nil {
		r := s.lastFinished.Clone()
		out.LastFinished = &r
	}
	if lc, ok := s.cfg.Source.(*source.LineClient); ok {
		snap := lc.Snapshot()
		out.Line = &snap
	}
	return out
}

// Records returns copies of every stored record in creation order.
func (s *Service) Records() []nmea.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.parser.Snapshot()
}

// Record returns a copy of the record stored under the UTC key.
func (s *Service) Record(key string) (nmea.Record, bool) {
	k, err := nmea.NormalizeUTC(key)
	if err != nil {
		return nmea.Record{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.parser.Record(k)
}

func (s *Service) setError(msg string) {
	s.mu.Lock()
	s.lastErr = msg
	s.mu.Unlock()
}
