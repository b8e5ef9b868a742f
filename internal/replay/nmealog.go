package replay

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Log format: line-oriented text.
//
// - Blank lines ignored.
// - Lines starting with '#' ignored.
// - Line "START" resets the origin (next record time is relative to 0 again).
// - Data lines are: <t_ns>,<sentence>
//   where t_ns is nanoseconds since START and sentence is the raw NMEA line
//   as received. Only the first comma separates the two.

type Record struct {
	At       time.Duration
	Sentence string
	// Start marks a START line; Sentence is empty.
	Start bool
}

type Reader struct {
	r io.Reader
}

func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

func (rr *Reader) ReadAll() ([]Record, error) {
	s := bufio.NewScanner(rr.r)
	s.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	recs := make([]Record, 0, 1024)
	lineNo := 0
	for s.Scan() {
		lineNo++
		line := strings.TrimSpace(s.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if line == "START" {
			recs = append(recs, Record{Start: true})
			continue
		}

		tsStr, sentence, ok := strings.Cut(line, ",")
		if !ok {
			return nil, fmt.Errorf("line %d: invalid replay line (missing comma): %q", lineNo, line)
		}
		tsStr = strings.TrimSpace(tsStr)
		sentence = strings.TrimSpace(sentence)
		if tsStr == "" || sentence == "" {
			return nil, fmt.Errorf("line %d: invalid replay line (empty field): %q", lineNo, line)
		}

		tsNs, err := strconv.ParseInt(tsStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid replay timestamp %q: %w", lineNo, tsStr, err)
		}
		if tsNs < 0 {
			return nil, fmt.Errorf("line %d: invalid replay timestamp (negative): %d", lineNo, tsNs)
		}

		recs = append(recs, Record{At: time.Duration(tsNs), Sentence: sentence})
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	return recs, nil
}

// ReadFile loads a whole log.
func ReadFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return NewReader(f).ReadAll()
}

// Writer captures sentences with their arrival time. It is safe for
// concurrent use.
type Writer struct {
	mu     sync.Mutex
	f      *os.File
	w      *bufio.Writer
	start  time.Time
	closed bool
}

func CreateWriter(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	bw := bufio.NewWriterSize(f, 64*1024)
	if _, err := bw.WriteString("START\n"); err != nil {
		_ = f.Close()
		return nil, err
	}
	return &Writer{f: f, w: bw, start: time.Now()}, nil
}

func (ww *Writer) WriteLine(now time.Time, sentence string) error {
	ww.mu.Lock()
	defer ww.mu.Unlock()
	if ww.closed {
		return errors.New("replay writer is closed")
	}
	sentence = strings.TrimSpace(sentence)
	if sentence == "" {
		return errors.New("sentence is empty")
	}
	if strings.ContainsAny(sentence, "\r\n") {
		return errors.New("sentence contains a line break")
	}

	d := now.Sub(ww.start)
	if d < 0 {
		d = 0
	}
	_, err := fmt.Fprintf(ww.w, "%d,%s\n", d.Nanoseconds(), sentence)
	return err
}

func (ww *Writer) Flush() error {
	ww.mu.Lock()
	defer ww.mu.Unlock()
	if ww.closed {
		return nil
	}
	return ww.w.Flush()
}

func (ww *Writer) Close() error {
	ww.mu.Lock()
	defer ww.mu.Unlock()
	if ww.closed {
		return nil
	}
	ww.closed = true
	if err := ww.w.Flush(); err != nil {
		_ = ww.f.Close()
		return err
	}
	return ww.f.Close()
}

type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

type realSleeper struct{}

func (realSleeper) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Play replays records with their relative timing until the records run
// out (or forever with loop) or ctx is done.
//
// The callback is invoked for each sentence record. START markers reset the
// origin. speed: 1.0 = real time, 2.0 = twice as fast, 0.5 = half speed.
func Play(ctx context.Context, records []Record, speed float64, loop bool, sleeper Sleeper, cb func(sentence string) error) error {
	if speed <= 0 {
		return fmt.Errorf("replay speed must be > 0")
	}
	if sleeper == nil {
		sleeper = realSleeper{}
	}
	if cb == nil {
		return errors.New("callback is nil")
	}
	if len(records) == 0 {
		return errors.New("no records")
	}

	for {
		var origin, lastAt time.Duration
		haveLast := false

		for _, r := range records {
			if err := ctx.Err(); err != nil {
				return err
			}
			if r.Start {
				origin = r.At
				lastAt = 0
				haveLast = false
				continue
			}

			at := r.At - origin
			if at < 0 {
				at = 0
			}
			if haveLast {
				wait := at - lastAt
				if wait < 0 {
					wait = 0
				}
				wait = time.Duration(float64(wait) / speed)
				if wait > 0 {
					if err := sleeper.Sleep(ctx, wait); err != nil {
						return err
					}
				}
			}

			if err := cb(r.Sentence); err != nil {
				return err
			}
			lastAt = at
			haveLast = true
		}

		if !loop {
			return nil
		}
	}
}

// Source feeds a capture log back through the line pipeline.
type Source struct {
	Path  string
	Speed float64
	Loop  bool

	sleeper Sleeper
}

func (s *Source) Run(ctx context.Context, onLine func(line string) error) error {
	recs, err := ReadFile(s.Path)
	if err != nil {
		return fmt.Errorf("replay %s: %w", s.Path, err)
	}
	speed := s.Speed
	if speed == 0 {
		speed = 1
	}
	err = Play(ctx, recs, speed, s.Loop, s.sleeper, onLine)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}
