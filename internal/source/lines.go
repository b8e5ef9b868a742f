package source

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// Source is anything that can feed lines to a handler.
type Source interface {
	Run(ctx context.Context, onLine func(line string) error) error
}

// NMEA sentences are at most 82 bytes; leave room for chatty receivers.
const maxScanBytes = 64 * 1024

var errLineTooLong = errors.New("line too long")

// ReadLines calls onLine for every non-empty line of r until EOF, a read
// error, a handler error or ctx is done. EOF and cancellation return nil.
// Lines longer than 64 KiB are skipped.
func ReadLines(ctx context.Context, r io.Reader, onLine func(line string) error) error {
	br := bufio.NewReaderSize(r, 4096)
	for ctx.Err() == nil {
		raw, err := readLine(br, maxScanBytes)
		if errors.Is(err, errLineTooLong) {
			log.Warn("skipping oversized line", "max_bytes", maxScanBytes)
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if err := onLine(line); err != nil {
			return err
		}
	}
	return nil
}

// readLine returns the next line including its terminator. A line longer
// than max is consumed through its newline and reported as errLineTooLong.
// A final line without a newline is returned before io.EOF.
func readLine(br *bufio.Reader, max int) (string, error) {
	var buf []byte
	tooLong := false
	for {
		chunk, err := br.ReadSlice('\n')
		if !tooLong {
			if len(buf)+len(chunk) > max {
				tooLong = true
				buf = nil
			} else {
				buf = append(buf, chunk...)
			}
		}
		switch {
		case err == nil:
			if tooLong {
				return "", errLineTooLong
			}
			return string(buf), nil
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF):
			if tooLong {
				return "", errLineTooLong
			}
			if len(buf) > 0 {
				return string(buf), nil
			}
			return "", io.EOF
		default:
			return "", err
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
