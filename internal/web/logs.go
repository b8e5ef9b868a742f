package web

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// LogBuffer keeps the last lines written to it, for /api/logs. Wire it
// next to the real log output with io.MultiWriter.
type LogBuffer struct {
	mu      sync.Mutex
	max     int
	lines   []string
	partial string
	dropped uint64
}

func NewLogBuffer(maxLines int) *LogBuffer {
	if maxLines <= 0 {
		maxLines = 2000
	}
	return &LogBuffer{max: maxLines}
}

// Write implements io.Writer. A trailing fragment without a newline is
// held until the rest of the line arrives.
func (b *LogBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	data := b.partial + string(p)
	parts := strings.Split(data, "\n")
	b.partial = parts[len(parts)-1]
	for _, line := range parts[:len(parts)-1] {
		b.appendLineLocked(line)
	}
	return len(p), nil
}

func (b *LogBuffer) appendLineLocked(line string) {
	line = strings.TrimRight(line, "\r")
	if line == "" {
		return
	}
	b.lines = append(b.lines, line)
	if over := len(b.lines) - b.max; over > 0 {
		b.lines = b.lines[over:]
		b.dropped += uint64(over)
	}
}

type LogsResponse struct {
	NowUTC  string   `json:"now_utc"`
	Dropped uint64   `json:"dropped"`
	Lines   []string `json:"lines"`
}

// Snapshot returns up to tail of the newest lines.
func (b *LogBuffer) Snapshot(tail int) (lines []string, dropped uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if tail <= 0 {
		tail = 200
	}
	if tail > len(b.lines) {
		tail = len(b.lines)
	}
	return append([]string(nil), b.lines[len(b.lines)-tail:]...), b.dropped
}

func (b *LogBuffer) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !allowGet(w, r) {
			return
		}

		tail := 200
		if s := strings.TrimSpace(r.URL.Query().Get("tail")); s != "" {
			v, err := strconv.Atoi(s)
			if err != nil || v < 1 || v > 5000 {
				http.Error(w, "tail must be an integer in [1,5000]", http.StatusBadRequest)
				return
			}
			tail = v
		}

		lines, dropped := b.Snapshot(tail)
		if strings.EqualFold(r.URL.Query().Get("format"), "text") {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.Header().Set("Cache-Control", "no-store")
			if dropped > 0 {
				_, _ = fmt.Fprintf(w, "[dropped=%d]\n", dropped)
			}
			for _, line := range lines {
				_, _ = fmt.Fprintln(w, line)
			}
			return
		}

		writeJSON(w, LogsResponse{
			NowUTC:  time.Now().UTC().Format(time.RFC3339Nano),
			Dropped: dropped,
			Lines:   lines,
		})
	})
}
