package source

import (
	"bufio"
	"context"
	"net"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestLineClient_setState_ClearsStaleErrorOnConnected(t *testing.T) {
	c, err := NewLineClient(LineClientConfig{Name: "t", Addr: "127.0.0.1:1"})
	if err != nil {
		t.Fatalf("NewLineClient: %v", err)
	}

	c.setState("error", "dial tcp: connection refused")
	c.setState("connected", "")

	snap := c.Snapshot()
	if snap.State != "connected" {
		t.Fatalf("state=%q want %q", snap.State, "connected")
	}
	if snap.LastError != "" {
		t.Fatalf("last_error=%q want empty", snap.LastError)
	}
}

func TestNewLineClient_Validation(t *testing.T) {
	if _, err := NewLineClient(LineClientConfig{Addr: "x:1"}); err == nil || err.Error() != "line client name is required" {
		t.Fatalf("err=%v", err)
	}
	if _, err := NewLineClient(LineClientConfig{Name: "x"}); err == nil || err.Error() != "line client addr is required" {
		t.Fatalf("err=%v", err)
	}
}

// serveOnce accepts one connection, optionally reads the hello line and
// writes the given payload.
func serveOnce(t *testing.T, payload string) (addr string, hello <-chan string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })

	helloCh := make(chan string, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
		if line, err := bufio.NewReader(conn).ReadString('\n'); err == nil {
			helloCh <- line
		} else {
			helloCh <- ""
		}
		_, _ = conn.Write([]byte(payload))
		time.Sleep(50 * time.Millisecond)
	}()
	return ln.Addr().String(), helloCh
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met in time")
}

type lineSink struct {
	mu    sync.Mutex
	lines []string
	got   chan struct{}
	want  int
}

func newLineSink(want int) *lineSink {
	return &lineSink{got: make(chan struct{}), want: want}
}

func (s *lineSink) onLine(line string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = append(s.lines, line)
	if len(s.lines) == s.want {
		close(s.got)
	}
	return nil
}

func (s *lineSink) wait(t *testing.T) []string {
	t.Helper()
	select {
	case <-s.got:
	case <-time.After(3 * time.Second):
		t.Fatalf("timed out waiting for %d lines", s.want)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.lines...)
}

func TestLineClient_ReadsLines(t *testing.T) {
	addr, _ := serveOnce(t, "$GPGGA,123519\r\n\r\n$GPRMC,123519\n")
	c, err := NewLineClient(LineClientConfig{Name: "tcp", Addr: addr, ReconnectDelay: 10 * time.Millisecond})
	if err != nil {
		t.Fatalf("NewLineClient: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sink := newLineSink(2)
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx, sink.onLine) }()

	got := sink.wait(t)
	if strings.Join(got, "|") != "$GPGGA,123519|$GPRMC,123519" {
		t.Fatalf("lines=%q", got)
	}
	waitFor(t, func() bool {
		snap := c.Snapshot()
		return snap.Lines == 2 && snap.LastSeenUTC != ""
	})

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("Run did not stop")
	}
	if snap := c.Snapshot(); snap.State != "stopped" {
		t.Fatalf("state=%q want stopped", snap.State)
	}
}

func TestGPSDClient_WatchesAndFiltersJSON(t *testing.T) {
	payload := "{\"class\":\"VERSION\",\"release\":\"3.25\"}\n" +
		"{\"class\":\"DEVICES\",\"devices\":[]}\n" +
		"$GPGGA,123519,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,*47\n"
	addr, hello := serveOnce(t, payload)

	c, err := NewGPSDClient(addr, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("NewGPSDClient: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sink := newLineSink(1)
	go func() { _ = c.Run(ctx, sink.onLine) }()

	got := sink.wait(t)
	if len(got) != 1 || !strings.HasPrefix(got[0], "$GPGGA") {
		t.Fatalf("lines=%q", got)
	}
	if h := <-hello; h != gpsdWatchNMEA {
		t.Fatalf("hello=%q want %q", h, gpsdWatchNMEA)
	}
	if snap := c.Snapshot(); snap.Dropped != 2 {
		t.Fatalf("dropped=%d want 2", snap.Dropped)
	}
}

func TestLineClient_DialErrorRecorded(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()

	c, _ := NewLineClient(LineClientConfig{Name: "tcp", Addr: addr, ReconnectDelay: time.Second})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = c.Run(ctx, func(string) error { return nil })
	}()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if snap := c.Snapshot(); snap.State == "error" && snap.LastError != "" {
			cancel()
			<-done
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done
	t.Fatalf("expected dial error in snapshot, got %+v", c.Snapshot())
}
