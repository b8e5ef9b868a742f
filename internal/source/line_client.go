package source

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// gpsdWatchNMEA asks gpsd to pass through raw NMEA from its devices.
const gpsdWatchNMEA = "?WATCH={\"enable\":true,\"nmea\":true}\n"

type LineClientConfig struct {
	Name string
	Addr string

	ReconnectDelay time.Duration
	MaxLineBytes   int

	// DialTimeout is used for each TCP connect.
	DialTimeout time.Duration

	// Hello is written once after every successful connect.
	Hello string
	// NMEAOnly drops lines that do not start with '$'.
	NMEAOnly bool
}

// LineClient reads newline-delimited sentences from a TCP endpoint and
// reconnects when the connection drops.
type LineClient struct {
	cfg LineClientConfig

	mu       sync.RWMutex
	state    string
	lastErr  string
	lastSeen time.Time
	count    uint64
	dropped  uint64
}

type LineSnapshot struct {
	Name        string `json:"name"`
	Addr        string `json:"addr"`
	State       string `json:"state"`
	LastError   string `json:"last_error,omitempty"`
	LastSeenUTC string `json:"last_seen_utc,omitempty"`
	Lines       uint64 `json:"lines"`
	Dropped     uint64 `json:"dropped,omitempty"`
}

func NewLineClient(cfg LineClientConfig) (*LineClient, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("line client name is required")
	}
	if cfg.Addr == "" {
		return nil, fmt.Errorf("line client addr is required")
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = 1 * time.Second
	}
	if cfg.MaxLineBytes <= 0 {
		cfg.MaxLineBytes = 4 * 1024
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 2 * time.Second
	}
	return &LineClient{cfg: cfg, state: "stopped"}, nil
}

// NewGPSDClient returns a client that enables gpsd's NMEA pass-through and
// forwards only the sentences, skipping gpsd's JSON reports.
func NewGPSDClient(addr string, reconnect time.Duration) (*LineClient, error) {
	return NewLineClient(LineClientConfig{
		Name:           "gpsd",
		Addr:           addr,
		ReconnectDelay: reconnect,
		Hello:          gpsdWatchNMEA,
		NMEAOnly:       true,
	})
}

func (c *LineClient) Snapshot() LineSnapshot {
	if c == nil {
		return LineSnapshot{}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := LineSnapshot{
		Name:      c.cfg.Name,
		Addr:      c.cfg.Addr,
		State:     c.state,
		LastError: c.lastErr,
		Lines:     c.count,
		Dropped:   c.dropped,
	}
	if !c.lastSeen.IsZero() {
		out.LastSeenUTC = c.lastSeen.UTC().Format(time.RFC3339Nano)
	}
	return out
}

// Run connects and reads until ctx is done. Handler errors are recorded in
// the snapshot and reading continues.
func (c *LineClient) Run(ctx context.Context, onLine func(line string) error) error {
	if c == nil {
		return fmt.Errorf("line client is nil")
	}
	if onLine == nil {
		return fmt.Errorf("line onLine is nil")
	}

	dialer := &net.Dialer{Timeout: c.cfg.DialTimeout}
	for {
		if ctx.Err() != nil {
			c.setState("stopped", "")
			return nil
		}

		c.setState("connecting", "")
		conn, err := dialer.DialContext(ctx, "tcp", c.cfg.Addr)
		if err != nil {
			c.setState("error", err.Error())
			if !sleepCtx(ctx, c.cfg.ReconnectDelay) {
				c.setState("stopped", "")
				return nil
			}
			continue
		}

		log.Info("line source connected", "name", c.cfg.Name, "addr", c.cfg.Addr)
		c.setState("connected", "")
		c.serve(ctx, conn, onLine)

		if !sleepCtx(ctx, c.cfg.ReconnectDelay) {
			c.setState("stopped", "")
			return nil
		}
	}
}

func (c *LineClient) serve(ctx context.Context, conn net.Conn, onLine func(line string) error) {
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()
	defer conn.Close()

	if c.cfg.Hello != "" {
		if _, err := conn.Write([]byte(c.cfg.Hello)); err != nil {
			c.setState("disconnected", "hello: "+err.Error())
			return
		}
	}

	reader := bufio.NewReader(conn)
	for {
		line, err := reader.ReadBytes('\n')
		if err != nil {
			switch {
			case ctx.Err() != nil:
				c.setState("stopped", "")
			case errors.Is(err, net.ErrClosed):
				c.setState("disconnected", "")
			default:
				c.setState("disconnected", err.Error())
			}
			log.Debug("line source disconnected", "name", c.cfg.Name, "err", err)
			return
		}

		if len(line) > c.cfg.MaxLineBytes {
			c.setState("error", fmt.Sprintf("line too large (%d bytes)", len(line)))
			continue
		}
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		s := string(line)
		if c.cfg.NMEAOnly && !strings.HasPrefix(s, "$") {
			c.mu.Lock()
			c.dropped++
			c.mu.Unlock()
			continue
		}

		if err := onLine(s); err != nil {
			c.setState("error", "handler: "+err.Error())
			continue
		}

		now := time.Now().UTC()
		c.mu.Lock()
		c.lastSeen = now
		c.count++
		c.mu.Unlock()
	}
}

func (c *LineClient) setState(state string, lastErr string) {
	c.mu.Lock()
	c.state = state
	if lastErr != "" {
		c.lastErr = lastErr
	} else if state == "connected" || state == "connecting" || state == "stopped" {
		// Clear stale errors once healthy again.
		c.lastErr = ""
	}
	c.mu.Unlock()
}
