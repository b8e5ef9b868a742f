package main

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"nmeafix/internal/config"
	"nmeafix/internal/replay"
)

var replayEpoch = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func TestRunService_FileSourceRecordsAndPublishes(t *testing.T) {
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen udp: %v", err)
	}
	defer pc.Close()

	tmp := t.TempDir()
	capture := filepath.Join(tmp, "capture.log")

	cfg := config.Default()
	cfg.GPS.Source = config.SourceFile
	cfg.GPS.Path = writeInput(t, sampleInput)
	cfg.GPS.Record = config.RecordConfig{Enable: true, Path: capture}
	cfg.UDP = config.UDPConfig{Enable: true, Dest: pc.LocalAddr().String()}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var console strings.Builder
	if err := runService(ctx, cfg, &console); err != nil {
		t.Fatalf("runService() error: %v", err)
	}

	// Only 123519 is complete and passes the quality bar.
	_ = pc.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 4096)
	n, _, err := pc.ReadFrom(buf)
	if err != nil {
		t.Fatalf("read datagram: %v", err)
	}
	if got := string(buf[:n]); !strings.Contains(got, `"utc":"123519"`) {
		t.Fatalf("datagram=%s", got)
	}

	recs, err := replay.ReadFile(capture)
	if err != nil {
		t.Fatalf("ReadFile() error: %v", err)
	}
	var sentences []string
	for _, r := range recs {
		if !r.Start {
			sentences = append(sentences, r.Sentence)
		}
	}
	want := strings.Split(strings.TrimSpace(sampleInput), "\n")
	if strings.Join(sentences, "\n") != strings.Join(want, "\n") {
		t.Fatalf("captured=%q", sentences)
	}
	if !strings.Contains(console.String(), "gps summary") {
		t.Fatalf("missing summary log: %q", console.String())
	}
}

func TestRunService_StopsOnCancel(t *testing.T) {
	p := writeInput(t, "")
	cfg := config.Default()
	cfg.GPS.Source = config.SourceFile
	cfg.GPS.Path = p
	cfg.GPS.Follow = true
	cfg.Web = config.WebConfig{Enable: true, Listen: "127.0.0.1:0"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- runService(ctx, cfg, os.Stderr) }()

	time.Sleep(100 * time.Millisecond)
	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("runService() error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("runService did not stop")
	}
}
