package source

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
)

// Serial reads sentences from a serial receiver, reopening the device when
// it disappears.
type Serial struct {
	Device         string
	Baud           int
	ReconnectDelay time.Duration

	// open defaults to OpenSerial and is swapped in tests.
	open func(path string, baud int) (readCloser, error)
}

type readCloser interface {
	Read(p []byte) (int, error)
	Close() error
}

func (s *Serial) Run(ctx context.Context, onLine func(line string) error) error {
	if s.Device == "" {
		return fmt.Errorf("serial device is required")
	}
	open := s.open
	if open == nil {
		open = func(path string, baud int) (readCloser, error) { return OpenSerial(path, baud) }
	}
	delay := s.ReconnectDelay
	if delay <= 0 {
		delay = 2 * time.Second
	}

	for ctx.Err() == nil {
		port, err := open(s.Device, s.Baud)
		if err != nil {
			log.Warn("serial open failed", "device", s.Device, "baud", s.Baud, "err", err)
			if !sleepCtx(ctx, delay) {
				return nil
			}
			continue
		}
		log.Info("serial source opened", "device", s.Device, "baud", s.Baud)

		stop := context.AfterFunc(ctx, func() { _ = port.Close() })
		err = ReadLines(ctx, port, onLine)
		stop()
		_ = port.Close()

		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			log.Warn("serial read stopped", "device", s.Device, "err", err)
		}
		if !sleepCtx(ctx, delay) {
			return nil
		}
	}
	return nil
}
