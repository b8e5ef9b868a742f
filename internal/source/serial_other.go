//go:build !linux

package source

import (
	"fmt"
	"io"

	"github.com/jacobsa/go-serial/serial"
)

// OpenSerial opens a serial port in 8N1 mode at the given baud rate.
func OpenSerial(path string, baud int) (io.ReadWriteCloser, error) {
	if baud <= 0 {
		return nil, fmt.Errorf("unsupported baud %d", baud)
	}
	port, err := serial.Open(serial.OpenOptions{
		PortName:        path,
		BaudRate:        uint(baud),
		DataBits:        8,
		StopBits:        1,
		ParityMode:      serial.PARITY_NONE,
		MinimumReadSize: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return port, nil
}
