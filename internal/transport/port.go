// Package transport opens the byte channel to a GPS receiver: a serial
// line, a TCP stream (ser2net or gpsd), or a tick source for replays.
//
// Every Port is polled: Read waits at most ReadTimeout and returns 0, nil
// when nothing arrived.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"gpsapp/internal/gps"
)

// ReadTimeout bounds how long a Port read may block.
const ReadTimeout = 100 * time.Millisecond

type Port interface {
	io.ReadWriteCloser
	// Name describes the port for logs and status.
	Name() string
}

type Config struct {
	// Device is a serial path. Empty means auto-detect.
	Device string
	Baud   int
	Parity gps.Parity

	// Addr selects a TCP source instead of serial.
	Addr string
	// GPSDRaw asks a gpsd daemon at Addr to relay raw receiver bytes.
	GPSDRaw bool

	// Tick selects the tick source used by replay pseudo-protocols.
	Tick bool
}

var ErrNoDevice = errors.New("transport: no serial device found")

// Open opens the port described by cfg.
func Open(ctx context.Context, cfg Config) (Port, error) {
	switch {
	case cfg.Tick:
		return NewTick(), nil
	case strings.TrimSpace(cfg.Addr) != "":
		return DialTCP(ctx, cfg.Addr, cfg.GPSDRaw)
	}

	device := strings.TrimSpace(cfg.Device)
	if device == "" {
		device = AutoDetect(nil)
		if device == "" {
			return nil, ErrNoDevice
		}
	}
	baud := cfg.Baud
	if baud == 0 {
		baud = 4800
	}
	p, err := openSerial(device, baud, cfg.Parity)
	if err != nil {
		return nil, fmt.Errorf("transport: open %s baud=%d parity=%s: %w", device, baud, cfg.Parity, err)
	}
	return p, nil
}

// pollRead maps a read deadline expiring onto 0, nil. Every other error,
// io.EOF included, is returned.
func pollRead(n int, err error) (int, error) {
	if err == nil {
		return n, nil
	}
	var te interface{ Timeout() bool }
	if errors.As(err, &te) && te.Timeout() {
		return n, nil
	}
	return n, err
}

// serialRead is pollRead for a tty opened with VMIN=0, where an idle line
// reads as 0 bytes and io.EOF.
func serialRead(n int, err error) (int, error) {
	if n == 0 && errors.Is(err, io.EOF) {
		return 0, nil
	}
	return pollRead(n, err)
}
