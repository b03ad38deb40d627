//go:build linux

package transport

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"gpsapp/internal/gps"
)

type serialPort struct {
	f    *os.File
	name string
}

func (p *serialPort) Read(b []byte) (int, error)  { return serialRead(p.f.Read(b)) }
func (p *serialPort) Write(b []byte) (int, error) { return p.f.Write(b) }
func (p *serialPort) Close() error                { return p.f.Close() }
func (p *serialPort) Name() string                { return p.name }

func openSerial(path string, baud int, parity gps.Parity) (Port, error) {
	flag := unix.O_RDWR | unix.O_NOCTTY
	fd, err := unix.Open(path, flag, 0)
	if err != nil {
		return nil, err
	}

	// Close fd unless the port is handed out.
	ok := false
	defer func() {
		if !ok {
			_ = unix.Close(fd)
		}
	}()

	t, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return nil, err
	}

	spd, err := baudToUnix(baud)
	if err != nil {
		return nil, err
	}

	// Raw mode: receivers speak binary protocols as well as NMEA.
	t.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP | unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON | unix.IXOFF
	t.Oflag &^= unix.OPOST
	t.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
	t.Cflag &^= unix.CSIZE | unix.PARENB | unix.PARODD | unix.CSTOPB | unix.CRTSCTS
	t.Cflag |= unix.CS8 | unix.CLOCAL | unix.CREAD
	switch parity {
	case gps.ParityOdd:
		t.Cflag |= unix.PARENB | unix.PARODD
	case gps.ParityEven:
		t.Cflag |= unix.PARENB
	}

	// Return whatever arrived within 100ms, possibly nothing.
	t.Cc[unix.VMIN] = 0
	t.Cc[unix.VTIME] = 1

	// Set baud.
	t.Cflag &^= unix.CBAUD
	t.Cflag |= spd
	t.Ispeed = spd
	t.Ospeed = spd

	if err := unix.IoctlSetTermios(fd, unix.TCSETS, t); err != nil {
		return nil, err
	}

	f := os.NewFile(uintptr(fd), path)
	if f == nil {
		return nil, fmt.Errorf("os.NewFile failed")
	}
	ok = true
	return &serialPort{f: f, name: path}, nil
}

func baudToUnix(baud int) (uint32, error) {
	switch baud {
	case 1200:
		return unix.B1200, nil
	case 2400:
		return unix.B2400, nil
	case 4800:
		return unix.B4800, nil
	case 9600:
		return unix.B9600, nil
	case 19200:
		return unix.B19200, nil
	case 38400:
		return unix.B38400, nil
	case 57600:
		return unix.B57600, nil
	case 115200:
		return unix.B115200, nil
	default:
		return 0, fmt.Errorf("unsupported baud %d", baud)
	}
}
