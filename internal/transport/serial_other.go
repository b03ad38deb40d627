//go:build !linux

package transport

import (
	"github.com/tarm/serial"

	"gpsapp/internal/gps"
)

type serialPort struct {
	p    *serial.Port
	name string
}

func (p *serialPort) Read(b []byte) (int, error)  { return serialRead(p.p.Read(b)) }
func (p *serialPort) Write(b []byte) (int, error) { return p.p.Write(b) }
func (p *serialPort) Close() error                { return p.p.Close() }
func (p *serialPort) Name() string                { return p.name }

func openSerial(path string, baud int, parity gps.Parity) (Port, error) {
	c := &serial.Config{
		Name:        path,
		Baud:        baud,
		Size:        8,
		StopBits:    serial.Stop1,
		Parity:      serialParity(parity),
		ReadTimeout: ReadTimeout,
	}
	sp, err := serial.OpenPort(c)
	if err != nil {
		return nil, err
	}
	return &serialPort{p: sp, name: path}, nil
}

func serialParity(p gps.Parity) serial.Parity {
	switch p {
	case gps.ParityOdd:
		return serial.ParityOdd
	case gps.ParityEven:
		return serial.ParityEven
	default:
		return serial.ParityNone
	}
}
