package gps

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"gpsapp/internal/geo"
	"gpsapp/internal/opt"
)

const mphToMPS = 0.44704

// TAIP decodes Trimble ASCII Interface Protocol messages framed as >...<.
type TAIP struct {
	counters
	env Env

	buf     []byte
	started bool
}

func NewTAIP(env Env) *TAIP {
	return &TAIP{env: env, buf: make([]byte, 0, maxPacket)}
}

// Init requests a position report every second and the time every 15.
func (d *TAIP) Init() error {
	for _, cmd := range []string{">FPV00010000<", ">FTM00150000<", ">QTM<"} {
		if _, err := io.WriteString(d.env.out(), cmd); err != nil {
			return fmt.Errorf("taip: init: %w", err)
		}
	}
	return nil
}

func (d *TAIP) Poll() error {
	if _, err := io.WriteString(d.env.out(), ">QTM<"); err != nil {
		return fmt.Errorf("taip: poll: %w", err)
	}
	return nil
}

func (d *TAIP) Update(b byte, fix *Fix) bool {
	if b == '>' {
		d.started = true
		d.buf = d.buf[:0]
		return false
	}
	if !d.started {
		return false
	}
	if b == '<' {
		d.started = false
		return d.decode(string(d.buf), fix)
	}
	if len(d.buf) >= maxPacket {
		d.started = false
		d.buf = d.buf[:0]
		d.drop()
		return false
	}
	d.buf = append(d.buf, b)
	return false
}

func (d *TAIP) decode(msg string, fix *Fix) bool {
	switch {
	case strings.HasPrefix(msg, "RTM"):
		d.frame()
		return false
	case strings.HasPrefix(msg, "RPV"):
	default:
		return false
	}
	if len(msg) < 33 {
		d.drop()
		return false
	}
	d.frame()
	if msg[32] == '0' {
		return false
	}
	num := func(from, to int) (int64, bool) {
		v, err := strconv.ParseInt(strings.TrimSpace(msg[from:to]), 10, 64)
		return v, err == nil
	}
	tod, ok1 := num(3, 8)
	lat, ok2 := num(8, 16)
	lon, ok3 := num(16, 25)
	mph, ok4 := num(25, 28)
	hdg, ok5 := num(28, 31)
	if !ok1 || !ok2 || !ok3 || !ok4 || !ok5 {
		d.drop()
		return false
	}

	fix.Time = d.env.today() + tod
	fix.setCoord(geo.Deg2Rad(float64(lat)/1e5), geo.Deg2Rad(float64(lon)/1e5))
	fix.setVelocity(float64(mph)*mphToMPS, float64(hdg))
	if msg[31] == '9' {
		fix.Bearing = opt.Unknown[float64]()
	} else {
		fix.Bearing = opt.Known(geo.NormalizeDeg(float64(hdg)))
	}
	fix.Updated |= UpdatedBearing
	fix.setQuality(taipQuality(msg[31]))
	return true
}

// taipQuality maps the RPV source column: 0/2 are 2D fixes (plain or
// differential), 1/3 are 3D, anything else is not a GPS fix.
func taipQuality(src byte) Quality {
	switch src {
	case '0', '2':
		return Quality2D
	case '1', '3':
		return Quality3D
	default:
		return QualityNone
	}
}
