package gps

import (
	"encoding/binary"
	"fmt"
	"math"

	"gpsapp/internal/opt"
)

// Trimble TSIP report packet ids.
const (
	tsipGPSTime     = 0x41
	tsipVersion     = 0x45
	tsipHealth      = 0x46
	tsipSignals     = 0x47
	tsipIOOptions   = 0x55
	tsipVelocity    = 0x56
	tsipTracking    = 0x5C
	tsipSatSelect   = 0x6D
	tsipDGPSFix     = 0x82
	tsipDblPosition = 0x84
)

// Trimble TSIP command packet ids.
const (
	tsipCmdSatSelect = 0x24
	tsipCmdSoftReset = 0x25
	tsipCmdSignals   = 0x27
	tsipCmdIOOptions = 0x35
	tsipCmdTracking  = 0x3C
)

// TSIP decodes the Trimble Standard Interface Protocol.
//
// Position (0x84) and velocity (0x56) reports arrive as separate packets
// stamped with the same time of week. Each is held until a report with a
// different time arrives, at which point the held values are published
// together.
type TSIP struct {
	counters
	env    Env
	framer dleFramer

	initialized bool
	fix         bool
	dim3        bool

	datestamp int64
	utcOffset float64
	timestamp float32
	held      bool

	lat, lon, alt float64
	east, north   float64
	up            float64
}

func NewTSIP(env Env) *TSIP {
	return &TSIP{env: env}
}

func (d *TSIP) Init() error {
	d.initialized = false
	return d.send(tsipCmdSoftReset, nil)
}

// Poll requests signal levels, the satellite selection and tracking status.
func (d *TSIP) Poll() error {
	if err := d.send(tsipCmdSignals, nil); err != nil {
		return err
	}
	if err := d.send(tsipCmdSatSelect, nil); err != nil {
		return err
	}
	return d.send(tsipCmdTracking, []byte{0})
}

func (d *TSIP) send(id byte, body []byte) error {
	if _, err := d.env.out().Write(dleFrame(id, body)); err != nil {
		return fmt.Errorf("tsip: send 0x%02x: %w", id, err)
	}
	return nil
}

func (d *TSIP) Update(b byte, fix *Fix) bool {
	frame, dropped := d.framer.push(b)
	if dropped {
		d.drop()
	}
	if frame == nil {
		return false
	}
	d.frame()
	return d.decode(frame, fix)
}

func beFloat32(p []byte) float32 { return math.Float32frombits(binary.BigEndian.Uint32(p)) }
func beFloat64(p []byte) float64 { return math.Float64frombits(binary.BigEndian.Uint64(p)) }

func (d *TSIP) decode(p []byte, fix *Fix) bool {
	n := len(p)
	switch p[0] {
	case tsipGPSTime:
		if n != 11 {
			return false
		}
		week := int64(int16(binary.BigEndian.Uint16(p[5:])))
		d.datestamp = week*7*86400 + unixToGPSEpoch
		d.utcOffset = float64(beFloat32(p[7:]))
	case tsipVersion:
		if n == 11 {
			// Only sent after power loss or our soft reset.
			d.initialized = false
		}
	case tsipHealth:
		if n == 3 {
			d.fix = p[1] == 0x00
		}
	case tsipIOOptions:
		if n != 5 {
			return false
		}
		// Leave the reserved bits unharmed.
		out := []byte{
			(p[1] & 0xc0) | 0x12,
			(p[2] & 0xfc) | 0x02,
			(p[3] & 0xfe) | 0x01,
			p[4] & 0xf4,
		}
		if string(out) != string(p[1:5]) {
			_ = d.send(tsipCmdIOOptions, out)
		}
	case tsipVelocity:
		if n != 21 {
			return false
		}
		upd := d.latch(beFloat32(p[17:]), fix)
		d.east = float64(beFloat32(p[1:]))
		d.north = float64(beFloat32(p[5:]))
		d.up = float64(beFloat32(p[9:]))
		d.held = true
		return upd
	case tsipDGPSFix:
		if n == 2 && !d.initialized {
			// Receiver restarted; check its I/O settings.
			d.initialized = true
			_ = d.send(tsipCmdIOOptions, nil)
		}
	case tsipDblPosition:
		if n != 37 {
			return false
		}
		upd := d.latch(beFloat32(p[33:]), fix)
		d.lat = beFloat64(p[1:])
		d.lon = beFloat64(p[9:])
		d.alt = beFloat64(p[17:])
		d.held = true
		return upd
	case tsipSignals:
		return d.decodeSignals(p, fix)
	case tsipTracking:
		return d.decodeTracking(p, fix)
	case tsipSatSelect:
		return d.decodeSatSelect(p, fix)
	}
	return false
}

// latch publishes the held position and velocity when the report time moves.
func (d *TSIP) latch(t float32, fix *Fix) bool {
	if t == d.timestamp {
		return false
	}
	prev := d.timestamp
	d.timestamp = t
	if !d.held {
		return false
	}
	fix.Time = d.datestamp + int64(float64(prev)-d.utcOffset)
	fix.setCoord(d.lat, d.lon)
	fix.Alt = d.alt
	fix.East, fix.North, fix.Up = d.east, d.north, d.up
	fix.Updated |= UpdatedSpeed
	fix.setBearingFromVelocity(d.fix)
	fix.setQuality(d.quality())
	return true
}

func (d *TSIP) quality() Quality {
	switch {
	case !d.fix:
		return QualityNone
	case d.dim3:
		return Quality3D
	default:
		return Quality2D
	}
}

// 0x47: count, then per satellite PRN and signal level.
func (d *TSIP) decodeSignals(p []byte, fix *Fix) bool {
	if len(p) < 2 {
		return false
	}
	count := int(p[1])
	if len(p) < 2+count*5 {
		return false
	}
	now := opt.Known(fix.Time)
	for i := 0; i < count; i++ {
		o := 2 + i*5
		level := beFloat32(p[o+1:])
		fix.Sats.Merge(int(p[o]), SatUpdate{Time: now, SNR: opt.Known(int(level))})
	}
	fix.Updated |= UpdatedSignals
	return true
}

// 0x5C: PRN, channel, acquisition, ephemeris, signal level, time of last
// measurement, elevation and azimuth in radians.
func (d *TSIP) decodeTracking(p []byte, fix *Fix) bool {
	if len(p) != 25 {
		return false
	}
	fix.Sats.Merge(int(p[1]), SatUpdate{
		Time: opt.Known(fix.Time),
		SNR:  opt.Known(int(beFloat32(p[5:]))),
		Elev: opt.Known(float64(beFloat32(p[13:]))),
		Azim: opt.Known(float64(beFloat32(p[17:]))),
	})
	fix.Updated |= UpdatedSignals | UpdatedSats
	return true
}

// 0x6D: dimension and count, PDOP, HDOP, VDOP, TDOP, then the PRNs in use.
func (d *TSIP) decodeSatSelect(p []byte, fix *Fix) bool {
	if len(p) < 18 {
		return false
	}
	mode := p[1]
	count := int(mode >> 4)
	if len(p) < 18+count {
		return false
	}
	switch mode & 0x07 {
	case 3:
		d.dim3 = false
	case 4:
		d.dim3 = true
	}
	fix.setQuality(d.quality())
	fix.HDOP = float64(beFloat32(p[6:]))
	fix.Sats.ClearUsed()
	now := opt.Known(fix.Time)
	for i := 0; i < count; i++ {
		fix.Sats.Merge(int(p[18+i]), SatUpdate{Time: now, Used: opt.Known(true)})
	}
	fix.Updated |= UpdatedFix | UpdatedSats
	return true
}
