package gps

import (
	"encoding/binary"
	"fmt"
	"math"
)

const (
	garminAck  = 0x06
	garminCmd  = 0x0A
	garminNack = 0x15
	garminPVT  = 0x33

	// Unix time of 1989-12-31, the Garmin day 0.
	garminEpoch = 631065600
	// id, length, 64 bytes of PVT data, checksum.
	garminPVTFrame = 67
)

// Garmin decodes the Garmin binary protocol. Every received frame other
// than an ACK or NACK is acknowledged.
type Garmin struct {
	counters
	env    Env
	framer dleFramer
}

func NewGarmin(env Env) *Garmin {
	return &Garmin{env: env}
}

// Init asks the unit to start streaming PVT data.
func (d *Garmin) Init() error {
	return d.send(garminCmd, []byte{0x00, 0x31})
}

// garminPacket builds DLE id len payload csum DLE ETX. The checksum makes
// id, len, payload and checksum sum to zero.
func garminPacket(id byte, payload []byte) []byte {
	csum := -(id + byte(len(payload)))
	for _, c := range payload {
		csum -= c
	}
	out := []byte{dle, id}
	out = append(out, dleEscape([]byte{byte(len(payload))})...)
	out = append(out, dleEscape(payload)...)
	out = append(out, dleEscape([]byte{csum})...)
	return append(out, dle, etx)
}

func (d *Garmin) send(id byte, payload []byte) error {
	if _, err := d.env.out().Write(garminPacket(id, payload)); err != nil {
		return fmt.Errorf("garmin: send 0x%02x: %w", id, err)
	}
	return nil
}

func (d *Garmin) Update(b byte, fix *Fix) bool {
	frame, dropped := d.framer.push(b)
	if dropped {
		d.drop()
	}
	if frame == nil {
		return false
	}

	id := frame[0]
	sum := byte(0)
	for _, c := range frame {
		sum += c
	}
	if sum != 0 {
		d.drop()
		if id != garminAck && id != garminNack {
			_ = d.send(garminNack, []byte{id})
		}
		return false
	}
	d.frame()
	upd := false
	if id == garminPVT {
		upd = d.decodePVT(frame, fix)
	}
	if id != garminAck && id != garminNack {
		_ = d.send(garminAck, []byte{id})
	}
	return upd
}

func (d *Garmin) decodePVT(p []byte, fix *Fix) bool {
	if len(p) != garminPVTFrame {
		return false
	}
	le := binary.LittleEndian
	f32 := func(o int) float64 { return float64(math.Float32frombits(le.Uint32(p[o:]))) }
	f64 := func(o int) float64 { return math.Float64frombits(le.Uint64(p[o:])) }

	fixType := int16(le.Uint16(p[18:]))
	tow := f64(20)
	leap := int64(int16(le.Uint16(p[60:])))
	wnDays := int64(int32(le.Uint32(p[62:])))

	fix.Time = wnDays*86400 + garminEpoch + int64(tow) - leap
	fix.setCoord(f64(28), f64(36))
	fix.Alt = f32(2)
	fix.East, fix.North, fix.Up = f32(44), f32(48), f32(52)
	fix.Updated |= UpdatedSpeed
	fix.setBearingFromVelocity(fixType >= 2)
	fix.setQuality(garminQuality(fixType))
	return true
}

// garminQuality maps the PVT fix type (0 unusable, 1 invalid, 2 2D, 3 3D,
// 4 2D differential, 5 3D differential).
func garminQuality(t int16) Quality {
	switch t {
	case 2, 4:
		return Quality2D
	case 3, 5:
		return Quality3D
	default:
		return QualityNone
	}
}
