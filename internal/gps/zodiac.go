package gps

import (
	"bytes"
	"encoding/binary"
	"io"

	"gpsapp/internal/geo"
	"gpsapp/internal/opt"
)

// Rockwell Zodiac binary messages, as spoken by the DeLorme Earthmate.
//
// A message is a five word header (sync, id, data word count, flags, header
// checksum) followed, when the count is non-zero, by the data words and a
// data checksum. Words are little-endian and each checksum makes its words
// sum to zero.
const (
	zodiacSync   = 0x81ff
	zodiacHeader = 10

	zodiacGeodetic = 1000
	zodiacChannels = 1002
	zodiacVisible  = 1003

	earthaReply = "EARTHA\r\n"
)

func zodiacChecksum(words []uint16) uint16 {
	var sum uint16
	for _, w := range words {
		sum += w
	}
	return -sum
}

// zodiacFrame encodes one message with both checksums filled in.
func zodiacFrame(id uint16, data []uint16) []byte {
	hdr := []uint16{zodiacSync, id, uint16(len(data)), 0}
	hdr = append(hdr, zodiacChecksum(hdr))
	words := hdr
	if len(data) > 0 {
		words = append(words, data...)
		words = append(words, zodiacChecksum(data))
	}
	out := make([]byte, 2*len(words))
	for i, w := range words {
		binary.LittleEndian.PutUint16(out[2*i:], w)
	}
	return out
}

type Zodiac struct {
	counters
	env Env

	buf  [maxPacket]byte
	n    int
	want int
	prev byte

	text []byte
}

func NewZodiac(env Env) *Zodiac {
	return &Zodiac{env: env}
}

func (d *Zodiac) Update(b byte, fix *Fix) bool {
	if d.n == 0 {
		return d.hunt(b)
	}
	if d.n >= len(d.buf) {
		d.reset()
		d.drop()
		return false
	}
	d.buf[d.n] = b
	d.n++

	if d.n == zodiacHeader {
		if sumWords(d.buf[:zodiacHeader]) != 0 {
			d.reset()
			d.drop()
			return false
		}
		ndata := int(d.word(3))
		if ndata == 0 {
			d.want = zodiacHeader
		} else {
			d.want = zodiacHeader + 2*ndata + 2
		}
		if d.want > len(d.buf) {
			d.reset()
			d.drop()
			return false
		}
	}
	if d.n < zodiacHeader || d.n < d.want {
		return false
	}

	defer d.reset()
	if d.want > zodiacHeader && sumWords(d.buf[zodiacHeader:d.want]) != 0 {
		d.drop()
		return false
	}
	d.frame()
	return d.decode(fix)
}

// hunt looks for the sync word and meanwhile watches for the receiver's
// plain-text EARTHA greeting.
func (d *Zodiac) hunt(b byte) bool {
	if d.prev == 0xff && b == 0x81 {
		d.buf[0], d.buf[1] = 0xff, 0x81
		d.n = 2
		d.text = d.text[:0]
		d.prev = 0
		return false
	}
	d.prev = b

	switch {
	case b == '\r':
	case b == '\n':
		if bytes.HasPrefix(d.text, []byte("EARTHA")) {
			_, _ = io.WriteString(d.env.out(), earthaReply)
		}
		d.text = d.text[:0]
	case b >= 0x20 && b < 0x7f && len(d.text) < 16:
		d.text = append(d.text, b)
	default:
		d.text = d.text[:0]
	}
	return false
}

func (d *Zodiac) reset() {
	d.n = 0
	d.want = 0
}

func sumWords(p []byte) uint16 {
	var sum uint16
	for i := 0; i+1 < len(p); i += 2 {
		sum += binary.LittleEndian.Uint16(p[i:])
	}
	return sum
}

// word returns 1-based word n of the current message.
func (d *Zodiac) word(n int) uint16 {
	o := 2 * (n - 1)
	if o+2 > d.n {
		return 0
	}
	return binary.LittleEndian.Uint16(d.buf[o:])
}

func (d *Zodiac) long(n int) uint32 {
	return uint32(d.word(n)) | uint32(d.word(n+1))<<16
}

func (d *Zodiac) decode(fix *Fix) bool {
	switch d.word(2) {
	case zodiacGeodetic:
		return d.decodeGeodetic(fix)
	case zodiacChannels:
		return d.decodeChannels(fix)
	case zodiacVisible:
		return d.decodeVisible(fix)
	}
	return false
}

// 1000: geodetic position status.
func (d *Zodiac) decodeGeodetic(fix *Fix) bool {
	valid := d.word(10) == 0
	q := QualityNone
	if valid {
		q = Quality3D
		if d.word(11)&0x02 != 0 {
			q = Quality2D
		}
	}
	fix.setQuality(q)

	fix.Time = DateToUnix(int(d.word(21)), int(d.word(20)), int(d.word(19))) +
		int64(d.word(22))*3600 + int64(d.word(23))*60 + int64(d.word(24))

	fix.setCoord(float64(int32(d.long(27)))*1e-8, float64(int32(d.long(29)))*1e-8)
	fix.Alt = float64(int32(d.long(31))) / 100

	speed := float64(d.long(34)) / 100
	course := float64(d.word(36)) * 1e-3
	fix.setVelocity(speed, geo.Rad2Deg(course))
	fix.Up = float64(int16(d.word(38))) / 100
	if valid {
		fix.Bearing = opt.Known(geo.NormalizeDeg(geo.Rad2Deg(course)))
	} else {
		fix.Bearing = opt.Unknown[float64]()
	}
	fix.Updated |= UpdatedBearing
	return true
}

// 1002: channel summary, twelve (flags, SVID, C/No) triples.
func (d *Zodiac) decodeChannels(fix *Fix) bool {
	now := opt.Known(fix.Time)
	for j := 0; j < 12; j++ {
		svn := int(d.word(16 + 3*j))
		if svn == 0 {
			continue
		}
		fix.Sats.Merge(svn, SatUpdate{
			Time: now,
			Used: opt.Known(d.word(15+3*j)&0x01 != 0),
			SNR:  opt.Known(int(d.word(17 + 3*j))),
		})
	}
	fix.Updated |= UpdatedSignals | UpdatedSats
	return true
}

// 1003: visible satellites with DOPs.
func (d *Zodiac) decodeVisible(fix *Fix) bool {
	fix.HDOP = float64(d.word(11)) * 1e-2
	count := int(d.word(14))
	if count > 12 {
		count = 12
	}
	now := opt.Known(fix.Time)
	// Azimuth and elevation are signed 1e-4 radians.
	for j := 0; j < count; j++ {
		fix.Sats.Merge(int(d.word(15+3*j)), SatUpdate{
			Time: now,
			Azim: opt.Known(float64(int16(d.word(16+3*j))) * 1e-4),
			Elev: opt.Known(float64(int16(d.word(17+3*j))) * 1e-4),
		})
	}
	fix.Updated |= UpdatedSats
	return true
}
