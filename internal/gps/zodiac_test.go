package gps

import (
	"bytes"
	"math"
	"testing"
	"time"
)

// zodiacData returns a data block large enough to address word n, with
// words set via the returned setter using 1-based message word numbers.
func zodiacData(words int) ([]uint16, func(n int, v uint16)) {
	data := make([]uint16, words)
	return data, func(n int, v uint16) { data[n-6] = v }
}

func zodiacGeodeticFrame(valid bool, navType uint16) []byte {
	data, set := zodiacData(49)
	if !valid {
		set(10, 1)
	}
	set(11, navType)
	set(19, 23)
	set(20, 3)
	set(21, 2024)
	set(22, 12)
	set(23, 35)
	set(24, 19)
	lat := int32(83980000)
	lon := int32(-2000000)
	set(27, uint16(uint32(lat)))
	set(28, uint16(uint32(lat)>>16))
	set(29, uint16(uint32(lon)))
	set(30, uint16(uint32(lon)>>16))
	set(31, 12345)
	set(34, 1500)
	set(36, 1571)
	neg := int16(-50)
	set(38, uint16(neg))
	return zodiacFrame(zodiacGeodetic, data)
}

func TestZodiac_GeodeticPosition(t *testing.T) {
	d := NewZodiac(Env{})
	var fix Fix
	if !feed(d, append([]byte{0x00, 0x42}, zodiacGeodeticFrame(true, 0)...), &fix) {
		t.Fatalf("expected update")
	}
	want := time.Date(2024, 3, 23, 12, 35, 19, 0, time.UTC).Unix()
	if fix.Time != want {
		t.Fatalf("time=%d want %d", fix.Time, want)
	}
	if math.Abs(fix.Lat-0.8398) > 1e-12 || math.Abs(fix.Lon+0.02) > 1e-12 {
		t.Fatalf("pos=%v,%v", fix.Lat, fix.Lon)
	}
	if fix.Alt != 123.45 {
		t.Fatalf("alt=%v", fix.Alt)
	}
	if math.Abs(fix.Speed()-15) > 1e-9 || fix.Up != -0.5 {
		t.Fatalf("speed=%v up=%v", fix.Speed(), fix.Up)
	}
	if b, ok := fix.Bearing.Get(); !ok || math.Abs(b-1.571*180/math.Pi) > 1e-9 {
		t.Fatalf("bearing=%v ok=%v", b, ok)
	}
	if fix.Quality != Quality3D {
		t.Fatalf("quality=%v", fix.Quality)
	}
}

func TestZodiac_AltitudeHoldIs2DAndInvalidIsNone(t *testing.T) {
	d := NewZodiac(Env{})
	var fix Fix
	feed(d, zodiacGeodeticFrame(true, 0x02), &fix)
	if fix.Quality != Quality2D {
		t.Fatalf("quality=%v", fix.Quality)
	}
	feed(d, zodiacGeodeticFrame(false, 0), &fix)
	if fix.Quality != QualityNone || fix.Bearing.IsKnown() {
		t.Fatalf("quality=%v bearing=%v", fix.Quality, fix.Bearing)
	}
}

func TestZodiac_ChecksumFailureDrops(t *testing.T) {
	d := NewZodiac(Env{})
	var fix Fix
	frame := zodiacGeodeticFrame(true, 0)
	frame[40] ^= 0xff
	if feed(d, frame, &fix) {
		t.Fatalf("corrupt data must not update")
	}
	if d.Stats().Dropped != 1 {
		t.Fatalf("stats=%+v", d.Stats())
	}
	if !feed(d, zodiacGeodeticFrame(true, 0), &fix) {
		t.Fatalf("expected recovery")
	}
}

func TestZodiac_ChannelSummaryAndVisibleSats(t *testing.T) {
	d := NewZodiac(Env{})
	var fix Fix

	data, set := zodiacData(51)
	set(15, 1)
	set(16, 7)
	set(17, 44)
	set(18, 0)
	set(19, 9)
	set(20, 38)
	if !feed(d, zodiacFrame(zodiacChannels, data), &fix) {
		t.Fatalf("expected update")
	}
	s := fix.Sats[fix.Sats.find(7)]
	if snr, _ := s.SNR.Get(); snr != 44 {
		t.Fatalf("snr=%d", snr)
	}
	if !s.Used.Or(false) || fix.Sats[fix.Sats.find(9)].Used.Or(true) {
		t.Fatalf("used flags wrong: %+v", fix.Sats)
	}

	vis, setv := zodiacData(51)
	setv(11, 150)
	setv(14, 1)
	setv(15, 7)
	setv(16, 31416)
	setv(17, 7854)
	if !feed(d, zodiacFrame(zodiacVisible, vis), &fix) {
		t.Fatalf("expected update")
	}
	s = fix.Sats[fix.Sats.find(7)]
	if az, _ := s.Azim.Get(); math.Abs(az-3.1416) > 1e-9 {
		t.Fatalf("azim=%v", az)
	}
	if el, _ := s.Elev.Get(); math.Abs(el-0.7854) > 1e-9 {
		t.Fatalf("elev=%v", el)
	}
	if math.Abs(fix.HDOP-1.5) > 1e-12 {
		t.Fatalf("hdop=%v", fix.HDOP)
	}
}

func TestZodiac_EarthaGreeting(t *testing.T) {
	var out bytes.Buffer
	var fix Fix
	feed(NewZodiac(Env{Out: &out}), []byte("EARTHA\r\n"), &fix)
	if out.String() != "EARTHA\r\n" {
		t.Fatalf("reply=%q", out.String())
	}
}

func TestZodiacFrame_ChecksumsSumToZero(t *testing.T) {
	f := zodiacFrame(1216, []uint16{1, 1})
	if sumWords(f[:zodiacHeader]) != 0 || sumWords(f[zodiacHeader:]) != 0 {
		t.Fatalf("bad checksums in %x", f)
	}
	if f[0] != 0xff || f[1] != 0x81 {
		t.Fatalf("sync=%x", f[:2])
	}
}
