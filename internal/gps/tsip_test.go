package gps

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"
)

func be32f(v float32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, math.Float32bits(v))
	return b
}

func be64f(v float64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, math.Float64bits(v))
	return b
}

func tsipPosition(lat, lon, alt float64, tow float32) []byte {
	var body []byte
	body = append(body, be64f(lat)...)
	body = append(body, be64f(lon)...)
	body = append(body, be64f(alt)...)
	body = append(body, be64f(0)...)
	body = append(body, be32f(tow)...)
	return dleFrame(tsipDblPosition, body)
}

func tsipVelocityFrame(e, n, u float32, tow float32) []byte {
	var body []byte
	for _, v := range []float32{e, n, u, 0, tow} {
		body = append(body, be32f(v)...)
	}
	return dleFrame(tsipVelocity, body)
}

func tsipTime(tow float32, week int16, utc float32) []byte {
	body := be32f(tow)
	body = binary.BigEndian.AppendUint16(body, uint16(week))
	body = append(body, be32f(utc)...)
	return dleFrame(tsipGPSTime, body)
}

func TestTSIP_LatchesPositionAndVelocityOnTimeChange(t *testing.T) {
	d := NewTSIP(Env{})
	var fix Fix
	feed(d, tsipTime(100, 2300, 18), &fix)
	feed(d, dleFrame(tsipHealth, []byte{0x00, 0x00}), &fix)

	if feed(d, tsipPosition(0.7, -1.4, 250, 100), &fix) {
		t.Fatalf("first report must be held")
	}
	if feed(d, tsipVelocityFrame(3, 4, 0, 100), &fix) {
		t.Fatalf("same time must not publish")
	}
	if !feed(d, tsipPosition(0.71, -1.41, 251, 101), &fix) {
		t.Fatalf("time change should publish")
	}

	wantTime := int64(2300)*604800 + 315532800 + 100 - 18
	if fix.Time != wantTime {
		t.Fatalf("time=%d want %d", fix.Time, wantTime)
	}
	if fix.Lat != 0.7 || fix.Lon != -1.4 || fix.Alt != 250 {
		t.Fatalf("position=%v,%v,%v", fix.Lat, fix.Lon, fix.Alt)
	}
	if fix.Speed() != 5 {
		t.Fatalf("speed=%v", fix.Speed())
	}
	b, ok := fix.Bearing.Get()
	if !ok || math.Abs(b-math.Atan2(3, 4)*180/math.Pi) > 1e-9 {
		t.Fatalf("bearing=%v ok=%v", b, ok)
	}
}

func TestTSIP_NoFixMeansUnknownBearing(t *testing.T) {
	d := NewTSIP(Env{})
	var fix Fix
	feed(d, dleFrame(tsipHealth, []byte{0x08, 0x00}), &fix)
	feed(d, tsipVelocityFrame(3, 4, 0, 1), &fix)
	feed(d, tsipVelocityFrame(3, 4, 0, 2), &fix)
	if fix.Bearing.IsKnown() {
		t.Fatalf("bearing should be unknown without a fix")
	}
	if fix.Quality != QualityNone {
		t.Fatalf("quality=%v", fix.Quality)
	}
}

func TestTSIP_InitAndPollCommands(t *testing.T) {
	var out bytes.Buffer
	d := NewTSIP(Env{Out: &out})
	if err := d.Init(); err != nil {
		t.Fatalf("init: %v", err)
	}
	if !bytes.Equal(out.Bytes(), []byte{dle, 0x25, dle, etx}) {
		t.Fatalf("init=%x", out.Bytes())
	}
	out.Reset()
	if err := d.Poll(); err != nil {
		t.Fatalf("poll: %v", err)
	}
	want := []byte{dle, 0x27, dle, etx, dle, 0x24, dle, etx, dle, 0x3c, 0x00, dle, etx}
	if !bytes.Equal(out.Bytes(), want) {
		t.Fatalf("poll=%x", out.Bytes())
	}
}

func TestTSIP_ReadyReportQueriesIOOptionsOnce(t *testing.T) {
	var out bytes.Buffer
	d := NewTSIP(Env{Out: &out})
	var fix Fix
	feed(d, dleFrame(tsipDGPSFix, []byte{0x00}), &fix)
	if !bytes.Equal(out.Bytes(), []byte{dle, 0x35, dle, etx}) {
		t.Fatalf("query=%x", out.Bytes())
	}
	out.Reset()
	feed(d, dleFrame(tsipDGPSFix, []byte{0x00}), &fix)
	if out.Len() != 0 {
		t.Fatalf("second ready report should be quiet")
	}

	// A version report means the receiver restarted.
	feed(d, dleFrame(tsipVersion, make([]byte, 10)), &fix)
	feed(d, dleFrame(tsipDGPSFix, []byte{0x00}), &fix)
	if out.Len() == 0 {
		t.Fatalf("expected query after restart")
	}
}

func TestTSIP_IOOptionsCorrectedOnlyWhenDifferent(t *testing.T) {
	var out bytes.Buffer
	d := NewTSIP(Env{Out: &out})
	var fix Fix
	feed(d, dleFrame(tsipIOOptions, []byte{0xc0, 0x00, 0x00, 0xff}), &fix)
	want := dleFrame(tsipCmdIOOptions, []byte{0xd2, 0x02, 0x01, 0xf4})
	if !bytes.Equal(out.Bytes(), want) {
		t.Fatalf("got %x want %x", out.Bytes(), want)
	}
	out.Reset()
	feed(d, dleFrame(tsipIOOptions, []byte{0xd2, 0x02, 0x01, 0xf4}), &fix)
	if out.Len() != 0 {
		t.Fatalf("matching options should not be rewritten: %x", out.Bytes())
	}
}

func TestTSIP_SatelliteReports(t *testing.T) {
	d := NewTSIP(Env{})
	var fix Fix
	feed(d, dleFrame(tsipHealth, []byte{0x00, 0x00}), &fix)

	sig := []byte{2, 5}
	sig = append(sig, be32f(41.5)...)
	sig = append(sig, 9)
	sig = append(sig, be32f(30)...)
	if !feed(d, dleFrame(tsipSignals, sig), &fix) {
		t.Fatalf("signals should update")
	}
	if snr, _ := fix.Sats[fix.Sats.find(5)].SNR.Get(); snr != 41 {
		t.Fatalf("snr=%d", snr)
	}

	trk := []byte{12, 1, 1, 1}
	for _, v := range []float32{38, 1000, 0.5, 1.25} {
		trk = append(trk, be32f(v)...)
	}
	trk = append(trk, 0, 0, 0, 0)
	if !feed(d, dleFrame(tsipTracking, trk), &fix) {
		t.Fatalf("tracking should update")
	}
	s := fix.Sats[fix.Sats.find(12)]
	if e, _ := s.Elev.Get(); e != 0.5 {
		t.Fatalf("elev=%v", e)
	}

	sel := []byte{0x34}
	for _, v := range []float32{2.0, 1.5, 1.2, 1.0} {
		sel = append(sel, be32f(v)...)
	}
	sel = append(sel, 5, 9, 12)
	if !feed(d, dleFrame(tsipSatSelect, sel), &fix) {
		t.Fatalf("selection should update")
	}
	if fix.Quality != Quality3D || fix.HDOP != 1.5 || fix.Sats.InUse() != 3 {
		t.Fatalf("quality=%v hdop=%v inuse=%d", fix.Quality, fix.HDOP, fix.Sats.InUse())
	}
}
