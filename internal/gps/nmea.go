package gps

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"

	nmea "github.com/adrianmo/go-nmea"

	"gpsapp/internal/geo"
	"gpsapp/internal/opt"
)

const (
	knotsPerKPH = 0.5399568
	astralReply = "$IIGPQ,ASTRAL*73\r\n"
)

type nmeaSentence struct {
	Type string
	// Fields is the comma-split NMEA payload (excluding $ and checksum).
	Fields []string
}

// parseNMEASentence validates framing and checksum of a complete line.
// The line must end in '*' followed by exactly two hex digits.
func parseNMEASentence(line string) (nmeaSentence, error) {
	line = strings.TrimRight(line, "\r\n")
	if !strings.HasPrefix(line, "$") {
		return nmeaSentence{}, fmt.Errorf("nmea: missing '$'")
	}
	star := len(line) - 3
	if star < 1 || line[star] != '*' {
		return nmeaSentence{}, fmt.Errorf("nmea: missing checksum")
	}
	payload := line[1:star]
	want, err := hex.DecodeString(line[star+1:])
	if err != nil || len(want) != 1 {
		return nmeaSentence{}, fmt.Errorf("nmea: bad checksum")
	}
	got := byte(0)
	for i := 0; i < len(payload); i++ {
		got ^= payload[i]
	}
	if got != want[0] {
		return nmeaSentence{}, fmt.Errorf("nmea: checksum mismatch")
	}

	parts := strings.Split(payload, ",")
	typeField := parts[0]
	if len(typeField) < 3 {
		return nmeaSentence{}, fmt.Errorf("nmea: short type")
	}
	// Accept GNxxx/GPxxx, etc; normalize to last 3 chars.
	t := typeField[len(typeField)-3:]
	return nmeaSentence{Type: strings.ToUpper(t), Fields: parts}, nil
}

// NMEACommand frames payload as "$payload*CS\r\n".
func NMEACommand(payload string) string {
	return "$" + payload + "*" + nmea.Checksum(payload) + "\r\n"
}

// NMEA decodes NMEA-0183 sentences.
type NMEA struct {
	counters
	env Env

	line []byte

	// datestamp is midnight of the last RMC date, 0 until one arrives.
	datestamp int64
	present   bool
	dim3      bool
}

func NewNMEA(env Env) *NMEA {
	return &NMEA{env: env, line: make([]byte, 0, maxPacket)}
}

func (d *NMEA) Init() error {
	w := d.env.out()
	for _, s := range []string{"GGA", "RMC", "GSA", "GSV"} {
		if _, err := io.WriteString(w, NMEACommand("PMOTG,"+s+",0001")); err != nil {
			return fmt.Errorf("nmea: init: %w", err)
		}
	}
	now := d.env.now()
	rwi := fmt.Sprintf("PRWIINIT,V,,,,,,,,,,,,%02d%02d%02d,%02d%02d%02d",
		now.Hour(), now.Minute(), now.Second(), now.Day(), int(now.Month()), now.Year()%100)
	if _, err := io.WriteString(w, NMEACommand(rwi)); err != nil {
		return fmt.Errorf("nmea: init: %w", err)
	}
	if d.env.ColdStart {
		return nil
	}
	// Zodiac receivers also listen on this port; hint them out of binary mode.
	if _, err := w.Write(zodiacFrame(1216, []uint16{1, 1})); err != nil {
		return fmt.Errorf("nmea: init: %w", err)
	}
	if _, err := w.Write(zodiacFrame(1220, []uint16{2, 5})); err != nil {
		return fmt.Errorf("nmea: init: %w", err)
	}
	return nil
}

func (d *NMEA) Update(b byte, fix *Fix) bool {
	switch b {
	case '\r':
		return false
	case '\n':
		line := d.line
		d.line = d.line[:0]
		return d.handleLine(line, fix)
	}
	if len(d.line) >= maxPacket {
		d.line = d.line[:0]
		d.drop()
	}
	d.line = append(d.line, b)
	return false
}

func (d *NMEA) handleLine(line []byte, fix *Fix) bool {
	if len(line) == 0 {
		return false
	}
	if line[0] != '$' {
		if bytes.HasPrefix(line, []byte("ASTRAL")) {
			_, _ = io.WriteString(d.env.out(), astralReply)
		}
		return false
	}
	sent, err := parseNMEASentence(string(line))
	if err != nil {
		d.drop()
		return false
	}
	d.frame()
	return d.apply(sent, fix)
}

func (d *NMEA) apply(sent nmeaSentence, fix *Fix) bool {
	switch sent.Type {
	case "GGA":
		return d.applyGGA(sent.Fields, fix)
	case "GLL":
		return d.applyGLL(sent.Fields, fix)
	case "RMC":
		return d.applyRMC(sent.Fields, fix)
	case "VTG":
		return d.applyVTG(sent.Fields, fix)
	case "GSV":
		return d.applyGSV(sent.Fields, fix)
	case "GSA":
		return d.applyGSA(sent.Fields, fix)
	default:
		return false
	}
}

func (d *NMEA) quality() Quality {
	switch {
	case !d.present:
		return QualityNone
	case d.dim3:
		return Quality3D
	default:
		return Quality2D
	}
}

func (d *NMEA) setPresent(p bool, fix *Fix) bool {
	if d.present == p {
		return false
	}
	d.present = p
	fix.setQuality(d.quality())
	return true
}

func (d *NMEA) setDim3(v bool, fix *Fix) bool {
	if d.dim3 == v {
		return false
	}
	d.dim3 = v
	fix.setQuality(d.quality())
	return true
}

// stamp turns a time of day into Unix seconds using the last RMC date, or
// today when no date has been seen.
func (d *NMEA) stamp(tod int64) int64 {
	if d.datestamp != 0 {
		return tod + d.datestamp
	}
	return tod + d.env.today()
}

func (d *NMEA) setTime(field string, fix *Fix) {
	if tod, ok := parseNMEATime(field); ok {
		fix.Time = d.stamp(tod)
	}
}

func setLatLon(latF, latH, lonF, lonH string, fix *Fix) bool {
	lat, latOK := parseNMEALatLon(latF, latH)
	lon, lonOK := parseNMEALatLon(lonF, lonH)
	if !latOK || !lonOK {
		return false
	}
	fix.setCoord(geo.Deg2Rad(lat), geo.Deg2Rad(lon))
	return true
}

// GGA: Global Positioning System Fix Data
// Fields:
//
//	0: talker+type
//	1: time
//	2: latitude
//	3: N/S
//	4: longitude
//	5: E/W
//	6: fix quality (0=invalid)
//	7: number of satellites
//	8: HDOP
//	9: altitude (meters)
func (d *NMEA) applyGGA(f []string, fix *Fix) bool {
	if len(f) < 10 {
		return false
	}
	d.setTime(f[1], fix)
	changed := d.setPresent(nmeaFixIndicator(f[6]), fix)
	if setLatLon(f[2], f[3], f[4], f[5], fix) {
		changed = true
	}
	if hdop, ok := parseFloat(f[8]); ok {
		fix.HDOP = hdop
	}
	if alt, ok := parseFloat(f[9]); ok {
		fix.Alt = alt
	}
	return changed
}

// GLL: Geographic Position
//
//	1: latitude, 2: N/S, 3: longitude, 4: E/W, 5: time, 6: status
func (d *NMEA) applyGLL(f []string, fix *Fix) bool {
	if len(f) < 7 {
		return false
	}
	d.setTime(f[5], fix)
	changed := d.setPresent(nmeaFixIndicator(f[6]), fix)
	if setLatLon(f[1], f[2], f[3], f[4], fix) {
		changed = true
	}
	return changed
}

// RMC: Recommended Minimum Specific GNSS Data
// Fields (NMEA 0183 v2.3):
//
//	0: talker+type
//	1: time (hhmmss.sss)
//	2: status (A=active, V=void)
//	3: latitude (ddmm.mmmm)
//	4: N/S
//	5: longitude (dddmm.mmmm)
//	6: E/W
//	7: speed over ground (knots)
//	8: course over ground (deg)
//	9: date (ddmmyy)
func (d *NMEA) applyRMC(f []string, fix *Fix) bool {
	if len(f) < 10 {
		return false
	}
	if ds, ok := parseNMEADate(f[9]); ok {
		d.datestamp = ds
	}
	d.setTime(f[1], fix)
	changed := d.setPresent(nmeaFixIndicator(f[2]), fix)
	if !d.present {
		// Do not update position from void fixes.
		return changed
	}
	if setLatLon(f[3], f[4], f[5], f[6], fix) {
		changed = true
	}
	if trk, ok := parseFloat(f[8]); ok {
		fix.Bearing = opt.Known(geo.NormalizeDeg(trk))
		fix.Updated |= UpdatedBearing
		changed = true
	}
	if kt, ok := parseFloat(f[7]); ok {
		fix.setVelocity(kt/(knotsPerKPH*3.6), fix.Bearing.Or(0))
		changed = true
	}
	return changed
}

// VTG: Track made good and ground speed
//
//	1: course true, 3: course magnetic, 5: knots, 7: km/h
func (d *NMEA) applyVTG(f []string, fix *Fix) bool {
	if len(f) < 8 {
		return false
	}
	changed := false
	if trk, ok := parseFloat(f[1]); ok {
		fix.Bearing = opt.Known(geo.NormalizeDeg(trk))
		fix.Updated |= UpdatedBearing
		changed = true
	}
	if kph, ok := parseFloat(f[7]); ok {
		fix.setVelocity(kph/3.6, fix.Bearing.Or(0))
		changed = true
	}
	return changed
}

// GSV: Satellites in view
//
//	1: number of messages, 2: message number, 3: satellites in view,
//	then groups of PRN, elevation (deg), azimuth (deg), SNR (dB).
func (d *NMEA) applyGSV(f []string, fix *Fix) bool {
	if len(f) < 4 {
		return false
	}
	nmsg, _ := strconv.Atoi(strings.TrimSpace(f[1]))
	msg, _ := strconv.Atoi(strings.TrimSpace(f[2]))
	now := opt.Known(fix.Time)
	for i := 4; i < len(f); i += 4 {
		svn, err := strconv.Atoi(strings.TrimSpace(f[i]))
		if err != nil {
			continue
		}
		u := SatUpdate{Time: now}
		if v, ok := parseFloat(field(f, i+1)); ok {
			u.Elev = opt.Known(geo.Deg2Rad(v))
		}
		if v, ok := parseFloat(field(f, i+2)); ok {
			u.Azim = opt.Known(geo.Deg2Rad(v))
		}
		if v, err := strconv.Atoi(strings.TrimSpace(field(f, i+3))); err == nil {
			u.SNR = opt.Known(v / 4)
		}
		fix.Sats.Merge(svn, u)
	}
	if msg != nmsg {
		return false
	}
	fix.Updated |= UpdatedSignals | UpdatedSats
	return true
}

// GSA: DOP and active satellites
//
//	1: mode, 2: fix type (1 none, 2 2D, 3 3D), 3-14: PRNs used,
//	15: PDOP, 16: HDOP, 17: VDOP
func (d *NMEA) applyGSA(f []string, fix *Fix) bool {
	if len(f) < 17 {
		return false
	}
	switch strings.TrimSpace(f[2]) {
	case "3":
		d.setDim3(true, fix)
	case "2":
		d.setDim3(false, fix)
	case "1":
		d.setPresent(false, fix)
	}
	fix.Sats.ClearUsed()
	now := opt.Known(fix.Time)
	for i := 3; i <= 14; i++ {
		prn, err := strconv.Atoi(strings.TrimSpace(f[i]))
		if err != nil || prn == 0 {
			continue
		}
		fix.Sats.Merge(prn, SatUpdate{Time: now, Used: opt.Known(true)})
	}
	if hdop, ok := parseFloat(f[16]); ok {
		fix.HDOP = hdop
	}
	fix.Updated |= UpdatedFix | UpdatedSats
	return true
}

func field(f []string, i int) string {
	if i < len(f) {
		return f[i]
	}
	return ""
}

func nmeaFixIndicator(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	switch s[0] {
	case 'A', '1', '2':
		return true
	}
	return false
}

// parseNMEATime parses hhmmss[.sss] into seconds since midnight.
func parseNMEATime(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if len(s) < 6 {
		return 0, false
	}
	h, err1 := strconv.Atoi(s[0:2])
	m, err2 := strconv.Atoi(s[2:4])
	sec, err3 := strconv.Atoi(s[4:6])
	if err1 != nil || err2 != nil || err3 != nil || h > 23 || m > 59 || sec > 60 {
		return 0, false
	}
	return int64(h*3600 + m*60 + sec), true
}

// parseNMEADate parses ddmmyy into Unix seconds at midnight.
func parseNMEADate(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if len(s) != 6 {
		return 0, false
	}
	dd, err1 := strconv.Atoi(s[0:2])
	mm, err2 := strconv.Atoi(s[2:4])
	yy, err3 := strconv.Atoi(s[4:6])
	if err1 != nil || err2 != nil || err3 != nil || mm < 1 || mm > 12 || dd < 1 || dd > 31 {
		return 0, false
	}
	return DateToUnix(2000+yy, mm, dd), true
}

func parseFloat(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// parseNMEALatLon parses NMEA lat/lon in ddmm.mmmm or dddmm.mmmm plus hemisphere.
func parseNMEALatLon(v string, hemi string) (float64, bool) {
	v = strings.TrimSpace(v)
	hemi = strings.TrimSpace(strings.ToUpper(hemi))
	if v == "" || (hemi != "N" && hemi != "S" && hemi != "E" && hemi != "W") {
		return 0, false
	}

	// The last two digits of the integer part are minutes.
	dot := strings.IndexByte(v, '.')
	intPart := v
	if dot != -1 {
		intPart = v[:dot]
	}
	if len(intPart) < 3 {
		return 0, false
	}

	deg, err := strconv.Atoi(intPart[:len(intPart)-2])
	if err != nil {
		return 0, false
	}
	mins, err := strconv.ParseFloat(v[len(intPart)-2:], 64)
	if err != nil {
		return 0, false
	}

	dec := float64(deg) + (mins / 60.0)
	if hemi == "S" || hemi == "W" {
		dec = -dec
	}
	return dec, true
}
