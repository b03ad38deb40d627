package gps

import (
	"bufio"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	golgeo "github.com/kellydunn/golang-geo"

	"gpsapp/internal/geo"
	"gpsapp/internal/opt"
)

// TracklogTimeLayout is the timestamp layout of a tracklog "T" line.
const TracklogTimeLayout = "01/02/2006 15:04:05"

var ErrNoTracklog = errors.New("tracklog: no samples")

type trackSample struct {
	time     int64
	lat, lon float64 // degrees
}

// maxTrackLines bounds how many log lines one Update may consume.
const maxTrackLines = 64

// Tracklog replays a recorded drive. Lines look like
//
//	T	09/14/2002 13:52:20	39.6513319	-83.5433006
//
// Each Update advances virtual time by one second, ignoring the byte it was
// given, and places the fix on the line between the two samples that bracket
// it. Lines starting with '$' are NMEA sentences; they are decoded into the
// fix as they are reached, and a log of only NMEA plays back one changed
// sentence per Update.
type Tracklog struct {
	counters
	env  Env
	sc   *bufio.Scanner
	nmea *NMEA

	pending string
	started bool
	now     int64
	prev    trackSample
	next    *trackSample
	eof     bool
}

type lineKind int

const (
	lineNone lineKind = iota
	lineSample
	lineNMEA
)

func NewTracklog(env Env) *Tracklog {
	t := &Tracklog{env: env, nmea: NewNMEA(Env{Now: env.Now})}
	if env.Tracklog != nil {
		t.sc = bufio.NewScanner(env.Tracklog)
	}
	return t
}

// Init checks that the log holds at least one sample or sentence. The line
// found is kept for the first Update.
func (t *Tracklog) Init() error {
	if t.sc == nil {
		return fmt.Errorf("tracklog: no input")
	}
	if t.started || t.pending != "" {
		return nil
	}
	for t.sc.Scan() {
		if line := t.sc.Text(); strings.HasPrefix(line, "$") || strings.HasPrefix(line, "T") {
			t.pending = line
			return nil
		}
	}
	t.eof = true
	return ErrNoTracklog
}

func (t *Tracklog) Update(_ byte, fix *Fix) bool {
	if !t.started {
		s, kind := t.read(fix)
		switch kind {
		case lineNMEA:
			return true
		case lineNone:
			return false
		}
		t.prev, t.now, t.started = s, s.time, true
	}

	now := t.now + 1
	for t.next == nil || now >= t.next.time {
		if t.next != nil {
			t.prev = *t.next
			t.next = nil
		}
		s, kind := t.read(fix)
		switch kind {
		case lineNMEA:
			return true
		case lineNone:
			return false
		}
		t.next = &s
	}
	t.now = now

	cur := *t.next
	ratio := float64(t.now-t.prev.time) / float64(cur.time-t.prev.time)
	lat := t.prev.lat + (cur.lat-t.prev.lat)*ratio
	lon := t.prev.lon + (cur.lon-t.prev.lon)*ratio

	fix.Time = t.now
	fix.setCoord(geo.Deg2Rad(lat), geo.Deg2Rad(lon))
	fix.setQuality(Quality2D)

	a := golgeo.NewPoint(t.prev.lat, t.prev.lon)
	b := golgeo.NewPoint(cur.lat, cur.lon)
	if a.Lat() != b.Lat() || a.Lng() != b.Lng() {
		bearing := geo.NormalizeDeg(a.BearingTo(b))
		speed := a.GreatCircleDistance(b) * 1000 / float64(cur.time-t.prev.time)
		fix.Bearing = opt.Known(bearing)
		fix.setVelocity(speed, bearing)
	} else {
		fix.Bearing = opt.Unknown[float64]()
		fix.setVelocity(0, 0)
	}
	fix.Updated |= UpdatedBearing
	t.frame()
	return true
}

func (t *Tracklog) line() (string, bool) {
	if t.pending != "" {
		l := t.pending
		t.pending = ""
		return l, true
	}
	if t.sc == nil || t.eof {
		return "", false
	}
	if !t.sc.Scan() {
		t.eof = true
		return "", false
	}
	return t.sc.Text(), true
}

// read scans forward to the next usable sample or to the next NMEA sentence
// that changed fix, whichever comes first. It gives up after maxTrackLines
// lines and resumes on the next call.
func (t *Tracklog) read(fix *Fix) (trackSample, lineKind) {
	for i := 0; i < maxTrackLines; i++ {
		line, ok := t.line()
		if !ok {
			return trackSample{}, lineNone
		}
		switch {
		case strings.HasPrefix(line, "$"):
			before := fix.Updated
			changed := false
			for j := 0; j < len(line); j++ {
				changed = t.nmea.Update(line[j], fix) || changed
			}
			changed = t.nmea.Update('\n', fix) || changed
			if changed || fix.Updated != before {
				return trackSample{}, lineNMEA
			}
		case strings.HasPrefix(line, "T"):
			s, err := parseTrackLine(line)
			if err != nil {
				t.drop()
				continue
			}
			// Samples must move forward in time.
			if t.started && s.time <= t.prev.time {
				t.drop()
				continue
			}
			return s, lineSample
		}
	}
	return trackSample{}, lineNone
}

func parseTrackLine(line string) (trackSample, error) {
	f := strings.Fields(line)
	if len(f) < 5 || f[0] != "T" {
		return trackSample{}, fmt.Errorf("tracklog: malformed line %q", line)
	}
	ts, err := time.ParseInLocation(TracklogTimeLayout, f[1]+" "+f[2], time.UTC)
	if err != nil {
		return trackSample{}, fmt.Errorf("tracklog: bad time: %w", err)
	}
	lat, err := strconv.ParseFloat(f[3], 64)
	if err != nil {
		return trackSample{}, fmt.Errorf("tracklog: bad latitude: %w", err)
	}
	lon, err := strconv.ParseFloat(f[4], 64)
	if err != nil {
		return trackSample{}, fmt.Errorf("tracklog: bad longitude: %w", err)
	}
	return trackSample{time: ts.Unix(), lat: lat, lon: lon}, nil
}

// FormatTrackLine renders one sample in the tracklog line format.
func FormatTrackLine(t time.Time, latDeg, lonDeg float64) string {
	return fmt.Sprintf("T\t%s\t%.7f\t%.7f", t.UTC().Format(TracklogTimeLayout), latDeg, lonDeg)
}
