package sim

import (
	"fmt"
	"math"
	"strings"
	"time"

	"gpsapp/internal/gps"
)

const knotsPerMPS = 1.943844

// Sentences renders a sample as the GGA, GSA and RMC burst a receiver sends
// once per second.
func Sentences(now time.Time, s Sample) string {
	now = now.UTC()
	tod := now.Format("150405") + ".00"
	lat, ns := nmeaAngle(s.Coord.LatDeg(), 2, "N", "S")
	lon, ew := nmeaAngle(s.Coord.LonDeg(), 3, "E", "W")

	var b strings.Builder
	b.WriteString(gps.NMEACommand(fmt.Sprintf("GPGGA,%s,%s,%s,%s,%s,1,08,0.9,12.0,M,0.0,M,,", tod, lat, ns, lon, ew)))
	b.WriteString(gps.NMEACommand("GPGSA,A,3,02,05,07,12,15,18,24,29,,,,,1.6,0.9,1.3"))
	b.WriteString(gps.NMEACommand(fmt.Sprintf("GPRMC,%s,A,%s,%s,%s,%s,%.1f,%.1f,%s,,",
		tod, lat, ns, lon, ew, s.SpeedMPS*knotsPerMPS, s.BearingDeg, now.Format("020106"))))
	return b.String()
}

// nmeaAngle formats degrees as d..dmm.mmmm with the given number of degree
// digits.
func nmeaAngle(deg float64, degDigits int, pos, neg string) (string, string) {
	hemi := pos
	if deg < 0 {
		hemi = neg
		deg = -deg
	}
	// Work in 1e-4 minutes so rounding cannot produce 60 minutes.
	units := int64(math.Round(deg * 60 * 10000))
	d := units / 600000
	rem := units % 600000
	return fmt.Sprintf("%0*d%02d.%04d", degDigits, d, rem/10000, rem%10000), hemi
}
