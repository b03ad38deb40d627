package gps

import (
	"math"

	"gpsapp/internal/geo"
	"gpsapp/internal/opt"
)

type Quality int

const (
	QualityNone Quality = iota
	Quality2D
	Quality3D
)

func (q Quality) String() string {
	switch q {
	case Quality2D:
		return "2d"
	case Quality3D:
		return "3d"
	default:
		return "none"
	}
}

// Updated flags which categories of a Fix a decoder wrote since the consumer
// last cleared them.
type Updated uint8

const (
	UpdatedCoord Updated = 1 << iota
	UpdatedBearing
	UpdatedSpeed
	UpdatedFix
	UpdatedSignals
	UpdatedSats
)

func (u Updated) Has(f Updated) bool { return u&f != 0 }

// Fix is the canonical receiver state. It is written by exactly one decoder
// at a time and read by the navigation loop.
type Fix struct {
	// Time is seconds since the Unix epoch.
	Time    int64
	Quality Quality
	HDOP    float64

	// Lat and Lon are radians, WGS84.
	Lat float64
	Lon float64
	Alt float64

	// Bearing is degrees clockwise from true north in [0, 360).
	Bearing opt.Value[float64]

	// Velocity components in m/s.
	East  float64
	North float64
	Up    float64

	Sats SatTable

	Updated Updated
}

func (f *Fix) Coord() geo.Coord {
	return geo.Coord{Lat: f.Lat, Lon: f.Lon}
}

func (f *Fix) ClearUpdated() {
	f.Updated = 0
}

// Speed is the horizontal ground speed in m/s.
func (f *Fix) Speed() float64 {
	return math.Hypot(f.East, f.North)
}

func (f *Fix) setCoord(lat, lon float64) {
	f.Lat = lat
	f.Lon = lon
	f.Updated |= UpdatedCoord
}

func (f *Fix) setQuality(q Quality) {
	if f.Quality != q {
		f.Quality = q
		f.Updated |= UpdatedFix
	}
}

// setBearingFromVelocity derives the heading from the velocity vector, or
// marks it unknown when the receiver has no usable fix.
func (f *Fix) setBearingFromVelocity(valid bool) {
	if !valid {
		f.Bearing = opt.Unknown[float64]()
	} else {
		f.Bearing = opt.Known(geo.NormalizeDeg(geo.Rad2Deg(math.Atan2(f.East, f.North))))
	}
	f.Updated |= UpdatedBearing
}

// setVelocity splits a ground speed along bearingDeg into east/north
// components.
func (f *Fix) setVelocity(speed, bearingDeg float64) {
	b := geo.Deg2Rad(bearingDeg)
	f.East = math.Sin(b) * speed
	f.North = math.Cos(b) * speed
	f.Up = 0
	f.Updated |= UpdatedSpeed
}
