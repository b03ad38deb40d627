// Package geo projects WGS84 coordinates onto a local Transverse Mercator plane
// and provides the integer distance and bearing primitives the route matcher
// runs on.
package geo

import (
	"math"
	"sync/atomic"

	"gpsapp/internal/opt"
)

const (
	wgs84A = 6378137.0
	// es = f*(2-f), et2 = es/(1-es) for f = 1/298.257223563.
	wgs84Es  = 0.0066943799901413165
	wgs84Et2 = 0.0067394967422764341
	tmK0     = 0.9996
)

// Coord is a geodetic coordinate in radians.
type Coord struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Point is a planar coordinate in meters relative to a projection center.
type Point struct {
	X int32 `json:"x"`
	Y int32 `json:"y"`
}

// CoordDeg builds a Coord from degrees.
func CoordDeg(latDeg, lonDeg float64) Coord {
	return Coord{Lat: Deg2Rad(latDeg), Lon: Deg2Rad(lonDeg)}
}

func (c Coord) LatDeg() float64 { return Rad2Deg(c.Lat) }
func (c Coord) LonDeg() float64 { return Rad2Deg(c.Lon) }

func Deg2Rad(d float64) float64 { return d * math.Pi / 180.0 }
func Rad2Deg(r float64) float64 { return r * 180.0 / math.Pi }

// NormalizeDeg maps d into [0, 360).
func NormalizeDeg(d float64) float64 {
	d = math.Mod(d, 360.0)
	if d < 0 {
		d += 360.0
	}
	return d
}

// Stats counts primitive calls since process start.
type Stats struct {
	ToPlanar   uint64 `json:"to_planar"`
	FromPlanar uint64 `json:"from_planar"`
	Distance   uint64 `json:"distance"`
	Bearing    uint64 `json:"bearing"`
}

var (
	statToPlanar   atomic.Uint64
	statFromPlanar atomic.Uint64
	statDistance   atomic.Uint64
	statBearing    atomic.Uint64
)

func Counters() Stats {
	return Stats{
		ToPlanar:   statToPlanar.Load(),
		FromPlanar: statFromPlanar.Load(),
		Distance:   statDistance.Load(),
		Bearing:    statBearing.Load(),
	}
}

// meridianArc is the distance along the meridian from the equator to phi.
func meridianArc(phi float64) float64 {
	if phi == 0 {
		return 0
	}
	es := wgs84Es
	es2 := es * es
	es3 := es2 * es
	return wgs84A * ((1.0-es/4.0-3.0*es2/64.0-5.0*es3/256.0)*phi -
		(3.0*es/8.0+3.0*es2/32.0+45.0*es3/1024.0)*math.Sin(2.0*phi) +
		(15.0*es2/256.0+45.0*es3/1024.0)*math.Sin(4.0*phi) -
		(35.0*es3/3072.0)*math.Sin(6.0*phi))
}

// ToPlanar projects p onto the Transverse Mercator plane centered on center.
// Results are truncated toward zero.
func ToPlanar(p, center Coord) Point {
	statToPlanar.Add(1)

	phi := p.Lat
	m := meridianArc(phi)
	m0 := meridianArc(center.Lat)

	sinPhi := math.Sin(phi)
	cosPhi := math.Cos(phi)
	tanPhi := math.Tan(phi)

	n := wgs84A / math.Sqrt(1.0-wgs84Es*sinPhi*sinPhi)
	t := tanPhi * tanPhi
	c := wgs84Et2 * cosPhi * cosPhi
	a := (p.Lon - center.Lon) * cosPhi
	a2 := a * a
	a3 := a2 * a
	a4 := a3 * a
	a5 := a4 * a
	a6 := a5 * a

	x := tmK0 * n * (a + (1.0-t+c)*a3/6.0 +
		(5.0-18.0*t+t*t+72.0*c-58.0*wgs84Et2)*a5/120.0)
	y := tmK0 * (m - m0 + n*tanPhi*(a2/2.0+
		(5.0-t+9.0*c+4.0*c*c)*a4/24.0+
		(61.0-58.0*t+t*t+600.0*c-330.0*wgs84Et2)*a6/720.0))

	return Point{X: int32(x), Y: int32(y)}
}

// FromPlanar is the inverse of ToPlanar (footpoint latitude series).
func FromPlanar(p Point, center Coord) Coord {
	statFromPlanar.Add(1)

	es := wgs84Es
	es2 := es * es
	es3 := es2 * es

	m := meridianArc(center.Lat) + float64(p.Y)/tmK0
	mu := m / (wgs84A * (1.0 - es/4.0 - 3.0*es2/64.0 - 5.0*es3/256.0))

	r := math.Sqrt(1.0 - es)
	e1 := (1.0 - r) / (1.0 + r)
	e12 := e1 * e1
	e13 := e12 * e1
	e14 := e13 * e1

	phi1 := mu + (3.0*e1/2.0-27.0*e13/32.0)*math.Sin(2.0*mu) +
		(21.0*e12/16.0-55.0*e14/32.0)*math.Sin(4.0*mu) +
		(151.0*e13/96.0)*math.Sin(6.0*mu) +
		(1097.0*e14/512.0)*math.Sin(8.0*mu)

	sin1 := math.Sin(phi1)
	cos1 := math.Cos(phi1)
	tan1 := math.Tan(phi1)

	c1 := wgs84Et2 * cos1 * cos1
	t1 := tan1 * tan1
	w := 1.0 - es*sin1*sin1
	n1 := wgs84A / math.Sqrt(w)
	r1 := wgs84A * (1.0 - es) / (w * math.Sqrt(w))
	d := float64(p.X) / (n1 * tmK0)
	d2 := d * d
	d3 := d2 * d
	d4 := d3 * d
	d5 := d4 * d
	d6 := d5 * d

	lat := phi1 - (n1*tan1/r1)*(d2/2.0-
		(5.0+3.0*t1+10.0*c1-4.0*c1*c1-9.0*wgs84Et2)*d4/24.0+
		(61.0+90.0*t1+298.0*c1+45.0*t1*t1-252.0*wgs84Et2-3.0*c1*c1)*d6/720.0)
	lon := center.Lon + (d-(1.0+2.0*t1+c1)*d3/6.0+
		(5.0-2.0*c1+28.0*t1-3.0*c1*c1+8.0*wgs84Et2+24.0*t1*t1)*d5/120.0)/cos1

	return Coord{Lat: lat, Lon: lon}
}

// Dist2 is the squared planar distance between a and b.
func Dist2(a, b Point) int64 {
	statDistance.Add(1)
	dx := int64(a.X) - int64(b.X)
	dy := int64(a.Y) - int64(b.Y)
	return dx*dx + dy*dy
}

// Dist is the planar distance between a and b in meters.
func Dist(a, b Point) float64 {
	return math.Sqrt(float64(Dist2(a, b)))
}

// Bearing returns the direction from a to b in radians, clockwise from north
// (+Y). ok is false when a == b.
func Bearing(a, b Point) (rad float64, ok bool) {
	dx := int64(b.X) - int64(a.X)
	dy := int64(b.Y) - int64(a.Y)
	if dx == 0 && dy == 0 {
		return 0, false
	}
	statBearing.Add(1)
	return math.Atan2(float64(dx), float64(dy)), true
}

// BearingDeg is Bearing in degrees within [0, 360).
func BearingDeg(a, b Point) (float64, bool) {
	rad, ok := Bearing(a, b)
	if !ok {
		return 0, false
	}
	return NormalizeDeg(Rad2Deg(rad)), true
}

// Towards reports whether target lies within +/-90 degrees of headingDeg as
// seen from origin. An unknown heading or a target equal to origin never
// filters anything out.
func Towards(origin, target Point, headingDeg opt.Value[float64]) bool {
	dir, known := headingDeg.Get()
	if !known {
		return true
	}
	b, ok := BearingDeg(origin, target)
	if !ok {
		return true
	}
	diff := NormalizeDeg(b - dir)
	return diff <= 90 || diff >= 270
}
