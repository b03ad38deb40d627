package sim

import (
	"math"
	"time"

	"gpsapp/internal/geo"
	"gpsapp/internal/route"
)

// Drive moves a vehicle along a route at a constant speed. It stops at the
// last point.
type Drive struct {
	route    *route.Route
	speedMPS float64
	cum      []float64 // distance from the first point
}

func NewDrive(r *route.Route, speedMPS float64) *Drive {
	d := &Drive{route: r, speedMPS: speedMPS}
	if r == nil || len(r.Pts) == 0 {
		return d
	}
	d.cum = make([]float64, len(r.Pts))
	for i := 1; i < len(r.Pts); i++ {
		d.cum[i] = d.cum[i-1] + geo.Dist(r.Pts[i-1], r.Pts[i])
	}
	return d
}

// Length is the distance driven from start to finish.
func (d *Drive) Length() float64 {
	if len(d.cum) == 0 {
		return 0
	}
	return d.cum[len(d.cum)-1]
}

// Sample is the simulated vehicle state at some elapsed time.
type Sample struct {
	Pos        geo.Point
	Coord      geo.Coord
	BearingDeg float64
	SpeedMPS   float64
	Done       bool
}

func (d *Drive) At(elapsed time.Duration) Sample {
	if len(d.cum) == 0 {
		return Sample{Done: true}
	}
	pts := d.route.Pts
	dist := d.speedMPS * elapsed.Seconds()
	if dist >= d.Length() {
		last := len(pts) - 1
		return Sample{
			Pos:        pts[last],
			Coord:      geo.FromPlanar(pts[last], d.route.Center),
			BearingDeg: d.segmentBearing(last - 1),
			Done:       true,
		}
	}

	i := 0
	for i+1 < len(d.cum) && d.cum[i+1] <= dist {
		i++
	}
	seg := d.cum[i+1] - d.cum[i]
	frac := 0.0
	if seg > 0 {
		frac = (dist - d.cum[i]) / seg
	}
	a, b := pts[i], pts[i+1]
	p := geo.Point{
		X: int32(math.Round(float64(a.X) + frac*float64(b.X-a.X))),
		Y: int32(math.Round(float64(a.Y) + frac*float64(b.Y-a.Y))),
	}
	return Sample{
		Pos:        p,
		Coord:      geo.FromPlanar(p, d.route.Center),
		BearingDeg: d.segmentBearing(i),
		SpeedMPS:   d.speedMPS,
	}
}

func (d *Drive) segmentBearing(i int) float64 {
	pts := d.route.Pts
	for ; i >= 0 && i+1 < len(pts); i-- {
		if b, ok := geo.BearingDeg(pts[i], pts[i+1]); ok {
			return b
		}
	}
	return 0
}
