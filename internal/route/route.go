// Package route holds the planar route polyline that guidance is computed
// against, and reads it from its text and binary file formats.
package route

import (
	"errors"
	"fmt"

	"gpsapp/internal/geo"
	"gpsapp/internal/opt"
)

var (
	// ErrNoRoute means no route file was given or it could not be opened.
	ErrNoRoute = errors.New("route: no route loaded")
	// ErrTruncated is returned with the partial route read before the file
	// ended.
	ErrTruncated = errors.New("route: truncated")
)

// Waypoint is a named point along the route. Headings are degrees within
// [0, 360) and unknown at the ends of the polyline.
type Waypoint struct {
	Index    int                `json:"index"`
	Desc     string             `json:"desc"`
	Inbound  opt.Value[float64] `json:"-"`
	Outbound opt.Value[float64] `json:"-"`
}

// Route is immutable once built.
type Route struct {
	Center geo.Coord
	Pts    []geo.Point
	// Dists[i] is the distance along the polyline from Pts[i] to the end.
	Dists []int
	Wps   []Waypoint
}

// New builds a route and precomputes distances and waypoint headings.
// Waypoint indices must be strictly increasing and within pts.
func New(center geo.Coord, pts []geo.Point, wps []Waypoint) (*Route, error) {
	prev := -1
	for i, w := range wps {
		if w.Index <= prev || w.Index >= len(pts) {
			return nil, fmt.Errorf("route: waypoint %d has index %d (points=%d, previous=%d)", i, w.Index, len(pts), prev)
		}
		prev = w.Index
	}

	r := &Route{
		Center: center,
		Pts:    pts,
		Dists:  remainingDistances(pts),
		Wps:    make([]Waypoint, len(wps)),
	}
	for i, w := range wps {
		w.Inbound = r.headingInto(w.Index)
		w.Outbound = r.headingOutOf(w.Index)
		r.Wps[i] = w
	}
	return r, nil
}

func remainingDistances(pts []geo.Point) []int {
	dists := make([]int, len(pts))
	acc := 0.0
	for i := len(pts) - 2; i >= 0; i-- {
		acc += geo.Dist(pts[i], pts[i+1])
		dists[i] = int(acc)
	}
	return dists
}

// headingInto is the bearing of the segment arriving at point i, skipping
// repeated points.
func (r *Route) headingInto(i int) opt.Value[float64] {
	for j := i - 1; j >= 0; j-- {
		if b, ok := geo.BearingDeg(r.Pts[j], r.Pts[i]); ok {
			return opt.Known(b)
		}
	}
	return opt.Unknown[float64]()
}

func (r *Route) headingOutOf(i int) opt.Value[float64] {
	for j := i + 1; j < len(r.Pts); j++ {
		if b, ok := geo.BearingDeg(r.Pts[i], r.Pts[j]); ok {
			return opt.Known(b)
		}
	}
	return opt.Unknown[float64]()
}

// Empty reports whether there is nothing to navigate. A nil route is empty.
func (r *Route) Empty() bool {
	return r == nil || len(r.Pts) == 0 || len(r.Wps) == 0
}

// Length is the total polyline length in meters.
func (r *Route) Length() int {
	if r == nil || len(r.Dists) == 0 {
		return 0
	}
	return r.Dists[0]
}

// Waypoint resolves i, where -1 means the final waypoint.
func (r *Route) Waypoint(i int) (Waypoint, bool) {
	if r == nil {
		return Waypoint{}, false
	}
	if i == -1 {
		i = len(r.Wps) - 1
	}
	if i < 0 || i >= len(r.Wps) {
		return Waypoint{}, false
	}
	return r.Wps[i], true
}

// IsFirst and IsLast report whether the waypoint sits on the first or last
// point of the polyline.
func (r *Route) IsFirst(w Waypoint) bool { return w.Index == 0 }
func (r *Route) IsLast(w Waypoint) bool  { return w.Index == len(r.Pts)-1 }
