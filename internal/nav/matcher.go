// Package nav matches live fixes against a route and produces guidance:
// remaining distance, turn instructions, velocity made good and ETA.
package nav

import (
	"math"

	"gpsapp/internal/geo"
	"gpsapp/internal/opt"
	"gpsapp/internal/route"
)

// Matcher tracks progress along a route. It is not safe for concurrent use.
type Matcher struct {
	Route *route.Route

	// Closest is the index of the route point nearest the last fix.
	Closest int
	// Next is the index into Route.Wps of the upcoming waypoint.
	Next int
	// Total is the remaining distance to the end of the route in meters.
	Total int
}

// Reset rewinds the matcher to the start of r.
func (m *Matcher) Reset(r *route.Route) {
	m.Route = r
	m.Closest = 0
	m.Next = 0
	m.Total = r.Length()
}

// Match updates the matcher for a fix at pos travelling along heading
// (degrees, possibly unknown). It does nothing on an empty route and reports
// whether a match was made.
func (m *Matcher) Match(pos geo.Point, heading opt.Value[float64]) bool {
	r := m.Route
	if r.Empty() {
		return false
	}
	pts := r.Pts
	m.Closest = clamp(m.Closest, 0, len(pts)-1)
	m.Next = clamp(m.Next, 0, len(r.Wps)-1)

	end := r.Wps[m.Next].Index
	if end < m.Closest {
		end = m.Closest
	}
	minIdx := m.Closest
	minD := geo.Dist2(pos, pts[minIdx])
	for i := minIdx + 1; i <= end; i++ {
		if d := geo.Dist2(pos, pts[i]); d < minD {
			minIdx, minD = i, d
		}
	}

	// Already past the nearest point: the following one is ahead of us
	// and no farther away.
	if minIdx+1 < len(pts) &&
		!geo.Towards(pos, pts[minIdx], heading) &&
		geo.Towards(pos, pts[minIdx+1], heading) {
		if d := geo.Dist2(pos, pts[minIdx+1]); d <= minD {
			minIdx, minD = minIdx+1, d
		}
	}
	m.Closest = minIdx

	for m.Next < len(r.Wps)-1 && m.Closest > r.Wps[m.Next].Index {
		m.Next++
	}

	m.Total = int(math.Sqrt(float64(minD))) + r.Dists[m.Closest]
	return true
}

// Skip moves the upcoming waypoint by delta, clamped to the route, and
// re-seeds the closest point at the waypoint before it.
func (m *Matcher) Skip(delta int) {
	r := m.Route
	if r.Empty() {
		return
	}
	m.Next = clamp(m.Next+delta, 0, len(r.Wps)-1)
	if m.Next > 0 {
		m.Closest = r.Wps[m.Next-1].Index
	} else {
		m.Closest = 0
	}
}

// Target is the planar point of the upcoming waypoint.
func (m *Matcher) Target() (geo.Point, bool) {
	w, ok := m.Route.Waypoint(m.Next)
	if !ok {
		return geo.Point{}, false
	}
	return m.Route.Pts[w.Index], true
}

// WaypointDistance is the distance along the route from the last fix to
// waypoint i, where -1 is the final waypoint.
func (m *Matcher) WaypointDistance(i int) (int, bool) {
	w, ok := m.Route.Waypoint(i)
	if !ok {
		return 0, false
	}
	return m.Total - m.Route.Dists[w.Index], true
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
