package route

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"gpsapp/internal/geo"
)

// PlanarLine converts planar points back to a lon/lat line string.
func PlanarLine(center geo.Coord, pts []geo.Point) orb.LineString {
	ls := make(orb.LineString, 0, len(pts))
	for _, p := range pts {
		ls = append(ls, planarToOrb(center, p))
	}
	return ls
}

func planarToOrb(center geo.Coord, p geo.Point) orb.Point {
	c := geo.FromPlanar(p, center)
	return orb.Point{c.LonDeg(), c.LatDeg()}
}

// GeoJSON renders the route polyline and its waypoints. An empty route
// yields an empty collection.
func GeoJSON(r *Route) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	if r == nil || len(r.Pts) == 0 {
		return fc
	}

	line := geojson.NewFeature(PlanarLine(r.Center, r.Pts))
	line.Properties["kind"] = "route"
	line.Properties["length_m"] = r.Length()
	fc.Append(line)

	for i, w := range r.Wps {
		f := geojson.NewFeature(planarToOrb(r.Center, r.Pts[w.Index]))
		f.Properties["kind"] = "waypoint"
		f.Properties["waypoint"] = i
		f.Properties["index"] = w.Index
		f.Properties["description"] = w.Desc
		f.Properties["remaining_m"] = r.Dists[w.Index]
		if v, ok := w.Inbound.Get(); ok {
			f.Properties["inbound"] = v
		}
		if v, ok := w.Outbound.Get(); ok {
			f.Properties["outbound"] = v
		}
		fc.Append(f)
	}
	return fc
}
