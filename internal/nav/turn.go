package nav

import (
	"math"

	"gpsapp/internal/opt"
	"gpsapp/internal/route"
)

// Classify names the manoeuvre for a heading change in degrees, negative to
// the left.
func Classify(turn float64) string {
	side := "RIGHT"
	if turn < 0 {
		side = "LEFT"
	}
	a := math.Abs(turn)
	switch {
	case a <= 5:
		return "Continue onto"
	case a <= 55:
		return "Bear " + side + " onto"
	case a > 130:
		return "Turn sharply " + side + " onto"
	default:
		return "Turn " + side + " onto"
	}
}

// normalizeTurn maps d into [-180, 180).
func normalizeTurn(d float64) float64 {
	d = math.Mod(d+180, 360)
	if d < 0 {
		d += 360
	}
	return d - 180
}

// Instruction describes waypoint i. The live bearing replaces the inbound
// heading once the vehicle is at the waypoint's point.
func Instruction(r *route.Route, i, closest int, live opt.Value[float64]) string {
	w, ok := r.Waypoint(i)
	if !ok {
		return ""
	}
	switch {
	case r.IsLast(w):
		return "End at " + w.Desc
	case r.IsFirst(w):
		return "Start at " + w.Desc
	}

	inbound := w.Inbound
	if w.Index == closest && live.IsKnown() {
		inbound = live
	}
	in, inOK := inbound.Get()
	out, outOK := w.Outbound.Get()
	if !inOK || !outOK {
		return "Continue onto " + w.Desc
	}
	return Classify(normalizeTurn(out-in)) + " " + w.Desc
}
