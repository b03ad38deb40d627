package nav

import (
	"sync/atomic"

	"gpsapp/internal/geo"
	"gpsapp/internal/gps"
	"gpsapp/internal/opt"
	"gpsapp/internal/route"
)

// StatusNoRoute is reported while no usable route is loaded.
const (
	StatusNoRoute = "No route loaded"
	StatusNoFix   = "Waiting for fix"
	StatusOK      = "ok"
)

// DefaultUpcoming is the length of the upcoming waypoint list.
const DefaultUpcoming = 4

type Config struct {
	Units       geo.Units
	VMGShift    uint
	TrailPoints int
	Upcoming    int
}

// Counters are safe to read from any goroutine.
type Counters struct {
	Projections uint64 `json:"projections"`
	Matches     uint64 `json:"matches"`
}

// Upcoming is one entry of the look-ahead list.
type Upcoming struct {
	Waypoint    int    `json:"waypoint"`
	Desc        string `json:"desc"`
	Instruction string `json:"instruction"`
	// Distance is measured along the route from the vehicle; Leg from the
	// previous entry.
	Distance     int    `json:"distance_m"`
	Leg          int    `json:"leg_m"`
	DistanceText string `json:"distance"`
}

// Guidance is a point-in-time copy of everything a display needs.
type Guidance struct {
	Status string `json:"status"`

	Time        int64     `json:"time"`
	Quality     string    `json:"quality"`
	HDOP        float64   `json:"hdop"`
	SatsTracked int       `json:"sats_tracked"`
	SatsInUse   int       `json:"sats_in_use"`
	HavePos     bool      `json:"have_position"`
	LatDeg      float64   `json:"lat"`
	LonDeg      float64   `json:"lon"`
	Position    geo.Point `json:"position"`
	Bearing     *float64  `json:"bearing,omitempty"`
	SpeedMPS    float64   `json:"speed_mps"`

	Remaining     int        `json:"remaining_m"`
	RemainingText string     `json:"remaining"`
	Closest       int        `json:"closest"`
	Next          int        `json:"next"`
	Instruction   string     `json:"instruction"`
	Target        *geo.Point `json:"target,omitempty"`
	VMG           int        `json:"vmg_mph"`
	ETA           string     `json:"eta"`
	Upcoming      []Upcoming `json:"upcoming"`
}

// Navigator is the navigation context owned by the poll loop: the active
// route, match state, VMG average and trail. Only the counters may be read
// concurrently.
type Navigator struct {
	cfg Config

	route     *route.Route
	center    geo.Coord
	centerSet bool

	match Matcher
	vmg   *VMG
	trail *Trail

	fix     gps.Fix
	pos     geo.Point
	havePos bool

	projections atomic.Uint64
	matches     atomic.Uint64
}

func New(cfg Config) *Navigator {
	if cfg.Upcoming <= 0 {
		cfg.Upcoming = DefaultUpcoming
	}
	return &Navigator{
		cfg:   cfg,
		vmg:   NewVMG(cfg.VMGShift),
		trail: NewTrail(cfg.TrailPoints),
	}
}

// SetRoute discards the current route and match state, then installs r.
// A nil or empty r leaves the navigator with no route.
func (n *Navigator) SetRoute(r *route.Route) {
	n.route = nil
	n.match = Matcher{}
	n.vmg.Reset()

	if r.Empty() {
		return
	}
	if !n.centerSet || n.center != r.Center {
		n.trail.Reset()
		n.center = r.Center
		n.centerSet = true
		if n.havePos {
			n.pos = geo.ToPlanar(n.fix.Coord(), n.center)
			n.projections.Add(1)
			n.trail.Add(n.pos)
		}
	}
	n.route = r
	n.match.Reset(r)
	if n.havePos {
		n.rematch()
	}
}

func (n *Navigator) Route() *route.Route { return n.route }

// Center is the projection center, which is the route's or else the first
// fix seen.
func (n *Navigator) Center() (geo.Coord, bool) { return n.center, n.centerSet }

// Process consumes one decoding pass worth of updates. It reports whether
// the position moved.
func (n *Navigator) Process(fix *gps.Fix) bool {
	n.fix = *fix
	if !fix.Updated.Has(gps.UpdatedCoord) {
		return false
	}
	if !n.centerSet {
		n.center = fix.Coord()
		n.centerSet = true
	}
	n.pos = geo.ToPlanar(fix.Coord(), n.center)
	n.projections.Add(1)
	n.havePos = true
	n.trail.Add(n.pos)
	n.rematch()
	return true
}

func (n *Navigator) rematch() {
	if !n.match.Match(n.pos, n.fix.Bearing) {
		return
	}
	n.matches.Add(1)
	if target, ok := n.match.Target(); ok {
		n.vmg.Add(Sample(n.pos, target, n.fix.East, n.fix.North))
	}
}

// Skip moves the upcoming waypoint forward or back by delta.
func (n *Navigator) Skip(delta int) {
	if n.route.Empty() {
		return
	}
	n.match.Skip(delta)
	if n.havePos && n.match.Match(n.pos, n.fix.Bearing) {
		n.matches.Add(1)
	}
}

func (n *Navigator) Counters() Counters {
	return Counters{Projections: n.projections.Load(), Matches: n.matches.Load()}
}

// Trail returns the breadcrumb positions, oldest first.
func (n *Navigator) Trail() []geo.Point { return n.trail.Points() }

// WaypointDistance is the distance along the route to waypoint i, where -1
// is the final waypoint.
func (n *Navigator) WaypointDistance(i int) (int, bool) {
	if n.route.Empty() {
		return 0, false
	}
	return n.match.WaypointDistance(i)
}

func (n *Navigator) Guidance() Guidance {
	g := Guidance{
		Time:        n.fix.Time,
		Quality:     n.fix.Quality.String(),
		HDOP:        n.fix.HDOP,
		SatsTracked: n.fix.Sats.Tracked(),
		SatsInUse:   n.fix.Sats.InUse(),
		HavePos:     n.havePos,
		SpeedMPS:    n.fix.Speed(),
		Upcoming:    []Upcoming{},
	}
	if n.havePos {
		g.LatDeg = geo.Rad2Deg(n.fix.Lat)
		g.LonDeg = geo.Rad2Deg(n.fix.Lon)
		g.Position = n.pos
	}
	if b, ok := n.fix.Bearing.Get(); ok {
		g.Bearing = &b
	}

	switch {
	case n.route.Empty():
		g.Status = StatusNoRoute
		return g
	case !n.havePos:
		g.Status = StatusNoFix
	default:
		g.Status = StatusOK
	}

	r := n.route
	m := &n.match
	g.Remaining = m.Total
	g.RemainingText = geo.FormatDistance(m.Total, n.cfg.Units)
	g.Closest = m.Closest
	g.Next = m.Next
	g.Instruction = Instruction(r, m.Next, m.Closest, n.liveBearing())
	if t, ok := m.Target(); ok {
		g.Target = &t
	}
	g.VMG = n.vmg.Average()
	g.ETA = ETA(m.Total, g.VMG)

	prev := 0
	for i := m.Next; i < len(r.Wps) && len(g.Upcoming) < n.cfg.Upcoming; i++ {
		d, _ := m.WaypointDistance(i)
		if d < 0 {
			d = 0
		}
		g.Upcoming = append(g.Upcoming, Upcoming{
			Waypoint:     i,
			Desc:         r.Wps[i].Desc,
			Instruction:  Instruction(r, i, m.Closest, n.liveBearing()),
			Distance:     d,
			Leg:          d - prev,
			DistanceText: geo.FormatDistance(d, n.cfg.Units),
		})
		prev = d
	}
	return g
}

func (n *Navigator) liveBearing() opt.Value[float64] {
	if !n.havePos {
		return opt.Unknown[float64]()
	}
	return n.fix.Bearing
}
