package nav

import "gpsapp/internal/geo"

// DefaultTrailPoints is the breadcrumb capacity.
const DefaultTrailPoints = 500

// Trail is a ring of the most recent distinct positions.
type Trail struct {
	buf  []geo.Point
	head int
	n    int
}

func NewTrail(capacity int) *Trail {
	if capacity <= 0 {
		capacity = DefaultTrailPoints
	}
	return &Trail{buf: make([]geo.Point, capacity)}
}

// Add records p unless it repeats the latest point.
func (t *Trail) Add(p geo.Point) {
	if t.n > 0 {
		last := t.buf[(t.head+len(t.buf)-1)%len(t.buf)]
		if last == p {
			return
		}
	}
	t.buf[t.head] = p
	t.head = (t.head + 1) % len(t.buf)
	if t.n < len(t.buf) {
		t.n++
	}
}

// Points returns the trail oldest first.
func (t *Trail) Points() []geo.Point {
	out := make([]geo.Point, 0, t.n)
	start := (t.head + len(t.buf) - t.n) % len(t.buf)
	for i := 0; i < t.n; i++ {
		out = append(out, t.buf[(start+i)%len(t.buf)])
	}
	return out
}

func (t *Trail) Len() int { return t.n }

func (t *Trail) Reset() {
	t.head = 0
	t.n = 0
}
