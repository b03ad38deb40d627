package sim

import (
	"math"
	"strings"
	"testing"
	"time"

	"gpsapp/internal/geo"
	"gpsapp/internal/gps"
	"gpsapp/internal/route"
)

var testCenter = geo.CoordDeg(52.37, 4.89)

func lRoute(t *testing.T) *route.Route {
	t.Helper()
	r, err := route.New(testCenter,
		[]geo.Point{{X: 0, Y: 0}, {X: 0, Y: 1000}, {X: 1000, Y: 1000}},
		[]route.Waypoint{{Index: 0, Desc: "Start"}, {Index: 2, Desc: "Home"}})
	if err != nil {
		t.Fatalf("route.New: %v", err)
	}
	return r
}

func TestDriveAt(t *testing.T) {
	d := NewDrive(lRoute(t), 10)
	if d.Length() != 2000 {
		t.Fatalf("length=%v", d.Length())
	}

	cases := []struct {
		elapsed time.Duration
		want    geo.Point
		bearing float64
		done    bool
	}{
		{0, geo.Point{X: 0, Y: 0}, 0, false},
		{50 * time.Second, geo.Point{X: 0, Y: 500}, 0, false},
		{150 * time.Second, geo.Point{X: 500, Y: 1000}, 90, false},
		{300 * time.Second, geo.Point{X: 1000, Y: 1000}, 90, true},
	}
	for _, tc := range cases {
		s := d.At(tc.elapsed)
		if s.Pos != tc.want || s.Done != tc.done {
			t.Fatalf("At(%s)=%+v want pos=%v done=%v", tc.elapsed, s, tc.want, tc.done)
		}
		if math.Abs(s.BearingDeg-tc.bearing) > 1e-6 {
			t.Fatalf("At(%s) bearing=%v want %v", tc.elapsed, s.BearingDeg, tc.bearing)
		}
	}
	if s := d.At(300 * time.Second); s.SpeedMPS != 0 {
		t.Fatalf("speed at finish=%v", s.SpeedMPS)
	}
}

func TestDriveEmptyRoute(t *testing.T) {
	if s := NewDrive(nil, 10).At(time.Second); !s.Done {
		t.Fatalf("expected done for nil route")
	}
}

func TestNMEAAngle(t *testing.T) {
	cases := []struct {
		deg      float64
		digits   int
		pos, neg string
		want     string
		hemi     string
	}{
		{52.37, 2, "N", "S", "5222.2000", "N"},
		{-1.25, 3, "E", "W", "00115.0000", "W"},
		{4.999999999, 3, "E", "W", "00500.0000", "E"},
	}
	for _, tc := range cases {
		got, hemi := nmeaAngle(tc.deg, tc.digits, tc.pos, tc.neg)
		if got != tc.want || hemi != tc.hemi {
			t.Fatalf("nmeaAngle(%v)=%q,%q want %q,%q", tc.deg, got, hemi, tc.want, tc.hemi)
		}
	}
}

func TestSentencesDecode(t *testing.T) {
	d := NewDrive(lRoute(t), 10)
	now := time.Date(2024, 3, 23, 8, 0, 0, 0, time.UTC)
	text := Sentences(now, d.At(150*time.Second))
	if strings.Count(text, "\r\n") != 3 {
		t.Fatalf("sentences=%q", text)
	}

	dec := gps.NewNMEA(gps.Env{})
	var fix gps.Fix
	for i := 0; i < len(text); i++ {
		dec.Update(text[i], &fix)
	}
	if fix.Quality != gps.Quality3D {
		t.Fatalf("quality=%v", fix.Quality)
	}
	if fix.Time != now.Unix() {
		t.Fatalf("time=%d want %d", fix.Time, now.Unix())
	}
	p := geo.ToPlanar(fix.Coord(), testCenter)
	if geo.Dist(p, geo.Point{X: 500, Y: 1000}) > 2 {
		t.Fatalf("decoded position=%v", p)
	}
	if b, ok := fix.Bearing.Get(); !ok || math.Abs(b-90) > 0.1 {
		t.Fatalf("bearing=%v ok=%v", b, ok)
	}
	if math.Abs(fix.Speed()-10) > 0.1 {
		t.Fatalf("speed=%v", fix.Speed())
	}
}
