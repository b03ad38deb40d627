package route

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gpsapp/internal/geo"
)

// Binary center coordinates are int32 in units of pi/0x7fffffff radians.
const intRadScale = math.Pi / 0x7fffffff

// maxPoints guards allocations against corrupt headers.
const maxPoints = 1 << 22

// Format selects a route file encoding.
type Format int

const (
	FormatText Format = iota
	FormatBinary
)

// FormatFor picks the encoding from the file extension: .bin and .rte are
// binary, anything else is text.
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".bin", ".rte":
		return FormatBinary
	default:
		return FormatText
	}
}

// Load reads the route at path. A truncated file yields the partial route
// together with an error wrapping ErrTruncated.
func Load(path string) (*Route, error) {
	if strings.TrimSpace(path) == "" {
		return nil, ErrNoRoute
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoRoute, err)
	}
	defer f.Close()

	if FormatFor(path) == FormatBinary {
		return ReadBinary(bufio.NewReader(f))
	}
	return ReadText(f)
}

// ReadText reads the text format:
//
//	<center lat deg> <center lon deg> <npts> <nwps>
//	<x> <y> [description]
//	...
//
// A point line with a description is a waypoint.
func ReadText(r io.Reader) (*Route, error) {
	sc := bufio.NewScanner(r)
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return nil, fmt.Errorf("route: read header: %w", err)
		}
		return nil, fmt.Errorf("%w: missing header", ErrTruncated)
	}
	hdr := strings.Fields(sc.Text())
	if len(hdr) < 4 {
		return nil, fmt.Errorf("route: malformed header %q", sc.Text())
	}
	lat, err1 := strconv.ParseFloat(hdr[0], 64)
	lon, err2 := strconv.ParseFloat(hdr[1], 64)
	npts, err3 := strconv.Atoi(hdr[2])
	nwps, err4 := strconv.Atoi(hdr[3])
	if err := errors.Join(err1, err2, err3, err4); err != nil {
		return nil, fmt.Errorf("route: malformed header: %w", err)
	}
	if npts < 0 || npts > maxPoints || nwps < 0 {
		return nil, fmt.Errorf("route: bad counts npts=%d nwps=%d", npts, nwps)
	}

	pts := make([]geo.Point, 0, npts)
	var wps []Waypoint
	for len(pts) < npts && sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		x, y, desc, err := parsePointLine(line)
		if err != nil {
			return nil, fmt.Errorf("route: line %d: %w", len(pts)+2, err)
		}
		if desc != "" {
			wps = append(wps, Waypoint{Index: len(pts), Desc: desc})
		}
		pts = append(pts, geo.Point{X: x, Y: y})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("route: read: %w", err)
	}

	rt, err := New(geo.CoordDeg(lat, lon), pts, wps)
	if err != nil {
		return nil, err
	}
	if len(pts) < npts {
		return rt, fmt.Errorf("%w after %d of %d points", ErrTruncated, len(pts), npts)
	}
	return rt, nil
}

func parsePointLine(line string) (x, y int32, desc string, err error) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return 0, 0, "", fmt.Errorf("expected x y, got %q", line)
	}
	xv, err := strconv.ParseInt(fields[0], 10, 32)
	if err != nil {
		return 0, 0, "", err
	}
	yv, err := strconv.ParseInt(fields[1], 10, 32)
	if err != nil {
		return 0, 0, "", err
	}
	if len(fields) > 2 {
		// Keep the description's own spacing.
		rest := strings.TrimSpace(line)
		rest = strings.TrimSpace(rest[len(fields[0]):])
		desc = strings.TrimSpace(rest[len(fields[1]):])
	}
	return int32(xv), int32(yv), desc, nil
}

type diskHeader struct {
	CenterLat int32
	CenterLon int32
	NPts      uint32
	NWps      uint32
}

type diskPoint struct {
	X    int32
	Y    int32
	Dist uint32
}

type diskWaypoint struct {
	Idx uint32
	Len uint32
}

// ReadBinary reads the little-endian binary format. Stored point distances
// are ignored and recomputed.
func ReadBinary(r io.Reader) (*Route, error) {
	var hdr diskHeader
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrTruncated, err)
	}
	if hdr.NPts > maxPoints || hdr.NWps > hdr.NPts {
		return nil, fmt.Errorf("route: bad counts npts=%d nwps=%d", hdr.NPts, hdr.NWps)
	}
	center := geo.Coord{
		Lat: float64(hdr.CenterLat) * intRadScale,
		Lon: float64(hdr.CenterLon) * intRadScale,
	}

	var truncated error
	pts := make([]geo.Point, 0, hdr.NPts)
	for i := uint32(0); i < hdr.NPts; i++ {
		var p diskPoint
		if err := binary.Read(r, binary.LittleEndian, &p); err != nil {
			truncated = fmt.Errorf("%w after %d of %d points", ErrTruncated, i, hdr.NPts)
			break
		}
		pts = append(pts, geo.Point{X: p.X, Y: p.Y})
	}

	var wps []Waypoint
	for i := uint32(0); truncated == nil && i < hdr.NWps; i++ {
		var w diskWaypoint
		if err := binary.Read(r, binary.LittleEndian, &w); err != nil {
			truncated = fmt.Errorf("%w after %d of %d waypoints", ErrTruncated, i, hdr.NWps)
			break
		}
		if w.Len > 4096 {
			return nil, fmt.Errorf("route: waypoint %d description length %d", i, w.Len)
		}
		desc := make([]byte, w.Len)
		if _, err := io.ReadFull(r, desc); err != nil {
			truncated = fmt.Errorf("%w after %d of %d waypoints", ErrTruncated, i, hdr.NWps)
			break
		}
		wps = append(wps, Waypoint{Index: int(w.Idx), Desc: string(desc)})
	}

	rt, err := New(center, pts, wps)
	if err != nil {
		return nil, err
	}
	return rt, truncated
}

// WriteBinary encodes r in the binary format.
func WriteBinary(w io.Writer, r *Route) error {
	bw := bufio.NewWriter(w)
	hdr := diskHeader{
		CenterLat: int32(math.Round(r.Center.Lat / intRadScale)),
		CenterLon: int32(math.Round(r.Center.Lon / intRadScale)),
		NPts:      uint32(len(r.Pts)),
		NWps:      uint32(len(r.Wps)),
	}
	if err := binary.Write(bw, binary.LittleEndian, hdr); err != nil {
		return fmt.Errorf("route: write header: %w", err)
	}
	for i, p := range r.Pts {
		dp := diskPoint{X: p.X, Y: p.Y, Dist: uint32(r.Dists[i])}
		if err := binary.Write(bw, binary.LittleEndian, dp); err != nil {
			return fmt.Errorf("route: write point %d: %w", i, err)
		}
	}
	for i, wp := range r.Wps {
		dw := diskWaypoint{Idx: uint32(wp.Index), Len: uint32(len(wp.Desc))}
		if err := binary.Write(bw, binary.LittleEndian, dw); err != nil {
			return fmt.Errorf("route: write waypoint %d: %w", i, err)
		}
		if _, err := bw.WriteString(wp.Desc); err != nil {
			return fmt.Errorf("route: write waypoint %d: %w", i, err)
		}
	}
	return bw.Flush()
}

// WriteText encodes r in the text format.
func WriteText(w io.Writer, r *Route) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%.7f %.7f %d %d\n", r.Center.LatDeg(), r.Center.LonDeg(), len(r.Pts), len(r.Wps))
	next := 0
	for i, p := range r.Pts {
		if next < len(r.Wps) && r.Wps[next].Index == i {
			fmt.Fprintf(bw, "%d %d %s\n", p.X, p.Y, r.Wps[next].Desc)
			next++
			continue
		}
		fmt.Fprintf(bw, "%d %d\n", p.X, p.Y)
	}
	return bw.Flush()
}
