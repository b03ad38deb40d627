package replay

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"time"

	"gpsapp/internal/geo"
	"gpsapp/internal/gps"
)

// TracklogWriter records live fixes in the format the tracklog protocol
// replays.
type TracklogWriter struct {
	c    io.Closer
	w    *bufio.Writer
	last int64
}

func CreateTracklog(path, session string) (*TracklogWriter, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	t, err := NewTracklogWriter(f, session)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	t.c = f
	return t, nil
}

func NewTracklogWriter(w io.Writer, session string) (*TracklogWriter, error) {
	bw := bufio.NewWriter(w)
	if session != "" {
		if _, err := fmt.Fprintf(bw, "# session %s\n", session); err != nil {
			return nil, err
		}
	}
	return &TracklogWriter{w: bw}, nil
}

// WriteFix appends one sample per second of fix time. Passes without a new
// coordinate or fix are skipped.
func (t *TracklogWriter) WriteFix(f *gps.Fix) (bool, error) {
	if !f.Updated.Has(gps.UpdatedCoord) || f.Quality == gps.QualityNone || f.Time <= t.last {
		return false, nil
	}
	t.last = f.Time
	line := gps.FormatTrackLine(time.Unix(f.Time, 0), geo.Rad2Deg(f.Lat), geo.Rad2Deg(f.Lon))
	if _, err := t.w.WriteString(line + "\n"); err != nil {
		return false, err
	}
	return true, t.w.Flush()
}

func (t *TracklogWriter) Close() error {
	err := t.w.Flush()
	if t.c != nil {
		if cerr := t.c.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
