package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"

	"gpsapp/internal/gps"
	"gpsapp/internal/replay"
)

type captureSummary struct {
	replay.Summary
	Protocol string
	Updates  int
	Fixes    int
	Decoder  gps.Stats
}

// summarizeCapture decodes every chunk with the named protocol. The decoder
// writes nothing back, so init strings are skipped.
func summarizeCapture(recs []replay.Record, protocol string) captureSummary {
	p, _ := gps.DefaultRegistry().Select(protocol)
	s := captureSummary{Summary: replay.Summarize(recs), Protocol: p.Name}

	dec := p.New(gps.Env{Out: io.Discard})
	var fix gps.Fix
	for _, r := range recs {
		for _, b := range r.Chunk {
			if !dec.Update(b, &fix) {
				continue
			}
			s.Updates++
			if fix.Updated.Has(gps.UpdatedCoord) && fix.Quality != gps.QualityNone {
				s.Fixes++
			}
			fix.ClearUpdated()
		}
	}
	if sr, ok := dec.(gps.StatsReporter); ok {
		s.Decoder = sr.Stats()
	}
	return s
}

func printCaptureSummary(w io.Writer, path, protocol string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return fmt.Errorf("path is empty")
	}
	recs, err := replay.ReadFile(path)
	if err != nil {
		return err
	}
	s := summarizeCapture(recs, protocol)

	fmt.Fprintf(w, "path: %s\n", path)
	fmt.Fprintf(w, "sessions: %d\n", s.Sessions)
	fmt.Fprintf(w, "records: %s\n", humanize.Comma(int64(s.Records)))
	fmt.Fprintf(w, "bytes: %s\n", humanize.Bytes(s.Bytes))
	fmt.Fprintf(w, "duration: %s\n", s.Duration)
	fmt.Fprintf(w, "protocol: %s\n", s.Protocol)
	fmt.Fprintf(w, "frames: %s\n", humanize.Comma(int64(s.Decoder.Frames)))
	fmt.Fprintf(w, "dropped: %s\n", humanize.Comma(int64(s.Decoder.Dropped)))
	fmt.Fprintf(w, "position_fixes: %s\n", humanize.Comma(int64(s.Fixes)))
	return nil
}
