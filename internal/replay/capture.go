// Package replay records what the receiver sent and plays it back.
package replay

import (
	"bufio"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// Capture format: line-oriented text.
//
// - Blank lines ignored.
// - Lines starting with '#' ignored ("# session <id>" names the run).
// - Line "START" resets the origin (next record time is relative to 0 again).
// - Data lines are: <t_ns>,<hex>
//   where t_ns is nanoseconds since START and hex is the raw bytes of one
//   port read.

type Record struct {
	At    time.Duration
	Chunk []byte
}

type Reader struct {
	r io.Reader
}

func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

func (rr *Reader) ReadAll() ([]Record, error) {
	s := bufio.NewScanner(rr.r)
	s.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	recs := make([]Record, 0, 1024)
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if line == "START" {
			recs = append(recs, Record{At: 0, Chunk: nil})
			continue
		}

		comma := strings.IndexByte(line, ',')
		if comma < 0 {
			return nil, fmt.Errorf("replay: invalid line (missing comma): %q", line)
		}
		tsStr := strings.TrimSpace(line[:comma])
		hexStr := strings.TrimSpace(line[comma+1:])
		if tsStr == "" || hexStr == "" {
			return nil, fmt.Errorf("replay: invalid line (empty field): %q", line)
		}

		tsNs, err := strconv.ParseInt(tsStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("replay: invalid timestamp %q: %w", tsStr, err)
		}
		if tsNs < 0 {
			return nil, fmt.Errorf("replay: invalid timestamp (negative): %d", tsNs)
		}

		b, err := hex.DecodeString(strings.ReplaceAll(hexStr, " ", ""))
		if err != nil {
			return nil, fmt.Errorf("replay: invalid hex payload: %w", err)
		}
		if len(b) == 0 {
			return nil, fmt.Errorf("replay: invalid payload (empty)")
		}

		recs = append(recs, Record{At: time.Duration(tsNs), Chunk: b})
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	return recs, nil
}

// ReadFile reads a whole capture file.
func ReadFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return NewReader(f).ReadAll()
}

// Summary describes a capture for the -summarize command.
type Summary struct {
	Records  int
	Bytes    uint64
	Sessions int
	Duration time.Duration
}

func Summarize(recs []Record) Summary {
	var s Summary
	var origin time.Duration
	for _, r := range recs {
		if r.Chunk == nil {
			s.Sessions++
			origin = r.At
			continue
		}
		s.Records++
		s.Bytes += uint64(len(r.Chunk))
		if d := r.At - origin; d > s.Duration {
			s.Duration = d
		}
	}
	return s
}

// Writer appends port reads to a capture.
type Writer struct {
	c      io.Closer
	w      *bufio.Writer
	start  time.Time
	closed bool
}

func CreateWriter(path, session string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	w, err := NewWriter(f, session)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	w.c = f
	return w, nil
}

// NewWriter writes a capture to w. The caller owns w.
func NewWriter(w io.Writer, session string) (*Writer, error) {
	bw := bufio.NewWriterSize(w, 64*1024)
	if session != "" {
		if _, err := fmt.Fprintf(bw, "# session %s\n", session); err != nil {
			return nil, err
		}
	}
	if _, err := bw.WriteString("START\n"); err != nil {
		return nil, err
	}
	return &Writer{w: bw, start: time.Now()}, nil
}

func (ww *Writer) WriteChunk(now time.Time, chunk []byte) error {
	if ww.closed {
		return errors.New("replay: writer is closed")
	}
	if len(chunk) == 0 {
		return nil
	}
	d := now.Sub(ww.start)
	if d < 0 {
		d = 0
	}
	_, err := fmt.Fprintf(ww.w, "%d,%s\n", d.Nanoseconds(), hex.EncodeToString(chunk))
	return err
}

func (ww *Writer) Flush() error {
	if ww.closed {
		return nil
	}
	return ww.w.Flush()
}

func (ww *Writer) Close() error {
	if ww.closed {
		return nil
	}
	ww.closed = true
	err := ww.w.Flush()
	if ww.c != nil {
		if cerr := ww.c.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

type Sleeper interface {
	Sleep(d time.Duration)
}

type realSleeper struct{}

func (realSleeper) Sleep(d time.Duration) { time.Sleep(d) }

// Play replays records with their relative timing.
//
// The callback is invoked for each record that carries bytes. START markers
// reset the origin.
//
// speedMultiplier: 1.0 = real time, 2.0 = 2x speed (half waits), 0.5 = half speed.
func Play(records []Record, speedMultiplier float64, loop bool, sleeper Sleeper, cb func(chunk []byte) error) error {
	if speedMultiplier <= 0 {
		return fmt.Errorf("replay: speed multiplier must be > 0")
	}
	if sleeper == nil {
		sleeper = realSleeper{}
	}
	if cb == nil {
		return errors.New("replay: callback is nil")
	}
	if len(records) == 0 {
		return errors.New("replay: no records")
	}

	for {
		var origin time.Duration
		var lastAt time.Duration
		var haveLast bool

		for _, r := range records {
			if r.Chunk == nil {
				origin = r.At
				lastAt = 0
				haveLast = false
				continue
			}

			at := r.At - origin
			if at < 0 {
				at = 0
			}
			if haveLast {
				wait := at - lastAt
				if wait < 0 {
					wait = 0
				}
				wait = time.Duration(float64(wait) / speedMultiplier)
				if wait > 0 {
					sleeper.Sleep(wait)
				}
			}

			if err := cb(r.Chunk); err != nil {
				return err
			}

			lastAt = at
			haveLast = true
		}

		if !loop {
			return nil
		}
	}
}
