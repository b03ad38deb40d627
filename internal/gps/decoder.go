package gps

import (
	"io"
	"sync/atomic"
	"time"
)

// maxPacket bounds every decoder's framing buffer.
const maxPacket = 128

// Decoder consumes one received byte at a time and merges whatever it
// decodes into fix. It reports whether any field changed.
type Decoder interface {
	Update(b byte, fix *Fix) bool
}

// Initializer is implemented by decoders that configure the receiver when
// the port is opened.
type Initializer interface {
	Init() error
}

// Poller is implemented by decoders that periodically request data.
type Poller interface {
	Poll() error
}

// Stats are per-decoder frame counters.
type Stats struct {
	Frames  uint64 `json:"frames"`
	Dropped uint64 `json:"dropped"`
}

type StatsReporter interface {
	Stats() Stats
}

type counters struct {
	frames  atomic.Uint64
	dropped atomic.Uint64
}

func (c *counters) frame() { c.frames.Add(1) }
func (c *counters) drop()  { c.dropped.Add(1) }

func (c *counters) Stats() Stats {
	return Stats{Frames: c.frames.Load(), Dropped: c.dropped.Load()}
}

// Env is what a decoder may use besides the byte stream.
type Env struct {
	// Out is the receiver's input channel. Nil discards outbound commands.
	Out io.Writer
	// Tracklog is the recorded drive consumed by the tracklog pseudo-protocol.
	Tracklog io.Reader
	// Now defaults to time.Now.
	Now func() time.Time
	// ColdStart suppresses initial position hints sent during Init.
	ColdStart bool
}

func (e Env) out() io.Writer {
	if e.Out == nil {
		return io.Discard
	}
	return e.Out
}

func (e Env) now() time.Time {
	if e.Now == nil {
		return time.Now().UTC()
	}
	return e.Now().UTC()
}

// today is midnight UTC of the current day in Unix seconds.
func (e Env) today() int64 {
	n := e.now()
	return DateToUnix(n.Year(), int(n.Month()), n.Day())
}
