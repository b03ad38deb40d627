package sim

import (
	"io"
	"sync"
	"time"

	"gpsapp/internal/route"
	"gpsapp/internal/transport"
)

// Port stands in for a receiver: it drives the route and emits one NMEA
// burst per second of wall time. Writes are discarded. After the last
// point it keeps reporting the final position, stationary.
type Port struct {
	drive *Drive
	now   func() time.Time

	start   time.Time
	next    time.Time
	pending []byte

	done chan struct{}
	once sync.Once
}

func NewPort(r *route.Route, speedMPS float64) *Port {
	return &Port{
		drive: NewDrive(r, speedMPS),
		now:   time.Now,
		done:  make(chan struct{}),
	}
}

func (p *Port) Name() string { return "sim" }

func (p *Port) Read(b []byte) (int, error) {
	select {
	case <-p.done:
		return 0, io.ErrClosedPipe
	default:
	}
	if len(p.pending) == 0 {
		now := p.now()
		if p.start.IsZero() {
			p.start, p.next = now, now
		}
		if wait := p.next.Sub(now); wait > 0 {
			p.idle(min(wait, transport.ReadTimeout))
			return 0, nil
		}
		p.pending = []byte(Sentences(now, p.drive.At(now.Sub(p.start))))
		p.next = p.next.Add(time.Second)
	}
	n := copy(b, p.pending)
	p.pending = p.pending[n:]
	return n, nil
}

func (p *Port) idle(d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-p.done:
	}
}

func (p *Port) Write(b []byte) (int, error) { return len(b), nil }

func (p *Port) Close() error {
	p.once.Do(func() { close(p.done) })
	return nil
}
