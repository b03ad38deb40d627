package replay

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"gpsapp/internal/transport"
)

var errPortClosed = errors.New("replay: port closed")

// Port plays a capture back as if the receiver were attached. Writes are
// discarded. Once playback ends the port stays connected but silent.
type Port struct {
	name    string
	ch      chan []byte
	done    chan struct{}
	once    sync.Once
	pending []byte
}

func NewPort(name string, recs []Record, speed float64, loop bool, sleeper Sleeper) (*Port, error) {
	if speed <= 0 {
		return nil, fmt.Errorf("replay: speed multiplier must be > 0")
	}
	if len(recs) == 0 {
		return nil, errors.New("replay: no records")
	}
	p := &Port{
		name: name,
		ch:   make(chan []byte),
		done: make(chan struct{}),
	}
	go func() {
		defer close(p.ch)
		_ = Play(recs, speed, loop, sleeper, func(chunk []byte) error {
			select {
			case p.ch <- chunk:
				return nil
			case <-p.done:
				return errPortClosed
			}
		})
	}()
	return p, nil
}

func (p *Port) Name() string { return "replay:" + p.name }

func (p *Port) Read(b []byte) (int, error) {
	if len(p.pending) == 0 {
		t := time.NewTimer(transport.ReadTimeout)
		defer t.Stop()
		select {
		case <-p.done:
			return 0, io.ErrClosedPipe
		case chunk, ok := <-p.ch:
			if !ok {
				// Finished: behave like an idle receiver.
				p.ch = nil
				<-t.C
				return 0, nil
			}
			p.pending = chunk
		case <-t.C:
			return 0, nil
		}
	}
	n := copy(b, p.pending)
	p.pending = p.pending[n:]
	return n, nil
}

func (p *Port) Write(b []byte) (int, error) { return len(b), nil }

func (p *Port) Close() error {
	p.once.Do(func() { close(p.done) })
	return nil
}
