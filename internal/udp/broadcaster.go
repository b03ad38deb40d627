package udp

import (
	"encoding/json"
	"fmt"
	"log"
	"net"
	"sync"
	"time"

	"gpsapp/internal/engine"
)

type udpConn interface {
	Write(p []byte) (int, error)
	Close() error
}

type resolveFunc func(network, address string) (*net.UDPAddr, error)
type dialFunc func(network string, laddr, raddr *net.UDPAddr) (udpConn, error)

// Datagram is the compact guidance record sent to dashboard displays.
type Datagram struct {
	Session     string   `json:"session"`
	Time        int64    `json:"time"`
	Status      string   `json:"status"`
	Connected   bool     `json:"connected"`
	Lat         *float64 `json:"lat,omitempty"`
	Lon         *float64 `json:"lon,omitempty"`
	Bearing     *float64 `json:"bearing,omitempty"`
	SpeedMPS    float64  `json:"speed_mps"`
	Instruction string   `json:"instruction"`
	Remaining   int      `json:"remaining_m"`
	Text        string   `json:"remaining"`
	VMG         int      `json:"vmg_mph"`
	ETA         string   `json:"eta"`
	Next        string   `json:"next,omitempty"`
	NextDist    string   `json:"next_dist,omitempty"`
}

func Encode(s engine.State) ([]byte, error) {
	g := s.Guidance
	d := Datagram{
		Session:     s.Session,
		Time:        g.Time,
		Status:      g.Status,
		Connected:   s.Connected,
		Bearing:     g.Bearing,
		SpeedMPS:    g.SpeedMPS,
		Instruction: g.Instruction,
		Remaining:   g.Remaining,
		Text:        g.RemainingText,
		VMG:         g.VMG,
		ETA:         g.ETA,
	}
	if g.HavePos {
		lat, lon := g.LatDeg, g.LonDeg
		d.Lat, d.Lon = &lat, &lon
	}
	if len(g.Upcoming) > 0 {
		d.Next = g.Upcoming[0].Desc
		d.NextDist = g.Upcoming[0].DistanceText
	}
	return json.Marshal(d)
}

// Broadcaster sends guidance datagrams to one destination, at most once per
// interval unless the guidance status changes.
type Broadcaster struct {
	dest     string
	conn     udpConn
	interval time.Duration
	now      func() time.Time

	mu         sync.Mutex
	last       time.Time
	lastStatus string
	lastErr    string
	sent       uint64
	failed     uint64
}

func NewBroadcaster(dest string, interval time.Duration) (*Broadcaster, error) {
	return newBroadcaster(dest, interval, net.ResolveUDPAddr, func(network string, laddr, raddr *net.UDPAddr) (udpConn, error) {
		return net.DialUDP(network, laddr, raddr)
	})
}

func newBroadcaster(dest string, interval time.Duration, resolve resolveFunc, dial dialFunc) (*Broadcaster, error) {
	addr, err := resolve("udp", dest)
	if err != nil {
		return nil, fmt.Errorf("udp: resolve dest: %w", err)
	}
	conn, err := dial("udp", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("udp: dial: %w", err)
	}
	return &Broadcaster{dest: dest, conn: conn, interval: interval, now: time.Now}, nil
}

func (b *Broadcaster) Dest() string { return b.dest }

func (b *Broadcaster) Send(payload []byte) error {
	if len(payload) == 0 {
		return nil
	}
	_, err := b.conn.Write(payload)
	return err
}

// Publish implements engine.Sink. Send failures are counted and logged once
// per distinct error; a display that is switched off must not stall the
// engine.
func (b *Broadcaster) Publish(s engine.State) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	if s.Guidance.Status == b.lastStatus && !b.last.IsZero() && now.Sub(b.last) < b.interval {
		return
	}
	payload, err := Encode(s)
	if err != nil {
		log.Printf("udp: encode failed: %v", err)
		return
	}
	b.last = now
	b.lastStatus = s.Guidance.Status
	if err := b.Send(payload); err != nil {
		b.failed++
		if msg := err.Error(); msg != b.lastErr {
			log.Printf("udp: send dest=%s err=%v", b.dest, err)
			b.lastErr = msg
		}
		return
	}
	b.sent++
	b.lastErr = ""
}

func (b *Broadcaster) Stats() (sent, failed uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sent, b.failed
}

func (b *Broadcaster) Close() error {
	if b.conn == nil {
		return nil
	}
	return b.conn.Close()
}
