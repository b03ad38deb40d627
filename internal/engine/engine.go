// Package engine runs the single-threaded poll loop: read the port, feed the
// active decoder byte by byte, then project, match and publish once per
// cycle.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/tevino/abool/v2"

	"gpsapp/internal/geo"
	"gpsapp/internal/gps"
	"gpsapp/internal/nav"
	"gpsapp/internal/replay"
	"gpsapp/internal/route"
	"gpsapp/internal/transport"
)

const (
	initialBackoff = 250 * time.Millisecond
	maxBackoff     = 10 * time.Second

	readBufSize = 4096
)

// Opener opens the receiver port. transport.Open is the default.
type Opener func(ctx context.Context, cfg transport.Config) (transport.Port, error)

// Sink receives every published state on the poll goroutine. Publish must
// not block.
type Sink interface {
	Publish(State)
}

type SinkFunc func(State)

func (f SinkFunc) Publish(s State) { f(s) }

// Config controls the engine. Zero durations take defaults.
type Config struct {
	Protocol string
	// Port carries device/baud/addr; parity and tick mode come from the
	// protocol.
	Port         transport.Config
	TracklogPath string
	ColdStart    bool
	// WriteRate caps outbound writes per second. 0 disables pacing.
	WriteRate int

	PollInterval    time.Duration
	RequestInterval time.Duration

	RoutePath string
	Nav       nav.Config

	RecordTracklog string
	RecordCapture  string

	Open  Opener
	Sinks []Sink
	Now   func() time.Time
}

// Satellite is the status view of one satellite table slot.
type Satellite struct {
	SVN     int      `json:"svn"`
	ElevDeg *float64 `json:"elev_deg,omitempty"`
	AzimDeg *float64 `json:"azim_deg,omitempty"`
	SNR     *int     `json:"snr,omitempty"`
	Used    bool     `json:"used"`
}

type State struct {
	Session   string `json:"session"`
	Protocol  string `json:"protocol"`
	Port      string `json:"port,omitempty"`
	Running   bool   `json:"running"`
	Connected bool   `json:"connected"`
	LastError string `json:"last_error,omitempty"`
	RoutePath string `json:"route_path,omitempty"`

	UpdatedAt  time.Time    `json:"updated_at"`
	Guidance   nav.Guidance `json:"guidance"`
	Satellites []Satellite  `json:"satellites"`

	Decoder       gps.Stats    `json:"decoder"`
	BytesReceived uint64       `json:"bytes_received"`
	Nav           nav.Counters `json:"nav"`
	Projection    geo.Stats    `json:"projection"`

	Route  *route.Route `json:"-"`
	Center geo.Coord    `json:"-"`
	Trail  []geo.Point  `json:"-"`
}

type command struct {
	skip   int
	reload bool
}

type Engine struct {
	cfg   Config
	proto gps.Protocol

	running   *abool.AtomicBool
	connected *abool.AtomicBool
	bytes     atomic.Uint64
	session   atomic.Value // string

	cmds chan command
	last atomic.Value // State

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Owned by the poll goroutine.
	fix       gps.Fix
	nav       *nav.Navigator
	dec       gps.Decoder
	decTotal  gps.Stats
	portName  string
	lastErr   string
	tracklog  *replay.TracklogWriter
	capture   *replay.Writer
	decStats  atomic.Value // gps.Stats
	routePath string
}

// New selects the protocol from reg, falling back to NMEA for an unknown
// name.
func New(cfg Config, reg *gps.Registry) *Engine {
	if reg == nil {
		reg = gps.DefaultRegistry()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 100 * time.Millisecond
	}
	if cfg.RequestInterval <= 0 {
		cfg.RequestInterval = 5 * time.Second
	}
	if cfg.Open == nil {
		cfg.Open = transport.Open
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	proto, _ := reg.Select(cfg.Protocol)

	e := &Engine{
		cfg:       cfg,
		proto:     proto,
		running:   abool.New(),
		connected: abool.New(),
		cmds:      make(chan command, 16),
		nav:       nav.New(cfg.Nav),
		routePath: strings.TrimSpace(cfg.RoutePath),
	}
	e.session.Store("")
	e.decStats.Store(gps.Stats{})
	e.last.Store(e.state())
	return e
}

func (e *Engine) Start(ctx context.Context) error {
	if e == nil {
		return fmt.Errorf("engine is nil")
	}
	if ctx == nil {
		return fmt.Errorf("ctx is nil")
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel != nil {
		return nil
	}

	session := uuid.NewString()
	e.session.Store(session)
	if err := e.openRecorders(session); err != nil {
		e.closeRecorders()
		return err
	}

	childCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.running.Set()

	e.wg.Add(1)
	go e.run(childCtx)
	return nil
}

func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.mu.Lock()
	cancel := e.cancel
	e.cancel = nil
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	e.wg.Wait()
	e.closeRecorders()
	e.running.UnSet()
	e.connected.UnSet()
}

func (e *Engine) Running() bool    { return e.running.IsSet() }
func (e *Engine) Connected() bool  { return e.connected.IsSet() }
func (e *Engine) Protocol() string { return e.proto.Name }

// Snapshot returns the last published state.
func (e *Engine) Snapshot() State {
	if e == nil {
		return State{}
	}
	st := e.last.Load().(State)
	st.Running = e.running.IsSet()
	st.Connected = e.connected.IsSet()
	st.BytesReceived = e.bytes.Load()
	return st
}

// Skip queues a waypoint skip. It reports false when the queue is full.
func (e *Engine) Skip(delta int) bool {
	return e.enqueue(command{skip: delta})
}

// ReloadRoute queues a reload of the route file.
func (e *Engine) ReloadRoute() bool {
	return e.enqueue(command{reload: true})
}

func (e *Engine) enqueue(c command) bool {
	select {
	case e.cmds <- c:
		return true
	default:
		return false
	}
}

func (e *Engine) run(ctx context.Context) {
	defer e.wg.Done()

	log.Printf("gps enabled protocol=%s session=%s", e.proto.Name, e.session.Load())
	e.loadRoute()
	e.publish()

	backoff := initialBackoff
	for ctx.Err() == nil {
		port, err := e.open(ctx)
		if err != nil {
			e.lastErr = fmt.Sprintf("gps open failed protocol=%s: %v", e.proto.Name, err)
			log.Printf("%s (retry in %s)", e.lastErr, backoff)
			e.publish()
			if !e.wait(ctx, backoff) {
				return
			}
			if backoff < maxBackoff {
				backoff = min(backoff*2, maxBackoff)
			}
			continue
		}

		start := e.cfg.Now()
		err = e.poll(ctx, port)
		_ = port.Close()
		e.endSession()
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			e.lastErr = err.Error()
			log.Printf("gps session ended port=%s: %v", port.Name(), err)
		}
		e.publish()
		// A session that lasted a while starts the backoff over.
		if e.cfg.Now().Sub(start) > maxBackoff {
			backoff = initialBackoff
		}
		if !e.wait(ctx, backoff) {
			return
		}
		if backoff < maxBackoff {
			backoff = min(backoff*2, maxBackoff)
		}
	}
}

func (e *Engine) open(ctx context.Context) (transport.Port, error) {
	pc := e.cfg.Port
	pc.Parity = e.proto.Parity
	if pc.Baud == 0 {
		pc.Baud = e.proto.Baud
	}
	pc.Tick = e.proto.Pseudo
	if strings.EqualFold(e.proto.Name, "GPSD") {
		pc.GPSDRaw = false
	}
	return e.cfg.Open(ctx, pc)
}

// poll runs one connected session until the port fails or ctx ends.
func (e *Engine) poll(ctx context.Context, port transport.Port) error {
	env := gps.Env{
		Out:       transport.NewPacedWriter(port, e.cfg.WriteRate),
		Now:       e.cfg.Now,
		ColdStart: e.cfg.ColdStart,
	}
	if e.proto.Pseudo {
		f, err := os.Open(e.cfg.TracklogPath)
		if err != nil {
			return fmt.Errorf("engine: open tracklog: %w", err)
		}
		defer f.Close()
		env.Tracklog = f
	}

	dec := e.proto.New(env)
	e.dec = dec
	if in, ok := dec.(gps.Initializer); ok {
		if err := in.Init(); err != nil {
			return fmt.Errorf("engine: %s init: %w", strings.ToLower(e.proto.Name), err)
		}
	}

	e.portName = port.Name()
	e.lastErr = ""
	e.connected.Set()
	log.Printf("gps connected protocol=%s port=%s", e.proto.Name, e.portName)
	e.publish()

	poller, _ := dec.(gps.Poller)
	nextPoll := e.cfg.Now().Add(e.cfg.RequestInterval)
	buf := make([]byte, readBufSize)
	for {
		n, err := port.Read(buf)
		if n > 0 {
			e.bytes.Add(uint64(n))
			e.record(buf[:n])
			e.feed(buf[:n])
		}
		if err != nil {
			return fmt.Errorf("engine: read %s: %w", port.Name(), err)
		}

		if now := e.cfg.Now(); poller != nil && !now.Before(nextPoll) {
			if err := poller.Poll(); err != nil {
				log.Printf("gps poll failed protocol=%s: %v", e.proto.Name, err)
			}
			nextPoll = now.Add(e.cfg.RequestInterval)
		}

		if !e.wait(ctx, e.cfg.PollInterval) {
			return nil
		}
	}
}

// feed runs the decoder over one read and, if anything changed, the
// navigation pipeline exactly once.
func (e *Engine) feed(b []byte) {
	updated := false
	for _, c := range b {
		if e.dec.Update(c, &e.fix) {
			updated = true
		}
	}
	if sr, ok := e.dec.(gps.StatsReporter); ok {
		s := sr.Stats()
		e.decStats.Store(gps.Stats{Frames: e.decTotal.Frames + s.Frames, Dropped: e.decTotal.Dropped + s.Dropped})
	}
	if !updated {
		return
	}

	e.nav.Process(&e.fix)
	if e.tracklog != nil {
		if _, err := e.tracklog.WriteFix(&e.fix); err != nil {
			log.Printf("tracklog record failed: %v", err)
			_ = e.tracklog.Close()
			e.tracklog = nil
		}
	}
	e.fix.ClearUpdated()
	e.publish()
}

// endSession folds the finished decoder's counters into the totals. The
// fix is kept so guidance stays on the last known position.
func (e *Engine) endSession() {
	e.connected.UnSet()
	if e.dec != nil {
		if sr, ok := e.dec.(gps.StatsReporter); ok {
			s := sr.Stats()
			e.decTotal.Frames += s.Frames
			e.decTotal.Dropped += s.Dropped
		}
	}
	e.dec = nil
	e.decStats.Store(e.decTotal)
}

// wait sleeps for d while still serving commands. It returns false once ctx
// is done.
func (e *Engine) wait(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return false
		case c := <-e.cmds:
			e.handle(c)
		case <-t.C:
			return true
		}
	}
}

func (e *Engine) handle(c command) {
	if c.reload {
		e.loadRoute()
	}
	if c.skip != 0 {
		e.nav.Skip(c.skip)
		log.Printf("route skip delta=%d next=%d", c.skip, e.nav.Guidance().Next)
	}
	e.publish()
}

// loadRoute discards the current route before reading the file again.
func (e *Engine) loadRoute() {
	e.nav.SetRoute(nil)
	if e.routePath == "" {
		return
	}
	r, err := route.Load(e.routePath)
	switch {
	case errors.Is(err, route.ErrTruncated) && r != nil:
		log.Printf("route load failed path=%s: %v (using %s points)", e.routePath, err, humanize.Comma(int64(len(r.Pts))))
	case err != nil:
		log.Printf("route load failed path=%s: %v", e.routePath, err)
		return
	}
	if r.Empty() {
		log.Printf("route load failed path=%s: no waypoints", e.routePath)
		return
	}
	e.nav.SetRoute(r)
	log.Printf("route loaded path=%s points=%s waypoints=%s length=%s",
		e.routePath, humanize.Comma(int64(len(r.Pts))), humanize.Comma(int64(len(r.Wps))),
		geo.FormatDistance(r.Length(), e.cfg.Nav.Units))
}

func (e *Engine) publish() {
	st := e.state()
	e.last.Store(st)
	for _, s := range e.cfg.Sinks {
		s.Publish(st)
	}
}

func (e *Engine) state() State {
	center, _ := e.nav.Center()
	return State{
		Session:       e.session.Load().(string),
		Protocol:      e.proto.Name,
		Port:          e.portName,
		Running:       e.running.IsSet(),
		Connected:     e.connected.IsSet(),
		LastError:     e.lastErr,
		RoutePath:     e.routePath,
		UpdatedAt:     e.cfg.Now().UTC(),
		Guidance:      e.nav.Guidance(),
		Satellites:    satellites(&e.fix.Sats),
		Decoder:       e.decStats.Load().(gps.Stats),
		BytesReceived: e.bytes.Load(),
		Nav:           e.nav.Counters(),
		Projection:    geo.Counters(),
		Route:         e.nav.Route(),
		Center:        center,
		Trail:         e.nav.Trail(),
	}
}

func satellites(t *gps.SatTable) []Satellite {
	out := make([]Satellite, 0, len(t))
	for _, s := range t {
		if s.SVN == 0 {
			continue
		}
		v := Satellite{SVN: s.SVN, Used: s.Used.Or(false)}
		if el, ok := s.Elev.Get(); ok {
			d := geo.Rad2Deg(el)
			v.ElevDeg = &d
		}
		if az, ok := s.Azim.Get(); ok {
			d := geo.NormalizeDeg(geo.Rad2Deg(az))
			v.AzimDeg = &d
		}
		if snr, ok := s.SNR.Get(); ok {
			v.SNR = &snr
		}
		out = append(out, v)
	}
	return out
}

func (e *Engine) record(b []byte) {
	if e.capture == nil {
		return
	}
	if err := e.capture.WriteChunk(time.Now(), b); err != nil {
		log.Printf("capture record failed: %v", err)
		_ = e.capture.Close()
		e.capture = nil
	}
}

func (e *Engine) openRecorders(session string) error {
	if p := strings.TrimSpace(e.cfg.RecordCapture); p != "" {
		w, err := replay.CreateWriter(p, session)
		if err != nil {
			return fmt.Errorf("engine: capture: %w", err)
		}
		e.capture = w
	}
	if p := strings.TrimSpace(e.cfg.RecordTracklog); p != "" {
		w, err := replay.CreateTracklog(p, session)
		if err != nil {
			return fmt.Errorf("engine: tracklog: %w", err)
		}
		e.tracklog = w
	}
	return nil
}

func (e *Engine) closeRecorders() {
	if e.capture != nil {
		_ = e.capture.Close()
		e.capture = nil
	}
	if e.tracklog != nil {
		_ = e.tracklog.Close()
		e.tracklog = nil
	}
}
