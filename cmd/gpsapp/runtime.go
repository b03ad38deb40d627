package main

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"sync"

	"gpsapp/internal/config"
	"gpsapp/internal/engine"
	"gpsapp/internal/geo"
	"gpsapp/internal/gps"
	"gpsapp/internal/nav"
	"gpsapp/internal/replay"
	"gpsapp/internal/route"
	"gpsapp/internal/sim"
	"gpsapp/internal/transport"
	"gpsapp/internal/web"
)

// liveRuntime owns the engine and swaps it when settings change. It is the
// web.Controller and metrics.Source, so both follow the swap.
type liveRuntime struct {
	ctx        context.Context
	configPath string
	reg        *gps.Registry
	status     *web.Status
	sinks      []engine.Sink

	mu  sync.RWMutex
	cfg config.Config
	eng *engine.Engine
}

func newLiveRuntime(ctx context.Context, cfg config.Config, configPath string, status *web.Status, sinks []engine.Sink) (*liveRuntime, error) {
	c := cfg
	if err := config.DefaultAndValidate(&c); err != nil {
		return nil, err
	}
	if status == nil {
		return nil, fmt.Errorf("status is nil")
	}
	r := &liveRuntime{
		ctx:        ctx,
		configPath: configPath,
		reg:        gps.DefaultRegistry(),
		status:     status,
		sinks:      sinks,
	}
	eng, err := r.startEngine(c)
	if err != nil {
		return nil, err
	}
	r.cfg, r.eng = c, eng
	status.SetStatic(runMode(c), configPath, recordDir(c), nil)
	return r, nil
}

func runMode(c config.Config) string {
	switch {
	case c.Sim.Enable:
		return "sim"
	case c.Replay.Path != "":
		return "replay"
	default:
		return "receiver"
	}
}

// recordDir is where recordings land, used for the free-space readout.
func recordDir(c config.Config) string {
	for _, p := range []string{c.Record.Tracklog, c.Record.Capture} {
		if strings.TrimSpace(p) != "" {
			return filepath.Dir(p)
		}
	}
	return ""
}

func engineConfig(c config.Config, open engine.Opener, sinks []engine.Sink) engine.Config {
	units, _ := geo.ParseUnits(c.Nav.Units)
	protocol := c.GPS.Protocol
	if c.Sim.Enable {
		protocol = gps.DefaultProtocol
	}
	return engine.Config{
		Protocol: protocol,
		Port: transport.Config{
			Device:  c.GPS.Device,
			Baud:    c.GPS.Baud,
			Addr:    c.GPS.Addr,
			GPSDRaw: c.GPS.GPSD,
		},
		TracklogPath:    c.GPS.Tracklog,
		ColdStart:       c.GPS.ColdStart,
		WriteRate:       c.GPS.WriteRate,
		PollInterval:    c.Poll.Interval,
		RequestInterval: c.Poll.RequestInterval,
		RoutePath:       c.Route.Path,
		Nav: nav.Config{
			Units:       units,
			VMGShift:    uint(c.Nav.VMGShift),
			TrailPoints: c.Nav.TrailPoints,
			Upcoming:    c.Nav.Upcoming,
		},
		RecordTracklog: c.Record.Tracklog,
		RecordCapture:  c.Record.Capture,
		Open:           open,
		Sinks:          sinks,
	}
}

// opener picks the byte source: the simulator, a capture replay, or the
// real receiver.
func opener(c config.Config) (engine.Opener, error) {
	switch {
	case c.Sim.Enable:
		speed := c.Sim.SpeedMPS
		path := c.Route.Path
		return func(ctx context.Context, _ transport.Config) (transport.Port, error) {
			r, err := route.Load(path)
			if r == nil || r.Empty() {
				return nil, fmt.Errorf("sim: load route %s: %v", path, err)
			}
			return sim.NewPort(r, speed), nil
		}, nil
	case c.Replay.Path != "":
		recs, err := replay.ReadFile(c.Replay.Path)
		if err != nil {
			return nil, err
		}
		sum := replay.Summarize(recs)
		log.Printf("replay: path=%s records=%d sessions=%d duration=%s", c.Replay.Path, sum.Records, sum.Sessions, sum.Duration)
		name := filepath.Base(c.Replay.Path)
		speed, loop := c.Replay.Speed, c.Replay.Loop
		return func(ctx context.Context, _ transport.Config) (transport.Port, error) {
			return replay.NewPort(name, recs, speed, loop, nil)
		}, nil
	default:
		return nil, nil
	}
}

func (r *liveRuntime) startEngine(c config.Config) (*engine.Engine, error) {
	open, err := opener(c)
	if err != nil {
		return nil, err
	}
	eng := engine.New(engineConfig(c, open, r.sinks), r.reg)
	if err := eng.Start(r.ctx); err != nil {
		return nil, err
	}
	log.Printf("engine started protocol=%s mode=%s route=%q", eng.Protocol(), runMode(c), c.Route.Path)
	return eng, nil
}

func (r *liveRuntime) current() *engine.Engine {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.eng
}

func (r *liveRuntime) Snapshot() engine.State { return r.current().Snapshot() }
func (r *liveRuntime) Skip(delta int) bool    { return r.current().Skip(delta) }
func (r *liveRuntime) ReloadRoute() bool      { return r.current().ReloadRoute() }

func (r *liveRuntime) Config() config.Config {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cfg
}

// Apply makes a settings change effective. Route and navigation changes
// restart the engine; anything touching the receiver, recorders or outputs
// needs a process restart.
func (r *liveRuntime) Apply(next config.Config) error {
	if r == nil {
		return fmt.Errorf("runtime is nil")
	}
	c := next
	if err := config.DefaultAndValidate(&c); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	cur := r.cfg
	switch {
	case c.GPS != cur.GPS || c.Poll != cur.Poll:
		return fmt.Errorf("gps settings require restart")
	case c.Record != cur.Record || c.Replay != cur.Replay || c.Sim != cur.Sim:
		return fmt.Errorf("record, replay and sim settings require restart")
	case c.Web != cur.Web || c.UDP != cur.UDP || c.MQTT != cur.MQTT || c.Buttons != cur.Buttons:
		return fmt.Errorf("output settings require restart")
	}
	if c.Route == cur.Route && c.Nav == cur.Nav {
		r.cfg = c
		return nil
	}

	r.eng.Close()
	eng, err := r.startEngine(c)
	if err != nil {
		// Bring the previous engine back so navigation continues.
		log.Printf("engine restart failed: %v", err)
		if prev, perr := r.startEngine(cur); perr == nil {
			r.eng = prev
		}
		return err
	}
	r.cfg, r.eng = c, eng
	return nil
}

func (r *liveRuntime) Close() {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.eng.Close()
}
