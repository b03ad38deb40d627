package web

import (
	"sync/atomic"
	"time"

	"gpsapp/internal/engine"
)

type Status struct {
	startUnixNano int64
	mode          atomic.Value // string
	configPath    atomic.Value // string
	recordDir     atomic.Value // string
	sinks         atomic.Value // map[string]any
}

func NewStatus() *Status {
	s := &Status{}
	atomic.StoreInt64(&s.startUnixNano, time.Now().UTC().UnixNano())
	s.mode.Store("")
	s.configPath.Store("")
	s.recordDir.Store("")
	s.sinks.Store(map[string]any{})
	return s
}

// SetStatic records settings fixed for the life of the process. Empty
// values leave the previous setting in place.
func (s *Status) SetStatic(mode, configPath, recordDir string, sinks map[string]any) {
	if mode != "" {
		s.mode.Store(mode)
	}
	if configPath != "" {
		s.configPath.Store(configPath)
	}
	if recordDir != "" {
		s.recordDir.Store(recordDir)
	}
	if sinks != nil {
		s.sinks.Store(sinks)
	}
}

type StatusSnapshot struct {
	Service    string           `json:"service"`
	NowUTC     string           `json:"now_utc"`
	UptimeSec  int64            `json:"uptime_sec"`
	Mode       string           `json:"mode"`
	ConfigPath string           `json:"config_path,omitempty"`
	Sinks      map[string]any   `json:"sinks"`
	Clients    int              `json:"ws_clients"`
	Engine     *engine.State    `json:"engine,omitempty"`
	Disk       *DiskSnapshot    `json:"disk,omitempty"`
	Network    *NetworkSnapshot `json:"network,omitempty"`
}

type DiskSnapshot struct {
	Path       string `json:"path"`
	TotalBytes uint64 `json:"total_bytes"`
	AvailBytes uint64 `json:"avail_bytes"`
	Avail      string `json:"avail"`
	LastError  string `json:"last_error,omitempty"`
}

type NetworkSnapshot struct {
	LocalAddrs []string `json:"local_addrs"`
}

// Snapshot assembles the status document. ctl may be nil before the engine
// is created.
func (s *Status) Snapshot(nowUTC time.Time, ctl Controller) StatusSnapshot {
	if nowUTC.IsZero() {
		nowUTC = time.Now().UTC()
	}
	start := time.Unix(0, atomic.LoadInt64(&s.startUnixNano)).UTC()

	snap := StatusSnapshot{
		Service:    "gpsapp",
		NowUTC:     nowUTC.UTC().Format(time.RFC3339Nano),
		UptimeSec:  int64(nowUTC.Sub(start).Seconds()),
		Mode:       s.mode.Load().(string),
		ConfigPath: s.configPath.Load().(string),
		Sinks:      s.sinks.Load().(map[string]any),
		Disk:       snapshotDisk(s.recordDir.Load().(string)),
		Network:    snapshotNetwork(),
	}
	if ctl != nil {
		st := ctl.Snapshot()
		snap.Engine = &st
	}
	return snap
}
