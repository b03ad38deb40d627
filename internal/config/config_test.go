package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	tmp := t.TempDir()
	path := filepath.Join(tmp, "cfg.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}
	return path
}

func requireErrEq(t *testing.T, err error, want string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error %q, got nil", want)
	}
	if err.Error() != want {
		t.Fatalf("error=%q want %q", err.Error(), want)
	}
}

func TestLoad_RequiresProtocol(t *testing.T) {
	path := writeTempConfig(t, "gps: {}\n")
	_, err := Load(path)
	requireErrEq(t, err, "gps.protocol is required")
}

func TestLoad_DefaultsApplied(t *testing.T) {
	path := writeTempConfig(t, "gps:\n  protocol: nmea\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Poll.Interval != 100*time.Millisecond || cfg.Poll.RequestInterval != 5*time.Second {
		t.Fatalf("poll=%+v", cfg.Poll)
	}
	if cfg.GPS.WriteRate != 20 {
		t.Fatalf("write_rate=%d want 20", cfg.GPS.WriteRate)
	}
	if cfg.Nav.Units != "metric" || cfg.Nav.VMGShift != 3 || cfg.Nav.TrailPoints != 500 || cfg.Nav.Upcoming != 4 {
		t.Fatalf("nav=%+v", cfg.Nav)
	}
	if cfg.MQTT.Topic != "gpsapp/guidance" || cfg.MQTT.ClientID != "gpsapp" {
		t.Fatalf("mqtt=%+v", cfg.MQTT)
	}
	if cfg.UDP.Interval != time.Second {
		t.Fatalf("udp.interval=%s", cfg.UDP.Interval)
	}
	if cfg.Sim.SpeedMPS != 15 {
		t.Fatalf("sim.speed_mps=%v", cfg.Sim.SpeedMPS)
	}
}

func TestLoad_ParsesFullFile(t *testing.T) {
	path := writeTempConfig(t, `
gps:
  protocol: TSIP
  device: /dev/ttyS1
  baud: 9600
  coldstart: true
  write_rate: 5
poll:
  interval: 250ms
  request_interval: 2s
route:
  path: /data/home.rte
nav:
  units: Imperial
  vmg_shift: 4
  upcoming: 2
record:
  tracklog: /data/track.log
replay:
  path: /data/capture.log
  loop: true
web:
  listen: ":8080"
buttons:
  enable: true
  next_pin: 17
  prev_pin: 27
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.GPS.Protocol != "TSIP" || cfg.GPS.Baud != 9600 || !cfg.GPS.ColdStart || cfg.GPS.WriteRate != 5 {
		t.Fatalf("gps=%+v", cfg.GPS)
	}
	if cfg.Poll.Interval != 250*time.Millisecond || cfg.Poll.RequestInterval != 2*time.Second {
		t.Fatalf("poll=%+v", cfg.Poll)
	}
	if cfg.Nav.Units != "imperial" || cfg.Nav.VMGShift != 4 || cfg.Nav.Upcoming != 2 {
		t.Fatalf("nav=%+v", cfg.Nav)
	}
	if cfg.Replay.Speed != 1 || !cfg.Replay.Loop {
		t.Fatalf("replay=%+v", cfg.Replay)
	}
	if cfg.Buttons.NextPin != 17 || cfg.Buttons.PrevPin != 27 {
		t.Fatalf("buttons=%+v", cfg.Buttons)
	}
}

func TestLoad_Validation(t *testing.T) {
	cases := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "BlankProtocol",
			yaml: "gps:\n  protocol: '  '\n",
			want: "gps.protocol is required",
		},
		{
			name: "Units",
			yaml: "gps:\n  protocol: nmea\nnav:\n  units: furlongs\n",
			want: "nav.units must be 'metric' or 'imperial'",
		},
		{
			name: "VMGShiftHigh",
			yaml: "gps:\n  protocol: nmea\nnav:\n  vmg_shift: 17\n",
			want: "nav.vmg_shift must be between 1 and 16",
		},
		{
			name: "VMGShiftNegative",
			yaml: "gps:\n  protocol: nmea\nnav:\n  vmg_shift: -1\n",
			want: "nav.vmg_shift must be between 1 and 16",
		},
		{
			name: "TracklogPath",
			yaml: "gps:\n  protocol: Tracklog\n",
			want: "gps.tracklog is required when gps.protocol is 'tracklog'",
		},
		{
			name: "ButtonPins",
			yaml: "gps:\n  protocol: nmea\nbuttons:\n  enable: true\n  next_pin: 17\n",
			want: "buttons.next_pin and buttons.prev_pin are required when buttons.enable is true",
		},
		{
			name: "SimNeedsRoute",
			yaml: "gps:\n  protocol: nmea\nsim:\n  enable: true\n",
			want: "sim.enable requires route.path",
		},
		{
			name: "SimAndReplay",
			yaml: "gps:\n  protocol: nmea\nroute:\n  path: r.txt\nsim:\n  enable: true\nreplay:\n  path: c.log\n",
			want: "sim and replay cannot both be enabled",
		},
		{
			name: "ReplaySpeed",
			yaml: "gps:\n  protocol: nmea\nreplay:\n  path: c.log\n  speed: -2\n",
			want: "replay.speed must be > 0",
		},
		{
			name: "NegativeBaud",
			yaml: "gps:\n  protocol: nmea\n  baud: -1\n",
			want: "gps.baud must be >= 0",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeTempConfig(t, tc.yaml))
			requireErrEq(t, err, tc.want)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatalf("expected error")
	}
}

func TestDefaultAndValidate_Nil(t *testing.T) {
	requireErrEq(t, DefaultAndValidate(nil), "config is nil")
}

func TestSave_RoundTripsAndLeavesNoTemp(t *testing.T) {
	path := writeTempConfig(t, "gps:\n  protocol: nmea\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	cfg.Route.Path = "/data/work.rte"
	cfg.Nav.Units = "imperial"
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load() after Save error: %v", err)
	}
	if got != cfg {
		t.Fatalf("got %+v want %+v", got, cfg)
	}
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("ReadDir() error: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("dir has %d entries, want only the config", len(entries))
	}
}

func TestSave_RejectsInvalid(t *testing.T) {
	path := writeTempConfig(t, "gps:\n  protocol: nmea\n")
	err := Save(path, Config{})
	requireErrEq(t, err, "gps.protocol is required")

	b, _ := os.ReadFile(path)
	if string(b) != "gps:\n  protocol: nmea\n" {
		t.Fatalf("config rewritten: %q", b)
	}
}
