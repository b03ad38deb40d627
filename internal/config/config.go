package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	GPS     GPSConfig     `yaml:"gps"`
	Poll    PollConfig    `yaml:"poll"`
	Route   RouteConfig   `yaml:"route"`
	Nav     NavConfig     `yaml:"nav"`
	Record  RecordConfig  `yaml:"record"`
	Replay  ReplayConfig  `yaml:"replay"`
	Web     WebConfig     `yaml:"web"`
	UDP     UDPConfig     `yaml:"udp"`
	MQTT    MQTTConfig    `yaml:"mqtt"`
	Buttons ButtonsConfig `yaml:"buttons"`
	Sim     SimConfig     `yaml:"sim"`
}

type GPSConfig struct {
	// Protocol names a registered decoder. Unknown names fall back to NMEA
	// at startup.
	Protocol string `yaml:"protocol"`
	// Device is a serial path. Empty means auto-detect.
	Device string `yaml:"device"`
	// Baud 0 takes the protocol's rate.
	Baud int `yaml:"baud"`
	// Addr reads from host:port instead of a serial device.
	Addr string `yaml:"addr"`
	// GPSD asks a gpsd daemon at Addr to relay raw receiver bytes.
	GPSD      bool   `yaml:"gpsd"`
	Tracklog  string `yaml:"tracklog"`
	ColdStart bool   `yaml:"coldstart"`
	WriteRate int    `yaml:"write_rate"`
}

type PollConfig struct {
	Interval        time.Duration `yaml:"interval"`
	RequestInterval time.Duration `yaml:"request_interval"`
}

type RouteConfig struct {
	Path string `yaml:"path"`
}

type NavConfig struct {
	Units       string `yaml:"units"`
	VMGShift    int    `yaml:"vmg_shift"`
	TrailPoints int    `yaml:"trail_points"`
	Upcoming    int    `yaml:"upcoming"`
}

type RecordConfig struct {
	Tracklog string `yaml:"tracklog"`
	Capture  string `yaml:"capture"`
}

// ReplayConfig plays a byte capture back instead of opening the receiver.
type ReplayConfig struct {
	Path  string  `yaml:"path"`
	Speed float64 `yaml:"speed"`
	Loop  bool    `yaml:"loop"`
}

type WebConfig struct {
	Listen string `yaml:"listen"`
}

type UDPConfig struct {
	Dest     string        `yaml:"dest"`
	Interval time.Duration `yaml:"interval"`
}

type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	Topic    string `yaml:"topic"`
	ClientID string `yaml:"client_id"`
}

type ButtonsConfig struct {
	Enable  bool   `yaml:"enable"`
	Chip    string `yaml:"chip"`
	NextPin int    `yaml:"next_pin"`
	PrevPin int    `yaml:"prev_pin"`
}

type SimConfig struct {
	Enable   bool    `yaml:"enable"`
	SpeedMPS float64 `yaml:"speed_mps"`
}

func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, err
	}
	if err := DefaultAndValidate(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Save validates cfg and replaces the file at path. The YAML is written to a
// sibling temp file and renamed over the original so a power cut leaves
// either the old or the new config.
func Save(path string, cfg Config) error {
	if err := DefaultAndValidate(&cfg); err != nil {
		return err
	}
	b, err := yaml.Marshal(&cfg)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("config: save: %w", err)
	}
	defer os.Remove(tmp.Name())

	_, err = tmp.Write(b)
	if err == nil {
		err = tmp.Sync()
	}
	if err == nil {
		err = tmp.Chmod(0o644)
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("config: save: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}

// DefaultAndValidate fills in defaults and rejects inconsistent settings.
func DefaultAndValidate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}

	cfg.GPS.Protocol = strings.TrimSpace(cfg.GPS.Protocol)
	if cfg.GPS.Protocol == "" {
		return fmt.Errorf("gps.protocol is required")
	}
	if strings.EqualFold(cfg.GPS.Protocol, "tracklog") && strings.TrimSpace(cfg.GPS.Tracklog) == "" {
		return fmt.Errorf("gps.tracklog is required when gps.protocol is 'tracklog'")
	}
	if cfg.GPS.Baud < 0 {
		return fmt.Errorf("gps.baud must be >= 0")
	}
	if cfg.GPS.WriteRate == 0 {
		cfg.GPS.WriteRate = 20
	}

	if cfg.Poll.Interval <= 0 {
		cfg.Poll.Interval = 100 * time.Millisecond
	}
	if cfg.Poll.RequestInterval <= 0 {
		cfg.Poll.RequestInterval = 5 * time.Second
	}

	cfg.Nav.Units = strings.ToLower(strings.TrimSpace(cfg.Nav.Units))
	if cfg.Nav.Units == "" {
		cfg.Nav.Units = "metric"
	}
	if cfg.Nav.Units != "metric" && cfg.Nav.Units != "imperial" {
		return fmt.Errorf("nav.units must be 'metric' or 'imperial'")
	}
	if cfg.Nav.VMGShift == 0 {
		cfg.Nav.VMGShift = 3
	}
	if cfg.Nav.VMGShift < 1 || cfg.Nav.VMGShift > 16 {
		return fmt.Errorf("nav.vmg_shift must be between 1 and 16")
	}
	if cfg.Nav.TrailPoints <= 0 {
		cfg.Nav.TrailPoints = 500
	}
	if cfg.Nav.Upcoming <= 0 {
		cfg.Nav.Upcoming = 4
	}

	if cfg.Replay.Path != "" {
		if cfg.Replay.Speed == 0 {
			cfg.Replay.Speed = 1
		}
		if cfg.Replay.Speed < 0 {
			return fmt.Errorf("replay.speed must be > 0")
		}
	}

	if cfg.UDP.Interval <= 0 {
		cfg.UDP.Interval = time.Second
	}

	if cfg.MQTT.Topic == "" {
		cfg.MQTT.Topic = "gpsapp/guidance"
	}
	if cfg.MQTT.ClientID == "" {
		cfg.MQTT.ClientID = "gpsapp"
	}

	if cfg.Buttons.Enable && (cfg.Buttons.NextPin <= 0 || cfg.Buttons.PrevPin <= 0) {
		return fmt.Errorf("buttons.next_pin and buttons.prev_pin are required when buttons.enable is true")
	}

	if cfg.Sim.Enable {
		if strings.TrimSpace(cfg.Route.Path) == "" {
			return fmt.Errorf("sim.enable requires route.path")
		}
		if cfg.Replay.Path != "" {
			return fmt.Errorf("sim and replay cannot both be enabled")
		}
	}
	if cfg.Sim.SpeedMPS <= 0 {
		cfg.Sim.SpeedMPS = 15
	}

	return nil
}
