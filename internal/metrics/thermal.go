package metrics

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

// DefaultThermalZone is where Linux boards report SoC temperature.
const DefaultThermalZone = "/sys/class/thermal/thermal_zone0/temp"

// parseTempC accepts millidegrees (52345) or whole degrees (52).
func parseTempC(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("metrics: temperature empty")
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("metrics: parse temperature %q: %w", s, err)
	}
	if n > 1000 {
		return float64(n) / 1000.0, nil
	}
	return float64(n), nil
}

func readTempC(path string) (float64, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("metrics: read temperature: %w", err)
	}
	return parseTempC(string(b))
}

// thermalCollector reports the temperature read from path at scrape time.
// A missing or unreadable zone yields no sample.
type thermalCollector struct {
	path string
	desc *prometheus.Desc
}

func newThermalCollector(path string) *thermalCollector {
	return &thermalCollector{
		path: path,
		desc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "cpu_temperature_celsius"),
			"SoC temperature from the kernel thermal zone.",
			nil, nil,
		),
	}
}

func (c *thermalCollector) Describe(ch chan<- *prometheus.Desc) { ch <- c.desc }

func (c *thermalCollector) Collect(ch chan<- prometheus.Metric) {
	v, err := readTempC(c.path)
	if err != nil {
		return
	}
	ch <- prometheus.MustNewConstMetric(c.desc, prometheus.GaugeValue, v)
}

// RegisterThermal adds the temperature gauge to reg. An empty path uses
// DefaultThermalZone.
func RegisterThermal(reg prometheus.Registerer, path string) error {
	if path == "" {
		path = DefaultThermalZone
	}
	return reg.Register(newThermalCollector(path))
}
