// Package metrics exposes engine counters to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"gpsapp/internal/engine"
)

const namespace = "gpsapp"

// Source is read on every scrape.
type Source interface {
	Snapshot() engine.State
}

// NewRegistry registers collectors that read src at scrape time.
func NewRegistry(src Source) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	snap := src.Snapshot

	reg.MustRegister(
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decoder_frames_total",
			Help:      "Receiver frames that passed framing and checksum checks.",
		}, func() float64 { return float64(snap().Decoder.Frames) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decoder_dropped_total",
			Help:      "Receiver frames dropped as malformed.",
		}, func() float64 { return float64(snap().Decoder.Dropped) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_received_total",
			Help:      "Bytes read from the receiver port.",
		}, func() float64 { return float64(snap().BytesReceived) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "projections_total",
			Help:      "Fixes projected onto the route plane.",
		}, func() float64 { return float64(snap().Nav.Projections) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "match_runs_total",
			Help:      "Route matcher runs.",
		}, func() float64 { return float64(snap().Nav.Matches) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "remaining_distance_meters",
			Help:      "Distance along the route to its end.",
		}, func() float64 { return float64(snap().Guidance.Remaining) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "vmg_meters_per_hour",
			Help:      "Smoothed velocity made good toward the next waypoint.",
		}, func() float64 { return float64(snap().Guidance.VMG) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "satellites_tracked",
			Help:      "Occupied satellite table slots.",
		}, func() float64 { return float64(len(snap().Satellites)) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "receiver_connected",
			Help:      "1 while the receiver port is open.",
		}, func() float64 {
			if snap().Connected {
				return 1
			}
			return 0
		}),
	)
	return reg
}

func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
