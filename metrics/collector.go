// Package metrics exposes a live TelemetryStore snapshot as Prometheus
// gauges, mirroring runZeroInc-sockstats/pkg/exporter's custom
// prometheus.Collector shape (Describe/Collect computed from a live
// struct rather than pre-registered metric objects) — there over open
// connections, here over the fused telemetry snapshot.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/padflight/groundstation/telemetry"
)

// Collector implements prometheus.Collector over a *telemetry.Store.
// Metric values are computed fresh from Store.Snapshot() on every
// Collect, so a scrape always reflects the latest fused state.
type Collector struct {
	store *telemetry.Store

	fcConnected  *prometheus.Desc
	gsConnected  *prometheus.Desc
	stale        *prometheus.Desc
	rssi         *prometheus.Desc
	snr          *prometheus.Desc
	integrityPct *prometheus.Desc
	altitude     *prometheus.Desc
	dataAgeMs    *prometheus.Desc
	ringFullness *prometheus.Desc
	rxCount      *prometheus.Desc
	lostCount    *prometheus.Desc
}

// NewCollector wires a Collector to store. Register it on a
// prometheus.Registry with Register/MustRegister.
func NewCollector(store *telemetry.Store) *Collector {
	ns := "groundstation"
	return &Collector{
		store: store,
		fcConnected: prometheus.NewDesc(ns+"_fc_connected", "FC direct link connected (1/0)", nil, nil),
		gsConnected: prometheus.NewDesc(ns+"_gs_connected", "GS relay link connected (1/0)", nil, nil),
		stale:       prometheus.NewDesc(ns+"_link_stale", "Telemetry considered stale (1/0)", nil, nil),
		rssi:        prometheus.NewDesc(ns+"_link_rssi_dbm", "Last reported RSSI", nil, nil),
		snr:         prometheus.NewDesc(ns+"_link_snr_db", "Last reported SNR", nil, nil),
		integrityPct: prometheus.NewDesc(ns+"_packet_integrity_pct", "Percentage of received frames that passed CRC/repair", nil, nil),
		altitude:     prometheus.NewDesc(ns+"_altitude_m", "Last fused altitude", nil, nil),
		dataAgeMs:    prometheus.NewDesc(ns+"_data_age_ms", "Milliseconds since the last valid packet", nil, nil),
		ringFullness: prometheus.NewDesc(ns+"_ring_buffer_fullness", "Ring buffer occupancy", []string{"buffer"}, nil),
		rxCount:      prometheus.NewDesc(ns+"_rx_frames_total", "Total frames received", nil, nil),
		lostCount:    prometheus.NewDesc(ns+"_lost_frames_total", "Total frames dropped (CRC fail, uncorrectable)", nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.fcConnected
	ch <- c.gsConnected
	ch <- c.stale
	ch <- c.rssi
	ch <- c.snr
	ch <- c.integrityPct
	ch <- c.altitude
	ch <- c.dataAgeMs
	ch <- c.ringFullness
	ch <- c.rxCount
	ch <- c.lostCount
}

func boolGauge(v bool) float64 {
	if v {
		return 1
	}
	return 0
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	snap := c.store.Snapshot()

	ch <- prometheus.MustNewConstMetric(c.fcConnected, prometheus.GaugeValue, boolGauge(snap.FCConnected))
	ch <- prometheus.MustNewConstMetric(c.gsConnected, prometheus.GaugeValue, boolGauge(snap.GSConnected))
	ch <- prometheus.MustNewConstMetric(c.stale, prometheus.GaugeValue, boolGauge(snap.Link.Stale))
	ch <- prometheus.MustNewConstMetric(c.rssi, prometheus.GaugeValue, snap.Link.RSSIdBm)
	ch <- prometheus.MustNewConstMetric(c.snr, prometheus.GaugeValue, snap.Link.SNRdB)
	ch <- prometheus.MustNewConstMetric(c.integrityPct, prometheus.GaugeValue, snap.Stats.IntegrityPct)
	ch <- prometheus.MustNewConstMetric(c.altitude, prometheus.GaugeValue, snap.AltitudeM)
	ch <- prometheus.MustNewConstMetric(c.dataAgeMs, prometheus.GaugeValue, float64(snap.Link.DataAgeMs))
	ch <- prometheus.MustNewConstMetric(c.rxCount, prometheus.CounterValue, float64(snap.Stats.RxCount))
	ch <- prometheus.MustNewConstMetric(c.lostCount, prometheus.CounterValue, float64(snap.Stats.LostCount))

	ch <- prometheus.MustNewConstMetric(c.ringFullness, prometheus.GaugeValue,
		float64(len(snap.AltitudeHistory))/float64(telemetry.RingCap), "altitude")
	ch <- prometheus.MustNewConstMetric(c.ringFullness, prometheus.GaugeValue,
		float64(len(snap.VelocityHistory))/float64(telemetry.RingCap), "velocity")
	ch <- prometheus.MustNewConstMetric(c.ringFullness, prometheus.GaugeValue,
		float64(len(snap.QBarHistory))/float64(telemetry.RingCap), "qbar")
}
