// Package metrics exposes the daemon's Prometheus metrics: per-link
// frame/byte counters for each direction, per-link drop counters broken
// down by reason, and daemon-wide reload counters.
//
// One metric per concern: per-link CounterVecs labeled by link name, a
// plain Gauge for the configured link count, and a reload CounterVec
// labeled by outcome.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	namespace = "etheripd"
	subsystem = "link"
)

const labelLink = "link"

// DropReason labels why a frame or datagram was discarded.
type DropReason string

const (
	DropInvalidHeader  DropReason = "invalid_header"
	DropUnknownSource  DropReason = "unknown_source"
	DropUndersize      DropReason = "undersize"
	DropOversize       DropReason = "oversize"
	DropResolveFailure DropReason = "resolve_failure"
)

// Collector holds every Prometheus metric this daemon publishes.
type Collector struct {
	FramesSent     *prometheus.CounterVec
	FramesReceived *prometheus.CounterVec
	BytesSent      *prometheus.CounterVec
	BytesReceived  *prometheus.CounterVec
	FramesDropped  *prometheus.CounterVec

	LinksConfigured prometheus.Gauge
	ReloadsTotal    *prometheus.CounterVec
}

// NewCollector builds a Collector and registers it against reg. A nil
// reg registers against prometheus.DefaultRegisterer.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := newMetrics()
	reg.MustRegister(
		c.FramesSent,
		c.FramesReceived,
		c.BytesSent,
		c.BytesReceived,
		c.FramesDropped,
		c.LinksConfigured,
		c.ReloadsTotal,
	)
	return c
}

func newMetrics() *Collector {
	linkLabels := []string{labelLink}
	dropLabels := []string{labelLink, "reason"}

	return &Collector{
		FramesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "frames_sent_total",
			Help:      "Ethernet frames encapsulated and sent toward the remote peer.",
		}, linkLabels),

		FramesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "frames_received_total",
			Help:      "Ethernet frames decapsulated and written to the local TAP device.",
		}, linkLabels),

		BytesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "bytes_sent_total",
			Help:      "Ethernet payload bytes sent toward the remote peer (excludes the EtherIP header).",
		}, linkLabels),

		BytesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "bytes_received_total",
			Help:      "Ethernet payload bytes received from the remote peer (excludes the EtherIP header).",
		}, linkLabels),

		FramesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "frames_dropped_total",
			Help:      "Frames or datagrams discarded, labeled by reason.",
		}, dropLabels),

		LinksConfigured: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "links_configured",
			Help:      "Number of links currently present in the running configuration.",
		}),

		ReloadsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reloads_total",
			Help:      "Configuration reloads, labeled by outcome (success, failure).",
		}, []string{"outcome"}),
	}
}

// RecordSent accounts one outbound frame of the given Ethernet payload
// length for link.
func (c *Collector) RecordSent(link string, payloadLen int) {
	c.FramesSent.WithLabelValues(link).Inc()
	c.BytesSent.WithLabelValues(link).Add(float64(payloadLen))
}

// RecordReceived accounts one inbound frame of the given Ethernet
// payload length for link.
func (c *Collector) RecordReceived(link string, payloadLen int) {
	c.FramesReceived.WithLabelValues(link).Inc()
	c.BytesReceived.WithLabelValues(link).Add(float64(payloadLen))
}

// RecordDropped accounts one discarded frame or datagram for link and
// reason. link may be "" when the drop occurs before a link can be
// determined (e.g. an unrecognized source address).
func (c *Collector) RecordDropped(link string, reason DropReason) {
	c.FramesDropped.WithLabelValues(link, string(reason)).Inc()
}

// SetLinksConfigured reports the current link count after a successful
// reconciliation.
func (c *Collector) SetLinksConfigured(n int) {
	c.LinksConfigured.Set(float64(n))
}

// RecordReload accounts one configuration reload attempt.
func (c *Collector) RecordReload(success bool) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	c.ReloadsTotal.WithLabelValues(outcome).Inc()
}

// NewServer builds the HTTP server exposing /metrics for reg on addr.
func NewServer(addr string, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}
