// Package radiusmetrics wraps github.com/prometheus/client_golang/prometheus
// to expose goradiusd/goradiusctl operational metrics: counters for packets
// sent/received/dropped per host, auth-failure counters, and histograms for
// client round-trip latency.
package radiusmetrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dlp-radius/goradius/internal/radius"
)

// -------------------------------------------------------------------------
// Prometheus Metric Constants
// -------------------------------------------------------------------------

const (
	namespace = "goradius"
	subsystem = "server"
)

// Label names for RADIUS metrics.
const (
	labelHost   = "host"
	labelCode   = "code"
	labelReason = "reason"
)

// -------------------------------------------------------------------------
// Collector — Prometheus RADIUS Metrics
// -------------------------------------------------------------------------

// Collector holds all RADIUS Prometheus metrics exposed by goradiusd and,
// for client round-trip latency, goradiusctl.
//
//   - PacketsReceived/PacketsReplied count decoded requests and the
//     replies sent back for them, labeled by host and RADIUS code.
//   - PacketsDropped counts every point in the dispatch state machine
//     that ends in a silent drop, labeled by host and drop reason.
//   - AuthFailures counts Request Authenticator and Message-Authenticator
//     verification failures (the "auth-mismatch" drops) specifically,
//     since they indicate either a misconfigured secret or a forged packet
//     and merit their own alert.
//   - ClientLatency records goradiusctl/radclient round-trip time from
//     send to matching reply, per server and code.
type Collector struct {
	// PacketsReceived counts decoded, authenticated requests per host and
	// RADIUS code.
	PacketsReceived *prometheus.CounterVec

	// PacketsReplied counts replies sent back per host and RADIUS code.
	PacketsReplied *prometheus.CounterVec

	// PacketsDropped counts requests dropped at any stage of dispatch
	// (unknown host, malformed packet, auth failure, handler drop, encode
	// error), per host and reason.
	PacketsDropped *prometheus.CounterVec

	// AuthFailures counts authenticator verification failures per host:
	// Accounting/CoA/Disconnect requests whose Request Authenticator does
	// not verify against the shared secret, and requests of any code whose
	// Message-Authenticator does not verify.
	AuthFailures *prometheus.CounterVec

	// ClientLatency observes round-trip latency (send to matching reply,
	// including retransmissions) for goradiusctl/radclient requests, per
	// server and RADIUS code.
	ClientLatency *prometheus.HistogramVec
}

// NewCollector creates a Collector with all RADIUS metrics registered
// against reg. If reg is nil, prometheus.DefaultRegisterer is used.
//
// All metrics are created with the "goradius_" namespace prefix to avoid
// collisions with other exporters: the server counters as
// "goradius_server_*" and the client latency histogram as
// "goradius_client_round_trip_seconds".
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := newMetrics()

	reg.MustRegister(
		c.PacketsReceived,
		c.PacketsReplied,
		c.PacketsDropped,
		c.AuthFailures,
		c.ClientLatency,
	)

	return c
}

// newMetrics creates all Prometheus metric vectors without registering them.
func newMetrics() *Collector {
	hostCodeLabels := []string{labelHost, labelCode}
	dropLabels := []string{labelHost, labelReason}
	hostLabels := []string{labelHost}

	return &Collector{
		PacketsReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "packets_received_total",
			Help:      "Total decoded, authenticated RADIUS requests received.",
		}, hostCodeLabels),

		PacketsReplied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "packets_replied_total",
			Help:      "Total RADIUS replies sent.",
		}, hostCodeLabels),

		PacketsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "packets_dropped_total",
			Help:      "Total RADIUS requests dropped, labeled by reason (unknown-host, malformed, auth-mismatch, decode-error, unsupported-code, handler-drop, handler-error, encode-error).",
		}, dropLabels),

		AuthFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "auth_failures_total",
			Help:      "Total Request Authenticator and Message-Authenticator verification failures.",
		}, hostLabels),

		ClientLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "client",
			Name:      "round_trip_seconds",
			Help:      "Round-trip latency from request send to matching reply, including retransmissions.",
			Buckets:   prometheus.DefBuckets,
		}, hostCodeLabels),
	}
}

// -------------------------------------------------------------------------
// radserver.MetricsReporter
// -------------------------------------------------------------------------

// PacketReceived implements radserver.MetricsReporter.
func (c *Collector) PacketReceived(host string, code radius.Code) {
	c.PacketsReceived.WithLabelValues(host, code.String()).Inc()
}

// PacketDropped implements radserver.MetricsReporter.
func (c *Collector) PacketDropped(host string, reason string) {
	c.PacketsDropped.WithLabelValues(host, reason).Inc()
	if reason == "auth-mismatch" {
		c.AuthFailures.WithLabelValues(host).Inc()
	}
}

// PacketReplied implements radserver.MetricsReporter.
func (c *Collector) PacketReplied(host string, code radius.Code) {
	c.PacketsReplied.WithLabelValues(host, code.String()).Inc()
}

// -------------------------------------------------------------------------
// Client Latency
// -------------------------------------------------------------------------

// ObserveClientLatency records a goradiusctl/radclient round trip of
// duration d against server for the request's RADIUS code.
func (c *Collector) ObserveClientLatency(server string, code radius.Code, d time.Duration) {
	c.ClientLatency.WithLabelValues(server, code.String()).Observe(d.Seconds())
}
