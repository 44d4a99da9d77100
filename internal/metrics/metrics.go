// Package metrics exposes pipeline counters to Prometheus. The detection
// core stays metrics-free; the consume loop and correlation handlers feed
// these collectors from their results.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the sensor's Prometheus collectors.
type Metrics struct {
	PacketsTotal     prometheus.Counter
	AdmittedTotal    prometheus.Counter
	RejectedTotal    prometheus.Counter
	AlertsTotal      *prometheus.CounterVec
	CaptureErrors    prometheus.Counter
	EvidenceDepth    *prometheus.GaugeVec
	CorrelationArms  prometheus.Counter
	CorrelationFires prometheus.Counter
}

// New creates and registers the sensor collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		PacketsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sentinel_packets_total",
			Help: "Observations handed to the device orchestrator.",
		}),
		AdmittedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sentinel_packets_admitted_total",
			Help: "Observations that passed the admission filter.",
		}),
		RejectedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sentinel_packets_rejected_total",
			Help: "Observations dropped by the admission filter.",
		}),
		AlertsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sentinel_alerts_total",
			Help: "Generated alerts by threat level.",
		}, []string{"threat_level"}),
		CaptureErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sentinel_capture_errors_total",
			Help: "Errors returned by the capture source.",
		}),
		EvidenceDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "sentinel_evidence_depth",
			Help: "Entries currently retained in the evidence store.",
		}, []string{"sequence"}),
		CorrelationArms: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sentinel_correlation_arms_total",
			Help: "Times the RF-NFC correlation window was armed.",
		}),
		CorrelationFires: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sentinel_correlation_fires_total",
			Help: "Critical correlated RF-NFC detections.",
		}),
	}

	reg.MustRegister(
		m.PacketsTotal,
		m.AdmittedTotal,
		m.RejectedTotal,
		m.AlertsTotal,
		m.CaptureErrors,
		m.EvidenceDepth,
		m.CorrelationArms,
		m.CorrelationFires,
	)
	return m
}
