// Package device wires the admission filter, threat analyzer, evidence
// store and correlation controller into one start/stop-able unit that
// ingests a single observation at a time.
package device

import (
	"log/slog"
	"sync"
	"time"

	"github.com/jondmarien/automotive-security-capstone-sub001/internal/analyzer"
	"github.com/jondmarien/automotive-security-capstone-sub001/internal/correlation"
	"github.com/jondmarien/automotive-security-capstone-sub001/internal/evidence"
	"github.com/jondmarien/automotive-security-capstone-sub001/internal/filter"
	"github.com/jondmarien/automotive-security-capstone-sub001/internal/logging"
	"github.com/jondmarien/automotive-security-capstone-sub001/internal/signal"
)

// ResultStatus distinguishes the three ProcessPacket outcomes.
type ResultStatus string

const (
	// StatusNotRunning means the device was stopped; nothing was processed.
	StatusNotRunning ResultStatus = "not_running"
	// StatusRejected means the admission filter dropped the observation.
	StatusRejected ResultStatus = "not_admitted"
	// StatusProcessed means the observation was analyzed.
	StatusProcessed ResultStatus = "processed"
)

// Result is the outcome of processing one observation.
type Result struct {
	Status         ResultStatus           `json:"status"`
	ThreatDetected bool                   `json:"threat_detected"`
	Reason         string                 `json:"reason"`
	Report         *signal.SecurityReport `json:"report,omitempty"`
}

// Status aggregates device and component state for health collaborators.
type Status struct {
	DeviceID    string              `json:"device_id"`
	Running     bool                `json:"running"`
	PacketCount uint64              `json:"packet_count"`
	AlertCount  uint64              `json:"alert_count"`
	Evidence    evidence.Metrics    `json:"evidence"`
	Analyzer    analyzer.Metrics    `json:"analyzer"`
	Filter      filter.Metrics      `json:"filter"`
	Correlation correlation.Metrics `json:"correlation"`
	Timestamp   time.Time           `json:"timestamp"`
}

// Orchestrator owns one detection pipeline instance per device. A single
// mutex serializes the whole filter/analyzer/store/correlation sequence so
// no two ProcessPacket invocations interleave their mutations.
type Orchestrator struct {
	deviceID   string
	filter     *filter.Filter
	analyzer   *analyzer.Analyzer
	store      *evidence.Store
	correlator *correlation.Controller

	mu          sync.Mutex
	running     bool
	packetCount uint64
	alertCount  uint64
}

// New assembles an Orchestrator from explicitly constructed components.
func New(deviceID string, f *filter.Filter, a *analyzer.Analyzer, s *evidence.Store, c *correlation.Controller) *Orchestrator {
	return &Orchestrator{
		deviceID:   deviceID,
		filter:     f,
		analyzer:   a,
		store:      s,
		correlator: c,
	}
}

// Start transitions to running. Calling Start on a running device is a no-op.
func (o *Orchestrator) Start() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.running {
		return
	}
	o.running = true
	slog.Info("device started", "device_id", o.deviceID)
}

// Stop transitions to stopped. Calling Stop on a stopped device is a no-op.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.running {
		return
	}
	o.running = false
	slog.Info("device stopped", "device_id", o.deviceID)
}

// Running reports whether the device is processing packets.
func (o *Orchestrator) Running() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.running
}

// ProcessPacket runs one observation through the pipeline. While stopped it
// returns a sentinel result and mutates nothing. NFC observations bypass the
// RF admission gate and go straight to the correlation controller; malicious
// RF reports arm it.
func (o *Orchestrator) ProcessPacket(obs signal.Observation) Result {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.running {
		return Result{Status: StatusNotRunning, Reason: "device not running"}
	}

	// NFC reads are not RF traffic: the band/strength gate and the rolling
	// RF analysis do not apply to them.
	if obs.IsNFC() {
		o.store.SaveObservation(obs)
		o.packetCount++
		if o.correlator != nil {
			o.correlator.ProcessNFCObservation(obs)
		}
		return Result{Status: StatusProcessed, Reason: "nfc observation"}
	}

	if !o.filter.ShouldAccept(obs) {
		slog.Debug("observation rejected",
			"device_id", o.deviceID,
			"frequency_hz", obs.Frequency,
			"payload", logging.PayloadPreview(obs.Payload),
		)
		return Result{Status: StatusRejected, Reason: "rejected by admission filter"}
	}

	report := o.analyzer.Analyze(obs)
	o.store.SaveObservation(obs)
	o.packetCount++

	if report.ThreatLevel != signal.Benign {
		o.store.SaveAlert(report)
		o.alertCount++
		slog.Warn("threat detected",
			"device_id", o.deviceID,
			"threat_level", report.ThreatLevel.String(),
			"reason", report.Reason,
			"payload", logging.PayloadPreview(obs.Payload),
		)
	}

	o.armCorrelation(report)

	return Result{
		Status:         StatusProcessed,
		ThreatDetected: report.ThreatLevel != signal.Benign,
		Reason:         report.Reason,
		Report:         &report,
	}
}

// armCorrelation arms the correlation window on malicious RF reports.
func (o *Orchestrator) armCorrelation(report signal.SecurityReport) {
	if o.correlator == nil || report.ThreatLevel < signal.Malicious {
		return
	}
	o.correlator.ProcessRFDetections([]correlation.RFDetection{{
		ThreatType:  report.Reason,
		ThreatScore: threatScore(report.ThreatLevel),
		Report:      report,
	}})
}

// threatScore maps a threat level onto the 0..1 correlation score scale.
func threatScore(level signal.ThreatLevel) float64 {
	switch level {
	case signal.Suspicious:
		return 0.5
	case signal.Malicious:
		return 0.9
	case signal.Critical:
		return 1.0
	default:
		return 0.0
	}
}

// Reset clears counters, the evidence store, the analyzer history and any
// armed correlation context. The running state is preserved.
func (o *Orchestrator) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.packetCount = 0
	o.alertCount = 0
	o.store.ClearAll()
	o.analyzer.Reset()
	if o.correlator != nil {
		o.correlator.Reset()
	}
	slog.Info("device reset", "device_id", o.deviceID)
}

// Status returns an aggregate snapshot of the device and its components.
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()

	st := Status{
		DeviceID:    o.deviceID,
		Running:     o.running,
		PacketCount: o.packetCount,
		AlertCount:  o.alertCount,
		Evidence:    o.store.Metrics(),
		Analyzer:    o.analyzer.Metrics(),
		Filter:      o.filter.Metrics(),
		Timestamp:   time.Now().UTC(),
	}
	if o.correlator != nil {
		st.Correlation = o.correlator.Metrics()
	}
	return st
}
