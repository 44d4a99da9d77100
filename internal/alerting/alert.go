// Package alerting formats classification results into alerts and delivers
// them to external collaborators over configurable notification channels.
// Retry and fallback live here, never in the detection core.
package alerting

import (
	"time"

	"github.com/google/uuid"

	"github.com/jondmarien/automotive-security-capstone-sub001/internal/correlation"
	"github.com/jondmarien/automotive-security-capstone-sub001/internal/signal"
)

// Alert is the outbound alert record, suitable for JSON encoding.
type Alert struct {
	ID          uuid.UUID              `json:"id"`
	DeviceID    string                 `json:"device_id"`
	Severity    signal.ThreatLevel     `json:"severity"`
	Reason      string                 `json:"reason"`
	Report      *signal.SecurityReport `json:"report,omitempty"`
	Correlation *correlation.Event     `json:"correlation,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
}

// FromReport builds an alert from a non-benign security report.
func FromReport(deviceID string, report signal.SecurityReport) *Alert {
	return &Alert{
		ID:        uuid.New(),
		DeviceID:  deviceID,
		Severity:  report.ThreatLevel,
		Reason:    report.Reason,
		Report:    &report,
		CreatedAt: time.Now().UTC(),
	}
}

// FromCorrelationEvent builds an alert from a correlation controller event.
func FromCorrelationEvent(deviceID string, ev correlation.Event) *Alert {
	return &Alert{
		ID:          uuid.New(),
		DeviceID:    deviceID,
		Severity:    ev.ThreatLevel,
		Reason:      string(ev.Type),
		Correlation: &ev,
		CreatedAt:   time.Now().UTC(),
	}
}
